// Package usecase wires the segmentation stages into one per-file run:
// sentence building, logical segmentation, candidate discovery via an ordered
// strategy chain, merge/extend reconciliation, scoring, and the optional
// platform pass. Data-quality problems never surface as errors; callers get
// either segments or a reason code.
package usecase

import (
	"context"
	"io"
	"log/slog"
	"sort"

	"github.com/ivanshev/segcut/internal/domain/keywords"
	"github.com/ivanshev/segcut/internal/domain/scoring"
	"github.com/ivanshev/segcut/internal/domain/segments"
	"github.com/ivanshev/segcut/internal/domain/sentences"
	"github.com/ivanshev/segcut/internal/ports"
	"github.com/ivanshev/segcut/internal/types"
)

// DefaultMaxClips caps the ranked output when the caller does not say.
const DefaultMaxClips = 5

// Options tune the per-stage knobs. Zero values mean stage defaults.
type Options struct {
	Sentence   sentences.Options
	Window     sentences.WindowOptions
	Merge      segments.Options
	Thresholds scoring.Thresholds
	MaxClips   int
}

func (o Options) normalized() Options {
	if o.Thresholds == (scoring.Thresholds{}) {
		o.Thresholds = scoring.DefaultThresholds
	}
	if o.MaxClips <= 0 {
		o.MaxClips = DefaultMaxClips
	}
	return o
}

// Request is one file's segmentation job. Profile is optional; without it the
// generic composite weights apply and no duration window is enforced.
type Request struct {
	Transcript types.Transcript
	Topic      string
	Profile    *types.PlatformProfile
	// MaxClips overrides the engine-level default when positive.
	MaxClips int
}

// Engine runs segmentation jobs. The relevance querier is optional: without
// one, candidate discovery starts at the fallback strategies.
type Engine struct {
	querier ports.RelevanceQuerier
	logger  *slog.Logger
	opts    Options
}

func New(querier ports.RelevanceQuerier, logger *slog.Logger, opts Options) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{querier: querier, logger: logger, opts: opts.normalized()}
}

// Segment runs the full pipeline for one transcript. The only error it can
// return is a context error; everything else degrades to an empty Result with
// a reason code.
func (e *Engine) Segment(ctx context.Context, req Request) (types.Result, error) {
	tokens := req.Transcript.Tokens()
	if len(tokens) == 0 {
		return types.Result{Reason: types.ReasonEmptyTranscript}, nil
	}
	transcriptEnd := req.Transcript.End()

	sents := sentences.Build(tokens, e.opts.Sentence)
	if len(sents) == 0 {
		return types.Result{Reason: types.ReasonEmptyTranscript}, nil
	}
	if err := ctx.Err(); err != nil {
		return types.Result{}, err
	}

	logical := sentences.BuildLogical(sents, e.opts.Window)
	e.logger.Debug("transcript prepared",
		"tokens", len(tokens), "sentences", len(sents), "logical_segments", len(logical))
	if err := ctx.Err(); err != nil {
		return types.Result{}, err
	}

	cands, err := e.discover(ctx, logical, req.Topic)
	if err != nil {
		return types.Result{}, err
	}
	if len(cands) == 0 {
		return types.Result{Reason: types.ReasonNoRelevantContent}, nil
	}
	if err := ctx.Err(); err != nil {
		return types.Result{}, err
	}

	merged := segments.Reconcile(cands, sents, transcriptEnd, e.opts.Merge)
	if err := ctx.Err(); err != nil {
		return types.Result{}, err
	}

	scored := scoring.Build(merged, sents, req.Topic, req.Profile, e.opts.Thresholds)
	if err := ctx.Err(); err != nil {
		return types.Result{}, err
	}

	maxClips := req.MaxClips
	if maxClips <= 0 {
		maxClips = e.opts.MaxClips
	}
	var final []types.ScoredSegment
	if req.Profile != nil {
		final = scoring.OptimizeForPlatform(scored, sents, transcriptEnd, *req.Profile, maxClips, req.Topic, e.opts.Thresholds)
	} else {
		final = rankAndCap(scored, maxClips)
	}

	if len(final) == 0 {
		return types.Result{Reason: types.ReasonNoRelevantContent}, nil
	}
	return types.Result{Segments: final}, nil
}

// discover walks the candidate sources in order and stops at the first one
// that yields at least one range. A failed model query is logged and skipped,
// never fatal; context cancellation is the one hard stop.
func (e *Engine) discover(ctx context.Context, logical []types.LogicalSegment, topic string) ([]types.CandidateRange, error) {
	for _, s := range e.strategies(logical, topic) {
		cands, err := s.run(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.Warn("candidate source failed, trying next", "source", s.name, "error", err)
			continue
		}
		if len(cands) > 0 {
			e.logger.Info("candidates discovered", "source", s.name, "count", len(cands))
			return cands, nil
		}
		e.logger.Debug("candidate source empty", "source", s.name)
	}
	return nil, nil
}

type strategy struct {
	name string
	run  func(ctx context.Context) ([]types.CandidateRange, error)
}

func (e *Engine) strategies(logical []types.LogicalSegment, topic string) []strategy {
	var chain []strategy
	if e.querier != nil {
		chain = append(chain, strategy{name: "model", run: func(ctx context.Context) ([]types.CandidateRange, error) {
			return e.queryModel(ctx, logical, topic)
		}})
	}
	if topic != "" {
		chain = append(chain, strategy{name: "keywords", run: func(context.Context) ([]types.CandidateRange, error) {
			return keywords.Match(keywordUnits(logical), topic), nil
		}})
	} else {
		// Generic mode: no topic to match against, so every logical segment
		// is a candidate and ranking falls to engagement and duration fit.
		chain = append(chain, strategy{name: "all_segments", run: func(context.Context) ([]types.CandidateRange, error) {
			return allSegments(logical), nil
		}})
	}
	return chain
}

// queryModel sends the indexed logical segments to the relevance querier and
// maps the returned index ranges back onto grounded timestamps. The model
// never sees seconds, so an index outside the table is the only way it can
// point at time that does not exist; such ranges are dropped, not clamped.
func (e *Engine) queryModel(ctx context.Context, logical []types.LogicalSegment, topic string) ([]types.CandidateRange, error) {
	units := make([]ports.IndexedUnit, len(logical))
	for i, seg := range logical {
		units[i] = ports.IndexedUnit{Index: i, Text: seg.Text}
	}

	ranges, err := e.querier.QueryRelevance(ctx, units, topic)
	if err != nil {
		return nil, err
	}

	out := make([]types.CandidateRange, 0, len(ranges))
	for _, r := range ranges {
		if r.StartIndex < 0 || r.EndIndex >= len(logical) || r.StartIndex > r.EndIndex {
			e.logger.Warn("dropping model range with out-of-table indexes",
				"start_index", r.StartIndex, "end_index", r.EndIndex, "units", len(logical))
			continue
		}
		out = append(out, types.CandidateRange{
			Start:     logical[r.StartIndex].Start,
			End:       logical[r.EndIndex].End,
			Source:    types.SourceModel,
			Relevance: r.Relevance,
		})
	}
	return out, nil
}

func keywordUnits(logical []types.LogicalSegment) []keywords.Unit {
	units := make([]keywords.Unit, len(logical))
	for i, seg := range logical {
		units[i] = keywords.Unit{Text: seg.Text, Start: seg.Start, End: seg.End}
	}
	return units
}

func allSegments(logical []types.LogicalSegment) []types.CandidateRange {
	out := make([]types.CandidateRange, len(logical))
	for i, seg := range logical {
		out[i] = types.CandidateRange{
			Start:  seg.Start,
			End:    seg.End,
			Source: types.SourceFallback,
		}
	}
	return out
}

// rankAndCap orders by composite score descending, earlier start breaking
// ties, and keeps at most maxClips.
func rankAndCap(scored []types.ScoredSegment, maxClips int) []types.ScoredSegment {
	out := make([]types.ScoredSegment, len(scored))
	copy(out, scored)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CompositeScore != out[j].CompositeScore {
			return out[i].CompositeScore > out[j].CompositeScore
		}
		return out[i].Start < out[j].Start
	})
	if len(out) > maxClips {
		out = out[:maxClips]
	}
	return out
}
