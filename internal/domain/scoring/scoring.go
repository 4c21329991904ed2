// Package scoring computes the reproducible composite scores used to rank
// segments: word counts from the grounded transcript span, a deterministic
// engagement heuristic, relevance/engagement/duration-fit weighting, and the
// viral-potential bucketing.
package scoring

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/ivanshev/segcut/internal/domain/sentences"
	"github.com/ivanshev/segcut/internal/types"
)

// Generic composite weights used when no platform profile is given.
const (
	GenericRelevanceWeight  = 0.6
	GenericEngagementWeight = 0.4
)

// NeutralRelevance stands in for candidates whose source supplied no score.
const NeutralRelevance = 5

// Thresholds are the viral-potential bucket edges on the composite score.
type Thresholds struct {
	MediumFrom float64
	HighAbove  float64
}

// DefaultThresholds: composite < 5 is low, 5..7.5 medium, above 7.5 high.
var DefaultThresholds = Thresholds{MediumFrom: 5.0, HighAbove: 7.5}

// Bucket maps a composite score onto a viral-potential band.
func (t Thresholds) Bucket(composite float64) types.ViralPotential {
	switch {
	case composite > t.HighAbove:
		return types.ViralHigh
	case composite >= t.MediumFrom:
		return types.ViralMedium
	default:
		return types.ViralLow
	}
}

var (
	reHookCue = regexp.MustCompile(`(?i)\b(secret|important|key|mistake|never|always|amazing|incredible|shocking|insane|crazy|best|worst|remember|warning|free|easy|simple|love|hate)\b`)
	reHowCue  = regexp.MustCompile(`(?i)\b(how\s+to|step\s+\d+|first|second|third|do\s+this|here\s+is\s+why)\b`)
)

// Engagement estimates how hooky a grounded span reads, on a 1-10 scale.
// Deterministic on purpose: same text, same score. Cue counts are normalized
// by span length so long rambling spans do not win on volume alone.
func Engagement(text string) float64 {
	t := strings.TrimSpace(text)
	if t == "" {
		return 1
	}
	words := CountWords(t)
	if words == 0 {
		return 1
	}

	cues := 0.0
	cues += float64(strings.Count(t, "?")) * 2.0
	cues += float64(strings.Count(t, "!")) * 1.5
	cues += float64(len(reHookCue.FindAllStringIndex(t, -1))) * 1.8
	cues += float64(len(reHowCue.FindAllStringIndex(t, -1))) * 1.2

	// Per-25-words density; a span with one strong cue per sentence or so
	// lands mid-scale.
	density := cues * 25 / float64(words)
	return clamp(1+density*2.2, 1, 10)
}

// CountWords counts whitespace-delimited words containing at least one letter
// or digit.
func CountWords(text string) int {
	n := 0
	for _, f := range strings.Fields(text) {
		if strings.IndexFunc(f, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) >= 0 {
			n++
		}
	}
	return n
}

// DurationFit is a triangular score peaking at the profile's optimal duration
// and falling to zero at (and outside) the window edges. Returned on the same
// 1-10 scale as the other dimensions so platform weights compose directly.
func DurationFit(duration float64, p types.PlatformProfile) float64 {
	if duration <= p.MinDuration || duration >= p.MaxDuration {
		if duration == p.OptimalDuration {
			return 10
		}
		return 0
	}
	if duration == p.OptimalDuration {
		return 10
	}
	if duration < p.OptimalDuration {
		return 10 * (duration - p.MinDuration) / (p.OptimalDuration - p.MinDuration)
	}
	return 10 * (p.MaxDuration - duration) / (p.MaxDuration - p.OptimalDuration)
}

// Composite combines the dimensions. With a profile, the profile's weights
// apply including duration fit; otherwise the generic 0.6/0.4 split.
func Composite(relevance, engagement, duration float64, profile *types.PlatformProfile) float64 {
	if profile == nil {
		return relevance*GenericRelevanceWeight + engagement*GenericEngagementWeight
	}
	w := profile.Weights
	return relevance*w.Relevance + engagement*w.Engagement + DurationFit(duration, *profile)*w.DurationFit
}

// Build turns disjoint merged ranges into externally visible scored segments.
// Degenerate ranges are dropped before scoring. Relevance and engagement are
// clamped to [1,10]; word counts come from the grounded span, never from the
// summary.
func Build(merged []types.CandidateRange, sents []types.Sentence, topic string, profile *types.PlatformProfile, th Thresholds) []types.ScoredSegment {
	out := make([]types.ScoredSegment, 0, len(merged))
	for _, r := range merged {
		if r.End <= r.Start {
			continue
		}
		span := sentences.SpanText(sents, r.Start, r.End)

		relevance := r.Relevance
		if relevance == 0 {
			relevance = NeutralRelevance
		}
		relevance = clamp(relevance, 1, 10)
		engagement := Engagement(span)
		composite := Composite(relevance, engagement, r.End-r.Start, profile)

		out = append(out, types.ScoredSegment{
			Start:           r.Start,
			End:             r.End,
			Summary:         Summarize(span),
			Tags:            Tags(span, topic),
			WordCount:       CountWords(span),
			RelevanceScore:  relevance,
			EngagementScore: engagement,
			CompositeScore:  composite,
			ViralPotential:  th.Bucket(composite),
		})
	}
	return out
}

const summaryWordLimit = 18

// Summarize produces a short structural summary of the grounded span: its
// first sentence, truncated to a word budget. Semantic correctness of
// model-generated prose is explicitly not guaranteed here, so the summary is
// derived from the transcript itself.
func Summarize(span string) string {
	span = strings.TrimSpace(span)
	if span == "" {
		return ""
	}
	if i := strings.IndexAny(span, ".!?"); i >= 0 && i+1 < len(span) {
		span = span[:i+1]
	}
	words := strings.Fields(span)
	if len(words) > summaryWordLimit {
		return strings.Join(words[:summaryWordLimit], " ") + "…"
	}
	return strings.Join(words, " ")
}

const maxTags = 3

var stopWords = map[string]bool{
	"the": true, "and": true, "that": true, "this": true, "with": true,
	"from": true, "have": true, "will": true, "your": true, "they": true,
	"what": true, "when": true, "then": true, "them": true, "were": true,
	"there": true, "their": true, "about": true, "just": true, "like": true,
	"really": true, "going": true, "because": true, "very": true,
}

// Tags picks topical tags for a span: topic keywords that actually occur in
// the span first, then the span's most frequent remaining words.
func Tags(span, topic string) []string {
	lowerSpan := strings.ToLower(span)
	var tags []string
	seen := make(map[string]bool)

	for _, kw := range strings.Fields(strings.ToLower(topic)) {
		kw = strings.Trim(kw, ".,!?\"'")
		if len([]rune(kw)) < 3 || seen[kw] || !strings.Contains(lowerSpan, kw) {
			continue
		}
		tags = append(tags, kw)
		seen[kw] = true
		if len(tags) == maxTags {
			return tags
		}
	}

	freq := make(map[string]int)
	for _, w := range strings.Fields(lowerSpan) {
		w = strings.Trim(w, ".,!?\"'():;")
		if len([]rune(w)) < 4 || stopWords[w] || seen[w] {
			continue
		}
		freq[w]++
	}
	rest := make([]string, 0, len(freq))
	for w := range freq {
		rest = append(rest, w)
	}
	sort.Slice(rest, func(i, j int) bool {
		if freq[rest[i]] != freq[rest[j]] {
			return freq[rest[i]] > freq[rest[j]]
		}
		return rest[i] < rest[j]
	})
	for _, w := range rest {
		if len(tags) == maxTags {
			break
		}
		tags = append(tags, w)
	}
	return tags
}

func clamp(x, a, b float64) float64 {
	if x < a {
		return a
	}
	if x > b {
		return b
	}
	return x
}
