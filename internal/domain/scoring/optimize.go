package scoring

import (
	"sort"

	"github.com/ivanshev/segcut/internal/domain/segments"
	"github.com/ivanshev/segcut/internal/types"
)

// OptimizeForPlatform filters and reorders scored segments against a
// platform's duration window and returns at most maxClips of them. Segments
// partially outside the window are first re-fit to grounded sentence
// boundaries and rescored; segments that cannot fit are dropped. Ordering is
// composite score descending with earlier start breaking ties.
func OptimizeForPlatform(
	scored []types.ScoredSegment,
	sents []types.Sentence,
	transcriptEnd float64,
	profile types.PlatformProfile,
	maxClips int,
	topic string,
	th Thresholds,
) []types.ScoredSegment {
	if maxClips <= 0 {
		return nil
	}

	fit := make([]types.ScoredSegment, 0, len(scored))
	for _, seg := range scored {
		d := seg.Duration()
		if d >= profile.MinDuration && d <= profile.MaxDuration {
			fit = append(fit, seg)
			continue
		}
		r, ok := segments.FitToWindow(
			types.CandidateRange{Start: seg.Start, End: seg.End, Relevance: seg.RelevanceScore},
			sents, transcriptEnd, profile.MinDuration, profile.MaxDuration,
		)
		if !ok {
			continue
		}
		rebuilt := Build([]types.CandidateRange{r}, sents, topic, &profile, th)
		if len(rebuilt) == 1 {
			fit = append(fit, rebuilt[0])
		}
	}

	sort.SliceStable(fit, func(i, j int) bool {
		if fit[i].CompositeScore != fit[j].CompositeScore {
			return fit[i].CompositeScore > fit[j].CompositeScore
		}
		return fit[i].Start < fit[j].Start
	})
	if len(fit) > maxClips {
		fit = fit[:maxClips]
	}
	return fit
}
