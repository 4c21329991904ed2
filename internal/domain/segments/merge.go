// Package segments reconciles model- or fallback-proposed candidate ranges
// against grounded sentence boundaries: clamp, merge overlaps, extend
// undersized ranges, and repeat until a fixed point. Output ranges are
// disjoint and, transcript length permitting, satisfy the minimum duration.
package segments

import (
	"sort"

	"github.com/ivanshev/segcut/internal/types"
)

const (
	// DefaultMinDuration is the minimum viable clip length in seconds.
	DefaultMinDuration = 12
	// DefaultMergeTolerance treats near-adjacent ranges as overlapping.
	DefaultMergeTolerance = 0.5
)

type Options struct {
	MinDuration    float64
	MergeTolerance float64
}

func (o Options) normalized() Options {
	if o.MinDuration <= 0 {
		o.MinDuration = DefaultMinDuration
	}
	if o.MergeTolerance < 0 {
		o.MergeTolerance = 0
	} else if o.MergeTolerance == 0 {
		o.MergeTolerance = DefaultMergeTolerance
	}
	return o
}

// Reconcile runs the full clamp / sort / merge / extend sweep. Extension uses
// only sentence boundaries so timestamps stay grounded; the loop terminates
// because covered duration is non-decreasing and bounded by the transcript.
// Reconcile is idempotent on its own output.
func Reconcile(cands []types.CandidateRange, sents []types.Sentence, transcriptEnd float64, opts Options) []types.CandidateRange {
	opts = opts.normalized()
	if transcriptEnd <= 0 {
		return nil
	}

	cur := clamp(cands, transcriptEnd)
	for iter := 0; iter < len(cands)+2; iter++ {
		merged := merge(cur, opts.MergeTolerance)
		extended := make([]types.CandidateRange, 0, len(merged))
		changed := false
		for _, r := range merged {
			e := extendToMin(r, sents, transcriptEnd, opts.MinDuration)
			if e != r {
				changed = true
			}
			extended = append(extended, e)
		}
		cur = extended
		if !changed {
			return merge(cur, opts.MergeTolerance)
		}
	}
	return merge(cur, opts.MergeTolerance)
}

// clamp truncates ranges to [0, transcriptEnd] and drops anything degenerate
// after truncation.
func clamp(cands []types.CandidateRange, transcriptEnd float64) []types.CandidateRange {
	out := make([]types.CandidateRange, 0, len(cands))
	for _, c := range cands {
		if c.Start < 0 {
			c.Start = 0
		}
		if c.End > transcriptEnd {
			c.End = transcriptEnd
		}
		if c.End <= c.Start {
			continue
		}
		out = append(out, c)
	}
	return out
}

// merge unions overlapping or near-adjacent ranges with a single linear sweep
// over start-sorted input. The surviving relevance is the max of the merged
// scores.
func merge(cands []types.CandidateRange, tolerance float64) []types.CandidateRange {
	if len(cands) == 0 {
		return nil
	}
	sorted := make([]types.CandidateRange, len(cands))
	copy(sorted, cands)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End-sorted[i].Start > sorted[j].End-sorted[j].Start
	})

	out := []types.CandidateRange{sorted[0]}
	for _, c := range sorted[1:] {
		last := &out[len(out)-1]
		if c.Start <= last.End+tolerance {
			if c.End > last.End {
				last.End = c.End
			}
			if c.Relevance > last.Relevance {
				last.Relevance = c.Relevance
			}
			continue
		}
		out = append(out, c)
	}
	return out
}

// extendToMin grows a short range symmetrically into adjacent sentence
// boundaries until the minimum duration is met or both directions are
// exhausted. Boundaries already established by the sentence builder are the
// only permitted growth targets.
func extendToMin(r types.CandidateRange, sents []types.Sentence, transcriptEnd float64, minDur float64) types.CandidateRange {
	for r.End-r.Start < minDur {
		prevStart, havePrev := previousStart(sents, r.Start)
		nextEnd, haveNext := nextEnd(sents, r.End, transcriptEnd)

		if !havePrev && !haveNext {
			return r
		}
		// Symmetric growth: prefer the side that currently moves the boundary
		// the least, so the original span stays centered.
		growLeft := havePrev && (!haveNext || r.Start-prevStart <= nextEnd-r.End)
		if growLeft {
			r.Start = prevStart
		} else {
			r.End = nextEnd
		}
	}
	return r
}

func previousStart(sents []types.Sentence, before float64) (float64, bool) {
	best := -1.0
	found := false
	for _, s := range sents {
		if s.Start < before && s.Start > best {
			best = s.Start
			found = true
		}
	}
	if !found || best < 0 {
		if before > 0 {
			return 0, true
		}
		return 0, false
	}
	return best, true
}

func nextEnd(sents []types.Sentence, after, transcriptEnd float64) (float64, bool) {
	best := transcriptEnd + 1
	found := false
	for _, s := range sents {
		if s.End > after && s.End < best {
			best = s.End
			found = true
		}
	}
	if !found {
		if after < transcriptEnd {
			return transcriptEnd, true
		}
		return 0, false
	}
	return best, true
}

// FitToWindow adapts a range to a platform duration window using the same
// grounded boundary rules: overlong ranges are truncated to the latest
// sentence end inside the window, short ones extended via extendToMin. The
// boolean is false when no valid fit exists.
func FitToWindow(r types.CandidateRange, sents []types.Sentence, transcriptEnd, minDur, maxDur float64) (types.CandidateRange, bool) {
	if r.End <= r.Start || minDur <= 0 || maxDur <= minDur {
		return types.CandidateRange{}, false
	}
	if r.End-r.Start > maxDur {
		end, ok := latestEndWithin(sents, r.Start, r.Start+maxDur)
		if !ok || end-r.Start < minDur {
			return types.CandidateRange{}, false
		}
		r.End = end
	}
	if r.End-r.Start < minDur {
		r = extendToMin(r, sents, transcriptEnd, minDur)
	}
	if d := r.End - r.Start; d < minDur || d > maxDur {
		return types.CandidateRange{}, false
	}
	return r, true
}

func latestEndWithin(sents []types.Sentence, after, limit float64) (float64, bool) {
	best := 0.0
	found := false
	for _, s := range sents {
		if s.End > after && s.End <= limit && s.End > best {
			best = s.End
			found = true
		}
	}
	return best, found
}
