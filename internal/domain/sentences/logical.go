package sentences

import (
	"strings"

	"github.com/ivanshev/segcut/internal/types"
)

// Defaults for the logical segmentation window, in seconds. The hard maximum
// forces a cut when no natural break shows up in time.
const (
	DefaultTargetMin = 30
	DefaultTargetMax = 60
	DefaultHardMax   = 90
)

type WindowOptions struct {
	TargetMin float64
	TargetMax float64
	HardMax   float64
}

func (o WindowOptions) normalized() WindowOptions {
	if o.TargetMin <= 0 {
		o.TargetMin = DefaultTargetMin
	}
	if o.TargetMax <= o.TargetMin {
		o.TargetMax = o.TargetMin + (DefaultTargetMax - DefaultTargetMin)
	}
	if o.HardMax <= o.TargetMax {
		o.HardMax = o.TargetMax * 1.5
	}
	return o
}

// BuildLogical greedily groups sentences into target-duration segments that
// partition the whole sentence list: no sentence is dropped, none is shared.
// Within the target window a cut is preferred at a sentence that ends with
// terminal punctuation; past the hard maximum the cut is forced. Every
// segment's start/end equals a constituent sentence's actual timestamp.
func BuildLogical(sents []types.Sentence, opts WindowOptions) []types.LogicalSegment {
	opts = opts.normalized()
	if len(sents) == 0 {
		return nil
	}

	var out []types.LogicalSegment
	var cur []int

	flush := func() {
		if len(cur) == 0 {
			return
		}
		first, last := sents[cur[0]], sents[cur[len(cur)-1]]
		parts := make([]string, 0, len(cur))
		for _, idx := range cur {
			parts = append(parts, sents[idx].Text)
		}
		out = append(out, types.LogicalSegment{
			Start:     first.Start,
			End:       last.End,
			Text:      strings.Join(parts, " "),
			Sentences: cur,
		})
		cur = nil
	}

	for i := range sents {
		if len(cur) > 0 {
			start := sents[cur[0]].Start
			withNext := sents[i].End - start
			dur := sents[cur[len(cur)-1]].End - start

			switch {
			case withNext > opts.TargetMax && dur >= opts.TargetMin:
				// Already inside the window; close before overshooting.
				flush()
			case withNext > opts.TargetMax && dur >= opts.TargetMin/2 && endsNaturally(sents[cur[len(cur)-1]]):
				// Natural break slightly under the window beats an overlong run.
				flush()
			case withNext > opts.HardMax:
				flush()
			}
		}
		cur = append(cur, i)

		// Close eagerly on a natural break once the window minimum is met.
		if dur := sents[i].End - sents[cur[0]].Start; dur >= opts.TargetMin && dur <= opts.TargetMax && endsNaturally(sents[i]) {
			flush()
		}
	}
	flush()
	return out
}

func endsNaturally(s types.Sentence) bool {
	return EndsSentence(s.Text)
}
