package segments

import (
	"reflect"
	"testing"

	"github.com/ivanshev/segcut/internal/types"
)

// evenSentences builds sentence boundaries every 5 seconds up to end.
func evenSentences(end float64) []types.Sentence {
	var out []types.Sentence
	for start := 0.0; start < end; start += 5 {
		out = append(out, types.Sentence{Text: "s.", Start: start, End: start + 5})
	}
	return out
}

func cand(start, end, relevance float64) types.CandidateRange {
	return types.CandidateRange{Start: start, End: end, Source: types.SourceModel, Relevance: relevance}
}

func TestReconcile_MergesAndExtends(t *testing.T) {
	t.Parallel()

	sents := evenSentences(30)
	cands := []types.CandidateRange{
		cand(2, 5, 6),
		cand(4, 9, 8),
		cand(20, 22, 5),
	}
	got := Reconcile(cands, sents, 30, Options{MinDuration: 10})
	if len(got) != 2 {
		t.Fatalf("expected 2 disjoint segments, got %d: %+v", len(got), got)
	}
	for _, r := range got {
		if r.End-r.Start < 10 {
			t.Fatalf("segment shorter than minimum: %+v", r)
		}
		if r.Start < 0 || r.End > 30 {
			t.Fatalf("segment outside transcript bounds: %+v", r)
		}
	}
	// The overlapping pair unions and keeps the max relevance.
	if got[0].Relevance != 8 {
		t.Fatalf("expected max relevance 8 to survive the merge, got %v", got[0].Relevance)
	}
	if got[1].Start >= got[1].End || got[0].End > got[1].Start {
		t.Fatalf("segments not disjoint/ordered: %+v", got)
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	t.Parallel()

	sents := evenSentences(120)
	cands := []types.CandidateRange{
		cand(3, 6, 7),
		cand(5, 14, 4),
		cand(40, 41, 9),
		cand(90, 118, 6),
	}
	opts := Options{MinDuration: 12, MergeTolerance: 0.5}
	once := Reconcile(cands, sents, 120, opts)
	twice := Reconcile(once, sents, 120, opts)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("merge not idempotent:\n once: %+v\ntwice: %+v", once, twice)
	}
}

func TestReconcile_ClampsAndDropsOutOfBounds(t *testing.T) {
	t.Parallel()

	sents := evenSentences(60)
	cands := []types.CandidateRange{
		cand(-5, 8, 5),   // truncated to [0,8]
		cand(55, 300, 6), // truncated to [55,60]
		cand(70, 80, 9),  // entirely outside, dropped
		cand(10, 10, 3),  // degenerate, dropped
	}
	got := Reconcile(cands, sents, 60, Options{MinDuration: 10})
	for _, r := range got {
		if r.Start < 0 || r.End > 60 || r.End <= r.Start {
			t.Fatalf("invalid range survived: %+v", r)
		}
	}
	for _, r := range got {
		if r.Relevance == 9 && r.Start >= 60 {
			t.Fatalf("out-of-bounds candidate should not survive: %+v", r)
		}
	}
}

func TestReconcile_ToleranceJoinsNearAdjacent(t *testing.T) {
	t.Parallel()

	sents := evenSentences(60)
	cands := []types.CandidateRange{
		cand(0, 10, 5),
		cand(10.3, 20, 7), // 0.3s gap, inside the 0.5s tolerance
		cand(30, 45, 6),   // 10s gap, stays separate
	}
	got := Reconcile(cands, sents, 60, Options{MinDuration: 10, MergeTolerance: 0.5})
	if len(got) != 2 {
		t.Fatalf("expected tolerance merge into 2 ranges, got %d: %+v", len(got), got)
	}
	if got[0].Start != 0 || got[0].End != 20 {
		t.Fatalf("unexpected merged head range: %+v", got[0])
	}
}

func TestReconcile_ShortTranscript(t *testing.T) {
	t.Parallel()

	// Whole transcript shorter than the minimum duration: extension stops at
	// the transcript boundary instead of looping.
	sents := []types.Sentence{{Text: "all.", Start: 0, End: 8}}
	got := Reconcile([]types.CandidateRange{cand(2, 4, 5)}, sents, 8, Options{MinDuration: 15})
	if len(got) != 1 {
		t.Fatalf("expected 1 segment, got %+v", got)
	}
	if got[0].Start != 0 || got[0].End != 8 {
		t.Fatalf("expected extension to transcript bounds [0,8], got %+v", got[0])
	}
}

func TestReconcile_EmptyInputs(t *testing.T) {
	t.Parallel()

	if got := Reconcile(nil, evenSentences(30), 30, Options{}); got != nil {
		t.Fatalf("expected nil for no candidates, got %+v", got)
	}
	if got := Reconcile([]types.CandidateRange{cand(0, 5, 5)}, nil, 0, Options{}); got != nil {
		t.Fatalf("expected nil for empty transcript, got %+v", got)
	}
}

func TestFitToWindow(t *testing.T) {
	t.Parallel()

	sents := evenSentences(120)

	t.Run("truncates overlong to sentence end", func(t *testing.T) {
		t.Parallel()
		got, ok := FitToWindow(cand(0, 100, 5), sents, 120, 15, 60)
		if !ok {
			t.Fatal("expected a fit")
		}
		if got.End != 60 {
			t.Fatalf("expected truncation to sentence end 60, got %v", got.End)
		}
	})

	t.Run("extends short range", func(t *testing.T) {
		t.Parallel()
		got, ok := FitToWindow(cand(50, 55, 5), sents, 120, 15, 60)
		if !ok {
			t.Fatal("expected a fit")
		}
		if d := got.End - got.Start; d < 15 || d > 60 {
			t.Fatalf("fit outside window: %+v", got)
		}
	})

	t.Run("rejects impossible fit", func(t *testing.T) {
		t.Parallel()
		if _, ok := FitToWindow(cand(0, 1, 5), []types.Sentence{{Start: 0, End: 1}}, 1, 15, 60); ok {
			t.Fatal("expected no fit for a 1s transcript against a 15s minimum")
		}
	})
}
