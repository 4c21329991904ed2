package scoring

import (
	"testing"

	"github.com/ivanshev/segcut/internal/types"
)

func TestThresholds_Bucket(t *testing.T) {
	t.Parallel()

	tests := []struct {
		composite float64
		want      types.ViralPotential
	}{
		{8.2, types.ViralHigh},
		{7.6, types.ViralHigh},
		{7.5, types.ViralMedium},
		{6.0, types.ViralMedium},
		{5.0, types.ViralMedium},
		{4.99, types.ViralLow},
		{3.0, types.ViralLow},
	}
	for _, tt := range tests {
		if got := DefaultThresholds.Bucket(tt.composite); got != tt.want {
			t.Fatalf("Bucket(%v) = %v, want %v", tt.composite, got, tt.want)
		}
	}
}

func TestEngagement_Range(t *testing.T) {
	t.Parallel()

	texts := []string{
		"",
		"plain flat statement about nothing in particular",
		"This is the most important secret! Never skip step 1. How to win? Amazing!",
	}
	for _, text := range texts {
		got := Engagement(text)
		if got < 1 || got > 10 {
			t.Fatalf("Engagement(%q) = %v outside [1,10]", text, got)
		}
	}
	flat := Engagement("we walked to the store and bought some bread for dinner")
	hooky := Engagement("The secret mistake everyone makes! Never do this? Here is why it is so important!")
	if hooky <= flat {
		t.Fatalf("expected hooky text (%v) to outscore flat text (%v)", hooky, flat)
	}
}

func TestEngagement_Deterministic(t *testing.T) {
	t.Parallel()

	text := "How to learn faster? The key mistake is skipping step 1!"
	if Engagement(text) != Engagement(text) {
		t.Fatal("engagement must be reproducible for identical input")
	}
}

func TestCountWords(t *testing.T) {
	t.Parallel()

	tests := map[string]int{
		"":                 0,
		"one two three":    3,
		"  spaced   out  ": 2,
		"word, word. 42":   3,
		"-- ... !!":        0,
	}
	for in, want := range tests {
		if got := CountWords(in); got != want {
			t.Fatalf("CountWords(%q) = %d, want %d", in, got, want)
		}
	}
}

func testProfile() types.PlatformProfile {
	return types.PlatformProfile{
		Name:            "test",
		MinDuration:     15,
		MaxDuration:     60,
		OptimalDuration: 30,
		Weights:         types.ScoringWeights{Relevance: 0.5, Engagement: 0.3, DurationFit: 0.2},
	}
}

func TestDurationFit_Triangular(t *testing.T) {
	t.Parallel()

	p := testProfile()
	tests := []struct {
		dur  float64
		want float64
	}{
		{30, 10},   // peak at optimal
		{15, 0},    // window edge
		{60, 0},    // window edge
		{10, 0},    // outside
		{90, 0},    // outside
		{22.5, 5},  // halfway up
		{45, 5},    // halfway down
	}
	for _, tt := range tests {
		if got := DurationFit(tt.dur, p); got != tt.want {
			t.Fatalf("DurationFit(%v) = %v, want %v", tt.dur, got, tt.want)
		}
	}
}

func TestComposite(t *testing.T) {
	t.Parallel()

	if got := Composite(8, 5, 0, nil); got != 8*0.6+5*0.4 {
		t.Fatalf("generic composite = %v", got)
	}
	p := testProfile()
	want := 8*0.5 + 5*0.3 + 10*0.2 // duration at optimal
	if got := Composite(8, 5, 30, &p); got != want {
		t.Fatalf("platform composite = %v, want %v", got, want)
	}
}

func spanSentences() []types.Sentence {
	return []types.Sentence{
		{Text: "The secret to learning English fast is daily practice.", Start: 0, End: 10},
		{Text: "Never skip listening practice!", Start: 10, End: 20},
		{Text: "Now we talk about cooking pho at home.", Start: 20, End: 30},
	}
}

func TestBuild_ScoresGroundedSpan(t *testing.T) {
	t.Parallel()

	merged := []types.CandidateRange{
		{Start: 0, End: 20, Source: types.SourceModel, Relevance: 8},
	}
	got := Build(merged, spanSentences(), "learning English", nil, DefaultThresholds)
	if len(got) != 1 {
		t.Fatalf("expected 1 scored segment, got %d", len(got))
	}
	seg := got[0]
	if seg.RelevanceScore != 8 {
		t.Fatalf("relevance = %v, want 8", seg.RelevanceScore)
	}
	if seg.EngagementScore < 1 || seg.EngagementScore > 10 {
		t.Fatalf("engagement out of range: %v", seg.EngagementScore)
	}
	// Word count comes from the two sentences inside [0,20], not the summary.
	if seg.WordCount != 13 {
		t.Fatalf("word count = %d, want 13", seg.WordCount)
	}
	if seg.Summary == "" {
		t.Fatal("expected a summary derived from the span")
	}
	if len(seg.Tags) == 0 {
		t.Fatal("expected tags")
	}
	if seg.Tags[0] != "learning" {
		t.Fatalf("expected topic keyword tag first, got %v", seg.Tags)
	}
}

func TestBuild_ClampsAndDefaults(t *testing.T) {
	t.Parallel()

	merged := []types.CandidateRange{
		{Start: 0, End: 10, Relevance: 42},  // clamped to 10
		{Start: 10, End: 20, Relevance: 0},  // unset, neutral default
		{Start: 25, End: 25, Relevance: 7},  // degenerate, dropped
	}
	got := Build(merged, spanSentences(), "", nil, DefaultThresholds)
	if len(got) != 2 {
		t.Fatalf("expected degenerate range dropped, got %d segments", len(got))
	}
	if got[0].RelevanceScore != 10 {
		t.Fatalf("expected relevance clamped to 10, got %v", got[0].RelevanceScore)
	}
	if got[1].RelevanceScore != NeutralRelevance {
		t.Fatalf("expected neutral relevance, got %v", got[1].RelevanceScore)
	}
	for _, seg := range got {
		if seg.End <= seg.Start {
			t.Fatalf("invalid segment bounds: %+v", seg)
		}
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	if got := Summarize("First sentence here. Second one."); got != "First sentence here." {
		t.Fatalf("unexpected summary: %q", got)
	}
	long := "one two three four five six seven eight nine ten eleven twelve thirteen fourteen fifteen sixteen seventeen eighteen nineteen twenty"
	got := Summarize(long)
	if len(got) >= len(long) {
		t.Fatalf("expected truncation, got %q", got)
	}
	if Summarize("   ") != "" {
		t.Fatal("expected empty summary for blank span")
	}
}

func TestOptimizeForPlatform(t *testing.T) {
	t.Parallel()

	var sents []types.Sentence
	for start := 0.0; start < 300; start += 10 {
		sents = append(sents, types.Sentence{Text: "sentence here.", Start: start, End: start + 10})
	}
	p := testProfile()
	scored := []types.ScoredSegment{
		{Start: 0, End: 30, RelevanceScore: 9, EngagementScore: 6, CompositeScore: 8.0},
		{Start: 50, End: 70, RelevanceScore: 7, EngagementScore: 7, CompositeScore: 7.0},
		{Start: 100, End: 250, RelevanceScore: 8, EngagementScore: 5, CompositeScore: 7.5}, // overlong, refit
		{Start: 280, End: 281, RelevanceScore: 5, EngagementScore: 5, CompositeScore: 5.0}, // refit or drop
	}
	got := OptimizeForPlatform(scored, sents, 300, p, 2, "", DefaultThresholds)
	if len(got) > 2 {
		t.Fatalf("expected at most max_clips=2 segments, got %d", len(got))
	}
	for _, seg := range got {
		if d := seg.Duration(); d < p.MinDuration || d > p.MaxDuration {
			t.Fatalf("segment duration %v outside platform window", d)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i].CompositeScore > got[i-1].CompositeScore {
			t.Fatalf("segments not sorted by composite score: %+v", got)
		}
	}
}

func TestOptimizeForPlatform_ZeroClips(t *testing.T) {
	t.Parallel()

	if got := OptimizeForPlatform([]types.ScoredSegment{{Start: 0, End: 30}}, nil, 30, testProfile(), 0, "", DefaultThresholds); got != nil {
		t.Fatalf("expected nil for max_clips=0, got %+v", got)
	}
}
