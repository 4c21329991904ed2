package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/ivanshev/segcut/internal/domain/segments"
	"github.com/ivanshev/segcut/internal/domain/sentences"
	"github.com/ivanshev/segcut/internal/ports"
	"github.com/ivanshev/segcut/internal/types"
)

type fakeQuerier struct {
	calls  int
	ranges []ports.IndexRange
	err    error
}

func (f *fakeQuerier) QueryRelevance(_ context.Context, _ []ports.IndexedUnit, _ string) ([]ports.IndexRange, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.ranges, nil
}

// testTranscript yields three sentences at [0,10], [10.2,22], [22.2,34]; with
// the narrow test window each becomes its own logical segment.
func testTranscript() types.Transcript {
	return types.Transcript{Segments: []types.RecognizerChunk{
		{Start: 0, End: 10, Text: "Learning english is simple if you practice every day."},
		{Start: 10.2, End: 22, Text: "Cooking pho at home takes patience and a good broth."},
		{Start: 22.2, End: 34, Text: "English grammar tips help beginners speak with confidence."},
	}}
}

func testOptions() Options {
	return Options{
		Window: sentences.WindowOptions{TargetMin: 8, TargetMax: 12, HardMax: 20},
	}
}

func TestSegment_EmptyTranscript(t *testing.T) {
	t.Parallel()

	e := New(nil, nil, Options{})
	got, err := e.Segment(context.Background(), Request{})
	if err != nil {
		t.Fatalf("segment: %v", err)
	}
	if len(got.Segments) != 0 || got.Reason != types.ReasonEmptyTranscript {
		t.Fatalf("expected empty result with reason, got %+v", got)
	}
}

func TestSegment_ModelRangesRemapToGroundedTimestamps(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{ranges: []ports.IndexRange{{StartIndex: 0, EndIndex: 0, Relevance: 8}}}
	e := New(q, nil, testOptions())

	got, err := e.Segment(context.Background(), Request{Transcript: testTranscript(), Topic: "english"})
	if err != nil {
		t.Fatalf("segment: %v", err)
	}
	if len(got.Segments) != 1 {
		t.Fatalf("expected one segment, got %+v", got)
	}
	// Index 0 maps to [0,10]; the reconciler then extends to the next
	// sentence end to satisfy the 12s minimum.
	seg := got.Segments[0]
	if seg.Start != 0 || seg.End != 22 {
		t.Fatalf("expected grounded span [0,22], got [%v,%v]", seg.Start, seg.End)
	}
	if seg.RelevanceScore != 8 {
		t.Fatalf("expected model relevance to survive, got %v", seg.RelevanceScore)
	}
}

func TestSegment_FallbackAfterModelFailure(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{err: errors.New("retry budget exhausted")}
	e := New(q, nil, testOptions())

	got, err := e.Segment(context.Background(), Request{Transcript: testTranscript(), Topic: "english"})
	if err != nil {
		t.Fatalf("segment: %v", err)
	}
	if q.calls != 1 {
		t.Fatalf("querier owns its retries; engine must call it once, saw %d", q.calls)
	}
	if len(got.Segments) != 1 {
		t.Fatalf("expected keyword fallback to produce segments, got %+v", got)
	}
	if got.Segments[0].Start != 0 || got.Segments[0].End != 34 {
		t.Fatalf("unexpected fallback span: %+v", got.Segments[0])
	}
}

func TestSegment_AllModelRangesInvalid_FallsThrough(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{ranges: []ports.IndexRange{
		{StartIndex: 5, EndIndex: 9, Relevance: 9},
		{StartIndex: 2, EndIndex: 1, Relevance: 7},
	}}
	e := New(q, nil, testOptions())

	got, err := e.Segment(context.Background(), Request{Transcript: testTranscript(), Topic: "english"})
	if err != nil {
		t.Fatalf("segment: %v", err)
	}
	if q.calls != 1 {
		t.Fatalf("expected a single model call, saw %d", q.calls)
	}
	if len(got.Segments) == 0 {
		t.Fatalf("expected keyword fallback after dropping invalid ranges, got %+v", got)
	}
}

func TestSegment_GenericModeWithoutTopic(t *testing.T) {
	t.Parallel()

	e := New(nil, nil, testOptions())
	got, err := e.Segment(context.Background(), Request{Transcript: testTranscript()})
	if err != nil {
		t.Fatalf("segment: %v", err)
	}
	if len(got.Segments) != 1 {
		t.Fatalf("expected all-segments coverage, got %+v", got)
	}
	if got.Segments[0].RelevanceScore != 5 {
		t.Fatalf("expected neutral relevance in generic mode, got %v", got.Segments[0].RelevanceScore)
	}
}

func TestSegment_NoRelevantContent(t *testing.T) {
	t.Parallel()

	e := New(nil, nil, testOptions())
	got, err := e.Segment(context.Background(), Request{Transcript: testTranscript(), Topic: "quantum"})
	if err != nil {
		t.Fatalf("segment: %v", err)
	}
	if len(got.Segments) != 0 || got.Reason != types.ReasonNoRelevantContent {
		t.Fatalf("expected empty result with reason, got %+v", got)
	}
}

func TestSegment_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := New(nil, nil, testOptions())
	if _, err := e.Segment(ctx, Request{Transcript: testTranscript()}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestSegment_MaxClipsCap(t *testing.T) {
	t.Parallel()

	tr := types.Transcript{Segments: []types.RecognizerChunk{
		{Start: 0, End: 10, Text: "First topic stands alone here."},
		{Start: 15, End: 25, Text: "Second topic stands alone here."},
		{Start: 30, End: 40, Text: "Third topic stands alone here."},
	}}
	opts := testOptions()
	opts.Merge = segments.Options{MinDuration: 2, MergeTolerance: 0.001}

	e := New(nil, nil, opts)
	got, err := e.Segment(context.Background(), Request{Transcript: tr, MaxClips: 2})
	if err != nil {
		t.Fatalf("segment: %v", err)
	}
	if len(got.Segments) != 2 {
		t.Fatalf("expected cap at 2 clips, got %d", len(got.Segments))
	}
	if got.Segments[0].CompositeScore < got.Segments[1].CompositeScore {
		t.Fatalf("expected composite-descending order, got %+v", got.Segments)
	}
}
