package types

// Token is a single recognizer-produced unit of speech with grounded timestamps
// in seconds. Tokens arrive ordered by start time.
type Token struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Transcript is the input handed over by the speech-recognition collaborator.
// Recognizers emit phrase-level segments, optionally with word-level timestamps.
type Transcript struct {
	Language string            `json:"language,omitempty"`
	Segments []RecognizerChunk `json:"segments"`
}

// RecognizerChunk mirrors the common ASR output shape: a phrase with start/end
// and optional per-word timings.
type RecognizerChunk struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Word  string  `json:"word"`
}

// Tokens flattens the transcript into an ordered token stream. Word timings are
// preferred when present; otherwise each recognizer chunk becomes one token.
// Tokens with non-positive duration or blank text are skipped so downstream
// timestamps stay grounded in real recognizer output.
func (t Transcript) Tokens() []Token {
	var out []Token
	for _, s := range t.Segments {
		if len(s.Words) > 0 {
			for _, w := range s.Words {
				if w.End <= w.Start || isBlank(w.Word) {
					continue
				}
				out = append(out, Token{Text: w.Word, Start: w.Start, End: w.End})
			}
			continue
		}
		if s.End <= s.Start || isBlank(s.Text) {
			continue
		}
		out = append(out, Token{Text: s.Text, Start: s.Start, End: s.End})
	}
	return out
}

// End returns the last grounded timestamp of the transcript, or 0 when empty.
func (t Transcript) End() float64 {
	var end float64
	for _, s := range t.Segments {
		if s.End > end {
			end = s.End
		}
		for _, w := range s.Words {
			if w.End > end {
				end = w.End
			}
		}
	}
	return end
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

// Sentence is a group of consecutive tokens closed on terminal punctuation or a
// long pause. Start/End are copied from the first/last token.
type Sentence struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	FirstToken int     `json:"-"`
	LastToken  int     `json:"-"`
}

// LogicalSegment is a coarse duration-targeted grouping of sentences. Sentences
// holds indices into the sentence table the segment was built from.
type LogicalSegment struct {
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Text      string  `json:"text"`
	Sentences []int   `json:"-"`
}

// CandidateSource records which strategy proposed a candidate range.
type CandidateSource string

const (
	SourceModel    CandidateSource = "model"
	SourceFallback CandidateSource = "fallback"
)

// CandidateRange is an unvalidated, possibly overlapping time span proposed by
// the relevance query or the fallback matcher. Relevance is 0 when unset.
type CandidateRange struct {
	Start     float64
	End       float64
	Source    CandidateSource
	Relevance float64
}

// ViralPotential buckets a composite score for quick triage in the UI layer.
type ViralPotential string

const (
	ViralLow    ViralPotential = "low"
	ViralMedium ViralPotential = "medium"
	ViralHigh   ViralPotential = "high"
)

// ScoredSegment is the externally visible output. Immutable once produced.
// WordCount counts words in the grounded transcript span, not in the summary.
type ScoredSegment struct {
	Start           float64        `json:"start"`
	End             float64        `json:"end"`
	Summary         string         `json:"summary"`
	Tags            []string       `json:"tags"`
	WordCount       int            `json:"word_count"`
	RelevanceScore  float64        `json:"relevance_score"`
	EngagementScore float64        `json:"engagement_score"`
	CompositeScore  float64        `json:"composite_score"`
	ViralPotential  ViralPotential `json:"viral_potential"`
}

// Duration returns the segment length in seconds.
func (s ScoredSegment) Duration() float64 { return s.End - s.Start }

// ScoringWeights combines the per-dimension weights of a platform profile.
// Weights must sum to 1.0; validated at load time.
type ScoringWeights struct {
	Relevance   float64 `json:"relevance" toml:"relevance"`
	Engagement  float64 `json:"engagement" toml:"engagement"`
	DurationFit float64 `json:"duration_fit" toml:"duration_fit"`
}

// PlatformProfile is the named duration window and scoring weights for one
// target platform. Durations are seconds.
type PlatformProfile struct {
	Name            string         `json:"name" toml:"name"`
	MinDuration     float64        `json:"min_duration" toml:"min_duration"`
	MaxDuration     float64        `json:"max_duration" toml:"max_duration"`
	OptimalDuration float64        `json:"optimal_duration" toml:"optimal_duration"`
	Weights         ScoringWeights `json:"weights" toml:"weights"`
}

// Reason codes for empty results. The pipeline never raises for data-quality
// issues; callers receive either segments or one of these.
const (
	ReasonEmptyTranscript   = "empty_transcript"
	ReasonNoRelevantContent = "no_relevant_content"
)

// Result is the terminal output of one file's segmentation run. Reason is set
// only when Segments is empty.
type Result struct {
	Segments []ScoredSegment `json:"segments"`
	Reason   string          `json:"reason,omitempty"`
}
