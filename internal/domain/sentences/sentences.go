// Package sentences turns the flat recognizer token stream into sentence-like
// units and coarse logical segments. All timestamps are copied from tokens,
// never synthesized, so every downstream range stays grounded.
package sentences

import (
	"strings"

	"github.com/ivanshev/segcut/internal/types"
)

// DefaultPauseThreshold closes a sentence when the silence between two
// consecutive tokens exceeds it, even without terminal punctuation.
const DefaultPauseThreshold = 1.2

type Options struct {
	// PauseThreshold in seconds. Zero or negative falls back to the default.
	PauseThreshold float64
}

func (o Options) pause() float64 {
	if o.PauseThreshold <= 0 {
		return DefaultPauseThreshold
	}
	return o.PauseThreshold
}

// Build groups ordered tokens into sentences. A sentence closes when its last
// token ends with terminal punctuation or the gap to the next token exceeds the
// pause threshold, whichever comes first. Sentences with zero tokens are never
// emitted; the output is deterministic and can be recomputed from the same
// token list.
func Build(tokens []types.Token, opts Options) []types.Sentence {
	pause := opts.pause()

	var out []types.Sentence
	var parts []string
	first := -1

	flush := func(last int) {
		if first < 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(parts, " "))
		if text != "" {
			out = append(out, types.Sentence{
				Text:       text,
				Start:      tokens[first].Start,
				End:        tokens[last].End,
				FirstToken: first,
				LastToken:  last,
			})
		}
		parts = parts[:0]
		first = -1
	}

	for i, tok := range tokens {
		text := strings.TrimSpace(tok.Text)
		if text == "" {
			continue
		}
		if first < 0 {
			first = i
		}
		parts = append(parts, text)

		if EndsSentence(text) {
			flush(i)
			continue
		}
		if i+1 < len(tokens) && tokens[i+1].Start-tok.End > pause {
			flush(i)
		}
	}
	flush(len(tokens) - 1)
	return out
}

// EndsSentence reports whether a token's text terminates a sentence. Trailing
// quotes and brackets are ignored so `word."` still counts.
func EndsSentence(s string) bool {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, "\"'`)]}»”’")
	if s == "" {
		return false
	}
	r := []rune(s)
	switch r[len(r)-1] {
	case '.', '!', '?', '。', '！', '？', '…':
		return true
	}
	return false
}

// SpanText joins the text of sentences whose time span intersects [start, end].
func SpanText(sents []types.Sentence, start, end float64) string {
	var parts []string
	for _, s := range sents {
		if s.End <= start || s.Start >= end {
			continue
		}
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, " ")
}
