// Package keywords is the deterministic substitute for the relevance query:
// it scans grounded text units for topic keywords and emits candidate ranges
// with a density-derived synthetic relevance. It never invents timestamps.
package keywords

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/ivanshev/segcut/internal/types"
)

// MinScore is the relevance floor for any unit that matched at all.
const MinScore = 4

// Unit is one searchable span of grounded text, typically a logical segment.
type Unit struct {
	Text  string
	Start float64
	End   float64
}

// Match emits one candidate range per unit containing at least one topic
// keyword. Matching is case- and diacritic-insensitive. The synthetic
// relevance scales keyword density (matches per word) into [MinScore, 10].
func Match(units []Unit, topic string) []types.CandidateRange {
	kws := Keywords(topic)
	if len(kws) == 0 {
		return nil
	}

	var out []types.CandidateRange
	for _, u := range units {
		folded := Fold(u.Text)
		words := len(strings.Fields(folded))
		if words == 0 {
			continue
		}
		matches := 0
		for _, kw := range kws {
			matches += strings.Count(folded, kw)
		}
		if matches == 0 {
			continue
		}
		density := float64(matches) / float64(words)
		score := density * 50
		if score < MinScore {
			score = MinScore
		}
		if score > 10 {
			score = 10
		}
		out = append(out, types.CandidateRange{
			Start:     u.Start,
			End:       u.End,
			Source:    types.SourceFallback,
			Relevance: score,
		})
	}
	return out
}

// Keywords tokenizes a topic/prompt into folded search keywords. Very short
// fragments are dropped; they match everywhere and carry no signal.
func Keywords(topic string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, f := range strings.Fields(Fold(topic)) {
		f = strings.Trim(f, ".,!?\"'():;")
		if len([]rune(f)) < 2 || seen[f] {
			continue
		}
		out = append(out, f)
		seen[f] = true
	}
	return out
}

// Fold lowercases and strips combining diacritical marks, so "tiếng" matches
// "tieng" and vice versa.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}
