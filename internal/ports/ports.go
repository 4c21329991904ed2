package ports

import (
	"context"
)

// IndexedUnit is one grounded text unit as the external model sees it: a
// stable index and text, never raw seconds. Keeping seconds out of the prompt
// is what prevents timestamp hallucination.
type IndexedUnit struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// IndexRange is a model-proposed span over indexed units, inclusive on both
// ends. Relevance is optional (0 when the model omitted it).
type IndexRange struct {
	StartIndex int     `json:"start_index"`
	EndIndex   int     `json:"end_index"`
	Relevance  float64 `json:"relevance,omitempty"`
}

// RelevanceQuerier asks an external natural-language model which indexed
// units are relevant to a topic. Implementations own timeouts, retries and
// backoff; a returned error means the strategy failed structurally and the
// caller should move on to the next candidate source.
type RelevanceQuerier interface {
	QueryRelevance(ctx context.Context, units []IndexedUnit, prompt string) ([]IndexRange, error)
}
