package llm

import (
	"context"
)

// Completer sends one prompt to a chat model and returns its reply
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// suggestion is one entry of the JSON array the model is asked to return
type suggestion struct {
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	Type        string  `json:"type"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`
}

// endpointSummary is how endpoints are described to the model
type endpointSummary struct {
	Endpoint string   `json:"endpoint"`
	Summary  string   `json:"summary,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Body     []string `json:"bodyFields,omitempty"`
	Params   []string `json:"params,omitempty"`
}
