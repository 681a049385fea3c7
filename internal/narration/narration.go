// Package narration requests narration text for a story from a remote
// synthesis capability.
package narration

import "context"

// Request is the input to a synthesis call. Text is passed through unchanged.
type Request struct {
	Text     string   `json:"text"`
	Language Language `json:"language"`
}

// Result is a successful synthesis response. Text is empty when the remote
// side returned no narration payload.
type Result struct {
	Text string `json:"text,omitempty"`
}

// Synthesizer produces narration for a request.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (*Result, error)
}
