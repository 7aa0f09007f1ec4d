// Package llm provides the client for the external generative-language
// endpoint. Braid uses exactly two capabilities: counting tokens for a
// rendered batch of turns, and producing text from a prompt.
package llm

import "context"

// GenerateOptions carries sampling options for a generation call.
type GenerateOptions struct {
	Temperature float64
}

// Client is the external model capability surface. Implementations may
// block on network I/O; callers bound every call with a context deadline.
type Client interface {
	// CountTokens returns the token count of the rendered text in the
	// external service's own units. It returns an error on any transport
	// or decoding failure; the token accountant owns the local fallback.
	CountTokens(ctx context.Context, text string) (int, error)

	// Generate produces text from a prompt. An empty completion is an error.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}
