// Package tokens implements the token accountant: it prices batches of
// turns in the external model's units, because the context budget is
// defined in those units.
package tokens

import (
	"context"
	"log"
	"time"

	"github.com/jlindqvist/braid/internal/llm"
	"github.com/jlindqvist/braid/internal/turn"
)

// Accountant counts tokens for turn batches. The primary path delegates
// to the external counting capability over the same rendering used for
// generation; if that call fails or times out, a fixed chars-per-token
// estimate is used instead. Count never fails and never blocks longer
// than the configured timeout.
type Accountant struct {
	client  llm.Client
	timeout time.Duration
}

// NewAccountant creates an accountant around the given client. A zero
// timeout falls back to a conservative 10 seconds.
func NewAccountant(client llm.Client, timeout time.Duration) *Accountant {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Accountant{client: client, timeout: timeout}
}

// Count returns the token count for the batch of turns, rendered
// role-prefixed in order. The second return reports whether the local
// estimate was used; degraded accuracy is also logged for operators.
func (a *Accountant) Count(ctx context.Context, turns []turn.Turn) (int, bool) {
	return a.CountText(ctx, turn.Transcript(turns))
}

// CountText counts tokens for already-rendered text.
func (a *Accountant) CountText(ctx context.Context, text string) (int, bool) {
	if text == "" {
		return 0, false
	}

	if a.client != nil {
		countCtx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()

		n, err := a.client.CountTokens(countCtx, text)
		if err == nil && n >= 0 {
			return n, false
		}
		log.Printf("braid: token counting degraded to local estimate: %v", err)
	}

	return llm.EstimateTokens(text), true
}
