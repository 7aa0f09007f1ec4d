// Package convo defines the bounded conversation context model: one
// context per owner (chat session or project task), an ordered turn
// log, and a fixed token budget.
package convo

import (
	"fmt"
	"strings"

	"github.com/jlindqvist/braid/internal/errors"
	"github.com/jlindqvist/braid/internal/turn"
)

// OwnerKind distinguishes the two owner record types.
type OwnerKind string

const (
	OwnerSession OwnerKind = "session"
	OwnerProject OwnerKind = "project"
)

// OwnerRef identifies the single owner of a context. Exactly one owner
// kind applies; the ref never changes after the context is created.
type OwnerRef struct {
	Kind OwnerKind
	ID   string
}

// NewOwnerRef validates that exactly one of sessionID/projectID is set
// and returns the corresponding ref.
func NewOwnerRef(sessionID, projectID string) (OwnerRef, error) {
	sessionID = strings.TrimSpace(sessionID)
	projectID = strings.TrimSpace(projectID)

	if sessionID != "" && projectID != "" {
		return OwnerRef{}, errors.NewAmbiguousOwner()
	}
	if sessionID == "" && projectID == "" {
		return OwnerRef{}, errors.NewInvalidRequest("must specify either session_id or project_id")
	}

	if sessionID != "" {
		return OwnerRef{Kind: OwnerSession, ID: sessionID}, nil
	}
	return OwnerRef{Kind: OwnerProject, ID: projectID}, nil
}

// String renders the ref as "kind:id", used in error messages and logs.
func (o OwnerRef) String() string {
	return fmt.Sprintf("%s:%s", o.Kind, o.ID)
}

// Context is one bounded conversation belonging to exactly one owner.
type Context struct {
	// ID is a ULID, the primary key in the store
	ID string

	// Owner is the owning session or project; immutable after creation
	Owner OwnerRef

	// Turns is the ordered turn sequence; insertion order is significant
	// and never re-sorted
	Turns []turn.Turn

	// SummaryText is the text of the most recent compaction's summary,
	// kept separately from Turns for reporting even after further
	// compactions. Empty until the first compaction.
	SummaryText string

	// TotalTokens always equals the sum of TokenCount over Turns
	TotalTokens int

	// MaxTokens is the budget fixed at creation; compaction never
	// changes it
	MaxTokens int

	// CreatedAt is the Unix timestamp when the context was created
	CreatedAt int64

	// UpdatedAt is the Unix timestamp of the last mutation
	UpdatedAt int64
}

// Log builds a turn log from the context's current sequence. The log's
// total is re-derived from the turns, not taken from TotalTokens.
func (c *Context) Log() *turn.Log {
	return turn.NewLog(c.Turns)
}

// ApplyLog writes the log's sequence and re-derived total back onto the
// context. Every mutation path goes through this so TotalTokens can
// never drift from the turns it is supposed to summarize.
func (c *Context) ApplyLog(l *turn.Log) {
	c.Turns = l.Turns()
	c.TotalTokens = l.TotalTokens()
}

// UsageStats is a pure derived view of a context's budget occupancy.
type UsageStats struct {
	ContextID   string  `json:"context_id"`
	Owner       string  `json:"owner"`
	TotalTokens int     `json:"total_tokens"`
	MaxTokens   int     `json:"max_tokens"`
	PercentUsed float64 `json:"percentage_used"`

	// NeedsCompaction mirrors the compaction guard for observability;
	// the real trigger lives in the compaction engine.
	NeedsCompaction bool `json:"needs_compaction"`

	TurnCount int `json:"turn_count"`
}

// Usage derives usage statistics against the given threshold fraction.
func (c *Context) Usage(threshold float64) UsageStats {
	percent := 0.0
	if c.MaxTokens > 0 {
		percent = float64(c.TotalTokens) / float64(c.MaxTokens) * 100
	}
	return UsageStats{
		ContextID:       c.ID,
		Owner:           c.Owner.String(),
		TotalTokens:     c.TotalTokens,
		MaxTokens:       c.MaxTokens,
		PercentUsed:     percent,
		NeedsCompaction: percent >= threshold*100,
		TurnCount:       len(c.Turns),
	}
}
