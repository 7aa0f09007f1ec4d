package turn

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"

	// RoleSummary marks a synthetic turn produced by compaction. It never
	// arrives from a caller; only the compaction engine creates one.
	RoleSummary Role = "summary"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleSummary:
		return true
	}
	return false
}

// Turn is one message in a conversation. It is an immutable value: the
// token count is computed once, before the turn enters a log, and a
// recount produces a new Turn via WithTokenCount rather than mutating
// the field in place.
type Turn struct {
	// ID is a ULID that uniquely identifies this turn
	ID string `json:"id"`

	// Role is one of user, assistant, system, or summary
	Role Role `json:"role"`

	// Content is the text payload
	Content string `json:"content"`

	// TokenCount is the token cost of this turn in the external model's
	// units, computed when the turn was appended or synthesized
	TokenCount int `json:"token_count"`

	// CreatedAt is the Unix timestamp when the turn was created,
	// used only for ordering and display
	CreatedAt int64 `json:"created_at"`
}

// New creates a turn with a fresh ULID and a zero token count.
// The token accountant assigns the count via WithTokenCount.
func New(role Role, content string) (Turn, error) {
	id, err := generateULID()
	if err != nil {
		return Turn{}, err
	}
	return Turn{
		ID:        id,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().Unix(),
	}, nil
}

// WithTokenCount returns a copy of t carrying the given token count.
func (t Turn) WithTokenCount(n int) Turn {
	if n < 0 {
		n = 0
	}
	t.TokenCount = n
	return t
}

// generateULID generates a new ULID.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
