package convo

import (
	"testing"

	"github.com/jlindqvist/braid/internal/errors"
	"github.com/jlindqvist/braid/internal/turn"
)

func TestNewOwnerRef(t *testing.T) {
	tests := []struct {
		name      string
		sessionID string
		projectID string
		wantKind  OwnerKind
		wantCode  errors.ErrorCode
	}{
		{"session only", "s1", "", OwnerSession, ""},
		{"project only", "", "p1", OwnerProject, ""},
		{"both", "s1", "p1", "", errors.ErrAmbiguousOwner},
		{"neither", "", "", "", errors.ErrInvalidRequest},
		{"whitespace ids", "  ", "  ", "", errors.ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := NewOwnerRef(tt.sessionID, tt.projectID)
			if tt.wantCode != "" {
				if !errors.Is(err, tt.wantCode) {
					t.Fatalf("error = %v, want code %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewOwnerRef() error = %v", err)
			}
			if ref.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", ref.Kind, tt.wantKind)
			}
		})
	}
}

func TestOwnerRef_String(t *testing.T) {
	ref := OwnerRef{Kind: OwnerProject, ID: "p42"}
	if ref.String() != "project:p42" {
		t.Errorf("String() = %q, want %q", ref.String(), "project:p42")
	}
}

func TestContext_ApplyLogKeepsTotalExact(t *testing.T) {
	c := &Context{MaxTokens: 1000}

	l := c.Log()
	l.Append(turn.Turn{ID: "1", Role: turn.RoleUser, TokenCount: 60})
	l.Append(turn.Turn{ID: "2", Role: turn.RoleAssistant, TokenCount: 40})
	c.ApplyLog(l)

	if c.TotalTokens != 100 {
		t.Errorf("TotalTokens = %d, want 100", c.TotalTokens)
	}
	if len(c.Turns) != 2 {
		t.Errorf("len(Turns) = %d, want 2", len(c.Turns))
	}

	// A stale TotalTokens is corrected by going through the log
	c.TotalTokens = 9999
	c.ApplyLog(c.Log())
	if c.TotalTokens != 100 {
		t.Errorf("TotalTokens = %d, want re-derived 100", c.TotalTokens)
	}
}

func TestContext_Usage(t *testing.T) {
	c := &Context{
		ID:          "ctx1",
		Owner:       OwnerRef{Kind: OwnerSession, ID: "s1"},
		TotalTokens: 95,
		MaxTokens:   100,
		Turns:       []turn.Turn{{ID: "1"}, {ID: "2"}},
	}

	stats := c.Usage(0.9)

	if stats.PercentUsed != 95 {
		t.Errorf("PercentUsed = %v, want 95", stats.PercentUsed)
	}
	if !stats.NeedsCompaction {
		t.Error("NeedsCompaction = false, want true at 95% with 0.9 threshold")
	}
	if stats.TurnCount != 2 {
		t.Errorf("TurnCount = %d, want 2", stats.TurnCount)
	}
	if stats.Owner != "session:s1" {
		t.Errorf("Owner = %q, want session:s1", stats.Owner)
	}
}

func TestContext_UsageBelowThreshold(t *testing.T) {
	c := &Context{TotalTokens: 89, MaxTokens: 100}
	stats := c.Usage(0.9)
	if stats.NeedsCompaction {
		t.Error("NeedsCompaction = true, want false at 89%")
	}
}

func TestContext_UsageZeroBudget(t *testing.T) {
	c := &Context{TotalTokens: 10, MaxTokens: 0}
	stats := c.Usage(0.9)
	if stats.PercentUsed != 0 {
		t.Errorf("PercentUsed = %v, want 0 when budget is zero", stats.PercentUsed)
	}
}
