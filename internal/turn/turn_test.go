package turn

import (
	"strings"
	"testing"
)

func TestNew_AssignsIDAndTimestamp(t *testing.T) {
	tn, err := New(RoleUser, "hello")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if tn.ID == "" {
		t.Error("ID should not be empty")
	}
	if tn.CreatedAt == 0 {
		t.Error("CreatedAt should be set")
	}
	if tn.TokenCount != 0 {
		t.Errorf("TokenCount = %d, want 0 before accounting", tn.TokenCount)
	}
}

func TestNew_UniqueIDs(t *testing.T) {
	a, err := New(RoleUser, "a")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	b, err := New(RoleUser, "b")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if a.ID == b.ID {
		t.Errorf("two turns share ID %q", a.ID)
	}
}

func TestWithTokenCount_ReturnsCopy(t *testing.T) {
	orig, err := New(RoleAssistant, "reply")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	counted := orig.WithTokenCount(42)

	if counted.TokenCount != 42 {
		t.Errorf("counted.TokenCount = %d, want 42", counted.TokenCount)
	}
	if orig.TokenCount != 0 {
		t.Errorf("original mutated: TokenCount = %d, want 0", orig.TokenCount)
	}
	if counted.ID != orig.ID || counted.Content != orig.Content {
		t.Error("WithTokenCount should preserve identity and content")
	}
}

func TestWithTokenCount_ClampsNegative(t *testing.T) {
	tn := Turn{ID: "x", Role: RoleUser}
	if got := tn.WithTokenCount(-5).TokenCount; got != 0 {
		t.Errorf("TokenCount = %d, want 0 for negative input", got)
	}
}

func TestRole_Valid(t *testing.T) {
	for _, r := range []Role{RoleUser, RoleAssistant, RoleSystem, RoleSummary} {
		if !r.Valid() {
			t.Errorf("Role %q should be valid", r)
		}
	}
	if Role("moderator").Valid() {
		t.Error("unknown role should not be valid")
	}
}

func TestLog_AppendTracksTotal(t *testing.T) {
	l := NewLog(nil)

	l.Append(Turn{ID: "1", Role: RoleUser, TokenCount: 10})
	l.Append(Turn{ID: "2", Role: RoleAssistant, TokenCount: 25})

	if l.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", l.Len())
	}
	if l.TotalTokens() != 35 {
		t.Errorf("TotalTokens() = %d, want 35", l.TotalTokens())
	}
}

func TestLog_ReplaceRecomputesFromScratch(t *testing.T) {
	l := NewLog([]Turn{
		{ID: "1", TokenCount: 100},
		{ID: "2", TokenCount: 200},
	})

	l.Replace([]Turn{
		{ID: "s", Role: RoleSummary, TokenCount: 30},
		{ID: "2", TokenCount: 200},
	})

	if l.TotalTokens() != 230 {
		t.Errorf("TotalTokens() = %d, want 230", l.TotalTokens())
	}
	if l.Len() != 2 {
		t.Errorf("Len() = %d, want 2", l.Len())
	}
}

func TestLog_ReplaceCopiesInput(t *testing.T) {
	src := []Turn{{ID: "1", TokenCount: 5}}
	l := NewLog(src)

	// Mutating the caller's slice must not affect the log
	src[0].TokenCount = 9999

	if l.TotalTokens() != 5 {
		t.Errorf("TotalTokens() = %d, want 5 after out-of-band mutation", l.TotalTokens())
	}
}

func TestLog_Window(t *testing.T) {
	l := NewLog([]Turn{
		{ID: "1"}, {ID: "2"}, {ID: "3"}, {ID: "4"}, {ID: "5"},
	})

	tests := []struct {
		name    string
		n       int
		wantIDs []string
	}{
		{"last two", 2, []string{"4", "5"}},
		{"clamped to length", 10, []string{"1", "2", "3", "4", "5"}},
		{"zero", 0, []string{}},
		{"negative", -1, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := l.Window(tt.n)
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("Window(%d) returned %d turns, want %d", tt.n, len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Errorf("Window(%d)[%d].ID = %q, want %q", tt.n, i, got[i].ID, id)
				}
			}
		})
	}
}

func TestLog_TurnsReturnsCopy(t *testing.T) {
	l := NewLog([]Turn{{ID: "1", TokenCount: 7}})

	out := l.Turns()
	out[0].TokenCount = 1000

	if l.TotalTokens() != 7 {
		t.Errorf("TotalTokens() = %d, want 7 after mutating returned slice", l.TotalTokens())
	}
}

func TestTranscript_RolePrefixedInOrder(t *testing.T) {
	got := Transcript([]Turn{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleSummary, Content: "earlier talk"},
	})

	want := "[USER] hi\n\n[ASSISTANT] hello\n\n[SUMMARY] earlier talk"
	if got != want {
		t.Errorf("Transcript() = %q, want %q", got, want)
	}
}

func TestTranscript_Empty(t *testing.T) {
	if got := Transcript(nil); got != "" {
		t.Errorf("Transcript(nil) = %q, want empty", got)
	}
}

func TestTranscript_PreservesContentVerbatim(t *testing.T) {
	content := "  spaced \n multi-line\tcontent  "
	got := Transcript([]Turn{{Role: RoleUser, Content: content}})
	if !strings.Contains(got, content) {
		t.Errorf("Transcript() = %q, should contain content verbatim", got)
	}
}
