package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jlindqvist/braid/internal/config"
	"github.com/jlindqvist/braid/internal/contextmgr"
	"github.com/jlindqvist/braid/internal/convo"
	"github.com/jlindqvist/braid/internal/db"
	"github.com/jlindqvist/braid/internal/llm"
	"github.com/jlindqvist/braid/internal/turn"
)

type stubLLM struct{}

func (stubLLM) CountTokens(ctx context.Context, text string) (int, error) { return 5, nil }

func (stubLLM) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	return "stub summary", nil
}

// testServer builds the full handler stack over a temp database and
// returns the manager for seeding state.
func testServer(t *testing.T) (http.Handler, *contextmgr.Manager) {
	t.Helper()

	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	manager := contextmgr.NewManager(contextmgr.NewStore(database), stubLLM{}, cfg)

	now := time.Now().Unix()
	if err := db.InsertSession(database, &convo.Session{ID: "s1", Title: "chat", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("failed to insert session: %v", err)
	}

	srv := NewServer(manager, cfg, "test", "127.0.0.1", 0)
	return srv.Handler, manager
}

func seedContext(t *testing.T, manager *contextmgr.Manager) *convo.Context {
	t.Helper()
	c, err := manager.GetOrCreate(convo.OwnerRef{Kind: convo.OwnerSession, ID: "s1"})
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if _, err := manager.AppendTurn(context.Background(), c.ID, turn.RoleUser, "hello from the test"); err != nil {
		t.Fatalf("AppendTurn failed: %v", err)
	}
	return c
}

func TestHandleList(t *testing.T) {
	handler, manager := testServer(t)
	seedContext(t, manager)

	req := httptest.NewRequest("GET", "/contexts", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "session:s1") {
		t.Error("list page should show the owner ref")
	}
	if !strings.Contains(body, "<table") {
		t.Error("list page should render the context table")
	}
}

func TestHandleList_Empty(t *testing.T) {
	handler, _ := testServer(t)

	req := httptest.NewRequest("GET", "/contexts", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No contexts yet") {
		t.Error("empty list should show the placeholder text")
	}
}

func TestHandleDetail(t *testing.T) {
	handler, manager := testServer(t)
	c := seedContext(t, manager)

	req := httptest.NewRequest("GET", "/contexts/"+c.ID, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "hello from the test") {
		t.Error("detail page should show turn content")
	}
	if !strings.Contains(body, "Turn log") {
		t.Error("detail page should render the turn log section")
	}
}

func TestHandleDetail_NotFound(t *testing.T) {
	handler, _ := testServer(t)

	req := httptest.NewRequest("GET", "/contexts/01UNKNOWN0000000000000000", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleDetail_NotFoundJSON(t *testing.T) {
	handler, _ := testServer(t)

	req := httptest.NewRequest("GET", "/contexts/01UNKNOWN0000000000000000", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Errorf("Content-Type = %q, want JSON", ct)
	}
	if !strings.Contains(rec.Body.String(), "NOT_FOUND") {
		t.Error("JSON error should carry the error code")
	}
}

func TestHandleReset(t *testing.T) {
	handler, manager := testServer(t)
	c := seedContext(t, manager)

	req := httptest.NewRequest("POST", "/contexts/"+c.ID+"/reset", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	after, err := manager.Get(c.ID)
	if err != nil {
		t.Fatalf("Get after reset failed: %v", err)
	}
	if len(after.Turns) != 0 || after.TotalTokens != 0 {
		t.Errorf("reset did not clear the context: %d turns, %d tokens", len(after.Turns), after.TotalTokens)
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler, _ := testServer(t)

	req := httptest.NewRequest("GET", "/contexts", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing X-Content-Type-Options header")
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("missing X-Frame-Options header")
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Error("missing Content-Security-Policy header")
	}
}
