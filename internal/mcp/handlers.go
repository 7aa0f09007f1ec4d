package mcp

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/oklog/ulid/v2"

	"github.com/jlindqvist/braid/internal/config"
	"github.com/jlindqvist/braid/internal/contextmgr"
	"github.com/jlindqvist/braid/internal/convo"
	"github.com/jlindqvist/braid/internal/db"
	"github.com/jlindqvist/braid/internal/errors"
	"github.com/jlindqvist/braid/internal/turn"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	manager *contextmgr.Manager
	db      *sql.DB
	cfg     *config.Config
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(manager *contextmgr.Manager, database *sql.DB, cfg *config.Config) *Handlers {
	return &Handlers{manager: manager, db: database, cfg: cfg}
}

// Request types for each tool

// OwnerRequest carries the owner addressing shared by the context tools.
type OwnerRequest struct {
	SessionID string `json:"session_id,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
}

// AppendRequest represents the arguments for context_append.
type AppendRequest struct {
	SessionID string `json:"session_id,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	Role      string `json:"role"`
	Content   string `json:"content"`
}

// SessionCreateRequest represents the arguments for session_create.
type SessionCreateRequest struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title"`
}

// ProjectCreateRequest represents the arguments for project_create.
type ProjectCreateRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
}

// Response types

// ContextView is the wire shape of a context returned by context_get.
type ContextView struct {
	ContextID   string      `json:"context_id"`
	Owner       string      `json:"owner"`
	Turns       []turn.Turn `json:"turns"`
	SummaryText string      `json:"summary_text,omitempty"`
	TotalTokens int         `json:"total_tokens"`
	MaxTokens   int         `json:"max_tokens"`
	CreatedAt   int64       `json:"created_at"`
	UpdatedAt   int64       `json:"updated_at"`
}

func contextView(c *convo.Context) ContextView {
	return ContextView{
		ContextID:   c.ID,
		Owner:       c.Owner.String(),
		Turns:       c.Turns,
		SummaryText: c.SummaryText,
		TotalTokens: c.TotalTokens,
		MaxTokens:   c.MaxTokens,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// OwnerCreatedView is the wire shape returned by the owner-create tools.
type OwnerCreatedView struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	CreatedAt int64  `json:"created_at"`
}

// Handler implementations

// HandleContextGet handles the context_get tool call.
func (h *Handlers) HandleContextGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[OwnerRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	owner, err := convo.NewOwnerRef(input.SessionID, input.ProjectID)
	if err != nil {
		return errorResult(err), nil
	}

	c, err := h.manager.GetOrCreate(owner)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(contextView(c))
}

// HandleContextAppend handles the context_append tool call.
func (h *Handlers) HandleContextAppend(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AppendRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	owner, err := convo.NewOwnerRef(input.SessionID, input.ProjectID)
	if err != nil {
		return errorResult(err), nil
	}

	c, err := h.manager.GetOrCreate(owner)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.manager.AppendTurn(ctx, c.ID, turn.Role(input.Role), input.Content)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleContextUsage handles the context_usage tool call.
func (h *Handlers) HandleContextUsage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[OwnerRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	owner, err := convo.NewOwnerRef(input.SessionID, input.ProjectID)
	if err != nil {
		return errorResult(err), nil
	}

	c, err := h.manager.GetOrCreate(owner)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(h.manager.UsageStats(c))
}

// HandleContextReset handles the context_reset tool call.
func (h *Handlers) HandleContextReset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[OwnerRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	owner, err := convo.NewOwnerRef(input.SessionID, input.ProjectID)
	if err != nil {
		return errorResult(err), nil
	}

	c, err := h.manager.GetOrCreate(owner)
	if err != nil {
		return errorResult(err), nil
	}

	stats, err := h.manager.Reset(c.ID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(stats)
}

// HandleSessionCreate handles the session_create tool call.
func (h *Handlers) HandleSessionCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionCreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if strings.TrimSpace(input.Title) == "" {
		return errorResult(errors.NewInvalidRequest("title is required")), nil
	}

	id := strings.TrimSpace(input.ID)
	if id == "" {
		id, err = generateULID()
		if err != nil {
			return errorResult(errors.NewInternal(err)), nil
		}
	}

	now := time.Now().Unix()
	s := &convo.Session{ID: id, Title: input.Title, CreatedAt: now, UpdatedAt: now}
	if err := db.InsertSession(h.db, s); err != nil {
		if err == db.ErrUniqueConstraint {
			return errorResult(errors.NewConflict("session id already exists: " + id)), nil
		}
		return errorResult(err), nil
	}

	return successResult(OwnerCreatedView{ID: id, Kind: string(convo.OwnerSession), CreatedAt: now})
}

// HandleProjectCreate handles the project_create tool call.
func (h *Handlers) HandleProjectCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProjectCreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if strings.TrimSpace(input.Name) == "" {
		return errorResult(errors.NewInvalidRequest("name is required")), nil
	}

	id := strings.TrimSpace(input.ID)
	if id == "" {
		id, err = generateULID()
		if err != nil {
			return errorResult(errors.NewInternal(err)), nil
		}
	}

	now := time.Now().Unix()
	p := &convo.Project{ID: id, Name: input.Name, Path: input.Path, CreatedAt: now, UpdatedAt: now}
	if err := db.InsertProject(h.db, p); err != nil {
		if err == db.ErrUniqueConstraint {
			return errorResult(errors.NewConflict("project id already exists: " + id)), nil
		}
		return errorResult(err), nil
	}

	return successResult(OwnerCreatedView{ID: id, Kind: string(convo.OwnerProject), CreatedAt: now})
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed to avoid leaking paths or SQL.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if bErr, ok := err.(*errors.BraidError); ok {
		errorObj := map[string]any{
			"code":    bErr.Code,
			"message": bErr.Message,
			"status":  bErr.Status,
		}
		if bErr.Code != errors.ErrInternal && bErr.Details != nil {
			errorObj["details"] = bErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}

// generateULID generates a new ULID for owner ids created without one.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
