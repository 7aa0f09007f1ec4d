package web

import (
	"net/http"
	"strings"

	"github.com/jlindqvist/braid/internal/config"
	"github.com/jlindqvist/braid/internal/contextmgr"
	"github.com/jlindqvist/braid/internal/errors"
	"github.com/jlindqvist/braid/internal/turn"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	manager  *contextmgr.Manager
	cfg      *config.Config
	renderer *Renderer
}

// HandleList handles GET /contexts — all contexts, most recent first.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	contexts, err := h.manager.List()
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	rows := make([]ContextRow, 0, len(contexts))
	for _, c := range contexts {
		stats := h.manager.UsageStats(c)
		rows = append(rows, ContextRow{
			ContextID:   c.ID,
			Owner:       c.Owner.String(),
			TurnCount:   stats.TurnCount,
			TotalTokens: stats.TotalTokens,
			MaxTokens:   stats.MaxTokens,
			PercentUsed: stats.PercentUsed,
			NearBudget:  stats.NeedsCompaction,
			UpdatedAt:   c.UpdatedAt,
		})
	}

	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData: PageData{
			Title:   "Contexts",
			Version: h.renderer.version,
			Nav:     "contexts",
		},
		Rows: rows,
	})
}

// HandleDetail handles GET /contexts/{id} — one context's turn log.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("context ID is required"))
		return
	}

	c, err := h.manager.Get(id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	turns := make([]TurnView, 0, len(c.Turns))
	for _, t := range c.Turns {
		turns = append(turns, TurnView{
			Role:       roleLabel(t.Role),
			Content:    t.Content,
			TokenCount: t.TokenCount,
			IsSummary:  t.Role == turn.RoleSummary,
			CreatedAt:  t.CreatedAt,
		})
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData: PageData{
			Title:   c.Owner.String(),
			Version: h.renderer.version,
			Nav:     "contexts",
		},
		Context:         c,
		Stats:           h.manager.UsageStats(c),
		Turns:           turns,
		RenderedSummary: renderMarkdown(c.SummaryText),
		HasSummary:      c.SummaryText != "",
	})
}

// HandleReset handles POST /contexts/{id}/reset — clear a context.
func (h *Handlers) HandleReset(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("context ID is required"))
		return
	}

	stats, err := h.manager.Reset(id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// HTMX request: redirect via HX-Redirect header
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/contexts/"+id)
		w.WriteHeader(http.StatusOK)
		return
	}

	// JSON request
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, stats)
		return
	}

	// Default: redirect back to the detail page
	http.Redirect(w, r, "/contexts/"+id, http.StatusFound)
}
