// Package contextmgr implements the bounded conversation context
// manager: per-owner turn logs kept inside a fixed token budget by
// compacting older history into a synthetic summary turn.
package contextmgr

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/jlindqvist/braid/internal/config"
	"github.com/jlindqvist/braid/internal/convo"
	"github.com/jlindqvist/braid/internal/errors"
	"github.com/jlindqvist/braid/internal/llm"
	"github.com/jlindqvist/braid/internal/tokens"
	"github.com/jlindqvist/braid/internal/turn"
)

// Manager is the façade every caller goes through. All mutations of a
// context's turns happen here, serialized per context id; unrelated
// owners proceed on independent locks.
//
// Dependencies are injected so tests can substitute fakes and multiple
// managers can run in one process.
type Manager struct {
	store      *Store
	accountant *tokens.Accountant
	engine     *compactor
	cfg        *config.Config

	mu     sync.Mutex
	states map[string]*contextState
}

// contextState carries the per-context lock and the compaction guard.
// Exactly one compaction may be in flight per context; the flag is
// checked and set under the per-context lock.
type contextState struct {
	mu         sync.Mutex
	compacting bool
}

// AppendResult is what AppendTurn hands back to the caller.
type AppendResult struct {
	Stats convo.UsageStats `json:"stats"`

	// Compacted reports that this append triggered a completed
	// compaction pass.
	Compacted bool `json:"compacted,omitempty"`

	// Warning carries a non-fatal degradation: a skipped compaction
	// after a generation failure. The append itself still succeeded.
	Warning string `json:"warning,omitempty"`

	// Estimated reports that the turn's token count came from the
	// local fallback rather than the external counting capability.
	Estimated bool `json:"estimated,omitempty"`
}

// NewManager wires the façade from its dependencies.
func NewManager(store *Store, client llm.Client, cfg *config.Config) *Manager {
	accountant := tokens.NewAccountant(client, cfg.CountTimeout())
	return &Manager{
		store:      store,
		accountant: accountant,
		engine: &compactor{
			client:      client,
			accountant:  accountant,
			window:      cfg.RecencyWindowSize,
			temperature: cfg.SummaryTemperature,
			timeout:     cfg.GenerateTimeout(),
		},
		cfg:    cfg,
		states: make(map[string]*contextState),
	}
}

// GetOrCreate returns the owner's context, creating an empty one with
// the configured budget on first use. Idempotent: the same owner always
// gets the same context id, never a duplicate row.
func (m *Manager) GetOrCreate(owner convo.OwnerRef) (*convo.Context, error) {
	if strings.TrimSpace(owner.ID) == "" {
		return nil, errors.NewInvalidRequest("owner id must not be empty")
	}

	c, found, err := m.store.Load(owner)
	if err != nil {
		return nil, err
	}
	if found {
		return c, nil
	}

	return m.store.Create(owner, m.cfg.MaxTokens)
}

// Get returns a context by id.
func (m *Manager) Get(contextID string) (*convo.Context, error) {
	return m.store.LoadByID(contextID)
}

// List returns all contexts, most recently updated first.
func (m *Manager) List() ([]*convo.Context, error) {
	return m.store.List()
}

// AppendTurn counts the turn, appends it to the context's log,
// compacts when the budget threshold is crossed, persists, and returns
// the updated usage. This is the single mutation entry point.
//
// A compaction failure is not an append failure: the turn still lands,
// the over-budget log is kept intact, and the warning is surfaced on
// the result. Only persistence and invalid-input errors propagate.
func (m *Manager) AppendTurn(ctx context.Context, contextID string, role turn.Role, content string) (AppendResult, error) {
	if !role.Valid() || role == turn.RoleSummary {
		return AppendResult{}, errors.NewInvalidRequest("role must be one of: user, assistant, system")
	}
	if strings.TrimSpace(content) == "" {
		return AppendResult{}, errors.NewInvalidRequest("content is required")
	}

	st := m.stateFor(contextID)
	st.mu.Lock()
	defer st.mu.Unlock()

	c, err := m.store.LoadByID(contextID)
	if err != nil {
		return AppendResult{}, err
	}

	t, err := turn.New(role, content)
	if err != nil {
		return AppendResult{}, errors.NewInternal(err)
	}
	count, estimated := m.accountant.Count(ctx, []turn.Turn{t})
	t = t.WithTokenCount(count)

	l := c.Log()
	l.Append(t)

	result := AppendResult{Estimated: estimated}

	if m.overThreshold(l.TotalTokens(), c.MaxTokens) && !st.compacting {
		st.compacting = true
		// The compaction mutates shared, persisted state: it runs to
		// completion even if the caller's request is cancelled.
		compaction, compactErr := m.engine.compact(context.WithoutCancel(ctx), l)
		st.compacting = false

		switch {
		case compactErr != nil:
			result.Warning = compactErr.Error()
			log.Printf("braid: context %s: compaction skipped, log kept over budget: %v", contextID, compactErr)
		case compaction.Skipped:
			// Nothing to summarize away; the trigger is cleared.
		default:
			result.Compacted = true
			c.SummaryText = compaction.SummaryText
			log.Printf("braid: context %s: compacted %d turns, %d -> %d tokens",
				contextID, compaction.TurnsCompacted, compaction.TokensBefore, compaction.TokensAfter)
		}
	}

	c.ApplyLog(l)
	if err := m.store.Save(c); err != nil {
		return AppendResult{}, err
	}

	if result.Compacted {
		if err := m.store.RecordOwnerUsage(c, m.cfg.CompactionThreshold); err != nil {
			// The context row is durable; owner-level denormalization is
			// display data and must not fail the append.
			log.Printf("braid: context %s: owner usage update failed: %v", contextID, err)
		}
	}

	result.Stats = c.Usage(m.cfg.CompactionThreshold)
	return result, nil
}

// UsageStats derives the usage view for a context. No side effects.
func (m *Manager) UsageStats(c *convo.Context) convo.UsageStats {
	return c.Usage(m.cfg.CompactionThreshold)
}

// Reset clears the context's turns and summary and zeroes its total,
// keeping id, owner, and budget. The cleared state is persisted and
// pushed onto the owner record.
func (m *Manager) Reset(contextID string) (convo.UsageStats, error) {
	st := m.stateFor(contextID)
	st.mu.Lock()
	defer st.mu.Unlock()

	c, err := m.store.LoadByID(contextID)
	if err != nil {
		return convo.UsageStats{}, err
	}

	l := c.Log()
	l.Replace(nil)
	c.ApplyLog(l)
	c.SummaryText = ""

	if err := m.store.Save(c); err != nil {
		return convo.UsageStats{}, err
	}
	if err := m.store.RecordOwnerUsage(c, m.cfg.CompactionThreshold); err != nil {
		log.Printf("braid: context %s: owner usage update failed: %v", contextID, err)
	}

	return c.Usage(m.cfg.CompactionThreshold), nil
}

// overThreshold is the compaction guard: totalTokens/maxTokens >= threshold.
func (m *Manager) overThreshold(total, max int) bool {
	if max <= 0 {
		return false
	}
	return float64(total)/float64(max) >= m.cfg.CompactionThreshold
}

// stateFor returns the per-context serialization state, creating it on
// first use.
func (m *Manager) stateFor(contextID string) *contextState {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[contextID]
	if !ok {
		st = &contextState{}
		m.states[contextID] = st
	}
	return st
}
