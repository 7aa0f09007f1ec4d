package contextmgr

import (
	"crypto/rand"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jlindqvist/braid/internal/convo"
	"github.com/jlindqvist/braid/internal/db"
	"github.com/jlindqvist/braid/internal/errors"
)

// Store is the persistence adapter for contexts: one row per owner,
// loaded whole and saved whole.
type Store struct {
	db *sql.DB
}

// NewStore creates a store over an initialized database.
func NewStore(database *sql.DB) *Store {
	return &Store{db: database}
}

// Load returns the owner's context. A missing row is reported via the
// bool, not as an error; the façade creates contexts lazily.
func (s *Store) Load(owner convo.OwnerRef) (*convo.Context, bool, error) {
	return db.GetContextByOwner(s.db, owner)
}

// LoadByID returns a context by its id, or NOT_FOUND.
func (s *Store) LoadByID(id string) (*convo.Context, error) {
	return db.GetContextByID(s.db, id)
}

// Create inserts a fresh empty context for the owner with the given
// budget. The owner record must already exist. If a concurrent caller
// created the row first, the existing context is returned instead, so
// an owner can never end up with two rows.
func (s *Store) Create(owner convo.OwnerRef, maxTokens int) (*convo.Context, error) {
	if maxTokens <= 0 {
		return nil, errors.NewInvalidRequest("max_tokens must be positive")
	}

	exists, err := db.OwnerExists(s.db, owner)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.NewNotFound(owner.String())
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	now := time.Now().Unix()
	c := &convo.Context{
		ID:        id,
		Owner:     owner,
		Turns:     nil,
		MaxTokens: maxTokens,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := db.InsertContext(s.db, c); err != nil {
		if err == db.ErrUniqueConstraint {
			// Lost the race; the winner's row is the context.
			existing, found, loadErr := db.GetContextByOwner(s.db, owner)
			if loadErr != nil {
				return nil, loadErr
			}
			if !found {
				return nil, errors.NewInternal(err)
			}
			return existing, nil
		}
		return nil, err
	}

	return c, nil
}

// Save performs a full overwrite of the context row. Nothing is
// acknowledged to the caller until this succeeds; on failure the
// previously persisted state remains the durable source of truth.
func (s *Store) Save(c *convo.Context) error {
	return db.UpdateContext(s.db, c)
}

// RecordOwnerUsage pushes the context's denormalized usage onto its
// owner record. Called only after Save has succeeded.
func (s *Store) RecordOwnerUsage(c *convo.Context, threshold float64) error {
	stats := c.Usage(threshold)
	return db.UpdateOwnerUsage(s.db, c.Owner, c.SummaryText, stats.TotalTokens, stats.PercentUsed)
}

// List returns all contexts, most recently updated first.
func (s *Store) List() ([]*convo.Context, error) {
	return db.ListContexts(s.db)
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
