package db

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/jlindqvist/braid/internal/convo"
	"github.com/jlindqvist/braid/internal/errors"
	"github.com/jlindqvist/braid/internal/turn"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.BraidError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

// InsertContext stores a new context row for its owner.
// Exactly one active context exists per owner; a second insert for the
// same owner fails with ErrUniqueConstraint.
func InsertContext(db *sql.DB, c *convo.Context) error {
	turnsJSON, err := json.Marshal(c.Turns)
	if err != nil {
		return errors.NewInternal(err)
	}

	sessionID, projectID := ownerColumns(c.Owner)
	summary := toNullString(c.SummaryText)

	query := `
		INSERT INTO contexts (
			id, session_id, project_id, turns_json, summary_text,
			total_tokens, max_tokens, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = db.Exec(query,
		c.ID, sessionID, projectID, string(turnsJSON), summary,
		c.TotalTokens, c.MaxTokens, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}

	return nil
}

// GetContextByID retrieves a context by its ULID.
func GetContextByID(db *sql.DB, id string) (*convo.Context, error) {
	row := db.QueryRow(contextSelect+" WHERE id = ?", id)
	c, err := scanContext(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return c, nil
}

// GetContextByOwner retrieves the context belonging to an owner.
// The second return reports existence: a missing row is not an error,
// the façade creates one lazily.
func GetContextByOwner(db *sql.DB, owner convo.OwnerRef) (*convo.Context, bool, error) {
	var row *sql.Row
	switch owner.Kind {
	case convo.OwnerSession:
		row = db.QueryRow(contextSelect+" WHERE session_id = ?", owner.ID)
	case convo.OwnerProject:
		row = db.QueryRow(contextSelect+" WHERE project_id = ?", owner.ID)
	default:
		return nil, false, errors.NewInvalidRequest("unknown owner kind")
	}

	c, err := scanContext(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewInternal(err)
	}
	return c, true, nil
}

// UpdateContext performs a full overwrite of the context row: turns,
// summary, and totals are always written together, never incrementally,
// to avoid drift between the serialized turns and the stored total.
// Sets updated_at to current timestamp.
// Does NOT change: id, owner, max_tokens, created_at.
func UpdateContext(db *sql.DB, c *convo.Context) error {
	turnsJSON, err := json.Marshal(c.Turns)
	if err != nil {
		return errors.NewInternal(err)
	}

	now := time.Now().Unix()
	summary := toNullString(c.SummaryText)

	query := `
		UPDATE contexts
		SET turns_json = ?, summary_text = ?, total_tokens = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := db.Exec(query, string(turnsJSON), summary, c.TotalTokens, now, c.ID)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(c.ID)
	}

	c.UpdatedAt = now

	return nil
}

// ListContexts returns all contexts ordered by most recently updated.
func ListContexts(db *sql.DB) ([]*convo.Context, error) {
	rows, err := db.Query(contextSelect + " ORDER BY updated_at DESC")
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []*convo.Context
	for rows.Next() {
		c, err := scanContext(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return out, nil
}

const contextSelect = `
	SELECT id, session_id, project_id, turns_json, summary_text,
		total_tokens, max_tokens, created_at, updated_at
	FROM contexts`

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanContext reads one context row, deserializing the turn sequence in
// stored order.
func scanContext(row scanner) (*convo.Context, error) {
	var (
		c          convo.Context
		sessionID  sql.NullString
		projectID  sql.NullString
		turnsJSON  string
		summary    sql.NullString
	)

	err := row.Scan(&c.ID, &sessionID, &projectID, &turnsJSON, &summary,
		&c.TotalTokens, &c.MaxTokens, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	switch {
	case sessionID.Valid:
		c.Owner = convo.OwnerRef{Kind: convo.OwnerSession, ID: sessionID.String}
	case projectID.Valid:
		c.Owner = convo.OwnerRef{Kind: convo.OwnerProject, ID: projectID.String}
	}

	var turns []turn.Turn
	if err := json.Unmarshal([]byte(turnsJSON), &turns); err != nil {
		return nil, err
	}
	c.Turns = turns
	c.SummaryText = summary.String

	return &c, nil
}

// ownerColumns splits an owner ref into the two nullable columns.
func ownerColumns(owner convo.OwnerRef) (sessionID, projectID sql.NullString) {
	switch owner.Kind {
	case convo.OwnerSession:
		sessionID = sql.NullString{String: owner.ID, Valid: true}
	case convo.OwnerProject:
		projectID = sql.NullString{String: owner.ID, Valid: true}
	}
	return sessionID, projectID
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// toNullString converts a string to sql.NullString, treating empty as NULL.
func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
