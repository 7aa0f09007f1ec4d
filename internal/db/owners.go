package db

import (
	"database/sql"
	"time"

	"github.com/jlindqvist/braid/internal/convo"
	"github.com/jlindqvist/braid/internal/errors"
)

// InsertSession stores a new session owner record.
func InsertSession(db *sql.DB, s *convo.Session) error {
	query := `
		INSERT INTO sessions (id, title, last_summary, last_total_tokens, last_percent_used, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.Exec(query, s.ID, s.Title, toNullStringPtr(s.LastSummary),
		s.LastTotalTokens, s.LastPercentUsed, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// InsertProject stores a new project owner record.
func InsertProject(db *sql.DB, p *convo.Project) error {
	query := `
		INSERT INTO projects (id, name, path, last_summary, last_total_tokens, last_percent_used, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.Exec(query, p.ID, p.Name, p.Path, toNullStringPtr(p.LastSummary),
		p.LastTotalTokens, p.LastPercentUsed, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// GetSession retrieves a session owner record by id.
func GetSession(db *sql.DB, id string) (*convo.Session, error) {
	query := `
		SELECT id, title, last_summary, last_total_tokens, last_percent_used, created_at, updated_at
		FROM sessions WHERE id = ?
	`
	var (
		s       convo.Session
		summary sql.NullString
	)
	err := db.QueryRow(query, id).Scan(&s.ID, &s.Title, &summary,
		&s.LastTotalTokens, &s.LastPercentUsed, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	s.LastSummary = fromNullString(summary)
	return &s, nil
}

// GetProject retrieves a project owner record by id.
func GetProject(db *sql.DB, id string) (*convo.Project, error) {
	query := `
		SELECT id, name, path, last_summary, last_total_tokens, last_percent_used, created_at, updated_at
		FROM projects WHERE id = ?
	`
	var (
		p       convo.Project
		summary sql.NullString
	)
	err := db.QueryRow(query, id).Scan(&p.ID, &p.Name, &p.Path, &summary,
		&p.LastTotalTokens, &p.LastPercentUsed, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	p.LastSummary = fromNullString(summary)
	return &p, nil
}

// OwnerExists reports whether the owner record behind a ref is present.
func OwnerExists(db *sql.DB, owner convo.OwnerRef) (bool, error) {
	var query string
	switch owner.Kind {
	case convo.OwnerSession:
		query = "SELECT 1 FROM sessions WHERE id = ? LIMIT 1"
	case convo.OwnerProject:
		query = "SELECT 1 FROM projects WHERE id = ? LIMIT 1"
	default:
		return false, errors.NewInvalidRequest("unknown owner kind")
	}

	var exists int
	err := db.QueryRow(query, owner.ID).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return true, nil
}

// DeleteOwner removes an owner record. The owner's context row is
// destroyed by the foreign-key cascade.
func DeleteOwner(db *sql.DB, owner convo.OwnerRef) error {
	var query string
	switch owner.Kind {
	case convo.OwnerSession:
		query = "DELETE FROM sessions WHERE id = ?"
	case convo.OwnerProject:
		query = "DELETE FROM projects WHERE id = ?"
	default:
		return errors.NewInvalidRequest("unknown owner kind")
	}

	result, err := db.Exec(query, owner.ID)
	if err != nil {
		return errors.NewInternal(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(owner.String())
	}
	return nil
}

// UpdateOwnerUsage writes the denormalized last-known usage fields onto
// the owner record. Called only after the context row itself has been
// durably saved.
func UpdateOwnerUsage(db *sql.DB, owner convo.OwnerRef, summary string, totalTokens int, percentUsed float64) error {
	now := time.Now().Unix()

	var query string
	switch owner.Kind {
	case convo.OwnerSession:
		query = `
			UPDATE sessions
			SET last_summary = ?, last_total_tokens = ?, last_percent_used = ?, updated_at = ?
			WHERE id = ?
		`
	case convo.OwnerProject:
		query = `
			UPDATE projects
			SET last_summary = ?, last_total_tokens = ?, last_percent_used = ?, updated_at = ?
			WHERE id = ?
		`
	default:
		return errors.NewInvalidRequest("unknown owner kind")
	}

	result, err := db.Exec(query, toNullString(summary), totalTokens, percentUsed, now, owner.ID)
	if err != nil {
		return errors.NewInternal(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(owner.String())
	}
	return nil
}

// toNullStringPtr converts an optional string to sql.NullString.
func toNullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts sql.NullString to an optional string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
