package errors

import "fmt"

// ErrorCode represents a Braid error code.
type ErrorCode string

const (
	ErrAmbiguousOwner   ErrorCode = "AMBIGUOUS_OWNER"   // 400
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"   // 400
	ErrNotFound         ErrorCode = "NOT_FOUND"         // 404
	ErrConflict         ErrorCode = "CONFLICT"          // 409
	ErrGenerationFailed ErrorCode = "GENERATION_FAILED" // 502
	ErrInternal         ErrorCode = "INTERNAL"          // 500
)

// BraidError represents a structured error with code, status, and details.
type BraidError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *BraidError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAmbiguousOwner creates a 400 error for when both owner kinds are provided.
// A context belongs to exactly one owner: a session or a project, never both.
func NewAmbiguousOwner() *BraidError {
	return &BraidError{
		Code:    ErrAmbiguousOwner,
		Status:  400,
		Message: "cannot specify both session_id and project_id; a context has exactly one owner",
	}
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *BraidError {
	return &BraidError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a context or owner cannot be found.
func NewNotFound(identifier string) *BraidError {
	return &BraidError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewConflict creates a 409 error for general conflicts.
func NewConflict(msg string) *BraidError {
	return &BraidError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewGenerationFailed creates a 502 error for a failed compaction summary.
// The façade reports this as a warning on the append result rather than
// failing the append: the conversation keeps working over budget.
func NewGenerationFailed(err error) *BraidError {
	msg := "summary generation failed"
	if err != nil {
		msg = fmt.Sprintf("summary generation failed: %v", err)
	}
	return &BraidError{
		Code:    ErrGenerationFailed,
		Status:  502,
		Message: msg,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *BraidError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &BraidError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a BraidError with the given code.
func Is(err error, code ErrorCode) bool {
	if bErr, ok := err.(*BraidError); ok {
		return bErr.Code == code
	}
	return false
}
