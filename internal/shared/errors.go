package shared

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrCSRFTokenMissing   = errors.New("csrf token missing")
	ErrCSRFTokenMismatch  = errors.New("csrf token mismatch")
	// ErrIdempotencyConflict means the key was already claimed.
	ErrIdempotencyConflict = errors.New("idempotent request already processed")
	ErrAuditIncomplete     = errors.New("audit log requires action, entity and entity id")
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"
