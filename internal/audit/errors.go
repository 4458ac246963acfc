package audit

import "errors"

// Domain errors for the audit package.
var (
	// ErrInvalidEntry is returned when an entry is missing its action,
	// entity type or source.
	ErrInvalidEntry = errors.New("audit: invalid entry")
)
