package ingest

import "fmt"

// ValidationError reports a malformed or incomplete payload. The reason is
// the exact string stored in the quarantine, category prefix included.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// AuthError reports a provisioning token that failed verification.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string { return e.Reason }

// ResolutionError reports a payload whose device identity cannot be
// established even though the payload itself is well formed.
type ResolutionError struct {
	Reason string
}

func (e *ResolutionError) Error() string { return e.Reason }

// PersistenceError reports a storage failure. Unlike the input-derived
// errors above it is never quarantined; it surfaces to the caller as a
// request-level failure.
type PersistenceError struct {
	Op   string
	Code string // SQLSTATE when the driver reported one
	Err  error
}

func (e *PersistenceError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %v (sqlstate %s)", e.Op, e.Err, e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
