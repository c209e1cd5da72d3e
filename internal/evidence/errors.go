package evidence

import "errors"

// Sentinel errors shared across the ledger client, secondary store, and
// repositories. Implementations wrap these with context; callers match with
// errors.Is, never by inspecting message text.
var (
	// ErrNotFound means the queried source has no such record. "Not found
	// anywhere" is a composed verification result, not this error.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists means the ledger already holds the record. Treated as
	// an idempotent success by reconciliation.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrUnauthorized means the calling principal is not registered with the
	// ledger. Systemic: aborts batch operations.
	ErrUnauthorized = errors.New("principal not authorized")

	// ErrAlreadyResolved means an alert resolution would re-resolve a
	// resolved alert. Never a silent success.
	ErrAlreadyResolved = errors.New("alert already resolved")

	// ErrUnavailable means an infrastructure failure prevented the source
	// from answering at all. Distinguishes "could not determine" from
	// "determined to be invalid".
	ErrUnavailable = errors.New("source unavailable")
)
