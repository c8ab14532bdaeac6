package gateway

import "errors"

var (
	// ErrNetwork marks transient transport failures. Callers may retry,
	// typically via pull-to-refresh or resubmission.
	ErrNetwork = errors.New("network error")

	// ErrAuthorization marks a row-level policy rejection. Not retried;
	// surfaced to the user as-is.
	ErrAuthorization = errors.New("authorization denied")

	// ErrNotFound marks a missing row, surfaced as an empty state.
	ErrNotFound = errors.New("not found")
)

// ValidationError carries a user-correctable rejection, e.g. an empty
// required field or a username collision. Shown inline next to the form.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// IsRetryable reports whether the error is transient.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork)
}
