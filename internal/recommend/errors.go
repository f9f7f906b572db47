package recommend

import "errors"

// Typed errors surfaced synchronously to callers. The API layer maps these to
// status codes, so they must stay matchable with errors.Is.
var (
	// ErrAccountNotFound means no account matches the given identifier.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidAccountID means the identifier is malformed.
	ErrInvalidAccountID = errors.New("invalid account identifier")

	// ErrUnknownCategory means the caller named a category with no strategy.
	ErrUnknownCategory = errors.New("unknown recommendation category")
)
