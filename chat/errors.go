package chat

import "errors"

// Validation errors are rejected before any persistence attempt and are
// reported only to the sender. ErrNotFound means the conversation does not
// exist and the caller did not ask for creation. Anything else coming out
// of the store is a storage failure wrapped with %w.
var (
	ErrEmptyMessage   = errors.New("message text must not be empty")
	ErrInvalidPostKey = errors.New("post key must not be empty")
	ErrInvalidSender  = errors.New("sender must not be empty")
	ErrNotFound       = errors.New("conversation not found")
)

// IsValidation reports whether err is a pre-persistence validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyMessage) ||
		errors.Is(err, ErrInvalidPostKey) ||
		errors.Is(err, ErrInvalidSender)
}
