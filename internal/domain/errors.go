package domain

import "errors"

var (
	// ErrThreadNotFound is returned when a user's thread record does not exist.
	ErrThreadNotFound = errors.New("thread not found")

	// ErrMalformedDocument marks a stored or supplied document with an unexpected shape.
	ErrMalformedDocument = errors.New("malformed document")

	// ErrStorageUnavailable wraps transport/backend failures of the document storage.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrOrderingViolation marks a caller bug such as saving a thread pointer
	// before any turn produced a history key.
	ErrOrderingViolation = errors.New("ordering violation")

	// ErrModel wraps failures of the model client.
	ErrModel = errors.New("model call failed")

	ErrMissingUserID   = errors.New("user id is required")
	ErrMissingThreadID = errors.New("thread id is required")
	ErrInvalidUserID   = errors.New("user id must not contain ':' or be a reserved name")
)
