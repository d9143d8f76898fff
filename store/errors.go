package store

import "errors"

// Sentinel errors for package store.
// These errors can be checked with errors.Is() for specific error handling.
var (
	// ErrNotFound reports a digest with no stored content.
	ErrNotFound = errors.New("content not found")

	// ErrOutOfSpace reports that the store rejected a write.
	ErrOutOfSpace = errors.New("content store out of space")

	// ErrInvalidDigest reports a malformed digest rendering or blob key.
	ErrInvalidDigest = errors.New("invalid digest")
)
