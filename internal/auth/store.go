package auth

import (
	"errors"
	"fmt"
)

// CredentialStore holds the single bearer token used for API calls.
type CredentialStore interface {
	// Save replaces the stored token.
	Save(token string) error
	// Load returns the token and whether one is stored.
	Load() (string, bool, error)
	// Delete removes the token. Deleting a missing token succeeds.
	Delete() error
}

// ErrNoCredential is returned by TokenSource when nothing is stored.
var ErrNoCredential = errors.New("no credential stored")

// StoreError represents a failed credential store operation.
type StoreError struct {
	Operation string
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("credential store %s failed: %v", e.Operation, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
