// Package uuid generates the identifiers handed out to admin clients.
package uuid

import (
	googleuuid "github.com/google/uuid"
)

// New returns a time-ordered UUIDv7 string. Session identifiers use it so
// that rows sort by creation order in the admin store.
func New() string {
	id, err := googleuuid.NewV7()
	if err != nil {
		// Fall back to a random v4 if the clock sequence cannot be read.
		return googleuuid.New().String()
	}
	return id.String()
}

// IsValid checks if a string is a valid UUID
func IsValid(s string) bool {
	_, err := googleuuid.Parse(s)
	return err == nil
}
