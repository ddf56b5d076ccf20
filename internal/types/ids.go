package types

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ID keys one pipeline run. Every trace record, event, and repair
// session for a request carries the same ID.
type ID string

// NewID returns a fresh random request ID.
func NewID() ID {
	return ID(uuid.NewString())
}

// ParseID validates caller-supplied text, such as a trace lookup
// argument, and normalizes it into an ID.
func ParseID(s string) (ID, error) {
	if s == "" {
		return "", fmt.Errorf("request ID cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid request ID %q: %w", s, err)
	}
	return ID(u.String()), nil
}

// Validate reports whether the ID holds a well-formed UUID.
func (id ID) Validate() error {
	if id == "" {
		return fmt.Errorf("request ID cannot be empty")
	}
	if _, err := uuid.Parse(string(id)); err != nil {
		return fmt.Errorf("invalid request ID %q: %w", string(id), err)
	}
	return nil
}

func (id ID) String() string {
	return string(id)
}

// IsZero reports whether the ID is unset.
func (id ID) IsZero() bool {
	return id == ""
}

// MarshalJSON renders an unset ID as null so decision and trace output
// never carries an empty-string key.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(string(id))
}
