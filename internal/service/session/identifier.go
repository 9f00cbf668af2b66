package session

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// CookieName is the fixed storage key holding the session identifier.
const CookieName = "z-chat-user"

// identifierLength bounds generated identifiers to a short, cookie-friendly size.
const identifierLength = 10

// Storage persists small string values across sessions, e.g. a cookie jar.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// NewIdentifier returns a short pseudo-random lowercase alphanumeric string.
func NewIdentifier() string {
	id := uuid.New()
	encoded := strconv.FormatUint(binary.BigEndian.Uint64(id[8:]), 36)
	if len(encoded) > identifierLength {
		encoded = encoded[:identifierLength]
	}
	return encoded
}

// EnsureIdentifier returns the identifier held by storage, generating and
// storing a new one when absent.
func EnsureIdentifier(storage Storage) (string, error) {
	if id, ok := storage.Get(CookieName); ok && id != "" {
		return id, nil
	}

	id := NewIdentifier()
	if err := storage.Set(CookieName, id); err != nil {
		return "", fmt.Errorf("persist session identifier: %w", err)
	}
	return id, nil
}
