package storage

import (
	"errors"
	"fmt"
)

// Persisted record keys
const (
	KeyAuthToken = "authToken"
	KeyAuthUser  = "authUser"

	// KeyLegacyLoggedIn is only ever removed, never read
	KeyLegacyLoggedIn = "isLoggedIn"
)

// Backend names accepted by New
const (
	BackendKeyring = "keyring"
	BackendFile    = "file"
	BackendSQLite  = "sqlite"
	BackendMemory  = "memory"
)

var (
	ErrNotFound = errors.New("no persisted session")
	ErrCorrupt  = errors.New("persisted session is corrupt")
)

// Record is the durable authToken/authUser pair. AuthUser holds the JSON
// encoded profile and may be empty.
type Record struct {
	AuthToken string
	AuthUser  string
}

// Store persists a Record. Implementations write and clear both fields together:
// a reader never observes a token from one Save with the user of another.
type Store interface {
	// Load returns ErrNotFound when no token is stored
	Load() (Record, error)
	Save(rec Record) error
	// Clear removes the record and the legacy logged-in marker. Clearing an
	// empty store is not an error.
	Clear() error
}

// New opens the store for the given backend. profile namespaces records so
// several API endpoints can keep separate sessions; path is used by the file
// and sqlite backends.
func New(backend, profile, path string) (Store, error) {
	switch backend {
	case BackendKeyring, "":
		return NewKeyringStore(profile), nil
	case BackendFile:
		return NewFileStore(path), nil
	case BackendSQLite:
		return NewSQLiteStore(path, profile)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", backend)
	}
}
