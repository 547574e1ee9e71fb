package storage_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/quickcourt/quickcourt/internal/storage"
)

// exerciseStore runs the contract every backend must satisfy
func exerciseStore(t *testing.T, s storage.Store) {
	t.Helper()

	_, err := s.Load()
	require.ErrorIs(t, err, storage.ErrNotFound)

	// Clearing an empty store is fine
	require.NoError(t, s.Clear())

	first := storage.Record{AuthToken: "token-1", AuthUser: `{"id":"u1","role":"player"}`}
	require.NoError(t, s.Save(first))

	got, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, first, got)

	second := storage.Record{AuthToken: "token-2"}
	require.NoError(t, s.Save(second))

	got, err = s.Load()
	require.NoError(t, err)
	require.Equal(t, second, got, "user from a previous save must not survive")

	require.NoError(t, s.Clear())
	_, err = s.Load()
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Clear())
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, storage.NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	exerciseStore(t, storage.NewFileStore(path))
}

func TestFileStore_Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s := storage.NewFileStore(path)

	require.NoError(t, s.Save(storage.Record{AuthToken: "secret"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := storage.NewFileStore(path).Load()
	require.ErrorIs(t, err, storage.ErrCorrupt)
}

func TestFileStore_LegacyMarkerIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"isLoggedIn":true}`), 0600))

	_, err := storage.NewFileStore(path).Load()
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSQLiteStore(t *testing.T) {
	s, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "session.db"), "http://localhost:5000/api")
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)
}

func TestSQLiteStore_ProfilesAreIsolated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")

	a, err := storage.NewSQLiteStore(path, "a")
	require.NoError(t, err)
	defer a.Close()
	b, err := storage.NewSQLiteStore(path, "b")
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Save(storage.Record{AuthToken: "token-a"}))

	_, err = b.Load()
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, b.Clear())
	got, err := a.Load()
	require.NoError(t, err)
	require.Equal(t, "token-a", got.AuthToken)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()
	exerciseStore(t, storage.NewKeyringStore("test-profile"))
}

func TestKeyringStore_ClearRemovesLegacyMarker(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, keyring.Set("quickcourt-cli", "isLoggedIn-legacy", "true"))

	s := storage.NewKeyringStore("legacy")
	require.NoError(t, s.Clear())

	_, err := keyring.Get("quickcourt-cli", "isLoggedIn-legacy")
	require.ErrorIs(t, err, keyring.ErrNotFound)
}

func TestKeyringStore_BackendError(t *testing.T) {
	keyring.MockInitWithError(errors.New("keychain locked"))
	defer keyring.MockInit()

	s := storage.NewKeyringStore("broken")
	_, err := s.Load()
	require.Error(t, err)
	require.NotErrorIs(t, err, storage.ErrNotFound)

	require.Error(t, s.Save(storage.Record{AuthToken: "x"}))
}

func TestNew(t *testing.T) {
	dir := t.TempDir()

	for _, backend := range []string{storage.BackendKeyring, storage.BackendFile, storage.BackendSQLite, storage.BackendMemory} {
		s, err := storage.New(backend, "p", filepath.Join(dir, backend))
		require.NoError(t, err, backend)
		require.NotNil(t, s)
	}

	_, err := storage.New("floppy", "p", "")
	require.Error(t, err)
}
