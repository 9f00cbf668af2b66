package session

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alphanumeric = regexp.MustCompile(`^[0-9a-z]+$`)

func TestNewIdentifierShape(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := NewIdentifier()
		require.NotEmpty(t, id)
		assert.LessOrEqual(t, len(id), identifierLength)
		assert.Regexp(t, alphanumeric, id)
		seen[id] = struct{}{}
	}
	assert.Greater(t, len(seen), 90)
}

func TestEnsureIdentifierGeneratesOnce(t *testing.T) {
	storage := NewMemoryStorage()

	first, err := EnsureIdentifier(storage)
	require.NoError(t, err)
	second, err := EnsureIdentifier(storage)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	stored, ok := storage.Get(CookieName)
	require.True(t, ok)
	assert.Equal(t, first, stored)
}

func TestEnsureIdentifierKeepsExistingValue(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, storage.Set(CookieName, "existing"))

	id, err := EnsureIdentifier(storage)
	require.NoError(t, err)
	assert.Equal(t, "existing", id)
}

type failingStorage struct{}

func (failingStorage) Get(string) (string, bool) { return "", false }
func (failingStorage) Set(string, string) error  { return errors.New("read-only") }

func TestEnsureIdentifierStorageFailure(t *testing.T) {
	_, err := EnsureIdentifier(failingStorage{})
	assert.ErrorContains(t, err, "read-only")
}

func TestFileStorageSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cookies.yaml")

	id, err := EnsureIdentifier(NewFileStorage(path))
	require.NoError(t, err)

	reopened := NewFileStorage(path)
	again, err := EnsureIdentifier(reopened)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStorageKeepsOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.yaml")
	storage := NewFileStorage(path)

	require.NoError(t, storage.Set("theme", "dark"))
	require.NoError(t, storage.Set(CookieName, "abc"))

	v, ok := storage.Get("theme")
	require.True(t, ok)
	assert.Equal(t, "dark", v)
}

func TestFileStorageCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- not\n- a map\n"), 0o600))

	storage := NewFileStorage(path)
	_, ok := storage.Get(CookieName)
	assert.False(t, ok)
	assert.Error(t, storage.Set(CookieName, "x"))
}
