package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func backends(t *testing.T) map[string]KV {
	t.Helper()

	keyring.MockInit()

	dir := t.TempDir()
	db, err := OpenSQLite(filepath.Join(dir, "state.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return map[string]KV{
		"memory":   NewMemory(),
		"file":     NewFile(filepath.Join(dir, "state.json")),
		"sqlite":   db,
		"keyring":  NewKeyring("distctl-test"),
		"prefixed": WithPrefix(NewMemory(), "ops"),
	}
}

func TestKV_Contract(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := kv.Get("session")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, kv.Set("session", `{"isAuthenticated":false}`))
			got, err := kv.Get("session")
			require.NoError(t, err)
			assert.Equal(t, `{"isAuthenticated":false}`, got)

			// Overwrite replaces the single slot
			require.NoError(t, kv.Set("session", "v2"))
			got, err = kv.Get("session")
			require.NoError(t, err)
			assert.Equal(t, "v2", got)

			require.NoError(t, kv.Delete("session"))
			_, err = kv.Get("session")
			require.ErrorIs(t, err, ErrNotFound)

			// Deleting a missing key is not an error
			require.NoError(t, kv.Delete("session"))
		})
	}
}

func TestKV_TakeIsSingleUse(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, kv.Set("last-visited-path", "/inventory/warehouse/5"))

			got, err := kv.Take("last-visited-path")
			require.NoError(t, err)
			assert.Equal(t, "/inventory/warehouse/5", got)

			_, err = kv.Take("last-visited-path")
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestWithPrefix_IsolatesNamespaces(t *testing.T) {
	base := NewMemory()
	prod := WithPrefix(base, "prod")
	staging := WithPrefix(base, "staging")

	require.NoError(t, prod.Set("session", "p"))
	_, err := staging.Get("session")
	require.ErrorIs(t, err, ErrNotFound)

	raw, err := base.Get("prod/session")
	require.NoError(t, err)
	assert.Equal(t, "p", raw)

	assert.Same(t, base, WithPrefix(base, ""))
}

func TestFile_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	require.NoError(t, NewFile(path).Set("session", "persisted"))

	got, err := NewFile(path).Get("session")
	require.NoError(t, err)
	assert.Equal(t, "persisted", got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFile_CorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewFile(path).Get("session")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	kv, err := Open("file", dir)
	require.NoError(t, err)
	assert.IsType(t, &File{}, kv)

	kv, err = Open("memory", dir)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, kv)

	kv, err = Open("sqlite", dir)
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, kv)
	kv.(*SQLite).Close()

	kv, err = Open("", dir)
	require.NoError(t, err)
	assert.IsType(t, &Keyring{}, kv)

	_, err = Open("redis", dir)
	require.Error(t, err)
}
