package userconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectedGateway(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DISTCTL_STATE_DIR", dir)

	name, err := GetSelectedGateway()
	require.NoError(t, err)
	assert.Empty(t, name)

	require.NoError(t, SetSelectedGateway("staging"))

	name, err = GetSelectedGateway()
	require.NoError(t, err)
	assert.Equal(t, "staging", name)

	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"selected_gateway":"staging"}`, string(data))
}

func TestLoad_Corrupt(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DISTCTL_STATE_DIR", dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte("{"), 0644))

	_, err := Load()
	assert.Error(t, err)
}
