package gatewayselect

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltway/distctl/internal/cli/config"
	"github.com/voltway/distctl/internal/cli/userconfig"
)

func twoGateways() *config.Config {
	return &config.Config{Gateways: []config.Gateway{
		{Name: "staging", URL: "https://auth.staging.example.com"},
		{Name: "local", URL: "http://localhost:8080"},
	}}
}

func noPrompt(t *testing.T) SelectFunc {
	return func(*config.Config) (*config.Gateway, error) {
		t.Fatal("unexpected prompt")
		return nil, nil
	}
}

func TestResolveGateway_ExplicitName(t *testing.T) {
	t.Setenv("DISTCTL_STATE_DIR", t.TempDir())

	gw, err := ResolveGateway(twoGateways(), "local", noPrompt(t))
	require.NoError(t, err)
	assert.Equal(t, "local", gw.Name)

	_, err = ResolveGateway(twoGateways(), "prod", noPrompt(t))
	assert.Error(t, err)
}

func TestResolveGateway_SavedSelection(t *testing.T) {
	t.Setenv("DISTCTL_STATE_DIR", t.TempDir())
	require.NoError(t, userconfig.SetSelectedGateway("local"))

	gw, err := ResolveGateway(twoGateways(), "", noPrompt(t))
	require.NoError(t, err)
	assert.Equal(t, "local", gw.Name)
}

func TestResolveGateway_StaleSelectionIsCleared(t *testing.T) {
	t.Setenv("DISTCTL_STATE_DIR", t.TempDir())
	require.NoError(t, userconfig.SetSelectedGateway("gone"))

	cfg := &config.Config{Gateways: []config.Gateway{{Name: "only", URL: "http://localhost:8080"}}}
	gw, err := ResolveGateway(cfg, "", noPrompt(t))
	require.NoError(t, err)
	assert.Equal(t, "only", gw.Name)

	selected, err := userconfig.GetSelectedGateway()
	require.NoError(t, err)
	assert.Empty(t, selected)
}

func TestResolveGateway_PromptsAndRemembers(t *testing.T) {
	t.Setenv("DISTCTL_STATE_DIR", t.TempDir())

	calls := 0
	pick := func(cfg *config.Config) (*config.Gateway, error) {
		calls++
		return &cfg.Gateways[1], nil
	}

	gw, err := ResolveGateway(twoGateways(), "", pick)
	require.NoError(t, err)
	assert.Equal(t, "local", gw.Name)
	assert.Equal(t, 1, calls)

	gw, err = ResolveGateway(twoGateways(), "", pick)
	require.NoError(t, err)
	assert.Equal(t, "local", gw.Name)
	assert.Equal(t, 1, calls)
}

func TestResolveGateway_PromptCancelled(t *testing.T) {
	t.Setenv("DISTCTL_STATE_DIR", t.TempDir())

	cancel := errors.New("cancelled")
	_, err := ResolveGateway(twoGateways(), "", func(*config.Config) (*config.Gateway, error) {
		return nil, cancel
	})
	assert.ErrorIs(t, err, cancel)
}
