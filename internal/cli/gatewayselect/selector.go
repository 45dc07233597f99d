// Package gatewayselect decides which configured gateway a command talks to.
package gatewayselect

import (
	"fmt"

	"github.com/manifoldco/promptui"

	"github.com/voltway/distctl/internal/cli/config"
	"github.com/voltway/distctl/internal/cli/userconfig"
)

// SelectFunc asks the user to pick one of several gateways
type SelectFunc func(cfg *config.Config) (*config.Gateway, error)

// ResolveGateway determines which gateway to use based on the following priority:
// 1. If name is provided, use that gateway
// 2. If user has a selected gateway in their local config, use that
// 3. If only one gateway in project config, use that
// 4. Otherwise, ask via selectFn (nil means PromptGatewaySelection)
func ResolveGateway(projectConfig *config.Config, name string, selectFn SelectFunc) (*config.Gateway, error) {
	// Priority 1: explicit name
	if name != "" {
		return projectConfig.GetGatewayByNameOrURL(name)
	}

	// Priority 2: Use selected gateway from user config
	selected, err := userconfig.GetSelectedGateway()
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}

	if selected != "" {
		gw, err := projectConfig.GetGatewayByName(selected)
		if err != nil {
			// Selected gateway no longer exists in project config, clear it and continue
			_ = userconfig.SetSelectedGateway("")
		} else {
			return gw, nil
		}
	}

	// Priority 3: If only one gateway, use it automatically
	if len(projectConfig.Gateways) == 1 {
		return &projectConfig.Gateways[0], nil
	}

	// Priority 4: ask
	if selectFn == nil {
		selectFn = PromptGatewaySelection
	}
	gw, err := selectFn(projectConfig)
	if err != nil {
		return nil, err
	}

	if err := userconfig.SetSelectedGateway(gw.Name); err != nil {
		// Don't fail if we can't save, just continue
		fmt.Printf("Warning: failed to save selected gateway: %v\n", err)
	}

	return gw, nil
}

// PromptGatewaySelection shows an interactive prompt for the user to select a gateway
func PromptGatewaySelection(projectConfig *config.Config) (*config.Gateway, error) {
	if len(projectConfig.Gateways) == 0 {
		return nil, fmt.Errorf("no gateways configured in %s", config.ConfigFileName)
	}

	type gatewayOption struct {
		Label   string
		Gateway *config.Gateway
	}

	options := make([]gatewayOption, len(projectConfig.Gateways))
	for i := range projectConfig.Gateways {
		gw := &projectConfig.Gateways[i]
		options[i] = gatewayOption{
			Label:   fmt.Sprintf("%s (%s)", gw.Name, gw.URL),
			Gateway: gw,
		}
	}

	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ .Label | cyan }}",
		Inactive: "  {{ .Label }}",
		Selected: "{{ .Label | green }}",
	}

	prompt := promptui.Select{
		Label:     "Select a gateway",
		Items:     options,
		Templates: templates,
		Size:      10,
	}

	index, _, err := prompt.Run()
	if err != nil {
		return nil, fmt.Errorf("gateway selection cancelled: %w", err)
	}

	return options[index].Gateway, nil
}
