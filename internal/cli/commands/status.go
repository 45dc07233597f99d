package commands

import (
	"github.com/spf13/cobra"

	"github.com/voltway/distctl/internal/cli/screens"
	"github.com/voltway/distctl/internal/session"
)

// NewStatusCmd creates the status command
func NewStatusCmd(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			st := a.store.State()
			a.printf("Gateway:  %s (%s)\n", a.gateway.Name, a.gateway.URL)
			a.printf("Storage:  %s\n", a.cfg.Storage.Backend)
			a.printf("Phase:    %s\n", st.Phase())

			switch st.Phase() {
			case session.PhaseAuthenticated:
				if st.User != nil {
					a.printf("User:     %s\n", displayName(st.User))
					if st.User.Role != "" {
						a.printf("Role:     %s\n", st.User.Role)
					}
				}
			case session.PhaseMFAPending, session.PhaseResetPending:
				a.printf("Pending:  %s\n", st.PendingEmail)
			}

			if st.Error != "" {
				a.printf("Error:    %s\n", st.Error)
			}
			if path, ok := a.tracker.Peek(); ok {
				a.printf("Return:   %s\n", path)
			}
			a.printf("Next:     %s\n", screens.Next(st, peekRedirector{a}))
			return nil
		},
	}
}

// peekRedirector reports the destination without consuming it
type peekRedirector struct {
	a *app
}

func (p peekRedirector) ComputeRedirect() string {
	if path, ok := p.a.tracker.Peek(); ok && !p.a.tracker.Excluded(path) {
		return path
	}
	return p.a.tracker.DefaultPath()
}
