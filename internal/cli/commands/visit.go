package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voltway/distctl/internal/cli/screens"
	"github.com/voltway/distctl/internal/session"
)

// NewVisitCmd creates the visit command
func NewVisitCmd(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "visit <path>",
		Short: "Open a console page, signing in first when needed",
		Long: `Open a console page.

Without a session the page is remembered and you are sent to sign in. After
signing in you are returned to it.

Examples:
  $ distctl visit /releases/42
  $ distctl visit "/artists?page=2"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVisit(cmd, opts, args[0])
		},
	}
}

func runVisit(cmd *cobra.Command, opts *GlobalOptions, path string) error {
	a, err := newApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()

	if screens.IsAuthRoute(path) {
		return a.land(ctx, path)
	}

	recorded, err := a.tracker.RecordVisit(path)
	if err != nil {
		return fmt.Errorf("invalid path %q: %w", path, err)
	}

	st := a.store.State()
	if st.Phase() == session.PhaseAuthenticated {
		// Already signed in: the page is served directly and stays recorded
		// as the destination after a later sign-in.
		a.printf("→ %s\n", path)
		return nil
	}

	if recorded {
		a.printf("Sign-in required. You will return to %s afterwards.\n", path)
	}
	return a.land(ctx, screens.Next(st, a.tracker))
}

// NewNextCmd creates the next command
func NewNextCmd(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Print where the console sends you now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			fmt.Fprintln(a.out, screens.Next(a.store.State(), a.tracker))
			return nil
		},
	}
}
