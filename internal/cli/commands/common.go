package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	cliconfig "github.com/voltway/distctl/internal/cli/config"
	"github.com/voltway/distctl/internal/cli/gatewayselect"
	"github.com/voltway/distctl/internal/cli/screens"
	"github.com/voltway/distctl/internal/config"
	"github.com/voltway/distctl/internal/gateway"
	"github.com/voltway/distctl/internal/logger"
	"github.com/voltway/distctl/internal/redirect"
	"github.com/voltway/distctl/internal/session"
	"github.com/voltway/distctl/internal/storage"
)

// envGatewayName labels the gateway given by DISTCTL_GATEWAY_URL
const envGatewayName = "env"

// GlobalOptions are the persistent flags shared by every command
type GlobalOptions struct {
	Gateway string
	NoInput bool // never prompt, even on a terminal
}

// app is one invocation's wiring: the resolved gateway, the durable store,
// the session rehydrated from it and the redirect tracker.
type app struct {
	cfg         *config.Config
	gateway     *cliconfig.Gateway
	kv          storage.KV
	store       *session.Store
	tracker     *redirect.Tracker
	minLength   int
	log         zerolog.Logger
	out         io.Writer
	prompter    screens.Prompter
	interactive bool
}

// newApp loads configuration and rehydrates the session. Every command runs
// as a fresh page load.
func newApp(cmd *cobra.Command, opts *GlobalOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.InitWithWriter(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
	log := logger.GetLogger()

	gw, project, err := resolveGateway(cfg, opts.Gateway)
	if err != nil {
		return nil, err
	}

	kv, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Backend, err)
	}
	// Each gateway keeps its own session and destination
	scoped := storage.WithPrefix(kv, gw.Name+":")

	var clientOpts []gateway.Option
	if gw.Insecure {
		clientOpts = append(clientOpts, gateway.WithInsecureTLS())
	}
	client := gateway.NewHTTPClient(gw.URL, clientOpts...)

	store := session.NewStore(client, session.NewKVPersister(scoped),
		session.WithLogger(log.With().Str("gateway", gw.Name).Logger()))

	trackerOpts := []redirect.Option{redirect.WithDefaultPath(cfg.Redirect.DefaultPath)}
	minLength := cfg.PasswordMinLength
	if project != nil {
		if project.Redirect.DefaultPath != "" {
			trackerOpts = append(trackerOpts, redirect.WithDefaultPath(project.Redirect.DefaultPath))
		}
		if len(project.Redirect.Exclude) > 0 {
			excluded := append(append([]string{}, redirect.DefaultExcluded...), project.Redirect.Exclude...)
			trackerOpts = append(trackerOpts, redirect.WithExcluded(excluded...))
		}
		if project.PasswordMinLength > 0 {
			minLength = project.PasswordMinLength
		}
	}

	prompter := screens.NewTerminalPrompter()
	prompter.Out = cmd.OutOrStdout()

	a := &app{
		cfg:         cfg,
		gateway:     gw,
		kv:          kv,
		store:       store,
		tracker:     redirect.New(scoped, trackerOpts...),
		minLength:   minLength,
		log:         log,
		out:         cmd.OutOrStdout(),
		prompter:    prompter,
		interactive: !opts.NoInput && prompter.Interactive(),
	}

	a.store.CheckAuth(cmd.Context())
	return a, nil
}

// resolveGateway picks the gateway: DISTCTL_GATEWAY_URL unless a profile is
// named explicitly, then distctl.yaml.
func resolveGateway(cfg *config.Config, name string) (*cliconfig.Gateway, *cliconfig.Config, error) {
	project, err := cliconfig.LoadFromCurrentDir()
	if err != nil && !errors.Is(err, cliconfig.ErrNotFound) {
		return nil, nil, err
	}

	if cfg.Gateway.URL != "" && name == "" {
		return &cliconfig.Gateway{Name: envGatewayName, URL: cfg.Gateway.URL}, project, nil
	}
	if project == nil {
		return nil, nil, fmt.Errorf("no gateway configured: set DISTCTL_GATEWAY_URL or run 'distctl init <url>'")
	}

	gw, err := gatewayselect.ResolveGateway(project, name, nil)
	if err != nil {
		return nil, nil, err
	}
	return gw, project, nil
}

// close releases storage that holds resources
func (a *app) close() {
	if closer, ok := a.kv.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to close storage")
		}
	}
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *app) flow(email, password string) *screens.Flow {
	return &screens.Flow{
		Session:           a.store,
		Redirects:         a.tracker,
		Prompter:          a.prompter,
		PasswordMinLength: a.minLength,
		Email:             email,
		Password:          password,
	}
}

// land reports where the user ends up. Interactive terminals keep walking
// the sign-in screens; otherwise the next command is suggested.
func (a *app) land(ctx context.Context, route string) error {
	if screens.IsAuthRoute(route) && a.interactive {
		dest, err := a.flow("", "").Run(ctx, route)
		if err != nil {
			return err
		}
		route = dest
	}

	switch route {
	case screens.RouteLogin:
		a.printf("Sign in with 'distctl login'\n")
	case screens.RouteMFA:
		a.printf("A verification code was sent to %s\n", a.store.State().PendingEmail)
		a.printf("Run 'distctl mfa verify <code>' to continue\n")
	case screens.RouteChangePassword:
		a.printf("A password change is required for %s\n", a.store.State().PendingEmail)
		a.printf("Run 'distctl password change --otp <code> --new-password <password>' to continue\n")
	case screens.RouteResetPassword:
		a.printf("Run 'distctl password reset --email <email> --otp <code> --new-password <password>' to continue\n")
	default:
		if u := a.store.State().User; u != nil {
			a.printf("✓ Signed in as %s\n", displayName(u))
		}
		a.printf("→ %s\n", route)
	}
	return nil
}

func displayName(u *session.Identity) string {
	switch {
	case u.Name != "" && u.Email != "":
		return fmt.Sprintf("%s (%s)", u.Name, u.Email)
	case u.Email != "":
		return u.Email
	case u.Name != "":
		return u.Name
	default:
		return u.ID
	}
}

// envOr returns value, or the environment variable key when value is empty
func envOr(value, key string) string {
	if value != "" {
		return value
	}
	return os.Getenv(key)
}
