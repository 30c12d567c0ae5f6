package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/rileyhilliard/pgai/internal/api"
	"github.com/rileyhilliard/pgai/internal/config"
	"github.com/rileyhilliard/pgai/internal/errors"
	"github.com/rileyhilliard/pgai/internal/logger"
	"github.com/rileyhilliard/pgai/internal/report"
	"github.com/rileyhilliard/pgai/internal/registry"
	"github.com/rileyhilliard/pgai/internal/selection"
	"github.com/rileyhilliard/pgai/internal/ui"
	"github.com/spf13/cobra"
)

// GlobalOptions holds the flags defined on the root command.
type GlobalOptions struct {
	ConfigPath string
	APIURL     string
	JSON       bool
	Verbose    bool
	NoColor    bool
}

// app carries what every command needs once flags are parsed: the effective
// config, a gateway client and a logger.
type app struct {
	opts GlobalOptions

	cfg     *config.Config
	cfgPath string
	client  *api.Client
	log     logger.Logger

	out    io.Writer
	errOut io.Writer
}

// NewRootCmd builds the full command tree. Each call returns fresh flag
// state, so tests can run commands repeatedly.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "pgai",
		Short: "Operator console for monitored PostgreSQL servers",
		Long: `pgai talks to the pgai service to register PostgreSQL servers, install
the monitoring agent, collect diagnostic reports and review the actions they
recommend.

Run 'pgai console' for the interactive view, or use the subcommands for
scripting (add --json for machine-readable output).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.opts.ConfigPath, "config", "", "config file (default: .pgai.yaml or ~/.config/pgai/config.yaml)")
	flags.StringVar(&a.opts.APIURL, "api-url", "", "pgai service URL (overrides api.url)")
	flags.BoolVar(&a.opts.JSON, "json", false, "machine-readable JSON output")
	flags.BoolVarP(&a.opts.Verbose, "verbose", "v", false, "debug logging to stderr")
	flags.BoolVar(&a.opts.NoColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newServersCmd(a),
		newAgentCmd(a),
		newCollectCmd(a),
		newReportCmd(a),
		newConsoleCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
		newCompletionCmd(root),
	)
	return root
}

// Execute runs the CLI and exits non-zero on failure. Interrupts cancel the
// command context so in-flight requests are abandoned.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := NewRootCmd()
	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return
	}

	var reported reportedError
	if stderrors.As(err, &reported) {
		stop()
		os.Exit(1)
	}
	if jsonFlag(cmd) {
		_ = WriteJSONFromError(os.Stdout, err)
	} else {
		fmt.Fprint(os.Stderr, renderError(err))
	}
	stop()
	os.Exit(1)
}

// reportedError marks a failure whose output the command already wrote.
type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

func jsonFlag(cmd *cobra.Command) bool {
	if cmd == nil {
		return false
	}
	v, err := cmd.Flags().GetBool("json")
	return err == nil && v
}

// renderError formats err for the terminal. Structured errors already render
// as "✗ message / cause / suggestion".
func renderError(err error) string {
	msg := err.Error()
	if !strings.HasPrefix(msg, "✗") {
		msg = ui.Failure(msg)
	}
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	return msg
}

func (a *app) setup(cmd *cobra.Command) error {
	a.out = cmd.OutOrStdout()
	a.errOut = cmd.ErrOrStderr()

	cfg, path, err := config.LoadOrDefault(a.opts.ConfigPath)
	if err != nil {
		return err
	}
	if a.opts.APIURL != "" {
		if err := config.ValidateURL(a.opts.APIURL); err != nil {
			return errors.WrapWithCode(err, errors.ErrInput,
				"Invalid --api-url", "Use a full URL like http://localhost:8000")
		}
		cfg.API.URL = strings.TrimRight(a.opts.APIURL, "/")
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	a.cfg, a.cfgPath = cfg, path

	if a.opts.NoColor {
		ui.DisableColors()
	} else {
		ui.ConfigureColors(cfg.Output.Color)
	}

	debug := a.opts.Verbose || cfg.Output.Verbosity == "verbose" || os.Getenv(logger.DebugEnv) != ""
	a.log = logger.New(a.errOut, "", debug)
	logger.SetDefault(a.log)

	a.client = a.newClient()
	a.log.Debug("config=%q api=%s", path, cfg.API.URL)
	return nil
}

// newClient builds a gateway client from the effective config and logger.
func (a *app) newClient() *api.Client {
	return api.NewClient(
		api.WithBaseURL(a.cfg.API.URL),
		api.WithTimeout(a.cfg.API.Timeout),
		api.WithRetries(a.cfg.API.Retries),
		api.WithRateLimit(a.cfg.API.RateLimit, a.cfg.API.Burst),
		api.WithLogger(a.log),
		api.WithUserAgent("pgai/"+version),
	)
}

// registry builds a registry over the client with a fresh selection store
// and report viewer.
func (a *app) registry() *registry.Registry {
	viewer := report.NewViewer(a.client, a.log)
	return registry.New(a.client, selection.NewStore(), viewer, a.log)
}

// quiet reports whether decorative output should be suppressed.
func (a *app) quiet() bool {
	return a.opts.JSON || a.cfg.Output.Verbosity == "quiet"
}

// spin runs fn behind a spinner unless output is machine-readable.
func (a *app) spin(label string, fn func() error) error {
	if a.quiet() {
		return fn()
	}
	return ui.Run(a.errOut, label, fn)
}

func (a *app) printf(format string, args ...interface{}) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *app) println(s string) {
	fmt.Fprintln(a.out, s)
}
