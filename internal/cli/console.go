package cli

import (
	stderrors "errors"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/pgai/internal/console"
	"github.com/rileyhilliard/pgai/internal/errors"
	"github.com/rileyhilliard/pgai/internal/logger"
	"github.com/rileyhilliard/pgai/internal/ui"
	"github.com/spf13/cobra"
)

// consoleLogFile receives debug logs while the console owns the terminal.
const consoleLogFile = "pgai-debug.log"

func newConsoleCmd(a *app) *cobra.Command {
	var downloadDir string
	cmd := &cobra.Command{
		Use:     "console",
		Aliases: []string{"ui"},
		Short:   "Interactive server console",
		Long: `Open the interactive console: browse servers, pick databases and metric
blocks, collect reports, review their actions and add new servers.

Press ? inside the console for keyboard shortcuts. With --verbose, debug
logs go to ` + consoleLogFile + ` in the working directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runConsole(cmd, downloadDir)
		},
	}
	cmd.Flags().StringVar(&downloadDir, "download-dir", ".", "directory report downloads are saved to")
	return cmd
}

func (a *app) runConsole(cmd *cobra.Command, downloadDir string) error {
	if a.opts.JSON {
		return errors.New(errors.ErrInput, "The console has no JSON mode",
			"Use the servers, collect and report commands with --json")
	}
	if !ui.IsTerminal(os.Stdin) || !ui.IsTerminal(os.Stdout) {
		return errors.New(errors.ErrInput, "The console needs an interactive terminal",
			"Use 'pgai servers list' and 'pgai collect' for scripts")
	}

	// The alternate screen owns stdout and stderr; debug logs go to a file.
	log := logger.Noop()
	if a.opts.Verbose || os.Getenv(logger.DebugEnv) != "" {
		f, err := tea.LogToFile(consoleLogFile, "")
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig, "Couldn't open "+consoleLogFile, "")
		}
		defer f.Close()
		log = logger.New(f, "", true)
	}
	a.log = log
	a.client = a.newClient()

	reg := a.registry()
	flow := console.NewWorkflow(a.client, reg, log)
	model := console.NewModel(cmd.Context(), reg, flow, console.Options{
		Config:      a.cfg,
		Logger:      log,
		DownloadDir: downloadDir,
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil && !stderrors.Is(err, tea.ErrProgramKilled) {
		return errors.WrapWithCode(err, errors.ErrInput, "Console exited with an error", "")
	}
	return nil
}
