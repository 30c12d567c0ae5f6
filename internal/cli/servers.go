package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/pgai/internal/api"
	"github.com/rileyhilliard/pgai/internal/errors"
	"github.com/rileyhilliard/pgai/internal/onboard"
	"github.com/rileyhilliard/pgai/internal/registry"
	"github.com/rileyhilliard/pgai/internal/ui"
	"github.com/rileyhilliard/pgai/pkg/sshutil"
	"github.com/spf13/cobra"
)

// ServerAddOptions holds options for the servers add command.
type ServerAddOptions struct {
	Name           string
	IP             string
	AgentURL       string
	Install        bool
	NonInteractive bool
	InstallFlags
}

func newServersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "servers",
		Aliases: []string{"server"},
		Short:   "List, add and inspect monitored servers",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered servers",
		Long: `List every server registered with the pgai service.

Examples:
  pgai servers list
  pgai servers list --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serversList(cmd)
		},
	}

	var addOpts ServerAddOptions
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Register a server and optionally install its agent",
		Long: `Register a server with the service. With --install the agent is then
installed over SSH by the service. A failed install leaves the server
registered; retry with 'pgai agent install <server-id>'.

Examples:
  pgai servers add --name pg-01 --ip 10.0.0.5
  pgai servers add --name pg-01 --ip 10.0.0.5 --install --ssh-key ~/.ssh/deploy`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serversAdd(cmd, addOpts)
		},
	}
	addCmd.Flags().StringVar(&addOpts.Name, "name", "", "display name")
	addCmd.Flags().StringVar(&addOpts.IP, "ip", "", "IP address or hostname")
	addCmd.Flags().StringVar(&addOpts.AgentURL, "agent-url", "", "agent URL (default http://<ip>:<agent-port>)")
	addCmd.Flags().BoolVar(&addOpts.Install, "install", false, "install the agent over SSH after registering")
	addCmd.Flags().BoolVar(&addOpts.NonInteractive, "non-interactive", false, "never prompt; fail on missing values")
	AddInstallFlags(addCmd, &addOpts.InstallFlags)

	databasesCmd := &cobra.Command{
		Use:   "databases <server-id>",
		Short: "List the databases on a server",
		Long: `Ask the server's agent for its databases. These are the values accepted
by 'pgai collect --db'; "all" selects every database.

Examples:
  pgai servers databases 3f9c
  pgai servers databases 3f9c --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serversDatabases(cmd, args[0])
		},
	}

	cmd.AddCommand(listCmd, addCmd, databasesCmd)
	return cmd
}

func (a *app) serversList(cmd *cobra.Command) error {
	var servers []api.Server
	err := a.spin("Loading servers", func() error {
		var err error
		servers, err = a.client.ListServers(cmd.Context())
		return err
	})
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrAPI, "Couldn't list servers", "Check api.url and that the service is running")
	}

	if a.opts.JSON {
		return WriteJSONSuccess(a.out, servers)
	}
	if len(servers) == 0 {
		a.println("No servers registered. Add one with 'pgai servers add'.")
		return nil
	}
	a.printf("%s", renderServers(servers))
	counts := registry.StatusCounts(servers)
	a.printf("\n%d servers: %d ok, %d down, %d unknown\n",
		len(servers), counts[api.StatusOK], counts[api.StatusDown], counts[api.StatusUnknown])
	return nil
}

func renderServers(servers []api.Server) string {
	titles := []string{"ID", "NAME", "IP", "STATUS", "AGENT URL", "CREATED"}
	rows := make([][]string, 0, len(servers))
	for _, s := range servers {
		created := ""
		if !s.CreatedAt.IsZero() {
			created = s.CreatedAt.Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{s.ID, s.Name, s.IP, ui.StatusBadge(string(s.Status)), s.AgentURL, created})
	}
	return ui.RenderSimpleTable(ui.FitColumns(titles, rows, 40), rows)
}

func (a *app) serversDatabases(cmd *cobra.Command, id string) error {
	reg := a.registry()
	var dbs []string
	err := a.spin("Probing databases", func() error {
		var err error
		dbs, err = reg.Probe(cmd.Context(), id)
		return err
	})
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrAPI, "Couldn't list databases on "+id,
			"Check the agent is running: pgai agent install "+id)
	}

	if dbs == nil {
		dbs = []string{}
	}
	if a.opts.JSON {
		return WriteJSONSuccess(a.out, map[string]interface{}{
			"server_id": id,
			"databases": dbs,
			"options":   reg.Options(id),
		})
	}
	if len(dbs) == 0 {
		a.println("No databases found.")
		return nil
	}
	for _, db := range dbs {
		a.println(db)
	}
	return nil
}

func (a *app) serversAdd(cmd *cobra.Command, opts ServerAddOptions) error {
	interactive := !opts.NonInteractive && !a.opts.JSON && ui.IsTerminal(os.Stdin)
	if interactive && (opts.Name == "" || opts.IP == "") {
		if err := promptServer(&opts); err != nil {
			return err
		}
	}

	form := onboard.DefaultForm(a.cfg.Install)
	form.Name = opts.Name
	form.IP = opts.IP
	form.AgentURL = opts.AgentURL
	form.InstallViaSSH = opts.Install
	if opts.AgentPort != 0 {
		form.Install.AgentPort = opts.AgentPort
	}
	if opts.Install {
		params, err := opts.Params(a.cfg, sshutil.Lookup(strings.TrimSpace(opts.IP)), a.log)
		if err != nil {
			return err
		}
		form.Install = params
	}
	if err := form.Validate(); err != nil {
		return err
	}

	flow := onboard.New(a.client, a.log)
	var res onboard.Result
	label := "Registering " + form.Name
	if opts.Install {
		label += " and installing agent"
	}
	// The spinner reports only whether the server was created; an install
	// failure is shown below with its retry hint.
	var submitErr error
	err := a.spin(label, func() error {
		res, submitErr = flow.Submit(cmd.Context(), form)
		if res.Server.ID == "" {
			return submitErr
		}
		return nil
	})
	if err != nil {
		return err
	}

	if a.opts.JSON {
		data := map[string]interface{}{
			"server":         res.Server,
			"install_status": res.Status,
		}
		if res.InstallErr != nil {
			data["install_error"] = ErrorToJSON(res.InstallErr)
		}
		if err := WriteJSONSuccess(a.out, data); err != nil {
			return err
		}
		if submitErr != nil {
			return reportedError{submitErr}
		}
		return nil
	}

	if res.Status == onboard.InstallFailed {
		a.println(ui.Failure(res.Notice()))
	} else {
		a.println(ui.Success(res.Notice()))
	}
	a.printf("%s", ui.RenderKeyValues([]ui.KeyValue{
		{Key: "ID", Value: res.Server.ID},
		{Key: "IP", Value: res.Server.IP},
		{Key: "Agent URL", Value: res.Server.AgentURL},
		{Key: "Status", Value: ui.StatusBadge(string(res.Server.Status))},
		{Key: "Agent", Value: describeInstall(res.Status)},
	}))
	if res.ReloadErr != nil {
		a.log.Warn("server list reload failed: %v", res.ReloadErr)
	}
	return submitErr
}

// promptServer asks for the fields "servers add" needs and were not given
// as flags.
func promptServer(opts *ServerAddOptions) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Server name").
				Placeholder("pg-01").
				Value(&opts.Name),
			huh.NewInput().
				Title("IP address or hostname").
				Placeholder("10.0.0.5").
				Value(&opts.IP),
			huh.NewInput().
				Title("Agent URL").
				Description("Leave blank for http://<ip>:8010").
				Value(&opts.AgentURL),
			huh.NewConfirm().
				Title("Install the agent over SSH now?").
				Value(&opts.Install),
		),
	)
	if err := form.Run(); err != nil {
		return errors.WrapWithCode(err, errors.ErrInput,
			"Failed to get user input",
			"Pass --name and --ip, or run with --non-interactive")
	}
	return nil
}

// describeInstall renders the install status for human output.
func describeInstall(s onboard.InstallStatus) string {
	switch s {
	case onboard.InstallDone:
		return ui.SymbolSuccess + " installed"
	case onboard.InstallFailed:
		return ui.SymbolFail + " install failed"
	default:
		return fmt.Sprintf("%s skipped", ui.SymbolSkipped)
	}
}
