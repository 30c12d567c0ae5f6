package cli

import (
	"strings"

	"github.com/rileyhilliard/pgai/internal/api"
	"github.com/rileyhilliard/pgai/internal/errors"
	"github.com/rileyhilliard/pgai/internal/onboard"
	"github.com/rileyhilliard/pgai/internal/ui"
	"github.com/rileyhilliard/pgai/pkg/sshutil"
	"github.com/spf13/cobra"
)

func newAgentCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage the monitoring agent on a server",
	}

	var flags InstallFlags
	installCmd := &cobra.Command{
		Use:   "install <server-id>",
		Short: "Install (or reinstall) the agent on a registered server",
		Long: `Ask the service to install the agent over SSH on a server that is
already registered. Use this to retry after 'pgai servers add --install'
failed; the server itself is never re-created.

SSH user and port default to install.ssh_user/ssh_port, then the matching
Host entry in ~/.ssh/config. Secrets come from flags, environment variables
or the OS keyring (see 'pgai config secret').

Examples:
  pgai agent install 3f9c --ssh-key ~/.ssh/deploy
  pgai agent install 3f9c --ssh-user ubuntu --ssh-password '...' --pg-password '...'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.agentInstall(cmd, args[0], flags)
		},
	}
	AddInstallFlags(installCmd, &flags)

	cmd.AddCommand(installCmd)
	return cmd
}

func (a *app) agentInstall(cmd *cobra.Command, id string, flags InstallFlags) error {
	ctx := cmd.Context()

	servers, err := a.client.ListServers(ctx)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrAPI, "Couldn't list servers", "")
	}
	var target *api.Server
	for i := range servers {
		if servers[i].ID == id {
			target = &servers[i]
			break
		}
	}
	if target == nil {
		return errors.New(errors.ErrInput, "No server with id "+id,
			"List servers with: pgai servers list")
	}

	params, err := flags.Params(a.cfg, sshutil.Lookup(strings.TrimSpace(target.IP)), a.log)
	if err != nil {
		return err
	}

	flow := onboard.New(a.client, a.log)
	var updated *api.Server
	err = a.spin("Installing agent on "+target.Name, func() error {
		var err error
		updated, err = flow.Install(ctx, id, params)
		return err
	})
	if err != nil {
		return err
	}
	if updated == nil {
		updated = target
	}

	if a.opts.JSON {
		return WriteJSONSuccess(a.out, map[string]interface{}{
			"server":         updated,
			"install_status": onboard.InstallDone,
		})
	}
	a.println(ui.Success("Agent installed on " + updated.Name))
	a.printf("%s", ui.RenderKeyValues([]ui.KeyValue{
		{Key: "Agent URL", Value: updated.AgentURL},
		{Key: "Status", Value: ui.StatusBadge(string(updated.Status))},
	}))
	return nil
}
