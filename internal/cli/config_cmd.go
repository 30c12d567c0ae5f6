package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/pgai/internal/config"
	"github.com/rileyhilliard/pgai/internal/errors"
	"github.com/rileyhilliard/pgai/internal/ui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ConfigInitOptions holds options for the config init command.
type ConfigInitOptions struct {
	Local          bool
	Force          bool
	NonInteractive bool
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and edit pgai configuration",
	}

	var initOpts ConfigInitOptions
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a config file",
		Long: `Create ~/.config/pgai/config.yaml (or ` + config.ConfigFileName + ` in the current
directory with --local) holding the service URL and install defaults.

Examples:
  pgai config init
  pgai config init --local --api-url http://10.0.0.2:8000 --non-interactive`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.configInit(initOpts)
		},
	}
	initCmd.Flags().BoolVar(&initOpts.Local, "local", false, "write "+config.ConfigFileName+" in the current directory")
	initCmd.Flags().BoolVarP(&initOpts.Force, "force", "f", false, "overwrite an existing file")
	initCmd.Flags().BoolVar(&initOpts.NonInteractive, "non-interactive", false, "use defaults and flags without prompting")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.configShow()
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a value in the config file",
		Long: `Set a dotted key in the loaded config file, keeping its comments.

Examples:
  pgai config set api.url http://10.0.0.2:8000
  pgai config set install.ssh_user ubuntu
  pgai config set console.auto_probe false`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.configSet(args[0], args[1])
		},
	}

	cmd.AddCommand(initCmd, showCmd, setCmd, newSecretCmd(a))
	return cmd
}

func (a *app) configInit(opts ConfigInitOptions) error {
	path := config.GlobalConfigPath()
	if opts.Local || path == "" {
		path = filepath.Join(".", config.ConfigFileName)
	}
	interactive := !opts.NonInteractive && !a.opts.JSON && ui.IsTerminal(os.Stdin)

	if _, err := os.Stat(path); err == nil && !opts.Force {
		if !interactive {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Config file already exists: %s", path),
				"Use --force to overwrite")
		}
		var overwrite bool
		confirm := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("%s already exists. Overwrite?", path)).
				Value(&overwrite),
		))
		if err := confirm.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrInput, "Failed to get user input",
				"Try running with --force to overwrite")
		}
		if !overwrite {
			a.println("Cancelled.")
			return nil
		}
	}

	// Start from the effective config so --api-url and env overrides carry over.
	cfg := *a.cfg
	cfg.Version = config.CurrentConfigVersion

	if interactive {
		sshPort := fmt.Sprint(cfg.Install.SSHPort)
		form := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("pgai service URL").
				Value(&cfg.API.URL).
				Validate(config.ValidateURL),
			huh.NewInput().
				Title("Default SSH user").
				Description("Leave blank to use ~/.ssh/config or $USER").
				Value(&cfg.Install.SSHUser),
			huh.NewInput().
				Title("Default SSH port").
				Value(&sshPort).
				Validate(func(s string) error {
					_, err := parsePort(s)
					return err
				}),
			huh.NewInput().
				Title("Default private key file").
				Description("Optional; used instead of an SSH password").
				Value(&cfg.Install.KeyFile),
		))
		if err := form.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrInput, "Failed to get user input",
				"Run with --non-interactive to accept defaults")
		}
		cfg.Install.SSHPort, _ = parsePort(sshPort)
		cfg.API.URL = strings.TrimRight(cfg.API.URL, "/")
	}

	if err := config.Validate(&cfg); err != nil {
		return err
	}
	if err := config.Write(path, &cfg); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Couldn't write "+path, "")
	}

	if a.opts.JSON {
		return WriteJSONSuccess(a.out, map[string]string{"path": path})
	}
	a.println(ui.Success("Wrote " + path))
	a.println(ui.Muted("Store secrets with: pgai config secret set " + config.SecretSSHPassword))
	return nil
}

func parsePort(s string) (int, error) {
	var port int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &port); err != nil {
		return 0, fmt.Errorf("port must be a number")
	}
	if err := config.ValidatePort(port); err != nil {
		return 0, err
	}
	return port, nil
}

func (a *app) configShow() error {
	if a.opts.JSON {
		return WriteJSONSuccess(a.out, map[string]interface{}{
			"path":   a.cfgPath,
			"config": a.cfg,
		})
	}
	data, err := yaml.Marshal(a.cfg)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Couldn't encode config", "")
	}
	source := a.cfgPath
	if source == "" {
		source = "defaults (no config file found)"
	}
	a.println(ui.Muted("# " + source))
	a.printf("%s", data)
	return nil
}

func (a *app) configSet(key, value string) error {
	if config.IsSecretName(key) {
		return errors.New(errors.ErrInput, key+" is a secret",
			"Use: pgai config secret set "+key)
	}
	path := a.cfgPath
	if path == "" {
		return errors.New(errors.ErrConfig, "No config file found",
			"Create one with: pgai config init")
	}

	original, err := os.ReadFile(path)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Couldn't read "+path, "")
	}
	if err := config.SetValue(path, key, value); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Couldn't set "+key, "")
	}

	// Roll back edits that leave the file unloadable or invalid.
	cfg, err := config.Load(path)
	if err == nil {
		err = config.Validate(cfg)
	}
	if err != nil {
		_ = os.WriteFile(path, original, 0o644)
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Rejected %s=%s", key, value),
			"Check the key name and value type with: pgai config show")
	}

	if a.opts.JSON {
		return WriteJSONSuccess(a.out, map[string]string{"path": path, "key": key, "value": value})
	}
	a.println(ui.Success(fmt.Sprintf("Set %s in %s", key, path)))
	return nil
}

var secretNames = []string{config.SecretSSHPassword, config.SecretPGPassword, config.SecretOpenAIKey}

func newSecretCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage secrets in the OS keyring",
		Long: `Secrets used for agent installs live in the OS keyring, never in the
config file. Environment variables (PGAI_SSH_PASSWORD, PGAI_PG_PASSWORD,
PGAI_OPENAI_API_KEY or OPENAI_API_KEY) take precedence.

Names: ` + strings.Join(secretNames, ", "),
	}

	var value string
	setCmd := &cobra.Command{
		Use:       "set <name>",
		Short:     "Store a secret",
		Args:      cobra.ExactArgs(1),
		ValidArgs: secretNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.secretSet(args[0], value)
		},
	}
	setCmd.Flags().StringVar(&value, "value", "", "secret value (prompted when omitted)")

	deleteCmd := &cobra.Command{
		Use:       "delete <name>",
		Aliases:   []string{"rm"},
		Short:     "Remove a secret",
		Args:      cobra.ExactArgs(1),
		ValidArgs: secretNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.secretDelete(args[0])
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Show which secrets are set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.secretList()
		},
	}

	cmd.AddCommand(setCmd, deleteCmd, listCmd)
	return cmd
}

func checkSecretName(name string) error {
	if !config.IsSecretName(name) {
		return errors.New(errors.ErrInput, "Unknown secret "+name,
			"Known secrets: "+strings.Join(secretNames, ", "))
	}
	return nil
}

func (a *app) secretSet(name, value string) error {
	if err := checkSecretName(name); err != nil {
		return err
	}
	if value == "" {
		if a.opts.JSON || !ui.IsTerminal(os.Stdin) {
			return errors.New(errors.ErrInput, "No value given", "Pass --value")
		}
		prompt := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title(name).
				EchoMode(huh.EchoModePassword).
				Value(&value),
		))
		if err := prompt.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrInput, "Failed to get user input", "Pass --value")
		}
	}
	if value == "" {
		return errors.New(errors.ErrInput, "Empty secret", "Use 'pgai config secret delete "+name+"' to remove it")
	}
	if err := config.StoreSecret(name, value); err != nil {
		return err
	}
	if a.opts.JSON {
		return WriteJSONSuccess(a.out, map[string]string{"name": name})
	}
	a.println(ui.Success("Stored " + name + " in the OS keyring"))
	return nil
}

func (a *app) secretDelete(name string) error {
	if err := checkSecretName(name); err != nil {
		return err
	}
	if err := config.DeleteSecret(name); err != nil {
		return err
	}
	if a.opts.JSON {
		return WriteJSONSuccess(a.out, map[string]string{"name": name})
	}
	a.println(ui.Success("Deleted " + name))
	return nil
}

func (a *app) secretList() error {
	set := make(map[string]bool, len(secretNames))
	for _, name := range secretNames {
		v, err := config.Secret(name)
		if err != nil {
			a.log.Warn("%s: %v", name, err)
		}
		set[name] = v != ""
	}

	if a.opts.JSON {
		return WriteJSONSuccess(a.out, set)
	}
	names := append([]string(nil), secretNames...)
	sort.Strings(names)
	pairs := make([]ui.KeyValue, 0, len(names))
	for _, name := range names {
		state := ui.SymbolUnchecked + " not set"
		if set[name] {
			state = ui.SymbolChecked + " set"
		}
		pairs = append(pairs, ui.KeyValue{Key: name, Value: state})
	}
	a.printf("%s", ui.RenderKeyValues(pairs))
	return nil
}
