package cli

import (
	"github.com/rileyhilliard/pgai/internal/errors"
	"github.com/spf13/cobra"
)

func newCompletionCmd(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion script",
		Long: `Generate shell completion scripts for pgai.

Examples:
  # Bash
  pgai completion bash > /etc/bash_completion.d/pgai

  # Zsh
  pgai completion zsh > "${fpath[1]}/_pgai"

  # Fish
  pgai completion fish > ~/.config/fish/completions/pgai.fish`,
		ValidArgs:         []string{"bash", "zsh", "fish", "powershell"},
		Args:              cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return root.GenBashCompletion(out)
			case "zsh":
				return root.GenZshCompletion(out)
			case "fish":
				return root.GenFishCompletion(out, true)
			case "powershell":
				return root.GenPowerShellCompletion(out)
			default:
				return errors.New(errors.ErrInput,
					"Unknown shell: "+args[0],
					"Supported shells: bash, zsh, fish, powershell")
			}
		},
	}
}
