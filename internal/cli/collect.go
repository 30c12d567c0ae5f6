package cli

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/pgai/internal/api"
	"github.com/rileyhilliard/pgai/internal/errors"
	"github.com/rileyhilliard/pgai/internal/registry"
	"github.com/rileyhilliard/pgai/internal/report"
	"github.com/rileyhilliard/pgai/internal/selection"
	"github.com/rileyhilliard/pgai/internal/ui"
	"github.com/spf13/cobra"
)

// CollectOptions holds options for the collect command.
type CollectOptions struct {
	Databases []string
	Blocks    []string
}

func newCollectCmd(a *app) *cobra.Command {
	var opts CollectOptions
	cmd := &cobra.Command{
		Use:   "collect <server-id>",
		Short: "Collect a diagnostic report from a server",
		Long: fmt.Sprintf(`Run a collection on the server's agent and print the resulting report
and its recommended actions.

Without --db every database is collected ("all"). Without --block the
default blocks are used: %s.

Blocks: %s

Examples:
  pgai collect 3f9c
  pgai collect 3f9c --db app --db analytics
  pgai collect 3f9c --block system --block sizes --json`,
			strings.Join(selection.DefaultBlocks(), ", "),
			strings.Join(selection.Blocks, ", ")),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.collect(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringArrayVar(&opts.Databases, "db", nil, `database to include (repeatable, "all" for every database)`)
	cmd.Flags().StringArrayVar(&opts.Blocks, "block", nil, "metric block to include (repeatable)")
	return cmd
}

// collectOutput is the --json shape of a collection.
type collectOutput struct {
	Report     api.Report         `json:"report"`
	Actions    []api.ReportAction `json:"actions"`
	Summary    report.RiskSummary `json:"summary"`
	ActionsErr *JSONError         `json:"actions_error,omitempty"`
}

func (a *app) collect(cmd *cobra.Command, id string, opts CollectOptions) error {
	reg := a.registry()
	sel := reg.Selection()
	if len(opts.Databases) > 0 {
		sel.SetDatabases(id, opts.Databases)
	}
	if len(opts.Blocks) > 0 {
		if err := sel.SetBlocks(id, opts.Blocks); err != nil {
			return errors.WrapWithCode(err, errors.ErrInput, "Invalid --block",
				"Valid blocks: "+strings.Join(selection.Blocks, ", "))
		}
	}

	var res registry.CollectResult
	err := a.spin("Collecting from "+id, func() error {
		var err error
		res, err = reg.Collect(cmd.Context(), id)
		return err
	})
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrAPI, "Collection failed on "+id, "")
	}

	if a.opts.JSON {
		out := collectOutput{
			Report:  res.Report,
			Actions: res.Actions,
			Summary: report.Summarize(res.Actions),
		}
		if out.Actions == nil {
			out.Actions = []api.ReportAction{}
		}
		if res.ActionsErr != nil {
			out.ActionsErr = ErrorToJSON(res.ActionsErr)
		}
		return WriteJSONSuccess(a.out, out)
	}

	a.printf("%s", renderReport(res.Report))
	if res.ActionsErr != nil {
		a.println(ui.Failure("Actions unavailable: " + errors.Notice(res.ActionsErr)))
		a.println(ui.Muted("Retry with: pgai report actions " + res.Report.ID))
		return nil
	}
	a.printf("\n%s", renderActions(res.Actions))
	return nil
}
