package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rileyhilliard/pgai/internal/api"
	"github.com/rileyhilliard/pgai/internal/errors"
	"github.com/rileyhilliard/pgai/internal/report"
	"github.com/rileyhilliard/pgai/internal/ui"
	"github.com/spf13/cobra"
)

func newReportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "report",
		Aliases: []string{"reports"},
		Short:   "Inspect collected reports",
	}

	actionsCmd := &cobra.Command{
		Use:   "actions <report-id>",
		Short: "List the actions recommended by a report",
		Long: `List a report's recommended actions, highest risk first.

Examples:
  pgai report actions r-41
  pgai report actions r-41 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.reportActions(cmd, args[0])
		},
	}

	latestCmd := &cobra.Command{
		Use:   "latest <server-id>",
		Short: "Show a server's most recent report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.reportLatest(cmd, args[0])
		},
	}

	var output string
	var urlOnly bool
	downloadCmd := &cobra.Command{
		Use:   "download <report-id>",
		Short: "Download the raw report JSON",
		Long: `Download the raw report. The default file name is report-<id>.json;
use -o - to write to stdout, or --url to print the download link instead.

Examples:
  pgai report download r-41
  pgai report download r-41 -o - | jq .payload`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.reportDownload(cmd, args[0], output, urlOnly)
		},
	}
	downloadCmd.Flags().StringVarP(&output, "output", "o", "", "output file (- for stdout)")
	downloadCmd.Flags().BoolVar(&urlOnly, "url", false, "print the download URL only")

	cmd.AddCommand(actionsCmd, latestCmd, downloadCmd)
	return cmd
}

func (a *app) viewer() *report.Viewer {
	return report.NewViewer(a.client, a.log)
}

func (a *app) reportActions(cmd *cobra.Command, id string) error {
	v := a.viewer()
	v.Open(api.Report{ID: id})

	var actions []api.ReportAction
	err := a.spin("Loading actions", func() error {
		var err error
		actions, err = v.RefreshActions(cmd.Context())
		return err
	})
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrAPI, "Couldn't load actions for report "+id, "")
	}

	if a.opts.JSON {
		if actions == nil {
			actions = []api.ReportAction{}
		}
		return WriteJSONSuccess(a.out, map[string]interface{}{
			"report_id": id,
			"actions":   actions,
			"summary":   v.Summary(),
		})
	}
	a.printf("%s", renderActions(actions))
	return nil
}

func (a *app) reportLatest(cmd *cobra.Command, serverID string) error {
	v := a.viewer()

	var (
		rep     api.Report
		actions []api.ReportAction
	)
	err := a.spin("Loading latest report", func() error {
		var err error
		rep, actions, err = v.OpenLatest(cmd.Context(), serverID)
		return err
	})
	if err != nil {
		if api.IsNotFound(err) {
			return errors.WrapWithCode(err, errors.ErrInput, "No report yet for server "+serverID,
				"Collect one with: pgai collect "+serverID)
		}
		return errors.WrapWithCode(err, errors.ErrAPI, "Couldn't load the latest report", "")
	}

	if a.opts.JSON {
		if actions == nil {
			actions = []api.ReportAction{}
		}
		return WriteJSONSuccess(a.out, collectOutput{
			Report:  rep,
			Actions: actions,
			Summary: report.Summarize(actions),
		})
	}
	a.printf("%s\n%s", renderReport(rep), renderActions(actions))
	return nil
}

func (a *app) reportDownload(cmd *cobra.Command, id, output string, urlOnly bool) error {
	v := a.viewer()
	v.Open(api.Report{ID: id})

	if urlOnly {
		if a.opts.JSON {
			return WriteJSONSuccess(a.out, map[string]string{"url": v.DownloadURL()})
		}
		a.println(v.DownloadURL())
		return nil
	}

	if output == "" {
		output = "report-" + id + ".json"
	}

	var (
		w       io.Writer
		closeFn func() error
	)
	if output == "-" {
		w = a.out
	} else {
		f, err := os.Create(output)
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrInput, "Couldn't create "+output, "")
		}
		w, closeFn = f, f.Close
	}

	n, err := v.Download(cmd.Context(), w)
	if closeFn != nil {
		if cerr := closeFn(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(output)
		}
	}
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrAPI, "Couldn't download report "+id, "")
	}

	if output == "-" {
		return nil
	}
	if a.opts.JSON {
		return WriteJSONSuccess(a.out, map[string]interface{}{"path": output, "bytes": n})
	}
	a.println(ui.Success(fmt.Sprintf("Saved %s (%d bytes)", output, n)))
	return nil
}

// renderReport prints the report header: ids, selection and notes.
func renderReport(rep api.Report) string {
	var b strings.Builder
	pairs := []ui.KeyValue{
		{Key: "Report", Value: rep.ID},
		{Key: "Server", Value: rep.ServerID},
	}
	if !rep.CreatedAt.IsZero() {
		pairs = append(pairs, ui.KeyValue{Key: "Created", Value: rep.CreatedAt.Format("2006-01-02 15:04:05")})
	}
	if len(rep.Databases) > 0 {
		pairs = append(pairs, ui.KeyValue{Key: "Databases", Value: strings.Join(rep.Databases, ", ")})
	}
	if len(rep.Blocks) > 0 {
		pairs = append(pairs, ui.KeyValue{Key: "Blocks", Value: strings.Join(rep.Blocks, ", ")})
	}
	b.WriteString(ui.RenderKeyValues(pairs))
	for _, note := range rep.Notes() {
		b.WriteString(ui.Muted("  note: "+note) + "\n")
	}
	return b.String()
}

// renderActions prints the actions table, highest risk first.
func renderActions(actions []api.ReportAction) string {
	if len(actions) == 0 {
		return "No actions recommended.\n"
	}
	actions = report.SortByRisk(actions)

	titles := []string{"RISK", "TYPE", "TARGET", "REASON"}
	rows := make([][]string, 0, len(actions))
	for _, act := range actions {
		rows = append(rows, []string{ui.RiskBadge(string(act.Risk)), act.Type, act.Target, act.Reason})
	}

	sum := report.Summarize(actions)
	return ui.RenderSimpleTable(ui.FitColumns(titles, rows, 60), rows) +
		fmt.Sprintf("\n%d actions: %d high, %d medium, %d low\n", sum.Total(), sum.High, sum.Medium, sum.Low)
}
