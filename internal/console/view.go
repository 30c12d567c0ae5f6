package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/pgai/internal/api"
	"github.com/rileyhilliard/pgai/internal/registry"
	"github.com/rileyhilliard/pgai/internal/report"
	"github.com/rileyhilliard/pgai/internal/ui"
)

var serverColumns = []ui.TableColumn{
	{Title: "Name", Width: 18},
	{Title: "IP", Width: 16},
	{Title: "Status", Width: 12},
	{Title: "Agent URL", Width: 28},
	{Title: "Databases", Width: 14},
}

func serverRow(r registry.Row) table.Row {
	return table.Row{
		r.Server.Name,
		r.Server.IP,
		ui.StatusBadge(string(r.Server.Status)),
		r.Server.AgentURL,
		probeLabel(r),
	}
}

func probeLabel(r registry.Row) string {
	switch {
	case r.Collecting:
		return "collecting"
	case r.State == registry.Probed:
		return fmt.Sprintf("%d found", len(r.Databases))
	default:
		return r.State.String()
	}
}

func (m Model) render() string {
	if m.showHelp {
		return m.renderHelpOverlay()
	}

	var sections []string
	sections = append(sections, m.renderHeader())

	switch m.viewMode {
	case ViewAdd:
		if m.form != nil {
			sections = append(sections, PanelStyle.Render(m.form.View()))
		}
	case ViewReport:
		if m.viewportReady {
			sections = append(sections, m.report.View())
		} else {
			sections = append(sections, m.renderReport())
		}
	case ViewDetail:
		sections = append(sections, m.table.View(), m.renderDetail())
	default:
		if len(m.table.Rows()) == 0 {
			sections = append(sections, LabelStyle.Render("  No servers registered. Press a to add one."))
		} else {
			sections = append(sections, m.table.View())
		}
	}

	sections = append(sections, m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	rows := m.reg.Rows()
	servers := make([]api.Server, 0, len(rows))
	for _, r := range rows {
		servers = append(servers, r.Server)
	}
	counts := registry.StatusCounts(servers)

	title := TitleStyle.Render("pgai")
	stats := fmt.Sprintf("%d servers  %s %d  %s %d  %s %d",
		len(servers),
		ui.StatusBadge(string(api.StatusOK)), counts[api.StatusOK],
		ui.StatusBadge(string(api.StatusDown)), counts[api.StatusDown],
		ui.StatusBadge(string(api.StatusUnknown)), counts[api.StatusUnknown])
	if m.Busy() {
		stats += "  " + m.spinner.View()
	}
	return HeaderStyle.Render(title + "  " + stats)
}

// renderDetail lists the database options and metric blocks of the selected
// server with their checked state.
func (m Model) renderDetail() string {
	id := m.SelectedID()
	row, ok := m.reg.Row(id)
	if !ok {
		return ""
	}

	var lines []string
	lines = append(lines, TitleStyle.Render(row.Server.Name))
	if row.LastError != "" {
		lines = append(lines, ErrorNoticeStyle.Render(row.LastError))
	}

	dbs := m.reg.Options(id)
	switch row.State {
	case registry.Probing:
		lines = append(lines, LabelStyle.Render("Databases: ")+m.spinner.View()+" probing")
	case registry.Unprobed:
		lines = append(lines, LabelStyle.Render("Databases: not probed (t to test)"))
	default:
		lines = append(lines, LabelStyle.Render("Databases"))
	}

	i := 0
	for _, db := range dbs {
		lines = append(lines, m.optionLine(i, db, contains(row.Selected, db)))
		i++
	}
	lines = append(lines, "", LabelStyle.Render("Blocks"))
	for _, b := range m.options(id)[len(dbs):] {
		lines = append(lines, m.optionLine(i, b, contains(row.Blocks, b)))
		i++
	}
	return PanelStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) optionLine(i int, label string, checked bool) string {
	cursor := " "
	if i == m.optCursor {
		cursor = CursorStyle.Render(ui.SymbolCursor)
	}
	box := ui.SymbolUnchecked
	if checked {
		box = ui.SymbolChecked
	}
	return fmt.Sprintf("%s %s %s", cursor, box, label)
}

// renderReport formats the open report and its actions for the viewport.
func (m Model) renderReport() string {
	viewer := m.reg.Viewer()
	rep, ok := viewer.Current()
	if !ok {
		return LabelStyle.Render("No report open")
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Report "+rep.ID) + "\n")
	pairs := []ui.KeyValue{
		{Key: "Server", Value: m.serverName(rep.ServerID)},
		{Key: "Created", Value: rep.CreatedAt.Format("2006-01-02 15:04:05")},
	}
	if len(rep.Databases) > 0 {
		pairs = append(pairs, ui.KeyValue{Key: "Databases", Value: strings.Join(rep.Databases, ", ")})
	}
	if len(rep.Blocks) > 0 {
		pairs = append(pairs, ui.KeyValue{Key: "Blocks", Value: strings.Join(rep.Blocks, ", ")})
	}
	b.WriteString(ui.RenderKeyValues(pairs) + "\n")

	if notes := rep.Notes(); len(notes) > 0 {
		b.WriteString("\n" + LabelStyle.Render("Notes") + "\n")
		for _, n := range notes {
			b.WriteString("  - " + n + "\n")
		}
	}

	b.WriteString("\n")
	switch {
	case viewer.Loading():
		b.WriteString(m.spinner.View() + " loading actions\n")
	case !viewer.Loaded():
		b.WriteString(LabelStyle.Render("Actions not loaded (R to refresh)") + "\n")
	default:
		b.WriteString(renderActions(viewer.Summary(), viewer.Actions()))
	}
	return b.String()
}

func renderActions(sum report.RiskSummary, actions []api.ReportAction) string {
	if len(actions) == 0 {
		return LabelStyle.Render("No actions recommended") + "\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d actions  %s %d  %s %d  %s %d\n\n", sum.Total(),
		ui.RiskBadge(string(api.RiskHigh)), sum.High,
		ui.RiskBadge(string(api.RiskMedium)), sum.Medium,
		ui.RiskBadge(string(api.RiskLow)), sum.Low)
	for _, a := range actions {
		fmt.Fprintf(&b, "%s %s %s\n", ui.RiskBadge(string(a.Risk)), a.Type, a.Target)
		if a.Reason != "" {
			b.WriteString("    " + LabelStyle.Render(a.Reason) + "\n")
		}
	}
	return b.String()
}

func (m Model) renderFooter() string {
	if m.notice.text != "" {
		if m.notice.isErr {
			return ErrorNoticeStyle.Render(ui.SymbolFail + " " + m.notice.text)
		}
		return NoticeStyle.Render(ui.SymbolSuccess + " " + m.notice.text)
	}

	var hint string
	switch m.viewMode {
	case ViewAdd:
		hint = "esc cancel"
	case ViewReport:
		hint = "R refresh actions  d download  esc back  ? help"
	case ViewDetail:
		hint = "space toggle  c collect  t test  l latest  esc back  ? help"
	default:
		hint = "enter expand  c collect  a add  r reload  q quit  ? help"
	}
	return FooterStyle.Render(hint)
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
