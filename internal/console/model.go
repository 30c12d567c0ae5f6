package console

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/pgai/internal/api"
	"github.com/rileyhilliard/pgai/internal/config"
	"github.com/rileyhilliard/pgai/internal/errors"
	"github.com/rileyhilliard/pgai/internal/logger"
	"github.com/rileyhilliard/pgai/internal/onboard"
	"github.com/rileyhilliard/pgai/internal/registry"
	"github.com/rileyhilliard/pgai/internal/selection"
	"github.com/rileyhilliard/pgai/internal/ui"
)

// Messages produced by commands. Each carries the error of the remote call so
// Update can turn it into a notice.
type (
	serversLoadedMsg struct {
		servers []api.Server
		err     error
	}

	probedMsg struct {
		id      string
		options []string
		err     error
	}

	collectedMsg struct {
		id  string
		res registry.CollectResult
		err error
	}

	latestMsg struct {
		id      string
		report  api.Report
		actions []api.ReportAction
		err     error
	}

	actionsMsg struct {
		actions []api.ReportAction
		err     error
	}

	downloadedMsg struct {
		path  string
		bytes int64
		err   error
	}

	addedMsg struct {
		res onboard.Result
		err error
	}

	noticeExpiredMsg struct {
		seq int
	}
)

type notice struct {
	text  string
	isErr bool
	seq   int
}

// Options configures a console model.
type Options struct {
	Config      *config.Config
	Logger      logger.Logger
	DownloadDir string
}

// Model is the bubbletea model for the interactive console.
type Model struct {
	ctx  context.Context
	reg  *registry.Registry
	flow *onboard.Workflow
	cfg  *config.Config
	log  logger.Logger

	downloadDir string

	table     table.Model
	optCursor int
	viewMode  ViewMode
	showHelp  bool
	quitting  bool

	notice    notice
	noticeSeq int
	noticeTTL time.Duration

	pending int
	spinner spinner.Model

	report        viewport.Model
	viewportReady bool
	width         int
	height        int

	form       *huh.Form
	formValues *formValues
	// draft holds submitted values until the server exists.
	draft *formValues
}

// NewModel creates a console over reg and flow. ctx bounds every remote call;
// cancel it to abandon in-flight requests when the console exits.
func NewModel(ctx context.Context, reg *registry.Registry, flow *onboard.Workflow, opts Options) Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	log := opts.Logger
	if log == nil {
		log = logger.Noop()
	}
	dir := opts.DownloadDir
	if dir == "" {
		dir = "."
	}

	m := Model{
		ctx:         ctx,
		reg:         reg,
		flow:        flow,
		cfg:         cfg,
		log:         log,
		downloadDir: dir,
		noticeTTL:   cfg.Console.NoticeTTL,
		spinner:     ui.NewBubbleSpinner(),
		table:       ui.NewTable(serverColumns, nil, true),
	}
	m.syncTable()
	return m
}

// Init loads the server list and starts the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), m.spinner.Tick)
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		handled, cmd := m.HandleKeyMsg(msg)
		if handled {
			return m, cmd
		}
		switch m.viewMode {
		case ViewAdd:
			return m.updateForm(msg)
		case ViewReport:
			var cmd tea.Cmd
			m.report, cmd = m.report.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// Reserve space for header and footer
		headerHeight := 3
		footerHeight := 2
		viewportHeight := m.height - headerHeight - footerHeight
		if viewportHeight < 1 {
			viewportHeight = 1
		}
		if !m.viewportReady {
			m.report = viewport.New(m.width, viewportHeight)
			m.report.YPosition = headerHeight
			m.viewportReady = true
		} else {
			m.report.Width = m.width
			m.report.Height = viewportHeight
		}
		if m.viewMode == ViewReport {
			m.updateReportContent()
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case serversLoadedMsg:
		m.pending--
		if msg.err == registry.ErrStaleList {
			return m, nil
		}
		if msg.err != nil {
			return m, m.fail("Couldn't load servers", msg.err)
		}
		m.syncTable()
		if m.cfg.Console.AutoProbe {
			cmds := make([]tea.Cmd, 0, len(msg.servers))
			for _, s := range msg.servers {
				cmds = append(cmds, m.probeCmd(s.ID, false))
			}
			return m, tea.Batch(cmds...)
		}

	case probedMsg:
		m.pending--
		m.syncTable()
		if msg.err != nil {
			if msg.err == registry.ErrStale {
				return m, nil
			}
			return m, m.fail("Probe failed for "+m.serverName(msg.id), msg.err)
		}
		if m.optCursor >= len(m.options(msg.id)) {
			m.optCursor = 0
		}

	case collectedMsg:
		m.pending--
		m.syncTable()
		if msg.err != nil {
			if msg.err == registry.ErrCollectInFlight {
				return m, m.info(msg.err.Error())
			}
			return m, m.fail("Collection failed for "+m.serverName(msg.id), msg.err)
		}
		m.enterReport()
		if msg.res.ActionsErr != nil {
			return m, m.fail("Report "+msg.res.Report.ID+" stored, actions unavailable", msg.res.ActionsErr)
		}
		return m, m.info(fmt.Sprintf("Report %s collected: %d actions", msg.res.Report.ID, len(msg.res.Actions)))

	case latestMsg:
		m.pending--
		if msg.err != nil {
			if api.IsNotFound(msg.err) {
				return m, m.info("No report yet for " + m.serverName(msg.id))
			}
			return m, m.fail("Couldn't open latest report", msg.err)
		}
		m.enterReport()

	case actionsMsg:
		m.pending--
		if m.viewMode == ViewReport {
			m.updateReportContent()
		}
		if msg.err != nil {
			return m, m.fail("Couldn't refresh actions", msg.err)
		}
		return m, m.info(fmt.Sprintf("%d actions", len(msg.actions)))

	case downloadedMsg:
		m.pending--
		if msg.err != nil {
			return m, m.fail("Download failed", msg.err)
		}
		return m, m.info(fmt.Sprintf("Saved %s (%d bytes)", msg.path, msg.bytes))

	case addedMsg:
		m.pending--
		if msg.res.Servers != nil {
			m.syncTable()
		}
		if msg.err != nil && msg.res.Status != onboard.InstallFailed {
			return m, m.rejectDraft(msg.err)
		}
		m.draft = nil
		if msg.res.Status == onboard.InstallFailed {
			return m, m.failText(msg.res.Notice())
		}
		return m, m.info(msg.res.Notice())

	case noticeExpiredMsg:
		if msg.seq == m.notice.seq {
			m.clearNotice()
		}
	}

	if m.viewMode == ViewAdd {
		return m.updateForm(msg)
	}
	return m, nil
}

// View renders the console.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.render()
}

// SelectedID returns the id of the server under the cursor, or "".
func (m Model) SelectedID() string {
	rows := m.reg.Rows()
	i := m.table.Cursor()
	if i < 0 || i >= len(rows) {
		return ""
	}
	return rows[i].Server.ID
}

// Mode returns the active view.
func (m Model) Mode() ViewMode { return m.viewMode }

// Notice returns the current footer notice, if any.
func (m Model) Notice() (string, bool) {
	return m.notice.text, m.notice.isErr
}

// Busy reports whether any remote call started by the console is in flight.
func (m Model) Busy() bool { return m.pending > 0 }

func (m *Model) serverName(id string) string {
	if row, ok := m.reg.Row(id); ok && row.Server.Name != "" {
		return row.Server.Name
	}
	return id
}

func (m *Model) info(text string) tea.Cmd {
	return m.setNotice(text, false)
}

func (m *Model) fail(msg string, err error) tea.Cmd {
	m.log.Warn("%s: %v", msg, err)
	return m.setNotice(msg+": "+errors.Notice(err), true)
}

func (m *Model) failText(text string) tea.Cmd {
	return m.setNotice(text, true)
}

func (m *Model) setNotice(text string, isErr bool) tea.Cmd {
	m.noticeSeq++
	m.notice = notice{text: text, isErr: isErr, seq: m.noticeSeq}
	if m.noticeTTL <= 0 {
		return nil
	}
	seq := m.noticeSeq
	return tea.Tick(m.noticeTTL, func(time.Time) tea.Msg {
		return noticeExpiredMsg{seq: seq}
	})
}

func (m *Model) clearNotice() {
	m.notice = notice{}
}

// syncTable rebuilds the table rows from the registry snapshot.
func (m *Model) syncTable() {
	rows := m.reg.Rows()
	tableRows := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		tableRows = append(tableRows, serverRow(r))
	}
	m.table.SetRows(tableRows)
	m.table.SetHeight(len(tableRows) + 1)
	switch c := m.table.Cursor(); {
	case len(tableRows) == 0:
	case c < 0:
		m.table.SetCursor(0)
	case c >= len(tableRows):
		m.table.SetCursor(len(tableRows) - 1)
	}
}

// options returns the toggleable entries of the detail view: database
// options first, then every metric block.
func (m *Model) options(id string) []string {
	opts := m.reg.Options(id)
	out := make([]string, 0, len(opts)+len(selection.Blocks))
	out = append(out, opts...)
	out = append(out, selection.Blocks...)
	return out
}

func (m *Model) toggleOption(id string) tea.Cmd {
	if id == "" {
		return nil
	}
	dbs := m.reg.Options(id)
	i := m.optCursor
	switch {
	case i < len(dbs):
		m.reg.Selection().ToggleDatabase(id, dbs[i])
	case i-len(dbs) < len(selection.Blocks):
		if _, err := m.reg.Selection().ToggleBlock(id, selection.Blocks[i-len(dbs)]); err != nil {
			return m.failText(err.Error())
		}
	}
	return nil
}

func (m *Model) enterReport() {
	m.viewMode = ViewReport
	m.showHelp = false
	m.updateReportContent()
	m.report.GotoTop()
}

func (m *Model) updateReportContent() {
	if !m.viewportReady {
		return
	}
	m.report.SetContent(m.renderReport())
}

// Commands

func (m *Model) loadCmd() tea.Cmd {
	m.pending++
	reg, ctx := m.reg, m.ctx
	return func() tea.Msg {
		servers, err := reg.Load(ctx)
		return serversLoadedMsg{servers: servers, err: err}
	}
}

// probeCmd probes id. refresh discards the cache first, which is how the
// operator tests connectivity again.
func (m *Model) probeCmd(id string, refresh bool) tea.Cmd {
	if id == "" {
		return nil
	}
	m.pending++
	reg, ctx := m.reg, m.ctx
	return func() tea.Msg {
		var (
			opts []string
			err  error
		)
		if refresh {
			opts, err = reg.Refresh(ctx, id)
		} else {
			opts, err = reg.Probe(ctx, id)
		}
		return probedMsg{id: id, options: opts, err: err}
	}
}

func (m *Model) collectCmd(id string) tea.Cmd {
	if id == "" {
		return nil
	}
	if row, ok := m.reg.Row(id); ok && row.Collecting {
		return m.info(registry.ErrCollectInFlight.Error())
	}
	m.pending++
	reg, ctx := m.reg, m.ctx
	return func() tea.Msg {
		res, err := reg.Collect(ctx, id)
		return collectedMsg{id: id, res: res, err: err}
	}
}

func (m *Model) latestCmd(id string) tea.Cmd {
	if id == "" {
		return nil
	}
	m.pending++
	viewer, ctx := m.reg.Viewer(), m.ctx
	return func() tea.Msg {
		rep, actions, err := viewer.OpenLatest(ctx, id)
		return latestMsg{id: id, report: rep, actions: actions, err: err}
	}
}

func (m *Model) refreshActionsCmd() tea.Cmd {
	viewer, ctx := m.reg.Viewer(), m.ctx
	if !viewer.Loaded() && !viewer.Loading() {
		if _, ok := viewer.Current(); !ok {
			return m.info("No report open")
		}
	}
	m.pending++
	return func() tea.Msg {
		actions, err := viewer.RefreshActions(ctx)
		return actionsMsg{actions: actions, err: err}
	}
}

func (m *Model) downloadCmd() tea.Cmd {
	viewer, ctx := m.reg.Viewer(), m.ctx
	rep, ok := viewer.Current()
	if !ok {
		return m.info("No report open")
	}
	m.pending++
	path := filepath.Join(m.downloadDir, "report-"+rep.ID+".json")
	return func() tea.Msg {
		f, err := os.Create(path)
		if err != nil {
			return downloadedMsg{path: path, err: err}
		}
		n, err := viewer.Download(ctx, f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
		}
		return downloadedMsg{path: path, bytes: n, err: err}
	}
}

func (m *Model) submitCmd(f onboard.Form) tea.Cmd {
	m.pending++
	flow, ctx := m.flow, m.ctx
	return func() tea.Msg {
		res, err := flow.Submit(ctx, f)
		return addedMsg{res: res, err: err}
	}
}

// reloadingGateway routes the post-onboarding reload through the registry so
// its rows and selection follow the new server list.
type reloadingGateway struct {
	onboard.Gateway
	reg *registry.Registry
}

func (g reloadingGateway) ListServers(ctx context.Context) ([]api.Server, error) {
	return g.reg.Load(ctx)
}

// NewWorkflow returns an onboarding workflow whose reloads refresh reg.
func NewWorkflow(gw onboard.Gateway, reg *registry.Registry, log logger.Logger) *onboard.Workflow {
	return onboard.New(reloadingGateway{Gateway: gw, reg: reg}, log)
}
