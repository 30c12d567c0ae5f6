package console

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/pgai/internal/registry"
)

// ViewMode defines the current display mode of the console.
type ViewMode int

const (
	ViewList ViewMode = iota
	ViewDetail
	ViewReport
	ViewAdd
)

func (v ViewMode) String() string {
	switch v {
	case ViewDetail:
		return "detail"
	case ViewReport:
		return "report"
	case ViewAdd:
		return "add"
	default:
		return "list"
	}
}

// Key bindings as constants for consistency.
const (
	KeyQuit           = "q"
	KeyQuitAlt        = "ctrl+c"
	KeyReload         = "r"
	KeyRefreshActions = "R"
	KeySelectPrev     = "up"
	KeySelectPrevK    = "k"
	KeySelectNext     = "down"
	KeySelectNextJ    = "j"
	KeyExpand         = "enter"
	KeyCollapse       = "esc"
	KeyToggle         = " "
	KeyToggleAlt      = "space"
	KeyCollect        = "c"
	KeyTest           = "t"
	KeyAdd            = "a"
	KeyLatest         = "l"
	KeyShowReport     = "v"
	KeyDownload       = "d"
	KeyToggleHelp     = "?"
)

// HandleKeyMsg processes keyboard input and returns the command to run.
// Returns true if the key was handled, false otherwise.
func (m *Model) HandleKeyMsg(msg tea.KeyMsg) (bool, tea.Cmd) {
	key := msg.String()

	if key == KeyQuitAlt {
		m.quitting = true
		return true, tea.Quit
	}

	// The add form owns the keyboard while open.
	if m.viewMode == ViewAdd {
		if key == KeyCollapse {
			m.closeForm()
			return true, nil
		}
		return false, nil
	}

	// Any key dismisses the current notice.
	m.clearNotice()

	// Help toggle takes priority
	if key == KeyToggleHelp {
		m.showHelp = !m.showHelp
		return true, nil
	}

	// If help is showing, Esc closes it
	if m.showHelp && key == KeyCollapse {
		m.showHelp = false
		return true, nil
	}

	switch key {
	case KeyQuit:
		m.quitting = true
		return true, tea.Quit

	case KeyCollapse:
		m.viewMode = ViewList
		return true, nil

	case KeyReload:
		if m.viewMode == ViewReport {
			return true, nil
		}
		return true, m.loadCmd()

	case KeyAdd:
		return true, m.openForm()
	}

	switch m.viewMode {
	case ViewReport:
		return m.handleReportKey(key)
	case ViewDetail:
		return m.handleDetailKey(key)
	default:
		return m.handleListKey(key)
	}
}

func (m *Model) handleListKey(key string) (bool, tea.Cmd) {
	switch key {
	case KeySelectPrev, KeySelectPrevK:
		m.table.MoveUp(1)
		return true, nil

	case KeySelectNext, KeySelectNextJ:
		m.table.MoveDown(1)
		return true, nil

	case KeyExpand:
		id := m.SelectedID()
		if id == "" {
			return true, nil
		}
		m.viewMode = ViewDetail
		m.optCursor = 0
		if row, ok := m.reg.Row(id); ok && row.State == registry.Unprobed {
			return true, m.probeCmd(id, false)
		}
		return true, nil

	case KeyCollect:
		return true, m.collectCmd(m.SelectedID())

	case KeyTest:
		return true, m.probeCmd(m.SelectedID(), true)

	case KeyLatest:
		return true, m.latestCmd(m.SelectedID())

	case KeyShowReport:
		if _, ok := m.reg.Viewer().Current(); ok {
			m.enterReport()
		}
		return true, nil
	}
	return false, nil
}

func (m *Model) handleDetailKey(key string) (bool, tea.Cmd) {
	id := m.SelectedID()
	switch key {
	case KeySelectPrev, KeySelectPrevK:
		if m.optCursor > 0 {
			m.optCursor--
		}
		return true, nil

	case KeySelectNext, KeySelectNextJ:
		if m.optCursor < len(m.options(id))-1 {
			m.optCursor++
		}
		return true, nil

	case KeyToggle, KeyToggleAlt:
		return true, m.toggleOption(id)

	case KeyCollect:
		return true, m.collectCmd(id)

	case KeyTest:
		m.optCursor = 0
		return true, m.probeCmd(id, true)

	case KeyLatest:
		return true, m.latestCmd(id)
	}
	return false, nil
}

func (m *Model) handleReportKey(key string) (bool, tea.Cmd) {
	switch key {
	case KeyRefreshActions:
		return true, m.refreshActionsCmd()
	case KeyDownload:
		return true, m.downloadCmd()
	}
	// Unhandled keys scroll the viewport.
	return false, nil
}
