// Package report keeps the single report currently on screen and its
// recommendation list.
//
// Only the most recently opened report is retained. Every request against the
// slot takes a sequence token; a response whose token is no longer current is
// dropped so an older answer never overwrites a newer one.
package report

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"

	"github.com/rileyhilliard/pgai/internal/api"
	"github.com/rileyhilliard/pgai/internal/logger"
)

// ErrStale is returned when a response arrived after a newer request replaced it.
var ErrStale = errors.New("response superseded by a newer request")

// ErrNoReport is returned by operations that need an open report.
var ErrNoReport = errors.New("no report is open")

// Gateway is the subset of the API client the viewer needs.
type Gateway interface {
	ListActions(ctx context.Context, reportID string) ([]api.ReportAction, error)
	LatestReport(ctx context.Context, serverID string) (api.Report, error)
	DownloadReport(ctx context.Context, reportID string, w io.Writer) (int64, error)
	DownloadReportURL(reportID string) string
}

// Viewer holds the active report slot. Safe for concurrent use.
type Viewer struct {
	gw  Gateway
	log logger.Logger

	mu      sync.Mutex
	current *api.Report
	actions []api.ReportAction
	loaded  bool
	loading bool
	seq     uint64
}

// NewViewer creates an empty viewer. A nil logger discards messages.
func NewViewer(gw Gateway, log logger.Logger) *Viewer {
	if log == nil {
		log = logger.Noop()
	}
	return &Viewer{gw: gw, log: log}
}

// Open replaces the slot with rep and clears its actions.
func (v *Viewer) Open(rep api.Report) {
	v.mu.Lock()
	defer v.mu.Unlock()
	r := rep
	v.current = &r
	v.actions = nil
	v.loaded = false
	v.loading = false
	v.seq++
}

// Close empties the slot. In-flight responses for the old report are dropped.
func (v *Viewer) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = nil
	v.actions = nil
	v.loaded = false
	v.loading = false
	v.seq++
}

// Current returns the open report.
func (v *Viewer) Current() (api.Report, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.current == nil {
		return api.Report{}, false
	}
	return *v.current, true
}

// Actions returns the loaded recommendations, highest risk first. Ties keep
// service order.
func (v *Viewer) Actions() []api.ReportAction {
	v.mu.Lock()
	defer v.mu.Unlock()
	return SortByRisk(v.actions)
}

// Loading reports whether an actions request for the open report is in flight.
func (v *Viewer) Loading() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loading
}

// Loaded reports whether the actions of the open report have been fetched.
func (v *Viewer) Loaded() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loaded
}

// RefreshActions fetches the action list for the open report. On failure the
// previous list is kept.
func (v *Viewer) RefreshActions(ctx context.Context) ([]api.ReportAction, error) {
	v.mu.Lock()
	if v.current == nil {
		v.mu.Unlock()
		return nil, ErrNoReport
	}
	v.seq++
	token := v.seq
	reportID := v.current.ID
	v.loading = true
	v.mu.Unlock()

	actions, err := v.gw.ListActions(ctx, reportID)

	v.mu.Lock()
	defer v.mu.Unlock()
	if token != v.seq {
		v.log.Debug("dropping stale actions for report %s", reportID)
		return nil, ErrStale
	}
	v.loading = false
	if err != nil {
		return nil, err
	}
	v.actions = actions
	v.loaded = true
	return SortByRisk(actions), nil
}

// OpenLatest loads the newest stored report of a server into the slot and
// fetches its actions.
func (v *Viewer) OpenLatest(ctx context.Context, serverID string) (api.Report, []api.ReportAction, error) {
	v.mu.Lock()
	v.seq++
	token := v.seq
	v.mu.Unlock()

	rep, err := v.gw.LatestReport(ctx, serverID)
	if err != nil {
		return api.Report{}, nil, err
	}

	v.mu.Lock()
	if token != v.seq {
		v.mu.Unlock()
		return api.Report{}, nil, ErrStale
	}
	v.mu.Unlock()

	v.Open(rep)
	actions, err := v.RefreshActions(ctx)
	return rep, actions, err
}

// Download writes the raw report file of the open report to w.
func (v *Viewer) Download(ctx context.Context, w io.Writer) (int64, error) {
	rep, ok := v.Current()
	if !ok {
		return 0, ErrNoReport
	}
	return v.gw.DownloadReport(ctx, rep.ID, w)
}

// DownloadURL returns the raw-report URL of the open report, or "".
func (v *Viewer) DownloadURL() string {
	rep, ok := v.Current()
	if !ok {
		return ""
	}
	return v.gw.DownloadReportURL(rep.ID)
}

// RiskSummary counts actions per risk level.
type RiskSummary struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Total returns the number of actions counted.
func (s RiskSummary) Total() int {
	return s.High + s.Medium + s.Low
}

// Summary counts the loaded actions by risk.
func (v *Viewer) Summary() RiskSummary {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Summarize(v.actions)
}

// Summarize counts actions by risk.
func Summarize(actions []api.ReportAction) RiskSummary {
	var s RiskSummary
	for _, a := range actions {
		switch a.Risk {
		case api.RiskHigh:
			s.High++
		case api.RiskMedium:
			s.Medium++
		default:
			s.Low++
		}
	}
	return s
}

// SortByRisk returns a copy of actions ordered high → low, stable within a level.
func SortByRisk(actions []api.ReportAction) []api.ReportAction {
	out := make([]api.ReportAction, len(actions))
	copy(out, actions)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Risk.Rank() > out[j].Risk.Rank()
	})
	return out
}
