// Package registry tracks the server list and the per-server state the
// console and CLI act on: lazily probed database lists, collection guards and
// the selection of each row.
//
// Each row moves through Unprobed -> Probing -> Probed. A failed probe drops
// the row back to Unprobed so the operator can retry. Collecting is a separate
// flag that blocks re-entrant collection for the same server.
package registry

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rileyhilliard/pgai/internal/api"
	"github.com/rileyhilliard/pgai/internal/logger"
	"github.com/rileyhilliard/pgai/internal/report"
	"github.com/rileyhilliard/pgai/internal/selection"
	"golang.org/x/sync/singleflight"
)

// ErrCollectInFlight is returned when a collection for the same server is
// already running.
var ErrCollectInFlight = errors.New("a collection is already running for this server")

// ErrStale is returned when a probe answer was superseded by a refresh.
var ErrStale = errors.New("probe superseded by a newer request")

// ErrStaleList is returned by Load when a later reload finished first.
var ErrStaleList = errors.New("server list superseded by a newer reload")

// ProbeState is the database-discovery state of one row.
type ProbeState int

const (
	Unprobed ProbeState = iota
	Probing
	Probed
)

func (s ProbeState) String() string {
	switch s {
	case Probing:
		return "probing"
	case Probed:
		return "probed"
	default:
		return "unprobed"
	}
}

// Gateway is the subset of the API client the registry calls.
type Gateway interface {
	ListServers(ctx context.Context) ([]api.Server, error)
	ListDatabases(ctx context.Context, serverID string) ([]string, error)
	Collect(ctx context.Context, serverID string, req api.CollectRequest) (api.Report, error)
}

// Row is a snapshot of one server and its client-side state.
type Row struct {
	Server     api.Server
	State      ProbeState
	Databases  []string
	Collecting bool
	Selected   []string
	Blocks     []string
	LastError  string
}

// CollectResult is what a successful collection produced. ActionsErr is set
// when the report was stored but its actions could not be fetched.
type CollectResult struct {
	Report     api.Report
	Actions    []api.ReportAction
	ActionsErr error
}

type rowState struct {
	state      ProbeState
	databases  []string
	collecting bool
	probeSeq   uint64
	lastErr    string
}

// Registry is safe for concurrent use.
type Registry struct {
	gw     Gateway
	sel    *selection.Store
	viewer *report.Viewer
	log    logger.Logger
	probes singleflight.Group

	mu      sync.Mutex
	servers []api.Server
	rows    map[string]*rowState
	loadSeq uint64
}

// New creates a registry. sel and viewer are shared with the caller so the
// console can render them directly.
func New(gw Gateway, sel *selection.Store, viewer *report.Viewer, log logger.Logger) *Registry {
	if log == nil {
		log = logger.Noop()
	}
	if sel == nil {
		sel = selection.NewStore()
	}
	return &Registry{
		gw:     gw,
		sel:    sel,
		viewer: viewer,
		log:    log,
		rows:   make(map[string]*rowState),
	}
}

// Selection returns the selection store backing the registry.
func (r *Registry) Selection() *selection.Store { return r.sel }

// Viewer returns the report viewer collections are opened in.
func (r *Registry) Viewer() *report.Viewer { return r.viewer }

func (r *Registry) row(id string) *rowState {
	rs, ok := r.rows[id]
	if !ok {
		rs = &rowState{}
		r.rows[id] = rs
	}
	return rs
}

// Load fetches the server list. State of servers that are no longer listed is
// dropped; rows that remain keep their cache and selection. On failure the
// previous list stays in place.
func (r *Registry) Load(ctx context.Context) ([]api.Server, error) {
	r.mu.Lock()
	r.loadSeq++
	token := r.loadSeq
	r.mu.Unlock()

	servers, err := r.gw.ListServers(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if token != r.loadSeq {
		r.log.Debug("dropping stale server list")
		return nil, ErrStaleList
	}

	ids := make([]string, len(servers))
	keep := make(map[string]bool, len(servers))
	for i, s := range servers {
		ids[i] = s.ID
		keep[s.ID] = true
	}
	for id, rs := range r.rows {
		if !keep[id] && !rs.collecting && rs.state != Probing {
			delete(r.rows, id)
		}
	}
	r.sel.Retain(ids)
	r.servers = append([]api.Server(nil), servers...)
	return append([]api.Server(nil), servers...), nil
}

// Servers returns the last loaded server list.
func (r *Registry) Servers() []api.Server {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]api.Server(nil), r.servers...)
}

// Probe returns the server's database list, asking the agent on first use.
// Concurrent probes of one server share a single request; a probed row answers
// from cache. Defaults are applied to the selection once, on first success.
func (r *Registry) Probe(ctx context.Context, id string) ([]string, error) {
	v, err, shared := r.probes.Do(id, func() (interface{}, error) {
		return r.probe(ctx, id)
	})
	if shared {
		r.log.Debug("joined in-flight probe for %s", id)
	}
	if err != nil {
		return nil, err
	}
	return clone(v.([]string)), nil
}

func (r *Registry) probe(ctx context.Context, id string) ([]string, error) {
	r.mu.Lock()
	rs := r.row(id)
	if rs.state == Probed {
		dbs := clone(rs.databases)
		r.mu.Unlock()
		return dbs, nil
	}
	rs.state = Probing
	rs.probeSeq++
	token := rs.probeSeq
	r.mu.Unlock()

	dbs, err := r.gw.ListDatabases(ctx, id)

	r.mu.Lock()
	defer r.mu.Unlock()
	rs = r.row(id)
	if token != rs.probeSeq {
		r.log.Debug("dropping stale probe for %s", id)
		return nil, ErrStale
	}
	if err != nil {
		rs.state = Unprobed
		rs.databases = nil
		rs.lastErr = err.Error()
		r.log.Debug("probe %s failed: %v", id, err)
		return nil, err
	}
	rs.state = Probed
	rs.databases = clone(dbs)
	rs.lastErr = ""
	if r.sel.ApplyDefaults(id) {
		r.log.Debug("applied default selection for %s", id)
	}
	return clone(dbs), nil
}

// Refresh drops the cached database list of one server and probes it again.
// The selection is left untouched. An earlier probe still in flight is
// discarded when it answers.
func (r *Registry) Refresh(ctx context.Context, id string) ([]string, error) {
	r.mu.Lock()
	rs := r.row(id)
	rs.state = Unprobed
	rs.databases = nil
	rs.probeSeq++
	r.mu.Unlock()

	r.probes.Forget(id)
	return r.Probe(ctx, id)
}

// Options returns the choices the database selector offers: "all" followed by
// the probed databases. Nil until the row is probed.
func (r *Registry) Options(id string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	rs, ok := r.rows[id]
	if !ok || rs.state != Probed {
		return nil
	}
	opts := make([]string, 0, len(rs.databases)+1)
	opts = append(opts, selection.AllDatabases)
	for _, db := range rs.databases {
		if db != selection.AllDatabases {
			opts = append(opts, db)
		}
	}
	return opts
}

// Collect runs a collection with the server's current selection. The row is
// probed first when needed. On success the report is opened in the viewer and
// its actions are fetched once.
func (r *Registry) Collect(ctx context.Context, id string) (CollectResult, error) {
	r.mu.Lock()
	rs := r.row(id)
	if rs.collecting {
		r.mu.Unlock()
		return CollectResult{}, ErrCollectInFlight
	}
	rs.collecting = true
	probed := rs.state == Probed
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.row(id).collecting = false
		r.mu.Unlock()
	}()

	if !probed {
		if _, err := r.Probe(ctx, id); err != nil {
			return CollectResult{}, err
		}
	}

	req := api.CollectRequest{
		Databases: r.sel.Databases(id),
		Blocks:    r.sel.Blocks(id),
	}
	r.log.Debug("collect %s databases=%v blocks=%v", id, req.Databases, req.Blocks)

	rep, err := r.gw.Collect(ctx, id, req)
	if err != nil {
		r.mu.Lock()
		r.row(id).lastErr = err.Error()
		r.mu.Unlock()
		return CollectResult{}, err
	}

	res := CollectResult{Report: rep}
	if r.viewer != nil {
		r.viewer.Open(rep)
		res.Actions, res.ActionsErr = r.viewer.RefreshActions(ctx)
	}
	return res, nil
}

// Rows returns a snapshot of every loaded server, in list order.
func (r *Registry) Rows() []Row {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := make([]Row, 0, len(r.servers))
	for _, s := range r.servers {
		rows = append(rows, r.snapshot(s))
	}
	return rows
}

// Row returns the snapshot of one server.
func (r *Registry) Row(id string) (Row, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.servers {
		if s.ID == id {
			return r.snapshot(s), true
		}
	}
	return Row{}, false
}

func (r *Registry) snapshot(s api.Server) Row {
	row := Row{
		Server:   s,
		Selected: r.sel.Databases(s.ID),
		Blocks:   r.sel.Blocks(s.ID),
	}
	if rs, ok := r.rows[s.ID]; ok {
		row.State = rs.state
		row.Databases = clone(rs.databases)
		row.Collecting = rs.collecting
		row.LastError = rs.lastErr
	}
	return row
}

// StatusCounts tallies servers by reported status.
func StatusCounts(servers []api.Server) map[api.ServerStatus]int {
	counts := make(map[api.ServerStatus]int)
	for _, s := range servers {
		counts[s.Status]++
	}
	return counts
}

// SortByName orders servers by display name, then id.
func SortByName(servers []api.Server) {
	sort.SliceStable(servers, func(i, j int) bool {
		if servers[i].Name != servers[j].Name {
			return servers[i].Name < servers[j].Name
		}
		return servers[i].ID < servers[j].ID
	})
}

func clone(values []string) []string {
	if values == nil {
		return nil
	}
	return append([]string(nil), values...)
}
