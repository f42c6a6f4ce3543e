// Package dashboard holds the prospection session: the selected commune, its
// record collection, the fetch status, year bounds and the active view.
package dashboard

import (
	"context"
	"fmt"
	"sync"

	"dpehub_backend/internal/dpe/domain"
	"dpehub_backend/internal/dpe/filter"
	"dpehub_backend/internal/dpe/service"
	"dpehub_backend/platform/events"
	"dpehub_backend/platform/logger"
)

// TableRowLimit caps the rows rendered by the table view.
const TableRowLimit = 500

// Status is the fetch status of the session.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ViewMode selects between the table and the map.
type ViewMode string

const (
	ViewTable ViewMode = "table"
	ViewMap   ViewMode = "map"
)

// ParseViewMode validates a view name.
func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(s) {
	case ViewTable, ViewMap:
		return ViewMode(s), nil
	default:
		return "", fmt.Errorf("unknown view %q", s)
	}
}

// Fetcher loads the records of a commune. It never fails; errors are
// reported through service.WithFailureHook.
type Fetcher interface {
	Fetch(ctx context.Context, commune string, opts ...service.FetchOption) service.FetchOutcome
}

// FocusPoint is the last map focus request.
type FocusPoint struct {
	Latitude  float64
	Longitude float64
	RecordID  string
}

// State is a point-in-time copy of the session.
type State struct {
	Commune string
	Status  Status
	Total   int
	Loaded  int
	Bounds  filter.YearRange
	View    ViewMode
	Focus   *FocusPoint
}

// View is the filtered projection of the session records.
type View struct {
	// Records is the whole filtered subset, in upstream order.
	Records []domain.DpeResult
	// Rows is the prefix of Records shown by the table.
	Rows []domain.DpeResult
	// Mapped holds the filtered records that have coordinates.
	Mapped  []domain.DpeResult
	Summary filter.Summary
}

// Dashboard is safe for concurrent use.
type Dashboard struct {
	fetcher Fetcher
	bus     events.Bus
	log     *logger.Logger

	mu      sync.Mutex
	commune string
	status  Status
	total   int
	records []domain.DpeResult
	bounds  filter.YearRange
	view    ViewMode
	focus   *FocusPoint

	// version changes whenever records or bounds do; cached is valid for
	// cachedVersion only.
	version       uint64
	cached        *View
	cachedVersion uint64
}

// New creates an idle dashboard preset on commune.
func New(fetcher Fetcher, bus events.Bus, log *logger.Logger, commune string) *Dashboard {
	return &Dashboard{
		fetcher: fetcher,
		bus:     bus,
		log:     log,
		commune: commune,
		status:  StatusIdle,
		records: []domain.DpeResult{},
		view:    ViewTable,
	}
}

// SelectCommune makes commune current and loads its records. The previous
// collection stays visible while loading and is replaced wholesale once the
// fetch completes. In-flight fetches are not cancelled, so a slow response
// may land after a newer selection.
func (d *Dashboard) SelectCommune(ctx context.Context, commune string) State {
	d.mu.Lock()
	d.commune = commune
	d.mu.Unlock()
	return d.load(ctx, commune)
}

// Reload fetches the current commune again.
func (d *Dashboard) Reload(ctx context.Context) State {
	d.mu.Lock()
	commune := d.commune
	d.mu.Unlock()
	return d.load(ctx, commune)
}

func (d *Dashboard) load(ctx context.Context, commune string) State {
	d.setStatus(ctx, commune, StatusLoading, 0)

	var failed error
	outcome := d.fetcher.Fetch(ctx, commune, service.WithFailureHook(func(err error) {
		failed = err
	}))

	status := StatusSuccess
	if failed != nil {
		status = StatusError
	}

	d.mu.Lock()
	d.records = outcome.Results
	d.total = outcome.Total
	d.status = status
	d.version++
	state := d.stateLocked()
	d.mu.Unlock()

	d.log.WithContext(ctx).Debug("dashboard loaded", "commune", commune, "status", status, "records", len(outcome.Results))
	d.publish(ctx, StatusChanged{BaseEvent: events.NewBaseEvent(), Commune: commune, Status: status, Total: outcome.Total})
	return state
}

func (d *Dashboard) setStatus(ctx context.Context, commune string, status Status, total int) {
	d.mu.Lock()
	d.status = status
	d.mu.Unlock()
	d.publish(ctx, StatusChanged{BaseEvent: events.NewBaseEvent(), Commune: commune, Status: status, Total: total})
}

// SetYearBounds replaces the year filter. Nil bounds are open.
func (d *Dashboard) SetYearBounds(minYear, maxYear *int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bounds = filter.NewYearRange(copyInt(minYear), copyInt(maxYear))
	d.version++
}

// SetView switches between table and map.
func (d *Dashboard) SetView(view ViewMode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.view = view
}

// FocusOn switches to the map and asks it to center on a record.
func (d *Dashboard) FocusOn(ctx context.Context, lat, lon float64, id string) {
	d.mu.Lock()
	d.view = ViewMap
	d.focus = &FocusPoint{Latitude: lat, Longitude: lon, RecordID: id}
	d.mu.Unlock()

	d.publish(ctx, MapFocusRequested{
		BaseEvent: events.NewBaseEvent(),
		Latitude:  lat,
		Longitude: lon,
		RecordID:  id,
	})
}

// State returns a copy of the session.
func (d *Dashboard) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stateLocked()
}

// View returns the filtered projection. It is recomputed only after the
// records or the year bounds changed.
func (d *Dashboard) View() View {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cached != nil && d.cachedVersion == d.version {
		return *d.cached
	}

	filtered := filter.ApplyYearRange(d.records, d.bounds)
	v := View{
		Records: filtered,
		Rows:    filtered[:min(len(filtered), TableRowLimit)],
		Mapped:  withPosition(filtered),
		Summary: filter.Summarize(filtered),
	}
	d.cached = &v
	d.cachedVersion = d.version
	return v
}

func (d *Dashboard) stateLocked() State {
	s := State{
		Commune: d.commune,
		Status:  d.status,
		Total:   d.total,
		Loaded:  len(d.records),
		Bounds:  filter.NewYearRange(copyInt(d.bounds.Min), copyInt(d.bounds.Max)),
		View:    d.view,
	}
	if d.focus != nil {
		f := *d.focus
		s.Focus = &f
	}
	return s
}

func (d *Dashboard) publish(ctx context.Context, event events.Event) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(ctx, event)
}

func withPosition(records []domain.DpeResult) []domain.DpeResult {
	out := make([]domain.DpeResult, 0, len(records))
	for _, r := range records {
		if r.HasPosition() {
			out = append(out, r)
		}
	}
	return out
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
