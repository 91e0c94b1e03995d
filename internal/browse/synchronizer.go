// Package browse keeps a browsing session's results, filter, location and
// selection consistent between the list and the map.
package browse

import (
	"context"
	"slices"
	"sync"

	"backend-nearvibe/internal/adventure"
	"backend-nearvibe/internal/filter"
	"backend-nearvibe/internal/shared/geo"

	"go.uber.org/zap"
)

// ErrorBanner is shown when a fetch fails.
const ErrorBanner = "Failed to load adventures. Please try again later."

type Status int

const (
	Idle Status = iota
	Loading
	Loaded
	Errored
)

func (s Status) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Errored:
		return "errored"
	default:
		return "idle"
	}
}

type ViewMode string

const (
	ListView ViewMode = "list"
	MapView  ViewMode = "map"
)

// Hooks are invoked outside the session lock. Nil hooks are skipped.
type Hooks struct {
	ScrollIntoView  func(adventureID string)
	HighlightMarker func(adventureID string)
	Changed         func(Snapshot)
}

// Snapshot is a copy of the session state.
type Snapshot struct {
	Status     Status
	Mode       ViewMode
	Filter     filter.State
	Location   *geo.Point
	Adventures []adventure.Adventure
	Pagination adventure.Pagination
	Selected   string
	Error      string
}

type Synchronizer struct {
	ctx     context.Context
	fetcher Fetcher
	hooks   Hooks
	log     *zap.Logger

	mu               sync.Mutex
	wg               sync.WaitGroup
	seq              uint64
	status           Status
	mode             ViewMode
	state            filter.State
	location         *geo.Point
	locationResolved bool
	page             int
	results          []adventure.Adventure
	pagination       adventure.Pagination
	selected         string
	errMsg           string
}

func NewSynchronizer(ctx context.Context, fetcher Fetcher, hooks Hooks, log *zap.Logger) *Synchronizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Synchronizer{
		ctx:     ctx,
		fetcher: fetcher,
		hooks:   hooks,
		log:     log,
		mode:    ListView,
		page:    1,
	}
}

// ResolveLocation finishes location resolution. A nil point means the
// location is unavailable and discovery runs without the distance facet.
func (s *Synchronizer) ResolveLocation(p *geo.Point) {
	s.mu.Lock()
	if s.locationResolved && samePoint(s.location, p) {
		s.mu.Unlock()
		return
	}
	s.locationResolved = true
	if p != nil {
		cp := *p
		s.location = &cp
	} else {
		s.location = nil
	}
	s.page = 1
	snap := s.startFetchLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// SetFilter replaces the filter state. Equal states are ignored.
func (s *Synchronizer) SetFilter(next filter.State) {
	s.Update(func(filter.State) filter.State { return next })
}

// Update applies fn to the current filter state and installs the result in
// one step, so concurrent updates never lose each other's changes. fn runs
// with the synchronizer locked and must not call back into it.
func (s *Synchronizer) Update(fn func(filter.State) filter.State) {
	s.mu.Lock()
	next := fn(s.state)
	if s.state.Equal(next) {
		s.mu.Unlock()
		return
	}
	s.state = next
	s.page = 1
	if !s.locationResolved {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.notify(snap)
		return
	}
	snap := s.startFetchLocked()
	s.mu.Unlock()
	s.notify(snap)
}

func (s *Synchronizer) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	s.mu.Lock()
	if page == s.page || !s.locationResolved {
		s.mu.Unlock()
		return
	}
	s.page = page
	snap := s.startFetchLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// Refresh re-issues the current request.
func (s *Synchronizer) Refresh() {
	s.mu.Lock()
	if !s.locationResolved {
		s.mu.Unlock()
		return
	}
	snap := s.startFetchLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// SetViewMode switches between list and map without fetching.
func (s *Synchronizer) SetViewMode(mode ViewMode) {
	s.mu.Lock()
	if s.mode == mode {
		s.mu.Unlock()
		return
	}
	s.mode = mode
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// SelectFromMap selects the adventure behind a marker. In list view the list
// entry is scrolled into view.
func (s *Synchronizer) SelectFromMap(id string) {
	s.mu.Lock()
	if id == "" || id == s.selected {
		s.mu.Unlock()
		return
	}
	s.selected = id
	scroll := s.mode == ListView
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if scroll && s.hooks.ScrollIntoView != nil {
		s.hooks.ScrollIntoView(id)
	}
	s.notify(snap)
}

// SelectFromList selects a list entry and highlights its marker.
func (s *Synchronizer) SelectFromList(id string) {
	s.mu.Lock()
	if id == "" || id == s.selected {
		s.mu.Unlock()
		return
	}
	s.selected = id
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if s.hooks.HighlightMarker != nil {
		s.hooks.HighlightMarker(id)
	}
	s.notify(snap)
}

func (s *Synchronizer) ClearSelection() {
	s.mu.Lock()
	if s.selected == "" {
		s.mu.Unlock()
		return
	}
	s.selected = ""
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

func (s *Synchronizer) Filter() filter.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Wait blocks until every issued fetch has been applied or discarded.
func (s *Synchronizer) Wait() {
	s.wg.Wait()
}

// startFetchLocked enters Loading and issues a request tagged with the next
// sequence number. Previous results stay visible until replaced.
func (s *Synchronizer) startFetchLocked() Snapshot {
	s.seq++
	seq := s.seq
	q := filter.Build(s.state, s.location)
	page := s.page
	s.status = Loading

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		res, err := s.fetcher.Fetch(s.ctx, q, page)
		s.apply(seq, res, err)
	}()
	return s.snapshotLocked()
}

func (s *Synchronizer) apply(seq uint64, res adventure.Page, err error) {
	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		s.log.Debug("discarding stale discovery response", zap.Uint64("seq", seq))
		return
	}
	if err != nil {
		s.status = Errored
		s.errMsg = ErrorBanner
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.log.Warn("discovery fetch failed", zap.Error(err))
		s.notify(snap)
		return
	}

	s.status = Loaded
	s.errMsg = ""
	s.results = res.Adventures
	s.pagination = res.Pagination
	if s.selected != "" && !slices.ContainsFunc(res.Adventures, func(a adventure.Adventure) bool {
		return a.ID == s.selected
	}) {
		s.selected = ""
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

func (s *Synchronizer) snapshotLocked() Snapshot {
	snap := Snapshot{
		Status:     s.status,
		Mode:       s.mode,
		Filter:     s.state,
		Adventures: slices.Clone(s.results),
		Pagination: s.pagination,
		Selected:   s.selected,
		Error:      s.errMsg,
	}
	if s.location != nil {
		p := *s.location
		snap.Location = &p
	}
	return snap
}

func (s *Synchronizer) notify(snap Snapshot) {
	if s.hooks.Changed != nil {
		s.hooks.Changed(snap)
	}
}

func samePoint(a, b *geo.Point) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
