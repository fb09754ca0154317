// Package fetcher schedules time-windowed record-store queries around the
// viewport: debounced while the user is interacting, throttled while
// following now, and refreshed on an idle ticker otherwise.
package fetcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/penwyp/go-activity-timeline/internal/core/geometry"
	"github.com/penwyp/go-activity-timeline/internal/core/index"
	"github.com/penwyp/go-activity-timeline/internal/data/store"
	"github.com/penwyp/go-activity-timeline/internal/util"
)

// Config holds the invocation policy knobs. Zero values fall back to the
// production intervals.
type Config struct {
	DebounceQuiet  time.Duration // quiet period after interactive changes
	FollowThrottle time.Duration // leading-edge interval in follow mode
	IdleInterval   time.Duration // background refresh period
}

func (c *Config) applyDefaults() {
	if c.DebounceQuiet == 0 {
		c.DebounceQuiet = 500 * time.Millisecond
	}
	if c.FollowThrottle == 0 {
		c.FollowThrottle = time.Second
	}
	if c.IdleInterval == 0 {
		c.IdleInterval = 5 * time.Second
	}
}

// Scheduler issues queryTimeline calls for a window twice the visible span,
// centered on the viewport, and merges responses into the event index.
// Query failures are logged and swallowed: the view stays stale and the
// next scheduled fetch retries.
type Scheduler struct {
	store  store.Store
	index  *index.EventIndex
	config Config

	mu          sync.Mutex
	view        geometry.Mapping
	dragging    bool
	lastFollow  time.Time
	debounce    *time.Timer
	stopped     bool
	onMerged    func(added int)
	fetchActive sync.WaitGroup
}

func NewScheduler(st store.Store, ix *index.EventIndex, config Config) *Scheduler {
	config.applyDefaults()
	return &Scheduler{
		store:  st,
		index:  ix,
		config: config,
	}
}

// SetOnMerged registers a callback fired after every merge, with the number
// of newly seen records. Called from scheduler goroutines.
func (s *Scheduler) SetOnMerged(cb func(added int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMerged = cb
}

// Run drives the idle background refresh until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.IdleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.stopped = true
			if s.debounce != nil {
				s.debounce.Stop()
			}
			s.mu.Unlock()
			s.fetchActive.Wait()
			return
		case <-ticker.C:
			s.mu.Lock()
			dragging := s.dragging
			view := s.view
			s.mu.Unlock()
			if dragging || view.Zoom == 0 {
				continue
			}
			s.fetch(view)
		}
	}
}

// SetDragging marks whether an interactive drag is in progress; the idle
// refresh skips while it is.
func (s *Scheduler) SetDragging(dragging bool) {
	s.mu.Lock()
	s.dragging = dragging
	s.mu.Unlock()
}

// Dragging reports whether the idle refresh is currently suppressed.
func (s *Scheduler) Dragging() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dragging
}

// PokeInteractive notes a viewport change from dragging or zooming and
// schedules a fetch after the debounce quiet period.
func (s *Scheduler) PokeInteractive(view geometry.Mapping) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.view = view
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounce = time.AfterFunc(s.config.DebounceQuiet, func() {
		s.mu.Lock()
		v := s.view
		stopped := s.stopped
		s.mu.Unlock()
		if !stopped {
			s.fetch(v)
		}
	})
}

// PokeFollow notes a viewport change from follow-now mode: leading-edge
// throttled to at most one fetch per FollowThrottle.
func (s *Scheduler) PokeFollow(view geometry.Mapping) {
	s.mu.Lock()
	s.view = view
	now := time.Now()
	if s.stopped || now.Sub(s.lastFollow) < s.config.FollowThrottle {
		s.mu.Unlock()
		return
	}
	s.lastFollow = now
	s.mu.Unlock()

	s.fetch(view)
}

// ForceRefresh resets the index and fetches immediately. Used when the
// backing store signals that records changed externally.
func (s *Scheduler) ForceRefresh(view geometry.Mapping) {
	s.mu.Lock()
	s.view = view
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return
	}
	s.index.Reset()
	s.fetch(view)
}

// fetch queries a window twice the visible span, centered, so panning in
// either direction hits prefetched data.
func (s *Scheduler) fetch(view geometry.Mapping) {
	if view.Zoom == 0 || view.Width == 0 {
		return
	}
	span := view.Width / view.Zoom
	startMs := int64(view.CenterTime - span)
	endMs := int64(view.CenterTime + span)
	if startMs < 0 {
		startMs = 0
	}

	s.fetchActive.Add(1)
	go func() {
		defer s.fetchActive.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		records, err := s.store.QueryTimeline(ctx, startMs, endMs)
		if err != nil {
			util.LogWarn(fmt.Sprintf("timeline query [%d, %d] failed: %v", startMs, endMs, err))
			return
		}

		added := s.index.Merge(records)
		util.LogDebug(fmt.Sprintf("merged %d records (%d new) for [%d, %d]", len(records), added, startMs, endMs))

		s.mu.Lock()
		cb := s.onMerged
		s.mu.Unlock()
		if cb != nil {
			cb(added)
		}
	}()
}
