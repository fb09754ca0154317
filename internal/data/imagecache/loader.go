package imagecache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/penwyp/go-activity-timeline/internal/core/model"
	"github.com/penwyp/go-activity-timeline/internal/data/store"
	"github.com/penwyp/go-activity-timeline/internal/util"
)

// MaxConcurrentFetches caps in-flight thumbnail requests system-wide. One
// extra slot is reserved for high-priority requests so a highlighted node
// never waits behind a full queue.
const MaxConcurrentFetches = 3

// Priority orders thumbnail admissions when the fetch slots are contended.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh // highlighted or selected nodes
)

// RetryPolicy governs thumbnail fetch retries. Not-found is terminal and
// never retried; a canceled attempt retries after the short CancelDelay
// since the data is still wanted.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration // linear backoff: BaseDelay × attempt
	CancelDelay time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   400 * time.Millisecond,
		CancelDelay: 200 * time.Millisecond,
	}
}

// Delay returns how long to wait before the next attempt.
func (p RetryPolicy) Delay(attempt int, canceled bool) time.Duration {
	if canceled {
		return p.CancelDelay
	}
	return p.BaseDelay * time.Duration(attempt)
}

type fetchJob struct {
	cancel context.CancelFunc
	epoch  int64
}

// Loader fetches thumbnails through a bounded admission queue, deduplicates
// concurrent requests per key, and drops completions whose viewport epoch
// has been superseded.
type Loader struct {
	store   store.Store
	cache   *Cache
	policy  RetryPolicy
	sem     chan struct{}
	prioSem chan struct{}

	mu       sync.Mutex
	inflight map[string]*fetchJob
	epoch    int64

	onLoaded func(key string)
}

func NewLoader(st store.Store, cache *Cache, policy RetryPolicy) *Loader {
	return &Loader{
		store:    st,
		cache:    cache,
		policy:   policy,
		sem:      make(chan struct{}, MaxConcurrentFetches),
		prioSem:  make(chan struct{}, 1),
		inflight: make(map[string]*fetchJob),
	}
}

// SetOnLoaded registers a callback fired after a thumbnail lands in the
// cache. Called from loader goroutines.
func (l *Loader) SetOnLoaded(cb func(key string)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onLoaded = cb
}

// Request starts a fetch for key unless the cache already holds it or a
// fetch is in flight. epoch tags the request with the viewport generation
// it belongs to; prio decides which admission slots it may use.
func (l *Loader) Request(key string, epoch int64, prio Priority) {
	if key == "" {
		return
	}
	if _, ok := l.cache.Get(key); ok {
		return
	}

	l.mu.Lock()
	if _, busy := l.inflight[key]; busy {
		l.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.inflight[key] = &fetchJob{cancel: cancel, epoch: epoch}
	l.mu.Unlock()

	go l.run(ctx, key, epoch, prio)
}

// CancelKey aborts any pending fetch for key (node unmounted or no longer
// image-eligible).
func (l *Loader) CancelKey(key string) {
	l.mu.Lock()
	job, ok := l.inflight[key]
	l.mu.Unlock()
	if ok {
		job.cancel()
	}
}

// CancelEpoch advances the current epoch and aborts every in-flight fetch
// that belongs to an older one. Completions racing past the cancel are
// discarded at merge time by the epoch comparison.
func (l *Loader) CancelEpoch(epoch int64) {
	l.mu.Lock()
	l.epoch = epoch
	var stale []*fetchJob
	for _, job := range l.inflight {
		if job.epoch != epoch {
			stale = append(stale, job)
		}
	}
	l.mu.Unlock()

	for _, job := range stale {
		job.cancel()
	}
}

// IsInflight reports whether a fetch for key is pending.
func (l *Loader) IsInflight(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.inflight[key]
	return ok
}

// InflightCount reports the number of keys with a pending fetch.
func (l *Loader) InflightCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.inflight)
}

// acquire blocks until an admission slot is free. High-priority requests
// may also take the reserved slot.
func (l *Loader) acquire(ctx context.Context, prio Priority) (release func(), ok bool) {
	if prio == PriorityHigh {
		select {
		case l.sem <- struct{}{}:
			return func() { <-l.sem }, true
		case l.prioSem <- struct{}{}:
			return func() { <-l.prioSem }, true
		case <-ctx.Done():
			return nil, false
		}
	}
	select {
	case l.sem <- struct{}{}:
		return func() { <-l.sem }, true
	case <-ctx.Done():
		return nil, false
	}
}

func (l *Loader) run(ctx context.Context, key string, epoch int64, prio Priority) {
	defer l.finish(key)

	for attempt := 1; attempt <= l.policy.MaxAttempts; attempt++ {
		release, ok := l.acquire(ctx, prio)
		if !ok {
			return
		}
		thumb, err := l.store.FetchThumbnail(ctx, key)
		release()

		if err == nil {
			l.deliver(key, epoch, thumb)
			return
		}
		if errors.Is(err, store.ErrNotFound) {
			// Record genuinely lacks an image; placeholder stays.
			return
		}
		if ctx.Err() != nil {
			// Our own cancellation: the node is gone, stop entirely.
			return
		}
		if attempt == l.policy.MaxAttempts {
			util.LogDebug(fmt.Sprintf("thumbnail %s failed after %d attempts: %v", key, attempt, err))
			return
		}

		canceled := errors.Is(err, context.Canceled)
		select {
		case <-time.After(l.policy.Delay(attempt, canceled)):
		case <-ctx.Done():
			return
		}
	}
}

func (l *Loader) deliver(key string, epoch int64, thumb model.Thumbnail) {
	l.mu.Lock()
	current := l.epoch
	cb := l.onLoaded
	l.mu.Unlock()

	if current != 0 && epoch != current {
		// Superseded viewport; drop without side effects.
		return
	}
	l.cache.Put(key, thumb)
	if cb != nil {
		cb(key)
	}
}

func (l *Loader) finish(key string) {
	l.mu.Lock()
	if job, ok := l.inflight[key]; ok {
		job.cancel()
		delete(l.inflight, key)
	}
	l.mu.Unlock()
}
