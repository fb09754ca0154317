package imagecache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/penwyp/go-activity-timeline/internal/core/model"
	"github.com/penwyp/go-activity-timeline/internal/data/store"
)

// scriptedStore fails FetchThumbnail a configured number of times per key
// before succeeding, and counts attempts.
type scriptedStore struct {
	mu       sync.Mutex
	failures map[string]int // remaining transient failures per key
	notFound map[string]bool
	attempts map[string]int
	gate     chan struct{} // when set, fetches block until it closes
}

func newScriptedStore() *scriptedStore {
	return &scriptedStore{
		failures: make(map[string]int),
		notFound: make(map[string]bool),
		attempts: make(map[string]int),
	}
}

func (s *scriptedStore) QueryTimeline(ctx context.Context, startMs, endMs int64) ([]model.EventRecord, error) {
	return nil, nil
}

func (s *scriptedStore) FetchThumbnail(ctx context.Context, key string) (model.Thumbnail, error) {
	s.mu.Lock()
	gate := s.gate
	s.attempts[key]++
	notFound := s.notFound[key]
	remaining := s.failures[key]
	if remaining > 0 {
		s.failures[key] = remaining - 1
	}
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return model.Thumbnail{}, ctx.Err()
		}
	}
	if notFound {
		return model.Thumbnail{}, store.ErrNotFound
	}
	if remaining > 0 {
		return model.Thumbnail{}, errors.New("transient backend failure")
	}
	return model.Thumbnail{MimeType: "image/png", Data: "payload-" + key}, nil
}

func (s *scriptedStore) Close() error { return nil }

func (s *scriptedStore) attemptCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[key]
}

func testPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond, CancelDelay: time.Millisecond}
}

func TestLoaderFetchesIntoCache(t *testing.T) {
	st := newScriptedStore()
	cache := NewCache(8)
	loader := NewLoader(st, cache, testPolicy())

	loader.Request("id:1", 0, PriorityNormal)

	assert.Eventually(t, func() bool {
		_, ok := cache.Get("id:1")
		return ok
	}, time.Second, 5*time.Millisecond)

	got, _ := cache.Get("id:1")
	assert.Equal(t, "payload-id:1", got.Data)
	assert.Equal(t, 1, st.attemptCount("id:1"))
}

func TestLoaderRetriesTransientFailures(t *testing.T) {
	st := newScriptedStore()
	st.failures["id:7"] = 2 // two transient failures, then success
	cache := NewCache(8)
	loader := NewLoader(st, cache, testPolicy())

	loader.Request("id:7", 0, PriorityNormal)

	assert.Eventually(t, func() bool {
		_, ok := cache.Get("id:7")
		return ok
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 3, st.attemptCount("id:7"), "exactly two retries before success")
}

func TestLoaderNotFoundIsTerminal(t *testing.T) {
	st := newScriptedStore()
	st.notFound["id:9"] = true
	cache := NewCache(8)
	loader := NewLoader(st, cache, testPolicy())

	loader.Request("id:9", 0, PriorityNormal)

	assert.Eventually(t, func() bool {
		return loader.InflightCount() == 0
	}, time.Second, 5*time.Millisecond)

	_, ok := cache.Get("id:9")
	assert.False(t, ok)
	assert.Equal(t, 1, st.attemptCount("id:9"), "not-found is never retried")
}

func TestLoaderGivesUpAfterMaxAttempts(t *testing.T) {
	st := newScriptedStore()
	st.failures["id:3"] = 100
	cache := NewCache(8)
	loader := NewLoader(st, cache, testPolicy())

	loader.Request("id:3", 0, PriorityNormal)

	assert.Eventually(t, func() bool {
		return loader.InflightCount() == 0
	}, time.Second, 5*time.Millisecond)

	_, ok := cache.Get("id:3")
	assert.False(t, ok)
	assert.Equal(t, testPolicy().MaxAttempts, st.attemptCount("id:3"))
}

func TestLoaderDeduplicatesInflight(t *testing.T) {
	st := newScriptedStore()
	st.gate = make(chan struct{})
	cache := NewCache(8)
	loader := NewLoader(st, cache, testPolicy())

	loader.Request("id:5", 0, PriorityNormal)
	assert.Eventually(t, func() bool {
		return st.attemptCount("id:5") == 1
	}, time.Second, time.Millisecond)

	loader.Request("id:5", 0, PriorityNormal)
	loader.Request("id:5", 0, PriorityNormal)
	close(st.gate)

	assert.Eventually(t, func() bool {
		_, ok := cache.Get("id:5")
		return ok
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, st.attemptCount("id:5"), "concurrent requests share one fetch")
}

func TestLoaderSkipsCachedKeys(t *testing.T) {
	st := newScriptedStore()
	cache := NewCache(8)
	cache.Put("id:2", model.Thumbnail{Data: "already-here"})
	loader := NewLoader(st, cache, testPolicy())

	loader.Request("id:2", 0, PriorityNormal)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, st.attemptCount("id:2"))
}

func TestLoaderDiscardsSupersededEpoch(t *testing.T) {
	st := newScriptedStore()
	st.gate = make(chan struct{})
	cache := NewCache(8)
	loader := NewLoader(st, cache, testPolicy())

	loader.Request("id:4", 1, PriorityNormal)
	assert.Eventually(t, func() bool {
		return st.attemptCount("id:4") == 1
	}, time.Second, time.Millisecond)

	// The viewport settles on a new epoch while the fetch is in flight.
	loader.CancelEpoch(2)
	close(st.gate)

	assert.Eventually(t, func() bool {
		return loader.InflightCount() == 0
	}, time.Second, 5*time.Millisecond)

	_, ok := cache.Get("id:4")
	assert.False(t, ok, "completion for a superseded epoch must be dropped")
}

func TestLoaderForcedRefreshDropsPreRefreshDelivery(t *testing.T) {
	st := newScriptedStore()
	st.gate = make(chan struct{})
	cache := NewCache(8)
	loader := NewLoader(st, cache, testPolicy())

	loader.Request("id:10", 1, PriorityNormal)
	assert.Eventually(t, func() bool {
		return st.attemptCount("id:10") == 1
	}, time.Second, time.Millisecond)

	// A forced refresh bumps the epoch before clearing the cache; the
	// fetch that was already in flight must not land afterwards.
	loader.CancelEpoch(2)
	cache.Clear()
	close(st.gate)

	assert.Eventually(t, func() bool {
		return loader.InflightCount() == 0
	}, time.Second, 5*time.Millisecond)

	_, ok := cache.Get("id:10")
	assert.False(t, ok, "stale fetch must not repopulate the cleared cache")
}

func TestLoaderHighPriorityBypassesFullQueue(t *testing.T) {
	st := newScriptedStore()
	st.gate = make(chan struct{})
	cache := NewCache(8)
	loader := NewLoader(st, cache, testPolicy())

	// Fill every regular admission slot with blocked fetches.
	for _, key := range []string{"id:20", "id:21", "id:22"} {
		loader.Request(key, 0, PriorityNormal)
	}
	assert.Eventually(t, func() bool {
		return st.attemptCount("id:20")+st.attemptCount("id:21")+st.attemptCount("id:22") == 3
	}, time.Second, time.Millisecond)

	loader.Request("id:23", 0, PriorityNormal)
	loader.Request("id:hot", 0, PriorityHigh)

	assert.Eventually(t, func() bool {
		return st.attemptCount("id:hot") == 1
	}, time.Second, time.Millisecond, "high priority takes the reserved slot")
	assert.Equal(t, 0, st.attemptCount("id:23"), "normal request waits for a regular slot")

	close(st.gate)
	assert.Eventually(t, func() bool {
		return loader.InflightCount() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestLoaderCancelKey(t *testing.T) {
	st := newScriptedStore()
	st.gate = make(chan struct{})
	cache := NewCache(8)
	loader := NewLoader(st, cache, testPolicy())

	loader.Request("id:6", 0, PriorityNormal)
	assert.Eventually(t, func() bool {
		return st.attemptCount("id:6") == 1
	}, time.Second, time.Millisecond)

	loader.CancelKey("id:6")

	assert.Eventually(t, func() bool {
		return loader.InflightCount() == 0
	}, time.Second, 5*time.Millisecond)

	_, ok := cache.Get("id:6")
	assert.False(t, ok)
}

func TestLoaderOnLoadedCallback(t *testing.T) {
	st := newScriptedStore()
	cache := NewCache(8)
	loader := NewLoader(st, cache, testPolicy())

	var mu sync.Mutex
	var loaded []string
	loader.SetOnLoaded(func(key string) {
		mu.Lock()
		loaded = append(loaded, key)
		mu.Unlock()
	})

	loader.Request("id:8", 0, PriorityNormal)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(loaded) == 1 && loaded[0] == "id:8"
	}, time.Second, 5*time.Millisecond)
}
