package index

import (
	"sort"
	"sync"

	"github.com/penwyp/go-activity-timeline/internal/core/model"
)

// EventIndex is the sorted, deduplicated collection of every event record
// the viewer has seen. Merge is the single writer; everything else reads.
// The index is append/merge-only and unbounded; it is discarded wholesale by
// Reset when the backing store signals that records changed underneath us.
type EventIndex struct {
	mu     sync.RWMutex
	events []model.EventRecord // ascending by Timestamp
}

func NewEventIndex() *EventIndex {
	return &EventIndex{events: make([]model.EventRecord, 0)}
}

// Merge normalizes incoming records, unions them with the existing set by
// identity key (new data wins on conflict) and re-sorts. Returns the number
// of keys that were not previously present. O(n log n) per call, which is
// fine at the merge rates the fetch scheduler allows.
func (ix *EventIndex) Merge(records []model.EventRecord) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	byKey := make(map[string]model.EventRecord, len(ix.events)+len(records))
	for _, e := range ix.events {
		byKey[e.IdentityKey()] = e
	}

	added := 0
	for _, r := range records {
		if !r.Valid() {
			continue
		}
		key := r.IdentityKey()
		if _, exists := byKey[key]; !exists {
			added++
		}
		byKey[key] = r
	}

	merged := make([]model.EventRecord, 0, len(byKey))
	for _, e := range byKey {
		merged = append(merged, e)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})

	ix.events = merged
	return added
}

// RangeQuery returns the minimal contiguous slice covering [start, end],
// widened by one element before start so that a segment whose bar begins
// off-screen and extends into the window is never dropped. An empty result
// is valid and means "nothing to draw", not an error.
func (ix *EventIndex) RangeQuery(start, end int64) []model.EventRecord {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	lo := sort.Search(len(ix.events), func(i int) bool {
		return ix.events[i].Timestamp >= start
	})
	if lo > 0 {
		lo--
	}
	hi := sort.Search(len(ix.events), func(i int) bool {
		return ix.events[i].Timestamp > end
	})
	if lo >= hi {
		return nil
	}

	out := make([]model.EventRecord, hi-lo)
	copy(out, ix.events[lo:hi])
	return out
}

// All returns a copy of every indexed record, ascending by timestamp.
func (ix *EventIndex) All() []model.EventRecord {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]model.EventRecord, len(ix.events))
	copy(out, ix.events)
	return out
}

// FindByKey returns the record with the given identity key, if present.
func (ix *EventIndex) FindByKey(key string) (model.EventRecord, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	for _, e := range ix.events {
		if e.IdentityKey() == key {
			return e, true
		}
	}
	return model.EventRecord{}, false
}

// Len returns the number of records currently indexed.
func (ix *EventIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.events)
}

// Reset discards every record. Used when the external refresh signal fires.
func (ix *EventIndex) Reset() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.events = ix.events[:0]
}
