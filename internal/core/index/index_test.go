package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penwyp/go-activity-timeline/internal/core/model"
)

func rec(id int64, ts int64) model.EventRecord {
	return model.EventRecord{ID: id, Timestamp: ts, AppName: "app"}
}

func TestMergeSortsAndCountsNewKeys(t *testing.T) {
	ix := NewEventIndex()

	added := ix.Merge([]model.EventRecord{rec(3, 3000), rec(1, 1000), rec(2, 2000)})
	assert.Equal(t, 3, added)
	assert.Equal(t, 3, ix.Len())

	got := ix.RangeQuery(0, 10_000)
	assert.Equal(t, int64(1000), got[0].Timestamp)
	assert.Equal(t, int64(2000), got[1].Timestamp)
	assert.Equal(t, int64(3000), got[2].Timestamp)
}

func TestMergeDeduplicatesNewDataWins(t *testing.T) {
	ix := NewEventIndex()
	ix.Merge([]model.EventRecord{{ID: 7, Timestamp: 1000, WindowTitle: "old"}})

	added := ix.Merge([]model.EventRecord{{ID: 7, Timestamp: 1000, WindowTitle: "new"}})
	assert.Equal(t, 0, added)
	assert.Equal(t, 1, ix.Len())

	got := ix.RangeQuery(0, 2000)
	assert.Equal(t, "new", got[0].WindowTitle)
}

func TestMergeDropsInvalidRecords(t *testing.T) {
	ix := NewEventIndex()
	added := ix.Merge([]model.EventRecord{
		{ID: 1, Timestamp: -5},
		{ID: 2, Timestamp: 0}, // zero is a valid timestamp
	})
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, ix.Len())
}

func TestRangeQueryWidensOneLeft(t *testing.T) {
	ix := NewEventIndex()
	ix.Merge([]model.EventRecord{rec(1, 1000), rec(2, 4000), rec(3, 5500), rec(4, 7000)})

	got := ix.RangeQuery(5000, 6000)
	if assert.Len(t, got, 2) {
		assert.Equal(t, int64(4000), got[0].Timestamp)
		assert.Equal(t, int64(5500), got[1].Timestamp)
	}
}

func TestRangeQueryEdges(t *testing.T) {
	ix := NewEventIndex()
	ix.Merge([]model.EventRecord{rec(1, 1000), rec(2, 2000), rec(3, 3000)})

	tests := []struct {
		name       string
		start, end int64
		wantTs     []int64
	}{
		{"all after end", -100, 500, nil},
		{"all before start keeps boundary element", 9000, 9999, []int64{3000}},
		{"exact bounds inclusive", 1000, 3000, []int64{1000, 2000, 3000}},
		{"empty window between events widens left", 2100, 2900, []int64{2000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ix.RangeQuery(tt.start, tt.end)
			var ts []int64
			for _, e := range got {
				ts = append(ts, e.Timestamp)
			}
			assert.Equal(t, tt.wantTs, ts)
		})
	}
}

func TestRangeQueryEmptyIndex(t *testing.T) {
	ix := NewEventIndex()
	assert.Empty(t, ix.RangeQuery(0, 1000))
}

func TestRangeQueryMatchesLinearScan(t *testing.T) {
	ix := NewEventIndex()
	var all []model.EventRecord
	for i := int64(0); i < 50; i++ {
		all = append(all, rec(i, i*137))
	}
	ix.Merge(all)

	windows := [][2]int64{{0, 100}, {500, 900}, {1370, 1370}, {6000, 7000}, {-50, 10_000}}
	for _, w := range windows {
		got := ix.RangeQuery(w[0], w[1])

		// Reference: contiguous in-range slice widened one element left.
		var want []model.EventRecord
		for i, e := range all {
			if e.Timestamp >= w[0] && e.Timestamp <= w[1] {
				if len(want) == 0 && i > 0 {
					want = append(want, all[i-1])
				}
				want = append(want, e)
			}
		}
		if len(want) == 0 {
			// Only the widening element may remain.
			for i := len(all) - 1; i >= 0; i-- {
				if all[i].Timestamp < w[0] {
					want = []model.EventRecord{all[i]}
					break
				}
			}
		}
		assert.Equal(t, want, got, "window [%d, %d]", w[0], w[1])
	}
}

func TestAllReturnsCopy(t *testing.T) {
	ix := NewEventIndex()
	ix.Merge([]model.EventRecord{rec(2, 2000), rec(1, 1000)})

	all := ix.All()
	require.Len(t, all, 2)
	assert.Equal(t, int64(1000), all[0].Timestamp)

	// Mutating the copy must not touch the index.
	all[0].AppName = "mutated"
	got, _ := ix.FindByKey("id:1")
	assert.Equal(t, "app", got.AppName)
}

func TestFindByKey(t *testing.T) {
	ix := NewEventIndex()
	ix.Merge([]model.EventRecord{rec(1, 1000), rec(2, 2000)})

	got, ok := ix.FindByKey("id:2")
	assert.True(t, ok)
	assert.Equal(t, int64(2000), got.Timestamp)

	_, ok = ix.FindByKey("id:99")
	assert.False(t, ok)
}

func TestReset(t *testing.T) {
	ix := NewEventIndex()
	ix.Merge([]model.EventRecord{rec(1, 1000)})
	ix.Reset()
	assert.Equal(t, 0, ix.Len())
	assert.Empty(t, ix.RangeQuery(0, 10_000))

	// Reset index accepts fresh merges.
	assert.Equal(t, 1, ix.Merge([]model.EventRecord{rec(2, 2000)}))
}
