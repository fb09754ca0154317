package density

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/penwyp/go-activity-timeline/internal/core/geometry"
	"github.com/penwyp/go-activity-timeline/internal/core/model"
)

func eventsEveryMs(n int, stepMs int64, startMs int64) []model.EventRecord {
	out := make([]model.EventRecord, n)
	for i := range out {
		out[i] = model.EventRecord{
			ID:        int64(i + 1),
			Timestamp: startMs + int64(i)*stepMs,
			AppName:   fmt.Sprintf("app%d", i%3),
		}
	}
	return out
}

func TestPlanEmptyInput(t *testing.T) {
	m := geometry.Mapping{CenterTime: 0, Zoom: 0.001, Width: 800}
	assert.Nil(t, Plan(nil, m, 1000, ""))
}

func TestImageNodesRespectMinGap(t *testing.T) {
	// Dense events: one every 100ms at 0.1 px/ms = 10px apart, below the
	// 20px minimum, so roughly every other event earns an image.
	m := geometry.Mapping{CenterTime: 5_000, Zoom: 0.1, Width: 1000}
	events := eventsEveryMs(80, 100, 1_000)

	plans := Plan(events, m, 1000, "")

	lastX := -1e18
	for _, p := range plans {
		if !p.ShowImage || p.Highlighted {
			continue
		}
		assert.GreaterOrEqual(t, p.X-lastX, float64(MinImageGapPx))
		lastX = p.X
	}
}

func TestLabelsOnlyAtSegmentStarts(t *testing.T) {
	m := geometry.Mapping{CenterTime: 5_000, Zoom: 0.1, Width: 2000}
	events := []model.EventRecord{
		{ID: 1, Timestamp: 1000, AppName: "a"},
		{ID: 2, Timestamp: 3000, AppName: "a"},
		{ID: 3, Timestamp: 6000, AppName: "b"}, // segment start
		{ID: 4, Timestamp: 8000, AppName: "b"},
	}

	plans := Plan(events, m, 60_000, "")

	labeled := map[int]bool{}
	for _, p := range plans {
		if p.ShowLabel {
			labeled[p.Index] = true
		}
	}
	assert.True(t, labeled[0], "first event starts a segment")
	assert.False(t, labeled[1], "continuation never labeled")
	assert.False(t, labeled[3], "continuation never labeled")
}

func TestLabelGapByTickInterval(t *testing.T) {
	// Alternating apps: every event is a segment start. At the full-label
	// tier the 180px gap thins them out; at the fine tier every start wins.
	m := geometry.Mapping{CenterTime: 50_000, Zoom: 0.01, Width: 1000}
	events := make([]model.EventRecord, 40)
	for i := range events {
		events[i] = model.EventRecord{
			ID:        int64(i + 1),
			Timestamp: int64(i) * 2500, // 25px apart
			AppName:   fmt.Sprintf("app%d", i%2),
		}
	}

	fullTier := Plan(events, m, 60_000, "")
	fineTier := Plan(events, m, 1000, "")

	countLabels := func(plans []NodePlan) int {
		n := 0
		for _, p := range plans {
			if p.ShowLabel {
				n++
			}
		}
		return n
	}

	assert.Greater(t, countLabels(fineTier), countLabels(fullTier))
	assert.Equal(t, len(events), countLabels(fineTier), "fine zoom labels every segment start")
}

func TestMacroModeCapsImages(t *testing.T) {
	// A five-minute tick interval puts the planner in macro mode; thousands
	// of dense events must collapse to at most the per-view budget plus the
	// bucketing slack.
	m := geometry.Mapping{CenterTime: 12 * 3_600_000, Zoom: 0.0001, Width: 1200}
	start, end := m.VisibleRange()
	n := int((end - start) / 30_000)
	events := eventsEveryMs(n, 30_000, int64(start))

	plans := Plan(events, m, 5*60_000, "")

	images := 0
	for _, p := range plans {
		if p.ShowImage {
			images++
		}
	}
	assert.LessOrEqual(t, images, MaxImages(m.Width)+1)
	assert.Greater(t, images, 0)
}

func TestNoImagesBelowMinImageZoom(t *testing.T) {
	m := geometry.Mapping{CenterTime: 0, Zoom: MinImageZoom / 2, Width: 800}
	events := eventsEveryMs(10, 10*60_000, 0)

	plans := Plan(events, m, 30*60_000, "")
	for _, p := range plans {
		assert.False(t, p.ShowImage)
	}
}

func TestHighlightBypassesGates(t *testing.T) {
	// Zoom below the image threshold and a tick in macro mode: only the
	// highlighted record may show an image, and its neighbors keep their
	// own gap budget.
	m := geometry.Mapping{CenterTime: 0, Zoom: MinImageZoom / 2, Width: 800}
	events := eventsEveryMs(10, 10*60_000, 0)
	key := events[4].IdentityKey()

	plans := Plan(events, m, 30*60_000, key)

	var highlighted *NodePlan
	for i := range plans {
		if plans[i].Highlighted {
			highlighted = &plans[i]
		}
	}
	if assert.NotNil(t, highlighted) {
		assert.True(t, highlighted.ShowImage)
		assert.Equal(t, 4, highlighted.Index)
	}
}

func TestMaxImagesClamped(t *testing.T) {
	assert.Equal(t, 14, MaxImages(100))   // floor
	assert.Equal(t, 60, MaxImages(9000))  // ceiling
	assert.Equal(t, 40, MaxImages(1200))  // width/30 in range
}
