package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToPixelCenterMapsToMiddle(t *testing.T) {
	m := Mapping{CenterTime: 1_700_000_000_000, Zoom: 0.001, Width: 800}
	assert.Equal(t, 400.0, m.ToPixel(m.CenterTime))
}

func TestToPixelToTimeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		m    Mapping
		ts   float64
	}{
		{"second scale", Mapping{CenterTime: 1_700_000_000_000, Zoom: 0.001, Width: 800}, 1_700_000_123_456},
		{"max zoom", Mapping{CenterTime: 5_000, Zoom: MaxZoom, Width: 1920}, 5_250},
		{"min zoom", Mapping{CenterTime: 1_700_000_000_000, Zoom: MinZoom, Width: 800}, 1_650_000_000_000},
		{"power of two zoom", Mapping{CenterTime: 4096, Zoom: 0.0078125, Width: 1024}, 123_456},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			px := tt.m.ToPixel(tt.ts)
			back := tt.m.ToTime(px)
			assert.InDelta(t, tt.ts, back, 1e-6)
		})
	}
}

func TestVisibleSpanAndRange(t *testing.T) {
	m := Mapping{CenterTime: 10_000, Zoom: 0.01, Width: 800}

	assert.Equal(t, 80_000.0, m.VisibleSpan())

	start, end := m.VisibleRange()
	assert.InDelta(t, 10_000-40_000, start, 1e-9)
	assert.InDelta(t, 10_000+40_000, end, 1e-9)
	assert.InDelta(t, m.VisibleSpan(), end-start, 1e-9)
}

func TestClampZoom(t *testing.T) {
	assert.Equal(t, MinZoom, ClampZoom(0))
	assert.Equal(t, MinZoom, ClampZoom(MinZoom/10))
	assert.Equal(t, MaxZoom, ClampZoom(1.0))
	assert.Equal(t, 0.001, ClampZoom(0.001))
}

func TestZoomBoundsCoverYearsToSubSecond(t *testing.T) {
	// At MinZoom a 800px viewport spans several decades.
	wide := Mapping{Zoom: MinZoom, Width: 800}
	years := wide.VisibleSpan() / (365.0 * 24 * 3600 * 1000)
	assert.Greater(t, years, 5.0)

	// At MaxZoom the same viewport spans well under a minute.
	narrow := Mapping{Zoom: MaxZoom, Width: 800}
	assert.Less(t, narrow.VisibleSpan(), 60_000.0)
	assert.False(t, math.IsInf(narrow.VisibleSpan(), 0))
}
