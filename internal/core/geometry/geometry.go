package geometry

// Zoom is expressed in pixels per millisecond. The bounds let a single
// viewport span anything from several decades down to sub-second detail.
const (
	// MinZoom renders roughly one year per 100 pixels.
	MinZoom = 100.0 / (365.0 * 24 * 3600 * 1000)
	// MaxZoom renders 20 pixels per second.
	MaxZoom = 20.0 / 1000.0
)

// Mapping is the pure time-to-pixel transform for one viewport
// configuration. All fields are read-only; derive a new Mapping instead of
// mutating.
type Mapping struct {
	CenterTime float64 // Unix milliseconds
	Zoom       float64 // pixels per millisecond
	Width      float64 // viewport width in pixels
}

// ToPixel maps a timestamp (ms) to a viewport x coordinate.
func (m Mapping) ToPixel(ts float64) float64 {
	return m.Width/2 + (ts-m.CenterTime)*m.Zoom
}

// ToTime maps a viewport x coordinate back to a timestamp (ms).
// ToTime(ToPixel(ts)) round-trips without intermediate truncation.
func (m Mapping) ToTime(px float64) float64 {
	return m.CenterTime + (px-m.Width/2)/m.Zoom
}

// VisibleSpan returns the number of milliseconds covered by the viewport.
func (m Mapping) VisibleSpan() float64 {
	return m.Width / m.Zoom
}

// VisibleRange returns the [start, end] timestamps at the viewport edges.
func (m Mapping) VisibleRange() (float64, float64) {
	return m.ToTime(0), m.ToTime(m.Width)
}

// ClampZoom bounds a zoom level to [MinZoom, MaxZoom].
func ClampZoom(zoom float64) float64 {
	if zoom < MinZoom {
		return MinZoom
	}
	if zoom > MaxZoom {
		return MaxZoom
	}
	return zoom
}
