// Package density decides which visible events earn an image node and/or a
// label. Everything else costs only its activity-bar pixels.
package density

import (
	"math"

	"github.com/penwyp/go-activity-timeline/internal/core/geometry"
	"github.com/penwyp/go-activity-timeline/internal/core/model"
)

const (
	// MinImageGapPx is the minimum pixel gap between accepted image nodes.
	MinImageGapPx = 20

	// Label gaps by zoom coarseness: full app+title text, compact icons,
	// and "label every segment start" at very fine zoom.
	LabelGapFullPx    = 180
	LabelGapCompactPx = 30

	// CompactTickMs: ticks coarser than 15 minutes show compact labels.
	CompactTickMs = 15 * 60_000
	// FineTickMs: ticks finer than 30 seconds label every segment start.
	FineTickMs = 30_000
	// MacroTickMs: ticks coarser than 2 minutes switch to bucket sampling.
	MacroTickMs = 2 * 60_000

	// MinImageZoom gates thumbnails entirely; below it (roughly a day or
	// more across a normal viewport) thumbnails are unreadable noise.
	MinImageZoom = 2e-5

	// Macro-mode cap on image nodes, scaled by viewport width.
	minImagesPerView = 14
	maxImagesPerView = 60
)

// NodePlan records the render decision for one visible event.
type NodePlan struct {
	Index       int     // position in the visible slice
	X           float64 // pixel position
	ShowImage   bool
	ShowLabel   bool
	Highlighted bool
}

// MaxImages returns the macro-mode image budget for a viewport width,
// clamped to [14, 60].
func MaxImages(widthPx float64) int {
	n := int(widthPx / 30)
	if n < minImagesPerView {
		return minImagesPerView
	}
	if n > maxImagesPerView {
		return maxImagesPerView
	}
	return n
}

// Plan walks the visible slice left to right and decides, per event,
// whether it renders an image node and/or a label. Events accepted for
// neither are omitted from the result. highlightKey forces one record
// image-visible without consuming the gap budget of its neighbors.
func Plan(visible []model.EventRecord, m geometry.Mapping, tickInterval int64, highlightKey string) []NodePlan {
	if len(visible) == 0 {
		return nil
	}

	labelGap := labelGapFor(tickInterval)
	macro := tickInterval > MacroTickMs

	var sampleInterval int64
	var claimed map[int64]bool
	if macro {
		span := m.VisibleSpan()
		sampleInterval = int64(math.Max(float64(tickInterval)*1.5, span/float64(MaxImages(m.Width))))
		if sampleInterval < 1 {
			sampleInterval = 1
		}
		claimed = make(map[int64]bool)
	}

	lastImageX := math.Inf(-1)
	lastLabelX := math.Inf(-1)

	plans := make([]NodePlan, 0, len(visible))
	for i, ev := range visible {
		x := m.ToPixel(float64(ev.Timestamp))
		highlighted := highlightKey != "" && ev.IdentityKey() == highlightKey

		showImage := false
		if highlighted {
			showImage = true
		} else if m.Zoom > MinImageZoom && x-lastImageX >= MinImageGapPx {
			if macro {
				bucket := ev.Timestamp / sampleInterval
				if !claimed[bucket] {
					claimed[bucket] = true
					showImage = true
				}
			} else {
				showImage = true
			}
		}

		showLabel := false
		segmentStart := i == 0 || !visible[i-1].SameActivity(ev)
		if segmentStart && x-lastLabelX >= labelGap {
			showLabel = true
		}

		if showImage && !highlighted {
			lastImageX = x
		}
		if showLabel {
			lastLabelX = x
		}

		if showImage || showLabel {
			plans = append(plans, NodePlan{
				Index:       i,
				X:           x,
				ShowImage:   showImage,
				ShowLabel:   showLabel,
				Highlighted: highlighted,
			})
		}
	}

	return plans
}

func labelGapFor(tickInterval int64) float64 {
	switch {
	case tickInterval < FineTickMs:
		return 0
	case tickInterval > CompactTickMs:
		return LabelGapCompactPx
	default:
		return LabelGapFullPx
	}
}
