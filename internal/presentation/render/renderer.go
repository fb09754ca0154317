package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/penwyp/go-activity-timeline/internal/core/color"
	"github.com/penwyp/go-activity-timeline/internal/core/density"
	"github.com/penwyp/go-activity-timeline/internal/core/geometry"
	"github.com/penwyp/go-activity-timeline/internal/core/model"
	"github.com/penwyp/go-activity-timeline/internal/core/ticks"
	"github.com/penwyp/go-activity-timeline/internal/util"
)

// NodeState is the thumbnail status shown on a rendered node.
type NodeState int

const (
	NodeEmpty NodeState = iota // no fetch yet / placeholder
	NodeLoading
	NodeLoaded
)

// arrowDepth is the pixel depth of the run-end chevron.
const arrowDepth = 6.0

// Input is everything one render pass consumes. The renderer derives all
// output from it; it holds no mutable state of its own.
type Input struct {
	View         geometry.Mapping
	Events       []model.EventRecord // visible slice from the index range query
	Plans        []density.NodePlan
	TickInterval int64
	State        model.InteractionState
	ThumbState   func(key string) NodeState
	IndexSize    int
	NowMs        int64

	// LastDataUpdate is the unix-second timestamp of the last merge that
	// brought in new records; zero means none yet.
	LastDataUpdate int64
}

// Renderer assembles frames: the tick axis and activity bars on the raster
// rows, image/label nodes on the overlay rows.
type Renderer struct {
	location *time.Location
}

func NewRenderer(location *time.Location) *Renderer {
	if location == nil {
		location = time.Local
	}
	return &Renderer{location: location}
}

// Build assembles a complete frame for the given input.
func (r *Renderer) Build(in Input) Frame {
	widthCells := int(in.View.Width / PixelsPerCell)
	if widthCells <= 0 {
		return Frame{}
	}

	var lines []string
	lines = append(lines, r.headerLine(in, widthCells))
	lines = append(lines, r.tickLabelLine(in, widthCells))
	lines = append(lines, r.tickMarkLine(in, widthCells))
	lines = append(lines, r.barLine(in, widthCells))
	lines = append(lines, r.nodeLine(in, widthCells))
	lines = append(lines, r.labelLine(in, widthCells))
	lines = append(lines, r.cursorLine(in, widthCells))
	lines = append(lines, strings.Repeat("─", widthCells))
	lines = append(lines, r.statusLine(in))

	if in.State.ShowDetail && in.State.SelectedKey != "" {
		lines = append(lines, r.detailLines(in, widthCells)...)
	}
	if in.State.ShowHelp {
		lines = append(lines, helpLines()...)
	}

	return Frame{Lines: lines}
}

func (r *Renderer) headerLine(in Input, widthCells int) string {
	start, end := in.View.VisibleRange()
	startStr := ticks.Format(int64(start), in.TickInterval, r.location)
	endStr := ticks.Format(int64(end), in.TickInterval, r.location)
	title := fmt.Sprintf(" Activity Timeline  %s — %s ", startStr, endStr)
	return util.ColorBold + util.TruncateToWidth(title, widthCells) + util.ColorReset
}

// tickLabelLine writes a formatted label at every tick position.
func (r *Renderer) tickLabelLine(in Input, widthCells int) string {
	line := newCellLine(widthCells)
	r.eachTick(in, func(tsMs int64, cell int) {
		label := ticks.Format(tsMs, in.TickInterval, r.location)
		line.overlay(cell, label, util.ColorDim)
	})
	return line.String()
}

func (r *Renderer) tickMarkLine(in Input, widthCells int) string {
	line := newCellLine(widthCells)
	for i := 0; i < widthCells; i++ {
		line.set(i, '─', util.ColorDim)
	}
	r.eachTick(in, func(tsMs int64, cell int) {
		line.set(cell, '┼', util.ColorDim)
	})
	return line.String()
}

func (r *Renderer) eachTick(in Input, fn func(tsMs int64, cell int)) {
	start, end := in.View.VisibleRange()
	iv := in.TickInterval
	if iv <= 0 {
		return
	}
	for ts := ticks.Align(int64(start), iv); float64(ts) <= end; ts += iv {
		cell := int(in.View.ToPixel(float64(ts)) / PixelsPerCell)
		fn(ts, cell)
	}
}

// barLine draws the activity bars: a flat body while a run continues, a
// rightward chevron at the last event of each run to mark the transition.
func (r *Renderer) barLine(in Input, widthCells int) string {
	line := newCellLine(widthCells)

	prevApp, prevTitle := "", ""
	hasPrev := false
	segStart := 0
	for i := range in.Events {
		last := i == len(in.Events)-1
		runEnds := last || !in.Events[i].SameActivity(in.Events[i+1])
		if !runEnds {
			continue
		}

		first := in.Events[segStart]
		hsl := color.ColorFor(first.AppName, first.WindowTitle, prevApp, prevTitle, hasPrev)
		cr, cg, cb := hsl.RGB()
		fg := util.TrueColor(cr, cg, cb)

		startPx := in.View.ToPixel(float64(first.Timestamp))
		var endPx float64
		if last {
			// The final run has no successor; give it one tick of body.
			endPx = in.View.ToPixel(float64(in.Events[i].Timestamp)) + float64(in.TickInterval)*in.View.Zoom/4
		} else {
			endPx = in.View.ToPixel(float64(in.Events[i+1].Timestamp))
		}

		startCell := int(startPx / PixelsPerCell)
		endCell := int((endPx - arrowDepth) / PixelsPerCell)
		if endCell < startCell {
			endCell = startCell
		}
		for c := startCell; c <= endCell && c < widthCells; c++ {
			line.set(c, '█', fg)
		}
		// Chevron cell marks the activity transition.
		line.set(int(endPx/PixelsPerCell), '▶', fg)

		prevApp, prevTitle, hasPrev = first.AppName, first.WindowTitle, true
		segStart = i + 1
	}

	return line.String()
}

// nodeLine places the image-node markers the density planner accepted.
func (r *Renderer) nodeLine(in Input, widthCells int) string {
	line := newCellLine(widthCells)
	for _, plan := range in.Plans {
		if !plan.ShowImage {
			continue
		}
		ev := in.Events[plan.Index]
		key := ev.IdentityKey()
		cell := int(plan.X / PixelsPerCell)

		marker, fg := nodeMarker(in, key)
		if plan.Highlighted {
			marker, fg = '◈', util.ColorYellow+util.ColorBold
		} else if key == in.State.SelectedKey {
			fg = util.ColorCyan + util.ColorBold
		}
		line.set(cell, marker, fg)
	}
	return line.String()
}

func nodeMarker(in Input, key string) (rune, string) {
	state := NodeEmpty
	if in.ThumbState != nil {
		state = in.ThumbState(key)
	}
	switch state {
	case NodeLoaded:
		return '▣', util.ColorGreen
	case NodeLoading:
		return '◌', util.ColorDim
	default:
		return '·', util.ColorDim
	}
}

// labelLine writes segment-start labels: full app·title text at fine zoom,
// app only at compact zoom.
func (r *Renderer) labelLine(in Input, widthCells int) string {
	line := newCellLine(widthCells)
	compact := in.TickInterval > density.CompactTickMs

	lastEnd := -1
	for _, plan := range in.Plans {
		if !plan.ShowLabel {
			continue
		}
		ev := in.Events[plan.Index]
		text := ev.AppName
		if !compact && ev.WindowTitle != "" {
			text = ev.AppName + " · " + ev.WindowTitle
		}
		text = util.TruncateToWidth(text, 24)

		cell := int(plan.X / PixelsPerCell)
		if cell <= lastEnd {
			cell = lastEnd + 1
		}
		lastEnd = line.overlay(cell, text, "")
	}
	return line.String()
}

func (r *Renderer) cursorLine(in Input, widthCells int) string {
	line := newCellLine(widthCells)
	line.set(int(in.State.CursorPx/PixelsPerCell), '▲', util.ColorCyan)
	return line.String()
}

func (r *Renderer) statusLine(in Input) string {
	center := int64(in.View.CenterTime)
	age := humanize.Time(time.UnixMilli(center))
	span := spanDescription(in.View.VisibleSpan())

	mode := ""
	switch in.State.Mode {
	case model.ModeFollowing:
		mode = util.ColorGreen + "● following now" + util.ColorReset + "  "
	case model.ModeDragging:
		mode = "◂▸ panning  "
	}

	status := fmt.Sprintf(" %scenter %s (%s) · span %s · %d events",
		mode,
		util.GetTimeProvider().FormatMs(center, "2006-01-02 15:04:05"),
		age, span, in.IndexSize)
	if in.LastDataUpdate > 0 {
		status += " · updated " + humanize.Time(time.Unix(in.LastDataUpdate, 0))
	}
	if in.State.IsLoading {
		status += " · " + in.State.LoadingMessage
	}
	if in.State.StatusMessage != "" {
		status += " · " + in.State.StatusMessage
	}
	return status
}

// spanDescription renders a millisecond span as a human scale.
func spanDescription(spanMs float64) string {
	d := time.Duration(spanMs) * time.Millisecond
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.1fm", d.Minutes())
	case d < 24*time.Hour:
		return fmt.Sprintf("%.1fh", d.Hours())
	case d < 365*24*time.Hour:
		return fmt.Sprintf("%.1fd", d.Hours()/24)
	default:
		return fmt.Sprintf("%.1fy", d.Hours()/24/365)
	}
}

func (r *Renderer) detailLines(in Input, widthCells int) []string {
	var ev *model.EventRecord
	for i := range in.Events {
		if in.Events[i].IdentityKey() == in.State.SelectedKey {
			ev = &in.Events[i]
			break
		}
	}
	if ev == nil {
		return nil
	}

	when := util.GetTimeProvider().FormatMs(ev.Timestamp, "2006-01-02 15:04:05.000")
	thumb := "no thumbnail"
	if in.ThumbState != nil {
		switch in.ThumbState(ev.IdentityKey()) {
		case NodeLoaded:
			thumb = "thumbnail cached"
		case NodeLoading:
			thumb = "thumbnail loading"
		}
	}

	lines := []string{
		"",
		util.ColorBold + " Selected event" + util.ColorReset,
		fmt.Sprintf("   app:     %s", ev.AppName),
		fmt.Sprintf("   window:  %s", util.TruncateToWidth(ev.WindowTitle, widthCells-12)),
		fmt.Sprintf("   time:    %s (%s)", when, humanize.Time(time.UnixMilli(ev.Timestamp))),
	}
	if ev.ProcessPath != "" {
		lines = append(lines, fmt.Sprintf("   process: %s", util.TruncateToWidth(ev.ProcessPath, widthCells-12)))
	}
	lines = append(lines, fmt.Sprintf("   image:   %s", thumb))
	return lines
}

func helpLines() []string {
	return []string{
		"",
		util.ColorBold + " Keys" + util.ColorReset,
		"   ←/→ h/l   pan            H/L        page pan",
		"   +/-       zoom at cursor ,/.        move cursor",
		"   f         follow now     g          jump to time",
		"   n/p       select node    Enter      show detail",
		"   r         force refresh  Esc        clear selection",
		"   ?          help          q/Ctrl+C   quit",
	}
}
