package render

import (
	"strings"

	"github.com/penwyp/go-activity-timeline/internal/util"
)

// PixelsPerCell maps the engine's pixel space onto terminal columns. All
// density and geometry math stays in pixels; only frame assembly divides.
const PixelsPerCell = 10.0

// Frame is one fully assembled screen: plain lines, ANSI included.
type Frame struct {
	Lines []string
}

// cellLine accumulates one row of styled cells before flattening to a
// string. Colors are per-cell ANSI prefixes; empty means default.
type cellLine struct {
	runes  []rune
	colors []string
}

func newCellLine(width int) *cellLine {
	cl := &cellLine{
		runes:  make([]rune, width),
		colors: make([]string, width),
	}
	for i := range cl.runes {
		cl.runes[i] = ' '
	}
	return cl
}

func (cl *cellLine) set(col int, r rune, color string) {
	if col < 0 || col >= len(cl.runes) {
		return
	}
	cl.runes[col] = r
	cl.colors[col] = color
}

// overlay writes text starting at col, clipped to the line. Returns the
// column after the last written rune.
func (cl *cellLine) overlay(col int, text string, color string) int {
	for _, r := range text {
		if col >= len(cl.runes) {
			break
		}
		if col >= 0 {
			cl.runes[col] = r
			cl.colors[col] = color
		}
		col++
	}
	return col
}

func (cl *cellLine) String() string {
	var b strings.Builder
	current := ""
	for i, r := range cl.runes {
		if cl.colors[i] != current {
			if current != "" {
				b.WriteString(util.ColorReset)
			}
			if cl.colors[i] != "" {
				b.WriteString(cl.colors[i])
			}
			current = cl.colors[i]
		}
		b.WriteRune(r)
	}
	if current != "" {
		b.WriteString(util.ColorReset)
	}
	return strings.TrimRight(b.String(), " ")
}
