package render

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/penwyp/go-activity-timeline/internal/util"
)

// TerminalDisplay owns the alternate-screen buffer and paints frames into
// it with differential updates: unchanged lines are skipped so the terminal
// never flickers on the high-rate follow ticker.
type TerminalDisplay struct {
	inAlternateScreen bool
	previousLines     []string
	isFirstRender     bool
}

func NewTerminalDisplay() *TerminalDisplay {
	return &TerminalDisplay{isFirstRender: true}
}

// Size reports the terminal dimensions, falling back to 80x24 when stdout
// is not a terminal.
func (td *TerminalDisplay) Size() (width, height int) {
	w, h, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 || h <= 0 {
		return 80, 24
	}
	return w, h
}

// EnterAlternateScreen switches to the alternate screen buffer.
func (td *TerminalDisplay) EnterAlternateScreen() {
	if td.inAlternateScreen {
		return
	}
	fmt.Print("\033[?1049h")
	fmt.Print(util.ClearScreen)
	fmt.Print(util.MoveCursorHome)
	fmt.Print(util.ClearScrollback)
	fmt.Print(util.ResetScrollRegion)
	fmt.Print(util.DisableScrollback)
	fmt.Print(util.HideCursor)
	td.inAlternateScreen = true
	td.isFirstRender = true
}

// ExitAlternateScreen returns to the normal screen buffer.
func (td *TerminalDisplay) ExitAlternateScreen() {
	if !td.inAlternateScreen {
		return
	}
	fmt.Print(util.ClearScreen)
	fmt.Print(util.MoveCursorHome)
	fmt.Print(util.EnableScrollback)
	fmt.Print(util.ShowCursor)
	fmt.Print("\033[?1049l")
	td.inAlternateScreen = false
}

// Render paints a frame. Only lines that changed since the previous frame
// are rewritten; a shrinking frame clears the leftover rows below it.
func (td *TerminalDisplay) Render(frame Frame) {
	if td.isFirstRender {
		fmt.Print(util.ClearScreen)
		td.previousLines = nil
		td.isFirstRender = false
	}
	fmt.Print(util.MoveCursorHome)

	for i, line := range frame.Lines {
		if i < len(td.previousLines) && td.previousLines[i] == line {
			continue
		}
		fmt.Print(util.MoveCursor(i+1, 1))
		fmt.Print(line)
		fmt.Print(util.ClearLineFromCursor)
	}
	if len(frame.Lines) < len(td.previousLines) {
		fmt.Print(util.MoveCursor(len(frame.Lines)+1, 1))
		fmt.Print("\033[J")
	}

	td.previousLines = frame.Lines
}

// Invalidate forces the next Render to repaint every line.
func (td *TerminalDisplay) Invalidate() {
	td.isFirstRender = true
}
