package util

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Terminal control sequences
const (
	ColorReset   = "\033[0m"
	ColorBlue    = "\033[34m"
	ColorCyan    = "\033[36m"
	ColorGreen   = "\033[32m"
	ColorYellow  = "\033[33m"
	ColorRed     = "\033[31m"
	ColorMagenta = "\033[35m"
	ColorDim     = "\033[2m"
	ColorBold    = "\033[1m"

	ClearScreen         = "\033[2J"     // Clear entire screen
	ClearLine           = "\033[2K"     // Clear entire line
	ClearLineFromCursor = "\033[0K"     // Clear from cursor to end of line
	ClearScrollback     = "\033[3J"     // Clear scrollback buffer
	ResetScrollRegion   = "\033[r"      // Reset scroll region
	DisableScrollback   = "\033[?1007h" // Disable scrollback
	EnableScrollback    = "\033[?1007l" // Enable scrollback
	MoveCursorHome      = "\033[H"      // Move cursor to home position
	SaveCursor          = "\033[s"      // Save cursor position
	RestoreCursor       = "\033[u"      // Restore cursor position
	HideCursor          = "\033[?25l"   // Hide cursor
	ShowCursor          = "\033[?25h"   // Show cursor
)

// TrueColor returns the 24-bit foreground escape for an RGB triple.
func TrueColor(r, g, b uint8) string {
	return fmt.Sprintf("\033[38;2;%d;%d;%dm", r, g, b)
}

// TrueColorBg returns the 24-bit background escape for an RGB triple.
func TrueColorBg(r, g, b uint8) string {
	return fmt.Sprintf("\033[48;2;%d;%d;%dm", r, g, b)
}

// GetDisplayWidth calculates the actual display width of a string,
// accounting for wide runes and emojis.
func GetDisplayWidth(text string) int {
	return runewidth.StringWidth(text)
}

// TruncateToWidth shortens text to fit the given display width, appending
// an ellipsis when it had to cut.
func TruncateToWidth(text string, width int) string {
	if runewidth.StringWidth(text) <= width {
		return text
	}
	if width <= 1 {
		return runewidth.Truncate(text, width, "")
	}
	return runewidth.Truncate(text, width, "…")
}

// MoveCursor returns ANSI sequence to move cursor to specific position
func MoveCursor(row, col int) string {
	return fmt.Sprintf("\033[%d;%dH", row, col)
}

// CenterText centers text within the given width
func CenterText(text string, width int) string {
	w := runewidth.StringWidth(text)
	if w >= width {
		return runewidth.Truncate(text, width, "")
	}
	padding := (width - w) / 2
	return strings.Repeat(" ", padding) + text + strings.Repeat(" ", width-padding-w)
}
