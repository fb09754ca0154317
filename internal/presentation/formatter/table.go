// Package formatter renders one-shot query output: an aligned table for
// humans, JSON for scripts.
package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/penwyp/go-activity-timeline/internal/core/model"
	"github.com/penwyp/go-activity-timeline/internal/util"
)

// maxTitleWidth caps the window-title column so one long title does not
// blow up the whole table.
const maxTitleWidth = 48

type TableFormatter struct {
	headers []string
}

func NewTableFormatter() *TableFormatter {
	return &TableFormatter{
		headers: []string{"Time", "App", "Window Title", "Duration", "Image"},
	}
}

func (f *TableFormatter) Format(records []model.EventRecord) error {
	rows := make([][]string, len(records))
	for i := range records {
		rows[i] = f.row(records, i)
	}

	widths := f.calculateColumnWidths(rows)

	f.printBorder(widths, "top")
	f.printRow(f.headers, widths)
	f.printBorder(widths, "middle")
	for _, row := range rows {
		f.printRow(row, widths)
	}
	f.printBorder(widths, "middle")
	f.printRow([]string{fmt.Sprintf("%d records", len(records)), "", "", totalDuration(records), ""}, widths)
	f.printBorder(widths, "bottom")

	return nil
}

func (f *TableFormatter) row(records []model.EventRecord, i int) []string {
	r := records[i]

	duration := "-"
	if i+1 < len(records) {
		d := time.Duration(records[i+1].Timestamp-r.Timestamp) * time.Millisecond
		duration = d.Round(time.Second).String()
	}

	image := ""
	if r.ImagePath != "" {
		image = "✓"
	}

	return []string{
		util.GetTimeProvider().FormatMs(r.Timestamp, "2006-01-02 15:04:05"),
		r.AppName,
		util.TruncateToWidth(r.WindowTitle, maxTitleWidth),
		duration,
		image,
	}
}

func totalDuration(records []model.EventRecord) string {
	if len(records) < 2 {
		return "-"
	}
	span := time.Duration(records[len(records)-1].Timestamp-records[0].Timestamp) * time.Millisecond
	return humanize.Time(time.Now().Add(-span)) + " span"
}

// calculateColumnWidths determines display width for each column, wide-rune
// aware.
func (f *TableFormatter) calculateColumnWidths(rows [][]string) []int {
	widths := make([]int, len(f.headers))
	for i, header := range f.headers {
		widths[i] = util.GetDisplayWidth(header)
	}
	for _, row := range rows {
		for i, value := range row {
			if w := util.GetDisplayWidth(value); w > widths[i] {
				widths[i] = w
			}
		}
	}
	return widths
}

func (f *TableFormatter) printBorder(widths []int, borderType string) {
	var left, middle, right, separator string

	switch borderType {
	case "top":
		left, middle, right, separator = "┌", "┬", "┐", "─"
	case "middle":
		left, middle, right, separator = "├", "┼", "┤", "─"
	case "bottom":
		left, middle, right, separator = "└", "┴", "┘", "─"
	}

	fmt.Print(left)
	for i, width := range widths {
		fmt.Print(strings.Repeat(separator, width+2))
		if i < len(widths)-1 {
			fmt.Print(middle)
		}
	}
	fmt.Println(right)
}

// printRow prints one row, padding by display width so wide runes line up.
func (f *TableFormatter) printRow(values []string, widths []int) {
	fmt.Print("│")
	for i, value := range values {
		pad := widths[i] - util.GetDisplayWidth(value)
		if pad < 0 {
			pad = 0
		}
		fmt.Printf(" %s%s │", value, strings.Repeat(" ", pad))
	}
	fmt.Println()
}
