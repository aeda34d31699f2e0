package export

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// GridEntry is one occupied cell of a weekly timetable.
type GridEntry struct {
	Day       int // ISO weekday, 1=Monday .. 7=Sunday
	StartTime string
	EndTime   string
	Lines     []string // rendered top to bottom inside the cell
}

// WeekGrid is a weekly timetable for a single room or professor: weekdays
// across, time windows down.
type WeekGrid struct {
	Title   string
	Entries []GridEntry
}

var weekdayNames = [8]string{"", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// PDFExporter renders weekly timetable grids.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render draws the grid on a landscape A4 page. Rows are the distinct time
// windows appearing in the entries, sorted by start time; empty cells stay
// blank.
func (e *PDFExporter) Render(grid WeekGrid) ([]byte, error) {
	windows := e.timeWindows(grid.Entries)
	if len(windows) == 0 {
		return nil, fmt.Errorf("timetable grid has no entries")
	}

	cells := make(map[string]GridEntry, len(grid.Entries))
	for _, entry := range grid.Entries {
		if entry.Day < 1 || entry.Day > 7 {
			return nil, fmt.Errorf("grid entry has weekday %d, want 1..7", entry.Day)
		}
		cells[fmt.Sprintf("%d|%s", entry.Day, entry.StartTime)] = entry
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.AddPage()

	if grid.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, grid.Title, "", 1, "C", false, 0, "")
		pdf.Ln(3)
	}

	const timeColWidth = 27.0
	dayColWidth := (277.0 - timeColWidth) / 7.0
	rowHeight := 22.0

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(timeColWidth, 8, "Time", "1", 0, "C", false, 0, "")
	for day := 1; day <= 7; day++ {
		pdf.CellFormat(dayColWidth, 8, weekdayNames[day], "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	for _, window := range windows {
		x, y := pdf.GetX(), pdf.GetY()
		pdf.SetFont("Arial", "B", 8)
		pdf.CellFormat(timeColWidth, rowHeight, window, "1", 0, "C", false, 0, "")

		pdf.SetFont("Arial", "", 8)
		start := strings.SplitN(window, " - ", 2)[0]
		for day := 1; day <= 7; day++ {
			cellX := x + timeColWidth + float64(day-1)*dayColWidth
			pdf.SetXY(cellX, y)
			entry, ok := cells[fmt.Sprintf("%d|%s", day, start)]
			if !ok {
				pdf.CellFormat(dayColWidth, rowHeight, "", "1", 0, "", false, 0, "")
				continue
			}
			pdf.MultiCell(dayColWidth, rowHeight/float64(maxInt(len(entry.Lines), 1)), strings.Join(entry.Lines, "\n"), "1", "C", false)
		}
		pdf.SetXY(x, y+rowHeight)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render timetable pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *PDFExporter) timeWindows(entries []GridEntry) []string {
	seen := map[string]bool{}
	var windows []string
	for _, entry := range entries {
		window := entry.StartTime + " - " + entry.EndTime
		if !seen[window] {
			seen[window] = true
			windows = append(windows, window)
		}
	}
	sort.Strings(windows)
	return windows
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
