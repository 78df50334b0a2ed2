package report

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"golang.org/x/term"

	"github.com/verte-zerg/pointcount/internal/export"
	"github.com/verte-zerg/pointcount/internal/model"
	"github.com/verte-zerg/pointcount/internal/stage"
)

const terminalWidthBackup = 80

// RenderTally prints the tally grid: input key, component, count, percent.
func RenderTally(w io.Writer, tally model.Tally) error {
	headers := []string{"Input", "Component", "Count", "Percent"}
	rows := make([][]string, 0, len(tally.Rows)+1)
	for _, r := range tally.Rows {
		rows = append(rows, []string{r.Key, r.Label, strconv.Itoa(r.Count), export.FormatPercent(r.Percent)})
	}
	rows = append(rows, []string{"", tally.TotalLabel, strconv.Itoa(tally.TotalCount), export.FormatPercent(tally.TotalPercent)})
	for _, line := range formatTable(headers, rows, map[int]bool{2: true, 3: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderDevices lists serial devices and marks the one at selected. Columns
// are truncated to fit width when width is positive.
func RenderDevices(w io.Writer, devices []stage.Device, selected, width int) error {
	if len(devices) == 0 {
		_, err := fmt.Fprintln(w, "No serial devices found.")
		return err
	}
	headers := []string{"", "Path", "VID:PID", "Manufacturer", "Product"}
	rows := make([][]string, 0, len(devices))
	for i, dev := range devices {
		mark := ""
		if i == selected {
			mark = "*"
		}
		ids := ""
		if dev.IsUSB {
			ids = dev.VID + ":" + dev.PID
		}
		rows = append(rows, []string{mark, dev.Path, ids, dev.Manufacturer, dev.Product})
	}
	lines := formatTable(headers, rows, nil)
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, truncate(line, width)); err != nil {
			return err
		}
	}
	return nil
}

// TerminalWidth returns the width of stdout, or a fallback when stdout is
// not a terminal.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
