// Package export writes tally snapshots as CSV.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/verte-zerg/pointcount/internal/model"
)

// ErrCancelled marks an export the operator dismissed. Nothing is written.
var ErrCancelled = errors.New("export cancelled")

// Header is the first CSV row. The on-screen input column is omitted.
var Header = []string{"Component", "Count", "Percent"}

const filenameLayout = "02-01-2006_03-04-05_PM"

// DefaultFilename returns the suggested export file name for t.
func DefaultFilename(t time.Time) string {
	return "aggregate-count-" + t.Format(filenameLayout) + ".csv"
}

// FormatPercent renders a percent with one decimal place.
func FormatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', 1, 64)
}

// WriteCSV writes the tally rows in order followed by the total row.
func WriteCSV(w io.Writer, tally model.Tally) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, row := range tally.Rows {
		if err := cw.Write([]string{row.Label, strconv.Itoa(row.Count), FormatPercent(row.Percent)}); err != nil {
			return err
		}
	}
	if err := cw.Write([]string{tally.TotalLabel, strconv.Itoa(tally.TotalCount), FormatPercent(tally.TotalPercent)}); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// NormalizePath trims the path and appends .csv when no extension is given.
// An empty path means the export was cancelled.
func NormalizePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", ErrCancelled
	}
	if filepath.Ext(path) == "" {
		path += ".csv"
	}
	return path, nil
}

// Exists reports whether something is already at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// WriteFile writes the tally to path through a temp file and rename.
func WriteFile(path string, tally model.Tally) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create export dir: %w", err)
	}
	tmpFile, err := os.CreateTemp(dir, "aggregate-count-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp export: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if err := WriteCSV(tmpFile, tally); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	// CreateTemp uses 0600; exports are ordinary user files.
	if err := tmpFile.Chmod(0o644); err != nil {
		return fmt.Errorf("failed to set export mode: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close export: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}
