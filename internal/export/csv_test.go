package export

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/verte-zerg/pointcount/internal/ledger"
	"github.com/verte-zerg/pointcount/internal/model"
)

func sampleTally() model.Tally {
	l := ledger.New()
	l.Record(model.Paste)
	l.Record(model.Paste)
	l.Record(model.CoarseAggregate)
	l.Record(model.Other)
	return l.Tally(model.DefaultCategorySet())
}

const sampleCSV = "Component,Count,Percent\n" +
	"Paste,2,50.0\n" +
	"Coarse Aggregate,1,25.0\n" +
	"Fine Aggregate,0,0.0\n" +
	"Entrained Air,0,0.0\n" +
	"Entrapped Air,0,0.0\n" +
	"Other,1,25.0\n" +
	"Total,4,100.0\n"

func TestWriteCSVLayout(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleTally()); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if buf.String() != sampleCSV {
		t.Fatalf("unexpected csv:\n%s", buf.String())
	}
}

func TestWriteCSVEmptyLedger(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, ledger.New().Tally(model.DefaultCategorySet())); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	want := "Component,Count,Percent\n" +
		"Paste,0,0.0\n" +
		"Coarse Aggregate,0,0.0\n" +
		"Fine Aggregate,0,0.0\n" +
		"Entrained Air,0,0.0\n" +
		"Entrapped Air,0,0.0\n" +
		"Other,0,0.0\n" +
		"Total,0,0.0\n"
	if buf.String() != want {
		t.Fatalf("unexpected csv:\n%s", buf.String())
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "count.csv")
	if err := WriteFile(path, sampleTally()); err != nil {
		t.Fatalf("write file: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != sampleCSV {
		t.Fatalf("unexpected file content:\n%s", data)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp file to be cleaned up, found %d entries", len(entries))
	}
}

func TestNormalizePath(t *testing.T) {
	if _, err := NormalizePath("   "); !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	got, err := NormalizePath(" run-1 ")
	if err != nil || got != "run-1.csv" {
		t.Fatalf("expected run-1.csv, got %q (%v)", got, err)
	}
	got, err = NormalizePath("run-1.txt")
	if err != nil || got != "run-1.txt" {
		t.Fatalf("expected extension kept, got %q (%v)", got, err)
	}
}

func TestDefaultFilename(t *testing.T) {
	ts := time.Date(2024, time.March, 5, 14, 7, 9, 0, time.UTC)
	if got := DefaultFilename(ts); got != "aggregate-count-05-03-2024_02-07-09_PM.csv" {
		t.Fatalf("unexpected filename %q", got)
	}
}

func TestWriteFileIsWorldReadable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	path := filepath.Join(t.TempDir(), "counts.csv")
	if err := os.WriteFile(path, []byte("old\n"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := WriteFile(path, sampleTally()); err != nil {
		t.Fatalf("write: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o644 {
		t.Fatalf("expected mode 0644, got %v", perm)
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "counts.csv")
	if Exists(path) {
		t.Fatalf("expected missing file")
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !Exists(path) {
		t.Fatalf("expected existing file")
	}
}
