package stage

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"go.bug.st/serial/enumerator"

	"github.com/verte-zerg/pointcount/internal/model"
)

// recordingPort records every write.
type recordingPort struct {
	writes   []string
	writeErr error
	closed   bool
}

func (p *recordingPort) Write(b []byte) (int, error) {
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.writes = append(p.writes, string(b))
	return len(b), nil
}

func (p *recordingPort) Close() error {
	p.closed = true
	return nil
}

func staticDevices(devices ...Device) Enumerator {
	return EnumeratorFunc(func() ([]Device, error) {
		return devices, nil
	})
}

func openerFor(port *recordingPort, opened *string) Opener {
	return func(path string) (Port, error) {
		if opened != nil {
			*opened = path
		}
		return port, nil
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDriver(t *testing.T) *Driver {
	t.Helper()
	return NewDriver(model.StageConfig{
		USBManufacturer: "Velmex",
		StepDistance:    0.1,
		MaxStepDistance: 5.0,
	}, testLogger())
}

func TestCommandFormat(t *testing.T) {
	tests := []struct {
		name    string
		inches  float64
		forward bool
		want    string
	}{
		{"ForwardTenth", 0.1, true, "F,C,I1M1550,L1;"},
		{"BackwardTenth", 0.1, false, "F,C,I1M-1550,L1;"},
		{"ForwardInch", 1, true, "F,C,I1M15500,L1;"},
		{"RoundsToNearestStep", 0.00003, true, "F,C,I1M0,L1;"},
		{"RoundsUp", 0.00004, true, "F,C,I1M1,L1;"},
		{"ZeroBackward", 0, false, "F,C,I1M0,L1;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Command(tt.inches, tt.forward); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestDiscoverSelectsFirstManufacturerMatch(t *testing.T) {
	enum := staticDevices(
		Device{Path: "/dev/ttyUSB0", Manufacturer: "Generic"},
		Device{Path: "/dev/ttyUSB1", Manufacturer: "Velmex Inc."},
		Device{Path: "/dev/ttyUSB2", Manufacturer: "Velmex Inc."},
	)
	dev, err := Discover(enum, "Velmex")
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if dev.Path != "/dev/ttyUSB1" {
		t.Fatalf("expected second device, got %s", dev.Path)
	}
}

func TestDiscoverIsCaseSensitiveSubstring(t *testing.T) {
	enum := staticDevices(Device{Path: "/dev/ttyUSB0", Manufacturer: "velmex inc."})
	if _, err := Discover(enum, "Velmex"); !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}
	enum = staticDevices(Device{Path: "/dev/ttyUSB0", Manufacturer: "Vel.ex"})
	if _, err := Discover(enum, "Vel.ex"); err != nil {
		t.Fatalf("expected literal match, got %v", err)
	}
}

func TestMatchIgnoresEmptyValues(t *testing.T) {
	devices := []Device{{Manufacturer: ""}, {Manufacturer: "Velmex"}}
	if idx := Match(devices, ""); idx != -1 {
		t.Fatalf("expected empty substring to match nothing, got %d", idx)
	}
	if idx := Match(devices, "Velmex"); idx != 1 {
		t.Fatalf("expected index 1, got %d", idx)
	}
}

func TestStartWithoutDeviceStaysDisconnected(t *testing.T) {
	d := testDriver(t)
	port := &recordingPort{}
	err := d.Start(staticDevices(Device{Path: "/dev/ttyS0", Manufacturer: "Generic"}), openerFor(port, nil))
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}
	if d.State() != Disconnected {
		t.Fatalf("expected Disconnected, got %v", d.State())
	}
	cmd, err := d.Advance()
	if err != nil {
		t.Fatalf("advance while disconnected: %v", err)
	}
	if cmd != "F,C,I1M1550,L1;" {
		t.Fatalf("unexpected command %q", cmd)
	}
	if len(port.writes) != 0 {
		t.Fatalf("expected no writes while disconnected")
	}
	if _, err := d.Device(); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestStartConnectsAndWritesCommands(t *testing.T) {
	d := testDriver(t)
	port := &recordingPort{}
	var opened string
	err := d.Start(staticDevices(
		Device{Path: "/dev/ttyS0", Manufacturer: "Generic"},
		Device{Path: "/dev/ttyUSB0", Manufacturer: "Velmex Inc."},
	), openerFor(port, &opened))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if opened != "/dev/ttyUSB0" {
		t.Fatalf("expected /dev/ttyUSB0 opened, got %q", opened)
	}
	if d.State() != Connected {
		t.Fatalf("expected Connected, got %v", d.State())
	}
	if _, err := d.Advance(); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if _, err := d.Retreat(); err != nil {
		t.Fatalf("retreat: %v", err)
	}
	want := []string{"F,C,I1M1550,L1;", "F,C,I1M-1550,L1;"}
	if len(port.writes) != len(want) {
		t.Fatalf("expected %d writes, got %v", len(want), port.writes)
	}
	for i := range want {
		if port.writes[i] != want[i] {
			t.Fatalf("write %d: expected %q, got %q", i, want[i], port.writes[i])
		}
	}
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !port.closed {
		t.Fatalf("expected port closed")
	}
}

func TestConnectFailureStaysDisconnected(t *testing.T) {
	d := testDriver(t)
	openErr := errors.New("permission denied")
	err := d.Connect(Device{Path: "/dev/ttyUSB0"}, func(string) (Port, error) {
		return nil, openErr
	})
	if !errors.Is(err, openErr) {
		t.Fatalf("expected wrapped open error, got %v", err)
	}
	if d.State() != Disconnected {
		t.Fatalf("expected Disconnected after failed open")
	}
	if _, err := d.Advance(); err != nil {
		t.Fatalf("advance should be a no-op, got %v", err)
	}
}

func TestMoveReportsWriteError(t *testing.T) {
	d := testDriver(t)
	port := &recordingPort{writeErr: errors.New("device unplugged")}
	if err := d.Connect(Device{Path: "/dev/ttyUSB0"}, openerFor(port, nil)); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := d.Advance(); err == nil {
		t.Fatalf("expected write error")
	}
	if d.State() != Connected {
		t.Fatalf("write error must not change state")
	}
}

func TestSetStepDistanceClamps(t *testing.T) {
	d := testDriver(t)
	tests := []struct {
		in, want float64
	}{
		{7.0, 5.0},
		{-1.0, 0.0},
		{0.25, 0.25},
		{5.0, 5.0},
		{0, 0},
	}
	for _, tt := range tests {
		if got := d.SetStepDistance(tt.in); got != tt.want {
			t.Fatalf("SetStepDistance(%v): expected %v, got %v", tt.in, tt.want, got)
		}
		if d.StepDistance() != tt.want {
			t.Fatalf("stored %v, expected %v", d.StepDistance(), tt.want)
		}
	}
}

func TestNewDriverDefaultsMaxStepDistance(t *testing.T) {
	d := NewDriver(model.StageConfig{StepDistance: 9}, testLogger())
	if d.MaxStepDistance() != DefaultMaxStepDistance {
		t.Fatalf("expected default max, got %v", d.MaxStepDistance())
	}
	if d.StepDistance() != DefaultMaxStepDistance {
		t.Fatalf("expected clamped initial step, got %v", d.StepDistance())
	}
}

func TestUSBManufacturerFromSysfs(t *testing.T) {
	root := t.TempDir()
	usbDevice := filepath.Join(root, "devices", "usb1", "1-1")
	ttyNode := filepath.Join(usbDevice, "1-1:1.0", "ttyUSB0")
	if err := os.MkdirAll(ttyNode, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(usbDevice, "manufacturer"), []byte("Velmex Inc.\n"), 0o644); err != nil {
		t.Fatalf("write manufacturer: %v", err)
	}
	classDir := filepath.Join(root, "class", "tty", "ttyUSB0")
	if err := os.MkdirAll(classDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.Symlink(ttyNode, filepath.Join(classDir, "device")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	prev := sysfsTTYRoot
	sysfsTTYRoot = filepath.Join(root, "class", "tty")
	t.Cleanup(func() { sysfsTTYRoot = prev })

	if got := usbManufacturer("/dev/ttyUSB0"); got != "Velmex Inc." {
		t.Fatalf("expected manufacturer from sysfs, got %q", got)
	}
	if got := usbManufacturer("/dev/ttyUSB9"); got != "" {
		t.Fatalf("expected empty manufacturer for unknown tty, got %q", got)
	}
}

func TestDeviceFromDetailsFallsBackToProduct(t *testing.T) {
	dev := deviceFromDetails(&enumerator.PortDetails{
		Name:    "/dev/cu.usbserial-1",
		IsUSB:   true,
		VID:     "0403",
		PID:     "6001",
		Product: "VXM Controller",
	}, "")
	if dev.Manufacturer != "VXM Controller" {
		t.Fatalf("expected product fallback, got %q", dev.Manufacturer)
	}
	if dev.Name != "cu.usbserial-1" || dev.Description != "VXM Controller (cu.usbserial-1)" {
		t.Fatalf("unexpected device: %+v", dev)
	}
}
