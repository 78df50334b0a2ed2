// Package stage drives the motorized sample stage over a serial link.
package stage

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/verte-zerg/pointcount/internal/model"
)

// DefaultMaxStepDistance is the step distance ceiling in inches.
const DefaultMaxStepDistance = 5.0

// ErrNotConnected is returned by operations that need an open transport.
var ErrNotConnected = errors.New("stage is not connected")

// State is the lifecycle state of the motor transport.
type State int

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	switch s {
	case Connected:
		return "Connected"
	default:
		return "Disconnected"
	}
}

// link is the tagged transport value. port and device are meaningful only in
// the Connected state.
type link struct {
	state  State
	port   Port
	device Device
}

// Driver turns distances into move commands and writes them to the stage.
// Moves are fire-and-forget: nothing is read back from the controller.
type Driver struct {
	link            link
	manufacturer    string
	stepDistance    float64
	maxStepDistance float64
	logger          *slog.Logger
}

// NewDriver creates a disconnected driver.
func NewDriver(cfg model.StageConfig, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	maxStep := cfg.MaxStepDistance
	if maxStep <= 0 || math.IsNaN(maxStep) {
		maxStep = DefaultMaxStepDistance
	}
	d := &Driver{
		manufacturer:    cfg.USBManufacturer,
		maxStepDistance: maxStep,
		logger:          logger,
	}
	d.SetStepDistance(cfg.StepDistance)
	return d
}

// Start discovers the configured device and connects to it. Failures leave the
// driver Disconnected; they are logged once and returned for callers that want
// to report them.
func (d *Driver) Start(enum Enumerator, open Opener) error {
	dev, err := Discover(enum, d.manufacturer)
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			d.logger.Warn("stage device not found; moves disabled", "manufacturer", d.manufacturer)
		} else {
			d.logger.Warn("serial enumeration failed; moves disabled", "error", err)
		}
		return err
	}
	return d.Connect(dev, open)
}

// Connect opens a transport to dev. A driver that is already connected keeps
// its current link.
func (d *Driver) Connect(dev Device, open Opener) error {
	switch d.link.state {
	case Connected:
		return nil
	case Disconnected:
		port, err := open(dev.Path)
		if err != nil {
			d.logger.Warn("failed to open stage device; moves disabled", "device", dev.Path, "error", err)
			return fmt.Errorf("failed to open %s: %w", dev.Path, err)
		}
		d.link = link{state: Connected, port: port, device: dev}
		d.logger.Info("stage connected", "device", dev.Path, "manufacturer", dev.Manufacturer)
		return nil
	default:
		return fmt.Errorf("unknown stage state %d", d.link.state)
	}
}

// State returns the transport state.
func (d *Driver) State() State {
	return d.link.state
}

// Device returns the connected device.
func (d *Driver) Device() (Device, error) {
	switch d.link.state {
	case Connected:
		return d.link.device, nil
	default:
		return Device{}, ErrNotConnected
	}
}

// Move sends a move of inches in the given direction and returns the command.
// Without a connection the command is formatted but not sent.
func (d *Driver) Move(inches float64, forward bool) (string, error) {
	cmd := Command(inches, forward)
	switch d.link.state {
	case Connected:
		if _, err := d.link.port.Write([]byte(cmd)); err != nil {
			d.logger.Error("stage write failed", "command", cmd, "device", d.link.device.Path, "error", err)
			return cmd, fmt.Errorf("failed to write move command: %w", err)
		}
		d.logger.Debug("stage move", "command", cmd, "device", d.link.device.Path)
		return cmd, nil
	default:
		return cmd, nil
	}
}

// Advance moves forward by the step distance.
func (d *Driver) Advance() (string, error) {
	return d.Move(d.stepDistance, true)
}

// Retreat moves backward by the step distance.
func (d *Driver) Retreat() (string, error) {
	return d.Move(d.stepDistance, false)
}

// SetStepDistance clamps v into [0, max] and stores it. The stored value is
// returned.
func (d *Driver) SetStepDistance(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		v = 0
	case v > d.maxStepDistance:
		v = d.maxStepDistance
	}
	d.stepDistance = v
	return v
}

// StepDistance returns the configured move increment in inches.
func (d *Driver) StepDistance() float64 {
	return d.stepDistance
}

// MaxStepDistance returns the clamp ceiling in inches.
func (d *Driver) MaxStepDistance() float64 {
	return d.maxStepDistance
}

// Close releases the transport at shutdown.
func (d *Driver) Close() error {
	switch d.link.state {
	case Connected:
		port := d.link.port
		d.link = link{}
		return port.Close()
	default:
		return nil
	}
}
