package stage

import (
	"os"
	"path/filepath"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// sysfsTTYRoot is where Linux exposes tty devices and their USB parents.
var sysfsTTYRoot = "/sys/class/tty"

// SerialEnumerator lists ports through go.bug.st/serial.
type SerialEnumerator struct{}

// Devices implements Enumerator.
func (SerialEnumerator) Devices() ([]Device, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}
	devices := make([]Device, 0, len(ports))
	for _, p := range ports {
		devices = append(devices, deviceFromDetails(p, usbManufacturer(p.Name)))
	}
	return devices, nil
}

func deviceFromDetails(p *enumerator.PortDetails, manufacturer string) Device {
	name := filepath.Base(p.Name)
	description := name
	if p.Product != "" {
		description = p.Product + " (" + name + ")"
	}
	if manufacturer == "" {
		// Outside Linux the enumerator reports no manufacturer; the product
		// string is the closest description the OS offers.
		manufacturer = p.Product
	}
	return Device{
		Path:         p.Name,
		Name:         name,
		Description:  description,
		Manufacturer: manufacturer,
		Product:      p.Product,
		VID:          p.VID,
		PID:          p.PID,
		SerialNumber: p.SerialNumber,
		IsUSB:        p.IsUSB,
	}
}

// usbManufacturer reads the USB manufacturer string for a tty from sysfs.
// It walks up from the tty's device node until a manufacturer attribute is
// found, which covers both ttyACM (interface parent) and ttyUSB (usb-serial
// child of the interface).
func usbManufacturer(portPath string) string {
	devLink := filepath.Join(sysfsTTYRoot, filepath.Base(portPath), "device")
	dir, err := filepath.EvalSymlinks(devLink)
	if err != nil {
		return ""
	}
	for i := 0; i < 4; i++ {
		data, err := os.ReadFile(filepath.Join(dir, "manufacturer"))
		if err == nil {
			return strings.TrimSpace(string(data))
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// Port is the write side of an open transport.
type Port interface {
	Write(p []byte) (int, error)
	Close() error
}

// Opener opens a transport for a device path.
type Opener func(path string) (Port, error)

// SerialOpener opens the device with the library's default mode. Baud rate,
// parity and framing are never configured by this tool.
func SerialOpener(path string) (Port, error) {
	return serial.Open(path, &serial.Mode{})
}
