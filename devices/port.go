package devices

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	goserial "github.com/jacobsa/go-serial/serial"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"tt-commander/config"
)

// ErrBoardNotFound is returned when auto-detection finds no demo board.
var ErrBoardNotFound = errors.New("tiny tapeout board not found")

// PortInfo describes a serial port seen on the host.
type PortInfo struct {
	Name    string `json:"name"`
	IsUSB   bool   `json:"is_usb"`
	VID     string `json:"vid,omitempty"`
	PID     string `json:"pid,omitempty"`
	Product string `json:"product,omitempty"`
	Serial  string `json:"serial,omitempty"`
	IsBoard bool   `json:"is_board"`
}

// ListPorts returns the serial ports of this host. When the enumerator finds
// nothing, the usual device names for the platform are returned instead.
func ListPorts() ([]PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}
	var out []PortInfo
	for _, port := range ports {
		out = append(out, PortInfo{
			Name:    port.Name,
			IsUSB:   port.IsUSB,
			VID:     port.VID,
			PID:     port.PID,
			Product: port.Product,
			Serial:  port.SerialNumber,
			IsBoard: isBoard(port.IsUSB, port.VID, port.PID),
		})
	}
	if len(out) == 0 {
		for _, name := range commonPorts() {
			out = append(out, PortInfo{Name: name})
		}
	}
	return out, nil
}

// FindBoardPort returns the first USB port whose id matches the demo board.
func FindBoardPort() (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", err
	}
	for _, port := range ports {
		if isBoard(port.IsUSB, port.VID, port.PID) {
			return port.Name, nil
		}
	}
	return "", ErrBoardNotFound
}

// OpenPort opens the serial port at the configured baud rate with the
// selected driver. An empty port name triggers auto-detection.
func OpenPort(cfg config.SerialConfig) (io.ReadWriteCloser, string, error) {
	name := cfg.Port
	if name == "" {
		found, err := FindBoardPort()
		if err != nil {
			return nil, "", err
		}
		name = found
	}
	baud := cfg.Baud
	if baud <= 0 {
		baud = config.BaudRate
	}

	switch cfg.Driver {
	case "", "bugst":
		port, err := serial.Open(name, &serial.Mode{BaudRate: baud})
		if err != nil {
			return nil, name, fmt.Errorf("open %s: %w", name, err)
		}
		return port, name, nil
	case "jacobsa":
		port, err := goserial.Open(goserial.OpenOptions{
			PortName:        name,
			BaudRate:        uint(baud),
			DataBits:        8,
			StopBits:        1,
			MinimumReadSize: 1,
		})
		if err != nil {
			return nil, name, fmt.Errorf("open %s: %w", name, err)
		}
		return port, name, nil
	default:
		return nil, name, fmt.Errorf("unsupported serial driver %q", cfg.Driver)
	}
}

func isBoard(usb bool, vid, pid string) bool {
	return usb && strings.EqualFold(vid, config.BoardVID) && strings.EqualFold(pid, config.BoardPID)
}

// commonPorts returns common serial port names based on the operating system.
func commonPorts() []string {
	switch runtime.GOOS {
	case "windows":
		var ports []string
		for i := 1; i <= 20; i++ {
			ports = append(ports, fmt.Sprintf("COM%d", i))
		}
		return ports
	case "linux":
		return []string{"/dev/ttyACM0", "/dev/ttyACM1", "/dev/ttyACM2", "/dev/ttyACM3"}
	case "darwin":
		return []string{"/dev/cu.usbmodem1101", "/dev/tty.usbmodem1101"}
	default:
		return nil
	}
}
