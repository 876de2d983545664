package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"tt-commander/config"
	"tt-commander/types"
)

// ErrMalformedValue reports a status value that does not parse as its field's type.
var ErrMalformedValue = errors.New("malformed status value")

// ViolationError describes a recognized status line with an unusable payload.
type ViolationError struct {
	Name  string
	Value string
	Err   error
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("status %s=%q: %v", e.Name, e.Value, e.Err)
}

func (e *ViolationError) Unwrap() error { return e.Err }

// Result describes what a single status line did to the device state.
type Result struct {
	Name  string
	Value string

	// Structured is set for name=value lines.
	Structured bool
	// Boot is set for "BOOT: " lines.
	Boot bool
	// Changed is set when a state field took a new value.
	Changed bool
	// ShuttleChanged is set when the shuttle id took a new value.
	ShuttleChanged bool
	// UnsupportedProtocol is set when the board announces a protocol we do not speak.
	UnsupportedProtocol bool
}

// SplitStatus splits line on the first '='.
func SplitStatus(line string) (name, value string, ok bool) {
	return strings.Cut(line, "=")
}

// Interpret applies one cleaned line to state. Lines without '=' and unknown
// names leave state untouched. Malformed numeric payloads return a
// *ViolationError and leave the field unchanged.
func Interpret(line string, state *types.DeviceState) (Result, error) {
	if strings.HasPrefix(line, config.StatusBootPrefix) {
		res := Result{Boot: true, Changed: !state.Boot}
		state.Boot = true
		return res, nil
	}

	name, value, ok := SplitStatus(line)
	if !ok {
		return Result{}, nil
	}
	res := Result{Name: name, Value: value, Structured: true}

	switch name {
	case config.StatusSDKVersion:
		version := strings.TrimPrefix(value, config.ReleasePrefix)
		res.Changed = !state.HasFirmwareVersion || state.FirmwareVersion != version
		state.FirmwareVersion = version
		state.HasFirmwareVersion = true
	case config.StatusMode:
		enabled := value == config.ModeRPControl
		res.Changed = state.UIInEnabled != enabled
		state.UIInEnabled = enabled
	case config.StatusUOOut:
		n, err := parseInt(name, value)
		if err != nil {
			return res, err
		}
		if n < 0 || n > 0xff {
			return res, &ViolationError{Name: name, Value: value, Err: fmt.Errorf("%w: out of byte range", ErrMalformedValue)}
		}
		res.Changed = state.UOOut != uint8(n)
		state.UOOut = uint8(n)
	case config.StatusDesign:
		n, err := parseInt(name, value)
		if err != nil {
			return res, err
		}
		res.Changed = state.SelectedDesign != n
		state.SelectedDesign = n
	case config.StatusClockFreq:
		n, err := parseInt(name, value)
		if err != nil {
			return res, err
		}
		res.Changed = state.ClockHz != n
		state.ClockHz = n
	case config.StatusShuttle:
		res.Changed = state.ShuttleID != value
		res.ShuttleChanged = res.Changed
		state.ShuttleID = value
	case config.StatusProtocol:
		res.UnsupportedProtocol = value != config.SupportedProtocol
	case config.StatusFactoryTest:
		res.Changed = state.FactoryTest != value
		state.FactoryTest = value
	case config.StatusError:
		res.Changed = state.LastError != value
		state.LastError = value
	}
	return res, nil
}

func parseInt(name, value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, &ViolationError{Name: name, Value: value, Err: fmt.Errorf("%w: %v", ErrMalformedValue, err)}
	}
	return n, nil
}
