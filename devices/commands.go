package devices

import (
	"fmt"

	"tt-commander/config"
	"tt-commander/firmware"
	"tt-commander/utils"
)

// SendCommand writes text as one raw REPL command. It does not wait for a reply.
func (b *Board) SendCommand(text string) error {
	return b.sendCommand(text, true)
}

// SelectDesign enables the design at index.
func (b *Board) SelectDesign(index int) error {
	return b.SendCommand(fmt.Sprintf(config.CmdSelectDesign, index))
}

// SelectDesignWithClock enables the design at index and clocks it at hz.
func (b *Board) SelectDesignWithClock(index, hz int) error {
	return b.SendCommand(fmt.Sprintf(config.CmdSelectDesignClk, index, hz))
}

// SetClock sets the project clock. Firmware from ClockCapVersion on also gets
// a cap on the RP2040 system clock.
func (b *Board) SetClock(hz int) error {
	return b.SendCommand(ClockCommand(b.State().FirmwareVersion, hz))
}

// ClockCommand renders set_clock_hz for the given firmware version.
func ClockCommand(version string, hz int) string {
	if firmware.AtLeast(version, firmware.ClockCapVersion) {
		return fmt.Sprintf(config.CmdSetClockCapped, hz, config.MaxRP2040Freq)
	}
	return fmt.Sprintf(config.CmdSetClock, hz)
}

// EnableUIIn hands the ui_in pins to the RP2040 (true) or the DIP switches (false).
func (b *Board) EnableUIIn(enabled bool) error {
	return b.SendCommand(fmt.Sprintf(config.CmdEnableUIIn, utils.PyBool(enabled)))
}

// WriteUIIn drives the eight ui_in pins.
func (b *Board) WriteUIIn(mask uint8) error {
	return b.SendCommand(fmt.Sprintf(config.CmdWriteUIIn, mask))
}

// SetUOOutMonitoring starts or stops periodic uo_out reports.
func (b *Board) SetUOOutMonitoring(enabled bool) error {
	if enabled {
		return b.SendCommand(fmt.Sprintf(config.CmdMonitorOn, b.opts.MonitorInterval))
	}
	return b.SendCommand(config.CmdMonitorOff)
}

// ManualClock pulses the project clock once.
func (b *Board) ManualClock() error {
	return b.SendCommand(config.CmdManualClock)
}

// ResetProject pulses the project reset line.
func (b *Board) ResetProject() error {
	return b.SendCommand(config.CmdResetProject)
}

// Bootloader reboots the RP2040 into its USB mass storage bootloader.
func (b *Board) Bootloader() error {
	return b.SendCommand(config.CmdBootloader)
}

// FactoryTest runs the board self-test; the result arrives as factory_test= or error=.
func (b *Board) FactoryTest() error {
	return b.SendCommand(config.CmdFactoryTest)
}

// DumpState asks the board to report every status field.
func (b *Board) DumpState() error {
	return b.SendCommand(config.CmdDumpState)
}

// ReadROM asks the board to report the chip ROM, including the shuttle id.
func (b *Board) ReadROM() error {
	return b.SendCommand(config.CmdReadROM)
}
