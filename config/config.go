package config

import "time"

// Control bytes written directly to the board, outside of line framing.
const (
	EnterRawREPL = 0x01
	ExitRawREPL  = 0x02
	Interrupt    = 0x03
	EndOfCommand = 0x04
	SoftReset    = 0x04
	PasteMode    = 0x05
)

// Board USB identity (Raspberry Pi RP2040 running MicroPython).
const (
	BoardVID = "2E8A"
	BoardPID = "0005"

	BaudRate = 115200
)

// Command text understood by the control script running on the board.
const (
	CmdDumpState       = "dump_state()"
	CmdReadROM         = "read_rom()"
	CmdStopMonitoring  = "stop_monitoring()"
	CmdManualClock     = "manual_clock()"
	CmdResetProject    = "reset_project()"
	CmdBootloader      = "import machine; machine.bootloader()"
	CmdFactoryTest     = "run_factory_test()"
	CmdSelectDesign    = "select_design(%d)"
	CmdSelectDesignClk = "select_design(%d, %d)"
	CmdSetClock        = "set_clock_hz(%d)"
	CmdSetClockCapped  = "set_clock_hz(%d, max_rp2040_freq=%s)"
	CmdEnableUIIn      = "enable_ui_in(%s)"
	CmdWriteUIIn       = "write_ui_in(0b%08b)"
	CmdMonitorOn       = "set_uo_out_monitor(True, %d)"
	CmdMonitorOff      = "set_uo_out_monitor(False)"
	CmdFlashProgram    = "flash.program_sectors(0x%x)"

	// VersionProbe is typed into the human REPL when the firmware version is unknown.
	VersionProbe = `import os; print("tt.sdk_version=" + next(f for f in os.listdir("/") if f.startswith("release_v")))`

	MaxRP2040Freq = "133_000_000"
)

// Status line names and prefixes emitted by the board.
const (
	StatusBootPrefix  = "BOOT: "
	StatusSDKVersion  = "tt.sdk_version"
	StatusMode        = "tt.mode"
	StatusUOOut       = "tt.uo_out"
	StatusDesign      = "tt.design"
	StatusClockFreq   = "tt.clk_freq"
	StatusClockOnce   = "tt.clk_once"
	StatusReset       = "tt.reset_project"
	StatusShuttle     = "shuttle"
	StatusProtocol    = "protocol"
	StatusFactoryTest = "factory_test"
	StatusError       = "error"
	StatusFlashID     = "flash_id"
	StatusFlashProg   = "flash_prog"

	ReleasePrefix     = "release_v"
	ModeRPControl     = "ASIC_RP_CONTROL"
	SupportedProtocol = "1"
	FlashProgressDone = "ok"
)

const (
	FlashSectorSize = 4096
	LogHistorySize  = 1000

	ProbeDelay        = 300 * time.Millisecond
	BootPollRetries   = 30
	BootPollInterval  = 200 * time.Millisecond
	MonitorIntervalMS = 100
	FlashAckTimeout   = 10 * time.Second
	FlashSettleDelay  = 100 * time.Millisecond
	FlashWriteRetries = 3

	ShuttleIndexURL = "https://index.tinytapeout.com"
	ServerAddr      = ":8080"
	SerialDriver    = "bugst"
	ViolationPolicy = "report"
	ConfigFileName  = "tt-commander.yaml"
)
