package types

import "time"

// DeviceState mirrors what the board has reported over its status lines.
type DeviceState struct {
	FirmwareVersion    string `json:"firmware_version,omitempty" yaml:"firmware_version,omitempty"`
	HasFirmwareVersion bool   `json:"has_firmware_version" yaml:"has_firmware_version"`
	ShuttleID          string `json:"shuttle_id,omitempty" yaml:"shuttle_id,omitempty"`
	Boot               bool   `json:"boot" yaml:"boot"`
	UIInEnabled        bool   `json:"ui_in_enabled" yaml:"ui_in_enabled"`
	SelectedDesign     int    `json:"selected_design" yaml:"selected_design"`
	ClockHz            int    `json:"clock_hz" yaml:"clock_hz"`
	UOOut              uint8  `json:"uo_out" yaml:"uo_out"`
	FactoryTest        string `json:"factory_test,omitempty" yaml:"factory_test,omitempty"`
	LastError          string `json:"last_error,omitempty" yaml:"last_error,omitempty"`
}

// LogEntry is one line of device traffic, either sent to or received from the board.
type LogEntry struct {
	Time time.Time `json:"time"`
	Text string    `json:"text"`
	Sent bool      `json:"sent"`
}

// EventType identifies the event payload.
type EventType string

const (
	EventState     EventType = "state"
	EventLog       EventType = "log"
	EventPhase     EventType = "phase"
	EventViolation EventType = "violation"
	EventTerminal  EventType = "terminal"
	EventFlash     EventType = "flash"
	EventClosed    EventType = "closed"
)

// Event is a notification emitted by a board session.
type Event struct {
	Type     EventType   `json:"type"`
	Port     string      `json:"port,omitempty"`
	State    DeviceState `json:"state"`
	Log      *LogEntry   `json:"log,omitempty"`
	Phase    string      `json:"phase,omitempty"`
	Terminal []byte      `json:"terminal,omitempty"`
	Message  string      `json:"message,omitempty"`
}

// DeviceStatus is the snapshot served to the browser.
type DeviceStatus struct {
	Connected bool        `json:"connected"`
	Port      string      `json:"port"`
	Phase     string      `json:"phase"`
	Terminal  bool        `json:"terminal"`
	State     DeviceState `json:"state"`
	Shuttle   ShuttleInfo `json:"shuttle"`
}

// ShuttleInfo describes the designs available on the connected chip.
type ShuttleInfo struct {
	ID       string    `json:"id"`
	Loading  bool      `json:"loading"`
	Error    string    `json:"error,omitempty"`
	Projects []Project `json:"projects"`
}

// Project is one design on a shuttle.
type Project struct {
	Macro   string `json:"macro" yaml:"macro"`
	Address int    `json:"address" yaml:"address"`
	Title   string `json:"title" yaml:"title"`
	Repo    string `json:"repo" yaml:"repo"`
	ClockHz int    `json:"clock_hz" yaml:"clock_hz"`
}
