package protocol

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"tt-commander/types"
)

const framerInput = "tt.sdk_version=release_v2.0.4\r\nshuttle=tt04\r\n\r\nBOOT: hello\r\ntt.uo_out=17\r\n"

func TestFramerSameLinesForEverySplit(t *testing.T) {
	var whole Framer
	want := whole.Push([]byte(framerInput))
	if len(want) != 5 {
		t.Fatalf("expected 5 lines, got %d: %q", len(want), want)
	}
	data := []byte(framerInput)
	for i := 0; i <= len(data); i++ {
		for j := i; j <= len(data); j++ {
			var f Framer
			var got []string
			got = append(got, f.Push(data[:i])...)
			got = append(got, f.Push(data[i:j])...)
			got = append(got, f.Push(data[j:])...)
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("split at %d/%d: got %q want %q", i, j, got, want)
			}
			if len(f.Pending()) != 0 {
				t.Fatalf("split at %d/%d: unexpected pending %q", i, j, f.Pending())
			}
		}
	}
}

func TestFramerKeepsPartialLine(t *testing.T) {
	var f Framer
	if lines := f.Push([]byte("tt.design=1")); len(lines) != 0 {
		t.Fatalf("expected no lines, got %q", lines)
	}
	if string(f.Pending()) != "tt.design=1" {
		t.Fatalf("unexpected pending %q", f.Pending())
	}
	if lines := f.Push([]byte("2\r")); len(lines) != 0 {
		t.Fatalf("expected no lines before newline, got %q", lines)
	}
	lines := f.Push([]byte("\n"))
	if len(lines) != 1 || lines[0] != "tt.design=12" {
		t.Fatalf("unexpected lines %q", lines)
	}
}

func TestEncodeCommand(t *testing.T) {
	got := EncodeCommand("dump_state()")
	if string(got) != "dump_state()\x04" {
		t.Fatalf("unexpected frame %q", got)
	}
}

func TestStripAck(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"\x04>OKtt.design=3", "tt.design=3"},
		{"\x04\x04>OKshuttle=tt05", "shuttle=tt05"},
		{"\x04>OK\x04>OK\x04tt.clk_freq=10", "tt.clk_freq=10"},
		{"\x04\x04>OK", ""},
		{"tt.design=3", "tt.design=3"},
		{">OK payload", ">OK payload"},
		{"payload \x04>OK", "payload \x04>OK"},
	}
	for _, tc := range cases {
		if got := StripAck(tc.in); got != tc.want {
			t.Fatalf("StripAck(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEncodedCommandAckRoundTrip(t *testing.T) {
	frame := EncodeCommand("select_design(4)")
	echo := string(frame[len(frame)-1:]) + ">OK" + "tt.design=4"
	if got := StripAck(echo); got != "tt.design=4" {
		t.Fatalf("unexpected payload %q", got)
	}
}

func TestStripANSI(t *testing.T) {
	in := "\x1b[32mtt.mode=ASIC_RP_CONTROL\x1b[0m\x1b[2K"
	if got := StripANSI(in); got != "tt.mode=ASIC_RP_CONTROL" {
		t.Fatalf("unexpected %q", got)
	}
	if got := Clean("\x04>OK\x1b[1;31merror=boom\x1b[m"); got != "error=boom" {
		t.Fatalf("unexpected clean %q", got)
	}
}

func TestInterpretRecognizedNames(t *testing.T) {
	cases := []struct {
		line  string
		check func(types.DeviceState) bool
	}{
		{"tt.sdk_version=release_v2.0.4", func(s types.DeviceState) bool { return s.HasFirmwareVersion && s.FirmwareVersion == "2.0.4" }},
		{"tt.sdk_version=2.1.0", func(s types.DeviceState) bool { return s.FirmwareVersion == "2.1.0" }},
		{"tt.mode=ASIC_RP_CONTROL", func(s types.DeviceState) bool { return s.UIInEnabled }},
		{"tt.uo_out=255", func(s types.DeviceState) bool { return s.UOOut == 255 }},
		{"tt.design=42", func(s types.DeviceState) bool { return s.SelectedDesign == 42 }},
		{"tt.clk_freq=10000000", func(s types.DeviceState) bool { return s.ClockHz == 10_000_000 }},
		{"shuttle=tt04", func(s types.DeviceState) bool { return s.ShuttleID == "tt04" }},
		{"BOOT: starting", func(s types.DeviceState) bool { return s.Boot }},
		{"factory_test=OK", func(s types.DeviceState) bool { return s.FactoryTest == "OK" }},
	}
	for _, tc := range cases {
		var state types.DeviceState
		if _, err := Interpret(tc.line, &state); err != nil {
			t.Fatalf("%q: %v", tc.line, err)
		}
		if !tc.check(state) {
			t.Fatalf("%q: unexpected state %+v", tc.line, state)
		}
	}
}

func TestInterpretModeDisables(t *testing.T) {
	state := types.DeviceState{UIInEnabled: true}
	res, err := Interpret("tt.mode=ASIC_MANUAL_INPUTS", &state)
	if err != nil {
		t.Fatalf("interpret: %v", err)
	}
	if state.UIInEnabled || !res.Changed {
		t.Fatalf("expected ui_in disabled and change reported, got %+v %+v", state, res)
	}
}

func TestInterpretUnknownLeavesStateAlone(t *testing.T) {
	for _, line := range []string{"flash_prog=0x1000", "hello world", "tt.clk_once=1", ""} {
		state := types.DeviceState{SelectedDesign: 3, ClockHz: 5}
		before := state
		res, err := Interpret(line, &state)
		if err != nil {
			t.Fatalf("%q: %v", line, err)
		}
		if state != before || res.Changed {
			t.Fatalf("%q changed state: %+v", line, state)
		}
	}
}

func TestInterpretSplitsOnFirstEquals(t *testing.T) {
	var state types.DeviceState
	res, err := Interpret("shuttle=a=b", &state)
	if err != nil {
		t.Fatalf("interpret: %v", err)
	}
	if res.Value != "a=b" || state.ShuttleID != "a=b" {
		t.Fatalf("unexpected split: %+v", res)
	}
}

func TestInterpretShuttleChangeOnlyOnNewValue(t *testing.T) {
	var state types.DeviceState
	res, _ := Interpret("shuttle=tt04", &state)
	if !res.ShuttleChanged {
		t.Fatalf("expected first assignment to report a change")
	}
	res, _ = Interpret("shuttle=tt04", &state)
	if res.ShuttleChanged {
		t.Fatalf("expected repeated assignment to be idempotent")
	}
}

func TestInterpretMalformedNumbers(t *testing.T) {
	for _, line := range []string{"tt.uo_out=0x1f", "tt.design=abc", "tt.clk_freq=", "tt.uo_out=256"} {
		state := types.DeviceState{SelectedDesign: 9, ClockHz: 9, UOOut: 9}
		_, err := Interpret(line, &state)
		if !errors.Is(err, ErrMalformedValue) {
			t.Fatalf("%q: expected malformed value error, got %v", line, err)
		}
		var verr *ViolationError
		if !errors.As(err, &verr) || !strings.HasPrefix(line, verr.Name+"=") {
			t.Fatalf("%q: expected violation error naming the field, got %v", line, err)
		}
		if state.SelectedDesign != 9 || state.ClockHz != 9 || state.UOOut != 9 {
			t.Fatalf("%q: state modified on violation: %+v", line, state)
		}
	}
}

func TestInterpretProtocolWarning(t *testing.T) {
	var state types.DeviceState
	res, _ := Interpret("protocol=2", &state)
	if !res.UnsupportedProtocol {
		t.Fatalf("expected unsupported protocol flag")
	}
	res, _ = Interpret("protocol=1", &state)
	if res.UnsupportedProtocol {
		t.Fatalf("protocol 1 should be supported")
	}
}
