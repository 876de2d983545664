package utils

import (
	"testing"

	"tt-commander/types"
)

func TestFormatDataForLog(t *testing.T) {
	cases := []struct {
		in   []byte
		want string
	}{
		{nil, "no data"},
		{[]byte("dump_state()\x04"), `"dump_state()\x04" (13 bytes)`},
		{[]byte("ok\r\n"), `"ok\r\n" (4 bytes)`},
		{[]byte{3, 3, 1}, "{CTRL-C interrupt, CTRL-C interrupt, CTRL-A raw repl} (3 bytes)"},
		{[]byte{0x00, 0xff}, "[0x00 0xFF] (2 bytes)"},
	}
	for _, tc := range cases {
		if got := FormatDataForLog(tc.in); got != tc.want {
			t.Fatalf("FormatDataForLog(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPyBool(t *testing.T) {
	if PyBool(true) != "True" || PyBool(false) != "False" {
		t.Fatalf("unexpected python literals")
	}
}

func TestFormatStateSummary(t *testing.T) {
	state := types.DeviceState{ShuttleID: "tt04", SelectedDesign: 5, ClockHz: 10_000_000, UOOut: 0x81, FirmwareVersion: "2.0.4"}
	want := "shuttle=tt04 design=5 project=Alpha VGA clk=10000000 uo_out=0b10000001 fw=2.0.4"
	if got := FormatStateSummary(state, "Alpha VGA"); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
