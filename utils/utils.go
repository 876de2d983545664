package utils

import (
	"fmt"
	"strings"

	"tt-commander/types"
)

func BoolToString(b bool) string {
	if b {
		return "connected"
	}
	return "disconnected"
}

// PyBool renders b as a Python literal.
func PyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// FormatDataForLog renders bytes written to or read from the board. Text is
// quoted with escapes; a frame made only of raw REPL control bytes is named.
func FormatDataForLog(data []byte) string {
	if len(data) == 0 {
		return "no data"
	}

	hasText := false
	onlyControl := true
	var printable strings.Builder
	for _, b := range data {
		switch {
		case b >= 32 && b <= 126:
			printable.WriteByte(b)
			hasText = true
		case b == '\n':
			printable.WriteString(`\n`)
			hasText = true
		case b == '\r':
			printable.WriteString(`\r`)
			hasText = true
		case b == '\t':
			printable.WriteString(`\t`)
			hasText = true
		default:
			fmt.Fprintf(&printable, `\x%02X`, b)
		}
		if b < 1 || b > 5 {
			onlyControl = false
		}
	}

	result := ""
	switch {
	case onlyControl:
		result = DecodeControlBytes(data)
	case hasText:
		result = `"` + printable.String() + `"`
	default:
		hexStr := make([]string, len(data))
		for i, b := range data {
			hexStr[i] = fmt.Sprintf("0x%02X", b)
		}
		result = fmt.Sprintf("[%s]", strings.Join(hexStr, " "))
	}
	return fmt.Sprintf("%s (%d bytes)", result, len(data))
}

// DecodeControlBytes names each raw REPL control byte in data.
func DecodeControlBytes(data []byte) string {
	names := make([]string, len(data))
	for i, b := range data {
		names[i] = decodeControlByte(b)
	}
	return fmt.Sprintf("{%s}", strings.Join(names, ", "))
}

func decodeControlByte(b byte) string {
	switch b {
	case 0x01:
		return "CTRL-A raw repl"
	case 0x02:
		return "CTRL-B friendly repl"
	case 0x03:
		return "CTRL-C interrupt"
	case 0x04:
		return "CTRL-D end/soft reset"
	case 0x05:
		return "CTRL-E paste"
	default:
		return fmt.Sprintf("0x%02X", b)
	}
}

// FormatStateSummary renders the board state on one line for the clipboard.
func FormatStateSummary(state types.DeviceState, project string) string {
	parts := []string{
		"shuttle=" + state.ShuttleID,
		fmt.Sprintf("design=%d", state.SelectedDesign),
	}
	if project != "" {
		parts = append(parts, "project="+project)
	}
	parts = append(parts,
		fmt.Sprintf("clk=%d", state.ClockHz),
		fmt.Sprintf("uo_out=0b%08b", state.UOOut),
		"fw="+state.FirmwareVersion,
	)
	return strings.Join(parts, " ")
}
