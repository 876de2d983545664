package protocol

import (
	"regexp"

	"tt-commander/config"
)

var (
	ackPattern  = regexp.MustCompile(`^(?:\x04+>OK)+\x04*`)
	ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)
)

// EncodeCommand frames text for the raw REPL.
func EncodeCommand(text string) []byte {
	out := make([]byte, 0, len(text)+1)
	out = append(out, text...)
	return append(out, config.EndOfCommand)
}

// StripAck removes the raw REPL acknowledgment echoed ahead of a command's output.
func StripAck(line string) string {
	return ackPattern.ReplaceAllString(line, "")
}

// StripANSI removes terminal escape sequences.
func StripANSI(line string) string {
	return ansiPattern.ReplaceAllString(line, "")
}

// Clean applies StripAck and StripANSI.
func Clean(line string) string {
	return StripANSI(StripAck(line))
}

// InterruptSequence stops a running program and leaves the raw REPL.
func InterruptSequence() []byte {
	return []byte{config.Interrupt, config.Interrupt, config.ExitRawREPL}
}

// RawREPLEntry stops a running program and enters the raw REPL.
func RawREPLEntry() []byte {
	return []byte{config.Interrupt, config.Interrupt, config.EnterRawREPL}
}

// PasteBlock wraps text in the friendly REPL's paste mode.
func PasteBlock(text string) []byte {
	out := make([]byte, 0, len(text)+2)
	out = append(out, config.PasteMode)
	out = append(out, text...)
	return append(out, config.EndOfCommand)
}
