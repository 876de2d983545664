package logging

import (
	"io"
	"log"
	"os"

	"pkt.systems/pslog"
)

// FromEnv builds the process logger. LOG_MODE and LOG_LEVEL override the
// console defaults.
func FromEnv(w io.Writer) pslog.Logger {
	if w == nil {
		w = os.Stderr
	}
	logger := pslog.LoggerFromEnv(
		pslog.WithEnvWriter(w),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeConsole}),
	)
	log.SetOutput(pslog.LogLogger(logger).Writer())
	log.SetFlags(0)
	return logger
}
