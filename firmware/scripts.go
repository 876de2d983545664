package firmware

import _ "embed"

// Board-side MicroPython programs sent over the raw REPL.
var (
	//go:embed scripts/ttcontrol.py
	ControlScript string

	//go:embed scripts/ttflash.py
	FlashScript string

	//go:embed scripts/uart.py
	UARTScript string
)
