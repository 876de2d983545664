package main

import (
	"bytes"
	"context"
	"fmt"

	"github.com/mattn/go-tty"
	"github.com/spf13/cobra"

	"tt-commander/devices"
)

// detachKey is Ctrl-].
const detachKey = 0x1d

func newTerminalCmd(flags *globalFlags, use, short string, uart bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withBoard(ctx, flags, func(board *devices.Board) error {
				return runTerminal(ctx, board, uart)
			})
		},
	}
}

func runTerminal(ctx context.Context, board *devices.Board, uart bool) error {
	t, err := tty.Open()
	if err != nil {
		return err
	}
	defer t.Close()
	restore, err := t.Raw()
	if err != nil {
		return err
	}
	defer restore()

	out := t.Output()
	attach := board.AttachTerminal
	if uart {
		attach = board.AttachUART
	}
	if err := attach(func(p []byte) { _, _ = out.Write(p) }); err != nil {
		return err
	}
	fmt.Fprintf(out, "attached to %s, Ctrl-] to detach\r\n", board.Name())

	stop := make(chan struct{})
	defer close(stop)
	input := make(chan []byte)
	go func() {
		defer close(input)
		buf := make([]byte, 256)
		for {
			n, err := t.Input().Read(buf)
			if n > 0 {
				select {
				case input <- append([]byte(nil), buf[:n]...):
				case <-stop:
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case p, ok := <-input:
			if !ok {
				return board.DetachTerminal(ctx)
			}
			p, detach := splitDetach(p)
			if len(p) > 0 {
				if err := board.TerminalWrite(p); err != nil {
					return err
				}
			}
			if detach {
				fmt.Fprint(out, "\r\ndetached\r\n")
				return board.DetachTerminal(ctx)
			}
		case <-board.Done():
			return board.Err()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// splitDetach returns the bytes typed before the detach key and whether it was pressed.
func splitDetach(p []byte) ([]byte, bool) {
	if i := bytes.IndexByte(p, detachKey); i >= 0 {
		return p[:i], true
	}
	return p, false
}
