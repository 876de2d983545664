package devices

import (
	"context"
	"errors"

	"tt-commander/config"
	"tt-commander/firmware"
	"tt-commander/protocol"
)

// AttachTerminal leaves the raw REPL and forwards every byte from the board
// to listener. Only one terminal can be attached; while it is, status lines
// do not touch the device state.
func (b *Board) AttachTerminal(listener func([]byte)) error {
	if listener == nil {
		return errors.New("nil terminal listener")
	}
	b.mu.Lock()
	switch {
	case b.phase >= PhaseClosing:
		b.mu.Unlock()
		return ErrClosed
	case b.attached:
		b.mu.Unlock()
		return ErrTerminalAttached
	case b.flashing.Load():
		b.mu.Unlock()
		return ErrFlashBusy
	}
	b.attached = true
	b.mu.Unlock()

	if err := b.sendCommand(config.CmdStopMonitoring, true); err != nil {
		b.releaseTerminal()
		return err
	}

	b.mu.Lock()
	b.listener = listener
	b.detached = make(chan struct{})
	b.mu.Unlock()
	b.setPhase(PhaseTerminal)

	if err := b.write([]byte{config.ExitRawREPL}); err != nil {
		b.releaseTerminal()
		b.setPhase(PhaseReady)
		return err
	}
	b.log.Info("terminal attached")
	return nil
}

// AttachUART attaches a terminal and starts the UART bridge script, which
// relays between the console and the design's UART on ui_in3/uo_out4.
func (b *Board) AttachUART(listener func([]byte)) error {
	if err := b.AttachTerminal(listener); err != nil {
		return err
	}
	if err := b.write(protocol.PasteBlock(firmware.UARTScript)); err != nil {
		if derr := b.DetachTerminal(context.Background()); derr != nil {
			b.log.Warn("uart bridge rollback failed", "err", derr)
		}
		return err
	}
	return nil
}

// TerminalWrite sends raw bytes to the board while a terminal is attached.
func (b *Board) TerminalWrite(p []byte) error {
	if !b.TerminalAttached() {
		return ErrNotAttached
	}
	return b.write(p)
}

// TerminalAttached reports whether a terminal listener is attached.
func (b *Board) TerminalAttached() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attached
}

// DetachTerminal re-enters the raw REPL, resyncs the device state and then
// resolves TerminalDetached. It is a no-op when no terminal is attached. If
// either write fails the terminal stays attached and the call can be retried.
func (b *Board) DetachTerminal(ctx context.Context) error {
	b.mu.Lock()
	if !b.attached || b.detaching {
		b.mu.Unlock()
		return nil
	}
	b.detaching = true
	listener := b.listener
	b.listener = nil
	b.mu.Unlock()

	err := ctx.Err()
	if err == nil {
		err = b.write(protocol.RawREPLEntry())
	}
	if err == nil {
		err = b.DumpState()
	}
	if err != nil {
		b.mu.Lock()
		b.detaching = false
		if b.attached {
			b.listener = listener
		}
		b.mu.Unlock()
		b.log.Warn("terminal detach failed", "err", err)
		return err
	}
	b.setPhase(PhaseReady)
	b.releaseTerminal()
	b.log.Info("terminal detached")
	return nil
}

// TerminalDetached is closed once no terminal is attached and the board is
// back in control mode. Callers wait on it before resuming their own monitoring.
func (b *Board) TerminalDetached() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.detached
}

func (b *Board) releaseTerminal() {
	b.mu.Lock()
	b.attached = false
	b.detaching = false
	b.listener = nil
	b.closeDetachedLocked()
	b.mu.Unlock()
}
