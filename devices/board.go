package devices

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"pkt.systems/pslog"

	"tt-commander/config"
	"tt-commander/firmware"
	"tt-commander/logging"
	"tt-commander/protocol"
	"tt-commander/types"
	"tt-commander/utils"
)

var (
	ErrClosed           = errors.New("board session closed")
	ErrTerminalAttached = errors.New("terminal already attached")
	ErrNotAttached      = errors.New("terminal not attached")
	ErrLineTimeout      = errors.New("timed out waiting for board line")
	ErrNoImage          = errors.New("no flash image selected")
)

// Phase is the session's position in its lifecycle.
type Phase int

const (
	PhaseConnecting Phase = iota
	PhaseVersionProbe
	PhaseBooting
	PhaseRawREPLEntry
	PhaseReady
	PhaseTerminal
	PhaseClosing
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseVersionProbe:
		return "version_probe"
	case PhaseBooting:
		return "booting"
	case PhaseRawREPLEntry:
		return "raw_repl_entry"
	case PhaseReady:
		return "ready"
	case PhaseTerminal:
		return "terminal"
	case PhaseClosing:
		return "closing"
	case PhaseClosed:
		return "closed"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// ViolationPolicy decides what a malformed status payload does to the session.
type ViolationPolicy string

const (
	ViolationIgnore ViolationPolicy = "ignore"
	ViolationReport ViolationPolicy = "report"
	ViolationAbort  ViolationPolicy = "abort"
)

// ShuttleLoader is called once for every new shuttle id the board reports.
type ShuttleLoader func(ctx context.Context, id string)

// Options configures a Board.
type Options struct {
	// Name identifies the port in logs and events.
	Name   string
	Logger pslog.Logger
	Hub    *logging.Hub

	HistorySize      int
	ProbeDelay       time.Duration
	BootPollRetries  int
	BootPollInterval time.Duration
	MonitorInterval  int
	ViolationPolicy  ViolationPolicy
	ShuttleLoader    ShuttleLoader
	ControlScript    string

	Flash FlashOptions
}

// DefaultOptions returns the built-in timings.
func DefaultOptions() Options {
	return OptionsFromConfig(config.DefaultConfig())
}

// OptionsFromConfig maps the application config onto board options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Name:             cfg.Serial.Port,
		HistorySize:      cfg.Board.LogHistory,
		ProbeDelay:       config.Millis(cfg.Board.ProbeDelayMS),
		BootPollRetries:  cfg.Board.BootPollRetries,
		BootPollInterval: config.Millis(cfg.Board.BootPollIntervalMS),
		MonitorInterval:  cfg.Board.MonitorIntervalMS,
		ViolationPolicy:  ViolationPolicy(cfg.Board.ViolationPolicy),
		ControlScript:    firmware.ControlScript,
		Flash: FlashOptions{
			AckTimeout:   config.Millis(cfg.Flash.AckTimeoutMS),
			SettleDelay:  config.Millis(cfg.Flash.SettleDelayMS),
			WriteRetries: cfg.Flash.WriteRetries,
		},
	}
}

// Board is one session with a demo board over a byte-stream transport. It
// owns the transport until Close, or until a read error ends the session.
type Board struct {
	port    io.ReadWriteCloser
	opts    Options
	log     pslog.Logger
	hub     *logging.Hub
	history *logging.History

	writeMu      sync.Mutex
	writerClosed bool

	mu        sync.Mutex
	state     types.DeviceState
	phase     Phase
	attached  bool
	detaching bool
	listener  func([]byte)
	detached  chan struct{}

	watches watchers

	control  io.ReadCloser
	terminal io.ReadCloser

	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
	closeOnce sync.Once
	closing   atomic.Bool
	flashing  atomic.Bool
	done      chan struct{}
	err       error
}

// NewBoard wraps an opened transport. Call Start to bring the session up.
func NewBoard(port io.ReadWriteCloser, opts Options) *Board {
	if opts.Logger == nil {
		opts.Logger = pslog.Ctx(context.Background())
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = config.LogHistorySize
	}
	if opts.MonitorInterval <= 0 {
		opts.MonitorInterval = config.MonitorIntervalMS
	}
	if opts.ViolationPolicy == "" {
		opts.ViolationPolicy = ViolationReport
	}
	if opts.ControlScript == "" {
		opts.ControlScript = firmware.ControlScript
	}
	log := opts.Logger
	if opts.Name != "" {
		log = log.With("port", opts.Name)
	}
	closedCh := make(chan struct{})
	close(closedCh)
	ctx, cancel := context.WithCancel(context.Background())
	return &Board{
		port:     port,
		opts:     opts,
		log:      log,
		hub:      opts.Hub,
		history:  logging.NewHistory(opts.HistorySize),
		detached: closedCh,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Name returns the port name given in Options.
func (b *Board) Name() string { return b.opts.Name }

// State returns a copy of the device state.
func (b *Board) State() types.DeviceState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Phase returns the current lifecycle phase.
func (b *Board) Phase() Phase {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.phase
}

// Logs returns the retained device log, oldest first.
func (b *Board) Logs() []types.LogEntry {
	return b.history.Entries()
}

// Done is closed when the session has ended, explicitly or by a read error.
func (b *Board) Done() <-chan struct{} {
	return b.done
}

// Err returns why the session ended; nil after a plain Close.
func (b *Board) Err() error {
	select {
	case <-b.done:
		return b.err
	default:
		return nil
	}
}

// Start runs the read loops and brings the board into raw REPL control mode.
// Transport failures during bring-up are logged; an unset firmware version
// afterwards signals a failed bring-up. Start returns an error only when ctx
// ends or the session is closed.
func (b *Board) Start(ctx context.Context) error {
	select {
	case <-b.done:
		return ErrClosed
	default:
	}
	b.startOnce.Do(b.startReaders)

	b.setPhase(PhaseVersionProbe)
	if !b.hasVersion() {
		probe := "\r\n" + config.VersionProbe + "\r\n"
		b.bestEffort("version probe", []byte(probe))
		if err := b.sleep(ctx, b.opts.ProbeDelay); err != nil {
			return err
		}
	}

	if b.booting() && !b.hasVersion() {
		b.setPhase(PhaseBooting)
		for i := 0; i < b.opts.BootPollRetries && !b.hasVersion(); i++ {
			if err := b.sleep(ctx, b.opts.BootPollInterval); err != nil {
				return err
			}
		}
		if !b.hasVersion() {
			b.log.Warn("board still booting, continuing without firmware version")
		}
	}

	b.setPhase(PhaseRawREPLEntry)
	if !b.hasVersion() {
		b.bestEffort("interrupt", protocol.InterruptSequence())
		b.bestEffort("soft reset", []byte{config.SoftReset})
	}
	b.bestEffort("enter raw repl", []byte{config.EnterRawREPL})
	if err := b.sendCommand(b.opts.ControlScript, false); err != nil {
		b.log.Warn("control script upload failed", "err", err)
	}

	b.setPhase(PhaseReady)
	if err := b.DumpState(); err != nil {
		b.log.Warn("state resync failed", "err", err)
	}
	select {
	case <-b.done:
		return ErrClosed
	default:
		return nil
	}
}

func (b *Board) startReaders() {
	tee := NewTee(b.port, 2)
	b.mu.Lock()
	b.control = tee.Branch(0)
	b.terminal = tee.Branch(1)
	b.mu.Unlock()
	go b.controlLoop(tee.Branch(0))
	go b.terminalLoop(tee.Branch(1))
}

func (b *Board) controlLoop(r io.Reader) {
	var framer protocol.Framer
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			for _, line := range framer.Push(buf[:n]) {
				b.handleLine(line)
			}
		}
		if err != nil {
			switch {
			case b.closing.Load(), errors.Is(err, ErrBranchClosed):
				b.log.Debug("control reader stopped")
			case errors.Is(err, io.EOF):
				b.log.Info("serial stream ended")
			default:
				b.log.Warn("serial read failed", "err", err)
				b.fail(err)
			}
			return
		}
	}
}

func (b *Board) terminalLoop(r io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			b.mu.Lock()
			listener := b.listener
			b.mu.Unlock()
			if listener != nil {
				listener(append([]byte(nil), buf[:n]...))
			}
		}
		if err != nil {
			return
		}
	}
}

func (b *Board) handleLine(raw string) {
	line := protocol.Clean(raw)
	if line == "" {
		return
	}

	b.mu.Lock()
	if b.listener != nil {
		b.mu.Unlock()
		return
	}
	res, err := protocol.Interpret(line, &b.state)
	state := b.state
	b.mu.Unlock()

	b.log.Trace("line received", "line", line)
	b.appendLog(line, false)

	if err != nil {
		b.handleViolation(err)
	}
	if res.UnsupportedProtocol {
		b.log.Warn("unsupported protocol version", "protocol", res.Value)
		b.hub.Broadcast(types.Event{
			Type:    types.EventViolation,
			Port:    b.opts.Name,
			State:   state,
			Message: "unsupported protocol version " + res.Value,
		})
	}
	if res.Changed {
		b.hub.Broadcast(types.Event{Type: types.EventState, Port: b.opts.Name, State: state})
	}
	if res.ShuttleChanged && b.opts.ShuttleLoader != nil {
		go b.opts.ShuttleLoader(b.ctx, state.ShuttleID)
	}
	if dropped := b.watches.dispatch(line); dropped > 0 {
		b.log.Trace("line watch dropped", "count", dropped)
	}
}

func (b *Board) handleViolation(err error) {
	switch b.opts.ViolationPolicy {
	case ViolationIgnore:
		b.log.Debug("status line ignored", "err", err)
	case ViolationAbort:
		b.log.Warn("protocol violation, closing session", "err", err)
		go b.closeWithCause(context.Background(), err)
	default:
		b.log.Warn("protocol violation", "err", err)
		b.hub.Broadcast(types.Event{
			Type:    types.EventViolation,
			Port:    b.opts.Name,
			State:   b.State(),
			Message: err.Error(),
		})
	}
}

func (b *Board) appendLog(text string, sent bool) {
	entry := types.LogEntry{Time: time.Now(), Text: text, Sent: sent}
	b.history.Append(entry)
	b.hub.Broadcast(types.Event{Type: types.EventLog, Port: b.opts.Name, Log: &entry})
}

func (b *Board) setPhase(p Phase) {
	b.mu.Lock()
	if b.phase == p || (b.phase >= PhaseClosing && p < b.phase) {
		b.mu.Unlock()
		return
	}
	b.phase = p
	state := b.state
	b.mu.Unlock()
	b.log.Info("board phase", "phase", p.String())
	b.hub.Broadcast(types.Event{Type: types.EventPhase, Port: b.opts.Name, Phase: p.String(), State: state})
}

func (b *Board) hasVersion() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.HasFirmwareVersion
}

func (b *Board) booting() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.Boot
}

func (b *Board) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return ErrClosed
	}
}

// sendCommand frames text for the raw REPL. Scripts pass logged=false to
// keep their source out of the device log. Commands are refused with
// ErrFlashBusy while a flash transfer owns the wire.
func (b *Board) sendCommand(text string, logged bool) error {
	if b.flashing.Load() {
		return ErrFlashBusy
	}
	return b.sendFrame(text, logged, false)
}

// sendFrame writes one framed command. inFlash lets the uploader and the
// teardown path through while flashing is set.
func (b *Board) sendFrame(text string, logged, inFlash bool) error {
	frame := protocol.EncodeCommand(text)
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if b.writerClosed {
		return ErrClosed
	}
	if !inFlash && b.flashing.Load() {
		return ErrFlashBusy
	}
	if logged {
		b.appendLog(text, true)
		b.log.Debug("command sent", "cmd", text)
	} else {
		b.log.Debug("script sent", "bytes", len(text))
	}
	return writeFull(b.port, frame, 0)
}

func (b *Board) bestEffort(what string, p []byte) {
	b.log.Debug("control bytes", "what", what, "data", utils.FormatDataForLog(p))
	if err := b.write(p); err != nil {
		b.log.Warn("write failed", "what", what, "err", err)
	}
}

func (b *Board) write(parts ...[]byte) error {
	return b.writeWithRetries(0, parts...)
}

// writeWithRetries writes parts back to back, with no other writer in between.
func (b *Board) writeWithRetries(retries int, parts ...[]byte) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if b.writerClosed {
		return ErrClosed
	}
	for _, p := range parts {
		if err := writeFull(b.port, p, retries); err != nil {
			return err
		}
	}
	return nil
}

// writeFull writes all of p. Short writes and write timeouts resume from the
// unwritten tail up to retries times; other errors return at once.
func writeFull(w io.Writer, p []byte, retries int) error {
	failures := 0
	for len(p) > 0 {
		n, err := w.Write(p)
		p = p[n:]
		if err == nil && n > 0 {
			continue
		}
		if err == nil {
			err = io.ErrShortWrite
		}
		if len(p) == 0 {
			return nil
		}
		if failures >= retries || !retryableWrite(err) {
			return err
		}
		failures++
	}
	return nil
}

func retryableWrite(err error) bool {
	if errors.Is(err, io.ErrShortWrite) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var timeout interface{ Timeout() bool }
	return errors.As(err, &timeout) && timeout.Timeout()
}

// Close stops both readers, leaves the raw REPL on a best-effort basis and
// closes the transport. Done is closed even when the teardown writes fail.
func (b *Board) Close(ctx context.Context) error {
	b.closeWithCause(ctx, nil)
	return nil
}

func (b *Board) closeWithCause(ctx context.Context, cause error) {
	b.closeOnce.Do(func() {
		b.closing.Store(true)
		b.setPhase(PhaseClosing)
		b.stopReaders()

		if ctx.Err() == nil {
			if err := b.sendFrame(config.CmdStopMonitoring, false, true); err != nil {
				b.log.Warn("stop monitoring failed", "err", err)
			}
			b.bestEffort("leave raw repl", protocol.InterruptSequence())
		}

		b.closeWriter()
		if err := b.port.Close(); err != nil {
			b.log.Warn("serial close failed", "err", err)
		}
		b.finish(cause)
	})
}

// fail ends the session after a transport read error, without teardown writes.
func (b *Board) fail(cause error) {
	b.closeOnce.Do(func() {
		b.closing.Store(true)
		b.stopReaders()
		b.closeWriter()
		_ = b.port.Close()
		b.finish(cause)
	})
}

func (b *Board) stopReaders() {
	b.mu.Lock()
	control, terminal := b.control, b.terminal
	b.mu.Unlock()
	if control != nil {
		_ = control.Close()
	}
	if terminal != nil {
		_ = terminal.Close()
	}
}

func (b *Board) closeWriter() {
	b.writeMu.Lock()
	b.writerClosed = true
	b.writeMu.Unlock()
}

func (b *Board) finish(cause error) {
	b.mu.Lock()
	b.listener = nil
	b.attached = false
	b.closeDetachedLocked()
	b.mu.Unlock()

	b.setPhase(PhaseClosed)
	b.err = cause
	b.cancel()
	close(b.done)

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	b.hub.Broadcast(types.Event{Type: types.EventClosed, Port: b.opts.Name, State: b.State(), Message: msg})
	b.log.Info("board session closed", "err", cause)
}

// closeDetachedLocked resolves the terminal-detached signal. b.mu must be held.
func (b *Board) closeDetachedLocked() {
	select {
	case <-b.detached:
	default:
		close(b.detached)
	}
}
