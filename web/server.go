package web

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"pkt.systems/pslog"

	"tt-commander/config"
	"tt-commander/devices"
	"tt-commander/logging"
	"tt-commander/shuttle"
	"tt-commander/types"
)

// ErrNotConnected is reported when no board session is open.
var ErrNotConnected = errors.New("board not connected")

// Board is the session surface served over HTTP.
type Board interface {
	Name() string
	State() types.DeviceState
	Phase() devices.Phase
	Logs() []types.LogEntry
	Done() <-chan struct{}

	SendCommand(text string) error
	DumpState() error
	ReadROM() error
	SelectDesign(index int) error
	SelectDesignWithClock(index, hz int) error
	SetClock(hz int) error
	EnableUIIn(enabled bool) error
	WriteUIIn(mask uint8) error
	SetUOOutMonitoring(enabled bool) error
	ManualClock() error
	ResetProject() error
	Bootloader() error
	FactoryTest() error
	Flash(ctx context.Context, image []byte, offset uint32, progress func(devices.FlashProgress)) error

	AttachTerminal(listener func([]byte)) error
	AttachUART(listener func([]byte)) error
	DetachTerminal(ctx context.Context) error
	TerminalWrite(p []byte) error
	TerminalAttached() bool

	Close(ctx context.Context) error
}

// Connector opens a new board session.
type Connector func(ctx context.Context) (Board, error)

// Server serves the browser front end for one board at a time.
type Server struct {
	hub     *logging.Hub
	shuttle *shuttle.Store
	connect Connector
	log     pslog.Logger

	historySize int

	mu    sync.Mutex
	board Board
}

// NewServer builds a server. board may be nil; connect may be nil when
// reconnecting is not supported.
func NewServer(board Board, connect Connector, hub *logging.Hub, store *shuttle.Store, logger pslog.Logger) *Server {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Server{
		hub:     hub,
		shuttle: store,
		connect: connect,
		log:     logger,
		board:   board,

		historySize: config.LogHistorySize,
	}
}

// SetHistorySize caps the number of log lines the page keeps.
func (s *Server) SetHistorySize(n int) {
	if n > 0 {
		s.historySize = n
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.indexHandler)
	mux.HandleFunc("/status", s.statusHandler)
	mux.HandleFunc("/reconnect", s.reconnectHandler)
	mux.HandleFunc("/command", s.commandHandler)
	mux.HandleFunc("/state/copy", s.copyStateHandler)
	mux.HandleFunc("/flash", s.flashHandler)
	mux.HandleFunc("/logs/stream", s.logsStreamHandler)
	mux.HandleFunc("/events/stream", s.eventsStreamHandler)
	mux.HandleFunc("/terminal/attach", s.terminalAttachHandler)
	mux.HandleFunc("/terminal/detach", s.terminalDetachHandler)
	mux.HandleFunc("/terminal/write", s.terminalWriteHandler)
	mux.HandleFunc("/terminal/stream", s.terminalStreamHandler)
	return mux
}

// ListenAndServe serves on addr until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.Info("web server listening", "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

// Board returns the current session, or ErrNotConnected when there is none
// or it has ended.
func (s *Server) Board() (Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.board == nil {
		return nil, ErrNotConnected
	}
	select {
	case <-s.board.Done():
		return nil, ErrNotConnected
	default:
		return s.board, nil
	}
}

// Reconnect closes the current session and opens a new one.
func (s *Server) Reconnect(ctx context.Context) (Board, error) {
	if s.connect == nil {
		return nil, errors.New("reconnect not supported")
	}
	s.mu.Lock()
	old := s.board
	s.board = nil
	s.mu.Unlock()
	if old != nil {
		_ = old.Close(ctx)
	}

	board, err := s.connect(ctx)
	if err != nil {
		s.log.Warn("reconnect failed", "err", err)
		return nil, err
	}
	s.mu.Lock()
	s.board = board
	s.mu.Unlock()
	return board, nil
}

// Close ends the current session.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	board := s.board
	s.board = nil
	s.mu.Unlock()
	if board == nil {
		return nil
	}
	return board.Close(ctx)
}

func (s *Server) status() types.DeviceStatus {
	status := types.DeviceStatus{Phase: devices.PhaseClosed.String()}
	if s.shuttle != nil {
		status.Shuttle = s.shuttle.Info()
	}
	board, err := s.Board()
	if err != nil {
		return status
	}
	status.Connected = true
	status.Port = board.Name()
	status.Phase = board.Phase().String()
	status.Terminal = board.TerminalAttached()
	status.State = board.State()
	return status
}
