package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/atotto/clipboard"

	"tt-commander/devices"
	"tt-commander/firmware"
	"tt-commander/types"
	"tt-commander/utils"
)

const maxUploadSize = 16 << 20

var writeClipboard = clipboard.WriteAll

var errBadRequest = errors.New("bad request")

type commandRequest struct {
	Action  string `json:"action"`
	Index   int    `json:"index"`
	Hz      int    `json:"hz"`
	Value   int    `json:"value"`
	Enabled bool   `json:"enabled"`
	Text    string `json:"text"`
}

type flashResponse struct {
	Written int `json:"written"`
	Total   int `json:"total"`
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.status())
}

func (s *Server) reconnectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	board, err := s.Reconnect(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("reconnect failed: %v", err), http.StatusServiceUnavailable)
		return
	}
	fmt.Fprintf(w, "Board: %s (%s)", utils.BoolToString(true), board.Name())
}

func (s *Server) commandHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	board, err := s.Board()
	if err != nil {
		writeError(w, err)
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if err := s.runCommand(board, req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, s.status())
}

func (s *Server) runCommand(board Board, req commandRequest) error {
	switch req.Action {
	case "select":
		hz := req.Hz
		if hz == 0 && s.shuttle != nil {
			if p, ok := s.shuttle.Project(req.Index); ok {
				hz = p.ClockHz
			}
		}
		if hz > 0 {
			return board.SelectDesignWithClock(req.Index, hz)
		}
		return board.SelectDesign(req.Index)
	case "clock":
		if req.Hz <= 0 {
			return fmt.Errorf("%w: clock must be positive", errBadRequest)
		}
		return board.SetClock(req.Hz)
	case "ui_in_enable":
		return board.EnableUIIn(req.Enabled)
	case "ui_in":
		if req.Value < 0 || req.Value > 0xff {
			return fmt.Errorf("%w: ui_in value out of range", errBadRequest)
		}
		return board.WriteUIIn(uint8(req.Value))
	case "monitor":
		return board.SetUOOutMonitoring(req.Enabled)
	case "manual_clock":
		return board.ManualClock()
	case "reset":
		return board.ResetProject()
	case "bootloader":
		return board.Bootloader()
	case "factory_test":
		return board.FactoryTest()
	case "dump_state":
		return board.DumpState()
	case "read_rom":
		return board.ReadROM()
	case "send":
		if req.Text == "" {
			return fmt.Errorf("%w: empty command", errBadRequest)
		}
		return board.SendCommand(req.Text)
	default:
		return fmt.Errorf("%w: unknown action %q", errBadRequest, req.Action)
	}
}

func (s *Server) copyStateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	board, err := s.Board()
	if err != nil {
		writeError(w, err)
		return
	}
	state := board.State()
	title := ""
	if s.shuttle != nil {
		if p, ok := s.shuttle.Project(state.SelectedDesign); ok {
			title = p.Title
		}
	}
	summary := utils.FormatStateSummary(state, title)
	if err := writeClipboard(summary); err != nil {
		http.Error(w, fmt.Sprintf("clipboard: %v", err), http.StatusInternalServerError)
		return
	}
	w.Write([]byte(summary))
}

func (s *Server) flashHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "No file selected", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, fmt.Sprintf("read upload: %v", err), http.StatusBadRequest)
		return
	}
	image, err := firmware.DecodeImage(header.Filename, data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	offset := image.Base
	if raw := r.FormValue("offset"); raw != "" {
		v, err := strconv.ParseUint(raw, 0, 32)
		if err != nil {
			http.Error(w, "Invalid offset", http.StatusBadRequest)
			return
		}
		offset = uint32(v)
	}

	board, err := s.Board()
	if err != nil {
		writeError(w, err)
		return
	}
	var last devices.FlashProgress
	err = board.Flash(r.Context(), image.Data, offset, func(p devices.FlashProgress) {
		last = p
		s.hub.Broadcast(types.Event{
			Type:    types.EventFlash,
			Port:    board.Name(),
			Message: fmt.Sprintf("%d/%d", p.Written, p.Total),
		})
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, flashResponse{Written: last.Written, Total: last.Total})
}

func (s *Server) terminalAttachHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	board, err := s.Board()
	if err != nil {
		writeError(w, err)
		return
	}
	listener := func(p []byte) {
		s.hub.Broadcast(types.Event{Type: types.EventTerminal, Port: board.Name(), Terminal: p})
	}
	if r.URL.Query().Get("mode") == "uart" {
		err = board.AttachUART(listener)
	} else {
		err = board.AttachTerminal(listener)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, s.status())
}

func (s *Server) terminalDetachHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	board, err := s.Board()
	if err != nil {
		writeError(w, err)
		return
	}
	if err := board.DetachTerminal(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, s.status())
}

func (s *Server) terminalWriteHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	board, err := s.Board()
	if err != nil {
		writeError(w, err)
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := board.TerminalWrite(data); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) logsStreamHandler(w http.ResponseWriter, r *http.Request) {
	events, cancel := s.hub.AddClient()
	defer cancel()
	startStream(w)

	if board, err := s.Board(); err == nil {
		for _, entry := range board.Logs() {
			writeEvent(w, entry)
		}
	}
	s.stream(w, r, events, func(ev types.Event) any {
		if ev.Type != types.EventLog || ev.Log == nil {
			return nil
		}
		return ev.Log
	})
}

func (s *Server) eventsStreamHandler(w http.ResponseWriter, r *http.Request) {
	events, cancel := s.hub.AddClient()
	defer cancel()
	startStream(w)
	writeEvent(w, s.status())
	s.stream(w, r, events, func(ev types.Event) any {
		if ev.Type == types.EventTerminal {
			return nil
		}
		return ev
	})
}

func (s *Server) terminalStreamHandler(w http.ResponseWriter, r *http.Request) {
	events, cancel := s.hub.AddClient()
	defer cancel()
	startStream(w)
	s.stream(w, r, events, func(ev types.Event) any {
		if ev.Type != types.EventTerminal {
			return nil
		}
		return ev
	})
}

// stream writes every event that pick maps to a payload until the client
// goes away or the hub drops it.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, events <-chan types.Event, pick func(types.Event) any) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if payload := pick(ev); payload != nil {
				writeEvent(w, payload)
			}
		case <-r.Context().Done():
			return
		}
	}
}

func startStream(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func writeEvent(w http.ResponseWriter, payload any) {
	data, _ := json.Marshal(payload)
	fmt.Fprintf(w, "data: %s\n\n", data)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotConnected), errors.Is(err, devices.ErrClosed):
		status = http.StatusServiceUnavailable
	case errors.Is(err, errBadRequest), errors.Is(err, devices.ErrNoImage):
		status = http.StatusBadRequest
	case errors.Is(err, devices.ErrTerminalAttached), errors.Is(err, devices.ErrFlashBusy), errors.Is(err, devices.ErrNotAttached):
		status = http.StatusConflict
	case errors.Is(err, devices.ErrLineTimeout):
		status = http.StatusGatewayTimeout
	}
	http.Error(w, err.Error(), status)
}
