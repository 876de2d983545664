package devices

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"
	"time"

	"tt-commander/config"
	"tt-commander/protocol"
	"tt-commander/types"
)

// ProbeResult is the outcome of asking one port for its firmware version.
type ProbeResult struct {
	Port    string `json:"port"`
	Version string `json:"version,omitempty"`
	Err     error  `json:"-"`
}

// Opener opens a port by name.
type Opener func(name string) (io.ReadWriteCloser, error)

// SerialOpener opens ports with the driver and baud rate of cfg.
func SerialOpener(cfg config.SerialConfig) Opener {
	return func(name string) (io.ReadWriteCloser, error) {
		cfg.Port = name
		port, _, err := OpenPort(cfg)
		return port, err
	}
}

// ProbeCandidates lists the ports worth probing on this host.
func ProbeCandidates() []string {
	ports, err := ListPorts()
	if err != nil {
		return commonPorts()
	}
	var names []string
	for _, port := range ports {
		if runtime.GOOS != "windows" && strings.HasPrefix(port.Name, "COM") {
			continue
		}
		names = append(names, port.Name)
	}
	return names
}

// ProbePorts probes every port in parallel and returns the results in the
// order of names.
func ProbePorts(ctx context.Context, open Opener, names []string, timeout time.Duration) []ProbeResult {
	results := make([]ProbeResult, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = probePort(ctx, open, name, timeout)
		}()
	}
	wg.Wait()
	return results
}

// DetectBoard returns the first port that answers the version probe. The
// remaining probes are cancelled.
func DetectBoard(ctx context.Context, open Opener, names []string, timeout time.Duration) (ProbeResult, error) {
	if len(names) == 0 {
		return ProbeResult{}, ErrBoardNotFound
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	resultChan := make(chan ProbeResult, len(names))
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resultChan <- probePort(ctx, open, name, timeout)
		}()
	}
	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var lastErr error
	for result := range resultChan {
		if result.Err == nil {
			return result, nil
		}
		lastErr = result.Err
	}
	if ctx.Err() != nil {
		return ProbeResult{}, ctx.Err()
	}
	return ProbeResult{}, fmt.Errorf("%w: last error: %v", ErrBoardNotFound, lastErr)
}

func probePort(ctx context.Context, open Opener, name string, timeout time.Duration) ProbeResult {
	result := ProbeResult{Port: name}
	port, err := open(name)
	if err != nil {
		result.Err = err
		return result
	}
	defer port.Close()

	found := make(chan string, 1)
	go func() {
		var framer protocol.Framer
		var state types.DeviceState
		buf := make([]byte, 256)
		for {
			n, err := port.Read(buf)
			for _, line := range framer.Push(buf[:n]) {
				_, _ = protocol.Interpret(protocol.Clean(line), &state)
				if state.HasFirmwareVersion {
					found <- state.FirmwareVersion
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	if _, err := port.Write([]byte("\r\n" + config.VersionProbe + "\r\n")); err != nil {
		result.Err = fmt.Errorf("write probe: %w", err)
		return result
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case version := <-found:
		result.Version = version
	case <-timer.C:
		result.Err = ErrLineTimeout
	case <-ctx.Done():
		result.Err = ctx.Err()
	}
	return result
}
