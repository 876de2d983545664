package devices

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"tt-commander/config"
)

var errNoPort = errors.New("no such port")

func probeOpener(boards map[string]string) Opener {
	return func(name string) (io.ReadWriteCloser, error) {
		version, ok := boards[name]
		if !ok {
			return nil, errNoPort
		}
		port := newFakePort()
		if version != "" {
			port.setHook(func(p []byte) {
				if bytes.Contains(p, []byte(config.VersionProbe)) {
					go port.emit("BOOT: ready", "tt.sdk_version=release_v"+version)
				}
			})
		}
		return port, nil
	}
}

func TestProbePorts(t *testing.T) {
	open := probeOpener(map[string]string{"/dev/ttyACM0": "2.0.5", "/dev/ttyS0": ""})
	results := ProbePorts(context.Background(), open, []string{"/dev/ttyACM0", "/dev/ttyS0", "/dev/missing"}, 50*time.Millisecond)
	if len(results) != 3 {
		t.Fatalf("unexpected results %+v", results)
	}
	if results[0].Err != nil || results[0].Version != "2.0.5" {
		t.Fatalf("board not detected: %+v", results[0])
	}
	if !errors.Is(results[1].Err, ErrLineTimeout) {
		t.Fatalf("silent port: %+v", results[1])
	}
	if !errors.Is(results[2].Err, errNoPort) {
		t.Fatalf("missing port: %+v", results[2])
	}
}

func TestDetectBoard(t *testing.T) {
	open := probeOpener(map[string]string{"/dev/ttyACM1": "2.0.4", "/dev/ttyS0": ""})
	result, err := DetectBoard(context.Background(), open, []string{"/dev/ttyS0", "/dev/missing", "/dev/ttyACM1"}, time.Second)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if result.Port != "/dev/ttyACM1" || result.Version != "2.0.4" {
		t.Fatalf("unexpected result %+v", result)
	}

	_, err = DetectBoard(context.Background(), open, []string{"/dev/missing"}, time.Second)
	if !errors.Is(err, ErrBoardNotFound) {
		t.Fatalf("expected ErrBoardNotFound, got %v", err)
	}
}

func TestIsBoard(t *testing.T) {
	if !isBoard(true, "2e8a", "0005") {
		t.Fatalf("expected lowercase ids to match")
	}
	if isBoard(false, "2E8A", "0005") || isBoard(true, "2341", "0043") {
		t.Fatalf("unexpected match")
	}
}
