package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pkt.systems/pslog"

	"tt-commander/config"
	"tt-commander/devices"
	"tt-commander/firmware"
	"tt-commander/logging"
)

const (
	detectTimeout = 2 * time.Second
	replyTimeout  = 5 * time.Second
)

func loadConfig(flags *globalFlags) (config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if flags.port != "" {
		cfg.Serial.Port = flags.port
	}
	if flags.driver != "" {
		cfg.Serial.Driver = flags.driver
	}
	return cfg, cfg.Validate()
}

// openBoard opens the configured port, or finds the board, and brings the
// session up.
func openBoard(ctx context.Context, cfg config.Config, hub *logging.Hub, loader devices.ShuttleLoader) (*devices.Board, error) {
	logger := pslog.Ctx(ctx)
	port, name, err := devices.OpenPort(cfg.Serial)
	if errors.Is(err, devices.ErrBoardNotFound) {
		logger.Info("no board by usb id, probing serial ports")
		found, derr := devices.DetectBoard(ctx, devices.SerialOpener(cfg.Serial), devices.ProbeCandidates(), detectTimeout)
		if derr != nil {
			return nil, derr
		}
		cfg.Serial.Port = found.Port
		port, name, err = devices.OpenPort(cfg.Serial)
	}
	if err != nil {
		return nil, err
	}

	opts := devices.OptionsFromConfig(cfg)
	opts.Name = name
	opts.Logger = logger
	opts.Hub = hub
	opts.ShuttleLoader = loader
	board := devices.NewBoard(port, opts)
	if err := board.Start(ctx); err != nil {
		_ = board.Close(context.Background())
		return nil, err
	}

	checkFirmware(logger, board.State().FirmwareVersion)
	return board, nil
}

func checkFirmware(logger pslog.Logger, version string) {
	if version == "" {
		logger.Warn("firmware version unknown, board may not be running Tiny Tapeout firmware")
		return
	}
	if !firmware.AtLeast(version, firmware.MinimumVersion) {
		logger.Warn("firmware upgrade required",
			"version", version,
			"minimum", firmware.MinimumVersion,
			"download", firmware.DownloadURL(firmware.LatestVersion))
		return
	}
	if !firmware.AtLeast(version, firmware.LatestVersion) {
		logger.Info("firmware update available", "version", version, "latest", firmware.LatestVersion)
	}
}

// withBoard opens a session, runs fn and closes the session.
func withBoard(ctx context.Context, flags *globalFlags, fn func(*devices.Board) error) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	board, err := openBoard(ctx, cfg, nil, nil)
	if err != nil {
		return err
	}
	defer board.Close(context.Background())
	return fn(board)
}

// sendAndWait runs send and waits for the line the board answers with.
func sendAndWait(ctx context.Context, board *devices.Board, prefix string, send func() error) (string, error) {
	waiter := board.ExpectLine(devices.HasPrefix(prefix))
	if err := send(); err != nil {
		waiter.Cancel()
		return "", err
	}
	line, err := waiter.Wait(ctx, replyTimeout)
	if err != nil {
		return "", fmt.Errorf("waiting for %s: %w", prefix, err)
	}
	return line, nil
}
