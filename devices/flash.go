package devices

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tt-commander/config"
	"tt-commander/firmware"
)

// ErrFlashBusy is returned when a flash transfer is already running.
var ErrFlashBusy = errors.New("flash transfer already running")

// FlashOptions tunes the flash handshake. A zero AckTimeout waits forever.
type FlashOptions struct {
	// AckTimeout bounds the wait for flash_id and the gap between progress lines.
	AckTimeout time.Duration
	// SettleDelay lets the board disable its interrupt handling before the binary stream.
	SettleDelay time.Duration
	// WriteRetries resumes short or timed-out writes this many times.
	WriteRetries int
}

// FlashProgress is reported for every flash_prog line.
type FlashProgress struct {
	Written int
	Total   int
	Done    bool
}

// Flash writes image to the board's SPI flash at offset. The image goes out
// in sector-sized chunks, each preceded by its decimal length; a zero length
// ends the transfer. Flash returns once the board reports flash_prog=ok.
func (b *Board) Flash(ctx context.Context, image []byte, offset uint32, progress func(FlashProgress)) error {
	if len(image) == 0 {
		return ErrNoImage
	}
	if b.TerminalAttached() {
		return ErrTerminalAttached
	}
	if !b.flashing.CompareAndSwap(false, true) {
		return ErrFlashBusy
	}
	defer b.flashing.Store(false)

	opts := b.opts.Flash
	log := b.log.With("offset", fmt.Sprintf("0x%x", offset), "bytes", len(image))
	log.Info("flash started")

	ready := b.ExpectLine(HasPrefix(config.StatusFlashID + "="))
	if err := b.sendFrame(firmware.FlashScript, false, true); err != nil {
		ready.Cancel()
		return fmt.Errorf("send flash script: %w", err)
	}
	id, err := ready.Wait(ctx, opts.AckTimeout)
	if err != nil {
		return fmt.Errorf("wait for flash id: %w", err)
	}
	log.Info("flash ready", "flash_id", strings.TrimPrefix(id, config.StatusFlashID+"="))

	lines, stop := b.watchLines(HasPrefix(config.StatusFlashProg+"="), 64)
	defer stop()

	if err := b.sendFrame(fmt.Sprintf(config.CmdFlashProgram, offset), true, true); err != nil {
		return fmt.Errorf("begin programming: %w", err)
	}
	if err := b.sleep(ctx, opts.SettleDelay); err != nil {
		return err
	}

	quit := make(chan struct{})
	defer close(quit)
	result := make(chan error, 1)
	go func() {
		result <- b.writeChunks(image, opts.WriteRetries, quit)
	}()
	written := (<-chan error)(result)

	var expired <-chan time.Time
	var timer *time.Timer
	if opts.AckTimeout > 0 {
		timer = time.NewTimer(opts.AckTimeout)
		defer timer.Stop()
		expired = timer.C
	}
	for {
		select {
		case err := <-written:
			if err != nil {
				log.Warn("flash write failed", "err", err)
				return fmt.Errorf("write image: %w", err)
			}
			written = nil
		case line := <-lines:
			p, ok := parseFlashProgress(line, offset, len(image))
			if !ok {
				log.Warn("unreadable flash progress", "line", line)
				continue
			}
			if progress != nil {
				progress(p)
			}
			if p.Done {
				log.Info("flash finished")
				return nil
			}
			if timer != nil {
				timer.Reset(opts.AckTimeout)
			}
		case <-expired:
			return fmt.Errorf("wait for flash progress: %w", ErrLineTimeout)
		case <-ctx.Done():
			return ctx.Err()
		case <-b.done:
			return ErrClosed
		}
	}
}

func (b *Board) writeChunks(image []byte, retries int, quit <-chan struct{}) error {
	for start := 0; start < len(image); start += config.FlashSectorSize {
		select {
		case <-quit:
			return nil
		default:
		}
		end := min(start+config.FlashSectorSize, len(image))
		chunk := image[start:end]
		header := []byte(strconv.Itoa(len(chunk)) + "\r\n")
		if err := b.writeWithRetries(retries, header, chunk); err != nil {
			return err
		}
	}
	return b.writeWithRetries(retries, []byte("0\r\n"))
}

func parseFlashProgress(line string, offset uint32, total int) (FlashProgress, bool) {
	_, value, _ := strings.Cut(line, "=")
	if value == config.FlashProgressDone {
		return FlashProgress{Written: total, Total: total, Done: true}, true
	}
	addr, err := strconv.ParseUint(strings.TrimPrefix(value, "0x"), 16, 32)
	if err != nil || uint32(addr) < offset {
		return FlashProgress{}, false
	}
	return FlashProgress{Written: int(uint32(addr) - offset), Total: total}, true
}
