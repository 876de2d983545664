package devices

import (
	"context"
	"strings"
	"sync"
	"time"
)

type lineWatch struct {
	match func(string) bool
	ch    chan string
	once  bool
}

type watchers struct {
	mu   sync.Mutex
	list map[*lineWatch]struct{}
}

func (w *watchers) add(match func(string) bool, depth int, once bool) *lineWatch {
	lw := &lineWatch{match: match, ch: make(chan string, depth), once: once}
	w.mu.Lock()
	if w.list == nil {
		w.list = make(map[*lineWatch]struct{})
	}
	w.list[lw] = struct{}{}
	w.mu.Unlock()
	return lw
}

func (w *watchers) remove(lw *lineWatch) {
	w.mu.Lock()
	delete(w.list, lw)
	w.mu.Unlock()
}

// dispatch hands line to every matching watch and returns how many lines
// were dropped on full streams.
func (w *watchers) dispatch(line string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	dropped := 0
	for lw := range w.list {
		if !lw.match(line) {
			continue
		}
		select {
		case lw.ch <- line:
		default:
			dropped++
		}
		if lw.once {
			delete(w.list, lw)
		}
	}
	return dropped
}

// HasPrefix matches lines starting with prefix.
func HasPrefix(prefix string) func(string) bool {
	return func(line string) bool {
		return strings.HasPrefix(line, prefix)
	}
}

// LineWaiter is a single-use wait for the next line satisfying a predicate.
// It is armed on creation, so a command can be sent between ExpectLine and
// Wait without missing its reply.
type LineWaiter struct {
	b  *Board
	lw *lineWatch
}

// ExpectLine arms a LineWaiter for the next cleaned control line matching match.
// Lines received while a terminal is attached are not offered.
func (b *Board) ExpectLine(match func(string) bool) *LineWaiter {
	return &LineWaiter{b: b, lw: b.watches.add(match, 1, true)}
}

// Wait blocks until the line arrives. A zero timeout waits until ctx is
// done or the session ends.
func (w *LineWaiter) Wait(ctx context.Context, timeout time.Duration) (string, error) {
	defer w.Cancel()
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case line := <-w.lw.ch:
		return line, nil
	case <-expired:
		return "", ErrLineTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	case <-w.b.done:
		return "", ErrClosed
	}
}

// Cancel disarms the waiter.
func (w *LineWaiter) Cancel() {
	w.b.watches.remove(w.lw)
}

// WaitForLine waits for the next line matching match.
func (b *Board) WaitForLine(ctx context.Context, timeout time.Duration, match func(string) bool) (string, error) {
	return b.ExpectLine(match).Wait(ctx, timeout)
}

// watchLines streams every matching line until cancel is called.
func (b *Board) watchLines(match func(string) bool, depth int) (<-chan string, func()) {
	lw := b.watches.add(match, depth, false)
	return lw.ch, func() { b.watches.remove(lw) }
}
