package devices

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// ErrBranchClosed is returned by reads on a closed Tee branch.
var ErrBranchClosed = errors.New("tee branch closed")

// Tee copies one reader into several independently consumed branches. Every
// branch buffers on its own, so a slow branch never stalls the others or the
// source.
type Tee struct {
	src      io.Reader
	branches []*teeBranch
	done     chan struct{}
}

// NewTee starts copying src into n branches.
func NewTee(src io.Reader, n int) *Tee {
	t := &Tee{
		src:  src,
		done: make(chan struct{}),
	}
	for i := 0; i < n; i++ {
		b := &teeBranch{}
		b.cond = sync.NewCond(&b.mu)
		t.branches = append(t.branches, b)
	}
	go t.pump()
	return t
}

// Branch returns the i-th branch.
func (t *Tee) Branch(i int) io.ReadCloser {
	return t.branches[i]
}

// Done is closed once the source has returned an error.
func (t *Tee) Done() <-chan struct{} {
	return t.done
}

func (t *Tee) pump() {
	defer close(t.done)
	buf := make([]byte, 4096)
	for {
		n, err := t.src.Read(buf)
		if n > 0 {
			for _, b := range t.branches {
				b.push(buf[:n])
			}
		}
		if err != nil {
			for _, b := range t.branches {
				b.fail(err)
			}
			return
		}
	}
}

type teeBranch struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    bytes.Buffer
	err    error
	closed bool
}

func (b *teeBranch) push(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.buf.Write(p)
	b.cond.Broadcast()
}

func (b *teeBranch) fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
	b.cond.Broadcast()
}

// Read returns buffered data first; the source error is returned once the
// buffer is drained.
func (b *teeBranch) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.buf.Len() == 0 && b.err == nil && !b.closed {
		b.cond.Wait()
	}
	if b.closed {
		return 0, ErrBranchClosed
	}
	if b.buf.Len() > 0 {
		return b.buf.Read(p)
	}
	return 0, b.err
}

// Close discards buffered data and wakes a blocked reader. It is idempotent.
func (b *teeBranch) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.buf.Reset()
	b.cond.Broadcast()
	return nil
}
