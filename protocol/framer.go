package protocol

import "bytes"

// Framer splits a byte stream into lines. Chunks may be cut anywhere,
// including between '\r' and '\n'; the unterminated tail is kept until the
// next Push. A Framer belongs to a single read loop.
type Framer struct {
	buf []byte
}

// Push appends chunk and returns every line it completed, without terminators.
func (f *Framer) Push(chunk []byte) []string {
	f.buf = append(f.buf, chunk...)
	var lines []string
	for {
		idx := bytes.IndexByte(f.buf, '\n')
		if idx < 0 {
			break
		}
		line := f.buf[:idx]
		line = bytes.TrimSuffix(line, []byte{'\r'})
		lines = append(lines, string(line))
		f.buf = f.buf[idx+1:]
	}
	if len(f.buf) == 0 {
		f.buf = nil
	}
	return lines
}

// Pending returns the buffered partial line.
func (f *Framer) Pending() []byte {
	return append([]byte(nil), f.buf...)
}
