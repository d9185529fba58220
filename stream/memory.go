package stream

import (
	"fmt"
	"io"
)

// MemoryBacking is an in-memory Backing implementation, used for compaction
// staging and for callers that want a database entirely in memory.
type MemoryBacking struct {
	buf      []byte
	pos      int64
	writable bool
}

func NewMemoryBacking() *MemoryBacking {
	return &MemoryBacking{writable: true}
}

// NewMemoryBackingFrom wraps an existing byte slice as a read-only or
// writable backing, copying it so the caller's slice is never aliased.
func NewMemoryBackingFrom(data []byte, writable bool) *MemoryBacking {
	cp := make([]byte, len(data))
	copy(cp, data)
	return &MemoryBacking{buf: cp, writable: writable}
}

func (m *MemoryBacking) Read(p []byte) (int, error) {
	if m.pos >= int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[m.pos:])
	m.pos += int64(n)
	return n, nil
}

func (m *MemoryBacking) Write(p []byte) (int, error) {
	if !m.writable {
		return 0, fmt.Errorf("stream: backing buffer is read-only")
	}
	end := m.pos + int64(len(p))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	n := copy(m.buf[m.pos:end], p)
	m.pos += int64(n)
	return n, nil
}

func (m *MemoryBacking) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = m.pos + offset
	case io.SeekEnd:
		newPos = int64(len(m.buf)) + offset
	default:
		return 0, fmt.Errorf("stream: invalid whence %d", whence)
	}
	if newPos < 0 {
		return 0, fmt.Errorf("stream: negative seek position")
	}
	m.pos = newPos
	return m.pos, nil
}

func (m *MemoryBacking) Len() (int64, error) { return int64(len(m.buf)), nil }

func (m *MemoryBacking) Truncate(size int64) error {
	if !m.writable {
		return fmt.Errorf("stream: backing buffer is read-only")
	}
	if size < 0 {
		return fmt.Errorf("stream: negative truncate size")
	}
	if size <= int64(len(m.buf)) {
		m.buf = m.buf[:size]
		return nil
	}
	grown := make([]byte, size)
	copy(grown, m.buf)
	m.buf = grown
	return nil
}

func (m *MemoryBacking) Flush() error { return nil }

func (m *MemoryBacking) Writable() bool { return m.writable }

func (m *MemoryBacking) Close() error { return nil }

// Bytes returns the current contents of the buffer. The returned slice
// aliases the backing's storage and must not be mutated by the caller.
func (m *MemoryBacking) Bytes() []byte { return m.buf }
