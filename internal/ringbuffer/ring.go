// Package ringbuffer provides the byte-addressed circular store that backs
// streamed sample data. Positions are absolute: they count every byte ever
// appended, so a reader can ask for a window by stream offset and learn
// whether it is still retained.
//
// A Ring is not safe for concurrent use. The server's dispatch loop is its
// only owner.
package ringbuffer

import (
	"fmt"

	"github.com/tphakala/ftbuffer/internal/errors"
)

func init() {
	errors.RegisterComponent("internal/ringbuffer", "ringbuffer")
}

var (
	// ErrOutOfRange is returned when a read window is not fully retained
	ErrOutOfRange = errors.NewStd("range not retained")
	// ErrInvalidRange is returned when end precedes begin
	ErrInvalidRange = errors.NewStd("invalid range")
)

// Ring retains the most recent Capacity bytes of an append-only stream.
type Ring struct {
	data       []byte
	writeIndex int    // next physical write position
	size       int    // retained bytes, at most len(data)
	end        uint64 // absolute position one past the newest byte
}

// New creates a ring whose stream starts at position 0.
func New(capacity int) *Ring {
	return NewAt(capacity, 0)
}

// NewAt creates a ring whose first appended byte gets absolute position origin.
func NewAt(capacity int, origin uint64) *Ring {
	if capacity <= 0 {
		panic(fmt.Sprintf("ringbuffer: capacity must be positive, got %d", capacity))
	}
	return &Ring{
		data: make([]byte, capacity),
		end:  origin,
	}
}

// Append copies p at the tail, evicting the oldest bytes once full.
func (r *Ring) Append(p []byte) {
	r.end += uint64(len(p))

	capacity := len(r.data)
	if len(p) >= capacity {
		// Only the newest capacity bytes survive
		copy(r.data, p[len(p)-capacity:])
		r.writeIndex = 0
		r.size = capacity
		return
	}

	n := copy(r.data[r.writeIndex:], p)
	if n < len(p) {
		copy(r.data, p[n:])
	}
	r.writeIndex = (r.writeIndex + len(p)) % capacity
	r.size = min(r.size+len(p), capacity)
}

// Read returns a copy of the bytes at absolute positions [begin, end).
func (r *Ring) Read(begin, end uint64) ([]byte, error) {
	if end < begin {
		return nil, fmt.Errorf("%w: [%d, %d)", ErrInvalidRange, begin, end)
	}
	if begin < r.Begin() || end > r.end {
		return nil, fmt.Errorf("%w: [%d, %d) outside retained [%d, %d)", ErrOutOfRange, begin, end, r.Begin(), r.end)
	}

	out := make([]byte, end-begin)
	if len(out) == 0 {
		return out, nil
	}

	capacity := len(r.data)
	// Physical index of the oldest retained byte
	oldest := (r.writeIndex - r.size + capacity) % capacity
	start := (oldest + int(begin-r.Begin())) % capacity

	n := copy(out, r.data[start:])
	if n < len(out) {
		copy(out[n:], r.data)
	}
	return out, nil
}

// Begin is the absolute position of the oldest retained byte.
func (r *Ring) Begin() uint64 {
	return r.end - uint64(r.size)
}

// End is the absolute position one past the newest byte.
func (r *Ring) End() uint64 {
	return r.end
}

// Len is the number of retained bytes.
func (r *Ring) Len() int {
	return r.size
}

// Capacity is the fixed retention limit in bytes.
func (r *Ring) Capacity() int {
	return len(r.data)
}
