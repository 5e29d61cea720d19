package fieldtrip

import "fmt"

// Fixed payload sizes of the small request and response bodies
const (
	RangeSize       = 8
	WaitRequestSize = 12
	CountsSize      = 8
)

// Range is an inclusive, zero-based [First, Last] index pair used by
// GET_DAT and GET_EVT.
type Range struct {
	First uint32
	Last  uint32
}

// EncodeRange serializes r. A nil range encodes as an empty payload, which
// asks the server for everything it currently retains.
func EncodeRange(r *Range) []byte {
	if r == nil {
		return nil
	}
	buf := make([]byte, 0, RangeSize)
	buf = order.AppendUint32(buf, r.First)
	return order.AppendUint32(buf, r.Last)
}

// DecodeRange parses a range payload. An empty payload yields nil.
func DecodeRange(b []byte) (*Range, error) {
	switch len(b) {
	case 0:
		return nil, nil
	case RangeSize:
		r := &Range{First: order.Uint32(b[0:4]), Last: order.Uint32(b[4:8])}
		if r.Last < r.First {
			return nil, fmt.Errorf("%w: [%d, %d]", ErrInvalidRange, r.First, r.Last)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("%w: range payload of %d bytes", ErrInvalidRange, len(b))
	}
}

// Counts is the sample and event count pair reported by WAIT_DAT.
type Counts struct {
	NSamples uint32
	NEvents  uint32
}

// EncodeCounts serializes c.
func EncodeCounts(c Counts) []byte {
	buf := make([]byte, 0, CountsSize)
	buf = order.AppendUint32(buf, c.NSamples)
	return order.AppendUint32(buf, c.NEvents)
}

// DecodeCounts parses a WAIT_OK payload.
func DecodeCounts(b []byte) (Counts, error) {
	if len(b) < CountsSize {
		return Counts{}, fmt.Errorf("%w: counts payload of %d bytes", ErrShortMessage, len(b))
	}
	return Counts{NSamples: order.Uint32(b[0:4]), NEvents: order.Uint32(b[4:8])}, nil
}

// WaitRequest asks the server to reply once NSamples samples or NEvents
// events exist, or TimeoutMs milliseconds have elapsed. A zero threshold
// places no condition on its counter.
type WaitRequest struct {
	NSamples  uint32
	NEvents   uint32
	TimeoutMs uint32
}

// Satisfied reports whether c meets the thresholds of w.
func (w WaitRequest) Satisfied(c Counts) bool {
	if w.NSamples == 0 && w.NEvents == 0 {
		return true
	}
	return (w.NSamples > 0 && c.NSamples >= w.NSamples) ||
		(w.NEvents > 0 && c.NEvents >= w.NEvents)
}

// EncodeWaitRequest serializes w.
func EncodeWaitRequest(w WaitRequest) []byte {
	buf := make([]byte, 0, WaitRequestSize)
	buf = order.AppendUint32(buf, w.NSamples)
	buf = order.AppendUint32(buf, w.NEvents)
	return order.AppendUint32(buf, w.TimeoutMs)
}

// DecodeWaitRequest parses a WAIT_DAT payload, which must be exactly 12 bytes.
func DecodeWaitRequest(b []byte) (WaitRequest, error) {
	if len(b) != WaitRequestSize {
		return WaitRequest{}, fmt.Errorf("%w: wait payload of %d bytes, want %d", ErrShortMessage, len(b), WaitRequestSize)
	}
	return WaitRequest{
		NSamples:  order.Uint32(b[0:4]),
		NEvents:   order.Uint32(b[4:8]),
		TimeoutMs: order.Uint32(b[8:12]),
	}, nil
}
