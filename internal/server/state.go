package server

import (
	"fmt"
	"math"

	"github.com/tphakala/ftbuffer/internal/errors"
	"github.com/tphakala/ftbuffer/internal/ringbuffer"
	"github.com/tphakala/ftbuffer/pkg/fieldtrip"
)

// maxRingBytes bounds the sample ring a single header may ask for.
const maxRingBytes = 4 << 30

// Reasons a request is answered with its verb's ERR status
var (
	errNoHeader        = errors.NewStd("no header")
	errHeaderMismatch  = errors.NewStd("data does not match header")
	errNothingRetained = errors.NewStd("nothing retained")
	errCounterOverflow = errors.NewStd("counter overflow")
	errWindowTooLarge  = errors.NewStd("sample window too large")
	errWaitTimeout     = errors.NewStd("wait timed out")
	errHeaderChanged   = errors.NewStd("header replaced or flushed")
	errShuttingDown    = errors.NewStd("server shutting down")
)

// reply is one response message.
type reply struct {
	status  fieldtrip.Command
	payload []byte
}

// effect tells the dispatcher what a request did to the counters.
type effect int

const (
	effectNone  effect = iota
	effectGrew         // samples or events were appended
	effectReset        // the header was replaced or removed
)

// outcome is the result of applying one request to the buffer state.
type outcome struct {
	reply  reply
	effect effect
	reason error // why the reply is an ERR status, for logs
}

func ok(status fieldtrip.Command, payload []byte) outcome {
	return outcome{reply: reply{status: status, payload: payload}}
}

func fail(status fieldtrip.Command, reason error) outcome {
	return outcome{reply: reply{status: status}, reason: reason}
}

// bufferState is the header, sample ring and event store of the current
// generation. It is owned by the dispatch goroutine.
type bufferState struct {
	window    float64
	maxEvents int

	header     *fieldtrip.Header // nil means idle
	frameBytes uint64
	ringBytes  int
	ring       *ringbuffer.Ring // nil until the first PUT_DAT and after FLUSH_DAT
	events     *eventStore
}

func newBufferState(window float64, maxEvents int) *bufferState {
	return &bufferState{window: window, maxEvents: maxEvents}
}

// apply executes one acknowledged command. WAIT_DAT is handled by the
// dispatcher and never reaches apply.
func (st *bufferState) apply(cmd fieldtrip.Command, payload []byte) outcome {
	switch cmd {
	case fieldtrip.PutHdr:
		return st.putHeader(payload)
	case fieldtrip.PutDat:
		return st.putData(payload)
	case fieldtrip.PutEvt:
		return st.putEvents(payload)
	case fieldtrip.GetHdr:
		return st.getHeader()
	case fieldtrip.GetDat:
		return st.getData(payload)
	case fieldtrip.GetEvt:
		return st.getEvents(payload)
	case fieldtrip.FlushHdr:
		return st.flushHeader()
	case fieldtrip.FlushDat:
		return st.flushData()
	case fieldtrip.FlushEvt:
		return st.flushEvents()
	default:
		// Unknown commands are echoed back as the status.
		return outcome{reply: reply{status: cmd}, reason: fmt.Errorf("unknown command %s", cmd)}
	}
}

func (st *bufferState) active() bool {
	return st.header != nil
}

func (st *bufferState) counts() fieldtrip.Counts {
	if st.header == nil {
		return fieldtrip.Counts{}
	}
	return fieldtrip.Counts{NSamples: st.header.NSamples, NEvents: st.header.NEvents}
}

// retainedSamples is the number of samples currently readable.
func (st *bufferState) retainedSamples() uint64 {
	if st.ring == nil || st.frameBytes == 0 {
		return 0
	}
	return uint64(st.ring.Len()) / st.frameBytes
}

func (st *bufferState) putHeader(payload []byte) outcome {
	h, err := fieldtrip.DecodeHeader(payload)
	if err == nil {
		err = h.Validate()
	}
	if err != nil {
		return fail(fieldtrip.PutErr, err)
	}

	frameBytes, err := fieldtrip.FrameBytes(h.NChannels, h.DataType)
	if err != nil {
		return fail(fieldtrip.PutErr, err)
	}
	samples := max(1, math.Floor(float64(h.FSample)*st.window))
	if samples > float64(maxRingBytes/frameBytes) {
		return fail(fieldtrip.PutErr, fmt.Errorf("%w: %.0f samples of %d bytes", errWindowTooLarge, samples, frameBytes))
	}

	h.NSamples = 0
	h.NEvents = 0
	st.header = h
	st.frameBytes = frameBytes
	st.ringBytes = int(uint64(samples) * frameBytes)
	st.ring = nil
	st.events = newEventStore(st.maxEvents)

	return outcome{reply: reply{status: fieldtrip.PutOK}, effect: effectReset}
}

func (st *bufferState) putData(payload []byte) outcome {
	if st.header == nil {
		return fail(fieldtrip.PutErr, errNoHeader)
	}
	m, err := fieldtrip.DecodeData(payload)
	if err != nil {
		return fail(fieldtrip.PutErr, err)
	}
	if m.Cols != st.header.NChannels || m.Type != st.header.DataType {
		return fail(fieldtrip.PutErr, fmt.Errorf("%w: got %d channels of %s, header has %d of %s",
			errHeaderMismatch, m.Cols, m.Type, st.header.NChannels, st.header.DataType))
	}
	if uint64(st.header.NSamples)+uint64(m.Rows) > math.MaxUint32 {
		return fail(fieldtrip.PutErr, errCounterOverflow)
	}

	if st.ring == nil {
		st.ring = ringbuffer.NewAt(st.ringBytes, uint64(st.header.NSamples)*st.frameBytes)
	}
	st.ring.Append(m.Raw)
	st.header.NSamples += m.Rows

	return outcome{reply: reply{status: fieldtrip.PutOK}, effect: effectGrew}
}

func (st *bufferState) putEvents(payload []byte) outcome {
	if st.header == nil {
		return fail(fieldtrip.PutErr, errNoHeader)
	}
	evs, err := fieldtrip.DecodeEvents(payload)
	if err != nil {
		return fail(fieldtrip.PutErr, err)
	}
	if len(evs) == 0 {
		return ok(fieldtrip.PutOK, nil)
	}
	if uint64(st.header.NEvents)+uint64(len(evs)) > math.MaxUint32 {
		return fail(fieldtrip.PutErr, errCounterOverflow)
	}

	st.events.append(evs)
	st.header.NEvents += uint32(len(evs)) //nolint:gosec // checked above

	return outcome{reply: reply{status: fieldtrip.PutOK}, effect: effectGrew}
}

func (st *bufferState) getHeader() outcome {
	if st.header == nil {
		return fail(fieldtrip.GetErr, errNoHeader)
	}
	return ok(fieldtrip.GetOK, fieldtrip.EncodeHeader(st.header))
}

func (st *bufferState) getData(payload []byte) outcome {
	if st.header == nil {
		return fail(fieldtrip.GetErr, errNoHeader)
	}
	r, err := fieldtrip.DecodeRange(payload)
	if err != nil {
		return fail(fieldtrip.GetErr, err)
	}
	if st.ring == nil || st.ring.Len() == 0 {
		return fail(fieldtrip.GetErr, errNothingRetained)
	}
	if r == nil {
		r = &fieldtrip.Range{
			First: uint32(st.ring.Begin() / st.frameBytes),   //nolint:gosec // sample indices are uint32
			Last:  uint32(st.ring.End()/st.frameBytes - 1), //nolint:gosec // sample indices are uint32
		}
	}

	begin, end, err := fieldtrip.SampleByteRange(r.First, r.Last, st.header.NChannels, st.header.DataType)
	if err != nil {
		return fail(fieldtrip.GetErr, err)
	}
	raw, err := st.ring.Read(begin, end)
	if err != nil {
		return fail(fieldtrip.GetErr, err)
	}

	block, err := fieldtrip.EncodeData(&fieldtrip.Matrix{
		Rows: r.Last - r.First + 1,
		Cols: st.header.NChannels,
		Type: st.header.DataType,
		Raw:  raw,
	})
	if err != nil {
		return fail(fieldtrip.GetErr, err)
	}
	return ok(fieldtrip.GetOK, block)
}

func (st *bufferState) getEvents(payload []byte) outcome {
	if st.header == nil {
		return fail(fieldtrip.GetErr, errNoHeader)
	}
	r, err := fieldtrip.DecodeRange(payload)
	if err != nil {
		return fail(fieldtrip.GetErr, err)
	}
	evs, found := st.events.get(r)
	if !found {
		return fail(fieldtrip.GetErr, errNothingRetained)
	}
	buf, err := fieldtrip.EncodeEvents(evs)
	if err != nil {
		return fail(fieldtrip.GetErr, err)
	}
	return ok(fieldtrip.GetOK, buf)
}

func (st *bufferState) flushHeader() outcome {
	if st.header == nil {
		return fail(fieldtrip.FlushErr, errNoHeader)
	}
	st.header = nil
	st.ring = nil
	st.events = nil
	return outcome{reply: reply{status: fieldtrip.FlushOK}, effect: effectReset}
}

func (st *bufferState) flushData() outcome {
	if st.header == nil {
		return fail(fieldtrip.FlushErr, errNoHeader)
	}
	if st.ring == nil {
		return fail(fieldtrip.FlushErr, errNothingRetained)
	}
	st.ring = nil
	return ok(fieldtrip.FlushOK, nil)
}

func (st *bufferState) flushEvents() outcome {
	if st.header == nil {
		return fail(fieldtrip.FlushErr, errNoHeader)
	}
	if st.events.len() == 0 {
		return fail(fieldtrip.FlushErr, errNothingRetained)
	}
	st.events.flush(st.header.NEvents)
	return ok(fieldtrip.FlushOK, nil)
}

// snapshotHeader returns a deep copy of the header, or nil when idle.
func (st *bufferState) snapshotHeader() *fieldtrip.Header {
	if st.header == nil {
		return nil
	}
	h, err := fieldtrip.DecodeHeader(fieldtrip.EncodeHeader(st.header))
	if err != nil {
		return nil
	}
	return h
}
