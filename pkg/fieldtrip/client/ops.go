package client

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/tphakala/ftbuffer/internal/errors"
	"github.com/tphakala/ftbuffer/pkg/fieldtrip"
)

// PutOption adjusts a PUT request.
type PutOption func(*putOptions)

type putOptions struct {
	labels     []string
	chunks     map[fieldtrip.ChunkType][]byte
	noResponse bool
}

// WithLabels attaches one channel name per channel to PutHeader. An empty
// list is the same as no labels.
func WithLabels(labels ...string) PutOption {
	return func(o *putOptions) { o.labels = labels }
}

// WithChunk attaches an extra header chunk to PutHeader. A channel names
// chunk is ignored when WithLabels is also given.
func WithChunk(t fieldtrip.ChunkType, data []byte) PutOption {
	return func(o *putOptions) {
		if o.chunks == nil {
			o.chunks = make(map[fieldtrip.ChunkType][]byte)
		}
		o.chunks[t] = data
	}
}

// WithChunks attaches several extra header chunks to PutHeader.
func WithChunks(chunks map[fieldtrip.ChunkType][]byte) PutOption {
	return func(o *putOptions) {
		if o.chunks == nil {
			o.chunks = make(map[fieldtrip.ChunkType][]byte, len(chunks))
		}
		maps.Copy(o.chunks, chunks)
	}
}

// NoResponse sends the NORESPONSE variant of a PUT. The call returns once the
// request is written and the server's verdict is never seen.
func NoResponse() PutOption {
	return func(o *putOptions) { o.noResponse = true }
}

func collectPutOptions(opts []PutOption) putOptions {
	var o putOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o putOptions) command(cmd fieldtrip.Command) fieldtrip.Command {
	if o.noResponse {
		return cmd.Unacknowledged()
	}
	return cmd
}

// rejected maps the internal rejected-status marker to a public sentinel.
func rejected(err error, sentinel error, op string) error {
	if errors.Is(err, errRejectedStatus) {
		return errors.New(fmt.Errorf("%s: %w", op, sentinel)).
			Component("client").
			Category(errors.CategoryState).
			Context("operation", op).
			Build()
	}
	return err
}

// GetHeader fetches the current header. ErrUnavailable means no header has
// been written yet.
func (c *Client) GetHeader(ctx context.Context) (*fieldtrip.Header, error) {
	const op = "get_header"
	payload, err := c.roundTrip(ctx, exchange{op: op, cmd: fieldtrip.GetHdr, ok: fieldtrip.GetOK, rejected: fieldtrip.GetErr})
	if err != nil {
		return nil, rejected(err, ErrUnavailable, op)
	}
	h, err := fieldtrip.DecodeHeader(payload)
	if err != nil {
		return nil, c.malformed(op, err)
	}
	return h, nil
}

// PutHeader starts a new buffer generation with nChannels channels of
// dataType sampled at fSample Hz. Existing samples and events are discarded.
func (c *Client) PutHeader(ctx context.Context, nChannels uint32, fSample float32, dataType fieldtrip.DataType, opts ...PutOption) error {
	const op = "put_header"
	o := collectPutOptions(opts)

	h := &fieldtrip.Header{
		NChannels: nChannels,
		FSample:   fSample,
		DataType:  dataType,
		Chunks:    maps.Clone(o.chunks),
	}
	if len(o.labels) > 0 {
		names, err := fieldtrip.PackLabels(o.labels, nChannels)
		if err != nil {
			return err
		}
		if h.Chunks == nil {
			h.Chunks = make(map[fieldtrip.ChunkType][]byte, 1)
		}
		h.Chunks[fieldtrip.ChunkChannelNames] = names
	}

	_, err := c.roundTrip(ctx, exchange{
		op:       op,
		cmd:      o.command(fieldtrip.PutHdr),
		payload:  fieldtrip.EncodeHeader(h),
		ok:       fieldtrip.PutOK,
		rejected: fieldtrip.PutErr,
	})
	return rejected(err, ErrRejected, op)
}

// GetData reads the inclusive sample range r, or everything the server still
// retains when r is nil. ErrUnavailable covers a missing header and a range
// outside the retained window.
func (c *Client) GetData(ctx context.Context, r *fieldtrip.Range) (*fieldtrip.Matrix, error) {
	const op = "get_data"
	payload, err := c.roundTrip(ctx, exchange{
		op:       op,
		cmd:      fieldtrip.GetDat,
		payload:  fieldtrip.EncodeRange(r),
		ok:       fieldtrip.GetOK,
		rejected: fieldtrip.GetErr,
	})
	if err != nil {
		return nil, rejected(err, ErrUnavailable, op)
	}
	m, err := fieldtrip.DecodeData(payload)
	if err != nil {
		return nil, c.malformed(op, err)
	}
	return m, nil
}

// PutData appends a samples×channels block. Channel count and data type must
// match the current header.
func (c *Client) PutData(ctx context.Context, m *fieldtrip.Matrix, opts ...PutOption) error {
	const op = "put_data"
	payload, err := fieldtrip.EncodeData(m)
	if err != nil {
		return err
	}
	o := collectPutOptions(opts)
	_, err = c.roundTrip(ctx, exchange{
		op:       op,
		cmd:      o.command(fieldtrip.PutDat),
		payload:  payload,
		ok:       fieldtrip.PutOK,
		rejected: fieldtrip.PutErr,
	})
	return rejected(err, ErrRejected, op)
}

// GetEvents reads the inclusive event range r, or all retained events when r
// is nil. A server with nothing to return yields an empty list.
func (c *Client) GetEvents(ctx context.Context, r *fieldtrip.Range) ([]fieldtrip.Event, error) {
	const op = "get_events"
	payload, err := c.roundTrip(ctx, exchange{
		op:       op,
		cmd:      fieldtrip.GetEvt,
		payload:  fieldtrip.EncodeRange(r),
		ok:       fieldtrip.GetOK,
		rejected: fieldtrip.GetErr,
	})
	if errors.Is(err, errRejectedStatus) {
		return []fieldtrip.Event{}, nil
	}
	if err != nil {
		return nil, err
	}
	events, err := fieldtrip.DecodeEvents(payload)
	if err != nil {
		return nil, c.malformed(op, err)
	}
	return events, nil
}

// PutEvents appends events in order.
func (c *Client) PutEvents(ctx context.Context, events []fieldtrip.Event, opts ...PutOption) error {
	const op = "put_events"
	payload, err := fieldtrip.EncodeEvents(events)
	if err != nil {
		return err
	}
	o := collectPutOptions(opts)
	_, err = c.roundTrip(ctx, exchange{
		op:       op,
		cmd:      o.command(fieldtrip.PutEvt),
		payload:  payload,
		ok:       fieldtrip.PutOK,
		rejected: fieldtrip.PutErr,
	})
	return rejected(err, ErrRejected, op)
}

// Poll returns the current sample and event counts without blocking.
func (c *Client) Poll(ctx context.Context) (fieldtrip.Counts, error) {
	return c.Wait(ctx, 0, 0, 0)
}

// Wait blocks until at least nSamples samples or nEvents events exist, or
// timeoutMs elapses. A zero threshold places no condition on its counter.
// Timing out, a missing header and a header change report ErrWaitFailed.
func (c *Client) Wait(ctx context.Context, nSamples, nEvents, timeoutMs uint32) (fieldtrip.Counts, error) {
	const op = "wait"
	payload, err := c.roundTrip(ctx, exchange{
		op:       op,
		cmd:      fieldtrip.WaitDat,
		payload:  fieldtrip.EncodeWaitRequest(fieldtrip.WaitRequest{NSamples: nSamples, NEvents: nEvents, TimeoutMs: timeoutMs}),
		extra:    time.Duration(timeoutMs) * time.Millisecond,
		ok:       fieldtrip.WaitOK,
		rejected: fieldtrip.WaitErr,
	})
	if err != nil {
		return fieldtrip.Counts{}, rejected(err, ErrWaitFailed, op)
	}
	counts, err := fieldtrip.DecodeCounts(payload)
	if err != nil {
		return fieldtrip.Counts{}, c.malformed(op, err)
	}
	return counts, nil
}

// FlushHeader removes the header with all samples and events.
func (c *Client) FlushHeader(ctx context.Context) error {
	return c.flush(ctx, "flush_header", fieldtrip.FlushHdr)
}

// FlushData discards retained samples. The sample counter keeps counting.
func (c *Client) FlushData(ctx context.Context) error {
	return c.flush(ctx, "flush_data", fieldtrip.FlushDat)
}

// FlushEvents discards retained events. The event counter keeps counting.
func (c *Client) FlushEvents(ctx context.Context) error {
	return c.flush(ctx, "flush_events", fieldtrip.FlushEvt)
}

// flush returns ErrUnavailable when the server has nothing to flush.
func (c *Client) flush(ctx context.Context, op string, cmd fieldtrip.Command) error {
	_, err := c.roundTrip(ctx, exchange{op: op, cmd: cmd, ok: fieldtrip.FlushOK, rejected: fieldtrip.FlushErr})
	return rejected(err, ErrUnavailable, op)
}
