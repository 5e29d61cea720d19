package fieldtrip

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageHeaderLayout(t *testing.T) {
	t.Parallel()

	b := EncodeMessageHeader(nil, MessageHeader{Version: Version, Command: PutDat, PayloadSize: 0x01020304})
	assert.Equal(t, []byte{0x01, 0x00, 0x02, 0x01, 0x04, 0x03, 0x02, 0x01}, b)

	h, err := DecodeMessageHeader(b)
	require.NoError(t, err)
	assert.Equal(t, PutDat, h.Command)
	assert.Equal(t, uint32(0x01020304), h.PayloadSize)
}

func TestDecodeMessageHeaderErrors(t *testing.T) {
	t.Parallel()

	_, err := DecodeMessageHeader([]byte{1, 0, 1})
	require.ErrorIs(t, err, ErrShortMessage)

	b := EncodeMessageHeader(nil, MessageHeader{Version: 2, Command: GetOK})
	h, err := DecodeMessageHeader(b)
	require.ErrorIs(t, err, ErrVersionMismatch)
	assert.Equal(t, uint16(2), h.Version)
}

func TestReadMessageRetriesShortReads(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte{0xAB}, 1000)
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, GetOK, payload))

	// OneByteReader returns a single byte per Read call
	msg, err := ReadMessage(iotest.OneByteReader(&buf), 0)
	require.NoError(t, err)
	assert.Equal(t, GetOK, msg.Command)
	assert.Equal(t, payload, msg.Payload)
}

func TestReadMessageFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
		max   uint32
		want  error
	}{
		{"clean eof", nil, 0, io.EOF},
		{"truncated header", []byte{1, 0, 1, 2}, 0, ErrShortMessage},
		{"truncated payload", AppendMessage(nil, PutDat, make([]byte, 32))[:20], 0, ErrShortMessage},
		{"version mismatch", EncodeMessageHeader(nil, MessageHeader{Version: 3, Command: GetHdr}), 0, ErrVersionMismatch},
		{"payload over limit", AppendMessage(nil, PutDat, make([]byte, 64)), 32, ErrPayloadTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ReadMessage(bytes.NewReader(tt.input), tt.max)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
		})
	}
}

func TestCommandVariants(t *testing.T) {
	t.Parallel()

	assert.Equal(t, PutHdrNoResponse, PutHdr.Unacknowledged())
	assert.Equal(t, PutEvt, PutEvtNoResponse.Acknowledged())
	assert.True(t, PutDatNoResponse.NoResponse())
	assert.False(t, PutDat.NoResponse())
	assert.Equal(t, GetHdr, GetHdr.Unacknowledged())
	assert.Equal(t, "WAIT_DAT", WaitDat.String())
	assert.Equal(t, "0x0999", Command(0x0999).String())
}

func TestDataTypes(t *testing.T) {
	t.Parallel()

	want := []uint32{1, 1, 2, 4, 8, 1, 2, 4, 8, 4, 8}
	for i, ws := range want {
		assert.Equal(t, ws, DataType(i).WordSize(), "type %d", i) //nolint:gosec // small index
	}
	assert.Zero(t, Unknown.WordSize())
	assert.False(t, Unknown.Valid())

	dt, err := ParseDataType("float32")
	require.NoError(t, err)
	assert.Equal(t, Float32, dt)
	_, err = ParseDataType("complex64")
	require.ErrorIs(t, err, ErrInvalidDataType)
}

func TestSampleByteRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		first, last uint32
		channels    uint32
		dt          DataType
		begin, end  uint64
		wantErr     error
	}{
		{"single sample", 0, 0, 4, Float32, 0, 16, nil},
		{"inclusive range", 10, 19, 2, Int16, 40, 80, nil},
		{"large indices do not wrap", 0xFFFFFFFE, 0xFFFFFFFF, 1, Float64, 0xFFFFFFFE * 8, 0x100000000 * 8, nil},
		{"overflow", 0, 0xFFFFFFFF, 0xFFFFFFFF, Float64, 0, 0, ErrInvalidRange},
		{"reversed", 5, 4, 1, Uint8, 0, 0, ErrInvalidRange},
		{"zero channels", 0, 1, 0, Uint8, 0, 0, ErrInvalidRange},
		{"unknown type", 0, 1, 1, Unknown, 0, 0, ErrInvalidDataType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			begin, end, err := SampleByteRange(tt.first, tt.last, tt.channels, tt.dt)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.begin, begin)
			assert.Equal(t, tt.end, end)
		})
	}
}

func TestRangeAndWaitPayloads(t *testing.T) {
	t.Parallel()

	r, err := DecodeRange(EncodeRange(&Range{First: 3, Last: 7}))
	require.NoError(t, err)
	assert.Equal(t, &Range{First: 3, Last: 7}, r)

	r, err = DecodeRange(EncodeRange(nil))
	require.NoError(t, err)
	assert.Nil(t, r)

	_, err = DecodeRange([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrInvalidRange)
	_, err = DecodeRange(EncodeRange(&Range{First: 9, Last: 1}))
	require.ErrorIs(t, err, ErrInvalidRange)

	w, err := DecodeWaitRequest(EncodeWaitRequest(WaitRequest{NSamples: 100, TimeoutMs: 5000}))
	require.NoError(t, err)
	assert.Equal(t, WaitRequest{NSamples: 100, TimeoutMs: 5000}, w)
	_, err = DecodeWaitRequest(make([]byte, 8))
	require.Error(t, err)

	_, err = DecodeCounts([]byte{1, 2})
	require.Error(t, err)
}

func TestWaitSatisfied(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  WaitRequest
		have Counts
		want bool
	}{
		{"poll", WaitRequest{}, Counts{}, true},
		{"samples reached", WaitRequest{NSamples: 100}, Counts{NSamples: 100}, true},
		{"samples short", WaitRequest{NSamples: 100}, Counts{NSamples: 99, NEvents: 50}, false},
		{"events reached", WaitRequest{NEvents: 2}, Counts{NEvents: 3}, true},
		{"either threshold", WaitRequest{NSamples: 100, NEvents: 1}, Counts{NEvents: 1}, true},
		{"neither threshold", WaitRequest{NSamples: 100, NEvents: 5}, Counts{NSamples: 10, NEvents: 4}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.req.Satisfied(tt.have))
		})
	}
}
