package fieldtrip

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	t.Parallel()

	names, err := PackLabels([]string{"Fp1", "Fp2", "Cz"}, 3)
	require.NoError(t, err)

	in := &Header{
		NChannels: 3,
		NSamples:  12,
		NEvents:   2,
		FSample:   512,
		DataType:  Float32,
		Chunks: map[ChunkType][]byte{
			ChunkChannelNames: names,
			ChunkASCIIKeyval:  []byte("subject\x00s01\x00\x00"),
		},
	}

	out, err := DecodeHeader(EncodeHeader(in))
	require.NoError(t, err)
	assert.Equal(t, in.NChannels, out.NChannels)
	assert.Equal(t, in.NSamples, out.NSamples)
	assert.Equal(t, in.NEvents, out.NEvents)
	assert.InDelta(t, in.FSample, out.FSample, 0)
	assert.Equal(t, in.DataType, out.DataType)
	assert.Equal(t, in.Chunks, out.Chunks)
	assert.Equal(t, []string{"Fp1", "Fp2", "Cz"}, out.Labels)
}

func TestDecodeHeaderChunkScanning(t *testing.T) {
	t.Parallel()

	base := EncodeHeader(&Header{NChannels: 2, FSample: 100, DataType: Int16})

	withChunks := func(declared uint32, records ...[]byte) []byte {
		b := append([]byte(nil), base...)
		order.PutUint32(b[20:24], declared)
		for _, r := range records {
			b = append(b, r...)
		}
		return b
	}
	record := func(ct ChunkType, size uint32, data []byte) []byte {
		r := order.AppendUint32(nil, uint32(ct))
		r = order.AppendUint32(r, size)
		return append(r, data...)
	}

	tests := []struct {
		name   string
		input  []byte
		chunks int
		labels []string
	}{
		{
			name:   "no chunks",
			input:  base,
			chunks: 0,
		},
		{
			name:   "overrunning record stops scan",
			input:  withChunks(100, record(ChunkASCIIKeyval, 4, []byte("abcd")), record(ChunkResolutions, 64, []byte("xy"))),
			chunks: 1,
		},
		{
			name:   "declared size bounds scan",
			input:  withChunks(12, record(ChunkASCIIKeyval, 4, []byte("abcd")), record(ChunkResolutions, 2, []byte("xy"))),
			chunks: 1,
		},
		{
			name:   "truncated record prefix ignored",
			input:  withChunks(20, record(ChunkChannelFlags, 2, []byte("ok")), []byte{1, 0, 0}),
			chunks: 1,
		},
		{
			name:   "too few labels yields none",
			input:  withChunks(12, record(ChunkChannelNames, 4, []byte("only"))),
			chunks: 1,
		},
		{
			name:   "surplus labels truncated",
			input:  withChunks(17, record(ChunkChannelNames, 9, []byte("a\x00b\x00c\x00d\x00\x00"))),
			chunks: 1,
			labels: []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, err := DecodeHeader(tt.input)
			require.NoError(t, err)
			assert.Len(t, h.Chunks, tt.chunks)
			assert.Equal(t, tt.labels, h.Labels)
		})
	}

	_, err := DecodeHeader(base[:23])
	require.ErrorIs(t, err, ErrInvalidHeader)
}

func TestHeaderValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		h    Header
		ok   bool
	}{
		{"valid", Header{NChannels: 1, FSample: 1, DataType: Char}, true},
		{"zero channels", Header{FSample: 1, DataType: Float32}, false},
		{"zero rate", Header{NChannels: 1, DataType: Float32}, false},
		{"nan rate", Header{NChannels: 1, FSample: float32(math.NaN()), DataType: Float32}, false},
		{"unknown type", Header{NChannels: 1, FSample: 1, DataType: Unknown}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.h.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidHeader)
			}
		})
	}
}

func TestPackLabels(t *testing.T) {
	t.Parallel()

	b, err := PackLabels([]string{"Cé", "µV", "O1"}, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte("Ce\x00V\x00O1\x00"), b)

	_, err = PackLabels([]string{"a"}, 2)
	require.ErrorIs(t, err, ErrLabelCount)

	_, err = PackLabels([]string{"a", "b", "c"}, 2)
	require.ErrorIs(t, err, ErrLabelCount, "surplus labels are not truncated")
}

func TestEventRoundTrip(t *testing.T) {
	t.Parallel()

	events := []Event{
		{Type: StringVariant("trigger"), Value: StringVariant("start"), Sample: 10, Offset: 0, Duration: 1},
		{Type: StringVariant("response"), Value: Int32Variant(-7), Sample: 250, Offset: -3, Duration: 0},
		{Type: NumericVariant[uint16](1, 2, 3), Value: Float64Variant(0.25), Sample: 1000, Offset: 5, Duration: 100},
	}

	b, err := EncodeEvents(events)
	require.NoError(t, err)

	out, err := DecodeEvents(b)
	require.NoError(t, err)
	require.Len(t, out, len(events))
	for i := range events {
		assert.True(t, events[i].Equal(out[i]), "event %d: %+v != %+v", i, events[i], out[i])
	}

	assert.Equal(t, "trigger", out[0].Type.String())
	vals, err := VariantValues[int32](out[1].Value)
	require.NoError(t, err)
	assert.Equal(t, []int32{-7}, vals)
	assert.Equal(t, []float64{1, 2, 3}, out[2].Type.Float64s())
	_, err = VariantValues[float32](out[2].Value)
	require.ErrorIs(t, err, ErrInvalidDataType)
}

func TestDecodeEventBoundaries(t *testing.T) {
	t.Parallel()

	valid, err := EncodeEvent(nil, Event{Type: StringVariant("abc"), Value: Int32Variant(1)})
	require.NoError(t, err)

	t.Run("short buffer ends scan", func(t *testing.T) {
		t.Parallel()
		_, n, err := DecodeEvent(valid[:31])
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("exact consumption", func(t *testing.T) {
		t.Parallel()
		_, n, err := DecodeEvent(valid)
		require.NoError(t, err)
		assert.Equal(t, len(valid), n)
	})

	// The declared payload size must fit in the buffer the event came from.
	t.Run("payload overruns buffer", func(t *testing.T) {
		t.Parallel()
		_, _, err := DecodeEvent(valid[:len(valid)-1])
		require.ErrorIs(t, err, ErrInvalidEvent)
	})

	// Type and value bytes must fit inside the declared payload, even when
	// the buffer itself would have room for them.
	t.Run("type and value overrun declared payload", func(t *testing.T) {
		t.Parallel()
		b := append([]byte(nil), valid...)
		order.PutUint32(b[28:32], 3)
		b = append(b, 0, 0, 0, 0)
		_, _, err := DecodeEvent(b)
		require.ErrorIs(t, err, ErrInvalidEvent)
	})

	t.Run("unknown tag", func(t *testing.T) {
		t.Parallel()
		b := append([]byte(nil), valid...)
		order.PutUint32(b[0:4], 42)
		_, _, err := DecodeEvent(b)
		require.ErrorIs(t, err, ErrInvalidEvent)
	})

	t.Run("padding after payload is skipped", func(t *testing.T) {
		t.Parallel()
		b := append([]byte(nil), valid...)
		order.PutUint32(b[28:32], order.Uint32(b[28:32])+4)
		b = append(b, 0xEE, 0xEE, 0xEE, 0xEE)
		second, err := EncodeEvent(nil, Event{Type: StringVariant("x"), Value: StringVariant("y"), Sample: 9})
		require.NoError(t, err)
		events, err := DecodeEvents(append(b, second...))
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, int32(9), events[1].Sample)
	})

	t.Run("list with a bad event fails", func(t *testing.T) {
		t.Parallel()
		b := append(append([]byte(nil), valid...), valid[:len(valid)-1]...)
		_, err := DecodeEvents(b)
		require.ErrorIs(t, err, ErrInvalidEvent)
	})
}

func TestEncodeEventRejectsBadVariants(t *testing.T) {
	t.Parallel()

	_, err := EncodeEvent(nil, Event{Type: Variant{Type: Unknown}, Value: StringVariant("v")})
	require.ErrorIs(t, err, ErrInvalidEvent)

	_, err = EncodeEvent(nil, Event{Type: StringVariant("t"), Value: Variant{Type: Int32, Raw: []byte{1, 2, 3}}})
	require.ErrorIs(t, err, ErrInvalidEvent)
}

func TestDataRoundTrip(t *testing.T) {
	t.Parallel()

	values := make([]float32, 10*4)
	for i := range values {
		values[i] = float32(i) * 0.5
	}
	in, err := MatrixOf[float32](10, 4, values)
	require.NoError(t, err)

	b, err := EncodeData(in)
	require.NoError(t, err)
	require.Len(t, b, DataPrefixSize+10*4*4)

	out, err := DecodeData(b)
	require.NoError(t, err)
	assert.True(t, in.Equal(out))
	assert.InDelta(t, 3.5, out.At(1, 3), 0)

	got, err := MatrixValues[float32](out)
	require.NoError(t, err)
	assert.Equal(t, values, got)
}

func TestDecodeDataRejectsInconsistentSizes(t *testing.T) {
	t.Parallel()

	m, err := MatrixFromRows([][]int16{{1, 2}, {3, 4}, {5, 6}})
	require.NoError(t, err)
	good, err := EncodeData(m)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"short prefix", func(b []byte) []byte { return b[:15] }},
		{"byte size disagrees with shape", func(b []byte) []byte { order.PutUint32(b[12:16], 10); return b }},
		{"trailing bytes", func(b []byte) []byte { return append(b, 0, 0) }},
		{"missing bytes", func(b []byte) []byte { return b[:len(b)-2] }},
		{"unknown type", func(b []byte) []byte { order.PutUint32(b[8:12], 77); return b }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := DecodeData(tt.mutate(append([]byte(nil), good...)))
			require.Error(t, err)
		})
	}

	_, err = MatrixFromRows([][]int16{{1, 2}, {3}})
	require.ErrorIs(t, err, ErrInvalidData)
}
