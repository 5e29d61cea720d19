package fieldtrip

import (
	"bytes"
	"fmt"
	"maps"
	"math"
	"slices"
)

// HeaderPrefixSize is the fixed part of an encoded header
const HeaderPrefixSize = 24

const chunkRecordPrefix = 8

// Header describes one buffer generation.
type Header struct {
	NChannels uint32
	NSamples  uint32
	NEvents   uint32
	FSample   float32
	DataType  DataType

	// Chunks holds metadata blobs keyed by chunk type. Only the channel names
	// chunk is interpreted; it is decoded into Labels.
	Chunks map[ChunkType][]byte

	// Labels is nil unless the channel names chunk carries at least
	// NChannels names.
	Labels []string
}

// Validate checks the fields a server requires before accepting a header.
func (h *Header) Validate() error {
	switch {
	case h.NChannels == 0:
		return fmt.Errorf("%w: zero channels", ErrInvalidHeader)
	case !(h.FSample > 0) || math.IsInf(float64(h.FSample), 0):
		return fmt.Errorf("%w: sample rate %v", ErrInvalidHeader, h.FSample)
	case !h.DataType.Valid():
		return fmt.Errorf("%w: data type %d", ErrInvalidHeader, uint32(h.DataType))
	}
	return nil
}

// EncodeHeader serializes h. Chunks are written in ascending type order.
// Labels are not encoded on their own; pack them with PackLabels into the
// channel names chunk.
func EncodeHeader(h *Header) []byte {
	chunkBytes := 0
	for _, data := range h.Chunks {
		chunkBytes += chunkRecordPrefix + len(data)
	}

	buf := make([]byte, 0, HeaderPrefixSize+chunkBytes)
	buf = order.AppendUint32(buf, h.NChannels)
	buf = order.AppendUint32(buf, h.NSamples)
	buf = order.AppendUint32(buf, h.NEvents)
	buf = order.AppendUint32(buf, math.Float32bits(h.FSample))
	buf = order.AppendUint32(buf, uint32(h.DataType))
	buf = order.AppendUint32(buf, uint32(chunkBytes)) //nolint:gosec // bounded by maxpayload

	for _, ct := range slices.Sorted(maps.Keys(h.Chunks)) {
		data := h.Chunks[ct]
		buf = order.AppendUint32(buf, uint32(ct))
		buf = order.AppendUint32(buf, uint32(len(data))) //nolint:gosec // bounded by maxpayload
		buf = append(buf, data...)
	}
	return buf
}

// DecodeHeader parses an encoded header. Chunk records are scanned until the
// declared chunk size is consumed or the payload ends; a truncated or
// overrunning record stops the scan without error. The returned chunk slices
// are copies.
func DecodeHeader(b []byte) (*Header, error) {
	if len(b) < HeaderPrefixSize {
		return nil, fmt.Errorf("%w: %d bytes, need %d", ErrInvalidHeader, len(b), HeaderPrefixSize)
	}

	h := &Header{
		NChannels: order.Uint32(b[0:4]),
		NSamples:  order.Uint32(b[4:8]),
		NEvents:   order.Uint32(b[8:12]),
		FSample:   math.Float32frombits(order.Uint32(b[12:16])),
		DataType:  DataType(order.Uint32(b[16:20])),
	}
	chunkSize := uint64(order.Uint32(b[20:24]))

	end := min(uint64(HeaderPrefixSize)+chunkSize, uint64(len(b)))
	pos := uint64(HeaderPrefixSize)
	for pos+chunkRecordPrefix <= end {
		ct := ChunkType(order.Uint32(b[pos : pos+4]))
		size := uint64(order.Uint32(b[pos+4 : pos+8]))
		pos += chunkRecordPrefix
		if pos+size > end {
			break
		}
		if h.Chunks == nil {
			h.Chunks = make(map[ChunkType][]byte)
		}
		h.Chunks[ct] = bytes.Clone(b[pos : pos+size])
		pos += size
	}

	if names, ok := h.Chunks[ChunkChannelNames]; ok {
		h.Labels = UnpackLabels(names, h.NChannels)
	}
	return h, nil
}
