package fieldtrip

import (
	"fmt"
	"math"
)

// DataType identifies the element type of samples and event payloads.
type DataType uint32

const (
	Char    DataType = 0
	Uint8   DataType = 1
	Uint16  DataType = 2
	Uint32  DataType = 3
	Uint64  DataType = 4
	Int8    DataType = 5
	Int16   DataType = 6
	Int32   DataType = 7
	Int64   DataType = 8
	Float32 DataType = 9
	Float64 DataType = 10

	// Unknown must never be declared in a successful transaction
	Unknown DataType = 0xFFFFFFFF
)

var wordSizes = [...]uint32{1, 1, 2, 4, 8, 1, 2, 4, 8, 4, 8}

var dataTypeNames = [...]string{"char", "uint8", "uint16", "uint32", "uint64", "int8", "int16", "int32", "int64", "float32", "float64"}

// Valid reports whether t is one of the eleven wire types.
func (t DataType) Valid() bool {
	return t <= Float64
}

// WordSize returns the element size in bytes, or 0 for invalid types.
func (t DataType) WordSize() uint32 {
	if !t.Valid() {
		return 0
	}
	return wordSizes[t]
}

func (t DataType) String() string {
	if t.Valid() {
		return dataTypeNames[t]
	}
	if t == Unknown {
		return "unknown"
	}
	return fmt.Sprintf("datatype(%d)", uint32(t))
}

// ParseDataType resolves a type name such as "float32".
func ParseDataType(name string) (DataType, error) {
	for i, n := range dataTypeNames {
		if n == name {
			return DataType(i), nil //nolint:gosec // bounded by table length
		}
	}
	return Unknown, fmt.Errorf("%w: %q", ErrInvalidDataType, name)
}

// ChunkType identifies a header metadata chunk.
type ChunkType uint32

const (
	ChunkUnspecified     ChunkType = 0
	ChunkChannelNames    ChunkType = 1
	ChunkChannelFlags    ChunkType = 2
	ChunkResolutions     ChunkType = 3
	ChunkASCIIKeyval     ChunkType = 4
	ChunkNifti1          ChunkType = 5
	ChunkSiemensAP       ChunkType = 6
	ChunkCTFRes4         ChunkType = 7
	ChunkNeuromagFIF     ChunkType = 8
	ChunkNeuromagIsotrak ChunkType = 9
	ChunkNeuromagHPI     ChunkType = 10
)

// SampleByteRange converts an inclusive sample range into the half-open byte
// window [begin, end) it occupies in a sample-major stream of nChannels
// channels of type t.
func SampleByteRange(first, last, nChannels uint32, t DataType) (begin, end uint64, err error) {
	if !t.Valid() {
		return 0, 0, fmt.Errorf("%w: %d", ErrInvalidDataType, uint32(t))
	}
	if last < first {
		return 0, 0, fmt.Errorf("%w: last sample %d before first %d", ErrInvalidRange, last, first)
	}
	frame, err := FrameBytes(nChannels, t)
	if err != nil {
		return 0, 0, err
	}
	// first, last and frame are all below 2^32, so last+1 times frame fits in
	// 64 bits unless frame is at the very top of its range.
	if uint64(last)+1 > math.MaxUint64/frame {
		return 0, 0, fmt.Errorf("%w: sample range overflows", ErrInvalidRange)
	}
	return uint64(first) * frame, (uint64(last) + 1) * frame, nil
}

// FrameBytes is the size of one sample across all channels.
func FrameBytes(nChannels uint32, t DataType) (uint64, error) {
	if !t.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidDataType, uint32(t))
	}
	if nChannels == 0 {
		return 0, fmt.Errorf("%w: zero channels", ErrInvalidRange)
	}
	return uint64(nChannels) * uint64(t.WordSize()), nil
}
