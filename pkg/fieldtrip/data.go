package fieldtrip

import (
	"bytes"
	"fmt"
	"math"
)

// DataPrefixSize is the fixed part of an encoded sample block
const DataPrefixSize = 16

// Number is the set of Go types with a wire data type.
type Number interface {
	uint8 | uint16 | uint32 | uint64 | int8 | int16 | int32 | int64 | float32 | float64
}

func dataTypeOf[T Number]() DataType {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return Uint8
	case uint16:
		return Uint16
	case uint32:
		return Uint32
	case uint64:
		return Uint64
	case int8:
		return Int8
	case int16:
		return Int16
	case int32:
		return Int32
	case int64:
		return Int64
	case float32:
		return Float32
	default:
		return Float64
	}
}

func appendValues[T Number](dst []byte, values []T) []byte {
	for _, v := range values {
		switch x := any(v).(type) {
		case uint8:
			dst = append(dst, x)
		case int8:
			dst = append(dst, byte(x))
		case uint16:
			dst = order.AppendUint16(dst, x)
		case int16:
			dst = order.AppendUint16(dst, uint16(x)) //nolint:gosec // bit pattern
		case uint32:
			dst = order.AppendUint32(dst, x)
		case int32:
			dst = order.AppendUint32(dst, uint32(x)) //nolint:gosec // bit pattern
		case uint64:
			dst = order.AppendUint64(dst, x)
		case int64:
			dst = order.AppendUint64(dst, uint64(x)) //nolint:gosec // bit pattern
		case float32:
			dst = order.AppendUint32(dst, math.Float32bits(x))
		case float64:
			dst = order.AppendUint64(dst, math.Float64bits(x))
		}
	}
	return dst
}

func decodeValues[T Number](raw []byte) []T {
	t := dataTypeOf[T]()
	ws := int(t.WordSize())
	out := make([]T, len(raw)/ws)
	for i := range out {
		b := raw[i*ws:]
		var v any
		switch t {
		case Uint8:
			v = b[0]
		case Int8:
			v = int8(b[0]) //nolint:gosec // bit pattern
		case Uint16:
			v = order.Uint16(b)
		case Int16:
			v = int16(order.Uint16(b)) //nolint:gosec // bit pattern
		case Uint32:
			v = order.Uint32(b)
		case Int32:
			v = int32(order.Uint32(b)) //nolint:gosec // bit pattern
		case Uint64:
			v = order.Uint64(b)
		case Int64:
			v = int64(order.Uint64(b)) //nolint:gosec // bit pattern
		case Float32:
			v = math.Float32frombits(order.Uint32(b))
		default:
			v = math.Float64frombits(order.Uint64(b))
		}
		out[i] = v.(T)
	}
	return out
}

// elementFloat64 reads one element of type t from the front of b.
func elementFloat64(t DataType, b []byte) float64 {
	switch t {
	case Char, Uint8:
		return float64(b[0])
	case Int8:
		return float64(int8(b[0])) //nolint:gosec // bit pattern
	case Uint16:
		return float64(order.Uint16(b))
	case Int16:
		return float64(int16(order.Uint16(b))) //nolint:gosec // bit pattern
	case Uint32:
		return float64(order.Uint32(b))
	case Int32:
		return float64(int32(order.Uint32(b))) //nolint:gosec // bit pattern
	case Uint64:
		return float64(order.Uint64(b))
	case Int64:
		return float64(int64(order.Uint64(b))) //nolint:gosec // bit pattern
	case Float32:
		return float64(math.Float32frombits(order.Uint32(b)))
	case Float64:
		return math.Float64frombits(order.Uint64(b))
	}
	return math.NaN()
}

// Matrix is a sample block: Rows samples by Cols channels of Type, stored
// row-major (sample-major, channel-minor) in Raw with no padding.
type Matrix struct {
	Rows uint32
	Cols uint32
	Type DataType
	Raw  []byte
}

// NewMatrix wraps raw as a matrix after checking its size.
func NewMatrix(rows, cols uint32, t DataType, raw []byte) (*Matrix, error) {
	m := &Matrix{Rows: rows, Cols: cols, Type: t, Raw: raw}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// MatrixOf builds a rows×cols matrix from row-major values.
func MatrixOf[T Number](rows, cols uint32, values []T) (*Matrix, error) {
	if uint64(len(values)) != uint64(rows)*uint64(cols) {
		return nil, fmt.Errorf("%w: %d values for a %dx%d matrix", ErrInvalidData, len(values), rows, cols)
	}
	t := dataTypeOf[T]()
	return NewMatrix(rows, cols, t, appendValues(make([]byte, 0, len(values)*int(t.WordSize())), values))
}

// MatrixFromRows builds a matrix from one slice per sample. All rows must
// have the same length.
func MatrixFromRows[T Number](rows [][]T) (*Matrix, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrInvalidData)
	}
	cols := len(rows[0])
	flat := make([]T, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrInvalidData, i, len(row), cols)
		}
		flat = append(flat, row...)
	}
	return MatrixOf(uint32(len(rows)), uint32(cols), flat) //nolint:gosec // caller-sized
}

// MatrixValues decodes m as row-major []T. The matrix type must match T.
func MatrixValues[T Number](m *Matrix) ([]T, error) {
	if want := dataTypeOf[T](); m.Type != want {
		return nil, fmt.Errorf("%w: matrix holds %s, not %s", ErrInvalidDataType, m.Type, want)
	}
	return decodeValues[T](m.Raw), nil
}

// Validate checks that Raw holds exactly Rows×Cols elements of Type.
func (m *Matrix) Validate() error {
	if !m.Type.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidDataType, uint32(m.Type))
	}
	if m.Rows == 0 || m.Cols == 0 {
		return fmt.Errorf("%w: empty %dx%d matrix", ErrInvalidData, m.Rows, m.Cols)
	}
	want := uint64(m.Rows) * uint64(m.Cols) * uint64(m.Type.WordSize())
	if uint64(len(m.Raw)) != want {
		return fmt.Errorf("%w: %d bytes for %dx%d %s, want %d", ErrInvalidData, len(m.Raw), m.Rows, m.Cols, m.Type, want)
	}
	return nil
}

// At returns element (row, col) converted to float64.
func (m *Matrix) At(row, col uint32) float64 {
	ws := m.Type.WordSize()
	return elementFloat64(m.Type, m.Raw[(row*m.Cols+col)*ws:])
}

// Equal reports whether both matrices have the same shape, type and bytes.
func (m *Matrix) Equal(o *Matrix) bool {
	return m.Rows == o.Rows && m.Cols == o.Cols && m.Type == o.Type && bytes.Equal(m.Raw, o.Raw)
}

// EncodeData serializes m as a sample block.
func EncodeData(m *Matrix) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, 0, DataPrefixSize+len(m.Raw))
	buf = order.AppendUint32(buf, m.Cols)
	buf = order.AppendUint32(buf, m.Rows)
	buf = order.AppendUint32(buf, uint32(m.Type))
	buf = order.AppendUint32(buf, uint32(len(m.Raw))) //nolint:gosec // validated
	return append(buf, m.Raw...), nil
}

// DataPrefix is the decoded fixed part of a sample block.
type DataPrefix struct {
	NChannels uint32
	NSamples  uint32
	DataType  DataType
	ByteSize  uint32
}

// DecodeDataPrefix parses the 16-byte sample block prefix.
func DecodeDataPrefix(b []byte) (DataPrefix, error) {
	if len(b) < DataPrefixSize {
		return DataPrefix{}, fmt.Errorf("%w: %d bytes, need %d", ErrInvalidData, len(b), DataPrefixSize)
	}
	return DataPrefix{
		NChannels: order.Uint32(b[0:4]),
		NSamples:  order.Uint32(b[4:8]),
		DataType:  DataType(order.Uint32(b[8:12])),
		ByteSize:  order.Uint32(b[12:16]),
	}, nil
}

// DecodeData parses a sample block. The declared byte size must equal both
// nChannels×nSamples×wordSize and the bytes that follow the prefix.
func DecodeData(b []byte) (*Matrix, error) {
	p, err := DecodeDataPrefix(b)
	if err != nil {
		return nil, err
	}
	if !p.DataType.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDataType, uint32(p.DataType))
	}
	want := uint64(p.NChannels) * uint64(p.NSamples) * uint64(p.DataType.WordSize())
	if uint64(p.ByteSize) != want || uint64(len(b)-DataPrefixSize) != want {
		return nil, fmt.Errorf("%w: declared %d bytes, shape needs %d, received %d", ErrInvalidData, p.ByteSize, want, len(b)-DataPrefixSize)
	}
	return NewMatrix(p.NSamples, p.NChannels, p.DataType, bytes.Clone(b[DataPrefixSize:]))
}
