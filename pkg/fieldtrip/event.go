package fieldtrip

import (
	"bytes"
	"fmt"
	"math"
)

// EventPrefixSize is the fixed part of an encoded event
const EventPrefixSize = 32

// Variant is the tagged union carried by an event's type and value fields:
// either a byte string (Type == Char) or a little-endian array of Type.
type Variant struct {
	Type DataType
	Raw  []byte
}

// StringVariant wraps s as a Char variant.
func StringVariant(s string) Variant {
	return Variant{Type: Char, Raw: []byte(s)}
}

// NumericVariant encodes values as a typed array variant.
func NumericVariant[T Number](values ...T) Variant {
	t := dataTypeOf[T]()
	return Variant{Type: t, Raw: appendValues(make([]byte, 0, len(values)*int(t.WordSize())), values)}
}

// Int32Variant is the encoding used for a scalar integer.
func Int32Variant(v int32) Variant { return NumericVariant(v) }

// Float64Variant is the encoding used for a scalar float.
func Float64Variant(v float64) Variant { return NumericVariant(v) }

// IsString reports whether v holds a byte string.
func (v Variant) IsString() bool { return v.Type == Char }

// String returns the byte string, or a formatted rendering of a numeric array.
func (v Variant) String() string {
	if v.IsString() {
		return string(v.Raw)
	}
	return fmt.Sprintf("%s%v", v.Type, v.Float64s())
}

// Numel is the element count of the variant.
func (v Variant) Numel() uint32 {
	ws := v.Type.WordSize()
	if ws == 0 {
		return 0
	}
	return uint32(len(v.Raw)) / ws //nolint:gosec // bounded by payload size
}

// Float64s converts every element to float64. String variants yield their bytes.
func (v Variant) Float64s() []float64 {
	n := v.Numel()
	out := make([]float64, n)
	ws := v.Type.WordSize()
	for i := range n {
		out[i] = elementFloat64(v.Type, v.Raw[i*ws:])
	}
	return out
}

// VariantValues decodes v as a []T. The variant type must match T.
func VariantValues[T Number](v Variant) ([]T, error) {
	if want := dataTypeOf[T](); v.Type != want {
		return nil, fmt.Errorf("%w: variant holds %s, not %s", ErrInvalidDataType, v.Type, want)
	}
	return decodeValues[T](v.Raw), nil
}

func (v Variant) equal(o Variant) bool {
	return v.Type == o.Type && bytes.Equal(v.Raw, o.Raw)
}

// Event is a discrete marker attached to a sample position.
type Event struct {
	Type     Variant
	Value    Variant
	Sample   int32
	Offset   int32
	Duration int32
}

// Equal compares two events field by field.
func (e Event) Equal(o Event) bool {
	return e.Type.equal(o.Type) && e.Value.equal(o.Value) &&
		e.Sample == o.Sample && e.Offset == o.Offset && e.Duration == o.Duration
}

// EncodeEvent appends the encoding of e to dst.
func EncodeEvent(dst []byte, e Event) ([]byte, error) {
	for _, part := range []Variant{e.Type, e.Value} {
		if !part.Type.Valid() {
			return dst, fmt.Errorf("%w: tag %d", ErrInvalidEvent, uint32(part.Type))
		}
		if uint32(len(part.Raw))%part.Type.WordSize() != 0 { //nolint:gosec // bounded by payload size
			return dst, fmt.Errorf("%w: %d bytes is not a whole number of %s", ErrInvalidEvent, len(part.Raw), part.Type)
		}
	}

	payload := len(e.Type.Raw) + len(e.Value.Raw)
	if uint64(payload) > math.MaxUint32 {
		return dst, fmt.Errorf("%w: payload too large", ErrInvalidEvent)
	}

	dst = order.AppendUint32(dst, uint32(e.Type.Type))
	dst = order.AppendUint32(dst, e.Type.Numel())
	dst = order.AppendUint32(dst, uint32(e.Value.Type))
	dst = order.AppendUint32(dst, e.Value.Numel())
	dst = order.AppendUint32(dst, uint32(e.Sample))   //nolint:gosec // i32 on the wire
	dst = order.AppendUint32(dst, uint32(e.Offset))   //nolint:gosec // i32 on the wire
	dst = order.AppendUint32(dst, uint32(e.Duration)) //nolint:gosec // i32 on the wire
	dst = order.AppendUint32(dst, uint32(payload))
	dst = append(dst, e.Type.Raw...)
	dst = append(dst, e.Value.Raw...)
	return dst, nil
}

// DecodeEvent parses one event from the front of b and returns the number of
// bytes consumed. Fewer than EventPrefixSize bytes yields 0 and no error,
// which marks the end of a concatenated list. An event whose declared payload
// overruns b, whose type and value overrun the declared payload, or that
// carries an unknown tag fails with ErrInvalidEvent.
func DecodeEvent(b []byte) (Event, int, error) {
	if len(b) < EventPrefixSize {
		return Event{}, 0, nil
	}

	typeTag := DataType(order.Uint32(b[0:4]))
	typeNumel := uint64(order.Uint32(b[4:8]))
	valueTag := DataType(order.Uint32(b[8:12]))
	valueNumel := uint64(order.Uint32(b[12:16]))
	e := Event{
		Sample:   int32(order.Uint32(b[16:20])), //nolint:gosec // i32 on the wire
		Offset:   int32(order.Uint32(b[20:24])), //nolint:gosec // i32 on the wire
		Duration: int32(order.Uint32(b[24:28])), //nolint:gosec // i32 on the wire
	}
	payload := uint64(order.Uint32(b[28:32]))

	if !typeTag.Valid() || !valueTag.Valid() {
		return Event{}, 0, fmt.Errorf("%w: unknown tag (type %d, value %d)", ErrInvalidEvent, uint32(typeTag), uint32(valueTag))
	}
	st := typeNumel * uint64(typeTag.WordSize())
	sv := valueNumel * uint64(valueTag.WordSize())
	if payload+EventPrefixSize > uint64(len(b)) || st+sv > payload {
		return Event{}, 0, fmt.Errorf("%w: %d payload bytes (type %d, value %d) do not fit in %d bytes",
			ErrInvalidEvent, payload, st, sv, len(b)-EventPrefixSize)
	}

	body := b[EventPrefixSize:]
	e.Type = Variant{Type: typeTag, Raw: bytes.Clone(body[:st])}
	e.Value = Variant{Type: valueTag, Raw: bytes.Clone(body[st : st+sv])}
	return e, EventPrefixSize + int(payload), nil
}

// EncodeEvents concatenates the encodings of events.
func EncodeEvents(events []Event) ([]byte, error) {
	var buf []byte
	for i := range events {
		var err error
		if buf, err = EncodeEvent(buf, events[i]); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
	}
	return buf, nil
}

// DecodeEvents parses a concatenated event list. Trailing bytes shorter than
// an event prefix are ignored.
func DecodeEvents(b []byte) ([]Event, error) {
	var events []Event
	for len(b) > 0 {
		e, n, err := DecodeEvent(b)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", len(events), err)
		}
		if n == 0 {
			break
		}
		events = append(events, e)
		b = b[n:]
	}
	return events, nil
}
