// Package fieldtrip implements the FieldTrip buffer V1 wire protocol: message
// framing, command and status codes, and the header, event and sample block
// codecs shared by the client and the server.
//
// Every multi-byte integer and float on the wire is little-endian. A message is
// an 8-byte header (version, command, payload size) followed by exactly
// payload-size bytes.
package fieldtrip

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/tphakala/ftbuffer/internal/errors"
)

// Version is the only protocol version spoken. There is no negotiation.
const Version uint16 = 1

// DefaultPort is the conventional buffer TCP port
const DefaultPort = 1972

// MessageHeaderSize is the size of the fixed message prefix
const MessageHeaderSize = 8

// DefaultMaxPayload is the largest payload either side reads unless told
// otherwise.
const DefaultMaxPayload = 64 << 20

var order = binary.LittleEndian

// Sentinel errors for framing
var (
	ErrVersionMismatch = errors.NewStd("protocol version mismatch")
	ErrShortMessage    = errors.NewStd("short message")
	ErrPayloadTooLarge = errors.NewStd("payload exceeds limit")
)

// Command is a request command or a response status code.
type Command uint16

// Request commands and their completion codes
const (
	PutHdr Command = 0x0101
	PutDat Command = 0x0102
	PutEvt Command = 0x0103
	PutOK  Command = 0x0104
	PutErr Command = 0x0105

	GetHdr Command = 0x0201
	GetDat Command = 0x0202
	GetEvt Command = 0x0203
	GetOK  Command = 0x0204
	GetErr Command = 0x0205

	FlushHdr Command = 0x0301
	FlushDat Command = 0x0302
	FlushEvt Command = 0x0303
	FlushOK  Command = 0x0304
	FlushErr Command = 0x0305

	WaitDat Command = 0x0402
	WaitOK  Command = 0x0404
	WaitErr Command = 0x0405

	PutHdrNoResponse Command = 0x0501
	PutDatNoResponse Command = 0x0502
	PutEvtNoResponse Command = 0x0503
)

var commandNames = map[Command]string{
	PutHdr: "PUT_HDR", PutDat: "PUT_DAT", PutEvt: "PUT_EVT", PutOK: "PUT_OK", PutErr: "PUT_ERR",
	GetHdr: "GET_HDR", GetDat: "GET_DAT", GetEvt: "GET_EVT", GetOK: "GET_OK", GetErr: "GET_ERR",
	FlushHdr: "FLUSH_HDR", FlushDat: "FLUSH_DAT", FlushEvt: "FLUSH_EVT", FlushOK: "FLUSH_OK", FlushErr: "FLUSH_ERR",
	WaitDat: "WAIT_DAT", WaitOK: "WAIT_OK", WaitErr: "WAIT_ERR",
	PutHdrNoResponse: "PUT_HDR_NORESPONSE", PutDatNoResponse: "PUT_DAT_NORESPONSE", PutEvtNoResponse: "PUT_EVT_NORESPONSE",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("0x%04x", uint16(c))
}

// NoResponse reports whether c is a fire-and-forget PUT variant.
func (c Command) NoResponse() bool {
	return c == PutHdrNoResponse || c == PutDatNoResponse || c == PutEvtNoResponse
}

// Acknowledged maps a NORESPONSE variant to its acknowledged PUT command.
// Other commands are returned unchanged.
func (c Command) Acknowledged() Command {
	if c.NoResponse() {
		return c - 0x0400
	}
	return c
}

// Unacknowledged maps a PUT command to its NORESPONSE variant.
// Other commands are returned unchanged.
func (c Command) Unacknowledged() Command {
	switch c {
	case PutHdr, PutDat, PutEvt:
		return c + 0x0400
	}
	return c
}

// MessageHeader is the fixed prefix of every message.
type MessageHeader struct {
	Version     uint16
	Command     Command
	PayloadSize uint32
}

// EncodeMessageHeader appends the 8-byte encoding of h to dst.
func EncodeMessageHeader(dst []byte, h MessageHeader) []byte {
	dst = order.AppendUint16(dst, h.Version)
	dst = order.AppendUint16(dst, uint16(h.Command))
	return order.AppendUint32(dst, h.PayloadSize)
}

// DecodeMessageHeader parses the 8-byte prefix in b. A version other than
// Version yields ErrVersionMismatch along with the decoded header.
func DecodeMessageHeader(b []byte) (MessageHeader, error) {
	if len(b) < MessageHeaderSize {
		return MessageHeader{}, fmt.Errorf("%w: message header needs %d bytes, got %d", ErrShortMessage, MessageHeaderSize, len(b))
	}
	h := MessageHeader{
		Version:     order.Uint16(b[0:2]),
		Command:     Command(order.Uint16(b[2:4])),
		PayloadSize: order.Uint32(b[4:8]),
	}
	if h.Version != Version {
		return h, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, h.Version, Version)
	}
	return h, nil
}

// Message is one framed request or response.
type Message struct {
	Command Command
	Payload []byte
}

// AppendMessage appends the full framed encoding of cmd and payload to dst.
func AppendMessage(dst []byte, cmd Command, payload []byte) []byte {
	dst = EncodeMessageHeader(dst, MessageHeader{
		Version:     Version,
		Command:     cmd,
		PayloadSize: uint32(len(payload)), //nolint:gosec // payload sizes are bounded by maxpayload
	})
	return append(dst, payload...)
}

// WriteMessage writes one framed message with a single Write call.
func WriteMessage(w io.Writer, cmd Command, payload []byte) error {
	buf := AppendMessage(make([]byte, 0, MessageHeaderSize+len(payload)), cmd, payload)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write %s: %w", cmd, err)
	}
	return nil
}

// ReadMessage reads one framed message from r. Short reads are retried until
// the declared length arrives or the stream ends. maxPayload of zero disables
// the payload size guard.
func ReadMessage(r io.Reader, maxPayload uint32) (Message, error) {
	var prefix [MessageHeaderSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return Message{}, fmt.Errorf("%w: truncated message header", ErrShortMessage)
		}
		return Message{}, err
	}

	h, err := DecodeMessageHeader(prefix[:])
	if err != nil {
		return Message{Command: h.Command}, err
	}
	if maxPayload > 0 && h.PayloadSize > maxPayload {
		return Message{Command: h.Command}, fmt.Errorf("%w: %d > %d bytes", ErrPayloadTooLarge, h.PayloadSize, maxPayload)
	}

	msg := Message{Command: h.Command}
	if h.PayloadSize == 0 {
		return msg, nil
	}
	msg.Payload = make([]byte, h.PayloadSize)
	if _, err := io.ReadFull(r, msg.Payload); err != nil {
		return Message{Command: h.Command}, fmt.Errorf("%w: %s payload: %w", ErrShortMessage, h.Command, err)
	}
	return msg, nil
}
