package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Type identifies a packet on the wire.
type Type uint16

// Packet Types
const (
	TypeInit     Type = 1 // Handshake opener, length field carries the chunk count
	TypeAgree    Type = 2 // Server accepts the declared count
	TypeRequest  Type = 3 // Chunk to reverse
	TypeResponse Type = 4 // Reversed chunk
)

const (
	// HeaderSize is the fixed header: 2 bytes type + 4 bytes length, big endian.
	HeaderSize = 6

	// MaxPayloadSize caps a single Request/Response payload.
	MaxPayloadSize = 1 << 20
)

func (t Type) String() string {
	switch t {
	case TypeInit:
		return "Init"
	case TypeAgree:
		return "Agree"
	case TypeRequest:
		return "Request"
	case TypeResponse:
		return "Response"
	default:
		return fmt.Sprintf("Unknown(%d)", uint16(t))
	}
}

// Valid reports whether t is one of the four known packet types.
func (t Type) Valid() bool {
	return t >= TypeInit && t <= TypeResponse
}

// Header represents the fixed-size header for every packet.
// For Init packets Length is the declared chunk count, not a byte length.
type Header struct {
	Type   Type   // 2 bytes
	Length uint32 // 4 bytes
}

// DeclaredCount returns the chunk count carried by an Init header.
func (h Header) DeclaredCount() uint32 {
	return h.Length
}

// AppendHeader appends the binary representation of the header to b.
func AppendHeader(b []byte, pType Type, length uint32) []byte {
	b = binary.BigEndian.AppendUint16(b, uint16(pType))
	return binary.BigEndian.AppendUint32(b, length)
}

// MarshalHeader returns the 6 header bytes.
func MarshalHeader(pType Type, length uint32) []byte {
	return AppendHeader(make([]byte, 0, HeaderSize), pType, length)
}

// UnmarshalHeader decodes 6 header bytes.
func UnmarshalHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("short header: %d bytes", len(b))
	}
	return Header{
		Type:   Type(binary.BigEndian.Uint16(b[0:2])),
		Length: binary.BigEndian.Uint32(b[2:6]),
	}, nil
}

// EncodeHeader writes the binary representation of the header to the writer
func EncodeHeader(w io.Writer, pType Type, length uint32) error {
	_, err := w.Write(MarshalHeader(pType, length))
	return err
}

// WritePacket writes header and payload with a single Write call.
func WritePacket(w io.Writer, pType Type, payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("payload of %d bytes exceeds limit %d", len(payload), MaxPayloadSize)
	}
	buf := AppendHeader(make([]byte, 0, HeaderSize+len(payload)), pType, uint32(len(payload)))
	buf = append(buf, payload...)
	_, err := w.Write(buf)
	return err
}

// WriteInit sends the handshake opener. The declared chunk count travels in the
// length field and no payload follows.
func WriteInit(w io.Writer, declaredCount uint32) error {
	return EncodeHeader(w, TypeInit, declaredCount)
}

// WriteAgree sends the empty Agree packet.
func WriteAgree(w io.Writer) error {
	return EncodeHeader(w, TypeAgree, 0)
}

// ReadExact reads exactly n bytes. A stream that ends before n bytes have been
// collected fails with ErrConnectionClosed.
func ReadExact(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	got := 0
	for got < n {
		m, err := r.Read(buf[got:])
		got += m
		if got == n {
			break
		}
		if err != nil {
			if err == io.EOF {
				return nil, closedError(got, n)
			}
			return nil, classify(err)
		}
		if m == 0 {
			// A reader that makes no progress without an error is treated as closed.
			return nil, closedError(got, n)
		}
	}
	return buf, nil
}

func closedError(got, want int) error {
	return fmt.Errorf("%w: got %d of %d bytes", ErrConnectionClosed, got, want)
}

// ReadHeader reads and decodes one header.
func ReadHeader(r io.Reader) (Header, error) {
	b, err := ReadExact(r, HeaderSize)
	if err != nil {
		return Header{}, err
	}
	return UnmarshalHeader(b)
}

// Expect constrains ReadPacket. Zero values mean "any".
type Expect struct {
	Type   Type
	Length *uint32
}

// Length is a helper for building an Expect with a fixed length.
func Length(n uint32) *uint32 {
	return &n
}

// ReadPacket reads one packet, validates it against exp and returns the payload.
// Type and length are checked before the payload is read.
func ReadPacket(r io.Reader, exp Expect) ([]byte, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	return ReadPayload(r, h, exp)
}

// ReadPayload validates an already decoded header and reads its payload.
func ReadPayload(r io.Reader, h Header, exp Expect) ([]byte, error) {
	if !h.Type.Valid() {
		return nil, &ViolationError{Field: "type", Expected: uint32(exp.Type), Actual: uint32(h.Type)}
	}
	if exp.Type != 0 && h.Type != exp.Type {
		return nil, &ViolationError{Field: "type", Expected: uint32(exp.Type), Actual: uint32(h.Type)}
	}
	if exp.Length != nil && h.Length != *exp.Length {
		return nil, &ViolationError{Field: "length", Expected: *exp.Length, Actual: h.Length}
	}
	if h.Length > MaxPayloadSize {
		return nil, &ViolationError{Field: "length", Expected: MaxPayloadSize, Actual: h.Length}
	}
	if h.Length == 0 {
		return []byte{}, nil
	}
	return ReadExact(r, int(h.Length))
}
