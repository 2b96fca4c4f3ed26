package netlink

import (
	"fmt"
	"strings"

	"github.com/josharian/native"
)

// HeaderLen is the size of struct nlmsghdr on the wire.
const HeaderLen = 16

// Kind is a message's type. Values below NLMSG_MIN_TYPE are reserved by
// netlink itself; the rest are scoped to each protocol family.
type Kind uint16

func (k Kind) String() string {
	if name, ok := kindName[k]; ok {
		return name
	}
	return fmt.Sprintf("%#x", uint16(k))
}

// Flags is the bitset carried on a message's header.
type Flags uint16

func (f Flags) String() string {
	names := []string{}
	rest := f
	for _, fn := range flagName {
		if f&fn.flag != 0 {
			names = append(names, fn.name)
			rest &^= fn.flag
		}
	}
	if rest != 0 || len(names) == 0 {
		names = append(names, fmt.Sprintf("%#x", uint16(rest)))
	}
	return strings.Join(names, "|")
}

// Header is the Go counterpart of struct nlmsghdr. Integers are laid out in
// the host's native byte order.
type Header struct {
	// Length of the message, header included and trailing padding excluded.
	Length   uint32
	Kind     Kind
	Flags    Flags
	Sequence uint32
	PortID   uint32
}

// MarshalBinary writes the header's fields as they are.
func (h Header) MarshalBinary() ([]byte, error) {
	b := make([]byte, HeaderLen)
	h.put(b)
	return b, nil
}

func (h Header) put(b []byte) {
	native.Endian.PutUint32(b[0:4], h.Length)
	native.Endian.PutUint16(b[4:6], uint16(h.Kind))
	native.Endian.PutUint16(b[6:8], uint16(h.Flags))
	native.Endian.PutUint32(b[8:12], h.Sequence)
	native.Endian.PutUint32(b[12:16], h.PortID)
}

// parseHeader expects at least HeaderLen bytes.
func parseHeader(b []byte) Header {
	return Header{
		Length:   native.Endian.Uint32(b[0:4]),
		Kind:     Kind(native.Endian.Uint16(b[4:6])),
		Flags:    Flags(native.Endian.Uint16(b[6:8])),
		Sequence: native.Endian.Uint32(b[8:12]),
		PortID:   native.Endian.Uint32(b[12:16]),
	}
}

// Message is a netlink header plus its payload. Messages returned by
// ParseMessage are views: Payload aliases the parsed buffer and is only
// valid for as long as that buffer is. Use Clone to get a message that
// stands on its own.
type Message struct {
	Header  Header
	Payload []byte
}

// ParseMessage reads the message at the start of b. It reports false if b
// can't hold a header, if the declared length is shorter than a header or if
// it runs past the end of b. Trailing bytes (padding or further messages)
// are ignored.
func ParseMessage(b []byte) (Message, bool) {
	if len(b) < HeaderLen {
		return Message{}, false
	}

	h := parseHeader(b)
	if h.Length < HeaderLen || uint64(h.Length) > uint64(len(b)) {
		return Message{}, false
	}

	// Cap the payload so appending to it can never scribble over whatever
	// follows the message in b.
	return Message{Header: h, Payload: b[HeaderLen:h.Length:h.Length]}, true
}

// Serialize lays out a header followed by payload. The length field is
// computed from the payload; no trailing padding is added.
func Serialize(h Header, payload []byte) []byte {
	h.Length = uint32(HeaderLen + len(payload))
	b := make([]byte, HeaderLen+len(payload))
	h.put(b)
	copy(b[HeaderLen:], payload)
	return b
}

// MarshalBinary serializes m. A zero Header.Length is filled in from the
// payload; any other value is written untouched, which is what keeps the
// logical length of built requests intact (see RequestBuilder).
func (m Message) MarshalBinary() ([]byte, error) {
	if m.Header.Length == 0 {
		return Serialize(m.Header, m.Payload), nil
	}
	if m.Header.Length < HeaderLen {
		return nil, fmt.Errorf("message length %d is shorter than a header", m.Header.Length)
	}

	b := make([]byte, HeaderLen+len(m.Payload))
	m.Header.put(b)
	copy(b[HeaderLen:], m.Payload)
	return b, nil
}

// Clone returns a deep copy of m that doesn't share memory with the buffer
// it was parsed from.
func (m Message) Clone() Message {
	c := Message{Header: m.Header}
	if m.Payload != nil {
		c.Payload = make([]byte, len(m.Payload))
		copy(c.Payload, m.Payload)
	}
	return c
}

// Attributes iterates over the attributes found at offset off of the payload.
// Families prefix their attributes with a fixed-size struct, and off is
// the size of that struct.
func (m Message) Attributes(off int) *AttributeIterator {
	start := Align(off)
	if start > len(m.Payload) {
		start = len(m.Payload)
	}
	return NewAttributeIterator(m.Payload[start:])
}
