package netlink

import (
	"bytes"
	"fmt"
	"iter"

	"github.com/josharian/native"
)

// AttributeHeaderLen is the size of struct nlattr (and struct rtattr).
const AttributeHeaderLen = 4

// maxAttributePayload is the largest payload a 16 bit length can describe.
const maxAttributePayload = 0xFFFF - AttributeHeaderLen

// Attribute is a view over a single TLV inside some parent buffer. Length
// reports the unpadded size, header included. Attribute types are only
// meaningful within the namespace of the enclosing message or attribute.
type Attribute struct {
	Length  uint16
	Type    uint16
	Payload []byte
}

// Kind returns the attribute's type with the NLA_F_* flag bits cleared.
func (a Attribute) Kind() uint16 {
	return a.Type & NLA_TYPE_MASK
}

func (a Attribute) Nested() bool {
	return a.Type&NLA_F_NESTED != 0
}

func (a Attribute) NetByteOrder() bool {
	return a.Type&NLA_F_NET_BYTEORDER != 0
}

// Attributes parses the payload as a nested attribute buffer.
func (a Attribute) Attributes() *AttributeIterator {
	return NewAttributeIterator(a.Payload)
}

func (a Attribute) Uint8() (uint8, error) {
	if len(a.Payload) != 1 {
		return 0, a.sizeErr(1)
	}
	return a.Payload[0], nil
}

func (a Attribute) Uint16() (uint16, error) {
	if len(a.Payload) != 2 {
		return 0, a.sizeErr(2)
	}
	return native.Endian.Uint16(a.Payload), nil
}

func (a Attribute) Uint32() (uint32, error) {
	if len(a.Payload) != 4 {
		return 0, a.sizeErr(4)
	}
	return native.Endian.Uint32(a.Payload), nil
}

func (a Attribute) Uint64() (uint64, error) {
	if len(a.Payload) != 8 {
		return 0, a.sizeErr(8)
	}
	return native.Endian.Uint64(a.Payload), nil
}

// CString decodes a NUL-terminated string. The terminator must be the last
// byte of the payload; it is counted in the attribute's length on the wire.
func (a Attribute) CString() (string, error) {
	if len(a.Payload) == 0 || a.Payload[len(a.Payload)-1] != 0 {
		return "", fmt.Errorf("attribute type %d: %w", a.Kind(), ErrNotTerminated)
	}
	s := a.Payload[:len(a.Payload)-1]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s), nil
}

func (a Attribute) sizeErr(want int) error {
	return fmt.Errorf("attribute type %d: got %d bytes, want %d: %w", a.Kind(), len(a.Payload), want, ErrAttributeSize)
}

// AttributeIterator walks a flat attribute buffer. It never panics and
// never surfaces a partial attribute: iteration simply stops, and Err
// reports whether it stopped on malformed data. Trailing zero bytes that
// don't fit another header are treated as padding.
type AttributeIterator struct {
	b   []byte
	pos int
	cur Attribute
	err error
}

func NewAttributeIterator(b []byte) *AttributeIterator {
	return &AttributeIterator{b: b}
}

// Next advances to the following attribute and reports whether there is one.
func (it *AttributeIterator) Next() bool {
	if it.err != nil {
		return false
	}

	rest := it.b[it.pos:]
	if len(rest) == 0 {
		return false
	}

	if len(rest) < AttributeHeaderLen {
		if !allZero(rest) {
			it.fail(0, fmt.Sprintf("%d trailing bytes can't hold an attribute header", len(rest)))
		}
		it.pos = len(it.b)
		return false
	}

	l := int(native.Endian.Uint16(rest[0:2]))
	if l < AttributeHeaderLen {
		if l == 0 && allZero(rest) {
			it.pos = len(it.b)
			return false
		}
		it.fail(l, "length shorter than an attribute header")
		return false
	}
	if l > len(rest) {
		it.fail(l, fmt.Sprintf("length exceeds the %d remaining bytes", len(rest)))
		return false
	}

	it.cur = Attribute{
		Length:  uint16(l),
		Type:    native.Endian.Uint16(rest[2:4]),
		Payload: rest[AttributeHeaderLen:l:l],
	}

	// The last attribute of a buffer may come without its padding.
	it.pos += Align(l)
	if it.pos > len(it.b) {
		it.pos = len(it.b)
	}

	return true
}

func (it *AttributeIterator) fail(l int, reason string) {
	it.err = &MalformedError{What: "attribute", Offset: it.pos, Length: l, Reason: reason}
	it.pos = len(it.b)
}

// Attribute returns the attribute Next just moved to.
func (it *AttributeIterator) Attribute() Attribute {
	return it.cur
}

// Err returns the *MalformedError that stopped the iteration, if any.
func (it *AttributeIterator) Err() error {
	return it.err
}

// All returns the remaining attributes as a sequence. Check Err once the
// loop is over.
func (it *AttributeIterator) All() iter.Seq[Attribute] {
	return func(yield func(Attribute) bool) {
		for it.Next() {
			if !yield(it.cur) {
				return
			}
		}
	}
}

// ParseAttributes collects every attribute in b.
func ParseAttributes(b []byte) ([]Attribute, error) {
	attrs := []Attribute{}
	it := NewAttributeIterator(b)
	for it.Next() {
		attrs = append(attrs, it.Attribute())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return attrs, nil
}

// FindAttribute returns the first attribute in b whose Kind is typ.
func FindAttribute(b []byte, typ uint16) (Attribute, bool) {
	it := NewAttributeIterator(b)
	for it.Next() {
		if a := it.Attribute(); a.Kind() == typ {
			return a, true
		}
	}
	return Attribute{}, false
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// EncodeAttribute lays out a single attribute: length, type and payload. The
// result isn't padded; whoever embeds it in a larger buffer does that.
func EncodeAttribute(typ uint16, payload []byte) ([]byte, error) {
	if len(payload) > maxAttributePayload {
		return nil, fmt.Errorf("attribute type %d with %d bytes: %w", typ&NLA_TYPE_MASK, len(payload), ErrAttributeTooLarge)
	}

	b := make([]byte, AttributeHeaderLen+len(payload))
	native.Endian.PutUint16(b[0:2], uint16(len(b)))
	native.Endian.PutUint16(b[2:4], typ)
	copy(b[AttributeHeaderLen:], payload)
	return b, nil
}

// AttributeEncoder accumulates a buffer of attributes, padding each one so
// the next starts aligned. The first error is kept and returned by Encode.
type AttributeEncoder struct {
	b   []byte
	err error
}

func NewAttributeEncoder() *AttributeEncoder {
	return &AttributeEncoder{}
}

func (e *AttributeEncoder) Bytes(typ uint16, v []byte) {
	if e.err != nil {
		return
	}
	a, err := EncodeAttribute(typ, v)
	if err != nil {
		e.err = err
		return
	}
	e.b = append(e.b, a...)
	e.b = append(e.b, make([]byte, padding(len(a)))...)
}

func (e *AttributeEncoder) Uint8(typ uint16, v uint8) {
	e.Bytes(typ, []byte{v})
}

func (e *AttributeEncoder) Uint16(typ uint16, v uint16) {
	b := make([]byte, 2)
	native.Endian.PutUint16(b, v)
	e.Bytes(typ, b)
}

func (e *AttributeEncoder) Uint32(typ uint16, v uint32) {
	b := make([]byte, 4)
	native.Endian.PutUint32(b, v)
	e.Bytes(typ, b)
}

func (e *AttributeEncoder) Uint64(typ uint16, v uint64) {
	b := make([]byte, 8)
	native.Endian.PutUint64(b, v)
	e.Bytes(typ, b)
}

// String encodes s followed by a NUL terminator, which the kernel expects
// on name-like attributes such as IFLA_IFNAME.
func (e *AttributeEncoder) String(typ uint16, s string) {
	b := make([]byte, len(s)+1)
	copy(b, s)
	e.Bytes(typ, b)
}

// Flag encodes an attribute with no payload.
func (e *AttributeEncoder) Flag(typ uint16) {
	e.Bytes(typ, nil)
}

// Nest encodes the attributes added by fn as the payload of typ. The nested
// length covers the children's padding, as nla_nest_end does. NLA_F_NESTED
// isn't set implicitly; rtnetlink doesn't want it on most nests.
func (e *AttributeEncoder) Nest(typ uint16, fn func(*AttributeEncoder)) {
	if e.err != nil {
		return
	}
	child := NewAttributeEncoder()
	fn(child)
	if child.err != nil {
		e.err = child.err
		return
	}
	e.Bytes(typ, child.b)
}

// Len reports the size of the encoded buffer, padding included.
func (e *AttributeEncoder) Len() int {
	return len(e.b)
}

// Encode returns the encoded attributes.
func (e *AttributeEncoder) Encode() ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.b, nil
}
