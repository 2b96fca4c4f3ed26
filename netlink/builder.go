package netlink

// RequestBuilder assembles one request message out of sub-packets: a
// family's fixed-size header, attributes or whole encoded attribute
// buffers.
//
// Two lengths are tracked. The header's length field grows by each
// sub-packet's unpadded size, which is what the receiver reads on the wire,
// while the buffer grows by the aligned size so the next sub-packet starts
// on a 4 byte boundary. Since the length field doesn't count the padding
// between sub-packets, all but the last one should have an aligned size
// (family headers and AttributeEncoder output always do).
type RequestBuilder struct {
	h   Header
	buf []byte
	err error
}

// NewRequest starts a request of the given kind. NLM_F_REQUEST is always
// added to flags.
func NewRequest(kind Kind, flags Flags) *RequestBuilder {
	b := &RequestBuilder{
		h: Header{
			Length: HeaderLen,
			Kind:   kind,
			Flags:  flags | NLM_F_REQUEST,
		},
		buf: make([]byte, HeaderLen, 64),
	}
	b.h.put(b.buf)
	return b
}

// Append copies sub into the request and pads the buffer to alignment.
func (b *RequestBuilder) Append(sub []byte) *RequestBuilder {
	if b.err != nil {
		return b
	}
	b.h.Length += uint32(len(sub))
	b.buf = append(b.buf, sub...)
	b.buf = append(b.buf, make([]byte, padding(len(sub)))...)
	b.h.put(b.buf)
	return b
}

// AppendAttribute encodes a single attribute and appends it.
func (b *RequestBuilder) AppendAttribute(typ uint16, payload []byte) *RequestBuilder {
	if b.err != nil {
		return b
	}
	a, err := EncodeAttribute(typ, payload)
	if err != nil {
		b.err = err
		return b
	}
	return b.Append(a)
}

// AppendEncoder appends everything e holds as one sub-packet.
func (b *RequestBuilder) AppendEncoder(e *AttributeEncoder) *RequestBuilder {
	if b.err != nil {
		return b
	}
	attrs, err := e.Encode()
	if err != nil {
		b.err = err
		return b
	}
	return b.Append(attrs)
}

// Header returns the header as it stands.
func (b *RequestBuilder) Header() Header {
	return b.h
}

// Len returns the size of the underlying buffer, padding included.
func (b *RequestBuilder) Len() int {
	return len(b.buf)
}

// Build freezes the request. The returned message's payload holds every
// sub-packet with its padding, and its header keeps the logical length, so
// MarshalBinary reproduces the buffer byte for byte. The first encoding
// error hit by an Append* call is returned here.
func (b *RequestBuilder) Build() (Message, error) {
	if b.err != nil {
		return Message{}, b.err
	}

	// Hand out a private copy: further appends must not show through.
	payload := make([]byte, len(b.buf)-HeaderLen)
	copy(payload, b.buf[HeaderLen:])

	return Message{Header: b.h, Payload: payload}, nil
}
