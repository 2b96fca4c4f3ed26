package netlink

import (
	"errors"
	"fmt"
	"math"
	"syscall"

	"github.com/josharian/native"
)

var (
	// ErrNeedMore is returned by Decoder.Decode when the buffered bytes
	// don't yet hold a whole message. It's not a failure: feed the decoder
	// and try again.
	ErrNeedMore = errors.New("netlink: need more bytes")

	// ErrWouldBlock is returned by transports in non-blocking mode when
	// there's nothing to read (or no room to write) right now. Decoders,
	// Conns and Dumps pass it through untouched and can be retried.
	ErrWouldBlock = errors.New("netlink: operation would block")

	// ErrMalformed is wrapped by every MalformedError.
	ErrMalformed = errors.New("netlink: malformed data")

	// ErrOverrun is returned by a Dump receiving NLMSG_OVERRUN.
	ErrOverrun = errors.New("netlink: kernel reported a buffer overrun")

	ErrAttributeSize     = errors.New("netlink: unexpected attribute payload size")
	ErrAttributeTooLarge = errors.New("netlink: attribute payload doesn't fit in a 16 bit length")
	ErrNotTerminated     = errors.New("netlink: string attribute lacks a NUL terminator")
	ErrNotSupported      = errors.New("netlink: not supported on this platform")
)

// MalformedError describes framing that can't be trusted. Once a stream
// yields one there's no way to find the next message boundary.
type MalformedError struct {
	// What was being parsed: "message" or "attribute".
	What string

	// Offset of the offending header within the buffer being parsed.
	Offset int

	// Declared length found in the header.
	Length int

	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("netlink: malformed %s at offset %d (declared length %d): %s", e.What, e.Offset, e.Length, e.Reason)
}

func (e *MalformedError) Unwrap() error {
	return ErrMalformed
}

// Error is a failure reported by the kernel through an NLMSG_ERROR message.
// It unwraps to the underlying syscall.Errno so errors.Is(err, syscall.ENODEV)
// and friends work as expected.
type Error struct {
	Errno syscall.Errno

	// Header of the request the kernel is complaining about.
	Request Header

	// Populated from extended acknowledgements (NETLINK_EXT_ACK), if any.
	Message string
	Offset  uint32
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("netlink: kernel error: %v: %s", e.Errno, e.Message)
	}
	return fmt.Sprintf("netlink: kernel error: %v", e.Errno)
}

func (e *Error) Unwrap() error {
	return e.Errno
}

// errorPayloadLen is sizeof(struct nlmsgerr) without the echoed message's
// payload: a signed status code followed by the request's header.
const errorPayloadLen = 4 + HeaderLen

// statusCode extracts the leading signed integer of an NLMSG_ERROR (or
// NLMSG_DONE) payload.
func statusCode(payload []byte) (int32, bool) {
	if len(payload) < 4 {
		return 0, false
	}
	return int32(native.Endian.Uint32(payload[0:4])), true
}

// statusErrno maps a non-zero kernel status to an errno. The most negative
// int32 has no positive counterpart and is reported as EINVAL.
func statusErrno(code int32) syscall.Errno {
	switch {
	case code == math.MinInt32:
		return syscall.EINVAL
	case code < 0:
		return syscall.Errno(-code)
	}
	return syscall.Errno(code)
}

// ParseError interprets an NLMSG_ERROR message. A zero status is an
// acknowledgement, reported as a nil *Error and a nil error. The kernel
// sends negated errno values; the sign is dropped so the code lands in
// the usual errno domain.
func ParseError(m Message) (*Error, error) {
	code, ok := statusCode(m.Payload)
	if !ok {
		return nil, &MalformedError{What: "message", Length: int(m.Header.Length), Reason: "error message too short for a status code"}
	}
	if code == 0 {
		return nil, nil
	}

	e := &Error{Errno: statusErrno(code)}
	if len(m.Payload) < errorPayloadLen {
		// Nothing echoed back. Old kernels, or a hand-crafted reply.
		return e, nil
	}
	e.Request = parseHeader(m.Payload[4:])

	if m.Header.Flags&NLM_F_ACK_TLVS == 0 {
		return e, nil
	}

	// The attributes come after the echoed request. When NLM_F_CAPPED is set
	// only its header made it back.
	off := errorPayloadLen
	if m.Header.Flags&NLM_F_CAPPED == 0 {
		off = 4 + Align(int(e.Request.Length))
	}
	if off > len(m.Payload) {
		return e, nil
	}

	it := NewAttributeIterator(m.Payload[off:])
	for it.Next() {
		a := it.Attribute()
		switch a.Kind() {
		case NLMSGERR_ATTR_MSG:
			if s, err := a.CString(); err == nil {
				e.Message = s
			}
		case NLMSGERR_ATTR_OFFS:
			if o, err := a.Uint32(); err == nil {
				e.Offset = o
			}
		}
	}

	return e, nil
}
