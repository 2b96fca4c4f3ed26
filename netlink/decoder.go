package netlink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/josharian/native"
	"github.com/scitags/nlcore/internal/logging"
)

// DefaultReadSize is how much a Decoder asks its transport for on each read.
// Netlink sockets are datagram sockets: a datagram larger than the read
// buffer gets truncated, so this should comfortably exceed what the kernel
// sends in one go (dumps are chunked to at most 32 KiB).
const DefaultReadSize = 32 * 1024

// DecodeState tells where a Decoder stands.
type DecodeState int

const (
	// AwaitingMore means the buffer doesn't hold a whole message yet.
	AwaitingMore DecodeState = iota

	// MessageReady means Decode will return a message without reading.
	MessageReady

	// Malformed is terminal: the framing can't be trusted any longer.
	Malformed
)

func (s DecodeState) String() string {
	switch s {
	case AwaitingMore:
		return "awaiting more"
	case MessageReady:
		return "message ready"
	case Malformed:
		return "malformed"
	}
	return fmt.Sprintf("DecodeState(%d)", int(s))
}

// Decoder turns a byte stream into messages. It keeps whatever bytes it
// couldn't decode yet, so a message split across reads is put back together
// and several messages arriving in a single read are all handed out before
// the transport is read again.
type Decoder struct {
	r    io.Reader
	rbuf []byte

	// Undecoded bytes are buf[start:].
	buf   []byte
	start int

	state DecodeState
	err   error
	eof   bool
}

type DecoderOption func(*Decoder)

// WithReadSize sets the size of the buffer handed to the transport.
func WithReadSize(n int) DecoderOption {
	return func(d *Decoder) {
		if n > 0 {
			d.rbuf = make([]byte, n)
		}
	}
}

// NewDecoder returns a Decoder reading from r. r may be nil if bytes will
// only ever be supplied through Feed.
func NewDecoder(r io.Reader, opts ...DecoderOption) *Decoder {
	d := &Decoder{r: r}
	for _, opt := range opts {
		opt(d)
	}
	if d.rbuf == nil {
		d.rbuf = make([]byte, DefaultReadSize)
	}
	return d
}

// Feed appends raw bytes to the buffer.
func (d *Decoder) Feed(b []byte) {
	if len(b) == 0 {
		return
	}

	// Slide the undecoded tail to the front instead of growing forever.
	if d.start > 0 {
		n := copy(d.buf, d.buf[d.start:])
		d.buf = d.buf[:n]
		d.start = 0
	}
	d.buf = append(d.buf, b...)
	d.updateState()
}

// State reports the decoder's state given the bytes buffered so far.
func (d *Decoder) State() DecodeState {
	return d.state
}

// Buffered returns how many undecoded bytes are being held.
func (d *Decoder) Buffered() int {
	return len(d.buf) - d.start
}

// Reset drops buffered bytes and any terminal state, pointing the decoder
// at r.
func (d *Decoder) Reset(r io.Reader) {
	d.r = r
	d.buf = d.buf[:0]
	d.start = 0
	d.state = AwaitingMore
	d.err = nil
	d.eof = false
}

// frame inspects the buffered bytes and returns the declared and aligned
// lengths of the leading message. ok is false while there aren't enough
// bytes for it.
func (d *Decoder) frame() (length, aligned int, ok bool, err error) {
	avail := d.buf[d.start:]
	if len(avail) < HeaderLen {
		return 0, 0, false, nil
	}

	l := native.Endian.Uint32(avail[0:4])
	if l < HeaderLen {
		return 0, 0, false, &MalformedError{
			What:   "message",
			Offset: d.start,
			Length: int(l),
			Reason: "length shorter than a message header",
		}
	}
	if uint64(l) > uint64(len(avail)) {
		return 0, 0, false, nil
	}

	length = int(l)
	aligned = Align(length)
	return length, aligned, aligned <= len(avail), nil
}

func (d *Decoder) updateState() {
	if d.state == Malformed {
		return
	}
	_, _, ok, err := d.frame()
	switch {
	case err != nil:
		d.state = Malformed
		d.err = err
	case ok:
		d.state = MessageReady
	default:
		d.state = AwaitingMore
	}
}

// Decode extracts the next message from the buffered bytes without touching
// the transport. It returns ErrNeedMore while the buffer lacks the aligned
// footprint of the next message and a *MalformedError, for good, once the
// framing breaks. Returned messages own their memory.
func (d *Decoder) Decode() (Message, error) {
	if d.state == Malformed {
		return Message{}, d.err
	}

	length, aligned, ok, err := d.frame()
	if err != nil {
		d.state = Malformed
		d.err = err
		return Message{}, err
	}
	if !ok {
		d.state = AwaitingMore
		return Message{}, ErrNeedMore
	}

	m := d.extract(length, aligned)
	return m, nil
}

// extract copies the message out of the buffer and drops its footprint.
func (d *Decoder) extract(length, consumed int) Message {
	m, _ := ParseMessage(d.buf[d.start : d.start+length])
	m = m.Clone()

	d.start += consumed
	if d.start >= len(d.buf) {
		d.buf = d.buf[:0]
		d.start = 0
	}
	d.updateState()

	slog.Log(context.Background(), logging.LevelTrace, "decoded netlink message",
		"kind", m.Header.Kind, "flags", m.Header.Flags, "len", m.Header.Length,
		"seq", m.Header.Sequence, "buffered", d.Buffered())

	return m
}

// Next returns the next message, reading from the transport as long as the
// buffer can't provide one. Transport errors (ErrWouldBlock included) come
// back verbatim and leave the buffered bytes untouched, so calling Next
// again later is safe. Once the transport reports the end of input Next
// returns io.EOF, or io.ErrUnexpectedEOF if a partial message was left
// behind.
func (d *Decoder) Next() (Message, error) {
	for {
		m, err := d.Decode()
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, ErrNeedMore) {
			return Message{}, err
		}

		if d.eof {
			return d.finish()
		}
		if d.r == nil {
			return Message{}, ErrNeedMore
		}

		n, err := d.r.Read(d.rbuf)
		if n > 0 {
			d.Feed(d.rbuf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				d.eof = true
				continue
			}
			return Message{}, err
		}
		if n == 0 {
			d.eof = true
		}
	}
}

// finish handles whatever is left over once the transport is done. The
// final message of a stream may legitimately come without its padding.
func (d *Decoder) finish() (Message, error) {
	if d.Buffered() == 0 {
		return Message{}, io.EOF
	}

	avail := d.buf[d.start:]
	if len(avail) >= HeaderLen {
		l := native.Endian.Uint32(avail[0:4])
		if l >= HeaderLen && uint64(l) <= uint64(len(avail)) {
			return d.extract(int(l), len(avail)), nil
		}
	}

	slog.Debug("transport closed halfway through a message", "buffered", d.Buffered())
	return Message{}, io.ErrUnexpectedEOF
}
