package netlink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/scitags/nlcore/internal/logging"
)

// Conn ties a Transport to a Decoder and numbers outgoing requests. It is
// meant to be owned by one caller at a time: a request's Dump has to be
// drained (or abandoned) before the next request goes out.
type Conn struct {
	t   Transport
	dec *Decoder

	seq    uint32
	portID uint32
	groups uint32

	metrics   *Metrics
	malformed bool
}

type ConnOption func(*Conn)

// WithMetrics instruments the connection.
func WithMetrics(m *Metrics) ConnOption {
	return func(c *Conn) {
		c.metrics = m
	}
}

// WithPortID records the port id the kernel assigned to the socket. It's
// used to stamp requests that don't carry one already.
func WithPortID(id uint32) ConnOption {
	return func(c *Conn) {
		c.portID = id
	}
}

// WithGroups records the multicast groups the socket is bound to. Dumps
// started by Execute then skip the notifications arriving in between.
func WithGroups(groups uint32) ConnOption {
	return func(c *Conn) {
		c.groups = groups
	}
}

// WithDecoderOptions tunes the connection's decoder.
func WithDecoderOptions(opts ...DecoderOption) ConnOption {
	return func(c *Conn) {
		c.dec = NewDecoder(countingReader{c}, opts...)
	}
}

func NewConn(t Transport, opts ...ConnOption) *Conn {
	c := &Conn{t: t}
	for _, opt := range opts {
		opt(c)
	}
	if c.dec == nil {
		c.dec = NewDecoder(countingReader{c})
	}
	return c
}

// countingReader feeds the decoder and keeps the byte counters honest.
type countingReader struct {
	c *Conn
}

func (r countingReader) Read(b []byte) (int, error) {
	n, err := r.c.t.Read(b)
	if n > 0 && r.c.metrics != nil {
		r.c.metrics.BytesRead.Add(float64(n))
	}
	return n, err
}

// PortID returns the port id given through WithPortID.
func (c *Conn) PortID() uint32 {
	return c.portID
}

// Send stamps m with the next sequence number and writes it out in a single
// call. The stamped message is returned so replies can be correlated.
func (c *Conn) Send(m Message) (Message, error) {
	c.seq++
	m.Header.Sequence = c.seq
	if m.Header.PortID == 0 {
		m.Header.PortID = c.portID
	}

	b, err := m.MarshalBinary()
	if err != nil {
		return Message{}, fmt.Errorf("error marshalling the request: %w", err)
	}

	n, err := c.t.Write(b)
	if err != nil {
		return Message{}, err
	}
	if n != len(b) {
		return Message{}, fmt.Errorf("wrote %d out of %d bytes: %w", n, len(b), io.ErrShortWrite)
	}

	if c.metrics != nil {
		c.metrics.MessagesSent.Inc()
		c.metrics.BytesWritten.Add(float64(n))
	}

	slog.Log(context.Background(), logging.LevelTrace, "sent netlink message",
		"kind", m.Header.Kind, "flags", m.Header.Flags, "len", len(b), "seq", m.Header.Sequence)

	return m, nil
}

// Receive returns the next message off the transport, in the order the
// kernel wrote them. It satisfies Source through SourceFunc.
func (c *Conn) Receive() (Message, error) {
	m, err := c.dec.Next()
	if err != nil {
		// The decoder keeps returning the same error once the framing
		// breaks; count the stream once.
		if c.metrics != nil && errors.Is(err, ErrMalformed) && !c.malformed {
			c.metrics.Malformed.Inc()
		}
		if errors.Is(err, ErrMalformed) {
			c.malformed = true
		}
		return Message{}, err
	}

	if c.metrics != nil {
		c.metrics.observe(m)
	}
	return m, nil
}

// Execute sends req and returns a Dump over its replies, surfacing those of
// the given kind.
func (c *Conn) Execute(req Message, kind Kind) (*Dump, error) {
	sent, err := c.Send(req)
	if err != nil {
		return nil, err
	}
	slog.Debug("executing netlink request", "kind", sent.Header.Kind, "flags", sent.Header.Flags,
		"seq", sent.Header.Sequence, "expecting", kind)

	opts := []DumpOption{WithSequence(sent.Header.Sequence)}
	if c.groups != 0 {
		opts = append(opts, SkipNotifications())
	}
	return NewDump(SourceFunc(c.Receive), kind, opts...), nil
}

// Readable reports whether Receive can make progress without blocking. A
// message already sitting in the decoder counts. Transports that can't be
// polled are assumed to block, and therefore always readable.
func (c *Conn) Readable() bool {
	if c.dec.State() != AwaitingMore {
		return true
	}
	if p, ok := c.t.(Poller); ok {
		return p.Readable()
	}
	return true
}

// Writable reports whether Send can make progress without blocking.
func (c *Conn) Writable() bool {
	if p, ok := c.t.(Poller); ok {
		return p.Writable()
	}
	return true
}

// Close discards any partially buffered message and closes the transport
// if it can be closed.
func (c *Conn) Close() error {
	c.dec.Reset(countingReader{c})
	c.malformed = false
	if cl, ok := c.t.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}
