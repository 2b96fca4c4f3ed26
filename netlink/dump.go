package netlink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"syscall"

	"github.com/scitags/nlcore/internal/logging"
)

// Source hands out decoded messages in the order the kernel wrote them.
// Decoder and Conn.Receive both qualify.
type Source interface {
	Next() (Message, error)
}

// SourceFunc adapts a plain function to a Source.
type SourceFunc func() (Message, error)

func (f SourceFunc) Next() (Message, error) {
	return f()
}

// DumpState is where a Dump stands. Every state but Receiving is final.
type DumpState int

const (
	// Receiving means more replies may follow.
	Receiving DumpState = iota

	// Done means NLMSG_DONE arrived.
	Done

	// Acknowledged means an NLMSG_ERROR with a zero status arrived.
	Acknowledged

	// Failed means the kernel reported an error or the stream broke.
	Failed

	// Ended means the replies stopped without a sentinel: either the
	// transport ran dry or a reply of a different kind showed up, which
	// is how single-object requests without NLM_F_ACK finish.
	Ended
)

func (s DumpState) String() string {
	switch s {
	case Receiving:
		return "receiving"
	case Done:
		return "done"
	case Acknowledged:
		return "acknowledged"
	case Failed:
		return "failed"
	case Ended:
		return "ended"
	}
	return fmt.Sprintf("DumpState(%d)", int(s))
}

// Dump consumes the replies to a single request, which has already been
// written, and surfaces those of the expected kind. It never re-issues the
// request.
type Dump struct {
	src  Source
	kind Kind

	seq           uint32
	matchSeq      bool
	notifications bool

	state       DumpState
	err         error
	interrupted bool
	received    int
}

type DumpOption func(*Dump)

// WithSequence makes the dump skip replies carrying a different, non-zero,
// sequence number. Stale replies to an earlier request that was abandoned
// halfway end up being dropped this way.
func WithSequence(seq uint32) DumpOption {
	return func(d *Dump) {
		d.seq = seq
		d.matchSeq = true
	}
}

// SkipNotifications makes the dump drop kernel-originated multicast
// messages, which carry neither a sequence number nor a port id. Use it on
// sockets bound to multicast groups.
func SkipNotifications() DumpOption {
	return func(d *Dump) {
		d.notifications = true
	}
}

func NewDump(src Source, kind Kind, opts ...DumpOption) *Dump {
	d := &Dump{src: src, kind: kind}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Next returns the next reply of the expected kind. io.EOF means the dump
// finished cleanly; check State to tell how. Kernel errors come back as
// *Error. ErrWouldBlock (or ErrNeedMore from a Decoder fed by hand) is
// returned as is and the dump can be resumed by calling Next again. Any
// other error is final.
func (d *Dump) Next() (Message, error) {
	for {
		switch d.state {
		case Done, Acknowledged, Ended:
			return Message{}, io.EOF
		case Failed:
			return Message{}, d.err
		}

		m, err := d.src.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				d.finish(Ended)
				return Message{}, io.EOF
			}
			if errors.Is(err, ErrWouldBlock) || errors.Is(err, ErrNeedMore) {
				return Message{}, err
			}
			return Message{}, d.fail(err)
		}

		if d.matchSeq && m.Header.Sequence != 0 && m.Header.Sequence != d.seq {
			slog.Warn("skipping netlink reply to another request",
				"kind", m.Header.Kind, "seq", m.Header.Sequence, "want", d.seq)
			continue
		}
		if d.notifications && m.Header.Sequence == 0 && m.Header.PortID == 0 {
			slog.Log(context.Background(), logging.LevelTrace, "skipping netlink notification", "kind", m.Header.Kind)
			continue
		}

		if m.Header.Flags&NLM_F_DUMP_INTR != 0 {
			d.interrupted = true
		}

		switch m.Header.Kind {
		case NLMSG_NOOP:
			continue

		case NLMSG_DONE:
			// A failing dump may tuck a negated errno into NLMSG_DONE.
			if code, ok := statusCode(m.Payload); ok && code < 0 {
				return Message{}, d.fail(&Error{Errno: syscall.Errno(-code)})
			}
			d.finish(Done)
			return Message{}, io.EOF

		case NLMSG_ERROR:
			kerr, err := ParseError(m)
			if err != nil {
				return Message{}, d.fail(err)
			}
			if kerr != nil {
				return Message{}, d.fail(kerr)
			}
			d.finish(Acknowledged)
			return Message{}, io.EOF

		case NLMSG_OVERRUN:
			return Message{}, d.fail(ErrOverrun)

		case d.kind:
			d.received++
			return m, nil

		default:
			slog.Debug("netlink reply of unexpected kind ends the dump",
				"kind", m.Header.Kind, "want", d.kind)
			d.finish(Ended)
			return Message{}, io.EOF
		}
	}
}

func (d *Dump) finish(s DumpState) {
	d.state = s
	slog.Debug("netlink dump finished", "state", s, "kind", d.kind, "received", d.received)
}

func (d *Dump) fail(err error) error {
	d.state = Failed
	d.err = err
	slog.Debug("netlink dump failed", "kind", d.kind, "received", d.received, "err", err)
	return err
}

// State reports where the dump stands.
func (d *Dump) State() DumpState {
	return d.state
}

// Err returns the error that made the dump fail, if it did.
func (d *Dump) Err() error {
	return d.err
}

// Interrupted reports whether any reply carried NLM_F_DUMP_INTR, meaning the
// kernel's tables changed midway and the results may be inconsistent.
func (d *Dump) Interrupted() bool {
	return d.interrupted
}

// All returns the remaining replies as a sequence. A failure is yielded as
// the final element; a clean end simply stops the sequence.
func (d *Dump) All() iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		for {
			m, err := d.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(m, err) || err != nil {
				return
			}
		}
	}
}

// Collect drains the dump. The replies gathered before a failure are
// returned alongside it.
func (d *Dump) Collect() ([]Message, error) {
	msgs := []Message{}
	for m, err := range d.All() {
		if err != nil {
			return msgs, err
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}
