// Package nltest provides a scripted, in-memory stand-in for the kernel side
// of a netlink socket. It lets request/reply exchanges be exercised without
// privileges or even a Linux host.
package nltest

import (
	"fmt"
	"io"
	"sync"
	"syscall"

	"github.com/josharian/native"
	"github.com/scitags/nlcore/netlink"
)

// Handler answers a single request with the messages the kernel would send
// back. Returning an error makes the Write carrying the request fail.
type Handler func(req netlink.Message) ([]netlink.Message, error)

// Kernel satisfies netlink.Transport and netlink.Poller. Whatever the
// Handler replies is queued and served on Read, optionally in small chunks
// to exercise reassembly.
type Kernel struct {
	mu sync.Mutex

	handler     Handler
	chunk       int
	nonBlocking bool

	out      []byte
	requests []netlink.Message
	closed   bool
}

type Option func(*Kernel)

// WithChunkSize caps every Read at n bytes.
func WithChunkSize(n int) Option {
	return func(k *Kernel) {
		k.chunk = n
	}
}

// NonBlocking makes Read return netlink.ErrWouldBlock instead of io.EOF when
// nothing is queued.
func NonBlocking() Option {
	return func(k *Kernel) {
		k.nonBlocking = true
	}
}

// New returns a Kernel answering with h. A nil h never replies.
func New(h Handler, opts ...Option) *Kernel {
	k := &Kernel{handler: h}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Write parses every message in b and hands each one to the Handler.
func (k *Kernel) Write(b []byte) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return 0, syscall.EBADF
	}

	for off := 0; off < len(b); {
		req, ok := netlink.ParseMessage(b[off:])
		if !ok {
			return 0, fmt.Errorf("unparseable request at offset %d", off)
		}
		req = req.Clone()
		k.requests = append(k.requests, req)
		off += netlink.Align(int(req.Header.Length))

		if k.handler == nil {
			continue
		}
		replies, err := k.handler(req)
		if err != nil {
			return 0, err
		}
		k.out = append(k.out, Marshal(replies...)...)
	}

	return len(b), nil
}

// Read serves queued replies.
func (k *Kernel) Read(b []byte) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return 0, io.EOF
	}
	if len(k.out) == 0 {
		if k.nonBlocking {
			return 0, netlink.ErrWouldBlock
		}
		return 0, io.EOF
	}

	if k.chunk > 0 && len(b) > k.chunk {
		b = b[:k.chunk]
	}
	n := copy(b, k.out)
	k.out = k.out[n:]
	return n, nil
}

// Queue adds unsolicited messages, as a multicast notification would.
func (k *Kernel) Queue(msgs ...netlink.Message) {
	k.QueueBytes(Marshal(msgs...))
}

// QueueBytes adds raw bytes to the read side, framing or not.
func (k *Kernel) QueueBytes(b []byte) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.out = append(k.out, b...)
}

// Requests returns every request written so far.
func (k *Kernel) Requests() []netlink.Message {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]netlink.Message{}, k.requests...)
}

func (k *Kernel) Readable() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return !k.closed && len(k.out) > 0
}

func (k *Kernel) Writable() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return !k.closed
}

func (k *Kernel) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.closed = true
	k.out = nil
	return nil
}

// Marshal lays msgs out back to back, each one padded to alignment. A zero
// Header.Length is computed from the payload.
func Marshal(msgs ...netlink.Message) []byte {
	b := []byte{}
	for _, m := range msgs {
		mb, err := m.MarshalBinary()
		if err != nil {
			panic(fmt.Sprintf("nltest: can't marshal %v: %v", m.Header, err))
		}
		b = append(b, mb...)
		b = append(b, make([]byte, netlink.Align(len(mb))-len(mb))...)
	}
	return b
}

// Reply returns a message answering req, sharing its sequence and port id.
func Reply(req netlink.Message, kind netlink.Kind, flags netlink.Flags, payload []byte) netlink.Message {
	return netlink.Message{
		Header: netlink.Header{
			Kind:     kind,
			Flags:    flags,
			Sequence: req.Header.Sequence,
			PortID:   req.Header.PortID,
		},
		Payload: payload,
	}
}

// Multi answers a dump request: one NLM_F_MULTI message per payload followed
// by NLMSG_DONE.
func Multi(req netlink.Message, kind netlink.Kind, payloads ...[]byte) []netlink.Message {
	msgs := make([]netlink.Message, 0, len(payloads)+1)
	for _, p := range payloads {
		msgs = append(msgs, Reply(req, kind, netlink.NLM_F_MULTI, p))
	}
	return append(msgs, Done(req))
}

// Done terminates a dump.
func Done(req netlink.Message) netlink.Message {
	return Reply(req, netlink.NLMSG_DONE, netlink.NLM_F_MULTI, make([]byte, 4))
}

// Ack acknowledges req.
func Ack(req netlink.Message) netlink.Message {
	return status(req, 0)
}

// Error rejects req with errno, negated on the wire as the kernel does.
func Error(req netlink.Message, errno syscall.Errno) netlink.Message {
	return status(req, -int32(errno))
}

func status(req netlink.Message, code int32) netlink.Message {
	p := make([]byte, 4+netlink.HeaderLen)
	native.Endian.PutUint32(p[0:4], uint32(code))
	h, _ := req.Header.MarshalBinary()
	copy(p[4:], h)
	return Reply(req, netlink.NLMSG_ERROR, 0, p)
}
