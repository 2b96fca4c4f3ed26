package netlink

import "io"

// Transport is everything the protocol engine needs from a socket. A Read
// returning 0 bytes signals the end of input. Transports running in
// non-blocking mode return ErrWouldBlock rather than suspending the caller.
type Transport interface {
	io.Reader
	io.Writer
}

// Poller is implemented by transports that can be driven from an event
// loop. Neither method may block.
type Poller interface {
	Readable() bool
	Writable() bool
}
