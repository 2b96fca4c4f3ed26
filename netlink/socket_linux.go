//go:build linux

package netlink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mdlayher/socket"
	"golang.org/x/sys/unix"
)

// Socket is a raw AF_NETLINK socket satisfying Transport and Poller. File
// descriptor handling (non-blocking I/O, deadlines, close semantics) is left
// to github.com/mdlayher/socket, which hooks the descriptor into the Go
// runtime's network poller.
type Socket struct {
	conn *socket.Conn
	cfg  Config
	pid  uint32
}

// OpenSocket creates and binds a netlink socket as described by cfg. A nil
// cfg means DefaultConfig.
func OpenSocket(cfg *Config) (*Socket, error) {
	if cfg == nil {
		cfg = &DefaultConfig
	}

	c, err := socket.Socket(unix.AF_NETLINK, unix.SOCK_RAW, cfg.Protocol, "netlink", nil)
	if err != nil {
		return nil, fmt.Errorf("couldn't open a netlink socket: %w", err)
	}

	s := &Socket{conn: c, cfg: *cfg}
	if err := s.init(); err != nil {
		c.Close()
		return nil, err
	}

	slog.Debug("opened netlink socket", "protocol", cfg.Protocol, "groups", cfg.Groups, "pid", s.pid)

	return s, nil
}

func (s *Socket) init() error {
	if s.cfg.ReceiveBufferSize > 0 {
		if err := s.conn.SetsockoptInt(unix.SOL_SOCKET, unix.SO_RCVBUF, s.cfg.ReceiveBufferSize); err != nil {
			return fmt.Errorf("couldn't set the receive buffer size: %w", err)
		}
	}

	// For enhanced error messages from the kernel we ask for extended
	// acknowledgements, supported since 4.12. Older kernels return
	// unix.ENOPROTOOPT, which is no reason to give up.
	if s.cfg.ExtendedAck {
		if err := s.conn.SetsockoptInt(unix.SOL_NETLINK, unix.NETLINK_EXT_ACK, 1); err != nil {
			slog.Warn("could not enable extended acknowledgements", "err", err)
		}
	}
	if s.cfg.StrictCheck {
		if err := s.conn.SetsockoptInt(unix.SOL_NETLINK, unix.NETLINK_GET_STRICT_CHK, 1); err != nil {
			slog.Warn("could not enable strict checking", "err", err)
		}
	}

	if err := s.conn.Bind(&unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: s.cfg.Groups}); err != nil {
		return fmt.Errorf("couldn't bind the netlink socket: %w", err)
	}

	sa, err := s.conn.Getsockname()
	if err != nil {
		return fmt.Errorf("couldn't get the socket's address: %w", err)
	}
	nsa, ok := sa.(*unix.SockaddrNetlink)
	if !ok {
		return fmt.Errorf("unexpected socket address type %T", sa)
	}
	s.pid = nsa.Pid

	return nil
}

// PortID returns the port id the kernel assigned on bind.
func (s *Socket) PortID() uint32 {
	return s.pid
}

// Read receives one datagram. A datagram that doesn't fit in b would be cut
// short by the kernel, which is reported as an error rather than handing out
// half a message.
func (s *Socket) Read(b []byte) (int, error) {
	if s.cfg.NonBlocking && !s.Readable() {
		return 0, ErrWouldBlock
	}
	if t := s.cfg.ReadTimeout(); t > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(t)); err != nil {
			return 0, err
		}
	}

	n, _, flags, _, err := s.conn.Recvmsg(context.Background(), b, nil, 0)
	if err != nil {
		return 0, err
	}
	if flags&unix.MSG_TRUNC != 0 {
		return 0, fmt.Errorf("netlink datagram larger than the %d byte read buffer: %w", len(b), unix.ENOBUFS)
	}
	return n, nil
}

// Write sends b to the kernel.
func (s *Socket) Write(b []byte) (int, error) {
	if s.cfg.NonBlocking && !s.Writable() {
		return 0, ErrWouldBlock
	}
	return s.conn.Write(b)
}

func (s *Socket) Readable() bool {
	return s.poll(unix.POLLIN)
}

func (s *Socket) Writable() bool {
	return s.poll(unix.POLLOUT)
}

// poll asks the kernel about the descriptor's readiness without waiting.
func (s *Socket) poll(events int16) bool {
	rc, err := s.conn.SyscallConn()
	if err != nil {
		return false
	}

	ready := false
	err = rc.Control(func(fd uintptr) {
		fds := []unix.PollFd{{Fd: int32(fd), Events: events}}
		n, perr := unix.Poll(fds, 0)
		ready = perr == nil && n > 0 && fds[0].Revents&events != 0
	})
	return err == nil && ready
}

func (s *Socket) Close() error {
	return s.conn.Close()
}

// Dial opens a socket as described by cfg and wraps it in a Conn.
func Dial(cfg *Config, opts ...ConnOption) (*Conn, error) {
	if cfg == nil {
		cfg = &DefaultConfig
	}

	s, err := OpenSocket(cfg)
	if err != nil {
		return nil, err
	}

	opts = append([]ConnOption{
		WithPortID(s.PortID()),
		WithGroups(cfg.Groups),
		WithDecoderOptions(WithReadSize(cfg.ReadBufferSize)),
	}, opts...)

	return NewConn(s, opts...), nil
}
