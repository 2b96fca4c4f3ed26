package netlink_test

import (
	"errors"
	"io"
	"syscall"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/scitags/nlcore/netlink"
	"github.com/scitags/nlcore/netlink/nltest"
)

const kindThing netlink.Kind = 0x20

func dumpHandler(payloads ...[]byte) nltest.Handler {
	return func(req netlink.Message) ([]netlink.Message, error) {
		return nltest.Multi(req, kindThing, payloads...), nil
	}
}

func payloads(msgs []netlink.Message) [][]byte {
	p := [][]byte{}
	for _, m := range msgs {
		p = append(p, m.Payload)
	}
	return p
}

func TestConnExecute(t *testing.T) {
	want := [][]byte{[]byte("first"), []byte("second!"), {}, []byte("last one")}

	for name, opts := range map[string][]nltest.Option{
		"whole":          nil,
		"byte at a time": {nltest.WithChunkSize(1)},
		"odd chunks":     {nltest.WithChunkSize(7)},
	} {
		t.Run(name, func(t *testing.T) {
			k := nltest.New(dumpHandler(want...), opts...)
			c := netlink.NewConn(k, netlink.WithPortID(4242))
			defer c.Close()

			req, err := netlink.NewRequest(kindThing+2, netlink.NLM_F_DUMP).Append(make([]byte, 16)).Build()
			if err != nil {
				t.Fatalf("error building the request: %v", err)
			}

			d, err := c.Execute(req, kindThing)
			if err != nil {
				t.Fatalf("error executing: %v", err)
			}
			got, err := d.Collect()
			if err != nil {
				t.Fatalf("error collecting: %v", err)
			}
			if diff := cmp.Diff(want, payloads(got)); diff != "" {
				t.Errorf("payload mismatch (-want +got):\n%s", diff)
			}
			if d.State() != netlink.Done {
				t.Errorf("got state %v, want %v", d.State(), netlink.Done)
			}

			reqs := k.Requests()
			if len(reqs) != 1 {
				t.Fatalf("kernel saw %d requests", len(reqs))
			}
			h := reqs[0].Header
			if h.Sequence != 1 || h.PortID != 4242 || h.Flags != netlink.NLM_F_REQUEST|netlink.NLM_F_DUMP {
				t.Errorf("unexpected request header %+v", h)
			}
		})
	}
}

func TestConnSequencing(t *testing.T) {
	k := nltest.New(dumpHandler([]byte("fresh")))
	c := netlink.NewConn(k)

	req, _ := netlink.NewRequest(kindThing+2, netlink.NLM_F_DUMP).Build()
	if _, err := c.Send(req); err != nil {
		t.Fatalf("error sending: %v", err)
	}
	// Walk away from the first dump without reading it.

	d, err := c.Execute(req, kindThing)
	if err != nil {
		t.Fatalf("error executing: %v", err)
	}
	got, err := d.Collect()
	if err != nil {
		t.Fatalf("error collecting: %v", err)
	}
	if len(got) != 1 || got[0].Header.Sequence != 2 {
		t.Errorf("got stale replies: %+v", got)
	}
}

func TestConnSkipsNotifications(t *testing.T) {
	handler := func(req netlink.Message) ([]netlink.Message, error) {
		event := netlink.Message{Header: netlink.Header{Kind: kindThing}, Payload: []byte("event")}
		return []netlink.Message{
			nltest.Reply(req, kindThing, netlink.NLM_F_MULTI, []byte("a")),
			event,
			nltest.Reply(req, kindThing, netlink.NLM_F_MULTI, []byte("b")),
			nltest.Done(req),
		}, nil
	}

	tests := map[string]struct {
		opts []netlink.ConnOption
		want [][]byte
	}{
		"no groups": {[]netlink.ConnOption{netlink.WithPortID(4242)}, [][]byte{[]byte("a"), []byte("event"), []byte("b")}},
		"groups":    {[]netlink.ConnOption{netlink.WithPortID(4242), netlink.WithGroups(1)}, [][]byte{[]byte("a"), []byte("b")}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			c := netlink.NewConn(nltest.New(handler), tc.opts...)
			defer c.Close()

			req, _ := netlink.NewRequest(kindThing+2, netlink.NLM_F_DUMP).Build()
			d, err := c.Execute(req, kindThing)
			if err != nil {
				t.Fatalf("error executing: %v", err)
			}
			got, err := d.Collect()
			if err != nil {
				t.Fatalf("error collecting: %v", err)
			}
			if diff := cmp.Diff(tc.want, payloads(got)); diff != "" {
				t.Errorf("payload mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConnKernelError(t *testing.T) {
	k := nltest.New(func(req netlink.Message) ([]netlink.Message, error) {
		return []netlink.Message{nltest.Error(req, syscall.ENODEV)}, nil
	})
	c := netlink.NewConn(k)

	req, _ := netlink.NewRequest(kindThing+2, netlink.NLM_F_ACK).Build()
	d, err := c.Execute(req, kindThing)
	if err != nil {
		t.Fatalf("error executing: %v", err)
	}

	_, err = d.Next()
	var kerr *netlink.Error
	if !errors.As(err, &kerr) || !errors.Is(err, syscall.ENODEV) {
		t.Fatalf("expected ENODEV, got %v", err)
	}
	if kerr.Request.Sequence != 1 {
		t.Errorf("echoed request header %+v", kerr.Request)
	}
}

func TestConnAck(t *testing.T) {
	k := nltest.New(func(req netlink.Message) ([]netlink.Message, error) {
		return []netlink.Message{nltest.Ack(req)}, nil
	})
	c := netlink.NewConn(k)

	req, _ := netlink.NewRequest(kindThing, netlink.NLM_F_ACK|netlink.NLM_F_CREATE).Build()
	d, _ := c.Execute(req, kindThing)
	if _, err := d.Next(); !errors.Is(err, io.EOF) || d.State() != netlink.Acknowledged {
		t.Errorf("got %v in state %v", err, d.State())
	}
}

func TestConnNonBlocking(t *testing.T) {
	k := nltest.New(dumpHandler([]byte("a"), []byte("b")), nltest.NonBlocking(), nltest.WithChunkSize(10))
	c := netlink.NewConn(k)

	if c.Readable() {
		t.Errorf("readable before sending anything")
	}
	if !c.Writable() {
		t.Errorf("not writable")
	}
	if _, err := c.Receive(); !errors.Is(err, netlink.ErrWouldBlock) {
		t.Errorf("expected ErrWouldBlock, got %v", err)
	}

	req, _ := netlink.NewRequest(kindThing+2, netlink.NLM_F_DUMP).Build()
	d, err := c.Execute(req, kindThing)
	if err != nil {
		t.Fatalf("error executing: %v", err)
	}

	// Drive the dump the way an event loop would.
	got := [][]byte{}
	for c.Readable() {
		m, err := d.Next()
		if errors.Is(err, netlink.ErrWouldBlock) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, m.Payload)
	}

	if diff := cmp.Diff([][]byte{[]byte("a"), []byte("b")}, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
	if d.State() != netlink.Done {
		t.Errorf("got state %v, want %v", d.State(), netlink.Done)
	}
}

func TestConnMetrics(t *testing.T) {
	k := nltest.New(dumpHandler([]byte("a"), []byte("b")))
	m := netlink.NewMetrics()
	c := netlink.NewConn(k, netlink.WithMetrics(m))

	req, _ := netlink.NewRequest(kindThing+2, netlink.NLM_F_DUMP).Build()
	d, _ := c.Execute(req, kindThing)
	if _, err := d.Collect(); err != nil {
		t.Fatalf("error collecting: %v", err)
	}

	if got := testutil.ToFloat64(m.MessagesSent); got != 1 {
		t.Errorf("sent %v messages", got)
	}
	if got := testutil.ToFloat64(m.BytesWritten); got != netlink.HeaderLen {
		t.Errorf("wrote %v bytes", got)
	}
	// Two 17 byte replies padded to 20, then a 20 byte NLMSG_DONE.
	if got := testutil.ToFloat64(m.BytesRead); got != 60 {
		t.Errorf("read %v bytes", got)
	}
	if got := testutil.ToFloat64(m.MessagesReceived.WithLabelValues("data")); got != 2 {
		t.Errorf("received %v data messages", got)
	}

	// A broken header is counted once however many times it's tripped on.
	broken, _ := netlink.Header{Length: 4, Kind: netlink.NLMSG_NOOP}.MarshalBinary()
	k.QueueBytes(broken)
	for range 3 {
		if _, err := c.Receive(); !errors.Is(err, netlink.ErrMalformed) {
			t.Errorf("expected ErrMalformed, got %v", err)
		}
	}
	if got := testutil.ToFloat64(m.Malformed); got != 1 {
		t.Errorf("counted %v malformed streams", got)
	}
}

func TestConnClose(t *testing.T) {
	k := nltest.New(nil)
	c := netlink.NewConn(k)

	if err := c.Close(); err != nil {
		t.Fatalf("error closing: %v", err)
	}
	if c.Writable() {
		t.Errorf("writable after closing")
	}
	req, _ := netlink.NewRequest(kindThing, 0).Build()
	if _, err := c.Send(req); err == nil {
		t.Errorf("sent over a closed transport")
	}
}
