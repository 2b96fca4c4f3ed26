package rtnl

import (
	"errors"
	"log/slog"
	"net"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/scitags/nlcore/internal/logging"
	"github.com/scitags/nlcore/netlink"
)

func init() {
	slog.SetDefault(slog.New(logging.NewHandler(os.Stderr, slog.LevelError)))
}

func linkPayload(t *testing.T, info IfInfo, attrs func(*netlink.AttributeEncoder)) []byte {
	t.Helper()
	b, err := info.MarshalBinary()
	if err != nil {
		t.Fatalf("error marshalling ifinfomsg: %v", err)
	}
	if attrs == nil {
		return b
	}

	ae := netlink.NewAttributeEncoder()
	attrs(ae)
	ab, err := ae.Encode()
	if err != nil {
		t.Fatalf("error encoding attributes: %v", err)
	}
	return append(b, ab...)
}

func linkMessage(payload []byte) netlink.Message {
	return netlink.Message{
		Header:  netlink.Header{Length: uint32(netlink.HeaderLen + len(payload)), Kind: RTM_NEWLINK},
		Payload: payload,
	}
}

var mac = net.HardwareAddr{0x02, 0x42, 0xac, 0x11, 0x00, 0x02}

func TestIfInfo(t *testing.T) {
	want := IfInfo{Family: 0, Type: ARPHRD_ETHER, Index: 7, Flags: IFF_UP | IFF_BROADCAST | IFF_LOWER_UP, Change: 0xffffffff}

	b, err := want.MarshalBinary()
	if err != nil {
		t.Fatalf("error marshalling: %v", err)
	}
	if len(b) != IfInfoLen {
		t.Fatalf("got %d bytes, want %d", len(b), IfInfoLen)
	}

	var got IfInfo
	if err := got.UnmarshalBinary(b); err != nil {
		t.Fatalf("error unmarshalling: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ifinfomsg mismatch (-want +got):\n%s", diff)
	}

	if err := got.UnmarshalBinary(b[:IfInfoLen-1]); err == nil {
		t.Errorf("unmarshalled a short ifinfomsg")
	}
}

func TestLinkView(t *testing.T) {
	p := linkPayload(t, IfInfo{Type: ARPHRD_ETHER, Index: 3, Flags: IFF_UP | IFF_RUNNING}, func(ae *netlink.AttributeEncoder) {
		ae.String(IFLA_IFNAME, "eth0")
		ae.Bytes(IFLA_ADDRESS, mac)
		ae.Bytes(IFLA_BROADCAST, net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff})
		ae.Uint32(IFLA_MTU, 9000)
		ae.String(IFLA_QDISC, "fq_codel")
		ae.Uint8(IFLA_OPERSTATE, uint8(OperUp))
		ae.Nest(IFLA_LINKINFO, func(nae *netlink.AttributeEncoder) {
			nae.String(IFLA_INFO_KIND, "veth")
		})
	})

	l, err := ParseLink(linkMessage(p))
	if err != nil {
		t.Fatalf("error parsing: %v", err)
	}

	if l.Index() != 3 || l.Type() != IfTypeEther || l.RawType() != ARPHRD_ETHER || l.Flags() != IFF_UP|IFF_RUNNING {
		t.Errorf("unexpected header %+v", l.Info())
	}

	if name, err := l.Name(); err != nil || name != "eth0" {
		t.Errorf("name: %q, %v", name, err)
	}
	if addr, err := l.HardwareAddr(); err != nil || addr.String() != mac.String() {
		t.Errorf("address: %v, %v", addr, err)
	}
	if addr, err := l.Broadcast(); err != nil || addr.String() != "ff:ff:ff:ff:ff:ff" {
		t.Errorf("broadcast: %v, %v", addr, err)
	}
	if mtu, err := l.MTU(); err != nil || mtu != 9000 {
		t.Errorf("mtu: %d, %v", mtu, err)
	}
	if q, err := l.QueueDisc(); err != nil || q != "fq_codel" {
		t.Errorf("qdisc: %q, %v", q, err)
	}
	if s, err := l.OperState(); err != nil || s != OperUp {
		t.Errorf("operstate: %v, %v", s, err)
	}
	if k, err := l.Kind(); err != nil || k != "veth" {
		t.Errorf("kind: %q, %v", k, err)
	}

	if s := l.String(); s != "3: eth0 <UP|RUNNING> type ether" {
		t.Errorf("got %q", s)
	}
}

func TestLinkMissingAttributes(t *testing.T) {
	l, err := ParseLink(linkMessage(linkPayload(t, IfInfo{Type: ARPHRD_LOOPBACK, Index: 1}, nil)))
	if err != nil {
		t.Fatalf("error parsing: %v", err)
	}

	if _, err := l.Name(); !errors.Is(err, ErrNoAttribute) {
		t.Errorf("name: expected ErrNoAttribute, got %v", err)
	}
	if _, err := l.MTU(); !errors.Is(err, ErrNoAttribute) {
		t.Errorf("mtu: expected ErrNoAttribute, got %v", err)
	}
	if s, err := l.OperState(); !errors.Is(err, ErrNoAttribute) || s != OperUnknown {
		t.Errorf("operstate: expected ErrNoAttribute, got %v, %v", s, err)
	}
	if _, err := l.Kind(); !errors.Is(err, ErrNoAttribute) {
		t.Errorf("kind: expected ErrNoAttribute, got %v", err)
	}
	if s := l.String(); s != "1: ? <> type loopback" {
		t.Errorf("got %q", s)
	}
}

func TestLinkBadAttributes(t *testing.T) {
	p := linkPayload(t, IfInfo{Index: 4}, func(ae *netlink.AttributeEncoder) {
		ae.Bytes(IFLA_IFNAME, []byte("unterminated"))
		ae.Uint16(IFLA_MTU, 1500)
	})
	l, err := ParseLink(linkMessage(p))
	if err != nil {
		t.Fatalf("error parsing: %v", err)
	}

	if _, err := l.Name(); !errors.Is(err, netlink.ErrNotTerminated) {
		t.Errorf("expected ErrNotTerminated, got %v", err)
	}
	if _, err := l.MTU(); !errors.Is(err, netlink.ErrAttributeSize) {
		t.Errorf("expected ErrAttributeSize, got %v", err)
	}

	// An attribute claiming more bytes than there are.
	p = linkPayload(t, IfInfo{Index: 4}, nil)
	p = append(p, 0xff, 0x00, 0x03, 0x00)
	l, err = ParseLink(linkMessage(p))
	if err != nil {
		t.Fatalf("error parsing: %v", err)
	}
	if _, err := l.Name(); !errors.Is(err, netlink.ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}

func TestParseLinkRejects(t *testing.T) {
	if _, err := ParseLink(netlink.Message{Header: netlink.Header{Kind: RTM_GETLINK}, Payload: make([]byte, IfInfoLen)}); !errors.Is(err, ErrNotLink) {
		t.Errorf("expected ErrNotLink, got %v", err)
	}
	if _, err := ParseLink(netlink.Message{Header: netlink.Header{Kind: RTM_NEWLINK}, Payload: make([]byte, 8)}); !errors.Is(err, ErrNotLink) {
		t.Errorf("expected ErrNotLink, got %v", err)
	}
}

func TestOperStateFromByte(t *testing.T) {
	tests := map[uint8]OperState{
		0: OperUnknown, 1: OperNotPresent, 2: OperDown, 3: OperLowerLayerDown,
		4: OperTesting, 5: OperDormant, 6: OperUp, 7: OperUnknown, 0xff: OperUnknown,
	}
	for b, want := range tests {
		if got := OperStateFromByte(b); got != want {
			t.Errorf("OperStateFromByte(%d) = %v, want %v", b, got, want)
		}
	}
	if OperLowerLayerDown.String() != "LOWERLAYERDOWN" || OperState(42).String() != "UNKNOWN" {
		t.Errorf("unexpected names")
	}
}

func TestIfTypeFromRaw(t *testing.T) {
	tests := map[uint16]IfType{
		ARPHRD_NETROM:   IfTypeGeneric,
		ARPHRD_ETHER:    IfTypeEther,
		ARPHRD_LOOPBACK: IfTypeLoopback,
		ARPHRD_IPGRE:    IfTypeGRE,
		ARPHRD_NONE:     IfTypeNone,
		32:              IfTypeUnknown,
		0xffff:          IfTypeUnknown,
	}
	for raw, want := range tests {
		if got := IfTypeFromRaw(raw); got != want {
			t.Errorf("IfTypeFromRaw(%d) = %v, want %v", raw, got, want)
		}
	}
}

func TestIfFlagsString(t *testing.T) {
	tests := map[IfFlags]string{
		0:                                   "",
		IFF_UP:                              "UP",
		IFF_UP | IFF_LOOPBACK | IFF_RUNNING: "UP|LOOPBACK|RUNNING",
		IFF_LOWER_UP | IFF_ECHO:             "LOWER_UP|ECHO",
		IFF_UP | 0x100000:                   "UP|0x100000",
	}
	for f, want := range tests {
		if got := f.String(); got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
}
