package rtnl

import (
	"errors"
	"fmt"
	"net"

	"github.com/scitags/nlcore/netlink"
)

var (
	ErrNoAttribute = errors.New("rtnl: attribute not present")
	ErrNotLink     = errors.New("rtnl: not a link message")
	ErrNotFound    = errors.New("rtnl: no such link")
)

// Link is a view over an RTM_NEWLINK (or RTM_DELLINK) message. The fixed
// header is decoded up front; attributes are looked up on demand.
type Link struct {
	msg  netlink.Message
	info IfInfo
}

// ParseLink wraps m. Its payload must at least hold an ifinfomsg.
func ParseLink(m netlink.Message) (*Link, error) {
	if m.Header.Kind != RTM_NEWLINK && m.Header.Kind != RTM_DELLINK {
		return nil, fmt.Errorf("got a message of kind %v: %w", m.Header.Kind, ErrNotLink)
	}

	l := &Link{msg: m}
	if err := l.info.UnmarshalBinary(m.Payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotLink, err)
	}
	return l, nil
}

func (l *Link) Message() netlink.Message {
	return l.msg
}

func (l *Link) Info() IfInfo {
	return l.info
}

func (l *Link) Index() int {
	return int(l.info.Index)
}

func (l *Link) Type() IfType {
	return IfTypeFromRaw(l.info.Type)
}

// RawType returns the ARPHRD_* value as sent by the kernel.
func (l *Link) RawType() uint16 {
	return l.info.Type
}

func (l *Link) Flags() IfFlags {
	return l.info.Flags
}

// Attributes iterates over the link's attributes.
func (l *Link) Attributes() *netlink.AttributeIterator {
	return l.msg.Attributes(IfInfoLen)
}

func (l *Link) attr(typ uint16) (netlink.Attribute, error) {
	it := l.Attributes()
	for it.Next() {
		if a := it.Attribute(); a.Kind() == typ {
			return a, nil
		}
	}
	if err := it.Err(); err != nil {
		return netlink.Attribute{}, err
	}
	return netlink.Attribute{}, fmt.Errorf("attribute %d: %w", typ, ErrNoAttribute)
}

func (l *Link) hwAddr(typ uint16) (net.HardwareAddr, error) {
	a, err := l.attr(typ)
	if err != nil {
		return nil, err
	}
	return net.HardwareAddr(append([]byte{}, a.Payload...)), nil
}

// HardwareAddr returns IFLA_ADDRESS.
func (l *Link) HardwareAddr() (net.HardwareAddr, error) {
	return l.hwAddr(IFLA_ADDRESS)
}

// Broadcast returns IFLA_BROADCAST.
func (l *Link) Broadcast() (net.HardwareAddr, error) {
	return l.hwAddr(IFLA_BROADCAST)
}

func (l *Link) MTU() (uint32, error) {
	a, err := l.attr(IFLA_MTU)
	if err != nil {
		return 0, err
	}
	return a.Uint32()
}

func (l *Link) Name() (string, error) {
	a, err := l.attr(IFLA_IFNAME)
	if err != nil {
		return "", err
	}
	return a.CString()
}

func (l *Link) QueueDisc() (string, error) {
	a, err := l.attr(IFLA_QDISC)
	if err != nil {
		return "", err
	}
	return a.CString()
}

func (l *Link) OperState() (OperState, error) {
	a, err := l.attr(IFLA_OPERSTATE)
	if err != nil {
		return OperUnknown, err
	}
	b, err := a.Uint8()
	if err != nil {
		return OperUnknown, err
	}
	return OperStateFromByte(b), nil
}

// Kind returns the driver name found in IFLA_LINKINFO, such as "dummy" or
// "veth". Physical devices don't carry one.
func (l *Link) Kind() (string, error) {
	info, err := l.attr(IFLA_LINKINFO)
	if err != nil {
		return "", err
	}

	it := info.Attributes()
	for it.Next() {
		if a := it.Attribute(); a.Kind() == IFLA_INFO_KIND {
			return a.CString()
		}
	}
	if err := it.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("attribute %d within %d: %w", IFLA_INFO_KIND, IFLA_LINKINFO, ErrNoAttribute)
}

// String is meant for logging and never fails.
func (l *Link) String() string {
	name, err := l.Name()
	if err != nil {
		name = "?"
	}
	return fmt.Sprintf("%d: %s <%v> type %v", l.Index(), name, l.Flags(), l.Type())
}
