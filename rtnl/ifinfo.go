package rtnl

import (
	"fmt"
	"strings"

	"github.com/josharian/native"
)

// IfInfoLen is sizeof(struct ifinfomsg).
const IfInfoLen = 16

// IfInfo is the fixed header leading every link message.
//
//	struct ifinfomsg {
//		unsigned char  ifi_family;
//		unsigned char  __ifi_pad;
//		unsigned short ifi_type;
//		int            ifi_index;
//		unsigned       ifi_flags;
//		unsigned       ifi_change;
//	};
type IfInfo struct {
	Family uint8
	Type   uint16
	Index  int32
	Flags  IfFlags
	Change uint32
}

func (i IfInfo) MarshalBinary() ([]byte, error) {
	b := make([]byte, IfInfoLen)
	b[0] = i.Family
	native.Endian.PutUint16(b[2:4], i.Type)
	native.Endian.PutUint32(b[4:8], uint32(i.Index))
	native.Endian.PutUint32(b[8:12], uint32(i.Flags))
	native.Endian.PutUint32(b[12:16], i.Change)
	return b, nil
}

func (i *IfInfo) UnmarshalBinary(b []byte) error {
	if len(b) < IfInfoLen {
		return fmt.Errorf("ifinfomsg needs %d bytes, got %d", IfInfoLen, len(b))
	}
	i.Family = b[0]
	i.Type = native.Endian.Uint16(b[2:4])
	i.Index = int32(native.Endian.Uint32(b[4:8]))
	i.Flags = IfFlags(native.Endian.Uint32(b[8:12]))
	i.Change = native.Endian.Uint32(b[12:16])
	return nil
}

// IfFlags mirrors the IFF_* device flags.
type IfFlags uint32

const (
	IFF_UP          IfFlags = 0x1
	IFF_BROADCAST   IfFlags = 0x2
	IFF_DEBUG       IfFlags = 0x4
	IFF_LOOPBACK    IfFlags = 0x8
	IFF_POINTOPOINT IfFlags = 0x10
	IFF_NOTRAILERS  IfFlags = 0x20
	IFF_RUNNING     IfFlags = 0x40
	IFF_NOARP       IfFlags = 0x80
	IFF_PROMISC     IfFlags = 0x100
	IFF_ALLMULTI    IfFlags = 0x200
	IFF_MASTER      IfFlags = 0x400
	IFF_SLAVE       IfFlags = 0x800
	IFF_MULTICAST   IfFlags = 0x1000
	IFF_PORTSEL     IfFlags = 0x2000
	IFF_AUTOMEDIA   IfFlags = 0x4000
	IFF_DYNAMIC     IfFlags = 0x8000
	IFF_LOWER_UP    IfFlags = 0x10000
	IFF_DORMANT     IfFlags = 0x20000
	IFF_ECHO        IfFlags = 0x40000
)

var ifFlagNames = []string{
	"UP", "BROADCAST", "DEBUG", "LOOPBACK", "POINTOPOINT", "NOTRAILERS",
	"RUNNING", "NOARP", "PROMISC", "ALLMULTI", "MASTER", "SLAVE",
	"MULTICAST", "PORTSEL", "AUTOMEDIA", "DYNAMIC", "LOWER_UP", "DORMANT",
	"ECHO",
}

// String renders the flags the way ip-link(8) does, e.g. "UP|LOWER_UP".
func (f IfFlags) String() string {
	names := []string{}
	for i, name := range ifFlagNames {
		if f&(1<<i) != 0 {
			names = append(names, name)
		}
	}
	if rest := f &^ (1<<len(ifFlagNames) - 1); rest != 0 {
		names = append(names, fmt.Sprintf("%#x", uint32(rest)))
	}
	return strings.Join(names, "|")
}

// IfType is the link layer type of an interface. Only the handful of
// hardware types we come across are told apart; everything else is
// IfTypeUnknown and the raw value remains available through Link.RawType.
type IfType int

const (
	IfTypeUnknown IfType = iota
	IfTypeGeneric
	IfTypeEther
	IfTypeLoopback
	IfTypeTunnel
	IfTypeTunnel6
	IfTypeSit
	IfTypeGRE
	IfTypeNone
)

// IfTypeFromRaw maps an ARPHRD_* value onto an IfType.
func IfTypeFromRaw(t uint16) IfType {
	switch t {
	case ARPHRD_NETROM:
		return IfTypeGeneric
	case ARPHRD_ETHER:
		return IfTypeEther
	case ARPHRD_LOOPBACK:
		return IfTypeLoopback
	case ARPHRD_TUNNEL:
		return IfTypeTunnel
	case ARPHRD_TUNNEL6:
		return IfTypeTunnel6
	case ARPHRD_SIT:
		return IfTypeSit
	case ARPHRD_IPGRE:
		return IfTypeGRE
	case ARPHRD_NONE:
		return IfTypeNone
	}
	return IfTypeUnknown
}

func (t IfType) String() string {
	switch t {
	case IfTypeGeneric:
		return "generic"
	case IfTypeEther:
		return "ether"
	case IfTypeLoopback:
		return "loopback"
	case IfTypeTunnel:
		return "ipip"
	case IfTypeTunnel6:
		return "tunnel6"
	case IfTypeSit:
		return "sit"
	case IfTypeGRE:
		return "gre"
	case IfTypeNone:
		return "none"
	}
	return "unknown"
}

// OperState is RFC 2863's operational status as reported in IFLA_OPERSTATE.
type OperState uint8

const (
	OperUnknown OperState = iota
	OperNotPresent
	OperDown
	OperLowerLayerDown
	OperTesting
	OperDormant
	OperUp
)

// OperStateFromByte maps the attribute's byte onto an OperState. Values the
// kernel might add in the future come back as OperUnknown.
func OperStateFromByte(b uint8) OperState {
	switch OperState(b) {
	case OperNotPresent, OperDown, OperLowerLayerDown, OperTesting, OperDormant, OperUp:
		return OperState(b)
	}
	return OperUnknown
}

func (s OperState) String() string {
	switch s {
	case OperNotPresent:
		return "NOTPRESENT"
	case OperDown:
		return "DOWN"
	case OperLowerLayerDown:
		return "LOWERLAYERDOWN"
	case OperTesting:
		return "TESTING"
	case OperDormant:
		return "DORMANT"
	case OperUp:
		return "UP"
	}
	return "UNKNOWN"
}
