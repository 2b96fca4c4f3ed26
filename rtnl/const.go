package rtnl

import "github.com/scitags/nlcore/netlink"

// Names are those of include/uapi/linux/rtnetlink.h and if_link.h; the
// linter will complain but grepping the kernel sources is easier this way.
const (
	RTM_NEWLINK netlink.Kind = 16
	RTM_DELLINK netlink.Kind = 17
	RTM_GETLINK netlink.Kind = 18
	RTM_SETLINK netlink.Kind = 19
)

const (
	IFLA_UNSPEC    uint16 = 0
	IFLA_ADDRESS   uint16 = 1
	IFLA_BROADCAST uint16 = 2
	IFLA_IFNAME    uint16 = 3
	IFLA_MTU       uint16 = 4
	IFLA_LINK      uint16 = 5
	IFLA_QDISC     uint16 = 6
	IFLA_STATS     uint16 = 7
	IFLA_MASTER    uint16 = 10
	IFLA_TXQLEN    uint16 = 13
	IFLA_OPERSTATE uint16 = 16
	IFLA_LINKMODE  uint16 = 17
	IFLA_LINKINFO  uint16 = 18
)

// Nested within IFLA_LINKINFO.
const (
	IFLA_INFO_UNSPEC     uint16 = 0
	IFLA_INFO_KIND       uint16 = 1
	IFLA_INFO_DATA       uint16 = 2
	IFLA_INFO_XSTATS     uint16 = 3
	IFLA_INFO_SLAVE_KIND uint16 = 4
	IFLA_INFO_SLAVE_DATA uint16 = 5
)

const AF_UNSPEC = 0

// ARPHRD_* values we map onto IfType.
const (
	ARPHRD_NETROM   uint16 = 0
	ARPHRD_ETHER    uint16 = 1
	ARPHRD_TUNNEL   uint16 = 768
	ARPHRD_TUNNEL6  uint16 = 769
	ARPHRD_LOOPBACK uint16 = 772
	ARPHRD_SIT      uint16 = 776
	ARPHRD_IPGRE    uint16 = 778
	ARPHRD_NONE     uint16 = 0xFFFE
)
