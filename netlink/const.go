package netlink

// All of these constants' names make the linter complain, but we inherited
// these names from the kernel's include/uapi/linux/netlink.h, so we will keep
// them. Values are spelled out so that the core builds on any platform.
const (
	// Reserved message kinds shared by every netlink family.
	NLMSG_NOOP    Kind = 0x1
	NLMSG_ERROR   Kind = 0x2
	NLMSG_DONE    Kind = 0x3
	NLMSG_OVERRUN Kind = 0x4

	// NLMSG_MIN_TYPE is the first kind available to protocol families.
	NLMSG_MIN_TYPE Kind = 0x10
)

const (
	// Flags valid on every message.
	NLM_F_REQUEST       Flags = 0x1
	NLM_F_MULTI         Flags = 0x2
	NLM_F_ACK           Flags = 0x4
	NLM_F_ECHO          Flags = 0x8
	NLM_F_DUMP_INTR     Flags = 0x10
	NLM_F_DUMP_FILTERED Flags = 0x20

	// Modifiers to GET requests.
	NLM_F_ROOT   Flags = 0x100
	NLM_F_MATCH  Flags = 0x200
	NLM_F_ATOMIC Flags = 0x400
	NLM_F_DUMP   Flags = NLM_F_ROOT | NLM_F_MATCH

	// Modifiers to NEW requests.
	NLM_F_REPLACE Flags = 0x100
	NLM_F_EXCL    Flags = 0x200
	NLM_F_CREATE  Flags = 0x400
	NLM_F_APPEND  Flags = 0x800

	// Flags set by the kernel on NLMSG_ERROR acknowledgements.
	NLM_F_CAPPED   Flags = 0x100
	NLM_F_ACK_TLVS Flags = 0x200
)

const (
	// The two upper bits of an attribute's type are flags.
	NLA_F_NESTED        uint16 = 1 << 15
	NLA_F_NET_BYTEORDER uint16 = 1 << 14
	NLA_TYPE_MASK       uint16 = ^(NLA_F_NESTED | NLA_F_NET_BYTEORDER)
)

const (
	// Extended acknowledgement attributes as in enum nlmsgerr_attrs.
	NLMSGERR_ATTR_UNUSED = 0
	NLMSGERR_ATTR_MSG    = 1
	NLMSGERR_ATTR_OFFS   = 2
	NLMSGERR_ATTR_COOKIE = 3
)

const (
	// Protocol families passed to socket(2). Only the ones we've
	// actually needed are listed.
	NETLINK_ROUTE     = 0
	NETLINK_SOCK_DIAG = 4
	NETLINK_GENERIC   = 16
)

var (
	kindName = map[Kind]string{
		NLMSG_NOOP:    "NLMSG_NOOP",
		NLMSG_ERROR:   "NLMSG_ERROR",
		NLMSG_DONE:    "NLMSG_DONE",
		NLMSG_OVERRUN: "NLMSG_OVERRUN",
	}

	// Only the flags that hold their meaning regardless of the request's
	// verb are named. GET and NEW modifiers share bits.
	flagName = []struct {
		flag Flags
		name string
	}{
		{NLM_F_REQUEST, "NLM_F_REQUEST"},
		{NLM_F_MULTI, "NLM_F_MULTI"},
		{NLM_F_ACK, "NLM_F_ACK"},
		{NLM_F_ECHO, "NLM_F_ECHO"},
		{NLM_F_DUMP_INTR, "NLM_F_DUMP_INTR"},
		{NLM_F_DUMP_FILTERED, "NLM_F_DUMP_FILTERED"},
	}
)
