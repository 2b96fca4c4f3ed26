// Package rtnl speaks the link half of rtnetlink (NETLINK_ROUTE) on top of
// package netlink: listing interfaces, looking them up by index or name and
// creating or removing dummy links.
//
// Messages handed out by the Client are views over RTM_NEWLINK replies:
// attributes are only decoded when asked for, and a missing attribute is
// reported with ErrNoAttribute rather than a zero value.
package rtnl
