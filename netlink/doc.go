// Package netlink implements the user-space side of the Linux netlink wire
// protocol: message framing, type-length-value attributes, request building,
// a buffered stream decoder and the multi-message dump protocol. Be sure to
// check netlink(7) and rtnetlink(7) for the kernel's side of things.
//
// The package is built in layers. Message and Attribute are views over byte
// buffers; ParseMessage and AttributeIterator never copy. A RequestBuilder
// assembles a single, correctly padded request. A Decoder pulls bytes off a
// Transport and hands out complete messages, signalling ErrNeedMore instead of
// failing when a read stops halfway through a message. A Dump layers the
// termination policy of a request's replies on top of any message Source:
// NLMSG_DONE ends it, NLMSG_ERROR either acknowledges or fails it and a reply
// of an unexpected kind ends it quietly.
//
// Every length in the protocol is padded to a 4 byte boundary on the wire
// while the length fields themselves report the unpadded size. Align is the
// only place where that rounding happens; everything else calls into it.
//
// Nothing in here is safe for concurrent use. A Conn, its Decoder and the
// Dumps it hands out belong to a single caller at a time.
package netlink
