package netlink

// AlignTo is the boundary messages and attributes are padded to. The kernel
// calls it NLMSG_ALIGNTO and NLA_ALIGNTO; both happen to be 4.
const AlignTo = 4

// Align rounds n up to the next multiple of AlignTo. Every offset computation
// in this package goes through here: getting it wrong in a single place is
// enough to desynchronise a whole stream.
func Align(n int) int {
	return ((n + AlignTo - 1) / AlignTo) * AlignTo
}

// padding returns how many zero bytes follow n bytes of content.
func padding(n int) int {
	return Align(n) - n
}
