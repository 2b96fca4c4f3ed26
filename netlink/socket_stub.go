//go:build !linux

package netlink

// Dial is only available on Linux. The rest of the package (framing,
// decoding, dumps) works anywhere, which is what lets it be exercised with
// in-memory transports.
func Dial(cfg *Config, opts ...ConnOption) (*Conn, error) {
	return nil, ErrNotSupported
}
