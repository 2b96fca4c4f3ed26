package rtnl

import (
	"fmt"
	"log/slog"

	"github.com/scitags/nlcore/netlink"
)

// Client issues link requests over a netlink connection. Like the
// connection itself it's not safe for concurrent use.
type Client struct {
	conn *netlink.Conn
}

func NewClient(c *netlink.Conn) *Client {
	return &Client{conn: c}
}

// Dial opens a NETLINK_ROUTE socket. The protocol in cfg, if any, is
// overridden.
func Dial(cfg *netlink.Config) (*Client, error) {
	conf := netlink.DefaultConfig
	if cfg != nil {
		conf = *cfg
	}
	conf.Protocol = netlink.NETLINK_ROUTE

	c, err := netlink.Dial(&conf)
	if err != nil {
		return nil, fmt.Errorf("couldn't open a rtnetlink connection: %w", err)
	}
	return NewClient(c), nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func ifInfo(index int) []byte {
	b, _ := IfInfo{Family: AF_UNSPEC, Index: int32(index)}.MarshalBinary()
	return b
}

// execute sends the request and collects the link messages it gets back.
func (c *Client) execute(b *netlink.RequestBuilder) ([]*Link, error) {
	req, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("error building the request: %w", err)
	}

	dump, err := c.conn.Execute(req, RTM_NEWLINK)
	if err != nil {
		return nil, fmt.Errorf("error sending the request: %w", err)
	}

	msgs, err := dump.Collect()
	if err != nil {
		return nil, err
	}
	if dump.Interrupted() {
		slog.Warn("link dump interrupted, results may be inconsistent", "links", len(msgs))
	}

	links := make([]*Link, 0, len(msgs))
	for _, m := range msgs {
		l, err := ParseLink(m)
		if err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, nil
}

// Links dumps every interface on the system.
func (c *Client) Links() ([]*Link, error) {
	links, err := c.execute(netlink.NewRequest(RTM_GETLINK, netlink.NLM_F_DUMP).Append(ifInfo(0)))
	if err != nil {
		return nil, fmt.Errorf("error dumping links: %w", err)
	}
	slog.Debug("dumped links", "n", len(links))
	return links, nil
}

// LinkByIndex fetches a single interface.
func (c *Client) LinkByIndex(index int) (*Link, error) {
	links, err := c.execute(netlink.NewRequest(RTM_GETLINK, netlink.NLM_F_ACK).Append(ifInfo(index)))
	if err != nil {
		return nil, fmt.Errorf("error getting link %d: %w", index, err)
	}
	if len(links) == 0 {
		return nil, fmt.Errorf("link %d: %w", index, ErrNotFound)
	}
	return links[len(links)-1], nil
}

// LinkByName fetches a single interface by its name.
func (c *Client) LinkByName(name string) (*Link, error) {
	ae := netlink.NewAttributeEncoder()
	ae.String(IFLA_IFNAME, name)

	links, err := c.execute(netlink.NewRequest(RTM_GETLINK, netlink.NLM_F_ACK).
		Append(ifInfo(0)).
		AppendEncoder(ae))
	if err != nil {
		return nil, fmt.Errorf("error getting link %q: %w", name, err)
	}
	if len(links) == 0 {
		return nil, fmt.Errorf("link %q: %w", name, ErrNotFound)
	}
	return links[len(links)-1], nil
}

// NewDummyLink creates a dummy interface and returns it as the kernel sees
// it afterwards. An existing interface of the same name is an error
// (syscall.EEXIST).
func (c *Client) NewDummyLink(name string) (*Link, error) {
	ae := netlink.NewAttributeEncoder()
	ae.String(IFLA_IFNAME, name)
	ae.Nest(IFLA_LINKINFO, func(nae *netlink.AttributeEncoder) {
		nae.String(IFLA_INFO_KIND, "dummy")
	})

	flags := netlink.NLM_F_CREATE | netlink.NLM_F_EXCL | netlink.NLM_F_ACK
	if _, err := c.execute(netlink.NewRequest(RTM_NEWLINK, flags).Append(ifInfo(0)).AppendEncoder(ae)); err != nil {
		return nil, fmt.Errorf("error creating dummy link %q: %w", name, err)
	}
	slog.Debug("created dummy link", "name", name)

	return c.LinkByName(name)
}

// DeleteLink removes an interface.
func (c *Client) DeleteLink(index int) error {
	if _, err := c.execute(netlink.NewRequest(RTM_DELLINK, netlink.NLM_F_ACK).Append(ifInfo(index))); err != nil {
		return fmt.Errorf("error deleting link %d: %w", index, err)
	}
	slog.Debug("deleted link", "index", index)
	return nil
}
