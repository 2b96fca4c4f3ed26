package netlink

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// Config describes how to open a netlink socket. Timeouts and buffer sizes
// live here because they're transport concerns: the protocol engine itself
// never waits on anything.
type Config struct {
	// Protocol is the netlink family handed to socket(2) (NETLINK_ROUTE...).
	Protocol int `yaml:"protocol"`

	// Groups is the multicast group bitmask to bind to.
	Groups uint32 `yaml:"groups"`

	// ReceiveBufferSize sets SO_RCVBUF when non-zero.
	ReceiveBufferSize int `yaml:"receiveBufferSize"`

	// ReadBufferSize is the size of each read off the socket. Datagrams
	// larger than this are reported as truncated.
	ReadBufferSize int `yaml:"readBufferSize"`

	// ReadTimeoutMs bounds every blocking read. 0 waits forever.
	ReadTimeoutMs int `yaml:"readTimeoutMs"`

	// NonBlocking makes reads and writes return ErrWouldBlock instead of
	// waiting, for use from an event loop polling Readable and Writable.
	NonBlocking bool `yaml:"nonBlocking"`

	// ExtendedAck asks the kernel for NETLINK_EXT_ACK error messages.
	ExtendedAck bool `yaml:"extendedAck"`

	// StrictCheck enables NETLINK_GET_STRICT_CHK request validation.
	StrictCheck bool `yaml:"strictCheck"`
}

var DefaultConfig = Config{
	Protocol:       NETLINK_ROUTE,
	ReadBufferSize: DefaultReadSize,
	ExtendedAck:    true,
}

func (c *Config) UnmarshalYAML(b []byte) error {
	// Needed to break recursive calls into UnmarshalYAML
	type config Config

	def := config(DefaultConfig)

	if err := yaml.Unmarshal(b, &def); err != nil {
		return err
	}

	if def.ReadBufferSize < 0 || def.ReceiveBufferSize < 0 || def.ReadTimeoutMs < 0 {
		return fmt.Errorf("buffer sizes and timeouts can't be negative")
	}
	if def.ReadBufferSize == 0 {
		def.ReadBufferSize = DefaultReadSize
	}

	*c = Config(def)

	return nil
}

func (c Config) String() string {
	m, err := yaml.MarshalWithOptions(c, yaml.Indent(2), yaml.IndentSequence(true))
	if err != nil {
		return "marshalling error..."
	}
	return string(m)
}

// ReadTimeout returns ReadTimeoutMs as a time.Duration.
func (c Config) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMs) * time.Millisecond
}

// ReadConf loads a Config from a YAML file. Missing keys keep their
// DefaultConfig values.
func ReadConf(path string) (*Config, error) {
	r, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading the configuration file: %w", err)
	}

	conf := DefaultConfig
	if err := yaml.Unmarshal(r, &conf); err != nil {
		return nil, fmt.Errorf("error unmarshaling the configuration: %w", err)
	}

	return &conf, nil
}
