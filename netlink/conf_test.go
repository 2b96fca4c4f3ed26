package netlink

import (
	"testing"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/google/go-cmp/cmp"
)

func TestReadConf(t *testing.T) {
	tests := map[string]Config{
		"defaults.yaml": DefaultConfig,
		"populated.yaml": {
			Protocol:          NETLINK_SOCK_DIAG,
			Groups:            1,
			ReceiveBufferSize: 1 << 20,
			ReadBufferSize:    64 * 1024,
			ReadTimeoutMs:     250,
			NonBlocking:       true,
			ExtendedAck:       false,
			StrictCheck:       true,
		},
		"partial.yaml": {
			Protocol:       NETLINK_ROUTE,
			Groups:         5,
			ReadBufferSize: DefaultReadSize,
			ExtendedAck:    true,
		},
	}

	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ReadConf("testdata/" + name)
			if err != nil {
				t.Fatalf("error parsing %q: %v", name, err)
			}
			t.Logf("%s:\n%s", name, got)

			if diff := cmp.Diff(want, *got); diff != "" {
				t.Errorf("configuration mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReadConfErrors(t *testing.T) {
	if _, err := ReadConf("testdata/negative.yaml"); err == nil {
		t.Errorf("accepted a negative timeout")
	}
	if _, err := ReadConf("testdata/missing.yaml"); err == nil {
		t.Errorf("read a file that doesn't exist")
	}
}

func TestConfRoundTrip(t *testing.T) {
	c := DefaultConfig
	c.Groups = 3
	c.ReadTimeoutMs = 1500

	var back Config
	if err := yaml.Unmarshal([]byte(c.String()), &back); err != nil {
		t.Fatalf("error unmarshalling %q: %v", c.String(), err)
	}
	if diff := cmp.Diff(c, back); diff != "" {
		t.Errorf("configuration mismatch (-want +got):\n%s", diff)
	}

	if back.ReadTimeout() != 1500*time.Millisecond {
		t.Errorf("got timeout %v", back.ReadTimeout())
	}
}
