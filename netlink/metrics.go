package netlink

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/scitags/nlcore/internal/logging"
)

// Metric labels (note these are **always** strings):
//
//	kind: "data" for family messages or the lowercased sentinel name
//	errno: the kernel's status code for failed requests
var (
	kindLabels  = []string{"kind"}
	errnoLabels = []string{"errno"}
)

// Metrics instruments a Conn. All fields must be prometheus.Collectors:
// Register walks them through reflection.
type Metrics struct {
	MessagesReceived *prometheus.CounterVec
	MessagesSent     prometheus.Counter

	BytesRead    prometheus.Counter
	BytesWritten prometheus.Counter

	KernelErrors *prometheus.CounterVec
	Malformed    prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netlink_messages_received_total",
			Help: "Decoded netlink messages by kind",
		}, kindLabels),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netlink_messages_sent_total",
			Help: "Requests written to the transport",
		}),

		BytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netlink_read_bytes_total",
			Help: "Bytes read off the transport [B]",
		}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netlink_written_bytes_total",
			Help: "Bytes written to the transport [B]",
		}),

		KernelErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netlink_kernel_errors_total",
			Help: "NLMSG_ERROR replies carrying a non-zero status",
		}, errnoLabels),
		Malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netlink_malformed_total",
			Help: "Streams abandoned because of broken framing",
		}),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	v := reflect.ValueOf(*m)

	i := 0
	for i = 0; i < v.NumField(); i++ {
		vv, ok := v.Field(i).Interface().(prometheus.Collector)
		if !ok {
			return fmt.Errorf("error casting the interface for index %d", i)
		}
		if err := reg.Register(vv); err != nil {
			return fmt.Errorf("error registering index %d: %w", i, err)
		}
	}
	slog.Log(context.Background(), logging.LevelTrace, "registered collectors", "i", i)

	return nil
}

// observe accounts for a message handed out by the decoder.
func (m *Metrics) observe(msg Message) {
	switch msg.Header.Kind {
	case NLMSG_NOOP:
		m.MessagesReceived.WithLabelValues("noop").Inc()
	case NLMSG_DONE:
		m.MessagesReceived.WithLabelValues("done").Inc()
	case NLMSG_OVERRUN:
		m.MessagesReceived.WithLabelValues("overrun").Inc()
	case NLMSG_ERROR:
		code, ok := statusCode(msg.Payload)
		if ok && code != 0 {
			m.MessagesReceived.WithLabelValues("error").Inc()
			m.KernelErrors.WithLabelValues(strconv.Itoa(int(statusErrno(code)))).Inc()
			return
		}
		m.MessagesReceived.WithLabelValues("ack").Inc()
	default:
		m.MessagesReceived.WithLabelValues("data").Inc()
	}
}
