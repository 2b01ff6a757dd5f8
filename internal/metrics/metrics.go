package metrics

import (
	"net/http"
	"sort"
	"sync/atomic"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/roverlink/roverlink/internal/logring"
)

// Roles tracked by the connection gauge.
var Roles = []string{"ingest", "view", "logs", "robot"}

// Registry holds the relay's process counters. The zero value is not usable;
// call New.
type Registry struct {
	conns map[string]*atomic.Int64

	framesIngested atomic.Int64
	framesDropped  atomic.Int64
	bytesIngested  atomic.Int64

	logEntries atomic.Int64

	commandsDelivered   atomic.Int64
	commandsUndelivered atomic.Int64

	sendsDropped atomic.Int64
}

// New creates a Registry with a connection gauge per role.
func New() *Registry {
	m := &Registry{conns: make(map[string]*atomic.Int64, len(Roles))}
	for _, role := range Roles {
		m.conns[role] = &atomic.Int64{}
	}
	return m
}

// ConnOpened increments the connection gauge for role.
func (m *Registry) ConnOpened(role string) {
	if c, ok := m.conns[role]; ok {
		c.Add(1)
	}
}

// ConnClosed decrements the connection gauge for role.
func (m *Registry) ConnClosed(role string) {
	if c, ok := m.conns[role]; ok {
		c.Add(-1)
	}
}

// FrameIngested records one accepted frame of the given size.
func (m *Registry) FrameIngested(bytes int) {
	m.framesIngested.Add(1)
	m.bytesIngested.Add(int64(bytes))
}

// FrameDropped records one oversize frame dropped at ingest.
func (m *Registry) FrameDropped() { m.framesDropped.Add(1) }

// CommandDispatched records one robot command dispatch outcome.
func (m *Registry) CommandDispatched(delivered bool) {
	if delivered {
		m.commandsDelivered.Add(1)
	} else {
		m.commandsUndelivered.Add(1)
	}
}

// SendDropped records one fan-out message dropped on a full client buffer.
func (m *Registry) SendDropped() { m.sendsDropped.Add(1) }

// SendEntry implements logring.Subscriber: registering the Registry on the
// ring counts every appended entry without touching the ring itself.
func (m *Registry) SendEntry(logring.Entry) { m.logEntries.Add(1) }

// Handler returns an http.Handler serving the current counters in
// Prometheus text exposition format.
func (m *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		format := expfmt.NewFormat(expfmt.TypeTextPlain)
		w.Header().Set("Content-Type", string(format))

		enc := expfmt.NewEncoder(w, format)
		for _, mf := range m.gather() {
			if err := enc.Encode(mf); err != nil {
				return
			}
		}
	})
}

// gather assembles the metric families from the current counter values.
func (m *Registry) gather() []*dto.MetricFamily {
	connMetrics := make([]*dto.Metric, 0, len(m.conns))
	roles := make([]string, 0, len(m.conns))
	for role := range m.conns {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		connMetrics = append(connMetrics, &dto.Metric{
			Label: []*dto.LabelPair{labelPair("role", role)},
			Gauge: &dto.Gauge{Value: f64p(float64(m.conns[role].Load()))},
		})
	}

	return []*dto.MetricFamily{
		{
			Name:   strp("roverlink_connections"),
			Help:   strp("Active WebSocket connections by role."),
			Type:   dto.MetricType_GAUGE.Enum(),
			Metric: connMetrics,
		},
		counter("roverlink_frames_ingested_total",
			"Video frames accepted at ingest.", m.framesIngested.Load()),
		counter("roverlink_frames_dropped_total",
			"Video frames dropped for exceeding the size cap.", m.framesDropped.Load()),
		counter("roverlink_frames_ingested_bytes_total",
			"Bytes of video frames accepted at ingest.", m.bytesIngested.Load()),
		counter("roverlink_log_entries_total",
			"Entries appended to the log ring.", m.logEntries.Load()),
		counter("roverlink_robot_commands_delivered_total",
			"Robot commands delivered to at least one subscriber.", m.commandsDelivered.Load()),
		counter("roverlink_robot_commands_undelivered_total",
			"Robot commands dispatched with no robot online.", m.commandsUndelivered.Load()),
		counter("roverlink_sends_dropped_total",
			"Fan-out messages dropped on full client buffers.", m.sendsDropped.Load()),
	}
}

func counter(name, help string, v int64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: strp(name),
		Help: strp(help),
		Type: dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{
			{Counter: &dto.Counter{Value: f64p(float64(v))}},
		},
	}
}

func labelPair(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: strp(name), Value: strp(value)}
}

func strp(s string) *string   { return &s }
func f64p(f float64) *float64 { return &f }
