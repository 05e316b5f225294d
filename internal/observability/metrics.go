package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the desk's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
//
// Metrics:
//   - desk_reloads_total{outcome}
//   - desk_reload_duration_seconds
//   - desk_mutations_total{op,outcome}
//   - desk_rollbacks_total{op}
//   - desk_push_events_total{kind}
//   - desk_push_frames_dropped_total
//   - desk_reconnect_attempts_total
//   - desk_connection_state{state}
//   - desk_cache_tickets
//   - desk_stale_writes_total
//   - desk_http_requests_total{route,method,status}
//   - desk_http_errors_total{route,method,code}
type Metrics struct {
	reloads        *prometheus.CounterVec
	reloadDuration prometheus.Histogram
	mutations      *prometheus.CounterVec
	rollbacks      *prometheus.CounterVec
	pushEvents     *prometheus.CounterVec
	droppedFrames  prometheus.Counter
	reconnects     prometheus.Counter
	connState      *prometheus.GaugeVec
	cacheTickets   prometheus.Gauge
	staleWrites    prometheus.Counter
	httpRequests   *prometheus.CounterVec
	httpErrors     *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		reloads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "desk_reloads_total",
			Help: "Snapshot reloads by outcome",
		}, []string{"outcome"}),
		reloadDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "desk_reload_duration_seconds",
			Help:    "Duration of snapshot reloads",
			Buckets: prometheus.DefBuckets,
		}),
		mutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "desk_mutations_total",
			Help: "Ticket mutations by operation and outcome",
		}, []string{"op", "outcome"}),
		rollbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "desk_rollbacks_total",
			Help: "Optimistic mutations rolled back",
		}, []string{"op"}),
		pushEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "desk_push_events_total",
			Help: "Push events received by kind",
		}, []string{"kind"}),
		droppedFrames: f.NewCounter(prometheus.CounterOpts{
			Name: "desk_push_frames_dropped_total",
			Help: "Push frames dropped as malformed",
		}),
		reconnects: f.NewCounter(prometheus.CounterOpts{
			Name: "desk_reconnect_attempts_total",
			Help: "Push channel reconnect attempts",
		}),
		connState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "desk_connection_state",
			Help: "1 for the current push channel state",
		}, []string{"state"}),
		cacheTickets: f.NewGauge(prometheus.GaugeOpts{
			Name: "desk_cache_tickets",
			Help: "Tickets held in the cache",
		}),
		staleWrites: f.NewCounter(prometheus.CounterOpts{
			Name: "desk_stale_writes_total",
			Help: "Cache writes rejected for carrying a stale revision",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "desk_http_requests_total",
			Help: "HTTP requests served",
		}, []string{"route", "method", "status"}),
		httpErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "desk_http_errors_total",
			Help: "HTTP requests that ended in a domain error",
		}, []string{"route", "method", "code"}),
	}
}

// RecordReload counts one reload.
func (m *Metrics) RecordReload(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.reloads.WithLabelValues(outcome).Inc()
	m.reloadDuration.Observe(duration.Seconds())
}

// RecordMutation counts one mutation.
func (m *Metrics) RecordMutation(op, outcome string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op, outcome).Inc()
}

// RecordRollback counts one rollback.
func (m *Metrics) RecordRollback(op string) {
	if m == nil {
		return
	}
	m.rollbacks.WithLabelValues(op).Inc()
}

// RecordPushEvent counts one push event.
func (m *Metrics) RecordPushEvent(kind string) {
	if m == nil {
		return
	}
	m.pushEvents.WithLabelValues(kind).Inc()
}

// RecordDroppedFrame counts one malformed frame.
func (m *Metrics) RecordDroppedFrame() {
	if m == nil {
		return
	}
	m.droppedFrames.Inc()
}

// RecordReconnect counts one reconnect attempt.
func (m *Metrics) RecordReconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

// SetConnectionState marks state as current among states.
func (m *Metrics) SetConnectionState(state string, states []string) {
	if m == nil {
		return
	}
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		m.connState.WithLabelValues(s).Set(v)
	}
}

// SetCacheSize records the cache size.
func (m *Metrics) SetCacheSize(n int) {
	if m == nil {
		return
	}
	m.cacheTickets.Set(float64(n))
}

// RecordStaleWrite counts one rejected cache write.
func (m *Metrics) RecordStaleWrite() {
	if m == nil {
		return
	}
	m.staleWrites.Inc()
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.httpErrors.WithLabelValues(route, method, code).Inc()
}
