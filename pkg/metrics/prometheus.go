package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP Request Metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge
	httpRequestTimeouts  *prometheus.CounterVec

	// WebSocket Metrics
	websocketConnections   prometheus.Gauge
	websocketMessagesTotal *prometheus.CounterVec

	// Presence Metrics
	presenceOnline prometheus.Gauge

	// Call Metrics
	callsTotal       *prometheus.CounterVec
	callsActive      prometheus.Gauge
	callsDuration    *prometheus.HistogramVec
	callsFailedTotal *prometheus.CounterVec

	// Messaging Metrics
	messagesTotal      prometheus.Counter
	notificationsTotal *prometheus.CounterVec
	eventsPushedTotal  *prometheus.CounterVec

	// Room Provider Metrics
	roomRequestsTotal   *prometheus.CounterVec
	circuitBreakerState *prometheus.GaugeVec

	// Redis Metrics
	redisDegraded prometheus.Gauge

	// Rate Limiting Metrics
	rateLimitBlockedTotal *prometheus.CounterVec
}

// NewMetrics creates all metrics on a dedicated registry
func NewMetrics(serviceName string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)
	labels := prometheus.Labels{"service": serviceName}

	return &Metrics{
		registry: registry,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "http_requests_total",
				Help:        "Total number of HTTP requests",
				ConstLabels: labels,
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "http_request_duration_seconds",
				Help:        "HTTP request latency in seconds",
				ConstLabels: labels,
				Buckets:     prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		httpRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "http_requests_in_flight",
				Help:        "Number of HTTP requests currently being processed",
				ConstLabels: labels,
			},
		),
		httpRequestTimeouts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "http_request_timeouts_total",
				Help:        "Total number of HTTP requests that exceeded their deadline",
				ConstLabels: labels,
			},
			[]string{"method", "endpoint"},
		),

		websocketConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "websocket_connections",
				Help:        "Number of open WebSocket connections",
				ConstLabels: labels,
			},
		),
		websocketMessagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "websocket_messages_total",
				Help:        "Total number of WebSocket messages",
				ConstLabels: labels,
			},
			[]string{"event", "direction"},
		),

		presenceOnline: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "presence_registered_users",
				Help:        "Number of users with a registered live connection",
				ConstLabels: labels,
			},
		),

		callsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "calls_total",
				Help:        "Total number of call state transitions",
				ConstLabels: labels,
			},
			[]string{"type", "status"},
		),
		callsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "calls_active",
				Help:        "Number of calls in pending or active state",
				ConstLabels: labels,
			},
		),
		callsDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "call_duration_seconds",
				Help:        "Duration of connected calls in seconds",
				ConstLabels: labels,
				Buckets:     []float64{5, 15, 30, 60, 120, 300, 600, 1800, 3600},
			},
			[]string{"type"},
		),
		callsFailedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "call_failures_total",
				Help:        "Total number of call operations that degraded or failed",
				ConstLabels: labels,
			},
			[]string{"type", "reason"},
		),

		messagesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name:        "messages_total",
				Help:        "Total number of text messages stored",
				ConstLabels: labels,
			},
		),
		notificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "notifications_total",
				Help:        "Total number of notifications created",
				ConstLabels: labels,
			},
			[]string{"type"},
		),
		eventsPushedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "events_pushed_total",
				Help:        "Total number of realtime events handed to fan-out",
				ConstLabels: labels,
			},
			[]string{"event", "outcome"},
		),

		roomRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "room_provider_requests_total",
				Help:        "Total number of room provider requests",
				ConstLabels: labels,
			},
			[]string{"operation", "outcome"},
		),
		circuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name:        "circuit_breaker_state",
				Help:        "State of a circuit breaker (0=closed, 1=half_open, 2=open)",
				ConstLabels: labels,
			},
			[]string{"breaker"},
		),

		redisDegraded: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "redis_degraded_mode",
				Help:        "Indicates if Redis is in degraded mode (1 = degraded, 0 = healthy)",
				ConstLabels: labels,
			},
		),

		rateLimitBlockedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "rate_limit_blocked_total",
				Help:        "Total number of requests blocked by rate limiting",
				ConstLabels: labels,
			},
			[]string{"endpoint"},
		),
	}
}

// GetRegistry returns the registry served on /metrics
func (m *Metrics) GetRegistry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// HTTP Metrics Methods

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func (m *Metrics) IncrementHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.httpRequestsInFlight.Inc()
}

func (m *Metrics) DecrementHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.httpRequestsInFlight.Dec()
}

// RecordRequestTimeout records a request that hit its deadline
func (m *Metrics) RecordRequestTimeout(method, endpoint string) {
	if m == nil {
		return
	}
	m.httpRequestTimeouts.WithLabelValues(method, endpoint).Inc()
}

// WebSocket Metrics Methods

func (m *Metrics) SetWebSocketConnections(count int) {
	if m == nil {
		return
	}
	m.websocketConnections.Set(float64(count))
}

// RecordWebSocketMessage records a message; direction is "in" or "out"
func (m *Metrics) RecordWebSocketMessage(event, direction string) {
	if m == nil {
		return
	}
	m.websocketMessagesTotal.WithLabelValues(event, direction).Inc()
}

// SetRegisteredUsers sets the presence registry size
func (m *Metrics) SetRegisteredUsers(count int) {
	if m == nil {
		return
	}
	m.presenceOnline.Set(float64(count))
}

// Call Metrics Methods

// RecordCall records a call reaching status
func (m *Metrics) RecordCall(callType, status string) {
	if m == nil {
		return
	}
	m.callsTotal.WithLabelValues(callType, status).Inc()
}

// SetActiveCalls sets the number of non-terminal calls
func (m *Metrics) SetActiveCalls(count int) {
	if m == nil {
		return
	}
	m.callsActive.Set(float64(count))
}

func (m *Metrics) RecordCallDuration(callType string, duration time.Duration) {
	if m == nil {
		return
	}
	m.callsDuration.WithLabelValues(callType).Observe(duration.Seconds())
}

// RecordCallFailure records a degraded or failed call operation
func (m *Metrics) RecordCallFailure(callType, reason string) {
	if m == nil {
		return
	}
	m.callsFailedTotal.WithLabelValues(callType, reason).Inc()
}

// Messaging Metrics Methods

func (m *Metrics) RecordMessage() {
	if m == nil {
		return
	}
	m.messagesTotal.Inc()
}

func (m *Metrics) RecordNotification(notifType string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(notifType).Inc()
}

// RecordEventPush records a fan-out attempt; outcome is "delivered" or "dropped"
func (m *Metrics) RecordEventPush(event, outcome string) {
	if m == nil {
		return
	}
	m.eventsPushedTotal.WithLabelValues(event, outcome).Inc()
}

// Room Provider Metrics Methods

func (m *Metrics) RecordRoomRequest(operation, outcome string) {
	if m == nil {
		return
	}
	m.roomRequestsTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) SetCircuitBreakerState(breaker string, state float64) {
	if m == nil {
		return
	}
	m.circuitBreakerState.WithLabelValues(breaker).Set(state)
}

// SetRedisDegraded flags whether Redis is unreachable
func (m *Metrics) SetRedisDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.redisDegraded.Set(1)
	} else {
		m.redisDegraded.Set(0)
	}
}

// RecordRateLimitBlocked records a request blocked by rate limiting
func (m *Metrics) RecordRateLimitBlocked(endpoint string) {
	if m == nil {
		return
	}
	m.rateLimitBlockedTotal.WithLabelValues(endpoint).Inc()
}
