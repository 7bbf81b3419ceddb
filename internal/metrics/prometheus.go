package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the capture service
type Metrics struct {
	// Capture metrics
	BlocksCaptured  prometheus.Counter
	SamplesCaptured prometheus.Counter

	// Chunking metrics
	ChunksEmitted prometheus.Counter
	ChunkBytes    prometheus.Histogram

	// Session metrics
	SessionsStarted  prometheus.Counter
	SessionsStopped  prometheus.Counter
	SessionsCleared  prometheus.Counter
	StartFailures    prometheus.Counter
	SessionDuration  prometheus.Histogram
	AggregateSamples prometheus.Histogram

	// Bridge metrics
	BridgeClients         prometheus.Gauge
	BridgeMessagesSent    *prometheus.CounterVec
	BridgeMessagesDropped prometheus.Counter
	BridgeCommands        *prometheus.CounterVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Capture metrics
		BlocksCaptured: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kino_capture_blocks_total",
			Help: "Total number of sample blocks delivered by the audio source",
		}),
		SamplesCaptured: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kino_capture_samples_total",
			Help: "Total number of audio samples captured",
		}),

		// Chunking metrics
		ChunksEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kino_chunks_emitted_total",
			Help: "Total number of fixed-size chunks emitted",
		}),
		ChunkBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "kino_chunk_size_bytes",
			Help:    "Size of emitted chunks in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 2, 12), // 256B to ~512KB
		}),

		// Session metrics
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kino_sessions_started_total",
			Help: "Total number of recording sessions started",
		}),
		SessionsStopped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kino_sessions_stopped_total",
			Help: "Total number of recording sessions stopped",
		}),
		SessionsCleared: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kino_sessions_cleared_total",
			Help: "Total number of recording sessions cleared",
		}),
		StartFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kino_start_failures_total",
			Help: "Total number of session starts that failed to acquire the audio source",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "kino_session_duration_seconds",
			Help:    "Wall-clock duration of recording sessions",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17 minutes
		}),
		AggregateSamples: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "kino_aggregate_samples",
			Help:    "Sample count of finalized aggregates",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		}),

		// Bridge metrics
		BridgeClients: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "kino_bridge_clients",
			Help: "Current number of connected bridge consumers",
		}),
		BridgeMessagesSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kino_bridge_messages_sent_total",
			Help: "Total number of bridge messages queued for delivery",
		}, []string{"type"}),
		BridgeMessagesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kino_bridge_messages_dropped_total",
			Help: "Total number of bridge messages dropped on slow consumers",
		}),
		BridgeCommands: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kino_bridge_commands_total",
			Help: "Total number of inbound control commands",
		}, []string{"command"}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kino_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kino_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kino_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordBlock records a captured sample block
func (m *Metrics) RecordBlock(samples int) {
	m.BlocksCaptured.Inc()
	m.SamplesCaptured.Add(float64(samples))
}

// RecordChunk records an emitted chunk
func (m *Metrics) RecordChunk(byteSize int) {
	m.ChunksEmitted.Inc()
	m.ChunkBytes.Observe(float64(byteSize))
}

// RecordSessionStarted increments the sessions started counter
func (m *Metrics) RecordSessionStarted() {
	m.SessionsStarted.Inc()
}

// RecordSessionStopped records a finished session and its aggregate size
func (m *Metrics) RecordSessionStopped(durationSeconds float64, aggregateSamples int) {
	m.SessionsStopped.Inc()
	m.SessionDuration.Observe(durationSeconds)
	m.AggregateSamples.Observe(float64(aggregateSamples))
}

// RecordSessionCleared increments the sessions cleared counter
func (m *Metrics) RecordSessionCleared() {
	m.SessionsCleared.Inc()
}

// RecordStartFailure increments the start failures counter
func (m *Metrics) RecordStartFailure() {
	m.StartFailures.Inc()
}

// SetBridgeClients sets the current consumer count
func (m *Metrics) SetBridgeClients(count int) {
	m.BridgeClients.Set(float64(count))
}

// RecordBridgeMessage records an outbound message queued for delivery
func (m *Metrics) RecordBridgeMessage(msgType string) {
	m.BridgeMessagesSent.WithLabelValues(msgType).Inc()
}

// RecordBridgeDrop increments the dropped messages counter
func (m *Metrics) RecordBridgeDrop() {
	m.BridgeMessagesDropped.Inc()
}

// RecordBridgeCommand records an inbound control command
func (m *Metrics) RecordBridgeCommand(command string) {
	m.BridgeCommands.WithLabelValues(command).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
