package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zentourist/kino-live-audio-ng/internal/audio"
	"github.com/zentourist/kino-live-audio-ng/internal/capture"
	"github.com/zentourist/kino-live-audio-ng/internal/config"
	"github.com/zentourist/kino-live-audio-ng/internal/metrics"
)

// State represents the recorder lifecycle state
type State int

const (
	// StateIdle means no recording has run since startup or the last clear
	StateIdle State = iota

	// StateRecording means capture is live and chunks are being emitted
	StateRecording

	// StateStopped means a finished recording is stored and readable
	StateStopped
)

// String returns a human-readable state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Publisher receives outbound messages from the recorder. Implementations
// must not block: delivery is fire-and-forget.
type Publisher interface {
	PublishChunk(chunk *audio.Chunk)
	PublishAggregate(sessionID string, samples []float32, sampleRate int, duration time.Duration)
}

// Info is a snapshot of the recorder state for monitoring
type Info struct {
	State            string    `json:"state"`
	SessionID        string    `json:"session_id,omitempty"`
	StartedAt        time.Time `json:"started_at,omitempty"`
	DurationSeconds  float64   `json:"duration_seconds"`
	ChunksEmitted    uint64    `json:"chunks_emitted"`
	SamplesCaptured  uint64    `json:"samples_captured"`
	PendingSamples   int       `json:"pending_samples"`
	AggregateSamples int       `json:"aggregate_samples"`
	AggregateStored  bool      `json:"aggregate_stored"`
	SessionsStarted  uint64    `json:"sessions_started"`
	SessionsStopped  uint64    `json:"sessions_stopped"`
	StartFailures    uint64    `json:"start_failures"`
}

// Recorder owns the recording session state machine. It opens the capture
// source on start, slices incoming blocks into fixed chunks, publishes each
// chunk as it is emitted, and on stop stores and publishes the aggregate.
//
// All transitions are serialized: start while recording, stop while not
// recording and clear while recording are no-ops.
type Recorder struct {
	config    config.CaptureConfig
	source    capture.Source
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics

	mu         sync.Mutex
	state      State
	starting   bool
	generation uint64
	stream     capture.Stream
	chunker    *audio.Chunker
	collected  []float32
	sessionID  string
	startedAt  time.Time

	// aggregate is the finished recording of the last stopped session,
	// nil when none is stored. Empty but non-nil when the session stopped
	// before the first complete chunk.
	aggregate         []float32
	aggregateDuration time.Duration

	// Lifetime statistics
	sessionsStarted uint64
	sessionsStopped uint64
	startFailures   uint64
	samplesCaptured uint64
	chunksEmitted   uint64
}

// NewRecorder creates a recorder in the idle state. The capture config must
// already be validated.
func NewRecorder(cfg config.CaptureConfig, source capture.Source, publisher Publisher,
	logger *slog.Logger, m *metrics.Metrics) *Recorder {

	return &Recorder{
		config:    cfg,
		source:    source,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
		state:     StateIdle,
	}
}

// Start begins a new recording session. Starting while a session is already
// recording (or being started) is a no-op. On capture failure the recorder
// keeps its previous state and stored aggregate.
func (r *Recorder) Start() error {
	r.mu.Lock()
	if r.state == StateRecording || r.starting {
		r.mu.Unlock()
		r.logger.Debug("Start ignored, session already recording")
		return nil
	}
	r.starting = true
	gen := r.generation + 1
	sessionID := uuid.NewString()
	r.mu.Unlock()

	stream, err := r.source.Open(capture.Config{
		SampleRate: r.config.SampleRate,
		Channels:   1,
		Device:     r.config.Device,
	}, func(samples []float32) {
		r.onBlock(gen, samples)
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	r.starting = false

	if err != nil {
		r.startFailures++
		if r.metrics != nil {
			r.metrics.RecordStartFailure()
		}
		r.logger.Error("Failed to open capture source",
			slog.String("device", r.config.Device),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to start recording: %w", err)
	}

	r.generation = gen
	r.stream = stream
	r.state = StateRecording
	r.sessionID = sessionID
	r.startedAt = time.Now()
	r.collected = make([]float32, 0)
	r.chunker = audio.NewChunker(audio.ChunkerConfig{
		SampleRate:   r.config.SampleRate,
		ChunkSamples: r.config.EffectiveChunkSamples(),
	})
	r.sessionsStarted++

	if r.metrics != nil {
		r.metrics.RecordSessionStarted()
	}
	r.logger.Info("Recording session started",
		slog.String("session_id", sessionID),
		slog.Int("sample_rate", r.config.SampleRate),
		slog.Int("chunk_samples", r.chunker.ChunkSamples()),
		slog.Bool("streaming", r.config.StreamingEnabled()))

	return nil
}

// onBlock handles one captured block. Blocks from a superseded session are
// dropped.
func (r *Recorder) onBlock(gen uint64, samples []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRecording || gen != r.generation {
		return
	}

	r.samplesCaptured += uint64(len(samples))
	if r.metrics != nil {
		r.metrics.RecordBlock(len(samples))
	}

	for _, chunk := range r.chunker.Feed(samples) {
		r.collected = append(r.collected, chunk.Samples...)
		r.chunksEmitted++
		if r.metrics != nil {
			r.metrics.RecordChunk(chunk.ByteSize)
		}
		if r.config.StreamingEnabled() && r.publisher != nil {
			r.publisher.PublishChunk(chunk)
		}
	}
}

// Stop finalizes the current session: capture is torn down, the aggregate is
// stored for read queries and published exactly once, after every chunk of
// the session. Stopping while not recording is a no-op.
func (r *Recorder) Stop() error {
	r.mu.Lock()

	if r.state != StateRecording {
		r.mu.Unlock()
		r.logger.Debug("Stop ignored, no session recording")
		return nil
	}

	stream := r.stream
	r.stream = nil
	r.state = StateStopped
	r.generation++

	if remainder := r.chunker.Drain(); len(remainder) > 0 && r.config.DrainOnStop {
		chunk := &audio.Chunk{
			Sequence:    r.chunker.GetStats().ChunksEmitted,
			Format:      audio.FormatPCMF32LE,
			SampleRate:  r.config.SampleRate,
			Channels:    1,
			SampleCount: len(remainder),
			ByteSize:    len(remainder) * audio.BytesPerSample,
			Timestamp:   time.Now(),
			Samples:     remainder,
		}
		r.collected = append(r.collected, remainder...)
		r.chunksEmitted++
		if r.metrics != nil {
			r.metrics.RecordChunk(chunk.ByteSize)
		}
		if r.config.StreamingEnabled() && r.publisher != nil {
			r.publisher.PublishChunk(chunk)
		}
	}

	duration := time.Since(r.startedAt)
	sessionID := r.sessionID
	r.aggregate = r.collected
	r.aggregateDuration = duration
	r.collected = nil
	r.sessionsStopped++

	aggregate := r.aggregate
	if r.metrics != nil {
		r.metrics.RecordSessionStopped(duration.Seconds(), len(aggregate))
	}
	if r.publisher != nil {
		r.publisher.PublishAggregate(sessionID, aggregate, r.config.SampleRate, duration)
	}

	r.logger.Info("Recording session stopped",
		slog.String("session_id", sessionID),
		slog.Float64("duration_seconds", duration.Seconds()),
		slog.Int("aggregate_samples", len(aggregate)))

	r.mu.Unlock()

	if stream != nil {
		if err := stream.Close(); err != nil {
			r.logger.Warn("Failed to close capture stream",
				slog.String("error", err.Error()))
		}
	}

	return nil
}

// Clear discards the stored aggregate and returns the recorder to idle.
// Clearing while recording is a no-op.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateRecording {
		r.logger.Debug("Clear ignored, session recording")
		return
	}

	r.aggregate = nil
	r.aggregateDuration = 0
	r.sessionID = ""
	r.state = StateIdle

	if r.metrics != nil {
		r.metrics.RecordSessionCleared()
	}
	r.logger.Info("Stored recording cleared")
}

// Read returns the stored aggregate encoded as pcm_f32le, or nil when no
// finished recording is stored. The byte length is always four times the
// aggregate sample count.
func (r *Recorder) Read() ([]byte, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.aggregate == nil {
		return nil, r.config.SampleRate
	}

	return audio.EncodeF32LE(r.aggregate), r.config.SampleRate
}

// ReadSamples returns a copy of the stored aggregate samples, or nil when
// none is stored.
func (r *Recorder) ReadSamples() []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.aggregate == nil {
		return nil
	}

	out := make([]float32, len(r.aggregate))
	copy(out, r.aggregate)
	return out
}

// State returns the current lifecycle state
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// GetInfo returns a snapshot of the recorder for monitoring
func (r *Recorder) GetInfo() Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := Info{
		State:           r.state.String(),
		SessionID:       r.sessionID,
		ChunksEmitted:   r.chunksEmitted,
		SamplesCaptured: r.samplesCaptured,
		SessionsStarted: r.sessionsStarted,
		SessionsStopped: r.sessionsStopped,
		StartFailures:   r.startFailures,
		AggregateStored: r.aggregate != nil,
	}

	switch r.state {
	case StateRecording:
		info.StartedAt = r.startedAt
		info.DurationSeconds = time.Since(r.startedAt).Seconds()
		info.PendingSamples = r.chunker.Pending()
	case StateStopped:
		info.StartedAt = r.startedAt
		info.DurationSeconds = r.aggregateDuration.Seconds()
	}

	if r.aggregate != nil {
		info.AggregateSamples = len(r.aggregate)
	}

	return info
}
