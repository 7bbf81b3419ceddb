package session

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/zentourist/kino-live-audio-ng/internal/audio"
	"github.com/zentourist/kino-live-audio-ng/internal/capture"
	"github.com/zentourist/kino-live-audio-ng/internal/config"
)

// fakeSource is a scripted capture source for tests. Blocks are injected
// with push after a successful Open.
type fakeSource struct {
	mu      sync.Mutex
	openErr error
	opens   int
	closes  int
	onBlock capture.BlockFunc
}

func (s *fakeSource) Open(cfg capture.Config, onBlock capture.BlockFunc) (capture.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.opens++
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.onBlock = onBlock
	return &fakeStream{source: s}, nil
}

func (s *fakeSource) push(samples []float32) {
	s.mu.Lock()
	onBlock := s.onBlock
	s.mu.Unlock()
	if onBlock != nil {
		onBlock(samples)
	}
}

func (s *fakeSource) openCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

type fakeStream struct {
	source *fakeSource
}

func (st *fakeStream) Close() error {
	st.source.mu.Lock()
	defer st.source.mu.Unlock()
	st.source.closes++
	return nil
}

// aggregateEvent captures one PublishAggregate call
type aggregateEvent struct {
	sessionID  string
	samples    []float32
	sampleRate int
	duration   time.Duration
}

// stubPublisher records publish calls in arrival order
type stubPublisher struct {
	mu         sync.Mutex
	order      []string
	chunks     []*audio.Chunk
	aggregates []aggregateEvent
}

func (p *stubPublisher) PublishChunk(chunk *audio.Chunk) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.order = append(p.order, "chunk")
	p.chunks = append(p.chunks, chunk)
}

func (p *stubPublisher) PublishAggregate(sessionID string, samples []float32, sampleRate int, duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.order = append(p.order, "aggregate")
	p.aggregates = append(p.aggregates, aggregateEvent{sessionID, samples, sampleRate, duration})
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.CaptureConfig {
	return config.CaptureConfig{
		SampleRate: 16000,
		ChunkSize:  480,
		ChunkUnit:  config.ChunkUnitSamples,
	}
}

func rampBlock(n int, start float32) []float32 {
	block := make([]float32, n)
	for i := range block {
		block[i] = start + float32(i)*0.001
	}
	return block
}

func TestRecorderLifecycle(t *testing.T) {
	src := &fakeSource{}
	pub := &stubPublisher{}
	rec := NewRecorder(testConfig(), src, pub, testLogger(), nil)

	if rec.State() != StateIdle {
		t.Fatalf("Expected initial state idle, got %s", rec.State())
	}

	if err := rec.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if rec.State() != StateRecording {
		t.Fatalf("Expected state recording, got %s", rec.State())
	}

	// 1000 samples at chunk size 480: two chunks, 40 samples pending
	src.push(rampBlock(600, 0))
	src.push(rampBlock(400, 1))

	if err := rec.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if rec.State() != StateStopped {
		t.Fatalf("Expected state stopped, got %s", rec.State())
	}

	if len(pub.chunks) != 2 {
		t.Fatalf("Expected 2 chunks published, got %d", len(pub.chunks))
	}
	if len(pub.aggregates) != 1 {
		t.Fatalf("Expected 1 aggregate published, got %d", len(pub.aggregates))
	}

	// Aggregate is the emitted chunks only, the 40-sample remainder is dropped
	agg := pub.aggregates[0]
	if len(agg.samples) != 960 {
		t.Errorf("Expected aggregate of 960 samples, got %d", len(agg.samples))
	}
	if agg.sampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", agg.sampleRate)
	}
	if agg.sessionID == "" {
		t.Error("Expected non-empty session ID")
	}

	// Aggregate content equals the chunk concatenation
	offset := 0
	for _, chunk := range pub.chunks {
		for i, s := range chunk.Samples {
			if agg.samples[offset+i] != s {
				t.Fatalf("Aggregate sample %d does not match chunk content", offset+i)
			}
		}
		offset += chunk.SampleCount
	}

	if src.closes != 1 {
		t.Errorf("Expected capture stream closed once, got %d", src.closes)
	}
}

func TestStartIsIdempotent(t *testing.T) {
	src := &fakeSource{}
	rec := NewRecorder(testConfig(), src, &stubPublisher{}, testLogger(), nil)

	if err := rec.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := rec.Start(); err != nil {
		t.Fatalf("Second start should be a no-op, got error: %v", err)
	}

	if src.openCount() != 1 {
		t.Errorf("Expected source opened once, got %d", src.openCount())
	}
	if rec.State() != StateRecording {
		t.Errorf("Expected state recording, got %s", rec.State())
	}
}

func TestStopWhileNotRecordingIsNoOp(t *testing.T) {
	src := &fakeSource{}
	rec := NewRecorder(testConfig(), src, &stubPublisher{}, testLogger(), nil)

	if err := rec.Stop(); err != nil {
		t.Fatalf("Stop while idle should be a no-op, got error: %v", err)
	}
	if rec.State() != StateIdle {
		t.Errorf("Expected state idle, got %s", rec.State())
	}
}

func TestClearWhileRecordingIsNoOp(t *testing.T) {
	src := &fakeSource{}
	rec := NewRecorder(testConfig(), src, &stubPublisher{}, testLogger(), nil)

	// First session produces a stored aggregate
	rec.Start()
	src.push(rampBlock(480, 0))
	rec.Stop()

	data, _ := rec.Read()
	if data == nil {
		t.Fatal("Expected stored aggregate after stop")
	}

	// Clear during the next session must not touch the stored aggregate
	rec.Start()
	rec.Clear()

	if rec.State() != StateRecording {
		t.Errorf("Expected state recording after ignored clear, got %s", rec.State())
	}
}

func TestReadBeforeFirstStopReturnsNil(t *testing.T) {
	rec := NewRecorder(testConfig(), &fakeSource{}, &stubPublisher{}, testLogger(), nil)

	data, sampleRate := rec.Read()
	if data != nil {
		t.Errorf("Expected nil aggregate, got %d bytes", len(data))
	}
	if sampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", sampleRate)
	}
}

func TestReadLengthMatchesSampleCount(t *testing.T) {
	src := &fakeSource{}
	rec := NewRecorder(testConfig(), src, &stubPublisher{}, testLogger(), nil)

	rec.Start()
	src.push(rampBlock(960, 0))
	rec.Stop()

	data, _ := rec.Read()
	if data == nil {
		t.Fatal("Expected stored aggregate")
	}
	if len(data) != 960*audio.BytesPerSample {
		t.Errorf("Expected %d bytes, got %d", 960*audio.BytesPerSample, len(data))
	}
}

func TestClearResetsStoredAggregate(t *testing.T) {
	src := &fakeSource{}
	rec := NewRecorder(testConfig(), src, &stubPublisher{}, testLogger(), nil)

	rec.Start()
	src.push(rampBlock(480, 0))
	rec.Stop()

	rec.Clear()

	if rec.State() != StateIdle {
		t.Errorf("Expected state idle after clear, got %s", rec.State())
	}
	data, _ := rec.Read()
	if data != nil {
		t.Errorf("Expected nil aggregate after clear, got %d bytes", len(data))
	}

	// The recorder remains usable with the same configuration
	if err := rec.Start(); err != nil {
		t.Fatalf("Start after clear failed: %v", err)
	}
	if rec.State() != StateRecording {
		t.Errorf("Expected state recording, got %s", rec.State())
	}
}

func TestStartFailureKeepsStateAndAggregate(t *testing.T) {
	src := &fakeSource{}
	rec := NewRecorder(testConfig(), src, &stubPublisher{}, testLogger(), nil)

	rec.Start()
	src.push(rampBlock(480, 0))
	rec.Stop()

	src.mu.Lock()
	src.openErr = capture.ErrDeviceUnavailable
	src.mu.Unlock()

	err := rec.Start()
	if err == nil {
		t.Fatal("Expected start error when device is unavailable")
	}
	if !errors.Is(err, capture.ErrDeviceUnavailable) {
		t.Errorf("Expected ErrDeviceUnavailable, got %v", err)
	}

	if rec.State() != StateStopped {
		t.Errorf("Expected state stopped after failed start, got %s", rec.State())
	}
	data, _ := rec.Read()
	if data == nil {
		t.Error("Expected stored aggregate to survive failed start")
	}

	info := rec.GetInfo()
	if info.StartFailures != 1 {
		t.Errorf("Expected 1 start failure, got %d", info.StartFailures)
	}
}

func TestStopBeforeFirstChunkStoresEmptyAggregate(t *testing.T) {
	src := &fakeSource{}
	pub := &stubPublisher{}
	rec := NewRecorder(testConfig(), src, pub, testLogger(), nil)

	rec.Start()
	src.push(rampBlock(100, 0))
	rec.Stop()

	data, _ := rec.Read()
	if data == nil {
		t.Fatal("Expected empty but present aggregate")
	}
	if len(data) != 0 {
		t.Errorf("Expected 0 bytes, got %d", len(data))
	}

	if len(pub.chunks) != 0 {
		t.Errorf("Expected no chunks published, got %d", len(pub.chunks))
	}
	if len(pub.aggregates) != 1 {
		t.Fatalf("Expected 1 aggregate published, got %d", len(pub.aggregates))
	}
	if len(pub.aggregates[0].samples) != 0 {
		t.Errorf("Expected empty aggregate, got %d samples", len(pub.aggregates[0].samples))
	}
}

func TestAggregatePublishedAfterAllChunks(t *testing.T) {
	src := &fakeSource{}
	pub := &stubPublisher{}
	rec := NewRecorder(testConfig(), src, pub, testLogger(), nil)

	rec.Start()
	src.push(rampBlock(480*3, 0))
	rec.Stop()

	if len(pub.order) != 4 {
		t.Fatalf("Expected 4 publish events, got %d", len(pub.order))
	}
	if pub.order[len(pub.order)-1] != "aggregate" {
		t.Errorf("Expected aggregate published last, got order %v", pub.order)
	}
	for _, event := range pub.order[:len(pub.order)-1] {
		if event != "chunk" {
			t.Errorf("Expected only chunks before the aggregate, got order %v", pub.order)
		}
	}
}

func TestDrainOnStopEmitsFinalShortChunk(t *testing.T) {
	cfg := testConfig()
	cfg.DrainOnStop = true

	src := &fakeSource{}
	pub := &stubPublisher{}
	rec := NewRecorder(cfg, src, pub, testLogger(), nil)

	rec.Start()
	src.push(rampBlock(480+120, 0))
	rec.Stop()

	if len(pub.chunks) != 2 {
		t.Fatalf("Expected 2 chunks (one full, one drained), got %d", len(pub.chunks))
	}

	final := pub.chunks[1]
	if final.SampleCount != 120 {
		t.Errorf("Expected drained chunk of 120 samples, got %d", final.SampleCount)
	}
	if final.Sequence != 1 {
		t.Errorf("Expected drained chunk sequence 1, got %d", final.Sequence)
	}

	if len(pub.aggregates) != 1 {
		t.Fatalf("Expected 1 aggregate, got %d", len(pub.aggregates))
	}
	if len(pub.aggregates[0].samples) != 600 {
		t.Errorf("Expected aggregate of 600 samples including remainder, got %d",
			len(pub.aggregates[0].samples))
	}
}

func TestBlocksAfterStopAreDropped(t *testing.T) {
	src := &fakeSource{}
	pub := &stubPublisher{}
	rec := NewRecorder(testConfig(), src, pub, testLogger(), nil)

	rec.Start()
	src.push(rampBlock(480, 0))
	rec.Stop()

	// A late callback from the closed stream must not corrupt the aggregate
	src.push(rampBlock(480, 5))

	data, _ := rec.Read()
	if len(data) != 480*audio.BytesPerSample {
		t.Errorf("Expected aggregate unchanged at %d bytes, got %d",
			480*audio.BytesPerSample, len(data))
	}
	if len(pub.chunks) != 1 {
		t.Errorf("Expected 1 chunk, got %d", len(pub.chunks))
	}
}

func TestStreamingDisabledStillCollectsAggregate(t *testing.T) {
	cfg := config.CaptureConfig{
		SampleRate: 16000,
		ChunkSize:  0, // streaming disabled
		ChunkUnit:  config.ChunkUnitSamples,
	}

	src := &fakeSource{}
	pub := &stubPublisher{}
	rec := NewRecorder(cfg, src, pub, testLogger(), nil)

	rec.Start()
	src.push(rampBlock(config.FallbackChunkSamples*2, 0))
	rec.Stop()

	if len(pub.chunks) != 0 {
		t.Errorf("Expected no chunk messages with streaming disabled, got %d", len(pub.chunks))
	}
	if len(pub.aggregates) != 1 {
		t.Fatalf("Expected 1 aggregate, got %d", len(pub.aggregates))
	}
	if len(pub.aggregates[0].samples) != config.FallbackChunkSamples*2 {
		t.Errorf("Expected aggregate of %d samples, got %d",
			config.FallbackChunkSamples*2, len(pub.aggregates[0].samples))
	}
}

func TestGetInfo(t *testing.T) {
	src := &fakeSource{}
	rec := NewRecorder(testConfig(), src, &stubPublisher{}, testLogger(), nil)

	info := rec.GetInfo()
	if info.State != "idle" {
		t.Errorf("Expected state idle, got %s", info.State)
	}

	rec.Start()
	src.push(rampBlock(500, 0))

	info = rec.GetInfo()
	if info.State != "recording" {
		t.Errorf("Expected state recording, got %s", info.State)
	}
	if info.ChunksEmitted != 1 {
		t.Errorf("Expected 1 chunk emitted, got %d", info.ChunksEmitted)
	}
	if info.PendingSamples != 20 {
		t.Errorf("Expected 20 pending samples, got %d", info.PendingSamples)
	}
	if info.SamplesCaptured != 500 {
		t.Errorf("Expected 500 samples captured, got %d", info.SamplesCaptured)
	}

	rec.Stop()

	info = rec.GetInfo()
	if info.State != "stopped" {
		t.Errorf("Expected state stopped, got %s", info.State)
	}
	if !info.AggregateStored {
		t.Error("Expected aggregate stored")
	}
	if info.AggregateSamples != 480 {
		t.Errorf("Expected 480 aggregate samples, got %d", info.AggregateSamples)
	}
	if info.SessionsStarted != 1 || info.SessionsStopped != 1 {
		t.Errorf("Expected 1 started and 1 stopped, got %d/%d",
			info.SessionsStarted, info.SessionsStopped)
	}
}
