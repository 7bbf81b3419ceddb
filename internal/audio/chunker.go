package audio

import (
	"sync"
	"time"
)

// Chunk represents a fixed-length slice of captured audio emitted as one
// discrete unit. Chunks are immutable once emitted.
type Chunk struct {
	Sequence    uint64    `json:"sequence"`
	Format      string    `json:"format"`
	SampleRate  int       `json:"sample_rate"`
	Channels    int       `json:"channels"`
	SampleCount int       `json:"sample_count"`
	ByteSize    int       `json:"byte_size"`
	Timestamp   time.Time `json:"timestamp"`
	Samples     []float32 `json:"-"` // Audio data (not serialized)
}

// ChunkerConfig contains configuration for the chunking process
type ChunkerConfig struct {
	SampleRate   int // Hz
	ChunkSamples int // fixed chunk length in samples
}

// Chunker accumulates variably-sized sample blocks and slices them into
// fixed-size chunks, preserving sample order. The sub-chunk remainder stays
// buffered between calls.
type Chunker struct {
	config ChunkerConfig

	// Pending samples below one chunk size
	buffer []float32

	// Sequence tracking
	nextSeq uint64

	// Statistics
	samplesFed    uint64
	chunksEmitted uint64

	mu sync.Mutex
}

// ChunkerStats represents chunker statistics
type ChunkerStats struct {
	SamplesFed     uint64 `json:"samples_fed"`
	ChunksEmitted  uint64 `json:"chunks_emitted"`
	PendingSamples int    `json:"pending_samples"`
	ChunkSamples   int    `json:"chunk_samples"`
}

// NewChunker creates a new fixed-size chunker. ChunkSamples must be
// validated upstream; the chunker itself has no error paths.
func NewChunker(config ChunkerConfig) *Chunker {
	return &Chunker{
		config: config,
		buffer: make([]float32, 0, config.ChunkSamples*2),
	}
}

// Feed appends a block of samples to the pending buffer and returns every
// complete chunk that became available, in arrival order. A nil or empty
// block is a no-op. Feed never blocks and never emits a chunk shorter than
// the configured size.
func (c *Chunker) Feed(block []float32) []*Chunk {
	if len(block) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.buffer = append(c.buffer, block...)
	c.samplesFed += uint64(len(block))

	size := c.config.ChunkSamples
	if len(c.buffer) < size {
		return nil
	}

	now := time.Now()
	chunks := make([]*Chunk, 0, len(c.buffer)/size)

	for len(c.buffer) >= size {
		samples := make([]float32, size)
		copy(samples, c.buffer[:size])
		c.buffer = c.buffer[size:]

		chunks = append(chunks, &Chunk{
			Sequence:    c.nextSeq,
			Format:      FormatPCMF32LE,
			SampleRate:  c.config.SampleRate,
			Channels:    1,
			SampleCount: size,
			ByteSize:    size * BytesPerSample,
			Timestamp:   now,
			Samples:     samples,
		})
		c.nextSeq++
		c.chunksEmitted++
	}

	// Reclaim capacity so the remainder does not pin the sliced-off prefix.
	if len(c.buffer) > 0 {
		remainder := make([]float32, len(c.buffer), size*2)
		copy(remainder, c.buffer)
		c.buffer = remainder
	} else {
		c.buffer = make([]float32, 0, size*2)
	}

	return chunks
}

// Drain returns and clears whatever partial buffer remains below one chunk
// size. Returns nil when nothing is pending.
func (c *Chunker) Drain() []float32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.buffer) == 0 {
		return nil
	}

	remainder := make([]float32, len(c.buffer))
	copy(remainder, c.buffer)
	c.buffer = c.buffer[:0]

	return remainder
}

// Pending returns the number of buffered samples below one chunk size
func (c *Chunker) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}

// ChunkSamples returns the configured chunk length in samples
func (c *Chunker) ChunkSamples() int {
	return c.config.ChunkSamples
}

// GetStats returns current chunker statistics
func (c *Chunker) GetStats() ChunkerStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return ChunkerStats{
		SamplesFed:     c.samplesFed,
		ChunksEmitted:  c.chunksEmitted,
		PendingSamples: len(c.buffer),
		ChunkSamples:   c.config.ChunkSamples,
	}
}
