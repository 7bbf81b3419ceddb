package capture

import (
	"errors"
)

// Capability errors reported by Open. Callers branch on these to
// distinguish a denied device from a missing one; both leave the session in
// its prior state.
var (
	ErrPermissionDenied  = errors.New("capture: permission denied")
	ErrDeviceUnavailable = errors.New("capture: device unavailable")
)

// Config describes the stream to open
type Config struct {
	SampleRate int    // Hz
	Channels   int    // 1 for mono
	Device     string // empty = default input device
}

// BlockFunc receives successive blocks of raw samples at device cadence.
// Block sizes are arbitrary and non-deterministic. The callback runs on the
// capture context and must not block.
type BlockFunc func(samples []float32)

// Source is the audio input capability
type Source interface {
	// Open acquires the input device and starts delivering sample blocks
	// to onBlock. It returns ErrPermissionDenied or ErrDeviceUnavailable
	// on failure, releasing anything partially acquired.
	Open(cfg Config, onBlock BlockFunc) (Stream, error)
}

// Stream is an open capture stream
type Stream interface {
	// Close stops block delivery and releases the device. After Close
	// returns no further onBlock calls are made.
	Close() error
}
