package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// FormatPCMF32LE is the wire format tag: mono 32-bit IEEE-754 float
	// samples, little-endian byte order.
	FormatPCMF32LE = "pcm_f32le"

	// BytesPerSample is the serialized size of one sample
	BytesPerSample = 4
)

// EncodeF32LE serializes samples as little-endian 32-bit floats. Sample
// values are nominally in [-1.0, 1.0]; out-of-range values are not clamped.
func EncodeF32LE(samples []float32) []byte {
	data := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(data[i*BytesPerSample:], math.Float32bits(s))
	}
	return data
}

// DecodeF32LE deserializes little-endian 32-bit float samples
func DecodeF32LE(data []byte) ([]float32, error) {
	if len(data)%BytesPerSample != 0 {
		return nil, fmt.Errorf("pcm_f32le data length must be a multiple of %d, got %d",
			BytesPerSample, len(data))
	}

	samples := make([]float32, len(data)/BytesPerSample)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*BytesPerSample:]))
	}
	return samples, nil
}
