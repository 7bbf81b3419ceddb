package bridge

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zentourist/kino-live-audio-ng/internal/audio"
)

// Message type constants
const (
	MsgTypeChunk      = 0x01
	MsgTypeAggregate  = 0x02
	MsgTypeReadResult = 0x03

	// EnvelopeHeaderSize is the fixed prefix:
	// [MsgType:1][MetaLen:2][PayloadLen:4], big-endian
	EnvelopeHeaderSize = 7

	// MaxMetaSize bounds the JSON metadata block
	MaxMetaSize = 16 * 1024
)

// ChunkMeta is the metadata block of a chunk message. The payload carries
// exactly SampleCount little-endian 32-bit floats.
type ChunkMeta struct {
	Format      string    `json:"format"`
	SampleRate  int       `json:"sample_rate"`
	Channels    int       `json:"channels"`
	SampleCount int       `json:"sample_count"`
	ByteSize    int       `json:"byte_size"`
	Sequence    uint64    `json:"sequence"`
	Timestamp   time.Time `json:"timestamp"`
}

// AggregateMeta is the metadata block of an aggregate message, sent exactly
// once per stop, after every chunk message of the same session.
type AggregateMeta struct {
	Format          string    `json:"format"`
	SampleRate      int       `json:"sample_rate"`
	Channels        int       `json:"channels"`
	SampleCount     int       `json:"sample_count"`
	ByteSize        int       `json:"byte_size"`
	DurationSeconds float64   `json:"duration_seconds"`
	SessionID       string    `json:"session_id"`
	Timestamp       time.Time `json:"timestamp"`
}

// ReadResultMeta is the metadata block replying to a read query. Present is
// false and the payload empty when no session has stopped since the last
// clear.
type ReadResultMeta struct {
	Present     bool   `json:"present"`
	Format      string `json:"format"`
	SampleRate  int    `json:"sample_rate"`
	SampleCount int    `json:"sample_count"`
	ByteSize    int    `json:"byte_size"`
}

// Envelope represents a parsed outbound message
type Envelope struct {
	Type    uint8
	Meta    []byte // JSON metadata block
	Payload []byte // binary audio payload, may be empty
}

// EncodeEnvelope serializes a message: fixed header, JSON metadata, payload
func EncodeEnvelope(msgType uint8, meta interface{}, payload []byte) ([]byte, error) {
	if !IsValidMsgType(msgType) {
		return nil, fmt.Errorf("invalid message type: 0x%02x", msgType)
	}

	metaData, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message metadata: %w", err)
	}
	if len(metaData) > MaxMetaSize {
		return nil, fmt.Errorf("metadata too large: %d bytes (maximum %d)", len(metaData), MaxMetaSize)
	}

	data := make([]byte, EnvelopeHeaderSize+len(metaData)+len(payload))
	data[0] = msgType
	binary.BigEndian.PutUint16(data[1:3], uint16(len(metaData)))
	binary.BigEndian.PutUint32(data[3:7], uint32(len(payload)))
	copy(data[EnvelopeHeaderSize:], metaData)
	copy(data[EnvelopeHeaderSize+len(metaData):], payload)

	return data, nil
}

// ParseEnvelope parses a complete outbound message
func ParseEnvelope(data []byte) (*Envelope, error) {
	if len(data) < EnvelopeHeaderSize {
		return nil, fmt.Errorf("envelope too short: expected at least %d bytes, got %d",
			EnvelopeHeaderSize, len(data))
	}

	msgType := data[0]
	if !IsValidMsgType(msgType) {
		return nil, fmt.Errorf("invalid message type: 0x%02x", msgType)
	}

	metaLen := int(binary.BigEndian.Uint16(data[1:3]))
	payloadLen := int(binary.BigEndian.Uint32(data[3:7]))

	if metaLen > MaxMetaSize {
		return nil, fmt.Errorf("metadata too large: %d bytes (maximum %d)", metaLen, MaxMetaSize)
	}

	expected := EnvelopeHeaderSize + metaLen + payloadLen
	if len(data) != expected {
		return nil, fmt.Errorf("envelope length mismatch: header says %d bytes, got %d",
			expected, len(data))
	}

	env := &Envelope{
		Type:    msgType,
		Meta:    data[EnvelopeHeaderSize : EnvelopeHeaderSize+metaLen],
		Payload: data[EnvelopeHeaderSize+metaLen:],
	}

	return env, nil
}

// DecodeMeta unmarshals the envelope's metadata block into v
func (e *Envelope) DecodeMeta(v interface{}) error {
	if err := json.Unmarshal(e.Meta, v); err != nil {
		return fmt.Errorf("failed to decode message metadata: %w", err)
	}
	return nil
}

// IsValidMsgType checks if the message type is valid
func IsValidMsgType(msgType uint8) bool {
	return msgType == MsgTypeChunk || msgType == MsgTypeAggregate || msgType == MsgTypeReadResult
}

// String returns a human-readable representation of the envelope
func (e *Envelope) String() string {
	var msgType string
	switch e.Type {
	case MsgTypeChunk:
		msgType = "Chunk"
	case MsgTypeAggregate:
		msgType = "Aggregate"
	case MsgTypeReadResult:
		msgType = "ReadResult"
	default:
		msgType = fmt.Sprintf("Unknown(0x%02x)", e.Type)
	}
	return fmt.Sprintf("Envelope{Type:%s, MetaLen:%d, PayloadLen:%d}", msgType, len(e.Meta), len(e.Payload))
}

// NewChunkMessage encodes one emitted chunk as a wire message
func NewChunkMessage(chunk *audio.Chunk) ([]byte, error) {
	meta := ChunkMeta{
		Format:      chunk.Format,
		SampleRate:  chunk.SampleRate,
		Channels:    chunk.Channels,
		SampleCount: chunk.SampleCount,
		ByteSize:    chunk.ByteSize,
		Sequence:    chunk.Sequence,
		Timestamp:   chunk.Timestamp,
	}
	return EncodeEnvelope(MsgTypeChunk, meta, audio.EncodeF32LE(chunk.Samples))
}

// NewAggregateMessage encodes a finalized recording as a wire message
func NewAggregateMessage(sessionID string, samples []float32, sampleRate int, duration time.Duration) ([]byte, error) {
	meta := AggregateMeta{
		Format:          audio.FormatPCMF32LE,
		SampleRate:      sampleRate,
		Channels:        1,
		SampleCount:     len(samples),
		ByteSize:        len(samples) * audio.BytesPerSample,
		DurationSeconds: duration.Seconds(),
		SessionID:       sessionID,
		Timestamp:       time.Now(),
	}
	return EncodeEnvelope(MsgTypeAggregate, meta, audio.EncodeF32LE(samples))
}

// NewReadResultMessage encodes the reply to a read query. data is the
// pcm_f32le aggregate binary, or nil when absent.
func NewReadResultMessage(data []byte, sampleRate int) ([]byte, error) {
	meta := ReadResultMeta{
		Present:     data != nil,
		Format:      audio.FormatPCMF32LE,
		SampleRate:  sampleRate,
		SampleCount: len(data) / audio.BytesPerSample,
		ByteSize:    len(data),
	}
	return EncodeEnvelope(MsgTypeReadResult, meta, data)
}
