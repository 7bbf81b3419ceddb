package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zentourist/kino-live-audio-ng/internal/audio"
	"github.com/zentourist/kino-live-audio-ng/internal/config"
	"github.com/zentourist/kino-live-audio-ng/internal/metrics"
)

// Controller receives the control commands arriving over the bridge
type Controller interface {
	// Start begins a recording session. Starting while recording is a no-op.
	Start() error

	// Stop finalizes the current session. Stopping while not recording is
	// a no-op.
	Stop() error

	// Clear discards the stored aggregate. Clearing while recording is a
	// no-op.
	Clear()

	// Read returns the stored aggregate as pcm_f32le bytes, or nil when
	// none exists, along with the configured sample rate.
	Read() ([]byte, int)
}

// Statistics contains bridge transport statistics
type Statistics struct {
	Clients          int    `json:"clients"`
	ChunksSent       uint64 `json:"chunks_sent"`
	AggregatesSent   uint64 `json:"aggregates_sent"`
	CommandsReceived uint64 `json:"commands_received"`
	CommandErrors    uint64 `json:"command_errors"`
}

// Server is the WebSocket transport of the host bridge. It fans outbound
// chunk and aggregate messages to connected consumers and dispatches their
// inbound control commands to the Controller.
type Server struct {
	server   *http.Server
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
	metrics  *metrics.Metrics

	controllerMu sync.RWMutex
	controller   Controller

	// Statistics
	chunksSent       uint64
	aggregatesSent   uint64
	commandsReceived uint64
	commandErrors    uint64
	statsMu          sync.RWMutex
}

// NewServer creates a new bridge server. The controller is wired separately
// with SetController before Start.
func NewServer(cfg config.BridgeConfig, logger *slog.Logger, m *metrics.Metrics) *Server {
	s := &Server{
		hub:     NewHub(logger, m, cfg.QueueSize),
		logger:  logger,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Consumers are local host processes
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)

	s.server = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	return s
}

// SetController wires the command target. It must be called before Start.
func (s *Server) SetController(c Controller) {
	s.controllerMu.Lock()
	s.controller = c
	s.controllerMu.Unlock()
}

// Start starts the bridge server
func (s *Server) Start() error {
	s.logger.Info("Starting bridge server",
		slog.String("address", s.server.Addr),
	)

	go s.hub.Run()

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Bridge server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the bridge server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping bridge server...")

	err := s.server.Shutdown(ctx)
	s.hub.Stop()
	return err
}

// handleWebSocket upgrades a consumer connection and runs its pumps
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()))
		return
	}

	c := newClient(s.hub, conn)
	go c.writePump()
	c.readPump(s.dispatchCommand)
}

// dispatchCommand handles one inbound command frame from a consumer
func (s *Server) dispatchCommand(c *client, data []byte) {
	s.statsMu.Lock()
	s.commandsReceived++
	s.statsMu.Unlock()

	cmd, err := ParseCommand(data)
	if err != nil {
		s.statsMu.Lock()
		s.commandErrors++
		s.statsMu.Unlock()
		s.logger.Warn("Invalid bridge command",
			slog.String("remote_addr", c.conn.RemoteAddr().String()),
			slog.String("error", err.Error()))
		return
	}

	if s.metrics != nil {
		s.metrics.RecordBridgeCommand(cmd.Command)
	}

	s.controllerMu.RLock()
	controller := s.controller
	s.controllerMu.RUnlock()
	if controller == nil {
		s.logger.Warn("Bridge command received before controller wiring",
			slog.String("command", cmd.Command))
		return
	}

	switch cmd.Command {
	case CommandStart:
		if err := controller.Start(); err != nil {
			s.logger.Error("Start command failed", slog.String("error", err.Error()))
		}

	case CommandStop:
		if err := controller.Stop(); err != nil {
			s.logger.Error("Stop command failed", slog.String("error", err.Error()))
		}

	case CommandClear:
		controller.Clear()

	case CommandRead:
		payload, sampleRate := controller.Read()
		msg, err := NewReadResultMessage(payload, sampleRate)
		if err != nil {
			s.logger.Error("Failed to encode read result", slog.String("error", err.Error()))
			return
		}
		if !c.reply(msg) {
			s.logger.Warn("Read result dropped, consumer queue full")
			if s.metrics != nil {
				s.metrics.RecordBridgeDrop()
			}
		}
	}
}

// PublishChunk sends one emitted chunk to all connected consumers. It never
// blocks the capture path: encode failures and full queues drop the message.
func (s *Server) PublishChunk(chunk *audio.Chunk) {
	msg, err := NewChunkMessage(chunk)
	if err != nil {
		s.logger.Error("Failed to encode chunk message",
			slog.Uint64("sequence", chunk.Sequence),
			slog.String("error", err.Error()))
		return
	}

	if s.hub.Broadcast(msg) {
		s.statsMu.Lock()
		s.chunksSent++
		s.statsMu.Unlock()
		if s.metrics != nil {
			s.metrics.RecordBridgeMessage("chunk")
		}
	}
}

// PublishAggregate sends the finalized recording to all connected consumers
func (s *Server) PublishAggregate(sessionID string, samples []float32, sampleRate int, duration time.Duration) {
	msg, err := NewAggregateMessage(sessionID, samples, sampleRate, duration)
	if err != nil {
		s.logger.Error("Failed to encode aggregate message",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		return
	}

	if s.hub.Broadcast(msg) {
		s.statsMu.Lock()
		s.aggregatesSent++
		s.statsMu.Unlock()
		if s.metrics != nil {
			s.metrics.RecordBridgeMessage("aggregate")
		}
	}
}

// GetStatistics returns a snapshot of bridge statistics
func (s *Server) GetStatistics() Statistics {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()

	return Statistics{
		Clients:          s.hub.ClientCount(),
		ChunksSent:       s.chunksSent,
		AggregatesSent:   s.aggregatesSent,
		CommandsReceived: s.commandsReceived,
		CommandErrors:    s.commandErrors,
	}
}
