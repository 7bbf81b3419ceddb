package bridge

import (
	"encoding/json"
	"fmt"
)

// Inbound command names
const (
	CommandStart = "start"
	CommandStop  = "stop"
	CommandClear = "clear"
	CommandRead  = "read"
)

// Command is an inbound control message from a consumer
type Command struct {
	Command string `json:"command"`
}

// ParseCommand parses and validates an inbound JSON command
func ParseCommand(data []byte) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, fmt.Errorf("failed to parse command: %w", err)
	}

	switch cmd.Command {
	case CommandStart, CommandStop, CommandClear, CommandRead:
		return &cmd, nil
	default:
		return nil, fmt.Errorf("unknown command: %q", cmd.Command)
	}
}
