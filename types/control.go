package types

import (
	"encoding/json"
	"fmt"
)

const ControlMessageType = "control"

// ControlCommand is an inbound frame on the control channel. Raw keeps the
// full frame so command specific fields can be forwarded untouched.
type ControlCommand struct {
	Type      string          `json:"type"`
	Command   string          `json:"command"`
	DeviceID  string          `json:"deviceId,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
	Target    string          `json:"target,omitempty"`
	Op        string          `json:"op,omitempty"`
	Path      string          `json:"path,omitempty"`
	Value     json.RawMessage `json:"value,omitempty"`

	Raw json.RawMessage `json:"-"`
}

func ParseControlCommand(data []byte) (*ControlCommand, error) {
	cmd := &ControlCommand{}
	if err := json.Unmarshal(data, cmd); err != nil {
		return nil, fmt.Errorf("failed to parse control frame: %w", err)
	}

	if cmd.Type != ControlMessageType {
		return nil, fmt.Errorf("unexpected frame type %q", cmd.Type)
	}

	if cmd.Command == "" {
		return nil, fmt.Errorf("control frame without command")
	}

	cmd.Raw = append(json.RawMessage(nil), data...)

	return cmd, nil
}
