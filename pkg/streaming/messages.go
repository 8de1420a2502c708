package streaming

import (
	"encoding/json"
	"fmt"
)

// Message type constants matching the streaming protocol.
const (
	TypePose      = "pose"       // server -> client, on every redraw
	TypeSetTarget = "set_target" // client -> server
	TypeAck       = "ack"
	TypeError     = "error"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type   string `json:"type"` // always "ack"
	For    string `json:"for"`  // the message type being acknowledged
	Result any    `json:"result,omitempty"`
}

// ErrorMessage reports a rejected client message.
type ErrorMessage struct {
	Type  string `json:"type"` // always "error"
	For   string `json:"for,omitempty"`
	Error string `json:"error"`
}

// PosePayload is a robot snapshot.
type PosePayload struct {
	Seq     uint64  `json:"seq"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
	TargetX int     `json:"targetX"`
	TargetY int     `json:"targetY"`
}

// SetTargetPayload carries a pointer position; the server rounds it.
type SetTargetPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Encode builds an envelope of msgType around payload.
func Encode(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

// Decode parses an envelope and unmarshals its payload into v.
func Decode(data []byte, v any) (string, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("invalid envelope: %w", err)
	}
	if env.Type == "" {
		return "", fmt.Errorf("envelope without type")
	}
	if v != nil {
		if len(env.Payload) == 0 {
			return env.Type, fmt.Errorf("%s: missing payload", env.Type)
		}
		if err := json.Unmarshal(env.Payload, v); err != nil {
			return env.Type, fmt.Errorf("%s: invalid payload: %w", env.Type, err)
		}
	}
	return env.Type, nil
}
