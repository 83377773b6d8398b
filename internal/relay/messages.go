package relay

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/OCAP2/datamaps/pkg/core"
)

// Message type constants of the relay protocol.
const (
	TypeLinkedEvent = "linked_event"
	TypeHello       = "hello"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// HelloPayload announces the hub behind a connection
type HelloPayload struct {
	Hub string `json:"hub"`
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// decodeLinkedEvent extracts a linked event from a raw message. ok is false
// for other message types.
func decodeLinkedEvent(data []byte) (core.LinkedEvent, bool, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return core.LinkedEvent{}, false, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type != TypeLinkedEvent {
		return core.LinkedEvent{}, false, nil
	}
	var evt core.LinkedEvent
	if err := json.Unmarshal(env.Payload, &evt); err != nil {
		return core.LinkedEvent{}, false, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return evt, true, nil
}
