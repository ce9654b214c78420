package wire

import "encoding/json"

// MessageType identifies the kind of envelope.
type MessageType string

const (
	TypeNote        MessageType = "note"
	TypeNoteAck     MessageType = "noteAck"
	TypeRequest     MessageType = "request"
	TypeRequestAck  MessageType = "requestAck"
	TypeResponse    MessageType = "response"
	TypeResponseAck MessageType = "responseAck"
	TypePing        MessageType = "ping"
	TypePong        MessageType = "pong"
	TypeError       MessageType = "error"
)

// Valid reports whether mt is one of the nine protocol message types.
func (mt MessageType) Valid() bool {
	switch mt {
	case TypeNote, TypeNoteAck, TypeRequest, TypeRequestAck,
		TypeResponse, TypeResponseAck, TypePing, TypePong, TypeError:
		return true
	default:
		return false
	}
}

// NeedsStamp reports whether envelopes of this type must carry a stamp.
// Ping, pong and error messages are the only stampless types.
func (mt MessageType) NeedsStamp() bool {
	switch mt {
	case TypePing, TypePong, TypeError:
		return false
	default:
		return true
	}
}

// String returns the wire name of the message type.
func (mt MessageType) String() string {
	if mt.Valid() {
		return string(mt)
	}
	return "unknown"
}

// Envelope is the wire unit exchanged over the transport.
//
// Data is kept opaque: outbound payloads are marshalled by the caller
// (see MarshalData) and inbound payloads are handed to the application
// as raw JSON. FailureCode is meaningful on response envelopes only;
// an absent field decodes as 0 (success).
type Envelope struct {
	Type        MessageType     `json:"type"`
	Stamp       string          `json:"stamp,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	SendAck     bool            `json:"sendAck,omitempty"`
	FailureCode float64         `json:"failureCode,omitempty"`
}

// MarshalData converts an arbitrary payload into the opaque Data form.
// A json.RawMessage passes through unchanged.
func MarshalData(payload any) (json.RawMessage, error) {
	if payload == nil {
		return nil, nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(payload)
}
