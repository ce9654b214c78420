package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Codec errors.
var (
	ErrMalformed    = errors.New("wire: malformed message")
	ErrMissingType  = errors.New("wire: missing type field")
	ErrMissingStamp = errors.New("wire: missing stamp field")
	ErrBadSequence  = errors.New("wire: ping/pong data is not an integer sequence")
)

// Encode serializes the envelope to its wire form.
func Encode(env *Envelope) ([]byte, error) {
	if env.Type == "" {
		return nil, ErrMissingType
	}
	return json.Marshal(env)
}

// Decode parses a raw transport message into an envelope.
//
// It fails on undecodable input, a missing type field, a missing stamp
// on a stamped type, and non-integer ping/pong data. An unrecognized
// type is not an error here; the dispatcher decides how to treat it.
func Decode(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return nil, ErrMissingType
	}
	if env.Type.Valid() {
		if env.Type.NeedsStamp() && env.Stamp == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingStamp, env.Type)
		}
		if env.Type == TypePing || env.Type == TypePong {
			if _, err := Sequence(&env); err != nil {
				return nil, err
			}
		}
	}
	return &env, nil
}

// Sequence extracts the heartbeat sequence number from a ping or pong
// envelope.
func Sequence(env *Envelope) (uint64, error) {
	var seq uint64
	if err := json.Unmarshal(env.Data, &seq); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadSequence, env.Data)
	}
	return seq, nil
}

// SequenceData encodes a heartbeat sequence number as ping/pong data.
func SequenceData(seq uint64) json.RawMessage {
	data, _ := json.Marshal(seq)
	return data
}
