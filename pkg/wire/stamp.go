package wire

import "github.com/google/uuid"

// NewStamp returns a fresh correlation stamp: 128 bits of entropy
// formatted as a v4 UUID. Stamps are generated by the sender of a note
// or request and echoed back on acks and responses.
func NewStamp() string {
	return uuid.NewString()
}
