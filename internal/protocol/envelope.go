// Package protocol defines the newline-delimited JSON wire protocol shared by
// the chess server and its clients. Each message is one JSON object per line
// carrying a "type" discriminator; the payload shape is determined by the type.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingType is returned when a decoded message has no "type" field.
var ErrMissingType = errors.New("missing message type")

// ErrMalformed is returned when a line is not a valid JSON object.
var ErrMalformed = errors.New("malformed message")

// Envelope is one decoded wire message: the type tag plus the raw bytes of the
// whole object, kept so the payload can be bound to its concrete struct.
type Envelope struct {
	Type string
	Raw  json.RawMessage
}

// Decode parses a single line into an Envelope.
//
// Postcondition: Returns an Envelope with a non-empty Type, or an error
// wrapping ErrMalformed / ErrMissingType.
func Decode(line []byte) (Envelope, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(line, &head); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if head.Type == "" {
		return Envelope{}, ErrMissingType
	}

	raw := make(json.RawMessage, len(line))
	copy(raw, line)
	return Envelope{Type: head.Type, Raw: raw}, nil
}

// Bind unmarshals the envelope's payload into the given message struct.
//
// Precondition: v must be a pointer to the payload type matching e.Type.
func (e Envelope) Bind(v any) error {
	if err := json.Unmarshal(e.Raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// Encode marshals a message struct into a single wire line, without the
// trailing newline. The connection layer owns framing.
//
// Precondition: v must marshal to a JSON object containing a "type" field.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding message: %w", err)
	}
	return data, nil
}
