package voice

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Control commands accepted from the client.
const (
	ControlStartRecording = "start_recording"
	ControlStopRecording  = "stop_recording"
	ControlReset          = "reset"
)

// ErrNotControl marks a text frame that is not a JSON control message.
// Callers should treat such frames as audio data.
var ErrNotControl = errors.New("voice: not a control frame")

// UnknownControlError reports a well-formed control frame whose type is
// not in the accepted set. The client gets an error event back and the
// connection stays open.
type UnknownControlError struct {
	Type string
}

func (e *UnknownControlError) Error() string {
	return fmt.Sprintf("voice: unknown control type %q", e.Type)
}

// MalformedControlError reports a frame that parses as a JSON object but
// whose type field is missing, empty, or not a string. Structured frames
// are never treated as audio; the client gets an error event back and the
// connection stays open.
type MalformedControlError struct {
	Reason string
}

func (e *MalformedControlError) Error() string {
	return "voice: malformed control frame: " + e.Reason
}

// ParseControl classifies an inbound text frame. It returns the control
// type for a recognized command, ErrNotControl when the frame does not
// parse as a JSON object, a *MalformedControlError for a JSON object with
// a missing or ill-typed type field, or an *UnknownControlError for a
// well-formed control whose type is unrecognized.
func ParseControl(data []byte) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return "", ErrNotControl
	}

	raw, ok := fields["type"]
	if !ok {
		return "", &MalformedControlError{Reason: "missing type field"}
	}
	var typ string
	if err := json.Unmarshal(raw, &typ); err != nil {
		return "", &MalformedControlError{Reason: "type must be a string"}
	}
	if typ == "" {
		return "", &MalformedControlError{Reason: "empty type field"}
	}

	switch typ {
	case ControlStartRecording, ControlStopRecording, ControlReset:
		return typ, nil
	default:
		return "", &UnknownControlError{Type: typ}
	}
}
