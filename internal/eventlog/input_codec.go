package eventlog

import (
	"encoding/json"
	"fmt"
)

type wireEventInput struct {
	Type    EventType       `json:"type"`
	Payload map[string]any  `json:"payload"`
	Version json.RawMessage `json:"version"`
}

// UnmarshalJSON decodes a caller-supplied EventInput, defaulting Version to
// "1" and accepting it as either a string or a number.
func (in *EventInput) UnmarshalJSON(data []byte) error {
	var w wireEventInput
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	version, err := decodeVersion(w.Version)
	if err != nil {
		return err
	}
	if err := w.Type.Validate(); err != nil {
		return fmt.Errorf("eventlog: decoding event input: %w", err)
	}
	*in = EventInput{Type: w.Type, Payload: w.Payload, Version: version}
	return nil
}
