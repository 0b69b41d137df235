package eventlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// wireEvent mirrors Event's JSON shape but with Offset/CreatedAt as plain
// strings, since Go's encoding/json has no hook for Offset's custom
// String()/ParseOffset round-trip without one.
type wireEvent struct {
	Type      EventType       `json:"type"`
	Payload   map[string]any  `json:"payload"`
	Version   json.RawMessage `json:"version"`
	Path      StreamPath      `json:"path"`
	Offset    string          `json:"offset"`
	CreatedAt string          `json:"createdAt"`
	Trace     TraceContext    `json:"trace"`
}

const createdAtLayout = "2006-01-02T15:04:05.000Z07:00"

// MarshalJSON renders an Event in the canonical wire shape from §6 of the
// specification: version and offset as strings, createdAt as millisecond
// UTC RFC3339.
func (e Event) MarshalJSON() ([]byte, error) {
	payload := e.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	w := wireEvent{
		Type:      e.Type,
		Payload:   payload,
		Version:   json.RawMessage(`"` + e.Version + `"`),
		Path:      e.Path,
		Offset:    e.Offset.String(),
		CreatedAt: e.CreatedAt.UTC().Format(createdAtLayout),
		Trace:     e.Trace,
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts version as either a JSON string or a JSON number,
// per §6: "version encodes/decodes from either string or number."
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	version, err := decodeVersion(w.Version)
	if err != nil {
		return err
	}

	offset, err := ParseOffset(w.Offset)
	if err != nil {
		return fmt.Errorf("eventlog: decoding event offset: %w", err)
	}

	createdAt, err := parseCreatedAt(w.CreatedAt)
	if err != nil {
		return fmt.Errorf("eventlog: decoding event createdAt: %w", err)
	}

	*e = Event{
		Type:      w.Type,
		Payload:   w.Payload,
		Version:   version,
		Path:      w.Path,
		Offset:    offset,
		CreatedAt: createdAt,
		Trace:     w.Trace,
	}
	return nil
}

// decodeVersion accepts a bare JSON string or JSON number and normalizes to
// a decimal string.
func decodeVersion(raw json.RawMessage) (string, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return DefaultVersion, nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if asString == "" {
			return DefaultVersion, nil
		}
		return asString, nil
	}
	var asNumber json.Number
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return asNumber.String(), nil
	}
	return "", fmt.Errorf("eventlog: version must be a string or number, got %s", raw)
}

func parseCreatedAt(s string) (time.Time, error) {
	if t, err := time.Parse(createdAtLayout, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
