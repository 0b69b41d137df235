package eventlog

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEventMarshalUnmarshalRoundTrip(t *testing.T) {
	ev := Event{
		Type:      "t",
		Payload:   map[string]any{"n": float64(1)},
		Version:   "1",
		Path:      "test/read",
		Offset:    Offset(0),
		CreatedAt: time.Date(2025, 1, 7, 14, 3, 22, 119000000, time.UTC),
		Trace:     TraceContext{TraceId: "trace-a", SpanId: "span-a"},
	}

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(data, &got))

	require.Equal(t, ev.Type, got.Type)
	require.Equal(t, ev.Path, got.Path)
	require.Equal(t, ev.Offset, got.Offset)
	require.Equal(t, ev.Version, got.Version)
	require.Equal(t, ev.Payload, got.Payload)
	require.True(t, ev.CreatedAt.Equal(got.CreatedAt))
	require.Equal(t, ev.Trace, got.Trace)
}

func TestEventVersionAcceptsNumberOnWire(t *testing.T) {
	raw := []byte(`{
		"type": "t",
		"payload": {},
		"version": 1,
		"path": "p",
		"offset": "0000000000000000",
		"createdAt": "2025-01-07T14:03:22.119Z",
		"trace": {"traceId": "x", "spanId": "y"}
	}`)
	var ev Event
	require.NoError(t, json.Unmarshal(raw, &ev))
	require.Equal(t, "1", ev.Version)
}

func TestEventInputDefaultsVersion(t *testing.T) {
	raw := []byte(`{"type":"t","payload":{"n":1}}`)
	var in EventInput
	require.NoError(t, json.Unmarshal(raw, &in))
	require.Equal(t, DefaultVersion, in.Version)
	require.Equal(t, EventType("t"), in.Type)
}

func TestEventInputRejectsEmptyType(t *testing.T) {
	raw := []byte(`{"type":"","payload":{}}`)
	var in EventInput
	require.Error(t, json.Unmarshal(raw, &in))
}
