package eventlog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type samplePayload struct {
	Content string `json:"content"`
}

func TestRegisterAndDecode(t *testing.T) {
	d := Register[samplePayload]("test:sample")

	ev := Event{Type: "test:sample", Payload: map[string]any{"content": "hi"}}
	require.True(t, d.Is(ev))

	decoded, err := d.Decode(ev)
	require.NoError(t, err)
	require.Equal(t, samplePayload{Content: "hi"}, decoded)

	got, ok := Lookup("test:sample")
	require.True(t, ok)
	require.Equal(t, EventType("test:sample"), got.Type)
}

func TestLookupMiss(t *testing.T) {
	_, ok := Lookup("test:does-not-exist")
	require.False(t, ok)
}
