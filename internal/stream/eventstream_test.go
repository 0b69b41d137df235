package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/iteratehq/eventbroker/internal/eventlog"
	"github.com/iteratehq/eventbroker/internal/storage"
)

func newTestStream(t *testing.T, path eventlog.StreamPath) *EventStream {
	t.Helper()
	st := storage.NewMemoryStore()
	es, err := New(st, path, zaptest.NewLogger(t))
	require.NoError(t, err)
	return es
}

func TestAppendReadRoundTrip(t *testing.T) {
	es := newTestStream(t, "test/read")
	ctx := context.Background()

	_, err := es.Append(ctx, eventlog.EventInput{Type: "t", Payload: map[string]any{"n": float64(1)}})
	require.NoError(t, err)
	_, err = es.Append(ctx, eventlog.EventInput{Type: "t", Payload: map[string]any{"n": float64(2)}})
	require.NoError(t, err)

	events, err := es.Read(storage.ReadOptions{From: eventlog.NoOffset})
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "0000000000000000", events[0].Offset.String())
	require.Equal(t, float64(1), events[0].Payload["n"])
	require.Equal(t, "0000000000000001", events[1].Offset.String())
	require.Equal(t, float64(2), events[1].Payload["n"])
}

func TestSubscribeHandoverObservesEveryAppendExactlyOnce(t *testing.T) {
	es := newTestStream(t, "p")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, closeSub, err := es.Subscribe(ctx, SubscribeOptions{From: eventlog.NoOffset})
	require.NoError(t, err)
	defer closeSub()

	for _, n := range []string{"A", "B", "C"} {
		_, err := es.Append(ctx, eventlog.EventInput{Type: "t", Payload: map[string]any{"source": n}})
		require.NoError(t, err)
	}

	var got []string
	for i := 0; i < 3; i++ {
		select {
		case ev := <-out:
			got = append(got, ev.Payload["source"].(string))
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
	require.Equal(t, []string{"A", "B", "C"}, got)
}

func TestPathIsolation(t *testing.T) {
	streamA := newTestStream(t, "path/a")
	streamB := newTestStream(t, "path/b")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	outB, closeSub, err := streamB.Subscribe(ctx, SubscribeOptions{From: eventlog.NoOffset})
	require.NoError(t, err)
	defer closeSub()

	_, err = streamA.Append(ctx, eventlog.EventInput{Type: "t", Payload: map[string]any{"source": "A"}})
	require.NoError(t, err)

	select {
	case ev := <-outB:
		t.Fatalf("expected no events on path/b, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHistoryOnlySubscriptionClosesAfterReplay(t *testing.T) {
	es := newTestStream(t, "p")
	ctx := context.Background()

	_, err := es.Append(ctx, eventlog.EventInput{Type: "t"})
	require.NoError(t, err)

	out, closeSub, err := es.Subscribe(ctx, SubscribeOptions{From: eventlog.NoOffset, HistoryOnly: true})
	require.NoError(t, err)
	defer closeSub()

	select {
	case ev, ok := <-out:
		require.True(t, ok)
		require.Equal(t, "0000000000000000", ev.Offset.String())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for history event")
	}

	select {
	case _, ok := <-out:
		require.False(t, ok, "channel should be closed once history-only replay completes")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}
