package manager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/iteratehq/eventbroker/internal/eventlog"
	"github.com/iteratehq/eventbroker/internal/storage"
)

func newTestManager(t *testing.T) *StreamManager {
	t.Helper()
	return New(storage.NewMemoryStore(), zaptest.NewLogger(t))
}

func TestAppendRepublishesOnGlobalBus(t *testing.T) {
	m := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	global, closeSub, err := m.Subscribe(ctx, SubscribeOptions{})
	require.NoError(t, err)
	defer closeSub()

	_, err = m.Append(ctx, "chat/room1", eventlog.EventInput{Type: "t", Payload: map[string]any{"n": float64(1)}})
	require.NoError(t, err)

	select {
	case ev := <-global:
		require.Equal(t, eventlog.StreamPath("chat/room1"), ev.Path)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for global bus event")
	}
}

func TestReadWithoutPathMergesAllPaths(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Append(ctx, "a", eventlog.EventInput{Type: "t"})
	require.NoError(t, err)
	_, err = m.Append(ctx, "b", eventlog.EventInput{Type: "t"})
	require.NoError(t, err)

	events, err := m.Read(ReadOptions{From: eventlog.NoOffset})
	require.NoError(t, err)
	require.Len(t, events, 2)
}

func TestSubscribeWithPathDelegatesToEventStream(t *testing.T) {
	m := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := m.Append(ctx, "p", eventlog.EventInput{Type: "t"})
	require.NoError(t, err)

	out, closeSub, err := m.Subscribe(ctx, SubscribeOptions{Path: "p", From: eventlog.NoOffset, HistoryOnly: true})
	require.NoError(t, err)
	defer closeSub()

	select {
	case ev, ok := <-out:
		require.True(t, ok)
		require.Equal(t, "0000000000000000", ev.Offset.String())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for history replay")
	}
}
