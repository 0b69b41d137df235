package consumer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/iteratehq/eventbroker/internal/eventlog"
	"github.com/iteratehq/eventbroker/internal/manager"
	"github.com/iteratehq/eventbroker/internal/storage"
)

func TestHydratePhaseNeverCallsReact(t *testing.T) {
	mgr := manager.New(storage.NewMemoryStore(), zaptest.NewLogger(t))
	ctx := context.Background()

	_, err := mgr.Append(ctx, "p", eventlog.EventInput{Type: "t", Payload: map[string]any{"n": float64(1)}})
	require.NoError(t, err)
	_, err = mgr.Append(ctx, "p", eventlog.EventInput{Type: "t", Payload: map[string]any{"n": float64(2)}})
	require.NoError(t, err)

	var reactCalls atomic.Int32
	c := Consumer[int]{
		Name:    "counter",
		Initial: 0,
		Apply:   func(state int, ev eventlog.Event) int { return state + 1 },
		React: func(ctx context.Context, state int, ev eventlog.Event, path eventlog.StreamPath, emit EmitFunc) error {
			reactCalls.Add(1)
			return nil
		},
	}

	es, err := mgr.ForPath("p")
	require.NoError(t, err)

	state, lastOffset := hydrate(c, es, zaptest.NewLogger(t))
	require.Equal(t, 2, state)
	require.Equal(t, "0000000000000001", lastOffset.String())
	require.Equal(t, int32(0), reactCalls.Load())
}

func TestReactPhaseFiresOncePerLiveEvent(t *testing.T) {
	mgr := manager.New(storage.NewMemoryStore(), zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reacted atomic.Int32
	c := Consumer[int]{
		Name:    "counter",
		Initial: 0,
		Apply:   func(state int, ev eventlog.Event) int { return state + 1 },
		React: func(ctx context.Context, state int, ev eventlog.Event, path eventlog.StreamPath, emit EmitFunc) error {
			reacted.Add(1)
			return nil
		},
	}

	go Run(ctx, c, mgr, "p", zaptest.NewLogger(t))
	time.Sleep(20 * time.Millisecond) // let hydrate/subscribe settle

	_, err := mgr.Append(ctx, "p", eventlog.EventInput{Type: "t"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return reacted.Load() == 1 }, time.Second, 10*time.Millisecond)
}
