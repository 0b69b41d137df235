package activerequest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iteratehq/eventbroker/internal/eventlog"
)

func TestRunReturnsPreviousOffsetOnlyIfNotCompleted(t *testing.T) {
	var ar ActiveRequest
	ctx := context.Background()

	startedA := make(chan struct{})
	cancelledA := make(chan struct{})
	prev := ar.Run(ctx, 0, func(ctx context.Context) error {
		close(startedA)
		<-ctx.Done()
		close(cancelledA)
		return ctx.Err()
	})
	require.Nil(t, prev)
	<-startedA

	blockB := make(chan struct{})
	prev2 := ar.Run(ctx, 1, func(ctx context.Context) error {
		<-blockB
		return nil
	})
	require.NotNil(t, prev2)
	require.Equal(t, eventlog.Offset(0), *prev2)

	select {
	case <-cancelledA:
	case <-time.After(time.Second):
		t.Fatal("previous fiber was not interrupted")
	}
	close(blockB)
}

func TestOffsetClearsAfterEffectCompletesIfStillCurrent(t *testing.T) {
	var ar ActiveRequest
	ctx := context.Background()

	done := make(chan struct{})
	ar.Run(ctx, 5, func(ctx context.Context) error {
		close(done)
		return nil
	})
	<-done

	require.Eventually(t, func() bool { return ar.CurrentOffset() == nil }, time.Second, 10*time.Millisecond)
}

func TestInterruptOnlyClearsWithoutStartingReplacement(t *testing.T) {
	var ar ActiveRequest
	ctx := context.Background()

	started := make(chan struct{})
	ar.Run(ctx, 0, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started

	ar.InterruptOnly()
	require.Nil(t, ar.CurrentOffset())
}
