// Package consumer implements §4.5: the generic hydrate/react loop shared
// by every stateful reaction to a stream (in this repository, the LLM loop
// in internal/llmloop).
package consumer

import (
	"context"

	"go.uber.org/zap"

	"github.com/iteratehq/eventbroker/internal/eventlog"
	"github.com/iteratehq/eventbroker/internal/manager"
	"github.com/iteratehq/eventbroker/internal/storage"
	"github.com/iteratehq/eventbroker/internal/stream"
	"github.com/iteratehq/eventbroker/internal/trace"
)

// EmitFunc funnels a consumer's side-effecting writes back through
// StreamManager.Append on the same path.
type EmitFunc func(ctx context.Context, input eventlog.EventInput) error

// Consumer[S] is a named reducer: Apply folds one event into state purely
// (no side effects, replayable); React runs only for live events and may
// emit further events via the EmitFunc it's given.
type Consumer[S any] struct {
	Name    string
	Initial S
	Apply   func(state S, ev eventlog.Event) S
	React   func(ctx context.Context, state S, ev eventlog.Event, path eventlog.StreamPath, emit EmitFunc) error
}

// Run drives one Consumer against one path's EventStream: phase 1 folds
// the full history with Apply only (React never runs), recording the
// highest offset seen as lastOffset; phase 2 subscribes from lastOffset and
// calls Apply then React for every live event. Run blocks until ctx is
// cancelled.
func Run[S any](ctx context.Context, c Consumer[S], mgr *manager.StreamManager, path eventlog.StreamPath, log *zap.Logger) error {
	es, err := mgr.ForPath(path)
	if err != nil {
		return err
	}

	state, lastOffset := hydrate(c, es, log)

	emit := func(ctx context.Context, input eventlog.EventInput) error {
		_, err := mgr.Append(ctx, path, input)
		return err
	}

	// From lastOffset, not LiveOnly: any event appended between the history
	// read above and this Subscribe call lands past lastOffset and must
	// still be replayed before live delivery, or it is lost (§4.2 handover).
	out, closeSub, err := es.Subscribe(ctx, stream.SubscribeOptions{From: lastOffset})
	if err != nil {
		return err
	}
	defer closeSub()

	for {
		select {
		case ev, ok := <-out:
			if !ok {
				return nil
			}
			state = c.Apply(state, ev)
			reactCtx, span := trace.StartChildSpan(ctx, "consumer:"+c.Name, ev)
			err := c.React(reactCtx, state, ev, path, emit)
			span.End()
			if err != nil && log != nil {
				log.Error("consumer react failed", zap.String("consumer", c.Name), zap.String("path", string(path)), zap.Error(err))
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// hydrate folds the full history on es with c.Apply, never invoking
// React. A history read failure is logged and hydration falls back to
// {Initial, eventlog.NoOffset} (§4.5: "Failure during hydration is logged
// and lastOffset defaults to -1").
func hydrate[S any](c Consumer[S], es *stream.EventStream, log *zap.Logger) (S, eventlog.Offset) {
	state := c.Initial
	lastOffset := eventlog.NoOffset

	events, err := es.Read(storage.ReadOptions{From: eventlog.NoOffset})
	if err != nil {
		if log != nil {
			log.Error("consumer hydrate failed", zap.String("consumer", c.Name), zap.String("path", string(es.Path())), zap.Error(err))
		}
		return state, lastOffset
	}

	for _, ev := range events {
		state = c.Apply(state, ev)
		lastOffset = ev.Offset
	}
	return state, lastOffset
}
