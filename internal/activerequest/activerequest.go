// Package activerequest implements §4.6: the at-most-one-in-flight
// controller for a consumer that drives a single outbound call per path
// (in this repository, the LLM loop in internal/llmloop).
package activerequest

import (
	"context"
	"sync"

	"github.com/iteratehq/eventbroker/internal/eventlog"
)

// Effect is the body run by ActiveRequest.Run. It must honor ctx
// cancellation and perform any cleanup (e.g. emitting a cancellation
// event) before returning when ctx is done — ActiveRequest itself only
// signals cancellation, it does not know how to clean up the caller's
// side effects.
type Effect func(ctx context.Context) error

// ActiveRequest tracks the offset and cancel function of at most one
// in-flight effect per path.
type ActiveRequest struct {
	mu      sync.Mutex
	offset  *eventlog.Offset
	current *fiber
}

type fiber struct {
	cancel context.CancelFunc
}

// Run starts effect as the new current fiber, interrupting whatever fiber
// was previously current. The interruption is asynchronous: Run returns
// the previous offset immediately without waiting for the previous
// effect's cleanup to finish, so callers can emit request-interrupted
// before the preempted effect's own request-cancelled appears (§4.6
// "LLM-loop usage" / the scenario in §8). When effect returns — whether it
// completed, failed, or was interrupted — offset is cleared back to none
// provided no newer Run has superseded this fiber in the meantime.
func (a *ActiveRequest) Run(ctx context.Context, requestOffset eventlog.Offset, effect Effect) *eventlog.Offset {
	a.mu.Lock()
	previous := a.offset
	prev := a.current

	off := requestOffset
	a.offset = &off

	fctx, cancel := context.WithCancel(ctx)
	self := &fiber{cancel: cancel}
	a.current = self
	a.mu.Unlock()

	if prev != nil {
		prev.cancel()
	}

	go func() {
		_ = effect(fctx)
		a.mu.Lock()
		if a.current == self {
			a.offset = nil
			a.current = nil
		}
		a.mu.Unlock()
	}()

	return previous
}

// InterruptOnly cancels any active fiber and clears state, without
// starting a replacement.
func (a *ActiveRequest) InterruptOnly() {
	a.mu.Lock()
	prev := a.current
	a.offset = nil
	a.current = nil
	a.mu.Unlock()

	if prev != nil {
		prev.cancel()
	}
}

// CurrentOffset returns the offset of the currently in-flight request, if
// any.
func (a *ActiveRequest) CurrentOffset() *eventlog.Offset {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.offset
}
