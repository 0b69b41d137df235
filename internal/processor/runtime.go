// Package processor implements §4.4: wrapping a Processor definition into a
// background service that spawns at most one supervised worker per path.
package processor

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/iteratehq/eventbroker/internal/eventlog"
	"github.com/iteratehq/eventbroker/internal/manager"
	"github.com/iteratehq/eventbroker/internal/stream"
)

// Processor is a named unit of work bound to one path's EventStream.
type Processor struct {
	Name string
	Run  func(ctx context.Context, es *stream.EventStream) error
}

// Runtime wraps a Processor into a background service per §4.4: it
// subscribes to the manager's global live bus, and for each observed event
// spawns a supervised worker for that event's path unless one is already
// running. All workers share the Runtime's lifetime; cancelling the
// Runtime's context cancels every worker. Grounded on the teacher's webhook
// Manager (webhook/manager.go), which keeps the analogous per-consumer
// IDLE/WAKING/LIVE dedup state under a single mutex and tears every timer
// down on Shutdown.
type Runtime struct {
	name string
	proc Processor
	mgr  *manager.StreamManager
	log  *zap.Logger

	mu      sync.Mutex
	workers map[eventlog.StreamPath]*worker
}

type worker struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Runtime for proc.
func New(proc Processor, mgr *manager.StreamManager, log *zap.Logger) *Runtime {
	return &Runtime{
		name:    proc.Name,
		proc:    proc,
		mgr:     mgr,
		log:     log,
		workers: make(map[eventlog.StreamPath]*worker),
	}
}

// Start subscribes to the global live bus and begins dispatching events to
// per-path workers. It signals on started only once the subscription is
// active, per §4.4 step 2 ("tests depend on this"). Start blocks until ctx
// is cancelled, at which point every worker it spawned is also cancelled.
func (r *Runtime) Start(ctx context.Context, started chan<- struct{}) error {
	events, closeSub, err := r.mgr.Subscribe(ctx, manager.SubscribeOptions{})
	if err != nil {
		return err
	}
	defer closeSub()

	if started != nil {
		close(started)
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				r.stopAll()
				return nil
			}
			r.dispatch(ctx, ev.Path)
		case <-ctx.Done():
			r.stopAll()
			return ctx.Err()
		}
	}
}

// dispatch spawns a worker for path if none is currently running.
func (r *Runtime) dispatch(ctx context.Context, path eventlog.StreamPath) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.workers[path]; ok {
		return
	}

	wctx, cancel := context.WithCancel(ctx)
	w := &worker{cancel: cancel, done: make(chan struct{})}
	r.workers[path] = w

	go r.runWorker(wctx, path, w)
}

func (r *Runtime) runWorker(ctx context.Context, path eventlog.StreamPath, w *worker) {
	defer close(w.done)
	defer func() {
		r.mu.Lock()
		if r.workers[path] == w {
			delete(r.workers, path)
		}
		r.mu.Unlock()
	}()

	es, err := r.mgr.ForPath(path)
	if err != nil {
		if r.log != nil {
			r.log.Error("processor worker: resolve path failed", zap.String("processor", r.name), zap.String("path", string(path)), zap.Error(err))
		}
		return
	}

	if err := r.proc.Run(ctx, es); err != nil && ctx.Err() == nil {
		if r.log != nil {
			r.log.Error("processor worker failed", zap.String("processor", r.name), zap.String("path", string(path)), zap.Error(err))
		}
	}
}

func (r *Runtime) stopAll() {
	r.mu.Lock()
	workers := make([]*worker, 0, len(r.workers))
	for _, w := range r.workers {
		workers = append(workers, w)
	}
	r.mu.Unlock()

	for _, w := range workers {
		w.cancel()
		<-w.done
	}
}
