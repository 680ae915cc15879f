package flow

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Machine is a state that knows its own transitions.
type Machine[S any, E any] interface {
	Next(event E) (S, []Effect)
}

// Handler performs one effect. It may return a follow-up event, which is
// dispatched into the same flow.
type Handler[E any] func(ctx context.Context, eff Effect) (next E, ok bool)

// Flow runs one machine instance.
type Flow[S Machine[S, E], E any] struct {
	handle Handler[E]

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	state     S
	observers map[int]func(S)
	nextObs   int
	timers    []*time.Timer
	seq       uint64

	// notifyMu serializes observer calls with Discard so no observer starts
	// once Discard has returned. notifying is set while observers run.
	notifyMu  sync.Mutex
	notified  uint64
	notifying atomic.Bool
	discarded atomic.Bool
}

// New returns a flow starting in initial. Effects are passed to handle.
func New[S Machine[S, E], E any](initial S, handle Handler[E]) *Flow[S, E] {
	ctx, cancel := context.WithCancel(context.Background())
	return &Flow[S, E]{
		handle:    handle,
		ctx:       ctx,
		cancel:    cancel,
		state:     initial,
		observers: make(map[int]func(S)),
	}
}

// State returns the current state.
func (f *Flow[S, E]) State() S {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Observe registers fn to be called with new states. Observers run one at a
// time, never see an older state after a newer one, and must not call
// Dispatch. An observer may call Discard; observers not yet called for that
// state are skipped.
func (f *Flow[S, E]) Observe(fn func(S)) (stop func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextObs
	f.nextObs++
	f.observers[id] = fn

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.observers, id)
	}
}

// Dispatch applies event and carries out the resulting effects, including
// any follow-up events, before returning. Handlers run with a context that
// is cancelled when either ctx or the flow ends.
func (f *Flow[S, E]) Dispatch(ctx context.Context, event E) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(f.ctx, cancel)
	defer stop()

	return f.dispatch(ctx, event)
}

func (f *Flow[S, E]) dispatch(ctx context.Context, event E) error {
	f.mu.Lock()
	if f.discarded.Load() {
		f.mu.Unlock()
		return ErrFlowDiscarded
	}
	next, effects := f.state.Next(event)
	f.state = next
	observers := make([]func(S), 0, len(f.observers))
	for _, fn := range f.observers {
		observers = append(observers, fn)
	}

	f.seq++
	seq := f.seq
	f.mu.Unlock()

	f.notify(seq, next, observers)

	for _, eff := range effects {
		if f.discarded.Load() {
			return ErrFlowDiscarded
		}

		if t, ok := eff.(Timer[E]); ok {
			f.schedule(t)
			continue
		}

		if f.handle == nil {
			continue
		}
		follow, ok := f.handle(ctx, eff)
		if !ok {
			continue
		}
		if err := f.dispatch(ctx, follow); err != nil {
			return err
		}
	}

	return nil
}

// notify delivers state unless the flow is gone or a later state has
// already been delivered.
func (f *Flow[S, E]) notify(seq uint64, state S, observers []func(S)) {
	f.notifyMu.Lock()
	defer f.notifyMu.Unlock()

	if f.discarded.Load() || seq <= f.notified {
		return
	}
	f.notified = seq

	f.notifying.Store(true)
	defer f.notifying.Store(false)
	for _, fn := range observers {
		if f.discarded.Load() {
			return
		}
		fn(state)
	}
}

func (f *Flow[S, E]) schedule(t Timer[E]) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.discarded.Load() {
		return
	}
	timer := time.AfterFunc(t.After, func() {
		_ = f.Dispatch(f.ctx, t.Event)
	})
	f.timers = append(f.timers, timer)
}

// Discard ends the flow. Pending timers are stopped and in-flight handlers
// see their context cancelled; whatever they return is dropped. Discard is
// idempotent and may be called from an observer.
func (f *Flow[S, E]) Discard() {
	f.mu.Lock()
	f.discarded.Store(true)
	timers := f.timers
	f.timers = nil
	f.mu.Unlock()

	for _, t := range timers {
		t.Stop()
	}
	f.cancel()

	// Called from an observer, notifyMu is held further up this call
	// chain. The running observer finishes and no other one starts.
	if f.notifying.Load() {
		return
	}

	// Wait out observer calls that started before the flag was set.
	f.notifyMu.Lock()
	defer f.notifyMu.Unlock()
}

// Discarded reports whether Discard has been called.
func (f *Flow[S, E]) Discarded() bool {
	return f.discarded.Load()
}
