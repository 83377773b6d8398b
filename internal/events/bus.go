package events

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Listener receives the arguments of a fired event. A returned error is
// reported the same way as a panic.
type Listener func(args ...any) error

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// ListenerError wraps a failure raised inside a listener.
type ListenerError struct {
	Event string
	Cause error
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("listener for %s failed: %v", e.Event, e.Cause)
}

func (e *ListenerError) Unwrap() error {
	return e.Cause
}

// Subscription identifies one registered listener. The zero value is inert.
type Subscription struct {
	event string
	id    uint64
}

// Active reports whether the subscription was retained by the bus.
func (s Subscription) Active() bool {
	return s.id != 0
}

// Option configures a Bus.
type Option func(*Bus)

// WithErrorHandler replaces the default listener failure reporter.
// The handler runs on its own goroutine.
func WithErrorHandler(h func(*ListenerError)) Option {
	return func(b *Bus) {
		b.onError = h
	}
}

// Logged adds debug logging for every fired event.
func Logged() Option {
	return func(b *Bus) {
		b.logged = true
	}
}

type memoState int

const (
	pending memoState = iota
	fired
)

// memo tracks one memorised event: pending until its first firing, then
// fired with the latest arguments.
type memo struct {
	state memoState
	args  []any
	done  chan struct{}
}

type entry struct {
	id       uint64
	listener Listener
}

// Bus is a publish/subscribe hub with optional fire-once-then-replay events.
type Bus struct {
	mu        sync.Mutex
	listeners map[string][]entry
	memos     map[string]*memo
	nextID    uint64

	logger  Logger
	logged  bool
	onError func(*ListenerError)

	// OTEL metrics
	firedCount metric.Int64Counter
	failures   metric.Int64Counter
}

// New creates a Bus with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger, opts ...Option) (*Bus, error) {
	b := &Bus{
		listeners: make(map[string][]entry),
		memos:     make(map[string]*memo),
		logger:    logger,
	}
	b.onError = func(err *ListenerError) {
		b.logger.Error("event listener failed", "event", err.Event, "error", err.Cause)
	}
	for _, opt := range opts {
		opt(b)
	}

	m := meter()

	var err error
	b.firedCount, err = m.Int64Counter(
		"events.fired",
		metric.WithDescription("Total events fired"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fired counter: %w", err)
	}

	b.failures, err = m.Int64Counter(
		"events.listener.failures",
		metric.WithDescription("Total listener panics and errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failures counter: %w", err)
	}

	return b, nil
}

// On registers a listener. If event is memorised and has already fired, the
// listener is invoked immediately with the stored arguments and not retained.
func (b *Bus) On(event string, l Listener) Subscription {
	b.mu.Lock()
	if mm, ok := b.memos[event]; ok && mm.state == fired {
		args := mm.args
		b.mu.Unlock()
		b.invoke(event, l, args)
		return Subscription{}
	}
	b.nextID++
	id := b.nextID
	b.listeners[event] = append(b.listeners[event], entry{id: id, listener: l})
	b.mu.Unlock()
	return Subscription{event: event, id: id}
}

// Off removes a single listener.
func (b *Bus) Off(s Subscription) {
	if !s.Active() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.listeners[s.event]
	for i, e := range list {
		if e.id == s.id {
			b.listeners[s.event] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(b.listeners[s.event]) == 0 {
		delete(b.listeners, s.event)
	}
}

// OffAll removes every listener of event.
func (b *Bus) OffAll(event string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listeners, event)
}

// Fire invokes every listener of event in registration order.
func (b *Bus) Fire(event string, args ...any) {
	b.mu.Lock()
	list := append([]entry(nil), b.listeners[event]...)
	b.mu.Unlock()

	b.dispatch(event, list, args)
}

// FireMemorised invokes and drops the current listeners of event, then
// stores args so later subscribers are invoked on registration. Firing again
// replaces the stored arguments.
func (b *Bus) FireMemorised(event string, args ...any) {
	b.mu.Lock()
	mm := b.memoLocked(event)
	wasPending := mm.state == pending
	mm.state = fired
	mm.args = args
	list := b.listeners[event]
	delete(b.listeners, event)
	if wasPending {
		close(mm.done)
	}
	b.mu.Unlock()

	b.dispatch(event, list, args)
}

// Fired reports whether a memorised event has fired and with which arguments.
func (b *Bus) Fired(event string) ([]any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	mm, ok := b.memos[event]
	if !ok || mm.state != fired {
		return nil, false
	}
	return mm.args, true
}

// Wait blocks until the memorised event fires or ctx is done.
func (b *Bus) Wait(ctx context.Context, event string) error {
	b.mu.Lock()
	mm := b.memoLocked(event)
	done := mm.done
	b.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s: %w", event, ctx.Err())
	}
}

// ListenerCount returns the number of retained listeners for event.
func (b *Bus) ListenerCount(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners[event])
}

func (b *Bus) memoLocked(event string) *memo {
	mm, ok := b.memos[event]
	if !ok {
		mm = &memo{done: make(chan struct{})}
		b.memos[event] = mm
	}
	return mm
}

func (b *Bus) dispatch(event string, list []entry, args []any) {
	b.firedCount.Add(context.Background(), 1, metric.WithAttributes(attribute.String("event", event)))
	if b.logged {
		b.logger.Debug("firing event", "event", event, "listeners", len(list))
	}
	for _, e := range list {
		b.invoke(event, e.listener, args)
	}
}

// invoke runs one listener; failures never propagate to the caller.
func (b *Bus) invoke(event string, l Listener, args []any) {
	var failure error
	func() {
		defer func() {
			if r := recover(); r != nil {
				failure = fmt.Errorf("panic: %v", r)
			}
		}()
		failure = l(args...)
	}()
	if failure == nil {
		return
	}
	b.failures.Add(context.Background(), 1, metric.WithAttributes(attribute.String("event", event)))
	lerr := &ListenerError{Event: event, Cause: failure}
	go b.onError(lerr)
}
