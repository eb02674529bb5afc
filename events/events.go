// Package events carries run lifecycle notifications out of the engine.
//
// Notifications are observational only: they are published after a run has
// already been mutated and can never influence routing, so they sit outside
// the engine's determinism guarantee.
package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Notification types published by the engine.
const (
	NotifyRunStarted   = "run_started"
	NotifyEventApplied = "event_applied"
	NotifyRunCompleted = "run_completed"
)

var (
	// ErrBusClosed indicates the bus has been stopped.
	ErrBusClosed = errors.New("notification bus is closed")
	// ErrChannelFull indicates the notification channel cannot accept more.
	ErrChannelFull = errors.New("notification channel is full")
)

// Notification describes one run lifecycle occurrence.
type Notification struct {
	Type  string
	RunID string
	Data  map[string]interface{}
}

// Handler consumes notifications.
type Handler interface {
	Handle(ctx context.Context, n Notification) error
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(ctx context.Context, n Notification) error

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// Bus fans notifications out to subscribed handlers from a single worker
// goroutine. Publishing never blocks the caller.
type Bus struct {
	mu         sync.RWMutex
	handlers   map[string][]Handler
	ch         chan Notification
	errHandler func(n Notification, err error)
	wg         sync.WaitGroup
	closeMu    sync.Mutex
	closed     bool
}

// Option configures a Bus.
type Option func(*Bus)

// WithBufferSize sets the notification channel buffer size.
func WithBufferSize(size int) Option {
	return func(b *Bus) {
		b.ch = make(chan Notification, size)
	}
}

// WithErrorHandler sets the function invoked when a handler returns an error.
func WithErrorHandler(handler func(n Notification, err error)) Option {
	return func(b *Bus) {
		b.errHandler = handler
	}
}

// NewBus creates a Bus and starts its worker. The default buffer holds 100
// notifications and handler errors are logged through slog.
func NewBus(options ...Option) *Bus {
	b := &Bus{
		handlers: make(map[string][]Handler),
		ch:       make(chan Notification, 100),
		errHandler: func(n Notification, err error) {
			slog.Error("notification handler failed",
				"type", n.Type, "run_id", n.RunID, "error", err)
		},
	}
	for _, option := range options {
		option(b)
	}

	b.wg.Add(1)
	go b.process()
	return b
}

// Subscribe registers a handler for a notification type.
func (b *Bus) Subscribe(notifyType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[notifyType] = append(b.handlers[notifyType], handler)
}

// SubscribeFunc registers a plain function as a handler.
func (b *Bus) SubscribeFunc(notifyType string, fn func(ctx context.Context, n Notification) error) {
	b.Subscribe(notifyType, HandlerFunc(fn))
}

// Publish enqueues a notification without blocking. It fails if the bus is
// stopped or the buffer is full; callers that only observe may ignore the
// error.
func (b *Bus) Publish(ctx context.Context, n Notification) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	b.closeMu.Lock()
	defer b.closeMu.Unlock()
	if b.closed {
		return ErrBusClosed
	}

	select {
	case b.ch <- n:
		return nil
	default:
		return ErrChannelFull
	}
}

// Stop shuts the worker down after draining buffered notifications.
func (b *Bus) Stop() {
	b.closeMu.Lock()
	if !b.closed {
		b.closed = true
		close(b.ch)
	}
	b.closeMu.Unlock()
	b.wg.Wait()
}

func (b *Bus) process() {
	defer b.wg.Done()
	for n := range b.ch {
		b.mu.RLock()
		handlers := b.handlers[n.Type]
		b.mu.RUnlock()

		for _, h := range handlers {
			if err := h.Handle(context.Background(), n); err != nil {
				b.errHandler(n, err)
			}
		}
	}
}
