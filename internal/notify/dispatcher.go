package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ksred/klear-exec/internal/execution"
	"github.com/ksred/klear-exec/internal/metrics"
)

var (
	ErrQueueFull = errors.New("notify: queue full")
	ErrClosed    = errors.New("notify: dispatcher closed")
)

type subscription struct {
	id       uint64
	listener execution.Listener
}

// Dispatcher delivers order executed notifications to subscribers on its
// own goroutine. Publishing never blocks the caller.
type Dispatcher struct {
	logger  zerolog.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	ch     chan execution.Notification
	closed bool

	subsMu sync.RWMutex
	subs   []subscription
	nextID uint64

	dropped atomic.Uint64
}

// NewDispatcher creates a dispatcher with a bounded queue. m may be nil.
func NewDispatcher(capacity int, m *metrics.Metrics) *Dispatcher {
	if capacity <= 0 {
		capacity = 1
	}
	return &Dispatcher{
		logger:  log.With().Str("component", "notify_dispatcher").Logger(),
		metrics: m,
		ch:      make(chan execution.Notification, capacity),
	}
}

// Publish enqueues n without blocking
func (d *Dispatcher) Publish(n execution.Notification) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}
	select {
	case d.ch <- n:
		return nil
	default:
		d.dropped.Add(1)
		if d.metrics != nil {
			d.metrics.NotificationsDropped.Inc()
		}
		return ErrQueueFull
	}
}

// OrderExecuted implements execution.Listener
func (d *Dispatcher) OrderExecuted(n execution.Notification) {
	if err := d.Publish(n); err != nil {
		d.logger.Warn().
			Err(err).
			Str("notification_id", n.ID().String()).
			Msg("notification not queued")
	}
}

// Subscribe registers l and returns a function that removes it
func (d *Dispatcher) Subscribe(l execution.Listener) func() {
	d.subsMu.Lock()
	d.nextID++
	id := d.nextID
	d.subs = append(d.subs, subscription{id: id, listener: l})
	d.subsMu.Unlock()

	return func() {
		d.subsMu.Lock()
		defer d.subsMu.Unlock()
		for i, s := range d.subs {
			if s.id == id {
				d.subs = append(d.subs[:i:i], d.subs[i+1:]...)
				return
			}
		}
	}
}

// Dropped is the number of notifications rejected on a full queue
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Run delivers queued notifications until ctx is done or the dispatcher
// is closed and drained.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info().Msg("starting notification dispatcher")

	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("shutting down notification dispatcher")
			return
		case n, ok := <-d.ch:
			if !ok {
				d.logger.Info().Msg("notification queue closed")
				return
			}
			d.deliver(n)
		}
	}
}

// Close stops accepting notifications. Queued ones are still delivered
// by Run.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.ch)
}

func (d *Dispatcher) deliver(n execution.Notification) {
	d.subsMu.RLock()
	subs := make([]subscription, len(d.subs))
	copy(subs, d.subs)
	d.subsMu.RUnlock()

	for _, s := range subs {
		d.safeCall(s.listener, n)
	}
	if d.metrics != nil {
		d.metrics.NotificationsDelivered.Inc()
	}
}

func (d *Dispatcher) safeCall(l execution.Listener, n execution.Notification) {
	defer func() {
		if r := recover(); r != nil {
			if d.metrics != nil {
				d.metrics.ListenerPanics.Inc()
			}
			d.logger.Error().
				Interface("panic", r).
				Str("notification_id", n.ID().String()).
				Msg("listener panicked")
		}
	}()
	l.OrderExecuted(n)
}
