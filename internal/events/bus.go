// Package events fans committed ledger mutations out to observers.
package events

import (
	"context"
	"sync"
	"time"

	"smartassist/pkg/logger"
	"smartassist/pkg/model"

	"github.com/google/uuid"
)

// Publisher accepts events for delivery. Publish never blocks.
type Publisher interface {
	Publish(event model.LedgerEvent)
}

type Observer interface {
	Name() string
	Notify(ctx context.Context, event model.LedgerEvent) error
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc struct {
	ObserverName string
	Fn           func(ctx context.Context, event model.LedgerEvent) error
}

func (f ObserverFunc) Name() string { return f.ObserverName }

func (f ObserverFunc) Notify(ctx context.Context, event model.LedgerEvent) error {
	return f.Fn(ctx, event)
}

const (
	DefaultQueueSize     = 256
	defaultNotifyTimeout = 10 * time.Second
)

// Bus delivers events to its observers from a single worker, so every
// observer sees events in publish order. A full queue drops the event.
type Bus struct {
	log       *logger.Logger
	observers []Observer
	queue     chan model.LedgerEvent
	timeout   time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewBus(log *logger.Logger, queueSize int, observers ...Observer) *Bus {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	b := &Bus{
		log:       log,
		observers: observers,
		queue:     make(chan model.LedgerEvent, queueSize),
		timeout:   defaultNotifyTimeout,
		done:      make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Bus) Publish(event model.LedgerEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.log.Warn("Event bus closed, dropping event", "event_id", event.ID, "type", event.Type)
		return
	}

	select {
	case b.queue <- event:
	default:
		b.log.Warn("Event queue full, dropping event", "event_id", event.ID, "type", event.Type)
	}
}

// Close stops accepting events and waits until queued ones are delivered or ctx ends.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
	b.mu.Unlock()

	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bus) run() {
	defer close(b.done)

	for event := range b.queue {
		for _, observer := range b.observers {
			b.deliver(observer, event)
		}
	}
}

func (b *Bus) deliver(observer Observer, event model.LedgerEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			b.log.Error("Observer panicked", "observer", observer.Name(), "event_id", event.ID, "panic", r)
		}
	}()

	if err := observer.Notify(ctx, event); err != nil {
		b.log.Error("Observer failed to handle event",
			"observer", observer.Name(),
			"event_id", event.ID,
			"type", event.Type,
			"error", err,
		)
		return
	}
	b.log.Debug("Event delivered", "observer", observer.Name(), "event_id", event.ID, "type", event.Type)
}

type nopPublisher struct{}

func (nopPublisher) Publish(model.LedgerEvent) {}

// Nop discards every event.
func Nop() Publisher { return nopPublisher{} }

func NewBookingEvent(eventType string, booking *model.Booking, at time.Time) model.LedgerEvent {
	return model.LedgerEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: at,
		Booking:    booking.Clone(),
	}
}

func NewAnnouncementEvent(announcement *model.Announcement, at time.Time) model.LedgerEvent {
	return model.LedgerEvent{
		ID:           uuid.NewString(),
		Type:         model.EventAnnouncementPosted,
		OccurredAt:   at,
		Announcement: announcement.Clone(),
	}
}
