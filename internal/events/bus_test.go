package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"smartassist/pkg/logger"
	"smartassist/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []model.LedgerEvent
}

func (r *recorder) observer(name string) Observer {
	return ObserverFunc{ObserverName: name, Fn: func(_ context.Context, e model.LedgerEvent) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, e)
		return nil
	}}
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func TestBus_DeliversInOrderAndDrainsOnClose(t *testing.T) {
	rec := &recorder{}
	bus := NewBus(logger.Discard(), 16, rec.observer("rec"))

	b := &model.Booking{ID: "b1"}
	bus.Publish(NewBookingEvent(model.EventBookingProposed, b, time.Now()))
	bus.Publish(NewBookingEvent(model.EventBookingApproved, b, time.Now()))
	bus.Publish(NewAnnouncementEvent(&model.Announcement{ID: "a1"}, time.Now()))

	require.NoError(t, bus.Close(context.Background()))
	assert.Equal(t, []string{
		model.EventBookingProposed,
		model.EventBookingApproved,
		model.EventAnnouncementPosted,
	}, rec.types())
}

func TestBus_FailingObserverDoesNotStopOthers(t *testing.T) {
	rec := &recorder{}
	failing := ObserverFunc{ObserverName: "failing", Fn: func(context.Context, model.LedgerEvent) error {
		return errors.New("broker down")
	}}
	panicking := ObserverFunc{ObserverName: "panicking", Fn: func(context.Context, model.LedgerEvent) error {
		panic("boom")
	}}
	bus := NewBus(logger.Discard(), 4, failing, panicking, rec.observer("rec"))

	bus.Publish(NewBookingEvent(model.EventBookingProposed, &model.Booking{ID: "b1"}, time.Now()))
	require.NoError(t, bus.Close(context.Background()))

	assert.Equal(t, []string{model.EventBookingProposed}, rec.types())
}

func TestBus_DropsWhenQueueFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	rec := &recorder{}

	blocking := ObserverFunc{ObserverName: "blocking", Fn: func(context.Context, model.LedgerEvent) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	}}
	bus := NewBus(logger.Discard(), 1, blocking, rec.observer("rec"))

	bus.Publish(NewBookingEvent(model.EventBookingProposed, &model.Booking{ID: "1"}, time.Now()))
	<-started

	bus.Publish(NewBookingEvent(model.EventBookingProposed, &model.Booking{ID: "2"}, time.Now()))
	bus.Publish(NewBookingEvent(model.EventBookingProposed, &model.Booking{ID: "3"}, time.Now()))

	close(release)
	require.NoError(t, bus.Close(context.Background()))

	assert.Len(t, rec.types(), 2, "the third event should have been dropped")
}

func TestBus_PublishAfterCloseIsDropped(t *testing.T) {
	rec := &recorder{}
	bus := NewBus(logger.Discard(), 4, rec.observer("rec"))
	require.NoError(t, bus.Close(context.Background()))
	require.NoError(t, bus.Close(context.Background()))

	bus.Publish(NewBookingEvent(model.EventBookingProposed, &model.Booking{ID: "b1"}, time.Now()))
	assert.Empty(t, rec.types())
}

func TestNewBookingEvent_CopiesBooking(t *testing.T) {
	b := &model.Booking{ID: "b1", Status: model.StatusPending}
	e := NewBookingEvent(model.EventBookingProposed, b, time.Now())
	b.Status = model.StatusApproved

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, model.StatusPending, e.Booking.Status)
}
