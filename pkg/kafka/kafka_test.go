package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"smartassist/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageBuilder(t *testing.T) {
	ts := time.Date(2026, 2, 25, 14, 0, 0, 0, time.UTC)
	msg, err := NewMessage().
		WithKey("booking-1").
		WithValue(map[string]string{"status": "pending"}).
		WithEventType("booking.proposed").
		WithSource("portal").
		WithTimestamp(ts).
		Build()
	require.NoError(t, err)

	assert.Equal(t, "booking-1", msg.Key)
	assert.JSONEq(t, `{"status":"pending"}`, string(msg.Value))
	assert.Equal(t, "booking.proposed", msg.GetEventType())
	assert.NotEmpty(t, msg.GetEventID())
	assert.Equal(t, ts.Format(time.RFC3339Nano), msg.Headers[HeaderTimestamp])
}

func TestMessageBuilder_EncodingError(t *testing.T) {
	_, err := NewMessage().WithKey("k").WithValue(make(chan int)).Build()
	assert.Error(t, err)
}

func TestMessage_RetryCount(t *testing.T) {
	msg := Message{}
	assert.Equal(t, 0, msg.GetRetryCount())

	for i := 0; i < 12; i++ {
		msg.IncrementRetryCount()
	}
	assert.Equal(t, 12, msg.GetRetryCount())
	assert.Equal(t, "12", msg.Headers[HeaderRetryCount])
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil", nil, ErrorTypeUnknown},
		{"explicit transient", NewTransientError("smtp down", errors.New("x")), ErrorTypeTransient},
		{"explicit permanent", NewPermanentError("bad payload", errors.New("x")), ErrorTypePermanent},
		{"wrapped transient", fmt.Errorf("notify: %w", NewTransientError("smtp", nil)), ErrorTypeTransient},
		{"deadline", context.DeadlineExceeded, ErrorTypeTransient},
		{"connection refused text", errors.New("dial tcp: Connection Refused"), ErrorTypeTransient},
		{"schema", errors.New("schema mismatch on field"), ErrorTypePermanent},
		{"unknown defaults to permanent", errors.New("something odd"), ErrorTypePermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

func TestShouldRetry(t *testing.T) {
	transient := NewTransientError("t", nil)
	assert.True(t, ShouldRetry(transient, 0, 3))
	assert.False(t, ShouldRetry(transient, 3, 3))
	assert.False(t, ShouldRetry(NewPermanentError("p", nil), 0, 3))
	assert.False(t, ShouldRetry(nil, 0, 3))
}

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		msg := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) Committed() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	// failures is the number of upcoming writes that fail; negative fails forever.
	failures int
	attempts int
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts++
	if w.failures != 0 {
		if w.failures > 0 {
			w.failures--
		}
		return errors.New("dlq broker unreachable")
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Attempts() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.attempts
}

func (w *fakeWriter) Close() error { return nil }

func (w *fakeWriter) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.messages)
}

func newTestConsumer(reader messageReader, dlq messageWriter, handler MessageHandler) *Consumer {
	return &Consumer{
		reader:     reader,
		dlqWriter:  dlq,
		topic:      "ledger",
		groupID:    "notifier",
		dlqTopic:   "ledger.dlq",
		maxRetries: 2,
		dlqBackoff: 5 * time.Millisecond,
		handler:    handler,
		log:        logger.Discard(),
	}
}

func TestConsumer_RetriesTransientThenSucceeds(t *testing.T) {
	reader := &fakeReader{pending: []kafka.Message{{Key: []byte("k"), Value: []byte("{}"), Offset: 7}}}
	dlq := &fakeWriter{}

	var calls int
	c := newTestConsumer(reader, dlq, func(ctx context.Context, msg Message) error {
		calls++
		if calls == 1 {
			return NewTransientError("smtp busy", nil)
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return len(reader.Committed()) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, 2, calls)
	assert.Equal(t, []int64{7}, reader.Committed())
	assert.Equal(t, 0, dlq.Len())
}

func TestConsumer_PermanentFailureGoesToDLQ(t *testing.T) {
	reader := &fakeReader{pending: []kafka.Message{{Key: []byte("k"), Value: []byte("not json"), Offset: 3}}}
	dlq := &fakeWriter{}

	c := newTestConsumer(reader, dlq, func(ctx context.Context, msg Message) error {
		return NewPermanentError("deserialization failed", nil)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return len(reader.Committed()) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	require.Equal(t, 1, dlq.Len())
	headers := map[string]string{}
	for _, h := range dlq.messages[0].Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "ledger", headers[HeaderOriginalTopic])
	assert.Equal(t, "notifier", headers[HeaderDLQGroup])
	assert.Contains(t, headers[HeaderDLQError], "deserialization failed")
}

func TestConsumer_DLQFailureIsRetriedBeforeLaterCommits(t *testing.T) {
	reader := &fakeReader{pending: []kafka.Message{
		{Key: []byte("k"), Value: []byte("not json"), Offset: 3},
		{Key: []byte("k"), Value: []byte("{}"), Offset: 4},
	}}
	dlq := &fakeWriter{failures: 2}

	c := newTestConsumer(reader, dlq, func(ctx context.Context, msg Message) error {
		if msg.Offset == 3 {
			return NewPermanentError("deserialization failed", nil)
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return len(reader.Committed()) == 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, []int64{3, 4}, reader.Committed())
	assert.Equal(t, 3, dlq.Attempts())
	assert.Equal(t, 1, dlq.Len())
}

func TestConsumer_UnreachableDLQStopsWithoutCommitting(t *testing.T) {
	reader := &fakeReader{pending: []kafka.Message{
		{Key: []byte("k"), Value: []byte("not json"), Offset: 3},
		{Key: []byte("k"), Value: []byte("{}"), Offset: 4},
	}}
	dlq := &fakeWriter{failures: -1}

	var handled []int64
	var mu sync.Mutex
	c := newTestConsumer(reader, dlq, func(ctx context.Context, msg Message) error {
		mu.Lock()
		handled = append(handled, msg.Offset)
		mu.Unlock()
		if msg.Offset == 3 {
			return NewPermanentError("deserialization failed", nil)
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return dlq.Attempts() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	err := <-done
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, reader.Committed())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int64{3}, handled, "later messages are not consumed past the failed one")
}

func TestConsumer_MiddlewareOrder(t *testing.T) {
	var order []string
	c := newTestConsumer(&fakeReader{}, nil, func(ctx context.Context, msg Message) error {
		order = append(order, "handler")
		return nil
	})
	for _, name := range []string{"outer", "inner"} {
		name := name
		c.Use(func(ctx context.Context, msg Message, next MessageHandler) error {
			order = append(order, name)
			return next(ctx, msg)
		})
	}

	require.NoError(t, c.processMessage(context.Background(), Message{Headers: map[string]string{}}))
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}
