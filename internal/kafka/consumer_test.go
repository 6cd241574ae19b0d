package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-omise-storefront/internal/logging"
	"github.com/ariefcatur/go-omise-storefront/internal/retry"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("gateway timeout")

type memWriter struct {
	mu   sync.Mutex
	fail error
	msgs []kafka.Message
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail != nil {
		return w.fail
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func testConsumer() *Consumer {
	return &Consumer{
		workers: 1,
		log:     logging.New("storefront-test"),
		Retry:   retry.Policy{Attempts: 3, BaseDelay: time.Millisecond},
		Hold:    time.Millisecond,
	}
}

// failing fails the first n calls.
func failing(n int, calls *int) Handler {
	return func(context.Context, kafka.Message) error {
		*calls++
		if *calls <= n {
			return errTransient
		}
		return nil
	}
}

func TestProcess_RetriesTransientFailure(t *testing.T) {
	c := testConsumer()
	calls := 0

	assert.True(t, c.process(context.Background(), kafka.Message{Value: []byte("ev")}, failing(2, &calls)))
	assert.Equal(t, 3, calls)
}

func TestProcess_DeadLettersAfterRetries(t *testing.T) {
	c := testConsumer()
	dlq := &memWriter{}
	c.DeadLetter = dlq
	calls := 0
	m := kafka.Message{Key: []byte("chrg_1"), Value: []byte("ev"), Headers: []kafka.Header{{Key: HeaderEventType, Value: []byte("WebhookReceived")}}}

	assert.True(t, c.process(context.Background(), m, failing(100, &calls)))
	assert.Equal(t, 3, calls)
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, m.Value, dlq.msgs[0].Value)
	assert.Equal(t, "chrg_1", string(dlq.msgs[0].Key))
	assert.Equal(t, errTransient.Error(), HeaderValue(dlq.msgs[0], HeaderError))
	assert.Equal(t, "WebhookReceived", HeaderValue(dlq.msgs[0], HeaderEventType))
}

func TestProcess_HoldsPartitionUntilSuccess(t *testing.T) {
	c := testConsumer()
	calls := 0

	// Without a dead letter the message is retried round after round.
	assert.True(t, c.process(context.Background(), kafka.Message{Value: []byte("ev")}, failing(7, &calls)))
	assert.Equal(t, 8, calls)
}

func TestProcess_HoldsWhenDeadLetterFails(t *testing.T) {
	c := testConsumer()
	dlq := &memWriter{fail: errors.New("broker down")}
	c.DeadLetter = dlq
	calls := 0

	assert.True(t, c.process(context.Background(), kafka.Message{Value: []byte("ev")}, failing(4, &calls)))
	assert.Equal(t, 5, calls)
	assert.Empty(t, dlq.msgs)
}

func TestProcess_StopsWithContext(t *testing.T) {
	c := testConsumer()
	ctx, cancel := context.WithCancel(context.Background())
	h := func(context.Context, kafka.Message) error {
		cancel()
		return errTransient
	}

	assert.False(t, c.process(ctx, kafka.Message{Value: []byte("ev")}, h))
}

func TestWorkerFor_PinsPartitions(t *testing.T) {
	assert.Equal(t, 0, workerFor(0, 4))
	assert.Equal(t, 3, workerFor(7, 4))
	assert.Equal(t, workerFor(5, 3), workerFor(5, 3))
	assert.Equal(t, 0, workerFor(9, 1))
}
