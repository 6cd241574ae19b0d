package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ariefcatur/go-omise-storefront/internal/logging"
	"github.com/ariefcatur/go-omise-storefront/internal/retry"
	"github.com/segmentio/kafka-go"
)

// Handler returns nil only when the message is done with and its offset may
// be committed.
type Handler func(ctx context.Context, m kafka.Message) error

// MessageWriter is satisfied by a synchronous *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// HeaderError carries the last handler error on dead-lettered messages.
const HeaderError = "x-error"

type Consumer struct {
	r       *kafka.Reader
	workers int
	log     *logging.Logger

	// Retry bounds the attempts for one message before it is dead-lettered.
	Retry retry.Policy
	// DeadLetter receives messages that exhausted Retry. Without it a failing
	// message holds its partition until it succeeds.
	DeadLetter MessageWriter
	// Hold is the pause between rounds while a partition is held.
	Hold time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int, log *logging.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // commit synchronously after each handled message
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{
		r:       r,
		workers: workers,
		log:     log,
		Retry:   retry.Policy{Attempts: 5, BaseDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second},
		Hold:    10 * time.Second,
	}
}

// NewDeadLetterWriter returns a synchronous writer for a dead-letter topic.
func NewDeadLetterWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
}

// Start fetches messages until ctx is done. Each partition is pinned to one
// worker, so offsets are committed in order and a message is committed only
// after it was handled or dead-lettered.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range jobs {
		jobs[i] = make(chan kafka.Message, 4)
		wg.Add(1)
		go func(in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				if !c.process(ctx, m, h) {
					// ctx ended; the rest stays uncommitted for the next member.
					continue
				}
				if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
					c.log.Error(logging.Fields{Step: "kafka_commit", Message: m.Topic, Error: err.Error()})
				}
			}
		}(jobs[i])
	}
	defer func() {
		for _, ch := range jobs {
			close(ch)
		}
		wg.Wait()
	}()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		select {
		case jobs[workerFor(m.Partition, c.workers)] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

func workerFor(partition, workers int) int {
	if partition < 0 {
		partition = -partition
	}
	return partition % workers
}

// process handles m until it may be committed. It returns false only when
// ctx ended first.
func (c *Consumer) process(ctx context.Context, m kafka.Message, h Handler) bool {
	for {
		err := c.Retry.Do(ctx, func(ctx context.Context) error { return h(ctx, m) })
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		c.log.Error(logging.Fields{Step: "kafka_consume", Message: m.Topic, Error: err.Error()})

		if c.DeadLetter != nil {
			dead := kafka.Message{
				Key:     m.Key,
				Value:   m.Value,
				Headers: append(append([]kafka.Header{}, m.Headers...), kafka.Header{Key: HeaderError, Value: []byte(err.Error())}),
			}
			werr := c.DeadLetter.WriteMessages(ctx, dead)
			if werr == nil {
				c.log.Warn(logging.Fields{Step: "kafka_dead_letter", Message: m.Topic, Error: err.Error()})
				return true
			}
			if ctx.Err() != nil {
				return false
			}
			c.log.Error(logging.Fields{Step: "kafka_dead_letter", Message: m.Topic, Error: werr.Error()})
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.Hold):
		}
	}
}
