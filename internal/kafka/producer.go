package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ariefcatur/go-omise-storefront/internal/logging"
	"github.com/segmentio/kafka-go"
)

// Producer publishes to one topic from a buffered inbox. Publish never waits
// on the broker; write failures are logged.
type Producer struct {
	w       *kafka.Writer
	topic   string
	log     *logging.Logger
	inbox   chan kafka.Message
	closeCh chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewProducer(brokers []string, topic string, buf int, log *logging.Logger) *Producer {
	p := &Producer{
		topic:   topic,
		log:     log,
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
	p.w = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion:   p.completed,
	}
	return p
}

// Start runs the write loop until Close is called or ctx is done. Messages
// already queued are flushed before the writer closes.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		p.Close()
	}()
	go func() {
		defer close(p.closeCh)
		for m := range p.inbox {
			if err := p.w.WriteMessages(context.Background(), m); err != nil {
				p.log.Error(logging.Fields{Step: "kafka_write", Message: p.topic, Error: err.Error()})
			}
		}
		if err := p.w.Close(); err != nil {
			p.log.Error(logging.Fields{Step: "kafka_close", Message: p.topic, Error: err.Error()})
		}
	}()
}

func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.log.Warn(logging.Fields{Step: "kafka_publish", Message: "producer closed, dropped message for " + p.topic})
		return
	}
	p.inbox <- kafka.Message{
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
}

// Close stops accepting messages. Safe to call more than once.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
}

// WaitClosed blocks until queued messages are flushed.
func (p *Producer) WaitClosed() { <-p.closeCh }

func (p *Producer) completed(msgs []kafka.Message, err error) {
	if err == nil {
		return
	}
	p.log.Error(logging.Fields{
		Step:    "kafka_write",
		Message: fmt.Sprintf("%s: %d message(s) not delivered", p.topic, len(msgs)),
		Error:   err.Error(),
	})
}
