// Package kafka wraps an async producer for order lifecycle events. Events
// are fire-and-forget: checkout never blocks or fails on the broker.
package kafka

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

type Producer struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}

	mu     sync.Mutex
	closed bool
}

func NewProducer(brokers []string, topic string, buf int) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        true,
		},
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

// Start drains the inbox on a goroutine until ctx is cancelled or Close is
// called, then flushes whatever is left before closing the writer.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer func() {
			_ = p.w.Close()
			close(p.closeCh)
		}()
		for {
			select {
			case <-ctx.Done():
				p.Close()
				for m := range p.inbox {
					p.write(m)
				}
				return
			case m, ok := <-p.inbox:
				if !ok {
					return
				}
				p.write(m)
			}
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		log.Printf("kafka: publish to %s failed: %v", p.w.Topic, err)
	}
}

// Publish enqueues a message keyed for partition affinity. Drops the message
// when the producer is shut down or the inbox is full rather than blocking or
// panicking; late publishes during shutdown are expected.
func (p *Producer) Publish(key, value []byte) {
	m := kafka.Message{Key: key, Value: value, Time: time.Now()}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		log.Printf("kafka: producer closed, dropping event for key %s", key)
		return
	}
	select {
	case p.inbox <- m:
	default:
		log.Printf("kafka: inbox full, dropping event for key %s", key)
	}
}

// Close stops accepting new messages and lets the drain goroutine flush the
// backlog. Safe to call more than once.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.inbox)
}

func (p *Producer) WaitClosed() { <-p.closeCh }
