// Package events delivers committed referral events to RabbitMQ and to
// websocket subscribers.
package events

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"stakereferral/internal/referral"
	"stakereferral/pkg/metrics"
)

const publishTimeout = 5 * time.Second

// Publisher is satisfied by *config.Publisher.
type Publisher interface {
	Publish(ctx context.Context, queueName string, message interface{}) error
}

// QueueEmitter publishes events to a queue from a background goroutine so
// Emit never waits on the broker. Events are dropped when the buffer is
// full.
type QueueEmitter struct {
	pub   Publisher
	queue string

	mu     sync.RWMutex
	closed bool
	ch     chan referral.Event
	done   chan struct{}
}

var _ referral.Emitter = (*QueueEmitter)(nil)

func NewQueueEmitter(pub Publisher, queue string, buffer int) *QueueEmitter {
	if buffer <= 0 {
		buffer = 256
	}
	q := &QueueEmitter{
		pub:   pub,
		queue: queue,
		ch:    make(chan referral.Event, buffer),
		done:  make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *QueueEmitter) Emit(ev referral.Event) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		metrics.ObserveDroppedEvent("queue")
		return
	}
	select {
	case q.ch <- ev:
	default:
		metrics.ObserveDroppedEvent("queue")
		log.WithFields(log.Fields{"queue": q.queue, "type": ev.Type}).Warn("event buffer full, dropping event")
	}
}

func (q *QueueEmitter) run() {
	defer close(q.done)
	for ev := range q.ch {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := q.pub.Publish(ctx, q.queue, ev)
		cancel()
		if err != nil {
			metrics.ObserveDroppedEvent("queue")
			log.WithFields(log.Fields{"queue": q.queue, "type": ev.Type}).WithError(err).Error("failed to publish event")
		}
	}
}

// Close stops accepting events and waits until the buffered ones are
// published.
func (q *QueueEmitter) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()
	<-q.done
}
