package events

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrQueueFull is returned when the async publisher cannot accept more events
var ErrQueueFull = errors.New("event queue full")

// AsyncPublisher queues events and delivers them in order from a single goroutine. Publish
// does not block on the inner publisher.
type AsyncPublisher struct {
	inner  Publisher
	queue  chan Event
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsyncPublisher starts a delivery goroutine in front of inner
func NewAsyncPublisher(inner Publisher, size int, logger *zap.Logger) *AsyncPublisher {
	if size <= 0 {
		size = 256
	}
	p := &AsyncPublisher{
		inner:  inner,
		queue:  make(chan Event, size),
		logger: logger,
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish implements Publisher. It never blocks.
func (p *AsyncPublisher) Publish(_ context.Context, ev Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil
	}
	select {
	case p.queue <- ev:
		return nil
	default:
		p.logger.Warn("dropping session event, queue full",
			zap.String("session_id", ev.SessionID),
			zap.String("type", string(ev.Type)),
		)
		return ErrQueueFull
	}
}

// Close stops accepting events and waits until the queued ones are delivered
func (p *AsyncPublisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.done
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	<-p.done
}

func (p *AsyncPublisher) run() {
	defer close(p.done)
	for ev := range p.queue {
		// delivery errors are logged by the inner publisher
		_ = p.inner.Publish(context.Background(), ev)
	}
}
