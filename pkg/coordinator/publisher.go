package coordinator

import (
	"sync"

	"github.com/andreweacott/radiotherm-coordinator/pkg/logger"
)

// publisher fans refresh notifications out to subscribers. Each subscriber
// channel holds one notification; a slow reader only ever sees the latest.
type publisher[T any] struct {
	clients map[chan T]struct{}
	log     *logger.Entry
	lock    sync.RWMutex
}

func newPublisher[T any](log *logger.Entry) *publisher[T] {
	return &publisher[T]{
		clients: make(map[chan T]struct{}),
		log:     log,
	}
}

func (p *publisher[T]) subscribe() <-chan T {
	p.lock.Lock()
	defer p.lock.Unlock()
	ch := make(chan T, 1)
	p.clients[ch] = struct{}{}
	p.log.Debug("subscriber added", "subscribers", len(p.clients))
	return ch
}

func (p *publisher[T]) unsubscribe(ch <-chan T) {
	p.lock.Lock()
	defer p.lock.Unlock()
	for client := range p.clients {
		if (<-chan T)(client) == ch {
			delete(p.clients, client)
		}
	}
	p.log.Debug("subscriber removed", "subscribers", len(p.clients))
}

func (p *publisher[T]) publish(info T) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	for ch := range p.clients {
		select {
		case ch <- info:
			continue
		default:
		}
		// drop the stale notification the reader has not picked up yet
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- info:
		default:
		}
	}
}

func (p *publisher[T]) subscribers() int {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return len(p.clients)
}
