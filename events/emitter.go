// Package events fans committed chain events out to subscribers (RPC
// WebSocket clients, the indexer) after each block commits.
package events

import (
	"sync"

	"github.com/seloria/seloria/core"
)

// subscriberBuffer is how many events a slow subscriber may lag behind
// before further events are dropped for it, so one stuck consumer cannot
// block block commits.
const subscriberBuffer = 256

// Emitter is a one-to-many broadcaster of core.Event.
type Emitter struct {
	mu          sync.Mutex
	nextID      uint64
	subscribers map[uint64]chan core.Event
}

// NewEmitter returns an empty Emitter.
func NewEmitter() *Emitter {
	return &Emitter{subscribers: make(map[uint64]chan core.Event)}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function the caller must invoke when done.
func (e *Emitter) Subscribe() (<-chan core.Event, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	ch := make(chan core.Event, subscriberBuffer)
	e.subscribers[id] = ch
	return ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if sub, ok := e.subscribers[id]; ok {
			delete(e.subscribers, id)
			close(sub)
		}
	}
}

// Publish fans each event in batch out to every current subscriber. A
// subscriber whose buffer is full has the event dropped for it rather than
// blocking the caller (typically the consensus commit path).
func (e *Emitter) Publish(batch []core.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ev := range batch {
		for _, ch := range e.subscribers {
			select {
			case ch <- ev:
			default:
			}
		}
	}
}
