package engine

import (
	"sync"
)

// eventPump is an unbounded FIFO between the adapter read goroutines and the
// consumer of Events(). Pushing never blocks, so a slow consumer cannot stall
// a DAP client that is also waiting for a response.
type eventPump struct {
	mu     sync.Mutex
	queue  []Event
	closed bool

	wake chan struct{}
	out  chan Event
	done chan struct{}
	once sync.Once
}

func newEventPump() *eventPump {
	p := &eventPump{
		wake: make(chan struct{}, 1),
		out:  make(chan Event),
		done: make(chan struct{}),
	}
	go p.run()
	return p
}

// Push queues ev; it is dropped after Close
func (p *eventPump) Push(ev Event) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.queue = append(p.queue, ev)
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Out delivers events in push order; it is closed after Close
func (p *eventPump) Out() <-chan Event {
	return p.out
}

// Close stops delivery and discards anything still queued
func (p *eventPump) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.queue = nil
		p.mu.Unlock()
		close(p.done)
	})
}

func (p *eventPump) run() {
	defer close(p.out)
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.mu.Unlock()
			select {
			case <-p.wake:
				continue
			case <-p.done:
				return
			}
		}
		ev := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		select {
		case p.out <- ev:
		case <-p.done:
			return
		}
	}
}
