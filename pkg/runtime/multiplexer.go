package runtime

import (
	"sync"

	"github.com/Mindburn-Labs/backplane/pkg/contract"
)

// subscriberBuffer bounds each subscriber's queue. A subscriber that falls
// further behind than this receives a lag notice instead of stale data.
const subscriberBuffer = 128

// Delivery is one item on a subscriber stream: either an event or a lag
// notice counting the events that subscriber missed.
type Delivery struct {
	Event  contract.AgentEvent
	Lagged int
}

// IsLag reports whether this delivery is a lag notice.
func (d Delivery) IsLag() bool { return d.Lagged > 0 }

type subscriber struct {
	ch     chan Delivery
	missed int
}

// Multiplexer tees one run's event stream to any number of subscribers
// without reordering. Slow subscribers lag rather than stall the run.
type Multiplexer struct {
	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int
	closed bool
}

// NewMultiplexer creates an open multiplexer.
func NewMultiplexer() *Multiplexer {
	return &Multiplexer{subs: map[int]*subscriber{}}
}

// Subscribe returns a delivery stream and its cancel function. Subscribing
// after close returns a closed stream.
func (m *Multiplexer) Subscribe() (<-chan Delivery, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan Delivery, subscriberBuffer)
	if m.closed {
		close(ch)
		return ch, func() {}
	}
	id := m.nextID
	m.nextID++
	m.subs[id] = &subscriber{ch: ch}

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(sub.ch)
		}
	}
	return ch, cancel
}

// Publish delivers one event to every subscriber. Full queues drop the event
// for that subscriber and count it; the count is surfaced as a lag notice as
// soon as the queue drains.
func (m *Multiplexer) Publish(event contract.AgentEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	for _, sub := range m.subs {
		if sub.missed > 0 {
			select {
			case sub.ch <- Delivery{Lagged: sub.missed}:
				sub.missed = 0
			default:
				sub.missed++
				continue
			}
		}
		select {
		case sub.ch <- Delivery{Event: event}:
		default:
			sub.missed++
		}
	}
}

// Close flushes pending lag notices and closes every subscriber stream. A
// subscriber with an outstanding lag count and a full queue receives the
// notice as soon as it drains a slot; the stream closes right after.
func (m *Multiplexer) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for _, sub := range m.subs {
		if sub.missed > 0 {
			notice := Delivery{Lagged: sub.missed}
			select {
			case sub.ch <- notice:
				close(sub.ch)
			default:
				go func(ch chan Delivery) {
					ch <- notice
					close(ch)
				}(sub.ch)
			}
		} else {
			close(sub.ch)
		}
	}
	m.subs = map[int]*subscriber{}
}
