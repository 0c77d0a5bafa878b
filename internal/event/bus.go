package event

import (
	"log/slog"
	"sync"
)

const defaultBuffer = 100

type subscription struct {
	ch      chan Event
	dropped uint64
}

// InMemoryBus fans events out to subscribers inside one process.
type InMemoryBus struct {
	mu     sync.Mutex
	seq    uint64
	nextID uint64
	subs   map[uint64]*subscription
	buffer int
}

func NewBus() *InMemoryBus {
	return NewBusWithBuffer(defaultBuffer)
}

// NewBusWithBuffer sets how many undelivered events each subscriber may
// hold before it starts missing them.
func NewBusWithBuffer(buffer int) *InMemoryBus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &InMemoryBus{subs: map[uint64]*subscription{}, buffer: buffer}
}

// Publish stamps e with the next sequence number and never blocks. A
// subscriber with a full buffer misses the event, which shows up to it as
// a gap in Seq.
func (b *InMemoryBus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	e.Seq = b.seq

	for id, sub := range b.subs {
		select {
		case sub.ch <- e:
		default:
			sub.dropped++
			if sub.dropped == 1 || sub.dropped%100 == 0 {
				slog.Warn("event dropped for slow subscriber", "subscriber", id, "type", e.Type, "dropped", sub.dropped)
			}
		}
	}
}

func (b *InMemoryBus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	sub := &subscription{ch: make(chan Event, b.buffer)}
	b.subs[id] = sub

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(sub.ch)
		})
	}

	return sub.ch, unsubscribe
}

// Subscribers reports how many subscriptions are open.
func (b *InMemoryBus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
