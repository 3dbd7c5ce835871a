package bus

import (
	"strings"
	"sync"
	"sync/atomic"
)

// Bus is an in-process publish/subscribe event bus with namespace filtering.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]*subscription
	next    int
	dropped atomic.Uint64
}

type subscription struct {
	namespace string
	ch        chan Event
	lossless  bool
	done      chan struct{}
	closeOnce sync.Once
}

func (s *subscription) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		subs: make(map[int]*subscription),
	}
}

// Publish sends an event to all subscribers whose namespace is a prefix of evt.Kind.
// Lossy subscribers with a full buffer miss the event; lossless subscribers
// block the publisher until they receive it or unsubscribe.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	matched := make([]*subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if strings.HasPrefix(evt.Kind, sub.namespace) {
			matched = append(matched, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range matched {
		if sub.lossless {
			select {
			case sub.ch <- evt:
			case <-sub.done:
			}
			continue
		}
		select {
		case sub.ch <- evt:
		case <-sub.done:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns how many events lossy subscribers missed.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Subscribe returns a channel that receives events matching the given namespace prefix.
// Events are dropped when the buffer is full. Returns the channel and an unsubscribe function.
func (b *Bus) Subscribe(namespace string, bufSize int) (<-chan Event, func()) {
	return b.subscribe(namespace, bufSize, false)
}

// SubscribeLossless is like Subscribe but never drops: publishers wait for
// buffer space. The subscriber must keep reading until it unsubscribes.
func (b *Bus) SubscribeLossless(namespace string, bufSize int) (<-chan Event, func()) {
	return b.subscribe(namespace, bufSize, true)
}

func (b *Bus) subscribe(namespace string, bufSize int, lossless bool) (<-chan Event, func()) {
	sub := &subscription{
		namespace: namespace,
		ch:        make(chan Event, bufSize),
		lossless:  lossless,
		done:      make(chan struct{}),
	}
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = sub
	b.mu.Unlock()

	return sub.ch, func() {
		// Release blocked publishers before taking the write lock.
		sub.close()
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}
