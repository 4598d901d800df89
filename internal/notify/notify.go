// Package notify fans journal change events out to every interested
// listener in the process: open HTTP event streams, CLI watchers, tests.
//
// Publish never blocks. Each subscriber has its own buffered channel and a
// subscriber that falls behind simply misses events; a change event carries
// no payload, so a missed one is recovered by the next.
package notify

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventJournalChanged is published after every successful create, update or
// delete.
const EventJournalChanged = "journal.changed"

// Event is a change notification. Sequence increases by one per Publish.
type Event struct {
	Name     string    `json:"name"`
	Sequence int64     `json:"sequence"`
	At       time.Time `json:"at"`
}

// Publisher is the narrow interface the service layer depends on.
type Publisher interface {
	Publish(name string)
}

// Broadcaster is a process-wide event bus. The zero value is not usable;
// call New.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed bool

	sequence  atomic.Int64
	published atomic.Int64
	dropped   atomic.Int64

	now func() time.Time
}

type subscriber struct {
	ch        chan Event
	closeOnce sync.Once
}

func (s *subscriber) close() {
	s.closeOnce.Do(func() { close(s.ch) })
}

// New returns an empty Broadcaster.
func New() *Broadcaster {
	return &Broadcaster{
		subs: make(map[*subscriber]struct{}),
		now:  time.Now,
	}
}

// Subscribe registers a listener with the given channel buffer. The
// returned cancel func unregisters it and closes the channel; it is safe to
// call more than once. Subscribing to a closed Broadcaster returns an
// already-closed channel.
func (b *Broadcaster) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	sub := &subscriber{ch: make(chan Event, buffer)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.close()
		return sub.ch, func() {}
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
		sub.close()
	}
	return sub.ch, cancel
}

// Publish sends an event named name to every subscriber without blocking.
func (b *Broadcaster) Publish(name string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	ev := Event{
		Name:     name,
		Sequence: b.sequence.Add(1),
		At:       b.now().UTC(),
	}
	b.published.Add(1)

	for sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// Close unregisters and closes every subscriber. Later publishes are ignored.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		sub.close()
	}
	b.subs = nil
}

// Subscribers returns the number of registered listeners.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Published returns how many events have been published.
func (b *Broadcaster) Published() int64 { return b.published.Load() }

// Dropped returns how many per-subscriber deliveries were skipped because a
// subscriber's buffer was full.
func (b *Broadcaster) Dropped() int64 { return b.dropped.Load() }
