// Package eventbus implements the in-process broadcast channel the shepherd uses to coordinate
// its run monitor, task monitors, and external cancellation initiators.
//
// Unlike the reference event bus this one is adapted from, Publish never blocks on a slow
// subscriber: each subscription owns a bounded buffer, and a publish that finds a full buffer
// drops the event for that subscriber and records a lag rather than stalling every other
// subscriber and the publisher itself. Subscribers only ever see events published after they
// subscribed — there is no history and no replay.
package eventbus

import (
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/coldforge/shepherd/internal/events"
	"github.com/rs/zerolog/log"
)

// subscriberBufferSize bounds how many unread events a subscriber may lag behind before the bus
// starts dropping events destined for it.
const subscriberBufferSize = 32

// Subscription is a live receiver on the bus. Events is safe to range/receive from until
// Unsubscribe is called.
type Subscription struct {
	id     string
	Events chan events.Event

	mu      sync.Mutex
	dropped uint64
}

// Dropped reports how many events this subscription has lost to buffer overflow so far.
func (s *Subscription) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *Subscription) recordDrop() {
	s.mu.Lock()
	s.dropped++
	s.mu.Unlock()
}

func generateID() string {
	b := make([]byte, 5)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%x", b)
}

// Bus is a multi-producer/multi-consumer broadcast channel of typed events.
type Bus struct {
	mu          sync.Mutex
	subscribers []*Subscription
}

func New() *Bus {
	return &Bus{}
}

// Subscribe registers a new receiver. It observes every event published after this call returns;
// it never sees events published before it.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{
		id:     generateID(),
		Events: make(chan events.Event, subscriberBufferSize),
	}
	b.subscribers = append(b.subscribers, sub)
	return sub
}

func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subscribers {
		if s.id != sub.id {
			continue
		}
		b.subscribers[i] = b.subscribers[len(b.subscribers)-1]
		b.subscribers = b.subscribers[:len(b.subscribers)-1]
		return
	}
}

// Publish delivers evt to every live subscriber with best effort. It never blocks: a subscriber
// whose buffer is full simply loses the event, and the loss is logged rather than surfaced to the
// publisher.
func (b *Bus) Publish(evt events.Event) {
	b.mu.Lock()
	subs := make([]*Subscription, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.Events <- evt:
		default:
			sub.recordDrop()
			log.Warn().
				Str("event_kind", string(evt.Kind())).
				Str("subscription_id", sub.id).
				Msg("subscriber buffer full, dropping event")
		}
	}
}
