// Package notify provides the in-process publish/subscribe fanout used to
// tell presentation-layer consumers that the mech status changed. The
// cache never calls its consumers directly; it publishes here and they
// react on their own schedule.
package notify

import (
	"log"
	"sync"
	"time"
)

// Topic names a notification stream.
type Topic string

// TopicUpdateNeeded is published on every cache invalidation.
const TopicUpdateNeeded Topic = "status.update_needed"

// Message is one published notification.
type Message struct {
	Topic  Topic
	Reason string
	At     time.Time
}

type subscriber struct {
	topic Topic
	ch    chan Message
}

// Broker fans messages out to subscribers. Delivery is best-effort: a
// subscriber that stops draining its channel loses messages instead of
// blocking publishers.
type Broker struct {
	mu     sync.Mutex
	subs   map[int]subscriber
	nextID int
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[int]subscriber)}
}

// Subscribe registers interest in a topic. The returned cancel function
// unsubscribes and closes the channel.
func (b *Broker) Subscribe(topic Topic, buffer int) (<-chan Message, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Message, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = subscriber{topic: topic, ch: ch}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		sub, ok := b.subs[id]
		if ok {
			delete(b.subs, id)
		}
		b.mu.Unlock()
		if ok {
			close(sub.ch)
		}
	}
	return ch, cancel
}

// Publish delivers a message to every subscriber of its topic.
func (b *Broker) Publish(msg Message) {
	if msg.At.IsZero() {
		msg.At = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if sub.topic != msg.Topic {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			log.Printf("notify dropping message topic=%s reason=%s: subscriber not draining", msg.Topic, msg.Reason)
		}
	}
}
