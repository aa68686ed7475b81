// Package tfbus provides in-process pub/sub distribution of frame transform
// batches. It is the transport boundary of the frametrack core: producers
// publish batches to a topic, consumers subscribe and receive them on
// buffered channels.
//
// Delivery is non-blocking: a subscriber that cannot keep up misses batches
// rather than stalling producers. Topics configured as latched replay the
// most recent message per (parent, child) edge to late subscribers, which is
// how static transforms survive subscribers that start after the publisher.
package tfbus

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Topic names shared by the listener and broadcaster defaults.
const (
	TopicDynamic = "tf"
	TopicStatic  = "tf_static"
)

// DefaultSubscriptionDepth is the channel buffer length for subscribers.
const DefaultSubscriptionDepth = 64

// ErrClosed is returned by Publish after the bus has been closed.
var ErrClosed = errors.New("tfbus: bus closed")

// TransformMessage is the wire shape of one transform update: frame pair,
// stamp in unix nanoseconds, translation and (x, y, z, w) rotation.
type TransformMessage struct {
	ParentFrame string
	ChildFrame  string
	StampNanos  int64
	Translation [3]float64
	Rotation    [4]float64
}

// Batch is the unit of delivery; producers typically publish all transforms
// sampled at one instant together.
type Batch []TransformMessage

// Config tunes a Bus. Zero values select defaults.
type Config struct {
	// SubscriptionDepth is the per-subscriber channel buffer length.
	SubscriptionDepth int

	// LatchedTopics lists topics whose newest message per edge is replayed
	// to late subscribers. Defaults to {TopicStatic}.
	LatchedTopics []string
}

type edgeKey struct {
	parent, child string
}

// Bus fans batches out to topic subscribers.
type Bus struct {
	depth   int
	dropped atomic.Uint64

	mu      sync.Mutex
	closed  bool
	subs    map[string]map[string]*Subscription
	latched map[string]map[edgeKey]TransformMessage
}

// New creates a bus.
func New(cfg Config) *Bus {
	depth := cfg.SubscriptionDepth
	if depth < 1 {
		depth = DefaultSubscriptionDepth
	}
	latchedTopics := cfg.LatchedTopics
	if latchedTopics == nil {
		latchedTopics = []string{TopicStatic}
	}
	latched := make(map[string]map[edgeKey]TransformMessage, len(latchedTopics))
	for _, topic := range latchedTopics {
		latched[topic] = make(map[edgeKey]TransformMessage)
	}
	return &Bus{
		depth:   depth,
		subs:    make(map[string]map[string]*Subscription),
		latched: latched,
	}
}

// Subscription is one consumer's attachment to a topic.
type Subscription struct {
	id    string
	topic string
	bus   *Bus
	ch    chan Batch
}

// ID returns the subscription's unique identifier.
func (s *Subscription) ID() string { return s.id }

// Topic returns the subscribed topic.
func (s *Subscription) Topic() string { return s.topic }

// C returns the delivery channel. It is closed when the subscription is
// cancelled or the bus shuts down.
func (s *Subscription) C() <-chan Batch { return s.ch }

// Cancel detaches the subscription and closes its channel. Safe to call more
// than once.
func (s *Subscription) Cancel() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	s.bus.removeLocked(s)
}

// Subscribe attaches a new consumer to topic. If the topic is latched, the
// retained messages are delivered as a single batch before anything else.
func (b *Bus) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		id:    uuid.New().String(),
		topic: topic,
		bus:   b,
		ch:    make(chan Batch, b.depth),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub
	}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[string]*Subscription)
	}
	b.subs[topic][sub.id] = sub

	if retained := b.latched[topic]; len(retained) > 0 {
		replay := make(Batch, 0, len(retained))
		for _, msg := range retained {
			replay = append(replay, msg)
		}
		sort.Slice(replay, func(i, j int) bool {
			if replay[i].ParentFrame != replay[j].ParentFrame {
				return replay[i].ParentFrame < replay[j].ParentFrame
			}
			return replay[i].ChildFrame < replay[j].ChildFrame
		})
		// Channel depth is at least 1 and the subscription is brand new, so
		// this cannot block.
		sub.ch <- replay
	}
	return sub
}

// Publish fans batch out to every subscriber of topic. Subscribers with full
// channels miss the batch and the bus drop counter is incremented. On latched
// topics the newest message per edge is retained for future subscribers.
func (b *Bus) Publish(topic string, batch Batch) error {
	if len(batch) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if retained, ok := b.latched[topic]; ok {
		for _, msg := range batch {
			retained[edgeKey{msg.ParentFrame, msg.ChildFrame}] = msg
		}
	}
	for _, sub := range b.subs[topic] {
		select {
		case sub.ch <- batch:
		default:
			b.dropped.Add(1)
		}
	}
	return nil
}

// Dropped returns the number of batch deliveries skipped because a
// subscriber's channel was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close shuts the bus down, cancelling every subscription. Publish calls made
// afterwards return ErrClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, topicSubs := range b.subs {
		for _, sub := range topicSubs {
			close(sub.ch)
		}
	}
	b.subs = make(map[string]map[string]*Subscription)
}

// removeLocked detaches sub if still attached. Caller holds b.mu.
func (b *Bus) removeLocked(sub *Subscription) {
	topicSubs := b.subs[sub.topic]
	if _, ok := topicSubs[sub.id]; !ok {
		return
	}
	delete(topicSubs, sub.id)
	close(sub.ch)
}
