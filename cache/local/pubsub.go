package local

import (
	"context"
	"sync"
	"sync/atomic"
)

const defaultMailbox = 256

// LocalMessage is one event delivered to a battle subscriber.
type LocalMessage struct {
	Channel string
	Payload string
}

type mailbox struct {
	id     uint64
	topics []string
	out    chan *LocalMessage
}

// LocalPubSub fans battle events out to in-process subscribers. Delivery is
// best effort: a subscriber whose mailbox is full misses the event and the
// Dropped counter grows.
type LocalPubSub struct {
	mu      sync.RWMutex
	byTopic map[string]map[uint64]*mailbox
	nextID  uint64
	size    int
	closed  bool
	dropped atomic.Int64
}

// NewPubSub creates a LocalPubSub whose mailboxes hold size messages.
func NewPubSub(size int) *LocalPubSub {
	if size <= 0 {
		size = defaultMailbox
	}
	return &LocalPubSub{byTopic: make(map[string]map[uint64]*mailbox), size: size}
}

// Dropped reports how many deliveries were skipped for full mailboxes.
func (ps *LocalPubSub) Dropped() int64 { return ps.dropped.Load() }

// Publish delivers message to every current subscriber of channel.
func (ps *LocalPubSub) Publish(_ context.Context, channel, message string) error {
	msg := &LocalMessage{Channel: channel, Payload: message}
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	for _, mb := range ps.byTopic[channel] {
		select {
		case mb.out <- msg:
		default:
			ps.dropped.Add(1)
		}
	}
	return nil
}

// Subscribe opens one mailbox receiving every listed channel. The mailbox is
// closed by the returned cancel func, by ctx ending, or by Close.
func (ps *LocalPubSub) Subscribe(ctx context.Context, channels ...string) (<-chan *LocalMessage, func(), error) {
	ps.mu.Lock()
	ps.nextID++
	mb := &mailbox{id: ps.nextID, topics: channels, out: make(chan *LocalMessage, ps.size)}
	if ps.closed {
		ps.mu.Unlock()
		close(mb.out)
		return mb.out, func() {}, nil
	}
	for _, topic := range channels {
		subs, ok := ps.byTopic[topic]
		if !ok {
			subs = make(map[uint64]*mailbox)
			ps.byTopic[topic] = subs
		}
		subs[mb.id] = mb
	}
	ps.mu.Unlock()

	var once sync.Once
	stop := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			close(stop)
			ps.detach(mb)
		})
	}
	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				cancel()
			case <-stop:
			}
		}()
	}
	return mb.out, cancel, nil
}

// detach removes mb and closes its channel unless Close already did.
func (ps *LocalPubSub) detach(mb *mailbox) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.closed {
		return
	}
	for _, topic := range mb.topics {
		delete(ps.byTopic[topic], mb.id)
		if len(ps.byTopic[topic]) == 0 {
			delete(ps.byTopic, topic)
		}
	}
	close(mb.out)
}

// Close ends every open subscription. Later subscriptions start closed.
func (ps *LocalPubSub) Close() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.closed {
		return nil
	}
	ps.closed = true
	seen := make(map[uint64]bool)
	for _, subs := range ps.byTopic {
		for id, mb := range subs {
			if !seen[id] {
				seen[id] = true
				close(mb.out)
			}
		}
	}
	ps.byTopic = make(map[string]map[uint64]*mailbox)
	return nil
}
