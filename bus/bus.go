// bus.go
package bus

import (
	"context"
	"reflect"
	"strconv"
	"sync"
	"sync/atomic"
)

// -----------------------------------------------------------------------------
// Topics
// -----------------------------------------------------------------------------

// Topic is a sequence of comparable tokens (usually strings or ints).
// "+" matches exactly one level and "#" matches the remainder.
type Topic []any

const (
	wildOne  = "+"
	wildRest = "#"
)

// T builds a topic and panics on non-comparable tokens.
func T(tokens ...any) Topic {
	for _, tok := range tokens {
		if tok == nil || !reflect.TypeOf(tok).Comparable() {
			panic("bus: topic token must be comparable")
		}
	}
	return Topic(tokens)
}

func (t Topic) Len() int { return len(t) }

// At returns the token at i, or nil when out of range.
func (t Topic) At(i int) any {
	if i < 0 || i >= len(t) {
		return nil
	}
	return t[i]
}

// Append returns a new topic with extra tokens; t is not modified.
func (t Topic) Append(tokens ...any) Topic {
	out := make(Topic, 0, len(t)+len(tokens))
	out = append(out, t...)
	return append(out, tokens...)
}

// -----------------------------------------------------------------------------
// Message
// -----------------------------------------------------------------------------

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
	ReplyTo  Topic
}

func (m *Message) CanReply() bool { return m != nil && len(m.ReplyTo) > 0 }

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

type Subscription struct {
	topic Topic
	ch    chan *Message
	conn  *Connection
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

// -----------------------------------------------------------------------------
// Trie node
// -----------------------------------------------------------------------------

type node struct {
	children map[any]*node
	subs     []*Subscription
	retained *Message
}

func (n *node) child(tok any, create bool) *node {
	if c, ok := n.children[tok]; ok || !create {
		return c
	}
	if n.children == nil {
		n.children = make(map[any]*node)
	}
	c := &node{}
	n.children[tok] = c
	return c
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

type Bus struct {
	mu     sync.Mutex
	subs   *node // subscription patterns
	retain *node // retained messages by concrete topic
	qLen   int
	nextID atomic.Uint32
}

// NewBus creates a new bus with the given subscription queue length.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8 // safe default
	}
	return &Bus{subs: &node{}, retain: &node{}, qLen: queueLen}
}

// NewMessage builds a message for topic.
func (b *Bus) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{Topic: topic, Payload: payload, Retained: retained}
}

func deliver(sub *Subscription, msg *Message) {
	select {
	case sub.ch <- msg:
	default:
		// drop oldest if queue full
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- msg:
		default:
		}
	}
}

// collect appends subscriptions whose pattern matches topic[i:].
func collect(n *node, topic Topic, i int, out []*Subscription) []*Subscription {
	if n == nil {
		return out
	}
	if c := n.children[wildRest]; c != nil {
		out = append(out, c.subs...)
	}
	if i == len(topic) {
		return append(out, n.subs...)
	}
	out = collect(n.children[topic[i]], topic, i+1, out)
	if topic[i] != wildOne {
		out = collect(n.children[wildOne], topic, i+1, out)
	}
	return out
}

// retainedMatching walks retained messages matching pattern[i:].
func retainedMatching(n *node, pattern Topic, i int, out []*Message) []*Message {
	if n == nil {
		return out
	}
	if i == len(pattern) {
		if n.retained != nil {
			out = append(out, n.retained)
		}
		return out
	}
	switch pattern[i] {
	case wildRest:
		if n.retained != nil {
			out = append(out, n.retained)
		}
		for _, c := range n.children {
			out = retainedMatching(c, pattern, i, out)
		}
	case wildOne:
		for _, c := range n.children {
			out = retainedMatching(c, pattern, i+1, out)
		}
	default:
		out = retainedMatching(n.children[pattern[i]], pattern, i+1, out)
	}
	return out
}

// Publish delivers a message to all matching subscribers. A retained message
// with a nil payload clears the retained value for its topic.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if msg.Retained {
		n := b.retain
		for _, tok := range msg.Topic {
			n = n.child(tok, true)
		}
		if msg.Payload == nil {
			n.retained = nil
			return
		}
		n.retained = msg
	}
	for _, sub := range collect(b.subs, msg.Topic, 0, nil) {
		deliver(sub, msg)
	}
}

func (b *Bus) addSubscription(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.subs
	for _, tok := range sub.topic {
		n = n.child(tok, true)
	}
	n.subs = append(n.subs, sub)

	for _, m := range retainedMatching(b.retain, sub.topic, 0, nil) {
		deliver(sub, m)
	}
}

func (b *Bus) removeSubscription(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.subs
	for _, tok := range sub.topic {
		if n = n.child(tok, false); n == nil {
			return
		}
	}
	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

type Connection struct {
	bus  *Bus
	id   string
	mu   sync.Mutex
	subs []*Subscription
}

// NewConnection creates a new connection bound to this bus.
func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{bus: b, id: id}
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) NewMessage(topic Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(topic, payload, retained)
}

// Publish sends a message via the bus.
func (c *Connection) Publish(msg *Message) { c.bus.Publish(msg) }

// Subscribe registers a subscription owned by this connection.
func (c *Connection) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{topic: topic, ch: make(chan *Message, c.bus.qLen), conn: c}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	c.bus.addSubscription(sub)
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (c *Connection) Unsubscribe(sub *Subscription) {
	c.mu.Lock()
	found := false
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			found = true
			break
		}
	}
	c.mu.Unlock()
	if !found {
		return
	}
	c.bus.removeSubscription(sub)
	close(sub.ch)
}

// Disconnect closes all subscriptions.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()
	for _, sub := range subs {
		c.bus.removeSubscription(sub)
		close(sub.ch)
	}
}

// Reply publishes payload to the request's ReplyTo topic.
func (c *Connection) Reply(req *Message, payload any, retained bool) {
	if !req.CanReply() {
		return
	}
	c.Publish(c.NewMessage(req.ReplyTo, payload, retained))
}

// Request assigns a private reply topic to msg, subscribes to it and
// publishes msg. The caller owns the returned subscription.
func (c *Connection) Request(msg *Message) *Subscription {
	id := c.bus.nextID.Add(1)
	msg.ReplyTo = T("_reply", c.id, strconv.FormatUint(uint64(id), 10))
	sub := c.Subscribe(msg.ReplyTo)
	c.Publish(msg)
	return sub
}

// RequestWait publishes msg and waits for the first reply or ctx expiry.
func (c *Connection) RequestWait(ctx context.Context, msg *Message) (*Message, error) {
	sub := c.Request(msg)
	defer c.Unsubscribe(sub)
	select {
	case m := <-sub.Channel():
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
