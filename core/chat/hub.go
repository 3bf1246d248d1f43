package chat

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

var ErrHubClosed = errors.New("chat hub closed")

// Hub fans messages out to the subscribers of their channel.
// A subscriber that falls behind loses messages: Publish never blocks.
type Hub struct {
	mu      sync.RWMutex
	subs    map[string]map[*Subscription]struct{} // {channelID: subscriptions}
	buffer  int
	closed  bool
	dropped atomic.Uint64
}

type Subscription struct {
	C         <-chan Message
	ch        chan Message
	channelID string
	hub       *Hub
	once      sync.Once
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: make(map[string]map[*Subscription]struct{}), buffer: buffer}
}

func (h *Hub) Subscribe(channelID string) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}
	ch := make(chan Message, h.buffer)
	sub := &Subscription{C: ch, ch: ch, channelID: channelID, hub: h}
	if h.subs[channelID] == nil {
		h.subs[channelID] = make(map[*Subscription]struct{})
	}
	h.subs[channelID][sub] = struct{}{}
	return sub, nil
}

// Publish delivers msg to its channel's subscribers and returns how many received it.
func (h *Hub) Publish(msg Message) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var delivered int
	for sub := range h.subs[msg.ChannelID] {
		select {
		case sub.ch <- msg:
			delivered++
		default:
			h.dropped.Add(1)
		}
	}
	return delivered
}

func (h *Hub) Subscribers(channelID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[channelID])
}

// Dropped counts messages lost to full subscriber buffers.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, subs := range h.subs {
		for sub := range subs {
			sub.once.Do(func() { close(sub.ch) })
		}
	}
	h.subs = make(map[string]map[*Subscription]struct{})
}

// Close unsubscribes and closes C. It is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if subs := s.hub.subs[s.channelID]; subs != nil {
		delete(subs, s)
		if len(subs) == 0 {
			delete(s.hub.subs, s.channelID)
		}
	}
	s.once.Do(func() { close(s.ch) })
}
