// SPDX-License-Identifier: MIT

package notify

import (
	"strconv"
	"sync"
	"sync/atomic"

	xglog "github.com/seedlab/seedlab/internal/log"
	"github.com/seedlab/seedlab/internal/metrics"
)

// SubscriberBuffer is the per-subscriber channel capacity.
const SubscriberBuffer = 32

const dropLogEvery = 100

// Hub is an in-memory pub/sub of notifications keyed by user.
// Publishing never blocks: a subscriber whose buffer is full misses the message.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int64][]*Subscription
	closed bool

	dropped atomic.Uint64
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int64][]*Subscription)}
}

// Subscription receives the notifications published for one user.
type Subscription struct {
	hub    *Hub
	userID int64
	ch     chan Notificacion
	once   sync.Once
}

// C is closed when the subscription or the hub is closed.
func (s *Subscription) C() <-chan Notificacion { return s.ch }

// Close detaches the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.hub.remove(s)
}

// remove requires h.mu held.
func (h *Hub) remove(s *Subscription) {
	lst := h.subs[s.userID]
	out := lst[:0]
	for _, c := range lst {
		if c != s {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		delete(h.subs, s.userID)
	} else {
		h.subs[s.userID] = out
	}
	s.once.Do(func() {
		close(s.ch)
		metrics.DecSSESubscribers()
	})
}

// Subscribe opens a subscription for userID. It returns nil after Close.
func (h *Hub) Subscribe(userID int64) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	s := &Subscription{hub: h, userID: userID, ch: make(chan Notificacion, SubscriberBuffer)}
	h.subs[userID] = append(h.subs[userID], s)
	metrics.IncSSESubscribers()
	return s
}

// Publish delivers n to the live subscriptions of its user and returns how
// many received it.
func (h *Hub) Publish(n Notificacion) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for _, s := range h.subs[n.UsuarioID] {
		select {
		case s.ch <- n:
			delivered++
		default:
			metrics.IncBusDrop("notifications")
			if count := h.dropped.Add(1); count%dropLogEvery == 1 {
				xglog.L().Warn().
					Str("user", strconv.FormatInt(n.UsuarioID, 10)).
					Uint64("dropped", count).
					Msg("notification hub dropped message for slow subscriber")
			}
		}
	}
	return delivered
}

// Subscribers counts live subscriptions for userID.
func (h *Hub) Subscribers(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, lst := range h.subs {
		for _, s := range append([]*Subscription(nil), lst...) {
			h.remove(s)
		}
	}
}
