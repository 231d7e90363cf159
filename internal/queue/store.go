// Package queue implements the per-partition consumption engine: the
// message store, throttle, delivery loops, RPC wrappers, fetch driver, and
// the ProcessQueue facade that composes them.
package queue

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/rocketmq-go/consumer-engine/internal/domain"
)

// MessageStore holds the two ordered sequences a ProcessQueue tracks for one
// partition: messages fetched but not yet handed to a consumer (pending),
// and messages handed out and awaiting ack/nack (inflight). The two
// sequences are guarded by independent RWMutexes; any operation needing
// both acquires pending before inflight. This order is load-bearing — never
// acquire in the opposite order anywhere in this package.
type MessageStore struct {
	pendingMu    sync.RWMutex
	pending      *list.List
	pendingIndex map[string]*list.Element

	inflightMu    sync.RWMutex
	inflight      *list.List
	inflightIndex map[string]*list.Element

	// fifoHeld distinguishes, for FIFO partitions (which ever hold at most
	// one inflight message at a time), whether the sole inflight message is
	// currently out for consumption (true) or sitting in inflight only
	// because ReinsertInflight put it back after a denied retake, and is
	// therefore available for TryTakeFifo to hand out again (false).
	// Unused by the unordered batch path, which never leaves inflight
	// non-empty without an active consumer holding every message in it.
	fifoHeld atomic.Bool

	cachedBytes atomic.Int64
}

// NewMessageStore returns an empty MessageStore.
func NewMessageStore() *MessageStore {
	return &MessageStore{
		pending:       list.New(),
		pendingIndex:  make(map[string]*list.Element),
		inflight:      list.New(),
		inflightIndex: make(map[string]*list.Element),
	}
}

// Cache appends a freshly fetched message to the tail of pending, in fetch
// order. It must never be called with a message already present in either
// sequence.
func (s *MessageStore) Cache(msg *domain.Message) {
	if msg == nil {
		return
	}
	s.pendingMu.Lock()
	el := s.pending.PushBack(msg)
	s.pendingIndex[msg.MessageID] = el
	s.pendingMu.Unlock()

	s.cachedBytes.Add(int64(msg.BodyLen()))
}

// TryTake moves up to max messages from the head of pending to the tail of
// inflight, in order, and returns them. Used by the unordered batch delivery
// path (spec §4.1).
func (s *MessageStore) TryTake(max int) []*domain.Message {
	if max <= 0 {
		return nil
	}

	s.pendingMu.Lock()
	taken := make([]*domain.Message, 0, max)
	for len(taken) < max {
		front := s.pending.Front()
		if front == nil {
			break
		}
		msg, _ := front.Value.(*domain.Message)
		s.pending.Remove(front)
		delete(s.pendingIndex, msg.MessageID)
		taken = append(taken, msg)
	}
	s.pendingMu.Unlock()

	if len(taken) == 0 {
		return nil
	}

	s.inflightMu.Lock()
	for _, msg := range taken {
		el := s.inflight.PushBack(msg)
		s.inflightIndex[msg.MessageID] = el
	}
	s.inflightMu.Unlock()

	return taken
}

// TryTakeFifo returns the single head-of-line message for FIFO delivery.
// If inflight already holds a message, it is either reclaimed (if
// ReinsertInflight previously marked it available, e.g. after a denied rate
// limiter retake) or refused (if it is genuinely out for consumption right
// now) — see fifoHeld. Otherwise the head of pending is moved into inflight
// and returned. Returns nil if nothing is available to take.
func (s *MessageStore) TryTakeFifo() *domain.Message {
	s.inflightMu.Lock()
	if front := s.inflight.Front(); front != nil {
		if s.fifoHeld.Load() {
			s.inflightMu.Unlock()
			return nil
		}
		msg, _ := front.Value.(*domain.Message)
		s.fifoHeld.Store(true)
		s.inflightMu.Unlock()
		return msg
	}
	s.inflightMu.Unlock()

	s.pendingMu.Lock()
	front := s.pending.Front()
	if front == nil {
		s.pendingMu.Unlock()
		return nil
	}
	msg, _ := front.Value.(*domain.Message)
	s.pending.Remove(front)
	delete(s.pendingIndex, msg.MessageID)
	s.pendingMu.Unlock()

	s.inflightMu.Lock()
	el := s.inflight.PushBack(msg)
	s.inflightIndex[msg.MessageID] = el
	s.fifoHeld.Store(true)
	s.inflightMu.Unlock()

	return msg
}

// ReinsertInflight marks msg (already sitting in inflight from the
// TryTakeFifo call that produced it) as available for a future TryTakeFifo
// to reclaim, without touching pending. This is the spec §9 fix for the
// source bug in rate-limited FIFO retake: a message taken out under
// TryTakeFifo must never be returned to pending, only left in inflight, or
// a second TryTakeFifo could hand the same message out twice concurrently.
// It tolerates msg not already being present (inserting it) so it is also
// safe to call defensively.
func (s *MessageStore) ReinsertInflight(msg *domain.Message) {
	if msg == nil {
		return
	}
	s.inflightMu.Lock()
	if _, ok := s.inflightIndex[msg.MessageID]; !ok {
		el := s.inflight.PushFront(msg)
		s.inflightIndex[msg.MessageID] = el
	}
	s.inflightMu.Unlock()
	s.fifoHeld.Store(false)
}

// Erase removes a message from inflight by ID (its only possible location
// once taken) and subtracts its body length from cachedBytes. Returns false
// if the message was not found in inflight.
func (s *MessageStore) Erase(messageID string) bool {
	s.inflightMu.Lock()
	el, ok := s.inflightIndex[messageID]
	if !ok {
		s.inflightMu.Unlock()
		return false
	}
	msg, _ := el.Value.(*domain.Message)
	s.inflight.Remove(el)
	delete(s.inflightIndex, messageID)
	s.inflightMu.Unlock()

	s.cachedBytes.Add(-int64(msg.BodyLen()))
	return true
}

// DrainAll removes and returns every message from both sequences, for use
// when a partition is dropped and its cache must be released. cachedBytes
// is reset to zero.
func (s *MessageStore) DrainAll() []*domain.Message {
	s.pendingMu.Lock()
	pending := make([]*domain.Message, 0, s.pending.Len())
	for el := s.pending.Front(); el != nil; el = el.Next() {
		msg, _ := el.Value.(*domain.Message)
		pending = append(pending, msg)
	}
	s.pending.Init()
	s.pendingIndex = make(map[string]*list.Element)
	s.pendingMu.Unlock()

	s.inflightMu.Lock()
	inflight := make([]*domain.Message, 0, s.inflight.Len())
	for el := s.inflight.Front(); el != nil; el = el.Next() {
		msg, _ := el.Value.(*domain.Message)
		inflight = append(inflight, msg)
	}
	s.inflight.Init()
	s.inflightIndex = make(map[string]*list.Element)
	s.inflightMu.Unlock()

	s.cachedBytes.Store(0)

	return append(pending, inflight...)
}

// CachedMessagesQuantity returns the number of messages in pending ∪ inflight.
func (s *MessageStore) CachedMessagesQuantity() int {
	s.pendingMu.RLock()
	p := s.pending.Len()
	s.pendingMu.RUnlock()

	s.inflightMu.RLock()
	i := s.inflight.Len()
	s.inflightMu.RUnlock()

	return p + i
}

// InflightMessagesQuantity returns the number of messages awaiting ack/nack.
func (s *MessageStore) InflightMessagesQuantity() int {
	s.inflightMu.RLock()
	defer s.inflightMu.RUnlock()
	return s.inflight.Len()
}

// CachedMessageBytes returns the live byte counter, maintained as
// Σ body lengths over pending ∪ inflight.
func (s *MessageStore) CachedMessageBytes() int64 {
	return s.cachedBytes.Load()
}
