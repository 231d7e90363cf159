package queue

import (
	"container/list"
	"fmt"
	"sync"
)

// OffsetRecord is one entry in an OffsetLedger: an offset that has been
// delivered, and whether it has since been released (acked) by the consumer
// callback.
type OffsetRecord struct {
	Offset   int64
	Released bool
}

// OffsetLedger tracks delivered-but-not-yet-committed offsets for
// broadcasting-mode consumption, where the consumer — not the broker —
// owns offset persistence (spec §3/§9). Records are appended in strictly
// increasing offset order and released out of order as batches complete;
// the committable offset is the largest offset such that every record up to
// it, from the head, is released. Implemented as a doubly-linked list with
// a head pointer, per spec §9's design note: the head is always the oldest
// undelivered-or-unreleased record, so computing the committable prefix
// never needs to walk past it.
type OffsetLedger struct {
	mu           sync.Mutex
	records      *list.List // of *OffsetRecord, increasing offset order
	byOffset     map[int64]*list.Element
	lastAppended int64
	hasAppended  bool
}

// NewOffsetLedger returns an empty OffsetLedger.
func NewOffsetLedger() *OffsetLedger {
	return &OffsetLedger{
		records:  list.New(),
		byOffset: make(map[int64]*list.Element),
	}
}

// Append records a newly delivered offset as unreleased. Offsets must be
// strictly increasing across calls; violating that is a caller bug.
func (l *OffsetLedger) Append(offset int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.hasAppended && offset <= l.lastAppended {
		return fmt.Errorf("queue: offset ledger append out of order: %d after %d", offset, l.lastAppended)
	}

	el := l.records.PushBack(&OffsetRecord{Offset: offset})
	l.byOffset[offset] = el
	l.lastAppended = offset
	l.hasAppended = true
	return nil
}

// Release marks offset as acked. It is a no-op if offset is not tracked
// (already committed and evicted, or never appended).
func (l *OffsetLedger) Release(offset int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	el, ok := l.byOffset[offset]
	if !ok {
		return
	}
	rec, _ := el.Value.(*OffsetRecord)
	rec.Released = true
}

// CommittableOffset returns the largest offset such that it and every
// record before it, from the head, are released, and evicts that prefix
// from the ledger (the roll-forward rule: once a prefix is committable it
// never needs to be reconsidered, including the singleton case where the
// ledger holds exactly one released record). Returns false if no prefix is
// committable yet (the head is empty or unreleased).
func (l *OffsetLedger) CommittableOffset() (int64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var (
		committed int64
		found     bool
	)

	for {
		front := l.records.Front()
		if front == nil {
			break
		}
		rec, _ := front.Value.(*OffsetRecord)
		if !rec.Released {
			break
		}
		committed = rec.Offset
		found = true
		l.records.Remove(front)
		delete(l.byOffset, rec.Offset)
	}

	return committed, found
}

// Len reports the number of tracked (uncommitted) records.
func (l *OffsetLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.records.Len()
}
