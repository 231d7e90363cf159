// Package domain contains the core wire-agnostic types shared across the
// consumption engine: message envelopes, partition identity, and metrics.
package domain

import "sync/atomic"

// SystemAttribute holds the mutable, server-visible bookkeeping fields of a
// Message that the engine updates as delivery proceeds.
type SystemAttribute struct {
	deliveryAttempt atomic.Int32
}

// DeliveryAttempt returns the current delivery attempt count (starts at 1).
func (s *SystemAttribute) DeliveryAttempt() int32 {
	return s.deliveryAttempt.Load()
}

// IncrementDeliveryAttempt bumps the attempt counter and returns the new value.
func (s *SystemAttribute) IncrementDeliveryAttempt() int32 {
	return s.deliveryAttempt.Add(1)
}

func (s *SystemAttribute) store(v int32) {
	s.deliveryAttempt.Store(v)
}

// Message is the engine's view of a single delivered copy of a broker
// message. Everything except the fields below is opaque to the core.
type Message struct {
	MessageID     string
	Body          []byte
	QueueOffset   int64
	ReceiptHandle string
	AckEndpoints  []string

	System SystemAttribute
}

// NewMessage constructs a Message with its delivery attempt seeded to 1, as
// spec §3 requires ("deliveryAttempt (int >= 1)").
func NewMessage(id string, body []byte, queueOffset int64, receiptHandle string, ackEndpoints []string) *Message {
	m := &Message{
		MessageID:     id,
		Body:          body,
		QueueOffset:   queueOffset,
		ReceiptHandle: receiptHandle,
		AckEndpoints:  ackEndpoints,
	}
	m.System.store(1)
	return m
}

// BodyLen returns len(Body), tolerating a nil body.
func (m *Message) BodyLen() int {
	if m == nil {
		return 0
	}
	return len(m.Body)
}
