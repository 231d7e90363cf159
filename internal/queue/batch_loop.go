package queue

import (
	"github.com/rocketmq-go/consumer-engine/internal/domain"
)

// BatchDeliveryLoop resolves unordered batch consume attempts (spec §4.4).
// Clustering mode acks or nacks each message against the broker,
// fire-and-forget; broadcasting mode has no broker-side offset to ack
// against, so it releases the message's offset into the local OffsetLedger
// instead. A batch nack is not retried by this engine — redelivery in
// clustering mode is entirely the broker's decision once nacked, and
// broadcasting has no redelivery concept at all, consistent with the
// Non-goals (no exactly-once, no cross-partition ordering) this module
// carries from spec §1.
type BatchDeliveryLoop struct {
	store   *MessageStore
	rpcOps  *RpcOps
	model   domain.MessageModel
	ledger  *OffsetLedger // nil unless model == MessageModelBroadcasting
	spawn   func(func() error)
	metrics *domain.Metrics
}

// NewBatchDeliveryLoop wires a BatchDeliveryLoop. ledger must be non-nil iff
// model is MessageModelBroadcasting. spawn runs the fire-and-forget ack/nack
// calls under the owning ProcessQueue's drain group, so Drain can wait for
// them to finish instead of abandoning them on shutdown.
func NewBatchDeliveryLoop(store *MessageStore, rpcOps *RpcOps, model domain.MessageModel, ledger *OffsetLedger, spawn func(func() error), metrics *domain.Metrics) *BatchDeliveryLoop {
	return &BatchDeliveryLoop{store: store, rpcOps: rpcOps, model: model, ledger: ledger, spawn: spawn, metrics: metrics}
}

// EraseMessages removes msgs from inflight and resolves them against the
// broker (clustering) or the local offset ledger (broadcasting).
func (b *BatchDeliveryLoop) EraseMessages(msgs []*domain.Message, status domain.ConsumeStatus) {
	if status == domain.ConsumeStatusOK {
		b.metrics.MessagesConsumedOK.Add(uint64(len(msgs)))
	} else {
		b.metrics.MessagesConsumedKO.Add(uint64(len(msgs)))
	}

	for _, msg := range msgs {
		b.store.Erase(msg.MessageID)

		switch b.model {
		case domain.MessageModelClustering:
			m := msg
			if status == domain.ConsumeStatusOK {
				b.spawn(func() error { b.rpcOps.Ack(m); return nil })
			} else {
				b.spawn(func() error { b.rpcOps.Nack(m); return nil })
			}
		case domain.MessageModelBroadcasting:
			if b.ledger != nil {
				b.ledger.Release(msg.QueueOffset)
			}
		}
	}
}
