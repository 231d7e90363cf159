package queue

import (
	"time"

	"github.com/rocketmq-go/consumer-engine/internal/domain"
	"github.com/rocketmq-go/consumer-engine/internal/executor"
	"github.com/rocketmq-go/consumer-engine/internal/ports"
)

// ConsumeFunc is the user consume callback: given one message, it returns
// whether consumption succeeded.
type ConsumeFunc func(*domain.Message) domain.ConsumeStatus

// FifoDeliveryLoop drives the redeliver-then-DLQ state machine for strict
// per-partition FIFO delivery (spec §4.5). Exactly one message is ever
// in-flight at a time for a FIFO partition; EraseFifo is the single entry
// point called once a consume attempt — original or redelivered — completes.
type FifoDeliveryLoop struct {
	store   *MessageStore
	rpcOps  *RpcOps
	sched   *executor.Scheduler
	pool    *executor.WorkerPool
	consume ConsumeFunc
	logger  ports.Logger
	metrics *domain.Metrics

	maxDeliveryAttempts int32
	suspendDelay        time.Duration
	dlqDelay            time.Duration
	ackDelay            time.Duration

	isDropped  func() bool
	onSlotFree func()
}

// NewFifoDeliveryLoop wires a FifoDeliveryLoop.
func NewFifoDeliveryLoop(
	store *MessageStore,
	rpcOps *RpcOps,
	sched *executor.Scheduler,
	pool *executor.WorkerPool,
	consume ConsumeFunc,
	logger ports.Logger,
	metrics *domain.Metrics,
	maxDeliveryAttempts int32,
	suspendDelay, dlqDelay, ackDelay time.Duration,
	isDropped func() bool,
	onSlotFree func(),
) *FifoDeliveryLoop {
	return &FifoDeliveryLoop{
		store:               store,
		rpcOps:              rpcOps,
		sched:               sched,
		pool:                pool,
		consume:             consume,
		logger:              logger,
		metrics:             metrics,
		maxDeliveryAttempts: maxDeliveryAttempts,
		suspendDelay:        suspendDelay,
		dlqDelay:            dlqDelay,
		ackDelay:            ackDelay,
		isDropped:           isDropped,
		onSlotFree:          onSlotFree,
	}
}

// EraseFifo resolves one consume attempt for msg. On success, it acks
// (retrying until dropped) and frees the FIFO slot. On failure, it either
// schedules a redelivery after the configured suspend time, or — once
// maxDeliveryAttempts is exhausted — forwards to the dead letter queue and
// frees the slot.
func (f *FifoDeliveryLoop) EraseFifo(msg *domain.Message, status domain.ConsumeStatus) {
	if f.isDropped() {
		return
	}

	if status == domain.ConsumeStatusOK {
		f.metrics.MessagesConsumedOK.Add(1)
		f.rpcOps.AckFifo(msg, f.ackDelay, f.isDropped, func() {
			f.store.Erase(msg.MessageID)
			f.onSlotFree()
		})
		return
	}

	f.metrics.MessagesConsumedKO.Add(1)

	if msg.System.DeliveryAttempt() < f.maxDeliveryAttempts {
		msg.System.IncrementDeliveryAttempt()
		f.sched.AfterFunc(f.suspendDelay, func() {
			f.redeliver(msg)
		})
		return
	}

	f.rpcOps.ForwardFifoToDLQ(msg, f.maxDeliveryAttempts, f.dlqDelay, f.isDropped, func() {
		f.store.Erase(msg.MessageID)
		f.onSlotFree()
	})
}

// redeliver resubmits msg to the consumption executor and feeds the result
// back into EraseFifo.
func (f *FifoDeliveryLoop) redeliver(msg *domain.Message) {
	if f.isDropped() {
		return
	}

	err := f.pool.Submit(func() {
		status := f.consume(msg)
		f.metrics.MessagesRedelivered.Add(1)
		f.EraseFifo(msg, status)
	})
	if err != nil {
		f.logger.Warn("fifo redeliver submit failed, retrying", ports.Field{Key: "messageId", Value: msg.MessageID}, ports.Field{Key: "error", Value: err.Error()})
		f.sched.AfterFunc(f.suspendDelay, func() {
			f.redeliver(msg)
		})
	}
}
