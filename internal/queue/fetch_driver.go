package queue

import (
	"context"
	"sync/atomic"
	"time"

	"google.golang.org/grpc/codes"

	"github.com/rocketmq-go/consumer-engine/internal/domain"
	"github.com/rocketmq-go/consumer-engine/internal/executor"
	"github.com/rocketmq-go/consumer-engine/internal/ports"
	"github.com/rocketmq-go/consumer-engine/internal/timeutil"
	"github.com/rocketmq-go/consumer-engine/internal/wire"
)

// FetchDriver runs the self-rescheduling fetch loop for one partition, in
// either of the two modes spec §4.3 describes: Receive (clustering, server
// managed long-poll) or Pull (pull-mode, locally or custom-store managed
// offset). Only one of RunReceive/RunPull is ever started for a given
// FetchDriver.
type FetchDriver struct {
	client  ports.RpcClient
	store   *MessageStore
	sched   *executor.Scheduler
	throt   *Throttle
	logger  ports.Logger
	metrics *domain.Metrics
	meta    wire.RequestMeta
	queue   string
	filter  *wire.FilterExpr

	isDropped func() bool
	notifier  ports.ConsumeNotifier
	mq        domain.MessageQueue

	batchSize         int32
	awaitTimeoutMs    int64
	laterDelay        time.Duration
	invisibleDuration time.Duration
	ioTimeout         time.Duration

	// Pull-mode only.
	offsetStore ports.OffsetStore
	ledger      *OffsetLedger
	nextOffset  atomic.Int64
}

// NewReceiveFetchDriver builds a FetchDriver for clustering-mode long-poll
// receive.
func NewReceiveFetchDriver(
	client ports.RpcClient,
	store *MessageStore,
	sched *executor.Scheduler,
	throt *Throttle,
	logger ports.Logger,
	metrics *domain.Metrics,
	meta wire.RequestMeta,
	queue string,
	filter *wire.FilterExpr,
	batchSize int32,
	awaitTimeoutMs int64,
	laterDelay time.Duration,
	invisibleDuration time.Duration,
	ioTimeout time.Duration,
	isDropped func() bool,
	notifier ports.ConsumeNotifier,
	mq domain.MessageQueue,
) *FetchDriver {
	return &FetchDriver{
		client:            client,
		store:             store,
		sched:             sched,
		throt:             throt,
		logger:            logger,
		metrics:           metrics,
		meta:              meta,
		queue:             queue,
		filter:            filter,
		isDropped:         isDropped,
		notifier:          notifier,
		mq:                mq,
		batchSize:         batchSize,
		awaitTimeoutMs:    awaitTimeoutMs,
		laterDelay:        laterDelay,
		invisibleDuration: invisibleDuration,
		ioTimeout:         ioTimeout,
	}
}

// NewPullFetchDriver builds a FetchDriver for pull-mode consumption against
// mq, seeded from offsetStore if non-nil (an out-of-scope collaborator per
// spec §1 — this engine only reads/writes through the interface).
func NewPullFetchDriver(
	client ports.RpcClient,
	store *MessageStore,
	sched *executor.Scheduler,
	throt *Throttle,
	logger ports.Logger,
	metrics *domain.Metrics,
	meta wire.RequestMeta,
	queue string,
	filter *wire.FilterExpr,
	batchSize int32,
	awaitTimeoutMs int64,
	laterDelay time.Duration,
	ioTimeout time.Duration,
	isDropped func() bool,
	notifier ports.ConsumeNotifier,
	offsetStore ports.OffsetStore,
	ledger *OffsetLedger,
	mq domain.MessageQueue,
) *FetchDriver {
	return &FetchDriver{
		client:         client,
		store:          store,
		sched:          sched,
		throt:          throt,
		logger:         logger,
		metrics:        metrics,
		meta:           meta,
		queue:          queue,
		filter:         filter,
		isDropped:      isDropped,
		notifier:       notifier,
		batchSize:      batchSize,
		awaitTimeoutMs: awaitTimeoutMs,
		laterDelay:     laterDelay,
		ioTimeout:      ioTimeout,
		offsetStore:    offsetStore,
		ledger:         ledger,
		mq:             mq,
	}
}

// RunReceive starts the receive-mode long-poll loop. It self-reschedules
// until isDropped reports true.
func (f *FetchDriver) RunReceive() {
	f.stepReceive()
}

func (f *FetchDriver) stepReceive() {
	if f.isDropped() {
		return
	}

	if f.throt.Throttled() {
		f.sched.AfterFunc(f.laterDelay, f.stepReceive)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.ioTimeout+timeutil.FromMillis(f.awaitTimeoutMs))
	defer cancel()

	resp, err := f.client.ReceiveMessage(ctx, &wire.ReceiveMessageRequest{
		Meta:              f.meta,
		Queue:             f.queue,
		BatchSize:         f.batchSize,
		AwaitTime:         wire.Millis(f.awaitTimeoutMs),
		InvisibleDuration: wire.Millis(f.invisibleDuration.Milliseconds()),
		Filter:            f.filter,
	})

	if f.isDropped() {
		return
	}

	if err != nil {
		f.metrics.FetchErrors.Add(1)
		f.logger.Warn("receive failed", ports.Field{Key: "queue", Value: f.queue}, ports.Field{Key: "error", Value: err.Error()})
		f.sched.AfterFunc(f.laterDelay, f.stepReceive)
		return
	}

	f.handleStatus(resp.Status, func() {
		for i := range resp.Messages {
			rm := resp.Messages[i]
			msg := domain.NewMessage(rm.MessageID, rm.Body, rm.QueueOffset, rm.ReceiptHandle, rm.AckEndpoints)
			f.store.Cache(msg)
			f.metrics.MessagesFetched.Add(1)
		}
		f.throt.MarkActivity()
		if len(resp.Messages) > 0 && f.notifier != nil {
			f.notifier.NotifyReady(f.mq)
		}
	}, f.stepReceive)
}

// RunPull starts the pull-mode loop. It self-reschedules until isDropped
// reports true. If offsetStore is set, the starting offset is read from it
// before the first pull; otherwise pulling starts from offset 0.
func (f *FetchDriver) RunPull() {
	if f.offsetStore != nil {
		ctx, cancel := context.WithTimeout(context.Background(), f.ioTimeout)
		if off, ok, err := f.offsetStore.ReadOffset(ctx, f.mq); err == nil && ok {
			f.nextOffset.Store(off)
		}
		cancel()
	}
	f.stepPull()
}

func (f *FetchDriver) stepPull() {
	if f.isDropped() {
		return
	}

	if f.throt.Throttled() {
		f.sched.AfterFunc(f.laterDelay, f.stepPull)
		return
	}

	offset := f.nextOffset.Load()

	ctx, cancel := context.WithTimeout(context.Background(), f.ioTimeout+timeutil.FromMillis(f.awaitTimeoutMs))
	defer cancel()

	resp, err := f.client.PullMessage(ctx, &wire.PullMessageRequest{
		Meta:      f.meta,
		Queue:     f.queue,
		Offset:    offset,
		BatchSize: f.batchSize,
		AwaitTime: wire.Millis(f.awaitTimeoutMs),
		Filter:    f.filter,
	})

	if f.isDropped() {
		return
	}

	if err != nil {
		f.metrics.FetchErrors.Add(1)
		f.logger.Warn("pull failed", ports.Field{Key: "queue", Value: f.queue}, ports.Field{Key: "error", Value: err.Error()})
		f.sched.AfterFunc(f.laterDelay, f.stepPull)
		return
	}

	f.handleStatus(resp.Status, func() {
		for i := range resp.Messages {
			rm := resp.Messages[i]
			msg := domain.NewMessage(rm.MessageID, rm.Body, rm.QueueOffset, rm.ReceiptHandle, rm.AckEndpoints)
			f.store.Cache(msg)
			f.metrics.MessagesFetched.Add(1)
			if f.ledger != nil {
				if err := f.ledger.Append(rm.QueueOffset); err != nil {
					f.logger.Warn("offset ledger append failed", ports.Field{Key: "queue", Value: f.queue}, ports.Field{Key: "offset", Value: rm.QueueOffset}, ports.Field{Key: "error", Value: err.Error()})
				}
			}
		}
		// Resolved Open Question (c): the next pull offset advances only on
		// an OK status, never on an error or empty long-poll timeout.
		f.nextOffset.Store(resp.NextBeginOffset)
		if f.offsetStore != nil {
			writeCtx, writeCancel := context.WithTimeout(context.Background(), f.ioTimeout)
			if err := f.offsetStore.WriteOffset(writeCtx, f.mq, resp.NextBeginOffset); err != nil {
				f.logger.Warn("offset store write failed", ports.Field{Key: "queue", Value: f.queue}, ports.Field{Key: "error", Value: err.Error()})
			}
			writeCancel()
		}
		f.throt.MarkActivity()
		if len(resp.Messages) > 0 && f.notifier != nil {
			f.notifier.NotifyReady(f.mq)
		}
	}, f.stepPull)
}

// handleStatus runs onOK for an OK response, then reschedules the next
// fetch cycle: immediately for OK (the broker may have more to offer right
// away), after laterDelay for everything else, including DEADLINE_EXCEEDED
// — an empty long-poll timeout is an expected, routine outcome, but spec
// §4.3 step 5 still requires waiting out ReceiveLaterDelay/PullLaterDelay
// before re-issuing the RPC, to avoid hot-looping against the broker on a
// quiet partition.
func (f *FetchDriver) handleStatus(status wire.Status, onOK func(), next func()) {
	switch status.Code {
	case codes.OK:
		onOK()
		next()
	case codes.DeadlineExceeded:
		f.sched.AfterFunc(f.laterDelay, next)
	case codes.ResourceExhausted:
		f.metrics.ThrottledCycles.Add(1)
		f.sched.AfterFunc(f.laterDelay, next)
	default:
		f.metrics.FetchErrors.Add(1)
		f.logger.Warn("fetch status not OK", ports.Field{Key: "queue", Value: f.queue}, ports.Field{Key: "code", Value: status.Code.String()})
		f.sched.AfterFunc(f.laterDelay, next)
	}
}
