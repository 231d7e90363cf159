package queue

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/rocketmq-go/consumer-engine/internal/config"
	"github.com/rocketmq-go/consumer-engine/internal/domain"
	"github.com/rocketmq-go/consumer-engine/internal/executor"
	"github.com/rocketmq-go/consumer-engine/internal/identity"
	"github.com/rocketmq-go/consumer-engine/internal/ports"
	"github.com/rocketmq-go/consumer-engine/internal/timeutil"
	"github.com/rocketmq-go/consumer-engine/internal/wire"
	"github.com/rocketmq-go/consumer-engine/pkg/circuitbreaker"
)

// ProcessQueue is the per-partition facade composing a MessageStore,
// Throttle, RpcOps, FetchDriver, and one of FifoDeliveryLoop/
// BatchDeliveryLoop into the single object a ConsumeService (out of scope,
// spec §1) drives. It owns no executors of its own: the scheduler and
// consumption pool are shared collaborators supplied at construction,
// matching spec §5's "two external executor pools" design.
type ProcessQueue struct {
	mq     domain.MessageQueue
	store  *MessageStore
	throt  *Throttle
	ledger *OffsetLedger // non-nil only in broadcasting mode

	rpcOps      *RpcOps
	fetchDriver *FetchDriver
	fifoLoop    *FifoDeliveryLoop  // non-nil only for ListenerOrderly
	batchLoop   *BatchDeliveryLoop // non-nil only for ListenerConcurrent

	// pool is the shared consumption executor (spec §5's "two external
	// executor pools"); TuneExecutor scales it up under this partition's
	// backpressure. nil is tolerated so ProcessQueue stays constructible in
	// tests that don't care about executor scaling.
	pool *executor.WorkerPool

	rateLimiter  ports.RateLimiter // optional
	listenerType domain.ListenerType
	model        domain.MessageModel

	dropped      atomic.Bool
	fifoSlotBusy atomic.Bool

	logger  ports.Logger
	metrics *domain.Metrics

	eg *errgroup.Group
}

// Deps bundles ProcessQueue's external collaborators: the broker RPC
// transport, the two shared executors, and optional rate limiter/offset
// store (spec §6).
type Deps struct {
	Client      ports.RpcClient
	Scheduler   *executor.Scheduler
	Pool        *executor.WorkerPool
	Logger      ports.Logger
	RateLimiter ports.RateLimiter     // optional, nil disables limiting
	OffsetStore ports.OffsetStore     // optional, pull-mode only
	Notifier    ports.ConsumeNotifier // optional, nil disables readiness signaling
	Consume     ConsumeFunc           // required for ListenerOrderly
}

// New builds a ProcessQueue for mq under cfg, wiring a fresh MessageStore,
// Throttle, RpcOps (behind its own circuit breaker), FetchDriver, and
// whichever delivery loop cfg.ListenerType selects.
func New(mq domain.MessageQueue, cfg config.Config, meta wire.RequestMeta, filter *wire.FilterExpr, deps Deps) *ProcessQueue {
	if meta.ClientID == "" {
		meta.ClientID = identity.NewClientID()
	}
	store := NewMessageStore()
	throt := NewThrottle(store, cfg.CacheQuantityThreshold, cfg.CacheBytesThreshold, cfg.MaxIdle())
	metrics := domain.NewMetrics()

	breaker := circuitbreaker.NewWithWindow(
		mq.String(),
		cfg.BreakerErrorThresholdPct,
		int(cfg.BreakerSuccessThreshold),
		timeutil.FromMillis(cfg.BreakerTimeoutMillis),
		0,
		int(cfg.BreakerVolumeThreshold),
		int(cfg.BreakerWindowBuckets),
		timeutil.FromMillis(cfg.BreakerWindowMillis),
	)

	rpcOps := NewRpcOps(
		deps.Client,
		breaker,
		deps.Scheduler,
		timeutil.FromMillis(cfg.IoTimeoutMillis),
		deps.Logger,
		metrics,
		meta,
	)

	pq := &ProcessQueue{
		mq:           mq,
		store:        store,
		throt:        throt,
		rpcOps:       rpcOps,
		pool:         deps.Pool,
		rateLimiter:  deps.RateLimiter,
		listenerType: cfg.ListenerType,
		model:        cfg.MessageModel,
		logger:       deps.Logger,
		metrics:      metrics,
	}

	eg, _ := errgroup.WithContext(context.Background())
	pq.eg = eg

	isDropped := pq.IsDropped

	if cfg.MessageModel == domain.MessageModelBroadcasting {
		pq.ledger = NewOffsetLedger()
		pq.fetchDriver = NewPullFetchDriver(
			deps.Client, store, deps.Scheduler, throt, deps.Logger, metrics, meta, mq.String(), filter,
			cfg.MaxAwaitBatchSizePerQueue, cfg.MaxAwaitTimeMillisPerQueue,
			timeutil.FromMillis(cfg.PullLaterDelayMillis),
			timeutil.FromMillis(cfg.IoTimeoutMillis),
			isDropped, deps.Notifier, deps.OffsetStore, pq.ledger, mq,
		)
	} else {
		pq.fetchDriver = NewReceiveFetchDriver(
			deps.Client, store, deps.Scheduler, throt, deps.Logger, metrics, meta, mq.String(), filter,
			cfg.MaxAwaitBatchSizePerQueue, cfg.MaxAwaitTimeMillisPerQueue,
			timeutil.FromMillis(cfg.ReceiveLaterDelayMillis),
			timeutil.FromMillis(cfg.ConsumptionTimeoutMillis),
			timeutil.FromMillis(cfg.IoTimeoutMillis),
			isDropped, deps.Notifier, mq,
		)
	}

	if cfg.ListenerType == domain.ListenerOrderly {
		pq.fifoLoop = NewFifoDeliveryLoop(
			store, rpcOps, deps.Scheduler, deps.Pool, deps.Consume, deps.Logger, metrics,
			cfg.MaxDeliveryAttempts,
			timeutil.FromMillis(cfg.FifoConsumptionSuspendTimeMillis),
			timeutil.FromMillis(cfg.RedirectFifoToDlqDelayMillis),
			timeutil.FromMillis(cfg.AckFifoMessageDelayMillis),
			isDropped,
			func() { pq.fifoSlotBusy.Store(false) },
		)
	} else {
		pq.batchLoop = NewBatchDeliveryLoop(store, rpcOps, cfg.MessageModel, pq.ledger, func(fn func() error) { pq.eg.Go(fn) }, metrics)
	}

	return pq
}

// Start begins the partition's fetch loop on its own goroutine.
func (q *ProcessQueue) Start() {
	switch q.model {
	case domain.MessageModelBroadcasting:
		go q.fetchDriver.RunPull()
	default:
		go q.fetchDriver.RunReceive()
	}
}

// Drop marks the partition dropped: the monotonic cancellation primitive
// spec §3/§5 describes. It never interrupts RPCs already in flight — it
// only stops future fetch cycles, redeliveries, and retries from scheduling
// themselves.
func (q *ProcessQueue) Drop() {
	q.dropped.Store(true)
}

// IsDropped reports whether Drop has been called.
func (q *ProcessQueue) IsDropped() bool {
	return q.dropped.Load()
}

// Expired reports whether the partition has been idle — neither doing work
// nor throttled — for at least the configured max idle duration, making it
// a candidate for reclamation by the external assignment layer.
func (q *ProcessQueue) Expired() bool {
	return q.throt.Expired()
}

// TuneExecutor scales the shared consumption executor towards its
// configured maximum while this partition is throttled, so backlog pressure
// on one partition doesn't starve consumption capacity shared with every
// other partition on the same pool (spec §5's "two external executor
// pools" design; the pool never scales back down, matching
// WorkerPool.SetWorkerCount's grow-only contract). A no-op once the pool is
// already at the target worker count, so calling this on every take is
// cheap. Safe to call with a nil pool.
func (q *ProcessQueue) TuneExecutor() {
	if q.pool == nil || !q.throt.Throttled() {
		return
	}
	q.pool.SetWorkerCount(q.pool.MaxWorkers())
}

// TryTakeMessages takes up to max cached messages for unordered batch
// delivery, honoring the optional rate limiter by stopping early rather
// than over-taking.
func (q *ProcessQueue) TryTakeMessages(max int) []*domain.Message {
	if q.dropped.Load() {
		return nil
	}
	q.TuneExecutor()
	if q.rateLimiter != nil {
		allowed := 0
		for allowed < max && q.rateLimiter.TryAcquire() {
			allowed++
		}
		max = allowed
	}
	return q.store.TryTake(max)
}

// TryTakeFifoMessage takes the single head-of-line message for FIFO
// delivery, or returns nil if the FIFO slot is already busy, the store is
// empty, or the rate limiter denies the attempt. Resolves spec §9's Open
// Question: a message denied by the rate limiter after being taken out of
// pending is re-inserted into inflight only, never back into pending, so a
// concurrent TryTakeFifoMessage can never observe and hand out the same
// message twice.
func (q *ProcessQueue) TryTakeFifoMessage() *domain.Message {
	if q.dropped.Load() {
		return nil
	}
	q.TuneExecutor()
	if !q.fifoSlotBusy.CompareAndSwap(false, true) {
		return nil
	}

	msg := q.store.TryTakeFifo()
	if msg == nil {
		q.fifoSlotBusy.Store(false)
		return nil
	}

	if q.rateLimiter != nil && !q.rateLimiter.TryAcquire() {
		q.store.ReinsertInflight(msg)
		q.fifoSlotBusy.Store(false)
		return nil
	}

	return msg
}

// EraseMessages resolves a completed unordered batch consume attempt.
func (q *ProcessQueue) EraseMessages(msgs []*domain.Message, status domain.ConsumeStatus) {
	if q.batchLoop == nil {
		return
	}
	q.batchLoop.EraseMessages(msgs, status)
}

// EraseFifoMessage resolves a completed FIFO consume attempt, freeing the
// FIFO slot once the message is terminally acked or forwarded to the DLQ.
func (q *ProcessQueue) EraseFifoMessage(msg *domain.Message, status domain.ConsumeStatus) {
	if q.fifoLoop == nil {
		return
	}
	q.fifoLoop.EraseFifo(msg, status)
}

// CommittableOffset returns the broadcasting-mode local commit watermark,
// or false if this partition is not in broadcasting mode or nothing is
// committable yet.
func (q *ProcessQueue) CommittableOffset() (int64, bool) {
	if q.ledger == nil {
		return 0, false
	}
	return q.ledger.CommittableOffset()
}

// CachedMessagesQuantity returns the number of cached (pending + inflight)
// messages.
func (q *ProcessQueue) CachedMessagesQuantity() int {
	return q.store.CachedMessagesQuantity()
}

// InflightMessagesQuantity returns the number of messages awaiting ack/nack.
func (q *ProcessQueue) InflightMessagesQuantity() int {
	return q.store.InflightMessagesQuantity()
}

// CachedMessageBytes returns the live cached-bytes counter.
func (q *ProcessQueue) CachedMessageBytes() int64 {
	return q.store.CachedMessageBytes()
}

// MessageQueue returns the partition identity this ProcessQueue serves.
func (q *ProcessQueue) MessageQueue() domain.MessageQueue {
	return q.mq
}

// Metrics returns the partition's in-process counters.
func (q *ProcessQueue) Metrics() *domain.Metrics {
	return q.metrics
}

// Drain waits for outstanding fire-and-forget ack/nack calls spawned by the
// batch delivery loop to finish, or until ctx is done. Call after Drop, as
// part of a graceful shutdown sequence.
func (q *ProcessQueue) Drain(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- q.eg.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
