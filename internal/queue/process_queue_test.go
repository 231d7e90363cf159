package queue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketmq-go/consumer-engine/internal/config"
	"github.com/rocketmq-go/consumer-engine/internal/domain"
	"github.com/rocketmq-go/consumer-engine/internal/executor"
	"github.com/rocketmq-go/consumer-engine/internal/wire"
)

// denyingRateLimiter never grants a token. The rate-limited FIFO retake
// test below uses toggleRateLimiter instead.
type denyingRateLimiter struct{}

func (denyingRateLimiter) TryAcquire() bool { return false }

// toggleRateLimiter grants or denies depending on a flag the test flips,
// for exercising a denial followed by a successful retake of the same
// message.
type toggleRateLimiter struct {
	allow atomic.Bool
}

func (t *toggleRateLimiter) TryAcquire() bool { return t.allow.Load() }

func newTestDeps(t *testing.T) (Deps, *executor.WorkerPool) {
	t.Helper()
	pool := executor.NewWorkerPool(1, 2)
	pool.Start()
	return Deps{
		Client:    newFakeRpcClient(),
		Scheduler: executor.NewScheduler(),
		Pool:      pool,
		Logger:    noopLogger{},
		Consume:   func(*domain.Message) domain.ConsumeStatus { return domain.ConsumeStatusOK },
	}, pool
}

func testMQ() domain.MessageQueue {
	return domain.MessageQueue{Topic: "t1", BrokerName: "b1", QueueID: 0, Endpoints: []string{"127.0.0.1:1234"}}
}

func TestProcessQueueDropIsMonotonicAndStopsTake(t *testing.T) {
	deps, pool := newTestDeps(t)
	defer pool.Stop()

	cfg := config.Defaults()
	cfg.ListenerType = domain.ListenerConcurrent
	pq := New(testMQ(), cfg, wire.RequestMeta{}, nil, deps)

	pq.Drop()
	assert.True(t, pq.IsDropped())
	assert.Nil(t, pq.TryTakeMessages(10))
	assert.Nil(t, pq.TryTakeFifoMessage())
}

func TestProcessQueueTryTakeFifoMessageSlotExclusivity(t *testing.T) {
	deps, pool := newTestDeps(t)
	defer pool.Stop()

	cfg := config.Defaults()
	cfg.ListenerType = domain.ListenerOrderly
	pq := New(testMQ(), cfg, wire.RequestMeta{}, nil, deps)

	pq.store.Cache(domain.NewMessage("m1", []byte("a"), 0, "", nil))
	pq.store.Cache(domain.NewMessage("m2", []byte("a"), 1, "", nil))

	msg := pq.TryTakeFifoMessage()
	require.NotNil(t, msg)
	assert.Equal(t, "m1", msg.MessageID)

	assert.Nil(t, pq.TryTakeFifoMessage(), "slot busy until EraseFifoMessage frees it")

	pq.EraseFifoMessage(msg, domain.ConsumeStatusOK)
	eventually(t, time.Second, func() bool { return pq.TryTakeFifoMessage() != nil }, "slot never freed")
}

func TestProcessQueueTryTakeFifoMessageUnderRateLimitReinsertsToInflightOnly(t *testing.T) {
	deps, pool := newTestDeps(t)
	defer pool.Stop()
	limiter := &toggleRateLimiter{}
	deps.RateLimiter = limiter

	cfg := config.Defaults()
	cfg.ListenerType = domain.ListenerOrderly
	pq := New(testMQ(), cfg, wire.RequestMeta{}, nil, deps)

	pq.store.Cache(domain.NewMessage("m1", []byte("a"), 0, "", nil))

	msg := pq.TryTakeFifoMessage()
	assert.Nil(t, msg, "rate limiter denies the attempt")
	assert.False(t, pq.fifoSlotBusy.Load(), "slot is released back, not left busy")
	assert.Equal(t, 1, pq.store.InflightMessagesQuantity(), "message lives in inflight, not pending")
	assert.Equal(t, 0, pq.store.CachedMessagesQuantity()-pq.store.InflightMessagesQuantity(), "pending is empty")

	limiter.allow.Store(true)
	retaken := pq.TryTakeFifoMessage()
	require.NotNil(t, retaken, "a message denied once must still be retakeable, not stuck forever")
	assert.Equal(t, "m1", retaken.MessageID)
	assert.True(t, pq.fifoSlotBusy.Load())
}

func TestProcessQueueTuneExecutorScalesPoolUpOnceThrottled(t *testing.T) {
	deps, pool := newTestDeps(t)
	defer pool.Stop()

	cfg := config.Defaults()
	cfg.CacheQuantityThreshold = 1
	pq := New(testMQ(), cfg, wire.RequestMeta{}, nil, deps)

	assert.Equal(t, pool.MinWorkers(), pool.GetWorkerCount(), "pool starts at its minimum")

	pq.store.Cache(domain.NewMessage("m1", []byte("a"), 0, "", nil))
	pq.TuneExecutor()

	eventually(t, time.Second, func() bool { return pool.GetWorkerCount() == pool.MaxWorkers() },
		"throttled partition must scale the shared pool up to its max")
}

func TestProcessQueueEraseMessagesClusteringAcks(t *testing.T) {
	deps, pool := newTestDeps(t)
	defer pool.Stop()
	client := deps.Client.(*fakeRpcClient)

	cfg := config.Defaults()
	cfg.ListenerType = domain.ListenerConcurrent
	cfg.MessageModel = domain.MessageModelClustering
	pq := New(testMQ(), cfg, wire.RequestMeta{}, nil, deps)

	pq.store.Cache(domain.NewMessage("m1", []byte("a"), 0, "rh1", nil))
	taken := pq.TryTakeMessages(1)
	require.Len(t, taken, 1)

	pq.EraseMessages(taken, domain.ConsumeStatusOK)
	require.NoError(t, pq.Drain(context.Background()))

	assert.Equal(t, 1, client.ackCount())
}

func TestProcessQueueExpiredTracksThrottle(t *testing.T) {
	deps, pool := newTestDeps(t)
	defer pool.Stop()

	cfg := config.Defaults()
	cfg.MaxIdleMillis = 1
	pq := New(testMQ(), cfg, wire.RequestMeta{}, nil, deps)

	time.Sleep(5 * time.Millisecond)
	assert.True(t, pq.Expired())
}
