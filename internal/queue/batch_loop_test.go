package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketmq-go/consumer-engine/internal/domain"
)

func TestBatchDeliveryLoopClusteringAcksOnSuccess(t *testing.T) {
	client := newFakeRpcClient()
	ops := newTestRpcOps(client)
	store := NewMessageStore()

	msg := domain.NewMessage("m1", []byte("x"), 0, "rh1", nil)
	store.Cache(msg)
	store.TryTake(1)

	metrics := domain.NewMetrics()
	var spawned []func() error
	loop := NewBatchDeliveryLoop(store, ops, domain.MessageModelClustering, nil, func(fn func() error) {
		spawned = append(spawned, fn)
	}, metrics)

	loop.EraseMessages([]*domain.Message{msg}, domain.ConsumeStatusOK)

	require.Len(t, spawned, 1)
	require.NoError(t, spawned[0]())
	assert.Equal(t, 1, client.ackCount())
	assert.Equal(t, 0, store.InflightMessagesQuantity())
	assert.Equal(t, uint64(1), metrics.MessagesConsumedOK.Load())
	assert.Equal(t, uint64(0), metrics.MessagesConsumedKO.Load())
}

func TestBatchDeliveryLoopClusteringNacksOnFailure(t *testing.T) {
	client := newFakeRpcClient()
	ops := newTestRpcOps(client)
	store := NewMessageStore()

	msg := domain.NewMessage("m1", []byte("x"), 0, "rh1", nil)
	store.Cache(msg)
	store.TryTake(1)

	metrics := domain.NewMetrics()
	var spawned []func() error
	loop := NewBatchDeliveryLoop(store, ops, domain.MessageModelClustering, nil, func(fn func() error) {
		spawned = append(spawned, fn)
	}, metrics)

	loop.EraseMessages([]*domain.Message{msg}, domain.ConsumeStatusError)

	require.Len(t, spawned, 1)
	require.NoError(t, spawned[0]())
	assert.Equal(t, 1, client.nackCount())
	assert.Equal(t, uint64(1), metrics.MessagesConsumedKO.Load())
}

func TestBatchDeliveryLoopBroadcastingReleasesLedgerOffset(t *testing.T) {
	client := newFakeRpcClient()
	ops := newTestRpcOps(client)
	store := NewMessageStore()
	ledger := NewOffsetLedger()
	require.NoError(t, ledger.Append(7))

	msg := domain.NewMessage("m1", []byte("x"), 7, "", nil)
	store.Cache(msg)
	store.TryTake(1)

	loop := NewBatchDeliveryLoop(store, ops, domain.MessageModelBroadcasting, ledger, func(func() error) {
		t.Fatal("broadcasting mode must never spawn a broker RPC")
	}, domain.NewMetrics())

	loop.EraseMessages([]*domain.Message{msg}, domain.ConsumeStatusOK)

	offset, ok := ledger.CommittableOffset()
	require.True(t, ok)
	assert.Equal(t, int64(7), offset)
	assert.Equal(t, 0, client.ackCount())
}
