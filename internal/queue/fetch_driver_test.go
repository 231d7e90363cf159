package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/rocketmq-go/consumer-engine/internal/domain"
	"github.com/rocketmq-go/consumer-engine/internal/executor"
	"github.com/rocketmq-go/consumer-engine/internal/wire"
)

// TestFetchDriverPullCachesIntoOffsetLedger exercises spec §4.1's
// cache()-time ledger insert through the production RunPull path: a pulled
// message must end up both in the MessageStore and in the OffsetLedger, so
// CommittableOffset can ever report anything once the message is released.
func TestFetchDriverPullCachesIntoOffsetLedger(t *testing.T) {
	client := newFakeRpcClient()
	client.pullResponses = []*wire.PullMessageResponse{
		{
			Status:          wire.Status{Code: codes.OK},
			Messages:        []wire.ReceivedMessage{{MessageID: "m1", Body: []byte("x"), QueueOffset: 7}},
			NextBeginOffset: 8,
		},
	}

	store := NewMessageStore()
	ledger := NewOffsetLedger()
	sched := executor.NewScheduler()
	defer sched.Stop()
	throt := NewThrottle(store, 1000, 1 << 30, time.Hour)
	metrics := domain.NewMetrics()

	driver := NewPullFetchDriver(
		client, store, sched, throt, noopLogger{}, metrics, wire.RequestMeta{}, "q1", nil,
		10, 0, time.Second, time.Second,
		func() bool { return false }, nil, nil, ledger, domain.MessageQueue{},
	)

	driver.RunPull()

	require.Equal(t, 1, store.CachedMessagesQuantity())
	assert.Equal(t, uint64(1), metrics.MessagesFetched.Load())

	ledger.Release(7)
	offset, ok := ledger.CommittableOffset()
	require.True(t, ok, "message cached by the fetch driver must be registered in the ledger")
	assert.Equal(t, int64(7), offset)
}

// TestFetchDriverDeadlineExceededReschedulesAfterLaterDelay confirms an idle
// long-poll timeout does not hot-loop the RPC: DEADLINE_EXCEEDED must wait
// out laterDelay before the next pull is issued, same as any other non-OK
// status (spec §4.3 step 5).
func TestFetchDriverDeadlineExceededReschedulesAfterLaterDelay(t *testing.T) {
	client := newFakeRpcClient() // default PullMessage response is DEADLINE_EXCEEDED

	store := NewMessageStore()
	sched := executor.NewScheduler()
	defer sched.Stop()
	throt := NewThrottle(store, 1000, 1<<30, time.Hour)
	metrics := domain.NewMetrics()

	driver := NewPullFetchDriver(
		client, store, sched, throt, noopLogger{}, metrics, wire.RequestMeta{}, "q1", nil,
		10, 0, time.Hour, time.Second,
		func() bool { return false }, nil, nil, nil, domain.MessageQueue{},
	)

	driver.RunPull()

	assert.Equal(t, 1, client.pullCalls, "laterDelay of one hour must prevent a second pull from firing immediately")
}
