package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rocketmq-go/consumer-engine/internal/domain"
)

func TestThrottleThrottledByQuantity(t *testing.T) {
	s := NewMessageStore()
	th := NewThrottle(s, 2, 1<<30, time.Hour)

	assert.False(t, th.Throttled())

	s.Cache(domain.NewMessage("m1", []byte("a"), 0, "", nil))
	s.Cache(domain.NewMessage("m2", []byte("a"), 1, "", nil))

	assert.True(t, th.Throttled())
}

func TestThrottleThrottledByBytes(t *testing.T) {
	s := NewMessageStore()
	th := NewThrottle(s, 1<<30, 4, time.Hour)

	s.Cache(domain.NewMessage("m1", []byte("aaaa"), 0, "", nil))
	assert.True(t, th.Throttled())
}

func TestThrottleExpiredRequiresBothClocksIdle(t *testing.T) {
	s := NewMessageStore()
	th := NewThrottle(s, 1<<30, 1<<30, time.Millisecond)

	assert.False(t, th.Expired(), "freshly created throttle is not yet idle")

	time.Sleep(5 * time.Millisecond)
	assert.True(t, th.Expired())

	th.MarkActivity()
	assert.False(t, th.Expired(), "recent activity resets the idle clock")
}
