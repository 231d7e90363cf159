package queue

import (
	"sync/atomic"
	"time"
)

// Throttle tracks backpressure against a MessageStore's cache thresholds and
// idle-expiry timestamps for a ProcessQueue (spec §4.2).
type Throttle struct {
	quantityThreshold int32
	bytesThreshold    int64
	maxIdle           time.Duration

	store *MessageStore

	activityNanos atomic.Int64
	throttleNanos atomic.Int64
}

// NewThrottle builds a Throttle reading cache sizes off store.
func NewThrottle(store *MessageStore, quantityThreshold int32, bytesThreshold int64, maxIdle time.Duration) *Throttle {
	t := &Throttle{
		store:             store,
		quantityThreshold: quantityThreshold,
		bytesThreshold:    bytesThreshold,
		maxIdle:           maxIdle,
	}
	now := time.Now().UnixNano()
	t.activityNanos.Store(now)
	t.throttleNanos.Store(now)
	return t
}

// Throttled reports whether the store has crossed either cache threshold.
func (t *Throttle) Throttled() bool {
	throttled := int32(t.store.CachedMessagesQuantity()) >= t.quantityThreshold ||
		t.store.CachedMessageBytes() >= t.bytesThreshold
	if throttled {
		t.throttleNanos.Store(time.Now().UnixNano())
	}
	return throttled
}

// MarkActivity stamps the activity clock. FetchDriver calls it after every
// fetch cycle that returns an OK status; deliveries and erases do not stamp
// it.
func (t *Throttle) MarkActivity() {
	t.activityNanos.Store(time.Now().UnixNano())
}

// Expired reports whether both the activity clock and the throttle clock
// have been idle for at least maxIdle: a partition that is neither doing
// work nor being held back by backpressure is a candidate for reclamation.
func (t *Throttle) Expired() bool {
	now := time.Now().UnixNano()
	idleSinceActivity := now-t.activityNanos.Load() >= t.maxIdle.Nanoseconds()
	idleSinceThrottle := now-t.throttleNanos.Load() >= t.maxIdle.Nanoseconds()
	return idleSinceActivity && idleSinceThrottle
}
