// Package config assembles the consumer configuration surface spec §6
// describes: timing, thresholds, consumption model, and optional
// collaborators. Loading follows the base's layering (defaults, then
// environment overrides, then validation) condensed into a single package.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/rocketmq-go/consumer-engine/internal/domain"
	"github.com/rocketmq-go/consumer-engine/internal/timeutil"
)

// Config is the full configuration surface of one consumer, covering every
// field spec §6 names.
type Config struct {
	// Delivery model selection.
	MessageModel        domain.MessageModel
	ListenerType        domain.ListenerType
	MaxDeliveryAttempts int32

	// Backlog/assignment start.
	ConsumeFromWhere      domain.ConsumeFromWhere
	ConsumeFromTimeMillis int64

	// Cache thresholds (spec §4.2's Throttle inputs).
	CacheQuantityThreshold int32
	CacheBytesThreshold    int64

	// Batch/await sizing (spec §4.3's FetchDriver inputs).
	MaxAwaitBatchSizePerQueue  int32
	MaxAwaitTimeMillisPerQueue int64

	// Timeouts.
	ConsumptionTimeoutMillis int64
	IoTimeoutMillis          int64

	// FIFO-specific.
	FifoConsumptionSuspendTimeMillis int64

	// Circuit breaker tripped around every broker RPC made through RpcOps
	// (spec §6's "optional collaborators" extended to cover the breaker
	// itself, since every deployment trips one around broker calls).
	BreakerErrorThresholdPct float64
	BreakerSuccessThreshold  int32
	BreakerTimeoutMillis     int64
	BreakerVolumeThreshold   int32
	BreakerWindowBuckets     int32
	BreakerWindowMillis      int64

	// Fixed protocol timing constants (spec §6). These are not meant to be
	// tuned per deployment, but are exposed so tests can shrink them.
	ReceiveLongPollTimeoutMillis int64
	PullLongPollTimeoutMillis    int64
	ReceiveLaterDelayMillis      int64
	PullLaterDelayMillis         int64
	MaxIdleMillis                int64
	AckFifoMessageDelayMillis    int64
	RedirectFifoToDlqDelayMillis int64
}

// Defaults returns the configuration defaults, mirroring the base's
// GetDefaults().
func Defaults() Config {
	return Config{
		MessageModel:  domain.MessageModelClustering,
		ListenerType:  domain.ListenerConcurrent,
		MaxDeliveryAttempts: 16,

		ConsumeFromWhere:      domain.ConsumeFromBeginning,
		ConsumeFromTimeMillis: 0,

		CacheQuantityThreshold: 1000,
		CacheBytesThreshold:    64 * 1024 * 1024,

		MaxAwaitBatchSizePerQueue:  32,
		MaxAwaitTimeMillisPerQueue: 0,

		ConsumptionTimeoutMillis: 15000,
		IoTimeoutMillis:          3000,

		FifoConsumptionSuspendTimeMillis: 1000,

		BreakerErrorThresholdPct: 50,
		BreakerSuccessThreshold:  3,
		BreakerTimeoutMillis:     30000,
		BreakerVolumeThreshold:   10,
		BreakerWindowBuckets:     10,
		BreakerWindowMillis:      60000,

		ReceiveLongPollTimeoutMillis: 15000,
		PullLongPollTimeoutMillis:    15000,
		ReceiveLaterDelayMillis:      3000,
		PullLaterDelayMillis:         3000,
		MaxIdleMillis:                30000,
		AckFifoMessageDelayMillis:    100,
		RedirectFifoToDlqDelayMillis: 100,
	}
}

// Load builds a Config from defaults overridden by environment variables,
// following the base's default -> environment -> validate layering.
func Load() (Config, error) {
	cfg := Defaults()
	applyEnvironment(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvironment(cfg *Config) {
	if v, ok := envInt64("CONSUMER_MAX_DELIVERY_ATTEMPTS"); ok {
		cfg.MaxDeliveryAttempts = int32(v)
	}
	if v, ok := envInt64("CONSUMER_CACHE_QUANTITY_THRESHOLD"); ok {
		cfg.CacheQuantityThreshold = int32(v)
	}
	if v, ok := envInt64("CONSUMER_CACHE_BYTES_THRESHOLD"); ok {
		cfg.CacheBytesThreshold = v
	}
	if v, ok := envInt64("CONSUMER_MAX_AWAIT_BATCH_SIZE_PER_QUEUE"); ok {
		cfg.MaxAwaitBatchSizePerQueue = int32(v)
	}
	if v, ok := envInt64("CONSUMER_MAX_AWAIT_TIME_MILLIS_PER_QUEUE"); ok {
		cfg.MaxAwaitTimeMillisPerQueue = v
	}
	if v, ok := envInt64("CONSUMER_CONSUMPTION_TIMEOUT_MILLIS"); ok {
		cfg.ConsumptionTimeoutMillis = v
	}
	if v, ok := envInt64("CONSUMER_IO_TIMEOUT_MILLIS"); ok {
		cfg.IoTimeoutMillis = v
	}
	if v, ok := envInt64("CONSUMER_FIFO_SUSPEND_TIME_MILLIS"); ok {
		cfg.FifoConsumptionSuspendTimeMillis = v
	}
	if v, ok := envInt64("CONSUMER_BREAKER_TIMEOUT_MILLIS"); ok {
		cfg.BreakerTimeoutMillis = v
	}
	if v, ok := envInt64("CONSUMER_BREAKER_VOLUME_THRESHOLD"); ok {
		cfg.BreakerVolumeThreshold = int32(v)
	}
}

func envInt64(name string) (int64, bool) {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ConsumeFromTime converts ConsumeFromTimeMillis to a time.Time.
func (c Config) ConsumeFromTime() time.Time {
	return time.UnixMilli(c.ConsumeFromTimeMillis)
}

// MaxIdle returns the Throttle idle-expiry duration.
func (c Config) MaxIdle() time.Duration {
	return timeutil.FromMillis(c.MaxIdleMillis)
}
