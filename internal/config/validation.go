package config

import "fmt"

// Validate checks a Config for internally inconsistent values, following the
// base's validation.go boundary checks.
func Validate(c Config) error {
	if c.MaxDeliveryAttempts < 1 {
		return fmt.Errorf("config: MaxDeliveryAttempts must be >= 1, got %d", c.MaxDeliveryAttempts)
	}
	if c.CacheQuantityThreshold < 1 {
		return fmt.Errorf("config: CacheQuantityThreshold must be >= 1, got %d", c.CacheQuantityThreshold)
	}
	if c.CacheBytesThreshold < 1 {
		return fmt.Errorf("config: CacheBytesThreshold must be >= 1, got %d", c.CacheBytesThreshold)
	}
	if c.MaxAwaitBatchSizePerQueue < 1 {
		return fmt.Errorf("config: MaxAwaitBatchSizePerQueue must be >= 1, got %d", c.MaxAwaitBatchSizePerQueue)
	}
	if c.ConsumptionTimeoutMillis < 1 {
		return fmt.Errorf("config: ConsumptionTimeoutMillis must be >= 1, got %d", c.ConsumptionTimeoutMillis)
	}
	if c.IoTimeoutMillis < 1 {
		return fmt.Errorf("config: IoTimeoutMillis must be >= 1, got %d", c.IoTimeoutMillis)
	}
	if c.FifoConsumptionSuspendTimeMillis < 0 {
		return fmt.Errorf("config: FifoConsumptionSuspendTimeMillis must be >= 0, got %d", c.FifoConsumptionSuspendTimeMillis)
	}
	if c.MaxIdleMillis < 1 {
		return fmt.Errorf("config: MaxIdleMillis must be >= 1, got %d", c.MaxIdleMillis)
	}
	if c.BreakerErrorThresholdPct <= 0 || c.BreakerErrorThresholdPct > 100 {
		return fmt.Errorf("config: BreakerErrorThresholdPct must be in (0, 100], got %f", c.BreakerErrorThresholdPct)
	}
	if c.BreakerWindowBuckets < 1 {
		return fmt.Errorf("config: BreakerWindowBuckets must be >= 1, got %d", c.BreakerWindowBuckets)
	}
	if c.BreakerWindowMillis < 1 {
		return fmt.Errorf("config: BreakerWindowMillis must be >= 1, got %d", c.BreakerWindowMillis)
	}
	return nil
}
