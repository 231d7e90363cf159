package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	require.NoError(t, Validate(Defaults()))
}

func TestLoadAppliesEnvironmentOverride(t *testing.T) {
	t.Setenv("CONSUMER_MAX_DELIVERY_ATTEMPTS", "5")
	t.Setenv("CONSUMER_CACHE_QUANTITY_THRESHOLD", "42")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int32(5), cfg.MaxDeliveryAttempts)
	assert.Equal(t, int32(42), cfg.CacheQuantityThreshold)
}

func TestLoadIgnoresUnparsableEnvironmentValue(t *testing.T) {
	t.Setenv("CONSUMER_MAX_DELIVERY_ATTEMPTS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults().MaxDeliveryAttempts, cfg.MaxDeliveryAttempts)
}

func TestValidateRejectsOutOfRangeValues(t *testing.T) {
	cfg := Defaults()
	cfg.MaxDeliveryAttempts = 0
	assert.Error(t, Validate(cfg))
}

func TestValidateRejectsOutOfRangeBreakerThreshold(t *testing.T) {
	cfg := Defaults()
	cfg.BreakerErrorThresholdPct = 0
	assert.Error(t, Validate(cfg))
}

func TestLoadAppliesBreakerEnvironmentOverride(t *testing.T) {
	t.Setenv("CONSUMER_BREAKER_TIMEOUT_MILLIS", "5000")
	t.Setenv("CONSUMER_BREAKER_VOLUME_THRESHOLD", "20")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(5000), cfg.BreakerTimeoutMillis)
	assert.Equal(t, int32(20), cfg.BreakerVolumeThreshold)
}

func TestEnvInt64MissingVariable(t *testing.T) {
	require.NoError(t, os.Unsetenv("CONSUMER_DOES_NOT_EXIST"))
	_, ok := envInt64("CONSUMER_DOES_NOT_EXIST")
	assert.False(t, ok)
}
