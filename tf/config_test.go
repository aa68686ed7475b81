package tf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestTuningConfigDefaults(t *testing.T) {
	// A nil config is the common case for callers that take no config flag.
	var cfg *TuningConfig
	assert.Equal(t, DefaultCacheDuration, cfg.GetCacheDuration())
	assert.Equal(t, DefaultRotationTolerance, cfg.GetRotationTolerance())
	assert.Equal(t, 0, cfg.GetSubscriptionDepth())
	assert.Equal(t, DefaultWaitPollInterval, cfg.GetWaitPollInterval())

	empty := &TuningConfig{}
	assert.Equal(t, DefaultCacheDuration, empty.GetCacheDuration())
	assert.Equal(t, DefaultRotationTolerance, empty.GetRotationTolerance())
}

func TestLoadTuningConfigPartialOverride(t *testing.T) {
	path := writeConfigFile(t, "tuning.json", `{"cache_duration": "2s", "subscription_depth": 8}`)

	cfg, err := LoadTuningConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.GetCacheDuration())
	assert.Equal(t, 8, cfg.GetSubscriptionDepth())
	// Untouched fields keep their defaults.
	assert.Equal(t, DefaultRotationTolerance, cfg.GetRotationTolerance())
	assert.Equal(t, DefaultWaitPollInterval, cfg.GetWaitPollInterval())
}

func TestLoadTuningConfigRejectsNonJSONExtension(t *testing.T) {
	path := writeConfigFile(t, "tuning.yaml", `cache_duration: 2s`)
	_, err := LoadTuningConfig(path)
	assert.Error(t, err)
}

func TestLoadTuningConfigRejectsMalformedJSON(t *testing.T) {
	path := writeConfigFile(t, "tuning.json", `{"cache_duration": `)
	_, err := LoadTuningConfig(path)
	assert.Error(t, err)
}

func TestLoadTuningConfigMissingFile(t *testing.T) {
	_, err := LoadTuningConfig(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestTuningConfigBadValuesFallBack(t *testing.T) {
	bad := "not a duration"
	negative := -1.0
	zeroDepth := 0
	cfg := &TuningConfig{
		CacheDuration:     &bad,
		RotationTolerance: &negative,
		SubscriptionDepth: &zeroDepth,
		WaitPollInterval:  &bad,
	}

	assert.Equal(t, DefaultCacheDuration, cfg.GetCacheDuration())
	assert.Equal(t, DefaultRotationTolerance, cfg.GetRotationTolerance())
	assert.Equal(t, 0, cfg.GetSubscriptionDepth())
	assert.Equal(t, DefaultWaitPollInterval, cfg.GetWaitPollInterval())
}

func TestTuningConfigTreeConfig(t *testing.T) {
	dur := "5s"
	tol := 0.01
	cfg := &TuningConfig{CacheDuration: &dur, RotationTolerance: &tol}

	tc := cfg.TreeConfig()
	assert.Equal(t, 5*time.Second, tc.CacheDuration)
	assert.Equal(t, 0.01, tc.RotationTolerance)
}
