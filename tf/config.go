package tf

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TuningConfig is the JSON-loadable tuning surface for the frame tree and its
// transport. Fields are pointers so a partial file only overrides what it
// names; the Get* accessors supply defaults for the rest.
type TuningConfig struct {
	// CacheDuration is the per-edge retention window as a duration string
	// like "10s".
	CacheDuration *string `json:"cache_duration,omitempty"`

	// RotationTolerance bounds how far rotation norms may stray from 1.
	RotationTolerance *float64 `json:"rotation_tolerance,omitempty"`

	// SubscriptionDepth is the transport channel buffer length.
	SubscriptionDepth *int `json:"subscription_depth,omitempty"`

	// WaitPollInterval is the WaitForTransform retry period as a duration
	// string like "10ms".
	WaitPollInterval *string `json:"wait_poll_interval,omitempty"`
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The path must end
// in .json and the file is capped at 1MB. Fields omitted from the file keep
// their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &TuningConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// GetCacheDuration returns the configured retention window, or
// DefaultCacheDuration when unset or unparseable.
func (c *TuningConfig) GetCacheDuration() time.Duration {
	if c == nil || c.CacheDuration == nil {
		return DefaultCacheDuration
	}
	d, err := time.ParseDuration(*c.CacheDuration)
	if err != nil || d <= 0 {
		return DefaultCacheDuration
	}
	return d
}

// GetRotationTolerance returns the configured rotation tolerance, or
// DefaultRotationTolerance when unset or non-positive.
func (c *TuningConfig) GetRotationTolerance() float64 {
	if c == nil || c.RotationTolerance == nil || *c.RotationTolerance <= 0 {
		return DefaultRotationTolerance
	}
	return *c.RotationTolerance
}

// GetSubscriptionDepth returns the configured transport channel depth, or
// the transport default when unset or non-positive.
func (c *TuningConfig) GetSubscriptionDepth() int {
	if c == nil || c.SubscriptionDepth == nil || *c.SubscriptionDepth < 1 {
		return 0 // let the bus apply its own default
	}
	return *c.SubscriptionDepth
}

// GetWaitPollInterval returns the configured WaitForTransform retry period,
// or DefaultWaitPollInterval when unset or unparseable.
func (c *TuningConfig) GetWaitPollInterval() time.Duration {
	if c == nil || c.WaitPollInterval == nil {
		return DefaultWaitPollInterval
	}
	d, err := time.ParseDuration(*c.WaitPollInterval)
	if err != nil || d <= 0 {
		return DefaultWaitPollInterval
	}
	return d
}

// TreeConfig converts the tuning values into a TreeConfig.
func (c *TuningConfig) TreeConfig() TreeConfig {
	return TreeConfig{
		CacheDuration:     c.GetCacheDuration(),
		RotationTolerance: c.GetRotationTolerance(),
	}
}
