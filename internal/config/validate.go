package config

import (
	"fmt"
	"strings"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// Validate checks the config for invalid values and returns all errors found.
// Dangerous zero-values that would stall or break the workflow are clamped to
// safe defaults. Other validation errors are reported so the caller can log
// them as warnings, but do not prevent startup.
func (c *Config) Validate() []error {
	var errs []error

	if c.TargetVersion == "" {
		errs = append(errs, fmt.Errorf("target_version is required"))
	}

	if c.InstallerAppPath == "" {
		errs = append(errs, fmt.Errorf("installer_app_path is required"))
	}

	if c.MaxPostponements < 0 {
		errs = append(errs, fmt.Errorf("max_postponements %d is negative, clamping to 0", c.MaxPostponements))
		c.MaxPostponements = 0
	}

	if c.PromptTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("prompt_timeout_seconds %d must be positive, clamping to 7200", c.PromptTimeoutSeconds))
		c.PromptTimeoutSeconds = 7200
	}

	if len(c.DeferralOffsetsSeconds) != 3 {
		errs = append(errs, fmt.Errorf("deferral_offsets_seconds needs exactly 3 entries, got %d, using defaults", len(c.DeferralOffsetsSeconds)))
		c.DeferralOffsetsSeconds = []int{3600, 7200, 14400}
	}
	for i, offset := range c.DeferralOffsetsSeconds {
		if offset <= 0 {
			errs = append(errs, fmt.Errorf("deferral_offsets_seconds[%d] %d must be positive, using defaults", i, offset))
			c.DeferralOffsetsSeconds = []int{3600, 7200, 14400}
			break
		}
	}
	// Offsets are expected to be strictly increasing for the dialog to make
	// sense, but the helper accepts any ordering, so only warn.
	for i := 1; i < len(c.DeferralOffsetsSeconds); i++ {
		if c.DeferralOffsetsSeconds[i] <= c.DeferralOffsetsSeconds[i-1] {
			errs = append(errs, fmt.Errorf("deferral_offsets_seconds are not strictly increasing"))
			break
		}
	}

	if c.MinFreeSpaceGB <= 0 {
		errs = append(errs, fmt.Errorf("min_free_space_gb %.1f must be positive, clamping to 40", c.MinFreeSpaceGB))
		c.MinFreeSpaceGB = 40
	}

	if c.PowerPollIntervalSeconds <= 0 {
		errs = append(errs, fmt.Errorf("power_poll_interval_seconds %d must be positive, clamping to 15", c.PowerPollIntervalSeconds))
		c.PowerPollIntervalSeconds = 15
	}
	if c.PowerPollMaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("power_poll_max_attempts %d must be positive, clamping to 20", c.PowerPollMaxAttempts))
		c.PowerPollMaxAttempts = 20
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}

	return errs
}
