package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	EnvExtractionConfidenceThreshold   = "TESSERA_EXTRACTION_CONFIDENCE_THRESHOLD"
	EnvExtractionMaxCorrectionAttempts = "TESSERA_EXTRACTION_MAX_CORRECTION_ATTEMPTS"
)

// ExtractionConfig holds the validator's tuning. Both fields are required:
// the acceptable confidence floor and correction budget are deployment
// decisions, so no numeric default is assumed.
type ExtractionConfig struct {
	ConfidenceThreshold   *float64 `toml:"confidence_threshold"`
	MaxCorrectionAttempts *int     `toml:"max_correction_attempts"`
}

// Threshold returns the configured confidence threshold.
func (c *ExtractionConfig) Threshold() float64 {
	if c.ConfidenceThreshold == nil {
		return 0
	}
	return *c.ConfidenceThreshold
}

// Attempts returns the configured correction attempt cap.
func (c *ExtractionConfig) Attempts() int {
	if c.MaxCorrectionAttempts == nil {
		return 0
	}
	return *c.MaxCorrectionAttempts
}

// Finalize applies environment variable overrides and validation. There are
// no defaults to apply.
func (c *ExtractionConfig) Finalize() error {
	c.loadEnv()
	return c.validate()
}

// Merge overwrites set fields from overlay.
func (c *ExtractionConfig) Merge(overlay *ExtractionConfig) {
	if overlay.ConfidenceThreshold != nil {
		c.ConfidenceThreshold = overlay.ConfidenceThreshold
	}
	if overlay.MaxCorrectionAttempts != nil {
		c.MaxCorrectionAttempts = overlay.MaxCorrectionAttempts
	}
}

func (c *ExtractionConfig) loadEnv() {
	if v := os.Getenv(EnvExtractionConfidenceThreshold); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.ConfidenceThreshold = &f
		}
	}
	if v := os.Getenv(EnvExtractionMaxCorrectionAttempts); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxCorrectionAttempts = &n
		}
	}
}

func (c *ExtractionConfig) validate() error {
	if c.ConfidenceThreshold == nil {
		return fmt.Errorf("confidence_threshold is required")
	}
	if t := *c.ConfidenceThreshold; t < 0 || t > 1 {
		return fmt.Errorf("confidence_threshold must be in [0, 1], got %v", t)
	}
	if c.MaxCorrectionAttempts == nil {
		return fmt.Errorf("max_correction_attempts is required")
	}
	if n := *c.MaxCorrectionAttempts; n < 1 {
		return fmt.Errorf("max_correction_attempts must be positive, got %d", n)
	}
	return nil
}
