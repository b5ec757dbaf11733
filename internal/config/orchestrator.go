package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/tessera-ai/tessera/internal/workflow"
)

const (
	EnvOrchestratorDefaultModel    = "TESSERA_ORCHESTRATOR_DEFAULT_MODEL"
	EnvOrchestratorWorkers         = "TESSERA_ORCHESTRATOR_WORKERS"
	EnvOrchestratorMaxAttempts     = "TESSERA_ORCHESTRATOR_MAX_ATTEMPTS"
	EnvOrchestratorRetryBackoff    = "TESSERA_ORCHESTRATOR_RETRY_BACKOFF"
	EnvOrchestratorFailureMode     = "TESSERA_ORCHESTRATOR_FAILURE_MODE"
	EnvOrchestratorTaskTimeout     = "TESSERA_ORCHESTRATOR_TASK_TIMEOUT"
	EnvOrchestratorWorkflowTimeout = "TESSERA_ORCHESTRATOR_WORKFLOW_TIMEOUT"
	EnvOrchestratorShutdownTimeout = "TESSERA_ORCHESTRATOR_SHUTDOWN_TIMEOUT"
)

// OrchestratorConfig holds workflow execution parameters.
type OrchestratorConfig struct {
	DefaultModel    string `toml:"default_model"`
	Workers         int    `toml:"workers"`
	MaxAttempts     int    `toml:"max_attempts"`
	RetryBackoff    string `toml:"retry_backoff"`
	FailureMode     string `toml:"failure_mode"`
	TaskTimeout     string `toml:"task_timeout"`
	WorkflowTimeout string `toml:"workflow_timeout"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
}

// Policy converts the configuration into a workflow execution policy.
func (c *OrchestratorConfig) Policy() workflow.Policy {
	return workflow.Policy{
		MaxAttempts:     c.MaxAttempts,
		RetryBackoff:    duration(c.RetryBackoff),
		FailureMode:     workflow.FailureMode(c.FailureMode),
		Workers:         c.Workers,
		TaskTimeout:     duration(c.TaskTimeout),
		WorkflowTimeout: duration(c.WorkflowTimeout),
	}
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *OrchestratorConfig) ShutdownTimeoutDuration() time.Duration {
	return duration(c.ShutdownTimeout)
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *OrchestratorConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *OrchestratorConfig) Merge(overlay *OrchestratorConfig) {
	if overlay.DefaultModel != "" {
		c.DefaultModel = overlay.DefaultModel
	}
	if overlay.Workers != 0 {
		c.Workers = overlay.Workers
	}
	if overlay.MaxAttempts != 0 {
		c.MaxAttempts = overlay.MaxAttempts
	}
	if overlay.RetryBackoff != "" {
		c.RetryBackoff = overlay.RetryBackoff
	}
	if overlay.FailureMode != "" {
		c.FailureMode = overlay.FailureMode
	}
	if overlay.TaskTimeout != "" {
		c.TaskTimeout = overlay.TaskTimeout
	}
	if overlay.WorkflowTimeout != "" {
		c.WorkflowTimeout = overlay.WorkflowTimeout
	}
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
}

func (c *OrchestratorConfig) loadDefaults() {
	base := workflow.DefaultPolicy()
	if c.DefaultModel == "" {
		c.DefaultModel = "phi-4-multimodal"
	}
	if c.Workers == 0 {
		c.Workers = base.Workers
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = base.MaxAttempts
	}
	if c.RetryBackoff == "" {
		c.RetryBackoff = base.RetryBackoff.String()
	}
	if c.FailureMode == "" {
		c.FailureMode = string(base.FailureMode)
	}
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
}

func (c *OrchestratorConfig) loadEnv() {
	if v := os.Getenv(EnvOrchestratorDefaultModel); v != "" {
		c.DefaultModel = v
	}
	if v := os.Getenv(EnvOrchestratorWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}
	if v := os.Getenv(EnvOrchestratorMaxAttempts); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxAttempts = n
		}
	}
	if v := os.Getenv(EnvOrchestratorRetryBackoff); v != "" {
		c.RetryBackoff = v
	}
	if v := os.Getenv(EnvOrchestratorFailureMode); v != "" {
		c.FailureMode = v
	}
	if v := os.Getenv(EnvOrchestratorTaskTimeout); v != "" {
		c.TaskTimeout = v
	}
	if v := os.Getenv(EnvOrchestratorWorkflowTimeout); v != "" {
		c.WorkflowTimeout = v
	}
	if v := os.Getenv(EnvOrchestratorShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
}

func (c *OrchestratorConfig) validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be positive, got %d", c.MaxAttempts)
	}
	switch workflow.FailureMode(c.FailureMode) {
	case workflow.FailFast, workflow.Isolate:
	default:
		return fmt.Errorf("invalid failure_mode: %q", c.FailureMode)
	}
	for name, value := range map[string]string{
		"retry_backoff":    c.RetryBackoff,
		"shutdown_timeout": c.ShutdownTimeout,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	for name, value := range map[string]string{
		"task_timeout":     c.TaskTimeout,
		"workflow_timeout": c.WorkflowTimeout,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	return nil
}

func duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
