package config_test

import (
	"strings"
	"testing"

	"github.com/tessera-ai/tessera/internal/config"
	"github.com/tessera-ai/tessera/internal/registry"
	"github.com/tessera-ai/tessera/internal/workflow"
)

func float(v float64) *float64 { return &v }
func integer(v int) *int       { return &v }

func validConfig() *config.Config {
	return &config.Config{
		Extraction: config.ExtractionConfig{
			ConfidenceThreshold:   float(0.7),
			MaxCorrectionAttempts: integer(2),
		},
	}
}

func TestFinalizeDefaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	if cfg.Orchestrator.DefaultModel != "phi-4-multimodal" {
		t.Errorf("DefaultModel = %q, want phi-4-multimodal", cfg.Orchestrator.DefaultModel)
	}
	if cfg.Orchestrator.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Orchestrator.Workers)
	}
	if got := cfg.Orchestrator.Policy().FailureMode; got != workflow.Isolate {
		t.Errorf("FailureMode = %s, want isolate", got)
	}
	if cfg.Backend.CallTimeoutDuration() == 0 {
		t.Error("CallTimeout default missing")
	}
	if len(cfg.Models) != 3 {
		t.Fatalf("default catalog has %d models, want 3", len(cfg.Models))
	}

	models := cfg.Registry()
	byID := make(map[string]registry.Model, len(models))
	for _, m := range models {
		byID[m.Descriptor.ID] = m
	}
	if byID["phi-4-multimodal"].Descriptor.TierRequired != registry.TierStandard {
		t.Error("phi-4-multimodal should require standard tier")
	}
	if byID["llama-3-8b"].Descriptor.TierRequired != registry.TierProfessional {
		t.Error("llama-3-8b should require professional tier")
	}
}

func TestFinalizeRequiresExtractionTuning(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.ExtractionConfig
		want string
	}{
		{"missing threshold", config.ExtractionConfig{MaxCorrectionAttempts: integer(2)}, "confidence_threshold is required"},
		{"missing attempts", config.ExtractionConfig{ConfidenceThreshold: float(0.5)}, "max_correction_attempts is required"},
		{"threshold out of range", config.ExtractionConfig{ConfidenceThreshold: float(1.5), MaxCorrectionAttempts: integer(2)}, "must be in [0, 1]"},
		{"non-positive attempts", config.ExtractionConfig{ConfidenceThreshold: float(0.5), MaxCorrectionAttempts: integer(0)}, "must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Extraction: tt.cfg}
			err := cfg.Finalize()
			if err == nil {
				t.Fatal("Finalize() succeeded, want validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Finalize() error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestMergeOverlay(t *testing.T) {
	cfg := validConfig()
	cfg.Orchestrator.Workers = 2
	cfg.Orchestrator.FailureMode = string(workflow.Isolate)

	overlay := &config.Config{
		Orchestrator: config.OrchestratorConfig{FailureMode: string(workflow.FailFast)},
		Extraction:   config.ExtractionConfig{ConfidenceThreshold: float(0.9)},
	}
	cfg.Merge(overlay)

	if cfg.Orchestrator.Workers != 2 {
		t.Errorf("Workers = %d, overlay must not clear unset fields", cfg.Orchestrator.Workers)
	}
	if cfg.Orchestrator.FailureMode != string(workflow.FailFast) {
		t.Errorf("FailureMode = %q, want failfast from overlay", cfg.Orchestrator.FailureMode)
	}
	if cfg.Extraction.Threshold() != 0.9 {
		t.Errorf("Threshold = %v, want 0.9 from overlay", cfg.Extraction.Threshold())
	}
	if cfg.Extraction.Attempts() != 2 {
		t.Errorf("Attempts = %d, overlay must not clear unset fields", cfg.Extraction.Attempts())
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(config.EnvOrchestratorWorkers, "8")
	t.Setenv(config.EnvOrchestratorFailureMode, "failfast")
	t.Setenv(config.EnvExtractionConfidenceThreshold, "0.85")
	t.Setenv(config.EnvExtractionMaxCorrectionAttempts, "5")
	t.Setenv(config.EnvBackendLocalBaseURL, "http://models.internal:11434")

	cfg := &config.Config{}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	if cfg.Orchestrator.Workers != 8 {
		t.Errorf("Workers = %d, want 8 from env", cfg.Orchestrator.Workers)
	}
	if cfg.Orchestrator.FailureMode != "failfast" {
		t.Errorf("FailureMode = %q, want failfast from env", cfg.Orchestrator.FailureMode)
	}
	if cfg.Extraction.Threshold() != 0.85 {
		t.Errorf("Threshold = %v, want 0.85 from env", cfg.Extraction.Threshold())
	}
	if cfg.Extraction.Attempts() != 5 {
		t.Errorf("Attempts = %d, want 5 from env", cfg.Extraction.Attempts())
	}
	if cfg.Backend.Local.BaseURL != "http://models.internal:11434" {
		t.Errorf("Local.BaseURL = %q, want env value", cfg.Backend.Local.BaseURL)
	}
}

func TestInvalidFailureMode(t *testing.T) {
	cfg := validConfig()
	cfg.Orchestrator.FailureMode = "explode"

	if err := cfg.Finalize(); err == nil || !strings.Contains(err.Error(), "failure_mode") {
		t.Errorf("Finalize() error = %v, want failure_mode validation error", err)
	}
}
