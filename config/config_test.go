package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Pipeline.CyclePolicy != "stale" {
		t.Errorf("cycle_policy = %q, want stale", cfg.Pipeline.CyclePolicy)
	}
	if cfg.Sampler.LimitMode != "stable" {
		t.Errorf("limit_mode = %q, want stable", cfg.Sampler.LimitMode)
	}
	if cfg.Derived.Workers <= 0 {
		t.Errorf("derived workers = %d, want > 0", cfg.Derived.Workers)
	}
	if cfg.Budget.MaxVoxels <= 0 {
		t.Errorf("max_voxels = %d, want > 0", cfg.Budget.MaxVoxels)
	}
}

func TestLoadOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	data := []byte("pipeline:\n  workers: 3\nlogging:\n  level: debug\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Derived.Workers != 3 {
		t.Errorf("workers = %d, want 3", cfg.Derived.Workers)
	}
	if cfg.Derived.LogLevel != slog.LevelDebug {
		t.Errorf("level = %v, want debug", cfg.Derived.LogLevel)
	}
	// Untouched keys keep their defaults.
	if cfg.Pipeline.ParallelThreshold != 2048 {
		t.Errorf("parallel_threshold = %d, want 2048", cfg.Pipeline.ParallelThreshold)
	}
}

func TestLoadRejectsUnknownPolicy(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"cycle policy", "pipeline:\n  cycle_policy: maybe\n"},
		{"evaluation state", "pipeline:\n  evaluation_state: cinema\n"},
		{"limit mode", "sampler:\n  limit_mode: quick\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cfg.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Budget.MaxPoints = 42
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if back.Budget.MaxPoints != 42 {
		t.Errorf("max_points = %d, want 42", back.Budget.MaxPoints)
	}
}
