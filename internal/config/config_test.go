package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/episim/internal/models"
	"github.com/nvandessel/episim/internal/policy"
	"github.com/nvandessel/episim/internal/progression"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "episim.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Simulation.Threads != 4 {
		t.Errorf("Threads = %d, want 4", cfg.Simulation.Threads)
	}
	if cfg.Simulation.InitialInfections != 10 {
		t.Errorf("InitialInfections = %d, want 10", cfg.Simulation.InitialInfections)
	}
	if cfg.Simulation.CalibrationParameter != 1e-5 {
		t.Errorf("CalibrationParameter = %v, want 1e-5", cfg.Simulation.CalibrationParameter)
	}
	if cfg.Simulation.MaxContacts != 3 {
		t.Errorf("MaxContacts = %d, want 3", cfg.Simulation.MaxContacts)
	}
	if !cfg.Tracing.Enabled {
		t.Error("tracing should be enabled by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("defaults without infection_params should not validate")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
simulation:
  seed: 4711
  threads: 2
  iterations: 30
  start_date: "2020-02-16"
  initial_infections: 5
  stop_when_finished: true
infection_params:
  home: 1
  work: 2.5
  pt: 1
tracing:
  enabled: false
testing:
  strategy: fixed_days
  tests:
    - type: pcr
      rate: 0.1
      capacity: 100
      days: [monday, thu]
      false_positive_rate: 0.03
      false_negative_rate: 0.1
progression:
  detection_probability: 0.5
policy:
  kind: fixed
  fixed:
    work:
      day-5: {fraction: 0.5}
      "2020-03-01": {fraction: 0.2, mask: n95, compliance: 0.9}
input:
  events: events.jsonl
logging:
  level: debug
`)
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if cfg.Simulation.Seed != 4711 || cfg.Simulation.Threads != 2 || cfg.Simulation.Iterations != 30 {
		t.Errorf("Simulation = %+v", cfg.Simulation)
	}
	if cfg.InfectionParams["work"] != 2.5 {
		t.Errorf("work intensity = %v", cfg.InfectionParams["work"])
	}
	if cfg.Progression.DetectionProbability != 0.5 {
		t.Errorf("DetectionProbability = %v", cfg.Progression.DetectionProbability)
	}
	if cfg.Progression.IncubationDays != 4 {
		t.Errorf("IncubationDays = %d, want default 4", cfg.Progression.IncubationDays)
	}
	if cfg.Simulation.MaxContacts != 3 {
		t.Errorf("MaxContacts = %d, want default 3", cfg.Simulation.MaxContacts)
	}

	entry := cfg.Policy.Fixed["work"]["2020-03-01"]
	if entry.Mask == nil || *entry.Mask != policy.MaskN95 {
		t.Errorf("mask = %v, want n95", entry.Mask)
	}

	rc, err := cfg.ReplayConfig()
	if err != nil {
		t.Fatalf("ReplayConfig() error = %v", err)
	}
	if !rc.StartDate.Equal(time.Date(2020, 2, 16, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("StartDate = %v", rc.StartDate)
	}
	if rc.Progression.Tracing.Enabled {
		t.Error("tracing section was not applied to progression")
	}
	if tests := rc.Progression.Testing.Tests; len(tests) != 1 || tests[0].Type != progression.PCRTest || tests[0].Capacity != 100 {
		t.Errorf("testing section = %+v", rc.Progression.Testing)
	}
	if !rc.StopWhenFinished || rc.Contact.Intensities["pt"] != 1 {
		t.Errorf("replay config = %+v", rc)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	path := writeConfig(t, "simulation: [not, a, map]\n")
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
	path = writeConfig(t, "policy:\n  fixed:\n    work:\n      day-1: {mask: scarf}\n")
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for unknown mask")
	}
}

func TestLoadFrom_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "simulation:\n  seed: 1\n  threads: 2\ninfection_params:\n  home: 1\n")
	t.Setenv("EPISIM_SEED", "99")
	t.Setenv("EPISIM_THREADS", "8")
	t.Setenv("EPISIM_ITERATIONS", "12")
	t.Setenv("EPISIM_START_DATE", "2021-01-04")
	t.Setenv("EPISIM_LOG_LEVEL", "trace")
	t.Setenv("EPISIM_DB", "/tmp/runs.db")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	s := cfg.Simulation
	if s.Seed != 99 || s.Threads != 8 || s.Iterations != 12 || s.StartDate != "2021-01-04" {
		t.Errorf("Simulation = %+v", s)
	}
	if cfg.Logging.Level != "trace" || cfg.Store.Path != "/tmp/runs.db" {
		t.Errorf("Logging = %+v, Store = %+v", cfg.Logging, cfg.Store)
	}
}

func TestLoadFrom_InvalidEnvIgnored(t *testing.T) {
	path := writeConfig(t, "simulation:\n  threads: 2\n")
	t.Setenv("EPISIM_THREADS", "many")
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Simulation.Threads != 2 {
		t.Errorf("Threads = %d, want 2", cfg.Simulation.Threads)
	}
}

func TestLoad_ReadsWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, DefaultFile), []byte("simulation:\n  seed: 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Simulation.Seed != 5 {
		t.Errorf("Seed = %d, want 5", cfg.Simulation.Seed)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*EpisimConfig)
		wantErr string
	}{
		{"valid", func(*EpisimConfig) {}, ""},
		{"zero threads", func(c *EpisimConfig) { c.Simulation.Threads = 0 }, "threads"},
		{"negative iterations", func(c *EpisimConfig) { c.Simulation.Iterations = -1 }, "iterations"},
		{"bad date", func(c *EpisimConfig) { c.Simulation.StartDate = "16.02.2020" }, "start_date"},
		{"negative calibration", func(c *EpisimConfig) { c.Simulation.CalibrationParameter = -1 }, "calibration"},
		{"negative intensity", func(c *EpisimConfig) { c.InfectionParams["work"] = -2 }, "intensity"},
		{"bad progression", func(c *EpisimConfig) { c.Progression.RecoveryDay = 1 }, "progression"},
		{"bad policy", func(c *EpisimConfig) { c.Policy.Kind = "lottery" }, "policy"},
		{"bad testing", func(c *EpisimConfig) {
			c.Testing = progression.TestingConfig{Strategy: progression.TestingDaily, Tests: []progression.TestParams{{Type: "antibody", Rate: 1}}}
		}, "testing"},
		{"bad level", func(c *EpisimConfig) { c.Logging.Level = "verbose" }, "log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.InfectionParams = map[string]float64{"home": 1, "work": 1}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
			if !errors.Is(err, models.ErrConfig) {
				t.Errorf("Validate() error = %v, want ErrConfig", err)
			}
		})
	}
}

func TestBuilder(t *testing.T) {
	start := time.Date(2020, 3, 2, 0, 0, 0, 0, time.UTC)
	cfg, err := NewBuilder().
		Seed(7).
		Threads(1).
		Iterations(10).
		StartDate(start).
		InitialInfections(1).
		Calibration(1e-4).
		Intensities(map[string]float64{"home": 1, "work": 2}).
		Intensity("pt", 1).
		Tracing(true, 3).
		StopWhenFinished(true).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	rc, err := cfg.ReplayConfig()
	if err != nil {
		t.Fatalf("ReplayConfig() error = %v", err)
	}
	if rc.Seed != 7 || rc.Threads != 1 || rc.Iterations != 10 || !rc.StartDate.Equal(start) {
		t.Errorf("replay config = %+v", rc)
	}
	if rc.Progression.Tracing.StartDay != 3 || len(rc.Contact.Intensities) != 3 {
		t.Errorf("replay config = %+v", rc)
	}

	if _, err := NewBuilder().Threads(0).Intensity("home", 1).Build(); err == nil {
		t.Error("Build() accepted zero threads")
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.InfectionParams["home"] = 1
	cfg.Simulation.Seed = 3
	data, err := cfg.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	loaded, err := LoadFromFile(writeConfig(t, string(data)))
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if loaded.Simulation.Seed != 3 || loaded.InfectionParams["home"] != 1 {
		t.Errorf("loaded = %+v", loaded.Simulation)
	}
}
