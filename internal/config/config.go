// Package config loads episim configuration from YAML files and
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/episim/internal/constants"
	"github.com/nvandessel/episim/internal/contact"
	"github.com/nvandessel/episim/internal/logging"
	"github.com/nvandessel/episim/internal/models"
	"github.com/nvandessel/episim/internal/policy"
	"github.com/nvandessel/episim/internal/progression"
	"github.com/nvandessel/episim/internal/replay"
)

// DefaultFile is read by Load when it exists in the working directory.
const DefaultFile = "episim.yaml"

const (
	defaultThreads           = 4
	defaultIterations        = 100
	defaultInitialInfections = 10
	defaultStartDate         = "1970-01-01"
)

// EpisimConfig contains every setting of a run.
type EpisimConfig struct {
	// Simulation holds the run parameters.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// InfectionParams maps activity names (or prefixes) to contact
	// intensity. Vehicles use "pt".
	InfectionParams map[string]float64 `json:"infection_params" yaml:"infection_params"`

	// Tracing controls quarantine of traced contacts.
	Tracing progression.TracingConfig `json:"tracing" yaml:"tracing"`

	// Testing configures testing that puts positive persons into quarantine.
	Testing progression.TestingConfig `json:"testing,omitempty" yaml:"testing,omitempty"`

	// Progression is the disease transition table.
	Progression progression.Config `json:"progression" yaml:"progression"`

	// Policy selects the restriction policy.
	Policy policy.Config `json:"policy" yaml:"policy"`

	Input   InputConfig   `json:"input" yaml:"input"`
	Output  OutputConfig  `json:"output" yaml:"output"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Store   StoreConfig   `json:"store" yaml:"store"`
}

// SimulationConfig holds the run parameters.
type SimulationConfig struct {
	// Seed makes runs reproducible together with Threads.
	Seed uint64 `json:"seed" yaml:"seed"`

	// Threads is the number of replay workers. Results depend on it.
	Threads int `json:"threads" yaml:"threads"`

	// Iterations is the number of simulated days after bootstrap.
	Iterations int `json:"iterations" yaml:"iterations"`

	// StartDate is the date of iteration 1 (YYYY-MM-DD).
	StartDate string `json:"start_date" yaml:"start_date"`

	// InitialInfections seeded at bootstrap.
	InitialInfections int `json:"initial_infections" yaml:"initial_infections"`

	// CalibrationParameter scales every infection probability.
	CalibrationParameter float64 `json:"calibration_parameter" yaml:"calibration_parameter"`

	// MaxContacts is the number of co-occupant draws per departure.
	MaxContacts int `json:"max_contacts" yaml:"max_contacts"`

	// LeisureTraceProbability is the chance a leisure contact is traced.
	LeisureTraceProbability float64 `json:"leisure_trace_probability" yaml:"leisure_trace_probability"`

	// StopWhenFinished ends the run once no infection is active and
	// nobody is quarantined.
	StopWhenFinished bool `json:"stop_when_finished" yaml:"stop_when_finished"`
}

// InputConfig points to the movement plan and the population file.
type InputConfig struct {
	// Events is a JSONL file of movement events.
	Events string `json:"events" yaml:"events"`

	// Population is an optional CSV of person attributes.
	Population string `json:"population,omitempty" yaml:"population,omitempty"`
}

// OutputConfig configures file output.
type OutputConfig struct {
	// Dir receives infections.jsonl, reports.jsonl, restrictions.jsonl and,
	// at debug level, decisions.jsonl. Empty disables file output.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	// Level is "info" (default), "debug" or "trace". "debug" enables the
	// decision log; "trace" also logs every infection.
	Level string `json:"level" yaml:"level"`
}

// StoreConfig configures the run database.
type StoreConfig struct {
	// Path of the SQLite database. Empty disables persistence.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Default returns the reference configuration.
func Default() *EpisimConfig {
	return &EpisimConfig{
		Simulation: SimulationConfig{
			Threads:                 defaultThreads,
			Iterations:              defaultIterations,
			StartDate:               defaultStartDate,
			InitialInfections:       defaultInitialInfections,
			CalibrationParameter:    constants.DefaultCalibrationParameter,
			MaxContacts:             constants.MaxContacts,
			LeisureTraceProbability: constants.LeisureTraceProbability,
		},
		InfectionParams: map[string]float64{},
		Tracing:         progression.TracingConfig{Enabled: true},
		Progression:     progression.DefaultConfig(),
		Policy:          policy.Config{Kind: policy.KindFixed},
		Logging:         LoggingConfig{Level: "info"},
	}
}

// Load reads ./episim.yaml if present and applies environment overrides.
func Load() (*EpisimConfig, error) {
	if _, err := os.Stat(DefaultFile); err == nil {
		return LoadFrom(DefaultFile)
	}
	cfg := Default()
	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadFrom reads the given file and applies environment overrides. An
// empty path behaves like Load.
func LoadFrom(path string) (*EpisimConfig, error) {
	if path == "" {
		return Load()
	}
	cfg, err := LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadFromFile reads a YAML file on top of the defaults, without
// environment overrides.
func LoadFromFile(path string) (*EpisimConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Validate checks the whole configuration. Errors wrap models.ErrConfig.
func (c *EpisimConfig) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrConfig, err)
	}
	return nil
}

func (c *EpisimConfig) validate() error {
	s := c.Simulation
	if s.Threads < 1 {
		return fmt.Errorf("threads must be at least 1, got %d", s.Threads)
	}
	if s.Iterations < 0 {
		return fmt.Errorf("iterations must be non-negative, got %d", s.Iterations)
	}
	if s.InitialInfections < 0 {
		return fmt.Errorf("initial_infections must be non-negative, got %d", s.InitialInfections)
	}
	if _, err := time.Parse(constants.DateLayout, s.StartDate); err != nil {
		return fmt.Errorf("start_date %q is not YYYY-MM-DD", s.StartDate)
	}
	if len(c.InfectionParams) == 0 {
		return fmt.Errorf("infection_params must name at least one activity")
	}
	if err := c.ContactParams().Validate(); err != nil {
		return err
	}
	if err := c.progression().Validate(); err != nil {
		return fmt.Errorf("progression: %w", err)
	}
	if c.Tracing.StartDay < 0 {
		return fmt.Errorf("tracing start_day must be non-negative, got %d", c.Tracing.StartDay)
	}
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	if c.Logging.Level != "" {
		switch c.Logging.Level {
		case "info", "debug", "trace":
		default:
			return fmt.Errorf("invalid log level: %s (valid: info, debug, trace)", c.Logging.Level)
		}
	}
	return nil
}

// ContactParams returns the transmission model parameters.
func (c *EpisimConfig) ContactParams() contact.Params {
	return contact.Params{
		Calibration:             c.Simulation.CalibrationParameter,
		MaxContacts:             c.Simulation.MaxContacts,
		Intensities:             c.InfectionParams,
		LeisureTraceProbability: c.Simulation.LeisureTraceProbability,
	}
}

func (c *EpisimConfig) progression() progression.Config {
	p := c.Progression
	p.Tracing = c.Tracing
	p.Testing = c.Testing
	return p
}

// ReplayConfig converts the configuration into runner parameters.
func (c *EpisimConfig) ReplayConfig() (replay.Config, error) {
	if err := c.Validate(); err != nil {
		return replay.Config{}, err
	}
	start, _ := time.Parse(constants.DateLayout, c.Simulation.StartDate)
	return replay.Config{
		Seed:              c.Simulation.Seed,
		Threads:           c.Simulation.Threads,
		Iterations:        c.Simulation.Iterations,
		StartDate:         start,
		InitialInfections: c.Simulation.InitialInfections,
		StopWhenFinished:  c.Simulation.StopWhenFinished,
		Contact:           c.ContactParams(),
		Progression:       c.progression(),
	}, nil
}

// NewPolicy builds the configured restriction policy.
func (c *EpisimConfig) NewPolicy(dl *logging.DecisionLogger) (policy.Policy, error) {
	return policy.New(c.Policy, dl)
}

// Marshal renders the configuration as YAML.
func (c *EpisimConfig) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// applyEnvOverrides applies EPISIM_* environment variables. Unparsable
// numbers are ignored.
func applyEnvOverrides(cfg *EpisimConfig) {
	if v := os.Getenv("EPISIM_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Simulation.Seed = n
		}
	}
	if v := os.Getenv("EPISIM_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Simulation.Threads = n
		}
	}
	if v := os.Getenv("EPISIM_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Simulation.Iterations = n
		}
	}
	if v := os.Getenv("EPISIM_START_DATE"); v != "" {
		cfg.Simulation.StartDate = v
	}
	if v := os.Getenv("EPISIM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("EPISIM_DB"); v != "" {
		cfg.Store.Path = v
	}
}
