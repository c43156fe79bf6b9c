package config

import (
	"maps"
	"time"

	"github.com/nvandessel/episim/internal/constants"
	"github.com/nvandessel/episim/internal/policy"
	"github.com/nvandessel/episim/internal/progression"
)

// Builder assembles a configuration in code. Build validates the result.
//
//	cfg, err := config.NewBuilder().
//		Seed(7).
//		Intensity("home", 1).
//		Intensity("work", 1).
//		Build()
type Builder struct {
	cfg *EpisimConfig
}

// NewBuilder starts from Default.
func NewBuilder() *Builder {
	return &Builder{cfg: Default()}
}

func (b *Builder) Seed(seed uint64) *Builder {
	b.cfg.Simulation.Seed = seed
	return b
}

func (b *Builder) Threads(n int) *Builder {
	b.cfg.Simulation.Threads = n
	return b
}

func (b *Builder) Iterations(n int) *Builder {
	b.cfg.Simulation.Iterations = n
	return b
}

func (b *Builder) StartDate(d time.Time) *Builder {
	b.cfg.Simulation.StartDate = d.Format(constants.DateLayout)
	return b
}

func (b *Builder) InitialInfections(n int) *Builder {
	b.cfg.Simulation.InitialInfections = n
	return b
}

func (b *Builder) Calibration(c float64) *Builder {
	b.cfg.Simulation.CalibrationParameter = c
	return b
}

func (b *Builder) StopWhenFinished(stop bool) *Builder {
	b.cfg.Simulation.StopWhenFinished = stop
	return b
}

// Intensity sets the contact intensity of an activity.
func (b *Builder) Intensity(activity string, v float64) *Builder {
	b.cfg.InfectionParams[activity] = v
	return b
}

// Intensities sets several contact intensities at once.
func (b *Builder) Intensities(m map[string]float64) *Builder {
	maps.Copy(b.cfg.InfectionParams, m)
	return b
}

func (b *Builder) Tracing(enabled bool, startDay int) *Builder {
	b.cfg.Tracing = progression.TracingConfig{Enabled: enabled, StartDay: startDay}
	return b
}

// Testing enables the testing step.
func (b *Builder) Testing(t progression.TestingConfig) *Builder {
	b.cfg.Testing = t
	return b
}

func (b *Builder) Progression(p progression.Config) *Builder {
	b.cfg.Progression = p
	return b
}

func (b *Builder) Policy(p policy.Config) *Builder {
	b.cfg.Policy = p
	return b
}

func (b *Builder) LogLevel(level string) *Builder {
	b.cfg.Logging.Level = level
	return b
}

func (b *Builder) Store(path string) *Builder {
	b.cfg.Store.Path = path
	return b
}

// Build validates and returns the configuration.
func (b *Builder) Build() (*EpisimConfig, error) {
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}
	return b.cfg, nil
}
