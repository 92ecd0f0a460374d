package cli

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config describes one batch run of the demo solver. Values come from a
// YAML file, with QUTIP_* environment variables taking precedence.
type Config struct {
	Trajectories int     `yaml:"trajectories" env:"QUTIP_TRAJECTORIES"`
	Workers      int     `yaml:"workers" env:"QUTIP_WORKERS"`
	Gamma        float64 `yaml:"gamma" env:"QUTIP_GAMMA"`
	TimeStep     float64 `yaml:"time_step" env:"QUTIP_TIME_STEP"`
	Steps        int     `yaml:"steps" env:"QUTIP_STEPS"`
	Seed         uint64  `yaml:"seed" env:"QUTIP_SEED"`

	// KeepTrajectories selects the retaining aggregator instead of the
	// streaming one.
	KeepTrajectories bool `yaml:"keep_trajectories" env:"QUTIP_KEEP_TRAJECTORIES"`
	// StoreStates forces per-sample state retention on every recorder.
	StoreStates bool `yaml:"store_states" env:"QUTIP_STORE_STATES"`
}

// DefaultConfig returns a batch that runs in well under a second.
func DefaultConfig() Config {
	return Config{
		Trajectories: 500,
		Gamma:        1.0,
		TimeStep:     0.05,
		Steps:        60,
		Seed:         1,
	}
}

// LoadConfig reads path (missing file means defaults) and applies
// environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// No file: defaults plus environment.
	case err != nil:
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Trajectories <= 0 {
		return fmt.Errorf("trajectories must be positive, got %d", c.Trajectories)
	}
	return nil
}
