package cmd

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/FOI-Bioinformatics/nanorunner/sim"
)

// RunConfig is the YAML shape of a run configuration file, accepted via
// --config as an alternative to flags. Flags explicitly set on the
// command line override file values.
type RunConfig struct {
	SourceDir         string             `yaml:"source_dir"`
	TargetDir         string             `yaml:"target_dir"`
	Interval          float64            `yaml:"interval"`
	Operation         string             `yaml:"operation"`
	ForceStructure    string             `yaml:"force_structure"`
	BatchSize         int                `yaml:"batch_size"`
	TimingModel       string             `yaml:"timing_model"`
	TimingModelParams map[string]float64 `yaml:"timing_model_params"`
	Parallel          bool               `yaml:"parallel_processing"`
	Workers           int                `yaml:"worker_count"`
	Profile           string             `yaml:"profile"`
}

// LoadRunConfig reads and parses a YAML run configuration file.
func LoadRunConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var cfg RunConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return &cfg, nil
}

// toSimConfig converts the file values into a sim.Config, applying the
// named profile first when one is set.
func (rc *RunConfig) toSimConfig() (sim.Config, error) {
	cfg := sim.Config{
		SourceDir:      rc.SourceDir,
		TargetDir:      rc.TargetDir,
		Interval:       time.Duration(rc.Interval * float64(time.Second)),
		Operation:      sim.Operation(rc.Operation),
		ForceStructure: sim.Structure(rc.ForceStructure),
		BatchSize:      rc.BatchSize,
		Parallel:       rc.Parallel,
		Workers:        rc.Workers,
	}

	if rc.Profile != "" {
		profile, ok := sim.GetProfile(rc.Profile)
		if !ok {
			return sim.Config{}, fmt.Errorf("unknown profile %q", rc.Profile)
		}
		applied, err := profile.Apply(cfg)
		if err != nil {
			return sim.Config{}, err
		}
		cfg = applied
	}

	if rc.TimingModel != "" {
		spec, err := sim.TimingSpecFor(rc.TimingModel, rc.TimingModelParams)
		if err != nil {
			return sim.Config{}, err
		}
		cfg.Timing = spec
	}
	return cfg, nil
}
