package sim

import (
	"fmt"
	"sort"
	"time"
)

// Profile is a named preset bundling a timing model with batch and
// processing defaults for a common scenario. Profiles only seed the
// configuration; explicit settings applied afterwards win.
type Profile struct {
	Name        string             `yaml:"name"`
	Description string             `yaml:"description"`
	TimingModel string             `yaml:"timing_model"`
	Params      map[string]float64 `yaml:"timing_model_params,omitempty"`
	Interval    float64            `yaml:"interval"`
	BatchSize   int                `yaml:"batch_size"`
	Parallel    bool               `yaml:"parallel_processing"`
	Workers     int                `yaml:"worker_count"`
	Operation   Operation          `yaml:"operation"`
}

var builtinProfiles = map[string]Profile{
	"development": {
		Name:        "development",
		Description: "Fast iteration with deterministic uniform timing",
		TimingModel: "uniform",
		Interval:    1,
		BatchSize:   10,
		Parallel:    true,
		Workers:     8,
		Operation:   OpLink,
	},
	"steady": {
		Name:        "steady",
		Description: "Low-variation random timing for controlled testing",
		TimingModel: "random",
		Params:      map[string]float64{"random_factor": 0.15},
		Interval:    5,
		BatchSize:   1,
		Operation:   OpCopy,
	},
	"bursty": {
		Name:        "bursty",
		Description: "Intermittent burst pattern for pipeline robustness testing",
		TimingModel: "poisson",
		Params:      map[string]float64{"burst_probability": 0.12, "burst_rate_multiplier": 6.0},
		Interval:    5,
		BatchSize:   3,
		Parallel:    true,
		Workers:     4,
		Operation:   OpCopy,
	},
	"high_throughput": {
		Name:        "high_throughput",
		Description: "High file volume with burst timing for stress testing",
		TimingModel: "poisson",
		Params:      map[string]float64{"burst_probability": 0.20, "burst_rate_multiplier": 8.0},
		Interval:    2,
		BatchSize:   15,
		Parallel:    true,
		Workers:     12,
		Operation:   OpLink,
	},
	"gradual_drift": {
		Name:        "gradual_drift",
		Description: "Adaptive pacing that follows observed batch durations",
		TimingModel: "adaptive",
		Params:      map[string]float64{"adaptation_rate": 0.3, "history_size": 8},
		Interval:    5,
		BatchSize:   2,
		Operation:   OpCopy,
	},
	"rapid_sequencing": {
		Name:        "rapid_sequencing",
		Description: "Short jittered intervals mimicking a run at peak output",
		TimingModel: "random",
		Params:      map[string]float64{"random_factor": 0.4},
		Interval:    1,
		BatchSize:   5,
		Parallel:    true,
		Workers:     4,
		Operation:   OpCopy,
	},
	"accuracy_mode": {
		Name:        "accuracy_mode",
		Description: "Slow deterministic delivery for validation runs",
		TimingModel: "uniform",
		Interval:    10,
		BatchSize:   1,
		Operation:   OpCopy,
	},
}

// GetProfile looks up a built-in profile by name.
func GetProfile(name string) (Profile, bool) {
	p, ok := builtinProfiles[name]
	return p, ok
}

// ProfileNames lists built-in profiles in sorted order.
func ProfileNames() []string {
	names := make([]string, 0, len(builtinProfiles))
	for name := range builtinProfiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply merges the profile's presets into cfg and re-validates. Source
// and target directories are never taken from a profile.
func (p Profile) Apply(cfg Config) (Config, error) {
	spec, err := TimingSpecFor(p.TimingModel, p.Params)
	if err != nil {
		return Config{}, fmt.Errorf("profile %q: %w", p.Name, err)
	}
	cfg.Timing = spec
	cfg.Interval = time.Duration(p.Interval * float64(time.Second))
	cfg.BatchSize = p.BatchSize
	cfg.Parallel = p.Parallel
	if p.Workers > 0 {
		cfg.Workers = p.Workers
	}
	cfg.Operation = p.Operation
	return NewConfig(cfg)
}
