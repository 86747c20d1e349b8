package sim

import (
	"fmt"
	"time"
)

// Operation selects how manifest entries are materialized in the
// target directory.
type Operation string

const (
	// OpCopy duplicates file content, preserving mode and timestamps.
	OpCopy Operation = "copy"
	// OpLink creates a symbolic link to the absolute source path.
	OpLink Operation = "link"
)

// TimingSpec is the tagged union of timing model parameter records.
// Exactly one variant exists per model; selection happens once, at
// model construction, instead of through a string-keyed parameter bag.
type TimingSpec interface {
	// Model returns the model name used in configuration files and
	// CLI flags.
	Model() string
	validate() error
}

// UniformSpec configures the deterministic baseline model: every delay
// equals the base interval.
type UniformSpec struct{}

func (UniformSpec) Model() string   { return "uniform" }
func (UniformSpec) validate() error { return nil }

// RandomSpec configures symmetric uniform jitter around the base
// interval: delay = base * (1 + U), U ~ Uniform[-Factor, +Factor].
type RandomSpec struct {
	Factor float64
}

func (RandomSpec) Model() string { return "random" }

func (s RandomSpec) validate() error {
	if s.Factor < 0 || s.Factor > 1 {
		return &ConfigError{Field: "random_factor", Reason: "must be between 0.0 and 1.0"}
	}
	return nil
}

// PoissonSpec configures exponentially distributed delays with mean
// equal to the base interval. Per batch, with probability
// BurstProbability the mean is divided by BurstRateMultiplier,
// modelling bursty sequencer output.
type PoissonSpec struct {
	BurstProbability    float64
	BurstRateMultiplier float64
}

func (PoissonSpec) Model() string { return "poisson" }

func (s PoissonSpec) validate() error {
	if s.BurstProbability < 0 || s.BurstProbability > 1 {
		return &ConfigError{Field: "burst_probability", Reason: "must be between 0.0 and 1.0"}
	}
	if s.BurstRateMultiplier <= 0 {
		return &ConfigError{Field: "burst_rate_multiplier", Reason: "must be positive"}
	}
	return nil
}

// AdaptiveSpec configures the feedback-driven model: the next delay is
// base*(1-rate) + mean(history)*rate, where history holds the most
// recent measured batch durations, capped at HistorySize.
type AdaptiveSpec struct {
	AdaptationRate float64
	HistorySize    int
}

func (AdaptiveSpec) Model() string { return "adaptive" }

func (s AdaptiveSpec) validate() error {
	if s.AdaptationRate < 0 || s.AdaptationRate > 1 {
		return &ConfigError{Field: "adaptation_rate", Reason: "must be between 0.0 and 1.0"}
	}
	if s.HistorySize < 1 {
		return &ConfigError{Field: "history_size", Reason: "must be at least 1"}
	}
	return nil
}

// DefaultTimingSpec returns the named model's spec populated with its
// default parameters. Unknown model names are rejected here, never at
// delay-computation time.
func DefaultTimingSpec(model string) (TimingSpec, error) {
	switch model {
	case "uniform":
		return UniformSpec{}, nil
	case "random":
		return RandomSpec{Factor: 0.3}, nil
	case "poisson":
		return PoissonSpec{BurstProbability: 0.2, BurstRateMultiplier: 4.0}, nil
	case "adaptive":
		return AdaptiveSpec{AdaptationRate: 0.2, HistorySize: 5}, nil
	default:
		return nil, &ConfigError{Field: "timing_model", Reason: fmt.Sprintf("unknown model %q", model)}
	}
}

// TimingSpecFor builds a spec from a model name and a loose parameter
// mapping, as found in YAML profiles and run-config files. Missing
// parameters take their defaults; out-of-range values are rejected.
func TimingSpecFor(model string, params map[string]float64) (TimingSpec, error) {
	spec, err := DefaultTimingSpec(model)
	if err != nil {
		return nil, err
	}
	get := func(key string, def float64) float64 {
		if v, ok := params[key]; ok {
			return v
		}
		return def
	}
	switch s := spec.(type) {
	case RandomSpec:
		s.Factor = get("random_factor", s.Factor)
		spec = s
	case PoissonSpec:
		s.BurstProbability = get("burst_probability", s.BurstProbability)
		s.BurstRateMultiplier = get("burst_rate_multiplier", s.BurstRateMultiplier)
		spec = s
	case AdaptiveSpec:
		s.AdaptationRate = get("adaptation_rate", s.AdaptationRate)
		if v, ok := params["history_size"]; ok {
			s.HistorySize = int(v)
		}
		spec = s
	}
	if err := spec.validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// Config holds every knob of one simulation run. Build it with
// NewConfig, which fills defaults and validates; a Config that came out
// of NewConfig never fails validation mid-run.
type Config struct {
	SourceDir string
	TargetDir string

	// Interval is the base delay between batches.
	Interval time.Duration
	// Operation is copy or link.
	Operation Operation
	// ForceStructure bypasses detection entirely when set.
	ForceStructure Structure
	// BatchSize is the number of manifest entries delivered per batch.
	BatchSize int
	// Timing selects the inter-batch delay policy.
	Timing TimingSpec

	// Parallel distributes entry operations within a batch across
	// Workers goroutines. Batch boundaries stay strictly ordered.
	Parallel bool
	Workers  int
}

// NewConfig fills defaults into cfg and validates every field, failing
// fast with a ConfigError on the first out-of-range or unrecognized
// value.
func NewConfig(cfg Config) (Config, error) {
	if cfg.Operation == "" {
		cfg.Operation = OpCopy
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 1
	}
	if cfg.Workers == 0 {
		cfg.Workers = 4
	}
	if cfg.Timing == nil {
		cfg.Timing = UniformSpec{}
	}

	if cfg.SourceDir == "" {
		return Config{}, &ConfigError{Field: "source_dir", Reason: "must not be empty"}
	}
	if cfg.TargetDir == "" {
		return Config{}, &ConfigError{Field: "target_dir", Reason: "must not be empty"}
	}
	if cfg.Interval < 0 {
		return Config{}, &ConfigError{Field: "interval", Reason: "must be non-negative"}
	}
	if cfg.Operation != OpCopy && cfg.Operation != OpLink {
		return Config{}, &ConfigError{Field: "operation", Reason: fmt.Sprintf("unknown operation %q", cfg.Operation)}
	}
	if cfg.ForceStructure != "" && cfg.ForceStructure != StructureSingleplex && cfg.ForceStructure != StructureMultiplex {
		return Config{}, &ConfigError{Field: "force_structure", Reason: fmt.Sprintf("unknown structure %q", cfg.ForceStructure)}
	}
	if cfg.BatchSize < 1 {
		return Config{}, &ConfigError{Field: "batch_size", Reason: "must be at least 1"}
	}
	if cfg.Workers < 1 {
		return Config{}, &ConfigError{Field: "worker_count", Reason: "must be at least 1"}
	}
	if err := cfg.Timing.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
