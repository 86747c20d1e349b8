package sim

import (
	"math/rand"
	"time"
)

// TimingModel computes the delay before each successive batch. The
// executor calls NextDelay once per batch except the final one, and
// feeds every measured batch duration back through Observe before the
// next delay is computed. Only the adaptive model uses that feedback;
// the others are stateless apart from their parameters.
//
// NextDelay never returns a negative duration.
type TimingModel interface {
	NextDelay() time.Duration
	Observe(elapsed time.Duration)
}

// NewTimingModel constructs the model selected by spec. The rng is only
// consulted by the stochastic models; passing the same seeded rng
// reproduces the same delay sequence.
func NewTimingModel(spec TimingSpec, baseInterval time.Duration, rng *rand.Rand) (TimingModel, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	if baseInterval < 0 {
		return nil, &ConfigError{Field: "interval", Reason: "must be non-negative"}
	}
	switch s := spec.(type) {
	case UniformSpec:
		return &uniformModel{base: baseInterval}, nil
	case RandomSpec:
		return &randomModel{base: baseInterval, factor: s.Factor, rng: rng}, nil
	case PoissonSpec:
		return &poissonModel{base: baseInterval, burstP: s.BurstProbability, burstMult: s.BurstRateMultiplier, rng: rng}, nil
	case AdaptiveSpec:
		return &adaptiveModel{base: baseInterval, rate: s.AdaptationRate, limit: s.HistorySize}, nil
	default:
		return nil, &ConfigError{Field: "timing_model", Reason: "unknown timing spec variant"}
	}
}

func clampDelay(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

// uniformModel always returns the base interval. It is the
// reproducibility baseline: zero variance, no state.
type uniformModel struct {
	base time.Duration
}

func (m *uniformModel) NextDelay() time.Duration { return m.base }
func (m *uniformModel) Observe(time.Duration)    {}

// randomModel jitters the base interval symmetrically:
// base * (1 + U), U ~ Uniform[-factor, +factor].
type randomModel struct {
	base   time.Duration
	factor float64
	rng    *rand.Rand
}

func (m *randomModel) NextDelay() time.Duration {
	u := (m.rng.Float64()*2 - 1) * m.factor
	d := time.Duration(float64(m.base) * (1 + u))
	return clampDelay(d)
}

func (m *randomModel) Observe(time.Duration) {}

// poissonModel draws exponentially distributed delays with mean equal
// to the base interval. A per-batch coin flip with probability burstP
// switches to burst regime, dividing the mean by burstMult for that
// draw only.
type poissonModel struct {
	base      time.Duration
	burstP    float64
	burstMult float64
	rng       *rand.Rand
}

func (m *poissonModel) NextDelay() time.Duration {
	if m.base == 0 {
		return 0
	}
	mean := float64(m.base)
	if m.rng.Float64() < m.burstP {
		mean /= m.burstMult
	}
	return clampDelay(time.Duration(m.rng.ExpFloat64() * mean))
}

func (m *poissonModel) Observe(time.Duration) {}

// adaptiveModel blends the base interval with the mean of the most
// recently observed batch durations:
//
//	delay = base*(1-rate) + mean(history)*rate
//
// The history is bounded at limit entries, most recent last, and is fed
// exclusively by the executor between batches, so no locking is needed.
type adaptiveModel struct {
	base    time.Duration
	rate    float64
	limit   int
	history []time.Duration
}

func (m *adaptiveModel) NextDelay() time.Duration {
	if len(m.history) == 0 {
		return m.base
	}
	var sum time.Duration
	for _, d := range m.history {
		sum += d
	}
	mean := float64(sum) / float64(len(m.history))
	d := time.Duration(float64(m.base)*(1-m.rate) + mean*m.rate)
	return clampDelay(d)
}

func (m *adaptiveModel) Observe(elapsed time.Duration) {
	m.history = append(m.history, elapsed)
	if len(m.history) > m.limit {
		m.history = m.history[len(m.history)-m.limit:]
	}
}
