package sim

import (
	"hash/fnv"
	"math/rand"
)

// RNG subsystem names. Each subsystem draws from its own stream so that
// adding draws in one place never perturbs another.
const (
	// SubsystemTiming feeds the stochastic timing models.
	SubsystemTiming = "timing"
	// SubsystemGenerator feeds read synthesis in generate mode.
	SubsystemGenerator = "generator"
)

// PartitionedRNG hands out deterministic, isolated RNG streams per
// subsystem. Two runs with the same seed and configuration produce
// identical delay sequences and identical synthetic reads.
//
// Derivation: subsystem seed = master seed XOR fnv1a64(subsystem name).
//
// Not safe for concurrent use; all delay computation happens on the
// single controlling goroutine.
type PartitionedRNG struct {
	seed       int64
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a master seed.
func NewPartitionedRNG(seed int64) *PartitionedRNG {
	return &PartitionedRNG{
		seed:       seed,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns the named subsystem's RNG, creating and caching
// it on first use. The same name always returns the same instance.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(p.seed ^ fnv1a64(name)))
	p.subsystems[name] = rng
	return rng
}

// DeriveSeed returns a child seed for the named stream. Used where a
// worker needs its own rand.Rand instead of sharing the cached one,
// e.g. per-file generation under the parallel pool.
func (p *PartitionedRNG) DeriveSeed(name string) int64 {
	return p.seed ^ fnv1a64(name)
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
