package sim

import (
	"hash/fnv"
	"math/rand"
	"time"
)

// === Subsystem Constants ===

const (
	// SubsystemArrival drives inter-arrival gaps.
	SubsystemArrival = "arrival"

	// SubsystemRouting drives the choice among parallel work centers.
	SubsystemRouting = "routing"

	// SubsystemProcessing drives processing-time draws.
	SubsystemProcessing = "processing"
)

// === PartitionedRNG ===

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem.
// Two runs with the same seed and topology draw identical sequences, and a
// change in how often one subsystem draws does not shift the others.
//
// Derivation formula: seed XOR fnv1a64(subsystemName).
//
// Thread-safety: NOT thread-safe. Must be called from the kernel goroutine.
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

// ForSubsystem returns a deterministically-seeded RNG for the named subsystem.
// The same subsystem name always returns the same *rand.Rand instance (cached).
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(p.seed ^ fnv1a64(name)))
	p.subsystems[name] = rng
	return rng
}

// Seed returns the master seed.
func (p *PartitionedRNG) Seed() int64 {
	return p.seed
}

// RunUniqueSeed returns a seed derived from the wall clock, for runs that
// did not ask for reproducibility. Callers should log it.
func RunUniqueSeed() int64 {
	return time.Now().UnixNano()
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
