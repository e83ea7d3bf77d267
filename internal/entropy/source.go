package entropy

import (
	"math/rand"
	"sync"
)

// Source yields uniform floats in [0, 1). Every stochastic transition in the
// simulation draws from a Source handed to it, never from a package global.
type Source interface {
	Float64() float64
}

// Seeded is a reproducible Source backed by math/rand.
type Seeded struct {
	seed int64
	rng  *rand.Rand
}

// NewSeeded returns a Source that replays the same stream for the same seed.
func NewSeeded(seed int64) *Seeded {
	return &Seeded{seed: seed, rng: rand.New(rand.NewSource(seed))}
}

// Float64 implements Source.
func (s *Seeded) Float64() float64 {
	return s.rng.Float64()
}

// Seed returns the seed the stream was created with.
func (s *Seeded) Seed() int64 {
	return s.seed
}

// Crypto draws from crypto/rand. Not reproducible.
type Crypto struct{}

// Float64 implements Source.
func (Crypto) Float64() float64 {
	return cryptoRandFloat()
}

// Sequence replays a fixed list of values, wrapping around. Used to force
// specific branches in tests.
type Sequence struct {
	mu     sync.Mutex
	values []float64
	next   int
}

// NewSequence returns a Sequence over values. An empty list always yields 0.
func NewSequence(values ...float64) *Sequence {
	return &Sequence{values: values}
}

// Float64 implements Source.
func (s *Sequence) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}

// Drawn returns how many values have been consumed.
func (s *Sequence) Drawn() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Constant always returns the same value.
type Constant float64

// Float64 implements Source.
func (c Constant) Float64() float64 {
	return float64(c)
}
