package simulator

import "math/rand"

// Rand is the randomness source for price simulation. Production uses
// math/rand; tests substitute a scripted source.
type Rand interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// Intn returns a value in [0, n).
	Intn(n int) int
}

type systemRand struct{ r *rand.Rand }

func (s systemRand) Float64() float64 { return s.r.Float64() }
func (s systemRand) Intn(n int) int   { return s.r.Intn(n) }

// NewSystemRand returns a Rand backed by math/rand with the given seed.
func NewSystemRand(seed int64) Rand {
	return systemRand{r: rand.New(rand.NewSource(seed))}
}
