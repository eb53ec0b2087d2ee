package detection

import (
	"math/rand"
	"sync"
	"time"
)

// Source is the randomness the generator draws from.
// *rand.Rand satisfies it; tests substitute scripted sources.
type Source interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// Intn returns a value in [0, n).
	Intn(n int) int
}

// lockedSource serializes access to a rand.Rand, which is not safe for concurrent use.
type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSource returns a goroutine-safe Source. A zero seed seeds from the clock.
func NewSource(seed int64) Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lockedSource{r: rand.New(rand.NewSource(seed))}
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

func (s *lockedSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Intn(n)
}
