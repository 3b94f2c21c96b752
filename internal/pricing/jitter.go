package pricing

import (
	"math/rand"
	"sync"
)

const (
	jitterLow  = 0.95
	jitterSpan = 0.1
)

// Jitter supplies the noise factor applied to every estimate.
type Jitter interface {
	Factor() float64
}

// RandJitter draws factors uniformly from [0.95, 1.05). Safe for concurrent use.
type RandJitter struct {
	mu sync.Mutex
	r  *rand.Rand
}

func NewRandJitter(seed int64) *RandJitter {
	return &RandJitter{r: rand.New(rand.NewSource(seed))}
}

func (j *RandJitter) Factor() float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return jitterLow + j.r.Float64()*jitterSpan
}

// FixedJitter always returns the same factor.
type FixedJitter float64

func (f FixedJitter) Factor() float64 { return float64(f) }
