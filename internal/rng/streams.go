package rng

import (
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"
)

// Stream is a named pseudo-random source with convenience samplers layered
// over a math/rand.Rand. Kernels never construct their own rand.Rand; they
// receive a *Streams and pick Rain or General explicitly, so that which
// stream backs which draw is an auditable, not incidental, choice (spec.md
// §5: "their consumers are never reordered across iteration boundaries").
type Stream struct {
	r *rand.Rand
}

func newStream(seed uint64) *Stream {
	return &Stream{r: rand.New(NewTausworthe(seed))}
}

// Float64 returns a uniform draw in [0, 1).
func (s *Stream) Float64() float64 { return s.r.Float64() }

// IntN returns a uniform draw in [0, n).
func (s *Stream) IntN(n int) int { return s.r.Intn(n) }

// Normal draws from N(mean, stddev^2).
func (s *Stream) Normal(mean, stddev float64) float64 {
	n := distuv.Normal{Mu: mean, Sigma: stddev, Src: s.r}
	return n.Rand()
}

// Poisson draws from a Poisson distribution with the given mean; used as a
// fallback for small counts where the spec's Gaussian-rounded approximation
// would be unstable (mean < 30).
func (s *Stream) Poisson(mean float64) float64 {
	p := distuv.Poisson{Lambda: mean, Src: s.r}
	return p.Rand()
}

// Streams holds the two independent generator instances required by
// spec.md §5: one for rainfall stochastics, one for everything else
// (flow-velocity seeding, uniform cell selection, ...). Exactly these two
// instances exist for the lifetime of a run.
type Streams struct {
	Rain    *Stream
	General *Stream
}

// NewStreams constructs the two streams from the two configured seeds.
func NewStreams(rainSeed, generalSeed uint64) *Streams {
	return &Streams{
		Rain:    newStream(rainSeed),
		General: newStream(generalSeed),
	}
}
