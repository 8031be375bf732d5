package boost

import "math"

// Term is the normalization for one secondary collection: holdings are
// divided by Divisor and by the holder's primary count, then capped at Cap.
type Term struct {
	Divisor float64 `yaml:"divisor" json:"divisor"`
	Cap     float64 `yaml:"cap" json:"cap"`
}

// Params holds the four secondary terms in formula order.
type Params struct {
	Starty      Term `yaml:"starty" json:"starty"`
	HonorStarty Term `yaml:"honor_starty" json:"honor_starty"`
	Planet      Term `yaml:"planet" json:"planet"`
	Bad         Term `yaml:"bad" json:"bad"`
}

// DefaultParams are the divisors (10, 10, 30, 10) with a +1.0 cap each.
func DefaultParams() Params {
	return Params{
		Starty:      Term{Divisor: 10, Cap: 1.0},
		HonorStarty: Term{Divisor: 10, Cap: 1.0},
		Planet:      Term{Divisor: 30, Cap: 1.0},
		Bad:         Term{Divisor: 10, Cap: 1.0},
	}
}

// Engine computes per-token boosts. It is stateless apart from its params.
type Engine struct {
	p Params
}

func NewEngine(p Params) *Engine { return &Engine{p: p} }

// Boost returns the multiplier for one primary token whose owner holds
// primary primary tokens and the given secondary counts. Secondary holdings
// are spread evenly over all of the owner's primary tokens, which can assign
// a fractional share to each token.
func (e *Engine) Boost(primary, starty, honorStarty, planet, bad int) float64 {
	if primary <= 0 {
		return 1.0
	}
	return 1.0 +
		e.Term(e.p.Starty, starty, primary) +
		e.Term(e.p.HonorStarty, honorStarty, primary) +
		e.Term(e.p.Planet, planet, primary) +
		e.Term(e.p.Bad, bad, primary)
}

// Term is one capped secondary contribution, in [0, t.Cap].
func (e *Engine) Term(t Term, count, primary int) float64 {
	if count <= 0 || primary <= 0 || t.Divisor <= 0 {
		return 0
	}
	return math.Min(float64(count)/t.Divisor/float64(primary), t.Cap)
}

// Max is the largest boost the params allow.
func (e *Engine) Max() float64 {
	return 1.0 + e.p.Starty.Cap + e.p.HonorStarty.Cap + e.p.Planet.Cap + e.p.Bad.Cap
}
