package audio

import (
	"math"
	"sync/atomic"
)

// GainNode scales samples by a linear factor.
type GainNode struct {
	bits atomic.Uint64
}

// NewGainNode returns a node with gain 1.
func NewGainNode() *GainNode {
	g := &GainNode{}
	g.SetGain(1)
	return g
}

// Gain returns the current factor.
func (g *GainNode) Gain() float64 {
	return math.Float64frombits(g.bits.Load())
}

// SetGain sets the factor. No range is enforced.
func (g *GainNode) SetGain(v float64) {
	g.bits.Store(math.Float64bits(v))
}

// Process scales buf in place.
func (g *GainNode) Process(buf []float32) {
	v := float32(g.Gain())
	if v == 1 {
		return
	}
	for i := range buf {
		buf[i] *= v
	}
}
