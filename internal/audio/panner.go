package audio

import (
	"math"
	"sync"

	"github.com/1ureka/proxvoice/internal/spatial"
)

// PanningModel selects how a panner derives left/right gains.
type PanningModel string

const (
	PanningEqualPower PanningModel = "equalpower"
	// PanningHRTF is accepted for parity with browser peers. No HRIR set is
	// bundled, so it renders with equal-power coefficients.
	PanningHRTF PanningModel = "HRTF"
)

// DistanceModel selects the attenuation curve over distance.
type DistanceModel string

const (
	DistanceLinear      DistanceModel = "linear"
	DistanceInverse     DistanceModel = "inverse"
	DistanceExponential DistanceModel = "exponential"
)

// PannerNode positions a mono source relative to the context listener and
// renders it to interleaved stereo.
type PannerNode struct {
	ctx *Context

	mu            sync.RWMutex
	panningModel  PanningModel
	distanceModel DistanceModel
	refDistance   float64
	maxDistance   float64
	rolloffFactor float64
	position      spatial.Vector3

	out []float32
}

func newPannerNode(ctx *Context) *PannerNode {
	return &PannerNode{
		ctx:           ctx,
		panningModel:  PanningEqualPower,
		distanceModel: DistanceInverse,
		refDistance:   1,
		maxDistance:   10000,
		rolloffFactor: 1,
	}
}

func (p *PannerNode) SetPanningModel(m PanningModel) {
	p.mu.Lock()
	p.panningModel = m
	p.mu.Unlock()
}

func (p *PannerNode) SetDistanceModel(m DistanceModel) {
	p.mu.Lock()
	p.distanceModel = m
	p.mu.Unlock()
}

func (p *PannerNode) SetRefDistance(d float64) {
	p.mu.Lock()
	p.refDistance = d
	p.mu.Unlock()
}

func (p *PannerNode) SetMaxDistance(d float64) {
	p.mu.Lock()
	p.maxDistance = d
	p.mu.Unlock()
}

func (p *PannerNode) SetRolloffFactor(f float64) {
	p.mu.Lock()
	p.rolloffFactor = f
	p.mu.Unlock()
}

// SetPosition moves the source. It satisfies spatial.PositionSetter.
func (p *PannerNode) SetPosition(x, y, z float64) {
	p.mu.Lock()
	p.position = spatial.Vector3{X: x, Y: y, Z: z}
	p.mu.Unlock()
}

// Position returns the source location.
func (p *PannerNode) Position() spatial.Vector3 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.position
}

func (p *PannerNode) PanningModel() PanningModel {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.panningModel
}

func (p *PannerNode) DistanceModel() DistanceModel {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.distanceModel
}

func (p *PannerNode) MaxDistance() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.maxDistance
}

func (p *PannerNode) RolloffFactor() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rolloffFactor
}

// DistanceGain returns the attenuation for a source d blocks away. The
// distance is clamped to [refDistance, maxDistance] for every model.
func (p *PannerNode) DistanceGain(d float64) float64 {
	p.mu.RLock()
	model, ref, maxd, rolloff := p.distanceModel, p.refDistance, p.maxDistance, p.rolloffFactor
	p.mu.RUnlock()

	if maxd > 0 {
		d = math.Min(d, maxd)
	}
	d = math.Max(d, ref)

	switch model {
	case DistanceLinear:
		if maxd <= ref {
			return 1
		}
		r := math.Max(0, math.Min(1, rolloff))
		return 1 - r*(d-ref)/(maxd-ref)
	case DistanceExponential:
		if ref <= 0 {
			return 0
		}
		return math.Pow(d/ref, -rolloff)
	default:
		if ref <= 0 {
			return 0
		}
		return ref / (ref + rolloff*(d-ref))
	}
}

// Azimuth returns the source angle in degrees relative to the listener's
// forward direction: 0 ahead, +90 right, -90 left, ±180 behind.
func (p *PannerNode) Azimuth() float64 {
	l := p.ctx.Listener()
	src := p.Position().Sub(l.Position)
	if src.IsZero() {
		return 0
	}
	src = src.Normalize()

	forward := l.Forward.Normalize()
	right := forward.Cross(l.Up).Normalize()
	up := right.Cross(forward)

	projected := src.Sub(up.Scale(src.Dot(up)))
	if projected.IsZero() {
		return 0
	}
	projected = projected.Normalize()

	azimuth := math.Acos(clamp(projected.Dot(right), -1, 1)) * 180 / math.Pi
	if projected.Dot(forward) < 0 {
		azimuth = 360 - azimuth
	}
	if azimuth >= 0 && azimuth <= 270 {
		azimuth = 90 - azimuth
	} else {
		azimuth = 450 - azimuth
	}
	return azimuth
}

// Gains returns the left and right channel gains including distance
// attenuation.
func (p *PannerNode) Gains() (left, right float64) {
	az := p.Azimuth()
	if az < -90 {
		az = -180 - az
	} else if az > 90 {
		az = 180 - az
	}
	x := (az + 90) / 180

	dist := p.DistanceGain(p.Position().Distance(p.ctx.Listener().Position))
	return math.Cos(x*math.Pi/2) * dist, math.Sin(x*math.Pi/2) * dist
}

// Process renders mono into an interleaved stereo buffer owned by the panner.
// The returned slice is valid until the next call.
func (p *PannerNode) Process(mono []float32) []float32 {
	if cap(p.out) < len(mono)*2 {
		p.out = make([]float32, len(mono)*2)
	}
	p.out = p.out[:len(mono)*2]

	l, r := p.Gains()
	gl, gr := float32(l), float32(r)
	for i, s := range mono {
		p.out[2*i] = s * gl
		p.out[2*i+1] = s * gr
	}
	return p.out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
