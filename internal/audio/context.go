package audio

import (
	"sync"
	"time"

	"github.com/1ureka/proxvoice/internal/spatial"
)

const (
	SampleRate    = 48_000
	FrameDuration = 20 * time.Millisecond

	// FrameSamples is the number of samples per channel in one frame.
	FrameSamples = SampleRate / 1000 * 20

	// MaxFrameSamples bounds a single decoded Opus packet (120ms).
	MaxFrameSamples = FrameSamples * 6

	// MaxPacketSize bounds one encoded Opus frame.
	MaxPacketSize = 1275
)

// Destination receives interleaved stereo frames from one chain.
type Destination interface {
	Write(stereo []float32) error
	Close() error
}

// Output is the final sink of a Context. Every chain opens its own input so
// the output can sum them.
type Output interface {
	Open(id string) Destination
}

// Decoder turns one encoded packet into mono PCM and returns the sample count.
type Decoder interface {
	Decode(payload []byte, pcm []float32) (int, error)
}

// Encoder turns one mono PCM frame into an encoded packet and returns its size.
type Encoder interface {
	Encode(pcm []int16, data []byte) (int, error)
}

// DeviceInfo describes one audio input.
type DeviceInfo struct {
	ID   string
	Name string
}

// MediaStream is a running microphone capture. Frames carries mono frames of
// FrameSamples samples; it is closed when the stream stops.
type MediaStream interface {
	DeviceID() string
	Frames() <-chan []int16
	Stop() error
}

// Listener is the pose the panners are rendered relative to.
type Listener struct {
	Position spatial.Vector3
	Forward  spatial.Vector3
	Up       spatial.Vector3
}

// DefaultListener sits at the origin facing -Z with +Y up.
var DefaultListener = Listener{
	Forward: spatial.Vector3{Z: -1},
	Up:      spatial.Vector3{Y: 1},
}

// Context owns the listener pose and the output all chains render into.
type Context struct {
	output Output

	mu       sync.RWMutex
	listener Listener
}

// NewContext creates a Context rendering into output.
func NewContext(output Output) *Context {
	return &Context{output: output, listener: DefaultListener}
}

// Listener returns the current listener pose.
func (c *Context) Listener() Listener {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.listener
}

// SetListener updates the listener pose. Zero forward or up vectors keep the
// previous orientation.
func (c *Context) SetListener(pos, forward, up spatial.Vector3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener.Position = pos
	if !forward.IsZero() {
		c.listener.Forward = forward
	}
	if !up.IsZero() {
		c.listener.Up = up
	}
}

// CreateGain returns a gain node with unity gain.
func (c *Context) CreateGain() *GainNode {
	return NewGainNode()
}

// CreatePanner returns a panner with Web Audio defaults bound to this
// context's listener.
func (c *Context) CreatePanner() *PannerNode {
	return newPannerNode(c)
}

// Connect opens a destination input for the chain identified by id.
func (c *Context) Connect(id string) Destination {
	return c.output.Open(id)
}
