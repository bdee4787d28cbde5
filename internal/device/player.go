package device

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/1ureka/proxvoice/internal/audio"
)

// maxBufferedSamples caps each input at 200ms of stereo audio; older samples
// are discarded when a link outruns the device.
const maxBufferedSamples = audio.FrameSamples * 2 * 10

// Player is an audio.Output backed by the default playback device. Each Open
// call creates an input; the device callback sums all inputs.
type Player struct {
	device *malgo.Device

	mu     sync.Mutex
	inputs map[string]*playerInput
}

func startPlayer(ctx malgo.Context, cfg malgo.DeviceConfig) (*Player, error) {
	p := &Player{inputs: make(map[string]*playerInput)}

	dev, err := malgo.InitDevice(ctx, cfg, malgo.DeviceCallbacks{Data: p.onPlayback})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize playback device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}
	p.device = dev
	return p, nil
}

// Open registers a new input. Opening an id twice replaces the old input.
func (p *Player) Open(id string) audio.Destination {
	in := &playerInput{player: p, id: id}
	p.mu.Lock()
	p.inputs[id] = in
	p.mu.Unlock()
	return in
}

// Close stops the playback device.
func (p *Player) Close() error {
	err := p.device.Stop()
	p.device.Uninit()
	return err
}

func (p *Player) remove(in *playerInput) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inputs[in.id] == in {
		delete(p.inputs, in.id)
	}
}

// onPlayback runs on the miniaudio thread and fills out with F32LE stereo.
func (p *Player) onPlayback(out, _ []byte, frameCount uint32) {
	n := int(frameCount) * 2
	mix := make([]float32, n)

	p.mu.Lock()
	for _, in := range p.inputs {
		in.drainInto(mix)
	}
	p.mu.Unlock()

	for i, s := range mix {
		if 4*i+4 > len(out) {
			break
		}
		s = float32(math.Max(-1, math.Min(1, float64(s))))
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(s))
	}
}

type playerInput struct {
	player *Player
	id     string

	mu     sync.Mutex
	buf    []float32
	closed bool
}

func (in *playerInput) Write(stereo []float32) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return fmt.Errorf("playback input %s closed", in.id)
	}
	in.buf = append(in.buf, stereo...)
	if over := len(in.buf) - maxBufferedSamples; over > 0 {
		in.buf = append(in.buf[:0], in.buf[over:]...)
	}
	return nil
}

func (in *playerInput) Close() error {
	in.mu.Lock()
	in.closed = true
	in.buf = nil
	in.mu.Unlock()
	in.player.remove(in)
	return nil
}

func (in *playerInput) drainInto(mix []float32) {
	in.mu.Lock()
	defer in.mu.Unlock()
	n := min(len(mix), len(in.buf))
	for i := 0; i < n; i++ {
		mix[i] += in.buf[i]
	}
	in.buf = append(in.buf[:0], in.buf[n:]...)
}
