package device

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/1ureka/proxvoice/internal/audio"
)

// captureBuffer is the number of frames queued before new frames are dropped.
const captureBuffer = 16

type captureStream struct {
	deviceID string
	device   *malgo.Device
	frames   chan []int16

	mu       sync.Mutex
	pending  []int16
	stopped  bool
	stopOnce sync.Once
}

func startCapture(ctx malgo.Context, cfg malgo.DeviceConfig, deviceID string) (*captureStream, error) {
	s := &captureStream{
		deviceID: deviceID,
		frames:   make(chan []int16, captureBuffer),
		pending:  make([]int16, 0, audio.FrameSamples*2),
	}

	dev, err := malgo.InitDevice(ctx, cfg, malgo.DeviceCallbacks{Data: s.onSamples})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize capture device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return nil, fmt.Errorf("failed to start capture device: %w", err)
	}
	s.device = dev
	return s, nil
}

// onSamples runs on the miniaudio thread. It cuts the S16LE input into
// FrameSamples-sized frames and never blocks.
func (s *captureStream) onSamples(_, in []byte, _ uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	for i := 0; i+1 < len(in); i += 2 {
		s.pending = append(s.pending, int16(binary.LittleEndian.Uint16(in[i:])))
	}

	for len(s.pending) >= audio.FrameSamples {
		frame := make([]int16, audio.FrameSamples)
		copy(frame, s.pending)
		s.pending = append(s.pending[:0], s.pending[audio.FrameSamples:]...)

		select {
		case s.frames <- frame:
		default:
		}
	}
}

func (s *captureStream) DeviceID() string       { return s.deviceID }
func (s *captureStream) Frames() <-chan []int16 { return s.frames }

// Stop halts capture and closes Frames. Safe to call more than once.
func (s *captureStream) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		err = s.device.Stop()
		s.device.Uninit()

		s.mu.Lock()
		s.stopped = true
		close(s.frames)
		s.mu.Unlock()
	})
	return err
}
