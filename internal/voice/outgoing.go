package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/1ureka/proxvoice/internal/audio"
	"github.com/1ureka/proxvoice/internal/util"
	rtc "github.com/1ureka/proxvoice/internal/webrtc"
)

// OutgoingConfig is everything the microphone link needs.
type OutgoingConfig struct {
	StreamKey  string // local stream key, also the track's stream id
	Endpoint   string // broadcaster SDP endpoint
	Stream     audio.MediaStream
	Connector  Connector
	Signaler   Signaler
	NewEncoder func() (audio.Encoder, error)
}

// OutgoingStream sends the local microphone to the relay. It owns the
// MediaStream and stops it with the link.
type OutgoingStream struct {
	cfg   OutgoingConfig
	state linkMachine
	muted atomic.Bool

	openSignal chan struct{}

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	pc      *webrtc.PeerConnection
	stopped bool
}

// NewOutgoingStream returns an idle, unmuted link.
func NewOutgoingStream(cfg OutgoingConfig) *OutgoingStream {
	return &OutgoingStream{cfg: cfg, openSignal: make(chan struct{})}
}

// Start adds a sendonly Opus track, posts the offer once ICE gathering is
// complete, and starts the sample pump. The pump holds frames back until the
// connection is up. onConnected runs once, on the first connected state.
func (s *OutgoingStream) Start(ctx context.Context, onConnected func()) error {
	if err := s.state.transition(LinkNegotiating); err != nil {
		return err
	}

	enc, err := s.cfg.NewEncoder()
	if err != nil {
		return s.abort(fmt.Errorf("failed to create encoder: %w", err))
	}

	pc, err := s.cfg.Connector.NewPeerConnection()
	if err != nil {
		return s.abort(fmt.Errorf("failed to create peer connection: %w", err))
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return pc.Close()
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.pc = pc
	s.mu.Unlock()

	var openOnce sync.Once
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		util.LogDebug("microphone link state: %s", state)
		if state != webrtc.PeerConnectionStateConnected {
			return
		}
		if s.state.transition(LinkConnected) != nil {
			return
		}
		openOnce.Do(func() { close(s.openSignal) })
		util.Stats.AddConnected()
		if onConnected != nil {
			onConnected()
		}
	})

	track, err := rtc.NewOpusTrack(s.cfg.StreamKey)
	if err != nil {
		return s.abort(fmt.Errorf("failed to create audio track: %w", err))
	}
	if _, err := pc.AddTransceiverFromTrack(track, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionSendonly,
	}); err != nil {
		return s.abort(fmt.Errorf("failed to add audio track: %w", err))
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return s.abort(fmt.Errorf("failed to create offer: %w", err))
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		return s.abort(fmt.Errorf("failed to set local description: %w", err))
	}

	go s.negotiate(s.ctx, pc, gathered)
	go s.pump(s.ctx, track, enc)
	return nil
}

func (s *OutgoingStream) abort(err error) error {
	s.state.transition(LinkFailed)
	return errors.Join(err, s.Stop())
}

func (s *OutgoingStream) negotiate(ctx context.Context, pc *webrtc.PeerConnection, gathered <-chan struct{}) {
	select {
	case <-gathered:
	case <-ctx.Done():
		return
	}

	answer, err := s.cfg.Signaler.Exchange(ctx, s.cfg.Endpoint, *pc.LocalDescription())
	if err == nil {
		err = pc.SetRemoteDescription(answer)
	}
	if err == nil {
		return
	}
	if ctx.Err() != nil {
		util.LogDebug("microphone SDP exchange aborted: %v", err)
		return
	}

	util.Stats.AddSignalFailure()
	util.LogError("microphone link negotiation failed: %v", err)
	s.state.transition(LinkFailed)
}

// sampleWriter is the part of a local track the pump writes to.
type sampleWriter interface {
	WriteSample(s media.Sample) error
}

// pump is the single writer of the track. It waits for the connection to
// open, then encodes every captured frame, substituting silence while muted.
func (s *OutgoingStream) pump(ctx context.Context, w sampleWriter, enc audio.Encoder) {
	// Phase 1: wait for the link to connect.
	select {
	case <-s.openSignal:
	case <-ctx.Done():
		return
	}

	// Phase 2: encode and send.
	frames := s.cfg.Stream.Frames()
	silence := make([]int16, audio.FrameSamples)
	buf := make([]byte, audio.MaxPacketSize)
	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if s.muted.Load() {
				frame = silence
			}

			n, err := enc.Encode(frame, buf)
			if err != nil {
				util.LogDebug("dropping unencodable frame: %v", err)
				continue
			}
			if err := w.WriteSample(media.Sample{Data: buf[:n], Duration: audio.FrameDuration}); err != nil {
				if !errors.Is(err, io.ErrClosedPipe) {
					util.LogError("failed to send microphone sample: %v", err)
				}
				return
			}

			util.Stats.AddSent(n)
		case <-ctx.Done():
			return
		}
	}
}

// SetMute replaces captured audio with silence while muted.
func (s *OutgoingStream) SetMute(muted bool) { s.muted.Store(muted) }

func (s *OutgoingStream) Muted() bool { return s.muted.Load() }

func (s *OutgoingStream) State() LinkState { return s.state.current() }

// Stop stops the microphone and closes the connection. Calls after the
// first are no-ops.
func (s *OutgoingStream) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	pc, cancel := s.pc, s.cancel
	s.mu.Unlock()

	s.state.close()
	if cancel != nil {
		cancel()
	}

	errs := []error{s.cfg.Stream.Stop()}
	if pc != nil {
		errs = append(errs, pc.Close())
	}
	return errors.Join(errs...)
}
