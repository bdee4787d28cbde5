package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/proxvoice/internal/audio"
	"github.com/1ureka/proxvoice/internal/spatial"
	"github.com/1ureka/proxvoice/internal/util"
)

// IncomingConfig is everything one receive link needs.
type IncomingConfig struct {
	Key        string // peer stream key
	Endpoint   string // listener SDP endpoint for this peer
	Radius     int    // audible radius in blocks
	Audio      *audio.Context
	Connector  Connector
	Signaler   Signaler
	NewDecoder func() (audio.Decoder, error)
	OnFatal    func(error)
}

// IncomingStream receives one peer's audio and renders it through a gain and
// panner chain. Location and volume set before the track arrives are kept
// and applied when the chain is built.
type IncomingStream struct {
	cfg   IncomingConfig
	state linkMachine

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	pc       *webrtc.PeerConnection
	volume   float64
	location spatial.Vector3
	gain     *audio.GainNode
	panner   *audio.PannerNode
	stopped  bool
}

// NewIncomingStream returns an idle link at full volume.
func NewIncomingStream(cfg IncomingConfig) *IncomingStream {
	return &IncomingStream{cfg: cfg, volume: 100}
}

// Start opens the peer connection and sends a recvonly offer once ICE
// gathering completes. onConnected runs once, when the connection first
// reaches the connected state. The link lives until Stop or until ctx is
// cancelled.
func (s *IncomingStream) Start(ctx context.Context, onConnected func()) error {
	if err := s.state.transition(LinkNegotiating); err != nil {
		return err
	}

	pc, err := s.cfg.Connector.NewPeerConnection()
	if err != nil {
		s.state.transition(LinkFailed)
		return fmt.Errorf("failed to create peer connection: %w", err)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return pc.Close()
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.pc = pc
	s.mu.Unlock()

	var gathered sync.Once
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c != nil {
			return
		}
		if pc.SignalingState() == webrtc.SignalingStateClosed {
			util.LogDebug("ICE gathering finished on closed link (peer=%s)", s.cfg.Key)
			return
		}
		gathered.Do(func() { go s.negotiate(pc) })
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		util.LogDebug("voice link state: %s (peer=%s)", state, s.cfg.Key)
		if state != webrtc.PeerConnectionStateConnected {
			return
		}
		if s.state.transition(LinkConnected) != nil {
			return
		}
		util.Stats.AddConnected()
		if onConnected != nil {
			onConnected()
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		s.attach(track)
	})

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		return s.abort(fmt.Errorf("failed to add audio transceiver: %w", err))
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return s.abort(fmt.Errorf("failed to create offer: %w", err))
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return s.abort(fmt.Errorf("failed to set local description: %w", err))
	}
	return nil
}

// abort tears down a link that never finished starting.
func (s *IncomingStream) abort(err error) error {
	s.state.transition(LinkFailed)
	return errors.Join(err, s.Stop())
}

// negotiate posts the gathered offer and applies the answer. Any failure
// while the link is still wanted is fatal to the session.
func (s *IncomingStream) negotiate(pc *webrtc.PeerConnection) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	err := s.exchange(ctx, pc)
	if err == nil {
		return
	}
	if ctx.Err() != nil {
		util.LogDebug("SDP exchange aborted (peer=%s): %v", s.cfg.Key, err)
		return
	}

	util.Stats.AddSignalFailure()
	util.LogError("voice link negotiation failed (peer=%s): %v", s.cfg.Key, err)
	s.state.transition(LinkFailed)
	if s.cfg.OnFatal != nil {
		s.cfg.OnFatal(fmt.Errorf("voice link %s: %w", s.cfg.Key, err))
	}
}

func (s *IncomingStream) exchange(ctx context.Context, pc *webrtc.PeerConnection) error {
	local := pc.LocalDescription()
	if local == nil {
		return errors.New("no local description")
	}
	answer, err := s.cfg.Signaler.Exchange(ctx, s.cfg.Endpoint, *local)
	if err != nil {
		return err
	}
	if err := pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}
	return nil
}

// rtpReader is the part of a remote track the pump reads.
type rtpReader interface {
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// attach builds the chain for the first audio track and starts pumping it.
// Later tracks are ignored.
func (s *IncomingStream) attach(track rtpReader) {
	s.mu.Lock()
	if s.panner != nil || s.stopped {
		s.mu.Unlock()
		return
	}

	dec, err := s.cfg.NewDecoder()
	if err != nil {
		s.mu.Unlock()
		util.LogError("failed to create decoder (peer=%s): %v", s.cfg.Key, err)
		return
	}

	gain := s.cfg.Audio.CreateGain()
	gain.SetGain(s.volume / 100)

	panner := s.cfg.Audio.CreatePanner()
	panner.SetPanningModel(audio.PanningHRTF)
	panner.SetMaxDistance(float64(s.cfg.Radius))
	panner.SetRolloffFactor(1)
	panner.SetDistanceModel(audio.DistanceExponential)
	spatial.NewPosition(s.location).ApplyTo(panner)

	s.gain, s.panner = gain, panner
	chain := audio.NewChain(s.cfg.Audio, s.cfg.Key, gain, panner)
	ctx := s.ctx
	s.mu.Unlock()

	util.LogDebug("audio track attached (peer=%s)", s.cfg.Key)
	go pumpTrack(ctx, s.cfg.Key, track, dec, chain)
}

// pumpTrack decodes RTP packets into the chain until the track ends or ctx
// is cancelled. It owns chain and closes it on exit.
func pumpTrack(ctx context.Context, key string, r rtpReader, dec audio.Decoder, chain *audio.Chain) {
	defer chain.Close()

	pcm := make([]float32, audio.MaxFrameSamples)
	for {
		pkt, _, err := r.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				util.LogDebug("track read ended (peer=%s): %v", key, err)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		if len(pkt.Payload) == 0 {
			continue
		}
		util.Stats.AddRecv(len(pkt.Payload))

		n, err := dec.Decode(pkt.Payload, pcm)
		if err != nil {
			util.LogDebug("dropping undecodable packet (peer=%s): %v", key, err)
			continue
		}
		if err := chain.Push(pcm[:n]); err != nil {
			util.LogDebug("playback closed (peer=%s): %v", key, err)
			return
		}
	}
}

// SetLocation caches the peer's position. With update set and a panner
// present, the panner moves to the new position immediately.
func (s *IncomingStream) SetLocation(x, y, z float64, update bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.location = spatial.Vector3{X: x, Y: y, Z: z}
	if update && s.panner != nil {
		spatial.NewPosition(s.location).ApplyTo(s.panner)
	}
}

// SetVolume sets the link volume on a 0..100 scale. Values outside that
// range are accepted as is.
func (s *IncomingStream) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = v
	if s.gain != nil {
		s.gain.SetGain(v / 100)
	}
}

// Volume returns the last volume set.
func (s *IncomingStream) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// Location returns the cached position.
func (s *IncomingStream) Location() spatial.Vector3 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.location
}

// Gain returns the gain node, or nil before the track attaches.
func (s *IncomingStream) Gain() *audio.GainNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gain
}

// Panner returns the panner node, or nil before the track attaches.
func (s *IncomingStream) Panner() *audio.PannerNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.panner
}

func (s *IncomingStream) State() LinkState {
	return s.state.current()
}

// ConnectionState returns the peer connection's own state, or New before
// Start.
func (s *IncomingStream) ConnectionState() webrtc.PeerConnectionState {
	s.mu.Lock()
	pc := s.pc
	s.mu.Unlock()
	if pc == nil {
		return webrtc.PeerConnectionStateNew
	}
	return pc.ConnectionState()
}

// Stop stops every receiver, closes the connection and aborts a pending
// exchange. Calls after the first are no-ops.
func (s *IncomingStream) Stop() error {
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
	if pc == nil {
		return nil
	}

	var errs []error
	for _, r := range pc.GetReceivers() {
		errs = append(errs, r.Stop())
	}
	errs = append(errs, pc.Close())
	return errors.Join(errs...)
}
