package voice

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/1ureka/proxvoice/internal/audio"
	"github.com/1ureka/proxvoice/internal/signaling"
	"github.com/1ureka/proxvoice/internal/spatial"
	"github.com/1ureka/proxvoice/internal/util"
)

// Card is one of the two voice panels the UI switches between.
type Card string

const (
	CardOnboarding Card = "vc-onboarding"
	CardHome       Card = "voice-home"
)

// UI is the presentation sink the module drives.
type UI interface {
	ShowControls(visible bool)
	SetRangeLabel(label string)
	ShowCard(card Card)
	OnConsent(fn func(ctx context.Context))
	PopulateDevices(devices []audio.DeviceInfo, selected string, onChange func(ctx context.Context, deviceID string))
	ShowWaiting(title, body string, d time.Duration)
	ShowError(title, body, footer string)
	PeerConnected(name string)
}

// Deps wires a Module to its collaborators. NewIncoming and NewOutgoing
// default to NewIncomingStream and NewOutgoingStream.
type Deps struct {
	Session     signaling.Session
	UI          UI
	Devices     MediaDevices
	Channel     Channel
	Prefs       PrefStore
	Signaler    Signaler
	Connector   Connector
	Audio       *audio.Context
	NewDecoder  func() (audio.Decoder, error)
	NewEncoder  func() (audio.Encoder, error)
	OnFatal     func(error)
	SwitchDelay time.Duration

	NewIncoming func(IncomingConfig) Link
	NewOutgoing func(OutgoingConfig) Broadcast
}

// Module owns the audible peers and the microphone link. Links opened by an
// operation live until they are stopped or the ctx given to it is cancelled.
type Module struct {
	deps Deps

	mu            sync.Mutex
	server        string
	streamKey     string
	radius        int
	peers         map[string]*Peer
	outgoing      Broadcast
	devicesLoaded bool
}

// NewModule returns a disabled module.
func NewModule(deps Deps) *Module {
	if deps.SwitchDelay <= 0 {
		deps.SwitchDelay = DefaultSwitchDelay
	}
	if deps.NewIncoming == nil {
		deps.NewIncoming = func(cfg IncomingConfig) Link { return NewIncomingStream(cfg) }
	}
	if deps.NewOutgoing == nil {
		deps.NewOutgoing = func(cfg OutgoingConfig) Broadcast { return NewOutgoingStream(cfg) }
	}
	return &Module{deps: deps, peers: make(map[string]*Peer)}
}

// Enable records the relay session and shows the onboarding card. The
// consent action opens the preferred microphone.
func (m *Module) Enable(server, streamKey string, radius int) {
	m.mu.Lock()
	m.server, m.streamKey, m.radius = server, streamKey, radius
	m.mu.Unlock()

	util.LogInfo("voice chat enabled (radius=%d)", radius)

	ui := m.deps.UI
	ui.ShowControls(true)
	ui.SetRangeLabel(fmt.Sprintf("%d block", radius))
	ui.ShowCard(CardOnboarding)
	ui.OnConsent(func(ctx context.Context) {
		if err := m.Consent(ctx, m.deps.Prefs.PreferredMic()); err != nil {
			util.LogWarning("%v", err)
		}
	})
}

// AddPeer opens a receive link for key. A peer already registered under key
// is replaced without being stopped.
func (m *Module) AddPeer(ctx context.Context, uuid, name, key string, loc spatial.Vector3) error {
	m.mu.Lock()
	link := m.deps.NewIncoming(IncomingConfig{
		Key:        key,
		Endpoint:   signaling.ListenerEndpoint(m.server, m.deps.Session, key, m.streamKey),
		Radius:     m.radius,
		Audio:      m.deps.Audio,
		Connector:  m.deps.Connector,
		Signaler:   m.deps.Signaler,
		NewDecoder: m.deps.NewDecoder,
		OnFatal:    m.deps.OnFatal,
	})
	peer := newPeer(uuid, name, key, loc, link)
	if _, replaced := m.peers[key]; !replaced {
		util.Stats.AddPeer()
	}
	m.peers[key] = peer
	m.mu.Unlock()

	util.LogPeer(key, "opening voice link with %s", name)

	err := link.Start(ctx, func() {
		util.LogPeer(key, "voice link with %s connected", name)
		m.deps.UI.PeerConnected(name)
	})
	if err != nil {
		m.mu.Lock()
		if m.peers[key] == peer {
			delete(m.peers, key)
			util.Stats.RemovePeer()
		}
		m.mu.Unlock()
		return fmt.Errorf("failed to open voice link with %s: %w", name, errors.Join(err, link.Stop()))
	}
	return nil
}

// RemovePeer stops and forgets the peer under key. Unknown keys are ignored.
func (m *Module) RemovePeer(key string) {
	m.mu.Lock()
	peer, ok := m.peers[key]
	delete(m.peers, key)
	m.mu.Unlock()

	if !ok {
		util.LogWarning("cannot remove unknown peer %s", key)
		return
	}

	util.LogPeer(key, "closing voice link with %s", peer.Name)
	util.Stats.RemovePeer()
	if err := peer.Stop(); err != nil {
		util.LogWarning("error closing voice link with %s: %v", peer.Name, err)
	}
}

// PeerLocationUpdate moves the peer under key. Unknown keys are ignored.
func (m *Module) PeerLocationUpdate(key string, x, y, z float64) {
	peer, ok := m.Peer(key)
	if !ok {
		util.LogDebug("location update for unknown peer %s", key)
		return
	}
	peer.UpdateLocation(x, y, z)
}

// SetPeerVolume sets one peer's volume on a 0..100 scale.
func (m *Module) SetPeerVolume(key string, v float64) bool {
	peer, ok := m.Peer(key)
	if !ok {
		return false
	}
	peer.Link().SetVolume(v)
	return true
}

// UpdateListener places the listener at the local player's pose.
func (m *Module) UpdateListener(loc signaling.PlayerLocation) {
	m.deps.Audio.SetListener(
		spatial.Vector3{X: loc.X, Y: loc.Y, Z: loc.Z},
		spatial.ForwardFromAngles(loc.Pitch, loc.Yaw),
		spatial.Vector3{Y: 1},
	)
}

// HandleAudioPermissions shows the voice home card and starts a microphone
// link on stream. The device selector is filled on the first call only.
func (m *Module) HandleAudioPermissions(ctx context.Context, stream audio.MediaStream) error {
	m.deps.UI.ShowCard(CardHome)

	m.mu.Lock()
	first := !m.devicesLoaded
	m.devicesLoaded = true
	m.mu.Unlock()

	if first {
		devices, err := m.deps.Devices.AudioInputs(ctx)
		if err != nil {
			util.LogWarning("failed to list microphones: %v", err)
		} else {
			m.deps.UI.PopulateDevices(devices, m.deps.Prefs.PreferredMic(), func(ctx context.Context, deviceID string) {
				if err := m.ChangeInput(ctx, deviceID); err != nil && !errors.Is(err, context.Canceled) {
					util.LogWarning("%v", err)
				}
			})
		}
	}

	m.mu.Lock()
	out := m.deps.NewOutgoing(OutgoingConfig{
		StreamKey:  m.streamKey,
		Endpoint:   signaling.BroadcasterEndpoint(m.server, m.deps.Session, m.streamKey),
		Stream:     stream,
		Connector:  m.deps.Connector,
		Signaler:   m.deps.Signaler,
		NewEncoder: m.deps.NewEncoder,
	})
	prev := m.outgoing
	m.outgoing = out
	m.mu.Unlock()

	if prev != nil {
		if err := prev.Stop(); err != nil {
			util.LogWarning("error closing previous microphone link: %v", err)
		}
	}

	util.LogInfo("opening microphone link (device=%s)", stream.DeviceID())
	if err := out.Start(ctx, func() {
		util.LogSuccess("microphone link connected")
		m.sendReadiness(ctx, true)
	}); err != nil {
		m.mu.Lock()
		if m.outgoing == out {
			m.outgoing = nil
		}
		m.mu.Unlock()
		return fmt.Errorf("failed to open microphone link: %w", err)
	}
	return nil
}

// Consent opens deviceID, or the default microphone when empty. On failure
// the onboarding card and an error dialog are shown and the returned error
// wraps ErrPermission.
func (m *Module) Consent(ctx context.Context, deviceID string) error {
	stream, err := m.deps.Devices.GetUserMedia(ctx, deviceID)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrPermission, err)
		m.deps.UI.ShowCard(CardOnboarding)
		m.deps.UI.ShowError(
			"Microphone unavailable",
			err.Error(),
			"Check that a microphone is connected and that access is allowed, then try again.",
		)
		return err
	}
	return m.HandleAudioPermissions(ctx, stream)
}

// ChangeInput switches to deviceID. The current microphone link is closed
// and the relay told the client is not ready; after the switch delay the
// new device is opened. Cancelling ctx aborts the wait.
func (m *Module) ChangeInput(ctx context.Context, deviceID string) error {
	if err := m.deps.Prefs.SetPreferredMic(deviceID); err != nil {
		util.LogWarning("failed to save preferred microphone: %v", err)
	}

	m.mu.Lock()
	out := m.outgoing
	m.outgoing = nil
	m.mu.Unlock()

	if out != nil {
		out.SetMute(false)
		if err := out.Stop(); err != nil {
			util.LogWarning("error closing microphone link: %v", err)
		}
	}

	m.sendReadiness(ctx, false)
	m.deps.UI.ShowWaiting("Switching microphone", "Reconnecting with the selected device.", m.deps.SwitchDelay)

	timer := time.NewTimer(m.deps.SwitchDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	return m.Consent(ctx, deviceID)
}

// PushSocketEvent forwards event to the plugin while a microphone link
// exists.
func (m *Module) PushSocketEvent(ctx context.Context, event string) {
	if !m.Streaming() {
		return
	}
	if err := m.deps.Channel.Send(ctx, signaling.ChannelRTCReady, signaling.ForwardedEvent{Event: event}); err != nil {
		util.LogWarning("failed to forward %s: %v", event, err)
	}
}

// SetMute mutes or unmutes the microphone and announces it. It reports
// false when no microphone link exists.
func (m *Module) SetMute(ctx context.Context, muted bool) bool {
	m.mu.Lock()
	out := m.outgoing
	m.mu.Unlock()
	if out == nil {
		return false
	}

	out.SetMute(muted)
	if muted {
		m.PushSocketEvent(ctx, EventMicrophoneMuted)
	} else {
		m.PushSocketEvent(ctx, EventMicrophoneUnmuted)
	}
	return true
}

// Shutdown hides the controls and closes every link.
func (m *Module) Shutdown() error {
	m.deps.UI.ShowControls(false)

	m.mu.Lock()
	out := m.outgoing
	m.outgoing = nil
	peers := m.peers
	m.peers = make(map[string]*Peer)
	m.mu.Unlock()

	var errs []error
	if out != nil {
		errs = append(errs, out.Stop())
	}
	for _, p := range peers {
		util.Stats.RemovePeer()
		errs = append(errs, p.Stop())
	}
	return errors.Join(errs...)
}

func (m *Module) sendReadiness(ctx context.Context, enabled bool) {
	if err := m.deps.Channel.Send(ctx, signaling.ChannelRTCReady, signaling.Readiness{Enabled: enabled}); err != nil {
		util.LogWarning("failed to send readiness: %v", err)
	}
}

// Peer returns the peer registered under key.
func (m *Module) Peer(key string) (*Peer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.peers[key]
	return p, ok
}

// Peers returns the registered stream keys in sorted order.
func (m *Module) Peers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.peers))
}

// Streaming reports whether a microphone link exists.
func (m *Module) Streaming() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outgoing != nil
}

// Outgoing returns the current microphone link, or nil.
func (m *Module) Outgoing() Broadcast {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outgoing
}
