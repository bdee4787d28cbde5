// Package voice runs proximity voice chat: one receive link per audible
// peer, spatialized through a gain and panner chain, and one microphone
// link to the relay.
package voice

import (
	"context"
	"errors"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/proxvoice/internal/audio"
)

// ErrPermission wraps every failure to open the microphone.
var ErrPermission = errors.New("microphone permission denied")

// DefaultSwitchDelay is how long ChangeInput waits before reopening the
// microphone.
const DefaultSwitchDelay = 3500 * time.Millisecond

// Status events pushed when the microphone is muted or unmuted.
const (
	EventMicrophoneMuted   = "MICROPHONE_MUTED"
	EventMicrophoneUnmuted = "MICROPHONE_UNMUTE"
)

// Connector creates peer connections.
type Connector interface {
	NewPeerConnection() (*webrtc.PeerConnection, error)
}

// Signaler exchanges a local offer for the relay's answer.
type Signaler interface {
	Exchange(ctx context.Context, endpoint string, local webrtc.SessionDescription) (webrtc.SessionDescription, error)
}

// MediaDevices enumerates and opens microphones.
type MediaDevices interface {
	AudioInputs(ctx context.Context) ([]audio.DeviceInfo, error)
	GetUserMedia(ctx context.Context, deviceID string) (audio.MediaStream, error)
}

// Channel sends packets to the game plugin.
type Channel interface {
	Send(ctx context.Context, channel string, payload any) error
}

// PrefStore keeps the preferred microphone.
type PrefStore interface {
	PreferredMic() string
	SetPreferredMic(id string) error
}

// Link is a receive link as the module drives it.
type Link interface {
	Start(ctx context.Context, onConnected func()) error
	SetLocation(x, y, z float64, update bool)
	SetVolume(v float64)
	State() LinkState
	Stop() error
}

// Broadcast is the microphone link.
type Broadcast interface {
	Start(ctx context.Context, onConnected func()) error
	SetMute(muted bool)
	Muted() bool
	State() LinkState
	Stop() error
}
