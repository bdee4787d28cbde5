package signaling

import (
	"encoding/json"

	"github.com/1ureka/proxvoice/internal/spatial"
)

// Plugin channel names. Outbound frames use ChannelRTCReady; the rest are
// pushed by the game server.
const (
	ChannelRTCReady           = "SOCKET_IN_CLIENT_INITIALIZED_RTC"
	ChannelVoiceUnlock        = "CLIENT_OUT_VOICE_UNLOCK"
	ChannelVoiceSubscribe     = "CLIENT_OUT_VOICE_SUBSCRIBE"
	ChannelVoiceDropStream    = "CLIENT_OUT_VOICE_DROP_STREAM"
	ChannelVoicePeerLocations = "CLIENT_OUT_VOICE_UPDATE_PEER_LOCATIONS"
	ChannelPlayerLocation     = "CLIENT_OUT_PLAYER_LOCATION"
)

// Packet is one JSON frame on the plugin websocket.
type Packet struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Readiness toggles whether the relay should treat this client as ready.
type Readiness struct {
	Enabled bool `json:"enabled"`
}

// ForwardedEvent carries an opaque client event to the game server.
type ForwardedEvent struct {
	Event string `json:"event"`
}

// VoiceUnlock enables voice chat for this session.
type VoiceUnlock struct {
	StreamKey string `json:"streamKey"`
	Server    string `json:"server"`
	Radius    int    `json:"radius"`
}

// PeerInfo describes one audible player.
type PeerInfo struct {
	Name      string          `json:"name"`
	UUID      string          `json:"uuid"`
	StreamKey string          `json:"streamKey"`
	Location  spatial.Vector3 `json:"location"`
}

// VoiceSubscribe adds peers to the audible set.
type VoiceSubscribe struct {
	Peers []PeerInfo `json:"peers"`
}

// VoiceDropStream removes one peer.
type VoiceDropStream struct {
	StreamKey string `json:"streamKey"`
}

// PeerLocation is one entry of a batched location update.
type PeerLocation struct {
	StreamKey string  `json:"streamKey"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
}

// VoicePeerLocations moves peers.
type VoicePeerLocations struct {
	Updates []PeerLocation `json:"updates"`
}

// PlayerLocation is the local player's pose.
type PlayerLocation struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}
