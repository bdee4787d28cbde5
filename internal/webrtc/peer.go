// Package webrtc builds the PeerConnections used by voice links.
package webrtc

import (
	"fmt"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
)

// DefaultICEServers is the public STUN server voice links gather against.
// No TURN: the relay is reachable directly.
var DefaultICEServers = []string{
	"stun:stun.l.google.com:19302",
}

// OpusCodec is the only codec voice links negotiate.
var OpusCodec = webrtc.RTPCodecParameters{
	RTPCodecCapability: webrtc.RTPCodecCapability{
		MimeType:    webrtc.MimeTypeOpus,
		ClockRate:   48000,
		Channels:    2,
		SDPFmtpLine: "minptime=10;useinbandfec=1",
	},
	PayloadType: 111,
}

// Factory creates PeerConnections sharing one API (media engine and
// interceptors) and one ICE server list.
type Factory struct {
	api        *webrtc.API
	iceServers []string
}

// NewFactory prepares an Opus-only API. A nil iceServers selects
// DefaultICEServers; an empty non-nil slice disables STUN.
func NewFactory(iceServers []string) (*Factory, error) {
	if iceServers == nil {
		iceServers = DefaultICEServers
	}

	m := &webrtc.MediaEngine{}
	if err := m.RegisterCodec(OpusCodec, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("register opus codec: %w", err)
	}

	i := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	return &Factory{
		api:        webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(i)),
		iceServers: iceServers,
	}, nil
}

// NewPeerConnection creates a PeerConnection configured with the factory's
// STUN servers.
func (f *Factory) NewPeerConnection() (*webrtc.PeerConnection, error) {
	config := webrtc.Configuration{}
	if len(f.iceServers) > 0 {
		config.ICEServers = []webrtc.ICEServer{{URLs: f.iceServers}}
	}
	return f.api.NewPeerConnection(config)
}

// NewOpusTrack returns a local Opus track for the microphone.
func NewOpusTrack(streamID string) (*webrtc.TrackLocalStaticSample, error) {
	return webrtc.NewTrackLocalStaticSample(OpusCodec.RTPCodecCapability, "audio", streamID)
}
