// Package signaling talks to the voice relay: it builds the per-link SDP
// endpoints, performs the offer/answer exchange over HTTP, and carries
// readiness and voice packets over the plugin websocket.
package signaling

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Session is the local player's identity on the relay.
type Session struct {
	ServerKey  string    // public key of the game server
	PlayerUUID uuid.UUID // local player
	PlayerName string
}

// ListenerEndpoint is where a receive link for peerStreamKey posts its offer.
//
//	<server>webrtc/listener/sdp/m/<serverKey>/pu/<uuid>/pn/<name>/tg/<peer>/sk/<streamKey>
func ListenerEndpoint(server string, s Session, peerStreamKey, streamKey string) string {
	return join(server, "webrtc/listener/sdp",
		"m", s.ServerKey,
		"pu", s.PlayerUUID.String(),
		"pn", s.PlayerName,
		"tg", peerStreamKey,
		"sk", streamKey,
	)
}

// BroadcasterEndpoint is where the local microphone link posts its offer.
//
//	<server>webrtc/broadcaster/sdp/m/<serverKey>/pu/<uuid>/pn/<name>/sk/<streamKey>
func BroadcasterEndpoint(server string, s Session, streamKey string) string {
	return join(server, "webrtc/broadcaster/sdp",
		"m", s.ServerKey,
		"pu", s.PlayerUUID.String(),
		"pn", s.PlayerName,
		"sk", streamKey,
	)
}

// join appends prefix and escaped segments to server. server is expected to
// end with a slash, as the relay hands it out.
func join(server, prefix string, segments ...string) string {
	var b strings.Builder
	b.WriteString(server)
	if !strings.HasSuffix(server, "/") {
		b.WriteByte('/')
	}
	b.WriteString(prefix)
	for _, seg := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(seg))
	}
	return b.String()
}
