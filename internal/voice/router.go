package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/1ureka/proxvoice/internal/signaling"
	"github.com/1ureka/proxvoice/internal/util"
)

// Router turns plugin packets into Module operations.
type Router struct {
	m *Module
}

func NewRouter(m *Module) *Router {
	return &Router{m: m}
}

// Handle dispatches one packet. Links opened here live as long as ctx.
// Unknown channels are ignored.
func (r *Router) Handle(ctx context.Context, pkt signaling.Packet) error {
	switch pkt.Channel {
	case signaling.ChannelVoiceUnlock:
		var p signaling.VoiceUnlock
		if err := decode(pkt, &p); err != nil {
			return err
		}
		r.m.Enable(p.Server, p.StreamKey, p.Radius)

	case signaling.ChannelVoiceSubscribe:
		var p signaling.VoiceSubscribe
		if err := decode(pkt, &p); err != nil {
			return err
		}
		var errs []error
		for _, peer := range p.Peers {
			errs = append(errs, r.m.AddPeer(ctx, peer.UUID, peer.Name, peer.StreamKey, peer.Location))
		}
		return errors.Join(errs...)

	case signaling.ChannelVoiceDropStream:
		var p signaling.VoiceDropStream
		if err := decode(pkt, &p); err != nil {
			return err
		}
		r.m.RemovePeer(p.StreamKey)

	case signaling.ChannelVoicePeerLocations:
		var p signaling.VoicePeerLocations
		if err := decode(pkt, &p); err != nil {
			return err
		}
		for _, u := range p.Updates {
			r.m.PeerLocationUpdate(u.StreamKey, u.X, u.Y, u.Z)
		}

	case signaling.ChannelPlayerLocation:
		var p signaling.PlayerLocation
		if err := decode(pkt, &p); err != nil {
			return err
		}
		r.m.UpdateListener(p)

	default:
		util.LogDebug("ignoring packet on channel %q", pkt.Channel)
	}
	return nil
}

func decode(pkt signaling.Packet, v any) error {
	if err := json.Unmarshal(pkt.Payload, v); err != nil {
		return fmt.Errorf("invalid %s payload: %w", pkt.Channel, err)
	}
	return nil
}
