package voice

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/1ureka/proxvoice/internal/signaling"
	"github.com/1ureka/proxvoice/internal/spatial"
)

func packet(t *testing.T, channel string, payload any) signaling.Packet {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return signaling.Packet{Channel: channel, Payload: raw}
}

func TestRouterDispatch(t *testing.T) {
	h := newHarness()
	r := NewRouter(h.m)
	ctx := t.Context()

	steps := []signaling.Packet{
		packet(t, signaling.ChannelVoiceUnlock, signaling.VoiceUnlock{StreamKey: "S1", Server: "https://x/", Radius: 30}),
		packet(t, signaling.ChannelVoiceSubscribe, signaling.VoiceSubscribe{Peers: []signaling.PeerInfo{
			{Name: "Bob", UUID: "u1", StreamKey: "P1", Location: spatial.Vector3{X: 1}},
			{Name: "Eve", UUID: "u2", StreamKey: "P2"},
		}}),
		packet(t, signaling.ChannelVoicePeerLocations, signaling.VoicePeerLocations{Updates: []signaling.PeerLocation{
			{StreamKey: "P2", X: 7, Y: 8, Z: 9},
			{StreamKey: "ghost", X: 1},
		}}),
		packet(t, signaling.ChannelVoiceDropStream, signaling.VoiceDropStream{StreamKey: "P1"}),
		packet(t, signaling.ChannelPlayerLocation, signaling.PlayerLocation{X: 10, Y: 64, Z: -3, Yaw: 90}),
		packet(t, "SOMETHING_ELSE", map[string]int{"n": 1}),
	}
	for _, pkt := range steps {
		if err := r.Handle(ctx, pkt); err != nil {
			t.Fatalf("Handle(%s): %v", pkt.Channel, err)
		}
	}

	if h.ui.label != "30 block" {
		t.Errorf("range label = %q, want 30 block", h.ui.label)
	}
	if diff := cmp.Diff([]string{"P2"}, h.m.Peers()); diff != "" {
		t.Errorf("peers (-want +got):\n%s", diff)
	}

	bob, eve := h.link(0), h.link(1)
	if bob.stopCount() != 1 {
		t.Error("dropped peer not stopped")
	}
	if bob.loc != [3]float64{1, 0, 0} {
		t.Errorf("Bob's location = %v", bob.loc)
	}
	if eve.loc != [3]float64{7, 8, 9} || eve.updates != 1 {
		t.Errorf("Eve's location = %v (updates %d)", eve.loc, eve.updates)
	}

	l := h.m.deps.Audio.Listener()
	if l.Position != (spatial.Vector3{X: 10, Y: 64, Z: -3}) {
		t.Errorf("listener position = %+v", l.Position)
	}
	if l.Forward.X > -0.99 {
		t.Errorf("yaw 90 should face -X, forward = %+v", l.Forward)
	}
}

func TestRouterRejectsBadPayload(t *testing.T) {
	h := newHarness()
	r := NewRouter(h.m)

	err := r.Handle(t.Context(), signaling.Packet{
		Channel: signaling.ChannelVoiceDropStream,
		Payload: json.RawMessage(`[1,2]`),
	})
	if err == nil {
		t.Fatal("malformed payload accepted")
	}
}
