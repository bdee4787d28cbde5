package voice

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/proxvoice/internal/audio"
	rtc "github.com/1ureka/proxvoice/internal/webrtc"
)

func frameOf(v int16) []int16 {
	f := make([]int16, audio.FrameSamples)
	for i := range f {
		f[i] = v
	}
	return f
}

func TestOutgoingPumpWaitsForOpenAndMutes(t *testing.T) {
	stream := newFakeStream("dev1")
	s := NewOutgoingStream(OutgoingConfig{Stream: stream})
	w := &sampleRecorder{}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.pump(t.Context(), w, firstSampleEncoder{})
	}()

	stream.frames <- frameOf(7)
	time.Sleep(20 * time.Millisecond)
	if n := len(w.list()); n != 0 {
		t.Fatalf("wrote %d samples before the link opened", n)
	}

	close(s.openSignal)
	if !eventually(time.Second, func() bool { return len(w.list()) == 1 }) {
		t.Fatal("queued frame not sent after open")
	}

	s.SetMute(true)
	stream.frames <- frameOf(9)
	if !eventually(time.Second, func() bool { return len(w.list()) == 2 }) {
		t.Fatal("muted frame not sent")
	}

	got := w.list()
	if got[0].Data[0] != 7 || got[0].Duration != audio.FrameDuration {
		t.Errorf("first sample = %v/%s", got[0].Data, got[0].Duration)
	}
	if got[1].Data[0] != 0 {
		t.Errorf("muted sample carried audio: %v", got[1].Data)
	}

	stream.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pump did not exit when the stream stopped")
	}
}

func TestOutgoingPumpExitsOnCancel(t *testing.T) {
	s := NewOutgoingStream(OutgoingConfig{Stream: newFakeStream("dev1")})
	ctx, cancel := context.WithCancel(t.Context())

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.pump(ctx, &sampleRecorder{}, firstSampleEncoder{})
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pump ignored cancellation")
	}
}

func TestOutgoingStartOffersSendonly(t *testing.T) {
	factory, err := rtc.NewFactory([]string{})
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}
	stream := newFakeStream("dev1")
	sig := newFakeSignaler(nil)

	s := NewOutgoingStream(OutgoingConfig{
		StreamKey:  "S1",
		Endpoint:   "https://x/broadcaster",
		Stream:     stream,
		Connector:  factory,
		Signaler:   sig,
		NewEncoder: newFirstSampleEncoder,
	})
	if err := s.Start(t.Context(), nil); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case call := <-sig.offers:
		if call.endpoint != "https://x/broadcaster" {
			t.Errorf("posted to %q", call.endpoint)
		}
		if call.offer.Type != webrtc.SDPTypeOffer {
			t.Errorf("posted %s, want offer", call.offer.Type)
		}
		for _, want := range []string{"a=sendonly", "opus/48000"} {
			if !strings.Contains(call.offer.SDP, want) {
				t.Errorf("offer lacks %q:\n%s", want, call.offer.SDP)
			}
		}
	case <-time.After(10 * time.Second):
		t.Fatal("offer never posted")
	}

	if !eventually(5*time.Second, func() bool { return s.State() == LinkFailed }) {
		t.Errorf("state = %s after failed exchange, want failed", s.State())
	}

	if err := s.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
	if stream.stopCount() != 1 {
		t.Errorf("stream stopped %d times, want 1", stream.stopCount())
	}
	if s.State() != LinkClosed {
		t.Errorf("state = %s, want closed", s.State())
	}
}
