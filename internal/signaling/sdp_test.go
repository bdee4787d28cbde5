package signaling

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pion/webrtc/v4"
)

func TestEncodeDescriptionWireFormat(t *testing.T) {
	enc, err := EncodeDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0\r\n"})
	if err != nil {
		t.Fatalf("EncodeDescription: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		t.Fatalf("not base64: %v", err)
	}
	if want := `{"type":"offer","sdp":"v=0\r\n"}`; string(raw) != want {
		t.Errorf("json = %s, want %s", raw, want)
	}
}

func TestDecodeDescription(t *testing.T) {
	in := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0\r\n"}
	enc, _ := EncodeDescription(in)

	got, err := DecodeDescription(enc)
	if err != nil {
		t.Fatalf("DecodeDescription: %v", err)
	}
	if diff := cmp.Diff(in.SDP, got.SDP); diff != "" || got.Type != in.Type {
		t.Errorf("decoded %v (-want +got):\n%s", got.Type, diff)
	}
}

func TestDecodeDescriptionMalformed(t *testing.T) {
	for name, in := range map[string]string{
		"not base64": "%%%",
		"not json":   base64.StdEncoding.EncodeToString([]byte("nope")),
		"empty sdp":  base64.StdEncoding.EncodeToString([]byte(`{"type":"answer","sdp":""}`)),
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeDescription(in); !errors.Is(err, ErrMalformedSDP) {
				t.Errorf("err = %v, want ErrMalformedSDP", err)
			}
		})
	}
}
