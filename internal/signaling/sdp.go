package signaling

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// ErrMalformedSDP is returned when the relay's description cannot be decoded.
var ErrMalformedSDP = errors.New("malformed session description")

// EncodeDescription renders desc as base64(JSON), the form the relay expects
// in the "sdp" field.
func EncodeDescription(desc webrtc.SessionDescription) (string, error) {
	raw, err := json.Marshal(desc)
	if err != nil {
		return "", fmt.Errorf("marshal session description: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeDescription reverses EncodeDescription.
func DecodeDescription(encoded string) (webrtc.SessionDescription, error) {
	var desc webrtc.SessionDescription

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return desc, fmt.Errorf("%w: %w", ErrMalformedSDP, err)
	}
	if err := json.Unmarshal(raw, &desc); err != nil {
		return desc, fmt.Errorf("%w: %w", ErrMalformedSDP, err)
	}
	if desc.SDP == "" {
		return desc, fmt.Errorf("%w: empty sdp", ErrMalformedSDP)
	}
	return desc, nil
}
