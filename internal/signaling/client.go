package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/pion/webrtc/v4"
)

// ErrExchange marks a failed offer/answer round trip with the relay.
var ErrExchange = errors.New("sdp exchange failed")

type offerBody struct {
	SDP string `json:"sdp"`
}

type answerBody struct {
	SDP string `json:"Sdp"`
}

// Client performs SDP exchanges against the relay.
type Client struct {
	http *http.Client
}

// NewClient returns a Client using hc, or http.DefaultClient when hc is nil.
// No timeout is applied beyond the caller's context.
func NewClient(hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{http: hc}
}

// Exchange posts local to endpoint and returns the relay's answer.
func (c *Client) Exchange(ctx context.Context, endpoint string, local webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	var answer webrtc.SessionDescription

	encoded, err := EncodeDescription(local)
	if err != nil {
		return answer, err
	}
	body, err := json.Marshal(offerBody{SDP: encoded})
	if err != nil {
		return answer, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return answer, fmt.Errorf("%w: %w", ErrExchange, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return answer, fmt.Errorf("%w: %w", ErrExchange, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return answer, fmt.Errorf("%w: relay returned %s: %s", ErrExchange, resp.Status, bytes.TrimSpace(msg))
	}

	var ab answerBody
	if err := json.NewDecoder(resp.Body).Decode(&ab); err != nil {
		return answer, fmt.Errorf("%w: decode response: %w", ErrExchange, err)
	}
	return DecodeDescription(ab.SDP)
}
