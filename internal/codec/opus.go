// Package codec adapts libopus to the audio package's Decoder and Encoder
// interfaces. Voice links are mono at 48kHz.
package codec

import (
	"fmt"

	"github.com/hraban/opus"

	"github.com/1ureka/proxvoice/internal/audio"
)

// Decoder decodes Opus packets into mono float PCM.
type Decoder struct {
	dec *opus.Decoder
}

// NewDecoder returns a mono 48kHz decoder.
func NewDecoder() (audio.Decoder, error) {
	dec, err := opus.NewDecoder(audio.SampleRate, 1)
	if err != nil {
		return nil, fmt.Errorf("opus decoder init failed: %w", err)
	}
	return &Decoder{dec: dec}, nil
}

func (d *Decoder) Decode(payload []byte, pcm []float32) (int, error) {
	return d.dec.DecodeFloat32(payload, pcm)
}

// Encoder encodes mono int16 frames with the VoIP application profile.
type Encoder struct {
	enc *opus.Encoder
}

// NewEncoder returns a mono 48kHz encoder.
func NewEncoder() (audio.Encoder, error) {
	enc, err := opus.NewEncoder(audio.SampleRate, 1, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("opus encoder init failed: %w", err)
	}
	return &Encoder{enc: enc}, nil
}

func (e *Encoder) Encode(pcm []int16, data []byte) (int, error) {
	return e.enc.Encode(pcm, data)
}
