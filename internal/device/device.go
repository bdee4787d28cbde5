// Package device exposes the host's audio hardware through miniaudio: input
// enumeration, microphone capture and a mixing playback output.
package device

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gen2brain/malgo"

	"github.com/1ureka/proxvoice/internal/audio"
	"github.com/1ureka/proxvoice/internal/util"
)

// ErrDeviceNotFound is returned when a requested input id is not present.
var ErrDeviceNotFound = errors.New("audio device not found")

// Devices owns one miniaudio context.
type Devices struct {
	ctx *malgo.AllocatedContext
}

// Open initialises miniaudio with the platform's default backends.
func Open() (*Devices, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		util.LogDebug("miniaudio: %s", strings.TrimSpace(msg))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	return &Devices{ctx: ctx}, nil
}

// Close releases the miniaudio context.
func (d *Devices) Close() error {
	err := d.ctx.Uninit()
	d.ctx.Free()
	return err
}

// AudioInputs lists capture devices.
func (d *Devices) AudioInputs(ctx context.Context) ([]audio.DeviceInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infos, err := d.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate capture devices: %w", err)
	}

	out := make([]audio.DeviceInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, audio.DeviceInfo{ID: info.ID.String(), Name: info.Name()})
	}
	return out, nil
}

// GetUserMedia opens the capture device with the given id, or the default
// input when id is empty, and starts streaming frames.
func (d *Devices) GetUserMedia(ctx context.Context, deviceID string) (audio.MediaStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = 1
	cfg.SampleRate = audio.SampleRate
	cfg.Alsa.NoMMap = 1

	var info malgo.DeviceInfo
	if deviceID != "" {
		found, err := d.lookup(malgo.Capture, deviceID)
		if err != nil {
			return nil, err
		}
		info = found
		cfg.Capture.DeviceID = info.ID.Pointer()
	}

	return startCapture(d.ctx.Context, cfg, deviceID)
}

// OpenPlayer starts the default playback device in stereo float32.
func (d *Devices) OpenPlayer() (*Player, error) {
	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = 2
	cfg.SampleRate = audio.SampleRate
	cfg.Alsa.NoMMap = 1

	return startPlayer(d.ctx.Context, cfg)
}

func (d *Devices) lookup(kind malgo.DeviceType, id string) (malgo.DeviceInfo, error) {
	infos, err := d.ctx.Devices(kind)
	if err != nil {
		return malgo.DeviceInfo{}, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for _, info := range infos {
		if info.ID.String() == id {
			return info, nil
		}
	}
	return malgo.DeviceInfo{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
}
