//go:build linux

package rtc

import (
	"context"
	"fmt"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"

	pulse_errors "pulse-chat/pkg/errors"
)

func newCodecSelector() (*mediadevices.CodecSelector, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, err
	}
	vpxParams.BitRate = 1_500_000

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, err
	}

	return mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vpxParams),
		mediadevices.WithAudioEncoders(&opusParams),
	), nil
}

// Acquire opens camera/microphone capture via V4L2 and malgo. GetUserMedia
// fails as a unit when any requested track cannot be opened, matching the
// all-or-nothing acquisition the signaling layer expects.
func (p *Pion) Acquire(ctx context.Context, c Constraints) (Capture, error) {
	if !c.Audio && !c.Video {
		return nil, fmt.Errorf("%w: no devices requested", pulse_errors.ErrMediaAcquisition)
	}
	constraints := mediadevices.MediaStreamConstraints{Codec: p.selector}
	if c.Video {
		constraints.Video = func(mc *mediadevices.MediaTrackConstraints) {
			// Exclude MJPEG: malformed JPEG frames from some cameras poison
			// the VP8 encoder and break SDP negotiation. Raw formats only.
			mc.FrameFormat = prop.FrameFormatOneOf{
				frame.FormatYUYV,
				frame.FormatI420,
				frame.FormatI444,
				frame.FormatRGBA,
			}
			mc.Width = prop.IntRanged{Max: 640}
			mc.Height = prop.IntRanged{Max: 480}
		}
	}
	if c.Audio {
		constraints.Audio = func(*mediadevices.MediaTrackConstraints) {}
	}

	stream, err := mediadevices.GetUserMedia(constraints)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pulse_errors.ErrMediaAcquisition, err)
	}
	return &pionCapture{stream: stream}, nil
}
