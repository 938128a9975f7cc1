//go:build !linux

package rtc

import (
	"context"
	"fmt"

	"github.com/pion/mediadevices"

	pulse_errors "pulse-chat/pkg/errors"
)

func newCodecSelector() (*mediadevices.CodecSelector, error) {
	// Capture drivers are wired for Linux only (V4L2 + malgo); other
	// platforms negotiate receive-only sessions.
	return nil, nil
}

func (p *Pion) Acquire(ctx context.Context, c Constraints) (Capture, error) {
	return nil, fmt.Errorf("%w: media capture unsupported on this platform", pulse_errors.ErrMediaAcquisition)
}
