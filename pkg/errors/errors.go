package pulse_errors

import (
	"errors"
	"time"
)

// Common errors
var (
	ErrMediaAcquisition  = errors.New("media acquisition failed")
	ErrNegotiation       = errors.New("negotiation failed")
	ErrPersistence       = errors.New("persistence failed")
	ErrFetch             = errors.New("fetch failed")
	ErrInvalidInput      = errors.New("invalid input")
	ErrCallActive        = errors.New("call already active")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrNotUploaded       = errors.New("media not uploaded")
)

// NowPtr returns a pointer to current time
func NowPtr() *time.Time {
	now := time.Now()
	return &now
}
