// Package camera manages the lifecycle of a live capture session: acquiring a
// device stream, binding it to a display surface, and turning the current
// frame into a still image for recognition.
package camera

import (
	"context"
	"errors"
	"image"
)

var (
	// ErrDeviceUnavailable means no matching camera exists or permission was
	// denied. Not retryable without user action.
	ErrDeviceUnavailable = errors.New("camera device unavailable")

	// ErrDeviceComm means a capability query or constraint apply failed on an
	// otherwise working device.
	ErrDeviceComm = errors.New("camera device communication failed")
)

// Facing selects which camera a session uses. Toggled, never combined.
type Facing string

const (
	FacingFront Facing = "front"
	FacingBack  Facing = "back"
)

func (f Facing) toggle() Facing {
	if f == FacingFront {
		return FacingBack
	}
	return FacingFront
}

// Constraints describe the stream a session asks the device subsystem for.
type Constraints struct {
	Facing      Facing
	IdealWidth  int
	IdealHeight int
}

// Capabilities is the typed subset of device capabilities the session cares
// about. Absent capabilities are zero values, never an untyped blob.
type Capabilities struct {
	Torch bool
}

// Stream is a live device stream handle, owned exclusively by one Session.
type Stream interface {
	Capabilities() Capabilities
	// ApplyTorch switches the torch. Only called when Capabilities().Torch.
	ApplyTorch(enabled bool) error
	// Release stops all device tracks. Must be safe to call once per handle.
	Release()
}

// MediaDevices is the device media subsystem collaborator.
type MediaDevices interface {
	AcquireStream(ctx context.Context, c Constraints) (Stream, error)
}

// DisplaySurface consumes a stream and exposes the frames it renders.
type DisplaySurface interface {
	Bind(s Stream)
	Clear()
	// WaitReady blocks until metadata is loaded and playback has begun.
	WaitReady(ctx context.Context) error
	// Frame returns the currently displayed frame at the stream's native
	// resolution, or nil when nothing is being rendered.
	Frame() image.Image
}
