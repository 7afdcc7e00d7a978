package camera

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"log"
	"sync"
)

const (
	idealWidth  = 1280
	idealHeight = 720

	snapshotQuality = 80
)

// Session owns one device stream at a time and keeps it bound to a display
// surface. One session serves one submission; it is not meant to be shared.
type Session struct {
	devices MediaDevices

	mu      sync.Mutex
	stream  Stream
	surface DisplaySurface
	facing  Facing
	// gen counts Stops. Start refuses to install a stream when a Stop
	// landed after it began, so a stopped session never holds a handle.
	gen uint64
}

func NewSession(devices MediaDevices) *Session {
	return &Session{
		devices: devices,
		facing:  FacingBack,
	}
}

// IsSupported reports whether a device media subsystem is available at all.
func (s *Session) IsSupported() bool {
	return s.devices != nil
}

// Facing returns the currently selected camera facing.
func (s *Session) Facing() Facing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.facing
}

// Start acquires a stream for the given facing ("" keeps the current one),
// binds it to surface and waits until the surface is rendering. Any failure
// surfaces as ErrDeviceUnavailable and leaves no stream handle behind.
// Callers restarting a session must Stop it first.
func (s *Session) Start(ctx context.Context, surface DisplaySurface, facing Facing) error {
	if s.devices == nil {
		return ErrDeviceUnavailable
	}

	s.mu.Lock()
	if facing != "" {
		s.facing = facing
	}
	want := Constraints{Facing: s.facing, IdealWidth: idealWidth, IdealHeight: idealHeight}
	s.surface = surface
	gen := s.gen
	s.mu.Unlock()

	stream, err := s.devices.AcquireStream(ctx, want)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	surface.Bind(stream)
	if err := surface.WaitReady(ctx); err != nil {
		stream.Release()
		surface.Clear()
		return fmt.Errorf("%w: surface not ready: %v", ErrDeviceUnavailable, err)
	}

	s.mu.Lock()
	if s.gen != gen {
		// A Stop ran while we were acquiring; the session stays stopped.
		s.mu.Unlock()
		stream.Release()
		surface.Clear()
		return fmt.Errorf("%w: session stopped during start", ErrDeviceUnavailable)
	}
	s.stream = stream
	s.mu.Unlock()
	return nil
}

// SwitchFacing toggles front/back and restarts the stream on the same
// surface. No-op when no session is active.
func (s *Session) SwitchFacing(ctx context.Context) error {
	s.mu.Lock()
	surface := s.surface
	if surface == nil {
		s.mu.Unlock()
		return nil
	}
	next := s.facing.toggle()
	s.mu.Unlock()

	s.Stop()
	return s.Start(ctx, surface, next)
}

// Snapshot encodes the current frame as a JPEG at the stream's native
// resolution. It returns nil, not an error, when the session is inactive or
// the surface has no frame to give: callers treat that as "try again".
func (s *Session) Snapshot() []byte {
	s.mu.Lock()
	stream, surface := s.stream, s.surface
	s.mu.Unlock()

	if stream == nil || surface == nil {
		return nil
	}
	frame := surface.Frame()
	if frame == nil {
		return nil
	}
	b := frame.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: snapshotQuality}); err != nil {
		log.Printf("camera: snapshot encode: %v", err)
		return nil
	}
	return buf.Bytes()
}

// Stop releases the stream and clears the surface binding. Idempotent and
// safe mid-flight: a concurrent Start that loses the race to a Stop simply
// leaves the session stopped.
func (s *Session) Stop() {
	s.mu.Lock()
	stream, surface := s.stream, s.surface
	s.stream = nil
	s.surface = nil
	s.gen++
	s.mu.Unlock()

	if stream != nil {
		stream.Release()
	}
	if surface != nil {
		surface.Clear()
	}
}

// SetTorch switches the torch on streams that have one and silently does
// nothing on streams that don't. Only a failed apply is an error.
func (s *Session) SetTorch(enabled bool) error {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()

	if stream == nil {
		return nil
	}
	if !stream.Capabilities().Torch {
		return nil
	}
	if err := stream.ApplyTorch(enabled); err != nil {
		return fmt.Errorf("%w: torch: %v", ErrDeviceComm, err)
	}
	return nil
}
