// Package media acquires and manages the local capture tracks for an
// interview session: camera, microphone, and an optional screen share.
package media

import (
	"context"
	"errors"
)

// Errors surfaced by the capture manager.
var (
	// ErrPermission means camera/microphone access was denied.
	ErrPermission = errors.New("media: camera and microphone access denied")
	// ErrScreenShareInvalid means the user shared a window or tab instead
	// of an entire monitor. Partial shares are rejected outright.
	ErrScreenShareInvalid = errors.New("media: screen share must cover the entire monitor")
	// ErrNoUserMedia means an operation needs active camera/mic tracks.
	ErrNoUserMedia = errors.New("media: user media not active")
)

// TrackKind identifies a local capture track.
type TrackKind string

const (
	KindCamera     TrackKind = "camera"
	KindMicrophone TrackKind = "microphone"
	KindScreen     TrackKind = "screen"
)

// DisplaySurfaceMonitor is the only screen-share surface admitted to a
// session.
const DisplaySurfaceMonitor = "monitor"

// Track is one live local capture track. The enabled flag is independent of
// acquisition: toggling it is cheap and reversible, while Stop releases the
// underlying device.
type Track interface {
	Kind() TrackKind
	Enabled() bool
	SetEnabled(on bool)
	Stop() error
	// OnEnded registers a callback for unexpected device loss or an
	// explicit user stop from outside the application.
	OnEnded(fn func())
}

// ScreenTrack is a display capture with its surface classification.
type ScreenTrack interface {
	Track
	DisplaySurface() string
}

// PCMSource is implemented by microphone tracks that expose raw audio,
// PCM 16kHz little-endian mono, for the transcription engine.
type PCMSource interface {
	PCM16K() <-chan []byte
}

// Device describes one enumerable capture device.
type Device struct {
	ID    string
	Label string
	Kind  string // videoinput, audioinput, audiooutput
}

// Provider acquires tracks from the runtime. Implementations wrap the
// platform capture APIs; tests substitute fakes.
type Provider interface {
	// UserMedia acquires the camera and microphone pair.
	UserMedia(ctx context.Context) (camera Track, mic Track, err error)
	// DisplayMedia prompts for a screen share.
	DisplayMedia(ctx context.Context) (ScreenTrack, error)
	// EnumerateDevices lists available capture devices.
	EnumerateDevices(ctx context.Context) ([]Device, error)
}
