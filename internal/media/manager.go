package media

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/chadiek/interview-call/internal/logging"
)

// Manager owns the session's MediaTrackSet. Acquisition happens once per
// session; toggles flip enabled flags on existing tracks; teardown releases
// every held track on every exit path.
type Manager struct {
	provider   Provider
	comparator DeviceComparator
	log        zerolog.Logger

	mu         sync.Mutex
	camera     Track
	mic        Track
	screen     ScreenTrack
	muted      bool
	videoOff   bool
	onDegraded func(kind TrackKind)
}

// Option configures a Manager.
type Option func(*Manager)

// WithDeviceComparator overrides the device-listing sort order.
func WithDeviceComparator(cmp DeviceComparator) Option {
	return func(m *Manager) { m.comparator = cmp }
}

// WithDegradedHandler registers a callback invoked when a track ends
// unexpectedly. Re-acquisition stays an explicit caller action.
func WithDegradedHandler(fn func(kind TrackKind)) Option {
	return func(m *Manager) { m.onDegraded = fn }
}

// NewManager builds a capture manager over the given provider.
func NewManager(provider Provider, opts ...Option) *Manager {
	m := &Manager{
		provider:   provider,
		comparator: PreferDefaultDevices,
		log:        logging.WithComponent("media"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AcquireUserMedia requests the camera and microphone pair. A denial is
// fatal to acquisition and reported as ErrPermission.
func (m *Manager) AcquireUserMedia(ctx context.Context) error {
	camera, mic, err := m.provider.UserMedia(ctx)
	if err != nil {
		m.log.Error().Err(err).Msg("user media acquisition failed")
		return fmt.Errorf("%w: %v", ErrPermission, err)
	}

	m.mu.Lock()
	m.camera = camera
	m.mic = mic
	camera.SetEnabled(!m.videoOff)
	mic.SetEnabled(!m.muted)
	m.mu.Unlock()

	camera.OnEnded(func() { m.degraded(KindCamera) })
	mic.OnEnded(func() { m.degraded(KindMicrophone) })
	m.log.Info().Msg("camera and microphone acquired")
	return nil
}

// AcquireDisplayMedia prompts for a screen share and admits it only when the
// selection covers an entire monitor. Window and tab shares are stopped
// immediately and rejected so they cannot sidestep proctoring.
func (m *Manager) AcquireDisplayMedia(ctx context.Context) error {
	m.mu.Lock()
	userMediaLive := m.camera != nil && m.mic != nil
	m.mu.Unlock()
	if !userMediaLive {
		return ErrNoUserMedia
	}

	screen, err := m.provider.DisplayMedia(ctx)
	if err != nil {
		m.log.Error().Err(err).Msg("display media acquisition failed")
		return fmt.Errorf("media: screen share: %w", err)
	}
	if screen.DisplaySurface() != DisplaySurfaceMonitor {
		surface := screen.DisplaySurface()
		_ = screen.Stop()
		m.log.Warn().Str("surface", surface).Msg("rejecting partial screen share")
		return ErrScreenShareInvalid
	}

	m.mu.Lock()
	if m.screen != nil {
		_ = m.screen.Stop()
	}
	m.screen = screen
	m.mu.Unlock()

	screen.OnEnded(func() {
		m.mu.Lock()
		m.screen = nil
		m.mu.Unlock()
		m.degraded(KindScreen)
	})
	m.log.Info().Msg("entire monitor shared")
	return nil
}

// SetMuted flips the microphone's enabled flag without re-acquiring it.
func (m *Manager) SetMuted(muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = muted
	if m.mic != nil {
		m.mic.SetEnabled(!muted)
	}
}

// SetVideoOff flips the camera's enabled flag without re-acquiring it.
func (m *Manager) SetVideoOff(off bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.videoOff = off
	if m.camera != nil {
		m.camera.SetEnabled(!off)
	}
}

// Muted reports the microphone toggle state.
func (m *Manager) Muted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted
}

// VideoOff reports the camera toggle state.
func (m *Manager) VideoOff() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.videoOff
}

// ScreenSharing reports whether a validated monitor share is active.
func (m *Manager) ScreenSharing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.screen != nil
}

// UserMediaActive reports whether camera and microphone are held.
func (m *Manager) UserMediaActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.camera != nil && m.mic != nil
}

// MicSource returns the microphone's raw PCM stream when the provider
// exposes one.
func (m *Manager) MicSource() (PCMSource, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.mic.(PCMSource)
	return src, ok
}

// ReleaseScreen stops only the screen-share track. Camera and microphone
// stay live for the feedback view.
func (m *Manager) ReleaseScreen() {
	m.mu.Lock()
	screen := m.screen
	m.screen = nil
	m.mu.Unlock()
	if screen != nil {
		_ = screen.Stop()
		m.log.Info().Msg("screen share released")
	}
}

// ReleaseAll stops every held track. Each stop is attempted even when an
// earlier one fails; teardown never leaks a track across session boundaries.
func (m *Manager) ReleaseAll() {
	m.mu.Lock()
	tracks := []Track{m.screen, m.camera, m.mic}
	m.screen = nil
	m.camera = nil
	m.mic = nil
	m.mu.Unlock()

	for _, tr := range tracks {
		if tr == nil {
			continue
		}
		if err := tr.Stop(); err != nil {
			m.log.Warn().Err(err).Str("kind", string(tr.Kind())).Msg("track stop failed")
		}
	}
	m.log.Info().Msg("all media tracks released")
}

// ListDevices enumerates devices of one kind, ordered by the configured
// comparator.
func (m *Manager) ListDevices(ctx context.Context, kind string) ([]Device, error) {
	devices, err := m.provider.EnumerateDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("media: enumerate devices: %w", err)
	}
	var out []Device
	for _, d := range devices {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	cmp := m.comparator
	sort.SliceStable(out, func(i, j int) bool { return cmp(out[i], out[j]) < 0 })
	return out, nil
}

func (m *Manager) degraded(kind TrackKind) {
	m.log.Warn().Str("kind", string(kind)).Msg("track ended unexpectedly")
	m.mu.Lock()
	fn := m.onDegraded
	m.mu.Unlock()
	if fn != nil {
		fn(kind)
	}
}

// DeviceComparator orders devices for presentation. Negative means a sorts
// before b.
type DeviceComparator func(a, b Device) int

// PreferDefaultDevices sorts "default" and "built-in" labelled devices
// first, preserving enumeration order otherwise.
func PreferDefaultDevices(a, b Device) int {
	return devicePriority(a) - devicePriority(b)
}

func devicePriority(d Device) int {
	label := strings.ToLower(d.Label)
	switch {
	case strings.Contains(label, "default"):
		return 0
	case strings.Contains(label, "built-in"):
		return 1
	default:
		return 2
	}
}
