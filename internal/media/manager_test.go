package media

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakeTrack struct {
	kind    TrackKind
	mu      sync.Mutex
	enabled bool
	stopped bool
	stopErr error
	onEnded func()
}

func newFakeTrack(kind TrackKind) *fakeTrack { return &fakeTrack{kind: kind, enabled: true} }

func (f *fakeTrack) Kind() TrackKind { return f.kind }
func (f *fakeTrack) Enabled() bool   { f.mu.Lock(); defer f.mu.Unlock(); return f.enabled }
func (f *fakeTrack) SetEnabled(on bool) {
	f.mu.Lock()
	f.enabled = on
	f.mu.Unlock()
}
func (f *fakeTrack) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return f.stopErr
}
func (f *fakeTrack) OnEnded(fn func()) { f.mu.Lock(); f.onEnded = fn; f.mu.Unlock() }

func (f *fakeTrack) isStopped() bool { f.mu.Lock(); defer f.mu.Unlock(); return f.stopped }

func (f *fakeTrack) endTrack() {
	f.mu.Lock()
	fn := f.onEnded
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

type fakeScreenTrack struct {
	fakeTrack
	surface string
}

func (f *fakeScreenTrack) DisplaySurface() string { return f.surface }

type fakeProvider struct {
	camera     *fakeTrack
	mic        *fakeTrack
	screen     *fakeScreenTrack
	userErr    error
	displayErr error
	devices    []Device
}

func (p *fakeProvider) UserMedia(ctx context.Context) (Track, Track, error) {
	if p.userErr != nil {
		return nil, nil, p.userErr
	}
	return p.camera, p.mic, nil
}

func (p *fakeProvider) DisplayMedia(ctx context.Context) (ScreenTrack, error) {
	if p.displayErr != nil {
		return nil, p.displayErr
	}
	return p.screen, nil
}

func (p *fakeProvider) EnumerateDevices(ctx context.Context) ([]Device, error) {
	return p.devices, nil
}

func fullProvider() *fakeProvider {
	return &fakeProvider{
		camera: newFakeTrack(KindCamera),
		mic:    newFakeTrack(KindMicrophone),
		screen: &fakeScreenTrack{fakeTrack: *newFakeTrack(KindScreen), surface: DisplaySurfaceMonitor},
	}
}

func TestManager_PermissionDenied(t *testing.T) {
	p := &fakeProvider{userErr: errors.New("denied by user")}
	m := NewManager(p)
	err := m.AcquireUserMedia(context.Background())
	if !errors.Is(err, ErrPermission) {
		t.Fatalf("expected ErrPermission, got %v", err)
	}
	if m.UserMediaActive() {
		t.Fatalf("no tracks should be held after denial")
	}
}

func TestManager_RejectsPartialScreenShare(t *testing.T) {
	p := fullProvider()
	p.screen.surface = "browser"
	m := NewManager(p)
	if err := m.AcquireUserMedia(context.Background()); err != nil {
		t.Fatalf("user media: %v", err)
	}
	err := m.AcquireDisplayMedia(context.Background())
	if !errors.Is(err, ErrScreenShareInvalid) {
		t.Fatalf("expected ErrScreenShareInvalid, got %v", err)
	}
	if !p.screen.isStopped() {
		t.Fatalf("invalid screen share must be torn down immediately")
	}
	if m.ScreenSharing() {
		t.Fatalf("screen sharing must remain off")
	}
	// Camera/mic session continues unaffected.
	if !m.UserMediaActive() {
		t.Fatalf("user media must stay live after a rejected share")
	}
}

func TestManager_ScreenShareRequiresUserMedia(t *testing.T) {
	m := NewManager(fullProvider())
	if err := m.AcquireDisplayMedia(context.Background()); !errors.Is(err, ErrNoUserMedia) {
		t.Fatalf("expected ErrNoUserMedia, got %v", err)
	}
}

func TestManager_TogglesFlipEnabledFlagsOnly(t *testing.T) {
	p := fullProvider()
	m := NewManager(p)
	if err := m.AcquireUserMedia(context.Background()); err != nil {
		t.Fatalf("user media: %v", err)
	}
	m.SetMuted(true)
	if p.mic.Enabled() {
		t.Fatalf("mic should be disabled when muted")
	}
	if p.mic.isStopped() {
		t.Fatalf("mute must not release the track")
	}
	m.SetMuted(false)
	if !p.mic.Enabled() {
		t.Fatalf("mic should be re-enabled")
	}
	m.SetVideoOff(true)
	if p.camera.Enabled() {
		t.Fatalf("camera should be disabled when video off")
	}
}

func TestManager_ToggleBeforeAcquisitionApplies(t *testing.T) {
	p := fullProvider()
	m := NewManager(p)
	m.SetMuted(true)
	if err := m.AcquireUserMedia(context.Background()); err != nil {
		t.Fatalf("user media: %v", err)
	}
	if p.mic.Enabled() {
		t.Fatalf("pre-acquisition mute must apply to the acquired track")
	}
}

func TestManager_ReleaseScreenOnly(t *testing.T) {
	p := fullProvider()
	m := NewManager(p)
	_ = m.AcquireUserMedia(context.Background())
	_ = m.AcquireDisplayMedia(context.Background())
	m.ReleaseScreen()
	if !p.screen.isStopped() {
		t.Fatalf("screen track should be stopped")
	}
	if p.camera.isStopped() || p.mic.isStopped() {
		t.Fatalf("camera/mic must remain for the feedback view")
	}
}

func TestManager_ReleaseAllBestEffort(t *testing.T) {
	p := fullProvider()
	p.screen.stopErr = errors.New("device wedged")
	m := NewManager(p)
	_ = m.AcquireUserMedia(context.Background())
	_ = m.AcquireDisplayMedia(context.Background())
	m.ReleaseAll()
	// Every stop runs even though the first one failed.
	if !p.screen.isStopped() || !p.camera.isStopped() || !p.mic.isStopped() {
		t.Fatalf("all tracks must be stopped on teardown")
	}
	if m.UserMediaActive() || m.ScreenSharing() {
		t.Fatalf("no tracks may be held after ReleaseAll")
	}
}

func TestManager_DegradedOnUnexpectedEnd(t *testing.T) {
	p := fullProvider()
	var degraded []TrackKind
	var mu sync.Mutex
	m := NewManager(p, WithDegradedHandler(func(kind TrackKind) {
		mu.Lock()
		degraded = append(degraded, kind)
		mu.Unlock()
	}))
	_ = m.AcquireUserMedia(context.Background())
	_ = m.AcquireDisplayMedia(context.Background())

	p.screen.endTrack()
	mu.Lock()
	defer mu.Unlock()
	if len(degraded) != 1 || degraded[0] != KindScreen {
		t.Fatalf("expected screen degradation, got %v", degraded)
	}
	// No automatic re-prompt: sharing stays off until the caller re-acquires.
	if m.ScreenSharing() {
		t.Fatalf("screen share must stay off after user stop")
	}
}

func TestManager_ListDevicesPrefersDefaults(t *testing.T) {
	p := fullProvider()
	p.devices = []Device{
		{ID: "c", Label: "USB Webcam", Kind: "videoinput"},
		{ID: "a", Label: "Built-in Camera", Kind: "videoinput"},
		{ID: "b", Label: "Default - FaceTime HD", Kind: "videoinput"},
		{ID: "m", Label: "Studio Mic", Kind: "audioinput"},
	}
	m := NewManager(p)
	got, err := m.ListDevices(context.Background(), "videoinput")
	if err != nil {
		t.Fatalf("list devices: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 cameras, got %d", len(got))
	}
	if got[0].ID != "b" || got[1].ID != "a" || got[2].ID != "c" {
		t.Fatalf("unexpected order: %+v", got)
	}
}
