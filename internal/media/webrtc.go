package media

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/hraban/opus"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"
	"github.com/rs/zerolog"

	"github.com/chadiek/interview-call/internal/logging"
)

// SessionDescription is a small DTO to avoid exposing webrtc types in
// transport.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// controlMessage is what the capture page sends over the control data
// channel: screen-share metadata, device inventory, and toggle commands.
type controlMessage struct {
	Type           string   `json:"type"`
	StreamID       string   `json:"stream_id,omitempty"`
	DisplaySurface string   `json:"display_surface,omitempty"`
	Devices        []Device `json:"devices,omitempty"`
}

// WebRTCProvider implements Provider over a browser peer connection: the
// page's getUserMedia and getDisplayMedia tracks arrive here as remote RTP
// tracks, and the interviewer's synthesized audio goes back on the local
// track.
type WebRTCProvider struct {
	out *webrtc.TrackLocalStaticSample
	log zerolog.Logger

	mu            sync.Mutex
	peer          *webrtc.PeerConnection
	mic           *micTrack
	camera        *videoTrack
	screen        *videoTrack
	screenStream  string
	screenSurface string
	devices       []Device
	updated       chan struct{}
}

// NewWebRTCProvider builds a provider that will attach out as the outbound
// interviewer audio track on the next peer connection.
func NewWebRTCProvider(out *webrtc.TrackLocalStaticSample) *WebRTCProvider {
	return &WebRTCProvider{
		out:     out,
		log:     logging.WithComponent("media.webrtc"),
		updated: make(chan struct{}),
	}
}

// signal wakes every waiter blocked on provider state.
func (p *WebRTCProvider) signal() {
	close(p.updated)
	p.updated = make(chan struct{})
}

// HandleOffer accepts the capture page's SDP offer and returns an answer.
// One provider serves one page at a time; a second offer replaces the first
// connection.
func (p *WebRTCProvider) HandleOffer(ctx context.Context, offer SessionDescription) (SessionDescription, error) {
	if offer.Type != "offer" || offer.SDP == "" {
		return SessionDescription{}, errors.New("media: invalid offer")
	}

	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return SessionDescription{}, err
	}
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, ir); err != nil {
		return SessionDescription{}, err
	}
	api := webrtc.NewAPI(webrtc.WithMediaEngine(mediaEngine), webrtc.WithInterceptorRegistry(ir))

	peer, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}},
	})
	if err != nil {
		return SessionDescription{}, err
	}

	if p.out != nil {
		if _, err := peer.AddTrack(p.out); err != nil {
			_ = peer.Close()
			return SessionDescription{}, err
		}
	}

	peer.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != "control" {
			return
		}
		dc.OnMessage(func(msg webrtc.DataChannelMessage) {
			p.handleControl(msg.Data)
		})
	})

	peer.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		p.log.Info().Str("state", state.String()).Msg("peer connection state")
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateDisconnected:
			p.dropAll()
		}
	})

	peer.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		p.onTrack(remote)
	})

	p.mu.Lock()
	old := p.peer
	p.peer = peer
	p.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}

	remoteOffer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer.SDP}
	if err := peer.SetRemoteDescription(remoteOffer); err != nil {
		_ = peer.Close()
		return SessionDescription{}, err
	}
	answer, err := peer.CreateAnswer(nil)
	if err != nil {
		_ = peer.Close()
		return SessionDescription{}, err
	}
	gatherComplete := webrtc.GatheringCompletePromise(peer)
	if err := peer.SetLocalDescription(answer); err != nil {
		_ = peer.Close()
		return SessionDescription{}, err
	}
	select {
	case <-gatherComplete:
	case <-ctx.Done():
		_ = peer.Close()
		return SessionDescription{}, ctx.Err()
	}
	local := peer.LocalDescription()
	if local == nil {
		_ = peer.Close()
		return SessionDescription{}, errors.New("media: no local description")
	}
	return SessionDescription{Type: "answer", SDP: local.SDP}, nil
}

func (p *WebRTCProvider) handleControl(data []byte) {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		p.log.Warn().Err(err).Msg("bad control message")
		return
	}
	switch strings.ToLower(msg.Type) {
	case "screen_meta":
		p.mu.Lock()
		p.screenStream = msg.StreamID
		p.screenSurface = msg.DisplaySurface
		// A video track may already be parked as the camera by arrival
		// order; reclassify it.
		if p.camera != nil && p.camera.streamID == msg.StreamID {
			p.screen = p.camera
			p.screen.kind = KindScreen
			p.camera = nil
		}
		p.signal()
		p.mu.Unlock()
	case "devices":
		p.mu.Lock()
		p.devices = msg.Devices
		p.signal()
		p.mu.Unlock()
	default:
		p.log.Debug().Str("type", msg.Type).Msg("ignoring control message")
	}
}

func (p *WebRTCProvider) onTrack(remote *webrtc.TrackRemote) {
	switch remote.Kind() {
	case webrtc.RTPCodecTypeAudio:
		p.log.Info().Str("codec", remote.Codec().MimeType).Msg("microphone track received")
		mic := newMicTrack(remote, p.log)
		p.mu.Lock()
		p.mic = mic
		p.signal()
		p.mu.Unlock()
	case webrtc.RTPCodecTypeVideo:
		vt := newVideoTrack(remote, KindCamera)
		p.mu.Lock()
		if p.screenStream != "" && remote.StreamID() == p.screenStream {
			vt.kind = KindScreen
			p.screen = vt
		} else {
			p.camera = vt
		}
		p.log.Info().Str("stream", remote.StreamID()).Str("kind", string(vt.kind)).Msg("video track received")
		p.signal()
		p.mu.Unlock()
	}
}

func (p *WebRTCProvider) dropAll() {
	p.mu.Lock()
	mic, cam, scr := p.mic, p.camera, p.screen
	p.mic, p.camera, p.screen = nil, nil, nil
	p.signal()
	p.mu.Unlock()
	if mic != nil {
		_ = mic.Stop()
	}
	if cam != nil {
		_ = cam.Stop()
	}
	if scr != nil {
		_ = scr.Stop()
	}
}

// UserMedia waits until the page has delivered both camera and microphone
// tracks.
func (p *WebRTCProvider) UserMedia(ctx context.Context) (Track, Track, error) {
	for {
		p.mu.Lock()
		cam, mic := p.camera, p.mic
		wait := p.updated
		p.mu.Unlock()
		if cam != nil && mic != nil {
			return cam, mic, nil
		}
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-wait:
		}
	}
}

// DisplayMedia waits until the page has delivered a screen track and its
// surface metadata.
func (p *WebRTCProvider) DisplayMedia(ctx context.Context) (ScreenTrack, error) {
	for {
		p.mu.Lock()
		scr := p.screen
		surface := p.screenSurface
		wait := p.updated
		p.mu.Unlock()
		if scr != nil && surface != "" {
			scr.surface = surface
			return scr, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}
}

// EnumerateDevices returns the device inventory the page reported.
func (p *WebRTCProvider) EnumerateDevices(ctx context.Context) ([]Device, error) {
	for {
		p.mu.Lock()
		devices := p.devices
		wait := p.updated
		p.mu.Unlock()
		if devices != nil {
			out := make([]Device, len(devices))
			copy(out, devices)
			return out, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}
}

// remoteBase carries the Track plumbing shared by audio and video tracks.
type remoteBase struct {
	kind     TrackKind
	streamID string

	mu      sync.Mutex
	enabled bool
	stopped bool
	onEnded func()
}

func (t *remoteBase) Kind() TrackKind { return t.kind }

func (t *remoteBase) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *remoteBase) SetEnabled(on bool) {
	t.mu.Lock()
	t.enabled = on
	t.mu.Unlock()
}

func (t *remoteBase) OnEnded(fn func()) {
	t.mu.Lock()
	t.onEnded = fn
	t.mu.Unlock()
}

// ended fires the ended callback once, for reader-loop termination.
func (t *remoteBase) ended() {
	t.mu.Lock()
	fn := t.onEnded
	deliberate := t.stopped
	t.mu.Unlock()
	if !deliberate && fn != nil {
		fn()
	}
}

func (t *remoteBase) markStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	return true
}

const (
	pcm16kChunkBytes = 3200
	micDecodeSamples = 1920
)

// micTrack decodes the remote Opus audio into 16kHz little-endian PCM
// chunks for the transcription engine.
type micTrack struct {
	remoteBase
	remote *webrtc.TrackRemote
	pcm    chan []byte
	log    zerolog.Logger
}

func newMicTrack(remote *webrtc.TrackRemote, log zerolog.Logger) *micTrack {
	t := &micTrack{
		remoteBase: remoteBase{kind: KindMicrophone, streamID: remote.StreamID(), enabled: true},
		remote:     remote,
		pcm:        make(chan []byte, 64),
		log:        log,
	}
	go t.readLoop()
	return t
}

func (t *micTrack) PCM16K() <-chan []byte { return t.pcm }

func (t *micTrack) Stop() error {
	// The read loop owns the pcm channel; it closes it on the way out.
	t.markStopped()
	return nil
}

// readLoop drains RTP, decodes Opus at 16kHz mono, and emits fixed-size
// chunks. A disabled track keeps draining but emits nothing, so unmuting
// resumes cleanly.
func (t *micTrack) readLoop() {
	defer close(t.pcm)
	dec, err := opus.NewDecoder(16000, 1)
	if err != nil {
		t.log.Error().Err(err).Msg("opus decoder init failed")
		t.ended()
		return
	}
	pcmSamples := make([]int16, micDecodeSamples)
	buf := make([]byte, 0, pcm16kChunkBytes*4)
	for {
		pkt, _, readErr := t.remote.ReadRTP()
		if readErr != nil {
			t.ended()
			return
		}
		t.mu.Lock()
		stopped := t.stopped
		t.mu.Unlock()
		if stopped {
			return
		}
		if len(pkt.Payload) == 0 || !t.Enabled() {
			continue
		}
		n, decErr := dec.Decode(pkt.Payload, pcmSamples)
		if decErr != nil {
			t.log.Warn().Err(decErr).Msg("opus decode error")
			continue
		}
		start := len(buf)
		buf = append(buf, make([]byte, n*2)...)
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint16(buf[start+i*2:start+(i+1)*2], uint16(pcmSamples[i]))
		}
		for len(buf) >= pcm16kChunkBytes {
			chunk := make([]byte, pcm16kChunkBytes)
			copy(chunk, buf[:pcm16kChunkBytes])
			select {
			case t.pcm <- chunk:
			default:
				// Consumer is behind; drop rather than stall RTP.
			}
			copy(buf, buf[pcm16kChunkBytes:])
			buf = buf[:len(buf)-pcm16kChunkBytes]
		}
	}
}

// videoTrack drains a remote camera or screen track. The session never
// inspects the pixels; it only tracks liveness and the enabled flag.
type videoTrack struct {
	remoteBase
	remote  *webrtc.TrackRemote
	surface string
}

func newVideoTrack(remote *webrtc.TrackRemote, kind TrackKind) *videoTrack {
	t := &videoTrack{
		remoteBase: remoteBase{kind: kind, streamID: remote.StreamID(), enabled: true},
		remote:     remote,
	}
	go t.drain()
	return t
}

func (t *videoTrack) DisplaySurface() string { return t.surface }

func (t *videoTrack) Stop() error {
	t.markStopped()
	return nil
}

func (t *videoTrack) drain() {
	for {
		if _, _, err := t.remote.ReadRTP(); err != nil {
			t.ended()
			return
		}
		t.mu.Lock()
		stopped := t.stopped
		t.mu.Unlock()
		if stopped {
			return
		}
	}
}

// WaitConnected blocks until the peer connection reaches the connected
// state or the context expires. Used at startup before media acquisition.
func (p *WebRTCProvider) WaitConnected(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		p.mu.Lock()
		peer := p.peer
		p.mu.Unlock()
		if peer != nil && peer.ConnectionState() == webrtc.PeerConnectionStateConnected {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close tears down the current peer connection.
func (p *WebRTCProvider) Close() error {
	p.mu.Lock()
	peer := p.peer
	p.peer = nil
	p.mu.Unlock()
	p.dropAll()
	if peer != nil {
		return peer.Close()
	}
	return nil
}
