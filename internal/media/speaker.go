package media

import (
	"sync"
	"time"

	"github.com/hraban/opus"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
)

// NewOutputTrack creates the local audio track that carries synthesized
// question audio toward the user.
func NewOutputTrack() (*webrtc.TrackLocalStaticSample, error) {
	return webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 1},
		"interviewer-audio", "interviewer",
	)
}

// Speaker encodes 48kHz PCM mono to Opus frames and writes them paced to a
// WebRTC track. It is the delivery end of question playback.
type Speaker struct {
	enc          *opus.Encoder
	track        *webrtc.TrackLocalStaticSample
	pcmBuf       []int16
	frameSamples int
	frames       chan []byte
	stopCh       chan struct{}
	stopped      bool
	mu           sync.Mutex
}

// NewSpeaker constructs a paced speaker with 20ms frames at 48kHz mono.
func NewSpeaker(track *webrtc.TrackLocalStaticSample) (*Speaker, error) {
	enc, err := opus.NewEncoder(48000, 1, opus.AppVoIP)
	if err != nil {
		return nil, err
	}
	s := &Speaker{
		enc:          enc,
		track:        track,
		frameSamples: 960, // 20ms at 48kHz
		frames:       make(chan []byte, 512),
		stopCh:       make(chan struct{}),
	}
	go s.pacer()
	return s, nil
}

// WritePCM buffers PCM 48kHz mono data and emits encoded Opus frames paced
// to the track.
func (s *Speaker) WritePCM(pcmBytes []byte) {
	if len(pcmBytes) < 2 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	need := len(pcmBytes) / 2
	startLen := len(s.pcmBuf)
	if cap(s.pcmBuf)-startLen < need {
		tmp := make([]int16, startLen, startLen+need+2048)
		copy(tmp, s.pcmBuf)
		s.pcmBuf = tmp
	}
	s.pcmBuf = s.pcmBuf[:startLen+need]
	for i := 0; i < need; i++ {
		s.pcmBuf[startLen+i] = int16(uint16(pcmBytes[2*i]) | uint16(pcmBytes[2*i+1])<<8)
	}

	opusBuf := make([]byte, 4000)
	for len(s.pcmBuf) >= s.frameSamples {
		frame := s.pcmBuf[:s.frameSamples]
		n, _ := s.enc.Encode(frame, opusBuf)
		if n > 0 {
			pkt := make([]byte, n)
			copy(pkt, opusBuf[:n])
			s.pushFrame(pkt)
		}
		copy(s.pcmBuf, s.pcmBuf[s.frameSamples:])
		s.pcmBuf = s.pcmBuf[:len(s.pcmBuf)-s.frameSamples]
	}
}

// FlushTail pads the remaining PCM into a full frame and appends a short
// silence tail so the end of an utterance is not clipped.
func (s *Speaker) FlushTail() {
	s.mu.Lock()
	opusBuf := make([]byte, 4000)
	if len(s.pcmBuf) > 0 {
		pad := make([]int16, s.frameSamples)
		copy(pad, s.pcmBuf)
		n, _ := s.enc.Encode(pad, opusBuf)
		if n > 0 {
			pkt := make([]byte, n)
			copy(pkt, opusBuf[:n])
			s.pushFrame(pkt)
		}
		s.pcmBuf = s.pcmBuf[:0]
	}
	s.mu.Unlock()
	silence := make([]int16, s.frameSamples)
	for i := 0; i < 10; i++ {
		n, _ := s.enc.Encode(silence, opusBuf)
		if n > 0 {
			pkt := make([]byte, n)
			copy(pkt, opusBuf[:n])
			s.pushFrame(pkt)
		}
	}
}

// Reset drops any queued frames immediately. Used when a new playback
// interrupts an in-flight one.
func (s *Speaker) Reset() {
	s.mu.Lock()
	for {
		select {
		case <-s.frames:
		default:
			s.pcmBuf = s.pcmBuf[:0]
			s.mu.Unlock()
			return
		}
	}
}

// Close stops the pacer.
func (s *Speaker) Close() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		close(s.stopCh)
	}
	s.mu.Unlock()
}

func (s *Speaker) pacer() {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			select {
			case frame := <-s.frames:
				_ = s.track.WriteSample(media.Sample{Data: frame, Duration: 20 * time.Millisecond})
			default:
			}
		}
	}
}

func (s *Speaker) pushFrame(pkt []byte) {
	for {
		select {
		case <-s.stopCh:
			return
		case s.frames <- pkt:
			return
		}
	}
}
