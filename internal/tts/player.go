// Package tts turns question payloads into audible output and reports the
// exact start and end of playback to the turn-taking state machine.
package tts

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/chadiek/interview-call/internal/logging"
	"github.com/chadiek/interview-call/internal/metrics"
)

// Synthesizer renders text as a stream of 48kHz PCM mono audio.
type Synthesizer interface {
	StreamPCM48k(ctx context.Context, text string) (<-chan []byte, <-chan error)
}

// Sink consumes 48kHz PCM bytes and performs delivery. Implementations
// buffer internally and pace output.
type Sink interface {
	WritePCM(pcm []byte)
	FlushTail()
	// Reset drops queued audio immediately when playback is interrupted.
	Reset()
}

// Payload is one utterance: either plain text for the synthesizer or audio
// pre-encoded by the backend as base64 PCM.
type Payload struct {
	Text        string
	AudioBase64 string
}

// Player plays one utterance at a time. Starting a new playback interrupts
// any in-flight one; an interrupted playback emits no end signal. Only the
// newest utterance drives the state machine. A playback error counts as
// completion so the turn always progresses.
type Player struct {
	synth   Synthesizer
	sink    Sink
	onStart func()
	onEnd   func()
	log     zerolog.Logger

	mu       sync.Mutex
	speaking bool
	cancel   context.CancelFunc
	gen      uint64
}

// NewPlayer constructs the playback adapter. onStart fires when audio
// actually begins; onEnd fires exactly once per uninterrupted Speak call.
func NewPlayer(synth Synthesizer, sink Sink, onStart, onEnd func()) *Player {
	return &Player{
		synth:   synth,
		sink:    sink,
		onStart: onStart,
		onEnd:   onEnd,
		log:     logging.WithComponent("tts"),
	}
}

// Speaking reports whether playback is currently active.
func (p *Player) Speaking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speaking
}

// Speak starts playback of the payload, interrupting any in-flight
// utterance and dropping its queued audio. Playback runs asynchronously.
func (p *Player) Speak(ctx context.Context, payload Payload) error {
	if payload.Text == "" && payload.AudioBase64 == "" {
		return fmt.Errorf("tts: empty payload")
	}

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.gen++
	gen := p.gen
	playCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.speaking = true
	p.mu.Unlock()

	p.sink.Reset()

	go func() {
		defer cancel()
		if payload.AudioBase64 != "" {
			p.playEncoded(gen, payload.AudioBase64)
		} else {
			p.playSynthesized(playCtx, gen, payload.Text)
		}
		p.finish(gen)
	}()
	return nil
}

// Stop cancels any in-flight playback without emitting an end signal. Used
// on teardown only; the state machine is already leaving the session.
func (p *Player) Stop() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.gen++ // orphan the in-flight playback
	p.speaking = false
	p.mu.Unlock()
	p.sink.Reset()
}

// playEncoded decodes a transport-safe base64 PCM payload and writes it to
// the sink.
func (p *Player) playEncoded(gen uint64, audioB64 string) {
	raw, err := base64.StdEncoding.DecodeString(audioB64)
	if err != nil {
		// Decode failure is a playback error: log, count, complete the turn.
		metrics.Default.PlaybackErrors.Inc()
		p.log.Error().Err(err).Msg("audio payload decode failed")
		return
	}
	p.started(gen)
	const chunk = 9600 // 100ms at 48kHz mono s16le
	for off := 0; off < len(raw); off += chunk {
		if !p.current(gen) {
			return
		}
		end := off + chunk
		if end > len(raw) {
			end = len(raw)
		}
		p.sink.WritePCM(raw[off:end])
	}
}

// playSynthesized streams the synthesizer's PCM into the sink.
func (p *Player) playSynthesized(ctx context.Context, gen uint64, text string) {
	pcmCh, errCh := p.synth.StreamPCM48k(ctx, text)
	startedYet := false
	openPCM, openErr := true, true
	for openPCM || openErr {
		select {
		case b, ok := <-pcmCh:
			if !ok {
				openPCM = false
				continue
			}
			if len(b) == 0 {
				continue
			}
			if !p.current(gen) {
				return
			}
			if !startedYet {
				startedYet = true
				p.started(gen)
			}
			p.sink.WritePCM(b)
		case e, ok := <-errCh:
			if ok && e != nil {
				metrics.Default.PlaybackErrors.Inc()
				p.log.Error().Err(e).Msg("synthesis stream error")
			}
			openErr = false
		case <-ctx.Done():
			openPCM, openErr = false, false
		}
	}
}

// started emits the start signal if this playback is still current.
func (p *Player) started(gen uint64) {
	if !p.current(gen) {
		return
	}
	p.log.Debug().Msg("playback started")
	if p.onStart != nil {
		p.onStart()
	}
}

// finish emits the end signal exactly once, unless this playback was
// superseded by a newer Speak or torn down by Stop.
func (p *Player) finish(gen uint64) {
	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		return
	}
	p.speaking = false
	p.cancel = nil
	p.mu.Unlock()

	p.sink.FlushTail()
	p.log.Debug().Msg("playback ended")
	if p.onEnd != nil {
		p.onEnd()
	}
}

func (p *Player) current(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen == gen
}
