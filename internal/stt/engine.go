// Package stt captures one spoken answer per listening turn from a
// continuous speech recognition engine.
package stt

import "errors"

// Errors surfaced by the capture layer.
var (
	// ErrRecognitionUnsupported means no recognition engine is available in
	// this runtime (missing credentials or engine not present).
	ErrRecognitionUnsupported = errors.New("stt: speech recognition unsupported in this runtime")
	// ErrSpeaking means a listen was attempted while synthesized speech is
	// still playing. Listening during playback would transcribe our own voice.
	ErrSpeaking = errors.New("stt: cannot listen while speaking")
	// ErrAlreadyListening means a listening turn is already in progress.
	ErrAlreadyListening = errors.New("stt: listening turn already active")
)

// Result is one recognition update. Final results are committed to the
// turn's transcript; partials only reset the silence clock.
type Result struct {
	Text  string
	Final bool
}

// Engine is a continuous speech recognition session. Results delivers
// updates until the engine stops (silence stop, end-of-stream, or error);
// the channel closes when the session is over.
type Engine interface {
	Connect() error
	Results() <-chan Result
	Close() error
}

// AudioSink is implemented by engines that consume raw microphone audio,
// PCM 16kHz little-endian mono.
type AudioSink interface {
	SendPCM16KLE(pcm []byte) error
}

// EngineFactory produces a fresh engine per listening turn.
type EngineFactory func() (Engine, error)
