package stt

import (
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/chadiek/interview-call/internal/logging"
)

// continuationExtension is added to the silence threshold when the last word
// suggests the speaker is about to continue the sentence.
const continuationExtension = 1200 * time.Millisecond

// Capture runs listening turns. Each turn accumulates the engine's finalized
// segments and ends on a silence timeout, engine end-of-stream, or engine
// error, whichever comes first, and emits exactly one answer.
type Capture struct {
	factory EngineFactory
	// speaking reports whether synthesized speech is currently playing.
	// Listening refuses to start while it returns true.
	speaking func() bool
	onAnswer func(transcript string)
	log      zerolog.Logger

	mu        sync.Mutex
	active    bool
	abandoned bool
	emitted   bool
	engine    Engine
	finalized strings.Builder
	lastSeen  time.Time
	timer     *time.Timer
	threshold time.Duration
}

// NewCapture builds the transcription adapter. A nil factory means the
// runtime has no recognition engine; the constructor reports that up front
// rather than at the first listen.
func NewCapture(factory EngineFactory, speaking func() bool, onAnswer func(string)) (*Capture, error) {
	if factory == nil {
		return nil, ErrRecognitionUnsupported
	}
	if speaking == nil {
		speaking = func() bool { return false }
	}
	return &Capture{
		factory:  factory,
		speaking: speaking,
		onAnswer: onAnswer,
		log:      logging.WithComponent("stt"),
	}, nil
}

// Listening reports whether a turn is in progress.
func (c *Capture) Listening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Listen starts one listening turn. The turn finalizes after
// silenceThreshold with no recognition updates, even if the engine never
// produced a segment (an empty answer is then emitted).
func (c *Capture) Listen(silenceThreshold time.Duration) error {
	if c.speaking() {
		c.log.Warn().Msg("refusing to listen while speaking")
		return ErrSpeaking
	}

	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return ErrAlreadyListening
	}

	engine, err := c.factory()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.active = true
	c.abandoned = false
	c.emitted = false
	c.engine = engine
	c.finalized.Reset()
	c.lastSeen = time.Now()
	c.threshold = silenceThreshold
	c.mu.Unlock()

	if err := engine.Connect(); err != nil {
		c.mu.Lock()
		c.active = false
		c.engine = nil
		c.mu.Unlock()
		return err
	}

	c.log.Debug().Dur("silenceThreshold", silenceThreshold).Msg("listening started")

	// The clock runs from the start of the turn so an engine that never
	// produces a result still terminates.
	c.mu.Lock()
	c.timer = time.AfterFunc(silenceThreshold, c.finalizeDueToSilence)
	c.mu.Unlock()

	go c.consume(engine)
	return nil
}

// Abandon drops the in-flight turn without emitting an answer. Used when a
// new question arrives while still listening: the newest question wins over
// a stale capture.
func (c *Capture) Abandon() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.abandoned = true
	engine := c.engine
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
	if engine != nil {
		_ = engine.Close()
	}
	c.log.Info().Msg("listening turn abandoned")
}

// Stop tears down any in-flight turn. Unlike Abandon it is a terminal
// cleanup call; no answer is emitted.
func (c *Capture) Stop() {
	c.Abandon()
}

// consume drains the engine until its stream ends, resetting the silence
// clock on every update and committing finalized segments.
func (c *Capture) consume(engine Engine) {
	for res := range engine.Results() {
		c.mu.Lock()
		if !c.active || c.engine != engine {
			c.mu.Unlock()
			return
		}
		c.lastSeen = time.Now()
		if res.Final && res.Text != "" {
			if c.finalized.Len() > 0 {
				c.finalized.WriteString(" ")
			}
			c.finalized.WriteString(strings.TrimSpace(res.Text))
		}
		if c.timer != nil {
			c.timer.Stop()
			c.timer.Reset(c.threshold)
		}
		c.mu.Unlock()
	}
	// Engine stream ended: silence stop, end-of-stream, or error. All of
	// them close the turn with whatever was captured.
	c.finalize("engine stream ended")
}

// finalizeDueToSilence fires when the silence clock runs out. The threshold
// stretches when the last committed word reads like an unfinished sentence.
func (c *Capture) finalizeDueToSilence() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	threshold := c.threshold
	if isContinuationLikely(c.finalized.String()) {
		threshold += continuationExtension
	}
	since := time.Since(c.lastSeen)
	if since < threshold {
		wait := threshold - since
		if wait < 10*time.Millisecond {
			wait = 10 * time.Millisecond
		}
		if c.timer != nil {
			c.timer.Stop()
			c.timer.Reset(wait)
		}
		c.mu.Unlock()
		return
	}
	engine := c.engine
	c.mu.Unlock()
	if engine != nil {
		_ = engine.Close()
	}
	c.finalize("silence timeout")
}

// finalize ends the turn and emits the answer at most once.
func (c *Capture) finalize(reason string) {
	c.mu.Lock()
	if !c.active || c.emitted {
		c.mu.Unlock()
		return
	}
	c.emitted = true
	c.active = false
	abandoned := c.abandoned
	transcript := strings.TrimSpace(c.finalized.String())
	engine := c.engine
	c.engine = nil
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	if engine != nil {
		_ = engine.Close()
	}
	if abandoned {
		return
	}
	if transcript == "" {
		c.log.Info().Str("reason", reason).Msg("listening ended with empty transcript")
	} else {
		c.log.Info().Str("reason", reason).Int("chars", len(transcript)).Msg("listening ended")
	}
	if c.onAnswer != nil {
		c.onAnswer(transcript)
	}
}

// isContinuationLikely returns true if the last meaningful word indicates
// the speaker is likely to continue (conjunctions, prepositions, fillers).
func isContinuationLikely(text string) bool {
	w := lastWord(text)
	if w == "" {
		return false
	}
	_, ok := continuationWords[w]
	return ok
}

func lastWord(text string) string {
	trim := strings.TrimSpace(text)
	if trim == "" {
		return ""
	}
	fields := strings.FieldsFunc(trim, func(r rune) bool { return !unicode.IsLetter(r) })
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[len(fields)-1])
}

var continuationWords = map[string]struct{}{
	"and": {}, "or": {}, "but": {}, "nor": {}, "yet": {}, "so": {},
	"if": {}, "when": {}, "while": {}, "though": {}, "although": {},
	"because": {}, "since": {}, "unless": {}, "until": {}, "whereas": {},
	"also": {}, "plus": {}, "um": {}, "uh": {}, "like": {},
	"about": {}, "with": {}, "to": {}, "of": {}, "for": {}, "on": {}, "in": {}, "at": {},
}
