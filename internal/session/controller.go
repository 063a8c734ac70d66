// Package session drives the interview call: it owns the turn-taking state
// machine and orchestrates the transport, playback, capture, and media
// adapters around it.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/chadiek/interview-call/internal/logging"
	"github.com/chadiek/interview-call/internal/metrics"
	"github.com/chadiek/interview-call/internal/protocol"
	"github.com/chadiek/interview-call/internal/tts"
)

// Transport is the slice of the session transport the controller uses.
type Transport interface {
	Connect() error
	Disconnect() error
	Send(event string, payload interface{}) error
	Connected() bool
}

// Speaker plays synthesized or pre-rendered question audio.
type Speaker interface {
	Speak(ctx context.Context, p tts.Payload) error
	Stop()
	Speaking() bool
}

// Listener runs one listening turn at a time.
type Listener interface {
	Listen(silenceThreshold time.Duration) error
	Abandon()
	Stop()
	Listening() bool
}

// MediaControl is the slice of the media manager the controller uses.
type MediaControl interface {
	ReleaseScreen()
	ReleaseAll()
	ScreenSharing() bool
}

// Turn is one question/answer exchange in the interview record.
type Turn struct {
	Question string `json:"question"`
	Number   int    `json:"question_number"`
	Answer   string `json:"answer"`
}

// Options configure a session controller.
type Options struct {
	// JobDescription and Resume are sent as interview context once the
	// transport is open.
	JobDescription string
	Resume         string
	// SilenceThreshold is how long listening waits after the last
	// recognition update before finalizing the answer.
	SilenceThreshold time.Duration
}

// Controller runs the interview session. All state transitions happen on a
// single internal goroutine fed through an event channel, so adapter
// callbacks may arrive from any goroutine.
type Controller struct {
	opts Options
	log  zerolog.Logger

	transport Transport
	player    Speaker
	capture   Listener
	media     MediaControl

	events chan Event
	done   chan struct{}
	once   sync.Once

	mu         sync.Mutex
	state      State
	current    protocol.Question
	transcript []Turn
	feedback   *protocol.Feedback
	failure    string
	turnStart  time.Time
}

// New builds an unbound controller. Bind must be called before Start.
func New(opts Options) *Controller {
	if opts.SilenceThreshold <= 0 {
		opts.SilenceThreshold = 5 * time.Second
	}
	return &Controller{
		opts:   opts,
		log:    logging.WithComponent("session"),
		events: make(chan Event, 32),
		done:   make(chan struct{}),
		state:  StateIdle,
	}
}

// Bind attaches the adapters. The adapters' callbacks should already point
// at the controller's On* handlers.
func (c *Controller) Bind(transport Transport, player Speaker, capture Listener, media MediaControl) {
	c.transport = transport
	c.player = player
	c.capture = capture
	c.media = media
}

// Start launches the event loop and begins connecting. Calling it again is
// a no-op.
func (c *Controller) Start() {
	c.ensureLoop()
	metrics.Default.SessionsStarted.Inc()
	c.push(Event{Kind: EvConnect})
}

// End tears the session down: abandon any listening turn, stop playback,
// close the transport, release all media. Safe to call at any point, even
// before Start.
func (c *Controller) End() {
	c.ensureLoop()
	c.push(Event{Kind: EvEndCall})
}

func (c *Controller) ensureLoop() {
	c.once.Do(func() { go c.run() })
}

// Done is closed once the session reaches a terminal state and the event
// loop has drained.
func (c *Controller) Done() <-chan struct{} { return c.done }

// State returns the current session phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transcript returns a copy of the question/answer record so far.
func (c *Controller) Transcript() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Turn, len(c.transcript))
	copy(out, c.transcript)
	return out
}

// Feedback returns the closing evaluation, if the interview completed.
func (c *Controller) Feedback() (protocol.Feedback, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.feedback == nil {
		return protocol.Feedback{}, false
	}
	return *c.feedback, true
}

// Snapshot is the status-endpoint view of the session.
type Snapshot struct {
	State          string `json:"state"`
	Connected      bool   `json:"connected"`
	QuestionNumber int    `json:"question_number"`
	Speaking       bool   `json:"speaking"`
	Listening      bool   `json:"listening"`
	ScreenSharing  bool   `json:"screen_sharing"`
	Failure        string `json:"failure,omitempty"`
}

// Status reports the current session for the HTTP status endpoint.
func (c *Controller) Status() Snapshot {
	c.mu.Lock()
	state := c.state
	number := c.current.QuestionNumber
	failure := c.failure
	c.mu.Unlock()
	return Snapshot{
		State:          state.String(),
		Connected:      c.transport != nil && c.transport.Connected(),
		QuestionNumber: number,
		Speaking:       c.player != nil && c.player.Speaking(),
		Listening:      c.capture != nil && c.capture.Listening(),
		ScreenSharing:  c.media != nil && c.media.ScreenSharing(),
		Failure:        failure,
	}
}

// OnTransportOpen is the transport's connect callback.
func (c *Controller) OnTransportOpen() {
	c.push(Event{Kind: EvTransportOpen})
}

// OnTransportError is the transport's error callback.
func (c *Controller) OnTransportError(err error) {
	c.push(Event{Kind: EvTransportError, Message: err.Error()})
}

// OnBackendEvent is the transport's inbound-frame callback. It decodes the
// envelope into a session event; undecodable payloads are logged and
// skipped.
func (c *Controller) OnBackendEvent(env protocol.Envelope) {
	switch env.Event {
	case protocol.EventInterviewStarted, protocol.EventNextQuestion:
		q, err := protocol.DecodeQuestion(env.Data)
		if err != nil {
			metrics.Default.ProtocolErrors.WithLabelValues("bad_question").Inc()
			c.log.Warn().Err(err).Str("event", env.Event).Msg("dropping undecodable question")
			return
		}
		metrics.Default.QuestionsReceived.Inc()
		c.push(Event{Kind: EvQuestion, Question: q})
	case protocol.EventInterviewComplete:
		fb, err := protocol.DecodeFeedback(env.Data)
		if err != nil {
			metrics.Default.ProtocolErrors.WithLabelValues("bad_feedback").Inc()
			c.log.Warn().Err(err).Msg("dropping undecodable feedback")
			return
		}
		c.push(Event{Kind: EvComplete, Feedback: fb})
	case protocol.EventError:
		e, err := protocol.DecodeError(env.Data)
		msg := "backend error"
		if err == nil && e.Message != "" {
			msg = e.Message
		}
		c.push(Event{Kind: EvBackendError, Message: msg})
	}
}

// OnPlaybackDone is the player's end-of-playback callback.
func (c *Controller) OnPlaybackDone() {
	c.push(Event{Kind: EvPlaybackDone})
}

// OnAnswer is the capture's finalized-answer callback.
func (c *Controller) OnAnswer(transcript string) {
	c.push(Event{Kind: EvAnswerReady, Answer: transcript})
}

func (c *Controller) push(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// run is the single goroutine that owns the state machine.
func (c *Controller) run() {
	for ev := range c.events {
		c.mu.Lock()
		prev := c.state
		next, effects := Transition(prev, ev)
		c.state = next
		c.mu.Unlock()

		if next != prev {
			c.log.Info().
				Str("from", prev.String()).
				Str("to", next.String()).
				Str("event", ev.Kind.String()).
				Msg("session transition")
		}

		c.enterState(prev, next)
		for _, eff := range effects {
			c.apply(ev, eff)
		}

		if next == StateTerminated {
			close(c.done)
			return
		}
	}
}

// enterState handles entry actions tied to the state itself rather than to
// an effect.
func (c *Controller) enterState(prev, next State) {
	if next == prev {
		return
	}
	switch next {
	case StateConnecting:
		// Connect is idempotent; failures surface via OnTransportError.
		go func() { _ = c.transport.Connect() }()
	case StateConnected:
		// Interview context is preloaded, so it is ready as soon as the
		// transport is.
		c.push(Event{Kind: EvContextReady})
	}
}

func (c *Controller) apply(ev Event, eff Effect) {
	switch eff.Kind {
	case EffSendStart:
		err := c.transport.Send(protocol.EventStartInterview, protocol.StartInterview{
			JobDescription: c.opts.JobDescription,
			Resume:         c.opts.Resume,
		})
		if err != nil {
			c.log.Error().Err(err).Msg("failed to send interview context")
		}

	case EffSpeak:
		c.mu.Lock()
		c.current = eff.Question
		if ev.Kind == EvQuestion {
			c.transcript = append(c.transcript, Turn{
				Question: eff.Question.Question,
				Number:   eff.Question.QuestionNumber,
			})
		}
		c.mu.Unlock()
		payload := tts.Payload{Text: eff.Question.Question, AudioBase64: eff.Question.Audio}
		if err := c.player.Speak(context.Background(), payload); err != nil {
			// An unplayable question must not stall the interview.
			c.log.Error().Err(err).Msg("playback failed to start, skipping to listening")
			metrics.Default.PlaybackErrors.Inc()
			c.push(Event{Kind: EvPlaybackDone})
		}

	case EffListen:
		c.mu.Lock()
		c.turnStart = time.Now()
		c.mu.Unlock()
		if err := c.capture.Listen(c.opts.SilenceThreshold); err != nil {
			// A turn that cannot capture still submits, so the backend
			// keeps advancing the interview.
			c.log.Error().Err(err).Msg("listening failed to start, submitting empty answer")
			c.push(Event{Kind: EvAnswerReady, Answer: ""})
		}

	case EffAbortListen:
		c.capture.Abandon()

	case EffSendAnswer:
		c.mu.Lock()
		if n := len(c.transcript); n > 0 {
			c.transcript[n-1].Answer = eff.Answer
		}
		started := c.turnStart
		c.mu.Unlock()
		if !started.IsZero() {
			metrics.Default.TurnDuration.Observe(time.Since(started).Seconds())
		}
		metrics.Default.AnswersSubmitted.Inc()
		if eff.Answer == "" {
			metrics.Default.EmptyAnswers.Inc()
			c.log.Info().Msg("submitting empty answer")
		}
		err := c.transport.Send(protocol.EventSubmitAnswer, protocol.SubmitAnswer{Answer: eff.Answer})
		if err != nil {
			c.log.Error().Err(err).Msg("failed to submit answer")
		}

	case EffReleaseScreen:
		c.mu.Lock()
		fb := ev.Feedback
		c.feedback = &fb
		c.mu.Unlock()
		metrics.Default.SessionsCompleted.Inc()
		c.media.ReleaseScreen()
		c.log.Info().Int("rating", ev.Feedback.Rating).Msg("interview complete")

	case EffTeardown:
		c.teardown()

	case EffNotify:
		c.mu.Lock()
		c.failure = eff.Message
		c.current = protocol.Question{}
		c.mu.Unlock()
		c.player.Stop()
		metrics.Default.SessionsFailed.WithLabelValues(failureKind(ev.Kind)).Inc()
		c.log.Error().Str("message", eff.Message).Msg("session failed")
	}
}

// teardown is best effort: every step runs even if an earlier one fails.
func (c *Controller) teardown() {
	if c.player != nil {
		c.player.Stop()
	}
	if c.capture != nil {
		c.capture.Stop()
	}
	if c.transport != nil {
		if err := c.transport.Disconnect(); err != nil {
			c.log.Warn().Err(err).Msg("transport close during teardown")
		}
	}
	if c.media != nil {
		c.media.ReleaseAll()
	}
	c.log.Info().Msg("session torn down")
}

func failureKind(k EventKind) string {
	if k == EvTransportError {
		return "transport"
	}
	return "backend"
}
