package session

import "github.com/chadiek/interview-call/internal/protocol"

// State is the interview session phase. Transitions happen only through
// Transition so the turn-taking rules live in one place.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateAwaitingQuestion
	StateSpeaking
	StateListening
	StateAwaitingFeedback
	StateTerminated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateAwaitingQuestion:
		return "awaiting_question"
	case StateSpeaking:
		return "speaking"
	case StateListening:
		return "listening"
	case StateAwaitingFeedback:
		return "awaiting_feedback"
	case StateTerminated:
		return "terminated"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// EventKind enumerates everything that can drive the session forward:
// user actions, transport callbacks, and adapter completions.
type EventKind int

const (
	EvConnect EventKind = iota
	EvTransportOpen
	EvContextReady
	EvQuestion
	EvPlaybackDone
	EvAnswerReady
	EvComplete
	EvBackendError
	EvTransportError
	EvEndCall
)

func (k EventKind) String() string {
	switch k {
	case EvConnect:
		return "connect"
	case EvTransportOpen:
		return "transport_open"
	case EvContextReady:
		return "context_ready"
	case EvQuestion:
		return "question"
	case EvPlaybackDone:
		return "playback_done"
	case EvAnswerReady:
		return "answer_ready"
	case EvComplete:
		return "complete"
	case EvBackendError:
		return "backend_error"
	case EvTransportError:
		return "transport_error"
	case EvEndCall:
		return "end_call"
	default:
		return "unknown"
	}
}

// Event carries an EventKind plus whichever payload that kind uses.
type Event struct {
	Kind     EventKind
	Question protocol.Question
	Answer   string
	Feedback protocol.Feedback
	Message  string
}

// EffectKind names a side effect the controller must execute after a
// transition. The transition function itself never performs I/O.
type EffectKind int

const (
	EffSendStart EffectKind = iota
	EffSpeak
	EffListen
	EffAbortListen
	EffSendAnswer
	EffReleaseScreen
	EffTeardown
	EffNotify
)

func (k EffectKind) String() string {
	switch k {
	case EffSendStart:
		return "send_start"
	case EffSpeak:
		return "speak"
	case EffListen:
		return "listen"
	case EffAbortListen:
		return "abort_listen"
	case EffSendAnswer:
		return "send_answer"
	case EffReleaseScreen:
		return "release_screen"
	case EffTeardown:
		return "teardown"
	case EffNotify:
		return "notify"
	default:
		return "unknown"
	}
}

// Effect is an EffectKind plus its payload.
type Effect struct {
	Kind     EffectKind
	Question protocol.Question
	Answer   string
	Feedback protocol.Feedback
	Message  string
}

// Transition is the pure turn-taking function. Given the current state
// and an event it returns the next state and the ordered effects the
// controller must run. It holds every rule that keeps speaking and
// listening mutually exclusive.
func Transition(state State, ev Event) (State, []Effect) {
	switch ev.Kind {
	case EvConnect:
		if state != StateIdle {
			return state, nil
		}
		return StateConnecting, nil

	case EvTransportOpen:
		if state != StateConnecting {
			return state, nil
		}
		return StateConnected, nil

	case EvContextReady:
		if state != StateConnected {
			return state, nil
		}
		return StateAwaitingQuestion, []Effect{{Kind: EffSendStart}}

	case EvQuestion:
		switch state {
		case StateAwaitingQuestion:
			return StateSpeaking, []Effect{{Kind: EffSpeak, Question: ev.Question}}
		case StateSpeaking:
			// Newest question wins over one still being read out.
			return StateSpeaking, []Effect{{Kind: EffSpeak, Question: ev.Question}}
		case StateListening:
			// Newest question wins over a capture in progress. The
			// abandoned turn must not submit an answer.
			return StateSpeaking, []Effect{
				{Kind: EffAbortListen},
				{Kind: EffSpeak, Question: ev.Question},
			}
		default:
			return state, nil
		}

	case EvPlaybackDone:
		if state != StateSpeaking {
			return state, nil
		}
		return StateListening, []Effect{{Kind: EffListen}}

	case EvAnswerReady:
		if state != StateListening {
			// A late answer from an abandoned or torn-down turn.
			return state, nil
		}
		return StateAwaitingQuestion, []Effect{{Kind: EffSendAnswer, Answer: ev.Answer}}

	case EvComplete:
		switch state {
		case StateAwaitingQuestion, StateSpeaking, StateListening:
			effects := []Effect{}
			if state == StateListening {
				effects = append(effects, Effect{Kind: EffAbortListen})
			}
			effects = append(effects,
				Effect{Kind: EffReleaseScreen},
				Effect{Kind: EffSpeak, Feedback: ev.Feedback, Question: feedbackQuestion(ev.Feedback)},
			)
			return StateAwaitingFeedback, effects
		default:
			return state, nil
		}

	case EvBackendError:
		switch state {
		case StateTerminated, StateFailed, StateIdle:
			return state, nil
		}
		effects := []Effect{}
		if state == StateListening {
			effects = append(effects, Effect{Kind: EffAbortListen})
		}
		effects = append(effects, Effect{Kind: EffNotify, Message: ev.Message})
		return StateFailed, effects

	case EvTransportError:
		switch state {
		case StateTerminated, StateFailed, StateIdle, StateAwaitingFeedback:
			// After completion or teardown a dropped socket is not a failure.
			return state, nil
		}
		effects := []Effect{}
		if state == StateListening {
			effects = append(effects, Effect{Kind: EffAbortListen})
		}
		effects = append(effects, Effect{Kind: EffNotify, Message: ev.Message})
		return StateFailed, effects

	case EvEndCall:
		switch state {
		case StateTerminated:
			return state, nil
		}
		effects := []Effect{}
		if state == StateListening {
			effects = append(effects, Effect{Kind: EffAbortListen})
		}
		effects = append(effects, Effect{Kind: EffTeardown})
		return StateTerminated, effects
	}
	return state, nil
}

// feedbackQuestion renders the closing feedback as a spoken line so the
// player can read it out like any other turn.
func feedbackQuestion(fb protocol.Feedback) protocol.Question {
	text := fb.Feedback
	if text == "" {
		text = "The interview is complete. Thank you for your time."
	}
	return protocol.Question{Question: text}
}
