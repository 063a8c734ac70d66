package session

import (
	"testing"

	"github.com/chadiek/interview-call/internal/protocol"
)

func kinds(effects []Effect) []EffectKind {
	out := make([]EffectKind, len(effects))
	for i, e := range effects {
		out[i] = e.Kind
	}
	return out
}

func sameKinds(got []EffectKind, want ...EffectKind) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestTransition_HappyPath(t *testing.T) {
	steps := []struct {
		ev      Event
		want    State
		effects []EffectKind
	}{
		{Event{Kind: EvConnect}, StateConnecting, nil},
		{Event{Kind: EvTransportOpen}, StateConnected, nil},
		{Event{Kind: EvContextReady}, StateAwaitingQuestion, []EffectKind{EffSendStart}},
		{Event{Kind: EvQuestion, Question: protocol.Question{Question: "Q1", QuestionNumber: 1}}, StateSpeaking, []EffectKind{EffSpeak}},
		{Event{Kind: EvPlaybackDone}, StateListening, []EffectKind{EffListen}},
		{Event{Kind: EvAnswerReady, Answer: "my answer"}, StateAwaitingQuestion, []EffectKind{EffSendAnswer}},
		{Event{Kind: EvComplete}, StateAwaitingFeedback, []EffectKind{EffReleaseScreen, EffSpeak}},
		{Event{Kind: EvEndCall}, StateTerminated, []EffectKind{EffTeardown}},
	}

	state := StateIdle
	for i, step := range steps {
		next, effects := Transition(state, step.ev)
		if next != step.want {
			t.Fatalf("step %d (%s): state %s, want %s", i, step.ev.Kind, next, step.want)
		}
		if !sameKinds(kinds(effects), step.effects...) {
			t.Fatalf("step %d (%s): effects %v, want %v", i, step.ev.Kind, kinds(effects), step.effects)
		}
		state = next
	}
}

func TestTransition_NeverListensWhileSpeaking(t *testing.T) {
	// Playback completion is the only path into listening.
	for _, s := range []State{StateIdle, StateConnecting, StateConnected, StateAwaitingQuestion, StateAwaitingFeedback, StateTerminated, StateFailed} {
		next, effects := Transition(s, Event{Kind: EvPlaybackDone})
		if next == StateListening || len(effects) != 0 {
			t.Fatalf("playback_done from %s must be a no-op, got %s %v", s, next, kinds(effects))
		}
	}
}

func TestTransition_NewQuestionWhileSpeaking(t *testing.T) {
	q := protocol.Question{Question: "Q2", QuestionNumber: 2}
	next, effects := Transition(StateSpeaking, Event{Kind: EvQuestion, Question: q})
	if next != StateSpeaking {
		t.Fatalf("state %s, want speaking", next)
	}
	if !sameKinds(kinds(effects), EffSpeak) {
		t.Fatalf("effects %v, want [speak]", kinds(effects))
	}
	if effects[0].Question.QuestionNumber != 2 {
		t.Fatalf("newest question must win, got %d", effects[0].Question.QuestionNumber)
	}
}

func TestTransition_NewQuestionWhileListeningAbandonsTurn(t *testing.T) {
	q := protocol.Question{Question: "Q2", QuestionNumber: 2}
	next, effects := Transition(StateListening, Event{Kind: EvQuestion, Question: q})
	if next != StateSpeaking {
		t.Fatalf("state %s, want speaking", next)
	}
	if !sameKinds(kinds(effects), EffAbortListen, EffSpeak) {
		t.Fatalf("effects %v, want [abort_listen speak]", kinds(effects))
	}
}

func TestTransition_LateAnswerAfterAbandonIsIgnored(t *testing.T) {
	// An answer that finalizes after the turn was abandoned arrives with
	// the machine already back in speaking; it must not submit.
	next, effects := Transition(StateSpeaking, Event{Kind: EvAnswerReady, Answer: "stale"})
	if next != StateSpeaking || len(effects) != 0 {
		t.Fatalf("stale answer must be dropped, got %s %v", next, kinds(effects))
	}
}

func TestTransition_BackendErrorFailsSession(t *testing.T) {
	next, effects := Transition(StateListening, Event{Kind: EvBackendError, Message: "boom"})
	if next != StateFailed {
		t.Fatalf("state %s, want failed", next)
	}
	if !sameKinds(kinds(effects), EffAbortListen, EffNotify) {
		t.Fatalf("effects %v, want [abort_listen notify]", kinds(effects))
	}

	// No further progress out of failed except teardown.
	for _, ev := range []Event{{Kind: EvQuestion}, {Kind: EvPlaybackDone}, {Kind: EvAnswerReady}, {Kind: EvComplete}} {
		s, eff := Transition(StateFailed, ev)
		if s != StateFailed || len(eff) != 0 {
			t.Fatalf("failed state must absorb %s, got %s %v", ev.Kind, s, kinds(eff))
		}
	}
	s, eff := Transition(StateFailed, Event{Kind: EvEndCall})
	if s != StateTerminated || !sameKinds(kinds(eff), EffTeardown) {
		t.Fatalf("end_call from failed: %s %v", s, kinds(eff))
	}
}

func TestTransition_TransportErrorAfterCompletionIgnored(t *testing.T) {
	next, effects := Transition(StateAwaitingFeedback, Event{Kind: EvTransportError, Message: "eof"})
	if next != StateAwaitingFeedback || len(effects) != 0 {
		t.Fatalf("post-completion drop must not fail the session, got %s %v", next, kinds(effects))
	}
}

func TestTransition_CompleteWhileListening(t *testing.T) {
	fb := protocol.Feedback{Rating: 8, Feedback: "solid"}
	next, effects := Transition(StateListening, Event{Kind: EvComplete, Feedback: fb})
	if next != StateAwaitingFeedback {
		t.Fatalf("state %s, want awaiting_feedback", next)
	}
	if !sameKinds(kinds(effects), EffAbortListen, EffReleaseScreen, EffSpeak) {
		t.Fatalf("effects %v, want [abort_listen release_screen speak]", kinds(effects))
	}
	if effects[2].Question.Question != "solid" {
		t.Fatalf("feedback should be spoken, got %q", effects[2].Question.Question)
	}
}

func TestTransition_ConnectIdempotent(t *testing.T) {
	for _, s := range []State{StateConnecting, StateConnected, StateAwaitingQuestion, StateSpeaking} {
		next, effects := Transition(s, Event{Kind: EvConnect})
		if next != s || len(effects) != 0 {
			t.Fatalf("connect from %s must be a no-op, got %s %v", s, next, kinds(effects))
		}
	}
}

func TestTransition_EndCallFromAnyState(t *testing.T) {
	for _, s := range []State{StateIdle, StateConnecting, StateConnected, StateAwaitingQuestion, StateSpeaking, StateListening, StateAwaitingFeedback, StateFailed} {
		next, effects := Transition(s, Event{Kind: EvEndCall})
		if next != StateTerminated {
			t.Fatalf("end_call from %s: got %s", s, next)
		}
		got := kinds(effects)
		if got[len(got)-1] != EffTeardown {
			t.Fatalf("end_call from %s must tear down, got %v", s, got)
		}
	}
	next, effects := Transition(StateTerminated, Event{Kind: EvEndCall})
	if next != StateTerminated || len(effects) != 0 {
		t.Fatalf("end_call when already terminated must be a no-op")
	}
}
