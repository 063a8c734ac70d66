// Package protocol defines the typed event frames exchanged with the
// interview backend over the session transport.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Event types produced by the backend.
const (
	EventInterviewStarted  = "interview_started"
	EventNextQuestion      = "next_question"
	EventInterviewComplete = "interview_complete"
	EventError             = "error"
)

// Event types produced by the client.
const (
	EventStartInterview = "start_interview"
	EventSubmitAnswer   = "submit_answer"
)

// Envelope is the wire frame: a tag plus a type-dependent payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// StartInterview carries the interview context the backend needs before it
// will emit the first question.
type StartInterview struct {
	JobDescription string `json:"job_description"`
	Resume         string `json:"resume"`
}

// SubmitAnswer carries one finalized answer. An empty answer is legal; the
// backend decides how to score it.
type SubmitAnswer struct {
	Answer string `json:"answer"`
}

// Question is the payload of interview_started and next_question.
type Question struct {
	Question       string `json:"question"`
	QuestionNumber int    `json:"question_number"`
	// Audio optionally carries the question pre-rendered as base64 PCM.
	Audio string `json:"audio,omitempty"`
}

// Feedback is the terminal per-session evaluation.
type Feedback struct {
	Rating       int      `json:"rating"`
	Feedback     string   `json:"feedback"`
	KeyTakeaways []string `json:"keyTakeaways"`
}

// InterviewComplete wraps the nested feedback object the backend emits.
type InterviewComplete struct {
	Feedback struct {
		DetailedFeedback Feedback `json:"detailed_feedback"`
	} `json:"feedback"`
}

// ErrorPayload is the payload of a backend error event.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Marshal builds a wire frame for the given event type and payload.
func Marshal(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// Unmarshal parses a wire frame into its envelope. The payload stays raw
// until the caller decodes it against the event type.
func Unmarshal(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("malformed frame: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("frame missing event field")
	}
	return env, nil
}

// DecodeQuestion decodes a question payload.
func DecodeQuestion(data json.RawMessage) (Question, error) {
	var q Question
	if err := json.Unmarshal(data, &q); err != nil {
		return Question{}, fmt.Errorf("decode question: %w", err)
	}
	return q, nil
}

// DecodeFeedback decodes an interview_complete payload into its feedback.
func DecodeFeedback(data json.RawMessage) (Feedback, error) {
	var c InterviewComplete
	if err := json.Unmarshal(data, &c); err != nil {
		return Feedback{}, fmt.Errorf("decode feedback: %w", err)
	}
	return c.Feedback.DetailedFeedback, nil
}

// DecodeError decodes an error payload.
func DecodeError(data json.RawMessage) (ErrorPayload, error) {
	var e ErrorPayload
	if err := json.Unmarshal(data, &e); err != nil {
		return ErrorPayload{}, fmt.Errorf("decode error payload: %w", err)
	}
	return e, nil
}

// Inbound reports whether the event type is one the backend produces.
func Inbound(event string) bool {
	switch event {
	case EventInterviewStarted, EventNextQuestion, EventInterviewComplete, EventError:
		return true
	}
	return false
}
