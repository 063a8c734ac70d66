package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestMarshal_StartInterviewFrame(t *testing.T) {
	frame, err := Marshal(EventStartInterview, StartInterview{
		JobDescription: "Backend Engineer",
		Resume:         "10 years of Go",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(frame, &raw); err != nil {
		t.Fatalf("frame not valid json: %v", err)
	}
	if string(raw["event"]) != `"start_interview"` {
		t.Fatalf("unexpected event tag: %s", raw["event"])
	}
	if !strings.Contains(string(raw["data"]), `"job_description"`) {
		t.Fatalf("payload missing job_description: %s", raw["data"])
	}
}

func TestUnmarshal_QuestionFrame(t *testing.T) {
	frame := []byte(`{"event":"interview_started","data":{"question":"Tell me about yourself","question_number":1}}`)
	env, err := Unmarshal(frame)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Event != EventInterviewStarted {
		t.Fatalf("event mismatch: %s", env.Event)
	}
	q, err := DecodeQuestion(env.Data)
	if err != nil {
		t.Fatalf("decode question: %v", err)
	}
	if q.Question != "Tell me about yourself" || q.QuestionNumber != 1 {
		t.Fatalf("question payload mismatch: %+v", q)
	}
}

func TestUnmarshal_FeedbackFrame(t *testing.T) {
	frame := []byte(`{"event":"interview_complete","data":{"feedback":{"detailed_feedback":{"rating":4,"feedback":"solid","keyTakeaways":["a","b"]}}}}`)
	env, err := Unmarshal(frame)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	fb, err := DecodeFeedback(env.Data)
	if err != nil {
		t.Fatalf("decode feedback: %v", err)
	}
	if fb.Rating != 4 {
		t.Fatalf("rating mismatch: %d", fb.Rating)
	}
	if len(fb.KeyTakeaways) != 2 {
		t.Fatalf("takeaways mismatch: %v", fb.KeyTakeaways)
	}
}

func TestUnmarshal_Malformed(t *testing.T) {
	if _, err := Unmarshal([]byte(`{not json`)); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := Unmarshal([]byte(`{"data":{}}`)); err == nil {
		t.Fatalf("expected missing-event error")
	}
}

func TestInbound(t *testing.T) {
	for _, ev := range []string{EventInterviewStarted, EventNextQuestion, EventInterviewComplete, EventError} {
		if !Inbound(ev) {
			t.Fatalf("expected %s inbound", ev)
		}
	}
	if Inbound(EventSubmitAnswer) || Inbound("made_up") {
		t.Fatalf("outbound/unknown events must not be inbound")
	}
}
