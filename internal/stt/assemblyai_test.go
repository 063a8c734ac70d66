package stt

import (
	"testing"
)

func TestDecodeAAIMessage_Turn(t *testing.T) {
	msg, err := decodeAAIMessage([]byte(`{"type":"Turn","transcript":"hello world","end_of_turn":true}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	turn, ok := msg.(aaiTurnMessage)
	if !ok {
		t.Fatalf("expected turn message, got %T", msg)
	}
	if turn.Transcript != "hello world" || !turn.EndOfTurn {
		t.Fatalf("turn fields mismatch: %+v", turn)
	}
}

func TestDecodeAAIMessage_UnknownTypeIgnored(t *testing.T) {
	msg, err := decodeAAIMessage([]byte(`{"type":"SomethingNew"}`))
	if err != nil {
		t.Fatalf("unknown type must not error: %v", err)
	}
	if msg != nil {
		t.Fatalf("expected nil for unknown type, got %T", msg)
	}
}

func TestDecodeAAIMessage_Malformed(t *testing.T) {
	if _, err := decodeAAIMessage([]byte(`{oops`)); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestAssemblyAIEngine_ProcessTurnEmitsResult(t *testing.T) {
	s := NewAssemblyAIEngine("test")
	s.processMessage([]byte(`{"type":"Turn","transcript":"first answer","end_of_turn":false}`))
	select {
	case res := <-s.Results():
		if res.Text != "first answer" || res.Final {
			t.Fatalf("unexpected result: %+v", res)
		}
	default:
		t.Fatalf("expected buffered result")
	}
}

func TestAssemblyAIEngine_ErrorClosesStream(t *testing.T) {
	s := NewAssemblyAIEngine("test")
	s.processMessage([]byte(`{"type":"Error","error":"quota exceeded"}`))
	if _, open := <-s.Results(); open {
		t.Fatalf("expected results stream closed after engine error")
	}
	// Close is idempotent.
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestAssemblyAIEngine_SendBeforeConnect(t *testing.T) {
	s := NewAssemblyAIEngine("test")
	if err := s.SendPCM16KLE([]byte{0, 0}); err == nil {
		t.Fatalf("expected error sending audio before connect")
	}
}
