package stt

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type sinkEngine struct {
	fakeEngine
	mu       sync.Mutex
	received [][]byte
	sendErr  error
}

func (s *sinkEngine) SendPCM16KLE(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.received = append(s.received, pcm)
	return nil
}

func (s *sinkEngine) chunks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

type chanStream struct{ ch chan []byte }

func (c chanStream) PCM16K() <-chan []byte { return c.ch }

func TestWithAudioFeed(t *testing.T) {
	eng := &sinkEngine{fakeEngine: fakeEngine{results: make(chan Result)}}
	stream := chanStream{ch: make(chan []byte, 4)}
	factory := WithAudioFeed(func() (Engine, error) { return eng, nil }, stream)

	built, err := factory()
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	if built != eng {
		t.Fatalf("factory must return the wrapped engine")
	}

	stream.ch <- []byte{1, 2}
	stream.ch <- []byte{3, 4}
	deadline := time.Now().Add(time.Second)
	for eng.chunks() < 2 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if eng.chunks() != 2 {
		t.Fatalf("expected 2 chunks fed, got %d", eng.chunks())
	}
}

func TestWithAudioFeed_StopsOnSendError(t *testing.T) {
	eng := &sinkEngine{fakeEngine: fakeEngine{results: make(chan Result)}, sendErr: errors.New("closed")}
	stream := chanStream{ch: make(chan []byte, 4)}
	factory := WithAudioFeed(func() (Engine, error) { return eng, nil }, stream)
	if _, err := factory(); err != nil {
		t.Fatalf("factory: %v", err)
	}

	// The feeding goroutine exits on the first failed send; the stream
	// stays open for the next turn's engine.
	stream.ch <- []byte{1}
	time.Sleep(20 * time.Millisecond)
	select {
	case stream.ch <- []byte{2}:
	default:
		t.Fatalf("stream should still accept audio")
	}
}

func TestWithAudioFeed_NilPassthrough(t *testing.T) {
	if WithAudioFeed(nil, chanStream{ch: make(chan []byte)}) != nil {
		t.Fatalf("nil factory must stay nil")
	}
}
