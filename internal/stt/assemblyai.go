package stt

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/chadiek/interview-call/internal/logging"
)

// AssemblyAIEngine streams microphone PCM to AssemblyAI's realtime API and
// emits recognition results. One engine serves one listening turn.
type AssemblyAIEngine struct {
	apiKey  string
	results chan Result
	audio   chan []byte
	stopCh  chan struct{}
	log     zerolog.Logger

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	closed    bool
}

// AssemblyAI realtime message shapes.
type aaiBeginMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	ExpiresAt int64  `json:"expires_at"`
}

type aaiTurnMessage struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript"`
	EndOfTurn  bool   `json:"end_of_turn"`
	Formatted  bool   `json:"turn_is_formatted"`
}

type aaiErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type aaiTerminationMessage struct {
	Type                   string  `json:"type"`
	AudioDurationSeconds   float64 `json:"audio_duration_seconds"`
	SessionDurationSeconds float64 `json:"session_duration_seconds"`
}

// decodeAAIMessage parses one realtime frame into its typed form. Unknown
// message types come back as nil and are ignored.
func decodeAAIMessage(message []byte) (interface{}, error) {
	var base struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &base); err != nil {
		return nil, err
	}
	switch base.Type {
	case "Begin":
		var m aaiBeginMessage
		return m, json.Unmarshal(message, &m)
	case "Turn":
		var m aaiTurnMessage
		err := json.Unmarshal(message, &m)
		return m, err
	case "Error":
		var m aaiErrorMessage
		return m, json.Unmarshal(message, &m)
	case "Termination":
		var m aaiTerminationMessage
		return m, json.Unmarshal(message, &m)
	}
	return nil, nil
}

// NewAssemblyAIEngine creates a recognition engine backed by AssemblyAI.
func NewAssemblyAIEngine(apiKey string) *AssemblyAIEngine {
	return &AssemblyAIEngine{
		apiKey:  apiKey,
		results: make(chan Result, 100),
		audio:   make(chan []byte, 1000),
		stopCh:  make(chan struct{}),
		log:     logging.WithComponent("stt.assemblyai"),
	}
}

// AssemblyAIFactory returns an engine factory, or nil when the runtime has
// no credentials; the caller treats nil as recognition-unsupported.
func AssemblyAIFactory(apiKey string) EngineFactory {
	if apiKey == "" {
		return nil
	}
	return func() (Engine, error) { return NewAssemblyAIEngine(apiKey), nil }
}

// Results returns the recognition update stream. It closes when the session
// ends for any reason.
func (s *AssemblyAIEngine) Results() <-chan Result { return s.results }

// Connect establishes the streaming WebSocket connection.
func (s *AssemblyAIEngine) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return nil
	}
	if s.apiKey == "" {
		return fmt.Errorf("stt: AssemblyAI API key is empty")
	}

	params := url.Values{}
	params.Set("sample_rate", "16000")
	params.Set("format_turns", "false")
	params.Set("encoding", "pcm_s16le")
	wsURL := fmt.Sprintf("wss://streaming.assemblyai.com/v3/ws?%s", params.Encode())

	headers := map[string][]string{"Authorization": {s.apiKey}}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, resp, err := dialer.Dial(wsURL, headers)
	if err != nil {
		if resp != nil {
			s.log.Error().Int("status", resp.StatusCode).Msg("AssemblyAI connect failed")
		}
		return fmt.Errorf("stt: connect to AssemblyAI: %w", err)
	}

	s.conn = conn
	s.connected = true

	go s.handleMessages()
	go s.sendAudioData()

	s.log.Debug().Msg("connected to AssemblyAI streaming service")
	return nil
}

// SendPCM16KLE queues microphone audio for the recognizer. Full buffers drop
// packets rather than blocking the capture path.
func (s *AssemblyAIEngine) SendPCM16KLE(pcm []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.connected {
		return fmt.Errorf("stt: not connected to AssemblyAI")
	}
	select {
	case s.audio <- pcm:
	default:
		s.log.Warn().Msg("audio buffer full, dropping packet")
	}
	return nil
}

// Close terminates the session and closes the results stream. Safe to call
// more than once.
func (s *AssemblyAIEngine) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.stopCh)
	if s.conn != nil {
		_ = s.conn.WriteJSON(map[string]string{"type": "Terminate"})
		_ = s.conn.Close()
	}
	s.connected = false
	s.conn = nil
	close(s.results)
	s.log.Debug().Msg("AssemblyAI connection closed")
	return nil
}

func (s *AssemblyAIEngine) handleMessages() {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("recovered in handleMessages")
		}
	}()
	for {
		select {
		case <-s.stopCh:
			return
		default:
			s.mu.RLock()
			conn := s.conn
			s.mu.RUnlock()
			if conn == nil {
				return
			}
			_, message, err := conn.ReadMessage()
			if err != nil {
				// Engine end-of-stream counts as an implicit end of turn.
				_ = s.Close()
				return
			}
			s.processMessage(message)
		}
	}
}

func (s *AssemblyAIEngine) processMessage(message []byte) {
	env, err := decodeAAIMessage(message)
	if err != nil {
		s.log.Warn().Err(err).Msg("dropping unreadable AssemblyAI message")
		return
	}
	switch msg := env.(type) {
	case aaiBeginMessage:
		s.log.Debug().Str("sessionId", msg.ID).
			Time("expiresAt", time.Unix(msg.ExpiresAt, 0)).
			Msg("AssemblyAI session began")
	case aaiTurnMessage:
		if msg.Transcript == "" {
			return
		}
		select {
		case s.results <- Result{Text: msg.Transcript, Final: msg.EndOfTurn}:
		case <-s.stopCh:
		}
	case aaiTerminationMessage:
		s.log.Debug().
			Float64("audioSeconds", msg.AudioDurationSeconds).
			Float64("sessionSeconds", msg.SessionDurationSeconds).
			Msg("AssemblyAI session terminated")
		_ = s.Close()
	case aaiErrorMessage:
		// Errors end the turn with whatever was captured, not fatally.
		s.log.Error().Str("error", msg.Error).Msg("AssemblyAI error, ending turn")
		_ = s.Close()
	}
}

func (s *AssemblyAIEngine) sendAudioData() {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("recovered in sendAudioData")
		}
	}()
	for {
		select {
		case <-s.stopCh:
			return
		case pcm := <-s.audio:
			s.mu.RLock()
			conn := s.conn
			s.mu.RUnlock()
			if conn == nil {
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
				s.log.Error().Err(err).Msg("error sending audio data")
				return
			}
		}
	}
}
