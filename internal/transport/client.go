// Package transport maintains the persistent WebSocket connection to the
// interview backend and moves typed event frames across it.
package transport

import (
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/chadiek/interview-call/internal/logging"
	"github.com/chadiek/interview-call/internal/metrics"
	"github.com/chadiek/interview-call/internal/protocol"
)

// ErrNotConnected is returned by Send when no connection is open. The frame
// is dropped, not queued.
var ErrNotConnected = errors.New("transport: not connected")

const normalClosureReason = "Normal closure"

// Callbacks are invoked from the transport's own goroutines. OnEvent is
// called in frame arrival order.
type Callbacks struct {
	OnConnect    func()
	OnDisconnect func()
	OnEvent      func(env protocol.Envelope)
	OnError      func(err error)
}

// Client is the session transport. One Client represents one session
// attempt: its client identity is generated at construction and never
// changes.
type Client struct {
	host     string
	secure   bool
	clientID string
	cb       Callbacks
	dialer   websocket.Dialer
	log      zerolog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	closing bool
}

// NewClient constructs a transport for one session attempt against the given
// host. Secure selects wss over ws, mirroring the security of the hosting
// origin.
func NewClient(host string, secure bool, cb Callbacks) *Client {
	id := uuid.NewString()
	return &Client{
		host:     host,
		secure:   secure,
		clientID: id,
		cb:       cb,
		dialer:   websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:      logging.WithSession("transport", id),
	}
}

// ClientID returns the opaque per-session identity.
func (c *Client) ClientID() string { return c.clientID }

// URL returns the connection endpoint for this session.
func (c *Client) URL() string {
	scheme := "ws"
	if c.secure {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: c.host, Path: "/ws/" + c.clientID}
	return u.String()
}

// Connect opens the connection. It is idempotent: a no-op when a connection
// handle already exists.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		c.log.Debug().Msg("connect: already connected")
		return nil
	}
	c.closing = false
	wsURL := c.URL()
	c.mu.Unlock()

	c.log.Info().Str("url", wsURL).Msg("connecting to interview backend")
	conn, resp, err := c.dialer.Dial(wsURL, nil)
	if err != nil {
		if resp != nil {
			c.log.Error().Int("status", resp.StatusCode).Msg("connect failed")
		}
		connErr := fmt.Errorf("transport: connect %s: %w", wsURL, err)
		c.emitError(connErr)
		return connErr
	}

	c.mu.Lock()
	// A concurrent Connect may have won the race; keep the first handle.
	if c.conn != nil {
		c.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	c.conn = conn
	c.mu.Unlock()

	metrics.Default.TransportUp.Set(1)
	if c.cb.OnConnect != nil {
		c.cb.OnConnect()
	}
	go c.readLoop(conn)
	return nil
}

// Disconnect closes with a normal-closure code and clears the handle. Safe to
// call when already closed.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.closing = true
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, normalClosureReason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	err := conn.Close()
	metrics.Default.TransportUp.Set(0)
	c.log.Info().Msg("disconnected")
	return err
}

// Connected reports whether a connection handle currently exists.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Send serializes {event, data} and writes it to the open connection. When
// disconnected the frame is dropped and ErrNotConnected is surfaced through
// the error callback as well as returned.
func (c *Client) Send(event string, payload interface{}) error {
	frame, err := protocol.Marshal(event, payload)
	if err != nil {
		c.emitError(err)
		return err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		metrics.Default.FramesDropped.Inc()
		c.log.Warn().Str("event", event).Msg("send while disconnected, frame dropped")
		c.emitError(ErrNotConnected)
		return ErrNotConnected
	}

	c.mu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, frame)
	c.mu.Unlock()
	if err != nil {
		wErr := fmt.Errorf("transport: write %s: %w", event, err)
		c.emitError(wErr)
		return wErr
	}
	metrics.Default.FramesSent.Inc()
	c.log.Debug().Str("event", event).Msg("frame sent")
	return nil
}

// readLoop processes inbound frames in arrival order until the connection
// drops. Malformed and unknown frames are logged and skipped, never fatal.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			deliberate := c.closing || c.conn == nil
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()
			metrics.Default.TransportUp.Set(0)
			if !deliberate {
				c.log.Error().Err(err).Msg("connection lost")
				c.emitError(fmt.Errorf("transport: connection lost: %w", err))
			}
			if c.cb.OnDisconnect != nil {
				c.cb.OnDisconnect()
			}
			return
		}

		env, err := protocol.Unmarshal(data)
		if err != nil {
			metrics.Default.ProtocolErrors.WithLabelValues("malformed").Inc()
			c.log.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}
		if !protocol.Inbound(env.Event) {
			metrics.Default.ProtocolErrors.WithLabelValues("unknown_event").Inc()
			c.log.Warn().Str("event", env.Event).Msg("ignoring unknown event type")
			continue
		}
		if c.cb.OnEvent != nil {
			c.cb.OnEvent(env)
		}
	}
}

func (c *Client) emitError(err error) {
	if c.cb.OnError != nil {
		c.cb.OnError(err)
	}
}
