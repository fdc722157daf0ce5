// Package websocket provides the socket session used by the streaming
// order-book mirror. A Session wraps one gorilla/websocket connection:
// dial once (with bounded retry), read messages until the peer or the
// owner closes the socket, then discard the session. There is no
// resubscribe or transparent reconnect; the consumer owns the protocol
// state machine and a closed session is terminal.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/gorilla/websocket"

	"github.com/veiloq/bitmex-connector/pkg/logging"
)

// Session is a single-use WebSocket connection.
type Session interface {
	// Connect dials the configured URL. It may only be called once.
	Connect(ctx context.Context) error

	// ReadMessage blocks until the next inbound message or a read error.
	// There is no read deadline; closing the session is the only way to
	// unblock a pending read.
	ReadMessage() ([]byte, error)

	// Send writes a message. []byte payloads are sent verbatim, anything
	// else is JSON-encoded first.
	Send(message interface{}) error

	// Close shuts the connection down. After Close the session is terminal;
	// construct a new one to reconnect.
	Close() error

	// IsConnected reports whether the socket is open.
	IsConnected() bool
}

// Config holds session configuration.
type Config struct {
	URL              string
	HandshakeTimeout time.Duration
	DialRetries      uint
	DialDelay        time.Duration
	Logger           logging.Logger
}

// session implements the Session interface.
type session struct {
	config Config
	conn   *websocket.Conn

	writeMu sync.Mutex

	stateMu   sync.Mutex
	connected bool
	closed    bool

	logger logging.Logger
}

// NewSession creates a session for the given configuration. Zero-valued
// fields fall back to defaults: 10s handshake timeout, 3 dial attempts
// one second apart, nop logger.
func NewSession(config Config) Session {
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = 10 * time.Second
	}
	if config.DialRetries == 0 {
		config.DialRetries = 3
	}
	if config.DialDelay <= 0 {
		config.DialDelay = time.Second
	}
	if config.Logger == nil {
		config.Logger = logging.NewNopLogger()
	}
	return &session{
		config: config,
		logger: config.Logger,
	}
}

// Connect implements Session.
func (s *session) Connect(ctx context.Context) error {
	s.stateMu.Lock()
	if s.closed {
		s.stateMu.Unlock()
		return fmt.Errorf("session already closed")
	}
	if s.connected {
		s.stateMu.Unlock()
		return fmt.Errorf("session already connected")
	}
	s.stateMu.Unlock()

	s.logger.Debug("dialing websocket", logging.String("url", s.config.URL))

	dialer := websocket.Dialer{
		HandshakeTimeout: s.config.HandshakeTimeout,
	}

	var conn *websocket.Conn
	err := retry.Do(
		func() error {
			if ctx.Err() != nil {
				return retry.Unrecoverable(ctx.Err())
			}
			var dialErr error
			conn, _, dialErr = dialer.DialContext(ctx, s.config.URL, nil)
			return dialErr
		},
		retry.Attempts(s.config.DialRetries),
		retry.Delay(s.config.DialDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Warn("websocket dial failed",
				logging.Int("attempt", int(n+1)),
				logging.Error(err),
			)
		}),
	)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	s.stateMu.Lock()
	s.conn = conn
	s.connected = true
	s.stateMu.Unlock()

	s.logger.Info("websocket connected", logging.String("url", s.config.URL))
	return nil
}

// ReadMessage implements Session.
func (s *session) ReadMessage() ([]byte, error) {
	s.stateMu.Lock()
	conn := s.conn
	s.stateMu.Unlock()

	if conn == nil {
		return nil, fmt.Errorf("websocket not connected")
	}

	_, message, err := conn.ReadMessage()
	if err != nil {
		s.stateMu.Lock()
		s.connected = false
		s.stateMu.Unlock()
		return nil, err
	}
	return message, nil
}

// Send implements Session.
func (s *session) Send(message interface{}) error {
	s.stateMu.Lock()
	conn := s.conn
	connected := s.connected
	s.stateMu.Unlock()

	if conn == nil || !connected {
		return fmt.Errorf("websocket not connected")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if data, ok := message.([]byte); ok {
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// IsConnected implements Session.
func (s *session) IsConnected() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.connected
}

// Close implements Session.
func (s *session) Close() error {
	s.stateMu.Lock()
	if s.closed {
		s.stateMu.Unlock()
		return nil
	}
	s.closed = true
	s.connected = false
	conn := s.conn
	s.stateMu.Unlock()

	if conn == nil {
		return nil
	}

	s.writeMu.Lock()
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closed connection"))
	s.writeMu.Unlock()

	// Give the close frame a moment before tearing the connection down.
	time.Sleep(100 * time.Millisecond)

	err := conn.Close()
	if err != nil && !strings.Contains(err.Error(), "use of closed network connection") {
		return err
	}
	return nil
}
