package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

// MockServer is an httptest-backed WebSocket server for exercising Session
// consumers. Tests can push frames to connected clients, inspect what the
// client sent, and simulate rejected or dropped connections.
type MockServer struct {
	server *httptest.Server
	url    string

	connections   map[*websocket.Conn]bool
	connectionsMu sync.RWMutex

	onConnect     func(*websocket.Conn, *http.Request)
	messageBuffer [][]byte

	shouldRejectConnection bool
	shouldDropConnection   bool
}

// NewMockServer starts a mock server. Callers must Close it when done.
func NewMockServer() *MockServer {
	mock := &MockServer{
		connections:   make(map[*websocket.Conn]bool),
		messageBuffer: make([][]byte, 0),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handleConnection))
	mock.url = "ws" + strings.TrimPrefix(mock.server.URL, "http")
	return mock
}

// URL returns the ws:// URL of the mock server.
func (m *MockServer) URL() string {
	return m.url
}

// Close shuts down the mock server and all client connections.
func (m *MockServer) Close() {
	m.server.Close()
}

// SetRejectConnection makes the server refuse upgrades when set.
func (m *MockServer) SetRejectConnection(reject bool) {
	m.shouldRejectConnection = reject
}

// SetDropConnection makes the server hang up on connected clients when set.
func (m *MockServer) SetDropConnection(drop bool) {
	m.shouldDropConnection = drop
}

// OnConnect sets a callback invoked with each new connection and its upgrade
// request. Useful for asserting on the subscribe query parameter and for
// scripting server-initiated frames.
func (m *MockServer) OnConnect(callback func(*websocket.Conn, *http.Request)) {
	m.onConnect = callback
}

// Broadcast sends a text frame to every connected client.
func (m *MockServer) Broadcast(message []byte) {
	m.connectionsMu.RLock()
	defer m.connectionsMu.RUnlock()

	for conn := range m.connections {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			go m.removeConnection(conn)
		}
	}
}

// ConnectionCount returns the number of active connections.
func (m *MockServer) ConnectionCount() int {
	m.connectionsMu.RLock()
	defer m.connectionsMu.RUnlock()
	return len(m.connections)
}

// ClientMessages returns a copy of the messages received from clients.
func (m *MockServer) ClientMessages() [][]byte {
	m.connectionsMu.RLock()
	defer m.connectionsMu.RUnlock()
	messages := make([][]byte, len(m.messageBuffer))
	copy(messages, m.messageBuffer)
	return messages
}

func (m *MockServer) handleConnection(w http.ResponseWriter, r *http.Request) {
	if m.shouldRejectConnection {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	m.addConnection(conn)
	defer func() {
		m.removeConnection(conn)
		conn.Close()
	}()

	if m.onConnect != nil {
		m.onConnect(conn, r)
	}

	for {
		if m.shouldDropConnection {
			return
		}

		messageType, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType == websocket.TextMessage {
			m.connectionsMu.Lock()
			m.messageBuffer = append(m.messageBuffer, message)
			m.connectionsMu.Unlock()
		}
	}
}

func (m *MockServer) addConnection(conn *websocket.Conn) {
	m.connectionsMu.Lock()
	defer m.connectionsMu.Unlock()
	m.connections[conn] = true
}

func (m *MockServer) removeConnection(conn *websocket.Conn) {
	m.connectionsMu.Lock()
	defer m.connectionsMu.Unlock()
	delete(m.connections, conn)
}

// setupMockServer creates a mock server tied to the test lifecycle.
func setupMockServer(t *testing.T) (*MockServer, string) {
	t.Helper()
	mock := NewMockServer()
	t.Cleanup(func() {
		mock.Close()
	})
	return mock, mock.URL()
}
