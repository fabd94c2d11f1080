package bus

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/curbz/atc-kernel/internal/atcerr"
)

// Handler is invoked once per received Message. It must not block for
// long, since the transport's single read loop is its only caller.
type Handler func(Message)

// Transport is the kernel's abstraction over how a Message physically
// moves, mirroring original_source/include/communication/channel.h's
// IChannel: initialize/sendMessage/receiveMessage plus handler
// registration, collapsed into Send/OnMessage since Go's read loop
// replaces the C++ polling receiveMessage call.
type Transport interface {
	Send(Message) error
	OnMessage(Handler)
	Close() error
}

// InMemory is a Transport for intra-process wiring: every component in
// the kernel runs in the same binary, so most Message traffic never
// needs to leave it. Send fans a Message out to every registered
// handler synchronously, matching the teacher's single-process
// notification style (internal/atc/atc.go's NotifyAircraftChange).
type InMemory struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewInMemory constructs an InMemory transport.
func NewInMemory() *InMemory {
	return &InMemory{}
}

// Send delivers msg to every registered handler.
func (t *InMemory) Send(msg Message) error {
	t.mu.RLock()
	handlers := make([]Handler, len(t.handlers))
	copy(handlers, t.handlers)
	t.mu.RUnlock()

	for _, h := range handlers {
		h(msg)
	}
	return nil
}

// OnMessage registers a handler for every subsequently sent Message.
func (t *InMemory) OnMessage(h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers = append(t.handlers, h)
}

// Close is a no-op for InMemory; it exists to satisfy Transport.
func (t *InMemory) Close() error { return nil }

// WebSocketTransport is a Transport backed by a gorilla/websocket
// connection, for a Message Bus client that lives outside this process
// (an operator console, a display). Grounded on the teacher's
// internal/mockserver/mockserver.go, which upgrades an HTTP connection
// with the same websocket.Upgrader and guards writes with a mutex since
// gorilla/websocket connections are not safe for concurrent writers.
type WebSocketTransport struct {
	conn *websocket.Conn
	log  *logrus.Entry

	writeMu  sync.Mutex
	handlers []Handler

	done chan struct{}
}

// NewWebSocketTransport wraps an established *websocket.Conn and starts
// its read loop.
func NewWebSocketTransport(conn *websocket.Conn, log *logrus.Entry) *WebSocketTransport {
	t := &WebSocketTransport{
		conn: conn,
		log:  log.WithField("component", "bus-ws"),
		done: make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// Send encodes msg and writes it as a single binary WebSocket frame.
func (t *WebSocketTransport) Send(msg Message) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := t.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("writing message: %w", atcerr.TransientIO)
	}
	return nil
}

// OnMessage registers a handler for every message the read loop decodes.
func (t *WebSocketTransport) OnMessage(h Handler) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	t.handlers = append(t.handlers, h)
}

// Close shuts down the underlying connection.
func (t *WebSocketTransport) Close() error {
	close(t.done)
	return t.conn.Close()
}

func (t *WebSocketTransport) readLoop() {
	for {
		select {
		case <-t.done:
			return
		default:
		}

		mt, data, err := t.conn.ReadMessage()
		if err != nil {
			t.log.WithError(err).Debug("websocket read loop ending")
			return
		}
		if mt != websocket.BinaryMessage {
			continue
		}

		msg, err := Decode(data)
		if err != nil {
			t.log.WithError(err).Warn("discarding malformed message")
			continue
		}

		t.writeMu.Lock()
		handlers := make([]Handler, len(t.handlers))
		copy(handlers, t.handlers)
		t.writeMu.Unlock()

		for _, h := range handlers {
			h(msg)
		}
	}
}
