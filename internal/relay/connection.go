package relay

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/OCAP2/datamaps/internal/channel"
)

const (
	outboxSize   = 1024
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
)

// connection manages a client WebSocket with a single write goroutine and
// reconnects with exponential backoff after failures.
type connection struct {
	mu     sync.Mutex
	conn   *ws.Conn
	out    *channel.Buffered[[]byte]
	done   chan struct{} // closed on shutdown
	closed bool

	wsURL string
	// hello is written first on every (re)connect
	hello     []byte
	onMessage func([]byte)

	logger *slog.Logger
}

func newConnection(logger *slog.Logger, hello []byte, onMessage func([]byte)) *connection {
	return &connection{
		out:       channel.NewBuffered[[]byte](outboxSize),
		done:      make(chan struct{}),
		hello:     hello,
		onMessage: onMessage,
		logger:    logger,
	}
}

// dial connects to the relay server and starts read/write loops.
func (c *connection) dial(rawURL string) error {
	c.wsURL = rawURL

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.writeLoop()
	go c.readLoop()

	return nil
}

// dialOnce performs a single dial and writes the hello message.
func (c *connection) dialOnce() (*ws.Conn, error) {
	conn, _, err := ws.DefaultDialer.Dial(c.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	if c.hello != nil {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("set hello deadline: %w", err)
		}
		if err := conn.WriteMessage(ws.TextMessage, c.hello); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("write hello: %w", err)
		}
	}
	return conn, nil
}

// writeLoop drains the outbox and writes messages to the WebSocket.
// Only one writeLoop runs at a time; it returns on error or shutdown.
func (c *connection) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.out.Receive():
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()

			if conn == nil {
				continue
			}

			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("Relay SetWriteDeadline error", "error", err)
				go c.reconnect()
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("Relay write error", "error", err)
				go c.reconnect()
				return
			}
		}
	}
}

// readLoop hands every inbound message to onMessage.
func (c *connection) readLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("Relay read error", "error", err)
			go c.reconnect()
			return
		}
		c.onMessage(message)
	}
}

// reconnect re-establishes the connection with exponential backoff and
// restarts the read/write loops.
func (c *connection) reconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	backoff := time.Second
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		c.logger.Info("Reconnecting to relay", "attempt", attempt, "backoff", backoff)
		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Relay reconnect dial failed", "attempt", attempt, "error", err)
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		c.mu.Unlock()

		c.logger.Info("Relay reconnected", "attempt", attempt)
		go c.writeLoop()
		go c.readLoop()
		return
	}

	c.logger.Error("Relay reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

// send pushes data to the write loop. Non-blocking; drops if channel full.
func (c *connection) send(data []byte) {
	if !c.out.TrySend(data) {
		c.logger.Warn("Relay send channel full, dropping message")
	}
}

// close sends a close frame and shuts down all goroutines.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		)
		return conn.Close()
	}
	return nil
}
