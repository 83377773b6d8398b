package relay

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/OCAP2/datamaps/internal/channel"
	"github.com/OCAP2/datamaps/pkg/core"
)

// Handler serves a hub over WebSocket. Every connection becomes a peer:
// its linked events are published on the hub and it receives everyone
// else's.
type Handler struct {
	hub      *Hub
	logger   *slog.Logger
	upgrader ws.Upgrader
}

// NewHandler creates a Handler for hub
func NewHandler(hub *Hub, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		hub:      hub,
		logger:   logger,
		upgrader: ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

// serverPeer writes hub events to one accepted connection
type serverPeer struct {
	conn   *ws.Conn
	out    *channel.Buffered[[]byte]
	logger *slog.Logger
}

func (p *serverPeer) Send(evt core.LinkedEvent) {
	data, err := marshalEnvelope(TypeLinkedEvent, evt)
	if err != nil {
		p.logger.Error("failed to encode linked event", "error", err)
		return
	}
	if !p.out.TrySend(data) {
		p.logger.Warn("Relay peer send channel full, dropping message")
	}
}

func (p *serverPeer) writeLoop(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case data := <-p.out.Receive():
			if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := p.conn.WriteMessage(ws.TextMessage, data); err != nil {
				p.logger.Warn("Relay peer write error", "error", err)
				return
			}
		}
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("relay upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	peer := &serverPeer{conn: conn, out: channel.NewBuffered[[]byte](outboxSize), logger: h.logger}
	peerID, detach := h.hub.AttachPeer(peer)
	defer detach()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		peer.writeLoop(done)
	}()
	defer func() {
		close(done)
		wg.Wait()
	}()

	h.logger.Debug("relay peer connected", "peer", peerID, "remote", r.RemoteAddr)
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			h.logger.Debug("relay peer disconnected", "peer", peerID, "error", err)
			return
		}
		evt, ok, err := decodeLinkedEvent(message)
		if err != nil {
			h.logger.Warn("dropping malformed relay message", "peer", peerID, "error", err)
			continue
		}
		if ok {
			h.hub.Receive(peerID, evt)
		}
	}
}

// Client bridges a local hub to a remote relay server.
type Client struct {
	hub    *Hub
	conn   *connection
	detach func()
	logger *slog.Logger
}

// Dial connects hub to the relay at url
func Dial(url string, hub *Hub, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	hello, err := marshalEnvelope(TypeHello, HelloPayload{Hub: hub.ID()})
	if err != nil {
		return nil, err
	}

	c := &Client{hub: hub, logger: logger}
	var peerID string
	c.conn = newConnection(logger, hello, func(data []byte) {
		evt, ok, err := decodeLinkedEvent(data)
		if err != nil {
			logger.Warn("dropping malformed relay message", "error", err)
			return
		}
		if ok {
			hub.Receive(peerID, evt)
		}
	})
	peerID, c.detach = hub.AttachPeer(c)

	if err := c.conn.dial(url); err != nil {
		c.detach()
		return nil, err
	}
	return c, nil
}

// Send forwards a locally published event to the remote relay
func (c *Client) Send(evt core.LinkedEvent) {
	data, err := marshalEnvelope(TypeLinkedEvent, evt)
	if err != nil {
		c.logger.Error("failed to encode linked event", "error", err)
		return
	}
	c.conn.send(data)
}

// Close detaches from the hub and disconnects.
func (c *Client) Close() error {
	c.detach()
	return c.conn.close()
}
