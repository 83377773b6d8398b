package relay

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/OCAP2/datamaps/internal/events"
	"github.com/OCAP2/datamaps/pkg/core"
)

// ErrAlreadyJoined is returned when a map id joins twice
var ErrAlreadyJoined = errors.New("map already joined")

// Peer receives events published on a hub by someone else
type Peer interface {
	Send(evt core.LinkedEvent)
}

type member struct {
	bus *events.Bus
	sub events.Subscription
}

// Hub relays linked events between maps on the same page. A map's
// sendLinkedEvent reaches every other joined map as linkedEvent.
// Peers extend the page to remote hubs.
type Hub struct {
	id      string
	mu      sync.RWMutex
	members map[string]*member
	peers   map[string]Peer
	logger  *slog.Logger
}

// NewHub creates an empty hub with a random id
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		id:      uuid.NewString(),
		members: make(map[string]*member),
		peers:   make(map[string]Peer),
		logger:  logger,
	}
}

// ID returns the hub id used to qualify event origins
func (h *Hub) ID() string {
	return h.id
}

// Origin qualifies a map id with the hub id
func (h *Hub) Origin(mapID string) string {
	return h.id + "/" + mapID
}

// Join subscribes a map's bus to the hub.
func (h *Hub) Join(mapID string, bus *events.Bus) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.members[mapID]; ok {
		return ErrAlreadyJoined
	}
	origin := h.Origin(mapID)
	sub := bus.On(events.SendLinkedEvent, func(args ...any) error {
		if len(args) == 0 {
			return errors.New("sendLinkedEvent without payload")
		}
		evt, ok := args[0].(core.LinkedEvent)
		if !ok {
			return errors.New("sendLinkedEvent payload is not a linked event")
		}
		evt.Origin = origin
		h.dispatch(evt, "")
		return nil
	})
	h.members[mapID] = &member{bus: bus, sub: sub}
	h.logger.Debug("map joined relay", "map", mapID, "hub", h.id)
	return nil
}

// Leave unsubscribes a map
func (h *Hub) Leave(mapID string) {
	h.mu.Lock()
	m, ok := h.members[mapID]
	delete(h.members, mapID)
	h.mu.Unlock()
	if ok {
		m.bus.Off(m.sub)
	}
}

// Members returns joined map ids, sorted
func (h *Hub) Members() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.members))
	for id := range h.members {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// AttachPeer registers a remote peer and returns its id and a detach func
func (h *Hub) AttachPeer(p Peer) (string, func()) {
	id := uuid.NewString()
	h.mu.Lock()
	h.peers[id] = p
	h.mu.Unlock()
	return id, func() {
		h.mu.Lock()
		delete(h.peers, id)
		h.mu.Unlock()
	}
}

// Receive publishes an event that arrived from the peer with id peerID
func (h *Hub) Receive(peerID string, evt core.LinkedEvent) {
	h.dispatch(evt, peerID)
}

// dispatch delivers evt to every member other than its origin and every
// peer other than the one it came from.
func (h *Hub) dispatch(evt core.LinkedEvent, fromPeer string) {
	h.mu.RLock()
	buses := make([]*events.Bus, 0, len(h.members))
	for id, m := range h.members {
		if h.Origin(id) == evt.Origin {
			continue
		}
		buses = append(buses, m.bus)
	}
	peers := make([]Peer, 0, len(h.peers))
	for id, p := range h.peers {
		if id != fromPeer {
			peers = append(peers, p)
		}
	}
	h.mu.RUnlock()

	for _, b := range buses {
		b.Fire(events.LinkedEvent, evt)
	}
	for _, p := range peers {
		p.Send(evt)
	}
}

// Peers returns the number of attached peers
func (h *Hub) Peers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}
