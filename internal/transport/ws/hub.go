package ws

import (
	"context"
	"errors"

	"github.com/vedran77/tandem/internal/logging"
	"github.com/vedran77/tandem/internal/metrics"
)

var errUnknownTopic = errors.New("unknown topic")

const (
	presenceOnline  = "online"
	presenceOffline = "offline"
)

// Hub tracks connected clients per account and relays presence between
// partners. An account may hold several connections at once.
type Hub struct {
	services Services
	topics   map[string]topicFunc
	logger   logging.Logger

	clients map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	stopped    chan struct{}
}

func NewHub(services Services, logger logging.Logger) *Hub {
	return &Hub{
		services:   services,
		topics:     services.topics(),
		logger:     logger.With("component", "ws_hub"),
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopped:    make(chan struct{}),
	}
}

// Run starts the Hub's main event loop. Call this in a goroutine. When ctx
// is done every client is closed.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)

	for {
		select {
		case client := <-h.register:
			id := client.session.AccountID
			conns, ok := h.clients[id]
			if !ok {
				conns = make(map[*Client]struct{})
				h.clients[id] = conns
			}
			conns[client] = struct{}{}
			metrics.WSClients.Inc()
			h.logger.Debug(ctx, "ws client connected", "user_id", id, "connections", len(conns))

			if len(conns) == 1 {
				h.sendPresence(client.partnerID, id, presenceOnline)
			}
			if client.partnerID != "" && len(h.clients[client.partnerID]) > 0 {
				client.sendEvent(EventTypePresence, "", PresencePayload{UserID: client.partnerID, Status: presenceOnline})
			}

		case client := <-h.unregister:
			id := client.session.AccountID
			conns := h.clients[id]
			if _, ok := conns[client]; !ok {
				continue
			}
			delete(conns, client)
			metrics.WSClients.Dec()
			h.logger.Debug(ctx, "ws client disconnected", "user_id", id, "connections", len(conns))

			if len(conns) == 0 {
				delete(h.clients, id)
				h.sendPresence(client.partnerID, id, presenceOffline)
			}

		case <-ctx.Done():
			for _, conns := range h.clients {
				for client := range conns {
					client.Close()
				}
			}
			return
		}
	}
}

// sendPresence tells every connection of accountID that userID changed
// status.
func (h *Hub) sendPresence(accountID, userID, status string) {
	if accountID == "" {
		return
	}
	for client := range h.clients[accountID] {
		client.sendEvent(EventTypePresence, "", PresencePayload{UserID: userID, Status: status})
	}
}

// join and leave are no-ops once Run has returned.
func (h *Hub) join(c *Client) {
	select {
	case h.register <- c:
	case <-h.stopped:
		c.Close()
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stopped:
	}
}
