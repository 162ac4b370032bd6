package ws

import (
	"context"

	"pulse/internal/logger"
	"pulse/internal/metrics"
)

// Hub maintains the set of active subscriber connections and fans broadcast
// messages out to them. Slow clients are dropped rather than blocking the
// broadcast path.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run processes registrations and broadcasts until the context is
// cancelled.
func (h *Hub) Run(ctx context.Context) {
	log := logger.WithComponent("ws_hub")

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			metrics.WebsocketClients.Set(0)
			return

		case client := <-h.register:
			h.clients[client] = true
			metrics.WebsocketClients.Set(float64(len(h.clients)))
			log.Debug().Str("remote_addr", client.conn.RemoteAddr().String()).Msg("subscriber registered")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.WebsocketClients.Set(float64(len(h.clients)))
				log.Debug().Str("remote_addr", client.conn.RemoteAddr().String()).Msg("subscriber unregistered")
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Send buffer full: drop the client, not the message.
					delete(h.clients, client)
					close(client.send)
				}
			}
			metrics.WebsocketClients.Set(float64(len(h.clients)))
		}
	}
}

// Send queues a message for fan-out. Non-blocking: if the hub's broadcast
// buffer is full the message is dropped, matching the no-delivery-guarantee
// contract.
func (h *Hub) Send(data []byte) {
	select {
	case h.broadcast <- data:
	default:
	}
}
