package stream

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/saransh1220/novel-notify/internal/modules/notification/domain"
)

const (
	EventConnected    = "connected"
	EventNotification = "notification"
)

var activeChannels = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "stream_active_channels",
	Help: "Live push channels held by this instance.",
})

// Message is one named event queued for a client.
type Message struct {
	Event string
	Data  []byte
}

type unicastMessage struct {
	userID  uuid.UUID
	message Message
	result  chan bool
}

// Hub owns the live push channels of this instance, at most one per user.
// A newer registration for the same user replaces and closes the older one.
// Every push is addressed to one user; broadcasts arrive as one stored
// notification per recipient.
type Hub struct {
	clients map[uuid.UUID]*Client

	unicast    chan unicastMessage
	register   chan *Client
	unregister chan *Client
	stats      chan chan domain.ConnectionStats

	stop     chan struct{}
	stopOnce sync.Once
}

func NewHub() *Hub {
	return &Hub{
		unicast:    make(chan unicastMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stats:      make(chan chan domain.ConnectionStats),

		clients: make(map[uuid.UUID]*Client),
		stop:    make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			if old, ok := h.clients[client.userID]; ok {
				h.drop(old)
				log.Printf("[Stream Hub] Replacing %s channel for user %s", old.kind, client.userID)
			}
			h.clients[client.userID] = client
			activeChannels.Set(float64(len(h.clients)))
			log.Printf("[Stream Hub] Client registered: %s (User: %s, %s)", client.remote, client.userID, client.kind)
		case client := <-h.unregister:
			if current, ok := h.clients[client.userID]; ok && current == client {
				h.drop(client)
				log.Printf("[Stream Hub] Client unregistered: %s (User: %s)", client.remote, client.userID)
			}
		case msg := <-h.unicast:
			client, ok := h.clients[msg.userID]
			delivered := ok && h.offer(client, msg.message)
			if msg.result != nil {
				msg.result <- delivered
			}
		case reply := <-h.stats:
			stats := domain.ConnectionStats{
				ActiveConnections: len(h.clients),
				ConnectedUsers:    make([]uuid.UUID, 0, len(h.clients)),
			}
			for userID := range h.clients {
				stats.ConnectedUsers = append(stats.ConnectedUsers, userID)
			}
			reply <- stats
		case <-h.stop:
			log.Println("[Stream Hub] Stopping hub")
			for _, client := range h.clients {
				h.drop(client)
			}
			return
		}
	}
}

// offer queues message without blocking; a client that cannot keep up is
// dropped.
func (h *Hub) offer(client *Client, message Message) bool {
	select {
	case client.send <- message:
		return true
	default:
		log.Printf("[Stream Hub] Dropping slow client for user %s", client.userID)
		h.drop(client)
		return false
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client.userID)
	close(client.send)
	activeChannels.Set(float64(len(h.clients)))
}

// Register adds client, replacing any existing channel of the same user. It
// returns false if the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	if h.stopped() {
		return false
	}
	select {
	case h.register <- client:
		return true
	case <-h.stop:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stop:
	}
}

// SendToUser queues message for userID and reports whether that user had a
// live channel that accepted it.
func (h *Hub) SendToUser(userID uuid.UUID, message Message) bool {
	if h.stopped() {
		return false
	}
	result := make(chan bool, 1)
	select {
	case h.unicast <- unicastMessage{userID: userID, message: message, result: result}:
	case <-h.stop:
		return false
	}
	select {
	case ok := <-result:
		return ok
	case <-h.stop:
		return false
	}
}

// Deliver pushes n to its owner as a notification event.
func (h *Hub) Deliver(n domain.Notification) bool {
	data, err := json.Marshal(n)
	if err != nil {
		log.Printf("[Stream Hub] Failed to encode notification %s: %v", n.ID, err)
		return false
	}
	return h.SendToUser(n.UserID, Message{Event: EventNotification, Data: data})
}

func (h *Hub) Stats() domain.ConnectionStats {
	if h.stopped() {
		return domain.ConnectionStats{ConnectedUsers: []uuid.UUID{}}
	}
	reply := make(chan domain.ConnectionStats, 1)
	select {
	case h.stats <- reply:
	case <-h.stop:
		return domain.ConnectionStats{ConnectedUsers: []uuid.UUID{}}
	}
	select {
	case stats := <-reply:
		return stats
	case <-h.stop:
		return domain.ConnectionStats{ConnectedUsers: []uuid.UUID{}}
	}
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
}

func (h *Hub) stopped() bool {
	select {
	case <-h.stop:
		return true
	default:
		return false
	}
}
