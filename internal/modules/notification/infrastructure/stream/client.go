package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// DefaultHeartbeat is how often an idle SSE channel gets a comment line.
	DefaultHeartbeat = 15 * time.Second

	sendBuffer     = 32
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Client is one live push channel.
type Client struct {
	hub    *Hub
	userID uuid.UUID
	kind   string
	remote string
	send   chan Message

	conn *websocket.Conn
}

func newClient(hub *Hub, userID uuid.UUID, kind, remote string) *Client {
	return &Client{
		hub:    hub,
		userID: userID,
		kind:   kind,
		remote: remote,
		send:   make(chan Message, sendBuffer),
	}
}

// Frame is the WebSocket envelope for one event.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func encodeFrame(m Message) ([]byte, error) {
	data := json.RawMessage(m.Data)
	if !json.Valid(m.Data) {
		quoted, err := json.Marshal(string(m.Data))
		if err != nil {
			return nil, err
		}
		data = quoted
	}
	return json.Marshal(Frame{Event: m.Event, Data: data})
}

// ServeSSE holds an event stream open for userID until the client goes away,
// the channel is replaced by a newer one, or the hub stops.
func ServeSSE(hub *Hub, w http.ResponseWriter, r *http.Request, userID uuid.UUID, heartbeat time.Duration) {
	rc := http.NewResponseController(w)
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}

	client := newClient(hub, userID, "sse", r.RemoteAddr)
	if !hub.Register(client) {
		http.Error(w, "notification stream unavailable", http.StatusServiceUnavailable)
		return
	}
	defer hub.Unregister(client)

	// The server-wide write timeout does not apply to a long-lived stream.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeSSE(w, Message{Event: EventConnected, Data: []byte("Connection established")}); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		log.Printf("[Stream] Streaming unsupported for user %s: %v", userID, err)
		return
	}

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case message, ok := <-client.send:
			if !ok {
				return
			}
			if err := writeSSE(w, message); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := io.WriteString(w, ": heartbeat\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeSSE(w io.Writer, m Message) error {
	var b strings.Builder
	fmt.Fprintf(&b, "event: %s\n", m.Event)
	for _, line := range strings.Split(string(m.Data), "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS middleware and the bearer credential.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWs upgrades the request and serves userID's channel over WebSocket.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Stream] WebSocket upgrade failed: %v", err)
		return
	}

	client := newClient(hub, userID, "websocket", conn.RemoteAddr().String())
	client.conn = conn
	client.send <- Message{Event: EventConnected, Data: []byte("Connection established")}
	if !hub.Register(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump only services control frames; clients never send data.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[Stream] WebSocket read error for user %s: %v", c.userID, err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			frame, err := encodeFrame(message)
			if err != nil {
				log.Printf("[Stream] Failed to encode frame: %v", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
