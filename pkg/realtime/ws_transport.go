package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

const DefaultWebSocketPath = "/ws"

// Frame is the JSON envelope used on the WebSocket channel.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// WebSocketTransport is the WebSocket variant of the push channel. The
// credential is carried in the query string, as with SSE.
type WebSocketTransport struct {
	baseURL string
	path    string
	dialer  *websocket.Dialer
}

func NewWebSocketTransport(baseURL string, dialer *websocket.Dialer) *WebSocketTransport {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &WebSocketTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		path:    DefaultWebSocketPath,
		dialer:  dialer,
	}
}

func (t *WebSocketTransport) Dial(ctx context.Context, credential string) (Stream, error) {
	u, err := url.Parse(t.baseURL + t.path)
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	q := u.Query()
	q.Set("token", credential)
	u.RawQuery = q.Encode()

	conn, resp, err := t.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				return nil, &AuthError{StatusCode: resp.StatusCode}
			}
			return nil, &TransportError{Op: "dial", Err: fmt.Errorf("handshake status %d: %w", resp.StatusCode, err)}
		}
		return nil, &TransportError{Op: "dial", Err: err}
	}
	return &wsStream{conn: conn}, nil
}

type wsStream struct {
	conn      *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

// Next blocks on the next frame. A frame that is not a valid envelope yields
// a *ParseError and leaves the connection usable.
func (s *wsStream) Next(ctx context.Context) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, &TransportError{Op: "read", Err: err}
	}
	_, msg, err := s.conn.ReadMessage()
	if err != nil {
		return Event{}, &TransportError{Op: "read", Err: err}
	}
	var frame Frame
	if err := json.Unmarshal(msg, &frame); err != nil {
		return Event{}, &ParseError{Err: err}
	}
	if frame.Event == "" {
		return Event{}, &ParseError{Err: fmt.Errorf("frame without event name")}
	}
	return Event{Name: frame.Event, Data: frame.Data}, nil
}

func (s *wsStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
