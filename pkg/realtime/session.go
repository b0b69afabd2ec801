package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
)

// TokenHolder is a mutable TokenSource shared by the REST client and the
// push channel of one session.
type TokenHolder struct {
	mu    sync.RWMutex
	token string
}

func (h *TokenHolder) Set(token string) {
	h.mu.Lock()
	h.token = token
	h.mu.Unlock()
}

func (h *TokenHolder) Token() (string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.token == "" {
		return "", ErrNoCredential
	}
	return h.token, nil
}

// Session binds an identity to the store and the supervisor. It is what a
// UI layer talks to: login/logout drive connect/disconnect, commands go to
// the server first and then to the store.
type Session struct {
	api        NotificationAPI
	tokens     *TokenHolder
	store      *Store
	sync       *Synchronizer
	supervisor *Supervisor
	logger     *slog.Logger
	onEvent    EventHandler

	// identity serializes Login and Logout. epoch changes on every
	// identity switch or logout so a login that lost the race drops its
	// late count and connect.
	identity sync.Mutex
	epoch    uint64

	mu     sync.Mutex
	userID string
}

// SessionOption configures a Session.
type SessionOption func(*sessionConfig)

type sessionConfig struct {
	logger     *slog.Logger
	onEvent    EventHandler
	supervisor []Option
}

func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(c *sessionConfig) { c.logger = l }
}

// OnNotification registers a callback for every newly applied push event.
func OnNotification(fn EventHandler) SessionOption {
	return func(c *sessionConfig) { c.onEvent = fn }
}

// WithSupervisorOptions forwards options to the underlying Supervisor.
func WithSupervisorOptions(opts ...Option) SessionOption {
	return func(c *sessionConfig) { c.supervisor = append(c.supervisor, opts...) }
}

// NewSession assembles a session from its collaborators. tokens must be the
// same holder the api uses for its bearer header.
func NewSession(api NotificationAPI, transport Transport, tokens *TokenHolder, opts ...SessionOption) *Session {
	cfg := sessionConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	store := NewStore()
	synchronizer := NewSynchronizer(api, store, cfg.logger)
	supOpts := append([]Option{WithLogger(cfg.logger)}, cfg.supervisor...)

	return &Session{
		api:        api,
		tokens:     tokens,
		store:      store,
		sync:       synchronizer,
		supervisor: NewSupervisor(transport, tokens, store, synchronizer, supOpts...),
		logger:     cfg.logger,
		onEvent:    cfg.onEvent,
	}
}

// TransportKind selects the push channel flavour for NewHTTPSession.
type TransportKind string

const (
	TransportSSE       TransportKind = "sse"
	TransportWebSocket TransportKind = "websocket"
)

// NewHTTPSession wires a session against a server at baseURL.
func NewHTTPSession(baseURL string, kind TransportKind, opts ...SessionOption) *Session {
	tokens := &TokenHolder{}
	api := NewAPIClient(baseURL, tokens)

	var transport Transport
	switch kind {
	case TransportWebSocket:
		transport = NewWebSocketTransport(baseURL, nil)
	default:
		transport = NewSSETransport(baseURL, &http.Client{})
	}
	return NewSession(api, transport, tokens, opts...)
}

// Login switches the session to userID. A different identity clears the
// store and refreshes the count before the channel is opened. It reports
// whether a new channel was started; a login overtaken by another Login or
// Logout while fetching the count starts nothing.
func (s *Session) Login(ctx context.Context, userID, token string) bool {
	s.identity.Lock()
	changed := s.UserID() != userID
	if changed {
		s.supervisor.Disconnect()
		s.store.Clear()
		s.setUserID(userID)
		s.epoch++
	}
	s.tokens.Set(token)
	epoch := s.epoch
	s.identity.Unlock()

	var count int
	var err error
	if changed {
		count, err = s.sync.Fetch(ctx)
	}

	s.identity.Lock()
	defer s.identity.Unlock()
	if s.epoch != epoch {
		s.logger.Debug("Dropping superseded login", "user", userID)
		return false
	}
	if changed && err == nil {
		s.store.SetUnreadCount(count)
	}
	return s.supervisor.Connect(userID, s.onEvent)
}

// Logout disconnects and wipes all local state.
func (s *Session) Logout() {
	s.identity.Lock()
	defer s.identity.Unlock()

	s.epoch++
	s.supervisor.Disconnect()
	s.store.Clear()
	s.tokens.Set("")
	s.setUserID("")
}

// MarkRead marks id on the server, then locally, then re-synchronizes the
// counter. Nothing changes locally if the server call fails.
func (s *Session) MarkRead(ctx context.Context, id string) error {
	if err := s.api.MarkRead(ctx, id); err != nil {
		return err
	}
	s.store.MarkRead(id)
	_ = s.sync.Refresh(ctx)
	return nil
}

func (s *Session) MarkAllRead(ctx context.Context) error {
	if err := s.api.MarkAllRead(ctx); err != nil {
		return err
	}
	s.store.MarkAllRead()
	return nil
}

// OpenPanel performs the windowed history fetch and replaces the visible
// list with the first page.
func (s *Session) OpenPanel(ctx context.Context, size int) error {
	list, err := s.api.ListNotifications(ctx, 0, size)
	if err != nil {
		return err
	}
	s.store.ReplaceWindow(list)
	return nil
}

func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

func (s *Session) setUserID(userID string) {
	s.mu.Lock()
	s.userID = userID
	s.mu.Unlock()
}

func (s *Session) Snapshot() Snapshot                  { return s.store.Snapshot() }
func (s *Session) Subscribe(fn func(Snapshot)) func() { return s.store.Subscribe(fn) }
func (s *Session) State() ConnectionState              { return s.supervisor.State() }

// Close shuts the supervisor down; the session cannot be reused.
func (s *Session) Close() {
	s.supervisor.Close()
}
