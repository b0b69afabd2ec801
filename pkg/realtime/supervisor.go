package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultMaxRetry    = 3
	DefaultLogInterval = 5 * time.Second
)

// Signal is the coarse connection status reported to consumers. Raw
// transport errors never cross the supervisor boundary.
type Signal string

const (
	SignalConnected         Signal = "connected"
	SignalDisconnected      Signal = "disconnected"
	SignalPermanentlyFailed Signal = "permanently-failed"
)

// EventHandler receives every notification applied to the store.
type EventHandler func(Notification)

// Refresher re-reads the authoritative unread count.
type Refresher interface {
	Refresh(ctx context.Context) error
}

type Option func(*Supervisor)

func WithMaxRetry(n int) Option {
	return func(s *Supervisor) {
		if n > 0 {
			s.maxRetry = n
		}
	}
}

func WithRetryDelay(d RetryDelay) Option {
	return func(s *Supervisor) { s.retryDelay = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Supervisor) { s.logger = l }
}

func WithLogInterval(d time.Duration) Option {
	return func(s *Supervisor) { s.throttle.interval = d }
}

// WithSignalHandler registers fn for connection status changes. fn runs on
// the supervisor's goroutine and must not call Close.
func WithSignalHandler(fn func(Signal)) Option {
	return func(s *Supervisor) { s.onSignal = fn }
}

// Supervisor owns at most one push channel at a time and drives its
// ConnectionState. All reconnect decisions are made here; transports never
// retry by themselves.
type Supervisor struct {
	transport Transport
	tokens    TokenSource
	store     *Store
	refresher Refresher

	logger     *slog.Logger
	maxRetry   int
	retryDelay RetryDelay
	onSignal   func(Signal)
	now        func() time.Time
	throttle   logThrottle

	// inFlight rejects a Connect that overlaps another one.
	inFlight atomic.Bool

	mu     sync.Mutex
	state  ConnectionState
	cancel context.CancelFunc
	stream Stream
	done   chan struct{}

	// gen identifies the current run; events from older runs are dropped.
	gen atomic.Uint64
	// applyMu orders event application against identity changes.
	applyMu sync.Mutex
}

func NewSupervisor(transport Transport, tokens TokenSource, store *Store, refresher Refresher, opts ...Option) *Supervisor {
	s := &Supervisor{
		transport:  transport,
		tokens:     tokens,
		store:      store,
		refresher:  refresher,
		logger:     slog.Default(),
		maxRetry:   DefaultMaxRetry,
		retryDelay: ExponentialDelay(500*time.Millisecond, 10*time.Second),
		now:        time.Now,
		throttle:   logThrottle{interval: DefaultLogInterval},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a copy of the current connection state.
func (s *Supervisor) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect starts a channel for userID and returns immediately. It returns
// false when a channel for the same user is already connecting or open, when
// another Connect is in progress, or after Close. A channel owned by a
// different user is torn down first and released before the new one dials.
func (s *Supervisor) Connect(userID string, onEvent EventHandler) bool {
	if !s.inFlight.CompareAndSwap(false, true) {
		return false
	}
	defer s.inFlight.Store(false)

	s.mu.Lock()
	if s.state.Phase == Closed {
		s.mu.Unlock()
		return false
	}
	if s.state.Active() && s.state.UserID == userID {
		s.mu.Unlock()
		return false
	}

	prevDone := s.teardownLocked()
	if s.state.Active() {
		s.logger.Info("Switching push channel owner", "from", s.state.UserID, "to", userID)
		s.state = s.state.Reset()
	}
	next, err := s.state.Connect(userID)
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("Refusing connect", "error", err)
		return false
	}
	s.state = next
	gen := s.gen.Add(1)
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()

	s.barrier()
	go s.run(ctx, gen, userID, onEvent, prevDone, done)
	return true
}

// Disconnect tears down any channel and resets to Idle. It is always safe to
// call; the registered transport handle is closed before it returns even if
// closing reports an error.
func (s *Supervisor) Disconnect() {
	s.mu.Lock()
	if s.state.Phase == Closed {
		s.mu.Unlock()
		return
	}
	wasOpen := s.state.Phase == Open
	s.teardownLocked()
	s.gen.Add(1)
	s.state = s.state.Reset()
	s.mu.Unlock()

	s.barrier()
	if wasOpen {
		s.emit(SignalDisconnected)
	}
}

// Close shuts the supervisor down for good and waits for its goroutine.
func (s *Supervisor) Close() {
	s.mu.Lock()
	if s.state.Phase == Closed {
		s.mu.Unlock()
		return
	}
	done := s.teardownLocked()
	s.gen.Add(1)
	s.state = s.state.Shutdown()
	s.mu.Unlock()

	s.barrier()
	if done != nil {
		<-done
	}
}

func (s *Supervisor) run(ctx context.Context, gen uint64, userID string, onEvent EventHandler, prevDone <-chan struct{}, done chan struct{}) {
	defer close(done)
	if prevDone != nil {
		<-prevDone
	}

	for {
		if ctx.Err() != nil {
			return
		}

		stream, err := s.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			retry, ok := s.failed(gen, err)
			if !ok || waitWithContext(ctx, s.retryDelay(retry)) != nil {
				return
			}
			continue
		}

		if !s.opened(gen, stream) {
			s.closeStream(stream)
			return
		}
		s.logger.Info("Push channel open", "user_id", userID)

		s.refresh(ctx, gen)

		err = s.consume(ctx, gen, stream, onEvent)
		s.release(gen, stream)
		if ctx.Err() != nil {
			return
		}
		retry, ok := s.failed(gen, err)
		if !ok || waitWithContext(ctx, s.retryDelay(retry)) != nil {
			return
		}
	}
}

func (s *Supervisor) dial(ctx context.Context) (Stream, error) {
	token, err := s.tokens.Token()
	if err != nil {
		return nil, &AuthError{}
	}
	return s.transport.Dial(ctx, token)
}

func (s *Supervisor) consume(ctx context.Context, gen uint64, stream Stream, onEvent EventHandler) error {
	for {
		ev, err := stream.Next(ctx)
		if err != nil {
			var perr *ParseError
			if errors.As(err, &perr) {
				s.logThrottled("Dropping malformed frame", err)
				continue
			}
			return err
		}

		switch ev.Name {
		case EventConnected:
			s.logger.Debug("Push channel acknowledged", "data", string(ev.Data))
		case EventNotification:
			n, err := ParseNotification(ev.Data)
			if err != nil {
				s.logThrottled("Dropping malformed notification event", err)
				continue
			}
			s.deliver(gen, n, onEvent)
		}
	}
}

func (s *Supervisor) deliver(gen uint64, n Notification, onEvent EventHandler) {
	s.applyMu.Lock()
	if s.gen.Load() != gen {
		s.applyMu.Unlock()
		return
	}
	applied := s.store.ApplyIncoming(n)
	s.applyMu.Unlock()

	if applied && onEvent != nil {
		onEvent(n)
	}
}

// refresh runs under applyMu so a count fetched for a superseded run cannot
// land after Disconnect or an identity switch has returned.
func (s *Supervisor) refresh(ctx context.Context, gen uint64) {
	if s.refresher == nil {
		return
	}
	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	if s.gen.Load() != gen || ctx.Err() != nil {
		return
	}
	_ = s.refresher.Refresh(ctx)
}

func (s *Supervisor) opened(gen uint64, stream Stream) bool {
	s.mu.Lock()
	if s.gen.Load() != gen {
		s.mu.Unlock()
		return false
	}
	next, err := s.state.Opened()
	if err != nil {
		s.mu.Unlock()
		return false
	}
	s.state = next
	s.stream = stream
	s.mu.Unlock()

	s.emit(SignalConnected)
	return true
}

// failed applies a transport failure to the state machine. It returns the
// retry count to back off for and whether the run should keep going.
func (s *Supervisor) failed(gen uint64, err error) (int, bool) {
	s.mu.Lock()
	if s.gen.Load() != gen {
		s.mu.Unlock()
		return 0, false
	}

	wasOpen := s.state.Phase == Open
	var next ConnectionState
	var terr error
	if IsAuthError(err) {
		next, terr = s.state.AuthFailed(s.now())
	} else {
		next, terr = s.state.Failed(s.maxRetry, s.now())
	}
	if terr != nil {
		s.mu.Unlock()
		return 0, false
	}
	s.state = next
	s.logThrottled("Push channel error", err, "retry_count", next.RetryCount, "phase", next.Phase.String())

	if next.Phase == PermanentlyFailed {
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
		s.closeRegisteredLocked()
		s.mu.Unlock()
		s.logger.Warn("Push channel permanently failed", "user_id", next.UserID, "retry_count", next.RetryCount)
		s.emit(SignalPermanentlyFailed)
		return next.RetryCount, false
	}
	s.mu.Unlock()

	if wasOpen {
		s.emit(SignalDisconnected)
	}
	return next.RetryCount, true
}

// release closes stream and forgets it if it is still the registered one.
func (s *Supervisor) release(gen uint64, stream Stream) {
	s.mu.Lock()
	if s.stream == stream {
		s.stream = nil
	}
	s.mu.Unlock()
	s.closeStream(stream)
}

// teardownLocked cancels the current run and closes its stream. It returns
// the run's done channel, which stays registered so a successor run can wait
// for it before dialing.
func (s *Supervisor) teardownLocked() chan struct{} {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.closeRegisteredLocked()
	return s.done
}

func (s *Supervisor) closeRegisteredLocked() {
	if s.stream == nil {
		return
	}
	s.closeStream(s.stream)
	s.stream = nil
}

func (s *Supervisor) closeStream(stream Stream) {
	if err := stream.Close(); err != nil {
		s.logger.Debug("Closing push channel", "error", err)
	}
}

// barrier waits for any in-progress event application to finish so that no
// event of a superseded run lands after the caller returns.
func (s *Supervisor) barrier() {
	s.applyMu.Lock()
	s.applyMu.Unlock()
}

func (s *Supervisor) emit(sig Signal) {
	if s.onSignal != nil {
		s.onSignal(sig)
	}
}

func (s *Supervisor) logThrottled(msg string, err error, args ...any) {
	if !s.throttle.allow(s.now()) {
		return
	}
	var perr *ParseError
	if errors.As(err, &perr) {
		s.logger.Warn(msg, append([]any{"error", err}, args...)...)
		return
	}
	s.logger.Error(msg, append([]any{"error", err}, args...)...)
}

// logThrottle lets at most one diagnostic through per interval.
type logThrottle struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

func (t *logThrottle) allow(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}
