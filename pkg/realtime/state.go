package realtime

import (
	"fmt"
	"time"
)

// Phase is the lifecycle position of the single push channel.
type Phase int

const (
	Idle Phase = iota
	Connecting
	Open
	// Closed is reached only when the owning Supervisor is shut down.
	Closed
	PermanentlyFailed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	case PermanentlyFailed:
		return "permanently-failed"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// ConnectionState is the whole lifecycle of the push channel in one value.
// Transitions are pure: each method returns the next state and leaves the
// receiver untouched.
type ConnectionState struct {
	Phase      Phase
	UserID     string
	RetryCount int
	// LastError only throttles diagnostics.
	LastError time.Time
}

// Active reports whether a channel is being opened or is live.
func (c ConnectionState) Active() bool {
	return c.Phase == Connecting || c.Phase == Open
}

// Connect starts a fresh attempt for userID. The retry budget is reset.
func (c ConnectionState) Connect(userID string) (ConnectionState, error) {
	switch c.Phase {
	case Idle, PermanentlyFailed:
		return ConnectionState{Phase: Connecting, UserID: userID}, nil
	}
	return c, c.invalid("connect")
}

// Opened records a successful transport open.
func (c ConnectionState) Opened() (ConnectionState, error) {
	if c.Phase != Connecting {
		return c, c.invalid("open")
	}
	c.Phase = Open
	c.RetryCount = 0
	return c, nil
}

// Failed records a transport error or close. The channel goes back to
// Connecting with one more retry consumed, or to PermanentlyFailed once the
// budget of maxRetry attempts is spent.
func (c ConnectionState) Failed(maxRetry int, at time.Time) (ConnectionState, error) {
	if !c.Active() {
		return c, c.invalid("fail")
	}
	c.LastError = at
	c.RetryCount++
	if c.RetryCount >= maxRetry {
		c.RetryCount = maxRetry
		c.Phase = PermanentlyFailed
		return c, nil
	}
	c.Phase = Connecting
	return c, nil
}

// AuthFailed moves straight to PermanentlyFailed: the same credential will
// not be retried.
func (c ConnectionState) AuthFailed(at time.Time) (ConnectionState, error) {
	if !c.Active() {
		return c, c.invalid("auth-fail")
	}
	c.LastError = at
	c.Phase = PermanentlyFailed
	return c, nil
}

// Reset is the disconnect transition, legal from anywhere.
func (c ConnectionState) Reset() ConnectionState {
	return ConnectionState{Phase: Idle}
}

// Shutdown marks the owning supervisor as torn down.
func (c ConnectionState) Shutdown() ConnectionState {
	return ConnectionState{Phase: Closed}
}

func (c ConnectionState) invalid(event string) error {
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, event, c.Phase)
}
