package realtime

import (
	"context"
	"time"
)

const (
	EventConnected    = "connected"
	EventNotification = "notification"
)

// Event is one named message received over a push channel.
type Event struct {
	Name string
	Data []byte
}

// Transport opens push channels. Implementations must not reconnect on their
// own; every reconnect decision belongs to the Supervisor.
type Transport interface {
	// Dial blocks until the channel is established or fails. A refused
	// credential is reported as *AuthError, anything else as
	// *TransportError.
	Dial(ctx context.Context, credential string) (Stream, error)
}

// Stream is a live push channel.
type Stream interface {
	// Next blocks for the next event. Any error ends the stream.
	Next(ctx context.Context) (Event, error)
	Close() error
}

// TokenSource supplies the bearer credential for the current identity.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a fixed credential.
type StaticToken string

func (t StaticToken) Token() (string, error) {
	if t == "" {
		return "", ErrNoCredential
	}
	return string(t), nil
}

// RetryDelay returns how long to wait before the given reconnect attempt
// (1-based).
type RetryDelay func(attempt int) time.Duration

// ExponentialDelay doubles base for every attempt, capped at max.
func ExponentialDelay(base, max time.Duration) RetryDelay {
	return func(attempt int) time.Duration {
		if base <= 0 {
			return 0
		}
		delay := base
		for i := 1; i < attempt; i++ {
			delay *= 2
			if delay >= max {
				return max
			}
		}
		if delay > max {
			return max
		}
		return delay
	}
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
