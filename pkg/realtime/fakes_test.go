package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

// fakeStream is a Stream fed by the test.
type fakeStream struct {
	events    chan Event
	errs      chan error
	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		events: make(chan Event, 16),
		errs:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (f *fakeStream) Next(ctx context.Context) (Event, error) {
	select {
	case <-ctx.Done():
		return Event{}, &TransportError{Op: "read", Err: ctx.Err()}
	case <-f.closed:
		return Event{}, &TransportError{Op: "read", Err: errors.New("closed")}
	case err := <-f.errs:
		return Event{}, err
	case ev := <-f.events:
		return ev, nil
	}
}

func (f *fakeStream) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return f.closeErr
}

func (f *fakeStream) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeStream) push(t *testing.T, n Notification) {
	t.Helper()
	data, err := json.Marshal(n)
	if err != nil {
		t.Fatal(err)
	}
	f.events <- Event{Name: EventNotification, Data: data}
}

// fakeTransport hands out streams from dialFn and records the credentials it
// was dialed with.
type fakeTransport struct {
	mu      sync.Mutex
	dialFn  func(ctx context.Context, credential string) (Stream, error)
	creds   []string
	streams []*fakeStream
	dials   atomic.Int32
}

func (f *fakeTransport) Dial(ctx context.Context, credential string) (Stream, error) {
	f.dials.Add(1)
	f.mu.Lock()
	f.creds = append(f.creds, credential)
	dialFn := f.dialFn
	f.mu.Unlock()

	if dialFn != nil {
		return dialFn(ctx, credential)
	}
	s := newFakeStream()
	f.mu.Lock()
	f.streams = append(f.streams, s)
	f.mu.Unlock()
	return s, nil
}

func (f *fakeTransport) stream(i int) *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.streams) {
		return nil
	}
	return f.streams[i]
}

func (f *fakeTransport) streamCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.streams)
}

// fakeAPI implements NotificationAPI with func fields.
type fakeAPI struct {
	unreadCountFn func(context.Context) (int, error)
	listFn        func(context.Context, int, int) ([]Notification, error)
	markReadFn    func(context.Context, string) error
	markAllReadFn func(context.Context) error
	countCalls    atomic.Int32
}

func (f *fakeAPI) UnreadCount(ctx context.Context) (int, error) {
	f.countCalls.Add(1)
	if f.unreadCountFn == nil {
		return 0, nil
	}
	return f.unreadCountFn(ctx)
}

func (f *fakeAPI) ListNotifications(ctx context.Context, page, size int) ([]Notification, error) {
	if f.listFn == nil {
		return nil, nil
	}
	return f.listFn(ctx, page, size)
}

func (f *fakeAPI) MarkRead(ctx context.Context, id string) error {
	if f.markReadFn == nil {
		return nil
	}
	return f.markReadFn(ctx, id)
}

func (f *fakeAPI) MarkAllRead(ctx context.Context) error {
	if f.markAllReadFn == nil {
		return nil
	}
	return f.markAllReadFn(ctx)
}

type countingRefresher struct {
	calls atomic.Int32
}

func (r *countingRefresher) Refresh(context.Context) error {
	r.calls.Add(1)
	return nil
}

// signalRecorder collects supervisor signals.
type signalRecorder struct {
	mu      sync.Mutex
	signals []Signal
}

func (r *signalRecorder) record(s Signal) {
	r.mu.Lock()
	r.signals = append(r.signals, s)
	r.mu.Unlock()
}

func (r *signalRecorder) all() []Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Signal(nil), r.signals...)
}
