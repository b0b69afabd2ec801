package realtime

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countFunc func(context.Context) (int, error)

func (f countFunc) UnreadCount(ctx context.Context) (int, error) { return f(ctx) }

func TestSynchronizer_Refresh(t *testing.T) {
	store := NewStore()
	synchronizer := NewSynchronizer(countFunc(func(context.Context) (int, error) { return 5, nil }), store, quietLogger())

	require.NoError(t, synchronizer.Refresh(context.Background()))
	assert.Equal(t, 5, store.Snapshot().UnreadCount)
}

func TestSynchronizer_RefreshFailureKeepsCount(t *testing.T) {
	store := NewStore()
	store.SetUnreadCount(2)
	synchronizer := NewSynchronizer(countFunc(func(context.Context) (int, error) { return 0, errors.New("boom") }), store, quietLogger())

	assert.Error(t, synchronizer.Refresh(context.Background()))
	assert.Equal(t, 2, store.Snapshot().UnreadCount)
}

func newTestSession(api *fakeAPI, tr *fakeTransport, opts ...SessionOption) *Session {
	base := []SessionOption{
		WithSessionLogger(quietLogger()),
		WithSupervisorOptions(WithRetryDelay(func(int) time.Duration { return 0 })),
	}
	return NewSession(api, tr, &TokenHolder{}, append(base, opts...)...)
}

func TestTokenHolder(t *testing.T) {
	var h TokenHolder
	_, err := h.Token()
	assert.ErrorIs(t, err, ErrNoCredential)

	h.Set("abc")
	tok, err := h.Token()
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)
}

func TestSession_LoginRefreshesThenConnects(t *testing.T) {
	api := &fakeAPI{unreadCountFn: func(context.Context) (int, error) { return 3, nil }}
	tr := &fakeTransport{}
	s := newTestSession(api, tr)
	defer s.Close()

	require.True(t, s.Login(context.Background(), "u1", "tok-1"))
	assert.Equal(t, 3, s.Snapshot().UnreadCount)
	assert.Equal(t, "u1", s.UserID())

	require.Eventually(t, func() bool { return s.State().Phase == Open }, waitFor, tick)
	tr.mu.Lock()
	assert.Equal(t, []string{"tok-1"}, tr.creds)
	tr.mu.Unlock()

	assert.False(t, s.Login(context.Background(), "u1", "tok-1"), "same identity keeps the channel")
}

func TestSession_IdentitySwitchClearsStore(t *testing.T) {
	api := &fakeAPI{}
	tr := &fakeTransport{}
	var pushed atomic.Int32
	s := newTestSession(api, tr, OnNotification(func(Notification) { pushed.Add(1) }))
	defer s.Close()

	require.True(t, s.Login(context.Background(), "u1", "tok-1"))
	require.Eventually(t, func() bool { return s.State().Phase == Open }, waitFor, tick)
	tr.stream(0).push(t, note("for-u1"))
	require.Eventually(t, func() bool { return len(s.Snapshot().Notifications) == 1 }, waitFor, tick)
	assert.Equal(t, int32(1), pushed.Load())

	require.True(t, s.Login(context.Background(), "u2", "tok-2"))
	assert.Empty(t, s.Snapshot().Notifications)
	assert.Equal(t, "u2", s.State().UserID)

	require.Eventually(t, func() bool { return tr.streamCount() == 2 }, waitFor, tick)
	tr.mu.Lock()
	assert.Equal(t, "tok-2", tr.creds[len(tr.creds)-1])
	tr.mu.Unlock()
}

func TestSession_Logout(t *testing.T) {
	api := &fakeAPI{unreadCountFn: func(context.Context) (int, error) { return 9, nil }}
	tr := &fakeTransport{}
	s := newTestSession(api, tr)
	defer s.Close()

	require.True(t, s.Login(context.Background(), "u1", "tok"))
	require.Eventually(t, func() bool { return s.State().Phase == Open }, waitFor, tick)

	s.Logout()

	assert.Equal(t, Idle, s.State().Phase)
	assert.Equal(t, Snapshot{Notifications: []Notification{}, UnreadCount: 0}, s.Snapshot())
	assert.Empty(t, s.UserID())
	assert.True(t, tr.stream(0).isClosed())
}

func TestSession_MarkRead(t *testing.T) {
	var marked []string
	api := &fakeAPI{
		unreadCountFn: func(context.Context) (int, error) { return 0, nil },
		markReadFn: func(_ context.Context, id string) error {
			marked = append(marked, id)
			return nil
		},
	}
	s := newTestSession(api, &fakeTransport{})
	defer s.Close()
	s.store.ApplyIncoming(note("a"))
	s.store.SetUnreadCount(5)

	require.NoError(t, s.MarkRead(context.Background(), "a"))

	snap := s.Snapshot()
	assert.True(t, snap.Notifications[0].Read)
	assert.Equal(t, 0, snap.UnreadCount, "count comes from the server after marking")
	assert.Equal(t, []string{"a"}, marked)
	assert.Equal(t, int32(1), api.countCalls.Load())
}

func TestSession_MarkReadServerFailureChangesNothing(t *testing.T) {
	api := &fakeAPI{markReadFn: func(context.Context, string) error { return &HTTPError{StatusCode: 404} }}
	s := newTestSession(api, &fakeTransport{})
	defer s.Close()
	s.store.ApplyIncoming(note("a"))

	err := s.MarkRead(context.Background(), "a")
	require.Error(t, err)

	snap := s.Snapshot()
	assert.False(t, snap.Notifications[0].Read)
	assert.Equal(t, 1, snap.UnreadCount)
	assert.Equal(t, int32(0), api.countCalls.Load())
}

func TestSession_MarkAllRead(t *testing.T) {
	api := &fakeAPI{}
	s := newTestSession(api, &fakeTransport{})
	defer s.Close()
	s.store.ApplyIncoming(note("a"))
	s.store.ApplyIncoming(note("b"))

	require.NoError(t, s.MarkAllRead(context.Background()))
	assert.Equal(t, 0, s.Snapshot().UnreadCount)

	api.markAllReadFn = func(context.Context) error { return errors.New("offline") }
	s.store.ApplyIncoming(note("c"))
	assert.Error(t, s.MarkAllRead(context.Background()))
	assert.Equal(t, 1, s.Snapshot().UnreadCount)
}

func TestSession_OpenPanel(t *testing.T) {
	var gotPage, gotSize int
	api := &fakeAPI{
		listFn: func(_ context.Context, page, size int) ([]Notification, error) {
			gotPage, gotSize = page, size
			return []Notification{note("x"), note("y")}, nil
		},
	}
	s := newTestSession(api, &fakeTransport{})
	defer s.Close()
	s.store.ApplyIncoming(note("pushed"))

	require.NoError(t, s.OpenPanel(context.Background(), 10))
	assert.Equal(t, 0, gotPage)
	assert.Equal(t, 10, gotSize)
	assert.Equal(t, []string{"x", "y"}, ids(s.Snapshot().Notifications))

	api.listFn = func(context.Context, int, int) ([]Notification, error) { return nil, errors.New("down") }
	assert.Error(t, s.OpenPanel(context.Background(), 10))
	assert.Equal(t, []string{"x", "y"}, ids(s.Snapshot().Notifications))
}

func TestSession_SubscribeSeesUpdates(t *testing.T) {
	s := newTestSession(&fakeAPI{}, &fakeTransport{})
	defer s.Close()

	var last Snapshot
	unsubscribe := s.Subscribe(func(snap Snapshot) { last = snap })
	defer unsubscribe()

	s.store.ApplyIncoming(note("a"))
	assert.Equal(t, 1, last.UnreadCount)
}

// blockingFirstCount holds the first UnreadCount call until release is closed
// and answers it with stale; later calls return fresh.
func blockingFirstCount(started chan<- struct{}, release <-chan struct{}, stale, fresh int) func(context.Context) (int, error) {
	var calls atomic.Int32
	return func(context.Context) (int, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
			return stale, nil
		}
		return fresh, nil
	}
}

func TestSession_OverlappingLoginsKeepLatestIdentity(t *testing.T) {
	started, release := make(chan struct{}), make(chan struct{})
	api := &fakeAPI{unreadCountFn: blockingFirstCount(started, release, 7, 2)}
	tr := &fakeTransport{}
	s := newTestSession(api, tr)
	defer s.Close()

	first := make(chan bool, 1)
	go func() { first <- s.Login(context.Background(), "u1", "tok-1") }()
	<-started

	require.True(t, s.Login(context.Background(), "u2", "tok-2"))
	require.Eventually(t, func() bool { return s.State().Phase == Open }, waitFor, tick)

	close(release)
	assert.False(t, <-first, "the overtaken login starts nothing")

	assert.Equal(t, "u2", s.UserID())
	state := s.State()
	assert.Equal(t, "u2", state.UserID)
	assert.Equal(t, Open, state.Phase)
	assert.Equal(t, 2, s.Snapshot().UnreadCount)

	tr.mu.Lock()
	assert.Equal(t, []string{"tok-2"}, tr.creds)
	tr.mu.Unlock()
	assert.False(t, tr.stream(0).isClosed())
}

func TestSession_LogoutDuringLoginLeavesIdle(t *testing.T) {
	started, release := make(chan struct{}), make(chan struct{})
	api := &fakeAPI{unreadCountFn: blockingFirstCount(started, release, 7, 7)}
	tr := &fakeTransport{}
	s := newTestSession(api, tr)
	defer s.Close()

	first := make(chan bool, 1)
	go func() { first <- s.Login(context.Background(), "u1", "tok-1") }()
	<-started

	s.Logout()
	close(release)

	assert.False(t, <-first)
	assert.Equal(t, Idle, s.State().Phase)
	assert.Empty(t, s.UserID())
	assert.Equal(t, 0, s.Snapshot().UnreadCount)
	assert.Equal(t, int32(0), tr.dials.Load())
}
