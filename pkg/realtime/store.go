package realtime

import "sync"

// Snapshot is an immutable copy of the store contents.
type Snapshot struct {
	Notifications []Notification
	UnreadCount   int
}

// Store holds the visible notifications (newest first) and a separately
// tracked unread counter. The counter is an estimate between
// synchronizations: push deliveries bump it optimistically and SetUnreadCount
// overwrites it with the server's value.
type Store struct {
	mu            sync.Mutex
	notifications []Notification
	index         map[string]int
	unreadCount   int

	listenerMu sync.Mutex
	listeners  map[int]func(Snapshot)
	nextID     int
}

func NewStore() *Store {
	return &Store{
		index:     make(map[string]int),
		listeners: make(map[int]func(Snapshot)),
	}
}

// ApplyIncoming prepends n. A notification whose id is already present is
// ignored and false is returned.
func (s *Store) ApplyIncoming(n Notification) bool {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	s.mu.Lock()
	if _, exists := s.index[n.ID]; exists {
		s.mu.Unlock()
		return false
	}
	s.notifications = append([]Notification{n}, s.notifications...)
	s.reindex()
	if !n.Read {
		s.unreadCount++
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
	return true
}

// MarkRead flips the entry to read. The counter is decremented as a local
// hint only; the next synchronization replaces it.
func (s *Store) MarkRead(id string) bool {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	s.mu.Lock()
	i, ok := s.index[id]
	if !ok || s.notifications[i].Read {
		s.mu.Unlock()
		return false
	}
	s.notifications[i].Read = true
	if s.unreadCount > 0 {
		s.unreadCount--
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
	return true
}

func (s *Store) MarkAllRead() {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	s.mu.Lock()
	for i := range s.notifications {
		s.notifications[i].Read = true
	}
	s.unreadCount = 0
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
}

// ReplaceWindow swaps the visible list for a fetched page. No merge with
// previously pushed entries is attempted and the counter is left alone.
func (s *Store) ReplaceWindow(list []Notification) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	s.mu.Lock()
	s.notifications = make([]Notification, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for _, n := range list {
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		s.notifications = append(s.notifications, n)
	}
	s.reindex()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
}

// SetUnreadCount overwrites the counter with the authoritative value.
func (s *Store) SetUnreadCount(n int) {
	if n < 0 {
		n = 0
	}

	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	s.mu.Lock()
	s.unreadCount = n
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
}

// Clear drops everything; used on logout and identity switch.
func (s *Store) Clear() {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	s.mu.Lock()
	s.notifications = nil
	s.index = make(map[string]int)
	s.unreadCount = 0
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every mutation, in
// mutation order. The returned func removes the subscription. fn must not
// subscribe or unsubscribe from inside the callback.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.listenerMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenerMu.Unlock()

	return func() {
		s.listenerMu.Lock()
		delete(s.listeners, id)
		s.listenerMu.Unlock()
	}
}

func (s *Store) reindex() {
	s.index = make(map[string]int, len(s.notifications))
	for i, n := range s.notifications {
		s.index[n.ID] = i
	}
}

func (s *Store) snapshotLocked() Snapshot {
	list := make([]Notification, len(s.notifications))
	copy(list, s.notifications)
	return Snapshot{Notifications: list, UnreadCount: s.unreadCount}
}

// publish must be called with listenerMu held.
func (s *Store) publish(snap Snapshot) {
	for _, fn := range s.listeners {
		fn(snap)
	}
}
