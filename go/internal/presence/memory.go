package presence

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

var ErrSessionClosed = errors.New("presence session closed")

// MemoryTransport keeps presence inside the process. All rooms share one
// lock; every change fans a fresh snapshot out to the room's sessions.
type MemoryTransport struct {
	mu    sync.Mutex
	rooms map[string]*memRoom
}

type memEntry struct {
	payload json.RawMessage
	owner   *memSession
}

type memRoom struct {
	members  map[string]memEntry
	sessions map[*memSession]struct{}
}

type memSession struct {
	t      *MemoryTransport
	roomID string
	key    string
	ch     chan Snapshot
	closed bool
}

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{rooms: make(map[string]*memRoom)}
}

func (t *MemoryTransport) Join(ctx context.Context, roomID, key string, payload []byte) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	room := t.rooms[roomID]
	if room == nil {
		room = &memRoom{members: make(map[string]memEntry), sessions: make(map[*memSession]struct{})}
		t.rooms[roomID] = room
	}
	s := &memSession{t: t, roomID: roomID, key: key, ch: make(chan Snapshot, 1)}
	room.sessions[s] = struct{}{}
	// same key replaces the previous registration
	room.members[key] = memEntry{payload: append(json.RawMessage(nil), payload...), owner: s}
	t.broadcastLocked(room)
	return s, nil
}

// Put sets a raw payload without a session, as a foreign client would.
func (t *MemoryTransport) Put(roomID, key string, payload []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	room := t.rooms[roomID]
	if room == nil {
		room = &memRoom{members: make(map[string]memEntry), sessions: make(map[*memSession]struct{})}
		t.rooms[roomID] = room
	}
	room.members[key] = memEntry{payload: append(json.RawMessage(nil), payload...)}
	t.broadcastLocked(room)
}

// Remove drops key from the room, as a presence timeout would.
func (t *MemoryTransport) Remove(roomID, key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	room := t.rooms[roomID]
	if room == nil {
		return
	}
	delete(room.members, key)
	t.broadcastLocked(room)
}

func (t *MemoryTransport) broadcastLocked(room *memRoom) {
	members := make(map[string]json.RawMessage, len(room.members))
	for k, e := range room.members {
		members[k] = e.payload
	}
	for s := range room.sessions {
		offer(s.ch, cloneSnapshot(members))
	}
}

func (s *memSession) Snapshots() <-chan Snapshot {
	return s.ch
}

func (s *memSession) Update(ctx context.Context, payload []byte) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	room := s.t.rooms[s.roomID]
	room.members[s.key] = memEntry{payload: append(json.RawMessage(nil), payload...), owner: s}
	s.t.broadcastLocked(room)
	return nil
}

func (s *memSession) Close(ctx context.Context) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	room := s.t.rooms[s.roomID]
	delete(room.sessions, s)
	if e, ok := room.members[s.key]; ok && e.owner == s {
		delete(room.members, s.key)
	}
	close(s.ch)
	s.t.broadcastLocked(room)
	if len(room.sessions) == 0 && len(room.members) == 0 {
		delete(s.t.rooms, s.roomID)
	}
	return nil
}
