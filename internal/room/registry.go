// Package room tracks which live sessions are in which drawing room.
package room

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Capacity is the maximum number of live sessions per room.
const Capacity = 2

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is full")
)

// Store answers whether a room has been created.
type Store interface {
	RoomExists(ctx context.Context, roomID string) (bool, error)
}

// Member 방에 접속 중인 세션
type Member struct {
	SessionID string
	UserID    string
	Username  string
}

// JoinResult describes a successful admission.
type JoinResult struct {
	// Members is the room's membership after the join, in join order.
	Members []Member
	// Rejoined is set when the session was already in the room.
	Rejoined bool
	// Previous is the room the session left to join this one, if any.
	Previous string
	// PreviousMembers are the sessions still in Previous.
	PreviousMembers []Member
}

// Stats 레지스트리 통계
type Stats struct {
	Rooms    int
	Sessions int
}

type liveRoom struct {
	members []Member
}

// Registry is the process-wide membership table.
type Registry struct {
	store  Store
	logger *zap.Logger

	mu       sync.RWMutex
	rooms    map[string]*liveRoom
	sessions map[string]string // sessionID -> roomID

	locks *lockArena
}

// NewRegistry creates an empty registry backed by store.
func NewRegistry(store Store, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		store:    store,
		logger:   logger.Named("room"),
		rooms:    make(map[string]*liveRoom),
		sessions: make(map[string]string),
		locks:    newLockArena(),
	}
}

// Join admits m to roomID. The existence check, the capacity check and the
// insert run under the room's lock, so two concurrent joins can never both
// take the last seat. A session already in another room is moved.
func (r *Registry) Join(ctx context.Context, roomID string, m Member) (JoinResult, error) {
	unlock := r.locks.lock(roomID)
	defer unlock()

	r.mu.RLock()
	current, inRoom := r.sessions[m.SessionID]
	r.mu.RUnlock()
	if inRoom && current == roomID {
		return JoinResult{Members: r.Members(roomID), Rejoined: true}, nil
	}

	exists, err := r.store.RoomExists(ctx, roomID)
	if err != nil {
		return JoinResult{}, fmt.Errorf("lookup room %s: %w", roomID, err)
	}
	if !exists {
		return JoinResult{}, ErrRoomNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	lr := r.rooms[roomID]
	if lr != nil && len(lr.members) >= Capacity {
		r.logger.Debug("join rejected, room full",
			zap.String("room", roomID), zap.String("session", m.SessionID))
		return JoinResult{}, ErrRoomFull
	}

	var res JoinResult
	if prev, ok := r.sessions[m.SessionID]; ok {
		res.Previous = prev
		res.PreviousMembers, _ = r.removeLocked(prev, m.SessionID)
	}

	if lr == nil {
		lr = &liveRoom{}
		r.rooms[roomID] = lr
	}
	lr.members = append(lr.members, m)
	r.sessions[m.SessionID] = roomID
	res.Members = append([]Member(nil), lr.members...)

	r.logger.Info("session joined",
		zap.String("room", roomID),
		zap.String("session", m.SessionID),
		zap.String("username", m.Username),
		zap.Int("members", len(lr.members)))
	return res, nil
}

// Leave removes sessionID from roomID. It is idempotent; removed reports
// whether the session was actually there.
func (r *Registry) Leave(roomID, sessionID string) (remaining []Member, removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions[sessionID] != roomID {
		return r.membersLocked(roomID), false
	}
	return r.removeLocked(roomID, sessionID)
}

// LeaveAll removes sessionID from whatever room it is in.
func (r *Registry) LeaveAll(sessionID string) (roomID string, remaining []Member, removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.sessions[sessionID]
	if !ok {
		return "", nil, false
	}
	remaining, removed = r.removeLocked(roomID, sessionID)
	return roomID, remaining, removed
}

func (r *Registry) removeLocked(roomID, sessionID string) ([]Member, bool) {
	lr := r.rooms[roomID]
	if lr == nil {
		delete(r.sessions, sessionID)
		return nil, false
	}

	removed := false
	kept := lr.members[:0]
	for _, m := range lr.members {
		if m.SessionID == sessionID {
			removed = true
			continue
		}
		kept = append(kept, m)
	}
	lr.members = kept
	delete(r.sessions, sessionID)

	if len(lr.members) == 0 {
		delete(r.rooms, roomID)
	}
	if removed {
		r.logger.Info("session left",
			zap.String("room", roomID),
			zap.String("session", sessionID),
			zap.Int("members", len(lr.members)))
	}
	return append([]Member(nil), lr.members...), removed
}

// RoomOf returns the room sessionID is currently in.
func (r *Registry) RoomOf(sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.sessions[sessionID]
	return id, ok
}

// Members returns a snapshot of the room's members in join order.
func (r *Registry) Members(roomID string) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.membersLocked(roomID)
}

func (r *Registry) membersLocked(roomID string) []Member {
	lr := r.rooms[roomID]
	if lr == nil {
		return nil
	}
	return append([]Member(nil), lr.members...)
}

// Others returns the members of roomID except sessionID.
func (r *Registry) Others(roomID, sessionID string) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lr := r.rooms[roomID]
	if lr == nil {
		return nil
	}
	out := make([]Member, 0, len(lr.members))
	for _, m := range lr.members {
		if m.SessionID != sessionID {
			out = append(out, m)
		}
	}
	return out
}

// Stats returns the number of live rooms and sessions.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Stats{Rooms: len(r.rooms), Sessions: len(r.sessions)}
}
