// room/room.go
package room

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/mbreuer/reaktor/sim"
)

// Capacity is the fixed number of seats per room, matching the fixed role set.
const Capacity = 4

// Player is one seated occupant of a room. Role stays empty until the room
// fills and roles are drawn.
type Player struct {
	SessionID string
	Nickname  string
	Role      sim.Role
}

// Room is one isolated game session. Players are kept in join order. The room
// is exclusively owned by the Manager; everything else reaches it by code.
type Room struct {
	Code         string
	Players      []*Player
	State        *sim.State
	CreatedAt    time.Time
	LastActivity time.Time
	playerMutex  sync.RWMutex
}

func newRoom(code string, now time.Time) *Room {
	return &Room{
		Code:         code,
		State:        sim.NewState(),
		CreatedAt:    now,
		LastActivity: now,
	}
}

// Touch records activity so the reaper leaves the room alone.
func (r *Room) Touch(now time.Time) {
	r.LastActivity = now
}

func (r *Room) IsFull() bool {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()
	return len(r.Players) >= Capacity
}

// HasNickname reports whether any seated player already holds the nickname.
// The comparison is case-sensitive.
func (r *Room) HasNickname(nickname string) bool {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()

	for _, p := range r.Players {
		if p.Nickname == nickname {
			return true
		}
	}
	return false
}

// AddPlayer seats a player at the end of the join order. The caller checks
// capacity and nickname uniqueness first.
func (r *Room) AddPlayer(sessionID, nickname string) *Player {
	r.playerMutex.Lock()
	defer r.playerMutex.Unlock()

	p := &Player{SessionID: sessionID, Nickname: nickname}
	r.Players = append(r.Players, p)
	return p
}

// RemovePlayer unseats the player bound to the session, preserving the join
// order of the rest. Returns the removed player, or nil if not seated.
func (r *Room) RemovePlayer(sessionID string) *Player {
	r.playerMutex.Lock()
	defer r.playerMutex.Unlock()

	for i, p := range r.Players {
		if p.SessionID == sessionID {
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			return p
		}
	}
	return nil
}

// Player returns the seated player bound to the session.
func (r *Room) Player(sessionID string) (*Player, bool) {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()

	for _, p := range r.Players {
		if p.SessionID == sessionID {
			return p, true
		}
	}
	return nil, false
}

// SessionIDs returns a copy of the seated session IDs in join order
// (thread-safe, for broadcasting).
func (r *Room) SessionIDs() []string {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()

	ids := make([]string, 0, len(r.Players))
	for _, p := range r.Players {
		ids = append(ids, p.SessionID)
	}
	return ids
}

// Roster returns a copy of the seated players in join order.
func (r *Room) Roster() []*Player {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()

	return append([]*Player(nil), r.Players...)
}

// PlayerCount returns the number of seated players.
func (r *Room) PlayerCount() int {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()
	return len(r.Players)
}

// Manager is the process-wide registry mapping room code to room. It owns
// room creation (including code generation) and removal; per-room mutation is
// serialized by the game service above it.
type Manager struct {
	rooms map[string]*Room
	mutex sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		rooms: make(map[string]*Room),
	}
}

// CreateRoom allocates a room under a fresh code and registers it.
func (m *Manager) CreateRoom(now time.Time) *Room {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	code := m.generateCode()
	room := newRoom(code, now)
	m.rooms[code] = room
	return room
}

// GetRoom looks a room up by code. Codes are case-insensitive on input.
func (m *Manager) GetRoom(code string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[NormalizeCode(code)]
	return room, exists
}

// RemoveRoom drops a room from the registry.
func (m *Manager) RemoveRoom(code string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.rooms, NormalizeCode(code))
}

// SweepInactive removes every room whose last activity is older than maxIdle,
// regardless of occupancy, and returns the evicted rooms so the caller can
// release the players bound to them.
func (m *Manager) SweepInactive(maxIdle time.Duration, now time.Time) []*Room {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var evicted []*Room
	for code, room := range m.rooms {
		if now.Sub(room.LastActivity) > maxIdle {
			delete(m.rooms, code)
			evicted = append(evicted, room)
		}
	}
	return evicted
}

// Count returns the number of registered rooms.
func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

// Codes returns the codes of all registered rooms.
func (m *Manager) Codes() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	codes := make([]string, 0, len(m.rooms))
	for code := range m.rooms {
		codes = append(codes, code)
	}
	return codes
}

// NormalizeCode upper-cases a client-supplied room code before lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// generateCode draws 4-hex-character codes until one is unused. Uniqueness is
// resolved here, not by construction. Caller holds the write lock.
func (m *Manager) generateCode() string {
	for {
		raw := make([]byte, 2)
		rand.Read(raw)
		code := strings.ToUpper(hex.EncodeToString(raw))

		if _, exists := m.rooms[code]; !exists {
			return code
		}
	}
}
