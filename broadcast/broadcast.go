// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/mbreuer/reaktor/room"
	"github.com/mbreuer/reaktor/session"
)

var ErrRoomNotFound = errors.New("room not found")

// Broadcaster delivers framed messages to sessions, either one at a time or
// to every seated player of a room.
type Broadcaster interface {
	SendToSession(sessionID string, msgID uint16, data []byte) error
	BroadcastToRoom(roomCode string, msgID uint16, data []byte, exceptSessionID string) error
}

// RoomBroadcaster resolves room membership through the registry and delivers
// through the session manager.
type RoomBroadcaster struct {
	registry       *room.Manager
	sessionManager *session.Manager
}

func NewRoomBroadcaster(registry *room.Manager, sessionManager *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		registry:       registry,
		sessionManager: sessionManager,
	}
}

func (b *RoomBroadcaster) SendToSession(sessionID string, msgID uint16, data []byte) error {
	s, exists := b.sessionManager.Get(sessionID)
	if !exists {
		return nil
	}
	return s.Send(msgID, data)
}

// BroadcastToRoom sends to every seated player except exceptSessionID (pass
// empty to include everyone). Send failures skip the player; the connection's
// own read loop handles the cleanup.
func (b *RoomBroadcaster) BroadcastToRoom(roomCode string, msgID uint16, data []byte, exceptSessionID string) error {
	r, exists := b.registry.GetRoom(roomCode)
	if !exists {
		return ErrRoomNotFound
	}

	for _, sessionID := range r.SessionIDs() {
		if sessionID == exceptSessionID {
			continue
		}
		s, ok := b.sessionManager.Get(sessionID)
		if !ok {
			continue
		}
		if err := s.Send(msgID, data); err != nil {
			continue
		}
	}

	return nil
}
