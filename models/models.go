// models/models.go
package models

import (
	"time"

	"github.com/mbreuer/reaktor/sim"
)

// PlayerInfo is the roster entry shared in responses and events.
type PlayerInfo struct {
	ID       string   `json:"id"`
	Nickname string   `json:"nickname"`
	Role     sim.Role `json:"role,omitempty"`
}

// --- client intents ---

type CreateRoomRequest struct {
	Nickname string `json:"nickname"`
}

type JoinRoomRequest struct {
	RoomCode string `json:"roomCode"`
	Nickname string `json:"nickname"`
}

type ToggleLeverRequest struct {
	Lever string `json:"lever"`
}

type FinalActionRequest struct {
	Action string `json:"action"`
}

// --- server responses and events ---

// Ack is the generic result for intents that carry no payload back.
type Ack struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type CreateRoomResponse struct {
	Success  bool   `json:"success"`
	RoomCode string `json:"roomCode,omitempty"`
	Error    string `json:"error,omitempty"`
}

type JoinRoomResponse struct {
	Success bool         `json:"success"`
	Players []PlayerInfo `json:"players,omitempty"`
	Error   string       `json:"error,omitempty"`
}

type PlayerJoinedEvent struct {
	Players   []PlayerInfo `json:"players"`
	NewPlayer PlayerInfo   `json:"newPlayer"`
}

type PlayerLeftEvent struct {
	Players    []PlayerInfo `json:"players"`
	LeftPlayer PlayerInfo   `json:"leftPlayer"`
}

// RoleAssignedEvent carries a player's own role and their filtered snapshot.
type RoleAssignedEvent struct {
	Role      sim.Role    `json:"role"`
	GameState interface{} `json:"gameState"`
}

// GameStartedEvent is the room-wide start notification with the unfiltered
// state, for UI bookkeeping.
type GameStartedEvent struct {
	Players   []PlayerInfo `json:"players"`
	GameState *sim.State   `json:"gameState"`
}

type GameStateUpdateEvent struct {
	GameState interface{} `json:"gameState"`
}

// --- persistence ---

// GameRecord is the archived result of one finished (or abandoned) game.
type GameRecord struct {
	RoomCode   string       `json:"room_code"`
	Players    []PlayerInfo `json:"players"`
	Outcome    string       `json:"outcome"`
	FinalState *sim.State   `json:"final_state"`
	Duration   int          `json:"duration"`
	CreatedAt  time.Time    `json:"created_at"`
}
