package game

import (
	"encoding/json"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbreuer/reaktor/logger"
	"github.com/mbreuer/reaktor/models"
	"github.com/mbreuer/reaktor/network"
	"github.com/mbreuer/reaktor/room"
	"github.com/mbreuer/reaktor/services"
	"github.com/mbreuer/reaktor/sim"
)

func TestMain(m *testing.M) {
	logger.Init(true)
	os.Exit(m.Run())
}

// recordedMsg is one delivery captured by the mock sender.
type recordedMsg struct {
	SessionID string
	RoomCode  string
	Except    string
	MsgID     uint16
	Data      []byte
}

// MockSender records every delivery instead of sending it.
type MockSender struct {
	mu   sync.Mutex
	Msgs []recordedMsg
}

func (m *MockSender) SendToSession(sessionID string, msgID uint16, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Msgs = append(m.Msgs, recordedMsg{SessionID: sessionID, MsgID: msgID, Data: data})
	return nil
}

func (m *MockSender) BroadcastToRoom(roomCode string, msgID uint16, data []byte, except string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Msgs = append(m.Msgs, recordedMsg{RoomCode: roomCode, Except: except, MsgID: msgID, Data: data})
	return nil
}

func (m *MockSender) byMsgID(msgID uint16) []recordedMsg {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []recordedMsg
	for _, msg := range m.Msgs {
		if msg.MsgID == msgID {
			out = append(out, msg)
		}
	}
	return out
}

func (m *MockSender) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Msgs = nil
}

func newTestService() (*Service, *room.Manager, *MockSender) {
	registry := room.NewManager()
	sender := &MockSender{}
	svc := NewService(registry, sender, services.NewRecordService(nil), nil)
	return svc, registry, sender
}

// fillRoom creates a room as "Alice" and seats three more players, returning
// the room code. Session IDs are s1..s4.
func fillRoom(t *testing.T, svc *Service) string {
	t.Helper()
	code, err := svc.CreateRoom("s1", "Alice")
	require.NoError(t, err)
	for i, nick := range []string{"Bob", "Carol", "Dave"} {
		_, err := svc.JoinRoom([]string{"s2", "s3", "s4"}[i], code, nick)
		require.NoError(t, err)
	}
	return code
}

// sessionWithRole finds the session ID holding the given role.
func sessionWithRole(t *testing.T, registry *room.Manager, code string, role sim.Role) string {
	t.Helper()
	r, ok := registry.GetRoom(code)
	require.True(t, ok)
	for _, p := range r.Roster() {
		if p.Role == role {
			return p.SessionID
		}
	}
	t.Fatalf("no player holds role %s", role)
	return ""
}

func TestCreateRoom(t *testing.T) {
	svc, registry, _ := newTestService()

	code, err := svc.CreateRoom("s1", "Alice")
	require.NoError(t, err)
	assert.Len(t, code, 4)

	r, ok := registry.GetRoom(code)
	require.True(t, ok)
	assert.Equal(t, 1, r.PlayerCount())
	assert.Equal(t, sim.PhaseSetup, r.State.Phase)
}

func TestCreateRoom_InvalidNickname(t *testing.T) {
	svc, registry, _ := newTestService()

	for _, nickname := range []string{"", "   ", "\t\n"} {
		_, err := svc.CreateRoom("s1", nickname)
		assert.ErrorIs(t, err, ErrInvalidNickname)
	}
	assert.Equal(t, 0, registry.Count())
}

func TestJoinRoom_Errors(t *testing.T) {
	svc, _, _ := newTestService()
	code, err := svc.CreateRoom("s1", "Alice")
	require.NoError(t, err)

	_, err = svc.JoinRoom("s2", "ZZZZ", "Bob")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = svc.JoinRoom("s2", code, "Alice")
	assert.ErrorIs(t, err, ErrNicknameTaken)

	// Nickname comparison is case-sensitive: "alice" is free.
	_, err = svc.JoinRoom("s2", code, "alice")
	require.NoError(t, err)
}

func TestJoinRoom_CaseInsensitiveCode(t *testing.T) {
	svc, _, _ := newTestService()
	code, err := svc.CreateRoom("s1", "Alice")
	require.NoError(t, err)

	players, err := svc.JoinRoom("s2", "  "+lower(code)+" ", "Bob")
	require.NoError(t, err)
	assert.Len(t, players, 2)
}

func lower(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r >= 'A' && r <= 'Z' {
			out[i] = r + 32
		}
	}
	return string(out)
}

func TestJoinRoom_Full(t *testing.T) {
	svc, _, _ := newTestService()
	code := fillRoom(t, svc)

	_, err := svc.JoinRoom("s5", code, "Eve")
	assert.ErrorIs(t, err, ErrRoomFull)
}

func TestJoinRoom_BroadcastExcludesJoiner(t *testing.T) {
	svc, _, sender := newTestService()
	code, err := svc.CreateRoom("s1", "Alice")
	require.NoError(t, err)
	sender.reset()

	_, err = svc.JoinRoom("s2", code, "Bob")
	require.NoError(t, err)

	joined := sender.byMsgID(network.MsgTypePlayerJoined)
	require.Len(t, joined, 1)
	assert.Equal(t, code, joined[0].RoomCode)
	assert.Equal(t, "s2", joined[0].Except)

	var event models.PlayerJoinedEvent
	require.NoError(t, json.Unmarshal(joined[0].Data, &event))
	assert.Equal(t, "Bob", event.NewPlayer.Nickname)
	assert.Len(t, event.Players, 2)
}

func TestFourthJoinStartsGame(t *testing.T) {
	svc, registry, sender := newTestService()
	code := fillRoom(t, svc)

	r, ok := registry.GetRoom(code)
	require.True(t, ok)
	assert.Equal(t, sim.PhaseRunning, r.State.Phase)
	assert.Equal(t, 50, r.State.Temperature)
	assert.Equal(t, 50, r.State.Pressure)
	require.NotNil(t, r.State.StartTime)

	// Every player got exactly one roleAssigned unicast, roles distinct.
	assigned := sender.byMsgID(network.MsgTypeRoleAssigned)
	require.Len(t, assigned, 4)

	roles := map[sim.Role]bool{}
	targets := map[string]bool{}
	for _, msg := range assigned {
		var event models.RoleAssignedEvent
		require.NoError(t, json.Unmarshal(msg.Data, &event))
		roles[event.Role] = true
		targets[msg.SessionID] = true
	}
	assert.Len(t, roles, 4)
	assert.Equal(t, map[string]bool{"s1": true, "s2": true, "s3": true, "s4": true}, targets)

	started := sender.byMsgID(network.MsgTypeGameStarted)
	require.Len(t, started, 1)
	var event models.GameStartedEvent
	require.NoError(t, json.Unmarshal(started[0].Data, &event))
	assert.Len(t, event.Players, 4)
	require.NotNil(t, event.GameState)
	assert.Equal(t, sim.PhaseRunning, event.GameState.Phase)
}

func TestRolesAreAssignedOnlyOnce(t *testing.T) {
	svc, registry, _ := newTestService()
	code := fillRoom(t, svc)

	engineer := sessionWithRole(t, registry, code, sim.RoleEngineer)
	other := "s1"
	if engineer == "s1" {
		other = "s2"
	}

	// A reseated player does not re-trigger assignment for the room.
	svc.LeaveRoom(other)
	_, err := svc.JoinRoom("s9", code, "Erik")
	require.NoError(t, err)

	r, ok := registry.GetRoom(code)
	require.True(t, ok)
	assert.Equal(t, sim.PhaseRunning, r.State.Phase)

	p, ok := r.Player("s9")
	require.True(t, ok)
	assert.Empty(t, p.Role)

	p, ok = r.Player(engineer)
	require.True(t, ok)
	assert.Equal(t, sim.RoleEngineer, p.Role)
}

func TestToggleLever_EngineerRoundTrip(t *testing.T) {
	svc, registry, sender := newTestService()
	code := fillRoom(t, svc)
	engineer := sessionWithRole(t, registry, code, sim.RoleEngineer)
	sender.reset()

	require.NoError(t, svc.ToggleLever(engineer, "A"))

	r, _ := registry.GetRoom(code)
	assert.Equal(t, 52, r.State.Temperature)
	assert.True(t, r.State.StatusLights.Green)
	assert.Equal(t, sim.PhaseRunning, r.State.Phase)

	// One filtered update per seated player.
	updates := sender.byMsgID(network.MsgTypeGameStateUpdate)
	assert.Len(t, updates, 4)

	require.NoError(t, svc.ToggleLever(engineer, "A"))
	assert.Equal(t, 50, r.State.Temperature)
	assert.True(t, r.State.StatusLights.Green)
	assert.Equal(t, sim.PhaseRunning, r.State.Phase)
}

func TestToggleLever_WrongRole(t *testing.T) {
	svc, registry, sender := newTestService()
	code := fillRoom(t, svc)
	operator := sessionWithRole(t, registry, code, sim.RoleOperator)
	sender.reset()

	err := svc.ToggleLever(operator, "A")
	assert.ErrorIs(t, err, ErrNotEngineer)
	assert.Equal(t, "Nur der Ingenieur kann Hebel umschalten", err.Error())

	r, _ := registry.GetRoom(code)
	assert.Equal(t, 50, r.State.Temperature)
	assert.False(t, r.State.Levers.A)
	assert.Empty(t, sender.byMsgID(network.MsgTypeGameStateUpdate))
}

func TestToggleLever_NotInRoom(t *testing.T) {
	svc, _, _ := newTestService()

	err := svc.ToggleLever("ghost", "A")
	assert.ErrorIs(t, err, ErrNotInRoom)
}

func TestToggleLever_BeforeStart(t *testing.T) {
	svc, registry, _ := newTestService()
	code, err := svc.CreateRoom("s1", "Alice")
	require.NoError(t, err)

	// Force the role so the authorization check passes while the game is
	// still in setup.
	r, _ := registry.GetRoom(code)
	p, _ := r.Player("s1")
	p.Role = sim.RoleEngineer

	err = svc.ToggleLever("s1", "A")
	assert.ErrorIs(t, err, ErrRoomNotActive)
}

func TestToggleLever_UnknownLever(t *testing.T) {
	svc, registry, _ := newTestService()
	code := fillRoom(t, svc)
	engineer := sessionWithRole(t, registry, code, sim.RoleEngineer)

	err := svc.ToggleLever(engineer, "Q")
	assert.ErrorIs(t, err, ErrUnknownLever)
}

func TestExecuteFinalAction(t *testing.T) {
	svc, registry, _ := newTestService()
	code := fillRoom(t, svc)
	operator := sessionWithRole(t, registry, code, sim.RoleOperator)
	engineer := sessionWithRole(t, registry, code, sim.RoleEngineer)

	assert.ErrorIs(t, svc.ExecuteFinalAction(engineer, "1234"), ErrNotOperator)

	r, _ := registry.GetRoom(code)
	before := r.State.Clone()
	require.NoError(t, svc.ExecuteFinalAction(operator, "1234"))
	assert.Equal(t, before, r.State)
}

func TestStartGame_Explicit(t *testing.T) {
	svc, _, _ := newTestService()
	code, err := svc.CreateRoom("s1", "Alice")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.StartGame("ghost"), ErrNotInRoom)
	assert.ErrorIs(t, svc.StartGame("s1"), ErrNotEnoughPlayers)

	for i, nick := range []string{"Bob", "Carol", "Dave"} {
		_, err := svc.JoinRoom([]string{"s2", "s3", "s4"}[i], code, nick)
		require.NoError(t, err)
	}

	// The 4th join already started the game.
	assert.ErrorIs(t, svc.StartGame("s1"), ErrGameAlreadyStarted)
}

func TestLeaveRoom_Idempotent(t *testing.T) {
	svc, registry, sender := newTestService()

	svc.LeaveRoom("nobody")

	assert.Equal(t, 0, registry.Count())
	assert.Empty(t, sender.Msgs)
}

func TestLeaveRoom_BroadcastsToRemaining(t *testing.T) {
	svc, _, sender := newTestService()
	code, err := svc.CreateRoom("s1", "Alice")
	require.NoError(t, err)
	_, err = svc.JoinRoom("s2", code, "Bob")
	require.NoError(t, err)
	sender.reset()

	svc.LeaveRoom("s2")

	left := sender.byMsgID(network.MsgTypePlayerLeft)
	require.Len(t, left, 1)

	var event models.PlayerLeftEvent
	require.NoError(t, json.Unmarshal(left[0].Data, &event))
	assert.Equal(t, "Bob", event.LeftPlayer.Nickname)
	assert.Len(t, event.Players, 1)
	assert.Equal(t, "Alice", event.Players[0].Nickname)
}

func TestLastPlayerLeavingDestroysRoom(t *testing.T) {
	svc, registry, _ := newTestService()
	code, err := svc.CreateRoom("s1", "Alice")
	require.NoError(t, err)

	svc.LeaveRoom("s1")

	assert.Equal(t, 0, registry.Count())
	_, err = svc.JoinRoom("s2", code, "Bob")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestDisconnectActsAsLeave(t *testing.T) {
	svc, registry, sender := newTestService()
	code, err := svc.CreateRoom("s1", "Alice")
	require.NoError(t, err)
	_, err = svc.JoinRoom("s2", code, "Bob")
	require.NoError(t, err)
	sender.reset()

	svc.Disconnect("s1")

	require.Len(t, sender.byMsgID(network.MsgTypePlayerLeft), 1)
	r, ok := registry.GetRoom(code)
	require.True(t, ok)
	assert.Equal(t, 1, r.PlayerCount())

	// Processing the disconnect again changes nothing.
	svc.Disconnect("s1")
	assert.Equal(t, 1, r.PlayerCount())
}

func TestEvictRoom(t *testing.T) {
	svc, registry, _ := newTestService()
	code, err := svc.CreateRoom("s1", "Alice")
	require.NoError(t, err)

	assert.False(t, svc.EvictRoom("ZZZZ"))
	assert.True(t, svc.EvictRoom(code))
	assert.Equal(t, 0, registry.Count())

	// The binding is released with the room.
	assert.ErrorIs(t, svc.ToggleLever("s1", "A"), ErrNotInRoom)
}

func TestReapInactive_FreshRoomsSurvive(t *testing.T) {
	svc, registry, _ := newTestService()
	_, err := svc.CreateRoom("s1", "Alice")
	require.NoError(t, err)

	assert.Equal(t, 0, svc.ReapInactive())
	assert.Equal(t, 1, registry.Count())
}
