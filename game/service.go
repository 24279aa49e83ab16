// game/service.go
package game

import (
	"encoding/json"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/mbreuer/reaktor/logger"
	"github.com/mbreuer/reaktor/models"
	"github.com/mbreuer/reaktor/monitor"
	"github.com/mbreuer/reaktor/network"
	"github.com/mbreuer/reaktor/room"
	"github.com/mbreuer/reaktor/services"
	"github.com/mbreuer/reaktor/sim"
	"github.com/mbreuer/reaktor/view"
)

// Fixed lifecycle constants. Deliberately not configurable.
const (
	InactivityTimeout = 30 * time.Minute
	SweepInterval     = 5 * time.Minute
)

// Sender delivers framed messages. Defined here, on the consumer side, so the
// broadcast package can depend on room and session without a cycle.
type Sender interface {
	SendToSession(sessionID string, msgID uint16, data []byte) error
	BroadcastToRoom(roomCode string, msgID uint16, data []byte, exceptSessionID string) error
}

// binding ties a session to the room and nickname it plays under. It lives
// here instead of on the transport session so the game owns all game state.
type binding struct {
	roomCode string
	nickname string
}

// Service is the action gateway and roster manager. Every mutation — join,
// leave, toggle, sweep — runs under one mutex, so no two mutations of the
// same room ever interleave and observers never see a half-applied state.
// Outbound messages are collected during the mutation and sent only after it
// has fully applied.
type Service struct {
	mu       sync.Mutex
	registry *room.Manager
	bindings map[string]binding
	sender   Sender
	records  *services.RecordService
	metrics  *monitor.Monitor
	rng      *rand.Rand
}

func NewService(registry *room.Manager, sender Sender, records *services.RecordService, metrics *monitor.Monitor) *Service {
	return &Service{
		registry: registry,
		bindings: make(map[string]binding),
		sender:   sender,
		records:  records,
		metrics:  metrics,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// outbound is one deferred delivery: unicast when sessionID is set, otherwise
// a room broadcast.
type outbound struct {
	sessionID string
	roomCode  string
	except    string
	msgID     uint16
	payload   interface{}
}

func (s *Service) flush(msgs []outbound) {
	for _, m := range msgs {
		data, err := json.Marshal(m.payload)
		if err != nil {
			logger.Log.Errorf("Failed to marshal outbound message %d: %v", m.msgID, err)
			continue
		}
		if m.sessionID != "" {
			s.sender.SendToSession(m.sessionID, m.msgID, data)
		} else {
			s.sender.BroadcastToRoom(m.roomCode, m.msgID, data, m.except)
		}
	}
}

// CreateRoom allocates a room with the caller as its first seated player and
// returns the shareable code. A caller already seated elsewhere leaves that
// room first.
func (s *Service) CreateRoom(sessionID, nickname string) (string, error) {
	s.mu.Lock()
	code, msgs, err := s.createRoomLocked(sessionID, nickname)
	s.mu.Unlock()
	s.flush(msgs)
	return code, err
}

func (s *Service) createRoomLocked(sessionID, nickname string) (string, []outbound, error) {
	if strings.TrimSpace(nickname) == "" {
		return "", nil, ErrInvalidNickname
	}

	msgs := s.leaveLocked(sessionID)

	r := s.registry.CreateRoom(time.Now())
	r.AddPlayer(sessionID, nickname)
	s.bindings[sessionID] = binding{roomCode: r.Code, nickname: nickname}
	s.metrics.SetActiveRooms(s.registry.Count())

	logger.Log.Infof("Session %s created room %s", sessionID, r.Code)
	return r.Code, msgs, nil
}

// JoinRoom seats the caller in an existing room and returns the roster. The
// 4th join fills the room and starts the game.
func (s *Service) JoinRoom(sessionID, code, nickname string) ([]models.PlayerInfo, error) {
	s.mu.Lock()
	players, msgs, err := s.joinRoomLocked(sessionID, code, nickname)
	s.mu.Unlock()
	s.flush(msgs)
	return players, err
}

func (s *Service) joinRoomLocked(sessionID, code, nickname string) ([]models.PlayerInfo, []outbound, error) {
	if strings.TrimSpace(nickname) == "" {
		return nil, nil, ErrInvalidNickname
	}

	// A caller seated elsewhere leaves that room first, so the lookup below
	// sees the registry as it would after an explicit leave.
	msgs := s.leaveLocked(sessionID)

	r, exists := s.registry.GetRoom(code)
	if !exists {
		return nil, msgs, ErrRoomNotFound
	}
	if r.HasNickname(nickname) {
		return nil, msgs, ErrNicknameTaken
	}
	if r.IsFull() {
		return nil, msgs, ErrRoomFull
	}

	p := r.AddPlayer(sessionID, nickname)
	s.bindings[sessionID] = binding{roomCode: r.Code, nickname: nickname}
	r.Touch(time.Now())

	roster := playerInfos(r.Roster())
	msgs = append(msgs, outbound{
		roomCode: r.Code,
		except:   sessionID,
		msgID:    network.MsgTypePlayerJoined,
		payload: models.PlayerJoinedEvent{
			Players:   roster,
			NewPlayer: models.PlayerInfo{ID: p.SessionID, Nickname: p.Nickname},
		},
	})

	logger.Log.Infof("Session %s joined room %s as %q", sessionID, r.Code, nickname)

	if r.PlayerCount() == room.Capacity && r.State.Phase == sim.PhaseSetup {
		started, err := s.startGameLocked(r)
		if err != nil {
			return nil, msgs, err
		}
		msgs = append(msgs, started...)
		roster = playerInfos(r.Roster())
	}

	return roster, msgs, nil
}

// StartGame starts the game on explicit request. The room must still be in
// setup and hold exactly 4 players.
func (s *Service) StartGame(sessionID string) error {
	s.mu.Lock()
	msgs, err := s.startGameRequestLocked(sessionID)
	s.mu.Unlock()
	s.flush(msgs)
	return err
}

func (s *Service) startGameRequestLocked(sessionID string) ([]outbound, error) {
	b, ok := s.bindings[sessionID]
	if !ok {
		return nil, ErrNotInRoom
	}
	r, exists := s.registry.GetRoom(b.roomCode)
	if !exists {
		return nil, ErrRoomNotFound
	}
	if r.State.Phase != sim.PhaseSetup {
		return nil, ErrGameAlreadyStarted
	}
	if r.PlayerCount() != room.Capacity {
		return nil, ErrNotEnoughPlayers
	}
	return s.startGameLocked(r)
}

// startGameLocked draws the role bijection, resets the simulation into the
// running phase and queues the individual roleAssigned messages plus the
// room-wide gameStarted event.
func (s *Service) startGameLocked(r *room.Room) ([]outbound, error) {
	roster := r.Roster()
	ids := make([]string, 0, len(roster))
	for _, p := range roster {
		ids = append(ids, p.SessionID)
	}

	assignment, err := sim.AssignRoles(ids, s.rng)
	if err != nil {
		return nil, err
	}
	for _, p := range roster {
		p.Role = assignment[p.SessionID]
	}

	r.State = sim.NewState()
	r.State.Start(time.Now())
	r.Touch(time.Now())

	var msgs []outbound
	for _, p := range roster {
		msgs = append(msgs, outbound{
			sessionID: p.SessionID,
			msgID:     network.MsgTypeRoleAssigned,
			payload: models.RoleAssignedEvent{
				Role:      p.Role,
				GameState: view.Project(r.State, p.Role),
			},
		})
	}
	msgs = append(msgs, outbound{
		roomCode: r.Code,
		msgID:    network.MsgTypeGameStarted,
		payload: models.GameStartedEvent{
			Players:   playerInfos(roster),
			GameState: r.State.Clone(),
		},
	})

	s.records.SaveSnapshot(r)
	logger.Log.Infof("Room %s started with roles %v", r.Code, assignment)
	return msgs, nil
}

// LeaveRoom unseats the caller. Idempotent: a session bound to no room is a
// no-op. The last player leaving destroys the room.
func (s *Service) LeaveRoom(sessionID string) {
	s.mu.Lock()
	msgs := s.leaveLocked(sessionID)
	s.mu.Unlock()
	s.flush(msgs)
}

// Disconnect is the transport layer's leave: same path, same bookkeeping.
func (s *Service) Disconnect(sessionID string) {
	s.LeaveRoom(sessionID)
}

func (s *Service) leaveLocked(sessionID string) []outbound {
	b, ok := s.bindings[sessionID]
	if !ok {
		return nil
	}
	delete(s.bindings, sessionID)

	r, exists := s.registry.GetRoom(b.roomCode)
	if !exists {
		return nil
	}

	p := r.RemovePlayer(sessionID)
	if p == nil {
		return nil
	}
	r.Touch(time.Now())

	if r.PlayerCount() == 0 {
		s.destroyRoomLocked(r)
		logger.Log.Infof("Room %s destroyed, last player %q left", r.Code, p.Nickname)
		return nil
	}

	logger.Log.Infof("Session %s left room %s", sessionID, r.Code)
	return []outbound{{
		roomCode: r.Code,
		msgID:    network.MsgTypePlayerLeft,
		payload: models.PlayerLeftEvent{
			Players:    playerInfos(r.Roster()),
			LeftPlayer: models.PlayerInfo{ID: p.SessionID, Nickname: p.Nickname, Role: p.Role},
		},
	}}
}

// destroyRoomLocked drops the room from the registry and archives the game if
// one was played.
func (s *Service) destroyRoomLocked(r *room.Room) {
	s.registry.RemoveRoom(r.Code)
	s.records.SaveFinishedGame(r)
	s.metrics.SetActiveRooms(s.registry.Count())
}

// ToggleLever flips a control lever on behalf of the Engineer and fans the
// resulting role-filtered views out to every seated player.
func (s *Service) ToggleLever(sessionID, lever string) error {
	s.mu.Lock()
	msgs, err := s.toggleLeverLocked(sessionID, lever)
	s.mu.Unlock()
	s.flush(msgs)
	return err
}

func (s *Service) toggleLeverLocked(sessionID, lever string) ([]outbound, error) {
	r, p, err := s.resolveActorLocked(sessionID)
	if err != nil {
		return nil, err
	}
	if p.Role != sim.RoleEngineer {
		return nil, ErrNotEngineer
	}
	if r.State.Phase == sim.PhaseSetup {
		return nil, ErrRoomNotActive
	}

	if err := r.State.ToggleLever(sim.Lever(strings.ToUpper(strings.TrimSpace(lever)))); err != nil {
		if errors.Is(err, sim.ErrUnknownLever) {
			return nil, ErrUnknownLever
		}
		return nil, err
	}
	r.Touch(time.Now())

	return s.stateUpdatesLocked(r), nil
}

// ExecuteFinalAction runs the Operator's end-game action. The simulation
// treats it as a no-op for now, so there is nothing to fan out.
func (s *Service) ExecuteFinalAction(sessionID, action string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, p, err := s.resolveActorLocked(sessionID)
	if err != nil {
		return err
	}
	if p.Role != sim.RoleOperator {
		return ErrNotOperator
	}
	if r.State.Phase == sim.PhaseSetup {
		return ErrRoomNotActive
	}

	if err := r.State.ExecuteFinalAction(action); err != nil {
		return err
	}
	r.Touch(time.Now())
	return nil
}

// resolveActorLocked maps a session to its room and seated player. The room
// lookup failing after a successful binding lookup means bookkeeping went
// wrong; it is reported, not swallowed.
func (s *Service) resolveActorLocked(sessionID string) (*room.Room, *room.Player, error) {
	b, ok := s.bindings[sessionID]
	if !ok {
		return nil, nil, ErrNotInRoom
	}
	r, exists := s.registry.GetRoom(b.roomCode)
	if !exists {
		return nil, nil, ErrRoomNotFound
	}
	p, ok := r.Player(sessionID)
	if !ok {
		return nil, nil, ErrNotInRoom
	}
	return r, p, nil
}

// stateUpdatesLocked builds one filtered gameStateUpdate per seated player.
func (s *Service) stateUpdatesLocked(r *room.Room) []outbound {
	roster := r.Roster()
	msgs := make([]outbound, 0, len(roster))
	for _, p := range roster {
		msgs = append(msgs, outbound{
			sessionID: p.SessionID,
			msgID:     network.MsgTypeGameStateUpdate,
			payload:   models.GameStateUpdateEvent{GameState: view.Project(r.State, p.Role)},
		})
	}
	return msgs
}

// ReapInactive evicts every room idle beyond the inactivity timeout and
// releases the bindings of any players still seated in them. Returns the
// number of rooms evicted.
func (s *Service) ReapInactive() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := s.registry.SweepInactive(InactivityTimeout, time.Now())
	for _, r := range evicted {
		s.releaseRoomLocked(r)
		logger.Log.Infof("Reaped inactive room %s", r.Code)
	}
	if len(evicted) > 0 {
		s.metrics.AddRoomsReaped(len(evicted))
		s.metrics.SetActiveRooms(s.registry.Count())
	}
	return len(evicted)
}

// EvictRoom force-removes a single room (admin path).
func (s *Service) EvictRoom(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, exists := s.registry.GetRoom(code)
	if !exists {
		return false
	}
	s.registry.RemoveRoom(r.Code)
	s.releaseRoomLocked(r)
	s.metrics.SetActiveRooms(s.registry.Count())
	return true
}

func (s *Service) releaseRoomLocked(r *room.Room) {
	for _, id := range r.SessionIDs() {
		delete(s.bindings, id)
	}
	s.records.SaveFinishedGame(r)
}

func playerInfos(players []*room.Player) []models.PlayerInfo {
	return lo.Map(players, func(p *room.Player, _ int) models.PlayerInfo {
		return models.PlayerInfo{ID: p.SessionID, Nickname: p.Nickname, Role: p.Role}
	})
}
