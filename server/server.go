package server

import (
	"encoding/json"
	"net/http"
	"net/rpc"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mbreuer/reaktor/broadcast"
	"github.com/mbreuer/reaktor/config"
	"github.com/mbreuer/reaktor/game"
	"github.com/mbreuer/reaktor/logger"
	"github.com/mbreuer/reaktor/models"
	"github.com/mbreuer/reaktor/monitor"
	"github.com/mbreuer/reaktor/network"
	"github.com/mbreuer/reaktor/persistence"
	reaktorrpc "github.com/mbreuer/reaktor/rpc"
	"github.com/mbreuer/reaktor/room"
	"github.com/mbreuer/reaktor/services"
	"github.com/mbreuer/reaktor/session"
	"github.com/mbreuer/reaktor/timer"
)

type GameServer struct {
	cfg            *config.Config
	upgrader       websocket.Upgrader
	registry       *room.Manager
	sessionManager *session.Manager
	gameService    *game.Service
	recordService  *services.RecordService
	rpcServer      *reaktorrpc.Server
	mon            *monitor.Monitor
	timers         *timer.Manager
	shutdownChan   chan struct{}
}

func NewGameServer(cfg *config.Config, db persistence.Database) *GameServer {
	s := &GameServer{
		cfg:            cfg,
		registry:       room.NewManager(),
		sessionManager: session.NewManager(),
		recordService:  services.NewRecordService(db),
		mon:            monitor.NewMonitor("reaktor"),
		timers:         timer.NewManager(),
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	broadcaster := broadcast.NewRoomBroadcaster(s.registry, s.sessionManager)
	s.gameService = game.NewService(s.registry, broadcaster, s.recordService, s.mon)

	rpcServer, err := reaktorrpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer

	adminService := reaktorrpc.NewAdminService(s.gameService, s.registry, s.sessionManager, s.recordService)
	rpc.Register(adminService)

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()
	s.mon.StartServer(s.cfg.Server.MetricsAddress)

	// Reaper: evict rooms idle past the threshold.
	s.timers.Schedule(game.SweepInterval, game.SweepInterval, func() {
		if reaped := s.gameService.ReapInactive(); reaped > 0 {
			logger.Log.Infof("Reaper evicted %d inactive rooms", reaped)
		}
	})

	http.HandleFunc("/ws", s.handleWebSocket)
	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	logger.Log.Infof("Game server listening on %s", s.cfg.Server.HTTPAddress)
	return http.ListenAndServe(s.cfg.Server.HTTPAddress, nil)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.rpcServer.Stop()
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.mon.IncConnectedPlayers()

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		// A dropped connection is an implicit leave.
		s.gameService.Disconnect(sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		s.mon.DecConnectedPlayers()
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.handlePacket(sess, packet)
		}
	}
}

// handlePacket dispatches one intent. Panics are caught here so a broken
// handler rejects the one request instead of tearing down the room.
func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	start := time.Now()
	defer func() {
		s.mon.ObserveActionLatency(time.Since(start))
		if r := recover(); r != nil {
			logger.Log.Errorf("Panic handling message %d from session %s: %v", packet.MsgID, sess.GetID(), r)
			s.sendAck(sess, packet.MsgID, game.ErrInternal)
		}
	}()

	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		sess.LastActive = time.Now()
	case network.MsgTypeCreateRoom:
		s.mon.IncAction("createRoom")
		s.handleCreateRoom(sess, packet)
	case network.MsgTypeJoinRoom:
		s.mon.IncAction("joinRoom")
		s.handleJoinRoom(sess, packet)
	case network.MsgTypeLeaveRoom:
		s.mon.IncAction("leaveRoom")
		s.gameService.LeaveRoom(sess.GetID())
	case network.MsgTypeStartGame:
		s.mon.IncAction("startGame")
		s.sendAck(sess, packet.MsgID, s.gameService.StartGame(sess.GetID()))
	case network.MsgTypeToggleLever:
		s.mon.IncAction("toggleLever")
		s.handleToggleLever(sess, packet)
	case network.MsgTypeFinalAction:
		s.mon.IncAction("executeFinalAction")
		s.handleFinalAction(sess, packet)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}
}

func (s *GameServer) handleCreateRoom(sess *session.Session, packet *network.Packet) {
	var req models.CreateRoomRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.reply(sess, packet.MsgID, models.CreateRoomResponse{Success: false, Error: game.ErrInvalidNickname.Error()})
		return
	}

	code, err := s.gameService.CreateRoom(sess.GetID(), req.Nickname)
	if err != nil {
		s.mon.IncActionError()
		s.reply(sess, packet.MsgID, models.CreateRoomResponse{Success: false, Error: err.Error()})
		return
	}
	s.reply(sess, packet.MsgID, models.CreateRoomResponse{Success: true, RoomCode: code})
}

func (s *GameServer) handleJoinRoom(sess *session.Session, packet *network.Packet) {
	var req models.JoinRoomRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.reply(sess, packet.MsgID, models.JoinRoomResponse{Success: false, Error: game.ErrRoomNotFound.Error()})
		return
	}

	players, err := s.gameService.JoinRoom(sess.GetID(), req.RoomCode, req.Nickname)
	if err != nil {
		s.mon.IncActionError()
		s.reply(sess, packet.MsgID, models.JoinRoomResponse{Success: false, Error: err.Error()})
		return
	}
	s.reply(sess, packet.MsgID, models.JoinRoomResponse{Success: true, Players: players})
}

func (s *GameServer) handleToggleLever(sess *session.Session, packet *network.Packet) {
	var req models.ToggleLeverRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendAck(sess, packet.MsgID, game.ErrUnknownLever)
		return
	}
	s.sendAck(sess, packet.MsgID, s.gameService.ToggleLever(sess.GetID(), req.Lever))
}

func (s *GameServer) handleFinalAction(sess *session.Session, packet *network.Packet) {
	var req models.FinalActionRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendAck(sess, packet.MsgID, game.ErrInternal)
		return
	}
	s.sendAck(sess, packet.MsgID, s.gameService.ExecuteFinalAction(sess.GetID(), req.Action))
}

// sendAck reports an intent's outcome back to its sender under the intent's
// own message ID.
func (s *GameServer) sendAck(sess *session.Session, msgID uint16, err error) {
	ack := models.Ack{Success: err == nil}
	if err != nil {
		s.mon.IncActionError()
		ack.Error = err.Error()
	}
	s.reply(sess, msgID, ack)
}

func (s *GameServer) reply(sess *session.Session, msgID uint16, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Log.Errorf("Failed to marshal reply %d: %v", msgID, err)
		return
	}
	if err := sess.Send(msgID, data); err != nil {
		logger.Log.Infof("Failed to send reply to session %s: %v", sess.GetID(), err)
	}
}
