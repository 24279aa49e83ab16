package rpc

import (
	"net"
	"net/rpc"

	"github.com/mbreuer/reaktor/game"
	"github.com/mbreuer/reaktor/logger"
	"github.com/mbreuer/reaktor/models"
	"github.com/mbreuer/reaktor/room"
	"github.com/mbreuer/reaktor/services"
	"github.com/mbreuer/reaktor/session"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// AdminService exposes operational queries and room eviction over net/rpc.
type AdminService struct {
	gameService *game.Service
	registry    *room.Manager
	sessions    *session.Manager
	records     *services.RecordService
}

func NewAdminService(gameService *game.Service, registry *room.Manager, sessions *session.Manager, records *services.RecordService) *AdminService {
	return &AdminService{
		gameService: gameService,
		registry:    registry,
		sessions:    sessions,
		records:     records,
	}
}

type StatusArgs struct{}

type StatusReply struct {
	Rooms    int
	Sessions int
}

func (a *AdminService) Status(args *StatusArgs, reply *StatusReply) error {
	reply.Rooms = a.registry.Count()
	reply.Sessions = a.sessions.Count()
	return nil
}

type ListRoomsArgs struct{}

type ListRoomsReply struct {
	Codes []string
}

func (a *AdminService) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	reply.Codes = a.registry.Codes()
	return nil
}

type EvictRoomArgs struct {
	Code string
}

type EvictRoomReply struct {
	Evicted bool
}

func (a *AdminService) EvictRoom(args *EvictRoomArgs, reply *EvictRoomReply) error {
	reply.Evicted = a.gameService.EvictRoom(args.Code)
	return nil
}

type RecentRecordsArgs struct {
	Limit int
}

type RecentRecordsReply struct {
	Records []models.GameRecord
}

func (a *AdminService) RecentRecords(args *RecentRecordsArgs, reply *RecentRecordsReply) error {
	limit := args.Limit
	if limit <= 0 {
		limit = 20
	}
	records, err := a.records.RecentRecords(limit)
	if err != nil {
		return err
	}
	reply.Records = records
	return nil
}
