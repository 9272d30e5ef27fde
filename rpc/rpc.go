package rpc

import (
	"net"
	"net/rpc"

	"github.com/chessworld/gameserver/logger"
	"github.com/chessworld/gameserver/room"
	"github.com/chessworld/gameserver/session"
)

// Server manages the RPC listener for the read-only admin surface.
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
			// Check if the error is due to the listener being closed.
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

// RoomService exposes the live room directory over net/rpc. Inspection
// only: nothing here mutates a game.
type RoomService struct {
	registry *room.Registry
	sessions *session.Manager
}

func NewRoomService(registry *room.Registry, sessions *session.Manager) *RoomService {
	return &RoomService{registry: registry, sessions: sessions}
}

type ListRoomsArgs struct{}

type ListRoomsReply struct {
	Rooms    []room.Info
	Sessions int
}

// ListRooms reports every live room plus the connected session count.
func (rs *RoomService) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	reply.Rooms = rs.registry.List()
	reply.Sessions = rs.sessions.Count()
	return nil
}

type GetRoomArgs struct {
	RoomID string
}

type GetRoomReply struct {
	Found bool
	Info  room.Info
}

// GetRoom reports one room's current position, subscriber count and
// terminal status. Unknown ids report Found=false; inspection never
// creates rooms.
func (rs *RoomService) GetRoom(args *GetRoomArgs, reply *GetRoomReply) error {
	r, exists := rs.registry.Get(args.RoomID)
	if !exists {
		return nil
	}
	reply.Found = true
	reply.Info = r.Snapshot()
	return nil
}
