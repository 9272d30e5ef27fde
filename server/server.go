package server

import (
	"errors"
	"net/http"
	"net/rpc"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/chessworld/gameserver/broadcast"
	"github.com/chessworld/gameserver/config"
	"github.com/chessworld/gameserver/logger"
	"github.com/chessworld/gameserver/monitor"
	"github.com/chessworld/gameserver/network"
	"github.com/chessworld/gameserver/room"
	gameserver_rpc "github.com/chessworld/gameserver/rpc"
	"github.com/chessworld/gameserver/rules"
	"github.com/chessworld/gameserver/session"
	"github.com/chessworld/gameserver/timer"
)

// GameServer accepts websocket connections on /ws/game and runs one
// receive loop per connection against the shared room registry.
type GameServer struct {
	addr        string
	rpcAddr     string
	defaultRoom string

	upgrader       websocket.Upgrader
	registry       *room.Registry
	sessionManager *session.Manager
	monitor        *monitor.Monitor
	rpcServer      *gameserver_rpc.Server
	timers         *timer.Manager
	httpServer     *http.Server
	shutdownChan   chan struct{}
}

func NewGameServer(cfg *config.Config, mon *monitor.Monitor) *GameServer {
	s := &GameServer{
		addr:           cfg.Server.HTTPAddress,
		rpcAddr:        cfg.Server.RPCAddress,
		defaultRoom:    cfg.Game.DefaultRoom,
		sessionManager: session.NewManager(),
		monitor:        mon,
		timers:         timer.NewManager(),
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	var recorder broadcast.Recorder
	if mon != nil {
		recorder = mon
	}
	broadcaster := broadcast.NewRoomBroadcaster(recorder)
	s.registry = room.NewRegistry(rules.NewUCIEngine(), broadcaster)

	return s
}

func (s *GameServer) Start() error {
	if s.rpcAddr != "" {
		rpcServer, err := gameserver_rpc.NewServer(s.rpcAddr)
		if err != nil {
			return err
		}
		s.rpcServer = rpcServer
		rpc.Register(gameserver_rpc.NewRoomService(s.registry, s.sessionManager))
		go s.rpcServer.Start()
	}

	if s.monitor != nil {
		s.timers.Schedule(0, 5*time.Second, func() {
			s.monitor.SetActiveRooms(s.registry.Count())
			s.monitor.SetOnlinePlayers(s.sessionManager.Count())
		})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/game", s.HandleWebSocket)
	s.httpServer = &http.Server{Addr: s.addr, Handler: mux}

	logger.Log.Infof("Game server listening on %s", s.addr)
	return s.httpServer.ListenAndServe()
}

// Registry exposes the room directory for inspection surfaces.
func (s *GameServer) Registry() *room.Registry {
	return s.registry
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.timers.Stop()
	if s.rpcServer != nil {
		s.rpcServer.Stop()
	}
	if s.httpServer != nil {
		s.httpServer.Close()
	}
}

func (s *GameServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}

	roomID := r.URL.Query().Get("game_id")
	if roomID == "" {
		roomID = s.defaultRoom
	}

	s.handleConnection(conn, roomID)
}

func (s *GameServer) handleConnection(conn *websocket.Conn, roomID string) {
	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)

	logger.Log.Infof("New connection from %s, session ID: %s, room: %s", wsConn.RemoteAddr(), sess.GetID(), roomID)

	// Join whichever room instance currently answers to roomID. A join can
	// lose the race against the teardown of an emptying room; resolving
	// through the registry again yields the fresh replacement.
	var gameRoom *room.Room
	for {
		gameRoom = s.registry.GetOrCreate(roomID)
		_, err := gameRoom.Join(sess)
		if err == nil {
			break
		}
		if errors.Is(err, room.ErrRoomClosed) {
			continue
		}
		logger.Log.Infof("Initial send failed for session %s: %v", sess.GetID(), err)
		s.sessionManager.Remove(sess.GetID())
		wsConn.Close()
		return
	}
	sess.RoomID = roomID

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		gameRoom.Leave(sess)
		sess.RoomID = ""
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			raw, err := wsConn.ReadText()
			if err != nil {
				return
			}
			s.handleMove(sess, gameRoom, raw)
		}
	}
}

// handleMove submits one inbound frame as a move. Rejections go back to the
// sender only; the connection stays open either way.
func (s *GameServer) handleMove(sess *session.Session, gameRoom *room.Room, raw string) {
	raw = strings.TrimSpace(raw)
	if s.monitor != nil {
		s.monitor.IncMessagesReceived()
	}

	start := time.Now()
	_, err := gameRoom.SubmitMove(raw)
	if s.monitor != nil {
		s.monitor.ObserveMoveLatency(time.Since(start))
	}

	switch {
	case err == nil:
		if s.monitor != nil {
			s.monitor.IncMovesApplied()
		}
	case errors.Is(err, rules.ErrMalformedMove):
		if s.monitor != nil {
			s.monitor.IncMovesRejected()
		}
		sess.Send(network.MalformedMoveMessage(raw))
	case errors.Is(err, room.ErrIllegalMove):
		if s.monitor != nil {
			s.monitor.IncMovesRejected()
		}
		sess.Send(network.IllegalMoveMessage(raw))
	default:
		// ErrRoomClosed: the session lost its room to a teardown race after
		// being dropped by a failed delivery. The read loop ends on close.
		logger.Log.Warnf("Move from session %s not applied: %v", sess.GetID(), err)
	}
}
