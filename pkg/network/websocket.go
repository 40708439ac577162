package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	authproviders "github.com/jdavenport/lockstep/pkg/auth/providers"
	"github.com/jdavenport/lockstep/pkg/log"
	"github.com/jdavenport/lockstep/pkg/messages"
	"github.com/jdavenport/lockstep/pkg/rooms"
	"nhooyr.io/websocket"
)

// ErrorSender delivers an error message to a single player's connection.
type ErrorSender interface {
	SendError(playerID int64, kind string, message string)
}

// WSServer accepts WebSocket connections at /ws/{roomCode}, attaches
// them to the registry, and feeds client messages into the room layer.
type WSServer struct {
	port         int
	tls          *TLSConfig
	registry     *Registry
	manager      *rooms.Manager
	authProvider authproviders.AuthProvider
	errorSender  ErrorSender
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewWSServerOptions struct {
	Port         int
	TLS          *TLSConfig
	Registry     *Registry
	Manager      *rooms.Manager
	AuthProvider authproviders.AuthProvider
	ErrorSender  ErrorSender
}

// NewWSServer creates a new WebSocket server.
func NewWSServer(opts NewWSServerOptions) *WSServer {
	return &WSServer{
		port:         opts.Port,
		tls:          opts.TLS,
		registry:     opts.Registry,
		manager:      opts.Manager,
		authProvider: opts.AuthProvider,
		errorSender:  opts.ErrorSender,
	}
}

// Start starts the WebSocket server and blocks until the context is done.
func (s *WSServer) Start(ctx context.Context) {
	router := mux.NewRouter()
	router.HandleFunc("/ws/{roomCode}", func(w http.ResponseWriter, r *http.Request) {
		s.handleConnection(ctx, w, r)
	})

	addr := fmt.Sprintf(":%d", s.port)
	server := &http.Server{Addr: addr, Handler: router}

	go func() {
		<-ctx.Done()
		server.Shutdown(context.Background())
	}()

	var listenAndServe func() error
	if s.tls != nil {
		log.Info("WebSocket server listening on %s with TLS", addr)
		listenAndServe = func() error {
			return server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("WebSocket server listening on %s", addr)
		listenAndServe = server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("WebSocket server closed")
			return
		}
		log.Error("WebSocket server error: %v", err)
	}
}

func (s *WSServer) handleConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	roomCode := mux.Vars(r)["roomCode"]

	claims, err := s.authProvider.VerifyToken(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		log.Debug("Rejected WebSocket connection for room %s: %v", roomCode, err)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	playerID := claims.PlayerID

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Error("Failed to accept WebSocket connection: %v", err)
		return
	}
	wsConn.SetReadLimit(messages.MessageBufferSize)

	conn, err := s.registry.Attach(roomCode, playerID, &wsTransport{conn: wsConn})
	if err != nil {
		log.Debug("Failed to attach player %d to room %s: %v", playerID, roomCode, err)
		wsConn.Close(websocket.StatusPolicyViolation, "not a member of this room")
		return
	}
	log.Debug("New WebSocket connection from %s for player %d", r.RemoteAddr, playerID)

	if room, err := s.manager.GetRoom(roomCode); err == nil {
		if err := room.Resync(playerID); err != nil {
			log.Debug("Failed to resync player %d in room %s: %v", playerID, roomCode, err)
		}
	}

	s.readLoop(ctx, wsConn, conn)
}

// readLoop reads client messages until the connection dies, then
// detaches it. A detach for a superseded connection is a no-op.
func (s *WSServer) readLoop(ctx context.Context, wsConn *websocket.Conn, conn *Connection) {
	defer s.registry.Detach(conn)

	for {
		_, data, err := wsConn.Read(ctx)
		if err != nil {
			log.Trace("Connection closed for player %d: %v", conn.PlayerID, err)
			return
		}

		message, err := messages.DeserializeMessage(data)
		if err != nil {
			log.Warn("Failed to deserialize message from player %d: %v", conn.PlayerID, err)
			continue
		}

		s.handleMessage(ctx, conn, message)
	}
}

func (s *WSServer) handleMessage(ctx context.Context, conn *Connection, message *messages.Message) {
	var err error
	switch message.Type {
	case messages.MessageTypeClientMove:
		err = s.handleMove(conn.PlayerID, message)
	case messages.MessageTypeClientFire:
		err = s.handleFire(conn.PlayerID, message)
	case messages.MessageTypeClientReady:
		err = s.handleReady(conn.PlayerID, message)
	case messages.MessageTypeClientStart:
		err = s.manager.StartMatch(ctx, conn.PlayerID)
	case messages.MessageTypeClientLeave:
		err = s.manager.LeaveRoom(ctx, conn.PlayerID)
	default:
		log.Warn("Unknown message type %s from player %d", message.Type, conn.PlayerID)
		return
	}

	if err != nil {
		log.Debug("Failed to handle %s from player %d: %v", message.Type, conn.PlayerID, err)
		s.errorSender.SendError(conn.PlayerID, rooms.ErrorKind(err), err.Error())
	}
}

func (s *WSServer) handleMove(playerID int64, message *messages.Message) error {
	move := messages.ClientMove{}
	if err := json.Unmarshal(message.Payload, &move); err != nil {
		return fmt.Errorf("failed to unmarshal move: %v", err)
	}
	room, err := s.manager.RoomFor(playerID)
	if err != nil {
		return err
	}
	return room.SubmitMove(playerID, move)
}

func (s *WSServer) handleFire(playerID int64, message *messages.Message) error {
	fire := messages.ClientFire{}
	if err := json.Unmarshal(message.Payload, &fire); err != nil {
		return fmt.Errorf("failed to unmarshal fire: %v", err)
	}
	room, err := s.manager.RoomFor(playerID)
	if err != nil {
		return err
	}
	return room.SubmitFire(playerID, fire)
}

func (s *WSServer) handleReady(playerID int64, message *messages.Message) error {
	ready := messages.ClientReady{}
	if err := json.Unmarshal(message.Payload, &ready); err != nil {
		return fmt.Errorf("failed to unmarshal ready: %v", err)
	}
	return s.manager.SetReady(playerID, ready.Ready)
}

// wsTransport adapts a WebSocket connection to the registry's Transport.
type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) Write(ctx context.Context, data []byte) error {
	return t.conn.Write(ctx, websocket.MessageBinary, data)
}

func (t *wsTransport) Close(reason string) error {
	return t.conn.Close(websocket.StatusNormalClosure, reason)
}
