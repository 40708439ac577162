package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jdavenport/lockstep/pkg/api/handlers"
	"github.com/jdavenport/lockstep/pkg/api/middleware"
	authproviders "github.com/jdavenport/lockstep/pkg/auth/providers"
	"github.com/jdavenport/lockstep/pkg/log"
	"github.com/jdavenport/lockstep/pkg/repositories"
	"github.com/jdavenport/lockstep/pkg/rooms"
)

type APIServer struct {
	server *http.Server
	tls    *TLSConfig
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewAPIServerOptions struct {
	Port         int
	TLS          *TLSConfig
	AuthProvider authproviders.AuthProvider
	Repository   repositories.Repository
	Manager      *rooms.Manager
}

// NewAPIServer creates a new http.Server for handling API requests
func NewAPIServer(opts NewAPIServerOptions) *APIServer {
	authMiddleware := middleware.NewAuthMiddleware(opts.AuthProvider, opts.Repository)

	router := mux.NewRouter()
	router.Use(corsMiddleware)

	router.HandleFunc("/register", handlers.HandleRegister(opts.Repository, opts.AuthProvider)).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/login", handlers.HandleLogin(opts.Repository, opts.AuthProvider)).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/leaderboard", handlers.HandleLeaderboard(opts.Repository)).Methods(http.MethodGet, http.MethodOptions)

	authed := router.NewRoute().Subrouter()
	authed.Use(authMiddleware)
	authed.HandleFunc("/me", handlers.HandleGetMe()).Methods(http.MethodGet, http.MethodOptions)
	authed.HandleFunc("/rooms", handlers.HandleListRooms(opts.Manager)).Methods(http.MethodGet, http.MethodOptions)
	authed.HandleFunc("/rooms", handlers.HandleCreateRoom(opts.Manager)).Methods(http.MethodPost)
	authed.HandleFunc("/rooms/leave", handlers.HandleLeaveRoom(opts.Manager)).Methods(http.MethodPost, http.MethodOptions)
	authed.HandleFunc("/rooms/ready", handlers.HandleSetReady(opts.Manager)).Methods(http.MethodPost, http.MethodOptions)
	authed.HandleFunc("/rooms/start", handlers.HandleStartMatch(opts.Manager)).Methods(http.MethodPost, http.MethodOptions)
	authed.HandleFunc("/rooms/{roomCode}", handlers.HandleGetRoom(opts.Manager)).Methods(http.MethodGet, http.MethodOptions)
	authed.HandleFunc("/rooms/{roomCode}/join", handlers.HandleJoinRoom(opts.Manager)).Methods(http.MethodPost, http.MethodOptions)
	authed.HandleFunc("/rooms/{roomCode}/scoreboard", handlers.HandleGetScoreboard(opts.Manager)).Methods(http.MethodGet, http.MethodOptions)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}
	return &APIServer{
		server: server,
		tls:    opts.TLS,
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start starts the APIServer
func (s *APIServer) Start() {
	var listenAndServe func() error
	if s.tls != nil {
		log.Info("API server listening on %s with TLS", s.server.Addr)
		listenAndServe = func() error {
			return s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("API server listening on %s", s.server.Addr)
		listenAndServe = s.server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("API server closed")
			return
		}
		log.Error("API server error: %v", err)
	}
}

// Stop stops the APIServer
func (s *APIServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
