package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/jdavenport/lockstep/pkg/api/middleware"
	authproviders "github.com/jdavenport/lockstep/pkg/auth/providers"
	"github.com/jdavenport/lockstep/pkg/log"
	"github.com/jdavenport/lockstep/pkg/repositories"
	"github.com/jdavenport/lockstep/pkg/repositories/models"
	"github.com/jdavenport/lockstep/pkg/rooms"
	"golang.org/x/crypto/bcrypt"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,16}$`)

type credentialsRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token  string         `json:"token"`
	Player *models.Player `json:"player"`
}

func HandleRegister(repository repositories.Repository, authProvider authproviders.AuthProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := credentialsRequest{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Failed to decode request", http.StatusBadRequest)
			return
		}

		if !usernameRegex.MatchString(req.Username) {
			http.Error(w, "Username must be 3-16 characters of letters, digits, or underscores", http.StatusBadRequest)
			return
		}
		if len(req.Password) < 8 {
			http.Error(w, "Password must be at least 8 characters", http.StatusBadRequest)
			return
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Error("failed to hash password: %v", err)
			http.Error(w, "Failed to register", http.StatusInternalServerError)
			return
		}

		player, err := repository.CreatePlayer(r.Context(), req.Username, req.Email, string(hashed))
		if err != nil {
			if repositories.IsNameExists(err) {
				http.Error(w, "Username already exists", http.StatusConflict)
				return
			}
			log.Error("failed to create player: %v", err)
			http.Error(w, "Failed to register", http.StatusInternalServerError)
			return
		}

		token, err := authProvider.IssueToken(r.Context(), player.ID)
		if err != nil {
			log.Error("failed to issue token: %v", err)
			http.Error(w, "Failed to register", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, tokenResponse{Token: token, Player: player})
	}
}

func HandleLogin(repository repositories.Repository, authProvider authproviders.AuthProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := credentialsRequest{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Failed to decode request", http.StatusBadRequest)
			return
		}

		player, err := repository.GetPlayerByUsername(r.Context(), req.Username)
		if err != nil {
			if repositories.IsNotFound(err) {
				http.Error(w, "Invalid username or password", http.StatusUnauthorized)
				return
			}
			log.Error("failed to get player: %v", err)
			http.Error(w, "Failed to log in", http.StatusInternalServerError)
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(player.HashedPassword), []byte(req.Password)); err != nil {
			http.Error(w, "Invalid username or password", http.StatusUnauthorized)
			return
		}

		token, err := authProvider.IssueToken(r.Context(), player.ID)
		if err != nil {
			log.Error("failed to issue token: %v", err)
			http.Error(w, "Failed to log in", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, tokenResponse{Token: token, Player: player})
	}
}

func HandleGetMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player, ok := playerFromContext(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, player)
	}
}

type leaderboardEntryResponse struct {
	PlayerID    int64   `json:"playerId"`
	Username    string  `json:"username"`
	Kills       int     `json:"kills"`
	Deaths      int     `json:"deaths"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	GamesPlayed int     `json:"gamesPlayed"`
	KDRatio     float64 `json:"kdRatio"`
	WinRate     float64 `json:"winRate"`
}

func HandleLeaderboard(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderBy := r.URL.Query().Get("orderBy")
		if orderBy == "" {
			orderBy = "wins"
		}
		limit := 10
		if l := r.URL.Query().Get("limit"); l != "" {
			parsed, err := strconv.Atoi(l)
			if err != nil || parsed < 1 || parsed > 100 {
				http.Error(w, "Limit must be between 1 and 100", http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		players, err := repository.GetLeaderboard(r.Context(), orderBy, limit)
		if err != nil {
			log.Error("failed to get leaderboard: %v", err)
			http.Error(w, "Failed to get leaderboard", http.StatusBadRequest)
			return
		}

		entries := make([]leaderboardEntryResponse, 0, len(players))
		for _, p := range players {
			entries = append(entries, leaderboardEntryResponse{
				PlayerID:    p.ID,
				Username:    p.Username,
				Kills:       p.Kills,
				Deaths:      p.Deaths,
				Wins:        p.Wins,
				Losses:      p.Losses,
				GamesPlayed: p.GamesPlayed,
				KDRatio:     p.KDRatio(),
				WinRate:     p.WinRate(),
			})
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func HandleListRooms(manager *rooms.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, manager.ListRooms())
	}
}

type createRoomRequest struct {
	Name       string `json:"name"`
	MaxPlayers int    `json:"maxPlayers"`
}

type roomResponse struct {
	Code       string                `json:"code"`
	Name       string                `json:"name"`
	Status     models.RoomStatus     `json:"status"`
	MaxPlayers int                   `json:"maxPlayers"`
	OwnerID    int64                 `json:"ownerId"`
	Roster     []rosterEntryResponse `json:"roster"`
}

type rosterEntryResponse struct {
	PlayerID int64  `json:"playerId"`
	Username string `json:"username"`
	Ready    bool   `json:"ready"`
	Color    string `json:"color,omitempty"`
}

func roomToResponse(room *rooms.Room) roomResponse {
	resp := roomResponse{
		Code:       room.Code,
		Name:       room.Name,
		Status:     room.Status(),
		MaxPlayers: room.MaxPlayers,
		OwnerID:    room.OwnerID(),
		Roster:     []rosterEntryResponse{},
	}
	for _, entry := range room.Roster() {
		resp.Roster = append(resp.Roster, rosterEntryResponse{
			PlayerID: entry.PlayerID,
			Username: entry.Username,
			Ready:    entry.Ready,
			Color:    entry.Color,
		})
	}
	return resp
}

func HandleCreateRoom(manager *rooms.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player, ok := playerFromContext(w, r)
		if !ok {
			return
		}

		req := createRoomRequest{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Failed to decode request", http.StatusBadRequest)
			return
		}
		if req.MaxPlayers < 0 || req.MaxPlayers > rooms.DefaultMaxPlayers {
			http.Error(w, "Invalid room capacity", http.StatusBadRequest)
			return
		}

		room, err := manager.CreateRoom(r.Context(), player.ID, player.Username, req.Name, req.MaxPlayers)
		if err != nil {
			writeRoomError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, roomToResponse(room))
	}
}

func HandleGetRoom(manager *rooms.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, err := manager.GetRoom(mux.Vars(r)["roomCode"])
		if err != nil {
			writeRoomError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, roomToResponse(room))
	}
}

func HandleJoinRoom(manager *rooms.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player, ok := playerFromContext(w, r)
		if !ok {
			return
		}

		room, err := manager.JoinRoom(r.Context(), mux.Vars(r)["roomCode"], player.ID, player.Username)
		if err != nil {
			writeRoomError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, roomToResponse(room))
	}
}

func HandleGetScoreboard(manager *rooms.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, err := manager.GetRoom(mux.Vars(r)["roomCode"])
		if err != nil {
			writeRoomError(w, err)
			return
		}

		scoreboard, err := room.Scoreboard()
		if err != nil {
			writeRoomError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, scoreboard)
	}
}

func HandleLeaveRoom(manager *rooms.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player, ok := playerFromContext(w, r)
		if !ok {
			return
		}

		if err := manager.LeaveRoom(r.Context(), player.ID); err != nil {
			writeRoomError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

type setReadyRequest struct {
	Ready bool `json:"ready"`
}

func HandleSetReady(manager *rooms.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player, ok := playerFromContext(w, r)
		if !ok {
			return
		}

		req := setReadyRequest{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Failed to decode request", http.StatusBadRequest)
			return
		}

		if err := manager.SetReady(player.ID, req.Ready); err != nil {
			writeRoomError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func HandleStartMatch(manager *rooms.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player, ok := playerFromContext(w, r)
		if !ok {
			return
		}

		if err := manager.StartMatch(r.Context(), player.ID); err != nil {
			writeRoomError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func playerFromContext(w http.ResponseWriter, r *http.Request) (*models.Player, bool) {
	player, ok := r.Context().Value(middleware.PlayerContextKey).(*models.Player)
	if !ok {
		log.Error("failed to get player from context")
		http.Error(w, "Failed to get player from context", http.StatusInternalServerError)
		return nil, false
	}
	return player, true
}

type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// writeRoomError maps room errors to HTTP statuses and writes the error
// kind carried by the wire protocol.
func writeRoomError(w http.ResponseWriter, err error) {
	status := http.StatusConflict
	switch {
	case rooms.IsRoomNotFound(err):
		status = http.StatusNotFound
	case rooms.IsNotAMember(err), rooms.IsNotOwner(err):
		status = http.StatusForbidden
	case rooms.IsRoomFull(err), rooms.IsInvalidState(err), rooms.IsNotEnoughPlayers(err), rooms.IsNotAllReady(err):
		status = http.StatusConflict
	default:
		log.Error("room operation failed: %v", err)
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, errorResponse{Kind: rooms.ErrorKind(err), Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response: %v", err)
	}
}
