package models

// RoomStatus is the lifecycle status of a room.
type RoomStatus string

const (
	RoomStatusWaiting  RoomStatus = "waiting"
	RoomStatusActive   RoomStatus = "active"
	RoomStatusFinished RoomStatus = "finished"
)

type Player struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email,omitempty"`
	HashedPassword string `json:"-"`
	Kills          int    `json:"kills"`
	Deaths         int    `json:"deaths"`
	Wins           int    `json:"wins"`
	Losses         int    `json:"losses"`
	GamesPlayed    int    `json:"games_played"`
}

// KDRatio returns the player's kill/death ratio. A player with no
// deaths has a ratio equal to their kill count.
func (p *Player) KDRatio() float64 {
	if p.Deaths == 0 {
		return float64(p.Kills)
	}
	return float64(p.Kills) / float64(p.Deaths)
}

// WinRate returns the fraction of games the player has won.
func (p *Player) WinRate() float64 {
	if p.GamesPlayed == 0 {
		return 0
	}
	return float64(p.Wins) / float64(p.GamesPlayed)
}

type Room struct {
	Code       string     `json:"code"`
	Name       string     `json:"name"`
	Status     RoomStatus `json:"status"`
	MaxPlayers int        `json:"max_players"`
}

// PlayerMatchResult is the per-player stat delta written when a match ends.
type PlayerMatchResult struct {
	PlayerID int64 `json:"player_id"`
	Kills    int   `json:"kills"`
	Deaths   int   `json:"deaths"`
	Won      bool  `json:"won"`
}
