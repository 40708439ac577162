package messages

import "encoding/json"

const (
	// MessageBufferSize represents the maximum size of a message
	MessageBufferSize = 4096
	// ServerPlayerID marks messages that originate from the server
	ServerPlayerID int64 = 0
)

// Client message types
const (
	MessageTypeClientMove  = "move"
	MessageTypeClientFire  = "fire"
	MessageTypeClientReady = "ready"
	MessageTypeClientStart = "start"
	MessageTypeClientLeave = "leave"
)

// Server message types
const (
	MessageTypeServerMembershipChanged = "membership_changed"
	MessageTypeServerMatchStarted      = "match_started"
	MessageTypeServerStateSnapshot     = "state_snapshot"
	MessageTypeServerMatchEnded        = "match_ended"
	MessageTypeServerError             = "error"
)

// Match end reasons
const (
	EndReasonElimination   = "elimination"
	EndReasonAborted       = "aborted"
	EndReasonInternalError = "internal_error"
)

// Message represents a generic message for serialization/deserialization
type Message struct {
	PlayerID int64           `json:"playerId"`
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// ClientMove is a movement intent. The reported position is a request,
// not a statement of fact: the server clamps it to the tank's speed and
// the arena bounds before applying it.
type ClientMove struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Heading   float64 `json:"heading"`
	VelocityX float64 `json:"velocityX"`
	VelocityY float64 `json:"velocityY"`
}

// ClientFire is a fire intent. The projectile spawns at the tank's
// server-side position; only the heading is taken from the client.
type ClientFire struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
}

// ClientReady toggles the sender's readiness while the room is waiting.
type ClientReady struct {
	Ready bool `json:"ready"`
}

// Position is a 2D position on the wire.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Velocity is a 2D velocity on the wire.
type Velocity struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// RosterEntry describes one room member and their readiness.
type RosterEntry struct {
	PlayerID int64  `json:"playerId"`
	Username string `json:"username"`
	Ready    bool   `json:"ready"`
	Color    string `json:"color,omitempty"`
}

// ServerMembershipChanged carries the current roster after any
// join/leave/ready/status transition.
type ServerMembershipChanged struct {
	RoomCode string        `json:"roomCode"`
	Status   string        `json:"status"`
	Roster   []RosterEntry `json:"roster"`
}

// Bounds describes the playable area of the arena.
type Bounds struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

// TankSnapshot is the wire representation of a tank's state.
type TankSnapshot struct {
	PlayerID     int64    `json:"playerId"`
	Username     string   `json:"username"`
	Position     Position `json:"position"`
	Velocity     Velocity `json:"velocity"`
	Heading      float64  `json:"heading"`
	Hitpoints    int      `json:"hitpoints"`
	MaxHitpoints int      `json:"maxHitpoints"`
	Alive        bool     `json:"alive"`
}

// ProjectileSnapshot is the wire representation of a projectile in flight.
type ProjectileSnapshot struct {
	ID       string   `json:"id"`
	OwnerID  int64    `json:"ownerId"`
	Position Position `json:"position"`
	Velocity Velocity `json:"velocity"`
	Damage   int      `json:"damage"`
}

// ScoreboardEntry is one row of the match scoreboard.
type ScoreboardEntry struct {
	PlayerID int64  `json:"playerId"`
	Username string `json:"username"`
	Kills    int    `json:"kills"`
	Deaths   int    `json:"deaths"`
}

// ServerMatchStarted announces the start of a match with the initial
// tank roster and the arena bounds.
type ServerMatchStarted struct {
	RoomCode string         `json:"roomCode"`
	Bounds   Bounds         `json:"bounds"`
	Tanks    []TankSnapshot `json:"tanks"`
}

// ServerStateSnapshot is the full state of a match at one tick.
type ServerStateSnapshot struct {
	Timestamp   int64                `json:"timestamp"`
	Tick        uint64               `json:"tick"`
	Tanks       []TankSnapshot       `json:"tanks"`
	Projectiles []ProjectileSnapshot `json:"projectiles"`
	Scoreboard  []ScoreboardEntry    `json:"scoreboard"`
}

// ServerMatchEnded announces the end of a match with the final scoreboard.
type ServerMatchEnded struct {
	Reason     string            `json:"reason"`
	Scoreboard []ScoreboardEntry `json:"scoreboard"`
}

// ServerError reports a recoverable error to the originating connection.
type ServerError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
