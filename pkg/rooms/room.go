package rooms

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jdavenport/lockstep/pkg/game"
	"github.com/jdavenport/lockstep/pkg/game/constants"
	"github.com/jdavenport/lockstep/pkg/game/types"
	"github.com/jdavenport/lockstep/pkg/log"
	"github.com/jdavenport/lockstep/pkg/messages"
	"github.com/jdavenport/lockstep/pkg/repositories/models"
	"github.com/jdavenport/lockstep/pkg/workers"
)

// Publisher delivers server messages to a room's connections or to a
// single player's connection. ReleaseRoom lets the publisher drop any
// per-room state once a room is torn down.
type Publisher interface {
	Publish(roomCode string, messageType string, payload interface{}) error
	PublishTo(playerID int64, messageType string, payload interface{}) error
	SendError(playerID int64, kind string, message string)
	ReleaseRoom(roomCode string)
}

// memberColors are assigned to members in join order, reusing freed
// slots. The palette is as large as the default room capacity.
var memberColors = []string{
	"#4fc3f7",
	"#ef5350",
	"#66bb6a",
	"#ffb74d",
	"#ab47bc",
	"#fff176",
	"#26a69a",
	"#f06292",
}

// Member is one player's seat in a room.
type Member struct {
	PlayerID int64
	Username string
	Ready    bool
	Color    string
}

// Room is one match lobby and, once started, one running match. All
// lifecycle transitions happen under the room's lock; the match itself
// runs on the engine's goroutine.
type Room struct {
	Code       string
	Name       string
	MaxPlayers int

	publisher    Publisher
	statsChan    chan<- workers.SaveMatchStatsRequest
	tickInterval time.Duration

	mu         sync.RWMutex
	status     models.RoomStatus
	ownerID    int64
	members    map[int64]*Member
	engine     *game.Engine
	cancel     context.CancelFunc
	finishedAt time.Time
	scoreboard []messages.ScoreboardEntry

	// broadcastMu orders transition broadcasts. It is acquired while mu
	// is still held and released after publishing, so broadcasts go out
	// in commit order without holding the state lock across a network
	// write. Lock order: mu before broadcastMu.
	broadcastMu sync.Mutex
}

type NewRoomOptions struct {
	Code         string
	Name         string
	MaxPlayers   int
	Publisher    Publisher
	StatsChan    chan<- workers.SaveMatchStatsRequest
	TickInterval time.Duration
}

func NewRoom(opts NewRoomOptions) *Room {
	return &Room{
		Code:         opts.Code,
		Name:         opts.Name,
		MaxPlayers:   opts.MaxPlayers,
		publisher:    opts.Publisher,
		statsChan:    opts.StatsChan,
		tickInterval: opts.TickInterval,
		status:       models.RoomStatusWaiting,
		members:      make(map[int64]*Member),
	}
}

func (r *Room) Status() models.RoomStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

func (r *Room) NumMembers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *Room) IsMember(playerID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[playerID]
	return ok
}

func (r *Room) OwnerID() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ownerID
}

// FinishedSince returns when the room's match ended, or the zero time
// if it has not.
func (r *Room) FinishedSince() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.finishedAt
}

// Join adds a player to a waiting room. The first member becomes the
// room's owner.
func (r *Room) Join(playerID int64, username string) error {
	r.mu.Lock()

	if r.status != models.RoomStatusWaiting {
		status := r.status
		r.mu.Unlock()
		return &ErrInvalidState{Status: status}
	}
	if _, ok := r.members[playerID]; ok {
		r.mu.Unlock()
		return nil
	}
	if len(r.members) >= r.MaxPlayers {
		r.mu.Unlock()
		return &ErrRoomFull{}
	}

	r.members[playerID] = &Member{
		PlayerID: playerID,
		Username: username,
		Color:    r.nextColor(),
	}
	if len(r.members) == 1 {
		r.ownerID = playerID
	}

	payload := r.membershipPayload()
	r.broadcastMu.Lock()
	r.mu.Unlock()

	log.Debug("Player %d joined room %s", playerID, r.Code)
	r.broadcastMembership(payload)
	r.broadcastMu.Unlock()
	return nil
}

// Leave removes a player from the room. Leaving an active match
// eliminates the player's tank at the next tick but keeps them on the
// scoreboard. If the owner leaves, ownership passes to the remaining
// member with the lowest id.
func (r *Room) Leave(playerID int64) error {
	r.mu.Lock()

	if _, ok := r.members[playerID]; !ok {
		r.mu.Unlock()
		return &ErrNotAMember{}
	}
	delete(r.members, playerID)

	if r.status == models.RoomStatusActive && r.engine != nil {
		if err := r.engine.MarkDeparted(playerID); err != nil {
			log.Error("Failed to mark player %d departed in room %s: %v", playerID, r.Code, err)
		}
	}

	if r.ownerID == playerID {
		r.ownerID = 0
		for _, id := range r.memberIDs() {
			r.ownerID = id
			break
		}
	}

	payload := r.membershipPayload()
	r.broadcastMu.Lock()
	r.mu.Unlock()

	log.Debug("Player %d left room %s", playerID, r.Code)
	r.broadcastMembership(payload)
	r.broadcastMu.Unlock()
	return nil
}

// SetReady sets a member's readiness. Only meaningful while waiting.
func (r *Room) SetReady(playerID int64, ready bool) error {
	r.mu.Lock()

	if r.status != models.RoomStatusWaiting {
		status := r.status
		r.mu.Unlock()
		return &ErrInvalidState{Status: status}
	}
	member, ok := r.members[playerID]
	if !ok {
		r.mu.Unlock()
		return &ErrNotAMember{}
	}
	member.Ready = ready

	payload := r.membershipPayload()
	r.broadcastMu.Lock()
	r.mu.Unlock()

	r.broadcastMembership(payload)
	r.broadcastMu.Unlock()
	return nil
}

// Start transitions the room from waiting to active and launches the
// match. Only the owner can start; the room needs at least two members
// and every member must be ready. Spawn points are assigned in
// ascending player id order.
func (r *Room) Start(playerID int64) error {
	r.mu.Lock()

	if r.status != models.RoomStatusWaiting {
		status := r.status
		r.mu.Unlock()
		return &ErrInvalidState{Status: status}
	}
	if _, ok := r.members[playerID]; !ok {
		r.mu.Unlock()
		return &ErrNotAMember{}
	}
	if playerID != r.ownerID {
		r.mu.Unlock()
		return &ErrNotOwner{}
	}
	if len(r.members) < 2 {
		r.mu.Unlock()
		return &ErrNotEnoughPlayers{}
	}
	for _, member := range r.members {
		if !member.Ready {
			r.mu.Unlock()
			return &ErrNotAllReady{}
		}
	}

	state := types.NewMatchState(game.NewCollisionSpace())
	for i, id := range r.memberIDs() {
		spawn := constants.SpawnPoints[i%len(constants.SpawnPoints)]
		state.AddTank(types.NewTankState(id, r.members[id].Username, spawn[0], spawn[1]))
	}

	engine := game.NewEngine(game.NewEngineOptions{
		RoomCode:    r.Code,
		State:       state,
		Publisher:   r.publisher,
		ErrorSender: r.publisher,
		StatsChan:   r.statsChan,
		Interval:    r.tickInterval,
	}, r.End)

	// build the start payload before the engine goroutine owns the state
	started := r.matchStartedPayload(state)
	numMembers := len(r.members)

	ctx, cancel := context.WithCancel(context.Background())
	r.status = models.RoomStatusActive
	r.engine = engine
	r.cancel = cancel
	go engine.Run(ctx)

	membership := r.membershipPayload()
	r.broadcastMu.Lock()
	r.mu.Unlock()

	log.Info("Match started in room %s with %d players", r.Code, numMembers)
	r.broadcastMembership(membership)
	r.broadcastMatchStarted(started)
	r.broadcastMu.Unlock()
	return nil
}

// End moves an active room to finished. It is idempotent: the engine
// calls it when the match ends, and abort paths call it too.
func (r *Room) End(reason string) {
	r.mu.Lock()

	if r.status != models.RoomStatusActive {
		r.mu.Unlock()
		return
	}
	r.status = models.RoomStatusFinished
	r.finishedAt = time.Now()
	if r.engine != nil {
		r.scoreboard = r.engine.Scoreboard()
	}
	r.engine = nil
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}

	payload := r.membershipPayload()
	r.broadcastMu.Lock()
	r.mu.Unlock()

	log.Debug("Room %s finished: %s", r.Code, reason)
	r.broadcastMembership(payload)
	r.broadcastMu.Unlock()
}

// Abort stops a running match with the aborted reason. The engine's end
// path then calls End.
func (r *Room) Abort() {
	r.mu.RLock()
	engine := r.engine
	r.mu.RUnlock()
	if engine != nil {
		engine.RequestStop(messages.EndReasonAborted)
	}
}

// SubmitMove forwards a movement intent to the running match.
func (r *Room) SubmitMove(playerID int64, move messages.ClientMove) error {
	engine, err := r.memberEngine(playerID)
	if err != nil {
		return err
	}
	return engine.SubmitMove(playerID, move)
}

// SubmitFire forwards a fire intent to the running match.
func (r *Room) SubmitFire(playerID int64, fire messages.ClientFire) error {
	engine, err := r.memberEngine(playerID)
	if err != nil {
		return err
	}
	return engine.SubmitFire(playerID, fire)
}

func (r *Room) memberEngine(playerID int64) (*game.Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.members[playerID]; !ok {
		return nil, &ErrNotAMember{}
	}
	if r.status != models.RoomStatusActive || r.engine == nil {
		return nil, &ErrInvalidState{Status: r.status}
	}
	return r.engine, nil
}

// Resync sends the current roster, and the latest match snapshot if a
// match is running, to a single player. Used when a connection attaches.
func (r *Room) Resync(playerID int64) error {
	r.mu.RLock()
	if _, ok := r.members[playerID]; !ok {
		r.mu.RUnlock()
		return &ErrNotAMember{}
	}
	membership := r.membershipPayload()
	var snapshot *messages.ServerStateSnapshot
	if r.status == models.RoomStatusActive && r.engine != nil {
		snapshot = r.engine.LastSnapshot()
	}
	r.mu.RUnlock()

	if err := r.publisher.PublishTo(playerID, messages.MessageTypeServerMembershipChanged, membership); err != nil {
		return err
	}
	if snapshot != nil {
		return r.publisher.PublishTo(playerID, messages.MessageTypeServerStateSnapshot, snapshot)
	}
	return nil
}

// Scoreboard returns the match scoreboard. While a match is running it
// reflects the latest completed tick; after the match it is final.
func (r *Room) Scoreboard() ([]messages.ScoreboardEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch {
	case r.status == models.RoomStatusActive && r.engine != nil:
		if snapshot := r.engine.LastSnapshot(); snapshot != nil {
			return snapshot.Scoreboard, nil
		}
		return []messages.ScoreboardEntry{}, nil
	case r.status == models.RoomStatusFinished:
		return r.scoreboard, nil
	default:
		return nil, &ErrInvalidState{Status: r.status}
	}
}

// Roster returns the room's members in ascending player id order.
func (r *Room) Roster() []messages.RosterEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.roster()
}

func (r *Room) roster() []messages.RosterEntry {
	roster := []messages.RosterEntry{}
	for _, id := range r.memberIDs() {
		member := r.members[id]
		roster = append(roster, messages.RosterEntry{
			PlayerID: member.PlayerID,
			Username: member.Username,
			Ready:    member.Ready,
			Color:    member.Color,
		})
	}
	return roster
}

func (r *Room) memberIDs() []int64 {
	ids := make([]int64, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *Room) nextColor() string {
	used := make(map[string]bool)
	for _, member := range r.members {
		used[member.Color] = true
	}
	for _, color := range memberColors {
		if !used[color] {
			return color
		}
	}
	return memberColors[len(r.members)%len(memberColors)]
}

func (r *Room) membershipPayload() *messages.ServerMembershipChanged {
	return &messages.ServerMembershipChanged{
		RoomCode: r.Code,
		Status:   string(r.status),
		Roster:   r.roster(),
	}
}

func (r *Room) broadcastMembership(payload *messages.ServerMembershipChanged) {
	if err := r.publisher.Publish(r.Code, messages.MessageTypeServerMembershipChanged, payload); err != nil {
		log.Error("Failed to publish membership for room %s: %v", r.Code, err)
	}
}

func (r *Room) matchStartedPayload(state *types.MatchState) *messages.ServerMatchStarted {
	started := &messages.ServerMatchStarted{
		RoomCode: r.Code,
		Bounds: messages.Bounds{
			MaxX: constants.ArenaWidth,
			MaxY: constants.ArenaHeight,
		},
		Tanks: []messages.TankSnapshot{},
	}
	for _, id := range state.TankIDs() {
		tank := state.Tanks[id]
		started.Tanks = append(started.Tanks, messages.TankSnapshot{
			PlayerID:     tank.PlayerID,
			Username:     tank.Username,
			Position:     messages.Position{X: tank.Position.X, Y: tank.Position.Y},
			Heading:      tank.Heading,
			Hitpoints:    tank.Hitpoints,
			MaxHitpoints: tank.MaxHitpoints,
			Alive:        true,
		})
	}
	return started
}

func (r *Room) broadcastMatchStarted(payload *messages.ServerMatchStarted) {
	if err := r.publisher.Publish(r.Code, messages.MessageTypeServerMatchStarted, payload); err != nil {
		log.Error("Failed to publish match start for room %s: %v", r.Code, err)
	}
}
