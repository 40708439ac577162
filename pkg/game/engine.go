package game

import (
	"context"
	"math"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jdavenport/lockstep/pkg/game/constants"
	"github.com/jdavenport/lockstep/pkg/game/types"
	"github.com/jdavenport/lockstep/pkg/kinematic"
	"github.com/jdavenport/lockstep/pkg/log"
	"github.com/jdavenport/lockstep/pkg/messages"
	"github.com/jdavenport/lockstep/pkg/queue"
	"github.com/jdavenport/lockstep/pkg/repositories/models"
	"github.com/jdavenport/lockstep/pkg/workers"
)

// Publisher delivers a server message to every connection in a room.
type Publisher interface {
	Publish(roomCode string, messageType string, payload interface{}) error
}

// ErrorSender delivers an error message to a single player's connection.
type ErrorSender interface {
	SendError(playerID int64, kind string, message string)
}

// Engine runs the authoritative simulation for one room's match. All
// state mutation happens on the goroutine running Run; inputs arrive
// through the intent queue and are applied at tick boundaries.
type Engine struct {
	roomCode     string
	state        *types.MatchState
	intentQueue  queue.Queue
	publisher    Publisher
	errorSender  ErrorSender
	statsChan    chan<- workers.SaveMatchStatsRequest
	interval     time.Duration
	onEnd        func(reason string)
	stopChan     chan string
	lastFireTick map[int64]uint64
	lastSnapshot atomic.Value
	finished     bool
}

type NewEngineOptions struct {
	RoomCode    string
	State       *types.MatchState
	Publisher   Publisher
	ErrorSender ErrorSender
	StatsChan   chan<- workers.SaveMatchStatsRequest
	Interval    time.Duration
}

type moveIntent struct {
	playerID int64
	move     messages.ClientMove
}

type fireIntent struct {
	playerID int64
	fire     messages.ClientFire
}

type departIntent struct {
	playerID int64
}

// NewEngine creates a new Engine. The onEnd callback fires exactly once,
// from the engine goroutine, after the final match_ended broadcast.
func NewEngine(opts NewEngineOptions, onEnd func(reason string)) *Engine {
	return &Engine{
		roomCode:     opts.RoomCode,
		state:        opts.State,
		intentQueue:  queue.NewInMemoryQueue(messages.MessageBufferSize),
		publisher:    opts.Publisher,
		errorSender:  opts.ErrorSender,
		statsChan:    opts.StatsChan,
		interval:     opts.Interval,
		onEnd:        onEnd,
		stopChan:     make(chan string, 1),
		lastFireTick: make(map[int64]uint64),
	}
}

// SubmitMove buffers a movement intent for the next tick. Later intents
// from the same player replace earlier ones within a tick.
func (e *Engine) SubmitMove(playerID int64, move messages.ClientMove) error {
	return e.intentQueue.Enqueue(moveIntent{playerID: playerID, move: move})
}

// SubmitFire buffers a fire intent for the next tick.
func (e *Engine) SubmitFire(playerID int64, fire messages.ClientFire) error {
	return e.intentQueue.Enqueue(fireIntent{playerID: playerID, fire: fire})
}

// MarkDeparted buffers a departure. The tank is eliminated at the start
// of the next tick but stays on the scoreboard.
func (e *Engine) MarkDeparted(playerID int64) error {
	return e.intentQueue.Enqueue(departIntent{playerID: playerID})
}

// RequestStop asks the engine to end the match with the given reason at
// the next tick boundary. Safe to call from any goroutine; only the
// first request takes effect.
func (e *Engine) RequestStop(reason string) {
	select {
	case e.stopChan <- reason:
	default:
	}
}

// LastSnapshot returns the most recently published state snapshot, or
// nil if no tick has completed yet.
func (e *Engine) LastSnapshot() *messages.ServerStateSnapshot {
	snapshot, ok := e.lastSnapshot.Load().(*messages.ServerStateSnapshot)
	if !ok {
		return nil
	}
	return snapshot
}

// Run starts the tick loop and blocks until the match ends or the
// context is cancelled.
func (e *Engine) Run(ctx context.Context) {
	log.Debug("Starting engine for room %s", e.roomCode)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.finish(messages.EndReasonAborted)
			return
		case reason := <-e.stopChan:
			e.finish(reason)
			return
		case t := <-ticker.C:
			reason, err := e.tick(t)
			if err != nil {
				log.Error("Tick failed for room %s: %v", e.roomCode, err)
				e.finish(messages.EndReasonInternalError)
				return
			}
			if reason != "" {
				e.finish(reason)
				return
			}
		}
	}
}

// tick applies one simulation step. A non-empty reason means the match
// is over. A panic anywhere in the step is converted into an error so
// one room's failure never takes down the process.
func (e *Engine) tick(t time.Time) (reason string, err error) {
	defer func() {
		if r := recover(); r != nil {
			reason = ""
			err = &tickPanicError{value: r}
		}
	}()

	e.state.Tick++
	e.state.Timestamp = t.UnixMilli()
	deltaTime := e.interval.Seconds()

	moves, fires, departs := e.drainIntents()

	e.processDepartures(departs)
	e.processMoves(moves, deltaTime)
	e.advanceProjectiles(deltaTime)
	e.resolveCollisions()

	if e.state.AliveCount() <= 1 {
		e.publishSnapshot()
		return messages.EndReasonElimination, nil
	}

	e.processFires(fires)
	e.publishSnapshot()

	return "", nil
}

type tickPanicError struct {
	value interface{}
}

func (e *tickPanicError) Error() string {
	return "tick panicked"
}

// drainIntents empties the intent queue, keeping only the latest move
// per player. Fire intents and departures are kept in arrival order.
func (e *Engine) drainIntents() (map[int64]messages.ClientMove, []fireIntent, []departIntent) {
	pending, err := e.intentQueue.ReadAllMessages()
	if err != nil {
		log.Error("Failed to read intents for room %s: %v", e.roomCode, err)
		return nil, nil, nil
	}

	moves := make(map[int64]messages.ClientMove)
	fires := []fireIntent{}
	departs := []departIntent{}
	for _, item := range pending {
		switch intent := item.(type) {
		case moveIntent:
			moves[intent.playerID] = intent.move
		case fireIntent:
			fires = append(fires, intent)
		case departIntent:
			departs = append(departs, intent)
		default:
			log.Error("Unknown intent type %T for room %s", intent, e.roomCode)
		}
	}

	return moves, fires, departs
}

func (e *Engine) processDepartures(departs []departIntent) {
	for _, depart := range departs {
		tank, ok := e.state.Tanks[depart.playerID]
		if !ok || tank.Departed {
			continue
		}
		tank.Departed = true
		tank.Eliminate()
		tank.Velocity = kinematic.Vector{}
		log.Debug("Player %d departed room %s", depart.playerID, e.roomCode)
	}
}

// processMoves applies buffered movement intents in ascending player id
// order. The requested position is clamped to the tank's maximum speed,
// the requested heading to its turn rate, and the result to the arena.
// A move into an obstacle is rejected and the tank stays put.
func (e *Engine) processMoves(moves map[int64]messages.ClientMove, deltaTime float64) {
	for _, playerID := range e.state.TankIDs() {
		move, ok := moves[playerID]
		if !ok {
			continue
		}
		tank := e.state.Tanks[playerID]
		if !tank.Alive() || tank.Departed {
			continue
		}

		tank.Heading = clampHeading(tank.Heading, move.Heading, constants.TankTurnRate*deltaTime)
		tank.Velocity = kinematic.Vector{X: move.VelocityX, Y: move.VelocityY}.ClampLength(constants.TankMoveSpeed)

		target := kinematic.Vector{X: move.X, Y: move.Y}
		delta := target.Add(tank.Position.Scale(-1)).ClampLength(constants.TankMoveSpeed * deltaTime)
		target = clampToArena(tank.Position.Add(delta))

		dx := target.X - tank.Position.X
		dy := target.Y - tank.Position.Y
		if collision := tank.Object.Check(dx, dy, types.CollisionSpaceTagObstacle); collision != nil {
			continue
		}

		tank.Position = target
		tank.SyncObject()
	}
}

func (e *Engine) advanceProjectiles(deltaTime float64) {
	live := e.state.Projectiles[:0]
	for _, projectile := range e.state.Projectiles {
		projectile.Advance(deltaTime)
		if !projectile.InBounds() || projectile.Expired(e.state.Tick, e.interval.Seconds()) {
			e.state.RemoveProjectile(projectile)
			continue
		}
		live = append(live, projectile)
	}
	e.state.Projectiles = live
}

// resolveCollisions applies projectile hits. Projectiles are checked in
// spawn order and candidate tanks in ascending player id order, so the
// outcome of a tick is fully determined by its inputs. A projectile
// damages at most one tank and never its owner, and is consumed by
// obstacles.
func (e *Engine) resolveCollisions() {
	tankIDs := e.state.TankIDs()

	for _, projectile := range e.state.Projectiles {
		if projectile.Object.SharesCellsTags(types.CollisionSpaceTagObstacle) {
			projectile.Consumed = true
			continue
		}

		for _, playerID := range tankIDs {
			if playerID == projectile.OwnerID {
				continue
			}
			tank := e.state.Tanks[playerID]
			if !tank.Alive() || tank.Departed {
				continue
			}
			if !projectile.Object.SharesCells(tank.Object) {
				continue
			}

			tank.TakeDamage(projectile.Damage)
			projectile.Consumed = true
			if !tank.Alive() {
				tank.Deaths++
				if owner, ok := e.state.Tanks[projectile.OwnerID]; ok && !owner.Departed {
					owner.Kills++
				}
				log.Debug("Player %d eliminated player %d in room %s", projectile.OwnerID, playerID, e.roomCode)
			}
			break
		}
	}

	live := e.state.Projectiles[:0]
	for _, projectile := range e.state.Projectiles {
		if projectile.Consumed {
			e.state.RemoveProjectile(projectile)
			continue
		}
		live = append(live, projectile)
	}
	e.state.Projectiles = live
}

// processFires spawns projectiles for buffered fire intents, in arrival
// order. A player still inside their fire cooldown gets a rate limit
// error instead of a projectile.
func (e *Engine) processFires(fires []fireIntent) {
	cooldownTicks := uint64(math.Ceil(constants.FireCooldown / e.interval.Seconds()))

	for _, fire := range fires {
		tank, ok := e.state.Tanks[fire.playerID]
		if !ok || !tank.Alive() || tank.Departed {
			continue
		}

		if last, ok := e.lastFireTick[fire.playerID]; ok && e.state.Tick-last < cooldownTicks {
			if e.errorSender != nil {
				e.errorSender.SendError(fire.playerID, "RateLimited", "fire cooldown has not elapsed")
			}
			continue
		}
		e.lastFireTick[fire.playerID] = e.state.Tick

		heading := fire.fire.Heading
		muzzle := tank.Position.Add(kinematic.Heading(heading).Scale(constants.TankWidth))
		projectile := types.NewProjectile(uuid.New().String(), fire.playerID, muzzle.X, muzzle.Y, heading, e.state.Tick)
		e.state.AddProjectile(projectile)
	}
}

func (e *Engine) publishSnapshot() {
	snapshot := e.buildSnapshot()
	e.lastSnapshot.Store(snapshot)
	if err := e.publisher.Publish(e.roomCode, messages.MessageTypeServerStateSnapshot, snapshot); err != nil {
		log.Error("Failed to publish snapshot for room %s: %v", e.roomCode, err)
	}
}

func (e *Engine) buildSnapshot() *messages.ServerStateSnapshot {
	snapshot := &messages.ServerStateSnapshot{
		Timestamp:   e.state.Timestamp,
		Tick:        e.state.Tick,
		Tanks:       []messages.TankSnapshot{},
		Projectiles: []messages.ProjectileSnapshot{},
		Scoreboard:  e.Scoreboard(),
	}

	for _, playerID := range e.state.TankIDs() {
		tank := e.state.Tanks[playerID]
		if tank.Departed {
			continue
		}
		snapshot.Tanks = append(snapshot.Tanks, messages.TankSnapshot{
			PlayerID:     tank.PlayerID,
			Username:     tank.Username,
			Position:     messages.Position{X: tank.Position.X, Y: tank.Position.Y},
			Velocity:     messages.Velocity{X: tank.Velocity.X, Y: tank.Velocity.Y},
			Heading:      tank.Heading,
			Hitpoints:    tank.Hitpoints,
			MaxHitpoints: tank.MaxHitpoints,
			Alive:        tank.Alive(),
		})
	}

	for _, projectile := range e.state.Projectiles {
		snapshot.Projectiles = append(snapshot.Projectiles, messages.ProjectileSnapshot{
			ID:       projectile.ID,
			OwnerID:  projectile.OwnerID,
			Position: messages.Position{X: projectile.Position.X, Y: projectile.Position.Y},
			Velocity: messages.Velocity{X: projectile.Velocity.X, Y: projectile.Velocity.Y},
			Damage:   projectile.Damage,
		})
	}

	return snapshot
}

// Scoreboard returns the current scoreboard, ordered by kills descending
// with ties broken by ascending player id. Departed players stay listed.
func (e *Engine) Scoreboard() []messages.ScoreboardEntry {
	scoreboard := []messages.ScoreboardEntry{}
	for _, playerID := range e.state.TankIDs() {
		tank := e.state.Tanks[playerID]
		scoreboard = append(scoreboard, messages.ScoreboardEntry{
			PlayerID: tank.PlayerID,
			Username: tank.Username,
			Kills:    tank.Kills,
			Deaths:   tank.Deaths,
		})
	}
	sort.SliceStable(scoreboard, func(i, j int) bool {
		return scoreboard[i].Kills > scoreboard[j].Kills
	})
	return scoreboard
}

// finish ends the match: it broadcasts match_ended with the final
// scoreboard, hands the results to the stats worker, and fires the
// onEnd callback. It runs at most once.
func (e *Engine) finish(reason string) {
	if e.finished {
		return
	}
	e.finished = true

	log.Info("Match ended in room %s: %s", e.roomCode, reason)

	ended := &messages.ServerMatchEnded{
		Reason:     reason,
		Scoreboard: e.Scoreboard(),
	}
	if err := e.publisher.Publish(e.roomCode, messages.MessageTypeServerMatchEnded, ended); err != nil {
		log.Error("Failed to publish match end for room %s: %v", e.roomCode, err)
	}

	if e.statsChan != nil {
		select {
		case e.statsChan <- workers.SaveMatchStatsRequest{
			RoomCode:  e.roomCode,
			Timestamp: time.Now().UnixMilli(),
			Results:   e.matchResults(reason),
		}:
		default:
			log.Error("Failed to submit match results for room %s: stats channel is full", e.roomCode)
		}
	}

	if e.onEnd != nil {
		e.onEnd(reason)
	}
}

func (e *Engine) matchResults(reason string) []models.PlayerMatchResult {
	results := []models.PlayerMatchResult{}
	for _, playerID := range e.state.TankIDs() {
		tank := e.state.Tanks[playerID]
		results = append(results, models.PlayerMatchResult{
			PlayerID: tank.PlayerID,
			Kills:    tank.Kills,
			Deaths:   tank.Deaths,
			Won:      reason == messages.EndReasonElimination && tank.Alive() && !tank.Departed,
		})
	}
	return results
}

// clampHeading turns current toward target, limited to maxDelta radians.
func clampHeading(current, target, maxDelta float64) float64 {
	diff := math.Mod(target-current, 2*math.Pi)
	if diff > math.Pi {
		diff -= 2 * math.Pi
	} else if diff < -math.Pi {
		diff += 2 * math.Pi
	}
	if diff > maxDelta {
		diff = maxDelta
	} else if diff < -maxDelta {
		diff = -maxDelta
	}
	return current + diff
}

// clampToArena keeps a tank's center far enough from the edges that its
// collision box stays inside the arena.
func clampToArena(position kinematic.Vector) kinematic.Vector {
	position.X = math.Max(constants.TankWidth/2, math.Min(position.X, constants.ArenaWidth-constants.TankWidth/2))
	position.Y = math.Max(constants.TankHeight/2, math.Min(position.Y, constants.ArenaHeight-constants.TankHeight/2))
	return position
}
