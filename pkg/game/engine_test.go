package game

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/jdavenport/lockstep/pkg/game/constants"
	"github.com/jdavenport/lockstep/pkg/game/types"
	"github.com/jdavenport/lockstep/pkg/kinematic"
	"github.com/jdavenport/lockstep/pkg/messages"
	"github.com/jdavenport/lockstep/pkg/workers"
	"github.com/stretchr/testify/assert"
)

type publishedMessage struct {
	roomCode    string
	messageType string
	payload     interface{}
}

type stubPublisher struct {
	mu        sync.Mutex
	published []publishedMessage
}

func (p *stubPublisher) Publish(roomCode string, messageType string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, publishedMessage{roomCode: roomCode, messageType: messageType, payload: payload})
	return nil
}

func (p *stubPublisher) messagesOfType(messageType string) []publishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []publishedMessage{}
	for _, m := range p.published {
		if m.messageType == messageType {
			out = append(out, m)
		}
	}
	return out
}

type sentError struct {
	playerID int64
	kind     string
}

type stubErrorSender struct {
	mu   sync.Mutex
	sent []sentError
}

func (s *stubErrorSender) SendError(playerID int64, kind string, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentError{playerID: playerID, kind: kind})
}

func newTestEngine(interval time.Duration, tanks ...*types.TankState) (*Engine, *stubPublisher, *stubErrorSender) {
	state := types.NewMatchState(NewCollisionSpace())
	for _, tank := range tanks {
		state.AddTank(tank)
	}
	publisher := &stubPublisher{}
	errorSender := &stubErrorSender{}
	engine := NewEngine(NewEngineOptions{
		RoomCode:    "TEST42",
		State:       state,
		Publisher:   publisher,
		ErrorSender: errorSender,
		Interval:    interval,
	}, nil)
	return engine, publisher, errorSender
}

func TestEngine_processMoves(t *testing.T) {
	tests := []struct {
		name         string
		start        kinematic.Vector
		move         messages.ClientMove
		wantPosition kinematic.Vector
	}{
		{
			name:  "move within speed limit",
			start: kinematic.Vector{X: 60, Y: 560},
			move: messages.ClientMove{
				X: 160, Y: 560,
			},
			wantPosition: kinematic.Vector{X: 160, Y: 560},
		},
		{
			name:  "move beyond speed limit is clamped",
			start: kinematic.Vector{X: 60, Y: 560},
			move: messages.ClientMove{
				X: 700, Y: 560,
			},
			wantPosition: kinematic.Vector{X: 260, Y: 560},
		},
		{
			name:  "move outside the arena is clamped to the bounds",
			start: kinematic.Vector{X: 50, Y: 50},
			move: messages.ClientMove{
				X: -100, Y: 50,
			},
			wantPosition: kinematic.Vector{X: constants.TankWidth / 2, Y: 50},
		},
		{
			name:  "move into an obstacle is rejected",
			start: kinematic.Vector{X: 250, Y: 125},
			move: messages.ClientMove{
				X: 120, Y: 125,
			},
			wantPosition: kinematic.Vector{X: 250, Y: 125},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tank := types.NewTankState(1, "player-1", tt.start.X, tt.start.Y)
			engine, _, _ := newTestEngine(time.Second, tank)

			engine.processMoves(map[int64]messages.ClientMove{1: tt.move}, 1.0)

			assert.Equal(t, tt.wantPosition, tank.Position)
		})
	}
}

func TestEngine_processMoves_deadTankDoesNotMove(t *testing.T) {
	tank := types.NewTankState(1, "player-1", 60, 560)
	tank.Eliminate()
	engine, _, _ := newTestEngine(time.Second, tank)

	engine.processMoves(map[int64]messages.ClientMove{1: {X: 160, Y: 560}}, 1.0)

	assert.Equal(t, kinematic.Vector{X: 60, Y: 560}, tank.Position)
}

func TestEngine_processMoves_velocityIsClamped(t *testing.T) {
	tank := types.NewTankState(1, "player-1", 400, 550)
	engine, _, _ := newTestEngine(time.Second, tank)

	engine.processMoves(map[int64]messages.ClientMove{1: {
		X: 400, Y: 550, VelocityX: 1000, VelocityY: 0,
	}}, 1.0)

	assert.InDelta(t, constants.TankMoveSpeed, tank.Velocity.Length(), 1e-9)
}

func TestEngine_resolveCollisions(t *testing.T) {
	type want struct {
		victimHitpoints int
		victimDeaths    int
		shooterKills    int
		projectiles     int
	}
	tests := []struct {
		name            string
		victimHitpoints int
		want            want
	}{
		{
			name:            "hit damages the victim and consumes the projectile",
			victimHitpoints: 100,
			want: want{
				victimHitpoints: 100 - constants.ProjectileDamage,
				victimDeaths:    0,
				shooterKills:    0,
				projectiles:     0,
			},
		},
		{
			name:            "lethal hit credits the shooter",
			victimHitpoints: constants.ProjectileDamage,
			want: want{
				victimHitpoints: 0,
				victimDeaths:    1,
				shooterKills:    1,
				projectiles:     0,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shooter := types.NewTankState(1, "player-1", 100, 50)
			victim := types.NewTankState(2, "player-2", 400, 100)
			victim.Hitpoints = tt.victimHitpoints
			engine, _, _ := newTestEngine(time.Second, shooter, victim)
			engine.state.AddProjectile(types.NewProjectile("p1", 1, 400, 100, 0, 0))

			engine.resolveCollisions()

			assert.Equal(t, tt.want.victimHitpoints, victim.Hitpoints)
			assert.Equal(t, tt.want.victimDeaths, victim.Deaths)
			assert.Equal(t, tt.want.shooterKills, shooter.Kills)
			assert.Len(t, engine.state.Projectiles, tt.want.projectiles)
		})
	}
}

func TestEngine_resolveCollisions_neverHitsTheOwner(t *testing.T) {
	shooter := types.NewTankState(1, "player-1", 400, 100)
	engine, _, _ := newTestEngine(time.Second, shooter)
	engine.state.AddProjectile(types.NewProjectile("p1", 1, 400, 100, 0, 0))

	engine.resolveCollisions()

	assert.Equal(t, constants.TankHitpoints, shooter.Hitpoints)
	assert.Len(t, engine.state.Projectiles, 1)
}

func TestEngine_resolveCollisions_obstacleConsumesProjectile(t *testing.T) {
	shooter := types.NewTankState(1, "player-1", 400, 550)
	engine, _, _ := newTestEngine(time.Second, shooter)
	// inside the 100x50 obstacle at (100, 100)
	engine.state.AddProjectile(types.NewProjectile("p1", 1, 150, 125, 0, 0))

	engine.resolveCollisions()

	assert.Len(t, engine.state.Projectiles, 0)
}

func TestEngine_processFires(t *testing.T) {
	tank := types.NewTankState(1, "player-1", 400, 550)
	engine, _, errorSender := newTestEngine(50*time.Millisecond, tank)

	engine.state.Tick = 5
	engine.processFires([]fireIntent{{playerID: 1, fire: messages.ClientFire{Heading: 0}}})
	assert.Len(t, engine.state.Projectiles, 1)

	projectile := engine.state.Projectiles[0]
	assert.Equal(t, int64(1), projectile.OwnerID)
	assert.Equal(t, constants.ProjectileDamage, projectile.Damage)
	assert.InDelta(t, 400+constants.TankWidth, projectile.Position.X, 1e-9)
	assert.InDelta(t, constants.ProjectileSpeed, projectile.Velocity.X, 1e-9)

	// a 500ms cooldown is 10 ticks at 50ms per tick
	engine.state.Tick = 7
	engine.processFires([]fireIntent{{playerID: 1, fire: messages.ClientFire{Heading: 0}}})
	assert.Len(t, engine.state.Projectiles, 1)
	assert.Equal(t, []sentError{{playerID: 1, kind: "RateLimited"}}, errorSender.sent)

	engine.state.Tick = 15
	engine.processFires([]fireIntent{{playerID: 1, fire: messages.ClientFire{Heading: 0}}})
	assert.Len(t, engine.state.Projectiles, 2)
}

func TestEngine_processFires_deadTankCannotFire(t *testing.T) {
	tank := types.NewTankState(1, "player-1", 400, 550)
	tank.Eliminate()
	engine, _, _ := newTestEngine(time.Second, tank)

	engine.processFires([]fireIntent{{playerID: 1, fire: messages.ClientFire{}}})

	assert.Len(t, engine.state.Projectiles, 0)
}

func TestEngine_processDepartures(t *testing.T) {
	tank1 := types.NewTankState(1, "player-1", 50, 50)
	tank2 := types.NewTankState(2, "player-2", 750, 50)
	engine, _, _ := newTestEngine(time.Second, tank1, tank2)

	engine.processDepartures([]departIntent{{playerID: 2}})

	assert.True(t, tank2.Departed)
	assert.False(t, tank2.Alive())
	assert.Equal(t, 1, engine.state.AliveCount())
}

func TestEngine_tick_endsOnElimination(t *testing.T) {
	tank1 := types.NewTankState(1, "player-1", 50, 50)
	tank2 := types.NewTankState(2, "player-2", 750, 50)
	engine, publisher, _ := newTestEngine(time.Second, tank1, tank2)

	assert.NoError(t, engine.MarkDeparted(2))
	reason, err := engine.tick(time.Now())

	assert.NoError(t, err)
	assert.Equal(t, messages.EndReasonElimination, reason)
	assert.Len(t, publisher.messagesOfType(messages.MessageTypeServerStateSnapshot), 1)
}

func TestEngine_tick_recoversFromPanics(t *testing.T) {
	tank1 := types.NewTankState(1, "player-1", 50, 50)
	tank2 := types.NewTankState(2, "player-2", 750, 50)
	engine, _, _ := newTestEngine(time.Second, tank1, tank2)
	// a nil collision space makes the first projectile addition panic
	engine.state.CollisionSpace = nil
	assert.NoError(t, engine.SubmitFire(1, messages.ClientFire{}))

	reason, err := engine.tick(time.Now())

	assert.Error(t, err)
	assert.Equal(t, "", reason)
}

func TestEngine_finish(t *testing.T) {
	tank1 := types.NewTankState(1, "player-1", 50, 50)
	tank1.Kills = 1
	tank2 := types.NewTankState(2, "player-2", 750, 50)
	tank2.Eliminate()
	tank2.Deaths = 1

	state := types.NewMatchState(NewCollisionSpace())
	state.AddTank(tank1)
	state.AddTank(tank2)
	publisher := &stubPublisher{}
	statsChan := make(chan workers.SaveMatchStatsRequest, 1)
	endReasons := []string{}
	engine := NewEngine(NewEngineOptions{
		RoomCode:  "TEST42",
		State:     state,
		Publisher: publisher,
		StatsChan: statsChan,
		Interval:  time.Second,
	}, func(reason string) {
		endReasons = append(endReasons, reason)
	})

	engine.finish(messages.EndReasonElimination)
	engine.finish(messages.EndReasonAborted)

	assert.Equal(t, []string{messages.EndReasonElimination}, endReasons)

	ended := publisher.messagesOfType(messages.MessageTypeServerMatchEnded)
	assert.Len(t, ended, 1)
	payload := ended[0].payload.(*messages.ServerMatchEnded)
	assert.Equal(t, messages.EndReasonElimination, payload.Reason)

	request := <-statsChan
	assert.Equal(t, "TEST42", request.RoomCode)
	assert.Len(t, request.Results, 2)
	assert.True(t, request.Results[0].Won)
	assert.False(t, request.Results[1].Won)
}

func TestEngine_replayReproducesState(t *testing.T) {
	run := func() *messages.ServerStateSnapshot {
		engine, _, _ := newTestEngine(50*time.Millisecond,
			types.NewTankState(1, "player-1", 100, 80),
			types.NewTankState(2, "player-2", 700, 80),
			types.NewTankState(3, "player-3", 50, 550),
		)
		start := time.UnixMilli(1700000000000)
		for i := 0; i < 20; i++ {
			assert.NoError(t, engine.SubmitMove(2, messages.ClientMove{X: 700 - float64(10*(i+1)), Y: 80}))
			if i%10 == 0 {
				assert.NoError(t, engine.SubmitFire(1, messages.ClientFire{Heading: 0}))
			}
			if i == 12 {
				assert.NoError(t, engine.MarkDeparted(3))
			}
			reason, err := engine.tick(start.Add(time.Duration(i) * 50 * time.Millisecond))
			assert.NoError(t, err)
			assert.Equal(t, "", reason)
		}
		return engine.LastSnapshot()
	}

	first := run()
	second := run()

	assert.Equal(t, first.Tick, second.Tick)
	assert.Equal(t, first.Tanks, second.Tanks)
	assert.Equal(t, first.Scoreboard, second.Scoreboard)

	// projectile ids are random, everything else replays exactly
	assert.Equal(t, len(first.Projectiles), len(second.Projectiles))
	for i := range first.Projectiles {
		assert.Equal(t, first.Projectiles[i].OwnerID, second.Projectiles[i].OwnerID)
		assert.Equal(t, first.Projectiles[i].Position, second.Projectiles[i].Position)
		assert.Equal(t, first.Projectiles[i].Velocity, second.Projectiles[i].Velocity)
	}
}

func TestEngine_drainIntents_lastMoveWins(t *testing.T) {
	engine, _, _ := newTestEngine(time.Second, types.NewTankState(1, "player-1", 50, 50))

	assert.NoError(t, engine.SubmitMove(1, messages.ClientMove{X: 100}))
	assert.NoError(t, engine.SubmitMove(1, messages.ClientMove{X: 200}))
	moves, fires, departs := engine.drainIntents()

	assert.Equal(t, messages.ClientMove{X: 200}, moves[1])
	assert.Len(t, fires, 0)
	assert.Len(t, departs, 0)
}

func TestClampHeading(t *testing.T) {
	tests := []struct {
		name     string
		current  float64
		target   float64
		maxDelta float64
		want     float64
	}{
		{
			name:     "within the turn rate",
			current:  0,
			target:   math.Pi / 8,
			maxDelta: math.Pi / 4,
			want:     math.Pi / 8,
		},
		{
			name:     "clamped to the turn rate",
			current:  0,
			target:   math.Pi / 2,
			maxDelta: math.Pi / 4,
			want:     math.Pi / 4,
		},
		{
			name:     "turns the short way around",
			current:  0,
			target:   -3 * math.Pi / 2,
			maxDelta: math.Pi,
			want:     math.Pi / 2,
		},
		{
			name:     "negative turns are clamped too",
			current:  math.Pi / 2,
			target:   0,
			maxDelta: math.Pi / 4,
			want:     math.Pi / 4,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, clampHeading(tt.current, tt.target, tt.maxDelta), 1e-9)
		})
	}
}
