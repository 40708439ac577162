package repositories

import (
	"context"

	"github.com/jdavenport/lockstep/pkg/repositories/models"
)

type Repository interface {
	Close(ctx context.Context) error
	CreatePlayer(ctx context.Context, username, email, hashedPassword string) (*models.Player, error)
	GetPlayer(ctx context.Context, playerID int64) (*models.Player, error)
	GetPlayerByUsername(ctx context.Context, username string) (*models.Player, error)
	GetLeaderboard(ctx context.Context, orderBy string, limit int) ([]*models.Player, error)
	UpsertRoom(ctx context.Context, room *models.Room) error
	UpdateRoomStatus(ctx context.Context, code string, status models.RoomStatus) error
	DeleteRoom(ctx context.Context, code string) error
	SaveMatchResults(ctx context.Context, results []models.PlayerMatchResult) error
}
