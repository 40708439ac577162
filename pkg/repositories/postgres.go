package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jdavenport/lockstep/pkg/log"
	"github.com/jdavenport/lockstep/pkg/repositories/models"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository connects to the database and verifies the
// connection. The caller is responsible for calling Close() on the
// repository.
func NewPostgresRepository(ctx context.Context, connStr string) (Repository, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %v", err)
	}

	var username string
	var database string
	if err := pool.QueryRow(ctx, "SELECT current_user, current_database()").Scan(&username, &database); err != nil {
		return nil, fmt.Errorf("failed to query database: %v", err)
	}
	log.Info("Connected to %s as %s", database, username)

	return &PostgresRepository{
		pool: pool,
	}, nil
}

func (r *PostgresRepository) Close(ctx context.Context) error {
	r.pool.Close()
	return nil
}

func (r *PostgresRepository) CreatePlayer(ctx context.Context, username, email, hashedPassword string) (*models.Player, error) {
	q := `
	INSERT INTO players (username, email, hashed_password)
	VALUES ($1, $2, $3)
	ON CONFLICT (username) DO NOTHING
	RETURNING id;
	`
	var id int64
	if err := r.pool.QueryRow(ctx, q, username, email, hashedPassword).Scan(&id); err != nil {
		if err == pgx.ErrNoRows {
			return nil, &ErrNameExists{}
		}
		return nil, fmt.Errorf("failed to insert player: %v", err)
	}

	return &models.Player{
		ID:             id,
		Username:       username,
		Email:          email,
		HashedPassword: hashedPassword,
	}, nil
}

func (r *PostgresRepository) GetPlayer(ctx context.Context, playerID int64) (*models.Player, error) {
	q := `
	SELECT id, username, email, hashed_password, kills, deaths, wins, losses, games_played
	FROM players WHERE id = $1;
	`
	return r.scanPlayer(r.pool.QueryRow(ctx, q, playerID))
}

func (r *PostgresRepository) GetPlayerByUsername(ctx context.Context, username string) (*models.Player, error) {
	q := `
	SELECT id, username, email, hashed_password, kills, deaths, wins, losses, games_played
	FROM players WHERE username = $1;
	`
	return r.scanPlayer(r.pool.QueryRow(ctx, q, username))
}

func (r *PostgresRepository) scanPlayer(row pgx.Row) (*models.Player, error) {
	p := &models.Player{}
	if err := row.Scan(&p.ID, &p.Username, &p.Email, &p.HashedPassword, &p.Kills, &p.Deaths, &p.Wins, &p.Losses, &p.GamesPlayed); err != nil {
		if err == pgx.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan player: %v", err)
	}
	return p, nil
}

func (r *PostgresRepository) GetLeaderboard(ctx context.Context, orderBy string, limit int) ([]*models.Player, error) {
	column, ok := leaderboardColumns[orderBy]
	if !ok {
		return nil, fmt.Errorf("failed to order leaderboard by %q", orderBy)
	}

	q := fmt.Sprintf(`
	SELECT id, username, kills, deaths, wins, losses, games_played
	FROM players ORDER BY %s DESC, id ASC LIMIT $1;
	`, column)
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query players: %v", err)
	}
	defer rows.Close()

	players := []*models.Player{}
	for rows.Next() {
		p := &models.Player{}
		if err := rows.Scan(&p.ID, &p.Username, &p.Kills, &p.Deaths, &p.Wins, &p.Losses, &p.GamesPlayed); err != nil {
			return nil, fmt.Errorf("failed to scan player: %v", err)
		}
		players = append(players, p)
	}

	return players, nil
}

func (r *PostgresRepository) UpsertRoom(ctx context.Context, room *models.Room) error {
	q := `
	INSERT INTO rooms (code, name, status, max_players) VALUES ($1, $2, $3, $4)
	ON CONFLICT (code) DO UPDATE SET name = $2, status = $3, max_players = $4;
	`
	_, err := r.pool.Exec(ctx, q, room.Code, room.Name, room.Status, room.MaxPlayers)
	if err != nil {
		return fmt.Errorf("failed to insert room: %v", err)
	}

	return nil
}

func (r *PostgresRepository) UpdateRoomStatus(ctx context.Context, code string, status models.RoomStatus) error {
	q := `
	UPDATE rooms SET status = $1 WHERE code = $2;
	`
	_, err := r.pool.Exec(ctx, q, status, code)
	if err != nil {
		return fmt.Errorf("failed to update room: %v", err)
	}

	return nil
}

func (r *PostgresRepository) DeleteRoom(ctx context.Context, code string) error {
	q := `
	DELETE FROM rooms WHERE code = $1;
	`
	_, err := r.pool.Exec(ctx, q, code)
	if err != nil {
		return fmt.Errorf("failed to delete room: %v", err)
	}

	return nil
}

func (r *PostgresRepository) SaveMatchResults(ctx context.Context, results []models.PlayerMatchResult) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	for _, result := range results {
		wins := 0
		losses := 1
		if result.Won {
			wins = 1
			losses = 0
		}
		q := `
		UPDATE players SET
			kills = kills + $1,
			deaths = deaths + $2,
			wins = wins + $3,
			losses = losses + $4,
			games_played = games_played + 1
		WHERE id = $5;
		`
		_, err = tx.Exec(ctx, q, result.Kills, result.Deaths, wins, losses, result.PlayerID)
		if err != nil {
			return fmt.Errorf("failed to update player: %v", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}
