package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jdavenport/lockstep/pkg/repositories/models"
	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(ctx context.Context, path string, migrations string) (Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	dir, err := os.ReadDir(migrations)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %v", err)
	}

	for _, entry := range dir {
		if entry.IsDir() {
			continue
		}

		migrationPath := filepath.Join(migrations, entry.Name())
		migration, err := os.ReadFile(migrationPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %v", migrationPath, err)
		}

		if _, err := db.ExecContext(ctx, string(migration)); err != nil {
			return nil, fmt.Errorf("failed to execute migration %s: %v", migrationPath, err)
		}
	}

	return &SQLiteRepository{
		db: db,
	}, nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *SQLiteRepository) CreatePlayer(ctx context.Context, username, email, hashedPassword string) (*models.Player, error) {
	q := `
	INSERT INTO players (username, email, hashed_password)
	VALUES (?, ?, ?);
	`
	result, err := r.db.ExecContext(ctx, q, username, email, hashedPassword)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, &ErrNameExists{}
		}
		return nil, fmt.Errorf("failed to insert player: %v", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get player id: %v", err)
	}

	return &models.Player{
		ID:             id,
		Username:       username,
		Email:          email,
		HashedPassword: hashedPassword,
	}, nil
}

func (r *SQLiteRepository) GetPlayer(ctx context.Context, playerID int64) (*models.Player, error) {
	q := `
	SELECT id, username, email, hashed_password, kills, deaths, wins, losses, games_played
	FROM players WHERE id = ?;
	`
	return r.scanPlayer(r.db.QueryRowContext(ctx, q, playerID))
}

func (r *SQLiteRepository) GetPlayerByUsername(ctx context.Context, username string) (*models.Player, error) {
	q := `
	SELECT id, username, email, hashed_password, kills, deaths, wins, losses, games_played
	FROM players WHERE username = ?;
	`
	return r.scanPlayer(r.db.QueryRowContext(ctx, q, username))
}

func (r *SQLiteRepository) scanPlayer(row *sql.Row) (*models.Player, error) {
	p := &models.Player{}
	if err := row.Scan(&p.ID, &p.Username, &p.Email, &p.HashedPassword, &p.Kills, &p.Deaths, &p.Wins, &p.Losses, &p.GamesPlayed); err != nil {
		if err == sql.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan player: %v", err)
	}
	return p, nil
}

func (r *SQLiteRepository) GetLeaderboard(ctx context.Context, orderBy string, limit int) ([]*models.Player, error) {
	column, ok := leaderboardColumns[orderBy]
	if !ok {
		return nil, fmt.Errorf("failed to order leaderboard by %q", orderBy)
	}

	q := fmt.Sprintf(`
	SELECT id, username, kills, deaths, wins, losses, games_played
	FROM players ORDER BY %s DESC, id ASC LIMIT ?;
	`, column)
	rows, err := r.db.QueryContext(ctx, q, limit)
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

func (r *SQLiteRepository) UpsertRoom(ctx context.Context, room *models.Room) error {
	q := `
	INSERT OR REPLACE INTO rooms (code, name, status, max_players)
	VALUES (?, ?, ?, ?);
	`
	_, err := r.db.ExecContext(ctx, q, room.Code, room.Name, room.Status, room.MaxPlayers)
	if err != nil {
		return fmt.Errorf("failed to insert room: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) UpdateRoomStatus(ctx context.Context, code string, status models.RoomStatus) error {
	q := `
	UPDATE rooms SET status = ? WHERE code = ?;
	`
	_, err := r.db.ExecContext(ctx, q, status, code)
	if err != nil {
		return fmt.Errorf("failed to update room: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) DeleteRoom(ctx context.Context, code string) error {
	q := `
	DELETE FROM rooms WHERE code = ?;
	`
	_, err := r.db.ExecContext(ctx, q, code)
	if err != nil {
		return fmt.Errorf("failed to delete room: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) SaveMatchResults(ctx context.Context, results []models.PlayerMatchResult) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	for _, result := range results {
		wins := 0
		losses := 1
		if result.Won {
			wins = 1
			losses = 0
		}
		q := `
		UPDATE players SET
			kills = kills + ?,
			deaths = deaths + ?,
			wins = wins + ?,
			losses = losses + ?,
			games_played = games_played + 1
		WHERE id = ?;
		`
		_, err = tx.ExecContext(ctx, q, result.Kills, result.Deaths, wins, losses, result.PlayerID)
		if err != nil {
			return fmt.Errorf("failed to update player: %v", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}

// leaderboardColumns whitelists the sortable leaderboard columns.
var leaderboardColumns = map[string]string{
	"kills": "kills",
	"wins":  "wins",
}
