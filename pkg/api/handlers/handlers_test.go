package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jdavenport/lockstep/pkg/repositories"
	"github.com/jdavenport/lockstep/pkg/repositories/models"
	"github.com/stretchr/testify/assert"
)

type fakeLeaderboardRepository struct {
	repositories.Repository
	orderBy string
	limit   int
	players []*models.Player
}

func (f *fakeLeaderboardRepository) GetLeaderboard(ctx context.Context, orderBy string, limit int) ([]*models.Player, error) {
	f.orderBy = orderBy
	f.limit = limit
	return f.players, nil
}

func TestHandleLeaderboard(t *testing.T) {
	repository := &fakeLeaderboardRepository{
		players: []*models.Player{
			{ID: 1, Username: "player-1", Kills: 6, Deaths: 3, Wins: 2, Losses: 2, GamesPlayed: 4},
			{ID: 2, Username: "player-2", Kills: 2, Deaths: 0, Wins: 0, Losses: 2, GamesPlayed: 2},
		},
	}
	handler := HandleLeaderboard(repository)

	recorder := httptest.NewRecorder()
	handler(recorder, httptest.NewRequest(http.MethodGet, "/leaderboard?orderBy=kills&limit=5", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "kills", repository.orderBy)
	assert.Equal(t, 5, repository.limit)

	entries := []leaderboardEntryResponse{}
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &entries))
	assert.Equal(t, []leaderboardEntryResponse{
		{PlayerID: 1, Username: "player-1", Kills: 6, Deaths: 3, Wins: 2, Losses: 2, GamesPlayed: 4, KDRatio: 2, WinRate: 0.5},
		{PlayerID: 2, Username: "player-2", Kills: 2, Deaths: 0, Wins: 0, Losses: 2, GamesPlayed: 2, KDRatio: 2, WinRate: 0},
	}, entries)

	t.Run("rejects an out-of-range limit", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		handler(recorder, httptest.NewRequest(http.MethodGet, "/leaderboard?limit=0", nil))
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}
