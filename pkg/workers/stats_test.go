package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jdavenport/lockstep/pkg/repositories"
	"github.com/jdavenport/lockstep/pkg/repositories/models"
	"github.com/stretchr/testify/assert"
)

type fakeRepository struct {
	repositories.Repository

	mu           sync.Mutex
	savedResults [][]models.PlayerMatchResult
	roomStatuses map[string]models.RoomStatus
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		roomStatuses: make(map[string]models.RoomStatus),
	}
}

func (r *fakeRepository) SaveMatchResults(ctx context.Context, results []models.PlayerMatchResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.savedResults = append(r.savedResults, results)
	return nil
}

func (r *fakeRepository) UpdateRoomStatus(ctx context.Context, code string, status models.RoomStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roomStatuses[code] = status
	return nil
}

func (r *fakeRepository) roomStatus(code string) models.RoomStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roomStatuses[code]
}

func (r *fakeRepository) numSaved() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.savedResults)
}

func TestSaveMatchStatsWorker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repository := newFakeRepository()
	matchStatChan := make(chan SaveMatchStatsRequest, 1)
	worker := NewSaveMatchStatsWorker(NewSaveMatchStatsWorkerOptions{
		Repository:    repository,
		MatchStatChan: matchStatChan,
	})
	go worker.Start(ctx)

	matchStatChan <- SaveMatchStatsRequest{
		RoomCode:  "TEST42",
		Timestamp: time.Now().UnixMilli(),
		Results: []models.PlayerMatchResult{
			{PlayerID: 1, Kills: 2, Deaths: 0, Won: true},
			{PlayerID: 2, Kills: 0, Deaths: 2, Won: false},
		},
	}

	assert.Eventually(t, func() bool {
		return repository.numSaved() == 1 && repository.roomStatus("TEST42") == models.RoomStatusFinished
	}, time.Second, 10*time.Millisecond)
}
