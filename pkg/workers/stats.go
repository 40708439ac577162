package workers

import (
	"context"

	"github.com/jdavenport/lockstep/pkg/log"
	"github.com/jdavenport/lockstep/pkg/repositories"
	"github.com/jdavenport/lockstep/pkg/repositories/models"
)

type SaveMatchStatsWorker struct {
	repository    repositories.Repository
	matchStatChan <-chan SaveMatchStatsRequest
}

type NewSaveMatchStatsWorkerOptions struct {
	Repository    repositories.Repository
	MatchStatChan <-chan SaveMatchStatsRequest
}

// SaveMatchStatsRequest carries the final per-player results of one match.
type SaveMatchStatsRequest struct {
	RoomCode  string
	Timestamp int64
	Results   []models.PlayerMatchResult
}

// NewSaveMatchStatsWorker creates a new SaveMatchStatsWorker.
// The worker processes match results off the tick goroutines so that
// database writes never block a simulation step.
func NewSaveMatchStatsWorker(opts NewSaveMatchStatsWorkerOptions) *SaveMatchStatsWorker {
	return &SaveMatchStatsWorker{
		repository:    opts.Repository,
		matchStatChan: opts.MatchStatChan,
	}
}

func (w *SaveMatchStatsWorker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case saveRequest := <-w.matchStatChan:
			w.saveMatchStats(ctx, saveRequest)
		}
	}
}

func (w *SaveMatchStatsWorker) saveMatchStats(ctx context.Context, saveRequest SaveMatchStatsRequest) {
	if err := w.repository.SaveMatchResults(ctx, saveRequest.Results); err != nil {
		log.Error("Failed to save match results for room %s: %v", saveRequest.RoomCode, err)
	}
	if err := w.repository.UpdateRoomStatus(ctx, saveRequest.RoomCode, models.RoomStatusFinished); err != nil {
		log.Error("Failed to update room %s status: %v", saveRequest.RoomCode, err)
	}
}
