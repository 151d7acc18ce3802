package audit

import (
	"context"
	"sync"
	"time"

	"soccer-game/internal/logger"
	"soccer-game/internal/models"

	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

// Sink persists journal entries.
type Sink interface {
	RecordMatchEvent(ctx context.Context, event models.MatchEvent) error
}

// Journal writes matchmaking lifecycle events to a Sink without blocking the
// caller.
type Journal struct {
	sink Sink
	log  *zap.Logger
	wg   sync.WaitGroup
}

func NewJournal(sink Sink, l *zap.Logger) *Journal {
	return &Journal{sink: sink, log: logger.OrNop(l)}
}

// Record writes the event to the sink (fire-and-forget).
func (j *Journal) Record(event models.MatchEvent) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := j.sink.RecordMatchEvent(ctx, event); err != nil {
			j.log.Warn("journal write failed",
				zap.String("type", string(event.Type)),
				zap.String("matchId", event.MatchID),
				zap.Error(err))
		}
	}()
}

// Wait blocks until every pending write has finished.
func (j *Journal) Wait() {
	j.wg.Wait()
}
