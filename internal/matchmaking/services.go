package matchmaking

import (
	"context"

	"soccer-game/internal/game"
	"soccer-game/internal/models"
)

// RosterService returns a participant's current lineup. It returns
// game.ErrNoTeam when the participant has no team.
type RosterService interface {
	GetTeam(ctx context.Context, participantID string) ([]game.Attributes, error)
}

// AccountService owns ratings. ApplyRatingDelta must clamp at zero.
type AccountService interface {
	GetRating(ctx context.Context, participantID string) (int, error)
	ApplyRatingDelta(ctx context.Context, participantID string, delta int) error
}

// ResultRecorder persists resolved matches. Optional.
type ResultRecorder interface {
	RecordMatchResult(ctx context.Context, record models.MatchRecord) error
}

// Journal receives matchmaking lifecycle events. Record must not block.
type Journal interface {
	Record(event models.MatchEvent)
}
