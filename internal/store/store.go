package store

import (
	"context"
	"errors"
	"time"

	"soccer-game/internal/game"
	"soccer-game/internal/matchmaking"
	"soccer-game/internal/models"
	"soccer-game/internal/utils"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

// Store is the persistence the server needs. It serves the matchmaker's
// roster and account lookups and the public read endpoints.
type Store interface {
	matchmaking.RosterService
	matchmaking.AccountService
	matchmaking.ResultRecorder

	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	UpsertPlayer(ctx context.Context, player *models.Player) error
	SetTeam(ctx context.Context, userID string, playerIDs []string) error

	RecordMatchEvent(ctx context.Context, event models.MatchEvent) error
	ListMatchEvents(ctx context.Context, matchID string) ([]models.MatchEvent, error)
	ListMatchHistory(ctx context.Context, userID string, limit int) ([]models.MatchRecord, error)
	GetRankings(ctx context.Context, sort models.RankingSort, limit int) ([]models.RankingEntry, error)

	Close(ctx context.Context) error
}

// prepareUser fills in the fields a new user may omit.
func prepareUser(user *models.User, now time.Time) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.DisplayName == "" {
		user.DisplayName = utils.GenerateRandomDisplayName()
	}
	if user.Rating == 0 {
		user.Rating = models.DefaultRating
	}
	user.CreatedAt = now
	user.UpdatedAt = now
}

// validateTeam rejects lineups that could never play.
func validateTeam(playerIDs []string) error {
	if len(playerIDs) != game.TeamSize {
		return game.ErrIncompleteTeam
	}
	seen := make(map[string]bool, len(playerIDs))
	for _, id := range playerIDs {
		if id == "" || seen[id] {
			return errors.New("team players must be distinct and non-empty")
		}
		seen[id] = true
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return models.DefaultRankingLimit
	}
	return limit
}

// outcomeCounters returns the wins/draws/losses increments for both sides.
func outcomeCounters(outcome string) (a, b [3]int) {
	switch game.Outcome(outcome) {
	case game.WinA:
		return [3]int{1, 0, 0}, [3]int{0, 0, 1}
	case game.WinB:
		return [3]int{0, 0, 1}, [3]int{1, 0, 0}
	default:
		return [3]int{0, 1, 0}, [3]int{0, 1, 0}
	}
}

func rank(entries []models.RankingEntry) []models.RankingEntry {
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
