package matchmaking

import (
	"errors"

	"soccer-game/internal/game"
)

var (
	ErrNoPendingMatch        = errors.New("no pending match")
	ErrMatchAlreadyResolved  = errors.New("match already resolved")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrInvalidParticipant    = errors.New("participant id is required")

	// Re-exported so callers need only this package.
	ErrIncompleteTeam = game.ErrIncompleteTeam
	ErrNoTeam         = game.ErrNoTeam
)

// isRosterError reports whether err means a team cannot play, as opposed to a
// collaborator being down.
func isRosterError(err error) bool {
	return errors.Is(err, game.ErrIncompleteTeam) || errors.Is(err, game.ErrNoTeam)
}
