package rating

import (
	"math"
)

type GameResult int

const (
	Loss GameResult = 0
	Draw GameResult = 1
	Win  GameResult = 2
)

const (
	// Fixed-step rewards
	WinPoints  = 10
	LossPoints = 5
	DrawPoints = 3

	// Ratings never drop below this
	MinRating = 0

	// Elo K-factor for the optional Elo policy
	DefaultKFactor = 32
)

// Policy converts the result for side A into rating changes for both sides.
type Policy interface {
	Changes(ratingA, ratingB int, resultA GameResult) (deltaA, deltaB int)
}

// FixedPolicy rewards a win with +10, a draw with +3, and takes 5 points from
// the loser without letting the rating go negative.
type FixedPolicy struct{}

func NewFixedPolicy() FixedPolicy {
	return FixedPolicy{}
}

// NewRating returns the rating after a game with the given result.
func (FixedPolicy) NewRating(current int, result GameResult) int {
	switch result {
	case Win:
		return current + WinPoints
	case Draw:
		return current + DrawPoints
	default:
		newRating := current - LossPoints
		if newRating < MinRating {
			newRating = MinRating
		}
		return newRating
	}
}

func (p FixedPolicy) Changes(ratingA, ratingB int, resultA GameResult) (int, int) {
	resultB := Opposite(resultA)
	return p.NewRating(ratingA, resultA) - ratingA, p.NewRating(ratingB, resultB) - ratingB
}

// EloPolicy applies the classic Elo update with a single K-factor.
type EloPolicy struct {
	KFactor int
}

func NewEloPolicy(kFactor int) EloPolicy {
	if kFactor <= 0 {
		kFactor = DefaultKFactor
	}
	return EloPolicy{KFactor: kFactor}
}

// CalculateNewRating calculates the new Elo rating for a player
func (p EloPolicy) CalculateNewRating(playerRating, opponentRating int, result GameResult) int {
	expectedScore := calculateExpectedScore(playerRating, opponentRating)

	var actualScore float64
	switch result {
	case Win:
		actualScore = 1.0
	case Draw:
		actualScore = 0.5
	case Loss:
		actualScore = 0.0
	}

	// ΔR = K × (S - E)
	ratingChange := float64(p.KFactor) * (actualScore - expectedScore)

	newRating := playerRating + int(math.Round(ratingChange))
	if newRating < MinRating {
		newRating = MinRating
	}
	return newRating
}

func (p EloPolicy) Changes(ratingA, ratingB int, resultA GameResult) (int, int) {
	resultB := Opposite(resultA)
	newA := p.CalculateNewRating(ratingA, ratingB, resultA)
	newB := p.CalculateNewRating(ratingB, ratingA, resultB)
	return newA - ratingA, newB - ratingB
}

// calculateExpectedScore calculates the expected score using the Elo formula
// E = 1 / (1 + 10^((OpponentRating - PlayerRating) / 400))
func calculateExpectedScore(playerRating, opponentRating int) float64 {
	exponent := float64(opponentRating-playerRating) / 400.0
	return 1.0 / (1.0 + math.Pow(10, exponent))
}

// Opposite returns the result seen from the other side.
func Opposite(r GameResult) GameResult {
	switch r {
	case Win:
		return Loss
	case Loss:
		return Win
	default:
		return Draw
	}
}

// PolicyByName returns the policy configured by name, defaulting to fixed.
func PolicyByName(name string) Policy {
	if name == "elo" {
		return NewEloPolicy(DefaultKFactor)
	}
	return NewFixedPolicy()
}
