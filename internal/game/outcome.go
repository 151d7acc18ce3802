package game

import (
	"math/rand"
	"sync"
	"time"

	"soccer-game/internal/rating"
)

type Outcome string

const (
	WinA Outcome = "winA"
	WinB Outcome = "winB"
	Draw Outcome = "draw"
)

const (
	minWinnerScore  = 2
	winnerScoreSpan = 4 // winner scores 2..5
	loserScoreCap   = 3 // loser scores below min(3, winner)
)

// Source is the randomness the resolver draws from. *rand.Rand satisfies it.
type Source interface {
	Float64() float64
	Intn(n int) int
}

// Result is a resolved match seen from side A ("my team").
type Result struct {
	Outcome      Outcome `json:"outcome"`
	ScoreA       int     `json:"scoreA"`
	ScoreB       int     `json:"scoreB"`
	RatingDeltaA int     `json:"ratingDeltaA"`
	RatingDeltaB int     `json:"ratingDeltaB"`
}

// Resolver turns two team strengths into a stochastic result. It never
// mutates external state; callers persist the returned deltas.
type Resolver struct {
	mu     sync.Mutex
	src    Source
	policy rating.Policy
}

// NewResolver creates a resolver. A nil source is seeded from the clock and a
// nil policy falls back to the fixed +10/-5/+3 policy.
func NewResolver(src Source, policy rating.Policy) *Resolver {
	if src == nil {
		src = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if policy == nil {
		policy = rating.NewFixedPolicy()
	}
	return &Resolver{src: src, policy: policy}
}

// Resolve plays one match between my and enemy.
func (r *Resolver) Resolve(my, enemy TeamStrength, myRating, enemyRating int) (Result, error) {
	if my.PlayerCount != TeamSize || enemy.PlayerCount != TeamSize {
		return Result{}, ErrIncompleteTeam
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var res Result

	total := my.TotalPower + enemy.TotalPower
	if total == 0 {
		res.Outcome = Draw
	} else {
		roll := r.src.Float64() * float64(total)
		mine := float64(my.TotalPower)

		switch {
		case roll < mine:
			res.Outcome = WinA
			res.ScoreA, res.ScoreB = r.winningScores()
		case roll > mine:
			res.Outcome = WinB
			res.ScoreB, res.ScoreA = r.winningScores()
		default:
			res.Outcome = Draw
			score := minWinnerScore + r.src.Intn(winnerScoreSpan)
			res.ScoreA, res.ScoreB = score, score
		}
	}

	res.RatingDeltaA, res.RatingDeltaB = r.policy.Changes(myRating, enemyRating, resultForA(res.Outcome))
	return res, nil
}

// winningScores draws the winner's score and a strictly smaller loser score.
func (r *Resolver) winningScores() (winner, loser int) {
	winner = minWinnerScore + r.src.Intn(winnerScoreSpan)
	loser = r.src.Intn(min(loserScoreCap, winner))
	return winner, loser
}

func resultForA(o Outcome) rating.GameResult {
	switch o {
	case WinA:
		return rating.Win
	case WinB:
		return rating.Loss
	default:
		return rating.Draw
	}
}
