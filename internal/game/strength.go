package game

import (
	"errors"
	"fmt"
)

// TeamSize is the fixed number of players in a roster.
const TeamSize = 3

var (
	ErrIncompleteTeam = errors.New("team must have exactly 3 players")
	ErrNoTeam         = errors.New("participant has no team")
)

// Attributes are the per-player numbers that feed team strength.
type Attributes struct {
	Speed            int `json:"speed" bson:"speed"`
	GoalDecisiveness int `json:"goalDecisiveness" bson:"goalDecisiveness"`
	ShootPower       int `json:"shootPower" bson:"shootPower"`
	Defense          int `json:"defense" bson:"defense"`
	Stamina          int `json:"stamina" bson:"stamina"`
}

// Total sums the five attributes.
func (a Attributes) Total() int {
	return a.Speed + a.GoalDecisiveness + a.ShootPower + a.Defense + a.Stamina
}

// TeamStrength is derived from a roster and never stored.
type TeamStrength struct {
	TotalPower  int `json:"totalPower"`
	PlayerCount int `json:"playerCount"`
}

// Evaluate reduces a roster to its total power.
func Evaluate(players []Attributes) (TeamStrength, error) {
	if len(players) != TeamSize {
		return TeamStrength{}, fmt.Errorf("%w: got %d", ErrIncompleteTeam, len(players))
	}

	total := 0
	for _, p := range players {
		total += p.Total()
	}

	return TeamStrength{TotalPower: total, PlayerCount: len(players)}, nil
}
