package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_SumsAllAttributes(t *testing.T) {
	players := []Attributes{
		{Speed: 1, GoalDecisiveness: 2, ShootPower: 3, Defense: 4, Stamina: 5},
		{Speed: 10, GoalDecisiveness: 10, ShootPower: 10, Defense: 10, Stamina: 10},
		{Speed: 7, GoalDecisiveness: 0, ShootPower: 0, Defense: 0, Stamina: 3},
	}

	strength, err := Evaluate(players)
	require.NoError(t, err)
	assert.Equal(t, 15+50+10, strength.TotalPower)
	assert.Equal(t, 3, strength.PlayerCount)
}

func TestEvaluate_WrongSize(t *testing.T) {
	tests := []struct {
		name    string
		players []Attributes
	}{
		{"empty", nil},
		{"two players", make([]Attributes, 2)},
		{"four players", make([]Attributes, 4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(tt.players)
			assert.ErrorIs(t, err, ErrIncompleteTeam)
		})
	}
}

func TestAttributes_Total(t *testing.T) {
	a := Attributes{Speed: 80, GoalDecisiveness: 70, ShootPower: 60, Defense: 50, Stamina: 40}
	assert.Equal(t, 300, a.Total())
}
