package models

import (
	"soccer-game/internal/game"
)

// Player is a rostered footballer owned by the player catalogue.
type Player struct {
	ID              string `json:"id" bson:"_id"`
	Name            string `json:"name" bson:"name"`
	Tier            string `json:"tier,omitempty" bson:"tier,omitempty"`
	game.Attributes `bson:",inline"`
}

// Team is a user's current lineup of exactly three players.
type Team struct {
	ID        string   `json:"id" bson:"_id"`
	UserID    string   `json:"userId" bson:"userId"`
	Name      string   `json:"name,omitempty" bson:"name,omitempty"`
	PlayerIDs []string `json:"playerIds" bson:"playerIds"`
}
