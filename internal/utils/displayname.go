package utils

import (
	"fmt"
	"math/rand"
)

// Word lists for generating random display names
var adjectives = []string{
	"Swift", "Brave", "Clever", "Noble", "Mighty", "Silent", "Golden", "Silver",
	"Crimson", "Azure", "Fierce", "Wild", "Calm", "Bold", "Quick", "Keen",
	"Storm", "Frost", "Iron", "Steel", "Thunder", "Lunar", "Solar", "Prime",
}

var nouns = []string{
	"Striker", "Keeper", "Winger", "Sweeper", "Playmaker", "Captain", "Libero", "Poacher",
	"Volley", "Header", "Nutmeg", "Rabona", "Tackle", "Crossbar", "Corner", "Penalty",
	"Lion", "Tiger", "Falcon", "Wolf", "Eagle", "Comet", "Rocket", "Dynamo",
}

// GenerateRandomDisplayName generates a random display name in format "AdjectiveNoun123"
func GenerateRandomDisplayName() string {
	adjective := adjectives[rand.Intn(len(adjectives))]
	noun := nouns[rand.Intn(len(nouns))]
	number := rand.Intn(1000) // 0-999
	return fmt.Sprintf("%s%s%d", adjective, noun, number)
}
