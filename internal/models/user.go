package models

import (
	"time"
)

type User struct {
	ID            string    `json:"id" bson:"_id"`
	DisplayName   string    `json:"displayName" bson:"displayName"`
	Rating        int       `json:"rating" bson:"rating"`
	Wins          int       `json:"wins" bson:"wins"`
	Draws         int       `json:"draws" bson:"draws"`
	Losses        int       `json:"losses" bson:"losses"`
	MatchesPlayed int       `json:"matchesPlayed" bson:"matchesPlayed"`
	CreatedAt     time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt" bson:"updatedAt"`
}

// RankingEntry is one row of the public rankings.
type RankingEntry struct {
	Rank          int    `json:"rank"`
	UserID        string `json:"userId"`
	DisplayName   string `json:"displayName"`
	Rating        int    `json:"rating"`
	Wins          int    `json:"wins"`
	Draws         int    `json:"draws"`
	Losses        int    `json:"losses"`
	MatchesPlayed int    `json:"matchesPlayed"`
}

type RankingSort string

const (
	SortByRating RankingSort = "rating"
	SortByWins   RankingSort = "wins"
)

// Default values
const (
	DefaultRating       = 1000
	DefaultRankingLimit = 50
)
