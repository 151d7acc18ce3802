package models

import (
	"time"
)

// MatchRecord is the persisted history row for a resolved match.
type MatchRecord struct {
	MatchID      string    `json:"matchId" bson:"_id"`
	ParticipantA string    `json:"participantA" bson:"participantA"`
	ParticipantB string    `json:"participantB" bson:"participantB"`
	Outcome      string    `json:"outcome" bson:"outcome"` // "winA", "winB" or "draw"
	ScoreA       int       `json:"scoreA" bson:"scoreA"`
	ScoreB       int       `json:"scoreB" bson:"scoreB"`
	RatingDeltaA int       `json:"ratingDeltaA" bson:"ratingDeltaA"`
	RatingDeltaB int       `json:"ratingDeltaB" bson:"ratingDeltaB"`
	PowerA       int       `json:"powerA" bson:"powerA"`
	PowerB       int       `json:"powerB" bson:"powerB"`
	CompletedAt  time.Time `json:"completedAt" bson:"completedAt"`
}

type MatchEventType string

const (
	MatchEventPaired       MatchEventType = "paired"
	MatchEventAgreed       MatchEventType = "agreed"
	MatchEventResolved     MatchEventType = "resolved"
	MatchEventCanceled     MatchEventType = "canceled"
	MatchEventQueueExpired MatchEventType = "queue_expired"
)

// MatchEvent is one entry in the matchmaking journal.
type MatchEvent struct {
	ID           string         `json:"id" bson:"_id"`
	Type         MatchEventType `json:"type" bson:"type"`
	MatchID      string         `json:"matchId,omitempty" bson:"matchId,omitempty"`
	ParticipantA string         `json:"participantA,omitempty" bson:"participantA,omitempty"`
	ParticipantB string         `json:"participantB,omitempty" bson:"participantB,omitempty"`
	Actor        string         `json:"actor,omitempty" bson:"actor,omitempty"`
	Reason       string         `json:"reason,omitempty" bson:"reason,omitempty"`
	CreatedAt    time.Time      `json:"createdAt" bson:"createdAt"`
}
