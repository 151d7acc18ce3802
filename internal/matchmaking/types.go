package matchmaking

import (
	"time"

	"soccer-game/internal/game"
	"soccer-game/internal/models"
)

// WaitingParticipant is an entry in the pairing queue. A nil Rating means the
// rating could not be looked up and the participant pairs with anyone.
type WaitingParticipant struct {
	ParticipantID string    `json:"participantId"`
	EnqueuedAt    time.Time `json:"enqueuedAt"`
	Rating        *int      `json:"rating,omitempty"`
}

type AgreementState string

const (
	StateAwaitingBoth AgreementState = "awaitingBoth"
	StateAwaitingOne  AgreementState = "awaitingOne"
	StateResolving    AgreementState = "resolving"
	StateResolved     AgreementState = "resolved"
	StateCanceled     AgreementState = "canceled"
)

// PendingMatch is a pairing waiting for both sides to agree.
type PendingMatch struct {
	MatchID      string         `json:"matchId"`
	ParticipantA string         `json:"participantA"`
	ParticipantB string         `json:"participantB"`
	CreatedAt    time.Time      `json:"createdAt"`
	AgreedA      bool           `json:"agreedA"`
	AgreedB      bool           `json:"agreedB"`
	State        AgreementState `json:"state"`
}

// Has reports whether participantID is one of the two sides.
func (m PendingMatch) Has(participantID string) bool {
	return m.ParticipantA == participantID || m.ParticipantB == participantID
}

// Opponent returns the other side of the match, or "" if participantID is not in it.
func (m PendingMatch) Opponent(participantID string) string {
	switch participantID {
	case m.ParticipantA:
		return m.ParticipantB
	case m.ParticipantB:
		return m.ParticipantA
	}
	return ""
}

// MatchResult is a resolved match. Side A is the match's ParticipantA.
type MatchResult struct {
	MatchID      string       `json:"matchId"`
	ParticipantA string       `json:"participantA"`
	ParticipantB string       `json:"participantB"`
	Outcome      game.Outcome `json:"outcome"`
	ScoreA       int          `json:"scoreA"`
	ScoreB       int          `json:"scoreB"`
	RatingDeltaA int          `json:"ratingDeltaA"`
	RatingDeltaB int          `json:"ratingDeltaB"`
	PowerA       int          `json:"powerA"`
	PowerB       int          `json:"powerB"`
	ResolvedAt   time.Time    `json:"resolvedAt"`
}

func (r MatchResult) record() models.MatchRecord {
	return models.MatchRecord{
		MatchID:      r.MatchID,
		ParticipantA: r.ParticipantA,
		ParticipantB: r.ParticipantB,
		Outcome:      string(r.Outcome),
		ScoreA:       r.ScoreA,
		ScoreB:       r.ScoreB,
		RatingDeltaA: r.RatingDeltaA,
		RatingDeltaB: r.RatingDeltaB,
		PowerA:       r.PowerA,
		PowerB:       r.PowerB,
		CompletedAt:  r.ResolvedAt,
	}
}

// EnqueueResult describes what happened to an enqueue request.
type EnqueueResult struct {
	Queued   bool
	Position int           // 1-based, set when Queued
	Match    *PendingMatch // set when the participant is paired
	Formed   []PendingMatch
}

type AgreeStatus string

const (
	AgreeWaitingOnOpponent AgreeStatus = "waitingOnOpponent"
	AgreeResolving         AgreeStatus = "resolving"
	AgreeResolved          AgreeStatus = "resolved"
)

type AgreeResult struct {
	Status AgreeStatus
	Match  PendingMatch
	Result *MatchResult
}

type JoinStatus string

const (
	JoinQueued  JoinStatus = "queued"
	JoinMatched JoinStatus = "matched"
)

type JoinResult struct {
	Status     JoinStatus    `json:"status"`
	Position   int           `json:"position,omitempty"`
	MatchID    string        `json:"matchId,omitempty"`
	OpponentID string        `json:"opponentId,omitempty"`
	Match      *PendingMatch `json:"-"`
}

type LeaveResult struct {
	Left     bool `json:"left"`     // removed from the waiting queue
	Canceled bool `json:"canceled"` // a pending match was canceled
}

type ParticipantState string

const (
	ParticipantIdle    ParticipantState = "idle"
	ParticipantWaiting ParticipantState = "waiting"
	ParticipantPending ParticipantState = "pending"
)

type Status struct {
	State     ParticipantState `json:"state"`
	Position  int              `json:"position,omitempty"`
	QueueSize int              `json:"queueSize"`
	Match     *PendingMatch    `json:"match,omitempty"`
}
