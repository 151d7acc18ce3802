package matchmaking

type EventType string

const (
	EventMatchFound    EventType = "matchFound"
	EventMatchStarted  EventType = "matchStarted"
	EventMatchCanceled EventType = "matchCanceled"
	EventQueueExpired  EventType = "queueExpired"
)

// Cancel reasons carried by matchCanceled events.
const (
	ReasonLeft           = "left"
	ReasonDisconnected   = "disconnected"
	ReasonTimeout        = "timeout"
	ReasonIncompleteTeam = "incompleteTeam"
)

// Event is pushed to a participant's sessions.
type Event struct {
	Type       EventType    `json:"type"`
	MatchID    string       `json:"matchId,omitempty"`
	OpponentID string       `json:"opponentId,omitempty"`
	Result     *MatchResult `json:"result,omitempty"`
	Reason     string       `json:"reason,omitempty"`
}

// Notifier delivers events to participants. Delivery is fire-and-forget and
// may happen more than once; Notify must not block on the network.
type Notifier interface {
	Notify(participantID string, event Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, Event) {}
