package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"soccer-game/internal/game"
	"soccer-game/internal/matchmaking"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestMatchmakingHandler_RequiresParticipant(t *testing.T) {
	h := NewMatchmakingHandler(&stubMatchmaker{}, zaptest.NewLogger(t))

	for name, fn := range map[string]http.HandlerFunc{
		"join":   h.JoinQueue,
		"agree":  h.Agree,
		"leave":  h.LeaveQueue,
		"status": h.GetStatus,
	} {
		t.Run(name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			fn(rr, httptest.NewRequest(http.MethodPost, "/", nil))
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}
}

func TestJoinQueue(t *testing.T) {
	t.Run("queued", func(t *testing.T) {
		mm := &stubMatchmaker{joinRes: matchmaking.JoinResult{Status: matchmaking.JoinQueued, Position: 2}}
		h := NewMatchmakingHandler(mm, zaptest.NewLogger(t))

		rr := httptest.NewRecorder()
		h.JoinQueue(rr, asParticipant(httptest.NewRequest(http.MethodPost, "/api/matchmaking/join", nil), "alice"))

		require.Equal(t, http.StatusOK, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, "queued", body["status"])
		assert.Equal(t, float64(2), body["position"])
		assert.Equal(t, []string{"join:alice"}, mm.calls)
	})

	t.Run("matched", func(t *testing.T) {
		mm := &stubMatchmaker{joinRes: matchmaking.JoinResult{Status: matchmaking.JoinMatched, MatchID: "m1", OpponentID: "bob"}}
		h := NewMatchmakingHandler(mm, zaptest.NewLogger(t))

		rr := httptest.NewRecorder()
		h.JoinQueue(rr, asParticipant(httptest.NewRequest(http.MethodPost, "/api/matchmaking/join", nil), "alice"))

		require.Equal(t, http.StatusOK, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, "matched", body["status"])
		assert.Equal(t, "m1", body["matchId"])
		assert.Equal(t, "bob", body["opponentId"])
		assert.NotContains(t, body, "position")
	})

	t.Run("error", func(t *testing.T) {
		h := NewMatchmakingHandler(&stubMatchmaker{joinErr: matchmaking.ErrInvalidParticipant}, zaptest.NewLogger(t))

		rr := httptest.NewRecorder()
		h.JoinQueue(rr, asParticipant(httptest.NewRequest(http.MethodPost, "/api/matchmaking/join", nil), "alice"))
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestAgree_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"no pending match", matchmaking.ErrNoPendingMatch, http.StatusNotFound, "NO_PENDING_MATCH"},
		{"no team", game.ErrNoTeam, http.StatusUnprocessableEntity, "NO_TEAM"},
		{"incomplete team", fmt.Errorf("participant x: %w", game.ErrIncompleteTeam), http.StatusUnprocessableEntity, "INCOMPLETE_TEAM"},
		{"dependency", fmt.Errorf("%w: %w", matchmaking.ErrDependencyUnavailable, errBoom), http.StatusServiceUnavailable, "DEPENDENCY_UNAVAILABLE"},
		{"unexpected", errBoom, http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewMatchmakingHandler(&stubMatchmaker{agreeErr: tt.err}, zaptest.NewLogger(t))

			rr := httptest.NewRecorder()
			h.Agree(rr, asParticipant(httptest.NewRequest(http.MethodPost, "/api/matchmaking/agree", nil), "alice"))

			assert.Equal(t, tt.status, rr.Code)
			body := decodeBody(t, rr)
			assert.NotEmpty(t, body["error"])
			if tt.code != "" {
				assert.Equal(t, tt.code, body["code"])
			}
		})
	}
}

func TestAgree_AlreadyResolvedIsNotAnError(t *testing.T) {
	mm := &stubMatchmaker{
		agreeRes: matchmaking.AgreeResult{Match: matchmaking.PendingMatch{MatchID: "m1"}},
		agreeErr: matchmaking.ErrMatchAlreadyResolved,
	}
	h := NewMatchmakingHandler(mm, zaptest.NewLogger(t))

	rr := httptest.NewRecorder()
	h.Agree(rr, asParticipant(httptest.NewRequest(http.MethodPost, "/api/matchmaking/agree", nil), "alice"))

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "matchAlreadyResolved", body["status"])
	assert.Equal(t, "m1", body["matchId"])
}

func TestAgree_Statuses(t *testing.T) {
	result := &matchmaking.MatchResult{MatchID: "m1", Outcome: game.WinA, ScoreA: 3, ScoreB: 1, RatingDeltaA: 10, RatingDeltaB: -5}

	tests := []struct {
		name      string
		res       matchmaking.AgreeResult
		status    string
		hasResult bool
	}{
		{"waiting", matchmaking.AgreeResult{Status: matchmaking.AgreeWaitingOnOpponent}, "waitingOnOpponent", false},
		{"resolving", matchmaking.AgreeResult{Status: matchmaking.AgreeResolving}, "resolving", false},
		{"resolved", matchmaking.AgreeResult{Status: matchmaking.AgreeResolved, Result: result}, "resolved", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.res.Match = matchmaking.PendingMatch{MatchID: "m1"}
			h := NewMatchmakingHandler(&stubMatchmaker{agreeRes: tt.res}, zaptest.NewLogger(t))

			rr := httptest.NewRecorder()
			h.Agree(rr, asParticipant(httptest.NewRequest(http.MethodPost, "/api/matchmaking/agree", nil), "alice"))

			require.Equal(t, http.StatusOK, rr.Code)
			body := decodeBody(t, rr)
			assert.Equal(t, tt.status, body["status"])
			assert.NotEmpty(t, body["message"])
			if tt.hasResult {
				res := body["result"].(map[string]interface{})
				assert.Equal(t, float64(3), res["scoreA"])
				assert.Equal(t, float64(-5), res["ratingDeltaB"])
			} else {
				assert.NotContains(t, body, "result")
			}
		})
	}
}

func TestLeaveQueueAndStatus(t *testing.T) {
	mm := &stubMatchmaker{
		leaveRes: matchmaking.LeaveResult{Canceled: true},
		status:   matchmaking.Status{State: matchmaking.ParticipantWaiting, Position: 1, QueueSize: 3},
	}
	h := NewMatchmakingHandler(mm, zaptest.NewLogger(t))

	rr := httptest.NewRecorder()
	h.LeaveQueue(rr, asParticipant(httptest.NewRequest(http.MethodPost, "/api/matchmaking/leave", nil), "alice"))
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, false, body["left"])
	assert.Equal(t, true, body["canceled"])

	rr = httptest.NewRecorder()
	h.GetStatus(rr, asParticipant(httptest.NewRequest(http.MethodGet, "/api/matchmaking/status", nil), "alice"))
	require.Equal(t, http.StatusOK, rr.Code)
	body = decodeBody(t, rr)
	assert.Equal(t, "waiting", body["state"])
	assert.Equal(t, float64(1), body["position"])
	assert.Equal(t, float64(3), body["queueSize"])
}
