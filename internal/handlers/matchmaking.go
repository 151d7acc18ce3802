package handlers

import (
	"context"
	"errors"
	"net/http"

	"soccer-game/internal/logger"
	"soccer-game/internal/matchmaking"
	"soccer-game/internal/middleware"

	"go.uber.org/zap"
)

// Matchmaker is the part of *matchmaking.Matchmaker the handlers use.
type Matchmaker interface {
	Join(ctx context.Context, participantID string) (matchmaking.JoinResult, error)
	Agree(ctx context.Context, participantID string) (matchmaking.AgreeResult, error)
	Leave(ctx context.Context, participantID string) matchmaking.LeaveResult
	Disconnect(ctx context.Context, participantID string)
	Status(participantID string) matchmaking.Status
}

type MatchmakingHandler struct {
	mm  Matchmaker
	log *zap.Logger
}

func NewMatchmakingHandler(mm Matchmaker, l *zap.Logger) *MatchmakingHandler {
	return &MatchmakingHandler{mm: mm, log: logger.OrNop(l)}
}

type AgreeResponse struct {
	Status  string                   `json:"status"`
	Message string                   `json:"message"`
	MatchID string                   `json:"matchId,omitempty"`
	Result  *matchmaking.MatchResult `json:"result,omitempty"`
}

const statusMatchAlreadyResolved = "matchAlreadyResolved"

// agreeOutcome maps an Agree call onto an HTTP status and body.
func agreeOutcome(res matchmaking.AgreeResult, err error) (int, interface{}) {
	switch {
	case err == nil:
	case errors.Is(err, matchmaking.ErrMatchAlreadyResolved):
		return http.StatusOK, AgreeResponse{
			Status:  statusMatchAlreadyResolved,
			Message: "Match was already resolved or canceled",
			MatchID: res.Match.MatchID,
		}
	case errors.Is(err, matchmaking.ErrNoPendingMatch):
		return http.StatusNotFound, ErrorResponse{Error: "No pending match", Code: "NO_PENDING_MATCH"}
	case errors.Is(err, matchmaking.ErrNoTeam):
		return http.StatusUnprocessableEntity, ErrorResponse{Error: "A participant has no team", Code: "NO_TEAM"}
	case errors.Is(err, matchmaking.ErrIncompleteTeam):
		return http.StatusUnprocessableEntity, ErrorResponse{Error: "A team does not have exactly 3 players", Code: "INCOMPLETE_TEAM"}
	case errors.Is(err, matchmaking.ErrDependencyUnavailable):
		return http.StatusServiceUnavailable, ErrorResponse{Error: "Match could not be resolved, please agree again", Code: "DEPENDENCY_UNAVAILABLE"}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "Failed to agree to match"}
	}

	body := AgreeResponse{Status: string(res.Status), MatchID: res.Match.MatchID, Result: res.Result}
	switch res.Status {
	case matchmaking.AgreeWaitingOnOpponent:
		body.Message = "Waiting for opponent to agree"
	case matchmaking.AgreeResolving:
		body.Message = "Match is being resolved"
	case matchmaking.AgreeResolved:
		body.Message = "Match played"
	}
	return http.StatusOK, body
}

// JoinQueue puts the caller into the matchmaking queue.
// POST /api/matchmaking/join
func (h *MatchmakingHandler) JoinQueue(w http.ResponseWriter, r *http.Request) {
	participantID, ok := middleware.GetParticipantID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	res, err := h.mm.Join(r.Context(), participantID)
	if err != nil {
		h.log.Error("join failed", zap.String("participantId", participantID), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to join queue")
		return
	}

	respondWithJSON(w, http.StatusOK, res)
}

// Agree records the caller's agreement to its pending match.
// POST /api/matchmaking/agree
func (h *MatchmakingHandler) Agree(w http.ResponseWriter, r *http.Request) {
	participantID, ok := middleware.GetParticipantID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	res, err := h.mm.Agree(r.Context(), participantID)
	code, body := agreeOutcome(res, err)
	if code >= http.StatusInternalServerError {
		h.log.Warn("agree failed", zap.String("participantId", participantID), zap.Error(err))
	}
	if e, ok := body.(ErrorResponse); ok {
		respondWithErrorCode(w, code, e.Error, e.Code)
		return
	}
	respondWithJSON(w, code, body)
}

// LeaveQueue removes the caller from the queue or cancels its pending match.
// POST /api/matchmaking/leave
func (h *MatchmakingHandler) LeaveQueue(w http.ResponseWriter, r *http.Request) {
	participantID, ok := middleware.GetParticipantID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	respondWithJSON(w, http.StatusOK, h.mm.Leave(r.Context(), participantID))
}

// GetStatus returns where the caller is in matchmaking.
// GET /api/matchmaking/status
func (h *MatchmakingHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	participantID, ok := middleware.GetParticipantID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	respondWithJSON(w, http.StatusOK, h.mm.Status(participantID))
}
