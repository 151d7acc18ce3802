package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"soccer-game/internal/logger"
	"soccer-game/internal/middleware"
	"soccer-game/internal/models"
	"soccer-game/internal/store"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type HistoryReader interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListMatchHistory(ctx context.Context, userID string, limit int) ([]models.MatchRecord, error)
	ListMatchEvents(ctx context.Context, matchID string) ([]models.MatchEvent, error)
}

type HistoryHandler struct {
	store HistoryReader
	log   *zap.Logger
}

func NewHistoryHandler(store HistoryReader, l *zap.Logger) *HistoryHandler {
	return &HistoryHandler{store: store, log: logger.OrNop(l)}
}

// GetMe returns the caller's rating and record.
// GET /api/me
func (h *HistoryHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	participantID, ok := middleware.GetParticipantID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := h.store.GetUser(ctx, participantID)
	if errors.Is(err, store.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.log.Error("failed to load user", zap.String("participantId", participantID), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to load user")
		return
	}

	respondWithJSON(w, http.StatusOK, user)
}

// GetMyMatches returns the caller's resolved matches, newest first.
// GET /api/matches?limit=50
func (h *HistoryHandler) GetMyMatches(w http.ResponseWriter, r *http.Request) {
	participantID, ok := middleware.GetParticipantID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	limit, ok := parseLimit(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid limit")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	records, err := h.store.ListMatchHistory(ctx, participantID, limit)
	if err != nil {
		h.log.Error("failed to load match history", zap.String("participantId", participantID), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to load match history")
		return
	}

	respondWithJSON(w, http.StatusOK, records)
}

// GetMatchEvents returns the journal of one match. Only its participants may
// read it.
// GET /api/matches/{matchId}/events
func (h *HistoryHandler) GetMatchEvents(w http.ResponseWriter, r *http.Request) {
	participantID, ok := middleware.GetParticipantID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	matchID := mux.Vars(r)["matchId"]

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	events, err := h.store.ListMatchEvents(ctx, matchID)
	if err != nil {
		h.log.Error("failed to load match events", zap.String("matchId", matchID), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to load match events")
		return
	}
	if len(events) == 0 {
		respondWithError(w, http.StatusNotFound, "Match not found")
		return
	}

	first := events[0]
	if first.ParticipantA != participantID && first.ParticipantB != participantID {
		respondWithError(w, http.StatusForbidden, "Not a participant of this match")
		return
	}

	respondWithJSON(w, http.StatusOK, events)
}
