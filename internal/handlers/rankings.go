package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"soccer-game/internal/logger"
	"soccer-game/internal/models"

	"go.uber.org/zap"
)

type RankingsReader interface {
	GetRankings(ctx context.Context, sort models.RankingSort, limit int) ([]models.RankingEntry, error)
}

type RankingsHandler struct {
	store RankingsReader
	log   *zap.Logger
}

func NewRankingsHandler(store RankingsReader, l *zap.Logger) *RankingsHandler {
	return &RankingsHandler{store: store, log: logger.OrNop(l)}
}

// GetRankings returns the top participants.
// GET /api/rankings?sort=rating|wins&limit=50
func (h *RankingsHandler) GetRankings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	sort := models.RankingSort(r.URL.Query().Get("sort"))
	switch sort {
	case "":
		sort = models.SortByRating
	case models.SortByRating, models.SortByWins:
	default:
		respondWithError(w, http.StatusBadRequest, "sort must be rating or wins")
		return
	}

	limit, ok := parseLimit(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid limit")
		return
	}

	entries, err := h.store.GetRankings(ctx, sort, limit)
	if err != nil {
		h.log.Error("failed to load rankings", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to load rankings")
		return
	}

	respondWithJSON(w, http.StatusOK, entries)
}

// parseLimit reads the optional limit query parameter. Zero means the store
// default.
func parseLimit(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, false
	}
	return limit, true
}
