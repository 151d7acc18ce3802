package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"soccer-game/internal/game"
	"soccer-game/internal/matchmaking"
	"soccer-game/internal/middleware"
	"soccer-game/internal/models"
	"soccer-game/internal/store"
)

func asParticipant(r *http.Request, id string) *http.Request {
	return r.WithContext(middleware.WithParticipant(r.Context(), &middleware.Participant{ID: id, DisplayName: id}))
}

// stubMatchmaker returns canned results.
type stubMatchmaker struct {
	mu sync.Mutex

	joinRes  matchmaking.JoinResult
	joinErr  error
	agreeRes matchmaking.AgreeResult
	agreeErr error
	leaveRes matchmaking.LeaveResult
	status   matchmaking.Status

	calls        []string
	disconnected []string
}

func (s *stubMatchmaker) called(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, name)
}

func (s *stubMatchmaker) Join(ctx context.Context, id string) (matchmaking.JoinResult, error) {
	s.called("join:" + id)
	return s.joinRes, s.joinErr
}

func (s *stubMatchmaker) Agree(ctx context.Context, id string) (matchmaking.AgreeResult, error) {
	s.called("agree:" + id)
	return s.agreeRes, s.agreeErr
}

func (s *stubMatchmaker) Leave(ctx context.Context, id string) matchmaking.LeaveResult {
	s.called("leave:" + id)
	return s.leaveRes
}

func (s *stubMatchmaker) Disconnect(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnected = append(s.disconnected, id)
}

func (s *stubMatchmaker) Status(id string) matchmaking.Status {
	return s.status
}

// memRoster serves fixed teams for a real matchmaker.
type memRoster map[string][]game.Attributes

func (m memRoster) GetTeam(ctx context.Context, id string) ([]game.Attributes, error) {
	team, ok := m[id]
	if !ok {
		return nil, game.ErrNoTeam
	}
	return team, nil
}

type memAccounts struct {
	mu      sync.Mutex
	ratings map[string]int
}

func newMemAccounts(ratings map[string]int) *memAccounts {
	return &memAccounts{ratings: ratings}
}

func (m *memAccounts) GetRating(ctx context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.ratings[id]
	if !ok {
		return 0, store.ErrNotFound
	}
	return r, nil
}

func (m *memAccounts) ApplyRatingDelta(ctx context.Context, id string, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ratings[id] += delta
	if m.ratings[id] < 0 {
		m.ratings[id] = 0
	}
	return nil
}

func (m *memAccounts) rating(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ratings[id]
}

func squad(each int) []game.Attributes {
	p := game.Attributes{Speed: each, GoalDecisiveness: each, ShootPower: each, Defense: each, Stamina: each}
	return []game.Attributes{p, p, p}
}

// stubRecords backs the read endpoints.
type stubRecords struct {
	rankings  []models.RankingEntry
	users     map[string]*models.User
	history   []models.MatchRecord
	events    []models.MatchEvent
	err       error
	lastSort  models.RankingSort
	lastLimit int
}

func (s *stubRecords) GetRankings(ctx context.Context, sort models.RankingSort, limit int) ([]models.RankingEntry, error) {
	s.lastSort, s.lastLimit = sort, limit
	return s.rankings, s.err
}

func (s *stubRecords) GetUser(ctx context.Context, id string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func (s *stubRecords) ListMatchHistory(ctx context.Context, userID string, limit int) ([]models.MatchRecord, error) {
	s.lastLimit = limit
	return s.history, s.err
}

func (s *stubRecords) ListMatchEvents(ctx context.Context, matchID string) ([]models.MatchEvent, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []models.MatchEvent
	for _, ev := range s.events {
		if ev.MatchID == matchID {
			out = append(out, ev)
		}
	}
	return out, nil
}

var errBoom = errors.New("boom")
