package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"soccer-game/internal/db"
	"soccer-game/internal/game"
	"soccer-game/internal/models"

	"github.com/google/uuid"
)

// SQLStore keeps the same data as MongoStore in Postgres or SQLite.
type SQLStore struct {
	db *db.SQLDB
}

func NewSQLStore(database *db.SQLDB) *SQLStore {
	return &SQLStore{db: database}
}

var _ Store = (*SQLStore)(nil)

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.DB.ExecContext(ctx, s.db.Rebind(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.DB.QueryRowContext(ctx, s.db.Rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.DB.QueryContext(ctx, s.db.Rebind(query), args...)
}

func isUniqueViolation(err error) bool {
	// lib/pq: "duplicate key value violates unique constraint"
	// modernc sqlite: "UNIQUE constraint failed"
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func (s *SQLStore) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	prepareUser(user, now)

	_, err := s.exec(ctx, `
		INSERT INTO users (id, display_name, rating, wins, draws, losses, matches_played, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.DisplayName, user.Rating, user.Wins, user.Draws, user.Losses, user.MatchesPlayed,
		millis(now), millis(now))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *SQLStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var (
		u                models.User
		created, updated int64
	)
	err := s.queryRow(ctx, `
		SELECT id, display_name, rating, wins, draws, losses, matches_played, created_at, updated_at
		FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.DisplayName, &u.Rating, &u.Wins, &u.Draws, &u.Losses, &u.MatchesPlayed, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	u.CreatedAt = fromMillis(created)
	u.UpdatedAt = fromMillis(updated)
	return &u, nil
}

func (s *SQLStore) UpsertPlayer(ctx context.Context, p *models.Player) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := s.exec(ctx, `
		INSERT INTO players (id, name, tier, speed, goal_decisiveness, shoot_power, defense, stamina)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			tier = excluded.tier,
			speed = excluded.speed,
			goal_decisiveness = excluded.goal_decisiveness,
			shoot_power = excluded.shoot_power,
			defense = excluded.defense,
			stamina = excluded.stamina`,
		p.ID, p.Name, p.Tier, p.Speed, p.GoalDecisiveness, p.ShootPower, p.Defense, p.Stamina)
	if err != nil {
		return fmt.Errorf("upsert player: %w", err)
	}
	return nil
}

// SetTeam replaces the user's lineup in one transaction.
func (s *SQLStore) SetTeam(ctx context.Context, userID string, playerIDs []string) error {
	if err := validateTeam(playerIDs); err != nil {
		return err
	}

	tx, err := s.db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, pid := range playerIDs {
		var exists int
		err := tx.QueryRowContext(ctx, s.db.Rebind(`SELECT 1 FROM players WHERE id = ?`), pid).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("check player: %w", err)
		}
	}

	var teamID string
	err = tx.QueryRowContext(ctx, s.db.Rebind(`SELECT id FROM teams WHERE user_id = ?`), userID).Scan(&teamID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		teamID = uuid.NewString()
		if _, err := tx.ExecContext(ctx, s.db.Rebind(`INSERT INTO teams (id, user_id) VALUES (?, ?)`), teamID, userID); err != nil {
			return fmt.Errorf("insert team: %w", err)
		}
	case err != nil:
		return fmt.Errorf("find team: %w", err)
	}

	if _, err := tx.ExecContext(ctx, s.db.Rebind(`DELETE FROM team_members WHERE team_id = ?`), teamID); err != nil {
		return fmt.Errorf("clear team: %w", err)
	}
	for slot, pid := range playerIDs {
		_, err := tx.ExecContext(ctx,
			s.db.Rebind(`INSERT INTO team_members (team_id, slot, player_id) VALUES (?, ?, ?)`),
			teamID, slot, pid)
		if err != nil {
			return fmt.Errorf("insert team member: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLStore) GetTeam(ctx context.Context, participantID string) ([]game.Attributes, error) {
	rows, err := s.query(ctx, `
		SELECT p.speed, p.goal_decisiveness, p.shoot_power, p.defense, p.stamina
		FROM teams t
		JOIN team_members m ON m.team_id = t.id
		JOIN players p ON p.id = m.player_id
		WHERE t.user_id = ?
		ORDER BY m.slot`, participantID)
	if err != nil {
		return nil, fmt.Errorf("query team: %w", err)
	}
	defer rows.Close()

	var attrs []game.Attributes
	for rows.Next() {
		var a game.Attributes
		if err := rows.Scan(&a.Speed, &a.GoalDecisiveness, &a.ShootPower, &a.Defense, &a.Stamina); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		attrs = append(attrs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate team: %w", err)
	}
	if len(attrs) == 0 {
		return nil, game.ErrNoTeam
	}
	return attrs, nil
}

func (s *SQLStore) GetRating(ctx context.Context, participantID string) (int, error) {
	var r int
	err := s.queryRow(ctx, `SELECT rating FROM users WHERE id = ?`, participantID).Scan(&r)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("find rating: %w", err)
	}
	return r, nil
}

// ApplyRatingDelta clamps at zero inside the UPDATE so concurrent deltas
// cannot push the rating negative.
func (s *SQLStore) ApplyRatingDelta(ctx context.Context, participantID string, delta int) error {
	res, err := s.exec(ctx, `
		UPDATE users
		SET rating = CASE WHEN rating + ? < 0 THEN 0 ELSE rating + ? END,
			updated_at = ?
		WHERE id = ?`,
		delta, delta, millis(time.Now()), participantID)
	if err != nil {
		return fmt.Errorf("apply rating delta: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply rating delta: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordMatchResult stores the history row and bumps both players' counters.
// Replaying the same match is a no-op.
func (s *SQLStore) RecordMatchResult(ctx context.Context, r models.MatchRecord) error {
	tx, err := s.db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO match_history (id, participant_a, participant_b, outcome, score_a, score_b,
			rating_delta_a, rating_delta_b, power_a, power_b, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		r.MatchID, r.ParticipantA, r.ParticipantB, r.Outcome, r.ScoreA, r.ScoreB,
		r.RatingDeltaA, r.RatingDeltaB, r.PowerA, r.PowerB, millis(r.CompletedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("insert match history: %w", err)
	}

	a, b := outcomeCounters(r.Outcome)
	now := millis(time.Now())
	for _, side := range []struct {
		id string
		c  [3]int
	}{{r.ParticipantA, a}, {r.ParticipantB, b}} {
		_, err := tx.ExecContext(ctx, s.db.Rebind(`
			UPDATE users
			SET wins = wins + ?, draws = draws + ?, losses = losses + ?,
				matches_played = matches_played + 1, updated_at = ?
			WHERE id = ?`),
			side.c[0], side.c[1], side.c[2], now, side.id)
		if err != nil {
			return fmt.Errorf("update counters for %s: %w", side.id, err)
		}
	}

	return tx.Commit()
}

func (s *SQLStore) RecordMatchEvent(ctx context.Context, e models.MatchEvent) error {
	_, err := s.exec(ctx, `
		INSERT INTO match_events (id, type, match_id, participant_a, participant_b, actor, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Type), e.MatchID, e.ParticipantA, e.ParticipantB, e.Actor, e.Reason, millis(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert match event: %w", err)
	}
	return nil
}

func (s *SQLStore) ListMatchEvents(ctx context.Context, matchID string) ([]models.MatchEvent, error) {
	rows, err := s.query(ctx, `
		SELECT id, type, match_id, participant_a, participant_b, actor, reason, created_at
		FROM match_events WHERE match_id = ?
		ORDER BY created_at, id`, matchID)
	if err != nil {
		return nil, fmt.Errorf("query match events: %w", err)
	}
	defer rows.Close()

	events := []models.MatchEvent{}
	for rows.Next() {
		var (
			e       models.MatchEvent
			typ     string
			created int64
		)
		if err := rows.Scan(&e.ID, &typ, &e.MatchID, &e.ParticipantA, &e.ParticipantB, &e.Actor, &e.Reason, &created); err != nil {
			return nil, fmt.Errorf("scan match event: %w", err)
		}
		e.Type = models.MatchEventType(typ)
		e.CreatedAt = fromMillis(created)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *SQLStore) ListMatchHistory(ctx context.Context, userID string, limit int) ([]models.MatchRecord, error) {
	rows, err := s.query(ctx, `
		SELECT id, participant_a, participant_b, outcome, score_a, score_b,
			rating_delta_a, rating_delta_b, power_a, power_b, completed_at
		FROM match_history
		WHERE participant_a = ? OR participant_b = ?
		ORDER BY completed_at DESC
		LIMIT ?`, userID, userID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query match history: %w", err)
	}
	defer rows.Close()

	records := []models.MatchRecord{}
	for rows.Next() {
		var (
			r         models.MatchRecord
			completed int64
		)
		if err := rows.Scan(&r.MatchID, &r.ParticipantA, &r.ParticipantB, &r.Outcome, &r.ScoreA, &r.ScoreB,
			&r.RatingDeltaA, &r.RatingDeltaB, &r.PowerA, &r.PowerB, &completed); err != nil {
			return nil, fmt.Errorf("scan match history: %w", err)
		}
		r.CompletedAt = fromMillis(completed)
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLStore) GetRankings(ctx context.Context, sort models.RankingSort, limit int) ([]models.RankingEntry, error) {
	order := "rating DESC, wins DESC, id"
	if sort == models.SortByWins {
		order = "wins DESC, rating DESC, id"
	}

	rows, err := s.query(ctx, `
		SELECT id, display_name, rating, wins, draws, losses, matches_played
		FROM users
		ORDER BY `+order+`
		LIMIT ?`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query rankings: %w", err)
	}
	defer rows.Close()

	entries := []models.RankingEntry{}
	for rows.Next() {
		var e models.RankingEntry
		if err := rows.Scan(&e.UserID, &e.DisplayName, &e.Rating, &e.Wins, &e.Draws, &e.Losses, &e.MatchesPlayed); err != nil {
			return nil, fmt.Errorf("scan ranking: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rank(entries), nil
}

func (s *SQLStore) Close(ctx context.Context) error {
	return s.db.Close()
}
