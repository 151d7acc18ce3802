package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"soccer-game/internal/db"
	"soccer-game/internal/game"
	"soccer-game/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps users, players, teams and match history in MongoDB.
type MongoStore struct {
	db *db.MongoDB
}

func NewMongoStore(database *db.MongoDB) *MongoStore {
	return &MongoStore{db: database}
}

var _ Store = (*MongoStore)(nil)

func (s *MongoStore) CreateUser(ctx context.Context, user *models.User) error {
	prepareUser(user, time.Now())

	if _, err := s.db.Users().InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *MongoStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.Users().FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

func (s *MongoStore) UpsertPlayer(ctx context.Context, player *models.Player) error {
	if player.ID == "" {
		player.ID = uuid.NewString()
	}
	_, err := s.db.Players().ReplaceOne(ctx, bson.M{"_id": player.ID}, player, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert player: %w", err)
	}
	return nil
}

func (s *MongoStore) SetTeam(ctx context.Context, userID string, playerIDs []string) error {
	if err := validateTeam(playerIDs); err != nil {
		return err
	}

	n, err := s.db.Players().CountDocuments(ctx, bson.M{"_id": bson.M{"$in": playerIDs}})
	if err != nil {
		return fmt.Errorf("count players: %w", err)
	}
	if int(n) != len(playerIDs) {
		return ErrNotFound
	}

	_, err = s.db.Teams().UpdateOne(ctx,
		bson.M{"userId": userID},
		bson.M{
			"$set":         bson.M{"playerIds": playerIDs},
			"$setOnInsert": bson.M{"_id": uuid.NewString()},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert team: %w", err)
	}
	return nil
}

// GetTeam returns the lineup in slot order. Players that no longer exist are
// skipped, which leaves the team incomplete.
func (s *MongoStore) GetTeam(ctx context.Context, participantID string) ([]game.Attributes, error) {
	var team models.Team
	err := s.db.Teams().FindOne(ctx, bson.M{"userId": participantID}).Decode(&team)
	if errors.Is(err, mongo.ErrNoDocuments) || (err == nil && len(team.PlayerIDs) == 0) {
		return nil, game.ErrNoTeam
	}
	if err != nil {
		return nil, fmt.Errorf("find team: %w", err)
	}

	cursor, err := s.db.Players().Find(ctx, bson.M{"_id": bson.M{"$in": team.PlayerIDs}})
	if err != nil {
		return nil, fmt.Errorf("find players: %w", err)
	}
	defer cursor.Close(ctx)

	var players []models.Player
	if err := cursor.All(ctx, &players); err != nil {
		return nil, fmt.Errorf("decode players: %w", err)
	}

	byID := make(map[string]game.Attributes, len(players))
	for _, p := range players {
		byID[p.ID] = p.Attributes
	}

	attrs := make([]game.Attributes, 0, len(team.PlayerIDs))
	for _, id := range team.PlayerIDs {
		if a, ok := byID[id]; ok {
			attrs = append(attrs, a)
		}
	}
	return attrs, nil
}

func (s *MongoStore) GetRating(ctx context.Context, participantID string) (int, error) {
	var user struct {
		Rating int `bson:"rating"`
	}
	err := s.db.Users().FindOne(ctx,
		bson.M{"_id": participantID},
		options.FindOne().SetProjection(bson.M{"rating": 1}),
	).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("find rating: %w", err)
	}
	return user.Rating, nil
}

// ApplyRatingDelta adds delta in a single pipeline update so the zero floor
// holds under concurrent writers.
func (s *MongoStore) ApplyRatingDelta(ctx context.Context, participantID string, delta int) error {
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"rating":    bson.M{"$max": bson.A{0, bson.M{"$add": bson.A{"$rating", delta}}}},
			"updatedAt": time.Now(),
		}}},
	}

	res, err := s.db.Users().UpdateOne(ctx, bson.M{"_id": participantID}, update)
	if err != nil {
		return fmt.Errorf("apply rating delta: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordMatchResult stores the history row and bumps both players' counters.
// Replaying the same match is a no-op.
func (s *MongoStore) RecordMatchResult(ctx context.Context, record models.MatchRecord) error {
	if _, err := s.db.MatchHistory().InsertOne(ctx, record); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("insert match history: %w", err)
	}

	a, b := outcomeCounters(record.Outcome)
	for _, side := range []struct {
		id string
		c  [3]int
	}{{record.ParticipantA, a}, {record.ParticipantB, b}} {
		_, err := s.db.Users().UpdateOne(ctx,
			bson.M{"_id": side.id},
			bson.M{
				"$inc": bson.M{"wins": side.c[0], "draws": side.c[1], "losses": side.c[2], "matchesPlayed": 1},
				"$set": bson.M{"updatedAt": time.Now()},
			},
		)
		if err != nil {
			return fmt.Errorf("update counters for %s: %w", side.id, err)
		}
	}
	return nil
}

func (s *MongoStore) RecordMatchEvent(ctx context.Context, event models.MatchEvent) error {
	if _, err := s.db.MatchEvents().InsertOne(ctx, event); err != nil {
		return fmt.Errorf("insert match event: %w", err)
	}
	return nil
}

func (s *MongoStore) ListMatchEvents(ctx context.Context, matchID string) ([]models.MatchEvent, error) {
	cursor, err := s.db.MatchEvents().Find(ctx,
		bson.M{"matchId": matchID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find match events: %w", err)
	}
	defer cursor.Close(ctx)

	events := []models.MatchEvent{}
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("decode match events: %w", err)
	}
	return events, nil
}

func (s *MongoStore) ListMatchHistory(ctx context.Context, userID string, limit int) ([]models.MatchRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "completedAt", Value: -1}}).
		SetLimit(int64(normalizeLimit(limit)))

	cursor, err := s.db.MatchHistory().Find(ctx, bson.M{
		"$or": bson.A{
			bson.M{"participantA": userID},
			bson.M{"participantB": userID},
		},
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("find match history: %w", err)
	}
	defer cursor.Close(ctx)

	records := []models.MatchRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode match history: %w", err)
	}
	return records, nil
}

func (s *MongoStore) GetRankings(ctx context.Context, sort models.RankingSort, limit int) ([]models.RankingEntry, error) {
	order := bson.D{{Key: "rating", Value: -1}, {Key: "wins", Value: -1}, {Key: "_id", Value: 1}}
	if sort == models.SortByWins {
		order = bson.D{{Key: "wins", Value: -1}, {Key: "rating", Value: -1}, {Key: "_id", Value: 1}}
	}

	opts := options.Find().
		SetSort(order).
		SetLimit(int64(normalizeLimit(limit)))

	cursor, err := s.db.Users().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find rankings: %w", err)
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode rankings: %w", err)
	}

	entries := make([]models.RankingEntry, len(users))
	for i, u := range users {
		entries[i] = models.RankingEntry{
			UserID:        u.ID,
			DisplayName:   u.DisplayName,
			Rating:        u.Rating,
			Wins:          u.Wins,
			Draws:         u.Draws,
			Losses:        u.Losses,
			MatchesPlayed: u.MatchesPlayed,
		}
	}
	return rank(entries), nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.db.Close(ctx)
}
