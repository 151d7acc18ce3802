package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"soccer-game/internal/auth"
	"soccer-game/internal/config"
	"soccer-game/internal/db"
	"soccer-game/internal/game"
	"soccer-game/internal/logger"
	"soccer-game/internal/models"
	"soccer-game/internal/store"

	"go.uber.org/zap"
)

type seedUser struct {
	id     string
	name   string
	rating int
	base   int // attribute level of the user's players
}

var seedUsers = []seedUser{
	{"dev-alice", "Alice", 1000, 60},
	{"dev-bob", "Bob", 1020, 55},
	{"dev-carol", "Carol", 1200, 80},
	{"dev-dave", "Dave", 980, 40},
}

func main() {
	cfg, err := config.Load(config.GetEnv())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	var st store.Store
	switch cfg.Storage.Driver {
	case config.DriverMongo:
		mongodb, err := db.NewMongoDB(cfg.MongoDB.URI, cfg.MongoDB.Database, zl)
		if err != nil {
			zl.Fatal("failed to connect to MongoDB", zap.Error(err))
		}
		st = store.NewMongoStore(mongodb)
	default:
		sqldb, err := db.OpenSQL(cfg.Storage.Driver, cfg.Storage.DSN)
		if err != nil {
			zl.Fatal("failed to open SQL database", zap.Error(err))
		}
		st = store.NewSQLStore(sqldb)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		st.Close(ctx)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	jwtService := auth.NewJWTService(cfg.JWT.AccessSecret, 30*24*time.Hour)

	for _, su := range seedUsers {
		err := st.CreateUser(ctx, &models.User{ID: su.id, DisplayName: su.name, Rating: su.rating})
		if err != nil && !errors.Is(err, store.ErrDuplicate) {
			zl.Fatal("failed to create user", zap.String("userId", su.id), zap.Error(err))
		}

		playerIDs := make([]string, 0, game.TeamSize)
		for slot := 1; slot <= game.TeamSize; slot++ {
			p := &models.Player{
				ID:   fmt.Sprintf("%s-p%d", su.id, slot),
				Name: fmt.Sprintf("%s #%d", su.name, slot),
				Tier: "common",
				Attributes: game.Attributes{
					Speed:            su.base + slot,
					GoalDecisiveness: su.base,
					ShootPower:       su.base + 2*slot,
					Defense:          su.base - slot,
					Stamina:          su.base,
				},
			}
			if err := st.UpsertPlayer(ctx, p); err != nil {
				zl.Fatal("failed to upsert player", zap.String("playerId", p.ID), zap.Error(err))
			}
			playerIDs = append(playerIDs, p.ID)
		}

		if err := st.SetTeam(ctx, su.id, playerIDs); err != nil {
			zl.Fatal("failed to set team", zap.String("userId", su.id), zap.Error(err))
		}

		token, err := jwtService.GenerateAccessToken(su.id, su.name)
		if err != nil {
			zl.Fatal("failed to sign token", zap.Error(err))
		}
		fmt.Printf("%-10s rating=%-5d token=%s\n", su.id, su.rating, token)
	}

	fmt.Println("Database seeded successfully")
}
