package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"soccer-game/internal/audit"
	"soccer-game/internal/auth"
	"soccer-game/internal/config"
	"soccer-game/internal/db"
	"soccer-game/internal/eventbus"
	"soccer-game/internal/handlers"
	"soccer-game/internal/logger"
	"soccer-game/internal/matchmaking"
	"soccer-game/internal/middleware"
	"soccer-game/internal/rating"
	"soccer-game/internal/store"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	zl.Info("starting soccer server", zap.String("environment", cfg.Environment), zap.String("storage", cfg.Storage.Driver))

	// Storage
	var (
		st         store.Store
		wsEvents   *mongo.Collection
		closeStore func(ctx context.Context) error
	)
	switch cfg.Storage.Driver {
	case config.DriverMongo:
		mongodb, err := db.NewMongoDB(cfg.MongoDB.URI, cfg.MongoDB.Database, zl)
		if err != nil {
			zl.Fatal("failed to connect to MongoDB", zap.Error(err))
		}
		zl.Info("connected to MongoDB", zap.String("database", cfg.MongoDB.Database))
		ms := store.NewMongoStore(mongodb)
		st, closeStore, wsEvents = ms, ms.Close, mongodb.WSEvents()
	default:
		sqldb, err := db.OpenSQL(cfg.Storage.Driver, cfg.Storage.DSN)
		if err != nil {
			zl.Fatal("failed to open SQL database", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
		}
		zl.Info("opened SQL database", zap.String("driver", cfg.Storage.Driver))
		ss := store.NewSQLStore(sqldb)
		st, closeStore = ss, ss.Close
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := closeStore(ctx); err != nil {
			zl.Warn("failed to close store", zap.Error(err))
		}
	}()

	// Matchmaking
	journal := audit.NewJournal(st, zl)
	mm := matchmaking.New(st, st, matchmaking.Options{
		Queue: matchmaking.QueueOptions{
			Threshold:     cfg.Matchmaking.RatingThreshold,
			ThresholdStep: cfg.Matchmaking.ThresholdStep,
			StepInterval:  cfg.Matchmaking.ThresholdStepInterval(),
			MaxThreshold:  cfg.Matchmaking.MaxThreshold,
		},
		AgreementTimeout: cfg.Matchmaking.AgreementTimeout(),
		QueueTimeout:     cfg.Matchmaking.QueueTimeout(),
		SweepInterval:    cfg.Matchmaking.SweepInterval(),
		Policy:           rating.PolicyByName(cfg.Matchmaking.RatingPolicy),
		Recorder:         st,
		Journal:          journal,
		Logger:           zl.With(zap.String("component", "matchmaker")),
	})

	// Sessions
	hub := handlers.NewHub(zl)
	hub.SetDisconnectHandler(func(participantID string) {
		mm.Disconnect(context.Background(), participantID)
	})
	go hub.Run()

	bus := eventbus.New(wsEvents, hub.Deliver, zl)
	if bus.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := bus.EnsureIndexes(ctx); err != nil {
			zl.Warn("failed to create event bus indexes", zap.Error(err))
		}
		cancel()
		bus.Start()
		defer bus.Stop()
	}

	mm.SetNotifier(handlers.NewSessionNotifier(hub, bus, zl))
	mm.Start()
	defer func() {
		// Disconnect callbacks can still reach the journal until the hub stops.
		hub.Stop()
		mm.Stop()
		journal.Wait()
	}()

	// Rate limiting
	var limiter middleware.Limiter
	if cfg.Redis.Addr != "" {
		rl := middleware.NewRedisLimiter(redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}), "soccer:ratelimit:")
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rl.Ping(ctx); err != nil {
			zl.Warn("redis unreachable, rate limits fail open until it recovers", zap.Error(err))
		}
		cancel()
		defer rl.Close()
		limiter = rl
	} else {
		ml := middleware.NewRateLimiter()
		defer ml.Stop()
		limiter = ml
	}
	matchmakingLimit := middleware.RateLimitConfig{
		MaxRequests: cfg.RateLimit.Requests,
		Window:      time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
	}

	// Create middleware
	jwtService := auth.NewJWTService(cfg.JWT.AccessSecret, time.Duration(cfg.JWT.AccessTTL)*time.Minute)
	authMiddleware := middleware.NewAuthMiddleware(jwtService)

	// Create handlers
	wsHandler := handlers.NewWebSocketHandler(hub, mm, zl)
	matchmakingHandler := handlers.NewMatchmakingHandler(mm, zl)
	rankingsHandler := handlers.NewRankingsHandler(st, zl)
	historyHandler := handlers.NewHistoryHandler(st, zl)

	// Set up router
	router := mux.NewRouter()
	router.Use(middleware.SecurityHeaders())

	// WebSocket routes
	ws := router.PathPrefix("/ws").Subrouter()
	ws.Use(middleware.RateLimit(limiter, middleware.WebSocketUpgradeLimit, middleware.ClientIPKey, zl))
	ws.Use(authMiddleware.RequireAuth)
	ws.HandleFunc("/matchmaking", wsHandler.HandleMatchmakingWebSocket).Methods("GET")

	// API routes
	api := router.PathPrefix("/api").Subrouter()

	// Rankings (public)
	rankingsApi := api.PathPrefix("/rankings").Subrouter()
	rankingsApi.Use(middleware.RateLimit(limiter, middleware.RankingsLimit, middleware.ClientIPKey, zl))
	rankingsApi.HandleFunc("", rankingsHandler.GetRankings).Methods("GET")

	// Matchmaking routes (protected)
	matchApi := api.PathPrefix("/matchmaking").Subrouter()
	matchApi.Use(authMiddleware.RequireAuth)
	matchApi.Use(middleware.RateLimit(limiter, matchmakingLimit, middleware.ParticipantKey, zl))
	matchApi.HandleFunc("/join", matchmakingHandler.JoinQueue).Methods("POST")
	matchApi.HandleFunc("/agree", matchmakingHandler.Agree).Methods("POST")
	matchApi.HandleFunc("/leave", matchmakingHandler.LeaveQueue).Methods("POST")
	matchApi.HandleFunc("/status", matchmakingHandler.GetStatus).Methods("GET")

	// Profile and history (protected)
	api.Handle("/me", authMiddleware.RequireAuth(http.HandlerFunc(historyHandler.GetMe))).Methods("GET")
	historyApi := api.PathPrefix("/matches").Subrouter()
	historyApi.Use(authMiddleware.RequireAuth)
	historyApi.HandleFunc("", historyHandler.GetMyMatches).Methods("GET")
	historyApi.HandleFunc("/{matchId}/events", historyHandler.GetMatchEvents).Methods("GET")

	// Health check
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	// CORS middleware
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.Frontend.URL},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      corsHandler.Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		zl.Info("server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zl.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("shutting down server")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		zl.Error("server shutdown error", zap.Error(err))
	}

	zl.Info("server stopped")
}
