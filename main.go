package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"

	"github.com/varun72004/Twin-Talk/internal/ai"
	"github.com/varun72004/Twin-Talk/internal/auth"
	"github.com/varun72004/Twin-Talk/internal/config"
	"github.com/varun72004/Twin-Talk/internal/database"
	"github.com/varun72004/Twin-Talk/internal/message"
	"github.com/varun72004/Twin-Talk/internal/presence"
	"github.com/varun72004/Twin-Talk/internal/ratelimit"
	"github.com/varun72004/Twin-Talk/internal/security"
	"github.com/varun72004/Twin-Talk/internal/upload"
	"github.com/varun72004/Twin-Talk/internal/user"
	"github.com/varun72004/Twin-Talk/internal/ws"
)

func main() {
	cfg := config.Load()
	setupLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, users, mongo, err := openPersistence(cfg)
	if err != nil {
		slog.Error("persistence init failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	defer users.Close()
	if mongo != nil {
		defer mongo.Close()
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.Error("redis unreachable", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		slog.Info("redis connected")
	}

	var reg presence.Registry
	if redisClient != nil {
		reg = presence.NewRedisRegistry(redisClient)
	} else {
		reg = presence.NewMemoryRegistry()
	}

	validator := security.NewValidator(cfg.MaxMessageLength)
	hasher := auth.NewPasswordHasher()
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	authService := auth.NewService(users, hasher, tokens, validator)
	authHandler := auth.NewHandler(authService)

	uploadHandler, err := upload.NewHandler(cfg.UploadDir, cfg.MaxUploadSize)
	if err != nil {
		slog.Error("upload init failed", "error", err)
		os.Exit(1)
	}

	aiClient := ai.NewClient(cfg.AIAPIURL, cfg.AIAPIKey, cfg.AIModel, cfg.AITimeout)
	aiHandler := ai.NewHandler(aiClient)

	hub := ws.NewHub(store, users, reg, validator)
	go hub.Run(ctx)

	apiLimit := newLimiter(redisClient, "ratelimit:api:", cfg.RateLimitRequests, cfg.RateLimitWindow)
	aiLimit := newLimiter(redisClient, "ratelimit:ai:", cfg.AIRateLimitRequests, cfg.AIRateLimitWindow)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, tokens, w, r)
	})
	mux.Handle("/api/auth/register", ratelimit.Middleware(apiLimit, http.HandlerFunc(authHandler.Register)))
	mux.Handle("/api/auth/login", ratelimit.Middleware(apiLimit, http.HandlerFunc(authHandler.Login)))
	mux.Handle("/api/upload", ratelimit.Middleware(apiLimit,
		auth.Middleware(tokens, http.HandlerFunc(uploadHandler.Upload))))
	mux.Handle("/api/ai/chat", ratelimit.Middleware(aiLimit,
		auth.Middleware(tokens, http.HandlerFunc(aiHandler.Chat))))
	mux.HandleFunc("/api/health", handleHealth)
	mux.Handle("/uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websocket connections outlive any write deadline
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown incomplete", "error", err)
	}
}

func setupLogger(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}

// openPersistence picks the Mongo-backed store and repository when a
// URI is configured, otherwise JSON files under the data dir.
func openPersistence(cfg *config.Config) (message.Store, user.Repository, *database.MongoDB, error) {
	if cfg.MongoURI != "" {
		mongoCfg := database.DefaultMongoConfig()
		mongoCfg.URI = cfg.MongoURI
		mongoCfg.Database = cfg.MongoDatabase
		mongo, err := database.NewMongoDB(mongoCfg)
		if err != nil {
			return nil, nil, nil, err
		}
		store, err := message.NewMongoStore(mongo)
		if err != nil {
			mongo.Close()
			return nil, nil, nil, err
		}
		users, err := user.NewMongoRepository(mongo)
		if err != nil {
			mongo.Close()
			return nil, nil, nil, err
		}
		slog.Info("using mongodb persistence", "database", cfg.MongoDatabase)
		return store, users, mongo, nil
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, nil, nil, err
	}
	store, err := message.NewFileStore(filepath.Join(cfg.DataDir, "messages.json"))
	if err != nil {
		return nil, nil, nil, err
	}
	users, err := user.NewFileRepository(filepath.Join(cfg.DataDir, "users.json"))
	if err != nil {
		return nil, nil, nil, err
	}
	slog.Info("using file persistence", "dir", cfg.DataDir)
	return store, users, nil, nil
}

func newLimiter(client *redis.Client, prefix string, limit int, window time.Duration) ratelimit.Limiter {
	if client != nil {
		return ratelimit.NewRedisLimiter(client, prefix, limit, window)
	}
	return ratelimit.NewMemoryLimiter(limit, window)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
