package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stylevault/backend/internal/api"
	"github.com/stylevault/backend/internal/auth"
	"github.com/stylevault/backend/internal/chat"
	"github.com/stylevault/backend/internal/config"
	"github.com/stylevault/backend/internal/db"
	"github.com/stylevault/backend/internal/health"
	"github.com/stylevault/backend/internal/logger"
	"github.com/stylevault/backend/internal/storage"
	"github.com/stylevault/backend/internal/stylist"
	"github.com/stylevault/backend/internal/users"
	"github.com/stylevault/backend/internal/wardrobe"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()

	log := logger.New(os.Stdout, logger.ParseLevel(cfg.LogLevel), "server")
	logger.SetDefault(log)
	ctx := context.Background()

	if err := cfg.Validate(); err != nil {
		log.Error(ctx, "invalid configuration", err)
		os.Exit(1)
	}

	database, err := db.New(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	if err != nil {
		log.Error(ctx, "failed to connect to database", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		log.Error(ctx, "failed to run migrations", err)
		os.Exit(1)
	}

	sessions, err := chat.NewStore(cfg.RedisAddr)
	if err != nil {
		log.Error(ctx, "failed to connect to redis", err)
		os.Exit(1)
	}
	defer sessions.Close()

	store, mediaURL, err := newObjectStore(ctx, cfg)
	if err != nil {
		log.Error(ctx, "failed to set up object storage", err)
		os.Exit(1)
	}

	userRepo := db.NewUserRepository(database)
	tokenRepo := db.NewTokenRepository(database)
	profileRepo := db.NewProfileRepository(database)
	wardrobeRepo := db.NewWardrobeRepository(database)

	codec := auth.NewCodec(cfg.AccessSecret, cfg.RefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)
	authService := auth.NewService(codec, userRepo, tokenRepo)
	authHandlers := auth.NewHandlers(authService)

	stylistClient := stylist.NewClient(cfg.StylistBaseURL, cfg.StylistAPIKey, cfg.StylistModel)
	contexts := chat.NewContextBuilder(wardrobeRepo, profileRepo)

	hub := chat.NewHub()
	go hub.Run()

	chatService := chat.NewService(sessions, stylistClient, contexts, hub)
	chatHandlers := chat.NewHandlers(chatService)
	wsHandler := chat.NewWSHandler(hub, authService, chatService)

	userHandlers := users.NewHandlers(userRepo, profileRepo, store, mediaURL)
	wardrobeHandlers := wardrobe.NewHandlers(wardrobeRepo, store, mediaURL)

	checker := health.NewChecker(&health.CheckerConfig{
		DB:           database.DB,
		RedisCheck:   sessions.Ping,
		StorageCheck: store.Ping,
		Version:      version,
	})

	router := api.NewRouter(&api.RouterConfig{
		AuthHandlers:     authHandlers,
		AuthService:      authService,
		UserHandlers:     userHandlers,
		WardrobeHandlers: wardrobeHandlers,
		ChatHandlers:     chatHandlers,
		WSHandler:        wsHandler,
		HealthHandler:    health.NewHandler(checker),
		CORSOrigins:      cfg.CORSOrigins,
	})

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting server", map[string]interface{}{
			"addr":    cfg.ServerAddr,
			"version": version,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Error(ctx, "server failed", err)
		os.Exit(1)
	case sig := <-stop:
		log.Info(ctx, "shutting down", map[string]interface{}{"signal": sig.String()})
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "graceful shutdown failed", err)
	}
}

// newObjectStore builds the configured storage backend and returns it
// together with the public URL prefix uploaded media is served from.
func newObjectStore(ctx context.Context, cfg *config.Config) (storage.Store, string, error) {
	switch cfg.StorageBackend {
	case "s3":
		store, err := storage.NewS3(&storage.S3Config{
			Endpoint:      cfg.S3Endpoint,
			Region:        cfg.S3Region,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Bucket:        cfg.S3Bucket,
			UsePathStyle:  cfg.S3UsePathStyle,
			PublicBaseURL: cfg.PublicMediaURL,
		})
		if err != nil {
			return nil, "", err
		}
		return store, store.BaseURL(), nil
	default:
		store, err := storage.New(&storage.Config{
			Endpoint:      cfg.MinioEndpoint,
			AccessKey:     cfg.MinioAccessKey,
			SecretKey:     cfg.MinioSecretKey,
			Bucket:        cfg.MinioBucket,
			UseSSL:        cfg.MinioUseSSL,
			PublicBaseURL: cfg.PublicMediaURL,
		})
		if err != nil {
			return nil, "", err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, "", err
		}
		return store, store.BaseURL(), nil
	}
}
