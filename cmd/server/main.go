package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"pms-assistant/internal/config"
	"pms-assistant/internal/database"
	"pms-assistant/internal/handlers"
	"pms-assistant/internal/logging"
	"pms-assistant/internal/middleware"
	"pms-assistant/internal/projectdata"
	"pms-assistant/internal/repository"
	"pms-assistant/internal/retrieval"
	"pms-assistant/internal/router"
	"pms-assistant/internal/services"
	"pms-assistant/internal/websocket"
	"pms-assistant/internal/worker"
)

var version = "dev"

type stores struct {
	sessions services.SessionStore
	messages services.MessageStore
	pool     *pgxpool.Pool
	close    func()
}

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	logger := logging.New(cfg.Env, cfg.LogLevel)
	log.Logger = logger
	logger.Info().Str("version", version).Str("env", cfg.Env).Msg("starting pms-assistant")

	// ──── Step 2: Open the Conversation Store ────
	st, err := openStores(cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("store initialization failed")
	}
	defer st.close()
	logger.Info().Str("backend", cfg.StoreBackend).Msg("conversation store ready")

	// ──── Step 3: Initialize Redis Clients (optional) ────
	var redisClients *database.RedisClients
	if cfg.RedisURL != "" {
		redisClients, err = database.NewRedisClients(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisClients.Close()
		st.messages = repository.NewCachedMessageStore(st.messages, redisClients.Cache)
		logger.Info().Msg("redis connected, history cache enabled")
	}

	// ──── Step 4: Retrieval and Project Data ────
	retriever, err := newRetriever(cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.RetrieverBackend).Msg("retriever initialization failed")
	}
	var projectData services.ProjectDataProvider
	if st.pool != nil {
		projectData = projectdata.NewPostgresProvider(st.pool)
	}

	// ──── Step 5: AI Client ────
	aiClient := services.NewResilientAIClient(services.AIClientConfig{
		PrimaryURL:       cfg.AIServiceURL,
		SecondaryURL:     cfg.AIMockURL,
		Model:            cfg.AIModel,
		PrimaryTimeout:   cfg.AITimeout,
		SecondaryTimeout: cfg.AIMockTimeout,
		RetryAttempts:    cfg.AIRetryAttempts,
		RetryBackoff:     cfg.AIRetryBackoff,
		FailureThreshold: cfg.AICBFailureThreshold,
		Cooldown:         cfg.AICBCooldown,
	})

	// ──── Step 6: WebSocket Hub and Notification Workers ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)

	var pubsub *redis.Client
	var sink services.UpdatePublisher
	if redisClients != nil {
		pubsub = redisClients.PubSub
		sink = services.NewRedisPublisher(redisClients.Cache)
	}
	wsHub := websocket.NewHub(pubsub, jwtAuth)
	if sink == nil {
		sink = wsHub
	}

	notifier := worker.NewPool(sink, 4, 256)
	notifier.Start()

	// ──── Step 7: Chat Service ────
	chatService := services.NewChatService(
		st.sessions,
		st.messages,
		services.NewRequestAugmenter(retriever, cfg.RAGTopK),
		aiClient,
		services.ChatServiceOptions{
			RecentLimit: cfg.ChatRecentLimit,
			ProjectData: projectData,
			Publisher:   notifier,
		},
	)

	// ──── Step 8: Start HTTP Server ────
	ceiling := cfg.RequestCeiling()
	handler, stopRouter := router.New(router.Options{
		Logger:         logger,
		FrontendURL:    cfg.FrontendURL,
		ChatRatePerMin: cfg.ChatRateLimitPerMinute,
		RequestCeiling: ceiling,
		JWTAuth:        jwtAuth,
		ChatHandler:    handlers.NewChatHandler(chatService),
		HealthHandler:  handlers.NewHealthHandler(aiClient, version),
		WSHub:          wsHub,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: ceiling + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info().Msg("shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("http shutdown incomplete")
		}
		stopRouter()
		notifier.Stop()
	}()

	logger.Info().
		Str("addr", server.Addr).
		Dur("request_ceiling", ceiling).
		Str("retriever", cfg.RetrieverBackend).
		Msg("pms-assistant ready")

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("server error")
	}
	<-done
}

func openStores(cfg *config.Config) (*stores, error) {
	switch cfg.StoreBackend {
	case "postgres":
		pool, err := database.NewPostgresPool(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := database.RunMigrations(pool, "migrations"); err != nil {
			pool.Close()
			return nil, err
		}
		return &stores{
			sessions: repository.NewChatSessionRepo(pool),
			messages: repository.NewChatMessageRepo(pool),
			pool:     pool,
			close:    pool.Close,
		}, nil
	case "sqlite":
		db, err := database.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		store := repository.NewSQLiteStore(db)
		return &stores{sessions: store, messages: store, close: func() { db.Close() }}, nil
	case "memory":
		store := repository.NewMemoryStore()
		return &stores{sessions: store, messages: store, close: func() {}}, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func newRetriever(cfg *config.Config) (services.Retriever, error) {
	switch cfg.RetrieverBackend {
	case "http":
		return retrieval.NewHTTPRetriever(cfg.RAGServiceURL, cfg.RAGTimeout), nil
	case "qdrant":
		client, err := retrieval.NewQdrantClient(cfg.QdrantHost, cfg.QdrantPort)
		if err != nil {
			return nil, err
		}
		embedder := retrieval.NewEmbeddingClient(cfg.EmbeddingURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel, cfg.RAGTimeout)
		return retrieval.NewQdrantRetriever(client, embedder, cfg.QdrantCollection), nil
	case "none", "":
		return services.NoopRetriever{}, nil
	default:
		return nil, fmt.Errorf("unknown retriever backend %q", cfg.RetrieverBackend)
	}
}
