package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"nidar/preorder/internal/api"
	"nidar/preorder/internal/config"
	"nidar/preorder/internal/database"
	"nidar/preorder/internal/services"
	"nidar/preorder/internal/utils"
)

func main() {
	// .env is optional, production sets real environment variables
	envErr := godotenv.Load()

	cfg := config.Load()
	setupLogger(cfg)

	if envErr != nil {
		log.Info().Msg("ℹ️ .env file not found, using system environment")
	} else {
		log.Info().Msg("✅ Environment loaded from .env file")
	}

	var (
		store       services.SessionStore
		redisClient *redis.Client
		memoryStore *services.MemorySessionStore
	)
	redisClient, err := database.ConnectRedis(cfg.RedisURL, cfg.RedisSentinelAddrs, cfg.RedisMasterName)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ Redis unavailable, sessions kept in memory (single instance only)")
		memoryStore = services.NewMemorySessionStore(cfg.SessionTTL)
		memoryStore.StartJanitor(time.Minute)
		store = memoryStore
	} else {
		store = services.NewRedisSessionStore(utils.NewRedisClient(redisClient), cfg.SessionTTL)
		log.Info().Dur("ttl", cfg.SessionTTL).Msg("✅ Sessions stored in Redis")
	}

	var publisher services.OrderEventPublisher = services.NoopOrderPublisher{}
	if cfg.KafkaBrokers != "" {
		kafkaPublisher, err := services.NewKafkaOrderPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaUsername, cfg.KafkaPassword, cfg.KafkaCACert)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ Kafka publisher not started, placed orders will not be announced")
		} else {
			publisher = kafkaPublisher
		}
	} else {
		log.Info().Msg("ℹ️ KAFKA_BROKERS not set, placed orders will not be announced")
	}

	agent := services.NewAgentClient(cfg.AgentAPIURL, cfg.AgentAPIKey, cfg.AgentTimeout)
	flow := services.NewOrderFlow(agent, publisher, services.OrderFlowConfig{
		AgentID:        cfg.AgentID,
		MinLead:        cfg.MinLead(),
		Location:       cfg.Location(),
		ShareLinkBase:  cfg.ShareLinkBase,
		ShareRecipient: cfg.WhatsAppPhone,
	})
	sessions := services.NewSessionManager(store, cfg.SampleMode)

	views, err := api.LoadViews()
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to load page templates")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := api.NewArrivalHub(flow, cfg.MinArrivalRefresh)
	go hub.Run(ctx)

	pages := api.NewPageController(flow, sessions, hub, views, api.PageOptions{
		CookieName:         cfg.SessionCookie,
		CookieTTL:          cfg.SessionTTL,
		SecureCookie:       cfg.IsProduction(),
		BackgroundImageURL: cfg.BackgroundImageURL,
		LogoURL:            cfg.LogoURL,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := api.NewRouter(pages)

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logRuntimeStats(ctx, store, hub)
			}
		}
	}()

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.ServerPort).Str("env", cfg.Environment).Msg("🚀 Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("❌ Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("🛑 Shutting down")

	// submissions in flight may wait on the agent for the full timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.AgentTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("⚠️ Server shutdown incomplete")
	}

	if err := publisher.Close(); err != nil {
		log.Warn().Err(err).Msg("⚠️ Kafka publisher close failed")
	}
	if memoryStore != nil {
		memoryStore.Close()
	}
	if err := database.CloseRedis(redisClient); err != nil {
		log.Warn().Err(err).Msg("⚠️ Redis close failed")
	}
	log.Info().Msg("👋 Server stopped")
}

func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.IsProduction() {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	log.Logger = log.With().Caller().Logger()
}

// logRuntimeStats reports memory, goroutines, live sessions and open order pages.
func logRuntimeStats(ctx context.Context, store services.SessionStore, hub *api.ArrivalHub) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	heapAllocMB := float64(m.HeapAlloc) / 1024 / 1024
	numGoroutines := runtime.NumGoroutine()

	sessions, err := store.Count(ctx)
	if err != nil {
		sessions = -1
	}

	log.Info().
		Float64("heap_alloc_mb", heapAllocMB).
		Float64("sys_mb", float64(m.Sys)/1024/1024).
		Uint32("gc", m.NumGC).
		Int("goroutines", numGoroutines).
		Int("sessions", sessions).
		Int("ws_clients", hub.GetClientsCount()).
		Msg("💾 Runtime stats")

	if numGoroutines > 1000 {
		log.Warn().Int("goroutines", numGoroutines).Msg("⚠️ High number of goroutines (possible leak)")
	}
	if heapAllocMB > 500 {
		log.Warn().Float64("heap_alloc_mb", heapAllocMB).Msg("⚠️ High memory usage")
	}
}
