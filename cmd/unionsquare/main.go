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

	"github.com/gin-gonic/gin"

	"github.com/unionsquare/unionsquare/internal/audit"
	"github.com/unionsquare/unionsquare/internal/audittail"
	"github.com/unionsquare/unionsquare/internal/config"
	"github.com/unionsquare/unionsquare/internal/hotpath"
	"github.com/unionsquare/unionsquare/internal/logger"
	"github.com/unionsquare/unionsquare/internal/middleware"
	"github.com/unionsquare/unionsquare/internal/provider"
	"github.com/unionsquare/unionsquare/internal/provider/bedrock"
	"github.com/unionsquare/unionsquare/internal/ringbuffer"
)

func main() {
	logger.Initialize(getEnv("UNIONSQUARE_LOG_LEVEL", "info"), os.Getenv("GIN_MODE") != "release")
	log := logger.GetLogger()

	proxyCfg, authCfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ringBufferCfg, err := proxyCfg.RingBufferConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid ring buffer configuration")
	}
	buffer := ringbuffer.New(ringBufferCfg)
	log.Info().Int("capacity", buffer.Capacity()).Msg("ring buffer initialized")

	reporter := ringbuffer.NewStatsReporter(buffer, proxyCfg.RingBufferStatsEvery)
	reporter.Start()
	defer reporter.Stop()

	eventStore, err := newEventStore()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize audit event store")
	}
	defer eventStore.Close()

	tailHub := audittail.NewHub()
	go tailHub.Run()

	bedrockAdapter := newBedrockAdapter(proxyCfg)
	registry := provider.NewRegistry(bedrockAdapter)

	worker := audit.NewWorker(buffer, eventStore)
	worker.SetTailer(tailHub)
	worker.SetBodyProcessor(registry)
	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()
	go worker.Run(workerCtx)
	defer worker.Stop()

	httpClient := &http.Client{
		Timeout: proxyCfg.RequestTimeout + 5*time.Second,
	}
	handler := hotpath.New(proxyCfg, registry, buffer, httpClient)

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Chain order per §4.3: request-id (outermost) -> structured logging
	// -> error mapping -> auth (innermost), so every later stage's logs
	// and error responses already carry a request id.
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.StructuredLogger())
	router.Use(middleware.Timeout(middleware.DefaultTimeoutConfig()))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.GzipWithExclusions(middleware.BestSpeed, []string{"/admin/audit/stream", "/health", "/metrics"}))
	router.Use(middleware.RequestSizeLimiter(proxyCfg.MaxRequestSize))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Auth(authCfg))

	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", func(c *gin.Context) { c.String(http.StatusOK, "metrics placeholder\n") })
	router.GET("/admin/audit/stream", audittail.ServeStream(tailHub))
	router.NoRoute(handler.ServeHTTP)

	srv := &http.Server{
		Addr:              proxyCfg.BindAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		log.Info().Str("addr", proxyCfg.BindAddr).Msg("union square proxy listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server forced to shutdown")
	}

	// worker.Stop() (deferred above) drains whatever the ring buffer still
	// holds before the event store is closed.
}

// newBedrockAdapter honors BEDROCK_ENDPOINT_OVERRIDE (e.g. for local
// testing against a mock Bedrock server) ahead of the region-derived
// default endpoint.
func newBedrockAdapter(cfg config.ProxyConfig) *bedrock.Adapter {
	if cfg.BedrockEndpoint != "" {
		return bedrock.NewWithBaseURL(cfg.BedrockEndpoint)
	}
	return bedrock.New(cfg.BedrockRegion)
}

// newEventStore selects an audit.EventStore implementation from
// UNIONSQUARE_AUDIT_STORE (redis|nats|postgres), defaulting to redis —
// the lowest-latency option and the one the distilled spec's examples
// assume.
func newEventStore() (audit.EventStore, error) {
	switch getEnv("UNIONSQUARE_AUDIT_STORE", "redis") {
	case "nats":
		return audit.NewNatsStore(getEnv("UNIONSQUARE_NATS_URL", "nats://localhost:4222"))
	case "postgres":
		dsn := os.Getenv("UNIONSQUARE_POSTGRES_DSN")
		if dsn == "" {
			return nil, fmt.Errorf("UNIONSQUARE_POSTGRES_DSN must be set when UNIONSQUARE_AUDIT_STORE=postgres")
		}
		return audit.NewPostgresStore(dsn)
	default:
		return audit.NewRedisStore(audit.RedisStoreConfig{
			Addr:      getEnv("UNIONSQUARE_REDIS_ADDR", "localhost:6379"),
			Password:  os.Getenv("UNIONSQUARE_REDIS_PASSWORD"),
			Stream:    getEnv("UNIONSQUARE_REDIS_STREAM", "unionsquare:audit"),
			MaxLength: 1_000_000,
		}), nil
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func init() {
	// Drop the standard logger's date/time prefix — log.SetFlags mirrors
	// the teacher's minimal use of the standard logger for the handful of
	// lines that run before logger.Initialize.
	log.SetFlags(0)
}
