package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"nse-pulse/api"
	"nse-pulse/cache"
	"nse-pulse/calendar"
	"nse-pulse/config"
	"nse-pulse/database"
	calendarrepo "nse-pulse/database/calendar"
	intradayrepo "nse-pulse/database/intraday"
	newsrepo "nse-pulse/database/news"
	"nse-pulse/database/snapshots"
	stockrepo "nse-pulse/database/stocks"
	"nse-pulse/database/webhooks"
	"nse-pulse/intraday"
	"nse-pulse/llm"
	"nse-pulse/market"
	"nse-pulse/news"
	"nse-pulse/notifications"
	"nse-pulse/realtime"
	"nse-pulse/reference"
	"nse-pulse/stocks"
)

const shutdownTimeout = 10 * time.Second

// App represents the main application
type App struct {
	config    *config.Config
	db        *database.Database
	redis     *cache.RedisClient
	broker    *realtime.Broker
	scheduler *cron.Cron
	server    *http.Server
}

// New creates a new application instance
func New(cfg *config.Config) *App {
	return &App{config: cfg}
}

// Start connects the backing stores, wires the services and serves HTTP
// until SIGINT or SIGTERM.
func (a *App) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loc := a.config.Location()

	// 1. Database
	log.Info().Str("host", a.config.Database.Host).Msg("🗄️  Connecting to database...")
	db, err := database.Connect(database.ConnectOptions{
		Host:     a.config.Database.Host,
		Port:     a.config.Database.Port,
		Name:     a.config.Database.Name,
		User:     a.config.Database.User,
		Password: a.config.Database.Password,
		SSLMode:  a.config.Database.SSLMode,
		Debug:    !a.config.IsProduction(),
	})
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	a.db = db

	if err := a.db.InitSchema(); err != nil {
		return fmt.Errorf("schema initialization failed: %w", err)
	}
	log.Info().Msg("✅ Database schema ready")

	// 2. Redis (optional)
	log.Info().Msg("🧠 Connecting to Redis...")
	a.redis = cache.NewRedisClient(a.config.Redis.Host, a.config.Redis.Port, a.config.Redis.Password)
	if !a.redis.Available() {
		log.Warn().Msg("⚠️  Redis connection failed. Using in-process cache")
	}
	store := cache.Select(a.redis)

	// 3. Realtime broker
	a.broker = realtime.NewBroker()
	a.broker.AttachRedis(ctx, a.redis)
	go a.broker.Run(ctx)

	// 4. Sector/industry reference data
	refs := reference.NewStore(a.config.Reference.SectorFile, a.config.Reference.IndustryFile)
	if summary, err := refs.Reload(); err != nil {
		log.Warn().Err(err).Msg("⚠️  Reference data not loaded, intraday rollups will be empty")
	} else {
		log.Info().Int("sectors", summary.Sectors).Int("industries", summary.Industries).Msg("✅ Reference data loaded")
	}

	// 5. LLM provider
	var ai *llm.Client
	if a.config.LLM.Enabled {
		ai = llm.NewClient(llm.Options{
			Endpoint:     a.config.LLM.Endpoint,
			APIKey:       a.config.LLM.APIKey,
			Model:        a.config.LLM.Model,
			MaxRetries:   a.config.LLM.MaxRetries,
			RetryBackoff: a.config.LLM.RetryBackoff,
			Timeout:      a.config.LLM.Timeout,
		})
		log.Info().Str("model", a.config.LLM.Model).Msg("✅ LLM news analysis ENABLED")
	} else {
		log.Info().Msg("ℹ️  LLM news analysis DISABLED")
	}

	// 6. Services
	gdb := a.db.DB()
	snapRepo := snapshots.NewRepository(gdb)
	stockRepo := stockrepo.NewRepository(gdb)

	preopen := market.NewPreopenService(snapRepo, stockRepo, a.broker, loc)
	delivery := market.NewDeliveryService(snapRepo, a.broker, loc)
	intradaySvc := intraday.NewService(intraday.Deps{
		Repo:      intradayrepo.NewRepository(gdb),
		Preopen:   preopen,
		Master:    stockRepo,
		Reference: refs,
		Cache:     store,
		Publisher: a.broker,
		Location:  loc,
	})
	webhookManager := notifications.NewWebhookManager(webhooks.NewRepository(gdb), store, a.broker, a.config.WebhookBaseURL(), loc)
	calendarSvc := calendar.NewService(calendarrepo.NewRepository(gdb), loc)

	// keep the interface nil when the provider is off
	var analyzer news.Analyzer
	if ai != nil {
		analyzer = ai
	}
	newsSvc := news.NewService(newsrepo.NewRepository(gdb), analyzer, cache.NewLLMCache(store), preopen, stockRepo, loc)
	stockSvc := stocks.NewService(stockRepo)

	// 7. Scheduled news cleanup
	a.scheduler = cron.New(cron.WithLocation(loc))
	retention := a.config.News.RetentionDays
	if _, err := a.scheduler.AddFunc(a.config.News.CleanupSchedule, func() {
		jobCtx, jobCancel := context.WithTimeout(ctx, time.Minute)
		defer jobCancel()
		deleted, err := newsSvc.Cleanup(jobCtx, retention)
		if err != nil {
			log.Error().Err(err).Msg("❌ Scheduled news cleanup failed")
			return
		}
		log.Info().Int64("deleted", deleted).Int("days_to_keep", retention).Msg("🧹 Scheduled news cleanup done")
	}); err != nil {
		return fmt.Errorf("invalid NEWS_CLEANUP_SCHEDULE %q: %w", a.config.News.CleanupSchedule, err)
	}
	a.scheduler.Start()

	// 8. HTTP server
	apiServer := api.NewServer(api.Services{
		Preopen:  preopen,
		Delivery: delivery,
		Intraday: intradaySvc,
		Webhooks: webhookManager,
		Calendar: calendarSvc,
		News:     newsSvc,
		Stocks:   stockSvc,
	}, a.broker, api.Options{
		Environment:    a.config.Environment,
		AllowedOrigins: a.config.AllowedOrigins,
		RateLimitRPS:   a.config.RateLimit.RPS,
		RateLimitBurst: a.config.RateLimit.Burst,
	})

	a.server = &http.Server{
		Addr:              ":" + strconv.Itoa(a.config.Port),
		Handler:           apiServer.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Int("port", a.config.Port).Str("env", a.config.Environment).Msg("🚀 API server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	return a.gracefulShutdown(cancel, serverErr)
}

// gracefulShutdown waits for a signal or a server failure, then stops
// everything within shutdownTimeout
func (a *App) gracefulShutdown(cancel context.CancelFunc, serverErr <-chan error) error {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	var runErr error
	select {
	case <-interrupt:
		log.Info().Msg("🛑 Shutdown signal received, initiating graceful shutdown...")
	case err, ok := <-serverErr:
		if ok && err != nil {
			runErr = fmt.Errorf("API server failed: %w", err)
			log.Error().Err(err).Msg("❌ API server stopped unexpectedly")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := a.stopServer(shutdownCtx, cancel); err != nil {
		log.Warn().Err(err).Msg("⚠️  HTTP server shutdown incomplete")
	} else {
		log.Info().Msg("✅ HTTP server stopped")
	}

	if a.scheduler != nil {
		select {
		case <-a.scheduler.Stop().Done():
		case <-shutdownCtx.Done():
			log.Warn().Msg("⚠️  Timed out waiting for scheduled jobs")
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		} else {
			log.Info().Msg("✅ Database connection closed")
		}
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing redis")
		} else {
			log.Info().Msg("✅ Redis connection closed")
		}
	}

	log.Info().Msg("👋 Shutdown complete")
	return runErr
}

// stopServer cancels the broker first so SSE and websocket streams end,
// then drains the remaining requests.
func (a *App) stopServer(ctx context.Context, cancel context.CancelFunc) error {
	cancel()
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}
