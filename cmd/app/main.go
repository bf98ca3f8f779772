package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/airbot/api"
	"github.com/Domenick1991/airbot/config"
	"github.com/Domenick1991/airbot/internal/bootstrap"
	"github.com/Domenick1991/airbot/internal/cache"
	"github.com/Domenick1991/airbot/internal/metrics"
	"github.com/Domenick1991/airbot/internal/nlu"
	"github.com/Domenick1991/airbot/internal/recommend"
	"github.com/Domenick1991/airbot/internal/repository"
	"github.com/Domenick1991/airbot/internal/service/airline"
	"github.com/Domenick1991/airbot/internal/service/dialogue"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads CONFIG_PATH, falling back to built-in defaults when the
// default config.yaml is absent.
func loadConfig() (*config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath != "" {
		return config.LoadConfig(cfgPath)
	}
	cfg, err := config.LoadConfig("config.yaml")
	if errors.Is(err, fs.ErrNotExist) {
		return config.Defaults(), nil
	}
	return cfg, err
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	deps, err := bootstrap.Connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Warn("close dependencies", "error", err)
		}
	}()

	bookingRepo, err := deps.BookingRepository(ctx, airline.SeedBookings())
	if err != nil {
		return err
	}

	embedder, err := newEmbedder(cfg.NLU)
	if err != nil {
		return err
	}
	classifier := nlu.NewExtractor(embedder,
		nlu.WithMinConfidence(cfg.NLU.MinConfidence),
		nlu.WithLogger(logger),
	)

	var table *recommend.Table
	if cfg.PoliciesFile != "" {
		if table, err = recommend.LoadTable(cfg.PoliciesFile); err != nil {
			return err
		}
	}
	advisor := recommend.NewAdvisor(table)

	collector := metrics.NewCollector()
	seats := cache.NewTTL[[]string]()
	caches := map[string]api.StatsSource{"seats": seats}

	backendOpts := []airline.ServiceOption{airline.WithLogger(logger)}
	engineOpts := []dialogue.EngineOption{
		dialogue.WithLogger(logger),
		dialogue.WithMetrics(collector),
		dialogue.WithSeatsCache(seats),
		dialogue.WithSettings(dialogue.Settings{
			MinYear:        cfg.Dialogue.MinYear,
			MaxAdvanceDays: cfg.Dialogue.MaxAdvanceDays,
			WorkflowTTL:    cfg.Dialogue.WorkflowTTL(),
			BackendTimeout: cfg.Dialogue.BackendTimeout(),
			SeatsCacheTTL:  cfg.Dialogue.SeatsCacheTTL(),
		}),
	}
	if deps.Producer != nil {
		backendOpts = append(backendOpts, airline.WithProducer(deps.Producer, cfg.Kafka.NotificationsTopic))
		engineOpts = append(engineOpts, dialogue.WithPublisher(deps.Producer, cfg.Kafka.ConversationTopic))
	}

	var analytics api.AnalyticsSource
	if deps.Pool != nil {
		messages := repository.NewMessageRepository(deps.Pool)
		analytics = messages
		engineOpts = append(engineOpts,
			dialogue.WithStore(repository.NewSessionRepository(deps.Pool)),
			dialogue.WithMessageLog(messages),
		)
	}
	if deps.Memory != nil {
		caches["workflows"] = deps.Memory
		go deps.Memory.Run(ctx, cfg.Dialogue.CacheSweepInterval())
	}
	go seats.Run(ctx, cfg.Dialogue.CacheSweepInterval())
	go reportCacheSizes(ctx, collector, caches, cfg.Dialogue.CacheSweepInterval())

	backend := airline.NewService(bookingRepo, backendOpts...)
	// drain booking events before the producer closes
	defer backend.Wait()
	engine := dialogue.NewEngine(classifier, backend, deps.Cache, advisor, engineOpts...)

	return bootstrap.Run(ctx, cfg, bootstrap.Handlers{
		Chat:      engine,
		Bookings:  backend,
		Analytics: analytics,
		Caches:    caches,
		Health:    deps.Health,
		Metrics:   collector.Handler(),
	}, logger)
}

func newEmbedder(cfg config.NLUConfig) (nlu.Embedder, error) {
	switch cfg.Embedder {
	case "openai":
		e, err := nlu.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		if err != nil {
			return nil, fmt.Errorf("openai embedder: %w", err)
		}
		return e, nil
	case "local", "":
		return nlu.NewHashingEmbedder(0), nil
	default:
		return nil, fmt.Errorf("unknown embedder %q", cfg.Embedder)
	}
}

func reportCacheSizes(ctx context.Context, collector *metrics.Collector, caches map[string]api.StatsSource, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for name, c := range caches {
				s := c.Stats()
				collector.SetCacheEntries(name, s.TotalEntries, s.ActiveEntries)
			}
		}
	}
}
