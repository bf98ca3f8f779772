package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	kafkaGo "github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"github.com/Domenick1991/airbot/config"
	"github.com/Domenick1991/airbot/internal/bootstrap"
	"github.com/Domenick1991/airbot/internal/email"
	"github.com/Domenick1991/airbot/internal/kafka"
	"github.com/Domenick1991/airbot/internal/nlu"
	"github.com/Domenick1991/airbot/internal/recommend"
	"github.com/Domenick1991/airbot/internal/repository"
	"github.com/Domenick1991/airbot/internal/service/airline"
	"github.com/Domenick1991/airbot/internal/service/dialogue"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.LoadConfig(cfgPath)
	if errors.Is(err, fs.ErrNotExist) && os.Getenv("CONFIG_PATH") == "" {
		cfg, err = config.Defaults(), nil
	}
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("worker error", "error", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
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

	g, gctx := errgroup.WithContext(ctx)

	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.NotificationsTopic != "" {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
		defer consumer.Close()
		sender := email.NewSender(logger)

		g.Go(func() error {
			return consumer.Consume(gctx, func(ctx context.Context, msg kafkaGo.Message) error {
				event, err := kafka.DecodeBookingEvent(msg)
				if err != nil {
					logger.WarnContext(ctx, "skipping undecodable notification", "error", err)
					return nil
				}
				return sender.Send(ctx, event)
			})
		})
	} else {
		logger.Warn("no notifications topic configured, email delivery disabled")
	}

	if deps.Pool != nil {
		engine, err := newSweepEngine(ctx, deps, cfg, logger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			sweepIdle(gctx, engine, cfg, logger)
			return nil
		})
	} else {
		logger.Warn("no database configured, idle workflow sweep disabled")
	}

	return g.Wait()
}

// newSweepEngine builds an engine over the shared session store and state
// cache. It only runs ExpireIdle, so the classifier and advisor are the
// local defaults.
func newSweepEngine(ctx context.Context, deps *bootstrap.Deps, cfg *config.Config, logger *slog.Logger) (*dialogue.Engine, error) {
	bookingRepo, err := deps.BookingRepository(ctx, airline.SeedBookings())
	if err != nil {
		return nil, err
	}
	return dialogue.NewEngine(
		nlu.NewExtractor(nil),
		airline.NewService(bookingRepo, airline.WithLogger(logger)),
		deps.Cache,
		recommend.NewAdvisor(nil),
		dialogue.WithStore(repository.NewSessionRepository(deps.Pool)),
		dialogue.WithLogger(logger),
		dialogue.WithSettings(dialogue.Settings{WorkflowTTL: cfg.Dialogue.WorkflowTTL()}),
	), nil
}

func sweepIdle(ctx context.Context, engine *dialogue.Engine, cfg *config.Config, logger *slog.Logger) {
	ticker := time.NewTicker(time.Duration(cfg.Worker.IdleSweepMinutes) * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := engine.ExpireIdle(ctx, cfg.Dialogue.IdleTimeout()); err != nil {
				logger.ErrorContext(ctx, "expire idle workflows", "error", err)
			}
		}
	}
}
