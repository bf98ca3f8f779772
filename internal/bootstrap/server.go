package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/Domenick1991/airbot/api"
	"github.com/Domenick1991/airbot/config"
	chatapi "github.com/Domenick1991/airbot/internal/api/chat_service_api"
)

const shutdownTimeout = 5 * time.Second

// Handlers is everything the HTTP and gRPC surfaces serve. Analytics,
// Caches, Health and Metrics are optional.
type Handlers struct {
	Chat      api.ChatService
	Bookings  api.BookingLister
	Analytics api.AnalyticsSource
	Caches    map[string]api.StatsSource
	Health    map[string]api.Pinger
	Metrics   http.Handler
}

type Servers struct {
	grpcServer *grpc.Server
	httpServer *http.Server
	logger     *slog.Logger
}

// Run starts the gRPC and HTTP servers and blocks until ctx is canceled or a
// server fails.
func Run(ctx context.Context, cfg *config.Config, h Handlers, logger *slog.Logger) error {
	s := newServers(cfg, h, logger)

	lis, err := net.Listen("tcp", cfg.GRPC.Address)
	if err != nil {
		return fmt.Errorf("listen gRPC %s: %w", cfg.GRPC.Address, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("grpc server listening", "address", cfg.GRPC.Address)
		if err := s.grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("serve gRPC: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("http server listening", "address", cfg.HTTP.Address)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})

	return g.Wait()
}

func (s *Servers) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var result *multierror.Error
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, fmt.Errorf("shutdown http server: %w", err))
	}

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		s.grpcServer.Stop()
		result = multierror.Append(result, errors.New("grpc graceful stop timed out"))
	}

	s.logger.Info("servers stopped")
	return result.ErrorOrNil()
}

func newServers(cfg *config.Config, h Handlers, logger *slog.Logger) *Servers {
	grpcSrv := grpc.NewServer(grpc.ChainUnaryInterceptor(unaryLogger(logger)))
	chatapi.Register(grpcSrv, chatapi.NewServer(h.Chat))

	return &Servers{
		grpcServer: grpcSrv,
		httpServer: &http.Server{
			Addr:              cfg.HTTP.Address,
			Handler:           NewRouter(h, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// NewRouter mounts the chat API under /api and metrics under /metrics.
func NewRouter(h Handlers, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	group := router.Group("/api")
	api.NewChatHandler(h.Chat).Register(group)
	api.NewBookingHandler(h.Bookings).Register(group.Group("/bookings"))
	api.NewAnalyticsHandler(h.Analytics, h.Caches).Register(group)
	api.NewHealthHandler(h.Health).Register(group)

	if h.Metrics != nil {
		router.GET("/metrics", gin.WrapH(h.Metrics))
	}
	return router
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		logger.LogAttrs(c.Request.Context(), slog.LevelDebug, "http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("took", time.Since(started)),
		)
	}
}

func unaryLogger(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		started := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			logger.WarnContext(ctx, "grpc call failed", "method", info.FullMethod, "error", err)
			return resp, err
		}
		logger.DebugContext(ctx, "grpc call", "method", info.FullMethod, "took", time.Since(started))
		return resp, nil
	}
}
