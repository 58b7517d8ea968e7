package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	shutdownTimeout = time.Second * 5
)

func Logger(level string) *zap.Logger {

	cfg := zap.NewProductionConfig()

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		panic(err)
	}
	cfg.Level.SetLevel(lvl)

	lg, err := cfg.Build()
	if err != nil {
		panic(err)
	}

	return lg
}

// Service is a long running server. Run blocks until Shutdown is called.
type Service interface {
	Run()
	Shutdown(ctx context.Context) error
}

// Run starts services and shuts all of them down once ctx is done.
func Run(ctx context.Context, logger *zap.Logger, services ...Service) {
	var wg conc.WaitGroup
	for _, s := range services {
		wg.Go(s.Run)
	}
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, s := range services {
		if err := s.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown failed", zap.Error(err))
		}
	}
	wg.Wait()
}

type MetricsServer struct {
	logger     *zap.Logger
	httpServer *http.Server
}

// NewMetricsServer exposes prometheus metrics on /metrics.
func NewMetricsServer(logger *zap.Logger, port int) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &MetricsServer{
		logger: logger,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%v", port),
			Handler: mux,
		},
	}
}

func (s *MetricsServer) Run() {
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return
	}
	s.logger.Error("metrics server failed", zap.Error(err))
}

func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
