package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/metaphizix/MetaphizixEA-sub001/internal/handler/api"
	"github.com/metaphizix/MetaphizixEA-sub001/internal/service/quotes"
	"github.com/metaphizix/MetaphizixEA-sub001/internal/usecase"
	"github.com/metaphizix/MetaphizixEA-sub001/pkg/config"
	applogger "github.com/metaphizix/MetaphizixEA-sub001/pkg/logger"
)

// App encapsulates the application lifecycle: the quote stream, the scan
// scheduler and the HTTP server.
type App struct {
	cfg     *config.Config
	log     *applogger.Logger
	scan    *usecase.ScanUseCase
	stream  *quotes.Stream
	handler *api.Handler
	echo    *echo.Echo
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	scan *usecase.ScanUseCase,
	stream *quotes.Stream,
	handler *api.Handler,
) *App {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())

	handler.RegisterRoutes(e)
	if cfg.Metrics.Enabled {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		e.GET(path, echo.WrapHandler(promhttp.Handler()))
	}

	return &App{cfg: cfg, log: log, scan: scan, stream: stream, handler: handler, echo: e}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.stream != nil && a.cfg.Quotes.WebSocketURL != "" {
		go a.stream.Run(ctx)
	}

	go a.scanLoop(ctx)

	addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
	go func() {
		a.log.Info("http server listening", applogger.String("addr", addr))
		if err := a.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", applogger.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	a.log.Info("shutting down")
	cancel()

	shutdownTimeout := a.cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shCtx, shCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shCancel()
	if err := a.echo.Shutdown(shCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// scanLoop drives the per-symbol analysis pass on a fixed interval. The
// detector applies its own per-symbol rate limit, so a short ticker here
// only affects latency, never scan frequency.
func (a *App) scanLoop(ctx context.Context) {
	interval := a.cfg.Detection.ScanInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.runOnce(ctx)
		}
	}
}

func (a *App) runOnce(ctx context.Context) {
	start := time.Now()
	if err := a.scan.RunAll(ctx); err != nil && ctx.Err() == nil {
		a.log.Warn("scan pass incomplete", applogger.Error(err))
	}
	a.log.Debug("scan pass done", applogger.Duration("duration_ms", time.Since(start)))
}
