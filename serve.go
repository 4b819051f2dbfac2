package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	appcheckout "github.com/Zhima-Mochi/minishop-checkout/internal/application/checkout"
	"github.com/Zhima-Mochi/minishop-checkout/internal/config"
	infraobs "github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/paypal"
	"github.com/Zhima-Mochi/minishop-checkout/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/minishop-checkout/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/minishop-checkout/internal/presentation/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func serveCommand(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if addr := c.String("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	baseLogger, err := logging.NewLogger(cfg.App, cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	systemLogger := logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := oteltrace.InitProvider(ctx, cfg.App.Name, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			systemLogger.Error("tracer_shutdown_error", zap.Error(err))
		}
	}()

	logger := zaplogger.New(baseLogger)
	tel := infraobs.NewFromRegistry(
		oteltrace.New(cfg.App.Name),
		logger,
		prometrics.New("", ""),
	)

	// In-memory event bus; the audit worker is its only consumer.
	bus := outbox.NewBus(logger,
		outbox.WithQueueSize(cfg.Events.QueueSize),
		outbox.WithConcurrency(cfg.Events.Concurrency),
		outbox.WithHandlerTimeout(cfg.Events.HandlerTimeout),
	)
	appcheckout.NewAuditWorker(workerpresentation.NewSubscriber(bus, logger), tel).Start()
	bus.Start(ctx)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		bus.Stop(stopCtx)
	}()

	gateway := paypal.New(cfg.PayPal, tel)

	handler := httppresentation.NewHandler(
		appcheckout.NewCreateOrderUseCase(gateway, bus, cfg.PayPal.Currency, tel),
		appcheckout.NewCaptureOrderUseCase(gateway, bus, tel),
		httppresentation.PageConfig{
			ClientID:      cfg.PayPal.ClientID,
			Currency:      cfg.PayPal.Currency,
			DefaultAmount: "10.00",
		},
		httppresentation.NewLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
		logger,
		tel,
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		systemLogger.Info("http_server_start",
			zap.String("addr", server.Addr),
			zap.String("paypal_url", cfg.PayPal.URL),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			systemLogger.Error("http_server_error", zap.Error(err))
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error", zap.Error(err))
		return err
	}
	systemLogger.Info("http_server_stopped")
	return nil
}
