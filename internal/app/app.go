package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/posledger/internal/domain/checkout"
	"github.com/xenking/posledger/internal/domain/product"
	"github.com/xenking/posledger/internal/domain/refund"
	"github.com/xenking/posledger/internal/domain/stock"
	"github.com/xenking/posledger/internal/handler"
	"github.com/xenking/posledger/internal/telemetry"
	"github.com/xenking/posledger/pkg/health"
	"github.com/xenking/posledger/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage.Driver),
	)

	store, err := openBackend(ctx, lg, cfg.Storage)
	if err != nil {
		return errors.Wrap(err, "open storage")
	}
	defer store.close()

	sessions, closeSessions, err := openSessions(ctx, lg, cfg)
	if err != nil {
		return errors.Wrap(err, "open sessions")
	}
	defer closeSessions()

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("storage", 5*time.Second, store.ping)
	healthSvc.AddReadinessCheck("sessions", 2*time.Second, health.Ping(sessions))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	metrics, err := telemetry.NewRecorder(m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create metrics")
	}
	traced := telemetry.NewTraceLedger(store.ledger, m.TracerProvider())

	// Domain services.
	products := product.NewService(store.products, store.ids, cfg.idWidth())
	checkouts := checkout.NewService(traced, cfg.checkoutConfig())
	refunds := refund.NewService(traced, store.sales)
	stockSvc := stock.NewService(traced)

	h := handler.NewHandler(
		handler.Config{RecentLimit: cfg.recentLimit()},
		products,
		stockSvc,
		store.sales,
		sessions,
		checkouts,
		refunds,
		metrics,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("pos-api", m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
			httpmiddleware.Labeler(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
