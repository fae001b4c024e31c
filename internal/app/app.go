package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/fulfillment/internal/domain/offer"
	"github.com/xenking/fulfillment/internal/handler"
	"github.com/xenking/fulfillment/internal/repository"
	cartsvc "github.com/xenking/fulfillment/internal/service/cart"
	ordersvc "github.com/xenking/fulfillment/internal/service/order"
	paymentsvc "github.com/xenking/fulfillment/internal/service/payment"
	"github.com/xenking/fulfillment/pkg/health"
	"github.com/xenking/fulfillment/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	thresholds := health.WithThresholds(health.Thresholds{
		Failure: cfg.Health.FailureThreshold,
		Success: 1,
	})
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool), thresholds)
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000), thresholds)
	healthSvc.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(time.Second), thresholds)
	healthSvc.Start(ctx, cfg.Health.Interval)

	// Repositories.
	users := repository.NewUserRepository(pool)
	products := repository.NewProductRepository(pool)
	offers := offer.NewCachedRepository(repository.NewOfferRepository(pool), cfg.OfferCache.Size, cfg.OfferCache.TTL)
	carts := repository.NewCartRepository(pool)
	items := repository.NewCartItemRepository(pool)
	orders := repository.NewOrderRepository(pool)
	apikeys := repository.NewAPIKeyRepository(pool)

	paymentOpts := cfg.Payment.repositoryOptions()
	paymentOpts.MeterProvider = m.MeterProvider()
	payments, err := repository.NewPaymentRepository(pool, paymentOpts)
	if err != nil {
		return errors.Wrap(err, "create payment repository")
	}

	// Services.
	tx := repository.NewTransactor(pool)
	cartService := cartsvc.NewService(carts, items, products, users, tx)
	orderService := ordersvc.NewService(users, carts, offers, orders, payments, tx)
	paymentService := paymentsvc.NewService(users, orders, payments, cfg.Payment.SettleDelay)

	h := handler.NewHandler(products, cartService, orderService, paymentService)
	securityHandler := handler.NewSecurityHandler(apikeys, []byte(cfg.APIKeyPepper))
	router := handler.NewRouter(h, securityHandler, healthSvc, httpmiddleware.LogRequests())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Payment execution includes the settle delay.
		WriteTimeout:   10*time.Second + cfg.Payment.SettleDelay,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Instrument("fulfillment-api", m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(),
		),
	}
	healthSvc.SetReady(true)

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
