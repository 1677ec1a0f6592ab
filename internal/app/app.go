package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/medcart/internal/domain/checkout"
	"github.com/xenking/medcart/internal/domain/coupon"
	"github.com/xenking/medcart/internal/domain/invoice"
	"github.com/xenking/medcart/internal/domain/notification"
	"github.com/xenking/medcart/internal/domain/order"
	domainpayment "github.com/xenking/medcart/internal/domain/payment"
	"github.com/xenking/medcart/internal/handler"
	invoiceclient "github.com/xenking/medcart/internal/invoice"
	"github.com/xenking/medcart/internal/notify"
	"github.com/xenking/medcart/internal/payment"
	"github.com/xenking/medcart/internal/repository"
	"github.com/xenking/medcart/pkg/health"
	"github.com/xenking/medcart/pkg/httpmiddleware"
)

const serviceName = "medcart-api"

// Run creates all dependencies, starts the HTTP server and the background
// workers, and handles graceful shutdown. It is the single wiring point for
// the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))
	ctx = zctx.Base(ctx, lg)

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Repositories.
	medicineRepo := repository.NewMedicineRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)
	cartRepo := repository.NewCartRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	apikeyRepo := repository.NewAPIKeyRepository(pool)
	outboxRepo := repository.NewOutboxRepository(pool)

	// Outbound HTTP for collaborators carries trace context.
	collaborators := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
		),
	}

	// Coupons.
	var (
		coupons   coupon.Evaluator
		prefilter *coupon.Prefilter
	)
	switch cfg.Coupons.Source {
	case "static":
		coupons = coupon.NewStaticEvaluator()
	default:
		prefilter = coupon.NewPrefilter(cfg.Coupons.BloomCapacity, cfg.Coupons.BloomFPR)
		coupons = coupon.NewRepoEvaluator(couponRepo, prefilter)
	}

	// Payments.
	var (
		payments domainpayment.SessionProvider
		stripe   *payment.StripeCheckout
	)
	if cfg.Payment.SecretKey != "" {
		stripe = payment.NewStripeCheckout(payment.Config{
			SecretKey:  cfg.Payment.SecretKey,
			Currency:   cfg.Payment.Currency,
			SuccessURL: cfg.Payment.SuccessURL,
			CancelURL:  cfg.Payment.CancelURL,
			Breaker: payment.BreakerConfig{
				Timeout:             cfg.Payment.BreakerOpen,
				ConsecutiveFailures: cfg.Payment.BreakerFails,
			},
		}, lg.Named("payment"))
		payments = stripe
	} else {
		lg.Warn("Stripe secret key not set, online payments disabled")
	}

	// Notifications.
	var dispatcher notification.Dispatcher
	switch cfg.Notify.Transport {
	case "http":
		dispatcher = notify.NewHTTPDispatcher(cfg.Notify.URL, cfg.Notify.Token, collaborators)
	case "nats":
		nc, err := notify.ConnectNATS(cfg.Notify.NATSURL, serviceName)
		if err != nil {
			return err
		}
		defer nc.Close()
		dispatcher = notify.NewNATSDispatcher(nc, cfg.Notify.Subject)
	}

	// Invoices.
	var invoices invoice.Renderer
	if cfg.Invoice.URL != "" {
		client := *collaborators
		client.Timeout = cfg.Invoice.Timeout
		invoices = invoiceclient.NewClient(cfg.Invoice.URL, cfg.Invoice.Token, &client)
	}

	// Domain services.
	policy, err := cfg.Delivery.Policy()
	if err != nil {
		return errors.Wrap(err, "delivery policy")
	}
	meter := m.MeterProvider().Meter(serviceName)
	checkoutService, err := checkout.NewService(checkout.Deps{
		Coupons:  coupons,
		Policy:   policy,
		Orders:   orderRepo,
		Carts:    cartRepo,
		Payments: payments,
		Notifier: outboxRepo,
		Tracer:   m.TracerProvider().Tracer(serviceName),
		Meter:    meter,
	}, checkout.Config{
		PaymentTimeout: cfg.Payment.Timeout,
		Compensate:     cfg.Payment.Compensate,
	})
	if err != nil {
		return errors.Wrap(err, "create checkout service")
	}
	orderService, err := order.NewService(orderRepo, outboxRepo, meter)
	if err != nil {
		return errors.Wrap(err, "create order service")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	if stripe != nil {
		healthSvc.AddReadinessCheck("payments", time.Second, health.AvailabilityCheck("payments", stripe.Available))
	}
	if dispatcher != nil {
		healthSvc.AddReadinessCheck("outbox", 5*time.Second, health.BacklogCheck(outboxRepo.Pending, cfg.Notify.MaxBacklog))
	}
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// HTTP handlers.
	h := handler.New(handler.Config{CurrencySymbol: cfg.CurrencySymbol}, handler.Deps{
		Catalog:  medicineRepo,
		Carts:    cartRepo,
		Checkout: checkoutService,
		Orders:   orderService,
		Invoices: invoices,
		Auth:     handler.NewAuthenticator(apikeyRepo, []byte(cfg.APIKeyPepper)),
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.Payment.Timeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", handler.IdempotencyKeyHeader, httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:     cfg.RateLimit.Max,
				Window:  cfg.RateLimit.Window,
				KeyFunc: httpmiddleware.TokenOrIPKey,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Instrument(serviceName, routeFinder, m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	g, ctx := errgroup.WithContext(ctx)
	if prefilter != nil {
		g.Go(func() error {
			return prefilter.Run(ctx, couponRepo, cfg.Coupons.RefreshInterval)
		})
		g.Go(func() error {
			return prefilter.Watch(ctx, couponRepo, couponRepo, cfg.Coupons.ListenRetry)
		})
	}
	if dispatcher != nil {
		worker := notify.NewWorker(outboxRepo, dispatcher, notify.WorkerConfig{
			Interval:    cfg.Notify.Interval,
			BatchSize:   cfg.Notify.BatchSize,
			MaxAttempts: cfg.Notify.MaxAttempts,
		}, m.TracerProvider().Tracer(serviceName))
		g.Go(func() error {
			return worker.Run(ctx)
		})
	} else {
		lg.Warn("Notification transport disabled, outbox messages stay pending")
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	g.Go(func() error {
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
		return nil
	})

	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	return g.Wait()
}
