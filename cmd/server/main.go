package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docverify/internal/health"
	ledgerhandler "docverify/internal/ledger/handler"
	"docverify/internal/platform/config"
	"docverify/internal/platform/httpserver"
	"docverify/internal/platform/logger"
	platformmetrics "docverify/internal/platform/metrics"
	ratelimitmetrics "docverify/internal/ratelimit/metrics"
	ratelimit "docverify/internal/ratelimit/middleware"
	ratelimitmodels "docverify/internal/ratelimit/models"
	registryhandler "docverify/internal/registry/handler"
	registrymetrics "docverify/internal/registry/metrics"
	"docverify/internal/registry/service"
	"docverify/internal/verification"
	verificationhandler "docverify/internal/verification/handler"
	"docverify/pkg/platform/middleware/admin"
	"docverify/pkg/platform/middleware/metadata"
	"docverify/pkg/platform/middleware/request"
	"docverify/pkg/platform/middleware/requesttime"
)

// main wires the configured backends, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal service packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	infra, err := buildInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close(log)

	svc := service.New(infra.doctors, infra.reports, infra.ledger,
		service.WithLogger(log),
		service.WithAuditPublisher(infra.audit),
		service.WithMetrics(registrymetrics.New()),
		service.WithLocker(infra.locker),
		service.WithDefaultApprover(cfg.Server.DefaultApprover),
	)

	if cfg.SeedDemoData {
		if err := svc.SeedDemoData(ctx); err != nil {
			return err
		}
		log.Info("demo data seeded")
	}

	tokens := verification.NewIssuer(cfg.Verification.SigningKey, cfg.Verification.BaseURL, cfg.Verification.TokenTTL)
	limiter := ratelimit.New(infra.buckets, log,
		ratelimit.WithDisabled(!cfg.RateLimit.Enabled),
		ratelimit.WithPolicy(ratelimitmodels.ClassSubmission, cfg.RateLimit.Submissions, cfg.RateLimit.Window),
		ratelimit.WithPolicy(ratelimitmodels.ClassLookup, cfg.RateLimit.Lookups, cfg.RateLimit.Window),
		ratelimit.WithMetrics(ratelimitmetrics.New()),
	)
	registryH := registryhandler.New(svc, log,
		registryhandler.WithAuditLog(infra.audit),
		registryhandler.WithRateLimits(
			limiter.RateLimit(ratelimitmodels.ClassSubmission),
			limiter.RateLimit(ratelimitmodels.ClassLookup),
		),
	)
	ledgerH := ledgerhandler.New(infra.ledger, log)
	verifyH := verificationhandler.New(svc, tokens, log)
	healthH := health.New(infra.healthChecks()...)

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(log))
	r.Use(request.Logger(log))
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata(cfg.Server.TrustedProxies...))
	r.Use(platformmetrics.New().Middleware)

	healthH.Register(r)
	r.Handle("/metrics", promhttp.Handler())
	registryH.Register(r)
	r.Group(func(r chi.Router) {
		r.Use(limiter.RateLimit(ratelimitmodels.ClassLookup))
		ledgerH.Register(r)
		verifyH.Register(r)
	})
	r.Route("/admin", func(r chi.Router) {
		r.Use(admin.RequireAdminToken(cfg.Server.AdminToken, log))
		registryH.RegisterAdmin(r)
		ledgerH.RegisterAdmin(r)
		verifyH.RegisterAdmin(r)
	})

	if cfg.Server.AdminToken == "" {
		log.Warn("ADMIN_TOKEN is empty; admin routes are open")
	}

	srv := httpserver.New(cfg.Server.Addr, r)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting docverify",
			"addr", cfg.Server.Addr,
			"store", cfg.Store.Backend,
			"ledger", cfg.Ledger.Backend,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
