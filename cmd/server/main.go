// Command server wires high-level dependencies, exposes the HTTP router, and
// keeps the server lifecycle small. Business logic lives in the internal
// services packages.
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"consentdesk/internal/agreement"
	"consentdesk/internal/consent"
	"consentdesk/internal/identity"
	"consentdesk/internal/jwttoken"
	"consentdesk/internal/platform/config"
	"consentdesk/internal/platform/httpserver"
	"consentdesk/internal/platform/logger"
	"consentdesk/internal/platform/metrics"
	platformRedis "consentdesk/internal/platform/redis"
	"consentdesk/internal/session"
	httptransport "consentdesk/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	checkers := make(map[string]httptransport.HealthChecker)

	// Stores default to in-memory; Postgres and Redis take over when
	// configured.
	var agreementStore agreement.Store = agreement.NewInMemoryStore()
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("failed to open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		agreementStore = agreement.NewPostgresStore(db)
		checkers["postgres"] = httptransport.HealthFunc(db.PingContext)
	}

	var consentStore consent.Store = consent.NewInMemoryStore()
	redisClient, err := platformRedis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		consentStore = consent.NewRedisStore(redisClient.Client)
		checkers["redis"] = httptransport.HealthFunc(redisClient.Health)
	}

	provider := identity.NewMemoryProvider(cfg.ProviderLatency)
	if cfg.SeedDemoUser {
		if err := provider.Register("demo@example.com", "demo-password"); err != nil {
			log.Error("failed to seed demo account", "error", err)
			os.Exit(1)
		}
		log.Info("seeded demo account", "email", "demo@example.com")
	}

	sessions := session.NewController(provider, log, session.WithMetrics(m))
	engine := consent.NewEngine(consentStore, log, consent.WithMetrics(m))
	agreements := agreement.NewService(agreementStore, agreement.WithMetrics(m))
	tokens := jwttoken.NewJWTService(cfg.JWTSigningKey, "consentdesk", "consentdesk-dashboard")

	router := httptransport.NewRouter(log, m, checkers,
		httptransport.NewSessionHandler(sessions, tokens, log),
		httptransport.NewAgreementHandler(agreements, tokens, log),
		httptransport.NewConsentHandler(engine, agreements, sessions, tokens, log),
	)
	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Resolve any remembered session in the background so startup never
	// blocks on the identity provider. A probe failure is recorded on the
	// controller, not fatal.
	g.Go(func() error {
		if err := sessions.BootstrapProbe(ctx); err != nil {
			log.Warn("bootstrap probe did not authenticate", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info("starting consentdesk", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		return srv.Shutdown()
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
