// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal service packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"credara/internal/adminops"
	adminmetrics "credara/internal/adminops/metrics"
	"credara/internal/audit/announce"
	auditstore "credara/internal/audit/store"
	"credara/internal/guard"
	"credara/internal/identity/local"
	"credara/internal/jwttoken"
	"credara/internal/onboarding"
	"credara/internal/platform/config"
	"credara/internal/platform/httpserver"
	"credara/internal/platform/logger"
	platformredis "credara/internal/platform/redis"
	profilestore "credara/internal/profile/store"
	"credara/internal/seed"
	httptransport "credara/internal/transport/http"
	"credara/internal/unlock"
	unlockmetrics "credara/internal/unlock/metrics"
	unlockstore "credara/internal/unlock/store"
	"credara/pkg/platform/tx"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.FromEnv()
	log := logger.New(cfg.Logging)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)

	// Storage: Postgres when configured, in-memory otherwise. The in-memory
	// stack is for development and tests only.
	var (
		profiles adminProfileStore
		ledger   unlock.LedgerStore
		auditLog adminops.AuditStore
		accounts local.AccountStore
		runner   tx.Runner
		health   []httptransport.HealthChecker
	)
	if cfg.DB.URL != "" {
		db, err := sql.Open("postgres", cfg.DB.URL)
		if err != nil {
			return err
		}
		defer db.Close()
		db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
		if err := db.Ping(); err != nil {
			return err
		}
		profiles = profilestore.NewPostgres(db)
		ledger = unlockstore.NewPostgres(db)
		auditLog = auditstore.NewPostgres(db)
		accounts = local.NewPostgresAccounts(db)
		runner = tx.NewSQLRunner(db)
		log.Info("using postgres storage")
	} else {
		profiles = profilestore.NewInMemory()
		ledger = unlockstore.NewInMemory()
		auditLog = auditstore.NewInMemory()
		accounts = local.NewInMemoryAccounts()
		runner = tx.NewMemoryRunner()
		log.Warn("DATABASE_URL not set, using in-memory storage")
	}

	// Sessions: Redis when configured, in-memory otherwise.
	var sessions local.SessionStore = local.NewInMemorySessions()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		sessions = local.NewRedisSessions(redisClient.Client)
		health = append(health, redisClient)
		log.Info("using redis sessions")
	}

	provider := local.New(accounts, sessions, jwtService,
		local.WithSessionTTL(cfg.Auth.SessionTTL),
		local.WithLogger(log),
	)
	guards := guard.New(provider, profiles)

	onboardingSvc := onboarding.NewService(profiles,
		onboarding.WithPhoneRegion(cfg.Auth.PhoneRegion),
		onboarding.WithLogger(log),
	)

	adminOpts := []adminops.Option{
		adminops.WithLogger(log),
		adminops.WithMetrics(adminmetrics.New()),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		announcer, err := announce.New(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, log)
		if err != nil {
			return err
		}
		defer announcer.Close(context.Background())
		adminOpts = append(adminOpts, adminops.WithAuditAnnouncer(announcer))
		log.Info("audit announce stream enabled", "topic", cfg.Kafka.AuditTopic)
	}
	adminSvc := adminops.New(profiles, auditLog, runner, adminOpts...)

	unlockSvc := unlock.NewService(profiles, ledger, runner,
		unlock.WithLogger(log),
		unlock.WithMetrics(unlockmetrics.New()),
	)

	handler := httptransport.NewHandler(provider, guards, onboardingSvc, adminSvc, unlockSvc, log, health...)
	if cfg.SeedDemoData {
		if err := seed.Run(context.Background(), provider, profiles, log); err != nil {
			return err
		}
		handler.EnableSeedEndpoint(func(ctx context.Context) error {
			return seed.Run(ctx, provider, profiles, log)
		})
	}
	srv := httpserver.New(cfg.Server.Addr, httptransport.NewRouter(handler))

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting credara server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

// adminProfileStore is the union of what the services need from the profile
// store; both the memory and postgres implementations satisfy it.
type adminProfileStore interface {
	adminops.ProfileStore
	unlock.ProfileStore
	onboarding.ProfileStore
	guard.ProfileFinder
	seed.ProfileStore
}
