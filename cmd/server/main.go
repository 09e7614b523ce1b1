// Command server runs the archival lifecycle service: the HTTP transport,
// the scheduled retention sweep, and, when Kafka is configured, the audit
// outbox publisher. Storage, lease and audit backends degrade gracefully:
// without Postgres everything runs in memory, without Redis the sweep lease
// is process-local.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/okatech-org/digitalium-archive/internal/archive/engine"
	"github.com/okatech-org/digitalium-archive/internal/archive/handler"
	"github.com/okatech-org/digitalium-archive/internal/archive/lease"
	"github.com/okatech-org/digitalium-archive/internal/archive/ledger"
	archivemetrics "github.com/okatech-org/digitalium-archive/internal/archive/metrics"
	"github.com/okatech-org/digitalium-archive/internal/archive/store/document"
	jwttoken "github.com/okatech-org/digitalium-archive/internal/jwt_token"
	"github.com/okatech-org/digitalium-archive/internal/platform/config"
	"github.com/okatech-org/digitalium-archive/internal/platform/httpserver"
	"github.com/okatech-org/digitalium-archive/internal/platform/logger"
	platformredis "github.com/okatech-org/digitalium-archive/internal/platform/redis"
	audit "github.com/okatech-org/digitalium-archive/pkg/platform/audit"
	auditMemory "github.com/okatech-org/digitalium-archive/pkg/platform/audit/store/memory"
	auditPostgres "github.com/okatech-org/digitalium-archive/pkg/platform/audit/store/postgres"
	auditWorker "github.com/okatech-org/digitalium-archive/pkg/platform/audit/worker"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := archivemetrics.New()

	// Storage: Postgres when configured, in-memory otherwise.
	var (
		documents  document.Store
		auditStore audit.Store
		db         *sql.DB
	)
	if cfg.PostgresDSN != "" {
		var err error
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("failed to open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Error("postgres ping failed", "error", err)
			os.Exit(1)
		}
		if err := document.Migrate(ctx, db); err != nil {
			log.Error("document migration failed", "error", err)
			os.Exit(1)
		}
		if err := auditPostgres.Migrate(ctx, db); err != nil {
			log.Error("audit migration failed", "error", err)
			os.Exit(1)
		}
		documents = document.NewPostgres(db)
		auditStore = auditPostgres.New(db)
	} else {
		log.Warn("no postgres DSN configured, using in-memory stores")
		documents = document.NewInMemory()
		auditStore = auditMemory.NewInMemoryStore()
	}
	auditPublisher := audit.NewPublisher(auditStore)

	// Sweep lease: Redis when configured, process-local otherwise.
	var locker lease.Locker = lease.NewInMemory()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		locker = lease.NewRedis(redisClient.Client)
	}

	engineOpts := []engine.Option{
		engine.WithLogger(log),
		engine.WithAuditPublisher(auditPublisher),
		engine.WithMetrics(metrics),
		engine.WithLocker(locker),
		engine.WithSweepParallelism(cfg.SweepParallelism),
	}
	if db != nil {
		engineOpts = append(engineOpts, engine.WithStoreTx(newArchivePostgresTx(db)))
	}
	eng, err := engine.New(documents, engineOpts...)
	if err != nil {
		log.Error("failed to build engine", "error", err)
		os.Exit(1)
	}

	ledgerOpts := []ledger.Option{
		ledger.WithLogger(log),
		ledger.WithAuditPublisher(auditPublisher),
		ledger.WithMetrics(metrics),
	}
	if db != nil {
		ledgerOpts = append(ledgerOpts, ledger.WithStoreTx(newArchivePostgresTx(db)))
	}
	led, err := ledger.New(documents, ledgerOpts...)
	if err != nil {
		log.Error("failed to build ledger", "error", err)
		os.Exit(1)
	}

	jwtService := jwttoken.NewService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)

	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler.New(eng, led, auditPublisher, log, jwttoken.NewAdapter(jwtService)).Register(router)

	// Audit outbox publisher, only meaningful with both Postgres and Kafka.
	if db != nil && len(cfg.Kafka.Brokers) > 0 {
		client, err := kgo.NewClient(
			kgo.SeedBrokers(cfg.Kafka.Brokers...),
			kgo.AllowAutoTopicCreation(),
		)
		if err != nil {
			log.Error("failed to build kafka client", "error", err)
			os.Exit(1)
		}
		defer client.Close()

		outbox := auditPostgres.New(db)
		go func() {
			err := auditWorker.New(outbox, client, cfg.Kafka.Topic, cfg.Kafka.DrainInterval, log).Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit worker stopped", "error", err)
			}
		}()
	}

	// Scheduled retention sweep.
	if cfg.SweepInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.SweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case now := <-ticker.C:
					if _, err := eng.Sweep(ctx, now.UTC()); err != nil {
						log.Error("retention sweep failed", "error", err)
					}
				}
			}
		}()
	}

	srv := httpserver.New(cfg.Addr, router)
	go func() {
		log.Info("starting archive service", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
