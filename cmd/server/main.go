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
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	dirstore "taxcase/internal/directory/store"
	"taxcase/internal/identity"
	jwttoken "taxcase/internal/jwt_token"
	"taxcase/internal/notify"
	notifykafka "taxcase/internal/notify/kafka"
	"taxcase/internal/platform/config"
	"taxcase/internal/platform/httpserver"
	"taxcase/internal/platform/logger"
	platformmetrics "taxcase/internal/platform/metrics"
	"taxcase/internal/platform/postgres"
	platformredis "taxcase/internal/platform/redis"
	revisionhandler "taxcase/internal/revision/handler"
	revisionmetrics "taxcase/internal/revision/metrics"
	"taxcase/internal/revision/policy"
	revisionservice "taxcase/internal/revision/service"
	revisionstore "taxcase/internal/revision/store"
	id "taxcase/pkg/domain"
	"taxcase/pkg/platform/audit"
	auditpublisher "taxcase/pkg/platform/audit/publisher"
	auditpublishers "taxcase/pkg/platform/audit/publishers"
	auditcompliance "taxcase/pkg/platform/audit/publishers/compliance"
	auditsecurity "taxcase/pkg/platform/audit/publishers/security"
	auditmemory "taxcase/pkg/platform/audit/store/memory"
	auditpostgres "taxcase/pkg/platform/audit/store/postgres"
	auditworker "taxcase/pkg/platform/audit/worker"
	"taxcase/pkg/platform/circuit"
	"taxcase/pkg/platform/httputil"
	"taxcase/pkg/platform/middleware/admin"
	authmw "taxcase/pkg/platform/middleware/auth"
	request "taxcase/pkg/platform/middleware/request"
)

const devTokenTTL = 24 * time.Hour

// infra holds the optional backing services; nil fields fall back to
// in-process implementations.
type infra struct {
	db    *sql.DB
	redis *platformredis.Client
	kafka *kgo.Client
}

func (i *infra) close() {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.db != nil {
		_ = i.db.Close()
	}
}

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	if cfg.IsProduction() && cfg.UsesDevSigningKey() {
		return errors.New("JWT_SIGNING_KEY must be set in production")
	}

	deps, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.close()

	// Directory
	var directory interface {
		identity.Directory
		dirstore.Writer
	}
	if deps.db != nil {
		directory = dirstore.NewPostgres(deps.db)
	} else {
		directory = dirstore.NewInMemory()
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	if cfg.SeedDirectory {
		if err := seedDirectory(ctx, deps.db, directory, jwtService, log); err != nil {
			return err
		}
	}

	resolverOpts := []identity.Option{
		identity.WithLogger(log),
		identity.WithMetrics(identity.NewMetrics()),
	}
	if deps.redis != nil {
		resolverOpts = append(resolverOpts, identity.WithCache(identity.NewRedisCache(deps.redis, cfg.PrincipalCacheTTL)))
	}
	resolver := identity.NewResolver(directory, resolverOpts...)

	// Notifications
	sinks := notify.Fanout{notify.NewLogSink(log)}
	if deps.kafka != nil {
		sinks = append(sinks, notify.NewBreakerSink(
			notifykafka.NewPublisher(deps.kafka, cfg.Kafka.RevisionTopic),
			circuit.New("kafka-notifications", circuit.WithCooldown(30*time.Second)),
			log,
		))
	}

	// Audit
	var auditStore audit.Store
	var relay *auditworker.Worker
	if deps.db != nil {
		outbox := auditpostgres.New(deps.db)
		auditStore = outbox
		if deps.kafka != nil {
			relay = auditworker.NewWorker(outbox,
				notifykafka.NewTopicWriter(deps.kafka, cfg.Kafka.AuditTopic),
				auditworker.WithLogger(log),
				auditworker.WithPollInterval(cfg.OutboxPollInterval),
			)
		}
	} else {
		auditStore = auditmemory.NewInMemoryStore()
	}
	opsAudit := auditpublisher.NewPublisher(auditStore,
		auditpublisher.WithAsyncBuffer(1024),
		auditpublisher.WithLogger(log),
	)
	defer opsAudit.Close()
	securityAudit := auditsecurity.New(auditStore,
		auditsecurity.WithLogger(log),
		auditsecurity.WithMetrics(auditsecurity.NewMetrics(prometheus.DefaultRegisterer)),
	)
	defer securityAudit.Close()
	auditRouter := auditpublishers.NewRouter(opsAudit)
	auditRouter.Register(audit.CategorySecurity, securityAudit)
	auditRouter.Register(audit.CategoryCompliance, auditcompliance.New(auditStore,
		auditcompliance.WithLogger(log),
		auditcompliance.WithMetrics(auditcompliance.NewMetrics(prometheus.DefaultRegisterer)),
	))

	// Revisions
	var revisions revisionservice.Store
	if deps.db != nil {
		revisions = revisionstore.NewPostgres(deps.db)
	} else {
		revisions = revisionstore.NewInMemory()
	}
	revMetrics := revisionmetrics.New()
	gate := policy.New(
		policy.WithLogger(log),
		policy.WithMetrics(revMetrics),
		policy.WithAdminRoles(cfg.AdminRoles...),
	)
	service := revisionservice.New(revisions, gate,
		revisionservice.WithLogger(log),
		revisionservice.WithMetrics(revMetrics),
		revisionservice.WithNotifier(sinks),
		revisionservice.WithAuditPublisher(auditRouter),
	)

	httpMetrics := platformmetrics.New()
	router := newRouter(log, httpMetrics, deps, jwtService, resolver, revisionhandler.New(service, log), cfg.AdminAPIToken)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting taxcase", "addr", cfg.Addr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if relay != nil {
		g.Go(func() error {
			if err := relay.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

func connect(ctx context.Context, cfg config.Server, log *slog.Logger) (*infra, error) {
	deps := &infra{}
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.Config{})
		if err != nil {
			return nil, err
		}
		deps.db = db
		log.Info("postgres connected")
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	rc, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		deps.close()
		return nil, err
	}
	deps.redis = rc

	if len(cfg.Kafka.Brokers) > 0 {
		client, err := notifykafka.NewClient(cfg.Kafka.Brokers)
		if err != nil {
			deps.close()
			return nil, err
		}
		deps.kafka = client
		for _, topic := range []string{cfg.Kafka.RevisionTopic, cfg.Kafka.AuditTopic} {
			if err := notifykafka.EnsureTopic(ctx, client, topic, cfg.Kafka.Partitions, cfg.Kafka.Replication); err != nil {
				deps.close()
				return nil, err
			}
		}
		log.Info("kafka connected", "brokers", cfg.Kafka.Brokers)
	}
	return deps, nil
}

func seedDirectory(ctx context.Context, db *sql.DB, w dirstore.Writer, tokens *jwttoken.JWTService, log *slog.Logger) error {
	now := time.Now()
	var (
		seed *dirstore.Seed
		err  error
	)
	if db != nil {
		seed, err = newSeedPostgresTx(db).Seed(ctx, w, now)
	} else {
		seed, err = dirstore.SeedDevelopment(ctx, w, now)
	}
	if err != nil {
		return err
	}

	users := []struct {
		name   string
		userID id.UserID
	}{
		{"admin", seed.Admin},
		{"holding_staff", seed.HoldingStaff},
		{"branch_staff", seed.BranchStaff},
	}
	for _, u := range users {
		token, err := tokens.GenerateAccessToken(u.userID, devTokenTTL)
		if err != nil {
			return err
		}
		log.Info("development token", "user", u.name, "user_id", u.userID, "token", token)
	}
	return nil
}

func newRouter(
	log *slog.Logger,
	httpMetrics *platformmetrics.Metrics,
	deps *infra,
	tokens *jwttoken.JWTService,
	resolver *identity.Resolver,
	revisions *revisionhandler.Handler,
	adminToken string,
) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.RequestTime)
	r.Use(request.ClientMetadata)
	r.Use(request.Logger(log))
	r.Use(httpMetrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		status := map[string]string{"status": "ok"}
		code := http.StatusOK
		if deps.db != nil {
			if err := deps.db.PingContext(req.Context()); err != nil {
				status["postgres"] = "unavailable"
				code = http.StatusServiceUnavailable
			}
		}
		// Redis only backs the principal cache; an outage degrades but keeps serving.
		if deps.redis != nil {
			if err := deps.redis.Health(req.Context()); err != nil {
				status["redis"] = "unavailable"
				status["status"] = "degraded"
			}
		}
		if code != http.StatusOK {
			status["status"] = "degraded"
		}
		httputil.WriteJSON(w, code, status)
	})
	r.Method(http.MethodGet, "/metrics", httpMetrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(jwttoken.NewJWTServiceAdapter(tokens), log))
		r.Use(identity.ResolvePrincipal(resolver, log))
		revisions.Register(r)
	})

	if adminToken != "" {
		r.With(admin.RequireAdminToken(adminToken, log)).
			Post("/admin/principals/{user_id}/invalidate", identity.HandleInvalidate(resolver, log))
	}
	return r
}
