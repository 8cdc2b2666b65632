package app

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	httpstd "net/http"
	pprof "net/http/pprof"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fieldlabs/profile-service/internal/config"
	"github.com/fieldlabs/profile-service/internal/platform/auth"
	"github.com/fieldlabs/profile-service/internal/platform/db"
	server "github.com/fieldlabs/profile-service/internal/platform/http"
	"github.com/fieldlabs/profile-service/internal/platform/idempotency"
	"github.com/fieldlabs/profile-service/internal/platform/kafka"
	"github.com/fieldlabs/profile-service/internal/platform/log"
	"github.com/fieldlabs/profile-service/internal/platform/observability"
	"github.com/fieldlabs/profile-service/internal/platform/onboarding"
	"github.com/fieldlabs/profile-service/internal/platform/outbox"
	"github.com/fieldlabs/profile-service/internal/profile/repository/postgres"
	"github.com/fieldlabs/profile-service/internal/profile/service"
	http "github.com/fieldlabs/profile-service/internal/profile/transport/http"
)

// Run wires the service together and serves until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	shutdownTracer, err := observability.InitTracing(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("tracing init: %w", err)
	}
	defer shutdownTracer()

	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()

	tx := db.NewTxManager(pool, logger)
	repo := postgres.New(pool, logger)
	svc := service.New(repo, tx, logger)

	idem := idempotency.NewStore(pool, logger)

	prod := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicProfiles, logger)
	defer func() {
		if err := prod.Close(); err != nil {
			logger.Error("failed to close kafka producer", log.Err(err))
		}
	}()

	relay := outbox.New(pool, prod, cfg.OutboxInterval, cfg.OutboxBatch, logger)
	go func() {
		if err := relay.Run(ctx); err != nil {
			logger.Error("outbox relay stopped", log.Err(err))
		}
	}()

	obStore := onboarding.NewStore(pool, logger)
	obMgr := onboarding.NewManager(obStore, cfg.OnboardingInterval, logger)
	registerOnboardingExecutors(obMgr, logger)
	go func() {
		if err := obMgr.RunPoller(ctx); err != nil {
			logger.Error("onboarding poller stopped", log.Err(err))
		}
	}()

	var authMW func(httpstd.Handler) httpstd.Handler
	if cfg.AuthEnabled {
		auds := strings.Split(cfg.OIDCAudience, ",")
		oidcMW, err := auth.NewOIDC(ctx, auth.OIDCConfig{
			Issuer:        cfg.OIDCIssuer,
			Audiences:     auds,
			RequiredScope: cfg.OIDCRequiredScope,
			Logger:        logger,
		})
		if err != nil {
			return fmt.Errorf("oidc init: %w", err)
		}
		authMW = oidcMW.Middleware
	}

	api := http.NewHandler(svc, logger, idem, obMgr, cfg.MaxBodyBytes)
	router := http.NewRouter(api, logger, cfg, http.WithAuth(authMW))
	handler := otelhttp.NewHandler(router, "profile-service")

	debugSrv := newDebugServer(cfg)
	go func() {
		logger.Info("debug server started", log.Str("addr", debugSrv.Addr))
		if err := listenDebug(debugSrv, cfg); err != nil && !errors.Is(err, httpstd.ErrServerClosed) {
			logger.Error("debug server error", log.Err(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := debugSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("debug shutdown error", log.Err(err))
		}
	}()

	srv := server.New(handler, cfg, logger)

	return srv.Run(ctx)
}

// registerOnboardingExecutors installs the built-in step executors. Real
// deployments replace these with mailer/search-index integrations.
func registerOnboardingExecutors(m *onboarding.Manager, logger *log.Logger) {
	m.Register("send-welcome-email", func(ctx context.Context, runID uuid.UUID, payload map[string]any) error {
		logger.Info("sending welcome email",
			log.Str("run_id", runID.String()),
			log.Any("payload", payload))
		return nil
	})
	m.Register("index-profile", func(ctx context.Context, runID uuid.UUID, payload map[string]any) error {
		logger.Info("indexing profile",
			log.Str("run_id", runID.String()),
			log.Any("payload", payload))
		return nil
	})
}

func newDebugServer(cfg *config.Config) *httpstd.Server {
	mux := httpstd.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return &httpstd.Server{
		Addr:              cfg.DebugAddr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
	}
}

func listenDebug(srv *httpstd.Server, cfg *config.Config) error {
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		return srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
	}

	return srv.ListenAndServe()
}
