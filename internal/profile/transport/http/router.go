package http

import (
	"context"
	"database/sql"
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/time/rate"

	"github.com/fieldlabs/profile-service/internal/config"
	"github.com/fieldlabs/profile-service/internal/platform/log"
	"github.com/fieldlabs/profile-service/internal/platform/observability"
	"github.com/fieldlabs/profile-service/pkg/jsonbody"
)

type RouterOpt func(*routerConfig)

type routerConfig struct {
	AuthMW func(stdhttp.Handler) stdhttp.Handler
}

func WithAuth(mw func(stdhttp.Handler) stdhttp.Handler) RouterOpt {
	return func(c *routerConfig) { c.AuthMW = mw }
}

func NewRouter(h *Handler, logger *log.Logger, cfg *config.Config, opts ...RouterOpt) stdhttp.Handler {
	rc := &routerConfig{}
	for _, o := range opts {
		o(rc)
	}

	r := chi.NewRouter()
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
			AllowedHeaders: []string{"*"},
			MaxAge:         300,
		}))
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(mwZap(logger))
	r.Use(mwMetrics())
	r.Use(rateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))

	// Health & metrics
	r.Get("/healthz", func(w stdhttp.ResponseWriter, r *stdhttp.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		if err := dbPing(r.Context(), cfg.DatabaseURL); err != nil {
			w.WriteHeader(503)
			return
		}
		w.WriteHeader(200)
	})
	r.Handle("/metrics", observability.Handler())

	// API document
	r.Get("/openapi.yaml", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		stdhttp.ServeFile(w, r, "openapi.yaml")
	})

	// Reads are public; writes go through the auth middleware when one is
	// configured.
	protect := func(r chi.Router) chi.Router {
		if rc.AuthMW != nil {
			return r.With(rc.AuthMW)
		}
		return r
	}
	r.Route("/api/v1/profiles", func(r chi.Router) {
		r.Get("/", h.List)
		protect(r).Post("/", h.Create)
		r.Route("/{id}", func(r chi.Router) {
			r.Use(bindIDParam("id"))
			r.Get("/", h.Get)
			protect(r).Patch("/status", jsonbody.Handler(h.PatchStatus, jsonbody.MaxBytes(cfg.MaxBodyBytes)))
			protect(r).Put("/email", jsonbody.Handler(h.UpdateEmail, jsonbody.MaxBytes(cfg.MaxBodyBytes)))
		})
	})

	return r
}

// --- helpers ---

func bindIDParam(name string) func(next stdhttp.Handler) stdhttp.Handler {
	return func(next stdhttp.Handler) stdhttp.Handler {
		return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			id := chi.URLParam(r, name)
			next.ServeHTTP(w, WithURLParam(r, name, id))
		})
	}
}

func rateLimit(rps float64, burst int) func(stdhttp.Handler) stdhttp.Handler {
	lim := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next stdhttp.Handler) stdhttp.Handler {
		return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			if !lim.Allow() {
				w.WriteHeader(429)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func dbPing(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	return db.PingContext(ctx)
}
