package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fieldlabs/profile-service/internal/config"
	"github.com/fieldlabs/profile-service/internal/platform/log"
)

type Server struct {
	http     *http.Server
	certFile string
	keyFile  string
	log      *log.Logger
}

func New(handler http.Handler, cfg *config.Config, logger *log.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
		certFile: cfg.TLSCertFile,
		keyFile:  cfg.TLSKeyFile,
		log:      logger,
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests for up
// to ten seconds.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server started", log.Str("addr", s.http.Addr))
		if err := s.listen(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		grace, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		s.log.Info("shutting down http server")
		if err := s.http.Shutdown(grace); err != nil {
			s.log.Error("http shutdown error", log.Err(err))

			return err
		}
	case err := <-errCh:
		if err != nil {
			s.log.Error("http server error", log.Err(err))
			return err
		}
	}

	return nil
}

func (s *Server) listen() error {
	if s.certFile != "" && s.keyFile != "" {
		return s.http.ListenAndServeTLS(s.certFile, s.keyFile)
	}

	return s.http.ListenAndServe()
}
