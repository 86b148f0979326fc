package api

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"readiness-workers/internal/common/logger"
)

type Server struct {
	http   *http.Server
	logger logger.Logger
}

func NewServer(addr string, handler http.Handler, log logger.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: log.WithFields(map[string]interface{}{"component": "http-server"}),
	}
}

// Start blocks until the server stops. A graceful shutdown is not an error.
func (s *Server) Start() error {
	s.logger.Info("http server listening", map[string]interface{}{"address": s.http.Addr})
	if err := s.http.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
