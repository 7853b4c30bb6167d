package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"framesearch/config"
	"framesearch/internal/domain"
)

// Retriever is the set of retrieval operations the API exposes.
type Retriever interface {
	RetrieveByText(ctx context.Context, q domain.TextQuery) (domain.Result, error)
	RetrieveByImage(ctx context.Context, q domain.ImageQuery) (domain.Result, error)
	RetrieveByEventSequence(ctx context.Context, q domain.EventSequenceQuery) (domain.Result, error)
	RetrieveMultiModal(ctx context.Context, q domain.MultiModalQuery) (domain.Result, error)
}

// Server serves the frame search HTTP API.
type Server struct {
	retriever Retriever
	cfg       config.ServerConfig
	logger    *slog.Logger
	engine    *gin.Engine
}

func NewServer(retriever Retriever, cfg config.ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		retriever: retriever,
		cfg:       cfg,
		logger:    logger,
	}

	r := gin.New()
	r.MaxMultipartMemory = cfg.MaxUploadBytes
	r.Use(requestID(), accessLog(logger), recovery(logger), allowAllOrigins())

	r.GET("/healthz", s.handleHealth)

	clip := r.Group("/clip")
	{
		clip.POST("/clipTextRetrieval", s.handleTextRetrieval)
		clip.POST("/searchByImage", s.limitBody(), s.handleImageRetrieval)
		clip.POST("/multiEventSearch", s.handleEventSearch)
		clip.POST("/multiModalSearch", s.handleMultiModalSearch)
	}

	s.engine = r
	return s
}

// Handler returns the HTTP handler, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout.Std(),
		WriteTimeout: s.cfg.WriteTimeout.Std(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.cfg.Addr)
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

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
