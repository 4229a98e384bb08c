// Package server exposes mesh analysis over HTTP. Requests carry 3D
// GeoJSON; every feature in the document is analysed independently.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chazu/solidmesh/pkg/engine"
	"github.com/chazu/solidmesh/pkg/solid"
)

// MaxBodyBytes limits request bodies.
const MaxBodyBytes = 32 << 20

// Options configures a Server.
type Options struct {
	// Analysis is applied to every feature. A tolerance query parameter
	// overrides Analysis.Tolerance per request.
	Analysis solid.Options
	// EvalTimeout bounds one expression evaluation. Zero means
	// engine.EvalTimeout.
	EvalTimeout time.Duration
	Logger      *zap.Logger
}

// Server is the HTTP front end.
type Server struct {
	opts   Options
	log    *zap.Logger
	router *gin.Engine
}

// New builds a Server and its routes.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Server{opts: opts, log: opts.Logger}

	r := gin.New()
	r.Use(requestID(), accessLog(s.log), gin.Recovery())

	r.GET("/healthz", s.healthz)
	v1 := r.Group("/v1")
	{
		v1.POST("/analyze", s.analyze)
		v1.POST("/mesh", s.mesh)
		v1.POST("/eval", s.eval)
	}
	s.router = r
	return s
}

// Handler returns the routed http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) newEngine(opts solid.Options) *engine.Engine {
	return engine.NewEngine(engine.Config{Analysis: opts, Timeout: s.opts.EvalTimeout})
}
