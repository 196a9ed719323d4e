// Package api exposes the gate over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/liamashdown/tokengate/internal/cache"
	"github.com/liamashdown/tokengate/internal/gatekeeper"
	"github.com/liamashdown/tokengate/internal/risk"
	"github.com/liamashdown/tokengate/internal/storage"
)

// Checker runs the gate for one address.
type Checker interface {
	Check(ctx context.Context, address string, filters risk.FilterConfig, opts gatekeeper.Options) (*gatekeeper.Result, error)
}

// Store is the read side the API needs.
type Store interface {
	Ping(ctx context.Context) error
	GetBlacklistEntry(ctx context.Context, address string) (*storage.BlacklistEntry, error)
	AlertsForAddress(ctx context.Context, address string) ([]storage.AlertRecord, error)
}

// Settings are the request-independent knobs of the API.
type Settings struct {
	DefaultFilters risk.FilterConfig
	FilterPresets  map[string]risk.FilterConfig
	OverrideKey    string
	RequestTimeout time.Duration
}

// Server wires HTTP endpoints around the gate.
type Server struct {
	Router   *gin.Engine
	checker  Checker
	store    Store
	cache    cache.Cache
	settings Settings
	log      *logrus.Logger
}

// NewServer builds the router.
func NewServer(checker Checker, store Store, c cache.Cache, settings Settings, log *logrus.Logger) *Server {
	if settings.RequestTimeout <= 0 {
		settings.RequestTimeout = 60 * time.Second
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(log))

	s := &Server{
		Router:   r,
		checker:  checker,
		store:    store,
		cache:    c,
		settings: settings,
		log:      log,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ready", s.ready)
	s.Router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.Router.Group("/v1/tokens/:address")
	{
		v1.POST("/check", s.check)
		v1.GET("/blacklist", s.blacklist)
		v1.GET("/market", s.market)
		v1.GET("/alerts", s.alerts)
	}
}

// Run serves on port until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, port int) error {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: s.settings.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("port", port).Info("Starting HTTP server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.settings.RequestTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
