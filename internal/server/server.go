package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kubev2v/asyncqueue/internal/config"
)

const readHeaderTimeout = 10 * time.Second

type Server struct {
	srv    *http.Server
	engine *gin.Engine
}

// NewServer builds the HTTP server. registerHandlerFn receives the /api/v1
// group with logging, recovery and, when enabled, authentication attached.
func NewServer(cfg *config.Configuration, registerHandlerFn func(router *gin.RouterGroup)) (*Server, error) {
	if registerHandlerFn == nil {
		return nil, errors.New("no handler registration function provided")
	}

	if cfg.Server.Mode == config.ServerModeProd {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	logger := zap.L().Named("http")

	engine := gin.New()
	engine.Use(
		ginzap.Ginzap(logger, time.RFC3339, true),
		ginzap.RecoveryWithZap(logger, true),
	)

	api := engine.Group("/api/v1")
	if cfg.Auth.Enabled {
		api.Use(JWTAuth(cfg.Auth.Secret))
	}
	registerHandlerFn(api)

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return &Server{
		engine: engine,
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
			Handler:           engine,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}, nil
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until the server is stopped. It returns http.ErrServerClosed
// after a graceful Stop.
func (s *Server) Start(ctx context.Context) error {
	s.srv.BaseContext = func(net.Listener) context.Context { return ctx }

	zap.S().Named("http").Infow("server listening", "addr", s.srv.Addr)
	return s.srv.ListenAndServe()
}

// Stop waits for in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
