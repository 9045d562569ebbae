// Package api provides the HTTP server of the web host. It mounts the OAuth callback route
// and the pages around it on a Gin engine wired to logrus.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/googler-dev/googler-web/internal/api/handlers/web"
	"github.com/googler-dev/googler-web/internal/api/middleware"
	"github.com/googler-dev/googler-web/internal/config"
	"github.com/googler-dev/googler-web/internal/exchange"
	"github.com/googler-dev/googler-web/internal/handshake"
	"github.com/googler-dev/googler-web/internal/logging"
	"github.com/googler-dev/googler-web/internal/session"
	"github.com/googler-dev/googler-web/internal/util"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

type serverOptionConfig struct {
	extraMiddleware []gin.HandlerFunc
	engineConfigure func(*gin.Engine)
	exchanger       handshake.Exchanger
}

// ServerOption customises server construction.
type ServerOption func(*serverOptionConfig)

// WithMiddleware appends additional Gin middleware.
func WithMiddleware(mw ...gin.HandlerFunc) ServerOption {
	return func(cfg *serverOptionConfig) {
		cfg.extraMiddleware = append(cfg.extraMiddleware, mw...)
	}
}

// WithEngineConfigurator lets callers mutate the Gin engine before routes are registered.
func WithEngineConfigurator(fn func(*gin.Engine)) ServerOption {
	return func(cfg *serverOptionConfig) {
		cfg.engineConfigure = fn
	}
}

// WithExchanger overrides the exchange client built from the configuration. Config reloads
// keep the override.
func WithExchanger(exchanger handshake.Exchanger) ServerOption {
	return func(cfg *serverOptionConfig) {
		cfg.exchanger = exchanger
	}
}

// Server is the web host.
type Server struct {
	engine  *gin.Engine
	server  *http.Server
	handler *web.Handler

	// routes are registered once; reloads cannot move them.
	routes config.RoutesConfig

	mu            sync.Mutex
	cfg           *config.Config
	fixedExchange handshake.Exchanger
	listener      net.Listener
}

// NewServer builds the Gin engine and registers the routes named in cfg.Routes.
func NewServer(cfg *config.Config, store session.Store, opts ...ServerOption) *Server {
	optionState := &serverOptionConfig{}
	for _, opt := range opts {
		opt(optionState)
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if optionState.engineConfigure != nil {
		optionState.engineConfigure(engine)
	}
	engine.Use(logging.GinLogrusLogger(cfg.Routes.Callback))
	engine.Use(logging.GinLogrusRecovery())
	engine.Use(middleware.SecurityHeaders())
	for _, mw := range optionState.extraMiddleware {
		engine.Use(mw)
	}

	s := &Server{
		engine:        engine,
		routes:        cfg.Routes,
		cfg:           cfg,
		fixedExchange: optionState.exchanger,
	}
	s.handler = web.NewHandler(cfg, s.exchangerFor(cfg), store)
	s.setupRoutes(cfg)

	s.server = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes(cfg *config.Config) {
	s.engine.GET(cfg.Routes.Callback, s.handler.Callback)
	s.engine.GET(cfg.Routes.Login, s.handler.LoginPage)
	s.engine.GET(cfg.Routes.Landing, s.handler.Landing)
	s.engine.GET("/healthz", s.handler.Health)
}

func (s *Server) exchangerFor(cfg *config.Config) handshake.Exchanger {
	if s.fixedExchange != nil {
		return s.fixedExchange
	}
	return exchange.NewClient(cfg)
}

// Engine exposes the Gin engine, mainly for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start listens on the configured address and serves until Stop is called.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	return s.Serve(listener)
}

// Serve serves on an existing listener until Stop is called.
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	log.Infof("web host listening on %s", listener.Addr())
	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Addr returns the bound address once the server is serving.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	log.Debug("Stopping web host...")
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	log.Debug("Web host stopped")
	return nil
}

// UpdateConfig applies a reloaded configuration. Route paths and the listen address are fixed
// at construction; a change to them is logged and takes effect after a restart.
func (s *Server) UpdateConfig(cfg *config.Config) {
	s.mu.Lock()
	previous := s.cfg
	s.cfg = cfg
	s.mu.Unlock()

	if cfg.Routes != s.routes {
		log.Warn("route changes require a restart; keeping the current routes")
	}
	if previous != nil {
		if previous.Host != cfg.Host || previous.Port != cfg.Port {
			log.Warn("listen address changes require a restart")
		}
		if previous.Debug != cfg.Debug {
			util.SetLogLevel(cfg)
		}
	}

	routesCfg := *cfg
	routesCfg.Routes = s.routes
	s.handler.UpdateConfig(&routesCfg, s.exchangerFor(cfg))
	log.WithField("route", routesCfg.Routes.Callback).Info("configuration applied to web host")
}
