// Package api is the REST control plane: health, chat, session and
// message history, user-scoped MCP server and rule management, and the
// out-of-band HITL resolve endpoint. The WebSocket upgrade lives here
// too; everything after the upgrade belongs to pkg/runtime.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/dataagent-io/dataagent/pkg/config"
	"github.com/dataagent-io/dataagent/pkg/database"
	"github.com/dataagent-io/dataagent/pkg/hitl"
	"github.com/dataagent-io/dataagent/pkg/rules"
	"github.com/dataagent-io/dataagent/pkg/runtime"
	"github.com/dataagent-io/dataagent/pkg/services"
)

// RuleStoreProvider resolves the rule store serving a given user. The
// provider owns caching; the API layer never constructs stores itself.
type RuleStoreProvider func(userID string) (*rules.Store, error)

// ServerOptions wires a Server. Nil optional fields disable the
// corresponding endpoints with 503 rather than panicking.
type ServerOptions struct {
	Config *config.ServerConfig

	DBClient       *database.Client
	UserService    *services.UserService
	SessionService *services.SessionService
	MessageService *services.MessageService
	MCPService     *services.MCPServerService

	RuleStores RuleStoreProvider
	Correlator *hitl.Correlator

	// Runner executes chat turns for the REST chat endpoints.
	Runner runtime.Runner

	// ConnManager and SessionHandler serve the WebSocket channel.
	ConnManager    *runtime.Manager
	SessionHandler *runtime.SessionHandler
}

// Server is the REST API server.
type Server struct {
	cfg *config.ServerConfig

	dbClient       *database.Client
	userService    *services.UserService
	sessionService *services.SessionService
	messageService *services.MessageService
	mcpService     *services.MCPServerService

	ruleStores RuleStoreProvider
	correlator *hitl.Correlator

	runner         runtime.Runner
	connManager    *runtime.Manager
	sessionHandler *runtime.SessionHandler

	echo      *echo.Echo
	startedAt time.Time
}

// NewServer creates the API server and registers all routes.
func NewServer(opts ServerOptions) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultServerConfig()
	}

	s := &Server{
		cfg:            cfg,
		dbClient:       opts.DBClient,
		userService:    opts.UserService,
		sessionService: opts.SessionService,
		messageService: opts.MessageService,
		mcpService:     opts.MCPService,
		ruleStores:     opts.RuleStores,
		correlator:     opts.Correlator,
		runner:         opts.Runner,
		connManager:    opts.ConnManager,
		sessionHandler: opts.SessionHandler,
		echo:           echo.New(),
		startedAt:      time.Now(),
	}

	s.echo.Use(securityHeaders())
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.healthHandler)
	s.echo.GET("/ws", s.wsHandler)

	v1 := s.echo.Group("/api/v1")

	v1.POST("/chat", s.chatHandler)
	v1.POST("/chat/stream", s.chatStreamHandler)

	v1.GET("/sessions", s.listSessionsHandler)
	v1.GET("/sessions/:id", s.getSessionHandler)
	v1.DELETE("/sessions/:id", s.deleteSessionHandler)
	v1.POST("/sessions/:id/end", s.endSessionHandler)
	v1.PUT("/sessions/:id/title", s.updateSessionTitleHandler)
	v1.GET("/sessions/:id/messages", s.listMessagesHandler)

	v1.GET("/users/:user_id/mcp-servers", s.listMCPServersHandler)
	v1.GET("/users/:user_id/mcp-servers/:name", s.getMCPServerHandler)
	v1.PUT("/users/:user_id/mcp-servers/:name", s.putMCPServerHandler)
	v1.DELETE("/users/:user_id/mcp-servers/:name", s.deleteMCPServerHandler)
	v1.POST("/users/:user_id/mcp-servers/:name/enabled", s.setMCPServerEnabledHandler)

	v1.GET("/users/:user_id/rules", s.listRulesHandler)
	v1.GET("/users/:user_id/rules/:name", s.getRuleHandler)
	v1.PUT("/users/:user_id/rules/:name", s.putRuleHandler)
	v1.DELETE("/users/:user_id/rules/:name", s.deleteRuleHandler)
	v1.POST("/users/:user_id/rules/validate", s.validateRuleHandler)
	v1.GET("/users/:user_id/rules/conflicts", s.listRuleConflictsHandler)
	v1.POST("/users/:user_id/rules/reload", s.reloadRulesHandler)

	v1.POST("/hitl/resolve", s.resolveHITLHandler)
}

// Echo exposes the underlying router, primarily for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start runs the HTTP server until ctx is cancelled, then drains within
// the configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	slog.Info("API server stopped")
	return nil
}
