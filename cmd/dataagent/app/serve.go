package app

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dataagent-io/dataagent/pkg/api"
	"github.com/dataagent-io/dataagent/pkg/cleanup"
	"github.com/dataagent-io/dataagent/pkg/hitl"
	"github.com/dataagent-io/dataagent/pkg/masking"
	"github.com/dataagent-io/dataagent/pkg/mcp"
	"github.com/dataagent-io/dataagent/pkg/notify"
	"github.com/dataagent-io/dataagent/pkg/runtime"
	"github.com/dataagent-io/dataagent/pkg/services"
	"github.com/dataagent-io/dataagent/pkg/version"
	"github.com/dataagent-io/dataagent/pkg/workspace"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the DataAgent server",
		Long: `Start the REST and WebSocket server: session management, chat
execution, user-scoped MCP servers and rules, and HITL approvals.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	slog.Info("Starting DataAgent",
		"version", version.Full(),
		"host", cfg.Server.Host,
		"port", cfg.Server.Port)

	dbClient, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	slog.Info("Connected to PostgreSQL database")

	userService := services.NewUserService(dbClient.Client)
	sessionService := services.NewSessionService(dbClient.Client)
	messageService := services.NewMessageService(dbClient.Client)
	mcpService := services.NewMCPServerService(dbClient.Client)

	masker := masking.NewService(cfg.Masking, nil)

	pool := mcp.NewPool(cfg.MCP)
	defer pool.Close()

	correlator := hitl.NewCorrelator(cfg.HITL.ApprovalTimeout)
	notifier := notify.NewSlackNotifier(cfg.HITL.Slack)
	if notifier != nil {
		slog.Info("Slack notifications enabled", "channel", cfg.HITL.Slack.Channel)
	}

	enforceQuota := cfg.Workspace.EnforceQuota == nil || *cfg.Workspace.EnforceQuota
	workspaces := workspace.NewManager(cfg.Workspace.Root, workspace.Quota{
		MaxSizeBytes:     cfg.Workspace.MaxSizeBytes,
		MaxFiles:         cfg.Workspace.MaxFiles,
		MaxFileSizeBytes: cfg.Workspace.MaxFileSizeBytes,
	}, enforceQuota)

	ruleStores := newRuleStoreCache(cfg.Rules)

	providerName, backend, err := newBackend(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			slog.Error("Error closing LLM backend", "error", err)
		}
	}()
	slog.Info("LLM backend initialized", "provider", providerName)

	runner := &sessionRunner{
		cfg:        cfg,
		backend:    backend,
		pool:       pool,
		masker:     masker,
		correlator: correlator,
		notifier:   notifier,
		workspaces: workspaces,
		ruleStores: ruleStores,
		sessions:   sessionService,
		messages:   messageService,
		mcpServers: mcpService,
	}

	connManager := runtime.NewManager(runtime.ManagerOptions{
		MaxConnections:  cfg.Server.MaxConnections,
		DecisionTimeout: cfg.HITL.ApprovalTimeout,
		Correlator:      correlator,
	})
	sessionHandler := runtime.NewSessionHandler(connManager, &persistingRunner{
		base:     runner,
		sessions: sessionService,
		messages: messageService,
	})

	retention := cleanup.NewService(cfg.Retention, sessionService, workspaces)
	retention.Start(ctx)
	defer retention.Stop()

	server := api.NewServer(api.ServerOptions{
		Config:         cfg.Server,
		DBClient:       dbClient,
		UserService:    userService,
		SessionService: sessionService,
		MessageService: messageService,
		MCPService:     mcpService,
		RuleStores:     ruleStores.Get,
		Correlator:     correlator,
		Runner:         runner,
		ConnManager:    connManager,
		SessionHandler: sessionHandler,
	})

	if err := server.Start(ctx); err != nil {
		return err
	}
	slog.Info("Shutdown complete")
	return nil
}
