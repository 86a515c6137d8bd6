package app

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dataagent-io/dataagent/pkg/agent"
	"github.com/dataagent-io/dataagent/pkg/masking"
	"github.com/dataagent-io/dataagent/pkg/mcp"
	"github.com/dataagent-io/dataagent/pkg/models"
	"github.com/dataagent-io/dataagent/pkg/workspace"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [message]",
		Short: "Execute a single agent turn locally",
		Long: `Run one agent turn without a server or database: the message is
executed against the local workspace with MCP servers from an mcp.json
file. Tool calls are auto-approved; there is no human-in-the-loop gate.`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usageErrorf("exactly one message argument is required")
			}
			if strings.TrimSpace(args[0]) == "" {
				return usageErrorf("message must not be empty")
			}
			return nil
		},
		RunE: runRun,
	}
	cmd.Flags().String("user", "local", "User whose workspace and rules apply")
	cmd.Flags().String("assistant", "default", "Agent whose memory and skills apply")
	cmd.Flags().String("mcp-config", "", "Path to an mcp.json file with MCP server definitions")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	message := args[0]
	userID, _ := cmd.Flags().GetString("user")
	assistantID, _ := cmd.Flags().GetString("assistant")
	mcpConfigPath, _ := cmd.Flags().GetString("mcp-config")
	debug, _ := cmd.Flags().GetBool("debug")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	enforceQuota := cfg.Workspace.EnforceQuota == nil || *cfg.Workspace.EnforceQuota
	workspaces := workspace.NewManager(cfg.Workspace.Root, workspace.Quota{
		MaxSizeBytes:     cfg.Workspace.MaxSizeBytes,
		MaxFiles:         cfg.Workspace.MaxFiles,
		MaxFileSizeBytes: cfg.Workspace.MaxFileSizeBytes,
	}, enforceQuota)
	ws, err := workspaces.Get(userID)
	if err != nil {
		return fmt.Errorf("failed to open workspace: %w", err)
	}

	store, err := newRuleStoreCache(cfg.Rules).Get(userID)
	if err != nil {
		slog.Warn("Failed to load rule store, continuing without rules", "error", err)
	}

	masker := masking.NewService(cfg.Masking, nil)
	pool := mcp.NewPool(cfg.MCP)
	defer pool.Close()

	if mcpConfigPath != "" {
		file, err := models.LoadMCPServersFile(mcpConfigPath)
		if err != nil {
			return err
		}
		defs := make(map[string]*models.MCPServerDefinition, len(file.MCPServers))
		for name := range file.MCPServers {
			def := file.MCPServers[name]
			defs[name] = &def
		}
		connected := pool.Connect(ctx, userID, defs)
		slog.Info("MCP servers connected", "connected", connected, "configured", len(defs))
	}

	providerName, backend, err := newBackend(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()
	slog.Debug("LLM backend initialized", "provider", providerName)

	memory := agent.NewMemory(cfg.Agent.AgentRoot, assistantID)
	executor := agent.NewExecutor(agent.ExecutorOptions{
		Backend:   backend,
		Tools:     &agent.CompositeExecutor{Local: agent.NewLocalExecutor(ws), MCP: agent.NewMCPExecutor(pool, userID, masker)},
		Workspace: ws,
		Middlewares: []agent.Middleware{
			&agent.RulesMiddleware{Store: store, MaxContentSize: cfg.Rules.MaxContentSize},
			&agent.MemoryMiddleware{Memory: memory},
			&agent.SkillsMiddleware{Memory: memory},
		},
		AssistantID:  assistantID,
		MaxRounds:    cfg.Agent.MaxRounds,
		MaxDiffLines: cfg.Agent.MaxDiffLines,
		Debug:        debug,
	})

	sessionID := uuid.New().String()
	for ev := range executor.Execute(ctx, sessionID, message) {
		if err := printEvent(cmd, ev); err != nil {
			return err
		}
	}
	return nil
}

// printEvent renders one stream event for the terminal: assistant text
// flows to stdout, tool activity to stderr, an error event fails the run.
func printEvent(cmd *cobra.Command, ev models.Event) error {
	switch p := ev.Payload.(type) {
	case models.TextPayload:
		if p.IsFinal {
			cmd.Println()
		} else {
			cmd.Print(p.Content)
		}
	case models.ToolCallPayload:
		cmd.PrintErrf("→ %s\n", p.ToolName)
	case models.ToolResultPayload:
		if p.Status == models.StatusError {
			cmd.PrintErrf("✗ tool failed: %s\n", p.Result)
		}
	case models.FileOperationPayload:
		cmd.PrintErrf("± %s %s\n", p.Operation, p.FilePath)
	case models.ErrorPayload:
		return fmt.Errorf("execution failed: %s", p.Error)
	case models.DonePayload:
		if p.TokenUsage != nil {
			cmd.PrintErrf("tokens: %d in, %d out\n",
				p.TokenUsage.InputTokens, p.TokenUsage.OutputTokens)
		}
	}
	return nil
}
