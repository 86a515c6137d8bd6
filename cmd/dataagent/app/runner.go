package app

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/dataagent-io/dataagent/pkg/agent"
	"github.com/dataagent-io/dataagent/pkg/api"
	"github.com/dataagent-io/dataagent/pkg/config"
	"github.com/dataagent-io/dataagent/pkg/hitl"
	"github.com/dataagent-io/dataagent/pkg/llm"
	"github.com/dataagent-io/dataagent/pkg/masking"
	"github.com/dataagent-io/dataagent/pkg/mcp"
	"github.com/dataagent-io/dataagent/pkg/models"
	"github.com/dataagent-io/dataagent/pkg/rules"
	"github.com/dataagent-io/dataagent/pkg/services"
	"github.com/dataagent-io/dataagent/pkg/workspace"
)

// ruleStoreCache hands out one rule store per user, created on first
// use. The user scope maps to <user_dir>/<sanitized_user_id>/.
type ruleStoreCache struct {
	cfg *config.RulesConfig

	mu     sync.Mutex
	stores map[string]*rules.Store
}

func newRuleStoreCache(cfg *config.RulesConfig) *ruleStoreCache {
	return &ruleStoreCache{cfg: cfg, stores: make(map[string]*rules.Store)}
}

func (c *ruleStoreCache) Get(userID string) (*rules.Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if store, ok := c.stores[userID]; ok {
		return store, nil
	}

	userDir := ""
	if c.cfg.UserDir != "" {
		userDir = filepath.Join(c.cfg.UserDir, workspace.SanitizeUserID(userID))
	}
	store := rules.NewStore(c.cfg.GlobalDir, userDir, c.cfg.ProjectDir, c.cfg.AllowedDirs)
	if err := store.Reload(); err != nil {
		return nil, err
	}
	c.stores[userID] = store
	return store, nil
}

// sessionRunner builds a per-session agent executor on demand: it
// resolves the session's owner, attaches the owner's workspace, rule
// store and MCP connections, and the session's agent memory.
type sessionRunner struct {
	cfg        *config.Config
	backend    llm.Backend
	pool       *mcp.Pool
	masker     *masking.Service
	correlator *hitl.Correlator
	notifier   hitl.Notifier
	workspaces *workspace.Manager
	ruleStores *ruleStoreCache

	sessions   *services.SessionService
	messages   *services.MessageService
	mcpServers *services.MCPServerService
}

// Execute implements runtime.Runner.
func (r *sessionRunner) Execute(ctx context.Context, sessionID, userInput string) <-chan models.Event {
	sess, err := r.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return errorStream("session not found: " + sessionID)
	}

	ws, err := r.workspaces.Get(sess.UserID)
	if err != nil {
		return errorStream("failed to open workspace: " + err.Error())
	}

	r.connectUserServers(ctx, sess.UserID)

	var store *rules.Store
	if store, err = r.ruleStores.Get(sess.UserID); err != nil {
		slog.Warn("Failed to load rule store, continuing without rules",
			"user_id", sess.UserID, "error", err)
	}

	memory := agent.NewMemory(r.cfg.Agent.AgentRoot, sess.AgentID)

	executor := agent.NewExecutor(agent.ExecutorOptions{
		Backend:    r.backend,
		Tools:      &agent.CompositeExecutor{Local: agent.NewLocalExecutor(ws), MCP: agent.NewMCPExecutor(r.pool, sess.UserID, r.masker)},
		Workspace:  ws,
		Correlator: r.correlator,
		Notifier:   r.notifier,
		History:    r.messages.BuildHistory,
		Middlewares: []agent.Middleware{
			&agent.RulesMiddleware{Store: store, MaxContentSize: r.cfg.Rules.MaxContentSize},
			&agent.MemoryMiddleware{Memory: memory},
			&agent.SkillsMiddleware{Memory: memory},
		},
		AssistantID:  sess.AgentID,
		MaxRounds:    r.cfg.Agent.MaxRounds,
		MaxDiffLines: r.cfg.Agent.MaxDiffLines,
	})

	return executor.Execute(ctx, sessionID, userInput)
}

// connectUserServers dials the user's enabled MCP servers that are not
// connected yet. Connect failures are recorded on the pool and surface
// as tool errors, never as execution failures.
func (r *sessionRunner) connectUserServers(ctx context.Context, userID string) {
	file, err := r.mcpServers.ServersFile(ctx, userID)
	if err != nil {
		slog.Warn("Failed to load MCP server definitions",
			"user_id", userID, "error", err)
		return
	}
	if len(file.MCPServers) == 0 {
		return
	}

	defs := make(map[string]*models.MCPServerDefinition, len(file.MCPServers))
	for name := range file.MCPServers {
		def := file.MCPServers[name]
		defs[name] = &def
	}
	r.pool.Connect(ctx, userID, defs)
}

func errorStream(msg string) <-chan models.Event {
	events := make(chan models.Event, 1)
	events <- models.New(models.ErrorPayload{
		Error:       msg,
		Code:        models.ErrCodeInternal,
		Recoverable: false,
	})
	close(events)
	return events
}

// persistingRunner wraps a runner with transcript persistence for the
// WebSocket path, where no REST handler owns the write: the user message
// is stored before execution and the event stream is folded back into
// assistant and tool messages afterwards.
type persistingRunner struct {
	base     *sessionRunner
	sessions *services.SessionService
	messages *services.MessageService
}

// Execute implements runtime.Runner.
func (r *persistingRunner) Execute(ctx context.Context, sessionID, userInput string) <-chan models.Event {
	out := make(chan models.Event, 64)
	go func() {
		defer close(out)

		if _, err := r.messages.AppendMessage(ctx, models.CreateMessageRequest{
			SessionID: sessionID,
			Role:      models.RoleUser,
			Content:   userInput,
		}); err != nil {
			slog.Error("Failed to persist user message",
				"session_id", sessionID, "error", err)
		}

		recorder := api.NewTranscriptRecorder()
		for ev := range r.base.Execute(ctx, sessionID, userInput) {
			recorder.Observe(ev)
			// On cancellation keep draining so the execution can emit
			// its terminator and finish; the event just isn't forwarded.
			select {
			case out <- ev:
			case <-ctx.Done():
			}
		}

		for _, msg := range recorder.Messages() {
			msg.SessionID = sessionID
			if _, err := r.messages.AppendMessage(ctx, msg); err != nil {
				slog.Error("Failed to persist transcript message",
					"session_id", sessionID, "role", msg.Role, "error", err)
				break
			}
		}
		if err := r.sessions.TouchSession(ctx, sessionID); err != nil {
			slog.Warn("Failed to touch session", "session_id", sessionID, "error", err)
		}
	}()
	return out
}
