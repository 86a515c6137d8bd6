package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dataagent-io/dataagent/pkg/agent"
)

func newResetAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset-agent <agent-id>",
		Short: "Reset an agent's persistent memory",
		Long: `Reset an agent's agent.md memory file to the default template, or
copy another agent's memory with --from. Skills are left untouched.`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 1 || args[0] == "" {
				return usageErrorf("exactly one agent-id argument is required")
			}
			return nil
		},
		RunE: runResetAgent,
	}
	cmd.Flags().String("from", "", "Copy memory from this agent instead of resetting")
	return cmd
}

func runResetAgent(cmd *cobra.Command, args []string) error {
	agentID := args[0]
	fromAgent, _ := cmd.Flags().GetString("from")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	memory := agent.NewMemory(cfg.Agent.AgentRoot, agentID)
	if fromAgent != "" {
		if err := memory.CopyFrom(fromAgent); err != nil {
			return fmt.Errorf("failed to copy memory from %q: %w", fromAgent, err)
		}
		cmd.Printf("Copied memory of %q to %q\n", fromAgent, agentID)
		return nil
	}

	if err := memory.Reset(); err != nil {
		return fmt.Errorf("failed to reset memory: %w", err)
	}
	cmd.Printf("Reset memory of %q to the default template\n", agentID)
	return nil
}
