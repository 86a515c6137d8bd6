package app

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dataagent-io/dataagent/pkg/models"
	"github.com/dataagent-io/dataagent/pkg/services"
)

func newListSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list-sessions",
		Short: "List a user's sessions",
		Args:  cobra.NoArgs,
		RunE:  runListSessions,
	}
	cmd.Flags().String("user", "", "User whose sessions to list (required)")
	cmd.Flags().Bool("all", false, "Include ended and expired sessions")
	cmd.Flags().Int("limit", 50, "Maximum number of sessions to list")
	return cmd
}

func runListSessions(cmd *cobra.Command, _ []string) error {
	userID, _ := cmd.Flags().GetString("user")
	if userID == "" {
		return usageErrorf("--user is required")
	}
	includeArchived, _ := cmd.Flags().GetBool("all")
	limit, _ := cmd.Flags().GetInt("limit")

	if _, err := loadConfig(cmd); err != nil {
		return err
	}

	ctx := cmd.Context()
	dbClient, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = dbClient.Close() }()

	sessions, total, err := services.NewSessionService(dbClient.Client).ListSessions(ctx, models.SessionFilters{
		UserID:          userID,
		IncludeArchived: includeArchived,
		Limit:           limit,
	})
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION ID\tAGENT\tSTATUS\tLAST ACTIVE\tTITLE")
	for _, sess := range sessions {
		title := ""
		if sess.Title != nil {
			title = *sess.Title
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			sess.ID, sess.AgentID, sess.Status,
			sess.LastActiveAt.Format("2006-01-02 15:04:05"), title)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if total > len(sessions) {
		cmd.Printf("\n%d of %d sessions shown\n", len(sessions), total)
	}
	return nil
}
