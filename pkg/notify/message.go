package notify

import (
	"encoding/json"
	"fmt"
	"strings"

	goslack "github.com/slack-go/slack"

	"github.com/dataagent-io/dataagent/pkg/models"
)

const (
	maxBlockTextLength = 2900
	maxListedActions   = 10
)

// BuildApprovalMessage creates Block Kit blocks for a pending-approval
// notification: who is waiting, which tool calls, and where to decide.
func BuildApprovalMessage(sessionID string, req models.HITLRequestPayload, dashboardURL string) []goslack.Block {
	header := fmt.Sprintf(":hand: *Approval required* — session `%s` is paused on %d pending action(s).",
		sessionID, len(req.ActionRequests))

	var lines []string
	for i, action := range req.ActionRequests {
		if i == maxListedActions {
			lines = append(lines, fmt.Sprintf("_... and %d more_", len(req.ActionRequests)-maxListedActions))
			break
		}
		lines = append(lines, fmt.Sprintf("• `%s` %s", action.Name, summarizeArgs(action.Args)))
	}

	blocks := []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, header, false, false),
			nil, nil,
		),
	}
	if len(lines) > 0 {
		blocks = append(blocks, goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, truncateForSlack(strings.Join(lines, "\n")), false, false),
			nil, nil,
		))
	}

	if dashboardURL != "" {
		url := fmt.Sprintf("%s/sessions/%s", dashboardURL, sessionID)
		btn := goslack.NewButtonBlockElement("", "", goslack.NewTextBlockObject(goslack.PlainTextType, "Review in Dashboard", false, false))
		btn.URL = url
		blocks = append(blocks, goslack.NewActionBlock("", btn))
	}

	return blocks
}

// summarizeArgs renders tool arguments as compact JSON for the message.
func summarizeArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	data, err := json.Marshal(args)
	if err != nil {
		return ""
	}
	const maxArgsLength = 200
	s := string(data)
	if len(s) > maxArgsLength {
		s = s[:maxArgsLength] + "...}"
	}
	return "`" + s + "`"
}

func truncateForSlack(text string) string {
	if len(text) <= maxBlockTextLength {
		return text
	}
	return text[:maxBlockTextLength] + "\n\n_... (truncated)_"
}
