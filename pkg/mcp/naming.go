package mcp

import (
	"fmt"
	"regexp"
	"strings"
)

// Exposed tool names use "server__tool": OpenAI-protocol function names
// forbid dots, so the double underscore is the wire separator. The
// canonical "server.tool" form is accepted on input.
var toolNameRegex = regexp.MustCompile(`^([\w][\w-]*)__([\w][\w-]*)$`)

// JoinToolName builds the exposed name for a server's tool.
func JoinToolName(serverName, toolName string) string {
	return serverName + "__" + toolName
}

// NormalizeToolName converts "server.tool" to the exposed
// "server__tool" form. Names already in exposed form pass through.
func NormalizeToolName(name string) string {
	if strings.Contains(name, ".") && !strings.Contains(name, "__") {
		return strings.Replace(name, ".", "__", 1)
	}
	return name
}

// SplitToolName splits an exposed name into (serverName, toolName).
func SplitToolName(name string) (serverName, toolName string, err error) {
	matches := toolNameRegex.FindStringSubmatch(NormalizeToolName(name))
	if matches == nil {
		return "", "", fmt.Errorf(
			"invalid tool name %q: must be in 'server__tool' format "+
				"(e.g., 'github__create_issue')", name)
	}
	return matches[1], matches[2], nil
}
