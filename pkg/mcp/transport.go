package mcp

import (
	"fmt"
	"net/http"
	"os"
	"os/exec"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dataagent-io/dataagent/pkg/models"
)

// createTransport creates an MCP SDK transport from a per-user server
// definition. Stdio servers spawn a child process; URL servers speak
// streamable HTTP or SSE.
func createTransport(def *models.MCPServerDefinition) (mcpsdk.Transport, error) {
	if def.IsStdio() {
		return createStdioTransport(def)
	}
	switch def.Transport {
	case models.MCPTransportSSE:
		return createSSETransport(def)
	case models.MCPTransportStreamableHTTP, "":
		return createHTTPTransport(def)
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", def.Transport)
	}
}

func createStdioTransport(def *models.MCPServerDefinition) (*mcpsdk.CommandTransport, error) {
	if def.Command == "" {
		return nil, fmt.Errorf("stdio transport requires command")
	}

	cmd := exec.Command(def.Command, def.Args...)

	// Inherit parent environment + definition overrides.
	env := os.Environ()
	for k, v := range def.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = env

	return &mcpsdk.CommandTransport{Command: cmd}, nil
}

func createHTTPTransport(def *models.MCPServerDefinition) (*mcpsdk.StreamableClientTransport, error) {
	if def.URL == "" {
		return nil, fmt.Errorf("HTTP transport requires url")
	}
	transport := &mcpsdk.StreamableClientTransport{
		Endpoint: def.URL,
	}
	if len(def.Headers) > 0 {
		transport.HTTPClient = buildHTTPClient(def.Headers)
	}
	return transport, nil
}

func createSSETransport(def *models.MCPServerDefinition) (*mcpsdk.SSEClientTransport, error) {
	if def.URL == "" {
		return nil, fmt.Errorf("SSE transport requires url")
	}
	transport := &mcpsdk.SSEClientTransport{
		Endpoint: def.URL,
	}
	if len(def.Headers) > 0 {
		transport.HTTPClient = buildHTTPClient(def.Headers)
	}
	return transport, nil
}

// buildHTTPClient creates an http.Client that attaches the configured
// headers to every request.
func buildHTTPClient(headers map[string]string) *http.Client {
	return &http.Client{
		Transport: &headerTransport{
			base:    http.DefaultTransport,
			headers: headers,
		},
	}
}

// headerTransport wraps an http.RoundTripper to add static headers.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}
