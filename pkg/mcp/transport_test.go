package mcp

import (
	"net/http"
	"net/http/httptest"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataagent-io/dataagent/pkg/models"
)

func TestCreateTransportStdio(t *testing.T) {
	def := &models.MCPServerDefinition{
		Command: "npx",
		Args:    []string{"-y", "@modelcontextprotocol/server-filesystem"},
		Env:     map[string]string{"HOME_DIR": "/data"},
	}

	transport, err := createTransport(def)
	require.NoError(t, err)

	cmdTransport, ok := transport.(*mcpsdk.CommandTransport)
	require.True(t, ok)
	// exec.Command resolves the full path, so check Args for the extras
	assert.Contains(t, cmdTransport.Command.Path, "npx")
	assert.Contains(t, cmdTransport.Command.Args, "-y")

	found := false
	for _, e := range cmdTransport.Command.Env {
		if e == "HOME_DIR=/data" {
			found = true
			break
		}
	}
	assert.True(t, found, "expected HOME_DIR env override in command environment")
}

func TestCreateTransportStreamableHTTP(t *testing.T) {
	def := &models.MCPServerDefinition{
		URL:       "https://mcp.example.com/rpc",
		Transport: models.MCPTransportStreamableHTTP,
	}

	transport, err := createTransport(def)
	require.NoError(t, err)

	httpTransport, ok := transport.(*mcpsdk.StreamableClientTransport)
	require.True(t, ok)
	assert.Equal(t, "https://mcp.example.com/rpc", httpTransport.Endpoint)
	assert.Nil(t, httpTransport.HTTPClient, "no custom client without headers")
}

func TestCreateTransportSSE(t *testing.T) {
	def := &models.MCPServerDefinition{
		URL:       "https://mcp.example.com/sse",
		Transport: models.MCPTransportSSE,
	}

	transport, err := createTransport(def)
	require.NoError(t, err)

	sseTransport, ok := transport.(*mcpsdk.SSEClientTransport)
	require.True(t, ok)
	assert.Equal(t, "https://mcp.example.com/sse", sseTransport.Endpoint)
}

func TestCreateTransportErrors(t *testing.T) {
	tests := []struct {
		name string
		def  *models.MCPServerDefinition
	}{
		{"stdio without command", &models.MCPServerDefinition{}},
		{"http without url", &models.MCPServerDefinition{Transport: models.MCPTransportStreamableHTTP}},
		{"unknown transport", &models.MCPServerDefinition{URL: "https://x", Transport: "grpc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := createTransport(tt.def)
			assert.Error(t, err)
		})
	}
}

func TestHeaderTransportSetsHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer srv.Close()

	client := buildHTTPClient(map[string]string{
		"Authorization": "Bearer tok-123",
		"X-Tenant":      "acme",
	})
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer tok-123", got.Get("Authorization"))
	assert.Equal(t, "acme", got.Get("X-Tenant"))
}
