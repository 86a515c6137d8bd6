package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataagent-io/dataagent/pkg/config"
)

func sseServer(t *testing.T, lines []string, capture *chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		if capture != nil {
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(body, capture))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			fmt.Fprintf(w, "data: %s\n\n", line)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func newTestBackend(t *testing.T, url string) *OpenAIBackend {
	t.Helper()
	backend, err := NewOpenAIBackend(&config.LLMProviderConfig{
		Type:    config.ProviderOpenAICompatible,
		Model:   "test-model",
		BaseURL: url + "/v1",
	})
	require.NoError(t, err)
	return backend
}

func collect(t *testing.T, chunks <-chan Chunk, errs <-chan error) []Chunk {
	t.Helper()
	var out []Chunk
	for c := range chunks {
		out = append(out, c)
	}
	require.NoError(t, <-errs)
	return out
}

func TestOpenAIStreamText(t *testing.T) {
	srv := sseServer(t, []string{
		`{"choices":[{"delta":{"content":"Hello"}}]}`,
		`{"choices":[{"delta":{"content":" world"}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
		`{"choices":[],"usage":{"prompt_tokens":12,"completion_tokens":4,"total_tokens":16}}`,
	}, nil)
	defer srv.Close()

	backend := newTestBackend(t, srv.URL)
	chunks, errs := backend.Stream(context.Background(), Request{
		SessionID: "s1",
		Messages:  []Message{{Role: RoleUser, Content: "hi"}},
	})

	got := collect(t, chunks, errs)
	require.Len(t, got, 4)
	assert.Equal(t, "Hello", got[0].TextDelta)
	assert.Equal(t, " world", got[1].TextDelta)
	assert.Equal(t, "stop", got[2].FinishReason)
	require.NotNil(t, got[3].Usage)
	assert.Equal(t, 16, got[3].Usage.TotalTokens)
}

func TestOpenAIStreamToolCallFragments(t *testing.T) {
	srv := sseServer(t, []string{
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"read_file","arguments":"{\"pa"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"th\":\"a.txt\"}"}}]}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
	}, nil)
	defer srv.Close()

	backend := newTestBackend(t, srv.URL)
	chunks, errs := backend.Stream(context.Background(), Request{SessionID: "s1"})

	got := collect(t, chunks, errs)
	require.Len(t, got, 3)

	first := got[0].ToolCall
	require.NotNil(t, first)
	require.NotNil(t, first.Index)
	assert.Equal(t, 0, *first.Index)
	assert.Equal(t, "call_1", first.ID)
	assert.Equal(t, "read_file", first.Name)
	assert.Equal(t, `{"pa`, first.ArgsFragment)

	second := got[1].ToolCall
	require.NotNil(t, second)
	assert.Empty(t, second.ID)
	assert.Equal(t, `th":"a.txt"}`, second.ArgsFragment)

	assert.Equal(t, "tool_calls", got[2].FinishReason)
}

func TestOpenAIRequestEncoding(t *testing.T) {
	var captured chatRequest
	srv := sseServer(t, nil, &captured)
	defer srv.Close()

	backend := newTestBackend(t, srv.URL)
	chunks, errs := backend.Stream(context.Background(), Request{
		SessionID: "s1",
		Messages: []Message{
			{Role: RoleSystem, Content: "be helpful"},
			{Role: RoleUser, Content: "list it"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call_1", Name: "list_dir", Arguments: `{"path":"~"}`}}},
			{Role: RoleTool, ToolCallID: "call_1", Content: "[]"},
		},
		Tools: []ToolDef{{
			Name:        "list_dir",
			Description: "List directory entries",
			InputSchema: map[string]any{"type": "object"},
		}},
	})
	collect(t, chunks, errs)

	assert.Equal(t, "test-model", captured.Model)
	assert.True(t, captured.Stream)
	require.NotNil(t, captured.StreamOptions)
	assert.True(t, captured.StreamOptions.IncludeUsage)

	require.Len(t, captured.Messages, 4)
	assert.Equal(t, "system", captured.Messages[0].Role)
	require.Len(t, captured.Messages[2].ToolCalls, 1)
	assert.Equal(t, "function", captured.Messages[2].ToolCalls[0].Type)
	assert.Equal(t, "list_dir", captured.Messages[2].ToolCalls[0].Function.Name)
	assert.Equal(t, "call_1", captured.Messages[3].ToolCallID)

	require.Len(t, captured.Tools, 1)
	assert.Equal(t, "list_dir", captured.Tools[0].Function.Name)
}

func TestOpenAIStreamAPIError(t *testing.T) {
	srv := sseServer(t, []string{
		`{"error":{"message":"model overloaded","type":"server_error"}}`,
	}, nil)
	defer srv.Close()

	backend := newTestBackend(t, srv.URL)
	chunks, errs := backend.Stream(context.Background(), Request{SessionID: "s1"})
	for range chunks {
	}
	err := <-errs
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestOpenAIStreamHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	backend := newTestBackend(t, srv.URL)
	chunks, errs := backend.Stream(context.Background(), Request{SessionID: "s1"})
	for range chunks {
	}
	err := <-errs
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestNewOpenAIBackendMissingKey(t *testing.T) {
	t.Setenv("DA_TEST_ABSENT_KEY", "")
	_, err := NewOpenAIBackend(&config.LLMProviderConfig{
		Type:      config.ProviderOpenAI,
		Model:     "gpt-4o",
		APIKeyEnv: "DA_TEST_ABSENT_KEY",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DA_TEST_ABSENT_KEY")
}
