package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dataagent-io/dataagent/pkg/config"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIBackend speaks the OpenAI chat-completions protocol, which also
// covers vLLM, Ollama, and most gateways (type openai_compatible).
type OpenAIBackend struct {
	model       string
	baseURL     string
	apiKey      string
	temperature *float64
	client      *http.Client
}

// NewOpenAIBackend creates a backend from an LLM provider configuration.
// The API key is read from the environment variable the config names.
func NewOpenAIBackend(cfg *config.LLMProviderConfig) (*OpenAIBackend, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	var apiKey string
	if cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("API key environment variable %s is not set", cfg.APIKeyEnv)
		}
	}

	return &OpenAIBackend{
		model:       cfg.Model,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		apiKey:      apiKey,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: 10 * time.Minute},
	}, nil
}

// Close implements Backend. The HTTP client needs no explicit cleanup.
func (b *OpenAIBackend) Close() error { return nil }

// Wire types for the chat-completions endpoint.

type chatRequest struct {
	Model         string             `json:"model"`
	Messages      []chatMessage      `json:"messages"`
	Tools         []chatTool         `json:"tools,omitempty"`
	Temperature   *float64           `json:"temperature,omitempty"`
	Stream        bool               `json:"stream"`
	StreamOptions *chatStreamOptions `json:"stream_options,omitempty"`
}

type chatStreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type chatTool struct {
	Type     string           `json:"type"`
	Function chatToolFunction `json:"function"`
}

type chatToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type chatToolCall struct {
	Index    *int             `json:"index,omitempty"`
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function chatCallFunction `json:"function"`
}

type chatCallFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type chatStreamResponse struct {
	Choices []chatStreamChoice `json:"choices"`
	Usage   *Usage             `json:"usage,omitempty"`
	Error   *chatError         `json:"error,omitempty"`
}

type chatStreamChoice struct {
	Delta        chatDelta `json:"delta"`
	FinishReason string    `json:"finish_reason"`
}

type chatDelta struct {
	Content   string         `json:"content"`
	ToolCalls []chatToolCall `json:"tool_calls"`
}

type chatError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

// Stream implements Backend over SSE.
func (b *OpenAIBackend) Stream(ctx context.Context, req Request) (<-chan Chunk, <-chan error) {
	chunks := make(chan Chunk, 100)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		if err := b.stream(ctx, req, chunks); err != nil {
			errs <- err
		}
	}()

	return chunks, errs
}

func (b *OpenAIBackend) stream(ctx context.Context, req Request, chunks chan<- Chunk) error {
	body, err := json.Marshal(b.buildRequest(req))
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to call LLM endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("LLM request failed with status %d: %s", resp.StatusCode, string(payload))
	}

	slog.Debug("LLM stream started", "session_id", req.SessionID, "model", b.model)

	// SSE: one "data: {json}" line per chunk, terminated by "data: [DONE]".
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var sr chatStreamResponse
		if err := json.Unmarshal([]byte(data), &sr); err != nil {
			return fmt.Errorf("failed to decode stream chunk: %w", err)
		}
		if sr.Error != nil {
			return fmt.Errorf("LLM API error: %s", sr.Error.Message)
		}

		for _, c := range b.convert(sr) {
			select {
			case chunks <- c:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read stream: %w", err)
	}
	return nil
}

func (b *OpenAIBackend) buildRequest(req Request) chatRequest {
	out := chatRequest{
		Model:         b.model,
		Temperature:   b.temperature,
		Stream:        true,
		StreamOptions: &chatStreamOptions{IncludeUsage: true},
	}
	for _, m := range req.Messages {
		cm := chatMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			cm.ToolCalls = append(cm.ToolCalls, chatToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: chatCallFunction{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out.Messages = append(out.Messages, cm)
	}
	for _, t := range req.Tools {
		out.Tools = append(out.Tools, chatTool{
			Type: "function",
			Function: chatToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}
	return out
}

// convert maps one wire chunk to zero or more backend chunks.
func (b *OpenAIBackend) convert(sr chatStreamResponse) []Chunk {
	var out []Chunk
	if len(sr.Choices) > 0 {
		choice := sr.Choices[0]
		if choice.Delta.Content != "" {
			out = append(out, Chunk{TextDelta: choice.Delta.Content})
		}
		for _, tc := range choice.Delta.ToolCalls {
			out = append(out, Chunk{ToolCall: &ToolCallDelta{
				Index:        tc.Index,
				ID:           tc.ID,
				Name:         tc.Function.Name,
				ArgsFragment: tc.Function.Arguments,
			}})
		}
		if choice.FinishReason != "" {
			out = append(out, Chunk{FinishReason: choice.FinishReason})
		}
	}
	if sr.Usage != nil {
		usage := *sr.Usage
		out = append(out, Chunk{Usage: &usage})
	}
	return out
}
