package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dataagent-io/dataagent/ent"
	"github.com/dataagent-io/dataagent/ent/message"
	"github.com/dataagent-io/dataagent/pkg/llm"
	"github.com/dataagent-io/dataagent/pkg/models"
	"github.com/google/uuid"
)

// appendRetries bounds retries when two writers race for the same
// sequence number slot.
const appendRetries = 3

// MessageService manages conversation history
type MessageService struct {
	client *ent.Client
}

// NewMessageService creates a new MessageService
func NewMessageService(client *ent.Client) *MessageService {
	return &MessageService{client: client}
}

// AppendMessage appends a message to a session's history, assigning the
// next sequence number transactionally. The unique (session_id,
// sequence_number) constraint backs the ordering guarantee; on a
// collision the allocation is retried.
func (s *MessageService) AppendMessage(_ context.Context, req models.CreateMessageRequest) (*ent.Message, error) {
	if req.SessionID == "" {
		return nil, NewValidationError("session_id", "required")
	}
	if req.Role == "" {
		return nil, NewValidationError("role", "required")
	}
	if req.Content == "" && len(req.ToolCalls) == 0 {
		return nil, NewValidationError("content", "required")
	}

	// Use background context with timeout for critical write
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < appendRetries; attempt++ {
		msg, err := s.appendOnce(ctx, req)
		if err == nil {
			return msg, nil
		}
		if !ent.IsConstraintError(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: sequence allocation for session %s: %v",
		ErrConcurrentModification, req.SessionID, lastErr)
}

func (s *MessageService) appendOnce(ctx context.Context, req models.CreateMessageRequest) (*ent.Message, error) {
	tx, err := s.client.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var next int
	last, err := tx.Message.Query().
		Where(message.SessionIDEQ(req.SessionID)).
		Order(ent.Desc(message.FieldSequenceNumber)).
		First(ctx)
	switch {
	case err == nil:
		next = last.SequenceNumber + 1
	case ent.IsNotFound(err):
		next = 1
	default:
		return nil, fmt.Errorf("failed to query last sequence number: %w", err)
	}

	builder := tx.Message.Create().
		SetID(uuid.New().String()).
		SetSessionID(req.SessionID).
		SetSequenceNumber(next).
		SetRole(message.Role(req.Role)).
		SetContent(req.Content).
		SetCreatedAt(time.Now())

	if len(req.ToolCalls) > 0 {
		builder.SetToolCalls(req.ToolCalls)
	}
	if req.ToolCallID != "" {
		builder.SetToolCallID(req.ToolCallID)
	}

	msg, err := builder.Save(ctx)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return msg, nil
}

// GetSessionMessages retrieves a session's messages in order with
// limit/offset pagination. Limit <= 0 means no limit.
func (s *MessageService) GetSessionMessages(ctx context.Context, sessionID string, filters models.MessageFilters) ([]*ent.Message, error) {
	query := s.client.Message.Query().
		Where(message.SessionIDEQ(sessionID)).
		Order(ent.Asc(message.FieldSequenceNumber)).
		Offset(filters.Offset)

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}

	messages, err := query.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get session messages: %w", err)
	}

	return messages, nil
}

// CountMessages returns the number of messages in a session
func (s *MessageService) CountMessages(ctx context.Context, sessionID string) (int, error) {
	n, err := s.client.Message.Query().
		Where(message.SessionIDEQ(sessionID)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}

// BuildHistory reconstructs the conversation in the shape the model
// backend consumes. Assistant tool calls and tool results survive the
// round trip so multi-round executions resume correctly.
func (s *MessageService) BuildHistory(ctx context.Context, sessionID string) ([]llm.Message, error) {
	messages, err := s.GetSessionMessages(ctx, sessionID, models.MessageFilters{})
	if err != nil {
		return nil, err
	}

	history := make([]llm.Message, 0, len(messages))
	for _, msg := range messages {
		m := llm.Message{
			Role:    llm.Role(msg.Role),
			Content: msg.Content,
		}
		if msg.ToolCallID != nil {
			m.ToolCallID = *msg.ToolCallID
		}
		for _, tc := range msg.ToolCalls {
			m.ToolCalls = append(m.ToolCalls, decodeToolCall(tc))
		}
		history = append(history, m)
	}

	return history, nil
}

func decodeToolCall(raw map[string]any) llm.ToolCall {
	tc := llm.ToolCall{}
	if id, ok := raw["id"].(string); ok {
		tc.ID = id
	}
	if name, ok := raw["name"].(string); ok {
		tc.Name = name
	}
	switch args := raw["arguments"].(type) {
	case string:
		tc.Arguments = args
	case map[string]any:
		if encoded, err := json.Marshal(args); err == nil {
			tc.Arguments = string(encoded)
		}
	}
	return tc
}

// EncodeToolCalls converts model tool calls to the persisted JSON shape
func EncodeToolCalls(calls []llm.ToolCall) []map[string]any {
	if len(calls) == 0 {
		return nil
	}
	out := make([]map[string]any, 0, len(calls))
	for _, c := range calls {
		out = append(out, map[string]any{
			"id":        c.ID,
			"name":      c.Name,
			"arguments": c.Arguments,
		})
	}
	return out
}
