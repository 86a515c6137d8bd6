package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dataagent-io/dataagent/ent"
	"github.com/dataagent-io/dataagent/ent/session"
	"github.com/dataagent-io/dataagent/pkg/models"
	"github.com/google/uuid"
)

// SessionService manages conversation session lifecycle
type SessionService struct {
	client *ent.Client
}

// NewSessionService creates a new SessionService
func NewSessionService(client *ent.Client) *SessionService {
	return &SessionService{client: client}
}

// CreateSession creates a new session for a user. SessionID may be
// pre-assigned by the client; when empty one is generated.
func (s *SessionService) CreateSession(httpCtx context.Context, req models.CreateSessionRequest) (*ent.Session, error) {
	if req.UserID == "" {
		return nil, NewValidationError("user_id", "required")
	}
	if req.AssistantID == "" {
		return nil, NewValidationError("assistant_id", "required")
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	// Use background context with timeout for critical write
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	builder := s.client.Session.Create().
		SetID(sessionID).
		SetUserID(req.UserID).
		SetAgentID(req.AssistantID).
		SetStatus(session.StatusActive).
		SetCreatedAt(time.Now()).
		SetLastActiveAt(time.Now())

	if req.Metadata != nil {
		builder.SetSessionMetadata(req.Metadata)
	}

	created, err := builder.Save(ctx)
	if err != nil {
		if ent.IsConstraintError(err) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return created, nil
}

// GetSession retrieves a session by ID. Soft-deleted sessions are not found.
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*ent.Session, error) {
	sess, err := s.client.Session.Query().
		Where(
			session.IDEQ(sessionID),
			session.DeletedAtIsNil(),
		).
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return sess, nil
}

// GetOrCreateSession fetches the session or creates it when absent.
// Returns ErrNotFound if the session exists but belongs to another user.
func (s *SessionService) GetOrCreateSession(ctx context.Context, req models.CreateSessionRequest) (*ent.Session, error) {
	if req.SessionID != "" {
		sess, err := s.GetSession(ctx, req.SessionID)
		if err == nil {
			if sess.UserID != req.UserID {
				return nil, ErrNotFound
			}
			return sess, nil
		}
		if err != ErrNotFound {
			return nil, err
		}
	}
	return s.CreateSession(ctx, req)
}

// ListSessions lists a user's sessions, most recently active first.
// Soft-deleted sessions are excluded.
func (s *SessionService) ListSessions(ctx context.Context, filters models.SessionFilters) ([]*ent.Session, int, error) {
	if filters.UserID == "" {
		return nil, 0, NewValidationError("user_id", "required")
	}

	query := s.client.Session.Query().
		Where(
			session.UserIDEQ(filters.UserID),
			session.DeletedAtIsNil(),
		)

	if filters.AssistantID != "" {
		query = query.Where(session.AgentIDEQ(filters.AssistantID))
	}
	if !filters.IncludeArchived {
		query = query.Where(session.StatusEQ(session.StatusActive))
	}

	total, err := query.Clone().Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	limit := filters.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	sessions, err := query.
		Order(ent.Desc(session.FieldLastActiveAt)).
		Limit(limit).
		Offset(filters.Offset).
		All(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	return sessions, total, nil
}

// TouchSession bumps last_active_at; called on every inbound message
func (s *SessionService) TouchSession(ctx context.Context, sessionID string) error {
	n, err := s.client.Session.Update().
		Where(session.IDEQ(sessionID), session.DeletedAtIsNil()).
		SetLastActiveAt(time.Now()).
		Save(ctx)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateTitle sets a human-readable title on the session
func (s *SessionService) UpdateTitle(ctx context.Context, sessionID, title string) (*ent.Session, error) {
	sess, err := s.client.Session.UpdateOneID(sessionID).
		SetTitle(title).
		Save(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update session title: %w", err)
	}
	return sess, nil
}

// EndSession marks a session as ended
func (s *SessionService) EndSession(ctx context.Context, sessionID string) (*ent.Session, error) {
	sess, err := s.client.Session.UpdateOneID(sessionID).
		SetStatus(session.StatusEnded).
		Save(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to end session: %w", err)
	}
	return sess, nil
}

// DeleteSession soft-deletes a session. History rows stay until the
// retention sweep hard-deletes the session.
func (s *SessionService) DeleteSession(ctx context.Context, sessionID string) error {
	n, err := s.client.Session.Update().
		Where(session.IDEQ(sessionID), session.DeletedAtIsNil()).
		SetDeletedAt(time.Now()).
		SetStatus(session.StatusEnded).
		Save(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ExpireIdleSessions marks active sessions idle for longer than maxIdle
// as expired. Returns the number of sessions expired.
func (s *SessionService) ExpireIdleSessions(ctx context.Context, maxIdle time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxIdle)
	n, err := s.client.Session.Update().
		Where(
			session.StatusEQ(session.StatusActive),
			session.LastActiveAtLT(cutoff),
			session.DeletedAtIsNil(),
		).
		SetStatus(session.StatusExpired).
		Save(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to expire idle sessions: %w", err)
	}
	return n, nil
}

// PurgeDeletedSessions hard-deletes sessions soft-deleted before the cutoff.
// Message rows cascade.
func (s *SessionService) PurgeDeletedSessions(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	n, err := s.client.Session.Delete().
		Where(
			session.DeletedAtNotNil(),
			session.DeletedAtLT(cutoff),
		).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to purge deleted sessions: %w", err)
	}
	return n, nil
}
