package services

import (
	"context"
	"testing"
	"time"

	"github.com/dataagent-io/dataagent/ent/session"
	"github.com/dataagent-io/dataagent/pkg/models"
	testdb "github.com/dataagent-io/dataagent/test/database"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUser(t *testing.T, users *UserService, userID string) {
	t.Helper()
	_, err := users.EnsureUser(context.Background(), userID)
	require.NoError(t, err)
}

func TestSessionService_CreateSession(t *testing.T) {
	client := testdb.NewTestClient(t)
	users := NewUserService(client.Client)
	service := NewSessionService(client.Client)
	ctx := context.Background()

	seedUser(t, users, "alice")

	t.Run("creates session with defaults", func(t *testing.T) {
		req := models.CreateSessionRequest{
			SessionID:   uuid.New().String(),
			UserID:      "alice",
			AssistantID: "default",
		}

		sess, err := service.CreateSession(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, req.SessionID, sess.ID)
		assert.Equal(t, "alice", sess.UserID)
		assert.Equal(t, "default", sess.AgentID)
		assert.Equal(t, session.StatusActive, sess.Status)
		assert.False(t, sess.LastActiveAt.IsZero())
	})

	t.Run("generates session id when absent", func(t *testing.T) {
		sess, err := service.CreateSession(ctx, models.CreateSessionRequest{
			UserID:      "alice",
			AssistantID: "default",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, sess.ID)
	})

	t.Run("validates required fields", func(t *testing.T) {
		_, err := service.CreateSession(ctx, models.CreateSessionRequest{AssistantID: "default"})
		require.Error(t, err)
		assert.True(t, IsValidationError(err))

		_, err = service.CreateSession(ctx, models.CreateSessionRequest{UserID: "alice"})
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
	})

	t.Run("rejects duplicate session id", func(t *testing.T) {
		req := models.CreateSessionRequest{
			SessionID:   uuid.New().String(),
			UserID:      "alice",
			AssistantID: "default",
		}
		_, err := service.CreateSession(ctx, req)
		require.NoError(t, err)

		_, err = service.CreateSession(ctx, req)
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("stores metadata", func(t *testing.T) {
		sess, err := service.CreateSession(ctx, models.CreateSessionRequest{
			UserID:      "alice",
			AssistantID: "default",
			Metadata:    map[string]any{"source": "cli"},
		})
		require.NoError(t, err)
		assert.Equal(t, "cli", sess.SessionMetadata["source"])
	})
}

func TestSessionService_GetOrCreateSession(t *testing.T) {
	client := testdb.NewTestClient(t)
	users := NewUserService(client.Client)
	service := NewSessionService(client.Client)
	ctx := context.Background()

	seedUser(t, users, "alice")
	seedUser(t, users, "bob")

	t.Run("returns existing session", func(t *testing.T) {
		created, err := service.CreateSession(ctx, models.CreateSessionRequest{
			UserID:      "alice",
			AssistantID: "default",
		})
		require.NoError(t, err)

		got, err := service.GetOrCreateSession(ctx, models.CreateSessionRequest{
			SessionID:   created.ID,
			UserID:      "alice",
			AssistantID: "default",
		})
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("creates when unknown id supplied", func(t *testing.T) {
		id := uuid.New().String()
		got, err := service.GetOrCreateSession(ctx, models.CreateSessionRequest{
			SessionID:   id,
			UserID:      "alice",
			AssistantID: "default",
		})
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
	})

	t.Run("hides other users' sessions", func(t *testing.T) {
		created, err := service.CreateSession(ctx, models.CreateSessionRequest{
			UserID:      "alice",
			AssistantID: "default",
		})
		require.NoError(t, err)

		_, err = service.GetOrCreateSession(ctx, models.CreateSessionRequest{
			SessionID:   created.ID,
			UserID:      "bob",
			AssistantID: "default",
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSessionService_ListSessions(t *testing.T) {
	client := testdb.NewTestClient(t)
	users := NewUserService(client.Client)
	service := NewSessionService(client.Client)
	ctx := context.Background()

	seedUser(t, users, "alice")
	seedUser(t, users, "bob")

	for i := 0; i < 5; i++ {
		_, err := service.CreateSession(ctx, models.CreateSessionRequest{
			UserID:      "alice",
			AssistantID: "default",
		})
		require.NoError(t, err)
	}
	_, err := service.CreateSession(ctx, models.CreateSessionRequest{
		UserID:      "bob",
		AssistantID: "default",
	})
	require.NoError(t, err)

	t.Run("scopes to user", func(t *testing.T) {
		sessions, total, err := service.ListSessions(ctx, models.SessionFilters{UserID: "alice"})
		require.NoError(t, err)
		assert.Equal(t, 5, total)
		assert.Len(t, sessions, 5)
		for _, s := range sessions {
			assert.Equal(t, "alice", s.UserID)
		}
	})

	t.Run("paginates", func(t *testing.T) {
		page, total, err := service.ListSessions(ctx, models.SessionFilters{
			UserID: "alice",
			Limit:  2,
			Offset: 2,
		})
		require.NoError(t, err)
		assert.Equal(t, 5, total)
		assert.Len(t, page, 2)
	})

	t.Run("requires user id", func(t *testing.T) {
		_, _, err := service.ListSessions(ctx, models.SessionFilters{})
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
	})

	t.Run("excludes ended sessions by default", func(t *testing.T) {
		sessions, _, err := service.ListSessions(ctx, models.SessionFilters{UserID: "alice"})
		require.NoError(t, err)
		require.NotEmpty(t, sessions)

		_, err = service.EndSession(ctx, sessions[0].ID)
		require.NoError(t, err)

		active, total, err := service.ListSessions(ctx, models.SessionFilters{UserID: "alice"})
		require.NoError(t, err)
		assert.Equal(t, 4, total)
		assert.Len(t, active, 4)

		all, _, err := service.ListSessions(ctx, models.SessionFilters{
			UserID:          "alice",
			IncludeArchived: true,
		})
		require.NoError(t, err)
		assert.Len(t, all, 5)
	})
}

func TestSessionService_Lifecycle(t *testing.T) {
	client := testdb.NewTestClient(t)
	users := NewUserService(client.Client)
	service := NewSessionService(client.Client)
	ctx := context.Background()

	seedUser(t, users, "alice")

	t.Run("touch bumps last_active_at", func(t *testing.T) {
		sess, err := service.CreateSession(ctx, models.CreateSessionRequest{
			UserID:      "alice",
			AssistantID: "default",
		})
		require.NoError(t, err)

		time.Sleep(10 * time.Millisecond)
		require.NoError(t, service.TouchSession(ctx, sess.ID))

		got, err := service.GetSession(ctx, sess.ID)
		require.NoError(t, err)
		assert.True(t, got.LastActiveAt.After(sess.LastActiveAt))
	})

	t.Run("touch unknown session", func(t *testing.T) {
		err := service.TouchSession(ctx, "no-such-session")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("soft delete hides the session", func(t *testing.T) {
		sess, err := service.CreateSession(ctx, models.CreateSessionRequest{
			UserID:      "alice",
			AssistantID: "default",
		})
		require.NoError(t, err)

		require.NoError(t, service.DeleteSession(ctx, sess.ID))

		_, err = service.GetSession(ctx, sess.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		// Second delete is a not-found, not a crash
		assert.ErrorIs(t, service.DeleteSession(ctx, sess.ID), ErrNotFound)
	})

	t.Run("update title", func(t *testing.T) {
		sess, err := service.CreateSession(ctx, models.CreateSessionRequest{
			UserID:      "alice",
			AssistantID: "default",
		})
		require.NoError(t, err)

		updated, err := service.UpdateTitle(ctx, sess.ID, "Disk usage investigation")
		require.NoError(t, err)
		require.NotNil(t, updated.Title)
		assert.Equal(t, "Disk usage investigation", *updated.Title)
	})
}

func TestSessionService_ExpireIdleSessions(t *testing.T) {
	client := testdb.NewTestClient(t)
	users := NewUserService(client.Client)
	service := NewSessionService(client.Client)
	ctx := context.Background()

	seedUser(t, users, "alice")

	stale, err := service.CreateSession(ctx, models.CreateSessionRequest{
		UserID:      "alice",
		AssistantID: "default",
	})
	require.NoError(t, err)

	fresh, err := service.CreateSession(ctx, models.CreateSessionRequest{
		UserID:      "alice",
		AssistantID: "default",
	})
	require.NoError(t, err)

	// Age the stale session directly
	_, err = client.Session.UpdateOneID(stale.ID).
		SetLastActiveAt(time.Now().Add(-2 * time.Hour)).
		Save(ctx)
	require.NoError(t, err)

	n, err := service.ExpireIdleSessions(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := service.GetSession(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusExpired, got.Status)

	got, err = service.GetSession(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusActive, got.Status)
}
