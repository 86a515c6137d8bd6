package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/dataagent-io/dataagent/ent"
	"github.com/dataagent-io/dataagent/ent/session"
	"github.com/dataagent-io/dataagent/pkg/config"
	"github.com/dataagent-io/dataagent/pkg/database"
	"github.com/dataagent-io/dataagent/pkg/models"
	"github.com/dataagent-io/dataagent/pkg/services"
	testdb "github.com/dataagent-io/dataagent/test/database"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSessionService(t *testing.T) (*database.Client, *services.SessionService) {
	t.Helper()
	client := testdb.NewTestClient(t)
	users := services.NewUserService(client.Client)
	_, err := users.EnsureUser(context.Background(), "alice")
	require.NoError(t, err)
	return client, services.NewSessionService(client.Client)
}

func retentionConfig() *config.RetentionConfig {
	return &config.RetentionConfig{
		SessionMaxIdle:       7 * 24 * time.Hour,
		SessionRetentionDays: 90,
		CleanupInterval:      1 * time.Hour,
	}
}

func createSession(t *testing.T, sessionService *services.SessionService) *ent.Session {
	t.Helper()
	sess, err := sessionService.CreateSession(context.Background(), models.CreateSessionRequest{
		SessionID:   uuid.New().String(),
		UserID:      "alice",
		AssistantID: "default",
	})
	require.NoError(t, err)
	return sess
}

func TestService_ExpiresIdleSessions(t *testing.T) {
	client, sessionService := setupSessionService(t)
	ctx := context.Background()

	stale := createSession(t, sessionService)
	fresh := createSession(t, sessionService)

	err := client.Session.UpdateOneID(stale.ID).
		SetLastActiveAt(time.Now().Add(-14 * 24 * time.Hour)).
		Exec(ctx)
	require.NoError(t, err)

	svc := NewService(retentionConfig(), sessionService, nil)
	svc.runAll(ctx)

	updated, err := sessionService.GetSession(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusExpired, updated.Status)

	updated, err = sessionService.GetSession(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusActive, updated.Status)
}

func TestService_PurgesOldDeletedSessions(t *testing.T) {
	client, sessionService := setupSessionService(t)
	ctx := context.Background()

	purgeable := createSession(t, sessionService)
	recentlyDeleted := createSession(t, sessionService)

	require.NoError(t, sessionService.DeleteSession(ctx, purgeable.ID))
	require.NoError(t, sessionService.DeleteSession(ctx, recentlyDeleted.ID))

	err := client.Session.UpdateOneID(purgeable.ID).
		SetDeletedAt(time.Now().Add(-120 * 24 * time.Hour)).
		Exec(ctx)
	require.NoError(t, err)

	svc := NewService(retentionConfig(), sessionService, nil)
	svc.runAll(ctx)

	exists, err := client.Session.Query().
		Where(session.ID(purgeable.ID)).
		Exist(ctx)
	require.NoError(t, err)
	assert.False(t, exists, "session past retention should be hard-deleted")

	exists, err = client.Session.Query().
		Where(session.ID(recentlyDeleted.ID)).
		Exist(ctx)
	require.NoError(t, err)
	assert.True(t, exists, "recently deleted session should still be retained")
}

func TestService_PreservesActiveSessions(t *testing.T) {
	client, sessionService := setupSessionService(t)
	ctx := context.Background()

	active := createSession(t, sessionService)

	svc := NewService(retentionConfig(), sessionService, nil)
	svc.runAll(ctx)

	updated, err := client.Session.Get(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusActive, updated.Status)
	assert.Nil(t, updated.DeletedAt)
}

func TestService_StartStop(t *testing.T) {
	_, sessionService := setupSessionService(t)

	cfg := retentionConfig()
	cfg.CleanupInterval = 10 * time.Millisecond
	svc := NewService(cfg, sessionService, nil)

	svc.Start(context.Background())
	svc.Start(context.Background()) // second Start is a no-op
	time.Sleep(50 * time.Millisecond)
	svc.Stop()
	svc.Stop() // second Stop is a no-op
}
