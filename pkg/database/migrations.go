package database

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect/sql"
)

// CreateGINIndexes creates full-text search GIN indexes for PostgreSQL.
// These enable efficient full-text search over conversation content and
// session titles, which Ent schema indexes cannot express.
func CreateGINIndexes(ctx context.Context, driver *sql.Driver) error {
	db := driver.DB()

	_, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_s_message_rel_content_gin
		ON s_message_rel USING gin(to_tsvector('english', content))`)
	if err != nil {
		return fmt.Errorf("failed to create message content GIN index: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_s_session_title_gin
		ON s_session USING gin(to_tsvector('english', COALESCE(title, '')))`)
	if err != nil {
		return fmt.Errorf("failed to create session title GIN index: %w", err)
	}

	return nil
}
