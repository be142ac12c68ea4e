package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ensureSchema creates the vector extension and the chunk table.
// The embedding column is left unsized so any embedding model fits.
func ensureSchema(ctx context.Context, db *sql.DB, table string) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id SERIAL PRIMARY KEY,
			chunk_id TEXT NOT NULL,
			text TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			embedding vector
		)`, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (chunk_id)`, indexName(table, "chunk_id"), table),
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
