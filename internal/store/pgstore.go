package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/katakuxiko/docqa/internal/model"
)

// PgStore keeps chunks in a Postgres table using the pgvector extension.
type PgStore struct {
	db    *sql.DB
	table string
}

// NewPgStore connects to Postgres and makes sure the table for class exists.
func NewPgStore(ctx context.Context, conn, class string) (*PgStore, error) {
	db, err := sql.Open("postgres", conn)
	if err != nil {
		return nil, err
	}
	table := tableName(class)
	if err := ensureSchema(ctx, db, table); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &PgStore{db: db, table: table}, nil
}

func (s *PgStore) Add(ctx context.Context, chunks []model.Chunk, vectors [][]float32) error {
	if err := checkBatch(chunks, vectors); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (chunk_id, text, metadata, embedding) VALUES ($1, $2, $3, $4::vector)`, s.table))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, c := range chunks {
		md, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata of chunk %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.Text, md, floatsToPgVectorLiteral(vectors[i])); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PgStore) Search(ctx context.Context, q []float32, k int) ([]model.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT chunk_id, text, metadata
		FROM %s
		ORDER BY embedding <=> $1::vector
		LIMIT $2
	`, s.table), floatsToPgVectorLiteral(q), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []model.Chunk
	for rows.Next() {
		var (
			c  model.Chunk
			md []byte
		)
		if err := rows.Scan(&c.ID, &c.Text, &md); err != nil {
			return nil, err
		}
		if len(md) > 0 {
			if err := json.Unmarshal(md, &c.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata of %s: %w", c.ID, err)
			}
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (s *PgStore) Close() error {
	return s.db.Close()
}

func tableName(class string) string {
	return pq.QuoteIdentifier(strings.ToLower(class) + "_chunks")
}

func indexName(table, column string) string {
	return pq.QuoteIdentifier(strings.Trim(table, `"`) + "_" + column + "_idx")
}

func floatsToPgVectorLiteral(v []float32) string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, f := range v {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(strconv.FormatFloat(float64(f), 'f', 6, 32))
	}
	sb.WriteString("]")
	return sb.String()
}
