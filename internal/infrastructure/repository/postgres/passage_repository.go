package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/humaninbinary-alt/TahlilchiAI/internal/core/domain"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// PassageRepository is the durable statute corpus. The retrieval pipeline
// only reads it; writes happen at ingestion time.
type PassageRepository struct {
	db *sql.DB
}

func NewPassageRepository(db *sql.DB) *PassageRepository {
	return &PassageRepository{db: db}
}

func (r *PassageRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026062001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS passages (
	id TEXT PRIMARY KEY,
	category TEXT NOT NULL,
	article TEXT NOT NULL,
	text TEXT NOT NULL,
	language TEXT NOT NULL,
	keywords JSONB NOT NULL DEFAULT '[]',
	cross_refs JSONB NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_passages_category ON passages (category);

CREATE TABLE IF NOT EXISTS conversations (
	conversation_id TEXT PRIMARY KEY,
	current_seq INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS conversation_turns (
	id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	seq INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_conversation ON conversation_turns (conversation_id, seq, created_at);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return tx.Commit()
}

func (r *PassageRepository) GetByID(ctx context.Context, id string) (*domain.Passage, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, category, article, text, language, keywords, cross_refs
FROM passages
WHERE id = $1
`, id)

	var (
		passage      domain.Passage
		category     string
		keywordsRaw  []byte
		crossRefsRaw []byte
	)
	if err := row.Scan(
		&passage.ID,
		&category,
		&passage.Article,
		&passage.Text,
		&passage.Language,
		&keywordsRaw,
		&crossRefsRaw,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrPassageNotFound, "get passage", err)
		}
		return nil, fmt.Errorf("get passage: %w", err)
	}

	passage.Category = domain.ParseLawCategory(category)
	if err := json.Unmarshal(keywordsRaw, &passage.Keywords); err != nil {
		return nil, fmt.Errorf("decode passage keywords: %w", err)
	}
	if err := json.Unmarshal(crossRefsRaw, &passage.CrossRefs); err != nil {
		return nil, fmt.Errorf("decode passage cross refs: %w", err)
	}
	return &passage, nil
}

func (r *PassageRepository) UpsertPassages(ctx context.Context, passages []domain.Passage) error {
	if len(passages) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for _, passage := range passages {
		keywords, err := json.Marshal(passage.Keywords)
		if err != nil {
			return fmt.Errorf("encode passage keywords: %w", err)
		}
		crossRefs, err := json.Marshal(passage.CrossRefs)
		if err != nil {
			return fmt.Errorf("encode passage cross refs: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO passages (id, category, article, text, language, keywords, cross_refs, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
	category = EXCLUDED.category,
	article = EXCLUDED.article,
	text = EXCLUDED.text,
	language = EXCLUDED.language,
	keywords = EXCLUDED.keywords,
	cross_refs = EXCLUDED.cross_refs
`, passage.ID, string(passage.Category), passage.Article, passage.Text, passage.Language, keywords, crossRefs, now); err != nil {
			return fmt.Errorf("upsert passage %s: %w", passage.ID, err)
		}
	}
	return tx.Commit()
}
