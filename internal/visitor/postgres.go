package visitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS visitors (
	id          TEXT PRIMARY KEY,
	cookies     JSONB NOT NULL DEFAULT '[]',
	lang        TEXT NOT NULL DEFAULT '',
	user_agent  TEXT NOT NULL DEFAULT '',
	browser     TEXT NOT NULL DEFAULT '',
	os          TEXT NOT NULL DEFAULT '',
	device_type TEXT NOT NULL DEFAULT '',
	created_at  BIGINT NOT NULL,
	last_seen   BIGINT NOT NULL,
	expires_at  BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_visitors_expires ON visitors (expires_at);
`

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: failed to connect: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: failed to create schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Save(ctx context.Context, rec *Record) error {
	cookies, err := json.Marshal(rec.Cookies)
	if err != nil {
		return fmt.Errorf("postgres: encode cookies: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
	INSERT INTO visitors (
		id, cookies, lang, user_agent, browser, os, device_type,
		created_at, last_seen, expires_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id) DO UPDATE SET
		cookies = EXCLUDED.cookies,
		lang = EXCLUDED.lang,
		user_agent = EXCLUDED.user_agent,
		browser = EXCLUDED.browser,
		os = EXCLUDED.os,
		device_type = EXCLUDED.device_type,
		last_seen = EXCLUDED.last_seen,
		expires_at = EXCLUDED.expires_at`,
		rec.ID,
		cookies,
		rec.Lang,
		rec.UserAgent,
		rec.Browser,
		rec.OS,
		rec.DeviceType,
		toMillis(rec.CreatedAt),
		toMillis(rec.LastSeen),
		toMillis(rec.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to save visitor: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	var (
		rec                            Record
		cookies                        []byte
		createdAt, lastSeen, expiresAt int64
	)
	err := s.pool.QueryRow(ctx, `
	SELECT id, cookies, lang, user_agent, browser, os, device_type,
		   created_at, last_seen, expires_at
	FROM visitors
	WHERE id = $1 AND (expires_at = 0 OR expires_at > $2)`,
		id, time.Now().UnixMilli(),
	).Scan(
		&rec.ID,
		&cookies,
		&rec.Lang,
		&rec.UserAgent,
		&rec.Browser,
		&rec.OS,
		&rec.DeviceType,
		&createdAt,
		&lastSeen,
		&expiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to get visitor: %w", err)
	}
	if len(cookies) > 0 {
		if err := json.Unmarshal(cookies, &rec.Cookies); err != nil {
			return nil, fmt.Errorf("postgres: decode cookies: %w", err)
		}
	}
	rec.CreatedAt = fromMillis(createdAt)
	rec.LastSeen = fromMillis(lastSeen)
	rec.ExpiresAt = fromMillis(expiresAt)
	return &rec, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM visitors WHERE id = $1", id); err != nil {
		return fmt.Errorf("postgres: failed to delete visitor: %w", err)
	}
	return nil
}

func (s *PostgresStore) Touch(ctx context.Context, id string, seen time.Time, ttl time.Duration) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE visitors SET last_seen = $1, expires_at = $2 WHERE id = $3",
		toMillis(seen), toMillis(seen.Add(ttl)), id,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to touch visitor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Purge(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM visitors WHERE expires_at <> 0 AND expires_at <= $1",
		now.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to purge visitors: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
