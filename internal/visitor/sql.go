package visitor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// dialect holds the statements that differ between SQL backends.
type dialect struct {
	name   string
	schema []string
	upsert string
}

// sqlStore serves both database/sql backends; timestamps are unix
// milliseconds so expiry comparisons behave the same everywhere.
type sqlStore struct {
	db *sql.DB
	d  dialect
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect) (*sqlStore, error) {
	for _, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("%s: failed to create schema: %w", d.name, err)
		}
	}
	return &sqlStore{db: db, d: d}, nil
}

func (s *sqlStore) Save(ctx context.Context, rec *Record) error {
	cookies, err := json.Marshal(rec.Cookies)
	if err != nil {
		return fmt.Errorf("%s: encode cookies: %w", s.d.name, err)
	}
	_, err = s.db.ExecContext(ctx, s.d.upsert,
		rec.ID,
		string(cookies),
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
		return fmt.Errorf("%s: failed to save visitor: %w", s.d.name, err)
	}
	return nil
}

func (s *sqlStore) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT id, cookies, lang, user_agent, browser, os, device_type,
		   created_at, last_seen, expires_at
	FROM visitors
	WHERE id = ? AND (expires_at = 0 OR expires_at > ?)`,
		id, time.Now().UnixMilli(),
	)

	var (
		rec                            Record
		cookies                        string
		createdAt, lastSeen, expiresAt int64
	)
	err := row.Scan(
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
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get visitor: %w", s.d.name, err)
	}
	if cookies != "" {
		if err := json.Unmarshal([]byte(cookies), &rec.Cookies); err != nil {
			return nil, fmt.Errorf("%s: decode cookies: %w", s.d.name, err)
		}
	}
	rec.CreatedAt = fromMillis(createdAt)
	rec.LastSeen = fromMillis(lastSeen)
	rec.ExpiresAt = fromMillis(expiresAt)
	return &rec, nil
}

func (s *sqlStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM visitors WHERE id = ?", id); err != nil {
		return fmt.Errorf("%s: failed to delete visitor: %w", s.d.name, err)
	}
	return nil
}

func (s *sqlStore) Touch(ctx context.Context, id string, seen time.Time, ttl time.Duration) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE visitors SET last_seen = ?, expires_at = ? WHERE id = ?",
		toMillis(seen), toMillis(seen.Add(ttl)), id,
	)
	if err != nil {
		return fmt.Errorf("%s: failed to touch visitor: %w", s.d.name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlStore) Purge(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM visitors WHERE expires_at <> 0 AND expires_at <= ?",
		now.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to purge visitors: %w", s.d.name, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
