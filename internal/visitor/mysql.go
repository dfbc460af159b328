package visitor

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

type MySQLStore struct {
	*sqlStore
}

var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{`
	CREATE TABLE IF NOT EXISTS visitors (
		id          VARCHAR(64) PRIMARY KEY,
		cookies     TEXT NOT NULL,
		lang        VARCHAR(16) NOT NULL DEFAULT '',
		user_agent  TEXT NOT NULL,
		browser     VARCHAR(100) NOT NULL DEFAULT '',
		os          VARCHAR(100) NOT NULL DEFAULT '',
		device_type VARCHAR(20) NOT NULL DEFAULT '',
		created_at  BIGINT NOT NULL,
		last_seen   BIGINT NOT NULL,
		expires_at  BIGINT NOT NULL,

		INDEX idx_visitors_expires (expires_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
	upsert: `
	INSERT INTO visitors (
		id, cookies, lang, user_agent, browser, os, device_type,
		created_at, last_seen, expires_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
		cookies = VALUES(cookies),
		lang = VALUES(lang),
		user_agent = VALUES(user_agent),
		browser = VALUES(browser),
		os = VALUES(os),
		device_type = VALUES(device_type),
		last_seen = VALUES(last_seen),
		expires_at = VALUES(expires_at)`,
}

// NewMySQLStore connects with a DSN of the form user:password@tcp(host:port)/database.
func NewMySQLStore(ctx context.Context, dsn string) (*MySQLStore, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: invalid dsn: %w", err)
	}
	cfg.ParseTime = true

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql: failed to open database: %w", err)
	}
	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql: failed to connect: %w", err)
	}

	store, err := newSQLStore(ctx, db, mysqlDialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &MySQLStore{store}, nil
}
