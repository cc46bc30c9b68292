package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/AkbarHusein/google-maps-place-crawler/internal/place"
)

type MySQLConfig struct {
	Host     string
	User     string
	Password string
	Name     string
}

// Enabled reports whether a database was configured at all.
func (c MySQLConfig) Enabled() bool {
	return strings.TrimSpace(c.Host) != ""
}

func (c MySQLConfig) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = c.Host
	cfg.DBName = c.Name
	cfg.ParseTime = true
	cfg.Loc = time.Local
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// MySQL mirrors each crawl into a places table, one row per place, tagged
// with the keyword that found it. Rows are appended; nothing is deduplicated.
type MySQL struct {
	db      *sql.DB
	keyword string
	now     func() time.Time
}

func OpenMySQL(ctx context.Context, cfg MySQLConfig, keyword string) (*MySQL, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	if err := ensurePlacesTable(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create places table: %w", err)
	}
	return &MySQL{db: db, keyword: keyword, now: time.Now}, nil
}

func (m *MySQL) Name() string { return "mysql" }

func (m *MySQL) Close() error { return m.db.Close() }

func ensurePlacesTable(ctx context.Context, db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS places (
  id BIGINT AUTO_INCREMENT PRIMARY KEY,
  keyword VARCHAR(255) NOT NULL,
  position INT NOT NULL,
  name VARCHAR(255) NULL,
  link TEXT NOT NULL,
  address VARCHAR(512) NULL,
  scraped_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
  KEY idx_keyword (keyword)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`
	_, err := db.ExecContext(ctx, ddl)
	return err
}

// Save inserts the collection in one transaction, so a crawl lands in full or
// not at all.
func (m *MySQL) Save(ctx context.Context, places []place.Place) error {
	if len(places) == 0 {
		return nil
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const stmt = `
INSERT INTO places (keyword, position, name, link, address, scraped_at)
VALUES (?, ?, ?, ?, ?, ?)`
	prepared, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		return err
	}
	defer prepared.Close()

	now := m.now()
	for i, p := range places {
		if _, err := prepared.ExecContext(ctx,
			m.keyword,
			i,
			nullString(p.Name),
			p.Link,
			nullString(p.Address),
			now,
		); err != nil {
			return fmt.Errorf("insert %s: %w", p.Link, err)
		}
	}
	return tx.Commit()
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
