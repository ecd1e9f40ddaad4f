package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/deal-scanner/internal/config"
	"github.com/deal-scanner/internal/models"
	"github.com/deal-scanner/internal/types"
)

// ClickHouseDB wraps the ClickHouse connection
type ClickHouseDB struct {
	conn driver.Conn
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(cfg *config.ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:      10 * time.Second,
		MaxOpenConns:     10,
		MaxIdleConns:     5,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the ClickHouse connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Conn returns the underlying ClickHouse connection
func (db *ClickHouseDB) Conn() driver.Conn {
	return db.conn
}

// Ping checks if the database is reachable
func (db *ClickHouseDB) Ping(ctx context.Context) error {
	return db.conn.Ping(ctx)
}

// ScanArchive keeps an append-only analytical record of every candidate a
// scan discovered, independent of the bounded candidate window. The engine
// writes to it asynchronously; failures are logged, never fatal.
type ScanArchive struct {
	db *ClickHouseDB
}

// NewScanArchive creates a new scan archive
func NewScanArchive(db *ClickHouseDB) *ScanArchive {
	return &ScanArchive{db: db}
}

// ArchiveCandidates inserts one row per candidate for a completed scan
func (a *ScanArchive) ArchiveCandidates(ctx context.Context, jobID string, candidates []models.Candidate) error {
	if len(candidates) == 0 {
		return nil
	}

	batch, err := a.db.Conn().PrepareBatch(ctx, `
		INSERT INTO scan_results (
			job_id, search_id, candidate_id, title, price, url, platform, found_via, scanned_at
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, c := range candidates {
		if err := batch.Append(
			jobID,
			c.SearchID,
			c.ID,
			c.Title,
			c.Price,
			c.URL,
			string(c.Platform),
			c.FoundVia,
			c.ScannedAt,
		); err != nil {
			return fmt.Errorf("failed to append candidate %s: %w", c.ID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	return nil
}

// RecentBySearch returns archived candidates for a search, newest first
func (a *ScanArchive) RecentBySearch(ctx context.Context, searchID string, limit int) ([]models.Candidate, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT candidate_id, title, price, url, platform, found_via, search_id, scanned_at
		FROM scan_results
		WHERE search_id = ?
		ORDER BY scanned_at DESC
		LIMIT ?
	`

	rows, err := a.db.Conn().Query(ctx, query, searchID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan results: %w", err)
	}
	defer rows.Close()

	var candidates []models.Candidate
	for rows.Next() {
		var c models.Candidate
		var platform string
		if err := rows.Scan(&c.ID, &c.Title, &c.Price, &c.URL, &platform, &c.FoundVia, &c.SearchID, &c.ScannedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		c.Platform = types.Platform(platform)
		candidates = append(candidates, c)
	}

	return candidates, rows.Err()
}

// EnsureSchema creates the scan_results table if it does not exist
func (a *ScanArchive) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS scan_results (
			job_id String,
			search_id String,
			candidate_id String,
			title String,
			price Float64,
			url String,
			platform String,
			found_via String,
			scanned_at DateTime64(3)
		) ENGINE = MergeTree()
		ORDER BY (search_id, scanned_at)
	`

	if err := a.db.Conn().Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create scan_results table: %w", err)
	}
	return nil
}
