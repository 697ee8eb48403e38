package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jgoulah/vandebron/pkg/models"
	_ "modernc.org/sqlite"
)

// DB wraps the database connection
type DB struct {
	conn *sql.DB
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage_buckets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		market TEXT NOT NULL,
		time TEXT NOT NULL,
		resolution TEXT NOT NULL,
		consumption_peak REAL NOT NULL,
		consumption_off_peak REAL NOT NULL,
		created_at TEXT NOT NULL,
		published INTEGER DEFAULT 0,
		UNIQUE(market, time, resolution)
	);
	CREATE INDEX IF NOT EXISTS idx_buckets_market ON usage_buckets(market);
	CREATE INDEX IF NOT EXISTS idx_buckets_time ON usage_buckets(time);
	CREATE INDEX IF NOT EXISTS idx_buckets_published ON usage_buckets(published);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// InsertBucket inserts a usage bucket, ignoring duplicates
func (db *DB) InsertBucket(b *models.UsageBucket) error {
	query := `
	INSERT OR IGNORE INTO usage_buckets (market, time, resolution, consumption_peak, consumption_off_peak, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	createdAt := time.Now().UTC().Format(time.RFC3339)

	_, err := db.conn.Exec(query, b.Market, b.Time, b.Resolution, b.ConsumptionPeak, b.ConsumptionOffPeak, createdAt)
	if err != nil {
		return fmt.Errorf("inserting usage bucket: %w", err)
	}

	return nil
}

// ListBuckets retrieves all buckets for a market, newest first. An empty
// market returns every stored bucket.
func (db *DB) ListBuckets(market string) ([]models.UsageBucket, error) {
	query := `
	SELECT id, market, time, resolution, consumption_peak, consumption_off_peak
	FROM usage_buckets
	WHERE (? = '' OR market = ?)
	ORDER BY time DESC
	`

	return db.queryBuckets(query, market, market)
}

// ListUnpublishedBuckets retrieves buckets not yet pushed to a sink
func (db *DB) ListUnpublishedBuckets(market string) ([]models.UsageBucket, error) {
	query := `
	SELECT id, market, time, resolution, consumption_peak, consumption_off_peak
	FROM usage_buckets
	WHERE (? = '' OR market = ?) AND published = 0
	ORDER BY time DESC
	`

	return db.queryBuckets(query, market, market)
}

// Markets returns the distinct market segments with stored data
func (db *DB) Markets() ([]string, error) {
	rows, err := db.conn.Query(`SELECT DISTINCT market FROM usage_buckets ORDER BY market`)
	if err != nil {
		return nil, fmt.Errorf("querying markets: %w", err)
	}
	defer rows.Close()

	var markets []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scanning market: %w", err)
		}
		markets = append(markets, m)
	}

	return markets, rows.Err()
}

// MarkPublished marks a bucket as published
func (db *DB) MarkPublished(id int) error {
	query := `UPDATE usage_buckets SET published = 1 WHERE id = ?`
	_, err := db.conn.Exec(query, id)
	if err != nil {
		return fmt.Errorf("marking bucket as published: %w", err)
	}
	return nil
}

func (db *DB) queryBuckets(query string, args ...interface{}) ([]models.UsageBucket, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying usage buckets: %w", err)
	}
	defer rows.Close()

	var results []models.UsageBucket
	for rows.Next() {
		var b models.UsageBucket
		if err := rows.Scan(&b.ID, &b.Market, &b.Time, &b.Resolution, &b.ConsumptionPeak, &b.ConsumptionOffPeak); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		results = append(results, b)
	}

	return results, rows.Err()
}
