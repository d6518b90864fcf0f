// Package archive persists published flight records to a local SQLite
// database so a feed's history can be inspected after the fact.
package archive

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MulvadT/swim-adsb/internal/airtraffic"
)

// DB wraps the SQLite connection for the publication archive.
type DB struct {
	db *sql.DB
}

// Open opens or creates the archive database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS flight_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		topic TEXT NOT NULL,
		icao24 TEXT,
		lat REAL,
		lng REAL,
		origin TEXT NOT NULL,
		destination TEXT NOT NULL,
		last_contact INTEGER,
		published_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_flight_records_topic ON flight_records(topic);
	CREATE INDEX IF NOT EXISTS idx_flight_records_icao24 ON flight_records(icao24);
	CREATE INDEX IF NOT EXISTS idx_flight_records_published_at ON flight_records(published_at);
	`

	_, err := db.Exec(schema)
	return err
}

// RecordBatch stores one published batch of records for a topic.
func (d *DB) RecordBatch(topic string, records []airtraffic.FlightRecord, publishedAt time.Time) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO flight_records
			(topic, icao24, lat, lng, origin, destination, last_contact, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	ts := publishedAt.UTC().Format(time.RFC3339)
	for _, r := range records {
		if _, err := stmt.Exec(topic, r.ICAO24, r.Lat, r.Lng, r.From, r.To, r.LastContact, ts); err != nil {
			return fmt.Errorf("insert: %w", err)
		}
	}

	return tx.Commit()
}

// CountByTopic returns the number of archived records for a topic.
func (d *DB) CountByTopic(topic string) (int, error) {
	var n int
	err := d.db.QueryRow(
		"SELECT COUNT(*) FROM flight_records WHERE topic = ?", topic).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// RecentByTopic returns the latest n archived records for a topic,
// newest first.
func (d *DB) RecentByTopic(topic string, n int) ([]airtraffic.FlightRecord, error) {
	rows, err := d.db.Query(`
		SELECT icao24, lat, lng, origin, destination, last_contact
		FROM flight_records
		WHERE topic = ?
		ORDER BY id DESC
		LIMIT ?`, topic, n)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var records []airtraffic.FlightRecord
	for rows.Next() {
		var r airtraffic.FlightRecord
		if err := rows.Scan(&r.ICAO24, &r.Lat, &r.Lng, &r.From, &r.To, &r.LastContact); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
