// Package history maintains the per-metal daily price series: a 30-entry
// rolling log keyed by calendar date, persisted in SQLite.
package history

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"metaltracker/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// MaxEntries is the per-metal retention cap. Recording past the cap drops
// the oldest dates, never random ones.
const MaxEntries = 30

// DateFormat is the calendar-date key format (day granularity, no
// time-of-day).
const DateFormat = "2006-01-02"

// Store is the SQLite-backed history series store.
type Store struct {
	db *sql.DB
}

// Config configures the history store.
type Config struct {
	DBPath string // path to SQLite database file, e.g. "data/history.db"
}

// New opens the history database, enabling WAL mode and creating the schema.
func New(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single logical writer per tick
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[history] opened database at %s", cfg.DBPath)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS metal_history (
			metal       TEXT NOT NULL,
			date        TEXT NOT NULL,
			price       REAL NOT NULL,
			currency    TEXT NOT NULL,
			unit        TEXT NOT NULL,
			recorded_at INTEGER NOT NULL,
			PRIMARY KEY (metal, date)
		);
	`)
	return err
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Record upserts the price for (metal, date) and trims the series to the
// most recent MaxEntries dates. Re-recording a date overwrites, never
// duplicates, so duplicate daily ticks resolve as last-write-wins.
func (s *Store) Record(metal model.Metal, date string, price float64, currency string, unit model.WeightUnit) error {
	if _, err := time.Parse(DateFormat, date); err != nil {
		return fmt.Errorf("invalid history date %q: %w", date, err)
	}
	if price < 0 {
		return fmt.Errorf("negative price %v for %s", price, metal)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO metal_history (metal, date, price, currency, unit, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, metal, date, price, currency, unit, time.Now().Unix())
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite insert history: %w", err)
	}

	// Trim to the retention cap, keeping the newest dates by calendar order.
	_, err = tx.Exec(`
		DELETE FROM metal_history
		WHERE metal = ? AND date NOT IN (
			SELECT date FROM metal_history WHERE metal = ? ORDER BY date DESC LIMIT ?
		)
	`, metal, metal, MaxEntries)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite trim history: %w", err)
	}

	return tx.Commit()
}

// Order selects the direction of a Read: ascending for chronological charts,
// descending for newest-first tables.
type Order string

const (
	Ascending  Order = "asc"
	Descending Order = "desc"
)

// Read returns the metal's series ordered by calendar date.
func (s *Store) Read(metal model.Metal, order Order) ([]model.PricePoint, error) {
	dir := "ASC"
	if order == Descending {
		dir = "DESC"
	}

	rows, err := s.db.Query(`
		SELECT date, price FROM metal_history
		WHERE metal = ?
		ORDER BY date `+dir, metal)
	if err != nil {
		return nil, fmt.Errorf("sqlite query history: %w", err)
	}
	defer rows.Close()

	var points []model.PricePoint
	for rows.Next() {
		var p model.PricePoint
		if err := rows.Scan(&p.Date, &p.Price); err != nil {
			return nil, fmt.Errorf("sqlite scan history: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// Latest returns the most recent point for the metal, or nil when the series
// is empty.
func (s *Store) Latest(metal model.Metal) (*model.PricePoint, error) {
	var p model.PricePoint
	err := s.db.QueryRow(`
		SELECT date, price FROM metal_history
		WHERE metal = ?
		ORDER BY date DESC
		LIMIT 1
	`, metal).Scan(&p.Date, &p.Price)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite latest history: %w", err)
	}
	return &p, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
