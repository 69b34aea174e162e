// Package store provides SQLite persistence for statuswatch: retained
// unresolved incident records and custom feed registrations.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/statuswatch/statuswatch/model"
	"github.com/statuswatch/statuswatch/provider"
)

// Store manages the SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path.
// Use ":memory:" for an in-memory database (useful for testing).
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}

	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// createSchema creates the database tables and indexes.
func (s *Store) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS retained_records (
		provider TEXT NOT NULL,
		record_id TEXT NOT NULL,
		record TEXT NOT NULL,
		saved_at INTEGER NOT NULL,
		PRIMARY KEY (provider, record_id)
	);

	CREATE TABLE IF NOT EXISTS custom_feeds (
		key TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		url TEXT UNIQUE NOT NULL,
		color TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_retained_provider ON retained_records(provider);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveRetained replaces the retained record set for a provider. The
// records are stored in their normalized form; the opaque Raw
// passthrough is display-only and not persisted.
func (s *Store) SaveRetained(providerKey string, records []model.NormalizedUpdate) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM retained_records WHERE provider = ?", providerKey); err != nil {
		return fmt.Errorf("failed to clear retained records: %w", err)
	}

	now := time.Now().Unix()
	for _, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode record %s: %w", rec.ID, err)
		}
		_, err = tx.Exec(
			"INSERT INTO retained_records (provider, record_id, record, saved_at) VALUES (?, ?, ?, ?)",
			providerKey, rec.ID, string(payload), now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert record %s: %w", rec.ID, err)
		}
	}

	return tx.Commit()
}

// LoadRetained returns the retained record set for a provider, newest
// insert order preserved.
func (s *Store) LoadRetained(providerKey string) ([]model.NormalizedUpdate, error) {
	rows, err := s.db.Query(
		"SELECT record FROM retained_records WHERE provider = ?",
		providerKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query retained records: %w", err)
	}
	defer rows.Close()

	var records []model.NormalizedUpdate
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		var rec model.NormalizedUpdate
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// AddCustomFeed persists a custom feed registration.
func (s *Store) AddCustomFeed(p provider.Provider) error {
	_, err := s.db.Exec(
		"INSERT INTO custom_feeds (key, name, url, color, created_at) VALUES (?, ?, ?, ?, ?)",
		p.Key, p.Name, p.URL, p.Color, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert custom feed: %w", err)
	}
	return nil
}

// CustomFeeds returns all registered custom feeds in registration
// order.
func (s *Store) CustomFeeds() ([]provider.Provider, error) {
	rows, err := s.db.Query("SELECT key, name, url, color FROM custom_feeds ORDER BY created_at, key")
	if err != nil {
		return nil, fmt.Errorf("failed to query custom feeds: %w", err)
	}
	defer rows.Close()

	var feeds []provider.Provider
	for rows.Next() {
		p := provider.Provider{Kind: provider.KindCustomFeed, Icon: "rss"}
		if err := rows.Scan(&p.Key, &p.Name, &p.URL, &p.Color); err != nil {
			return nil, fmt.Errorf("failed to scan custom feed: %w", err)
		}
		feeds = append(feeds, p)
	}

	return feeds, rows.Err()
}

// RemoveCustomFeed deletes a custom feed registration and any records
// retained for it.
func (s *Store) RemoveCustomFeed(key string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM custom_feeds WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete custom feed: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM retained_records WHERE provider = ?", key); err != nil {
		return fmt.Errorf("failed to delete retained records: %w", err)
	}

	return tx.Commit()
}
