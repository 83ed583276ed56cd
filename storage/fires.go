package storage

import (
	"fmt"
	"time"
)

// Fire is one published fire-event
type Fire struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Combo     string    `json:"combo"`
	Source    string    `json:"source"`
	Delivered int       `json:"delivered"`
}

// SaveFire saves a fire-event to the database
func (db *DB) SaveFire(f *Fire) error {
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now()
	}

	result, err := db.conn.Exec(
		`INSERT INTO fires (timestamp, combo, source, delivered) VALUES (?, ?, ?, ?)`,
		f.Timestamp.UTC(), f.Combo, f.Source, f.Delivered,
	)
	if err != nil {
		return fmt.Errorf("failed to save fire: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	f.ID = id
	return nil
}

// GetFires retrieves fire-events with pagination, newest first
func (db *DB) GetFires(limit, offset int) ([]Fire, error) {
	query := `
		SELECT id, timestamp, combo, source, delivered
		FROM fires
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := db.conn.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query fires: %w", err)
	}
	defer rows.Close()

	fires := []Fire{}
	for rows.Next() {
		var f Fire
		if err := rows.Scan(&f.ID, &f.Timestamp, &f.Combo, &f.Source, &f.Delivered); err != nil {
			return nil, fmt.Errorf("failed to scan fire: %w", err)
		}
		fires = append(fires, f)
	}

	return fires, rows.Err()
}

// GetFireCount returns the total number of fire-events
func (db *DB) GetFireCount() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM fires").Scan(&count)
	return count, err
}
