package storage

import (
	"fmt"
	"time"
)

// ComboStats represents statistics grouped by combo
type ComboStats struct {
	Combo       string    `json:"combo"`
	Fires       int       `json:"fires"`
	HotkeyFires int       `json:"hotkey_fires"`
	Undelivered int       `json:"undelivered"`
	LastFired   time.Time `json:"last_fired"`
}

// GetComboStats retrieves statistics grouped by combo for the last N days
func (db *DB) GetComboStats(days int) ([]ComboStats, error) {
	query := `
		SELECT
			combo,
			COUNT(*) as fires,
			SUM(CASE WHEN source = 'hotkey' THEN 1 ELSE 0 END) as hotkey_fires,
			SUM(CASE WHEN delivered = 0 THEN 1 ELSE 0 END) as undelivered,
			MAX(timestamp) as last_fired
		FROM fires
		WHERE timestamp >= ?
		GROUP BY combo
		ORDER BY fires DESC, combo ASC
	`

	since := time.Now().UTC().AddDate(0, 0, -days)
	rows, err := db.conn.Query(query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query combo stats: %w", err)
	}
	defer rows.Close()

	stats := []ComboStats{}
	for rows.Next() {
		var s ComboStats
		var last string
		if err := rows.Scan(&s.Combo, &s.Fires, &s.HotkeyFires, &s.Undelivered, &last); err != nil {
			return nil, fmt.Errorf("failed to scan combo stats: %w", err)
		}
		s.LastFired = parseTimestamp(last)
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// MAX() drops the column's declared type, so the driver hands back text.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
