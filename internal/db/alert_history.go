package db

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Alert kinds recorded in history. Proximity fires when price approaches a
// target; execution fires when a buy level is actually crossed.
const (
	AlertKindProximity = "proximity"
	AlertKindExecution = "execution"
)

// AlertHistoryEntry represents a sent alert notification.
type AlertHistoryEntry struct {
	ID             int64             `json:"id"`
	Symbol         string            `json:"symbol"`
	Target         string            `json:"target"` // level name or sentinel
	Kind           string            `json:"kind"`
	SentDate       string            `json:"sent_date"` // YYYY-MM-DD, dedup key component
	Price          float64           `json:"price"`
	DistancePct    float64           `json:"distance_pct"`
	Message        string            `json:"message"`
	ChannelsSent   []string          `json:"channels_sent"`
	ChannelsFailed map[string]string `json:"channels_failed,omitempty"`
	SentAt         string            `json:"sent_at"`
}

// SaveAlertHistory records a sent alert. The (symbol, target, kind, sent_date)
// key is unique; re-saving the same alert on the same day is a no-op, which is
// what makes WasAlertedToday race-free across monitor ticks.
func (d *DB) SaveAlertHistory(entry AlertHistoryEntry) error {
	channelsSentJSON, _ := json.Marshal(entry.ChannelsSent)
	var channelsFailedJSON []byte
	if len(entry.ChannelsFailed) > 0 {
		channelsFailedJSON, _ = json.Marshal(entry.ChannelsFailed)
	}

	now := time.Now().UTC()
	if entry.SentAt == "" {
		entry.SentAt = now.Format(time.RFC3339)
	}
	if entry.SentDate == "" {
		entry.SentDate = now.Format("2006-01-02")
	}

	_, err := d.sql.Exec(`
		INSERT OR IGNORE INTO alert_history (
			symbol, target, kind, sent_date, price, distance_pct,
			message, channels_sent, channels_failed, sent_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Symbol,
		entry.Target,
		entry.Kind,
		entry.SentDate,
		entry.Price,
		entry.DistancePct,
		entry.Message,
		string(channelsSentJSON),
		string(channelsFailedJSON),
		entry.SentAt,
	)
	return err
}

// WasAlertedToday reports whether an alert with this key already went out on
// the given date (YYYY-MM-DD).
func (d *DB) WasAlertedToday(symbol, target, kind, date string) (bool, error) {
	var one int
	err := d.sql.QueryRow(`
		SELECT 1 FROM alert_history
		 WHERE symbol = ? AND target = ? AND kind = ? AND sent_date = ?
		 LIMIT 1
	`, symbol, target, kind, date).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetAlertHistory returns alert history, newest first. If symbol is empty,
// returns all symbols. Limit 0 means unlimited.
func (d *DB) GetAlertHistory(symbol string, limit int) ([]AlertHistoryEntry, error) {
	if limit < 0 {
		limit = 0
	}

	query := `
		SELECT id, symbol, target, kind, sent_date, price, distance_pct,
		       message, channels_sent, channels_failed, sent_at
		  FROM alert_history
	`
	var args []interface{}
	if symbol != "" {
		query += " WHERE symbol = ?"
		args = append(args, symbol)
	}
	query += " ORDER BY sent_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.sql.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []AlertHistoryEntry
	for rows.Next() {
		var e AlertHistoryEntry
		var channelsSentStr, channelsFailedStr sql.NullString

		if err := rows.Scan(
			&e.ID,
			&e.Symbol,
			&e.Target,
			&e.Kind,
			&e.SentDate,
			&e.Price,
			&e.DistancePct,
			&e.Message,
			&channelsSentStr,
			&channelsFailedStr,
			&e.SentAt,
		); err != nil {
			return nil, err
		}

		if channelsSentStr.Valid {
			json.Unmarshal([]byte(channelsSentStr.String), &e.ChannelsSent)
		}
		if channelsFailedStr.Valid {
			json.Unmarshal([]byte(channelsFailedStr.String), &e.ChannelsFailed)
		}

		entries = append(entries, e)
	}

	if entries == nil {
		return []AlertHistoryEntry{}, nil
	}
	return entries, nil
}

// CleanupOldAlertHistory removes alert history older than the specified number of days.
func (d *DB) CleanupOldAlertHistory(olderThanDays int) (int64, error) {
	if olderThanDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays).Format(time.RFC3339)
	res, err := d.sql.Exec("DELETE FROM alert_history WHERE sent_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
