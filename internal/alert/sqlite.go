package alert

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/miradorstack/mirador-ids/internal/models"
	"github.com/miradorstack/mirador-ids/internal/utils"
)

const alertsTable = `
CREATE TABLE IF NOT EXISTS alerts (
    id              TEXT PRIMARY KEY,
    timestamp       TEXT NOT NULL,
    raised_at       INTEGER NOT NULL DEFAULT 0,
    status          TEXT NOT NULL,
    data            TEXT NOT NULL,
    recommendations TEXT NOT NULL DEFAULT ''
)`

// SQLiteWriter stores alerts in a local SQLite database.
type SQLiteWriter struct {
	db *sql.DB
}

// NewSQLiteWriter opens (or creates) the database at path and ensures the
// alerts table exists.
func NewSQLiteWriter(path string) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(alertsTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create alerts table: %w", err)
	}
	return &SQLiteWriter{db: db}, nil
}

// WriteAlerts inserts alerts in one transaction. Re-sent IDs are ignored.
func (w *SQLiteWriter) WriteAlerts(alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, alert := range alerts {
		data, err := json.Marshal(alert.Data)
		if err != nil {
			return fmt.Errorf("marshal alert data: %w", err)
		}
		_, err = tx.Exec(`
            INSERT INTO alerts(id, timestamp, raised_at, status, data, recommendations)
            VALUES(?,?,?,?,?,?)
            ON CONFLICT(id) DO NOTHING`,
			alert.ID, alert.Timestamp, raisedAt(alert.Timestamp), alert.Status, string(data), strings.Join(alert.Recommendations, "\n"),
		)
		if err != nil {
			return fmt.Errorf("insert alert %s: %w", alert.ID, err)
		}
	}
	return tx.Commit()
}

// raisedAt converts an alert timestamp to Unix seconds for range queries.
// Unparseable timestamps are stored as 0.
func raisedAt(timestamp string) int64 {
	t, err := utils.ParseAlertTime(timestamp)
	if err != nil {
		return 0
	}
	return t.Unix()
}

func (w *SQLiteWriter) count() (int, error) {
	var n int
	if err := w.db.QueryRow(`SELECT COUNT(*) FROM alerts`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (w *SQLiteWriter) Close() error { return w.db.Close() }
