package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite backs the store with a single embedded database file.
type SQLite struct {
	db *sql.DB
}

// tsFormat is RFC3339 with fixed-width nanoseconds so stored timestamps
// compare correctly as strings. RFC3339Nano trims trailing zeros, which
// breaks lexicographic range queries.
const tsFormat = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts TEXT NOT NULL,
	successes INTEGER NOT NULL,
	total INTEGER NOT NULL,
	avg_response_ms REAL NOT NULL,
	alerts INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS attempts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts TEXT NOT NULL,
	url TEXT NOT NULL,
	success INTEGER NOT NULL,
	error TEXT,
	duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attempts_ts ON attempts(ts);
CREATE TABLE IF NOT EXISTS alert_rules (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	threshold REAL NOT NULL,
	window_ms INTEGER NOT NULL,
	cooldown_ms INTEGER NOT NULL,
	severity TEXT NOT NULL,
	enabled INTEGER NOT NULL,
	url_filter TEXT,
	last_triggered TEXT
);
CREATE TABLE IF NOT EXISTS alert_instances (
	id TEXT PRIMARY KEY,
	rule_id TEXT NOT NULL,
	message TEXT NOT NULL,
	severity TEXT NOT NULL,
	triggered_at TEXT NOT NULL,
	acknowledged INTEGER NOT NULL DEFAULT 0,
	acknowledged_by TEXT,
	acknowledged_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_alerts_acked ON alert_instances(acknowledged, triggered_at);
`

// OpenSQLite opens or creates the database at path, creating parent
// directories as needed.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	// Single-writer discipline: serialize all writes on one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) GetJSON(key string, out any) (bool, error) {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *SQLite) PutJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, string(data), time.Now().UTC().Format(tsFormat))
	return err
}

func (s *SQLite) AppendHistory(e HistoryEntry) error {
	_, err := s.db.Exec(`
		INSERT INTO history (ts, successes, total, avg_response_ms, alerts)
		VALUES (?, ?, ?, ?, ?)
	`, e.Timestamp.UTC().Format(tsFormat), e.Successes, e.Total, e.AvgResponseMS, e.Alerts)
	return err
}

func (s *SQLite) RecentHistory(n int) ([]HistoryEntry, error) {
	rows, err := s.db.Query(`
		SELECT ts, successes, total, avg_response_ms, alerts
		FROM history ORDER BY id DESC LIMIT ?
	`, n)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var ts string
		if err := rows.Scan(&ts, &e.Successes, &e.Total, &e.AvgResponseMS, &e.Alerts); err != nil {
			return nil, err
		}
		e.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse history ts: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query walks newest first; callers want chronological order.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

func (s *SQLite) RecordAttempt(a Attempt) error {
	_, err := s.db.Exec(`
		INSERT INTO attempts (ts, url, success, error, duration_ms)
		VALUES (?, ?, ?, ?, ?)
	`, a.Timestamp.UTC().Format(tsFormat), a.URL, boolInt(a.Success), a.Error, a.DurationMS)
	return err
}

func (s *SQLite) AttemptsSince(since time.Time, urlFilter string) ([]Attempt, error) {
	rows, err := s.db.Query(`
		SELECT ts, url, success, error, duration_ms
		FROM attempts WHERE ts >= ? ORDER BY id ASC
	`, since.UTC().Format(tsFormat))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanAttempts(rows, urlFilter, 0)
}

func (s *SQLite) RecentAttempts(n int, urlFilter string) ([]Attempt, error) {
	rows, err := s.db.Query(`
		SELECT ts, url, success, error, duration_ms
		FROM attempts ORDER BY id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanAttempts(rows, urlFilter, n)
}

func scanAttempts(rows *sql.Rows, urlFilter string, limit int) ([]Attempt, error) {
	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		var ts string
		var success int
		var errText sql.NullString
		if err := rows.Scan(&ts, &a.URL, &success, &errText, &a.DurationMS); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse attempt ts: %w", err)
		}
		a.Timestamp = parsed
		a.Success = success != 0
		a.Error = errText.String
		if urlFilter != "" && !containsFold(a.URL, urlFilter) {
			continue
		}
		attempts = append(attempts, a)
		if limit > 0 && len(attempts) >= limit {
			break
		}
	}
	return attempts, rows.Err()
}

func (s *SQLite) ListRules() ([]AlertRule, error) {
	rows, err := s.db.Query(`
		SELECT id, type, threshold, window_ms, cooldown_ms, severity, enabled, url_filter, last_triggered
		FROM alert_rules ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []AlertRule
	for rows.Next() {
		r, err := scanRule(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLite) GetRule(id string) (AlertRule, error) {
	row := s.db.QueryRow(`
		SELECT id, type, threshold, window_ms, cooldown_ms, severity, enabled, url_filter, last_triggered
		FROM alert_rules WHERE id = ?
	`, id)
	r, err := scanRule(row.Scan)
	if err == sql.ErrNoRows {
		return AlertRule{}, ErrNotFound
	}
	return r, err
}

func scanRule(scan func(...any) error) (AlertRule, error) {
	var r AlertRule
	var windowMS, cooldownMS int64
	var enabled int
	var filter, last sql.NullString
	if err := scan(&r.ID, &r.Type, &r.Threshold, &windowMS, &cooldownMS, &r.Severity, &enabled, &filter, &last); err != nil {
		return AlertRule{}, err
	}
	r.Window = time.Duration(windowMS) * time.Millisecond
	r.Cooldown = time.Duration(cooldownMS) * time.Millisecond
	r.Enabled = enabled != 0
	r.URLFilter = filter.String
	if last.Valid && last.String != "" {
		t, err := time.Parse(time.RFC3339Nano, last.String)
		if err != nil {
			return AlertRule{}, fmt.Errorf("parse last_triggered: %w", err)
		}
		r.LastTriggered = &t
	}
	return r, nil
}

func (s *SQLite) PutRule(r AlertRule) error {
	var last any
	if r.LastTriggered != nil {
		last = r.LastTriggered.UTC().Format(tsFormat)
	}
	_, err := s.db.Exec(`
		INSERT INTO alert_rules (id, type, threshold, window_ms, cooldown_ms, severity, enabled, url_filter, last_triggered)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			threshold = excluded.threshold,
			window_ms = excluded.window_ms,
			cooldown_ms = excluded.cooldown_ms,
			severity = excluded.severity,
			enabled = excluded.enabled,
			url_filter = excluded.url_filter,
			last_triggered = excluded.last_triggered
	`, r.ID, r.Type, r.Threshold, r.Window.Milliseconds(), r.Cooldown.Milliseconds(),
		r.Severity, boolInt(r.Enabled), r.URLFilter, last)
	return err
}

func (s *SQLite) SetRuleLastTriggered(id string, t time.Time) error {
	res, err := s.db.Exec(`UPDATE alert_rules SET last_triggered = ? WHERE id = ?`,
		t.UTC().Format(tsFormat), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) InsertAlert(a AlertInstance) error {
	var ackedAt any
	if a.AcknowledgedAt != nil {
		ackedAt = a.AcknowledgedAt.UTC().Format(tsFormat)
	}
	_, err := s.db.Exec(`
		INSERT INTO alert_instances (id, rule_id, message, severity, triggered_at, acknowledged, acknowledged_by, acknowledged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.RuleID, a.Message, a.Severity, a.TriggeredAt.UTC().Format(tsFormat),
		boolInt(a.Acknowledged), a.AcknowledgedBy, ackedAt)
	return err
}

func (s *SQLite) GetAlert(id string) (AlertInstance, error) {
	row := s.db.QueryRow(`
		SELECT id, rule_id, message, severity, triggered_at, acknowledged, acknowledged_by, acknowledged_at
		FROM alert_instances WHERE id = ?
	`, id)
	a, err := scanAlert(row.Scan)
	if err == sql.ErrNoRows {
		return AlertInstance{}, ErrNotFound
	}
	return a, err
}

func scanAlert(scan func(...any) error) (AlertInstance, error) {
	var a AlertInstance
	var triggered string
	var acked int
	var ackedBy, ackedAt sql.NullString
	if err := scan(&a.ID, &a.RuleID, &a.Message, &a.Severity, &triggered, &acked, &ackedBy, &ackedAt); err != nil {
		return AlertInstance{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, triggered)
	if err != nil {
		return AlertInstance{}, fmt.Errorf("parse triggered_at: %w", err)
	}
	a.TriggeredAt = t
	a.Acknowledged = acked != 0
	a.AcknowledgedBy = ackedBy.String
	if ackedAt.Valid && ackedAt.String != "" {
		at, err := time.Parse(time.RFC3339Nano, ackedAt.String)
		if err != nil {
			return AlertInstance{}, fmt.Errorf("parse acknowledged_at: %w", err)
		}
		a.AcknowledgedAt = &at
	}
	return a, nil
}

func (s *SQLite) UpdateAlert(a AlertInstance) error {
	var ackedAt any
	if a.AcknowledgedAt != nil {
		ackedAt = a.AcknowledgedAt.UTC().Format(tsFormat)
	}
	res, err := s.db.Exec(`
		UPDATE alert_instances
		SET acknowledged = ?, acknowledged_by = ?, acknowledged_at = ?
		WHERE id = ?
	`, boolInt(a.Acknowledged), a.AcknowledgedBy, ackedAt, a.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) ActiveAlerts() ([]AlertInstance, error) {
	rows, err := s.db.Query(`
		SELECT id, rule_id, message, severity, triggered_at, acknowledged, acknowledged_by, acknowledged_at
		FROM alert_instances WHERE acknowledged = 0 ORDER BY triggered_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []AlertInstance
	for rows.Next() {
		a, err := scanAlert(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
