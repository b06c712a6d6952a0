package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned by single-record lookups for unknown ids.
var ErrNotFound = errors.New("record not found")

// Attempt is one recorded call to the signing collaborator.
type Attempt struct {
	Timestamp  time.Time `json:"ts"`
	URL        string    `json:"url"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
}

// HistoryEntry is one monitoring cycle's outcome. History is append-only.
type HistoryEntry struct {
	Timestamp     time.Time `json:"ts"`
	Successes     int       `json:"successes"`
	Total         int       `json:"total"`
	AvgResponseMS float64   `json:"avg_response_ms"`
	Alerts        int       `json:"alerts"`
}

// AllHealthy reports whether every case in the cycle succeeded.
func (e HistoryEntry) AllHealthy() bool {
	return e.Total > 0 && e.Successes == e.Total
}

// SuccessRate is in [0,1]; zero for an empty cycle.
func (e HistoryEntry) SuccessRate() float64 {
	if e.Total == 0 {
		return 0
	}
	return float64(e.Successes) / float64(e.Total)
}

type AlertRule struct {
	ID            string        `json:"id"`
	Type          string        `json:"type"`
	Threshold     float64       `json:"threshold"`
	Window        time.Duration `json:"window"`
	Cooldown      time.Duration `json:"cooldown"`
	Severity      string        `json:"severity"`
	Enabled       bool          `json:"enabled"`
	URLFilter     string        `json:"url_filter,omitempty"`
	LastTriggered *time.Time    `json:"last_triggered,omitempty"`
}

type AlertInstance struct {
	ID             string     `json:"id"`
	RuleID         string     `json:"rule_id"`
	Message        string     `json:"message"`
	Severity       string     `json:"severity"`
	TriggeredAt    time.Time  `json:"triggered_at"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}

/// Store is the persistence collaborator: a small KV area for snapshots and
// cache entries, an append-only history log, the raw attempts the alert
// engine queries, and alert rule/instance records.
type Store interface {
	// GetJSON reads the value at key into out, returning false when absent.
	GetJSON(key string, out any) (bool, error)
	PutJSON(key string, v any) error

	AppendHistory(e HistoryEntry) error
	// RecentHistory returns up to n entries in chronological order.
	RecentHistory(n int) ([]HistoryEntry, error)

	RecordAttempt(a Attempt) error
	// AttemptsSince returns attempts at or after since, oldest first.
	// urlFilter, when non-empty, keeps only attempts whose URL contains it.
	AttemptsSince(since time.Time, urlFilter string) ([]Attempt, error)
	// RecentAttempts returns up to n attempts, newest first.
	RecentAttempts(n int, urlFilter string) ([]Attempt, error)

	ListRules() ([]AlertRule, error)
	GetRule(id string) (AlertRule, error)
	PutRule(r AlertRule) error
	SetRuleLastTriggered(id string, t time.Time) error

	InsertAlert(a AlertInstance) error
	GetAlert(id string) (AlertInstance, error)
	UpdateAlert(a AlertInstance) error
	// ActiveAlerts returns unacknowledged instances, newest first.
	ActiveAlerts() ([]AlertInstance, error)

	Close() error
}
