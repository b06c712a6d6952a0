package logging

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"
)

// CycleRecord is written as one JSON object per monitoring cycle.
type CycleRecord struct {
	Timestamp       time.Time `json:"ts"`
	Trigger         string    `json:"trigger"`
	Status          string    `json:"status"`
	DurationMS      int64     `json:"duration_ms"`
	Successes       int       `json:"successes"`
	Total           int       `json:"total"`
	AvgResponseMS   float64   `json:"avg_response_ms"`
	ChangeTypes     []string  `json:"change_types,omitempty"`
	WebClientChange bool      `json:"web_client_change"`
	AlertsRaised    int       `json:"alerts_raised"`
	RiskLevel       string    `json:"risk_level"`
	Error           string    `json:"error,omitempty"`
}

const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

type CycleLogger struct {
	w io.Writer
}

func NewCycleLogger(w io.Writer) *CycleLogger {
	return &CycleLogger{w: w}
}

func OpenCycleLog(path string) (*CycleLogger, func() error, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return NewCycleLogger(file), file.Close, nil
}

func (l *CycleLogger) Write(record CycleRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	_, err = l.w.Write(append(data, '\n'))
	return err
}
