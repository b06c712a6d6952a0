// Package risk folds current health, trend, and drift signals into one
// monotonic risk level with recommendations.
package risk

import (
	"encoding/json"
	"fmt"

	"github.com/seongkah/signing-for-paas-sub002/internal/detect"
	"github.com/seongkah/signing-for-paas-sub002/internal/trend"
)

// Level is totally ordered; assessment only ever escalates.
type Level int

const (
	Low Level = iota
	Medium
	High
	Critical
)

func (l Level) String() string {
	switch l {
	case Critical:
		return "critical"
	case High:
		return "high"
	case Medium:
		return "medium"
	default:
		return "low"
	}
}

func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

func ParseLevel(s string) (Level, error) {
	switch s {
	case "low":
		return Low, nil
	case "medium":
		return Medium, nil
	case "high":
		return High, nil
	case "critical":
		return Critical, nil
	default:
		return Low, fmt.Errorf("unknown risk level %q", s)
	}
}

func Max(a, b Level) Level {
	if a > b {
		return a
	}
	return b
}

// Next is one step up, capped at Critical.
func (l Level) Next() Level {
	if l >= Critical {
		return Critical
	}
	return l + 1
}

// Thresholds are empirically chosen and therefore configurable.
type Thresholds struct {
	CriticalSuccessRate float64
	HighSuccessRate     float64
	SlowResponseMS      float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		CriticalSuccessRate: 0.5,
		HighSuccessRate:     0.8,
		SlowResponseMS:      2000,
	}
}

type Assessment struct {
	Level           Level    `json:"level"`
	Predictions     []string `json:"predictions"`
	Recommendations []string `json:"recommendations"`
}

// Predict applies the escalation rules in order; each can only raise the
// level, never lower it. successRate is in [0,1].
func Predict(successRate, avgResponseMS float64, trends trend.Trends, changes detect.Result, th Thresholds) Assessment {
	if th == (Thresholds{}) {
		th = DefaultThresholds()
	}

	level := Low
	var predictions []string

	switch {
	case successRate < th.CriticalSuccessRate:
		level = Max(level, Critical)
		predictions = append(predictions, fmt.Sprintf(
			"success rate %.0f%% is below the %.0f%% critical floor; signing is effectively broken",
			successRate*100, th.CriticalSuccessRate*100))
	case successRate < th.HighSuccessRate:
		level = Max(level, High)
		predictions = append(predictions, fmt.Sprintf(
			"success rate %.0f%% is below the %.0f%% floor; failures are likely to spread",
			successRate*100, th.HighSuccessRate*100))
	case avgResponseMS > th.SlowResponseMS:
		level = Max(level, Medium)
		predictions = append(predictions, fmt.Sprintf(
			"average response time %.0fms exceeds %.0fms; the signer may be degrading",
			avgResponseMS, th.SlowResponseMS))
	}

	if trends.SuccessRate == trend.Declining {
		level = Max(level, level.Next())
		predictions = append(predictions, "success rate is trending down; expect continued decline without intervention")
	}

	if trends.ResponseTime == trend.Increasing {
		// Advisory only; rising latency alone does not move the level.
		predictions = append(predictions, "response times are trending up")
	}

	if changes.ChangesDetected {
		predictions = append(predictions, fmt.Sprintf(
			"structural drift detected (%v); the upstream algorithm may have changed", changes.ChangeTypes))
	}

	return Assessment{
		Level:           level,
		Predictions:     predictions,
		Recommendations: recommendations[level],
	}
}

var recommendations = map[Level][]string{
	Critical: {
		"initiate emergency failover to the backup signing path",
		"activate backup token generation immediately",
	},
	High: {
		"prepare backup signing paths for activation",
		"shorten the monitoring interval",
	},
	Medium: {
		"shorten the monitoring interval",
		"check for an upstream client update",
	},
	Low: {
		"continue the current monitoring cadence",
	},
}
