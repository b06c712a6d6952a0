// Package dashboard merges every monitoring signal into one escalate-only
// status report.
package dashboard

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/seongkah/signing-for-paas-sub002/internal/detect"
	"github.com/seongkah/signing-for-paas-sub002/internal/risk"
	"github.com/seongkah/signing-for-paas-sub002/internal/trend"
	"github.com/seongkah/signing-for-paas-sub002/internal/webclient"
)

// Status is totally ordered so aggregation is a structural max, not a
// string comparison.
type Status int

const (
	Healthy Status = iota
	Degraded
	Critical
)

func (s Status) String() string {
	switch s {
	case Critical:
		return "critical"
	case Degraded:
		return "degraded"
	default:
		return "healthy"
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw {
	case "healthy":
		*s = Healthy
	case "degraded":
		*s = Degraded
	case "critical":
		*s = Critical
	default:
		return fmt.Errorf("unknown status %q", raw)
	}
	return nil
}

func Max(a, b Status) Status {
	if a > b {
		return a
	}
	return b
}

// Health is the health-check section; SuccessRate is in [0,1].
type Health struct {
	Healthy       bool    `json:"healthy"`
	SuccessRate   float64 `json:"success_rate"`
	AvgResponseMS float64 `json:"avg_response_ms"`
	Error         string  `json:"error,omitempty"`
}

// Each section carries its own error so one failing subsystem degrades the
// report instead of aborting it.
type ChangesSection struct {
	detect.Result
	Error string `json:"error,omitempty"`
}

type WebClientSection struct {
	webclient.Report
	Error string `json:"error,omitempty"`
}

type TrendsSection struct {
	trend.Trends
	Error string `json:"error,omitempty"`
}

type RiskSection struct {
	risk.Assessment
	Error string `json:"error,omitempty"`
}

type Report struct {
	GeneratedAt     time.Time        `json:"generated_at"`
	Overall         Status           `json:"overall_status"`
	Health          Health           `json:"health"`
	Changes         ChangesSection   `json:"changes"`
	WebClient       WebClientSection `json:"web_client"`
	Trends          TrendsSection    `json:"trends"`
	Risk            RiskSection      `json:"risk"`
	Alerts          []string         `json:"alerts,omitempty"`
	Recommendations []string         `json:"recommendations"`
}

// degradedSuccessRate is the health floor below which the overall status is
// at least degraded even when the health check itself passes.
const degradedSuccessRate = 0.8

// Resolve folds every section into the overall status. The fold only ever
// escalates, so evaluation order cannot change the outcome.
func Resolve(r *Report) Status {
	status := Healthy

	if r.Health.Error != "" || !r.Health.Healthy {
		status = Max(status, Critical)
	}
	if r.Health.SuccessRate < degradedSuccessRate {
		status = Max(status, Degraded)
	}
	if r.Changes.ChangesDetected {
		status = Max(status, Critical)
	}
	if r.WebClient.AlgorithmChangeDetected {
		status = Max(status, Critical)
	}
	if r.Trends.SuccessRate == trend.Declining {
		status = Max(status, Degraded)
	}
	switch r.Risk.Level {
	case risk.Critical:
		status = Max(status, Critical)
	case risk.High:
		status = Max(status, Degraded)
	}

	return status
}

// MergeRecommendations collects section recommendations, deduplicated and
// priority-ordered: drift recommendations first (already priority-sorted),
// then risk. A healthy report gets the baseline recommendation.
func MergeRecommendations(r *Report) []string {
	var out []string
	seen := map[string]bool{}

	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	for _, rec := range r.Changes.Recommendations {
		add(rec.String())
	}
	for _, rec := range r.Risk.Recommendations {
		add(rec)
	}
	if r.Overall == Healthy {
		add("continue monitoring at the current cadence")
	}
	return out
}
