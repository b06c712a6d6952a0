// Package trend computes directional trends over the append-only run
// history.
package trend

import (
	"github.com/seongkah/signing-for-paas-sub002/internal/store"
)

type Direction string

const (
	Increasing Direction = "increasing"
	Declining  Direction = "declining"
	Stable     Direction = "stable"
)

const (
	StatusOK               = "ok"
	StatusInsufficientData = "insufficient_data"
)

const (
	// DefaultWindowSize is how many history entries a trend window spans.
	DefaultWindowSize = 10
	// recentSize is the size of the "recent" group the window splits into.
	recentSize = 3
	// changePercent is the group-average movement that counts as a trend.
	changePercent = 10
)

type Trends struct {
	Status       string              `json:"status"`
	Window       int                 `json:"window"`
	SuccessRate  Direction           `json:"success_rate_trend,omitempty"`
	ResponseTime Direction           `json:"response_time_trend,omitempty"`
	RecentAlerts int                 `json:"recent_alerts"`
	LastHealthy  *store.HistoryEntry `json:"last_healthy,omitempty"`
}

// Compute classifies the last windowSize entries. entries must be in
// chronological order, which is how the store returns them.
func Compute(entries []store.HistoryEntry, windowSize int) Trends {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}

	if len(entries) > windowSize {
		entries = entries[len(entries)-windowSize:]
	}

	t := Trends{Window: windowSize, LastHealthy: lastHealthy(entries)}

	if len(entries) < 2 {
		t.Status = StatusInsufficientData
		return t
	}
	t.Status = StatusOK

	split := len(entries) - recentSize
	if split < 0 {
		split = 0
	}
	earlier, recent := entries[:split], entries[split:]

	for _, e := range recent {
		t.RecentAlerts += e.Alerts
	}

	if len(earlier) == 0 || len(recent) == 0 {
		t.SuccessRate = Stable
		t.ResponseTime = Stable
		return t
	}

	t.SuccessRate = classify(avg(earlier, store.HistoryEntry.SuccessRate), avg(recent, store.HistoryEntry.SuccessRate))
	t.ResponseTime = classify(avgResponse(earlier), avgResponse(recent))
	return t
}

func classify(earlier, recent float64) Direction {
	if earlier == 0 {
		if recent == 0 {
			return Stable
		}
		return Increasing
	}
	change := (recent - earlier) / earlier * 100
	switch {
	case change > changePercent:
		return Increasing
	case change < -changePercent:
		return Declining
	default:
		return Stable
	}
}

func avg(entries []store.HistoryEntry, value func(store.HistoryEntry) float64) float64 {
	if len(entries) == 0 {
		return 0
	}
	sum := 0.0
	for _, e := range entries {
		sum += value(e)
	}
	return sum / float64(len(entries))
}

func avgResponse(entries []store.HistoryEntry) float64 {
	return avg(entries, func(e store.HistoryEntry) float64 { return e.AvgResponseMS })
}

func lastHealthy(entries []store.HistoryEntry) *store.HistoryEntry {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].AllHealthy() {
			e := entries[i]
			return &e
		}
	}
	return nil
}
