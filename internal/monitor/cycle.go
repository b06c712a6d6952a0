package monitor

import (
	"context"
	"time"

	"github.com/seongkah/signing-for-paas-sub002/internal/baseline"
	"github.com/seongkah/signing-for-paas-sub002/internal/dashboard"
	"github.com/seongkah/signing-for-paas-sub002/internal/logging"
	"github.com/seongkah/signing-for-paas-sub002/internal/risk"
	"github.com/seongkah/signing-for-paas-sub002/internal/store"
)

// GenerateDashboard runs one full monitoring cycle and returns the merged
// report. Only one cycle may run at a time; an overlapping trigger gets
// ErrCycleInProgress.
func (e *Engine) GenerateDashboard(ctx context.Context, trigger string) (*dashboard.Report, error) {
	if !e.cycleMu.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer e.cycleMu.Unlock()

	start := time.Now()
	report := &dashboard.Report{GeneratedAt: start.UTC()}

	// One sample capture feeds both the health section and change
	// analysis; every section failure is folded into that section.
	samples := e.captureSamples(ctx)
	cases := baseline.Cases(samples)
	report.Health = healthFromCases(cases)

	changes, err := e.analyzeSamples(cases)
	if err != nil {
		report.Changes.Error = err.Error()
	} else {
		report.Changes.Result = changes
	}

	report.WebClient.Report = e.MonitorWebClient(ctx)

	trends, err := e.Trends(0)
	if err != nil {
		report.Trends.Error = err.Error()
	} else {
		report.Trends.Trends = trends
	}

	fired, err := e.CheckAlerts()
	if err != nil {
		report.Alerts = append(report.Alerts, "alert evaluation failed: "+err.Error())
	}
	for _, a := range fired {
		report.Alerts = append(report.Alerts, a.Message)
	}
	if active, err := e.alerts.ActiveAlerts(); err == nil {
		for _, a := range active {
			if !containsAlert(report.Alerts, a.Message) {
				report.Alerts = append(report.Alerts, a.Message)
			}
		}
	}

	report.Risk.Assessment = risk.Predict(
		report.Health.SuccessRate,
		report.Health.AvgResponseMS,
		trends,
		report.Changes.Result,
		e.thresholds(),
	)

	report.Overall = dashboard.Resolve(report)
	report.Recommendations = dashboard.MergeRecommendations(report)

	e.finishCycle(report, cases, len(fired), trigger, time.Since(start))
	return report, nil
}

func (e *Engine) finishCycle(report *dashboard.Report, cases []baseline.CaseResult, alertsRaised int, trigger string, elapsed time.Duration) {
	entry := store.HistoryEntry{
		Timestamp:     report.GeneratedAt,
		Successes:     baseline.Successes(cases),
		Total:         len(cases),
		AvgResponseMS: baseline.AvgDurationMS(cases),
		Alerts:        alertsRaised,
	}
	if err := e.st.AppendHistory(entry); err != nil {
		report.Alerts = append(report.Alerts, "history append failed: "+err.Error())
	}
	if err := e.st.PutJSON(ReportKey, report); err != nil {
		report.Alerts = append(report.Alerts, "report persistence failed: "+err.Error())
	}

	record := logging.CycleRecord{
		Timestamp:       report.GeneratedAt,
		Trigger:         trigger,
		Status:          report.Overall.String(),
		DurationMS:      elapsed.Milliseconds(),
		Successes:       entry.Successes,
		Total:           entry.Total,
		AvgResponseMS:   entry.AvgResponseMS,
		ChangeTypes:     report.Changes.ChangeTypes,
		WebClientChange: report.WebClient.AlgorithmChangeDetected,
		AlertsRaised:    alertsRaised,
		RiskLevel:       report.Risk.Level.String(),
	}
	if e.cycleLog != nil {
		_ = e.cycleLog.Write(record)
	}
	e.metrics.ObserveCycle(record)
}

func containsAlert(alerts []string, msg string) bool {
	for _, a := range alerts {
		if a == msg {
			return true
		}
	}
	return false
}
