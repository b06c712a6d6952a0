// Package monitor is the long-lived drift-monitoring engine. It is
// constructed once with its collaborators injected and owns the cycle
// single-flight discipline.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/seongkah/signing-for-paas-sub002/internal/alerting"
	"github.com/seongkah/signing-for-paas-sub002/internal/baseline"
	"github.com/seongkah/signing-for-paas-sub002/internal/config"
	"github.com/seongkah/signing-for-paas-sub002/internal/dashboard"
	"github.com/seongkah/signing-for-paas-sub002/internal/detect"
	"github.com/seongkah/signing-for-paas-sub002/internal/fetch"
	"github.com/seongkah/signing-for-paas-sub002/internal/logging"
	"github.com/seongkah/signing-for-paas-sub002/internal/observability"
	"github.com/seongkah/signing-for-paas-sub002/internal/risk"
	"github.com/seongkah/signing-for-paas-sub002/internal/signer"
	"github.com/seongkah/signing-for-paas-sub002/internal/store"
	"github.com/seongkah/signing-for-paas-sub002/internal/trend"
	"github.com/seongkah/signing-for-paas-sub002/internal/webclient"
)

// ErrCycleInProgress is returned when a cycle trigger fires while another
// cycle is still running; the trigger is skipped, never queued.
var ErrCycleInProgress = errors.New("monitoring cycle already in progress")

// ReportKey is where the last dashboard report is persisted.
const ReportKey = "reports/last"

type Engine struct {
	cfg     *config.Config
	signer  signer.Signer
	fetcher fetch.Fetcher
	st      store.Store
	alerts  *alerting.Engine
	web     *webclient.Monitor
	version string

	metrics  *observability.Metrics
	cycleLog *logging.CycleLogger

	cycleMu sync.Mutex
}

func New(cfg *config.Config, sig signer.Signer, fetcher fetch.Fetcher, st store.Store, version string) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if sig == nil || fetcher == nil || st == nil {
		return nil, errors.New("signer, fetcher, and store are required")
	}

	alerts := alerting.NewEngine(st)
	if err := alerts.SeedRules(configuredRules(cfg)); err != nil {
		return nil, fmt.Errorf("seed alert rules: %w", err)
	}

	e := &Engine{
		cfg:     cfg,
		signer:  sig,
		st:      st,
		alerts:  alerts,
		version: version,
	}
	e.fetcher = &meteredFetcher{engine: e, next: fetcher}

	web, err := webclient.New(e.fetcher, st, webclient.Config{
		MinFragmentBytes:   cfg.WebClient.MinFragmentBytes,
		NoiseThreshold:     cfg.WebClient.NoiseThreshold,
		CountDelta:         cfg.WebClient.CountDelta,
		Categories:         cfg.WebClient.Categories,
		SuspiciousKeywords: cfg.WebClient.SuspiciousKeywords,
	})
	if err != nil {
		return nil, fmt.Errorf("build web client monitor: %w", err)
	}
	e.web = web

	return e, nil
}

// meteredFetcher counts fetch outcomes. Metrics are attached after
// construction, so it reads them through the engine on every call.
type meteredFetcher struct {
	engine *Engine
	next   fetch.Fetcher
}

func (f *meteredFetcher) Fetch(ctx context.Context, rawURL string) (fetch.Result, error) {
	res, err := f.next.Fetch(ctx, rawURL)
	f.engine.metrics.ObserveFetch(err == nil)
	return res, err
}

func (e *Engine) SetMetrics(m *observability.Metrics) { e.metrics = m }

func (e *Engine) SetCycleLog(l *logging.CycleLogger) { e.cycleLog = l }

func (e *Engine) Alerts() *alerting.Engine { return e.alerts }

func configuredRules(cfg *config.Config) []store.AlertRule {
	rules := make([]store.AlertRule, 0, len(cfg.Alerts))
	for _, r := range cfg.Alerts {
		rules = append(rules, store.AlertRule{
			ID:        r.ID,
			Type:      r.Type,
			Threshold: r.Threshold,
			Window:    r.Window,
			Cooldown:  r.Cooldown,
			Severity:  r.Severity,
			Enabled:   r.RuleEnabled(),
			URLFilter: r.URLFilter,
		})
	}
	return rules
}

// CreateBaseline captures a fresh snapshot and replaces the stored one
// wholesale. Individual URL failures are recorded in the snapshot, not
// raised.
func (e *Engine) CreateBaseline(ctx context.Context) (*baseline.Snapshot, error) {
	samples := e.captureSamples(ctx)
	snap := baseline.Build(samples, e.fingerprint(), e.upstreamVersion(ctx))
	if err := e.st.PutJSON(baseline.Key, snap); err != nil {
		return nil, fmt.Errorf("persist baseline: %w", err)
	}
	return snap, nil
}

// AnalyzeChanges captures current samples and compares them against the
// stored baseline.
func (e *Engine) AnalyzeChanges(ctx context.Context) (detect.Result, error) {
	samples := e.captureSamples(ctx)
	return e.analyzeSamples(baseline.Cases(samples))
}

func (e *Engine) analyzeSamples(current []baseline.CaseResult) (detect.Result, error) {
	snap, ok, err := e.loadBaseline()
	if err != nil {
		return detect.Result{}, err
	}
	if !ok {
		return detect.NoBaseline(), nil
	}
	return detect.Analyze(snap, current, detect.Options{
		LengthDeltaThreshold: e.cfg.Detector.LengthDeltaThreshold,
	}), nil
}

func (e *Engine) loadBaseline() (*baseline.Snapshot, bool, error) {
	var snap baseline.Snapshot
	ok, err := e.st.GetJSON(baseline.Key, &snap)
	if err != nil {
		return nil, false, fmt.Errorf("load baseline: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &snap, true, nil
}

// MonitorWebClient diffs the configured web client assets against the
// cached snapshots.
func (e *Engine) MonitorWebClient(ctx context.Context) webclient.Report {
	return e.web.Run(ctx, e.cfg.WebClient.URLs)
}

// Trends reads the persisted history; it never looks at in-flight cycle
// state.
func (e *Engine) Trends(windowSize int) (trend.Trends, error) {
	if windowSize <= 0 {
		windowSize = e.cfg.Trend.WindowSize
	}
	entries, err := e.st.RecentHistory(windowSize)
	if err != nil {
		return trend.Trends{}, fmt.Errorf("read history: %w", err)
	}
	return trend.Compute(entries, windowSize), nil
}

// PredictRisk runs a fresh health probe plus trend and change analysis.
func (e *Engine) PredictRisk(ctx context.Context) (risk.Assessment, error) {
	samples := e.captureSamples(ctx)
	cases := baseline.Cases(samples)
	health := healthFromCases(cases)

	trends, err := e.Trends(0)
	if err != nil {
		return risk.Assessment{}, err
	}
	changes, err := e.analyzeSamples(cases)
	if err != nil {
		return risk.Assessment{}, err
	}

	return risk.Predict(health.SuccessRate, health.AvgResponseMS, trends, changes, e.thresholds()), nil
}

// CheckAlerts evaluates all armed alert rules once.
func (e *Engine) CheckAlerts() ([]store.AlertInstance, error) {
	fired, err := e.alerts.Check()
	for _, a := range fired {
		e.metrics.ObserveAlert(a.RuleID, a.Severity)
	}
	return fired, err
}

func (e *Engine) thresholds() risk.Thresholds {
	return risk.Thresholds{
		CriticalSuccessRate: e.cfg.Risk.CriticalSuccessRate,
		HighSuccessRate:     e.cfg.Risk.HighSuccessRate,
		SlowResponseMS:      e.cfg.Risk.SlowResponseMS,
	}
}

// captureSamples signs every configured test URL, records each attempt,
// and observes collaborator metrics.
func (e *Engine) captureSamples(ctx context.Context) []baseline.Sample {
	samples := baseline.Capture(ctx, e.signer, e.cfg.Baseline.TestURLs)
	now := time.Now().UTC()
	for _, s := range samples {
		e.metrics.ObserveSigner(s.Case.Success, time.Duration(s.Case.DurationMS)*time.Millisecond)
		// Persistence failure degrades to in-memory results; the cycle
		// itself continues.
		_ = e.st.RecordAttempt(store.Attempt{
			Timestamp:  now,
			URL:        s.Case.URL,
			Success:    s.Case.Success,
			Error:      s.Case.Error,
			DurationMS: s.Case.DurationMS,
		})
	}
	return samples
}

func healthFromCases(cases []baseline.CaseResult) dashboard.Health {
	h := dashboard.Health{
		AvgResponseMS: baseline.AvgDurationMS(cases),
	}
	if len(cases) == 0 {
		h.Error = "no test urls configured"
		return h
	}
	successes := baseline.Successes(cases)
	h.SuccessRate = float64(successes) / float64(len(cases))
	h.Healthy = successes > 0
	return h
}

func (e *Engine) fingerprint() baseline.Fingerprint {
	hostname, _ := os.Hostname()
	return baseline.Fingerprint{
		Hostname:       hostname,
		OS:             runtime.GOOS,
		Arch:           runtime.GOARCH,
		GoVersion:      runtime.Version(),
		MonitorVersion: e.version,
	}
}

// upstreamVersion probes the signing service's version endpoint when one is
// configured. Failure leaves the descriptor empty; the snapshot does not
// need it.
func (e *Engine) upstreamVersion(ctx context.Context) string {
	endpoint := e.cfg.Signer.VersionEndpoint
	if endpoint == "" {
		return ""
	}
	res, err := e.fetcher.Fetch(ctx, endpoint)
	if err != nil {
		return ""
	}

	var payload struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(res.Body, &payload); err == nil && payload.Version != "" {
		return payload.Version
	}
	return strings.TrimSpace(string(res.Body))
}
