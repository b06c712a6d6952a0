package alerting

import (
	"errors"
	"testing"
	"time"

	"github.com/seongkah/signing-for-paas-sub002/internal/store"
)

var t0 = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(st Store, now time.Time) *Engine {
	e := NewEngine(st)
	e.now = func() time.Time { return now }
	return e
}

func recordAttempts(t *testing.T, st *store.Memory, base time.Time, url string, outcomes []bool) {
	t.Helper()
	for i, ok := range outcomes {
		err := st.RecordAttempt(store.Attempt{
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
			URL:        url,
			Success:    ok,
			DurationMS: 100,
		})
		if err != nil {
			t.Fatalf("record attempt: %v", err)
		}
	}
}

func errorRateRule(id string) store.AlertRule {
	return store.AlertRule{
		ID:        id,
		Type:      ConditionErrorRate,
		Threshold: 0.5,
		Window:    time.Hour,
		Cooldown:  30 * time.Minute,
		Severity:  "critical",
		Enabled:   true,
	}
}

func TestStateAt(t *testing.T) {
	rule := errorRateRule("r1")

	rule.Enabled = false
	if got := StateAt(rule, t0); got != StateDisabled {
		t.Fatalf("disabled rule state = %s", got)
	}

	rule.Enabled = true
	if got := StateAt(rule, t0); got != StateArmed {
		t.Fatalf("fresh enabled rule state = %s", got)
	}

	trig := t0.Add(-10 * time.Minute)
	rule.LastTriggered = &trig
	if got := StateAt(rule, t0); got != StateCoolingDown {
		t.Fatalf("rule inside cooldown state = %s", got)
	}

	trig = t0.Add(-35 * time.Minute)
	rule.LastTriggered = &trig
	if got := StateAt(rule, t0); got != StateArmed {
		t.Fatalf("rule past cooldown state = %s", got)
	}
}

func TestCheckFiresAndCoolsDown(t *testing.T) {
	st := store.NewMemory()
	if err := st.PutRule(errorRateRule("r1")); err != nil {
		t.Fatalf("put rule: %v", err)
	}
	recordAttempts(t, st, t0.Add(-10*time.Minute), "https://example.com", []bool{false, false, false, true})

	e := newTestEngine(st, t0)
	fired, err := e.Check()
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(fired) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(fired))
	}
	if fired[0].RuleID != "r1" || fired[0].Severity != "critical" {
		t.Fatalf("unexpected alert %+v", fired[0])
	}
	if fired[0].ID == "" {
		t.Fatal("alert must get an id")
	}

	// Ten minutes later the condition still holds but the rule is cooling
	// down; nothing new fires.
	e.now = func() time.Time { return t0.Add(10 * time.Minute) }
	fired, err = e.Check()
	if err != nil {
		t.Fatalf("check during cooldown: %v", err)
	}
	if len(fired) != 0 {
		t.Fatalf("cooldown must suppress re-trigger, got %d alerts", len(fired))
	}

	// Thirty-five minutes later the cooldown has lapsed and the rule
	// re-arms.
	e.now = func() time.Time { return t0.Add(35 * time.Minute) }
	fired, err = e.Check()
	if err != nil {
		t.Fatalf("check after cooldown: %v", err)
	}
	if len(fired) != 1 {
		t.Fatalf("rule must re-fire after cooldown, got %d alerts", len(fired))
	}
}

func TestCheckDisabledRuleSkipped(t *testing.T) {
	st := store.NewMemory()
	rule := errorRateRule("r1")
	rule.Enabled = false
	if err := st.PutRule(rule); err != nil {
		t.Fatalf("put rule: %v", err)
	}
	recordAttempts(t, st, t0.Add(-10*time.Minute), "u", []bool{false, false})

	e := newTestEngine(st, t0)
	fired, err := e.Check()
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(fired) != 0 {
		t.Fatalf("disabled rules are never evaluated, got %d alerts", len(fired))
	}
}

func TestCheckEmptyWindowDoesNotFire(t *testing.T) {
	st := store.NewMemory()
	if err := st.PutRule(errorRateRule("r1")); err != nil {
		t.Fatalf("put rule: %v", err)
	}

	e := newTestEngine(st, t0)
	fired, err := e.Check()
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(fired) != 0 {
		t.Fatalf("no attempts means no alert, got %d", len(fired))
	}
}

func TestCheckErrorCount(t *testing.T) {
	st := store.NewMemory()
	rule := store.AlertRule{
		ID: "count", Type: ConditionErrorCount, Threshold: 3,
		Window: time.Hour, Enabled: true, Severity: "warning",
	}
	if err := st.PutRule(rule); err != nil {
		t.Fatalf("put rule: %v", err)
	}
	recordAttempts(t, st, t0.Add(-30*time.Minute), "u", []bool{false, true, false})

	e := newTestEngine(st, t0)
	if fired, _ := e.Check(); len(fired) != 0 {
		t.Fatalf("2 failures under threshold 3, got %d alerts", len(fired))
	}

	recordAttempts(t, st, t0.Add(-5*time.Minute), "u", []bool{false})
	if fired, _ := e.Check(); len(fired) != 1 {
		t.Fatal("3 failures must fire the count rule")
	}
}

func TestCheckResponseTime(t *testing.T) {
	st := store.NewMemory()
	rule := store.AlertRule{
		ID: "slow", Type: ConditionResponseTime, Threshold: 500,
		Window: time.Hour, Enabled: true, Severity: "warning",
	}
	if err := st.PutRule(rule); err != nil {
		t.Fatalf("put rule: %v", err)
	}
	for i, ms := range []int64{300, 600, 900} {
		_ = st.RecordAttempt(store.Attempt{
			Timestamp:  t0.Add(time.Duration(i-10) * time.Minute),
			URL:        "u",
			Success:    true,
			DurationMS: ms,
		})
	}

	e := newTestEngine(st, t0)
	fired, err := e.Check()
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(fired) != 1 {
		t.Fatalf("average 600ms over threshold 500ms must fire, got %d", len(fired))
	}
}

func TestCheckConsecutiveFailures(t *testing.T) {
	st := store.NewMemory()
	rule := store.AlertRule{
		ID: "streak", Type: ConditionConsecutiveFailures, Threshold: 3,
		Enabled: true, Severity: "critical",
	}
	if err := st.PutRule(rule); err != nil {
		t.Fatalf("put rule: %v", err)
	}

	e := newTestEngine(st, t0)

	recordAttempts(t, st, t0.Add(-20*time.Minute), "u", []bool{false, false})
	if fired, _ := e.Check(); len(fired) != 0 {
		t.Fatal("2 failures are not a streak of 3")
	}

	recordAttempts(t, st, t0.Add(-10*time.Minute), "u", []bool{false})
	if fired, _ := e.Check(); len(fired) != 1 {
		t.Fatal("3 consecutive failures must fire")
	}

	// A success breaks the streak.
	recordAttempts(t, st, t0.Add(-5*time.Minute), "u", []bool{true, false, false})
	cooled := store.AlertRule{
		ID: "streak2", Type: ConditionConsecutiveFailures, Threshold: 3,
		Enabled: true, Severity: "critical",
	}
	if err := st.PutRule(cooled); err != nil {
		t.Fatalf("put rule: %v", err)
	}
	if fired, _ := e.Check(); len(fired) != 0 {
		t.Fatal("a success in the last 3 attempts must break the streak")
	}
}

func TestCheckURLFilter(t *testing.T) {
	st := store.NewMemory()
	rule := errorRateRule("filtered")
	rule.URLFilter = "video"
	if err := st.PutRule(rule); err != nil {
		t.Fatalf("put rule: %v", err)
	}

	// Failures are all on non-matching URLs.
	recordAttempts(t, st, t0.Add(-10*time.Minute), "https://example.com/live/1", []bool{false, false})
	recordAttempts(t, st, t0.Add(-8*time.Minute), "https://example.com/video/1", []bool{true, true})

	e := newTestEngine(st, t0)
	fired, err := e.Check()
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(fired) != 0 {
		t.Fatalf("filtered rule must only see matching attempts, got %d alerts", len(fired))
	}
}

func TestAcknowledgeIdempotent(t *testing.T) {
	st := store.NewMemory()
	if err := st.PutRule(errorRateRule("r1")); err != nil {
		t.Fatalf("put rule: %v", err)
	}
	recordAttempts(t, st, t0.Add(-10*time.Minute), "u", []bool{false, false})

	e := newTestEngine(st, t0)
	fired, err := e.Check()
	if err != nil || len(fired) != 1 {
		t.Fatalf("check: %v, fired %d", err, len(fired))
	}
	id := fired[0].ID

	if err := e.Acknowledge(id, "oncall"); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	alert, err := st.GetAlert(id)
	if err != nil {
		t.Fatalf("get alert: %v", err)
	}
	if !alert.Acknowledged || alert.AcknowledgedBy != "oncall" || alert.AcknowledgedAt == nil {
		t.Fatalf("acknowledgement not recorded: %+v", alert)
	}
	firstAck := *alert.AcknowledgedAt

	// Second acknowledgement is a no-op success and keeps the original
	// actor and timestamp.
	e.now = func() time.Time { return t0.Add(time.Hour) }
	if err := e.Acknowledge(id, "someone-else"); err != nil {
		t.Fatalf("repeat acknowledge: %v", err)
	}
	alert, _ = st.GetAlert(id)
	if alert.AcknowledgedBy != "oncall" || !alert.AcknowledgedAt.Equal(firstAck) {
		t.Fatalf("repeat acknowledgement must not overwrite: %+v", alert)
	}

	active, err := e.ActiveAlerts()
	if err != nil {
		t.Fatalf("active alerts: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("acknowledged alerts are not active, got %d", len(active))
	}
}

func TestAcknowledgeUnknownAlert(t *testing.T) {
	e := newTestEngine(store.NewMemory(), t0)
	err := e.Acknowledge("nope", "oncall")
	if !errors.Is(err, ErrUnknownAlert) {
		t.Fatalf("expected ErrUnknownAlert, got %v", err)
	}
}

func TestUpdateRulePartialPatch(t *testing.T) {
	st := store.NewMemory()
	if err := st.PutRule(errorRateRule("r1")); err != nil {
		t.Fatalf("put rule: %v", err)
	}

	e := newTestEngine(st, t0)
	threshold := 0.9
	disabled := false
	updated, err := e.UpdateRule("r1", RulePatch{Threshold: &threshold, Enabled: &disabled})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Threshold != 0.9 || updated.Enabled {
		t.Fatalf("patch not applied: %+v", updated)
	}
	// Untouched fields survive.
	if updated.Window != time.Hour || updated.Cooldown != 30*time.Minute || updated.Severity != "critical" {
		t.Fatalf("unpatched fields must be preserved: %+v", updated)
	}

	stored, err := st.GetRule("r1")
	if err != nil {
		t.Fatalf("get rule: %v", err)
	}
	if stored.Threshold != 0.9 || stored.Enabled {
		t.Fatalf("patch not persisted: %+v", stored)
	}
}

func TestUpdateRuleUnknown(t *testing.T) {
	e := newTestEngine(store.NewMemory(), t0)
	enabled := true
	_, err := e.UpdateRule("missing", RulePatch{Enabled: &enabled})
	if !errors.Is(err, ErrUnknownRule) {
		t.Fatalf("expected ErrUnknownRule, got %v", err)
	}
}

func TestSeedRulesStoredWins(t *testing.T) {
	st := store.NewMemory()
	stored := errorRateRule("r1")
	stored.Threshold = 0.25
	if err := st.PutRule(stored); err != nil {
		t.Fatalf("put rule: %v", err)
	}

	e := newTestEngine(st, t0)
	seed := errorRateRule("r1")
	fresh := errorRateRule("r2")
	if err := e.SeedRules([]store.AlertRule{seed, fresh}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, _ := st.GetRule("r1")
	if got.Threshold != 0.25 {
		t.Fatalf("stored rule must survive seeding, got %+v", got)
	}
	if _, err := st.GetRule("r2"); err != nil {
		t.Fatalf("new rule must be seeded: %v", err)
	}
}

func TestValidCondition(t *testing.T) {
	for _, c := range ConditionTypes {
		if !ValidCondition(c) {
			t.Fatalf("%s should be valid", c)
		}
	}
	if ValidCondition("disk_full") {
		t.Fatal("unknown condition must be invalid")
	}
}
