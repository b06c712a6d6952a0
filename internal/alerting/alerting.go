// Package alerting evaluates configurable alert rules against recorded
// signing attempts, with per-rule cooldown and acknowledgement state.
package alerting

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/seongkah/signing-for-paas-sub002/internal/store"
)

var (
	// ErrUnknownRule is returned when an update targets a rule id that
	// does not exist.
	ErrUnknownRule = errors.New("unknown alert rule")
	// ErrUnknownAlert is returned when an acknowledgement targets an
	// alert id that does not exist.
	ErrUnknownAlert = errors.New("unknown alert")
)

const (
	ConditionErrorRate           = "error_rate"
	ConditionErrorCount          = "error_count"
	ConditionResponseTime        = "response_time"
	ConditionConsecutiveFailures = "consecutive_failures"
)

// ConditionTypes lists every supported rule condition.
var ConditionTypes = []string{
	ConditionErrorRate,
	ConditionErrorCount,
	ConditionResponseTime,
	ConditionConsecutiveFailures,
}

func ValidCondition(t string) bool {
	for _, known := range ConditionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// RuleState is the per-rule state machine position.
type RuleState string

const (
	StateDisabled    RuleState = "disabled"
	StateArmed       RuleState = "armed"
	StateCoolingDown RuleState = "cooling_down"
)

// StateAt derives a rule's state: disabled rules are never evaluated, and a
// rule inside its cooldown window cannot re-trigger no matter how often its
// condition evaluates true.
func StateAt(r store.AlertRule, now time.Time) RuleState {
	if !r.Enabled {
		return StateDisabled
	}
	if r.LastTriggered != nil && now.Sub(*r.LastTriggered) < r.Cooldown {
		return StateCoolingDown
	}
	return StateArmed
}

// Store is the slice of persistence the engine needs.
type Store interface {
	ListRules() ([]store.AlertRule, error)
	GetRule(id string) (store.AlertRule, error)
	PutRule(r store.AlertRule) error
	SetRuleLastTriggered(id string, t time.Time) error
	AttemptsSince(since time.Time, urlFilter string) ([]store.Attempt, error)
	RecentAttempts(n int, urlFilter string) ([]store.Attempt, error)
	InsertAlert(a store.AlertInstance) error
	GetAlert(id string) (store.AlertInstance, error)
	UpdateAlert(a store.AlertInstance) error
	ActiveAlerts() ([]store.AlertInstance, error)
}

type Engine struct {
	st  Store
	mu  sync.Mutex
	now func() time.Time
}

func NewEngine(st Store) *Engine {
	return &Engine{st: st, now: time.Now}
}

// SeedRules inserts configured rules that are not yet stored. Stored rules
// win so that updates applied through UpdateRule survive restarts.
func (e *Engine) SeedRules(rules []store.AlertRule) error {
	for _, r := range rules {
		_, err := e.st.GetRule(r.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err := e.st.PutRule(r); err != nil {
			return fmt.Errorf("seed rule %s: %w", r.ID, err)
		}
	}
	return nil
}

// Check evaluates every armed rule and returns the alerts fired this pass.
func (e *Engine) Check() ([]store.AlertInstance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rules, err := e.st.ListRules()
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}

	now := e.now()
	var fired []store.AlertInstance

	for _, rule := range rules {
		if StateAt(rule, now) != StateArmed {
			continue
		}

		triggered, detail, err := e.evaluate(rule, now)
		if err != nil {
			return fired, fmt.Errorf("evaluate rule %s: %w", rule.ID, err)
		}
		if !triggered {
			continue
		}

		instance := store.AlertInstance{
			ID:          uuid.NewString(),
			RuleID:      rule.ID,
			Message:     fmt.Sprintf("rule %s fired: %s", rule.ID, detail),
			Severity:    rule.Severity,
			TriggeredAt: now,
		}
		if err := e.st.InsertAlert(instance); err != nil {
			return fired, fmt.Errorf("insert alert: %w", err)
		}
		if err := e.st.SetRuleLastTriggered(rule.ID, now); err != nil {
			return fired, fmt.Errorf("mark rule triggered: %w", err)
		}
		fired = append(fired, instance)
	}

	return fired, nil
}

func (e *Engine) evaluate(rule store.AlertRule, now time.Time) (bool, string, error) {
	switch rule.Type {
	case ConditionConsecutiveFailures:
		n := int(rule.Threshold)
		if n <= 0 {
			return false, "", nil
		}
		recent, err := e.st.RecentAttempts(n, rule.URLFilter)
		if err != nil {
			return false, "", err
		}
		if len(recent) < n {
			return false, "", nil
		}
		for _, a := range recent {
			if a.Success {
				return false, "", nil
			}
		}
		return true, fmt.Sprintf("last %d attempts all failed", n), nil
	}

	attempts, err := e.st.AttemptsSince(now.Add(-rule.Window), rule.URLFilter)
	if err != nil {
		return false, "", err
	}
	if len(attempts) == 0 {
		return false, "", nil
	}

	failures := 0
	var totalMS int64
	for _, a := range attempts {
		if !a.Success {
			failures++
		}
		totalMS += a.DurationMS
	}

	switch rule.Type {
	case ConditionErrorRate:
		rate := float64(failures) / float64(len(attempts))
		if rate >= rule.Threshold {
			return true, fmt.Sprintf("error rate %.0f%% over %s (threshold %.0f%%)",
				rate*100, rule.Window, rule.Threshold*100), nil
		}
	case ConditionErrorCount:
		if float64(failures) >= rule.Threshold {
			return true, fmt.Sprintf("%d errors over %s (threshold %.0f)",
				failures, rule.Window, rule.Threshold), nil
		}
	case ConditionResponseTime:
		avg := float64(totalMS) / float64(len(attempts))
		if avg >= rule.Threshold {
			return true, fmt.Sprintf("average response time %.0fms over %s (threshold %.0fms)",
				avg, rule.Window, rule.Threshold), nil
		}
	}
	return false, "", nil
}

// Acknowledge marks an alert acknowledged. Acknowledging an already
// acknowledged alert is an idempotent success.
func (e *Engine) Acknowledge(id, actor string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	alert, err := e.st.GetAlert(id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrUnknownAlert, id)
	}
	if err != nil {
		return err
	}
	if alert.Acknowledged {
		return nil
	}

	now := e.now()
	alert.Acknowledged = true
	alert.AcknowledgedBy = actor
	alert.AcknowledgedAt = &now
	return e.st.UpdateAlert(alert)
}

// RulePatch carries the fields an update may change; nil fields are left
// untouched.
type RulePatch struct {
	Enabled   *bool
	Threshold *float64
	Window    *time.Duration
	Cooldown  *time.Duration
	Severity  *string
	URLFilter *string
}

// UpdateRule merges patch into the stored rule atomically with respect to
// concurrent evaluation passes.
func (e *Engine) UpdateRule(id string, patch RulePatch) (store.AlertRule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rule, err := e.st.GetRule(id)
	if errors.Is(err, store.ErrNotFound) {
		return store.AlertRule{}, fmt.Errorf("%w: %s", ErrUnknownRule, id)
	}
	if err != nil {
		return store.AlertRule{}, err
	}

	if patch.Enabled != nil {
		rule.Enabled = *patch.Enabled
	}
	if patch.Threshold != nil {
		rule.Threshold = *patch.Threshold
	}
	if patch.Window != nil {
		rule.Window = *patch.Window
	}
	if patch.Cooldown != nil {
		rule.Cooldown = *patch.Cooldown
	}
	if patch.Severity != nil {
		rule.Severity = *patch.Severity
	}
	if patch.URLFilter != nil {
		rule.URLFilter = *patch.URLFilter
	}

	if err := e.st.PutRule(rule); err != nil {
		return store.AlertRule{}, err
	}
	return rule, nil
}

// ActiveAlerts returns all unacknowledged alerts, most recent first.
func (e *Engine) ActiveAlerts() ([]store.AlertInstance, error) {
	return e.st.ActiveAlerts()
}
