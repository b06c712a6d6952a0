package store

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process store used by tests and as the degraded fallback
// when the database is unreachable.
type Memory struct {
	mu       sync.Mutex
	kv       map[string][]byte
	history  []HistoryEntry
	attempts []Attempt
	rules    map[string]AlertRule
	alerts   map[string]AlertInstance
	order    []string
}

func NewMemory() *Memory {
	return &Memory{
		kv:     map[string][]byte{},
		rules:  map[string]AlertRule{},
		alerts: map[string]AlertInstance{},
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) GetJSON(key string, out any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.kv[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func (m *Memory) PutJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kv[key] = data
	return nil
}

func (m *Memory) AppendHistory(e HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, e)
	return nil
}

func (m *Memory) RecentHistory(n int) ([]HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := len(m.history) - n
	if n <= 0 || start < 0 {
		start = 0
	}
	out := make([]HistoryEntry, len(m.history)-start)
	copy(out, m.history[start:])
	return out, nil
}

func (m *Memory) RecordAttempt(a Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, a)
	return nil
}

func (m *Memory) AttemptsSince(since time.Time, urlFilter string) ([]Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Attempt
	for _, a := range m.attempts {
		if a.Timestamp.Before(since) {
			continue
		}
		if urlFilter != "" && !containsFold(a.URL, urlFilter) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *Memory) RecentAttempts(n int, urlFilter string) ([]Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Attempt
	for i := len(m.attempts) - 1; i >= 0; i-- {
		a := m.attempts[i]
		if urlFilter != "" && !containsFold(a.URL, urlFilter) {
			continue
		}
		out = append(out, a)
		if n > 0 && len(out) >= n {
			break
		}
	}
	return out, nil
}

func (m *Memory) ListRules() ([]AlertRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AlertRule, 0, len(m.rules))
	for _, r := range m.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetRule(id string) (AlertRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok {
		return AlertRule{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) PutRule(r AlertRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[r.ID] = r
	return nil
}

func (m *Memory) SetRuleLastTriggered(id string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok {
		return ErrNotFound
	}
	ts := t
	r.LastTriggered = &ts
	m.rules[id] = r
	return nil
}

func (m *Memory) InsertAlert(a AlertInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[a.ID] = a
	m.order = append(m.order, a.ID)
	return nil
}

func (m *Memory) GetAlert(id string) (AlertInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return AlertInstance{}, ErrNotFound
	}
	return a, nil
}

func (m *Memory) UpdateAlert(a AlertInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.alerts[a.ID]; !ok {
		return ErrNotFound
	}
	m.alerts[a.ID] = a
	return nil
}

func (m *Memory) ActiveAlerts() ([]AlertInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AlertInstance
	for i := len(m.order) - 1; i >= 0; i-- {
		a := m.alerts[m.order[i]]
		if !a.Acknowledged {
			out = append(out, a)
		}
	}
	return out, nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
