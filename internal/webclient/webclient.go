// Package webclient watches the upstream web client's script assets for
// structural changes that usually precede signing-algorithm drift.
package webclient

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/seongkah/signing-for-paas-sub002/internal/fetch"
)

const (
	IndicatorPatternCountChange   = "pattern_count_change"
	IndicatorNewFunctions         = "new_functions"
	IndicatorIncreasedObfuscation = "increased_obfuscation"
)

const (
	SignificanceLow    = "low"
	SignificanceMedium = "medium"
	SignificanceHigh   = "high"
)

// DefaultCountDelta is the per-category match-count movement that counts as
// a real change rather than page noise.
const DefaultCountDelta = 5

// DefaultMinFragmentBytes filters out trivial inline snippets.
const DefaultMinFragmentBytes = 200

type Indicator struct {
	Type         string `json:"type"`
	Significance string `json:"significance"`
	Detail       string `json:"detail"`
}

type FragmentResult struct {
	Index      int         `json:"index"`
	Source     string      `json:"source"`
	Error      string      `json:"error,omitempty"`
	Changed    bool        `json:"changed"`
	Indicators []Indicator `json:"indicators,omitempty"`
}

type URLResult struct {
	URL       string           `json:"url"`
	Error     string           `json:"error,omitempty"`
	Fragments []FragmentResult `json:"fragments,omitempty"`
}

type Report struct {
	CheckedAt               time.Time   `json:"checked_at"`
	Results                 []URLResult `json:"results"`
	OverallChanges          bool        `json:"overall_changes"`
	AlgorithmChangeDetected bool        `json:"algorithm_change_detected"`
}

// KV is the slice of the persistent store the differencer needs for its
// per-fragment cache.
type KV interface {
	GetJSON(key string, out any) (bool, error)
	PutJSON(key string, v any) error
}

type Config struct {
	MinFragmentBytes   int
	NoiseThreshold     int
	CountDelta         int
	Categories         map[string][]string
	SuspiciousKeywords []string
}

type Monitor struct {
	fetcher    fetch.Fetcher
	kv         KV
	analyzer   *Analyzer
	minBytes   int
	countDelta int
}

func New(fetcher fetch.Fetcher, kv KV, cfg Config) (*Monitor, error) {
	analyzer, err := NewAnalyzer(cfg.Categories, cfg.SuspiciousKeywords, cfg.NoiseThreshold)
	if err != nil {
		return nil, err
	}

	minBytes := cfg.MinFragmentBytes
	if minBytes <= 0 {
		minBytes = DefaultMinFragmentBytes
	}
	countDelta := cfg.CountDelta
	if countDelta <= 0 {
		countDelta = DefaultCountDelta
	}

	return &Monitor{
		fetcher:    fetcher,
		kv:         kv,
		analyzer:   analyzer,
		minBytes:   minBytes,
		countDelta: countDelta,
	}, nil
}

// Run checks every configured URL. Per-URL and per-fragment failures are
// recorded in their slot; the run itself never fails.
func (m *Monitor) Run(ctx context.Context, urls []string) Report {
	report := Report{CheckedAt: time.Now().UTC()}

	for _, u := range urls {
		report.Results = append(report.Results, m.checkURL(ctx, u))
	}

	for _, res := range report.Results {
		for _, frag := range res.Fragments {
			if frag.Changed {
				report.OverallChanges = true
			}
			if len(frag.Indicators) > 0 {
				report.AlgorithmChangeDetected = true
			}
		}
	}
	return report
}

func (m *Monitor) checkURL(ctx context.Context, pageURL string) URLResult {
	result := URLResult{URL: pageURL}

	page, err := m.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	fragments := extractFragments(pageURL, string(page.Body), m.minBytes)
	for i, frag := range fragments {
		result.Fragments = append(result.Fragments, m.checkFragment(ctx, pageURL, i, frag))
	}
	return result
}

func (m *Monitor) checkFragment(ctx context.Context, pageURL string, index int, frag fragment) FragmentResult {
	result := FragmentResult{Index: index, Source: frag.Source}

	content := frag.Content
	if content == "" {
		fetched, err := m.fetcher.Fetch(ctx, frag.Source)
		if err != nil {
			result.Error = err.Error()
			return result
		}
		content = string(fetched.Body)
	}

	current := m.analyzer.Analyze(content)
	cacheKey := fmt.Sprintf("webclient/%s#%d", pageURL, index)

	var previous Analysis
	cached, err := m.kv.GetJSON(cacheKey, &previous)
	if err != nil {
		result.Error = fmt.Sprintf("read cache: %v", err)
		return result
	}

	if cached {
		if previous.Hash == current.Hash {
			return result
		}
		result.Changed = true
		result.Indicators = Compare(previous, current, m.countDelta)
	}

	if err := m.kv.PutJSON(cacheKey, current); err != nil {
		result.Error = fmt.Sprintf("write cache: %v", err)
	}
	return result
}

// Compare diffs two analyses of the same fragment and emits the change
// indicators the risk side consumes.
func Compare(previous, current Analysis, countDelta int) []Indicator {
	var out []Indicator

	for _, name := range categoryUnion(previous.Categories, current.Categories) {
		prev := previous.Categories[name].Count
		cur := current.Categories[name].Count
		delta := cur - prev
		if delta < 0 {
			delta = -delta
		}
		if delta > countDelta {
			out = append(out, Indicator{
				Type:         IndicatorPatternCountChange,
				Significance: SignificanceHigh,
				Detail:       fmt.Sprintf("category %s match count moved %d -> %d", name, prev, cur),
			})
		}
	}

	if added := newNames(previous.SuspiciousNames, current.SuspiciousNames); len(added) > 0 {
		out = append(out, Indicator{
			Type:         IndicatorNewFunctions,
			Significance: SignificanceMedium,
			Detail:       fmt.Sprintf("new suspicious names: %v", added),
		})
	}

	if current.Obfuscation.Total() > previous.Obfuscation.Total() {
		out = append(out, Indicator{
			Type:         IndicatorIncreasedObfuscation,
			Significance: SignificanceHigh,
			Detail: fmt.Sprintf("obfuscation indicators rose %d -> %d",
				previous.Obfuscation.Total(), current.Obfuscation.Total()),
		})
	}

	return out
}

func categoryUnion(a, b map[string]CategoryHits) []string {
	set := map[string]bool{}
	for name := range a {
		set[name] = true
	}
	for name := range b {
		set[name] = true
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newNames(previous, current []string) []string {
	known := map[string]bool{}
	for _, n := range previous {
		known[n] = true
	}
	var added []string
	for _, n := range current {
		if !known[n] {
			added = append(added, n)
		}
	}
	return added
}
