// Package detect compares current signing samples against the stored
// baseline snapshot and classifies any drift.
package detect

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/seongkah/signing-for-paas-sub002/internal/baseline"
	"github.com/seongkah/signing-for-paas-sub002/internal/signer"
)

const (
	StatusOK         = "ok"
	StatusNoBaseline = "no_baseline"
)

const (
	ChangeComplete  = "complete_change"
	ChangePartial   = "partial_change"
	ChangeEvolution = "pattern_evolution"
)

const (
	ComponentPrimary       = "primary_generation"
	ComponentSecondary     = "secondary_generation"
	ComponentFingerprint   = "fingerprinting"
	ComponentLengthPattern = "signature_length_pattern"
)

const (
	PriorityCritical = "CRITICAL"
	PriorityHigh     = "HIGH"
	PriorityMedium   = "MEDIUM"
	PriorityLow      = "LOW"
)

// errorKeywords maps a substring of a failure message to the component it
// implicates.
var errorKeywords = map[string]string{
	"signature": ComponentPrimary,
	"bogus":     ComponentSecondary,
	"navigator": ComponentFingerprint,
}

type Options struct {
	// LengthDeltaThreshold is the average primary-token length delta, in
	// characters, beyond which the pattern is considered to have evolved.
	LengthDeltaThreshold float64
}

const DefaultLengthDeltaThreshold = 10

type Recommendation struct {
	Priority string `json:"priority"`
	Action   string `json:"action"`
}

// Deltas are the raw comparison numbers kept for diagnostics.
type Deltas struct {
	BaselineSuccesses int     `json:"baseline_successes"`
	BaselineTotal     int     `json:"baseline_total"`
	CurrentSuccesses  int     `json:"current_successes"`
	CurrentTotal      int     `json:"current_total"`
	SuccessRateDelta  float64 `json:"success_rate_delta"`
	BaselineAvgLength float64 `json:"baseline_avg_length"`
	CurrentAvgLength  float64 `json:"current_avg_length"`
}

type Result struct {
	Status             string           `json:"status"`
	Message            string           `json:"message,omitempty"`
	ChangesDetected    bool             `json:"changes_detected"`
	ChangeTypes        []string         `json:"change_types,omitempty"`
	AffectedComponents []string         `json:"affected_components,omitempty"`
	Recommendations    []Recommendation `json:"recommendations,omitempty"`
	Deltas             Deltas           `json:"deltas"`
}

// NoBaseline is the structured result returned when no snapshot exists.
// Missing configuration is a status, not an error.
func NoBaseline() Result {
	return Result{
		Status:  StatusNoBaseline,
		Message: "no baseline snapshot exists; run `signwatch baseline` while the signer is known healthy",
	}
}

// Analyze compares current samples against the snapshot. The snapshot must
// be the single current baseline; callers load it fresh from the store.
func Analyze(snap *baseline.Snapshot, current []baseline.CaseResult, opts Options) Result {
	if snap == nil {
		return NoBaseline()
	}

	threshold := opts.LengthDeltaThreshold
	if threshold <= 0 {
		threshold = DefaultLengthDeltaThreshold
	}

	baseSucc := snap.Successes()
	curSucc := baseline.Successes(current)
	deltas := Deltas{
		BaselineSuccesses: baseSucc,
		BaselineTotal:     len(snap.Results),
		CurrentSuccesses:  curSucc,
		CurrentTotal:      len(current),
		SuccessRateDelta:  successRate(curSucc, len(current)) - successRate(baseSucc, len(snap.Results)),
		BaselineAvgLength: snap.AvgFieldLength(signer.FieldPrimary),
		CurrentAvgLength:  baseline.AvgFieldLength(current, signer.FieldPrimary),
	}

	res := Result{Status: StatusOK, Deltas: deltas}
	affected := map[string]bool{}

	switch {
	case curSucc == 0 && baseSucc > 0:
		res.ChangeTypes = append(res.ChangeTypes, ChangeComplete)
		affected[ComponentPrimary] = true
		affected[ComponentSecondary] = true
	case curSucc < baseSucc:
		res.ChangeTypes = append(res.ChangeTypes, ChangePartial)
		for _, component := range implicatedComponents(current) {
			affected[component] = true
		}
	}

	if baseSucc > 0 && curSucc > 0 {
		if math.Abs(deltas.CurrentAvgLength-deltas.BaselineAvgLength) > threshold {
			res.ChangeTypes = append(res.ChangeTypes, ChangeEvolution)
			affected[ComponentLengthPattern] = true
		}
	}

	res.ChangesDetected = len(res.ChangeTypes) > 0
	res.AffectedComponents = sortedKeys(affected)
	res.Recommendations = recommend(res.ChangeTypes, res.AffectedComponents)
	return res
}

var errorKeywordMatcher = newKeywordMatcher(keywordList())

func keywordList() []string {
	keys := make([]string, 0, len(errorKeywords))
	for k := range errorKeywords {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func implicatedComponents(current []baseline.CaseResult) []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range current {
		if c.Success || c.Error == "" {
			continue
		}
		for _, kw := range errorKeywordMatcher.MatchAll(strings.ToLower(c.Error)) {
			component := errorKeywords[kw]
			if component != "" && !seen[component] {
				seen[component] = true
				out = append(out, component)
			}
		}
	}
	return out
}

// recommendationTable is keyed changeType/component. Entries are emitted in
// priority order; a low-priority monitoring bump is always appended.
var recommendationTable = []struct {
	changeType string
	component  string
	rec        Recommendation
}{
	{ChangeComplete, "", Recommendation{PriorityCritical, "signing output is entirely rejected; activate the fallback signing path and page the on-call"}},
	{ChangePartial, ComponentPrimary, Recommendation{PriorityHigh, "inspect primary signature generation against recent upstream client changes"}},
	{ChangePartial, ComponentSecondary, Recommendation{PriorityMedium, "verify secondary token generation parameters"}},
	{ChangePartial, ComponentFingerprint, Recommendation{PriorityMedium, "refresh the browser fingerprint profile used for signing"}},
	{ChangeEvolution, ComponentLengthPattern, Recommendation{PriorityMedium, "token structure shifted; verify signed requests still succeed, then recapture the baseline"}},
}

func recommend(changeTypes, components []string) []Recommendation {
	types := map[string]bool{}
	for _, t := range changeTypes {
		types[t] = true
	}
	comps := map[string]bool{}
	for _, c := range components {
		comps[c] = true
	}

	var out []Recommendation
	for _, entry := range recommendationTable {
		if !types[entry.changeType] {
			continue
		}
		if entry.component != "" && !comps[entry.component] {
			continue
		}
		out = append(out, entry.rec)
	}

	out = append(out, Recommendation{PriorityLow, "increase monitoring frequency until the drift is understood"})
	return out
}

func successRate(successes, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(successes) / float64(total)
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders a recommendation the way the dashboard merges them.
func (r Recommendation) String() string {
	return fmt.Sprintf("%s: %s", r.Priority, r.Action)
}
