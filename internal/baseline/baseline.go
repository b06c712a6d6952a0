package baseline

import (
	"sort"
	"time"

	"github.com/seongkah/signing-for-paas-sub002/internal/pattern"
)

// prefixLength is how much of each token is kept in the prefix set.
const prefixLength = 4

// CaseResult is the outcome of signing one test URL.
type CaseResult struct {
	URL        string                      `json:"url"`
	Success    bool                        `json:"success"`
	Error      string                      `json:"error,omitempty"`
	Fields     map[string]pattern.Features `json:"fields,omitempty"`
	DurationMS int64                       `json:"duration_ms"`
}

// FieldStats are the running aggregates for one token field across all
// successful cases.
type FieldStats struct {
	Lengths  []int    `json:"lengths"`
	Prefixes []string `json:"prefixes"`
}

// Fingerprint records the environment a snapshot was captured in.
type Fingerprint struct {
	Hostname       string `json:"hostname"`
	OS             string `json:"os"`
	Arch           string `json:"arch"`
	GoVersion      string `json:"go_version"`
	MonitorVersion string `json:"monitor_version"`
}

// Snapshot is the reference picture of known-good signing behavior. It is
// immutable once written; regeneration replaces it wholesale.
type Snapshot struct {
	CreatedAt       time.Time             `json:"created_at"`
	Results         []CaseResult          `json:"results"`
	Aggregates      map[string]FieldStats `json:"aggregates"`
	Environment     Fingerprint           `json:"environment"`
	UpstreamVersion string                `json:"upstream_version,omitempty"`
}

// Key is where the current snapshot lives in the KV store.
const Key = "baseline/current"

// Builder folds per-case results into a snapshot.
type Builder struct {
	results    []CaseResult
	aggregates map[string]fieldAgg
}

type fieldAgg struct {
	lengths  []int
	prefixes map[string]bool
}

func NewBuilder() *Builder {
	return &Builder{aggregates: map[string]fieldAgg{}}
}

// Observe records one case. tokens holds the raw field values for
// successful cases; prefix folding needs the raw strings, not just their
// features. Failed cases are kept as-is and contribute nothing to the
// aggregates.
func (b *Builder) Observe(res CaseResult, tokens map[string]string) {
	b.results = append(b.results, res)
	if !res.Success {
		return
	}

	for field, feats := range res.Fields {
		agg, ok := b.aggregates[field]
		if !ok {
			agg = fieldAgg{prefixes: map[string]bool{}}
		}
		agg.lengths = append(agg.lengths, feats.Length)
		if p := tokenPrefix(tokens[field]); p != "" {
			agg.prefixes[p] = true
		}
		b.aggregates[field] = agg
	}
}

func tokenPrefix(token string) string {
	if len(token) <= prefixLength {
		return token
	}
	return token[:prefixLength]
}

// Finalize stamps the snapshot. The builder must not be reused after.
func (b *Builder) Finalize(fp Fingerprint, upstreamVersion string) *Snapshot {
	aggregates := make(map[string]FieldStats, len(b.aggregates))
	for field, agg := range b.aggregates {
		prefixes := make([]string, 0, len(agg.prefixes))
		for p := range agg.prefixes {
			prefixes = append(prefixes, p)
		}
		sort.Strings(prefixes)
		aggregates[field] = FieldStats{Lengths: agg.lengths, Prefixes: prefixes}
	}

	return &Snapshot{
		CreatedAt:       time.Now().UTC(),
		Results:         b.results,
		Aggregates:      aggregates,
		Environment:     fp,
		UpstreamVersion: upstreamVersion,
	}
}

// Successes counts the successful cases in a result set.
func Successes(results []CaseResult) int {
	n := 0
	for _, r := range results {
		if r.Success {
			n++
		}
	}
	return n
}

// AvgFieldLength is the mean token length for field across successful
// cases, or 0 when there are none.
func AvgFieldLength(results []CaseResult, field string) float64 {
	sum, n := 0, 0
	for _, r := range results {
		if !r.Success {
			continue
		}
		if feats, ok := r.Fields[field]; ok {
			sum += feats.Length
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

// AvgDurationMS is the mean signing duration across all cases.
func AvgDurationMS(results []CaseResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum int64
	for _, r := range results {
		sum += r.DurationMS
	}
	return float64(sum) / float64(len(results))
}

func (s *Snapshot) Successes() int {
	return Successes(s.Results)
}

func (s *Snapshot) AvgFieldLength(field string) float64 {
	if stats, ok := s.Aggregates[field]; ok && len(stats.Lengths) > 0 {
		sum := 0
		for _, l := range stats.Lengths {
			sum += l
		}
		return float64(sum) / float64(len(stats.Lengths))
	}
	return AvgFieldLength(s.Results, field)
}
