// Package report summarizes the JSONL cycle log for operators.
package report

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/seongkah/signing-for-paas-sub002/internal/logging"
)

type Summary struct {
	Total        int             `json:"total"`
	Healthy      int             `json:"healthy"`
	Degraded     int             `json:"degraded"`
	Critical     int             `json:"critical"`
	AlertsRaised int             `json:"alerts_raised"`
	Start        time.Time       `json:"start"`
	End          time.Time       `json:"end"`
	TopChanges   []CountItem     `json:"top_changes"`
	RiskLevels   []CountItem     `json:"risk_levels"`
	Duration     DurationSummary `json:"duration"`
}

type CountItem struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type DurationSummary struct {
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type Reader struct {
	Since time.Time
}

func (r *Reader) Read(path string) ([]logging.CycleRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var records []logging.CycleRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec logging.CycleRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, err
		}
		if !r.Since.IsZero() && rec.Timestamp.Before(r.Since) {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func Summarize(records []logging.CycleRecord) Summary {
	var summary Summary
	if len(records) == 0 {
		return summary
	}

	summary.Start = records[0].Timestamp
	summary.End = records[0].Timestamp

	changeCounts := map[string]int{}
	riskCounts := map[string]int{}
	durations := make([]int64, 0, len(records))

	for _, rec := range records {
		summary.Total++
		if rec.Timestamp.Before(summary.Start) {
			summary.Start = rec.Timestamp
		}
		if rec.Timestamp.After(summary.End) {
			summary.End = rec.Timestamp
		}

		switch rec.Status {
		case "healthy":
			summary.Healthy++
		case "degraded":
			summary.Degraded++
		case "critical":
			summary.Critical++
		}

		summary.AlertsRaised += rec.AlertsRaised
		for _, t := range rec.ChangeTypes {
			changeCounts[t]++
		}
		if rec.RiskLevel != "" {
			riskCounts[rec.RiskLevel]++
		}
		durations = append(durations, rec.DurationMS)
	}

	summary.TopChanges = topCounts(changeCounts, 5)
	summary.RiskLevels = topCounts(riskCounts, 5)
	summary.Duration = durationSummary(durations)
	return summary
}

func topCounts(counts map[string]int, n int) []CountItem {
	items := make([]CountItem, 0, len(counts))
	for key, count := range counts {
		items = append(items, CountItem{Key: key, Count: count})
	}
	if len(items) == 0 {
		return nil
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Count == items[j].Count {
			return items[i].Key < items[j].Key
		}
		return items[i].Count > items[j].Count
	})

	if len(items) > n {
		items = items[:n]
	}
	return items
}

func durationSummary(values []int64) DurationSummary {
	if len(values) == 0 {
		return DurationSummary{}
	}
	sorted := make([]int64, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return DurationSummary{
		P50: percentile(sorted, 0.50),
		P95: percentile(sorted, 0.95),
		P99: percentile(sorted, 0.99),
	}
}

func percentile(values []int64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	idx := int(float64(len(values)-1) * p)
	if idx < 0 {
		idx = 0
	}
	if idx >= len(values) {
		idx = len(values) - 1
	}
	return float64(values[idx])
}

func RenderText(summary Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cycles: %d\n", summary.Total)
	fmt.Fprintf(&b, "Healthy: %d\n", summary.Healthy)
	fmt.Fprintf(&b, "Degraded: %d\n", summary.Degraded)
	fmt.Fprintf(&b, "Critical: %d\n", summary.Critical)
	fmt.Fprintf(&b, "Alerts raised: %d\n", summary.AlertsRaised)
	fmt.Fprintf(&b, "Cycle duration p50/p95/p99 (ms): %.0f/%.0f/%.0f\n", summary.Duration.P50, summary.Duration.P95, summary.Duration.P99)

	writeCounts(&b, "Change types", summary.TopChanges)
	writeCounts(&b, "Risk levels", summary.RiskLevels)

	return b.String()
}

func RenderMarkdown(summary Summary) string {
	var b strings.Builder
	b.WriteString("# Signwatch Report\n\n")
	b.WriteString("## Totals\n\n")
	fmt.Fprintf(&b, "- Cycles: %d\n", summary.Total)
	fmt.Fprintf(&b, "- Healthy: %d\n", summary.Healthy)
	fmt.Fprintf(&b, "- Degraded: %d\n", summary.Degraded)
	fmt.Fprintf(&b, "- Critical: %d\n", summary.Critical)
	fmt.Fprintf(&b, "- Alerts raised: %d\n", summary.AlertsRaised)
	fmt.Fprintf(&b, "- Cycle duration p50/p95/p99 (ms): %.0f/%.0f/%.0f\n\n", summary.Duration.P50, summary.Duration.P95, summary.Duration.P99)

	writeCountsMarkdown(&b, "Change types", summary.TopChanges)
	writeCountsMarkdown(&b, "Risk levels", summary.RiskLevels)

	return b.String()
}

func RenderJSON(summary Summary) ([]byte, error) {
	return json.MarshalIndent(summary, "", "  ")
}

func writeCounts(b *strings.Builder, title string, items []CountItem) {
	if len(items) == 0 {
		fmt.Fprintf(b, "%s: none\n", title)
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s: %d\n", item.Key, item.Count)
	}
}

func writeCountsMarkdown(b *strings.Builder, title string, items []CountItem) {
	b.WriteString("## ")
	b.WriteString(title)
	b.WriteString("\n\n")
	if len(items) == 0 {
		b.WriteString("- none\n\n")
		return
	}
	for _, item := range items {
		fmt.Fprintf(b, "- %s: %d\n", item.Key, item.Count)
	}
	b.WriteString("\n")
}

func WriteOutput(path string, content []byte) error {
	if path == "" {
		_, err := io.Copy(os.Stdout, bytes.NewReader(content))
		return err
	}
	return os.WriteFile(path, content, 0o600)
}
