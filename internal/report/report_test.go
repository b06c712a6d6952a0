package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/seongkah/signing-for-paas-sub002/internal/logging"
)

func writeLog(t *testing.T, records []logging.CycleRecord) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cycles.jsonl")
	var b strings.Builder
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		b.Write(data)
		b.WriteByte('\n')
	}
	// Trailing blank lines happen when processes die mid-write.
	b.WriteString("\n")
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func sampleRecords() []logging.CycleRecord {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	return []logging.CycleRecord{
		{Timestamp: base, Trigger: logging.TriggerScheduled, Status: "healthy", DurationMS: 100, RiskLevel: "low"},
		{Timestamp: base.Add(time.Hour), Trigger: logging.TriggerScheduled, Status: "degraded", DurationMS: 200, RiskLevel: "medium", AlertsRaised: 1},
		{Timestamp: base.Add(2 * time.Hour), Trigger: logging.TriggerManual, Status: "critical", DurationMS: 900, RiskLevel: "critical", AlertsRaised: 2,
			ChangeTypes: []string{"partial_change", "pattern_evolution"}},
		{Timestamp: base.Add(3 * time.Hour), Trigger: logging.TriggerScheduled, Status: "critical", DurationMS: 400, RiskLevel: "critical", AlertsRaised: 1,
			ChangeTypes: []string{"partial_change"}},
	}
}

func TestReaderAndSummarize(t *testing.T) {
	path := writeLog(t, sampleRecords())

	var reader Reader
	records, err := reader.Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(records))
	}

	summary := Summarize(records)
	if summary.Total != 4 || summary.Healthy != 1 || summary.Degraded != 1 || summary.Critical != 2 {
		t.Fatalf("unexpected totals: %+v", summary)
	}
	if summary.AlertsRaised != 4 {
		t.Fatalf("alerts raised = %d, want 4", summary.AlertsRaised)
	}
	if !summary.End.After(summary.Start) {
		t.Fatalf("time span wrong: %v .. %v", summary.Start, summary.End)
	}

	if len(summary.TopChanges) == 0 || summary.TopChanges[0].Key != "partial_change" || summary.TopChanges[0].Count != 2 {
		t.Fatalf("top changes wrong: %+v", summary.TopChanges)
	}
	if len(summary.RiskLevels) == 0 || summary.RiskLevels[0].Key != "critical" || summary.RiskLevels[0].Count != 2 {
		t.Fatalf("risk levels wrong: %+v", summary.RiskLevels)
	}
	if summary.Duration.P50 != 200 {
		t.Fatalf("p50 = %v, want 200", summary.Duration.P50)
	}
}

func TestReaderSinceFilter(t *testing.T) {
	records := sampleRecords()
	path := writeLog(t, records)

	reader := Reader{Since: records[2].Timestamp}
	got, err := reader.Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records after cutoff, got %d", len(got))
	}
}

func TestSummarizeEmpty(t *testing.T) {
	summary := Summarize(nil)
	if summary.Total != 0 || summary.TopChanges != nil || summary.RiskLevels != nil {
		t.Fatalf("empty summary must be zero: %+v", summary)
	}
}

func TestRenderers(t *testing.T) {
	summary := Summarize(sampleRecords())

	text := RenderText(summary)
	for _, want := range []string{"Cycles: 4", "Critical: 2", "partial_change: 2"} {
		if !strings.Contains(text, want) {
			t.Fatalf("text output missing %q:\n%s", want, text)
		}
	}

	md := RenderMarkdown(summary)
	if !strings.HasPrefix(md, "# Signwatch Report") {
		t.Fatalf("markdown header missing:\n%s", md)
	}
	if !strings.Contains(md, "- critical: 2") {
		t.Fatalf("markdown counts missing:\n%s", md)
	}

	data, err := RenderJSON(summary)
	if err != nil {
		t.Fatalf("render json: %v", err)
	}
	var round Summary
	if err := json.Unmarshal(data, &round); err != nil {
		t.Fatalf("json output invalid: %v", err)
	}
	if round.Total != 4 {
		t.Fatalf("json round trip lost data: %+v", round)
	}
}

func TestWriteOutputToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")
	if err := WriteOutput(path, []byte("hello\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "hello\n" {
		t.Fatalf("output file wrong: %q %v", data, err)
	}
}
