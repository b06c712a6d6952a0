package risk

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/seongkah/signing-for-paas-sub002/internal/detect"
	"github.com/seongkah/signing-for-paas-sub002/internal/trend"
)

func TestLevelOrdering(t *testing.T) {
	if !(Low < Medium && Medium < High && High < Critical) {
		t.Fatal("level ordering is broken")
	}
	if Max(High, Medium) != High || Max(Low, Critical) != Critical {
		t.Fatal("Max does not pick the higher level")
	}
	if Low.Next() != Medium || High.Next() != Critical {
		t.Fatal("Next does not step up one level")
	}
	if Critical.Next() != Critical {
		t.Fatal("Next must cap at critical")
	}
}

func TestLevelJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(High)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"high"` {
		t.Fatalf("unexpected encoding %s", data)
	}

	var l Level
	if err := json.Unmarshal([]byte(`"critical"`), &l); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if l != Critical {
		t.Fatalf("expected critical, got %v", l)
	}

	if err := json.Unmarshal([]byte(`"severe"`), &l); err == nil {
		t.Fatal("unknown level must fail to parse")
	}
}

func TestPredictThresholdLadder(t *testing.T) {
	tests := []struct {
		name        string
		successRate float64
		avgMS       float64
		want        Level
	}{
		{"healthy", 1.0, 200, Low},
		{"slow responses", 1.0, 2500, Medium},
		{"partial failures", 0.7, 200, High},
		{"mostly broken", 0.3, 200, Critical},
		{"boundary critical floor", 0.5, 200, High},
		{"boundary high floor", 0.8, 200, Low},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Predict(tt.successRate, tt.avgMS, trend.Trends{}, detect.Result{}, Thresholds{})
			if got.Level != tt.want {
				t.Fatalf("Predict(%v, %v) level = %v, want %v", tt.successRate, tt.avgMS, got.Level, tt.want)
			}
		})
	}
}

func TestPredictDecliningTrendEscalatesOneStep(t *testing.T) {
	declining := trend.Trends{SuccessRate: trend.Declining}

	got := Predict(1.0, 200, declining, detect.Result{}, Thresholds{})
	if got.Level != Medium {
		t.Fatalf("declining trend on a healthy system should reach medium, got %v", got.Level)
	}

	got = Predict(0.7, 200, declining, detect.Result{}, Thresholds{})
	if got.Level != Critical {
		t.Fatalf("declining trend on a high-risk system should reach critical, got %v", got.Level)
	}

	got = Predict(0.3, 200, declining, detect.Result{}, Thresholds{})
	if got.Level != Critical {
		t.Fatalf("escalation must cap at critical, got %v", got.Level)
	}
}

func TestPredictRisingResponseTimeIsAdvisoryOnly(t *testing.T) {
	rising := trend.Trends{ResponseTime: trend.Increasing}

	got := Predict(1.0, 200, rising, detect.Result{}, Thresholds{})
	if got.Level != Low {
		t.Fatalf("rising response time alone must not escalate, got %v", got.Level)
	}

	var found bool
	for _, p := range got.Predictions {
		if strings.Contains(p, "response times are trending up") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an advisory prediction, got %v", got.Predictions)
	}
}

func TestPredictDriftIsAdvisoryOnly(t *testing.T) {
	changes := detect.Result{
		ChangesDetected: true,
		ChangeTypes:     []string{detect.ChangeEvolution},
	}

	got := Predict(1.0, 200, trend.Trends{}, changes, Thresholds{})
	if got.Level != Low {
		t.Fatalf("drift alone must not escalate the risk level, got %v", got.Level)
	}
	var found bool
	for _, p := range got.Predictions {
		if strings.Contains(p, "structural drift detected") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a drift prediction, got %v", got.Predictions)
	}
}

func TestPredictRecommendationsPerLevel(t *testing.T) {
	got := Predict(0.3, 200, trend.Trends{}, detect.Result{}, Thresholds{})
	if len(got.Recommendations) != 2 || !strings.Contains(got.Recommendations[0], "emergency failover") {
		t.Fatalf("unexpected critical recommendations: %v", got.Recommendations)
	}

	got = Predict(1.0, 200, trend.Trends{}, detect.Result{}, Thresholds{})
	if len(got.Recommendations) != 1 || !strings.Contains(got.Recommendations[0], "current monitoring cadence") {
		t.Fatalf("unexpected low recommendations: %v", got.Recommendations)
	}
}

func TestPredictCustomThresholds(t *testing.T) {
	th := Thresholds{CriticalSuccessRate: 0.9, HighSuccessRate: 0.95, SlowResponseMS: 500}

	got := Predict(0.85, 200, trend.Trends{}, detect.Result{}, th)
	if got.Level != Critical {
		t.Fatalf("custom critical floor not honored, got %v", got.Level)
	}

	got = Predict(1.0, 600, trend.Trends{}, detect.Result{}, th)
	if got.Level != Medium {
		t.Fatalf("custom response threshold not honored, got %v", got.Level)
	}
}
