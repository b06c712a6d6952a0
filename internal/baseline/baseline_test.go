package baseline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/seongkah/signing-for-paas-sub002/internal/pattern"
	"github.com/seongkah/signing-for-paas-sub002/internal/signer"
)

type fakeSigner struct {
	fail map[string]bool
}

func (f *fakeSigner) Sign(_ context.Context, rawURL string) (signer.Result, error) {
	if f.fail[rawURL] {
		return signer.Result{DurationMS: 5}, errors.New("signature generation failed")
	}
	return signer.Result{
		Fields: map[string]string{
			signer.FieldSignature: "_02abcdefghijklmnop",
			signer.FieldBogus:     "DFSzswVu" + rawURL[len(rawURL)-1:],
		},
		DurationMS: 12,
	}, nil
}

func TestBuilderAggregates(t *testing.T) {
	b := NewBuilder()

	b.Observe(CaseResult{
		URL:     "https://example.com/a",
		Success: true,
		Fields: map[string]pattern.Features{
			signer.FieldSignature: {Length: 19},
		},
		DurationMS: 10,
	}, map[string]string{signer.FieldSignature: "_02abcdefghijklmnop"})

	b.Observe(CaseResult{
		URL:     "https://example.com/b",
		Success: true,
		Fields: map[string]pattern.Features{
			signer.FieldSignature: {Length: 21},
		},
		DurationMS: 14,
	}, map[string]string{signer.FieldSignature: "_02zyxwvutsrqponmlkji"})

	b.Observe(CaseResult{
		URL:     "https://example.com/c",
		Success: false,
		Error:   "timeout",
	}, nil)

	snap := b.Finalize(Fingerprint{Hostname: "test"}, "1.2.3")

	if len(snap.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(snap.Results))
	}
	if snap.Successes() != 2 {
		t.Fatalf("expected 2 successes, got %d", snap.Successes())
	}

	stats, ok := snap.Aggregates[signer.FieldSignature]
	if !ok {
		t.Fatal("expected aggregates for the signature field")
	}
	if len(stats.Lengths) != 2 || stats.Lengths[0] != 19 || stats.Lengths[1] != 21 {
		t.Fatalf("unexpected length aggregate: %v", stats.Lengths)
	}
	if len(stats.Prefixes) != 2 || stats.Prefixes[0] != "_02a" || stats.Prefixes[1] != "_02z" {
		t.Fatalf("unexpected prefix set: %v", stats.Prefixes)
	}

	if got := snap.AvgFieldLength(signer.FieldSignature); got != 20 {
		t.Fatalf("expected average length 20, got %v", got)
	}
	if snap.UpstreamVersion != "1.2.3" {
		t.Fatalf("unexpected upstream version %q", snap.UpstreamVersion)
	}
}

func TestBuilderDeduplicatesPrefixes(t *testing.T) {
	b := NewBuilder()
	for i := 0; i < 3; i++ {
		b.Observe(CaseResult{
			URL:     "https://example.com",
			Success: true,
			Fields:  map[string]pattern.Features{signer.FieldSignature: {Length: 19}},
		}, map[string]string{signer.FieldSignature: "_02abcdefghijklmnop"})
	}

	snap := b.Finalize(Fingerprint{}, "")
	stats := snap.Aggregates[signer.FieldSignature]
	if len(stats.Prefixes) != 1 {
		t.Fatalf("expected one unique prefix, got %v", stats.Prefixes)
	}
	if len(stats.Lengths) != 3 {
		t.Fatalf("lengths keep every observation, got %v", stats.Lengths)
	}
}

func TestTokenPrefixShortToken(t *testing.T) {
	if got := tokenPrefix("ab"); got != "ab" {
		t.Fatalf("short tokens are kept whole, got %q", got)
	}
	if got := tokenPrefix(""); got != "" {
		t.Fatalf("empty token prefix should be empty, got %q", got)
	}
}

func TestCaptureKeepsInputOrder(t *testing.T) {
	urls := make([]string, 8)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://example.com/video/%d", i)
	}

	samples := Capture(context.Background(), &fakeSigner{}, urls)
	if len(samples) != len(urls) {
		t.Fatalf("expected %d samples, got %d", len(urls), len(samples))
	}
	for i, s := range samples {
		if s.Case.URL != urls[i] {
			t.Fatalf("sample %d has URL %q, want %q", i, s.Case.URL, urls[i])
		}
		if !s.Case.Success {
			t.Fatalf("sample %d unexpectedly failed: %s", i, s.Case.Error)
		}
		if s.Tokens[signer.FieldSignature] == "" {
			t.Fatalf("sample %d is missing the raw signature token", i)
		}
	}
}

func TestCaptureRecordsFailures(t *testing.T) {
	fs := &fakeSigner{fail: map[string]bool{"https://example.com/bad": true}}
	samples := Capture(context.Background(), fs, []string{
		"https://example.com/ok",
		"https://example.com/bad",
	})

	if !samples[0].Case.Success {
		t.Fatalf("first sample should succeed: %s", samples[0].Case.Error)
	}
	if samples[1].Case.Success {
		t.Fatal("second sample should fail")
	}
	if samples[1].Case.Error == "" {
		t.Fatal("failed sample must carry its error text")
	}
	if samples[1].Tokens != nil {
		t.Fatal("failed sample must not carry tokens")
	}

	if got := Successes(Cases(samples)); got != 1 {
		t.Fatalf("expected 1 success, got %d", got)
	}
}

func TestBuildFromSamples(t *testing.T) {
	samples := Capture(context.Background(), &fakeSigner{}, []string{
		"https://example.com/1",
		"https://example.com/2",
	})

	snap := Build(samples, Fingerprint{OS: "linux"}, "")
	if snap.Successes() != 2 {
		t.Fatalf("expected 2 successes, got %d", snap.Successes())
	}
	if snap.CreatedAt.IsZero() {
		t.Fatal("snapshot must be timestamped")
	}
	if snap.Environment.OS != "linux" {
		t.Fatalf("fingerprint not carried: %+v", snap.Environment)
	}
	if _, ok := snap.Aggregates[signer.FieldBogus]; !ok {
		t.Fatal("expected aggregates for the secondary token field")
	}
}

func TestAvgFieldLengthNoSuccesses(t *testing.T) {
	results := []CaseResult{{URL: "u", Success: false}}
	if got := AvgFieldLength(results, signer.FieldSignature); got != 0 {
		t.Fatalf("expected 0 with no successes, got %v", got)
	}
}
