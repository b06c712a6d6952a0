package baseline

import (
	"context"
	"sync"

	"github.com/seongkah/signing-for-paas-sub002/internal/pattern"
	"github.com/seongkah/signing-for-paas-sub002/internal/signer"
)

// Sample is one captured case together with the raw token values.
type Sample struct {
	Case   CaseResult
	Tokens map[string]string
}

// Capture signs every URL through the collaborator. Calls run concurrently
// but results are recombined by input position, so the returned slice is
// deterministic for a given URL list. Individual failures are recorded in
// their case, never raised.
func Capture(ctx context.Context, s signer.Signer, urls []string) []Sample {
	samples := make([]Sample, len(urls))

	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			samples[i] = captureOne(ctx, s, u)
		}(i, u)
	}
	wg.Wait()

	return samples
}

func captureOne(ctx context.Context, s signer.Signer, u string) Sample {
	res, err := s.Sign(ctx, u)
	if err != nil {
		return Sample{Case: CaseResult{
			URL:        u,
			Success:    false,
			Error:      err.Error(),
			DurationMS: res.DurationMS,
		}}
	}

	fields := make(map[string]pattern.Features, len(res.Fields))
	for name, value := range res.Fields {
		fields[name] = pattern.Analyze(value)
	}

	return Sample{
		Case: CaseResult{
			URL:        u,
			Success:    true,
			Fields:     fields,
			DurationMS: res.DurationMS,
		},
		Tokens: res.Fields,
	}
}

// Cases strips the raw tokens from a sample set.
func Cases(samples []Sample) []CaseResult {
	out := make([]CaseResult, len(samples))
	for i, s := range samples {
		out[i] = s.Case
	}
	return out
}

// Build folds a captured sample set into a snapshot.
func Build(samples []Sample, fp Fingerprint, upstreamVersion string) *Snapshot {
	b := NewBuilder()
	for _, s := range samples {
		b.Observe(s.Case, s.Tokens)
	}
	return b.Finalize(fp, upstreamVersion)
}
