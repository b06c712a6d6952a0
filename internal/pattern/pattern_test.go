package pattern

import "testing"

func TestAnalyzeEmpty(t *testing.T) {
	f := Analyze("")
	if f != (Features{}) {
		t.Fatalf("expected zero features for empty token, got %+v", f)
	}
}

func TestAnalyzeTable(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  Features
	}{
		{
			name:  "marker prefixed signature",
			token: "_02B4Z9ab3cD-fGh",
			want: Features{
				Length:           16,
				HasDigits:        true,
				HasAlpha:         true,
				HasSpecialChars:  true,
				StartsWithMarker: true,
				LooksBase64:      true,
			},
		},
		{
			name:  "marker with invalid base64 byte",
			token: "_02B4Z9ab3cD.fGh",
			want: Features{
				Length:           16,
				HasDigits:        true,
				HasAlpha:         true,
				HasSpecialChars:  true,
				StartsWithMarker: true,
				LooksBase64:      false,
			},
		},
		{
			name:  "base64 with padding",
			token: "aGVsbG93b3JsZA==",
			want: Features{
				Length:          16,
				HasDigits:       true,
				HasAlpha:        true,
				HasSpecialChars: true,
				LooksBase64:     true,
			},
		},
		{
			name:  "urlsafe base64",
			token: "abc123-_ABC9xyz0",
			want: Features{
				Length:           16,
				HasDigits:        true,
				HasAlpha:         true,
				HasSpecialChars:  true,
				StartsWithMarker: false,
				LooksBase64:      true,
			},
		},
		{
			name:  "digits only short",
			token: "123456",
			want: Features{
				Length:    6,
				HasDigits: true,
			},
		},
		{
			name:  "too much padding",
			token: "abcdefghi===",
			want: Features{
				Length:          12,
				HasAlpha:        true,
				HasSpecialChars: true,
				LooksBase64:     false,
			},
		},
		{
			name:  "invalid base64 character",
			token: "abcdefgh!jkl",
			want: Features{
				Length:          12,
				HasAlpha:        true,
				HasSpecialChars: true,
				LooksBase64:     false,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Analyze(tt.token)
			if got != tt.want {
				t.Fatalf("Analyze(%q) = %+v, want %+v", tt.token, got, tt.want)
			}
		})
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	const token = "_02aBcDeFgHiJkLmNoP123"
	first := Analyze(token)
	for i := 0; i < 10; i++ {
		if got := Analyze(token); got != first {
			t.Fatalf("Analyze is not deterministic: %+v vs %+v", got, first)
		}
	}
}
