package detect

import (
	"reflect"
	"testing"
)

func TestKeywordMatcherBasic(t *testing.T) {
	m := newKeywordMatcher([]string{"signature", "bogus", "navigator"})

	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"all fine", nil},
		{"signature invalid", []string{"signature"}},
		{"the x-bogus parameter was rejected", []string{"bogus"}},
		{"signature mismatch and navigator drift", []string{"signature", "navigator"}},
	}

	for _, tt := range tests {
		got := m.MatchAll(tt.input)
		if !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("MatchAll(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestKeywordMatcherDeduplicates(t *testing.T) {
	m := newKeywordMatcher([]string{"bogus"})
	got := m.MatchAll("bogus token, bogus header, bogus everything")
	if len(got) != 1 || got[0] != "bogus" {
		t.Fatalf("expected a single deduplicated match, got %v", got)
	}
}

func TestKeywordMatcherOverlappingPatterns(t *testing.T) {
	m := newKeywordMatcher([]string{"sign", "signature"})
	got := m.MatchAll("signature")
	if !reflect.DeepEqual(got, []string{"sign", "signature"}) {
		t.Fatalf("expected both the prefix and the full pattern, got %v", got)
	}
}

func TestKeywordMatcherSuffixViaFailLink(t *testing.T) {
	m := newKeywordMatcher([]string{"abcd", "cde"})
	got := m.MatchAll("abcde")
	if !reflect.DeepEqual(got, []string{"abcd", "cde"}) {
		t.Fatalf("expected matches across fail transitions, got %v", got)
	}
}
