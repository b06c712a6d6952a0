package webclient

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const (
	maxExamples      = 3
	maxExampleLength = 48
)

// Default category→pattern tables. Config may replace them wholesale; the
// analyzer treats them as data, not control flow.
var DefaultCategories = map[string][]string{
	CategorySignature:   {`_signature`, `\bsignature\b`, `\bsign\s*\(`},
	CategoryAntiBot:     {`[xX][-_]?[bB]ogus`, `msToken`, `ttwid`},
	CategoryFingerprint: {`navigator\.`, `\bcanvas\b`, `\bwebgl\b`, `userAgent`},
	CategoryTransport:   {`XMLHttpRequest`, `\bfetch\s*\(`, `WebSocket`},
}

const (
	CategorySignature   = "signature"
	CategoryAntiBot     = "antibot"
	CategoryFingerprint = "fingerprint"
	CategoryTransport   = "transport"
)

// DefaultSuspiciousKeywords flag function/variable names worth tracking.
var DefaultSuspiciousKeywords = []string{
	"sign", "token", "bogus", "encrypt", "decrypt", "captcha", "verify", "fingerprint",
}

type CategoryHits struct {
	Count    int      `json:"count"`
	Examples []string `json:"examples,omitempty"`
}

type Obfuscation struct {
	DynamicEval int `json:"dynamic_eval"`
	CharCode    int `json:"char_code"`
	Escapes     int `json:"escapes"`
	Base64Calls int `json:"base64_calls"`
}

func (o Obfuscation) Total() int {
	return o.DynamicEval + o.CharCode + o.Escapes + o.Base64Calls
}

// Analysis is the cached per-fragment signal snapshot.
type Analysis struct {
	Hash            string                  `json:"hash"`
	Categories      map[string]CategoryHits `json:"categories"`
	SuspiciousNames []string                `json:"suspicious_names,omitempty"`
	Obfuscation     Obfuscation             `json:"obfuscation"`
}

type categoryMatcher struct {
	patterns []*regexp.Regexp
}

func (m *categoryMatcher) scan(content string) CategoryHits {
	hits := CategoryHits{}
	for _, re := range m.patterns {
		matches := re.FindAllString(content, -1)
		hits.Count += len(matches)
		for _, match := range matches {
			if len(hits.Examples) >= maxExamples {
				break
			}
			hits.Examples = append(hits.Examples, snippet(match))
		}
	}
	return hits
}

var (
	nameRe     = regexp.MustCompile(`(?:function\s+|var\s+|let\s+|const\s+)([A-Za-z_$][A-Za-z0-9_$]*)`)
	evalRe     = regexp.MustCompile(`\beval\s*\(|new\s+Function\s*\(`)
	charCodeRe = regexp.MustCompile(`String\.fromCharCode|charCodeAt`)
	escapeRe   = regexp.MustCompile(`\\x[0-9a-fA-F]{2}|\\u[0-9a-fA-F]{4}`)
	base64Re   = regexp.MustCompile(`\batob\s*\(|\bbtoa\s*\(`)
)

// Analyzer computes the signal snapshot for one script fragment.
type Analyzer struct {
	categories map[string]*categoryMatcher
	keywords   []string
	// noiseThreshold suppresses obfuscation counters at or below it;
	// minified code trips a few of each legitimately.
	noiseThreshold int
}

func NewAnalyzer(categories map[string][]string, keywords []string, noiseThreshold int) (*Analyzer, error) {
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	if len(keywords) == 0 {
		keywords = DefaultSuspiciousKeywords
	}
	if noiseThreshold <= 0 {
		noiseThreshold = 5
	}

	compiled := make(map[string]*categoryMatcher, len(categories))
	for name, patterns := range categories {
		m := &categoryMatcher{}
		for _, p := range patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("category %s pattern %q: %w", name, p, err)
			}
			m.patterns = append(m.patterns, re)
		}
		compiled[name] = m
	}

	return &Analyzer{
		categories:     compiled,
		keywords:       keywords,
		noiseThreshold: noiseThreshold,
	}, nil
}

func (a *Analyzer) Analyze(content string) Analysis {
	sum := sha256.Sum256([]byte(content))

	categories := make(map[string]CategoryHits, len(a.categories))
	for name, m := range a.categories {
		categories[name] = m.scan(content)
	}

	return Analysis{
		Hash:            hex.EncodeToString(sum[:]),
		Categories:      categories,
		SuspiciousNames: a.suspiciousNames(content),
		Obfuscation:     a.obfuscation(content),
	}
}

func (a *Analyzer) suspiciousNames(content string) []string {
	seen := map[string]bool{}
	var names []string
	for _, match := range nameRe.FindAllStringSubmatch(content, -1) {
		name := match[1]
		if seen[name] {
			continue
		}
		lower := strings.ToLower(name)
		for _, kw := range a.keywords {
			if strings.Contains(lower, kw) {
				seen[name] = true
				names = append(names, name)
				break
			}
		}
	}
	sort.Strings(names)
	return names
}

func (a *Analyzer) obfuscation(content string) Obfuscation {
	return Obfuscation{
		DynamicEval: a.denoise(len(evalRe.FindAllStringIndex(content, -1))),
		CharCode:    a.denoise(len(charCodeRe.FindAllStringIndex(content, -1))),
		Escapes:     a.denoise(len(escapeRe.FindAllStringIndex(content, -1))),
		Base64Calls: a.denoise(len(base64Re.FindAllStringIndex(content, -1))),
	}
}

func (a *Analyzer) denoise(count int) int {
	if count <= a.noiseThreshold {
		return 0
	}
	return count
}

func snippet(value string) string {
	if len(value) <= maxExampleLength {
		return value
	}
	return value[:maxExampleLength]
}
