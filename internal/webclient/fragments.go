package webclient

import (
	"net/url"
	"regexp"
	"strings"
)

// A fragment is one unit of analyzable script: either an inline block from
// the page itself or an external script referenced by it.
type fragment struct {
	Source  string // "inline" or the resolved script URL
	Content string // empty for external fragments until fetched
}

var (
	scriptBlockRe = regexp.MustCompile(`(?is)<script([^>]*)>(.*?)</script>`)
	srcAttrRe     = regexp.MustCompile(`(?i)src\s*=\s*["']([^"']+)["']`)
)

// extractFragments pulls inline script bodies above minBytes plus every
// referenced external script URL, resolved against the page URL. Order
// follows document order so fragment indexes are stable across runs.
func extractFragments(pageURL, body string, minBytes int) []fragment {
	var out []fragment
	for _, match := range scriptBlockRe.FindAllStringSubmatch(body, -1) {
		attrs, inline := match[1], match[2]

		if src := srcAttrRe.FindStringSubmatch(attrs); src != nil {
			resolved := resolveURL(pageURL, src[1])
			if resolved != "" {
				out = append(out, fragment{Source: resolved})
			}
			continue
		}

		trimmed := strings.TrimSpace(inline)
		if len(trimmed) >= minBytes {
			out = append(out, fragment{Source: "inline", Content: trimmed})
		}
	}
	return out
}

func resolveURL(base, ref string) string {
	refURL, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if refURL.IsAbs() {
		return refURL.String()
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(refURL).String()
}
