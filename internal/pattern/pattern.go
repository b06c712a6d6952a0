package pattern

// Features are the structural properties extracted from one opaque token
// string. Analyze is pure: equal inputs always produce equal Features.
type Features struct {
	Length           int  `json:"length"`
	HasDigits        bool `json:"has_digits"`
	HasAlpha         bool `json:"has_alpha"`
	HasSpecialChars  bool `json:"has_special_chars"`
	StartsWithMarker bool `json:"starts_with_marker"`
	LooksBase64      bool `json:"looks_base64"`
}

// Generated tokens observed in the wild prefix the signature with '_'.
const markerChar = '_'

func Analyze(token string) Features {
	if token == "" {
		return Features{}
	}

	f := Features{
		Length:           len(token),
		StartsWithMarker: token[0] == markerChar,
	}

	for i := 0; i < len(token); i++ {
		c := token[i]
		switch {
		case c >= '0' && c <= '9':
			f.HasDigits = true
		case (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
			f.HasAlpha = true
		default:
			f.HasSpecialChars = true
		}
	}

	f.LooksBase64 = looksBase64(token)
	return f
}

// looksBase64 accepts the standard and URL-safe alphabets with optional
// trailing padding. Very short strings are excluded to cut false positives.
func looksBase64(s string) bool {
	const minLength = 12
	if len(s) < minLength {
		return false
	}

	body := len(s)
	for body > 0 && s[body-1] == '=' {
		body--
	}
	if len(s)-body > 2 {
		return false
	}

	for i := 0; i < body; i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '+' || c == '/' || c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}
