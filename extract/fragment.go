package extract

import (
	"encoding/json"
	"strings"
)

// ScanJSONObject isolates the JSON-like object that follows the first
// occurrence of key inside a script payload, by brace-matching rather than
// parsing the whole script (the payload is embedded in a larger non-JSON
// document). The fallback chain is: strict parse → quote-normalization
// retry → abandon. This is inherently heuristic and must never be trusted
// to succeed; callers treat a miss as "this source contributed nothing".
func ScanJSONObject(script, key string) (json.RawMessage, bool) {
	idx := strings.Index(script, key)
	if idx < 0 {
		return nil, false
	}

	start := strings.IndexByte(script[idx+len(key):], '{')
	if start < 0 {
		return nil, false
	}
	start += idx + len(key)

	fragment, ok := matchBraces(script[start:])
	if !ok {
		return nil, false
	}

	if json.Valid([]byte(fragment)) {
		return json.RawMessage(fragment), true
	}

	normalized := normalizeQuotes(fragment)
	if json.Valid([]byte(normalized)) {
		return json.RawMessage(normalized), true
	}

	return nil, false
}

// matchBraces returns the balanced {...} prefix of s, honoring string
// literals (single, double, and backtick quoted) and backslash escapes so a
// brace inside a string does not end the match.
func matchBraces(s string) (string, bool) {
	if len(s) == 0 || s[0] != '{' {
		return "", false
	}

	depth := 0
	var quote byte
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}

		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}

		switch c {
		case '\'', '"', '`':
			quote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}

// normalizeQuotes rewrites single-quoted strings as double-quoted JSON
// strings: outer quotes become double quotes, embedded double quotes get
// escaped, and escaped single quotes lose their backslash.
func normalizeQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	var quote byte
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if escaped {
			if quote == '\'' && c == '\'' {
				b.WriteByte('\'')
			} else {
				b.WriteByte('\\')
				b.WriteByte(c)
			}
			escaped = false
			continue
		}

		if c == '\\' && quote != 0 {
			escaped = true
			continue
		}

		switch {
		case quote == 0 && c == '\'':
			quote = '\''
			b.WriteByte('"')
		case quote == 0 && c == '"':
			quote = '"'
			b.WriteByte('"')
		case quote == '\'' && c == '\'':
			quote = 0
			b.WriteByte('"')
		case quote == '"' && c == '"':
			quote = 0
			b.WriteByte('"')
		case quote == '\'' && c == '"':
			b.WriteString(`\"`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
