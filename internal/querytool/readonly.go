package querytool

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrNotReadOnly is returned for anything other than a single read-only statement.
var ErrNotReadOnly = errors.New("only single read-only statements are allowed")

var writeKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "MERGE", "UPSERT",
	"CREATE", "ALTER", "DROP", "TRUNCATE", "RENAME",
	"GRANT", "REVOKE", "CALL", "DO", "COPY",
	"ATTACH", "DETACH",
}

// Normalize trims query, drops leading comments and a single trailing
// semicolon, and checks that what remains is one read-only statement.
// Quoted literals and identifiers are not scanned for keywords or semicolons.
func Normalize(query string) (string, error) {
	q := strings.TrimSpace(stripLeadingComments(query))
	masked, err := maskQuoted(q)
	if err != nil {
		return "", err
	}
	if i := strings.LastIndexByte(masked, ';'); i >= 0 && strings.TrimSpace(masked[i+1:]) == "" {
		q = strings.TrimSpace(q[:i])
		if masked, err = maskQuoted(q); err != nil {
			return "", err
		}
	}
	if q == "" {
		return "", fmt.Errorf("%w: empty query", ErrNotReadOnly)
	}
	if strings.Contains(masked, ";") {
		return "", fmt.Errorf("%w: multiple statements", ErrNotReadOnly)
	}

	kw := firstKeyword(masked)
	switch kw {
	case "SELECT", "SHOW", "DESCRIBE", "DESC", "EXPLAIN", "WITH":
	default:
		return "", fmt.Errorf("%w: %s statement", ErrNotReadOnly, displayKeyword(kw))
	}

	upper := strings.ToUpper(masked)
	for _, w := range writeKeywords {
		if containsWord(upper, w) {
			return "", fmt.Errorf("%w: disallowed keyword %s", ErrNotReadOnly, w)
		}
	}
	return q, nil
}

// maskQuoted blanks the contents of '...', "..." and `...` spans, keeping
// byte offsets. Doubled quotes and backslash escapes stay inside the span.
func maskQuoted(s string) (string, error) {
	b := []byte(s)
	var quote byte
	for i := 0; i < len(b); i++ {
		c := b[i]
		switch {
		case quote == 0:
			if c == '\'' || c == '"' || c == '`' {
				quote = c
			}
		case c == '\\':
			b[i] = ' '
			if i+1 < len(b) {
				i++
				b[i] = ' '
			}
		case c == quote:
			quote = 0
		default:
			b[i] = ' '
		}
	}
	if quote != 0 {
		return "", fmt.Errorf("%w: unterminated quoted text", ErrNotReadOnly)
	}
	return string(b), nil
}

func displayKeyword(kw string) string {
	if kw == "" {
		return "unrecognized"
	}
	return kw
}

func firstKeyword(s string) string {
	end := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
	if end < 0 {
		end = len(s)
	}
	return strings.ToUpper(s[:end])
}

func stripLeadingComments(s string) string {
	for {
		s = strings.TrimLeftFunc(s, unicode.IsSpace)
		s = strings.TrimPrefix(s, "\ufeff")
		switch {
		case strings.HasPrefix(s, "--"):
			i := strings.IndexByte(s, '\n')
			if i < 0 {
				return ""
			}
			s = s[i+1:]
		case strings.HasPrefix(s, "/*"):
			i := strings.Index(s, "*/")
			if i < 0 {
				return ""
			}
			s = s[i+2:]
		default:
			return s
		}
	}
}

// containsWord reports whether word occurs in s on identifier boundaries.
func containsWord(s, word string) bool {
	for from := 0; ; {
		idx := strings.Index(s[from:], word)
		if idx < 0 {
			return false
		}
		idx += from
		end := idx + len(word)
		leftOK := idx == 0 || !isIdentChar(rune(s[idx-1]))
		rightOK := end >= len(s) || !isIdentChar(rune(s[end]))
		if leftOK && rightOK {
			return true
		}
		from = idx + 1
	}
}

func isIdentChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
