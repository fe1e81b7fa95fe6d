package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when generated text carries no decodable JSON value.
var ErrNoJSON = errors.New("no JSON found in text")

var (
	fencedBlock    = regexp.MustCompile("(?s)```(?:json)?\\s*(.+?)\\s*```")
	trailingComma  = regexp.MustCompile(`,\s*([}\]])`)
	unquotedKey    = regexp.MustCompile(`([{,]\s*)([A-Za-z_]\w*)(\s*:)`)
	singleQuotedKV = regexp.MustCompile(`'([^'\\]*)'`)
)

// DecodeLooseJSON decodes the first JSON value it can find in free text
// produced by a language model. It tries, in order: the whole text, the
// first fenced code block, the first balanced object or array, and finally
// a repaired copy of the text (trailing commas, bare keys, single quotes).
func DecodeLooseJSON(text string, target interface{}) error {
	text = strings.TrimPrefix(strings.TrimSpace(text), "\ufeff")
	if text == "" {
		return ErrNoJSON
	}

	for _, candidate := range jsonCandidates(text) {
		if candidate == "" {
			continue
		}
		if err := json.Unmarshal([]byte(candidate), target); err == nil {
			return nil
		}
		if err := json.Unmarshal([]byte(repairJSON(candidate)), target); err == nil {
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrNoJSON, Truncate(text, 100))
}

func jsonCandidates(text string) []string {
	out := []string{text}
	if m := fencedBlock.FindStringSubmatch(text); len(m) > 1 {
		out = append(out, m[1])
	}
	for _, pair := range [][2]rune{{'{', '}'}, {'[', ']'}} {
		if i := strings.IndexRune(text, pair[0]); i >= 0 {
			out = append(out, balanced(text[i:], pair[0], pair[1]))
		}
	}
	return out
}

// balanced returns the prefix of s up to the bracket that closes s[0],
// ignoring brackets inside string literals.
func balanced(s string, open, close rune) string {
	depth := 0
	inString, escaped := false, false
	for i, ch := range s {
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == open:
			depth++
		case ch == close:
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}

func repairJSON(s string) string {
	s = trailingComma.ReplaceAllString(s, "$1")
	s = unquotedKey.ReplaceAllString(s, `$1"$2"$3`)
	s = singleQuotedKV.ReplaceAllString(s, `"$1"`)
	return s
}
