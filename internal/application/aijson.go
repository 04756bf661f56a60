package application

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// Model replies wrap JSON in prose, markdown fences, // comments and
// trailing commas. These patterns recover the payload.
var (
	objectBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*```")
	objectPattern      = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	arrayBlockPattern  = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\[.*\\])\\s*```")
	arrayPattern       = regexp.MustCompile(`(?s)\[[\s\S]*\]`)
)

var errNoJSON = errors.New("reply contains no JSON")

func extractObject(content string) string {
	if m := objectBlockPattern.FindStringSubmatch(content); len(m) > 1 {
		return cleanJSON(m[1])
	}
	if m := objectPattern.FindString(content); m != "" {
		return cleanJSON(m)
	}
	return ""
}

func extractArray(content string) string {
	if m := arrayBlockPattern.FindStringSubmatch(content); len(m) > 1 {
		return cleanJSON(m[1])
	}
	if m := arrayPattern.FindString(content); m != "" {
		return cleanJSON(m)
	}
	return ""
}

// decodeObject fills v from the first JSON object in content.
func decodeObject(content string, v any) error {
	raw := extractObject(content)
	if raw == "" {
		return errNoJSON
	}
	return json.Unmarshal([]byte(raw), v)
}

// decodeArray reads the first JSON array in content. A reply that opens
// with an object is taken as a one-element array.
func decodeArray[T any](content string) ([]T, error) {
	obj, arr := strings.IndexByte(content, '{'), strings.IndexByte(content, '[')
	objectFirst := obj >= 0 && (arr < 0 || obj < arr)
	if raw := extractArray(content); raw != "" && !objectFirst {
		var out []T
		if err := json.Unmarshal([]byte(raw), &out); err == nil {
			return out, nil
		}
	}
	var one T
	if err := decodeObject(content, &one); err != nil {
		return nil, err
	}
	return []T{one}, nil
}

func cleanJSON(raw string) string {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lines[i] = stripLineComment(line)
	}
	return stripTrailingCommas(strings.Join(lines, "\n"))
}

// stripTrailingCommas drops a comma, and the blanks after it, that closes
// an object or array. Commas inside string literals are kept.
func stripTrailingCommas(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	inString, escaped := false, false
	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case !inString && ch == ',':
			j := i + 1
			for j < len(raw) && strings.IndexByte(" \t\r\n", raw[j]) >= 0 {
				j++
			}
			if j < len(raw) && (raw[j] == '}' || raw[j] == ']') {
				i = j - 1
				continue
			}
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// stripLineComment drops a // comment that starts outside a string literal.
func stripLineComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}
	inString, escaped := false, false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case !inString && ch == '/' && i+1 < len(line) && line[i+1] == '/':
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}
