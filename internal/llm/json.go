package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Yates-Labs/beanstalk/internal/metrics"
)

var (
	ErrNoJSON        = errors.New("reply contains no JSON object")
	ErrMissingKey    = errors.New("required key missing")
	ErrSchemaInvalid = errors.New("reply violates schema")
)

var jsonCodeBlockRegex = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// Schema describes the reply expected from one call site.
type Schema[T any] struct {
	// Name labels the call site in logs and metrics.
	Name string

	// Required lists top-level keys that must be present and non-null.
	Required []string

	// Validate, if set, checks the decoded value.
	Validate func(T) error
}

// Result is the outcome of parsing a reply: either a validated value or a failure.
type Result[T any] struct {
	value T
	err   error
	ok    bool
}

// Ok wraps a validated value.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// Failed wraps a parse or validation failure.
func Failed[T any](err error) Result[T] {
	if err == nil {
		err = ErrSchemaInvalid
	}
	return Result[T]{err: err}
}

// OK reports whether the result holds a validated value.
func (r Result[T]) OK() bool { return r.ok }

// Value returns the validated value and whether it is valid.
func (r Result[T]) Value() (T, bool) { return r.value, r.ok }

// Err returns the failure reason, or nil on success.
func (r Result[T]) Err() error { return r.err }

// Or returns the validated value, or fallback when parsing failed.
func (r Result[T]) Or(fallback T) T {
	if r.ok {
		return r.value
	}
	return fallback
}

// Call sends prompt to g and parses the reply against schema.
// Gateway errors, malformed JSON and schema violations all produce a Failed result.
func Call[T any](ctx context.Context, g Gateway, prompt string, opts CallOptions, schema Schema[T]) Result[T] {
	reply, err := g.Complete(ctx, prompt, opts)
	if err != nil {
		metrics.IncrementFallback(schema.Name)
		return Failed[T](fmt.Errorf("%s: %w", schema.Name, err))
	}

	res := Parse(reply, schema)
	if !res.OK() {
		metrics.IncrementFallback(schema.Name)
	}
	return res
}

// Parse validates a raw model reply against schema.
func Parse[T any](reply string, schema Schema[T]) Result[T] {
	raw := SanitizeJSON(ExtractJSON(reply))
	if !strings.HasPrefix(raw, "{") {
		return Failed[T](fmt.Errorf("%s: %w", schema.Name, ErrNoJSON))
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return Failed[T](fmt.Errorf("%s: %w: %v", schema.Name, ErrSchemaInvalid, err))
	}
	for _, key := range schema.Required {
		v, ok := fields[key]
		if !ok || strings.TrimSpace(string(v)) == "null" {
			return Failed[T](fmt.Errorf("%s: %w: %q", schema.Name, ErrMissingKey, key))
		}
	}

	var value T
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return Failed[T](fmt.Errorf("%s: %w: %v", schema.Name, ErrSchemaInvalid, err))
	}
	if schema.Validate != nil {
		if err := schema.Validate(value); err != nil {
			return Failed[T](fmt.Errorf("%s: %w: %w", schema.Name, ErrSchemaInvalid, err))
		}
	}
	return Ok(value)
}

// ExtractJSON pulls the JSON object out of a reply that may be wrapped in a
// markdown code fence or surrounded by prose. The first object that decodes
// wins, so bracketed asides before it are skipped. Without any object the
// first array is returned.
func ExtractJSON(s string) string {
	if m := jsonCodeBlockRegex.FindStringSubmatch(s); len(m) > 1 {
		s = m[1]
	}
	s = strings.TrimSpace(s)

	first := ""
	for start := strings.IndexByte(s, '{'); start != -1; {
		end := findMatchingBracket(s, start, '{', '}')
		if end == -1 {
			if first == "" {
				first = s[start:]
			}
			break
		}
		candidate := s[start : end+1]
		if json.Valid([]byte(SanitizeJSON(candidate))) {
			return candidate
		}
		if first == "" {
			first = candidate
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next == -1 {
			break
		}
		start += next + 1
	}
	if first != "" {
		return first
	}

	if start := strings.IndexByte(s, '['); start != -1 {
		if end := findMatchingBracket(s, start, '[', ']'); end != -1 {
			return s[start : end+1]
		}
		return s[start:]
	}
	return s
}

// findMatchingBracket returns the index of the bracket closing the one at
// startPos, skipping brackets inside strings. Returns -1 if unbalanced.
func findMatchingBracket(s string, startPos int, openChar, closeChar rune) int {
	count := 0
	inString := false
	escaped := false

	for i := startPos; i < len(s); i++ {
		ch := rune(s[i])

		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch ch {
		case openChar:
			count++
		case closeChar:
			count--
			if count == 0 {
				return i
			}
		}
	}

	return -1
}

// SanitizeJSON escapes literal newlines that models often leave inside string values.
func SanitizeJSON(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]

		if escaped {
			result.WriteByte(ch)
			escaped = false
			continue
		}
		if ch == '\\' {
			result.WriteByte(ch)
			escaped = true
			continue
		}
		if ch == '"' {
			result.WriteByte(ch)
			inString = !inString
			continue
		}

		if inString && (ch == '\n' || ch == '\r') {
			result.WriteString("\\n")
			if ch == '\r' && i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
			continue
		}
		if inString && ch == '\t' {
			result.WriteString("\\t")
			continue
		}

		result.WriteByte(ch)
	}

	return result.String()
}
