// Package payload type-checks loosely shaped JSON objects coming from external
// sources (vision model, categorization assistant, rule store). Malformed fields
// are dropped and recorded instead of failing the whole payload.
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// FieldIssue records a field that was dropped or defaulted during decoding
type FieldIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// String returns a human readable description of the issue
func (i FieldIssue) String() string {
	return fmt.Sprintf("%s: %s", i.Field, i.Reason)
}

// Reader reads typed values out of a JSON object
type Reader struct {
	obj    map[string]any
	prefix string
	issues *[]FieldIssue
}

// NewReader creates a reader over obj. A nil obj behaves like an empty object.
func NewReader(obj map[string]any) *Reader {
	return &Reader{obj: obj, issues: &[]FieldIssue{}}
}

// Issues returns every issue recorded by this reader and its children
func (r *Reader) Issues() []FieldIssue {
	return append([]FieldIssue{}, (*r.issues)...)
}

// Drop records an issue for key
func (r *Reader) Drop(key, reason string) {
	*r.issues = append(*r.issues, FieldIssue{Field: r.path(key), Reason: reason})
}

// String returns the string at key. Absent and null yield nil silently,
// any other type yields nil and an issue.
func (r *Reader) String(key string) *string {
	v, ok := r.obj[key]
	if !ok || v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		r.Drop(key, fmt.Sprintf("expected string, got %T", v))
		return nil
	}
	return &s
}

// TrimmedString is String with surrounding whitespace removed; blank values yield nil
func (r *Reader) TrimmedString(key string) *string {
	s := r.String(key)
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

// NullableString distinguishes an explicit null from an absent key.
// present is false when the key is missing or carries a value of the wrong type.
func (r *Reader) NullableString(key string) (present bool, value *string) {
	v, ok := r.obj[key]
	if !ok {
		return false, nil
	}
	if v == nil {
		return true, nil
	}
	s, ok := v.(string)
	if !ok {
		r.Drop(key, fmt.Sprintf("expected string or null, got %T", v))
		return false, nil
	}
	return true, &s
}

// Number returns the finite number at key
func (r *Reader) Number(key string) *float64 {
	v, ok := r.obj[key]
	if !ok || v == nil {
		return nil
	}
	f, ok := ToFloat(v)
	if !ok {
		r.Drop(key, fmt.Sprintf("expected finite number, got %T", v))
		return nil
	}
	return &f
}

// Bool returns the boolean at key
func (r *Reader) Bool(key string) *bool {
	v, ok := r.obj[key]
	if !ok || v == nil {
		return nil
	}
	b, ok := v.(bool)
	if !ok {
		r.Drop(key, fmt.Sprintf("expected boolean, got %T", v))
		return nil
	}
	return &b
}

// Object returns a child reader for the object at key, or nil
func (r *Reader) Object(key string) *Reader {
	v, ok := r.obj[key]
	if !ok || v == nil {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		r.Drop(key, fmt.Sprintf("expected object, got %T", v))
		return nil
	}
	return &Reader{obj: m, prefix: r.path(key), issues: r.issues}
}

// Array returns the array at key. ok is false when absent, null or not an array.
func (r *Reader) Array(key string) (items []any, ok bool) {
	v, present := r.obj[key]
	if !present || v == nil {
		return nil, false
	}
	a, isArray := v.([]any)
	if !isArray {
		r.Drop(key, fmt.Sprintf("expected array, got %T", v))
		return nil, false
	}
	return a, true
}

// Element returns a reader for the i-th element of the array at key, or nil
// (with an issue) when the element is not an object.
func (r *Reader) Element(key string, i int, v any) *Reader {
	path := fmt.Sprintf("%s[%d]", key, i)
	m, ok := v.(map[string]any)
	if !ok {
		r.Drop(path, fmt.Sprintf("expected object, got %T", v))
		return nil
	}
	return &Reader{obj: m, prefix: r.path(path), issues: r.issues}
}

func (r *Reader) path(key string) string {
	if r.prefix == "" {
		return key
	}
	return r.prefix + "." + key
}

// ToFloat converts JSON-decoded numeric values to a finite float64
func ToFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// DecodeObject parses raw JSON into an object. Numbers are kept as json.Number
// so large amounts do not lose precision before reaching decimal conversion.
func DecodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("failed to decode JSON object: %w", err)
	}
	return obj, nil
}

// ExtractJSON returns the outermost {...} block of a model response, tolerating
// markdown fences and surrounding prose. It returns "" when no object is found.
func ExtractJSON(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return ""
	}
	return strings.TrimSpace(content[start : end+1])
}
