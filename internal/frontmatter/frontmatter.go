// Package frontmatter splits YAML frontmatter from a content body and parses it
// into an ordered field set.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"
	"iter"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingClosingDelimiter indicates the document opened a frontmatter block but never closed it.
	ErrMissingClosingDelimiter = errors.New("yaml frontmatter start delimiter found but closing delimiter is missing")
	// ErrNotMapping indicates the frontmatter block holds YAML that is not a key/value mapping.
	ErrNotMapping = errors.New("frontmatter must be a YAML mapping")
)

// Split separates `---` delimited frontmatter from the body.
//
// If the document does not start with a delimiter line, had is false and body is the full input.
func Split(content []byte) (fm []byte, body []byte, had bool, err error) {
	nl := detectNewline(content)
	open := []byte("---" + nl)
	if !bytes.HasPrefix(content, open) {
		return nil, content, false, nil
	}

	start := len(open)
	rest := content[start:]
	if bytes.HasPrefix(rest, open) {
		return []byte{}, rest[len(open):], true, nil
	}
	if bytes.Equal(rest, []byte("---")) {
		return []byte{}, []byte{}, true, nil
	}

	closeSeq := []byte(nl + "---" + nl)
	if idx := bytes.Index(rest, closeSeq); idx >= 0 {
		return rest[:idx+len(nl)], rest[idx+len(closeSeq):], true, nil
	}
	// Closing delimiter on the last line without a trailing newline.
	if tail := []byte(nl + "---"); bytes.HasSuffix(rest, tail) {
		return rest[:len(rest)-len(tail)+len(nl)], []byte{}, true, nil
	}
	return nil, nil, false, ErrMissingClosingDelimiter
}

// Parse splits content and decodes its frontmatter. A document without
// frontmatter yields an empty field set.
func Parse(content []byte) (*Fields, []byte, error) {
	raw, body, had, err := Split(content)
	if err != nil {
		return nil, nil, err
	}
	if !had {
		return NewFields(), body, nil
	}
	fields, err := ParseYAML(raw)
	if err != nil {
		return nil, nil, err
	}
	return fields, body, nil
}

// ParseYAML decodes raw YAML (without delimiters) into an ordered field set.
func ParseYAML(raw []byte) (*Fields, error) {
	fields := NewFields()
	if len(bytes.TrimSpace(raw)) == 0 {
		return fields, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return fields, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, ErrNotMapping
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode, valNode := root.Content[i], root.Content[i+1]
		if keyNode.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: frontmatter keys must be scalars", keyNode.Line)
		}
		var value any
		if err := valNode.Decode(&value); err != nil {
			return nil, fmt.Errorf("line %d: %w", valNode.Line, err)
		}
		fields.Set(keyNode.Value, value)
	}
	return fields, nil
}

// Fields is an insertion-ordered string-keyed mapping.
type Fields struct {
	keys   []string
	values map[string]any
}

// NewFields returns an empty field set.
func NewFields() *Fields {
	return &Fields{values: make(map[string]any)}
}

// Set adds key or replaces its value, keeping its original position.
func (f *Fields) Set(key string, value any) {
	if _, ok := f.values[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.values[key] = value
}

// Get returns the value stored under key.
func (f *Fields) Get(key string) (any, bool) {
	if f == nil {
		return nil, false
	}
	v, ok := f.values[key]
	return v, ok
}

// String returns key's value rendered as text. Missing or empty values report false.
func (f *Fields) String(key string) (string, bool) {
	v, ok := f.Get(key)
	if !ok || v == nil {
		return "", false
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case time.Time:
		s = t.Format(time.RFC3339)
	default:
		s = fmt.Sprint(t)
	}
	return s, s != ""
}

// StringOr returns key's text value, or def when it is missing or empty.
func (f *Fields) StringOr(key, def string) string {
	if s, ok := f.String(key); ok {
		return s
	}
	return def
}

// Keys returns the keys in document order.
func (f *Fields) Keys() []string {
	if f == nil {
		return nil
	}
	return append([]string(nil), f.keys...)
}

// Len reports the number of keys.
func (f *Fields) Len() int {
	if f == nil {
		return 0
	}
	return len(f.keys)
}

// All yields key/value pairs in document order.
func (f *Fields) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if f == nil {
			return
		}
		for _, k := range f.keys {
			if !yield(k, f.values[k]) {
				return
			}
		}
	}
}

// Map returns an unordered copy, convenient for template access.
func (f *Fields) Map() map[string]any {
	out := make(map[string]any, f.Len())
	for k, v := range f.All() {
		out[k] = v
	}
	return out
}

func detectNewline(content []byte) string {
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}
