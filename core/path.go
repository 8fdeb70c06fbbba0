package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Path addresses one field of one entity inside a change-set. The differ
// produces typed paths directly; the bracket syntax only appears when a
// path is serialized (logs, audit records) or parsed back from storage.
type Path struct {
	// Entity is the name of the addressed entity.
	Entity string
	// Fields is the ordered field-key walk below the entity. Empty means
	// the whole entity is missing or extra.
	Fields []string
	// Index is the sequence element index for list-item changes, -1 when
	// the path does not address a sequence element.
	Index int
}

func NewPath(entity string, fields ...string) Path {
	return Path{Entity: entity, Fields: fields, Index: -1}
}

func NewIndexedPath(entity string, index int, fields ...string) Path {
	return Path{Entity: entity, Fields: fields, Index: index}
}

// IsEntity reports whether the path denotes the whole entity rather than a
// nested field.
func (p Path) IsEntity() bool {
	return len(p.Fields) == 0
}

// FieldPath renders the nested field keys joined with dots, dropping any
// sequence index: field-level, not element-level, granularity is what the
// action table is keyed by. Empty for the whole-entity case.
func (p Path) FieldPath() string {
	return strings.Join(p.Fields, ".")
}

// Field returns the field path with the leading content container key
// stripped, which is the spelling policies and backends work with.
func (p Path) Field() string {
	return strings.TrimPrefix(p.FieldPath(), contentKey+".")
}

const contentKey = "content"

// String renders the path in the raw bracket syntax understood by
// ParsePath, e.g. root['jdoe']['content']['email'].
func (p Path) String() string {
	var b strings.Builder
	b.WriteString("root['")
	b.WriteString(p.Entity)
	b.WriteString("']")
	for _, field := range p.Fields {
		b.WriteString("['")
		b.WriteString(field)
		b.WriteString("']")
	}
	if p.Index >= 0 {
		fmt.Fprintf(&b, "[%d]", p.Index)
	}
	return b.String()
}

// ParsePath parses a raw bracket-syntax diff path into its typed form. The
// first quoted key is the entity name; remaining quoted keys are field
// keys; bare integer keys are sequence indices and recorded as Index. A
// path that fails to parse is a programming-contract violation between the
// differ and its consumers, so the error must never be swallowed.
func ParsePath(raw string) (Path, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(raw), "root")
	if !ok {
		return Path{}, fmt.Errorf("%w: %q lacks root prefix", ErrMalformedRawPath, raw)
	}
	if rest == "" {
		return Path{}, fmt.Errorf("%w: %q has no entity key", ErrMalformedRawPath, raw)
	}

	path := Path{Index: -1}
	for rest != "" {
		if !strings.HasPrefix(rest, "[") {
			return Path{}, fmt.Errorf("%w: %q has trailing garbage %q", ErrMalformedRawPath, raw, rest)
		}
		end := strings.Index(rest, "]")
		if end < 0 {
			return Path{}, fmt.Errorf("%w: %q has an unterminated bracket", ErrMalformedRawPath, raw)
		}
		token := rest[1:end]
		rest = rest[end+1:]

		if key, ok := unquoteKey(token); ok {
			if path.Entity == "" {
				path.Entity = key
				continue
			}
			path.Fields = append(path.Fields, key)
			continue
		}
		index, err := strconv.Atoi(token)
		if err != nil || index < 0 {
			return Path{}, fmt.Errorf("%w: %q has invalid key token %q", ErrMalformedRawPath, raw, token)
		}
		// Sequence indices are dropped from the field walk; only the last
		// one is retained for element-level reporting.
		path.Index = index
	}
	if path.Entity == "" {
		return Path{}, fmt.Errorf("%w: %q has no entity key", ErrMalformedRawPath, raw)
	}
	return path, nil
}

func unquoteKey(token string) (string, bool) {
	if len(token) < 2 || !strings.HasPrefix(token, "'") || !strings.HasSuffix(token, "'") {
		return "", false
	}
	return token[1 : len(token)-1], true
}
