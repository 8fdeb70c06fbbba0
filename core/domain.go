package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrInvalidKind       = errors.New("core: invalid entity kind")
	ErrEntityNotFound    = errors.New("core: entity not found")
	ErrSelectionAborted  = errors.New("core: interactive selection aborted")
	ErrMalformedRawPath  = errors.New("core: malformed raw diff path")
	ErrMissingConnection = errors.New("core: connection is required")
)

// Kind identifies one of the managed entity types on a search-platform
// instance. The set is closed: every kind carries its own sync policy and
// its own backend endpoint.
type Kind string

const (
	KindRole        Kind = "role"
	KindUser        Kind = "user"
	KindApp         Kind = "app"
	KindIndex       Kind = "index"
	KindEventType   Kind = "event_type"
	KindSavedSearch Kind = "saved_search"
	KindInput       Kind = "input"
)

func Kinds() []Kind {
	return []Kind{
		KindRole,
		KindUser,
		KindApp,
		KindIndex,
		KindEventType,
		KindSavedSearch,
		KindInput,
	}
}

func (k Kind) Validate() error {
	switch k {
	case KindRole, KindUser, KindApp, KindIndex, KindEventType, KindSavedSearch, KindInput:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidKind, string(k))
}

func (k Kind) String() string {
	return string(k)
}

// ParseKind accepts the CLI spelling of a kind, tolerating plural and
// hyphenated forms ("saved-searches", "indexes", "roles").
func ParseKind(value string) (Kind, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	for _, candidate := range []string{
		normalized,
		strings.TrimSuffix(normalized, "s"),
		strings.TrimSuffix(normalized, "es"),
	} {
		if kind := Kind(candidate); kind.Validate() == nil {
			return kind, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, value)
}

// UnsetValue is the sentinel the platform reports for fields that are
// present but carry no assignment. It is treated the same as absence.
const UnsetValue = "-1"

// IsUnset reports whether a field value should be treated as "no value":
// nil or the platform's unset sentinel.
func IsUnset(value any) bool {
	if value == nil {
		return true
	}
	text, ok := value.(string)
	return ok && text == UnsetValue
}

// Access carries the namespace-scoping attributes of an entity. Only
// namespaced kinds report it.
type Access struct {
	App     string
	Sharing string
	Owner   string
}

// Namespace is the (app, sharing, owner) filter restricting which entities
// a connection sees. An empty, "-", or "*" component matches anything.
type Namespace struct {
	App     string
	Sharing string
	Owner   string
}

func (n Namespace) Matches(access *Access) bool {
	if access == nil {
		return true
	}
	return namespaceComponentMatches(n.App, access.App) &&
		namespaceComponentMatches(n.Sharing, access.Sharing) &&
		namespaceComponentMatches(n.Owner, access.Owner)
}

func (n Namespace) IsWildcard() bool {
	return isWildcardComponent(n.App) && isWildcardComponent(n.Sharing) && isWildcardComponent(n.Owner)
}

func namespaceComponentMatches(filter, value string) bool {
	if isWildcardComponent(filter) {
		return true
	}
	return filter == value
}

func isWildcardComponent(component string) bool {
	return component == "" || component == "-" || component == "*"
}

// FieldSchema is what the destination reports as acceptable fields for a
// kind. An empty schema means "no constraint": every field is accepted.
type FieldSchema struct {
	Required []string
	Optional []string
	Wildcard []string
}

func (s FieldSchema) IsEmpty() bool {
	return len(s.Required) == 0 && len(s.Optional) == 0
}

// Accepts reports whether a field may be assigned under this schema.
// Wildcard prefixes cover dynamic field families such as "auth.*".
func (s FieldSchema) Accepts(field string) bool {
	if s.IsEmpty() {
		return true
	}
	for _, name := range s.Required {
		if name == field {
			return true
		}
	}
	for _, name := range s.Optional {
		if name == field {
			return true
		}
	}
	for _, pattern := range s.Wildcard {
		prefix := strings.TrimSuffix(pattern, "*")
		if prefix != pattern && strings.HasPrefix(field, prefix) {
			return true
		}
	}
	return false
}

// Entity is one named record of a given kind. Name is the join key between
// source and destination snapshots; Content holds the field values the
// backend reports for it.
type Entity struct {
	Name    string
	Kind    Kind
	Content map[string]any
	Access  *Access
	Schema  FieldSchema
}

func (e Entity) Field(name string) (any, bool) {
	value, ok := e.Content[name]
	return value, ok
}

// StringSlice coerces a content value into a list of strings. The backend
// reports multi-value fields either as []string or []any.
func StringSlice(value any) []string {
	switch typed := value.(type) {
	case nil:
		return nil
	case []string:
		return append([]string(nil), typed...)
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		if typed == "" {
			return nil
		}
		return []string{typed}
	default:
		return []string{fmt.Sprint(typed)}
	}
}

// Snapshot is a point-in-time name -> content mapping for one kind on one
// connection, already namespace-filtered. Snapshots are rebuilt at every
// sync phase boundary and never cached across phases.
type Snapshot map[string]map[string]any

func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ChangeKind categorizes one field-level difference between the source and
// destination snapshots.
type ChangeKind string

const (
	// ChangeValueModified: the field exists on both sides with differing
	// values of the same type.
	ChangeValueModified ChangeKind = "value_modified"
	// ChangeTypeModified: the field exists on both sides with values of
	// differing types.
	ChangeTypeModified ChangeKind = "type_modified"
	// ChangeFieldMissing: the field exists on the source only.
	ChangeFieldMissing ChangeKind = "field_missing_on_dest"
	// ChangeFieldExtra: the field exists on the destination only.
	ChangeFieldExtra ChangeKind = "field_extra_on_dest"
	// ChangeListItemMissing: a sequence element present in the source field
	// has no counterpart in the destination field, ignoring order.
	ChangeListItemMissing ChangeKind = "list_item_missing_on_dest"
)

// FieldChange is one field-level entry of a change-set. New always carries
// the source value and Old always the destination value: synchronization
// direction is strictly source -> destination.
type FieldChange struct {
	Path Path
	Kind ChangeKind
	Old  any
	New  any
}

// ChangeSet is the categorized output of diffing two snapshots.
type ChangeSet struct {
	// MissingOnDest: entity names present in the source, absent on the
	// destination (create candidates).
	MissingOnDest []string
	// ExtraOnDest: entity names present on the destination, absent in the
	// source (delete candidates).
	ExtraOnDest []string
	// FieldChanges: per-field differences for entities present on both
	// sides (update candidates).
	FieldChanges []FieldChange
}

func (c ChangeSet) IsEmpty() bool {
	return len(c.MissingOnDest) == 0 && len(c.ExtraOnDest) == 0 && len(c.FieldChanges) == 0
}

func (c ChangeSet) Summary() map[string]any {
	return map[string]any{
		"missing_on_dest": len(c.MissingOnDest),
		"extra_on_dest":   len(c.ExtraOnDest),
		"field_changes":   len(c.FieldChanges),
	}
}

// Options are the per-call sync flags. Delete is strictly opt-in and never
// implied by Create or Update.
type Options struct {
	Create   bool
	Update   bool
	Delete   bool
	Simulate bool
}

func (o Options) Enabled() bool {
	return o.Create || o.Update || o.Delete
}
