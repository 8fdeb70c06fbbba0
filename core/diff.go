package core

import (
	"reflect"
	"sort"
)

// Diff computes the categorized change-set between a source and a
// destination snapshot of the same kind. It is a pure function of its two
// inputs: identical inputs always yield identical output, with entity and
// field keys visited in sorted order.
//
// Sequence-valued fields are compared as multisets, so reordering the
// elements of a multi-value field is not a change. Elements present in the
// source sequence with no destination counterpart are reported per element;
// extra destination elements inside a shared field are not synchronized and
// therefore not reported.
func Diff(source, dest Snapshot) ChangeSet {
	var set ChangeSet

	for _, name := range source.Names() {
		if _, ok := dest[name]; !ok {
			set.MissingOnDest = append(set.MissingOnDest, name)
		}
	}
	for _, name := range dest.Names() {
		if _, ok := source[name]; !ok {
			set.ExtraOnDest = append(set.ExtraOnDest, name)
		}
	}

	for _, name := range source.Names() {
		destContent, ok := dest[name]
		if !ok {
			continue
		}
		set.FieldChanges = append(set.FieldChanges, diffContent(name, source[name], destContent)...)
	}
	return set
}

func diffContent(entity string, source, dest map[string]any) []FieldChange {
	var changes []FieldChange

	for _, field := range sortedKeys(source) {
		srcValue := source[field]
		destValue, ok := dest[field]
		if !ok {
			changes = append(changes, FieldChange{
				Path: NewPath(entity, contentKey, field),
				Kind: ChangeFieldMissing,
				New:  srcValue,
			})
			continue
		}
		changes = append(changes, diffField(entity, field, srcValue, destValue)...)
	}

	for _, field := range sortedKeys(dest) {
		if _, ok := source[field]; ok {
			continue
		}
		changes = append(changes, FieldChange{
			Path: NewPath(entity, contentKey, field),
			Kind: ChangeFieldExtra,
			Old:  dest[field],
		})
	}
	return changes
}

func diffField(entity, field string, srcValue, destValue any) []FieldChange {
	srcSeq, srcIsSeq := asSequence(srcValue)
	destSeq, destIsSeq := asSequence(destValue)

	if srcIsSeq && destIsSeq {
		return diffSequence(entity, field, srcSeq, destSeq)
	}
	if srcIsSeq != destIsSeq || !sameScalarType(srcValue, destValue) {
		return []FieldChange{{
			Path: NewPath(entity, contentKey, field),
			Kind: ChangeTypeModified,
			Old:  destValue,
			New:  srcValue,
		}}
	}
	if reflect.DeepEqual(srcValue, destValue) {
		return nil
	}
	return []FieldChange{{
		Path: NewPath(entity, contentKey, field),
		Kind: ChangeValueModified,
		Old:  destValue,
		New:  srcValue,
	}}
}

// diffSequence reports source elements that have no destination
// counterpart, counting duplicates, ignoring order.
func diffSequence(entity, field string, src, dest []any) []FieldChange {
	remaining := make([]any, len(dest))
	copy(remaining, dest)

	var changes []FieldChange
	for index, item := range src {
		if matched := consume(&remaining, item); matched {
			continue
		}
		changes = append(changes, FieldChange{
			Path: NewIndexedPath(entity, index, contentKey, field),
			Kind: ChangeListItemMissing,
			New:  item,
		})
	}
	return changes
}

func consume(pool *[]any, item any) bool {
	for i, candidate := range *pool {
		if reflect.DeepEqual(candidate, item) {
			*pool = append((*pool)[:i], (*pool)[i+1:]...)
			return true
		}
	}
	return false
}

func asSequence(value any) ([]any, bool) {
	switch typed := value.(type) {
	case []any:
		return typed, true
	case []string:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = item
		}
		return out, true
	default:
		return nil, false
	}
}

func sameScalarType(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.TypeOf(a) == reflect.TypeOf(b)
}

func sortedKeys(content map[string]any) []string {
	keys := make([]string, 0, len(content))
	for key := range content {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
