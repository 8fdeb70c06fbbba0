package core

import (
	"reflect"
	"testing"
)

func TestDiffCategorizesEntityPresence(t *testing.T) {
	source := Snapshot{
		"alpha": {"search": "index=a"},
		"both":  {"search": "index=b"},
	}
	dest := Snapshot{
		"both":  {"search": "index=b"},
		"omega": {"search": "index=z"},
	}

	set := Diff(source, dest)
	if !reflect.DeepEqual(set.MissingOnDest, []string{"alpha"}) {
		t.Fatalf("unexpected missing: %v", set.MissingOnDest)
	}
	if !reflect.DeepEqual(set.ExtraOnDest, []string{"omega"}) {
		t.Fatalf("unexpected extra: %v", set.ExtraOnDest)
	}
	if len(set.FieldChanges) != 0 {
		t.Fatalf("expected no field changes, got %v", set.FieldChanges)
	}
}

func TestDiffEmptyInputs(t *testing.T) {
	if set := Diff(Snapshot{}, Snapshot{}); !set.IsEmpty() {
		t.Fatalf("expected empty change-set, got %+v", set)
	}
	set := Diff(Snapshot{"only": {}}, Snapshot{})
	if !reflect.DeepEqual(set.MissingOnDest, []string{"only"}) {
		t.Fatalf("unexpected missing: %v", set.MissingOnDest)
	}
}

func TestDiffFieldChanges(t *testing.T) {
	source := Snapshot{
		"jdoe": {
			"email":      "jdoe@corp.example",
			"realname":   "J. Doe",
			"new_field":  "fresh",
			"typeswitch": "text",
		},
	}
	dest := Snapshot{
		"jdoe": {
			"email":      "old@corp.example",
			"realname":   "J. Doe",
			"extra":      "only-here",
			"typeswitch": float64(12),
		},
	}

	set := Diff(source, dest)
	byField := map[string]FieldChange{}
	for _, change := range set.FieldChanges {
		byField[change.Path.Field()] = change
	}

	email, ok := byField["email"]
	if !ok || email.Kind != ChangeValueModified {
		t.Fatalf("expected value-modified email change, got %+v", email)
	}
	if email.New != "jdoe@corp.example" || email.Old != "old@corp.example" {
		t.Fatalf("email change carries wrong values: %+v", email)
	}
	if _, ok := byField["realname"]; ok {
		t.Fatalf("equal field must not be reported")
	}
	if change, ok := byField["new_field"]; !ok || change.Kind != ChangeFieldMissing {
		t.Fatalf("expected field-missing change, got %+v", change)
	}
	if change, ok := byField["extra"]; !ok || change.Kind != ChangeFieldExtra {
		t.Fatalf("expected field-extra change, got %+v", change)
	}
	if change, ok := byField["typeswitch"]; !ok || change.Kind != ChangeTypeModified {
		t.Fatalf("expected type-modified change, got %+v", change)
	}
}

func TestDiffSequencesIgnoreOrder(t *testing.T) {
	source := Snapshot{
		"power": {"imported_roles": []any{"user", "admin"}},
	}
	dest := Snapshot{
		"power": {"imported_roles": []any{"admin", "user"}},
	}
	if set := Diff(source, dest); !set.IsEmpty() {
		t.Fatalf("reordered sequence must not be a change, got %+v", set)
	}
}

func TestDiffSequencesReportMissingElementsPerItem(t *testing.T) {
	source := Snapshot{
		"power": {"imported_roles": []any{"user", "auditor", "auditor"}},
	}
	dest := Snapshot{
		"power": {"imported_roles": []any{"user", "auditor", "extra_on_dest"}},
	}

	set := Diff(source, dest)
	if len(set.FieldChanges) != 1 {
		t.Fatalf("expected one missing element, got %+v", set.FieldChanges)
	}
	change := set.FieldChanges[0]
	if change.Kind != ChangeListItemMissing {
		t.Fatalf("expected list-item-missing, got %s", change.Kind)
	}
	if change.New != "auditor" {
		t.Fatalf("expected duplicate auditor element, got %v", change.New)
	}
	if change.Path.Index != 2 {
		t.Fatalf("expected source index 2, got %d", change.Path.Index)
	}
}

func TestDiffMixedSequenceRepresentations(t *testing.T) {
	// the backend reports multi-value fields as []string or []any
	// depending on the decoder; both spellings compare as sequences
	source := Snapshot{
		"power": {"srchIndexesAllowed": []string{"main", "audit"}},
	}
	dest := Snapshot{
		"power": {"srchIndexesAllowed": []any{"audit", "main"}},
	}
	if set := Diff(source, dest); !set.IsEmpty() {
		t.Fatalf("equivalent sequences must not differ, got %+v", set)
	}
}

func TestDiffIsDeterministic(t *testing.T) {
	source := Snapshot{
		"b": {"z": "1", "a": "2"},
		"a": {"m": []any{"x", "y"}},
	}
	dest := Snapshot{
		"b": {"z": "9", "a": "8"},
		"c": {},
	}
	first := Diff(source, dest)
	for i := 0; i < 10; i++ {
		if next := Diff(source, dest); !reflect.DeepEqual(first, next) {
			t.Fatalf("diff output changed between runs:\n%+v\n%+v", first, next)
		}
	}
}
