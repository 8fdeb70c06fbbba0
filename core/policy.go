package core

import (
	"fmt"
	"sort"
	"strings"
)

// Policy is the static per-kind synchronization rule set: fields that must
// never be propagated and fields whose values must exist in the
// destination's own inventory before they can be written. Policies are
// fixed at compile time and never mutated at runtime.
type Policy struct {
	Kind Kind

	syncExclude map[string]struct{}
	crossRef    map[string]InventoryKind
}

// crossRefFields maps the fields requiring cross-reference validation to
// the destination inventory they validate against. The mapping is shared
// by every kind that carries the field.
var crossRefFields = map[string]InventoryKind{
	"capabilities":   InventoryCapabilities,
	"imported_roles": InventoryRoles,
	"roles":          InventoryRoles,
	"defaultApp":     InventoryApps,
}

var kindPolicies = map[Kind]Policy{
	KindRole: newPolicy(KindRole, []string{
		"imported_capabilities",
		"imported_srchIndexesAllowed",
		"imported_srchIndexesDefault",
		"imported_rtSrchJobsQuota",
		"imported_srchDiskQuota",
		"imported_srchJobsQuota",
	}),
	KindUser: newPolicy(KindUser, []string{
		"capabilities",
		"password",
		"last_successful_login",
		"defaultAppIsUserOverride",
		"defaultAppSourceRole",
		"type",
	}),
	KindApp:         newPolicy(KindApp, nil),
	KindIndex:       newPolicy(KindIndex, nil),
	KindEventType:   newPolicy(KindEventType, nil),
	KindSavedSearch: newPolicy(KindSavedSearch, []string{"embed.enabled"}),
	KindInput:       newPolicy(KindInput, []string{"assureUTF8"}),
}

func newPolicy(kind Kind, exclude []string) Policy {
	excludeSet := make(map[string]struct{}, len(exclude))
	for _, field := range exclude {
		excludeSet[field] = struct{}{}
	}
	return Policy{Kind: kind, syncExclude: excludeSet, crossRef: crossRefFields}
}

// PolicyFor returns the synchronization policy for a kind.
func PolicyFor(kind Kind) Policy {
	policy, ok := kindPolicies[kind]
	if !ok {
		return newPolicy(kind, nil)
	}
	return policy
}

// SyncExclude lists the excluded field names in sorted order.
func (p Policy) SyncExclude() []string {
	fields := make([]string, 0, len(p.syncExclude))
	for field := range p.syncExclude {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// Excluded reports whether a field must never be synchronized for this
// kind. The field name is the content-level spelling, without the
// "content." container prefix.
func (p Policy) Excluded(field string) bool {
	_, ok := p.syncExclude[field]
	return ok
}

// CrossReference returns the inventory a field validates against, if any.
func (p Policy) CrossReference(field string) (InventoryKind, bool) {
	kind, ok := p.crossRef[field]
	return kind, ok
}

// ReferenceWarning records one cross-reference value dropped during
// create-argument assembly because the destination does not know it.
type ReferenceWarning struct {
	Field     string
	Value     string
	Inventory InventoryKind
}

func (w ReferenceWarning) String() string {
	return fmt.Sprintf("unknown %s reference %q in field %q", w.Inventory, w.Value, w.Field)
}

// BuildCreateArgs assembles the argument set for creating the reference
// entity on the destination. A field is included only if it carries a real
// value (present, non-nil, not the unset sentinel), the destination's
// schema accepts it (an empty schema accepts everything), and the field is
// not excluded by policy. Cross-reference fields are pruned against the
// destination inventory; every dropped value is returned as a warning, not
// an error.
func (p Policy) BuildCreateArgs(ref Entity, inv Inventory) (map[string]any, []ReferenceWarning) {
	args := make(map[string]any)
	var warnings []ReferenceWarning

	for _, field := range sortedKeys(ref.Content) {
		value := ref.Content[field]
		if IsUnset(value) {
			continue
		}
		if p.Excluded(field) || !ref.Schema.Accepts(field) {
			continue
		}

		inventory, crossReferenced := p.CrossReference(field)
		if !crossReferenced {
			args[field] = value
			continue
		}

		switch typed := value.(type) {
		case string:
			if inv.Has(inventory, typed) {
				args[field] = typed
			} else {
				warnings = append(warnings, ReferenceWarning{Field: field, Value: typed, Inventory: inventory})
			}
		default:
			kept := make([]string, 0)
			for _, item := range StringSlice(value) {
				if inv.Has(inventory, item) {
					kept = append(kept, item)
					continue
				}
				warnings = append(warnings, ReferenceWarning{Field: field, Value: item, Inventory: inventory})
			}
			args[field] = kept
		}
	}
	return args, warnings
}

// AssignmentDecision is the policy verdict for one field-level update.
type AssignmentDecision string

const (
	// AssignmentApply: the update is actionable and should be written.
	AssignmentApply AssignmentDecision = "apply"
	// AssignmentIgnore: the difference is expected and intentionally not
	// synchronized; an info/debug-level event, not an error.
	AssignmentIgnore AssignmentDecision = "ignore"
	// AssignmentDeny: the update references a value the destination does
	// not know; an error-level event, the assignment is rejected.
	AssignmentDeny AssignmentDecision = "deny"
)

// ValidateAssignment decides whether a detected field difference is
// actionable against the given destination entity. dest is the
// destination-side entity the update would land on; old/new follow the
// change-set convention (old = destination value, new = source value).
func (p Policy) ValidateAssignment(dest Entity, fieldPath string, oldValue, newValue any, inv Inventory) (AssignmentDecision, string) {
	field := strings.TrimPrefix(fieldPath, contentKey+".")

	if p.Excluded(field) {
		return AssignmentIgnore, "field excluded from synchronization"
	}
	if IsUnset(oldValue) && IsUnset(newValue) {
		return AssignmentIgnore, "both sides unset"
	}
	current, present := dest.Field(field)
	if !present || IsUnset(current) {
		return AssignmentIgnore, "field not populated on destination"
	}
	if !dest.Schema.Accepts(field) {
		return AssignmentIgnore, "field not accepted by destination schema"
	}

	// removals carry the unset sentinel as the new value; only real
	// assignments need their values to exist on the destination
	if inventory, ok := p.CrossReference(field); ok && !IsUnset(newValue) {
		switch typed := newValue.(type) {
		case string:
			if !inv.Has(inventory, typed) {
				return AssignmentDeny, fmt.Sprintf("%s %q does not exist on destination", inventory, typed)
			}
		default:
			for _, item := range StringSlice(newValue) {
				if !inv.Has(inventory, item) {
					return AssignmentDeny, fmt.Sprintf("%s %q does not exist on destination", inventory, item)
				}
			}
		}
	}
	return AssignmentApply, ""
}
