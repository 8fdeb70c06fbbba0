package core

import (
	"context"
	"fmt"

	glog "github.com/goliatone/go-logger/glog"
)

// DefaultUserPassword seeds newly created user entities when the source
// cannot disclose the original secret. Operators override it per
// deployment; it only ever applies to create, never to update.
const DefaultUserPassword = "ChangeMeOnFirstLogin!"

// EntityOps are the policy-aware create/update/delete primitives bound to
// one destination connection and one kind. The dispatcher invokes them
// through the action table; they own argument assembly, cross-reference
// validation, confirmation, and the simulate short-circuit.
type EntityOps struct {
	conn         Connection
	kind         Kind
	policy       Policy
	selector     Selector
	logger       Logger
	userPassword string
}

type EntityOpsOption func(*EntityOps)

func WithEntityOpsLogger(logger Logger) EntityOpsOption {
	return func(o *EntityOps) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithEntityOpsSelector(selector Selector) EntityOpsOption {
	return func(o *EntityOps) {
		if selector != nil {
			o.selector = selector
		}
	}
}

func WithEntityOpsUserPassword(password string) EntityOpsOption {
	return func(o *EntityOps) {
		if password != "" {
			o.userPassword = password
		}
	}
}

func NewEntityOps(conn Connection, kind Kind, opts ...EntityOpsOption) (*EntityOps, error) {
	if conn == nil {
		return nil, ErrMissingConnection
	}
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	_, logger := glog.Resolve("spladmin", nil, nil)
	ops := &EntityOps{
		conn:         conn,
		kind:         kind,
		policy:       PolicyFor(kind),
		selector:     NopSelector{},
		logger:       logger,
		userPassword: DefaultUserPassword,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ops)
		}
	}
	return ops, nil
}

// Create replays the reference entity onto the destination. Arguments are
// assembled by policy against the destination's current inventory; every
// pruned cross-reference is logged as a warning and the create proceeds
// with what remains.
func (o *EntityOps) Create(ctx context.Context, ref Entity, simulate bool) (Outcome, error) {
	confirmed, err := o.selector.Confirm(ctx,
		fmt.Sprintf("Create %s %q on %s?", o.kind, ref.Name, o.conn.Name()), true)
	if err != nil {
		return OutcomeErrored, err
	}
	if !confirmed {
		o.logger.Info("skipping entity creation",
			"kind", o.kind.String(), "name", ref.Name, "destination", o.conn.Name())
		return OutcomeSkipped, nil
	}

	inv, err := LoadInventory(ctx, o.conn)
	if err != nil {
		return OutcomeErrored, err
	}
	args, warnings := o.policy.BuildCreateArgs(ref, inv)
	for _, warning := range warnings {
		o.logger.Warn("dropping unknown reference from create arguments",
			"kind", o.kind.String(), "name", ref.Name,
			"field", warning.Field, "value", warning.Value, "inventory", string(warning.Inventory))
	}
	if o.kind == KindUser {
		args["password"] = o.userPassword
	}

	if simulate {
		o.logger.Info("simulated entity creation",
			"kind", o.kind.String(), "name", ref.Name, "destination", o.conn.Name())
		return OutcomeSimulated, nil
	}

	o.logger.Info("creating entity",
		"kind", o.kind.String(), "name", ref.Name, "destination", o.conn.Name())
	if _, err := o.conn.Create(ctx, o.kind, ref.Name, args); err != nil {
		return OutcomeErrored, ConnectivityError(err, "core: create entity", map[string]any{
			"kind": o.kind.String(), "name": ref.Name,
		})
	}
	return OutcomeApplied, nil
}

// Update replays one field-level difference onto the destination entity.
// The policy verdict decides between applying, ignoring (expected
// difference), and denying (cross-reference missing on destination).
func (o *EntityOps) Update(ctx context.Context, name string, path Path, oldValue, newValue any, simulate bool) (Outcome, error) {
	dest, err := o.conn.Get(ctx, o.kind, name)
	if err != nil {
		return OutcomeErrored, ConnectivityError(err, "core: fetch destination entity", map[string]any{
			"kind": o.kind.String(), "name": name,
		})
	}

	field := path.Field()
	inv := Inventory{}
	if _, crossReferenced := o.policy.CrossReference(field); crossReferenced {
		if inv, err = LoadInventory(ctx, o.conn); err != nil {
			return OutcomeErrored, err
		}
	}

	decision, reason := o.policy.ValidateAssignment(dest, path.FieldPath(), oldValue, newValue, inv)
	switch decision {
	case AssignmentIgnore:
		o.logger.Info("ignoring entity update",
			"kind", o.kind.String(), "name", name, "field", field,
			"old", oldValue, "new", newValue, "reason", reason)
		return OutcomeIgnored, nil
	case AssignmentDeny:
		o.logger.Error("denying entity update",
			"kind", o.kind.String(), "name", name, "field", field,
			"new", newValue, "error", ReferenceError(reason, map[string]any{
				"kind": o.kind.String(), "name": name, "field": field,
			}))
		return OutcomeDenied, nil
	}

	confirmed, err := o.selector.Confirm(ctx,
		fmt.Sprintf("Update %s %q field %q from %v to %v?", o.kind, name, field, oldValue, newValue), true)
	if err != nil {
		return OutcomeErrored, err
	}
	if !confirmed {
		o.logger.Info("skipping entity update",
			"kind", o.kind.String(), "name", name, "field", field)
		return OutcomeSkipped, nil
	}

	if simulate {
		o.logger.Info("simulated entity update",
			"kind", o.kind.String(), "name", name, "field", field,
			"old", oldValue, "new", newValue)
		return OutcomeSimulated, nil
	}

	o.logger.Info("updating entity",
		"kind", o.kind.String(), "name", name, "field", field,
		"old", oldValue, "new", newValue)
	if field == "capabilities" {
		return o.applyCapabilityChange(ctx, name, oldValue, newValue)
	}
	if err := o.conn.Update(ctx, o.kind, name, map[string]any{field: newValue}); err != nil {
		return OutcomeErrored, ConnectivityError(err, "core: update entity", map[string]any{
			"kind": o.kind.String(), "name": name, "field": field,
		})
	}
	return OutcomeApplied, nil
}

// applyCapabilityChange routes capability assignments through the
// backend's grant/revoke primitives rather than a plain field update.
// Capability differences arrive one element at a time; a composite value
// on the acting side has no single capability name to grant or revoke, so
// it is logged and left alone.
func (o *EntityOps) applyCapabilityChange(ctx context.Context, name string, oldValue, newValue any) (Outcome, error) {
	if IsUnset(oldValue) && !IsUnset(newValue) {
		capability, scalar := newValue.(string)
		if !scalar {
			o.logger.Warn("ignoring composite capability assignment",
				"kind", o.kind.String(), "name", name, "new", newValue)
			return OutcomeIgnored, nil
		}
		if err := o.conn.Grant(ctx, o.kind, name, capability); err != nil {
			return OutcomeErrored, ConnectivityError(err, "core: grant capability", map[string]any{
				"kind": o.kind.String(), "name": name, "capability": capability,
			})
		}
		return OutcomeApplied, nil
	}
	value := oldValue
	if IsUnset(value) {
		value = newValue
	}
	capability, scalar := value.(string)
	if !scalar {
		o.logger.Warn("ignoring composite capability assignment",
			"kind", o.kind.String(), "name", name, "old", oldValue, "new", newValue)
		return OutcomeIgnored, nil
	}
	if err := o.conn.Revoke(ctx, o.kind, name, capability); err != nil {
		return OutcomeErrored, ConnectivityError(err, "core: revoke capability", map[string]any{
			"kind": o.kind.String(), "name": name, "capability": capability,
		})
	}
	return OutcomeApplied, nil
}

// Delete removes the named entity from the destination.
func (o *EntityOps) Delete(ctx context.Context, name string, simulate bool) (Outcome, error) {
	confirmed, err := o.selector.Confirm(ctx,
		fmt.Sprintf("Delete %s %q on %s?", o.kind, name, o.conn.Name()), true)
	if err != nil {
		return OutcomeErrored, err
	}
	if !confirmed {
		o.logger.Info("skipping entity deletion",
			"kind", o.kind.String(), "name", name, "destination", o.conn.Name())
		return OutcomeSkipped, nil
	}
	if simulate {
		o.logger.Info("simulated entity deletion",
			"kind", o.kind.String(), "name", name, "destination", o.conn.Name())
		return OutcomeSimulated, nil
	}

	o.logger.Info("deleting entity",
		"kind", o.kind.String(), "name", name, "destination", o.conn.Name())
	if err := o.conn.Delete(ctx, o.kind, name); err != nil {
		return OutcomeErrored, ConnectivityError(err, "core: delete entity", map[string]any{
			"kind": o.kind.String(), "name": name,
		})
	}
	return OutcomeApplied, nil
}
