package core

import (
	"context"
	"fmt"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

// CreateFunc handles one whole-entity create candidate.
type CreateFunc func(ctx context.Context, ref Entity, simulate bool) (Outcome, error)

// DeleteFunc handles one whole-entity delete candidate.
type DeleteFunc func(ctx context.Context, name string, simulate bool) (Outcome, error)

// UpdateFunc handles one field-level change on an entity present on both
// sides. Old carries the destination value, New the source value.
type UpdateFunc func(ctx context.Context, name string, path Path, oldValue, newValue any, simulate bool) (Outcome, error)

// ActionTable maps change categories to handlers for one sync call. Field
// handlers are resolved exact-path-first with the wildcard as fallback;
// a nil Create or Delete turns that phase into a no-op. The table is built
// once per sync call and never mutated during it.
type ActionTable struct {
	Create   CreateFunc
	Delete   DeleteFunc
	Fields   map[string]UpdateFunc
	Wildcard UpdateFunc
}

// ResolveUpdate returns the handler for a dotted field path: the exact
// entry when registered, otherwise the wildcard, otherwise nothing.
func (t ActionTable) ResolveUpdate(fieldPath string) (UpdateFunc, bool) {
	if handler, ok := t.Fields[fieldPath]; ok && handler != nil {
		return handler, true
	}
	if t.Wildcard != nil {
		return t.Wildcard, true
	}
	return nil, false
}

// Dispatcher walks a change-set and replays it onto the destination in the
// fixed create -> update -> delete phase order, recomputing the diff
// between phases so each phase observes the previous one's effects. One
// entity's backend failure is logged and contained; siblings in the same
// phase continue.
type Dispatcher struct {
	src      Connection
	dest     Connection
	kind     Kind
	actions  ActionTable
	selector Selector
	logger   Logger
	audit    AuditSink
	now      func() time.Time
}

type DispatcherOption func(*Dispatcher)

func WithDispatcherLogger(logger Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithDispatcherSelector(selector Selector) DispatcherOption {
	return func(d *Dispatcher) {
		if selector != nil {
			d.selector = selector
		}
	}
}

func WithDispatcherAuditSink(sink AuditSink) DispatcherOption {
	return func(d *Dispatcher) {
		d.audit = sink
	}
}

func WithDispatcherClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

func NewDispatcher(src, dest Connection, kind Kind, actions ActionTable, opts ...DispatcherOption) (*Dispatcher, error) {
	if src == nil || dest == nil {
		return nil, ErrMissingConnection
	}
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	_, logger := glog.Resolve("spladmin", nil, nil)
	dispatcher := &Dispatcher{
		src:      src,
		dest:     dest,
		kind:     kind,
		actions:  actions,
		selector: NopSelector{},
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(dispatcher)
		}
	}
	return dispatcher, nil
}

// Sync runs the enabled phases in create -> update -> delete order. A
// snapshot/diff failure propagates; per-entity action failures do not.
func (d *Dispatcher) Sync(ctx context.Context, opts Options) error {
	run := SyncRun{
		ID:          uuid.NewString(),
		Kind:        d.kind,
		Source:      d.src.Name(),
		Destination: d.dest.Name(),
		Options:     opts,
		StartedAt:   d.now(),
	}
	if err := d.beginRun(ctx, run); err != nil {
		return err
	}

	changes, err := SnapshotPair(ctx, d.src, d.dest, d.kind)
	if err != nil {
		d.completeRun(ctx, run.ID, "errored")
		return syncErrorMapper(err)
	}
	d.logger.Info("differential synchronization",
		"kind", d.kind.String(), "source", d.src.Name(), "destination", d.dest.Name(),
		"missing_on_dest", len(changes.MissingOnDest),
		"extra_on_dest", len(changes.ExtraOnDest),
		"field_changes", len(changes.FieldChanges))

	if opts.Create {
		d.createPhase(ctx, run.ID, changes, opts.Simulate)
		if changes, err = SnapshotPair(ctx, d.src, d.dest, d.kind); err != nil {
			d.completeRun(ctx, run.ID, "errored")
			return syncErrorMapper(err)
		}
	}
	if opts.Update {
		d.updatePhase(ctx, run.ID, changes, opts.Simulate)
		if changes, err = SnapshotPair(ctx, d.src, d.dest, d.kind); err != nil {
			d.completeRun(ctx, run.ID, "errored")
			return syncErrorMapper(err)
		}
	}
	if opts.Delete {
		d.deletePhase(ctx, run.ID, changes, opts.Simulate)
		if _, err = SnapshotPair(ctx, d.src, d.dest, d.kind); err != nil {
			d.completeRun(ctx, run.ID, "errored")
			return syncErrorMapper(err)
		}
	}

	d.completeRun(ctx, run.ID, "completed")
	return nil
}

// createPhase replays entities that exist on the source only. Only
// whole-entity candidates participate; field-level gaps belong to the
// update phase.
func (d *Dispatcher) createPhase(ctx context.Context, runID string, changes ChangeSet, simulate bool) {
	if d.actions.Create == nil || len(changes.MissingOnDest) == 0 {
		return
	}
	d.logger.Info("entities missing on destination",
		"kind", d.kind.String(), "names", changes.MissingOnDest,
		"source", d.src.Name(), "destination", d.dest.Name())

	candidates, err := d.selector.Select(ctx,
		fmt.Sprintf("Select the %s entities to create", d.kind), changes.MissingOnDest)
	if err != nil {
		d.logger.Error("interactive selection failed", "kind", d.kind.String(), "error", err)
		return
	}
	for _, name := range candidates {
		ref, err := d.src.Get(ctx, d.kind, name)
		if err != nil {
			d.logger.Error("failed to access source entity",
				"kind", d.kind.String(), "name", name, "error", err)
			d.record(ctx, runID, "create", name, NewPath(name), OutcomeErrored, nil, nil, err.Error(), simulate)
			continue
		}
		outcome, err := d.actions.Create(ctx, ref, simulate)
		if err != nil {
			d.logger.Error("entity creation failed",
				"kind", d.kind.String(), "name", name, "error", err)
			d.record(ctx, runID, "create", name, NewPath(name), OutcomeErrored, nil, nil, err.Error(), simulate)
			continue
		}
		d.record(ctx, runID, "create", name, NewPath(name), outcome, nil, nil, "", simulate)
	}
}

// updatePhase replays field-level differences for entities present on both
// sides. Changed paths with no exact or wildcard handler are expected for
// intentionally unmanaged fields and skipped at debug level.
func (d *Dispatcher) updatePhase(ctx context.Context, runID string, changes ChangeSet, simulate bool) {
	for _, change := range changes.FieldChanges {
		fieldPath := change.Path.FieldPath()
		if fieldPath == "" {
			continue
		}
		handler, ok := d.actions.ResolveUpdate(fieldPath)
		if !ok {
			d.logger.Debug("no action registered for changed field",
				"kind", d.kind.String(), "name", change.Path.Entity, "field", change.Path.Field())
			continue
		}
		d.logger.Debug("field differs between instances",
			"kind", d.kind.String(), "name", change.Path.Entity,
			"field", change.Path.Field(), "change", string(change.Kind))

		outcome, err := handler(ctx, change.Path.Entity, change.Path, change.Old, change.New, simulate)
		if err != nil {
			d.logger.Error("entity update failed",
				"kind", d.kind.String(), "name", change.Path.Entity,
				"field", change.Path.Field(), "error", err)
			d.record(ctx, runID, "update", change.Path.Entity, change.Path, OutcomeErrored, change.Old, change.New, err.Error(), simulate)
			continue
		}
		d.record(ctx, runID, "update", change.Path.Entity, change.Path, outcome, change.Old, change.New, "", simulate)
	}
}

// deletePhase removes entities that exist on the destination only.
func (d *Dispatcher) deletePhase(ctx context.Context, runID string, changes ChangeSet, simulate bool) {
	if d.actions.Delete == nil || len(changes.ExtraOnDest) == 0 {
		return
	}
	d.logger.Info("entities extra on destination",
		"kind", d.kind.String(), "names", changes.ExtraOnDest,
		"source", d.src.Name(), "destination", d.dest.Name())

	candidates, err := d.selector.Select(ctx,
		fmt.Sprintf("Select the %s entities to remove", d.kind), changes.ExtraOnDest)
	if err != nil {
		d.logger.Error("interactive selection failed", "kind", d.kind.String(), "error", err)
		return
	}
	for _, name := range candidates {
		outcome, err := d.actions.Delete(ctx, name, simulate)
		if err != nil {
			d.logger.Error("entity deletion failed",
				"kind", d.kind.String(), "name", name, "error", err)
			d.record(ctx, runID, "delete", name, NewPath(name), OutcomeErrored, nil, nil, err.Error(), simulate)
			continue
		}
		d.record(ctx, runID, "delete", name, NewPath(name), outcome, nil, nil, "", simulate)
	}
}

func (d *Dispatcher) beginRun(ctx context.Context, run SyncRun) error {
	if d.audit == nil {
		return nil
	}
	return d.audit.BeginRun(ctx, run)
}

func (d *Dispatcher) completeRun(ctx context.Context, runID string, status string) {
	if d.audit == nil {
		return
	}
	if err := d.audit.CompleteRun(ctx, runID, status, d.now()); err != nil {
		d.logger.Error("failed to complete audit run", "run_id", runID, "error", err)
	}
}

func (d *Dispatcher) record(ctx context.Context, runID, action, entity string, path Path, outcome Outcome, oldValue, newValue any, reason string, simulated bool) {
	if d.audit == nil {
		return
	}
	decision := Decision{
		RunID:     runID,
		Kind:      d.kind,
		Action:    action,
		Entity:    entity,
		Path:      path.String(),
		Outcome:   outcome,
		Old:       oldValue,
		New:       newValue,
		Reason:    reason,
		Simulated: simulated,
		CreatedAt: d.now(),
	}
	if err := d.audit.RecordDecision(ctx, decision); err != nil {
		d.logger.Error("failed to record audit decision",
			"run_id", runID, "entity", entity, "error", err)
	}
}
