// Package sync exposes the per-kind synchronization façade: one operation
// per managed entity kind, each wiring the structural differ, the kind's
// policy-aware entity operations, and the phase dispatcher together.
package sync

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-spladmin/core"
)

// Orchestrator synchronizes configuration entities from a source instance
// onto a destination instance. Direction is fixed: the source is
// authoritative and the destination is overwritten. One orchestrator owns
// its destination connection for the duration of each call; concurrent
// writers racing a sync are unsupported.
type Orchestrator struct {
	src  core.Connection
	dest core.Connection

	logger       core.Logger
	selector     core.Selector
	audit        core.AuditSink
	userPassword string
	overrides    map[core.Kind]map[string]core.UpdateFunc
	now          func() time.Time
}

type Option func(*Orchestrator)

func WithLogger(logger core.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(o *Orchestrator) {
		if provider != nil {
			o.logger = provider.GetLogger("spladmin.sync")
		}
	}
}

func WithSelector(selector core.Selector) Option {
	return func(o *Orchestrator) {
		if selector != nil {
			o.selector = selector
		}
	}
}

func WithAuditSink(sink core.AuditSink) Option {
	return func(o *Orchestrator) {
		o.audit = sink
	}
}

func WithUserPassword(password string) Option {
	return func(o *Orchestrator) {
		if password != "" {
			o.userPassword = password
		}
	}
}

// WithUpdateOverride routes one field path of one kind to a dedicated
// update handler instead of the wildcard primitive.
func WithUpdateOverride(kind core.Kind, fieldPath string, handler core.UpdateFunc) Option {
	return func(o *Orchestrator) {
		if fieldPath == "" || handler == nil {
			return
		}
		if o.overrides[kind] == nil {
			o.overrides[kind] = map[string]core.UpdateFunc{}
		}
		o.overrides[kind][fieldPath] = handler
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func New(src, dest core.Connection, opts ...Option) (*Orchestrator, error) {
	if src == nil || dest == nil {
		return nil, core.ErrMissingConnection
	}
	_, logger := glog.Resolve("spladmin.sync", nil, nil)
	orchestrator := &Orchestrator{
		src:          src,
		dest:         dest,
		logger:       logger,
		selector:     core.NopSelector{},
		userPassword: core.DefaultUserPassword,
		overrides:    map[core.Kind]map[string]core.UpdateFunc{},
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(orchestrator)
		}
	}
	orchestrator.logger.Info("creating sync management",
		"source", src.Name(), "destination", dest.Name())
	return orchestrator, nil
}

// Roles synchronizes role entities.
func (o *Orchestrator) Roles(ctx context.Context, opts core.Options) error {
	return o.syncKind(ctx, core.KindRole, opts)
}

// Users synchronizes user entities.
func (o *Orchestrator) Users(ctx context.Context, opts core.Options) error {
	return o.syncKind(ctx, core.KindUser, opts)
}

// Apps synchronizes application entities.
func (o *Orchestrator) Apps(ctx context.Context, opts core.Options) error {
	return o.syncKind(ctx, core.KindApp, opts)
}

// Indexes synchronizes index entities.
func (o *Orchestrator) Indexes(ctx context.Context, opts core.Options) error {
	return o.syncKind(ctx, core.KindIndex, opts)
}

// EventTypes synchronizes event type entities.
func (o *Orchestrator) EventTypes(ctx context.Context, opts core.Options) error {
	return o.syncKind(ctx, core.KindEventType, opts)
}

// SavedSearches synchronizes saved search entities.
func (o *Orchestrator) SavedSearches(ctx context.Context, opts core.Options) error {
	return o.syncKind(ctx, core.KindSavedSearch, opts)
}

// Inputs synchronizes data input entities.
func (o *Orchestrator) Inputs(ctx context.Context, opts core.Options) error {
	return o.syncKind(ctx, core.KindInput, opts)
}

// Kind dispatches to the operation matching the given kind.
func (o *Orchestrator) Kind(ctx context.Context, kind core.Kind, opts core.Options) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	return o.syncKind(ctx, kind, opts)
}

func (o *Orchestrator) syncKind(ctx context.Context, kind core.Kind, opts core.Options) error {
	ops, err := core.NewEntityOps(o.dest, kind,
		core.WithEntityOpsLogger(o.logger),
		core.WithEntityOpsSelector(o.selector),
		core.WithEntityOpsUserPassword(o.userPassword),
	)
	if err != nil {
		return err
	}

	table := core.ActionTable{
		Create:   ops.Create,
		Delete:   ops.Delete,
		Wildcard: ops.Update,
	}
	if overrides := o.overrides[kind]; len(overrides) > 0 {
		table.Fields = make(map[string]core.UpdateFunc, len(overrides))
		for fieldPath, handler := range overrides {
			table.Fields[fieldPath] = handler
		}
	}

	dispatcher, err := core.NewDispatcher(o.src, o.dest, kind, table,
		core.WithDispatcherLogger(o.logger),
		core.WithDispatcherSelector(o.selector),
		core.WithDispatcherAuditSink(o.audit),
		core.WithDispatcherClock(o.now),
	)
	if err != nil {
		return err
	}
	return dispatcher.Sync(ctx, opts)
}
