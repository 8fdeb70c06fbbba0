package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

// Connection is the backend handle for one search-platform instance. The
// engine never owns entities: it lists, reads, and mutates them through
// this contract and treats every call as synchronous, unbounded-latency
// I/O. Implementations surface transport failures as connectivity errors.
type Connection interface {
	// Name identifies the instance in logs ("production", "localhost").
	Name() string
	// Namespace is the active (app, sharing, owner) scope filter.
	Namespace() Namespace

	List(ctx context.Context, kind Kind) ([]Entity, error)
	Get(ctx context.Context, kind Kind, name string) (Entity, error)
	Create(ctx context.Context, kind Kind, name string, fields map[string]any) (Entity, error)
	Update(ctx context.Context, kind Kind, name string, fields map[string]any) error
	Delete(ctx context.Context, kind Kind, name string) error

	// Grant and Revoke manage single capability assignments, which the
	// backend exposes as a dedicated operation rather than a field update.
	Grant(ctx context.Context, kind Kind, name string, capability string) error
	Revoke(ctx context.Context, kind Kind, name string, capability string) error

	// Capabilities is the destination's full capability vocabulary, used
	// for cross-reference validation.
	Capabilities(ctx context.Context) ([]string, error)
}

// Selector narrows interactive candidate sets and confirms destructive
// actions. When interactivity is disabled the NopSelector passes every
// candidate through and answers every confirmation with its default.
type Selector interface {
	Select(ctx context.Context, prompt string, candidates []string) ([]string, error)
	Confirm(ctx context.Context, prompt string, fallback bool) (bool, error)
}

// NopSelector is the pass-through used when interactivity is off.
type NopSelector struct{}

func (NopSelector) Select(_ context.Context, _ string, candidates []string) ([]string, error) {
	return candidates, nil
}

func (NopSelector) Confirm(_ context.Context, _ string, fallback bool) (bool, error) {
	return fallback, nil
}

// Outcome is the recorded result of one dispatched action.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeSimulated Outcome = "simulated"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeDenied    Outcome = "denied"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeErrored   Outcome = "errored"
)

// SyncRun describes one orchestrated sync invocation for audit purposes.
type SyncRun struct {
	ID          string
	Kind        Kind
	Source      string
	Destination string
	Options     Options
	StartedAt   time.Time
}

// Decision is one audited engine decision: an applied, simulated, skipped,
// ignored, or denied action on one entity or field.
type Decision struct {
	RunID     string
	Kind      Kind
	Action    string
	Entity    string
	Path      string
	Outcome   Outcome
	Old       any
	New       any
	Reason    string
	Simulated bool
	CreatedAt time.Time
}

// AuditSink persists sync runs and their per-decision records. The engine
// tolerates a nil sink; persistence is never owned by the core.
type AuditSink interface {
	BeginRun(ctx context.Context, run SyncRun) error
	RecordDecision(ctx context.Context, decision Decision) error
	CompleteRun(ctx context.Context, runID string, status string, finishedAt time.Time) error
}

// Inventory is the destination's own vocabulary of referenceable values. A
// cross-reference field may only be written when its value is present here.
type Inventory struct {
	Capabilities map[string]struct{}
	Roles        map[string]struct{}
	Apps         map[string]struct{}
}

// InventoryKind names the inventory a cross-reference field validates
// against.
type InventoryKind string

const (
	InventoryCapabilities InventoryKind = "capabilities"
	InventoryRoles        InventoryKind = "roles"
	InventoryApps         InventoryKind = "apps"
)

func (inv Inventory) Has(kind InventoryKind, value string) bool {
	switch kind {
	case InventoryCapabilities:
		_, ok := inv.Capabilities[value]
		return ok
	case InventoryRoles:
		_, ok := inv.Roles[value]
		return ok
	case InventoryApps:
		_, ok := inv.Apps[value]
		return ok
	}
	return false
}

// LoadInventory reads the destination's capability vocabulary and its role
// and app listings. It is called before argument assembly and before each
// cross-referenced assignment so validation always sees the destination's
// current state, including entities created earlier in the same run.
func LoadInventory(ctx context.Context, conn Connection) (Inventory, error) {
	if conn == nil {
		return Inventory{}, ErrMissingConnection
	}
	capabilities, err := conn.Capabilities(ctx)
	if err != nil {
		return Inventory{}, err
	}
	roles, err := conn.List(ctx, KindRole)
	if err != nil {
		return Inventory{}, err
	}
	apps, err := conn.List(ctx, KindApp)
	if err != nil {
		return Inventory{}, err
	}

	inv := Inventory{
		Capabilities: make(map[string]struct{}, len(capabilities)),
		Roles:        make(map[string]struct{}, len(roles)),
		Apps:         make(map[string]struct{}, len(apps)),
	}
	for _, capability := range capabilities {
		inv.Capabilities[capability] = struct{}{}
	}
	for _, role := range roles {
		inv.Roles[role.Name] = struct{}{}
	}
	for _, app := range apps {
		inv.Apps[app.Name] = struct{}{}
	}
	return inv, nil
}
