package spladmin

import (
	"context"

	"github.com/goliatone/go-spladmin/core"
	"github.com/goliatone/go-spladmin/sync"
)

type Config = core.Config
type ConnectionConfig = core.ConnectionConfig
type AuditConfig = core.AuditConfig

type Kind = core.Kind
type Entity = core.Entity
type Snapshot = core.Snapshot
type ChangeSet = core.ChangeSet
type FieldChange = core.FieldChange
type Path = core.Path
type Options = core.Options
type Outcome = core.Outcome

type Connection = core.Connection
type Selector = core.Selector
type AuditSink = core.AuditSink
type SyncRun = core.SyncRun
type Decision = core.Decision

type Orchestrator = sync.Orchestrator
type Option = sync.Option

const (
	KindRole        = core.KindRole
	KindUser        = core.KindUser
	KindApp         = core.KindApp
	KindIndex       = core.KindIndex
	KindEventType   = core.KindEventType
	KindSavedSearch = core.KindSavedSearch
	KindInput       = core.KindInput
)

var (
	WithLogger         = sync.WithLogger
	WithLoggerProvider = sync.WithLoggerProvider
	WithSelector       = sync.WithSelector
	WithAuditSink      = sync.WithAuditSink
	WithUserPassword   = sync.WithUserPassword
	WithUpdateOverride = sync.WithUpdateOverride
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func LoadConfig(ctx context.Context, path string, runtime Config) (Config, error) {
	return core.LoadConfig(ctx, path, runtime)
}

func ParseKind(value string) (Kind, error) {
	return core.ParseKind(value)
}

// Diff computes the categorized difference between two snapshots.
func Diff(source, dest Snapshot) ChangeSet {
	return core.Diff(source, dest)
}

// New builds a synchronization orchestrator from source onto destination.
func New(src, dest Connection, opts ...Option) (*Orchestrator, error) {
	return sync.New(src, dest, opts...)
}
