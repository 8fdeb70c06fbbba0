package sqlstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-spladmin/core"
)

type syncRunRecord struct {
	bun.BaseModel `bun:"table:sync_runs,alias:sr"`

	ID          string     `bun:"id,pk"`
	Kind        string     `bun:"kind,notnull"`
	Source      string     `bun:"source,notnull"`
	Destination string     `bun:"destination,notnull"`
	Create      bool       `bun:"create_enabled,notnull"`
	Update      bool       `bun:"update_enabled,notnull"`
	Delete      bool       `bun:"delete_enabled,notnull"`
	Simulate    bool       `bun:"simulate,notnull"`
	Status      string     `bun:"status,notnull"`
	StartedAt   time.Time  `bun:"started_at,nullzero,notnull"`
	FinishedAt  *time.Time `bun:"finished_at,nullzero"`
	CreatedAt   time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func newSyncRunRecord(run core.SyncRun) *syncRunRecord {
	return &syncRunRecord{
		ID:          run.ID,
		Kind:        run.Kind.String(),
		Source:      run.Source,
		Destination: run.Destination,
		Create:      run.Options.Create,
		Update:      run.Options.Update,
		Delete:      run.Options.Delete,
		Simulate:    run.Options.Simulate,
		Status:      "running",
		StartedAt:   run.StartedAt,
	}
}

func (r *syncRunRecord) toDomain() core.SyncRun {
	return core.SyncRun{
		ID:          r.ID,
		Kind:        core.Kind(r.Kind),
		Source:      r.Source,
		Destination: r.Destination,
		Options: core.Options{
			Create:   r.Create,
			Update:   r.Update,
			Delete:   r.Delete,
			Simulate: r.Simulate,
		},
		StartedAt: r.StartedAt,
	}
}

type syncDecisionRecord struct {
	bun.BaseModel `bun:"table:sync_decisions,alias:sd"`

	ID        string    `bun:"id,pk"`
	RunID     string    `bun:"run_id,notnull"`
	Kind      string    `bun:"kind,notnull"`
	Action    string    `bun:"action,notnull"`
	Entity    string    `bun:"entity,notnull"`
	Path      string    `bun:"path,notnull"`
	Outcome   string    `bun:"outcome,notnull"`
	OldValue  string    `bun:"old_value"`
	NewValue  string    `bun:"new_value"`
	Reason    string    `bun:"reason"`
	Simulated bool      `bun:"simulated,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func newSyncDecisionRecord(decision core.Decision) *syncDecisionRecord {
	return &syncDecisionRecord{
		RunID:     decision.RunID,
		Kind:      decision.Kind.String(),
		Action:    decision.Action,
		Entity:    decision.Entity,
		Path:      decision.Path,
		Outcome:   string(decision.Outcome),
		OldValue:  encodeValue(decision.Old),
		NewValue:  encodeValue(decision.New),
		Reason:    decision.Reason,
		Simulated: decision.Simulated,
		CreatedAt: decision.CreatedAt,
	}
}

func (r *syncDecisionRecord) toDomain() core.Decision {
	return core.Decision{
		RunID:     r.RunID,
		Kind:      core.Kind(r.Kind),
		Action:    r.Action,
		Entity:    r.Entity,
		Path:      r.Path,
		Outcome:   core.Outcome(r.Outcome),
		Old:       decodeValue(r.OldValue),
		New:       decodeValue(r.NewValue),
		Reason:    r.Reason,
		Simulated: r.Simulated,
		CreatedAt: r.CreatedAt,
	}
}
