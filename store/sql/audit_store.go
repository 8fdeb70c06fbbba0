// Package sqlstore persists the audit ledger: one row per sync run, one
// row per dispatched decision.
package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-spladmin/core"
)

// AuditStore is the SQL-backed core.AuditSink.
type AuditStore struct {
	db           *bun.DB
	runRepo      repository.Repository[*syncRunRecord]
	decisionRepo repository.Repository[*syncDecisionRecord]
}

func NewAuditStore(db *bun.DB) (*AuditStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	runRepo := repository.NewRepository[*syncRunRecord](db, syncRunHandlers())
	if validator, ok := runRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid sync run repository wiring: %w", err)
		}
	}
	decisionRepo := repository.NewRepository[*syncDecisionRecord](db, syncDecisionHandlers())
	if validator, ok := decisionRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid sync decision repository wiring: %w", err)
		}
	}
	return &AuditStore{
		db:           db,
		runRepo:      runRepo,
		decisionRepo: decisionRepo,
	}, nil
}

func (s *AuditStore) BeginRun(ctx context.Context, run core.SyncRun) error {
	if s == nil || s.runRepo == nil {
		return fmt.Errorf("sqlstore: audit store is not configured")
	}
	if strings.TrimSpace(run.ID) == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	record := newSyncRunRecord(run)
	if _, err := s.runRepo.Create(ctx, record); err != nil {
		return fmt.Errorf("sqlstore: begin sync run: %w", err)
	}
	return nil
}

func (s *AuditStore) RecordDecision(ctx context.Context, decision core.Decision) error {
	if s == nil || s.decisionRepo == nil {
		return fmt.Errorf("sqlstore: audit store is not configured")
	}
	record := newSyncDecisionRecord(decision)
	record.ID = uuid.NewString()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if _, err := s.decisionRepo.Create(ctx, record); err != nil {
		return fmt.Errorf("sqlstore: record sync decision: %w", err)
	}
	return nil
}

func (s *AuditStore) CompleteRun(ctx context.Context, runID string, status string, finishedAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: audit store is not configured")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return fmt.Errorf("sqlstore: run id is required")
	}
	result, err := s.db.NewUpdate().
		Model((*syncRunRecord)(nil)).
		Set("status = ?", status).
		Set("finished_at = ?", finishedAt).
		Where("id = ?", runID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("sqlstore: complete sync run: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("sqlstore: sync run %q not found", runID)
	}
	return nil
}

// Runs lists the most recent runs, newest first.
func (s *AuditStore) Runs(ctx context.Context, limit int) ([]core.SyncRun, error) {
	if s == nil || s.runRepo == nil {
		return nil, fmt.Errorf("sqlstore: audit store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	records, _, err := s.runRepo.List(ctx,
		repository.OrderBy("started_at DESC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list sync runs: %w", err)
	}
	runs := make([]core.SyncRun, 0, len(records))
	for _, record := range records {
		runs = append(runs, record.toDomain())
	}
	return runs, nil
}

// Decisions lists every decision of one run in dispatch order.
func (s *AuditStore) Decisions(ctx context.Context, runID string) ([]core.Decision, error) {
	if s == nil || s.decisionRepo == nil {
		return nil, fmt.Errorf("sqlstore: audit store is not configured")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, fmt.Errorf("sqlstore: run id is required")
	}
	records, _, err := s.decisionRepo.List(ctx,
		repository.SelectBy("run_id", "=", runID),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list sync decisions: %w", err)
	}
	decisions := make([]core.Decision, 0, len(records))
	for _, record := range records {
		decisions = append(decisions, record.toDomain())
	}
	return decisions, nil
}

var _ core.AuditSink = (*AuditStore)(nil)
