package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Milankumar13/automated-timetable-backend/internal/models"
	appErrors "github.com/Milankumar13/automated-timetable-backend/pkg/errors"
)

type runRepository interface {
	Create(ctx context.Context, run *models.TimetableRun) error
	FindByID(ctx context.Context, tenantID, id string) (*models.TimetableRun, error)
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.TimetableRun, error)
	Finalize(ctx context.Context, exec sqlx.ExtContext, run *models.TimetableRun) error
	InsertAssignments(ctx context.Context, exec sqlx.ExtContext, assignments []models.Assignment) error
	ListAssignments(ctx context.Context, tenantID, runID string) ([]models.Assignment, error)
}

// BeginRunRequest opens a new scheduling attempt.
type BeginRunRequest struct {
	TermID     string `json:"term_id" validate:"required,uuid"`
	SolverName string `json:"solver_name" validate:"required"`
}

// AssignmentItem is one proposed placement inside a commit batch.
type AssignmentItem struct {
	SectionID   string `json:"section_id" validate:"required,uuid"`
	ProfessorID string `json:"professor_id" validate:"required,uuid"`
	RoomID      string `json:"room_id" validate:"required,uuid"`
	SlotID      string `json:"slot_id" validate:"required,uuid"`
}

// CommitAssignmentsRequest is an all-or-nothing assignment batch for one run.
type CommitAssignmentsRequest struct {
	Items []AssignmentItem `json:"items" validate:"required,min=1,dive"`
}

// CommitAssignmentsResult reports an accepted batch.
type CommitAssignmentsResult struct {
	Assignments []models.Assignment `json:"assignments"`
	Warnings    []string            `json:"warnings,omitempty"`
}

// FinalizeRunRequest records a run's terminal outcome.
type FinalizeRunRequest struct {
	Status    models.RunStatus `json:"status" validate:"required,oneof=SUCCESS FAILURE"`
	RuntimeMS *int64           `json:"runtime_ms" validate:"omitempty,min=0"`
	SoftScore *float64         `json:"soft_score"`
}

// RunService owns timetable runs: opening an attempt, validating and
// committing its assignment batch, and finalizing it exactly once. Batch
// validation runs against a per-batch in-memory index, not the live plan
// table, because a run proposes a whole timetable rather than competing with
// the standing one.
type RunService struct {
	runs      runRepository
	rules     *RuleEngine
	tx        txProvider
	audit     auditRecorder
	metrics   engineObserver
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRunService wires run dependencies. audit and metrics may be nil.
func NewRunService(
	runs runRepository,
	rules *RuleEngine,
	tx txProvider,
	audit auditRecorder,
	metrics engineObserver,
	validate *validator.Validate,
	logger *zap.Logger,
) *RunService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunService{
		runs:      runs,
		rules:     rules,
		tx:        tx,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Begin opens a PENDING run for a term.
func (s *RunService) Begin(ctx context.Context, tenantID string, actor *string, req BeginRunRequest) (*models.TimetableRun, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid run payload")
	}
	run := &models.TimetableRun{
		TenantID:   tenantID,
		TermID:     req.TermID,
		Status:     models.RunStatusPending,
		SolverName: req.SolverName,
		StartedAt:  time.Now().UTC(),
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create run")
	}
	if s.audit != nil {
		s.audit.Record(tenantID, "timetable_runs", run.ID, models.AuditActionInsert, actor, nil, run)
	}
	s.logger.Info("run opened",
		zap.String("run_id", run.ID),
		zap.String("term_id", run.TermID),
		zap.String("solver", run.SolverName))
	return run, nil
}

// Get loads a single run within the tenant.
func (s *RunService) Get(ctx context.Context, tenantID, runID string) (*models.TimetableRun, error) {
	run, err := s.runs.FindByID(ctx, tenantID, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load run")
	}
	return run, nil
}

// ListAssignments returns a run's committed assignments.
func (s *RunService) ListAssignments(ctx context.Context, tenantID, runID string) ([]models.Assignment, error) {
	if _, err := s.Get(ctx, tenantID, runID); err != nil {
		return nil, err
	}
	assignments, err := s.runs.ListAssignments(ctx, tenantID, runID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

// CommitAssignments validates a batch against the run's in-memory index plus
// the rule engine and persists it all-or-nothing. The index is seeded with
// the run's already-committed assignments so uniqueness holds across repeated
// commits, and every item party to a contested key is reported, so the solver
// can fix the whole batch in one round trip.
func (s *RunService) CommitAssignments(ctx context.Context, tenantID string, actor *string, runID string, req CommitAssignmentsRequest) (*CommitAssignmentsResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	run, err := s.lockPendingRun(ctx, tx, tenantID, runID)
	if err != nil {
		return nil, err
	}

	// The run row is locked, so commits on one run are serialized and the
	// persisted set is stable for seeding.
	committed, err := s.runs.ListAssignments(ctx, tenantID, run.ID)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load committed assignments")
		return nil, err
	}
	index := NewBatchIndex()
	for _, a := range committed {
		index.ReserveSection(a.SectionID, "assignment:"+a.ID)
		index.Reserve(a.SlotID, a.RoomID, a.ProfessorID, "assignment:"+a.ID)
	}

	var items []models.BatchItemError
	var warnings []string
	assignments := make([]models.Assignment, 0, len(req.Items))

	flagged := make(map[int]bool)
	reject := func(idx int, sectionID, code, reason string) {
		if flagged[idx] {
			return
		}
		flagged[idx] = true
		items = append(items, models.BatchItemError{
			Index:     idx,
			SectionID: sectionID,
			Code:      code,
			Reason:    reason,
		})
	}

	for i, item := range req.Items {
		holder := fmt.Sprintf("item:%d", i)

		if prior, ok := index.ReserveSection(item.SectionID, holder); !ok {
			reject(i, item.SectionID, "SECTION_DUPLICATED", fmt.Sprintf("section already placed by %s", prior))
			// An intra-batch duplicate makes the earlier item part of the
			// contested pair; report it as well.
			if h, ok := batchItemIndex(prior); ok {
				reject(h, req.Items[h].SectionID, "SECTION_DUPLICATED", fmt.Sprintf("section contested by item %d", i))
			}
			continue
		}
		if conflict := index.Reserve(item.SlotID, item.RoomID, item.ProfessorID, holder); conflict != nil {
			reject(i, item.SectionID, string(conflict.Kind), conflict.Error())
			if h, ok := batchItemIndex(conflict.HolderID); ok {
				reject(h, req.Items[h].SectionID, string(conflict.Kind), fmt.Sprintf("key contested by item %d", i))
			}
			continue
		}

		verdict, evalErr := s.rules.Evaluate(ctx, tx, Candidate{
			TenantID:    tenantID,
			SectionID:   item.SectionID,
			ProfessorID: item.ProfessorID,
			RoomID:      item.RoomID,
			SlotID:      item.SlotID,
		})
		if evalErr != nil {
			err = appErrors.Wrap(evalErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "rule evaluation failed")
			return nil, err
		}
		if !verdict.Admissible() {
			reject(i, item.SectionID, appErrors.ErrRuleViolation.Code, verdict.Denial.Error())
			continue
		}
		for _, w := range verdict.Warnings {
			warnings = append(warnings, fmt.Sprintf("item %d: %s", i, w))
		}

		assignments = append(assignments, models.Assignment{
			TenantID:    tenantID,
			RunID:       run.ID,
			SectionID:   item.SectionID,
			ProfessorID: item.ProfessorID,
			RoomID:      item.RoomID,
			SlotID:      item.SlotID,
		})
	}

	if len(items) > 0 {
		sort.Slice(items, func(a, b int) bool { return items[a].Index < items[b].Index })
		batch := &models.BatchCommitError{RunID: run.ID, Items: items}
		err = appErrors.Wrap(batch, appErrors.ErrBatchRejected.Code, appErrors.ErrBatchRejected.Status, batch.Error())
		s.logger.Warn("assignment batch rejected",
			zap.String("run_id", run.ID),
			zap.Int("rejected", len(items)),
			zap.Int("total", len(req.Items)))
		return nil, err
	}

	if err = s.runs.InsertAssignments(ctx, tx, assignments); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist assignments")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit batch")
	}

	if s.audit != nil {
		s.audit.Record(tenantID, "assignments", run.ID, models.AuditActionInsert, actor, nil, map[string]any{
			"run_id": run.ID,
			"count":  len(assignments),
		})
	}
	s.logger.Info("assignment batch committed",
		zap.String("run_id", run.ID),
		zap.Int("count", len(assignments)))
	return &CommitAssignmentsResult{Assignments: assignments, Warnings: warnings}, nil
}

// Finalize records the terminal outcome exactly once. A second call reports
// the recorded status instead of overwriting it.
func (s *RunService) Finalize(ctx context.Context, tenantID string, actor *string, runID string, req FinalizeRunRequest) (*models.TimetableRun, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid finalize payload")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	run, err := s.runs.FindByIDForUpdate(ctx, tx, tenantID, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "run not found")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock run")
		return nil, err
	}
	if run.Status.Terminal() {
		finalized := &models.AlreadyFinalizedError{RunID: run.ID, Status: run.Status}
		err = appErrors.Wrap(finalized, appErrors.ErrAlreadyFinalized.Code, appErrors.ErrAlreadyFinalized.Status, finalized.Error())
		return nil, err
	}

	previous := *run
	now := time.Now().UTC()
	run.Status = req.Status
	run.FinishedAt = &now
	run.RuntimeMS = req.RuntimeMS
	run.SoftScore = req.SoftScore

	if err = s.runs.Finalize(ctx, tx, run); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalize run")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit finalize")
	}

	if s.metrics != nil {
		s.metrics.ObserveRunFinalization(string(run.Status))
	}
	if s.audit != nil {
		s.audit.Record(tenantID, "timetable_runs", run.ID, models.AuditActionUpdate, actor, &previous, run)
	}
	s.logger.Info("run finalized",
		zap.String("run_id", run.ID),
		zap.String("status", string(run.Status)))
	return run, nil
}

// batchItemIndex recovers the batch position from an "item:N" holder tag.
// Holders seeded from persisted assignments don't parse and report false.
func batchItemIndex(holder string) (int, bool) {
	raw, ok := strings.CutPrefix(holder, "item:")
	if !ok {
		return 0, false
	}
	idx, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return idx, true
}

func (s *RunService) lockPendingRun(ctx context.Context, tx *sqlx.Tx, tenantID, runID string) (*models.TimetableRun, error) {
	run, err := s.runs.FindByIDForUpdate(ctx, tx, tenantID, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock run")
	}
	if run.Status.Terminal() {
		finalized := &models.AlreadyFinalizedError{RunID: run.ID, Status: run.Status}
		return nil, appErrors.Wrap(finalized, appErrors.ErrAlreadyFinalized.Code, appErrors.ErrAlreadyFinalized.Status,
			strings.Join([]string{"cannot commit assignments:", finalized.Error()}, " "))
	}
	return run, nil
}
