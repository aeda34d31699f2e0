package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Milankumar13/automated-timetable-backend/internal/models"
	appErrors "github.com/Milankumar13/automated-timetable-backend/pkg/errors"
)

func TestRunServiceBeginOpensPendingRun(t *testing.T) {
	svc, _, repo := newRunFixture(t, runFixtureConfig{tx: noopTxProvider{}})

	run, err := svc.Begin(context.Background(), testTenantID, nil, BeginRunRequest{
		TermID:     testTermID,
		SolverName: "annealing-v2",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusPending, run.Status)
	assert.False(t, run.StartedAt.IsZero())
	assert.Nil(t, run.FinishedAt)
	assert.Len(t, repo.runs, 1)
}

func TestRunServiceCommitAssignmentsSuccess(t *testing.T) {
	svc, mock, repo := newRunFixture(t, runFixtureConfig{
		runs: []*models.TimetableRun{pendingRun("run-1")},
	})

	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := svc.CommitAssignments(context.Background(), testTenantID, nil, "run-1", CommitAssignmentsRequest{
		Items: []AssignmentItem{
			{SectionID: testSectionID, ProfessorID: testProfessorID, RoomID: testRoomID, SlotID: testSlotID},
			{
				SectionID:   "66666666-6666-6666-6666-666666666666",
				ProfessorID: "77777777-7777-7777-7777-777777777777",
				RoomID:      "88888888-8888-8888-8888-888888888888",
				SlotID:      testSlotID,
			},
		},
	})
	require.NoError(t, err)
	assert.Len(t, result.Assignments, 2)
	assert.Equal(t, "run-1", result.Assignments[0].RunID)
	assert.Len(t, repo.assignments, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunServiceCommitAssignmentsAggregatesAllErrors(t *testing.T) {
	svc, mock, repo := newRunFixture(t, runFixtureConfig{
		runs: []*models.TimetableRun{pendingRun("run-1")},
	})

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.CommitAssignments(context.Background(), testTenantID, nil, "run-1", CommitAssignmentsRequest{
		Items: []AssignmentItem{
			{SectionID: testSectionID, ProfessorID: testProfessorID, RoomID: testRoomID, SlotID: testSlotID},
			// Same slot and room as item 0: room collision.
			{
				SectionID:   "66666666-6666-6666-6666-666666666666",
				ProfessorID: "77777777-7777-7777-7777-777777777777",
				RoomID:      testRoomID,
				SlotID:      testSlotID,
			},
			// Same section as item 0: duplicate placement.
			{
				SectionID:   testSectionID,
				ProfessorID: "77777777-7777-7777-7777-777777777777",
				RoomID:      "88888888-8888-8888-8888-888888888888",
				SlotID:      testSlotID,
			},
		},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrBatchRejected.Code, appErrors.FromError(err).Code)

	// Item 0 is party to both contested keys, so all three items appear.
	var batch *models.BatchCommitError
	require.True(t, errors.As(err, &batch))
	require.Len(t, batch.Items, 3)
	assert.Equal(t, 0, batch.Items[0].Index)
	assert.Equal(t, string(models.ConflictRoomTaken), batch.Items[0].Code)
	assert.Equal(t, 1, batch.Items[1].Index)
	assert.Equal(t, string(models.ConflictRoomTaken), batch.Items[1].Code)
	assert.Equal(t, 2, batch.Items[2].Index)
	assert.Equal(t, "SECTION_DUPLICATED", batch.Items[2].Code)

	assert.Empty(t, repo.assignments, "a rejected batch persists nothing")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunServiceCommitReportsBothPartiesOfContestedKey(t *testing.T) {
	svc, mock, _ := newRunFixture(t, runFixtureConfig{
		runs: []*models.TimetableRun{pendingRun("run-1")},
	})

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.CommitAssignments(context.Background(), testTenantID, nil, "run-1", CommitAssignmentsRequest{
		Items: []AssignmentItem{
			{SectionID: testSectionID, ProfessorID: testProfessorID, RoomID: testRoomID, SlotID: testSlotID},
			// Different section and professor, same (room, slot) as item 0.
			{
				SectionID:   "66666666-6666-6666-6666-666666666666",
				ProfessorID: "77777777-7777-7777-7777-777777777777",
				RoomID:      testRoomID,
				SlotID:      testSlotID,
			},
		},
	})
	require.Error(t, err)

	var batch *models.BatchCommitError
	require.True(t, errors.As(err, &batch))
	require.Len(t, batch.Items, 2)
	assert.Equal(t, 0, batch.Items[0].Index)
	assert.Equal(t, string(models.ConflictRoomTaken), batch.Items[0].Code)
	assert.Equal(t, 1, batch.Items[1].Index)
	assert.Equal(t, string(models.ConflictRoomTaken), batch.Items[1].Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunServiceSecondCommitSeesCommittedAssignments(t *testing.T) {
	svc, mock, repo := newRunFixture(t, runFixtureConfig{
		runs: []*models.TimetableRun{pendingRun("run-1")},
	})

	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err := svc.CommitAssignments(context.Background(), testTenantID, nil, "run-1", CommitAssignmentsRequest{
		Items: []AssignmentItem{
			{SectionID: testSectionID, ProfessorID: testProfessorID, RoomID: testRoomID, SlotID: testSlotID},
		},
	})
	require.NoError(t, err)
	require.Len(t, repo.assignments, 1)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = svc.CommitAssignments(context.Background(), testTenantID, nil, "run-1", CommitAssignmentsRequest{
		Items: []AssignmentItem{
			// Same section as the committed assignment, fresh keys.
			{
				SectionID:   testSectionID,
				ProfessorID: "77777777-7777-7777-7777-777777777777",
				RoomID:      "88888888-8888-8888-8888-888888888888",
				SlotID:      testSlotID,
			},
			// Fresh section, same (room, slot) as the committed assignment.
			{
				SectionID:   "66666666-6666-6666-6666-666666666666",
				ProfessorID: "77777777-7777-7777-7777-777777777777",
				RoomID:      testRoomID,
				SlotID:      testSlotID,
			},
		},
	})
	require.Error(t, err)

	var batch *models.BatchCommitError
	require.True(t, errors.As(err, &batch))
	require.Len(t, batch.Items, 2)
	assert.Equal(t, 0, batch.Items[0].Index)
	assert.Equal(t, "SECTION_DUPLICATED", batch.Items[0].Code)
	assert.Equal(t, 1, batch.Items[1].Index)
	assert.Equal(t, string(models.ConflictRoomTaken), batch.Items[1].Code)

	assert.Len(t, repo.assignments, 1, "the committed set stays intact")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunServiceCommitAssignmentsRuleViolation(t *testing.T) {
	svc, mock, _ := newRunFixture(t, runFixtureConfig{
		runs:   []*models.TimetableRun{pendingRun("run-1")},
		blocks: []models.BlockedSlot{{ID: "block-1", SlotID: testSlotID}},
	})

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.CommitAssignments(context.Background(), testTenantID, nil, "run-1", CommitAssignmentsRequest{
		Items: []AssignmentItem{
			{SectionID: testSectionID, ProfessorID: testProfessorID, RoomID: testRoomID, SlotID: testSlotID},
		},
	})
	require.Error(t, err)

	var batch *models.BatchCommitError
	require.True(t, errors.As(err, &batch))
	require.Len(t, batch.Items, 1)
	assert.Equal(t, appErrors.ErrRuleViolation.Code, batch.Items[0].Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunServiceCommitOnFinalizedRunRejected(t *testing.T) {
	finalized := pendingRun("run-1")
	finalized.Status = models.RunStatusSuccess
	svc, mock, _ := newRunFixture(t, runFixtureConfig{
		runs: []*models.TimetableRun{finalized},
	})

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.CommitAssignments(context.Background(), testTenantID, nil, "run-1", CommitAssignmentsRequest{
		Items: []AssignmentItem{
			{SectionID: testSectionID, ProfessorID: testProfessorID, RoomID: testRoomID, SlotID: testSlotID},
		},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyFinalized.Code, appErrors.FromError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunServiceFinalizeExactlyOnce(t *testing.T) {
	svc, mock, repo := newRunFixture(t, runFixtureConfig{
		runs: []*models.TimetableRun{pendingRun("run-1")},
	})

	runtime := int64(5400)
	score := 0.87

	mock.ExpectBegin()
	mock.ExpectCommit()
	run, err := svc.Finalize(context.Background(), testTenantID, nil, "run-1", FinalizeRunRequest{
		Status:    models.RunStatusSuccess,
		RuntimeMS: &runtime,
		SoftScore: &score,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSuccess, run.Status)
	require.NotNil(t, run.FinishedAt)
	assert.Equal(t, models.RunStatusSuccess, repo.runs["run-1"].Status)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = svc.Finalize(context.Background(), testTenantID, nil, "run-1", FinalizeRunRequest{
		Status: models.RunStatusFailure,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyFinalized.Code, appErrors.FromError(err).Code)

	var finalized *models.AlreadyFinalizedError
	require.True(t, errors.As(err, &finalized))
	assert.Equal(t, models.RunStatusSuccess, finalized.Status)
	assert.Equal(t, models.RunStatusSuccess, repo.runs["run-1"].Status, "the recorded outcome must not be overwritten")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunServiceFinalizeRejectsInvalidStatus(t *testing.T) {
	svc, _, _ := newRunFixture(t, runFixtureConfig{
		runs: []*models.TimetableRun{pendingRun("run-1")},
	})

	_, err := svc.Finalize(context.Background(), testTenantID, nil, "run-1", FinalizeRunRequest{
		Status: models.RunStatus("MAYBE"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRunServiceListAssignmentsUnknownRun(t *testing.T) {
	svc, _, _ := newRunFixture(t, runFixtureConfig{tx: noopTxProvider{}})

	_, err := svc.ListAssignments(context.Background(), testTenantID, "no-such-run")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

// --- Fixtures ---

func pendingRun(id string) *models.TimetableRun {
	return &models.TimetableRun{
		ID:         id,
		TenantID:   testTenantID,
		TermID:     testTermID,
		Status:     models.RunStatusPending,
		SolverName: "annealing-v2",
	}
}

type runFixtureConfig struct {
	runs   []*models.TimetableRun
	rules  []models.AdminRule
	blocks []models.BlockedSlot
	tx     txProvider
}

func newRunFixture(t *testing.T, cfg runFixtureConfig) (*RunService, sqlmock.Sqlmock, *runRepoStub) {
	repo := newRunRepoStub(cfg.runs...)
	engine := newEngineFixture(engineFixtureConfig{rules: cfg.rules, blocks: cfg.blocks})

	var mock sqlmock.Sqlmock
	tx := cfg.tx
	if tx == nil {
		tx, mock = newTxProviderMock(t)
	}

	svc := NewRunService(repo, engine, tx, nil, nil, testValidator(), zap.NewNop())
	return svc, mock, repo
}

type runRepoStub struct {
	runs        map[string]*models.TimetableRun
	assignments []models.Assignment
	seq         int
}

func newRunRepoStub(seed ...*models.TimetableRun) *runRepoStub {
	stub := &runRepoStub{runs: make(map[string]*models.TimetableRun)}
	for _, run := range seed {
		copied := *run
		stub.runs[run.ID] = &copied
	}
	return stub
}

func (r *runRepoStub) Create(ctx context.Context, run *models.TimetableRun) error {
	if run.ID == "" {
		r.seq++
		run.ID = fmt.Sprintf("run-new-%d", r.seq)
	}
	copied := *run
	r.runs[run.ID] = &copied
	return nil
}

func (r *runRepoStub) FindByID(ctx context.Context, tenantID, id string) (*models.TimetableRun, error) {
	if run, ok := r.runs[id]; ok && run.TenantID == tenantID {
		copied := *run
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (r *runRepoStub) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.TimetableRun, error) {
	return r.FindByID(ctx, tenantID, id)
}

func (r *runRepoStub) Finalize(ctx context.Context, exec sqlx.ExtContext, run *models.TimetableRun) error {
	stored, ok := r.runs[run.ID]
	if !ok || stored.Status.Terminal() {
		return sql.ErrNoRows
	}
	copied := *run
	r.runs[run.ID] = &copied
	return nil
}

func (r *runRepoStub) InsertAssignments(ctx context.Context, exec sqlx.ExtContext, assignments []models.Assignment) error {
	for i := range assignments {
		if assignments[i].ID == "" {
			r.seq++
			assignments[i].ID = fmt.Sprintf("assignment-%d", r.seq)
		}
	}
	r.assignments = append(r.assignments, assignments...)
	return nil
}

func (r *runRepoStub) ListAssignments(ctx context.Context, tenantID, runID string) ([]models.Assignment, error) {
	var out []models.Assignment
	for _, assignment := range r.assignments {
		if assignment.TenantID == tenantID && assignment.RunID == runID {
			out = append(out, assignment)
		}
	}
	return out, nil
}
