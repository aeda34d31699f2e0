package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Milankumar13/automated-timetable-backend/internal/models"
)

func TestRunRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRunRepository(db)

	started := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_runs")).
		WithArgs(sqlmock.AnyArg(), "tenant-1", "term-1", string(models.RunStatusPending), "greedy-v2", started, nil, nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	run := &models.TimetableRun{
		TenantID:   "tenant-1",
		TermID:     "term-1",
		Status:     models.RunStatusPending,
		SolverName: "greedy-v2",
		StartedAt:  started,
	}
	require.NoError(t, repo.Create(context.Background(), run))
	assert.NotEmpty(t, run.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryFindByIDForUpdateLocksRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRunRepository(db)

	rows := sqlmock.NewRows([]string{"id", "tenant_id", "term_id", "status", "solver_name", "started_at", "finished_at", "runtime_ms", "soft_score", "created_at", "updated_at"}).
		AddRow("run-1", "tenant-1", "term-1", string(models.RunStatusPending), "greedy-v2", time.Now(), nil, nil, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_runs WHERE tenant_id = $1 AND id = $2 FOR UPDATE")).
		WithArgs("tenant-1", "run-1").
		WillReturnRows(rows)

	run, err := repo.FindByIDForUpdate(context.Background(), nil, "tenant-1", "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusPending, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryFinalizeGuardsPendingStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRunRepository(db)

	finished := time.Date(2026, 1, 5, 10, 30, 0, 0, time.UTC)
	runtime := int64(5400)
	score := 0.87
	run := &models.TimetableRun{
		ID:         "run-1",
		TenantID:   "tenant-1",
		TermID:     "term-1",
		Status:     models.RunStatusSuccess,
		FinishedAt: &finished,
		RuntimeMS:  &runtime,
		SoftScore:  &score,
	}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE timetable_runs SET status =")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Finalize(context.Background(), nil, run))

	// A second attempt hits the status = 'PENDING' guard and touches no rows.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE timetable_runs SET status =")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Finalize(context.Background(), nil, run)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no pending row")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryInsertAssignmentsWritesEveryRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRunRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO assignments")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO assignments")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	assignments := []models.Assignment{
		{TenantID: "tenant-1", RunID: "run-1", SectionID: "section-1", ProfessorID: "prof-1", RoomID: "room-1", SlotID: "slot-1"},
		{TenantID: "tenant-1", RunID: "run-1", SectionID: "section-2", ProfessorID: "prof-2", RoomID: "room-2", SlotID: "slot-1"},
	}
	require.NoError(t, repo.InsertAssignments(context.Background(), nil, assignments))
	assert.NotEmpty(t, assignments[0].ID)
	assert.NotEmpty(t, assignments[1].ID)
	assert.NotEqual(t, assignments[0].ID, assignments[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryListAssignmentsOrdersByCreation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRunRepository(db)

	rows := sqlmock.NewRows([]string{"id", "tenant_id", "run_id", "section_id", "professor_id", "room_id", "slot_id", "created_at"}).
		AddRow("a-1", "tenant-1", "run-1", "section-1", "prof-1", "room-1", "slot-1", time.Now()).
		AddRow("a-2", "tenant-1", "run-1", "section-2", "prof-2", "room-2", "slot-1", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM assignments WHERE tenant_id = $1 AND run_id = $2 ORDER BY created_at ASC, id ASC")).
		WithArgs("tenant-1", "run-1").
		WillReturnRows(rows)

	assignments, err := repo.ListAssignments(context.Background(), "tenant-1", "run-1")
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	assert.Equal(t, "a-1", assignments[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
