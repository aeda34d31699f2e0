package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Milankumar13/automated-timetable-backend/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func planRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "tenant_id", "department", "section_id", "professor_id", "room_id", "slot_id", "status", "note", "created_at", "updated_at"})
}

func TestPlanRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPlanRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO class_plans")).
		WithArgs(sqlmock.AnyArg(), "tenant-1", "Computer Science", "section-1", "prof-1", "room-1", "slot-1", string(models.PlanStatusActive), nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	plan := &models.ClassPlan{
		TenantID:    "tenant-1",
		Department:  "Computer Science",
		SectionID:   "section-1",
		ProfessorID: "prof-1",
		RoomID:      "room-1",
		SlotID:      "slot-1",
		Status:      models.PlanStatusActive,
	}
	require.NoError(t, repo.Create(context.Background(), nil, plan))
	assert.NotEmpty(t, plan.ID)
	assert.False(t, plan.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRepositoryFindByIDForUpdateLocksRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPlanRepository(db)

	rows := planRows().
		AddRow("plan-1", "tenant-1", "CS", "section-1", "prof-1", "room-1", "slot-1", string(models.PlanStatusActive), nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM class_plans WHERE tenant_id = $1 AND id = $2 FOR UPDATE")).
		WithArgs("tenant-1", "plan-1").
		WillReturnRows(rows)

	plan, err := repo.FindByIDForUpdate(context.Background(), nil, "tenant-1", "plan-1")
	require.NoError(t, err)
	assert.Equal(t, "plan-1", plan.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRepositoryFindActiveBySlotRoomFreeKey(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPlanRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("slot_id = $2 AND room_id = $3 AND status = 'ACTIVE' FOR UPDATE")).
		WithArgs("tenant-1", "slot-1", "room-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindActiveBySlotRoom(context.Background(), nil, "tenant-1", "slot-1", "room-1", true)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRepositoryFindActiveBySlotProfessorWithoutLock(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPlanRepository(db)

	rows := planRows().
		AddRow("plan-1", "tenant-1", "CS", "section-1", "prof-1", "room-1", "slot-1", string(models.PlanStatusActive), nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("slot_id = $2 AND professor_id = $3 AND status = 'ACTIVE'")).
		WithArgs("tenant-1", "slot-1", "prof-1").
		WillReturnRows(rows)

	plan, err := repo.FindActiveBySlotProfessor(context.Background(), nil, "tenant-1", "slot-1", "prof-1", false)
	require.NoError(t, err)
	assert.Equal(t, "plan-1", plan.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPlanRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE class_plans SET status = $1, updated_at = $2 WHERE tenant_id = $3 AND id = $4")).
		WithArgs(string(models.PlanStatusPaused), sqlmock.AnyArg(), "tenant-1", "plan-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), nil, "tenant-1", "plan-1", models.PlanStatusPaused))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRepositoryListAppliesFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPlanRepository(db)

	rows := planRows().
		AddRow("plan-1", "tenant-1", "CS", "section-1", "prof-1", "room-1", "slot-1", string(models.PlanStatusActive), nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM class_plans WHERE tenant_id = $1 AND professor_id = $2 AND status = $3 ORDER BY created_at ASC LIMIT 20 OFFSET 0")).
		WithArgs("tenant-1", "prof-1", string(models.PlanStatusActive)).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM class_plans WHERE tenant_id = $1 AND professor_id = $2 AND status = $3")).
		WithArgs("tenant-1", "prof-1", string(models.PlanStatusActive)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	plans, total, err := repo.List(context.Background(), "tenant-1", models.PlanFilter{
		ProfessorID: "prof-1",
		Status:      models.PlanStatusActive,
	})
	require.NoError(t, err)
	assert.Len(t, plans, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRepositoryCountActiveBySection(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPlanRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM class_plans WHERE tenant_id = $1 AND section_id = $2 AND status = 'ACTIVE'")).
		WithArgs("tenant-1", "section-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountActiveBySection(context.Background(), nil, "tenant-1", "section-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
