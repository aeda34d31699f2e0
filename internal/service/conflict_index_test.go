package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Milankumar13/automated-timetable-backend/internal/models"
)

func TestConflictIndexReservePlanSlotRoomTaken(t *testing.T) {
	plans := &conflictPlanReaderStub{
		byRoom: map[string]*models.ClassPlan{
			testSlotID + "|" + testRoomID: {ID: "plan-held", Status: models.PlanStatusActive},
		},
	}
	index := NewConflictIndex(plans, &conflictSessionReaderStub{}, zap.NewNop())

	err := index.ReservePlanSlot(context.Background(), nil, testTenantID, testSlotID, testRoomID, testProfessorID, "")
	var conflict *models.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, models.ConflictRoomTaken, conflict.Kind)
	assert.Equal(t, models.HolderPlan, conflict.HolderType)
	assert.Equal(t, "plan-held", conflict.HolderID)
	assert.True(t, plans.lastForUpdate, "reservation must lock the holder row")
}

func TestConflictIndexReservePlanSlotProfessorTaken(t *testing.T) {
	plans := &conflictPlanReaderStub{
		byProfessor: map[string]*models.ClassPlan{
			testSlotID + "|" + testProfessorID: {ID: "plan-held", Status: models.PlanStatusActive},
		},
	}
	index := NewConflictIndex(plans, &conflictSessionReaderStub{}, zap.NewNop())

	err := index.ReservePlanSlot(context.Background(), nil, testTenantID, testSlotID, testRoomID, testProfessorID, "")
	var conflict *models.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, models.ConflictProfTaken, conflict.Kind)
	assert.Equal(t, testProfessorID, conflict.ProfessorID)
}

func TestConflictIndexReservePlanSlotIgnoresOwnRow(t *testing.T) {
	plans := &conflictPlanReaderStub{
		byRoom: map[string]*models.ClassPlan{
			testSlotID + "|" + testRoomID: {ID: "plan-self", Status: models.PlanStatusActive},
		},
		byProfessor: map[string]*models.ClassPlan{
			testSlotID + "|" + testProfessorID: {ID: "plan-self", Status: models.PlanStatusActive},
		},
	}
	index := NewConflictIndex(plans, &conflictSessionReaderStub{}, zap.NewNop())

	err := index.ReservePlanSlot(context.Background(), nil, testTenantID, testSlotID, testRoomID, testProfessorID, "plan-self")
	assert.NoError(t, err)
}

func TestConflictIndexPreviewPlanSlotDoesNotLock(t *testing.T) {
	plans := &conflictPlanReaderStub{
		byRoom: map[string]*models.ClassPlan{
			testSlotID + "|" + testRoomID: {ID: "plan-held", Status: models.PlanStatusActive},
		},
	}
	index := NewConflictIndex(plans, &conflictSessionReaderStub{}, zap.NewNop())

	err := index.PreviewPlanSlot(context.Background(), testTenantID, testSlotID, testRoomID, testProfessorID)
	var conflict *models.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.False(t, plans.lastForUpdate, "preview must not take row locks")
}

func TestConflictIndexReserveSessionSlot(t *testing.T) {
	date := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	sessions := &conflictSessionReaderStub{
		byRoom: map[string]*models.ClassSession{
			sessionKey(date, testSlotID, testRoomID): {ID: "session-held", Status: models.SessionStatusPlanned},
		},
	}
	index := NewConflictIndex(&conflictPlanReaderStub{}, sessions, zap.NewNop())

	err := index.ReserveSessionSlot(context.Background(), nil, testTenantID, date, testSlotID, testRoomID, testProfessorID, "")
	var conflict *models.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, models.ConflictRoomTaken, conflict.Kind)
	assert.Equal(t, models.HolderSession, conflict.HolderType)

	// The superseded session's keys do not count against its replacement.
	err = index.ReserveSessionSlot(context.Background(), nil, testTenantID, date, testSlotID, testRoomID, testProfessorID, "session-held")
	assert.NoError(t, err)
}

func TestConflictIndexQueryPlanOccupancy(t *testing.T) {
	plans := &conflictPlanReaderStub{
		active: []models.ClassPlan{
			{ID: "plan-1", RoomID: "room-a", ProfessorID: "prof-a", SlotID: testSlotID},
			{ID: "plan-2", RoomID: "room-b", ProfessorID: "prof-b", SlotID: testSlotID},
		},
	}
	index := NewConflictIndex(plans, &conflictSessionReaderStub{}, zap.NewNop())

	occupancy, err := index.QueryPlanOccupancy(context.Background(), testTenantID, testSlotID)
	require.NoError(t, err)
	assert.Equal(t, testSlotID, occupancy.SlotID)
	require.Len(t, occupancy.Rooms, 2)
	require.Len(t, occupancy.Professors, 2)
	assert.Equal(t, "room-a", occupancy.Rooms[0].ID)
	assert.Equal(t, "plan-1", occupancy.Rooms[0].HolderID)
	assert.Equal(t, models.HolderPlan, occupancy.Professors[1].HolderType)
}

func TestBatchIndexReserveClaimsBothKeysOrNeither(t *testing.T) {
	index := NewBatchIndex()

	require.Nil(t, index.Reserve(testSlotID, "room-a", "prof-a", "item:0"))

	conflict := index.Reserve(testSlotID, "room-a", "prof-b", "item:1")
	require.NotNil(t, conflict)
	assert.Equal(t, models.ConflictRoomTaken, conflict.Kind)
	assert.Equal(t, "item:0", conflict.HolderID)

	conflict = index.Reserve(testSlotID, "room-b", "prof-a", "item:2")
	require.NotNil(t, conflict)
	assert.Equal(t, models.ConflictProfTaken, conflict.Kind)

	// item:2's failed attempt must not have claimed room-b.
	assert.Nil(t, index.Reserve(testSlotID, "room-b", "prof-c", "item:3"))
}

func TestBatchIndexReleaseIsIdempotent(t *testing.T) {
	index := NewBatchIndex()
	require.Nil(t, index.Reserve(testSlotID, "room-a", "prof-a", "item:0"))

	index.Release(testSlotID, "room-a", "prof-a")
	index.Release(testSlotID, "room-a", "prof-a")

	assert.Nil(t, index.Reserve(testSlotID, "room-a", "prof-a", "item:1"))
}

func TestBatchIndexReserveSection(t *testing.T) {
	index := NewBatchIndex()

	holder, ok := index.ReserveSection("section-a", "item:0")
	require.True(t, ok)
	assert.Equal(t, "item:0", holder)

	holder, ok = index.ReserveSection("section-a", "item:1")
	assert.False(t, ok)
	assert.Equal(t, "item:0", holder)
}

func TestBatchIndexQuery(t *testing.T) {
	index := NewBatchIndex()
	require.Nil(t, index.Reserve(testSlotID, "room-a", "prof-a", "item:0"))
	require.Nil(t, index.Reserve("other-slot", "room-b", "prof-b", "item:1"))

	rooms, professors := index.Query(testSlotID)
	assert.Equal(t, []string{"room-a"}, rooms)
	assert.Equal(t, []string{"prof-a"}, professors)
}

// --- Fixtures ---

func sessionKey(date time.Time, slotID, resID string) string {
	return date.Format("2006-01-02") + "|" + slotID + "|" + resID
}

type conflictPlanReaderStub struct {
	byRoom        map[string]*models.ClassPlan
	byProfessor   map[string]*models.ClassPlan
	active        []models.ClassPlan
	lastForUpdate bool
}

func (s *conflictPlanReaderStub) FindActiveBySlotRoom(ctx context.Context, exec sqlx.ExtContext, tenantID, slotID, roomID string, forUpdate bool) (*models.ClassPlan, error) {
	s.lastForUpdate = forUpdate
	if plan, ok := s.byRoom[slotID+"|"+roomID]; ok {
		return plan, nil
	}
	return nil, sql.ErrNoRows
}

func (s *conflictPlanReaderStub) FindActiveBySlotProfessor(ctx context.Context, exec sqlx.ExtContext, tenantID, slotID, professorID string, forUpdate bool) (*models.ClassPlan, error) {
	s.lastForUpdate = forUpdate
	if plan, ok := s.byProfessor[slotID+"|"+professorID]; ok {
		return plan, nil
	}
	return nil, sql.ErrNoRows
}

func (s *conflictPlanReaderStub) ListActiveBySlot(ctx context.Context, tenantID, slotID string) ([]models.ClassPlan, error) {
	return s.active, nil
}

type conflictSessionReaderStub struct {
	byRoom      map[string]*models.ClassSession
	byProfessor map[string]*models.ClassSession
}

func (s *conflictSessionReaderStub) FindLiveByDateSlotRoom(ctx context.Context, exec sqlx.ExtContext, tenantID string, date time.Time, slotID, roomID string, forUpdate bool) (*models.ClassSession, error) {
	if session, ok := s.byRoom[sessionKey(date, slotID, roomID)]; ok {
		return session, nil
	}
	return nil, sql.ErrNoRows
}

func (s *conflictSessionReaderStub) FindLiveByDateSlotProfessor(ctx context.Context, exec sqlx.ExtContext, tenantID string, date time.Time, slotID, professorID string, forUpdate bool) (*models.ClassSession, error) {
	if session, ok := s.byProfessor[sessionKey(date, slotID, professorID)]; ok {
		return session, nil
	}
	return nil, sql.ErrNoRows
}
