package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Milankumar13/automated-timetable-backend/internal/models"
)

type conflictPlanReader interface {
	FindActiveBySlotRoom(ctx context.Context, exec sqlx.ExtContext, tenantID, slotID, roomID string, forUpdate bool) (*models.ClassPlan, error)
	FindActiveBySlotProfessor(ctx context.Context, exec sqlx.ExtContext, tenantID, slotID, professorID string, forUpdate bool) (*models.ClassPlan, error)
	ListActiveBySlot(ctx context.Context, tenantID, slotID string) ([]models.ClassPlan, error)
}

type conflictSessionReader interface {
	FindLiveByDateSlotRoom(ctx context.Context, exec sqlx.ExtContext, tenantID string, date time.Time, slotID, roomID string, forUpdate bool) (*models.ClassSession, error)
	FindLiveByDateSlotProfessor(ctx context.Context, exec sqlx.ExtContext, tenantID string, date time.Time, slotID, professorID string, forUpdate bool) (*models.ClassSession, error)
}

// ConflictIndex is the single authority for "is this (room, slot) or
// (professor, slot) pair taken". Reservation checks run with FOR UPDATE on
// the caller's transaction, so concurrent attempts on the same key serialize
// at the row level: exactly one succeeds, the rest observe the holder.
// Claims are derived from row status, so releasing is a status transition and
// is idempotent by construction.
type ConflictIndex struct {
	plans    conflictPlanReader
	sessions conflictSessionReader
	logger   *zap.Logger
}

// NewConflictIndex wires the index over plan and session lookups.
func NewConflictIndex(plans conflictPlanReader, sessions conflictSessionReader, logger *zap.Logger) *ConflictIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictIndex{plans: plans, sessions: sessions, logger: logger}
}

// ReservePlanSlot checks both uniqueness keys for the live ACTIVE plan set
// and reports the first collision. Room is checked before professor so the
// reported kind is deterministic. ignorePlanID skips the caller's own row on
// resume.
func (ci *ConflictIndex) ReservePlanSlot(ctx context.Context, exec sqlx.ExtContext, tenantID, slotID, roomID, professorID, ignorePlanID string) error {
	return ci.checkPlanSlot(ctx, exec, tenantID, slotID, roomID, professorID, ignorePlanID, true)
}

// PreviewPlanSlot runs the same checks without row locks, for dry-run
// admissibility previews. The result may be stale by one transaction.
func (ci *ConflictIndex) PreviewPlanSlot(ctx context.Context, tenantID, slotID, roomID, professorID string) error {
	return ci.checkPlanSlot(ctx, nil, tenantID, slotID, roomID, professorID, "", false)
}

func (ci *ConflictIndex) checkPlanSlot(ctx context.Context, exec sqlx.ExtContext, tenantID, slotID, roomID, professorID, ignorePlanID string, lock bool) error {
	holder, err := ci.plans.FindActiveBySlotRoom(ctx, exec, tenantID, slotID, roomID, lock)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if holder != nil && holder.ID != ignorePlanID {
		return &models.ConflictError{
			Kind:       models.ConflictRoomTaken,
			HolderType: models.HolderPlan,
			HolderID:   holder.ID,
			SlotID:     slotID,
			RoomID:     roomID,
		}
	}

	holder, err = ci.plans.FindActiveBySlotProfessor(ctx, exec, tenantID, slotID, professorID, lock)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if holder != nil && holder.ID != ignorePlanID {
		return &models.ConflictError{
			Kind:        models.ConflictProfTaken,
			HolderType:  models.HolderPlan,
			HolderID:    holder.ID,
			SlotID:      slotID,
			ProfessorID: professorID,
		}
	}

	return nil
}

// ReserveSessionSlot checks the date-scoped keys against non-cancelled
// sessions. ignoreSessionID skips the session being superseded during a
// reschedule.
func (ci *ConflictIndex) ReserveSessionSlot(ctx context.Context, exec sqlx.ExtContext, tenantID string, date time.Time, slotID, roomID, professorID, ignoreSessionID string) error {
	holder, err := ci.sessions.FindLiveByDateSlotRoom(ctx, exec, tenantID, date, slotID, roomID, true)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if holder != nil && holder.ID != ignoreSessionID {
		return &models.ConflictError{
			Kind:       models.ConflictRoomTaken,
			HolderType: models.HolderSession,
			HolderID:   holder.ID,
			SlotID:     slotID,
			RoomID:     roomID,
		}
	}

	holder, err = ci.sessions.FindLiveByDateSlotProfessor(ctx, exec, tenantID, date, slotID, professorID, true)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if holder != nil && holder.ID != ignoreSessionID {
		return &models.ConflictError{
			Kind:        models.ConflictProfTaken,
			HolderType:  models.HolderSession,
			HolderID:    holder.ID,
			SlotID:      slotID,
			ProfessorID: professorID,
		}
	}

	return nil
}

// QueryPlanOccupancy returns the occupied rooms and professors of a slot in
// the live ACTIVE plan set. Read-only; may run unsynchronized.
func (ci *ConflictIndex) QueryPlanOccupancy(ctx context.Context, tenantID, slotID string) (*models.SlotOccupancy, error) {
	plans, err := ci.plans.ListActiveBySlot(ctx, tenantID, slotID)
	if err != nil {
		return nil, err
	}

	occupancy := &models.SlotOccupancy{SlotID: slotID, Rooms: []models.Occupant{}, Professors: []models.Occupant{}}
	for _, plan := range plans {
		occupancy.Rooms = append(occupancy.Rooms, models.Occupant{ID: plan.RoomID, HolderType: models.HolderPlan, HolderID: plan.ID})
		occupancy.Professors = append(occupancy.Professors, models.Occupant{ID: plan.ProfessorID, HolderType: models.HolderPlan, HolderID: plan.ID})
	}
	return occupancy, nil
}

type slotKey struct {
	slotID string
	resID  string
}

// BatchIndex is the in-memory flavour of the conflict index, scoped to a
// single run's candidate assignment batch. Reserve is atomic under the lock:
// it claims both keys or neither.
type BatchIndex struct {
	mu       sync.Mutex
	rooms    map[slotKey]string // (slot, room) -> holder
	profs    map[slotKey]string // (slot, professor) -> holder
	sections map[string]string  // section -> holder
}

// NewBatchIndex builds an empty batch index.
func NewBatchIndex() *BatchIndex {
	return &BatchIndex{
		rooms:    make(map[slotKey]string),
		profs:    make(map[slotKey]string),
		sections: make(map[string]string),
	}
}

// Reserve claims (slot, room) and (slot, professor) for holderID, reporting
// which key collided. Neither key is claimed on failure.
func (b *BatchIndex) Reserve(slotID, roomID, professorID, holderID string) *models.ConflictError {
	b.mu.Lock()
	defer b.mu.Unlock()

	roomKey := slotKey{slotID: slotID, resID: roomID}
	profKey := slotKey{slotID: slotID, resID: professorID}

	if holder, taken := b.rooms[roomKey]; taken {
		return &models.ConflictError{
			Kind:       models.ConflictRoomTaken,
			HolderType: models.HolderAssignment,
			HolderID:   holder,
			SlotID:     slotID,
			RoomID:     roomID,
		}
	}
	if holder, taken := b.profs[profKey]; taken {
		return &models.ConflictError{
			Kind:        models.ConflictProfTaken,
			HolderType:  models.HolderAssignment,
			HolderID:    holder,
			SlotID:      slotID,
			ProfessorID: professorID,
		}
	}

	b.rooms[roomKey] = holderID
	b.profs[profKey] = holderID
	return nil
}

// ReserveSection claims the one-assignment-per-section key.
func (b *BatchIndex) ReserveSection(sectionID, holderID string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if holder, taken := b.sections[sectionID]; taken {
		return holder, false
	}
	b.sections[sectionID] = holderID
	return holderID, true
}

// Release frees both keys. Releasing an unreserved pair is a no-op.
func (b *BatchIndex) Release(slotID, roomID, professorID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.rooms, slotKey{slotID: slotID, resID: roomID})
	delete(b.profs, slotKey{slotID: slotID, resID: professorID})
}

// Query returns occupied rooms and professors for a slot within the batch.
func (b *BatchIndex) Query(slotID string) (rooms []string, professors []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key := range b.rooms {
		if key.slotID == slotID {
			rooms = append(rooms, key.resID)
		}
	}
	for key := range b.profs {
		if key.slotID == slotID {
			professors = append(professors, key.resID)
		}
	}
	return rooms, professors
}
