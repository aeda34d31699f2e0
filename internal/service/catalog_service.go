package service

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Milankumar13/automated-timetable-backend/internal/models"
	appErrors "github.com/Milankumar13/automated-timetable-backend/pkg/errors"
)

type slotRepositoryFull interface {
	Create(ctx context.Context, slot *models.Slot) error
	ListByTerm(ctx context.Context, tenantID, termID string) ([]models.Slot, error)
}

type roomRepositoryFull interface {
	Create(ctx context.Context, room *models.Room) error
	List(ctx context.Context, tenantID string) ([]models.Room, error)
}

type professorRepositoryFull interface {
	Create(ctx context.Context, prof *models.Professor) error
	List(ctx context.Context, tenantID string) ([]models.Professor, error)
}

type sectionRepositoryFull interface {
	Create(ctx context.Context, section *models.Section) error
	ListByTerm(ctx context.Context, tenantID, termID string) ([]models.Section, error)
}

// CreateSlotRequest describes a weekly time window.
type CreateSlotRequest struct {
	TermID     string  `json:"term_id" validate:"required,uuid"`
	Day        int     `json:"day" validate:"required,min=1,max=7"`
	StartTime  string  `json:"start_time" validate:"required,datetime=15:04"`
	EndTime    string  `json:"end_time" validate:"required,datetime=15:04"`
	IsOfficial bool    `json:"is_official"`
	Label      *string `json:"label"`
}

// CreateRoomRequest describes a schedulable room.
type CreateRoomRequest struct {
	Department string          `json:"department" validate:"required"`
	Code       string          `json:"code" validate:"required"`
	Capacity   int             `json:"capacity" validate:"required,min=1"`
	Features   json.RawMessage `json:"features"`
}

// CreateProfessorRequest describes a professor with optional soft-load knobs.
type CreateProfessorRequest struct {
	DisplayName      string  `json:"display_name" validate:"required"`
	Email            *string `json:"email" validate:"omitempty,email"`
	MaxHoursPerWeek  *int    `json:"max_hours_per_week" validate:"omitempty,min=1"`
	MaxClassesPerDay *int    `json:"max_classes_per_day" validate:"omitempty,min=1"`
}

// CreateSectionRequest describes a teachable unit within a term.
type CreateSectionRequest struct {
	TermID             string `json:"term_id" validate:"required,uuid"`
	CourseCode         string `json:"course_code" validate:"required"`
	CourseTitle        string `json:"course_title" validate:"required"`
	SectionCode        string `json:"section_code" validate:"required"`
	MeetingsPerWeek    int    `json:"meetings_per_week" validate:"required,min=1"`
	MinutesPerMeeting  int    `json:"minutes_per_meeting" validate:"required,min=1"`
	ExpectedEnrollment *int   `json:"expected_enrollment" validate:"omitempty,min=0"`
}

// CatalogService manages the reference entities the engine schedules over:
// slots, rooms, professors and sections.
type CatalogService struct {
	slots      slotRepositoryFull
	rooms      roomRepositoryFull
	professors professorRepositoryFull
	sections   sectionRepositoryFull
	audit      auditRecorder
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewCatalogService wires catalog dependencies. audit may be nil.
func NewCatalogService(
	slots slotRepositoryFull,
	rooms roomRepositoryFull,
	professors professorRepositoryFull,
	sections sectionRepositoryFull,
	audit auditRecorder,
	validate *validator.Validate,
	logger *zap.Logger,
) *CatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{
		slots:      slots,
		rooms:      rooms,
		professors: professors,
		sections:   sections,
		audit:      audit,
		validator:  validate,
		logger:     logger,
	}
}

// CreateSlot stores a weekly time window. Slots are immutable once created.
func (s *CatalogService) CreateSlot(ctx context.Context, tenantID string, actor *string, req CreateSlotRequest) (*models.Slot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot payload")
	}
	if req.EndTime <= req.StartTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}
	slot := &models.Slot{
		TenantID:   tenantID,
		TermID:     req.TermID,
		Day:        req.Day,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		IsOfficial: req.IsOfficial,
		Label:      req.Label,
	}
	if err := s.slots.Create(ctx, slot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create slot")
	}
	s.record(tenantID, "slots", slot.ID, actor, slot)
	return slot, nil
}

// ListSlots returns a term's slots.
func (s *CatalogService) ListSlots(ctx context.Context, tenantID, termID string) ([]models.Slot, error) {
	if termID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "term_id is required")
	}
	slots, err := s.slots.ListByTerm(ctx, tenantID, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list slots")
	}
	return slots, nil
}

// CreateRoom stores a room.
func (s *CatalogService) CreateRoom(ctx context.Context, tenantID string, actor *string, req CreateRoomRequest) (*models.Room, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid room payload")
	}
	room := &models.Room{
		TenantID:   tenantID,
		Department: req.Department,
		Code:       req.Code,
		Capacity:   req.Capacity,
		IsActive:   true,
	}
	if len(req.Features) > 0 {
		if !json.Valid(req.Features) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "features must be valid JSON")
		}
		room.Features = []byte(req.Features)
	}
	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create room")
	}
	s.record(tenantID, "rooms", room.ID, actor, room)
	return room, nil
}

// ListRooms returns the tenant's rooms.
func (s *CatalogService) ListRooms(ctx context.Context, tenantID string) ([]models.Room, error) {
	rooms, err := s.rooms.List(ctx, tenantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rooms")
	}
	return rooms, nil
}

// CreateProfessor stores a professor.
func (s *CatalogService) CreateProfessor(ctx context.Context, tenantID string, actor *string, req CreateProfessorRequest) (*models.Professor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid professor payload")
	}
	prof := &models.Professor{
		TenantID:         tenantID,
		DisplayName:      req.DisplayName,
		Email:            req.Email,
		MaxHoursPerWeek:  req.MaxHoursPerWeek,
		MaxClassesPerDay: req.MaxClassesPerDay,
		IsActive:         true,
	}
	if err := s.professors.Create(ctx, prof); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create professor")
	}
	s.record(tenantID, "professors", prof.ID, actor, prof)
	return prof, nil
}

// ListProfessors returns the tenant's professors.
func (s *CatalogService) ListProfessors(ctx context.Context, tenantID string) ([]models.Professor, error) {
	professors, err := s.professors.List(ctx, tenantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list professors")
	}
	return professors, nil
}

// CreateSection stores a section.
func (s *CatalogService) CreateSection(ctx context.Context, tenantID string, actor *string, req CreateSectionRequest) (*models.Section, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}
	section := &models.Section{
		TenantID:           tenantID,
		TermID:             req.TermID,
		CourseCode:         req.CourseCode,
		CourseTitle:        req.CourseTitle,
		SectionCode:        req.SectionCode,
		MeetingsPerWeek:    req.MeetingsPerWeek,
		MinutesPerMeeting:  req.MinutesPerMeeting,
		ExpectedEnrollment: req.ExpectedEnrollment,
	}
	if err := s.sections.Create(ctx, section); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create section")
	}
	s.record(tenantID, "sections", section.ID, actor, section)
	return section, nil
}

// ListSections returns a term's sections.
func (s *CatalogService) ListSections(ctx context.Context, tenantID, termID string) ([]models.Section, error) {
	if termID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "term_id is required")
	}
	sections, err := s.sections.ListByTerm(ctx, tenantID, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sections")
	}
	return sections, nil
}

func (s *CatalogService) record(tenantID, table, rowID string, actor *string, value interface{}) {
	if s.audit == nil {
		return
	}
	s.audit.Record(tenantID, table, rowID, models.AuditActionInsert, actor, nil, value)
}
