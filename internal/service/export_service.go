package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Milankumar13/automated-timetable-backend/internal/models"
	appErrors "github.com/Milankumar13/automated-timetable-backend/pkg/errors"
	"github.com/Milankumar13/automated-timetable-backend/pkg/export"
)

type exportPlanLister interface {
	ListActiveByRoom(ctx context.Context, tenantID, roomID string) ([]models.ClassPlan, error)
	ListActiveByProfessor(ctx context.Context, tenantID, professorID string) ([]models.ClassPlan, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(grid export.WeekGrid) ([]byte, error)
}

// ExportService renders run assignments as CSV and weekly timetables as PDF.
type ExportService struct {
	runs       runRepository
	plans      exportPlanLister
	slots      slotReader
	sections   planSectionReader
	rooms      planRoomReader
	professors professorReader
	csv        csvRenderer
	pdf        pdfRenderer
	logger     *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to
// the package defaults.
func NewExportService(
	runs runRepository,
	plans exportPlanLister,
	slots slotReader,
	sections planSectionReader,
	rooms planRoomReader,
	professors professorReader,
	csv csvRenderer,
	pdf pdfRenderer,
	logger *zap.Logger,
) *ExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		runs:       runs,
		plans:      plans,
		slots:      slots,
		sections:   sections,
		rooms:      rooms,
		professors: professors,
		csv:        csv,
		pdf:        pdf,
		logger:     logger,
	}
}

// RunAssignmentsCSV renders a run's committed assignments.
func (s *ExportService) RunAssignmentsCSV(ctx context.Context, tenantID, runID string) ([]byte, error) {
	if _, err := s.runs.FindByID(ctx, tenantID, runID); err != nil {
		return nil, scopeError(err, "run")
	}
	assignments, err := s.runs.ListAssignments(ctx, tenantID, runID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}

	dataset := export.Dataset{
		Headers: []string{"run_id", "section_id", "professor_id", "room_id", "slot_id", "created_at"},
		Rows:    make([][]string, 0, len(assignments)),
	}
	for _, a := range assignments {
		dataset.Rows = append(dataset.Rows, []string{
			a.RunID, a.SectionID, a.ProfessorID, a.RoomID, a.SlotID,
			a.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		})
	}

	payload, err := s.csv.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return payload, nil
}

// RoomTimetablePDF renders the weekly grid of a room's ACTIVE plans.
func (s *ExportService) RoomTimetablePDF(ctx context.Context, tenantID, roomID string) ([]byte, error) {
	room, err := s.rooms.FindByID(ctx, tenantID, roomID)
	if err != nil {
		return nil, scopeError(err, "room")
	}
	plans, err := s.plans.ListActiveByRoom(ctx, tenantID, roomID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list room plans")
	}
	title := fmt.Sprintf("Weekly Timetable - Room %s", room.Code)
	return s.renderGrid(ctx, tenantID, title, plans, true)
}

// ProfessorTimetablePDF renders the weekly grid of a professor's ACTIVE plans.
func (s *ExportService) ProfessorTimetablePDF(ctx context.Context, tenantID, professorID string) ([]byte, error) {
	prof, err := s.professors.FindByID(ctx, tenantID, professorID)
	if err != nil {
		return nil, scopeError(err, "professor")
	}
	plans, err := s.plans.ListActiveByProfessor(ctx, tenantID, professorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list professor plans")
	}
	title := fmt.Sprintf("Weekly Timetable - %s", prof.DisplayName)
	return s.renderGrid(ctx, tenantID, title, plans, false)
}

// renderGrid resolves slot and section labels per plan and draws the grid.
// withProfessor toggles the second cell line between professor and room,
// depending on whose timetable is being drawn.
func (s *ExportService) renderGrid(ctx context.Context, tenantID, title string, plans []models.ClassPlan, withProfessor bool) ([]byte, error) {
	grid := export.WeekGrid{Title: title, Entries: make([]export.GridEntry, 0, len(plans))}
	for _, plan := range plans {
		slot, err := s.slots.FindByID(ctx, tenantID, plan.SlotID)
		if err != nil {
			return nil, scopeError(err, "slot")
		}
		section, err := s.sections.FindByID(ctx, tenantID, plan.SectionID)
		if err != nil {
			return nil, scopeError(err, "section")
		}

		lines := []string{fmt.Sprintf("%s %s", section.CourseCode, section.SectionCode)}
		if withProfessor {
			prof, err := s.professors.FindByID(ctx, tenantID, plan.ProfessorID)
			if err != nil {
				return nil, scopeError(err, "professor")
			}
			lines = append(lines, prof.DisplayName)
		} else {
			room, err := s.rooms.FindByID(ctx, tenantID, plan.RoomID)
			if err != nil {
				return nil, scopeError(err, "room")
			}
			lines = append(lines, room.Code)
		}

		grid.Entries = append(grid.Entries, export.GridEntry{
			Day:       slot.Day,
			StartTime: slot.StartTime,
			EndTime:   slot.EndTime,
			Lines:     lines,
		})
	}

	payload, err := s.pdf.Render(grid)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable pdf")
	}
	return payload, nil
}
