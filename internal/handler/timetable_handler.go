package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Milankumar13/automated-timetable-backend/internal/service"
	appErrors "github.com/Milankumar13/automated-timetable-backend/pkg/errors"
	"github.com/Milankumar13/automated-timetable-backend/pkg/response"
)

// TimetableHandler serves weekly timetable PDF downloads.
type TimetableHandler struct {
	exports *service.ExportService
}

// NewTimetableHandler constructs handler.
func NewTimetableHandler(exports *service.ExportService) *TimetableHandler {
	return &TimetableHandler{exports: exports}
}

// RoomPDF godoc
// @Summary Download a room's weekly timetable as PDF
// @Tags Timetable
// @Produce application/pdf
// @Param id path string true "Room ID"
// @Success 200 {file} file
// @Router /timetable/rooms/{id}.pdf [get]
func (h *TimetableHandler) RoomPDF(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
		return
	}
	roomID := strings.TrimSuffix(c.Param("id"), ".pdf")
	payload, err := h.exports.RoomTimetablePDF(c.Request.Context(), claims.TenantID, roomID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="room-%s-timetable.pdf"`, roomID))
	c.Data(http.StatusOK, "application/pdf", payload)
}

// ProfessorPDF godoc
// @Summary Download a professor's weekly timetable as PDF
// @Tags Timetable
// @Produce application/pdf
// @Param id path string true "Professor ID"
// @Success 200 {file} file
// @Router /timetable/professors/{id}.pdf [get]
func (h *TimetableHandler) ProfessorPDF(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
		return
	}
	professorID := strings.TrimSuffix(c.Param("id"), ".pdf")
	payload, err := h.exports.ProfessorTimetablePDF(c.Request.Context(), claims.TenantID, professorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="professor-%s-timetable.pdf"`, professorID))
	c.Data(http.StatusOK, "application/pdf", payload)
}
