package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Milankumar13/automated-timetable-backend/internal/service"
	appErrors "github.com/Milankumar13/automated-timetable-backend/pkg/errors"
	"github.com/Milankumar13/automated-timetable-backend/pkg/response"
)

// CatalogHandler manages slot, room, professor and section endpoints.
type CatalogHandler struct {
	service *service.CatalogService
}

// NewCatalogHandler constructs handler.
func NewCatalogHandler(svc *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{service: svc}
}

// CreateSlot godoc
// @Summary Create a weekly time slot
// @Tags Catalog
// @Accept json
// @Produce json
// @Param payload body service.CreateSlotRequest true "Slot payload"
// @Success 201 {object} response.Envelope
// @Router /slots [post]
func (h *CatalogHandler) CreateSlot(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req service.CreateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	slot, err := h.service.CreateSlot(c.Request.Context(), claims.TenantID, actorFrom(claims), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, slot)
}

// ListSlots godoc
// @Summary List a term's slots
// @Tags Catalog
// @Produce json
// @Param termId query string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /slots [get]
func (h *CatalogHandler) ListSlots(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	slots, err := h.service.ListSlots(c.Request.Context(), claims.TenantID, c.Query("termId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// CreateRoom godoc
// @Summary Create a room
// @Tags Catalog
// @Accept json
// @Produce json
// @Param payload body service.CreateRoomRequest true "Room payload"
// @Success 201 {object} response.Envelope
// @Router /rooms [post]
func (h *CatalogHandler) CreateRoom(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req service.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	room, err := h.service.CreateRoom(c.Request.Context(), claims.TenantID, actorFrom(claims), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, room)
}

// ListRooms godoc
// @Summary List rooms
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /rooms [get]
func (h *CatalogHandler) ListRooms(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	rooms, err := h.service.ListRooms(c.Request.Context(), claims.TenantID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rooms, nil)
}

// CreateProfessor godoc
// @Summary Create a professor
// @Tags Catalog
// @Accept json
// @Produce json
// @Param payload body service.CreateProfessorRequest true "Professor payload"
// @Success 201 {object} response.Envelope
// @Router /professors [post]
func (h *CatalogHandler) CreateProfessor(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req service.CreateProfessorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	prof, err := h.service.CreateProfessor(c.Request.Context(), claims.TenantID, actorFrom(claims), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, prof)
}

// ListProfessors godoc
// @Summary List professors
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /professors [get]
func (h *CatalogHandler) ListProfessors(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	professors, err := h.service.ListProfessors(c.Request.Context(), claims.TenantID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, professors, nil)
}

// CreateSection godoc
// @Summary Create a section
// @Tags Catalog
// @Accept json
// @Produce json
// @Param payload body service.CreateSectionRequest true "Section payload"
// @Success 201 {object} response.Envelope
// @Router /sections [post]
func (h *CatalogHandler) CreateSection(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req service.CreateSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	section, err := h.service.CreateSection(c.Request.Context(), claims.TenantID, actorFrom(claims), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, section)
}

// ListSections godoc
// @Summary List a term's sections
// @Tags Catalog
// @Produce json
// @Param termId query string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /sections [get]
func (h *CatalogHandler) ListSections(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	sections, err := h.service.ListSections(c.Request.Context(), claims.TenantID, c.Query("termId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sections, nil)
}
