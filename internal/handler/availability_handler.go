package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Milankumar13/automated-timetable-backend/internal/service"
	"github.com/Milankumar13/automated-timetable-backend/pkg/response"
)

// AvailabilityHandler serves slot occupancy queries.
type AvailabilityHandler struct {
	service *service.AvailabilityService
}

// NewAvailabilityHandler constructs handler.
func NewAvailabilityHandler(svc *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: svc}
}

// SlotOccupancy godoc
// @Summary Query slot occupancy
// @Description Returns which rooms and professors are taken in a slot. Served from cache; may lag one transaction.
// @Tags Availability
// @Produce json
// @Param id path string true "Slot ID"
// @Success 200 {object} response.Envelope
// @Router /availability/slots/{id} [get]
func (h *AvailabilityHandler) SlotOccupancy(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	occupancy, err := h.service.SlotOccupancy(c.Request.Context(), claims.TenantID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, occupancy, nil)
}
