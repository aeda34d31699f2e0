package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Milankumar13/automated-timetable-backend/internal/service"
	appErrors "github.com/Milankumar13/automated-timetable-backend/pkg/errors"
	"github.com/Milankumar13/automated-timetable-backend/pkg/response"
)

// RuleHandler manages admin rule, blocked slot and availability endpoints.
type RuleHandler struct {
	service *service.RuleService
}

// NewRuleHandler constructs handler.
func NewRuleHandler(svc *service.RuleService) *RuleHandler {
	return &RuleHandler{service: svc}
}

// CreateRule godoc
// @Summary Create an admin rule
// @Description Rules without any scope are rejected; unrecognized kinds are stored and reported as warnings.
// @Tags Rules
// @Accept json
// @Produce json
// @Param payload body service.CreateRuleRequest true "Rule payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /rules [post]
func (h *RuleHandler) CreateRule(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req service.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.CreateRule(c.Request.Context(), claims.TenantID, actorFrom(claims), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSONWithWarnings(c, http.StatusCreated, result.Rule, result.Warnings)
}

// ListRules godoc
// @Summary List admin rules
// @Tags Rules
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /rules [get]
func (h *RuleHandler) ListRules(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	rules, err := h.service.ListRules(c.Request.Context(), claims.TenantID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rules, nil)
}

// CreateBlockedSlot godoc
// @Summary Block a (room, slot) pair
// @Description Omitting room_id blocks the slot for every room.
// @Tags Rules
// @Accept json
// @Produce json
// @Param payload body service.CreateBlockedSlotRequest true "Block payload"
// @Success 201 {object} response.Envelope
// @Router /blocked-slots [post]
func (h *RuleHandler) CreateBlockedSlot(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req service.CreateBlockedSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	block, err := h.service.CreateBlockedSlot(c.Request.Context(), claims.TenantID, actorFrom(claims), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, block)
}

// UpsertAvailability godoc
// @Summary Record professor availability for a slot
// @Tags Rules
// @Accept json
// @Produce json
// @Param payload body service.UpsertAvailabilityRequest true "Availability payload"
// @Success 200 {object} response.Envelope
// @Router /availability [put]
func (h *RuleHandler) UpsertAvailability(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req service.UpsertAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	avail, err := h.service.UpsertAvailability(c.Request.Context(), claims.TenantID, actorFrom(claims), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, avail, nil)
}
