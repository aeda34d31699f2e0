package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Milankumar13/automated-timetable-backend/internal/models"
	"github.com/Milankumar13/automated-timetable-backend/internal/service"
	appErrors "github.com/Milankumar13/automated-timetable-backend/pkg/errors"
	"github.com/Milankumar13/automated-timetable-backend/pkg/response"
)

// PlanHandler manages weekly plan endpoints.
type PlanHandler struct {
	plans    *service.PlanService
	sessions *service.SessionService
}

// NewPlanHandler constructs handler.
func NewPlanHandler(plans *service.PlanService, sessions *service.SessionService) *PlanHandler {
	return &PlanHandler{plans: plans, sessions: sessions}
}

// Create godoc
// @Summary Create a weekly plan
// @Description Reserves the (slot, room) and (slot, professor) keys, runs rule evaluation and commits atomically.
// @Tags Plans
// @Accept json
// @Produce json
// @Param payload body service.CreatePlanRequest true "Plan payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /plans [post]
func (h *PlanHandler) Create(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req service.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.plans.Create(c.Request.Context(), claims.TenantID, actorFrom(claims), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSONWithWarnings(c, http.StatusCreated, result.Plan, result.Warnings)
}

// List godoc
// @Summary List plans
// @Tags Plans
// @Produce json
// @Param termId query string false "Filter by term"
// @Param professorId query string false "Filter by professor"
// @Param roomId query string false "Filter by room"
// @Param slotId query string false "Filter by slot"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /plans [get]
func (h *PlanHandler) List(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var filter models.PlanFilter
	filter.TermID = c.Query("termId")
	filter.ProfessorID = c.Query("professorId")
	filter.RoomID = c.Query("roomId")
	filter.SlotID = c.Query("slotId")
	filter.Status = models.PlanStatus(c.Query("status"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}

	plans, pagination, err := h.plans.List(c.Request.Context(), claims.TenantID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plans, pagination)
}

// Get godoc
// @Summary Get a plan
// @Tags Plans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Router /plans/{id} [get]
func (h *PlanHandler) Get(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	plan, err := h.plans.Get(c.Request.Context(), claims.TenantID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// Pause godoc
// @Summary Pause an active plan
// @Tags Plans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /plans/{id}/pause [post]
func (h *PlanHandler) Pause(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	plan, err := h.plans.Pause(c.Request.Context(), claims.TenantID, actorFrom(claims), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// Resume godoc
// @Summary Resume a paused plan
// @Description Re-reserves the slot keys and re-evaluates rules; resumption can lose to a plan created meanwhile.
// @Tags Plans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /plans/{id}/resume [post]
func (h *PlanHandler) Resume(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	result, err := h.plans.Resume(c.Request.Context(), claims.TenantID, actorFrom(claims), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSONWithWarnings(c, http.StatusOK, result.Plan, result.Warnings)
}

// Cancel godoc
// @Summary Cancel a plan
// @Tags Plans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /plans/{id}/cancel [post]
func (h *PlanHandler) Cancel(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	plan, err := h.plans.Cancel(c.Request.Context(), claims.TenantID, actorFrom(claims), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// Evaluate godoc
// @Summary Dry-run admissibility check
// @Description Previews conflicts and rules without locks or writes; a clear result can still lose the race at commit.
// @Tags Plans
// @Accept json
// @Produce json
// @Param payload body service.CreatePlanRequest true "Candidate payload"
// @Success 200 {object} response.Envelope
// @Router /evaluate [post]
func (h *PlanHandler) Evaluate(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req service.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	verdict, err := h.plans.EvaluateCandidate(c.Request.Context(), claims.TenantID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, verdict, nil)
}

type expandPlanRequest struct {
	Date string `json:"date" binding:"required"`
}

// ExpandSession godoc
// @Summary Expand a plan into a dated session
// @Tags Plans
// @Accept json
// @Produce json
// @Param id path string true "Plan ID"
// @Param payload body expandPlanRequest true "Date payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /plans/{id}/sessions [post]
func (h *PlanHandler) ExpandSession(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req expandPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.sessions.ExpandPlan(c.Request.Context(), claims.TenantID, actorFrom(claims), c.Param("id"), req.Date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSONWithWarnings(c, http.StatusCreated, result.Session, result.Warnings)
}
