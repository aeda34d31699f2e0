package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Milankumar13/automated-timetable-backend/internal/service"
	appErrors "github.com/Milankumar13/automated-timetable-backend/pkg/errors"
	"github.com/Milankumar13/automated-timetable-backend/pkg/response"
)

// RunHandler manages timetable run endpoints.
type RunHandler struct {
	runs    *service.RunService
	exports *service.ExportService
}

// NewRunHandler constructs handler.
func NewRunHandler(runs *service.RunService, exports *service.ExportService) *RunHandler {
	return &RunHandler{runs: runs, exports: exports}
}

// Begin godoc
// @Summary Open a timetable run
// @Tags Runs
// @Accept json
// @Produce json
// @Param payload body service.BeginRunRequest true "Run payload"
// @Success 201 {object} response.Envelope
// @Router /runs [post]
func (h *RunHandler) Begin(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req service.BeginRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	run, err := h.runs.Begin(c.Request.Context(), claims.TenantID, actorFrom(claims), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, run)
}

// Get godoc
// @Summary Get a run
// @Tags Runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Router /runs/{id} [get]
func (h *RunHandler) Get(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	run, err := h.runs.Get(c.Request.Context(), claims.TenantID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}

// CommitAssignments godoc
// @Summary Commit an assignment batch
// @Description Validates the whole batch against an in-run index and the rule engine; rejects with every offending item listed.
// @Tags Runs
// @Accept json
// @Produce json
// @Param id path string true "Run ID"
// @Param payload body service.CommitAssignmentsRequest true "Assignment batch"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /runs/{id}/assignments [post]
func (h *RunHandler) CommitAssignments(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req service.CommitAssignmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.runs.CommitAssignments(c.Request.Context(), claims.TenantID, actorFrom(claims), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSONWithWarnings(c, http.StatusCreated, result.Assignments, result.Warnings)
}

// Finalize godoc
// @Summary Finalize a run
// @Description Records SUCCESS or FAILURE exactly once; later calls get the recorded status back as a conflict.
// @Tags Runs
// @Accept json
// @Produce json
// @Param id path string true "Run ID"
// @Param payload body service.FinalizeRunRequest true "Outcome payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /runs/{id}/finalize [post]
func (h *RunHandler) Finalize(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req service.FinalizeRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	run, err := h.runs.Finalize(c.Request.Context(), claims.TenantID, actorFrom(claims), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}

// ListAssignments godoc
// @Summary List a run's assignments
// @Tags Runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Router /runs/{id}/assignments [get]
func (h *RunHandler) ListAssignments(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	assignments, err := h.runs.ListAssignments(c.Request.Context(), claims.TenantID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

// ExportAssignmentsCSV godoc
// @Summary Download a run's assignments as CSV
// @Tags Runs
// @Produce text/csv
// @Param id path string true "Run ID"
// @Success 200 {file} file
// @Router /runs/{id}/assignments.csv [get]
func (h *RunHandler) ExportAssignmentsCSV(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
		return
	}
	runID := c.Param("id")
	payload, err := h.exports.RunAssignmentsCSV(c.Request.Context(), claims.TenantID, runID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="run-%s-assignments.csv"`, runID))
	c.Data(http.StatusOK, "text/csv", payload)
}
