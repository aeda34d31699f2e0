package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Milankumar13/automated-timetable-backend/internal/middleware"
	"github.com/Milankumar13/automated-timetable-backend/internal/service"
)

// Handlers bundles every HTTP handler for route registration.
type Handlers struct {
	Auth         *AuthHandler
	Catalog      *CatalogHandler
	Plans        *PlanHandler
	Sessions     *SessionHandler
	Runs         *RunHandler
	Rules        *RuleHandler
	Availability *AvailabilityHandler
	Timetable    *TimetableHandler
}

// RegisterRoutes mounts the API under /api/v1. Everything except login and
// registration requires a tenant-scoped token.
func RegisterRoutes(r *gin.Engine, h Handlers, authService *service.AuthService) {
	api := r.Group("/api/v1")

	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/register", h.Auth.Register)

	protected := api.Group("")
	protected.Use(middleware.JWT(authService))

	protected.GET("/slots", h.Catalog.ListSlots)
	protected.POST("/slots", h.Catalog.CreateSlot)
	protected.GET("/rooms", h.Catalog.ListRooms)
	protected.POST("/rooms", h.Catalog.CreateRoom)
	protected.GET("/professors", h.Catalog.ListProfessors)
	protected.POST("/professors", h.Catalog.CreateProfessor)
	protected.GET("/sections", h.Catalog.ListSections)
	protected.POST("/sections", h.Catalog.CreateSection)

	protected.GET("/rules", h.Rules.ListRules)
	protected.POST("/rules", h.Rules.CreateRule)
	protected.POST("/blocked-slots", h.Rules.CreateBlockedSlot)
	protected.PUT("/availability", h.Rules.UpsertAvailability)

	protected.GET("/plans", h.Plans.List)
	protected.POST("/plans", h.Plans.Create)
	protected.GET("/plans/:id", h.Plans.Get)
	protected.POST("/plans/:id/pause", h.Plans.Pause)
	protected.POST("/plans/:id/resume", h.Plans.Resume)
	protected.POST("/plans/:id/cancel", h.Plans.Cancel)
	protected.POST("/plans/:id/sessions", h.Plans.ExpandSession)
	protected.POST("/evaluate", h.Plans.Evaluate)

	protected.GET("/sessions", h.Sessions.List)
	protected.POST("/sessions/extra", h.Sessions.CreateExtra)
	protected.GET("/sessions/:id", h.Sessions.Get)
	protected.POST("/sessions/:id/cancel", h.Sessions.Cancel)
	protected.POST("/sessions/:id/complete", h.Sessions.Complete)
	protected.POST("/sessions/:id/reschedule", h.Sessions.Reschedule)

	protected.POST("/runs", h.Runs.Begin)
	protected.GET("/runs/:id", h.Runs.Get)
	protected.GET("/runs/:id/assignments", h.Runs.ListAssignments)
	protected.POST("/runs/:id/assignments", h.Runs.CommitAssignments)
	protected.GET("/runs/:id/assignments.csv", h.Runs.ExportAssignmentsCSV)
	protected.POST("/runs/:id/finalize", h.Runs.Finalize)

	protected.GET("/availability/slots/:id", h.Availability.SlotOccupancy)

	protected.GET("/timetable/rooms/:id", h.Timetable.RoomPDF)
	protected.GET("/timetable/professors/:id", h.Timetable.ProfessorPDF)
}
