package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/advising-api/internal/models"
	"github.com/noah-isme/advising-api/pkg/response"
)

type scheduleService interface {
	ProjectFor(ctx context.Context, actorID, teacherID string, date models.Date) ([]models.SlotView, error)
}

// ScheduleHandler serves the projected daily grid.
type ScheduleHandler struct {
	service scheduleService
}

// NewScheduleHandler constructs handler.
func NewScheduleHandler(svc scheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: svc}
}

// Day godoc
// @Summary Project a teacher's day onto the slot grid
// @Tags Schedule
// @Produce json
// @Param teacherId path string true "Teacher ID"
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedule/{teacherId}/{date} [get]
func (h *ScheduleHandler) Day(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	date, ok := parseDate(c, c.Param("date"), "date", true)
	if !ok {
		return
	}
	views, err := h.service.ProjectFor(c.Request.Context(), actor, c.Param("teacherId"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, views, response.Meta{
		"teacher_id": c.Param("teacherId"),
		"date":       date.String(),
	})
}
