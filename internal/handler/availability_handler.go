package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/advising-api/internal/dto"
	"github.com/noah-isme/advising-api/internal/models"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
	"github.com/noah-isme/advising-api/pkg/response"
)

type availabilityService interface {
	Set(ctx context.Context, actorID string, req dto.SetAvailabilityRequest) (*dto.SetAvailabilityResult, error)
	Unset(ctx context.Context, actorID string, req dto.UnsetAvailabilityRequest) error
	ListFor(ctx context.Context, actorID string, query dto.AvailabilityRange) ([]models.AvailabilityDetail, error)
}

// AvailabilityHandler exposes teacher availability endpoints.
type AvailabilityHandler struct {
	service availabilityService
}

// NewAvailabilityHandler constructs the handler.
func NewAvailabilityHandler(svc availabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: svc}
}

// Set godoc
// @Summary Open or update an availability slot
// @Description Teachers manage their own slots; admins may pass any teacher_id.
// @Tags Availability
// @Accept json
// @Produce json
// @Param payload body dto.SetAvailabilityRequest true "Slot"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /availability [put]
func (h *AvailabilityHandler) Set(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.SetAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}
	if req.TeacherID == "" {
		req.TeacherID = actor
	}
	result, err := h.service.Set(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Created {
		response.Created(c, result)
		return
	}
	response.OK(c, result)
}

// Unset godoc
// @Summary Withdraw an availability slot
// @Tags Availability
// @Param teacherId path string true "Teacher ID"
// @Param date path string true "Date (YYYY-MM-DD)"
// @Param start path string true "Start time (HH:MM)"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /availability/{teacherId}/{date}/{start} [delete]
func (h *AvailabilityHandler) Unset(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	date, ok := parseDate(c, c.Param("date"), "date", true)
	if !ok {
		return
	}
	start, err := models.ParseClock(c.Param("start"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "start must be HH:MM"))
		return
	}
	req := dto.UnsetAvailabilityRequest{TeacherID: c.Param("teacherId"), Date: date, StartTime: start}
	if err := h.service.Unset(c.Request.Context(), actor, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// List godoc
// @Summary List a teacher's availability
// @Tags Availability
// @Produce json
// @Param teacherId query string true "Teacher ID"
// @Param from query string false "First date (YYYY-MM-DD), defaults to today"
// @Param to query string false "Last date (YYYY-MM-DD), defaults to from + 6 days"
// @Success 200 {object} response.Envelope
// @Router /availability [get]
func (h *AvailabilityHandler) List(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	from, ok := parseDate(c, c.Query("from"), "from", false)
	if !ok {
		return
	}
	to, ok := parseDate(c, c.Query("to"), "to", false)
	if !ok {
		return
	}
	entries, err := h.service.ListFor(c.Request.Context(), actor, dto.AvailabilityRange{
		TeacherID: c.Query("teacherId"),
		From:      from,
		To:        to,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, entries, response.Meta{"count": len(entries)})
}
