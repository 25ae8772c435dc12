package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/advising-api/internal/dto"
	"github.com/noah-isme/advising-api/internal/models"
	"github.com/noah-isme/advising-api/pkg/response"
)

type bookingService interface {
	Claim(ctx context.Context, req dto.ClaimBookingRequest) (*models.BookingDetail, error)
	Cancel(ctx context.Context, req dto.CancelBookingRequest) error
	ListForStudent(ctx context.Context, actorID string) ([]models.BookingDetail, error)
	ListForTeacher(ctx context.Context, actorID, teacherID string) ([]models.BookingDetail, error)
	Get(ctx context.Context, actorID, bookingID string) (*models.BookingDetail, error)
}

type calendarService interface {
	BookingICS(ctx context.Context, actorID, bookingID string) ([]byte, error)
	ContentType() string
}

// BookingHandler exposes booking claim, cancel and lookup endpoints.
type BookingHandler struct {
	service  bookingService
	calendar calendarService
}

// NewBookingHandler constructs the handler.
func NewBookingHandler(svc bookingService, calendar calendarService) *BookingHandler {
	return &BookingHandler{service: svc, calendar: calendar}
}

// Claim godoc
// @Summary Book an open slot
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body dto.ClaimBookingRequest true "Claim"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Claim(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.ClaimBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}
	req.StudentID = actor
	booking, err := h.service.Claim(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, booking)
}

// Cancel godoc
// @Summary Cancel own booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param payload body dto.CancelBookingRequest true "Reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.CancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}
	req.BookingID = c.Param("id")
	req.StudentID = actor
	if err := h.service.Cancel(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"booking_id": req.BookingID, "cancelled": true})
}

// Mine godoc
// @Summary List the caller's bookings
// @Tags Bookings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /bookings/me [get]
func (h *BookingHandler) Mine(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	bookings, err := h.service.ListForStudent(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, bookings)
}

// ForTeacher godoc
// @Summary List bookings on a teacher's slots
// @Tags Bookings
// @Produce json
// @Param teacherId path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{teacherId}/bookings [get]
func (h *BookingHandler) ForTeacher(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	bookings, err := h.service.ListForTeacher(c.Request.Context(), actor, c.Param("teacherId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, bookings)
}

// Get godoc
// @Summary Get a booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /bookings/{id} [get]
func (h *BookingHandler) Get(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	booking, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, booking)
}

// ICS godoc
// @Summary Download a booking as an iCalendar file
// @Tags Bookings
// @Produce text/calendar
// @Param id path string true "Booking ID"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /bookings/{id}/ics [get]
func (h *BookingHandler) ICS(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	content, err := h.calendar.BookingICS(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="booking-%s.ics"`, c.Param("id")))
	c.Data(http.StatusOK, h.calendar.ContentType(), content)
}
