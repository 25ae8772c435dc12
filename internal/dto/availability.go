package dto

import "github.com/noah-isme/advising-api/internal/models"

// SetAvailabilityRequest opens or updates one slot for a teacher.
type SetAvailabilityRequest struct {
	TeacherID   string           `json:"teacher_id" validate:"required"`
	Date        models.Date      `json:"date"`
	StartTime   models.ClockTime `json:"start_time"`
	MeetingMode string           `json:"meeting_mode"`
	Note        string           `json:"note" validate:"max=200"`
}

// UnsetAvailabilityRequest withdraws one slot.
type UnsetAvailabilityRequest struct {
	TeacherID string           `validate:"required"`
	Date      models.Date      `json:"date"`
	StartTime models.ClockTime `json:"start_time"`
}

// AvailabilityRange filters entry listings by teacher and inclusive date range.
type AvailabilityRange struct {
	TeacherID string
	From      models.Date
	To        models.Date
}

// SetAvailabilityResult reports the stored entry and whether it was newly created.
type SetAvailabilityResult struct {
	Entry   models.Availability `json:"entry"`
	Created bool                `json:"created"`
}
