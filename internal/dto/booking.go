package dto

import "github.com/noah-isme/advising-api/internal/models"

// ClaimBookingRequest is a student's request to book an entry. StudentID is taken from the caller.
type ClaimBookingRequest struct {
	AvailabilityID string `json:"availability_id" validate:"required"`
	StudentID      string `json:"-"`
	Message        string `json:"message" validate:"max=1000"`
}

// CancelBookingRequest cancels a booking. BookingID comes from the path.
type CancelBookingRequest struct {
	BookingID string `json:"-"`
	StudentID string `json:"-"`
	Reason    string `json:"reason"`
}

// AgendaRequest selects a teacher's entries for export.
type AgendaRequest struct {
	TeacherID string
	From      models.Date
	To        models.Date
	Format    string
}

// AgendaFile is a rendered export ready to be downloaded.
type AgendaFile struct {
	Filename    string
	ContentType string
	Content     []byte
}
