package models

import "time"

// MeetingMode describes how an advising session takes place.
type MeetingMode string

const (
	MeetingOnline   MeetingMode = "online"
	MeetingInPerson MeetingMode = "in_person"
	MeetingBoth     MeetingMode = "both"
)

// ParseMeetingMode maps the raw value to a mode. An empty value defaults to both.
func ParseMeetingMode(raw string) (MeetingMode, bool) {
	switch MeetingMode(raw) {
	case "":
		return MeetingBoth, true
	case MeetingOnline, MeetingInPerson, MeetingBoth:
		return MeetingMode(raw), true
	}
	return "", false
}

// Label renders a human friendly mode.
func (m MeetingMode) Label() string {
	switch m {
	case MeetingOnline:
		return "Online"
	case MeetingInPerson:
		return "In person"
	default:
		return "Online or in person"
	}
}

// Availability is a teacher's offer of one bookable window on a date.
type Availability struct {
	ID          string      `db:"id" json:"id"`
	TeacherID   string      `db:"teacher_id" json:"teacher_id"`
	Date        Date        `db:"date" json:"date"`
	StartTime   ClockTime   `db:"start_time" json:"start_time"`
	EndTime     ClockTime   `db:"end_time" json:"end_time"`
	MeetingMode MeetingMode `db:"meeting_mode" json:"meeting_mode"`
	Note        string      `db:"note" json:"note"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// Overlaps reports whether [start, end) intersects the entry window.
func (a Availability) Overlaps(start, end ClockTime) bool {
	return a.StartTime < end && start < a.EndTime
}

// Blocks reports whether s falls strictly inside the entry window.
func (a Availability) Blocks(s ClockTime) bool {
	return a.StartTime < s && s < a.EndTime
}

// BookingSummary is the booking attached to an availability entry as shown to a viewer.
type BookingSummary struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id,omitempty"`
	StudentName string    `json:"student_name,omitempty"`
	Message     string    `json:"message,omitempty"`
	BookedByMe  bool      `json:"booked_by_me"`
	CreatedAt   time.Time `json:"created_at"`
}

// AvailabilityDetail is an entry together with its booking, if any.
type AvailabilityDetail struct {
	Availability
	Booking *BookingSummary `json:"booking,omitempty"`
}

// Booked reports whether the entry currently has a booking.
func (d AvailabilityDetail) Booked() bool {
	return d.Booking != nil
}
