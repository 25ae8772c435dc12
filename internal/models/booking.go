package models

import "time"

// Booking is a student's claim on an availability entry. Cancelling deletes the row.
type Booking struct {
	ID             string    `db:"id" json:"id"`
	AvailabilityID string    `db:"availability_id" json:"availability_id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	Message        string    `db:"message" json:"message"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// BookingDetail joins a booking with its entry and both participants.
type BookingDetail struct {
	Booking
	TeacherID    string      `db:"teacher_id" json:"teacher_id"`
	Date         Date        `db:"date" json:"date"`
	StartTime    ClockTime   `db:"start_time" json:"start_time"`
	EndTime      ClockTime   `db:"end_time" json:"end_time"`
	MeetingMode  MeetingMode `db:"meeting_mode" json:"meeting_mode"`
	Note         string      `db:"note" json:"advisor_note"`
	StudentName  string      `db:"student_name" json:"student_name"`
	StudentEmail string      `db:"student_email" json:"student_email"`
	TeacherName  string      `db:"teacher_name" json:"teacher_name"`
	TeacherEmail string      `db:"teacher_email" json:"teacher_email"`
}

// Starts returns the session start instant in UTC.
func (b BookingDetail) Starts() time.Time { return b.Date.At(b.StartTime) }

// Ends returns the session end instant in UTC.
func (b BookingDetail) Ends() time.Time { return b.Date.At(b.EndTime) }

// InvolvesUser reports whether userID is the student or the teacher of the booking.
func (b BookingDetail) InvolvesUser(userID string) bool {
	return userID != "" && (b.StudentID == userID || b.TeacherID == userID)
}
