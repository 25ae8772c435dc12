package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/advising-api/internal/models"
)

const (
	icsTimeLayout  = "20060102T150405Z"
	icsLineLimit   = 75
	icsContentType = "text/calendar; charset=utf-8"
)

type calendarBookingReader interface {
	GetDetail(ctx context.Context, id string) (*models.BookingDetail, error)
}

// CalendarService renders bookings as iCalendar documents.
type CalendarService struct {
	bookings  calendarBookingReader
	directory actorDirectory
	logger    *zap.Logger
	now       func() time.Time
}

// NewCalendarService constructs the service.
func NewCalendarService(bookings calendarBookingReader, directory actorDirectory, logger *zap.Logger) *CalendarService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{bookings: bookings, directory: directory, logger: logger, now: time.Now}
}

// ContentType is the media type of BookingICS output.
func (s *CalendarService) ContentType() string { return icsContentType }

// BookingICS returns the calendar file for a booking visible to the actor.
func (s *CalendarService) BookingICS(ctx context.Context, actorID, bookingID string) ([]byte, error) {
	actor, err := s.directory.User(ctx, actorID)
	if err != nil {
		return nil, err
	}
	detail, err := loadVisibleBooking(ctx, s.bookings, actor, bookingID)
	if err != nil {
		return nil, err
	}
	return BuildBookingICS(*detail, s.now(), false), nil
}

// BuildBookingICS renders one VEVENT for the booking. A cancelled booking is emitted with
// METHOD:CANCEL and STATUS:CANCELLED so clients drop it from the calendar.
func BuildBookingICS(detail models.BookingDetail, now time.Time, cancelled bool) []byte {
	advisor := detail.TeacherName
	if advisor == "" {
		advisor = detail.TeacherEmail
	}
	student := detail.StudentName
	if student == "" {
		student = detail.StudentEmail
	}

	description := []string{
		"Student: " + student,
		"Advisor: " + advisor,
		"Mode: " + detail.MeetingMode.Label(),
	}
	if note := strings.TrimSpace(detail.Note); note != "" {
		description = append(description, "Advisor note: "+note)
	}
	if msg := strings.TrimSpace(detail.Message); msg != "" {
		description = append(description, "Student note: "+msg)
	}

	method, status, sequence := "REQUEST", "CONFIRMED", 0
	if cancelled {
		method, status, sequence = "CANCEL", "CANCELLED", 1
	}

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Advising//EN",
		"CALSCALE:GREGORIAN",
		"METHOD:" + method,
		"BEGIN:VEVENT",
		fmt.Sprintf("UID:booking-%s@advising", detail.ID),
		"DTSTAMP:" + now.UTC().Format(icsTimeLayout),
		"DTSTART:" + detail.Starts().UTC().Format(icsTimeLayout),
		"DTEND:" + detail.Ends().UTC().Format(icsTimeLayout),
		"SUMMARY:" + escapeICS("Session with "+advisor),
		"DESCRIPTION:" + escapeICS(strings.Join(description, "\n")),
		"STATUS:" + status,
		fmt.Sprintf("SEQUENCE:%d", sequence),
		"END:VEVENT",
		"END:VCALENDAR",
	}

	var b strings.Builder
	for _, line := range lines {
		b.WriteString(foldICS(line))
		b.WriteString("\r\n")
	}
	return []byte(b.String())
}

var icsEscaper = strings.NewReplacer(`\`, `\\`, ";", `\;`, ",", `\,`, "\r\n", `\n`, "\n", `\n`)

func escapeICS(s string) string {
	return icsEscaper.Replace(s)
}

// foldICS splits content lines longer than 75 octets without breaking UTF-8 sequences.
func foldICS(line string) string {
	if len(line) <= icsLineLimit {
		return line
	}
	var b strings.Builder
	width := 0
	for _, r := range line {
		size := len(string(r))
		if width+size > icsLineLimit {
			b.WriteString("\r\n ")
			width = 1
		}
		b.WriteRune(r)
		width += size
	}
	return b.String()
}
