package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/advising-api/internal/models"
)

// AvailabilityRepository serves read-side queries over availability entries.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs the repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

type availabilityRow struct {
	models.Availability
	BookingID          sql.NullString `db:"booking_id"`
	BookingStudentID   sql.NullString `db:"booking_student_id"`
	BookingStudentName sql.NullString `db:"booking_student_name"`
	BookingMessage     sql.NullString `db:"booking_message"`
	BookingCreatedAt   sql.NullTime   `db:"booking_created_at"`
}

func (r availabilityRow) toDetail() models.AvailabilityDetail {
	detail := models.AvailabilityDetail{Availability: r.Availability}
	if r.BookingID.Valid {
		detail.Booking = &models.BookingSummary{
			ID:          r.BookingID.String,
			StudentID:   r.BookingStudentID.String,
			StudentName: r.BookingStudentName.String,
			Message:     r.BookingMessage.String,
			CreatedAt:   r.BookingCreatedAt.Time,
		}
	}
	return detail
}

const availabilityRangeQuery = `
SELECT
	a.id, a.teacher_id, a.date, a.start_time, a.end_time, a.meeting_mode, a.note, a.created_at, a.updated_at,
	b.id AS booking_id,
	b.student_id AS booking_student_id,
	u.full_name AS booking_student_name,
	b.message AS booking_message,
	b.created_at AS booking_created_at
FROM availability_entries a
LEFT JOIN bookings b ON b.availability_id = a.id
LEFT JOIN users u ON u.id = b.student_id
WHERE a.teacher_id = $1 AND a.date BETWEEN $2 AND $3
ORDER BY a.date ASC, a.start_time ASC`

// ListRange returns a teacher's entries between from and to inclusive, with their bookings.
func (r *AvailabilityRepository) ListRange(ctx context.Context, teacherID string, from, to models.Date) ([]models.AvailabilityDetail, error) {
	var rows []availabilityRow
	if err := r.db.SelectContext(ctx, &rows, availabilityRangeQuery, teacherID, from, to); err != nil {
		return nil, fmt.Errorf("list availability range: %w", err)
	}
	details := make([]models.AvailabilityDetail, 0, len(rows))
	for _, row := range rows {
		details = append(details, row.toDetail())
	}
	return details, nil
}

// ListDay returns a teacher's entries on one date.
func (r *AvailabilityRepository) ListDay(ctx context.Context, teacherID string, date models.Date) ([]models.AvailabilityDetail, error) {
	return r.ListRange(ctx, teacherID, date, date)
}
