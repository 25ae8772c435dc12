package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/advising-api/internal/models"
)

// BookingRepository serves read-side booking queries. Writes go through the ledger.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs the repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// GetDetail returns the booking joined with its entry and participants, or nil when absent.
func (r *BookingRepository) GetDetail(ctx context.Context, id string) (*models.BookingDetail, error) {
	var detail models.BookingDetail
	if err := r.db.GetContext(ctx, &detail, bookingDetailSelect+` WHERE b.id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return &detail, nil
}

// ListForStudent returns the student's bookings ordered by session start.
func (r *BookingRepository) ListForStudent(ctx context.Context, studentID string) ([]models.BookingDetail, error) {
	var details []models.BookingDetail
	query := bookingDetailSelect + ` WHERE b.student_id = $1 ORDER BY a.date ASC, a.start_time ASC`
	if err := r.db.SelectContext(ctx, &details, query, studentID); err != nil {
		return nil, fmt.Errorf("list student bookings: %w", err)
	}
	return details, nil
}

// ListForTeacher returns bookings on the teacher's entries ordered by session start.
func (r *BookingRepository) ListForTeacher(ctx context.Context, teacherID string) ([]models.BookingDetail, error) {
	var details []models.BookingDetail
	query := bookingDetailSelect + ` WHERE a.teacher_id = $1 ORDER BY a.date ASC, a.start_time ASC`
	if err := r.db.SelectContext(ctx, &details, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher bookings: %w", err)
	}
	return details, nil
}
