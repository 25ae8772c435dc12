package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/advising-api/internal/models"
)

func bookingDetailRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "availability_id", "student_id", "message", "created_at", "updated_at",
		"teacher_id", "date", "start_time", "end_time", "meeting_mode", "note",
		"student_name", "student_email", "teacher_name", "teacher_email",
	})
}

func TestBookingRepositoryGetDetail(t *testing.T) {
	db, mock, cleanup := newLedgerMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	now := time.Now().UTC()
	rows := bookingDetailRows().AddRow(
		"booking-1", "entry-1", "student-1", "thesis", now, now,
		"teacher-1", time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC), "09:00:00", "09:30:00", "in_person", "room 4",
		"Ana", "ana@example.edu", "Dr. Vega", "vega@example.edu",
	)
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE b.id = $1`)).WithArgs("booking-1").WillReturnRows(rows)

	detail, err := repo.GetDetail(context.Background(), "booking-1")
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, "teacher-1", detail.TeacherID)
	assert.Equal(t, models.MeetingInPerson, detail.MeetingMode)
	assert.Equal(t, time.Date(2025, time.June, 10, 9, 30, 0, 0, time.UTC), detail.Ends())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryGetDetailMissing(t *testing.T) {
	db, mock, cleanup := newLedgerMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE b.id = $1`)).WithArgs("nope").WillReturnRows(bookingDetailRows())

	detail, err := repo.GetDetail(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, detail)
}

func TestBookingRepositoryListForTeacher(t *testing.T) {
	db, mock, cleanup := newLedgerMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE a.teacher_id = $1 ORDER BY a.date ASC, a.start_time ASC`)).
		WithArgs("teacher-1").
		WillReturnRows(bookingDetailRows())

	details, err := repo.ListForTeacher(context.Background(), "teacher-1")
	require.NoError(t, err)
	assert.Empty(t, details)
	require.NoError(t, mock.ExpectationsWereMet())
}
