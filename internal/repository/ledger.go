package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/noah-isme/advising-api/internal/models"
)

// LedgerTx is one unit of work over availability entries and bookings. Lookups return nil
// without an error when the row does not exist.
type LedgerTx interface {
	// LockEntry reads the entry and holds its row lock until the transaction ends.
	LockEntry(ctx context.Context, id string) (*models.Availability, error)
	// Lock takes a transaction scoped lock on an arbitrary key, see ScopeStudentDay and ScopeTeacherDay.
	Lock(ctx context.Context, scope string) error
	EntryBySlot(ctx context.Context, teacherID string, date models.Date, start models.ClockTime) (*models.Availability, error)
	EntriesForDay(ctx context.Context, teacherID string, date models.Date) ([]models.Availability, error)
	// UpsertEntry stores the entry keyed by teacher, date and start time and reports whether a row was created.
	UpsertEntry(ctx context.Context, entry *models.Availability) (bool, error)
	DeleteEntry(ctx context.Context, id string) error
	BookingForEntry(ctx context.Context, entryID string) (*models.Booking, error)
	BookingByID(ctx context.Context, id string) (*models.Booking, error)
	BookingDetail(ctx context.Context, id string) (*models.BookingDetail, error)
	StudentHasBookingOn(ctx context.Context, studentID string, date models.Date) (bool, error)
	InsertBooking(ctx context.Context, booking *models.Booking) error
	DeleteBooking(ctx context.Context, id string) error
}

// TxObserver receives the duration of every ledger transaction.
type TxObserver interface {
	ObserveLedgerTx(op string, duration time.Duration)
}

// ScopeStudentDay names the lock serialising one student's claims on one date.
func ScopeStudentDay(studentID string, date models.Date) string {
	return fmt.Sprintf("student-day:%s:%s", studentID, date)
}

// ScopeTeacherDay names the lock serialising slot changes on one teacher's day.
func ScopeTeacherDay(teacherID string, date models.Date) string {
	return fmt.Sprintf("teacher-day:%s:%s", teacherID, date)
}

func observe(observer TxObserver, op string, start time.Time) {
	if observer == nil {
		return
	}
	observer.ObserveLedgerTx(op, time.Since(start))
}
