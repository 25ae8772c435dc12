package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/advising-api/internal/models"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
)

const (
	pqLockNotAvailable   = "55P03"
	pqDeadlockDetected   = "40P01"
	pqUniqueViolation    = "23505"
	bookingEntryUniqueCK = "bookings_availability_id_key"
)

const entryColumns = `id, teacher_id, date, start_time, end_time, meeting_mode, note, created_at, updated_at`

const bookingColumns = `id, availability_id, student_id, message, created_at, updated_at`

const bookingDetailSelect = `
SELECT
	b.id, b.availability_id, b.student_id, b.message, b.created_at, b.updated_at,
	a.teacher_id, a.date, a.start_time, a.end_time, a.meeting_mode, a.note,
	s.full_name AS student_name, s.email AS student_email,
	t.full_name AS teacher_name, t.email AS teacher_email
FROM bookings b
JOIN availability_entries a ON a.id = b.availability_id
JOIN users s ON s.id = b.student_id
JOIN users t ON t.id = a.teacher_id`

// PostgresLedger runs ledger transactions against PostgreSQL with row locks and advisory locks.
type PostgresLedger struct {
	db          *sqlx.DB
	lockTimeout time.Duration
	observer    TxObserver
}

// NewPostgresLedger constructs the ledger. A zero lockTimeout leaves the server default in place.
func NewPostgresLedger(db *sqlx.DB, lockTimeout time.Duration, observer TxObserver) *PostgresLedger {
	return &PostgresLedger{db: db, lockTimeout: lockTimeout, observer: observer}
}

// WithinTx runs fn in a transaction and commits when fn returns nil.
func (l *PostgresLedger) WithinTx(ctx context.Context, op string, fn func(tx LedgerTx) error) (err error) {
	defer observe(l.observer, op, time.Now())

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s transaction: %w", op, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if l.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", l.lockTimeout.Milliseconds())
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("set lock timeout: %w", err)
		}
	}

	if err = fn(&pgLedgerTx{tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return translatePQ(fmt.Errorf("commit %s transaction: %w", op, err))
	}
	return nil
}

type pgLedgerTx struct {
	tx *sqlx.Tx
}

func (t *pgLedgerTx) LockEntry(ctx context.Context, id string) (*models.Availability, error) {
	query := `SELECT ` + entryColumns + ` FROM availability_entries WHERE id = $1 FOR UPDATE`
	var entry models.Availability
	if err := t.tx.GetContext(ctx, &entry, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, translatePQ(fmt.Errorf("lock availability entry: %w", err))
	}
	return &entry, nil
}

func (t *pgLedgerTx) Lock(ctx context.Context, scope string) error {
	if _, err := t.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, scope); err != nil {
		return translatePQ(fmt.Errorf("acquire scope lock %s: %w", scope, err))
	}
	return nil
}

func (t *pgLedgerTx) EntryBySlot(ctx context.Context, teacherID string, date models.Date, start models.ClockTime) (*models.Availability, error) {
	query := `SELECT ` + entryColumns + ` FROM availability_entries WHERE teacher_id = $1 AND date = $2 AND start_time = $3`
	var entry models.Availability
	if err := t.tx.GetContext(ctx, &entry, query, teacherID, date, start); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, translatePQ(fmt.Errorf("find availability entry: %w", err))
	}
	return &entry, nil
}

func (t *pgLedgerTx) EntriesForDay(ctx context.Context, teacherID string, date models.Date) ([]models.Availability, error) {
	query := `SELECT ` + entryColumns + ` FROM availability_entries WHERE teacher_id = $1 AND date = $2 ORDER BY start_time`
	var entries []models.Availability
	if err := t.tx.SelectContext(ctx, &entries, query, teacherID, date); err != nil {
		return nil, translatePQ(fmt.Errorf("list availability entries: %w", err))
	}
	return entries, nil
}

func (t *pgLedgerTx) UpsertEntry(ctx context.Context, entry *models.Availability) (bool, error) {
	const query = `
INSERT INTO availability_entries (id, teacher_id, date, start_time, end_time, meeting_mode, note, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
ON CONFLICT (teacher_id, date, start_time) DO UPDATE
SET end_time = EXCLUDED.end_time,
	meeting_mode = EXCLUDED.meeting_mode,
	note = EXCLUDED.note,
	updated_at = EXCLUDED.updated_at
RETURNING id, created_at, updated_at, (xmax = 0) AS inserted`

	now := time.Now().UTC()
	var row struct {
		ID        string    `db:"id"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
		Inserted  bool      `db:"inserted"`
	}
	err := t.tx.GetContext(ctx, &row, query,
		entry.ID, entry.TeacherID, entry.Date, entry.StartTime, entry.EndTime, entry.MeetingMode, entry.Note, now)
	if err != nil {
		return false, translatePQ(fmt.Errorf("upsert availability entry: %w", err))
	}
	entry.ID = row.ID
	entry.CreatedAt = row.CreatedAt
	entry.UpdatedAt = row.UpdatedAt
	return row.Inserted, nil
}

func (t *pgLedgerTx) DeleteEntry(ctx context.Context, id string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM availability_entries WHERE id = $1`, id); err != nil {
		return translatePQ(fmt.Errorf("delete availability entry: %w", err))
	}
	return nil
}

func (t *pgLedgerTx) BookingForEntry(ctx context.Context, entryID string) (*models.Booking, error) {
	return t.getBooking(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE availability_id = $1`, entryID)
}

func (t *pgLedgerTx) BookingByID(ctx context.Context, id string) (*models.Booking, error) {
	return t.getBooking(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

func (t *pgLedgerTx) getBooking(ctx context.Context, query string, arg string) (*models.Booking, error) {
	var booking models.Booking
	if err := t.tx.GetContext(ctx, &booking, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, translatePQ(fmt.Errorf("get booking: %w", err))
	}
	return &booking, nil
}

func (t *pgLedgerTx) BookingDetail(ctx context.Context, id string) (*models.BookingDetail, error) {
	var detail models.BookingDetail
	if err := t.tx.GetContext(ctx, &detail, bookingDetailSelect+` WHERE b.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, translatePQ(fmt.Errorf("get booking detail: %w", err))
	}
	return &detail, nil
}

func (t *pgLedgerTx) StudentHasBookingOn(ctx context.Context, studentID string, date models.Date) (bool, error) {
	const query = `
SELECT EXISTS (
	SELECT 1 FROM bookings b
	JOIN availability_entries a ON a.id = b.availability_id
	WHERE b.student_id = $1 AND a.date = $2
)`
	var exists bool
	if err := t.tx.GetContext(ctx, &exists, query, studentID, date); err != nil {
		return false, translatePQ(fmt.Errorf("check student bookings: %w", err))
	}
	return exists, nil
}

func (t *pgLedgerTx) InsertBooking(ctx context.Context, booking *models.Booking) error {
	const query = `INSERT INTO bookings (id, availability_id, student_id, message, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)`
	now := time.Now().UTC()
	if _, err := t.tx.ExecContext(ctx, query, booking.ID, booking.AvailabilityID, booking.StudentID, booking.Message, now); err != nil {
		return translatePQ(fmt.Errorf("insert booking: %w", err))
	}
	booking.CreatedAt = now
	booking.UpdatedAt = now
	return nil
}

func (t *pgLedgerTx) DeleteBooking(ctx context.Context, id string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, id); err != nil {
		return translatePQ(fmt.Errorf("delete booking: %w", err))
	}
	return nil
}

// translatePQ maps lock waits, deadlocks and the one-booking-per-entry constraint onto domain errors.
func translatePQ(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch string(pqErr.Code) {
	case pqLockNotAvailable, pqDeadlockDetected:
		return appErrors.Wrap(err, appErrors.ErrLockTimeout.Code, appErrors.ErrLockTimeout.Status, appErrors.ErrLockTimeout.Message)
	case pqUniqueViolation:
		if pqErr.Constraint == bookingEntryUniqueCK {
			return appErrors.Wrap(err, appErrors.ErrAlreadyBooked.Code, appErrors.ErrAlreadyBooked.Status, appErrors.ErrAlreadyBooked.Message)
		}
	}
	return err
}
