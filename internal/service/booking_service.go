package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/advising-api/internal/dto"
	"github.com/noah-isme/advising-api/internal/models"
	"github.com/noah-isme/advising-api/internal/repository"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
)

type bookingReader interface {
	GetDetail(ctx context.Context, id string) (*models.BookingDetail, error)
	ListForStudent(ctx context.Context, studentID string) ([]models.BookingDetail, error)
	ListForTeacher(ctx context.Context, teacherID string) ([]models.BookingDetail, error)
}

type claimRecorder interface {
	RecordClaim(err error)
}

// BookingService is the booking ledger: it claims and cancels bookings under the entry row lock.
type BookingService struct {
	ledger    ledgerRunner
	reader    bookingReader
	directory actorDirectory
	events    eventPublisher
	schedule  scheduleInvalidator
	metrics   claimRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBookingService constructs the service. metrics may be nil.
func NewBookingService(
	ledger ledgerRunner,
	reader bookingReader,
	directory actorDirectory,
	events eventPublisher,
	schedule scheduleInvalidator,
	metrics claimRecorder,
	validate *validator.Validate,
	logger *zap.Logger,
) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		ledger:    ledger,
		reader:    reader,
		directory: directory,
		events:    events,
		schedule:  schedule,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

func (s *BookingService) requireStudent(ctx context.Context, actorID string, action models.Action) (*models.User, error) {
	actor, err := s.directory.User(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleStudent || !models.Can(actor.Role, action) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can book advising slots")
	}
	return actor, nil
}

// Claim books an entry for the requesting student. Exactly one of any number of concurrent claims
// on the same entry succeeds; the rest fail with ALREADY_BOOKED.
func (s *BookingService) Claim(ctx context.Context, req dto.ClaimBookingRequest) (booking *models.BookingDetail, err error) {
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordClaim(err)
		}
	}()

	if _, err := s.requireStudent(ctx, req.StudentID, models.ActionClaimBooking); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}

	var detail *models.BookingDetail
	err = s.ledger.WithinTx(ctx, "claim", func(tx repository.LedgerTx) error {
		entry, err := tx.LockEntry(ctx, req.AvailabilityID)
		if err != nil {
			return err
		}
		if entry == nil {
			return appErrors.ErrEntryNotFound
		}
		existing, err := tx.BookingForEntry(ctx, entry.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return appErrors.ErrAlreadyBooked
		}

		if err := tx.Lock(ctx, repository.ScopeStudentDay(req.StudentID, entry.Date)); err != nil {
			return err
		}
		taken, err := tx.StudentHasBookingOn(ctx, req.StudentID, entry.Date)
		if err != nil {
			return err
		}
		if taken {
			return appErrors.ErrDuplicateDailyBooking
		}

		created := &models.Booking{
			ID:             uuid.NewString(),
			AvailabilityID: entry.ID,
			StudentID:      req.StudentID,
			Message:        strings.TrimSpace(req.Message),
		}
		if err := tx.InsertBooking(ctx, created); err != nil {
			return err
		}
		detail, err = tx.BookingDetail(ctx, created.ID)
		if err != nil {
			return err
		}
		if detail == nil {
			return appErrors.Clone(appErrors.ErrInternal, "booking vanished after insert")
		}
		return nil
	})
	if err != nil {
		s.logger.Debug("claim rejected",
			zap.String("student_id", req.StudentID),
			zap.String("availability_id", req.AvailabilityID),
			zap.Error(err),
		)
		return nil, ledgerError(err, "failed to create booking")
	}

	s.schedule.Invalidate(ctx, detail.TeacherID, detail.Date)
	s.events.Publish(ctx, models.NewBookingCreated(req.StudentID, *detail))
	s.logger.Info("booking created",
		zap.String("booking_id", detail.ID),
		zap.String("student_id", detail.StudentID),
		zap.String("teacher_id", detail.TeacherID),
		zap.String("date", detail.Date.String()),
		zap.String("start", detail.StartTime.String()),
	)
	return detail, nil
}

// Cancel deletes the student's booking and announces the reason. The slot becomes open again.
func (s *BookingService) Cancel(ctx context.Context, req dto.CancelBookingRequest) error {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return appErrors.ErrCancellationReasonRequired
	}
	if _, err := s.requireStudent(ctx, req.StudentID, models.ActionCancelBooking); err != nil {
		return err
	}

	var detail *models.BookingDetail
	err := s.ledger.WithinTx(ctx, "cancel", func(tx repository.LedgerTx) error {
		booking, err := tx.BookingByID(ctx, req.BookingID)
		if err != nil {
			return err
		}
		if booking == nil || booking.StudentID != req.StudentID {
			return appErrors.ErrBookingNotFound
		}
		entry, err := tx.LockEntry(ctx, booking.AvailabilityID)
		if err != nil {
			return err
		}
		if entry == nil {
			return appErrors.ErrBookingNotFound
		}
		// Re-read under the lock: a concurrent cancel may have won.
		current, err := tx.BookingForEntry(ctx, entry.ID)
		if err != nil {
			return err
		}
		if current == nil || current.ID != booking.ID {
			return appErrors.ErrBookingNotFound
		}
		detail, err = tx.BookingDetail(ctx, booking.ID)
		if err != nil {
			return err
		}
		if detail == nil {
			return appErrors.ErrBookingNotFound
		}
		return tx.DeleteBooking(ctx, booking.ID)
	})
	if err != nil {
		return ledgerError(err, "failed to cancel booking")
	}

	s.schedule.Invalidate(ctx, detail.TeacherID, detail.Date)
	s.events.Publish(ctx, models.NewBookingCancelled(req.StudentID, *detail, reason))
	s.logger.Info("booking cancelled",
		zap.String("booking_id", detail.ID),
		zap.String("student_id", detail.StudentID),
		zap.String("teacher_id", detail.TeacherID),
	)
	return nil
}

// ListForStudent returns the calling student's bookings.
func (s *BookingService) ListForStudent(ctx context.Context, actorID string) ([]models.BookingDetail, error) {
	actor, err := s.directory.User(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleStudent || !models.Can(actor.Role, models.ActionViewOwnBookings) {
		return nil, appErrors.ErrForbidden
	}
	bookings, err := s.reader.ListForStudent(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	return bookings, nil
}

// ListForTeacher returns bookings on a teacher's slots, for that teacher or an admin.
func (s *BookingService) ListForTeacher(ctx context.Context, actorID, teacherID string) ([]models.BookingDetail, error) {
	actor, err := s.directory.User(ctx, actorID)
	if err != nil {
		return nil, err
	}
	switch {
	case actor.Role == models.RoleTeacher && models.Can(actor.Role, models.ActionViewOwnBookings):
		if actor.ID != teacherID {
			return nil, appErrors.ErrForbidden
		}
	case models.Can(actor.Role, models.ActionViewAnyBooking):
		if _, err := s.directory.Teacher(ctx, teacherID); err != nil {
			return nil, err
		}
	default:
		return nil, appErrors.ErrForbidden
	}
	bookings, err := s.reader.ListForTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	return bookings, nil
}

// Get returns one booking to its student, its teacher or an admin.
func (s *BookingService) Get(ctx context.Context, actorID, bookingID string) (*models.BookingDetail, error) {
	actor, err := s.directory.User(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return loadVisibleBooking(ctx, s.reader, actor, bookingID)
}

func loadVisibleBooking(ctx context.Context, reader interface {
	GetDetail(ctx context.Context, id string) (*models.BookingDetail, error)
}, actor *models.User, bookingID string) (*models.BookingDetail, error) {
	detail, err := reader.GetDetail(ctx, bookingID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	if detail == nil {
		return nil, appErrors.ErrBookingNotFound
	}
	if models.Can(actor.Role, models.ActionViewAnyBooking) || detail.InvolvesUser(actor.ID) {
		return detail, nil
	}
	return nil, appErrors.ErrBookingNotFound
}
