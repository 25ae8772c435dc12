package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/advising-api/internal/dto"
	"github.com/noah-isme/advising-api/internal/models"
	"github.com/noah-isme/advising-api/internal/repository"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
)

const maxAvailabilityRangeDays = 92

type ledgerRunner interface {
	WithinTx(ctx context.Context, op string, fn func(tx repository.LedgerTx) error) error
}

type availabilityReader interface {
	ListRange(ctx context.Context, teacherID string, from, to models.Date) ([]models.AvailabilityDetail, error)
}

type actorDirectory interface {
	User(ctx context.Context, id string) (*models.User, error)
	Teacher(ctx context.Context, id string) (*models.User, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, event models.Event)
}

type scheduleInvalidator interface {
	Invalidate(ctx context.Context, teacherID string, date models.Date)
}

// AvailabilityService manages the slots teachers open for booking.
type AvailabilityService struct {
	ledger    ledgerRunner
	reader    availabilityReader
	directory actorDirectory
	clock     *SlotClock
	events    eventPublisher
	schedule  scheduleInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAvailabilityService constructs the service.
func NewAvailabilityService(
	ledger ledgerRunner,
	reader availabilityReader,
	directory actorDirectory,
	clock *SlotClock,
	events eventPublisher,
	schedule scheduleInvalidator,
	validate *validator.Validate,
	logger *zap.Logger,
) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{
		ledger:    ledger,
		reader:    reader,
		directory: directory,
		clock:     clock,
		events:    events,
		schedule:  schedule,
		validator: validate,
		logger:    logger,
	}
}

// authorizeManage lets a teacher manage their own slots and an admin manage any teacher's.
func (s *AvailabilityService) authorizeManage(ctx context.Context, actorID, teacherID string) (*models.User, error) {
	actor, err := s.directory.User(ctx, actorID)
	if err != nil {
		return nil, err
	}
	switch {
	case actor.Role == models.RoleTeacher && models.Can(actor.Role, models.ActionManageOwnAvailability):
		if teacherID != actor.ID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "teachers may only manage their own availability")
		}
	case models.Can(actor.Role, models.ActionManageAnyAvailability):
		if _, err := s.directory.Teacher(ctx, teacherID); err != nil {
			return nil, err
		}
	default:
		return nil, appErrors.ErrForbidden
	}
	return actor, nil
}

// Set opens the slot starting at req.StartTime, or updates its mode and note when it already exists.
func (s *AvailabilityService) Set(ctx context.Context, actorID string, req dto.SetAvailabilityRequest) (*dto.SetAvailabilityResult, error) {
	if _, err := s.authorizeManage(ctx, actorID, req.TeacherID); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	if req.Date.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date is required")
	}
	mode, ok := models.ParseMeetingMode(req.MeetingMode)
	if !ok {
		return nil, appErrors.ErrInvalidMeetingMode
	}
	if !s.clock.IsBoundary(req.StartTime) {
		return nil, appErrors.ErrInvalidSlotBoundary
	}

	entry := &models.Availability{
		ID:          uuid.NewString(),
		TeacherID:   req.TeacherID,
		Date:        req.Date,
		StartTime:   req.StartTime,
		EndTime:     s.clock.EndFor(req.StartTime),
		MeetingMode: mode,
		Note:        req.Note,
	}

	var created bool
	err := s.ledger.WithinTx(ctx, "set_availability", func(tx repository.LedgerTx) error {
		if err := tx.Lock(ctx, repository.ScopeTeacherDay(entry.TeacherID, entry.Date)); err != nil {
			return err
		}
		sameDay, err := tx.EntriesForDay(ctx, entry.TeacherID, entry.Date)
		if err != nil {
			return err
		}
		for _, other := range sameDay {
			if other.StartTime != entry.StartTime && other.Overlaps(entry.StartTime, entry.EndTime) {
				return appErrors.Clone(appErrors.ErrSlotOverlap, "slot overlaps the "+other.StartTime.String()+" slot")
			}
		}
		created, err = tx.UpsertEntry(ctx, entry)
		return err
	})
	if err != nil {
		return nil, ledgerError(err, "failed to save availability")
	}

	s.schedule.Invalidate(ctx, entry.TeacherID, entry.Date)
	if created {
		s.events.Publish(ctx, models.NewSlotOpened(actorID, *entry))
	}
	s.logger.Info("availability set",
		zap.String("actor_id", actorID),
		zap.String("teacher_id", entry.TeacherID),
		zap.String("date", entry.Date.String()),
		zap.String("start", entry.StartTime.String()),
		zap.Bool("created", created),
	)
	return &dto.SetAvailabilityResult{Entry: *entry, Created: created}, nil
}

// Unset withdraws a slot that has no booking.
func (s *AvailabilityService) Unset(ctx context.Context, actorID string, req dto.UnsetAvailabilityRequest) error {
	if _, err := s.authorizeManage(ctx, actorID, req.TeacherID); err != nil {
		return err
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}

	err := s.ledger.WithinTx(ctx, "unset_availability", func(tx repository.LedgerTx) error {
		found, err := tx.EntryBySlot(ctx, req.TeacherID, req.Date, req.StartTime)
		if err != nil {
			return err
		}
		if found == nil {
			return appErrors.ErrEntryNotFound
		}
		entry, err := tx.LockEntry(ctx, found.ID)
		if err != nil {
			return err
		}
		if entry == nil {
			return appErrors.ErrEntryNotFound
		}
		booking, err := tx.BookingForEntry(ctx, entry.ID)
		if err != nil {
			return err
		}
		if booking != nil {
			return appErrors.ErrEntryHasActiveBooking
		}
		return tx.DeleteEntry(ctx, entry.ID)
	})
	if err != nil {
		return ledgerError(err, "failed to remove availability")
	}

	s.schedule.Invalidate(ctx, req.TeacherID, req.Date)
	s.logger.Info("availability unset",
		zap.String("actor_id", actorID),
		zap.String("teacher_id", req.TeacherID),
		zap.String("date", req.Date.String()),
		zap.String("start", req.StartTime.String()),
	)
	return nil
}

// ListFor returns a teacher's entries in [from, to]. Students only see open entries and their own bookings.
func (s *AvailabilityService) ListFor(ctx context.Context, actorID string, query dto.AvailabilityRange) ([]models.AvailabilityDetail, error) {
	actor, err := s.directory.User(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !models.Can(actor.Role, models.ActionViewSchedule) {
		return nil, appErrors.ErrForbidden
	}
	if query.TeacherID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacherId is required")
	}
	if query.From.IsZero() {
		query.From = models.DateOf(time.Now().UTC())
	}
	if query.To.IsZero() {
		query.To = query.From.AddDays(6)
	}
	if query.To.Before(query.From) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	if query.From.AddDays(maxAvailabilityRangeDays).Before(query.To) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date range is too long")
	}

	details, err := s.reader.ListRange(ctx, query.TeacherID, query.From, query.To)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list availability")
	}

	out := make([]models.AvailabilityDetail, 0, len(details))
	for _, detail := range details {
		if detail.Booking != nil {
			booking := *detail.Booking
			booking.BookedByMe = booking.StudentID == actor.ID
			if !models.CanSeeBookingStudent(actor.ID, actor.Role, detail.TeacherID, booking.StudentID) {
				if actor.Role == models.RoleStudent {
					continue
				}
				booking = models.BookingSummary{ID: booking.ID, CreatedAt: booking.CreatedAt}
			}
			detail.Booking = &booking
		}
		out = append(out, detail)
	}
	return out, nil
}

// ledgerError passes typed errors through and wraps anything else as internal.
func ledgerError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
