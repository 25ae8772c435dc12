package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/noah-isme/advising-api/internal/models"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
)

type scheduleEntryReader interface {
	ListDay(ctx context.Context, teacherID string, date models.Date) ([]models.AvailabilityDetail, error)
}

type scheduleDirectory interface {
	User(ctx context.Context, id string) (*models.User, error)
	Teacher(ctx context.Context, id string) (*models.User, error)
}

const cacheGenerationSlots = 256

// ScheduleService projects a teacher's entries for a date onto the slot grid.
type ScheduleService struct {
	entries   scheduleEntryReader
	clock     *SlotClock
	directory scheduleDirectory
	cache     *CacheService
	logger    *zap.Logger

	// generations counts invalidations per hashed cache key. A projection is only cached when
	// no invalidation of its key happened while it was being loaded.
	generations [cacheGenerationSlots]atomic.Uint64
}

// NewScheduleService constructs the projector. cache may be nil.
func NewScheduleService(entries scheduleEntryReader, clock *SlotClock, directory scheduleDirectory, cache *CacheService, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{entries: entries, clock: clock, directory: directory, cache: cache, logger: logger}
}

// ProjectDay renders one view per grid position. A position holding an entry start is OPEN or
// BOOKED; otherwise it is BLOCKED when it falls strictly inside another entry's window, else EMPTY.
func ProjectDay(date models.Date, grid []models.GridSlot, entries []models.AvailabilityDetail) []models.SlotView {
	byStart := make(map[models.ClockTime]models.AvailabilityDetail, len(entries))
	for _, entry := range entries {
		byStart[entry.StartTime] = entry
	}

	views := make([]models.SlotView, 0, len(grid))
	for _, slot := range grid {
		view := models.SlotView{Date: date, Start: slot.Start, End: slot.End, State: models.SlotEmpty}
		if entry, ok := byStart[slot.Start]; ok {
			view.State = models.SlotOpen
			view.End = entry.EndTime
			view.AvailabilityID = entry.ID
			view.MeetingMode = entry.MeetingMode
			view.Note = entry.Note
			if entry.Booking != nil {
				view.State = models.SlotBooked
				view.BookingID = entry.Booking.ID
				view.StudentID = entry.Booking.StudentID
				view.StudentName = entry.Booking.StudentName
			}
		} else {
			for _, other := range entries {
				if other.Blocks(slot.Start) {
					view.State = models.SlotBlocked
					break
				}
			}
		}
		views = append(views, view)
	}
	return views
}

func scheduleCacheKey(teacherID string, date models.Date) string {
	return fmt.Sprintf("schedule:%s:%s", teacherID, date)
}

// Project returns the unredacted projection for a teacher and date.
func (s *ScheduleService) Project(ctx context.Context, teacherID string, date models.Date) ([]models.SlotView, error) {
	key := scheduleCacheKey(teacherID, date)
	var cached []models.SlotView
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	gen := s.generation(key)
	before := gen.Load()
	entries, err := s.entries.ListDay(ctx, teacherID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}
	views := ProjectDay(date, s.clock.Grid(), entries)
	if !s.cache.Enabled() || gen.Load() != before {
		return views, nil
	}
	s.cache.Set(ctx, key, views, 0)
	// An invalidation that raced the write may have deleted the key before it was stored.
	if gen.Load() != before {
		s.cache.Delete(ctx, key)
	}
	return views, nil
}

func (s *ScheduleService) generation(key string) *atomic.Uint64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.generations[h.Sum32()%cacheGenerationSlots]
}

// ProjectFor renders the projection for a viewer. Booking identity is kept only for the booking
// student, the owning teacher and admins.
func (s *ScheduleService) ProjectFor(ctx context.Context, actorID, teacherID string, date models.Date) ([]models.SlotView, error) {
	actor, err := s.directory.User(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !models.Can(actor.Role, models.ActionViewSchedule) {
		return nil, appErrors.ErrForbidden
	}
	if _, err := s.directory.Teacher(ctx, teacherID); err != nil {
		return nil, err
	}

	views, err := s.Project(ctx, teacherID, date)
	if err != nil {
		return nil, err
	}

	out := make([]models.SlotView, len(views))
	for i, view := range views {
		if view.State == models.SlotBooked {
			view.BookedByMe = view.StudentID == actor.ID
			if !models.CanSeeBookingStudent(actor.ID, actor.Role, teacherID, view.StudentID) {
				view.BookingID = ""
				view.StudentID = ""
				view.StudentName = ""
			}
		}
		out[i] = view
	}
	return out, nil
}

// Invalidate drops the cached projection after a committed mutation.
func (s *ScheduleService) Invalidate(ctx context.Context, teacherID string, date models.Date) {
	key := scheduleCacheKey(teacherID, date)
	s.generation(key).Add(1)
	s.cache.Delete(ctx, key)
}
