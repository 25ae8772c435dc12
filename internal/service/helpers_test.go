package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/advising-api/internal/models"
	"github.com/noah-isme/advising-api/internal/repository"
	"github.com/noah-isme/advising-api/pkg/config"
)

func newTestStore() *repository.MemoryStore {
	store := repository.NewMemoryStore(time.Second, nil)
	for _, u := range []models.User{
		{ID: "teacher-1", Email: "vega@example.edu", FullName: "Dr. Vega", Role: models.RoleTeacher, Active: true},
		{ID: "teacher-2", Email: "lin@example.edu", FullName: "Prof. Lin", Role: models.RoleTeacher, Active: true},
		{ID: "student-1", Email: "ana@example.edu", FullName: "Ana", Role: models.RoleStudent, Active: true},
		{ID: "student-2", Email: "ben@example.edu", FullName: "Ben", Role: models.RoleStudent, Active: true},
		{ID: "admin-1", Email: "root@example.edu", FullName: "Root", Role: models.RoleAdmin, Active: true},
	} {
		store.PutUser(u)
	}
	return store
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event models.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) snapshot() []models.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.Event, len(p.events))
	copy(out, p.events)
	return out
}

func (p *recordingPublisher) ofType(t models.EventType) []models.Event {
	var out []models.Event
	for _, e := range p.snapshot() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	store        *repository.MemoryStore
	clock        *SlotClock
	directory    *DirectoryService
	schedule     *ScheduleService
	availability *AvailabilityService
	bookings     *BookingService
	events       *recordingPublisher
	metrics      *MetricsService
}

func defaultSlotConfig() config.SlotConfig {
	return config.SlotConfig{DayStart: "08:00", DayEnd: "17:00", FineStepMinutes: 15, MeetingDurationMinutes: 30}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := newTestStore()
	clock, err := NewSlotClock(defaultSlotConfig())
	require.NoError(t, err)

	h := &harness{store: store, clock: clock, events: &recordingPublisher{}, metrics: NewMetricsService()}
	h.directory = NewDirectoryService(store, nil)
	h.schedule = NewScheduleService(store, clock, h.directory, nil, nil)
	h.availability = NewAvailabilityService(store, store, h.directory, clock, h.events, h.schedule, nil, nil)
	h.bookings = NewBookingService(store, store, h.directory, h.events, h.schedule, h.metrics, nil, nil)
	return h
}

func testDate() models.Date {
	return models.NewDate(2030, time.March, 4)
}

func clockAt(t *testing.T, s string) models.ClockTime {
	t.Helper()
	c, err := models.ParseClock(s)
	require.NoError(t, err)
	return c
}

// openSlot publishes an entry for teacher-1 on the test date and returns its id.
func (h *harness) openSlot(t *testing.T, teacherID, start string) string {
	t.Helper()
	res, err := h.availability.Set(context.Background(), teacherID, setRequest(teacherID, start))
	require.NoError(t, err)
	return res.Entry.ID
}
