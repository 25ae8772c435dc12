package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/advising-api/internal/dto"
	"github.com/noah-isme/advising-api/internal/models"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
)

type stubCacheRepo struct {
	mu      sync.Mutex
	data    map[string][]byte
	hits    int
	deletes []string
	failSet bool
}

func newStubCacheRepo() *stubCacheRepo {
	return &stubCacheRepo{data: map[string][]byte{}}
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	s.hits++
	return json.Unmarshal(raw, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if s.failSet {
		return errors.New("redis down")
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = raw
	return nil
}

func (s *stubCacheRepo) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
		s.deletes = append(s.deletes, k)
	}
	return nil
}

func TestCacheServiceDisabled(t *testing.T) {
	assert.False(t, NewCacheService(nil, nil, 0, nil, true).Enabled())
	assert.False(t, NewCacheService(newStubCacheRepo(), nil, 0, nil, false).Enabled())

	var nilCache *CacheService
	var dest []string
	assert.False(t, nilCache.Get(context.Background(), "k", &dest))
	nilCache.Set(context.Background(), "k", []string{"a"}, 0)
	nilCache.Delete(context.Background(), "k")
}

func TestCacheServiceSwallowsWriteFailures(t *testing.T) {
	repo := newStubCacheRepo()
	repo.failSet = true
	cache := NewCacheService(repo, NewMetricsService(), time.Minute, nil, true)

	cache.Set(context.Background(), "k", []string{"a"}, 0)
	var dest []string
	assert.False(t, cache.Get(context.Background(), "k", &dest))
}

func TestScheduleProjectionIsCachedAndInvalidated(t *testing.T) {
	h := newHarness(t)
	repo := newStubCacheRepo()
	cache := NewCacheService(repo, NewMetricsService(), time.Minute, nil, true)
	schedule := NewScheduleService(h.store, h.clock, h.directory, cache, nil)
	availability := NewAvailabilityService(h.store, h.store, h.directory, h.clock, h.events, schedule, nil, nil)
	ctx := context.Background()

	first, err := schedule.Project(ctx, "teacher-1", testDate())
	require.NoError(t, err)
	second, err := schedule.Project(ctx, "teacher-1", testDate())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.hits)

	_, err = availability.Set(ctx, "teacher-1", setRequest("teacher-1", "10:00"))
	require.NoError(t, err)
	assert.Contains(t, repo.deletes, scheduleCacheKey("teacher-1", testDate()))

	fresh, err := schedule.Project(ctx, "teacher-1", testDate())
	require.NoError(t, err)
	states := statesByStart(fresh)
	assert.Equal(t, models.SlotOpen, states["10:00"])
	assert.Equal(t, models.SlotBlocked, states["10:15"])
}

// pausingReader holds the first ListDay after it has loaded until release is closed.
type pausingReader struct {
	inner   scheduleEntryReader
	once    sync.Once
	loaded  chan struct{}
	release chan struct{}
}

func (r *pausingReader) ListDay(ctx context.Context, teacherID string, date models.Date) ([]models.AvailabilityDetail, error) {
	entries, err := r.inner.ListDay(ctx, teacherID, date)
	r.once.Do(func() {
		close(r.loaded)
		<-r.release
	})
	return entries, err
}

func TestScheduleProjectionLoadRacingClaimIsNotCached(t *testing.T) {
	h := newHarness(t)
	entryID := h.openSlot(t, "teacher-1", "09:00")

	repo := newStubCacheRepo()
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	reader := &pausingReader{inner: h.store, loaded: make(chan struct{}), release: make(chan struct{})}
	schedule := NewScheduleService(reader, h.clock, h.directory, cache, nil)
	bookings := NewBookingService(h.store, h.store, h.directory, h.events, schedule, nil, nil, nil)
	ctx := context.Background()

	stale := make(chan []models.SlotView, 1)
	go func() {
		views, err := schedule.Project(ctx, "teacher-1", testDate())
		assert.NoError(t, err)
		stale <- views
	}()

	<-reader.loaded
	_, err := bookings.Claim(ctx, dto.ClaimBookingRequest{AvailabilityID: entryID, StudentID: "student-1"})
	require.NoError(t, err)
	close(reader.release)

	assert.Equal(t, models.SlotOpen, statesByStart(<-stale)["09:00"])

	fresh, err := schedule.Project(ctx, "teacher-1", testDate())
	require.NoError(t, err)
	assert.Equal(t, models.SlotBooked, statesByStart(fresh)["09:00"])
}
