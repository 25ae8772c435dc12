package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/noah-isme/advising-api/internal/models"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
)

// MemoryStore keeps users, entries and bookings in process. It serves as ledger, read repository
// and user directory when no database is configured, and in tests.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]models.User
	entries  map[string]models.Availability
	bookings map[string]models.Booking

	locks       *keyedLocks
	lockTimeout time.Duration
	observer    TxObserver
}

// NewMemoryStore constructs an empty store. lockTimeout bounds every lock wait.
func NewMemoryStore(lockTimeout time.Duration, observer TxObserver) *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]models.User),
		entries:     make(map[string]models.Availability),
		bookings:    make(map[string]models.Booking),
		locks:       newKeyedLocks(),
		lockTimeout: lockTimeout,
		observer:    observer,
	}
}

// PutUser adds or replaces a directory user.
func (s *MemoryStore) PutUser(user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.UpdatedAt = time.Now().UTC()
	s.users[user.ID] = user
}

type seedUser struct {
	models.User
	Active *bool `json:"active"`
}

// LoadUsers seeds the directory from a JSON array of users. Users are active unless the seed
// says otherwise.
func (s *MemoryStore) LoadUsers(r io.Reader) (int, error) {
	var users []seedUser
	if err := json.NewDecoder(r).Decode(&users); err != nil {
		return 0, fmt.Errorf("decode user seed: %w", err)
	}
	for i, u := range users {
		if u.ID == "" || !u.Role.Valid() {
			return i, fmt.Errorf("user seed %d: id and a valid role are required", i)
		}
		user := u.User
		user.Active = u.Active == nil || *u.Active
		s.PutUser(user)
	}
	return len(users), nil
}

// DeleteUser removes a user and cascades to their entries and bookings.
func (s *MemoryStore) DeleteUser(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	for entryID, entry := range s.entries {
		if entry.TeacherID == id {
			s.deleteEntryLocked(entryID)
		}
	}
	for bookingID, booking := range s.bookings {
		if booking.StudentID == id {
			delete(s.bookings, bookingID)
		}
	}
}

// FindByID returns the user or sql.ErrNoRows.
func (s *MemoryStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &user, nil
}

// ListByRole returns active users holding role ordered by name.
func (s *MemoryStore) ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var users []models.User
	for _, user := range s.users {
		if user.Role == role && user.Active {
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].FullName < users[j].FullName })
	return users, nil
}

// ListRange returns a teacher's entries between from and to inclusive, with their bookings.
func (s *MemoryStore) ListRange(ctx context.Context, teacherID string, from, to models.Date) ([]models.AvailabilityDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byEntry := make(map[string]models.Booking, len(s.bookings))
	for _, booking := range s.bookings {
		byEntry[booking.AvailabilityID] = booking
	}

	var details []models.AvailabilityDetail
	for _, entry := range s.entries {
		if entry.TeacherID != teacherID || entry.Date.Before(from) || to.Before(entry.Date) {
			continue
		}
		detail := models.AvailabilityDetail{Availability: entry}
		if booking, ok := byEntry[entry.ID]; ok {
			detail.Booking = &models.BookingSummary{
				ID:          booking.ID,
				StudentID:   booking.StudentID,
				StudentName: s.users[booking.StudentID].FullName,
				Message:     booking.Message,
				CreatedAt:   booking.CreatedAt,
			}
		}
		details = append(details, detail)
	}
	sort.Slice(details, func(i, j int) bool {
		if !details[i].Date.Equal(details[j].Date) {
			return details[i].Date.Before(details[j].Date)
		}
		return details[i].StartTime < details[j].StartTime
	})
	return details, nil
}

// ListDay returns a teacher's entries on one date.
func (s *MemoryStore) ListDay(ctx context.Context, teacherID string, date models.Date) ([]models.AvailabilityDetail, error) {
	return s.ListRange(ctx, teacherID, date, date)
}

// GetDetail returns the booking joined with its entry and users, or nil.
func (s *MemoryStore) GetDetail(ctx context.Context, id string) (*models.BookingDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	booking, ok := s.bookings[id]
	if !ok {
		return nil, nil
	}
	detail, ok := s.detailLocked(booking)
	if !ok {
		return nil, nil
	}
	return &detail, nil
}

// ListForStudent returns the student's bookings ordered by session start.
func (s *MemoryStore) ListForStudent(ctx context.Context, studentID string) ([]models.BookingDetail, error) {
	return s.listDetails(func(d models.BookingDetail) bool { return d.StudentID == studentID }), nil
}

// ListForTeacher returns bookings on the teacher's entries ordered by session start.
func (s *MemoryStore) ListForTeacher(ctx context.Context, teacherID string) ([]models.BookingDetail, error) {
	return s.listDetails(func(d models.BookingDetail) bool { return d.TeacherID == teacherID }), nil
}

func (s *MemoryStore) listDetails(keep func(models.BookingDetail) bool) []models.BookingDetail {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var details []models.BookingDetail
	for _, booking := range s.bookings {
		detail, ok := s.detailLocked(booking)
		if ok && keep(detail) {
			details = append(details, detail)
		}
	}
	sort.Slice(details, func(i, j int) bool { return details[i].Starts().Before(details[j].Starts()) })
	return details
}

func (s *MemoryStore) detailLocked(booking models.Booking) (models.BookingDetail, bool) {
	entry, ok := s.entries[booking.AvailabilityID]
	if !ok {
		return models.BookingDetail{}, false
	}
	student := s.users[booking.StudentID]
	teacher := s.users[entry.TeacherID]
	return models.BookingDetail{
		Booking:      booking,
		TeacherID:    entry.TeacherID,
		Date:         entry.Date,
		StartTime:    entry.StartTime,
		EndTime:      entry.EndTime,
		MeetingMode:  entry.MeetingMode,
		Note:         entry.Note,
		StudentName:  student.FullName,
		StudentEmail: student.Email,
		TeacherName:  teacher.FullName,
		TeacherEmail: teacher.Email,
	}, true
}

func (s *MemoryStore) deleteEntryLocked(id string) {
	delete(s.entries, id)
	for bookingID, booking := range s.bookings {
		if booking.AvailabilityID == id {
			delete(s.bookings, bookingID)
		}
	}
}

// WithinTx runs fn with buffered writes that are applied atomically when fn returns nil.
// Locks taken through the transaction are released after commit or rollback.
func (s *MemoryStore) WithinTx(ctx context.Context, op string, fn func(tx LedgerTx) error) error {
	defer observe(s.observer, op, time.Now())

	tx := &memoryTx{
		store:           s,
		held:            make(map[string]struct{}),
		upserts:         make(map[string]models.Availability),
		deletedEntries:  make(map[string]struct{}),
		inserts:         make(map[string]models.Booking),
		deletedBookings: make(map[string]struct{}),
	}
	defer tx.releaseAll()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

type memoryTx struct {
	store *MemoryStore

	held  map[string]struct{}
	order []string

	upserts         map[string]models.Availability
	deletedEntries  map[string]struct{}
	inserts         map[string]models.Booking
	deletedBookings map[string]struct{}
}

func (t *memoryTx) acquire(ctx context.Context, key string) error {
	if _, ok := t.held[key]; ok {
		return nil
	}
	waitCtx := ctx
	if t.store.lockTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, t.store.lockTimeout)
		defer cancel()
	}
	if err := t.store.locks.acquire(waitCtx, key); err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return appErrors.Wrap(err, appErrors.ErrLockTimeout.Code, appErrors.ErrLockTimeout.Status, appErrors.ErrLockTimeout.Message)
		}
		return fmt.Errorf("acquire lock %s: %w", key, err)
	}
	t.held[key] = struct{}{}
	t.order = append(t.order, key)
	return nil
}

func (t *memoryTx) releaseAll() {
	for i := len(t.order) - 1; i >= 0; i-- {
		t.store.locks.release(t.order[i])
	}
	t.order = nil
	t.held = map[string]struct{}{}
}

func (t *memoryTx) entry(id string) (models.Availability, bool) {
	if _, gone := t.deletedEntries[id]; gone {
		return models.Availability{}, false
	}
	if entry, ok := t.upserts[id]; ok {
		return entry, true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	entry, ok := t.store.entries[id]
	return entry, ok
}

// visibleEntries merges committed entries with this transaction's pending writes.
func (t *memoryTx) visibleEntries() []models.Availability {
	t.store.mu.RLock()
	merged := make(map[string]models.Availability, len(t.store.entries))
	for id, entry := range t.store.entries {
		merged[id] = entry
	}
	t.store.mu.RUnlock()
	for id, entry := range t.upserts {
		merged[id] = entry
	}
	for id := range t.deletedEntries {
		delete(merged, id)
	}
	out := make([]models.Availability, 0, len(merged))
	for _, entry := range merged {
		out = append(out, entry)
	}
	return out
}

func (t *memoryTx) visibleBookings() []models.Booking {
	t.store.mu.RLock()
	merged := make(map[string]models.Booking, len(t.store.bookings))
	for id, booking := range t.store.bookings {
		merged[id] = booking
	}
	t.store.mu.RUnlock()
	for id, booking := range t.inserts {
		merged[id] = booking
	}
	for id := range t.deletedBookings {
		delete(merged, id)
	}
	out := make([]models.Booking, 0, len(merged))
	for _, booking := range merged {
		if _, gone := t.deletedEntries[booking.AvailabilityID]; gone {
			continue
		}
		out = append(out, booking)
	}
	return out
}

func (t *memoryTx) LockEntry(ctx context.Context, id string) (*models.Availability, error) {
	if err := t.acquire(ctx, "entry:"+id); err != nil {
		return nil, err
	}
	entry, ok := t.entry(id)
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (t *memoryTx) Lock(ctx context.Context, scope string) error {
	return t.acquire(ctx, scope)
}

func (t *memoryTx) EntryBySlot(ctx context.Context, teacherID string, date models.Date, start models.ClockTime) (*models.Availability, error) {
	for _, entry := range t.visibleEntries() {
		if entry.TeacherID == teacherID && entry.Date.Equal(date) && entry.StartTime == start {
			found := entry
			return &found, nil
		}
	}
	return nil, nil
}

func (t *memoryTx) EntriesForDay(ctx context.Context, teacherID string, date models.Date) ([]models.Availability, error) {
	var entries []models.Availability
	for _, entry := range t.visibleEntries() {
		if entry.TeacherID == teacherID && entry.Date.Equal(date) {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].StartTime < entries[j].StartTime })
	return entries, nil
}

func (t *memoryTx) UpsertEntry(ctx context.Context, entry *models.Availability) (bool, error) {
	existing, err := t.EntryBySlot(ctx, entry.TeacherID, entry.Date, entry.StartTime)
	if err != nil {
		return false, err
	}
	now := time.Now().UTC()
	if existing != nil {
		if err := t.acquire(ctx, "entry:"+existing.ID); err != nil {
			return false, err
		}
		entry.ID = existing.ID
		entry.CreatedAt = existing.CreatedAt
		entry.UpdatedAt = now
		t.upserts[entry.ID] = *entry
		return false, nil
	}
	entry.CreatedAt = now
	entry.UpdatedAt = now
	delete(t.deletedEntries, entry.ID)
	t.upserts[entry.ID] = *entry
	return true, nil
}

func (t *memoryTx) DeleteEntry(ctx context.Context, id string) error {
	delete(t.upserts, id)
	t.deletedEntries[id] = struct{}{}
	return nil
}

func (t *memoryTx) BookingForEntry(ctx context.Context, entryID string) (*models.Booking, error) {
	for _, booking := range t.visibleBookings() {
		if booking.AvailabilityID == entryID {
			found := booking
			return &found, nil
		}
	}
	return nil, nil
}

func (t *memoryTx) BookingByID(ctx context.Context, id string) (*models.Booking, error) {
	for _, booking := range t.visibleBookings() {
		if booking.ID == id {
			found := booking
			return &found, nil
		}
	}
	return nil, nil
}

func (t *memoryTx) BookingDetail(ctx context.Context, id string) (*models.BookingDetail, error) {
	booking, err := t.BookingByID(ctx, id)
	if err != nil || booking == nil {
		return nil, err
	}
	entry, ok := t.entry(booking.AvailabilityID)
	if !ok {
		return nil, nil
	}
	t.store.mu.RLock()
	student := t.store.users[booking.StudentID]
	teacher := t.store.users[entry.TeacherID]
	t.store.mu.RUnlock()
	return &models.BookingDetail{
		Booking:      *booking,
		TeacherID:    entry.TeacherID,
		Date:         entry.Date,
		StartTime:    entry.StartTime,
		EndTime:      entry.EndTime,
		MeetingMode:  entry.MeetingMode,
		Note:         entry.Note,
		StudentName:  student.FullName,
		StudentEmail: student.Email,
		TeacherName:  teacher.FullName,
		TeacherEmail: teacher.Email,
	}, nil
}

func (t *memoryTx) StudentHasBookingOn(ctx context.Context, studentID string, date models.Date) (bool, error) {
	for _, booking := range t.visibleBookings() {
		if booking.StudentID != studentID {
			continue
		}
		if entry, ok := t.entry(booking.AvailabilityID); ok && entry.Date.Equal(date) {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) InsertBooking(ctx context.Context, booking *models.Booking) error {
	now := time.Now().UTC()
	booking.CreatedAt = now
	booking.UpdatedAt = now
	delete(t.deletedBookings, booking.ID)
	t.inserts[booking.ID] = *booking
	return nil
}

func (t *memoryTx) DeleteBooking(ctx context.Context, id string) error {
	delete(t.inserts, id)
	t.deletedBookings[id] = struct{}{}
	return nil
}

// commit validates the buffered writes against the committed state, then applies them under one write lock.
func (t *memoryTx) commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range t.upserts {
		for id, other := range s.entries {
			if id != entry.ID && other.TeacherID == entry.TeacherID && other.Date.Equal(entry.Date) && other.StartTime == entry.StartTime {
				if _, gone := t.deletedEntries[id]; !gone {
					dup := fmt.Errorf("availability slot %s %s already exists", entry.Date, entry.StartTime)
					return appErrors.Wrap(dup, appErrors.ErrSlotOverlap.Code, appErrors.ErrSlotOverlap.Status, appErrors.ErrSlotOverlap.Message)
				}
			}
		}
	}
	for _, booking := range t.inserts {
		for id, other := range s.bookings {
			if id == booking.ID || other.AvailabilityID != booking.AvailabilityID {
				continue
			}
			if _, gone := t.deletedBookings[id]; !gone {
				return appErrors.ErrAlreadyBooked
			}
		}
		if _, ok := s.entries[booking.AvailabilityID]; !ok {
			if _, pending := t.upserts[booking.AvailabilityID]; !pending {
				return fmt.Errorf("insert booking: availability entry %s does not exist", booking.AvailabilityID)
			}
		}
	}

	for id := range t.deletedBookings {
		delete(s.bookings, id)
	}
	for id := range t.deletedEntries {
		s.deleteEntryLocked(id)
	}
	for id, entry := range t.upserts {
		s.entries[id] = entry
	}
	for id, booking := range t.inserts {
		s.bookings[id] = booking
	}
	return nil
}

// keyedLocks is a table of mutexes created on demand and dropped when no one holds or waits on them.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sem  chan struct{}
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*keyedLock)}
}

func (k *keyedLocks) acquire(ctx context.Context, key string) error {
	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &keyedLock{sem: make(chan struct{}, 1)}
		k.locks[key] = lock
	}
	lock.refs++
	k.mu.Unlock()

	select {
	case lock.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		k.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
		return ctx.Err()
	}
}

func (k *keyedLocks) release(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	lock, ok := k.locks[key]
	if !ok {
		return
	}
	<-lock.sem
	lock.refs--
	if lock.refs == 0 {
		delete(k.locks, key)
	}
}

// size reports how many keys are currently tracked.
func (k *keyedLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
