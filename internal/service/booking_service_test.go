package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/advising-api/internal/dto"
	"github.com/noah-isme/advising-api/internal/models"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
)

func TestBookingServiceConcurrentClaims(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	entryID := h.openSlot(t, "teacher-1", "09:00")

	const claimants = 12
	for i := 0; i < claimants; i++ {
		id := fmt.Sprintf("racer-%d", i)
		h.store.PutUser(models.User{ID: id, Email: id + "@example.edu", FullName: id, Role: models.RoleStudent, Active: true})
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		others    []error
	)
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.bookings.Claim(ctx, dto.ClaimBookingRequest{AvailabilityID: entryID, StudentID: fmt.Sprintf("racer-%d", i)})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, appErrors.ErrAlreadyBooked):
				conflicts++
			default:
				others = append(others, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Empty(t, others)
	assert.Equal(t, 1, successes)
	assert.Equal(t, claimants-1, conflicts)

	bookings, err := h.store.ListForTeacher(ctx, "teacher-1")
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
	assert.Len(t, h.events.ofType(models.EventBookingCreated), 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.claimsTotal.WithLabelValues("success")))
	assert.Equal(t, float64(claimants-1), testutil.ToFloat64(h.metrics.claimsTotal.WithLabelValues("already_booked")))
}

func TestBookingServiceOneBookingPerStudentPerDay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.openSlot(t, "teacher-1", "09:00")
	second := h.openSlot(t, "teacher-2", "14:00")

	_, err := h.bookings.Claim(ctx, dto.ClaimBookingRequest{AvailabilityID: first, StudentID: "student-1"})
	require.NoError(t, err)
	_, err = h.bookings.Claim(ctx, dto.ClaimBookingRequest{AvailabilityID: second, StudentID: "student-1"})
	assert.ErrorIs(t, err, appErrors.ErrDuplicateDailyBooking)

	// a different student may still take it
	_, err = h.bookings.Claim(ctx, dto.ClaimBookingRequest{AvailabilityID: second, StudentID: "student-2"})
	assert.NoError(t, err)
}

func TestBookingServiceClaimRejects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	entryID := h.openSlot(t, "teacher-1", "09:00")

	_, err := h.bookings.Claim(ctx, dto.ClaimBookingRequest{AvailabilityID: "missing", StudentID: "student-1"})
	assert.ErrorIs(t, err, appErrors.ErrEntryNotFound)

	_, err = h.bookings.Claim(ctx, dto.ClaimBookingRequest{AvailabilityID: entryID, StudentID: "teacher-2"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = h.bookings.Claim(ctx, dto.ClaimBookingRequest{StudentID: "student-1"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestBookingServiceCancelRequiresReason(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	entryID := h.openSlot(t, "teacher-1", "09:00")
	booking, err := h.bookings.Claim(ctx, dto.ClaimBookingRequest{AvailabilityID: entryID, StudentID: "student-1"})
	require.NoError(t, err)

	err = h.bookings.Cancel(ctx, dto.CancelBookingRequest{BookingID: booking.ID, StudentID: "student-1", Reason: "   "})
	assert.ErrorIs(t, err, appErrors.ErrCancellationReasonRequired)

	still, err := h.store.GetDetail(ctx, booking.ID)
	require.NoError(t, err)
	assert.NotNil(t, still)
	assert.Empty(t, h.events.ofType(models.EventBookingCancelled))
}

func TestBookingServiceCancelOwnership(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	entryID := h.openSlot(t, "teacher-1", "09:00")
	booking, err := h.bookings.Claim(ctx, dto.ClaimBookingRequest{AvailabilityID: entryID, StudentID: "student-1"})
	require.NoError(t, err)

	err = h.bookings.Cancel(ctx, dto.CancelBookingRequest{BookingID: booking.ID, StudentID: "student-2", Reason: "mine now"})
	assert.ErrorIs(t, err, appErrors.ErrBookingNotFound)

	err = h.bookings.Cancel(ctx, dto.CancelBookingRequest{BookingID: "nope", StudentID: "student-1", Reason: "x"})
	assert.ErrorIs(t, err, appErrors.ErrBookingNotFound)
}

func TestBookingServiceLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	entryID := h.openSlot(t, "teacher-1", "09:00")

	stateAt := func(actor string) models.SlotState {
		views, err := h.schedule.ProjectFor(ctx, actor, "teacher-1", testDate())
		require.NoError(t, err)
		for _, v := range views {
			if v.Start.String() == "09:00" {
				return v.State
			}
		}
		return ""
	}
	assert.Equal(t, models.SlotOpen, stateAt("student-1"))

	booking, err := h.bookings.Claim(ctx, dto.ClaimBookingRequest{AvailabilityID: entryID, StudentID: "student-1", Message: "  thesis outline  "})
	require.NoError(t, err)
	assert.Equal(t, "thesis outline", booking.Message)
	assert.Equal(t, "Dr. Vega", booking.TeacherName)
	assert.Equal(t, models.SlotBooked, stateAt("student-2"))

	got, err := h.bookings.Get(ctx, "teacher-1", booking.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.ID, got.ID)
	_, err = h.bookings.Get(ctx, "student-2", booking.ID)
	assert.ErrorIs(t, err, appErrors.ErrBookingNotFound)

	mine, err := h.bookings.ListForStudent(ctx, "student-1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	require.NoError(t, h.bookings.Cancel(ctx, dto.CancelBookingRequest{BookingID: booking.ID, StudentID: "student-1", Reason: "  conflict with exam "}))
	assert.Equal(t, models.SlotOpen, stateAt("student-1"))

	cancelled := h.events.ofType(models.EventBookingCancelled)
	require.Len(t, cancelled, 1)
	assert.Equal(t, "conflict with exam", cancelled[0].Reason)
	assert.Equal(t, "ana@example.edu", cancelled[0].Booking.StudentEmail)

	// the slot can be booked again, including by the same student
	_, err = h.bookings.Claim(ctx, dto.ClaimBookingRequest{AvailabilityID: entryID, StudentID: "student-1"})
	assert.NoError(t, err)
}

func TestBookingServiceListForTeacher(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	entryID := h.openSlot(t, "teacher-1", "09:00")
	_, err := h.bookings.Claim(ctx, dto.ClaimBookingRequest{AvailabilityID: entryID, StudentID: "student-1"})
	require.NoError(t, err)

	list, err := h.bookings.ListForTeacher(ctx, "teacher-1", "teacher-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = h.bookings.ListForTeacher(ctx, "admin-1", "teacher-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = h.bookings.ListForTeacher(ctx, "teacher-2", "teacher-1")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	_, err = h.bookings.ListForTeacher(ctx, "student-1", "teacher-1")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}
