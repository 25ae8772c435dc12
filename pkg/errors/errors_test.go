package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesClonesAndWraps(t *testing.T) {
	clone := Clone(ErrAlreadyBooked, "slot no longer available")
	assert.True(t, errors.Is(clone, ErrAlreadyBooked))
	assert.Equal(t, "slot no longer available", clone.Message)

	wrapped := fmt.Errorf("claim: %w", clone)
	assert.True(t, errors.Is(wrapped, ErrAlreadyBooked))
	assert.False(t, errors.Is(wrapped, ErrDuplicateDailyBooking))
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	e := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, e.Code)
	assert.Equal(t, http.StatusInternalServerError, e.Status)
	assert.Nil(t, FromError(nil))
}

func TestIsConflict(t *testing.T) {
	assert.True(t, IsConflict(ErrAlreadyBooked))
	assert.True(t, IsConflict(fmt.Errorf("x: %w", ErrEntryHasActiveBooking)))
	assert.False(t, IsConflict(ErrEntryNotFound))
	assert.False(t, IsConflict(errors.New("plain")))
}
