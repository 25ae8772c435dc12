package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCan(t *testing.T) {
	assert.True(t, Can(RoleStudent, ActionClaimBooking))
	assert.False(t, Can(RoleTeacher, ActionClaimBooking))
	assert.False(t, Can(RoleAdmin, ActionClaimBooking))

	assert.True(t, Can(RoleTeacher, ActionManageOwnAvailability))
	assert.False(t, Can(RoleTeacher, ActionManageAnyAvailability))
	assert.True(t, Can(RoleAdmin, ActionManageAnyAvailability))
	assert.False(t, Can(RoleStudent, ActionManageOwnAvailability))

	assert.False(t, Can(UserRole("guest"), ActionViewSchedule))
}

func TestCanSeeBookingStudent(t *testing.T) {
	assert.True(t, CanSeeBookingStudent("admin-1", RoleAdmin, "t-1", "s-1"))
	assert.True(t, CanSeeBookingStudent("t-1", RoleTeacher, "t-1", "s-1"))
	assert.False(t, CanSeeBookingStudent("t-2", RoleTeacher, "t-1", "s-1"))
	assert.True(t, CanSeeBookingStudent("s-1", RoleStudent, "t-1", "s-1"))
	assert.False(t, CanSeeBookingStudent("s-2", RoleStudent, "t-1", "s-1"))
}
