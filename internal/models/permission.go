package models

// Action names an operation guarded by the permission table.
type Action string

const (
	ActionManageOwnAvailability Action = "availability:manage_own"
	ActionManageAnyAvailability Action = "availability:manage_any"
	ActionViewSchedule          Action = "schedule:view"
	ActionClaimBooking          Action = "booking:claim"
	ActionCancelBooking         Action = "booking:cancel"
	ActionViewOwnBookings       Action = "booking:view_own"
	ActionViewAnyBooking        Action = "booking:view_any"
	ActionExportOwnAgenda       Action = "agenda:export_own"
	ActionExportAnyAgenda       Action = "agenda:export_any"
)

var permissions = map[UserRole]map[Action]struct{}{
	RoleStudent: {
		ActionViewSchedule:    {},
		ActionClaimBooking:    {},
		ActionCancelBooking:   {},
		ActionViewOwnBookings: {},
	},
	RoleTeacher: {
		ActionManageOwnAvailability: {},
		ActionViewSchedule:          {},
		ActionViewOwnBookings:       {},
		ActionExportOwnAgenda:       {},
	},
	RoleAdmin: {
		ActionManageAnyAvailability: {},
		ActionViewSchedule:          {},
		ActionViewAnyBooking:        {},
		ActionExportAnyAgenda:       {},
	},
}

// Can reports whether role is allowed to perform action. Ownership is checked separately by the caller.
func Can(role UserRole, action Action) bool {
	allowed, ok := permissions[role]
	if !ok {
		return false
	}
	_, ok = allowed[action]
	return ok
}

// CanSeeBookingStudent reports whether viewer may see who holds a booking.
func CanSeeBookingStudent(viewerID string, viewerRole UserRole, teacherID, studentID string) bool {
	switch viewerRole {
	case RoleAdmin:
		return true
	case RoleTeacher:
		return viewerID == teacherID
	case RoleStudent:
		return viewerID == studentID
	}
	return false
}
