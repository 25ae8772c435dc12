package models

// SlotState is the projected state of one grid position.
type SlotState string

const (
	SlotOpen    SlotState = "OPEN"
	SlotBooked  SlotState = "BOOKED"
	SlotBlocked SlotState = "BLOCKED"
	SlotEmpty   SlotState = "EMPTY"
)

// GridSlot is one candidate meeting window on the day grid.
type GridSlot struct {
	Start ClockTime `json:"start"`
	End   ClockTime `json:"end"`
}

// SlotView is the rendered state of a grid position for a teacher and date.
type SlotView struct {
	Date           Date        `json:"date"`
	Start          ClockTime   `json:"start"`
	End            ClockTime   `json:"end"`
	State          SlotState   `json:"state"`
	AvailabilityID string      `json:"availability_id,omitempty"`
	MeetingMode    MeetingMode `json:"meeting_mode,omitempty"`
	Note           string      `json:"note,omitempty"`
	BookingID      string      `json:"booking_id,omitempty"`
	StudentID      string      `json:"student_id,omitempty"`
	StudentName    string      `json:"student_name,omitempty"`
	BookedByMe     bool        `json:"booked_by_me"`
}
