package service

import (
	"fmt"

	"github.com/noah-isme/advising-api/internal/models"
	"github.com/noah-isme/advising-api/pkg/config"
)

// SlotClock derives the candidate meeting windows of a day. The grid is the same for every date.
type SlotClock struct {
	dayStart models.ClockTime
	dayEnd   models.ClockTime
	step     int
	duration int
}

// NewSlotClock validates the slot configuration.
func NewSlotClock(cfg config.SlotConfig) (*SlotClock, error) {
	start, err := models.ParseClock(cfg.DayStart)
	if err != nil {
		return nil, fmt.Errorf("slot day start: %w", err)
	}
	end, err := models.ParseClock(cfg.DayEnd)
	if err != nil {
		return nil, fmt.Errorf("slot day end: %w", err)
	}
	if end <= start {
		return nil, fmt.Errorf("slot day end %s must be after day start %s", end, start)
	}
	if cfg.FineStepMinutes <= 0 {
		return nil, fmt.Errorf("slot fine step must be positive, got %d", cfg.FineStepMinutes)
	}
	if cfg.MeetingDurationMinutes <= 0 {
		return nil, fmt.Errorf("meeting duration must be positive, got %d", cfg.MeetingDurationMinutes)
	}
	return &SlotClock{dayStart: start, dayEnd: end, step: cfg.FineStepMinutes, duration: cfg.MeetingDurationMinutes}, nil
}

// Grid lists every window [start, start+duration) that starts on a step and ends by day end.
func (c *SlotClock) Grid() []models.GridSlot {
	var slots []models.GridSlot
	for start := c.dayStart; start.Add(c.duration) <= c.dayEnd; start = start.Add(c.step) {
		slots = append(slots, models.GridSlot{Start: start, End: start.Add(c.duration)})
	}
	return slots
}

// IsBoundary reports whether start is one of the grid start times.
func (c *SlotClock) IsBoundary(start models.ClockTime) bool {
	if start < c.dayStart || start.Add(c.duration) > c.dayEnd {
		return false
	}
	return (start.Minutes()-c.dayStart.Minutes())%c.step == 0
}

// EndFor returns the end of the meeting window starting at start.
func (c *SlotClock) EndFor(start models.ClockTime) models.ClockTime {
	return start.Add(c.duration)
}

// MeetingDuration returns the meeting length in minutes.
func (c *SlotClock) MeetingDuration() int {
	return c.duration
}
