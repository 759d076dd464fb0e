package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidRecurrence = errors.New("invalid recurrence")

// Recurrence is how often a schedule repeats.
type Recurrence string

const (
	RecurrenceWeekly   Recurrence = "weekly"
	RecurrenceBiWeekly Recurrence = "bi_weekly"
	RecurrenceMonthly  Recurrence = "monthly"
)

func ParseRecurrence(raw string) (Recurrence, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "weekly":
		return RecurrenceWeekly, nil
	case "bi_weekly", "bi-weekly", "biweekly":
		return RecurrenceBiWeekly, nil
	case "monthly":
		return RecurrenceMonthly, nil
	}
	return "", fmt.Errorf("%w: %q (want weekly, bi_weekly or monthly)", ErrInvalidRecurrence, raw)
}

func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceWeekly, RecurrenceBiWeekly, RecurrenceMonthly:
		return true
	}
	return false
}

// Schedule binds a recurrence rule to one template. NextRunDate is the
// inclusive date the schedule is next due on and only ever moves forward.
type Schedule struct {
	ID          uint         `gorm:"primaryKey"`
	TemplateID  uint         `gorm:"not null;index"`
	Recurrence  Recurrence   `gorm:"type:varchar(20);not null"`
	AnchorDate  Date         `gorm:"not null"`
	NextRunDate Date         `gorm:"not null;index"`
	Occurrences []Occurrence `gorm:"foreignKey:ScheduleID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time
}

// AnchorDay is the day of month monthly schedules always aim for.
func (s Schedule) AnchorDay() int {
	return s.AnchorDate.Day
}

// DueState is where a schedule's cursor sits relative to a visited date.
type DueState int

const (
	NotYetDue DueState = iota
	DueToday
	Overdue
)

func (s Schedule) DueState(visited Date) DueState {
	switch cmp := s.NextRunDate.Compare(visited); {
	case cmp > 0:
		return NotYetDue
	case cmp == 0:
		return DueToday
	default:
		return Overdue
	}
}

// OccurrenceOutcome records what happened to an exact occurrence.
type OccurrenceOutcome string

const (
	OutcomeCreated           OccurrenceOutcome = "created"
	OutcomeSkippedDayOff     OccurrenceOutcome = "skipped_day_off"
	OutcomeSkippedNoCategory OccurrenceOutcome = "skipped_no_category"
)

// Occurrence is the append-only ledger row for one (schedule, date) pair.
type Occurrence struct {
	ID         uint `gorm:"primaryKey"`
	ScheduleID uint `gorm:"not null;uniqueIndex:idx_occurrence_schedule_date"`
	Date       Date `gorm:"not null;uniqueIndex:idx_occurrence_schedule_date"`
	TaskID     *uint
	Outcome    OccurrenceOutcome `gorm:"type:varchar(32);not null"`
	CreatedAt  time.Time
}
