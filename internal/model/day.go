package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidDayOffReason = errors.New("invalid day-off reason")

// Day is a materialised calendar date, created on first access.
type Day struct {
	ID        uint    `gorm:"primaryKey"`
	Date      Date    `gorm:"uniqueIndex;not null"`
	Off       *DayOff `gorm:"foreignKey:DayID;constraint:OnDelete:CASCADE"`
	Tasks     []Task  `gorm:"foreignKey:DayID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time

	// IsOff is resolved by the day service from Off and the recurring
	// weekdays-off setting.
	IsOff bool `gorm:"-"`
}

type DayOffReason string

const (
	ReasonWeekend     DayOffReason = "weekend"
	ReasonPersonalDay DayOffReason = "personal_day"
	ReasonVacation    DayOffReason = "vacation"
	ReasonHoliday     DayOffReason = "holiday"
	ReasonSickDay     DayOffReason = "sick_day"
)

func ParseDayOffReason(raw string) (DayOffReason, error) {
	switch r := DayOffReason(strings.ToLower(strings.TrimSpace(raw))); r {
	case ReasonWeekend, ReasonPersonalDay, ReasonVacation, ReasonHoliday, ReasonSickDay:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDayOffReason, raw)
}

// DayOff marks a day as off. One record per day.
type DayOff struct {
	ID     uint         `gorm:"primaryKey"`
	DayID  uint         `gorm:"uniqueIndex;not null"`
	Reason DayOffReason `gorm:"type:varchar(50);not null"`
	Note   string
}

// Setting is a key/value configuration entry.
type Setting struct {
	Key       string `gorm:"primaryKey"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}
