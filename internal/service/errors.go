package service

import "errors"

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrCategoryRequired = errors.New("category is required: provide one or set it on the template")
	ErrCategoryInUse    = errors.New("template has schedules; its category cannot be cleared")
	ErrTemplateNotFound = errors.New("template not found")
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrDayMismatch      = errors.New("day does not match the applied date")
	ErrApplyFailed      = errors.New("applying due schedules failed")
	ErrInvalidWeekday   = errors.New("invalid weekday")
)
