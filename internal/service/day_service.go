package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"gorm.io/gorm"

	"task-planner/internal/model"
)

// RecurringDaysOffKey is the settings key holding weekday names that are
// always off.
const RecurringDaysOffKey = "recurring_days_off"

var weekdayNames = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// DayService opens days. Opening a day is what triggers due schedules.
type DayService struct {
	days       DayStore
	tasks      TaskStore
	settings   SettingStore
	applicator *ScheduleApplicator
}

func NewDayService(days DayStore, tasks TaskStore, settings SettingStore, applicator *ScheduleApplicator) *DayService {
	return &DayService{days: days, tasks: tasks, settings: settings, applicator: applicator}
}

// DayView is an opened day with its tasks.
type DayView struct {
	Day    *model.Day
	Tasks  []model.Task
	Result ApplyResult
}

// GetOrCreateDay materialises the day and resolves whether it is off.
func (s *DayService) GetOrCreateDay(ctx context.Context, date model.Date) (*model.Day, error) {
	day, err := s.days.GetOrCreate(ctx, date)
	if err != nil {
		return nil, err
	}
	if err := s.resolveOff(ctx, day); err != nil {
		return nil, err
	}
	return day, nil
}

// Resolve opens date: the day is created if needed, due schedules are
// applied, and the day's tasks are listed. Once the day exists it is always
// returned, even alongside an error; a failed apply wraps ErrApplyFailed.
func (s *DayService) Resolve(ctx context.Context, date model.Date) (*DayView, error) {
	day, err := s.GetOrCreateDay(ctx, date)
	if err != nil {
		return nil, err
	}

	view := &DayView{Day: day}
	result, applyErr := s.applicator.ApplyDue(ctx, day, date)
	view.Result = result

	tasks, listErr := s.tasks.ListByDay(ctx, day.ID)
	view.Tasks = tasks
	if listErr != nil {
		listErr = fmt.Errorf("list tasks: %w", listErr)
	}

	if applyErr != nil {
		return view, fmt.Errorf("%w: %w", ErrApplyFailed, errors.Join(applyErr, listErr))
	}
	if listErr != nil {
		return view, listErr
	}
	return view, nil
}

// MarkOffInput is a request to take a day off.
type MarkOffInput struct {
	Date   model.Date
	Reason string `validate:"required,oneof=weekend personal_day vacation holiday sick_day"`
	Note   string `validate:"max=500"`
}

func (s *DayService) MarkOff(ctx context.Context, input MarkOffInput) (*model.Day, error) {
	input.Reason = strings.ToLower(strings.TrimSpace(input.Reason))
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	reason, err := model.ParseDayOffReason(input.Reason)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	day, err := s.days.GetOrCreate(ctx, input.Date)
	if err != nil {
		return nil, err
	}
	off := &model.DayOff{DayID: day.ID, Reason: reason, Note: strings.TrimSpace(input.Note)}
	if err := s.days.UpsertOff(ctx, off); err != nil {
		return nil, err
	}
	day.Off = off
	day.IsOff = true
	return day, nil
}

// UnmarkOff clears an explicit off record. Unknown days are a no-op.
func (s *DayService) UnmarkOff(ctx context.Context, date model.Date) error {
	day, err := s.days.GetByDate(ctx, date)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find day: %w", err)
	}
	return s.days.DeleteOff(ctx, day.ID)
}

// RecurringDaysOff returns the weekdays that are always off.
func (s *DayService) RecurringDaysOff(ctx context.Context) ([]string, error) {
	raw, ok, err := s.settings.Get(ctx, RecurringDaysOffKey)
	if err != nil || !ok || strings.TrimSpace(raw) == "" {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, fmt.Errorf("decode %s: %w", RecurringDaysOffKey, err)
	}
	return names, nil
}

type recurringDaysOffInput struct {
	Days []string `validate:"max=7,dive,oneof=monday tuesday wednesday thursday friday saturday sunday"`
}

// SetRecurringDaysOff replaces the weekday list. Names are case-insensitive;
// duplicates are dropped and the stored list is in calendar order.
func (s *DayService) SetRecurringDaysOff(ctx context.Context, days []string) ([]string, error) {
	normalized := make([]string, 0, len(days))
	for _, d := range days {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" && !slices.Contains(normalized, d) {
			normalized = append(normalized, d)
		}
	}
	if err := validateStruct(recurringDaysOffInput{Days: normalized}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWeekday, err)
	}
	slices.SortFunc(normalized, func(a, b string) int {
		return weekdayOrder(a) - weekdayOrder(b)
	})

	raw, err := json.Marshal(normalized)
	if err != nil {
		return nil, err
	}
	if err := s.settings.Set(ctx, RecurringDaysOffKey, string(raw)); err != nil {
		return nil, err
	}
	return normalized, nil
}

func (s *DayService) resolveOff(ctx context.Context, day *model.Day) error {
	if day.Off != nil {
		day.IsOff = true
		return nil
	}
	names, err := s.RecurringDaysOff(ctx)
	if err != nil {
		return err
	}
	day.IsOff = slices.Contains(names, weekdayNames[day.Date.Weekday()])
	return nil
}

// weekdayOrder ranks Monday first.
func weekdayOrder(name string) int {
	i := slices.Index(weekdayNames, name)
	if i == 0 {
		return 7
	}
	return i
}
