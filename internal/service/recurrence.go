package service

import (
	"time"

	"task-planner/internal/model"
)

// ComputeNextRun returns the occurrence after current.
//
// Monthly schedules land on anchorDay of the following month, clamped to the
// month's length. The anchor day, not current's day, is used on every call,
// so a schedule anchored on the 31st that was clamped to Feb 28 returns to
// Mar 31 instead of drifting to the 28th.
//
// kind must already be validated; anything that is not weekly or bi-weekly
// is treated as monthly.
func ComputeNextRun(current model.Date, kind model.Recurrence, anchorDay int) model.Date {
	switch kind {
	case model.RecurrenceWeekly:
		return current.AddDays(7)
	case model.RecurrenceBiWeekly:
		return current.AddDays(14)
	}

	year, month := current.Year, current.Month+1
	if month > time.December {
		year, month = year+1, time.January
	}
	anchorDay = max(1, min(anchorDay, 31))
	return model.Date{Year: year, Month: month, Day: min(anchorDay, model.DaysIn(year, month))}
}

// AdvancePast applies ComputeNextRun until the cursor is strictly after
// visited. Skipped periods collapse into one jump.
func AdvancePast(cursor model.Date, kind model.Recurrence, anchorDay int, visited model.Date) model.Date {
	for !cursor.After(visited) {
		cursor = ComputeNextRun(cursor, kind, anchorDay)
	}
	return cursor
}
