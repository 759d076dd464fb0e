package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"task-planner/internal/model"
)

// ScheduleRepository persists schedules, their cursors and the
// occurrence ledger.
type ScheduleRepository struct {
	db *gorm.DB
}

func NewScheduleRepository(db *gorm.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

func (r *ScheduleRepository) Create(ctx context.Context, schedule *model.Schedule) error {
	if err := conn(ctx, r.db).Create(schedule).Error; err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

func (r *ScheduleRepository) ListByTemplate(ctx context.Context, templateID uint) ([]model.Schedule, error) {
	var schedules []model.Schedule
	if err := conn(ctx, r.db).Where("template_id = ?", templateID).
		Order("next_run_date ASC, id ASC").
		Find(&schedules).Error; err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return schedules, nil
}

// ListDue returns every schedule whose cursor is on or before date.
func (r *ScheduleRepository) ListDue(ctx context.Context, date model.Date) ([]model.Schedule, error) {
	var schedules []model.Schedule
	if err := conn(ctx, r.db).Where("next_run_date <= ?", date).
		Order("next_run_date ASC, id ASC").
		Find(&schedules).Error; err != nil {
		return nil, fmt.Errorf("list due schedules: %w", err)
	}
	return schedules, nil
}

// AdvanceNextRun moves the cursor from one date to another. It reports false
// when the stored cursor no longer equals from.
func (r *ScheduleRepository) AdvanceNextRun(ctx context.Context, id uint, from, to model.Date) (bool, error) {
	res := conn(ctx, r.db).Model(&model.Schedule{}).
		Where("id = ? AND next_run_date = ?", id, from).
		Update("next_run_date", to)
	if res.Error != nil {
		return false, fmt.Errorf("advance schedule %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Delete removes one schedule of a template along with its ledger rows.
func (r *ScheduleRepository) Delete(ctx context.Context, templateID, scheduleID uint) (bool, error) {
	db := conn(ctx, r.db)
	if err := db.Where("schedule_id = ?", scheduleID).Delete(&model.Occurrence{}).Error; err != nil {
		return false, fmt.Errorf("delete occurrences: %w", err)
	}
	res := db.Where("id = ? AND template_id = ?", scheduleID, templateID).Delete(&model.Schedule{})
	if res.Error != nil {
		return false, fmt.Errorf("delete schedule: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// RecordOccurrence claims the (schedule, date) pair in the ledger. It
// reports false if the pair was already recorded.
func (r *ScheduleRepository) RecordOccurrence(ctx context.Context, occ *model.Occurrence) (bool, error) {
	res := conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "schedule_id"}, {Name: "date"}},
		DoNothing: true,
	}).Create(occ)
	if res.Error != nil {
		return false, fmt.Errorf("record occurrence: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// AttachTask links a ledger row to the task it produced.
func (r *ScheduleRepository) AttachTask(ctx context.Context, occurrenceID, taskID uint) error {
	if err := conn(ctx, r.db).Model(&model.Occurrence{}).
		Where("id = ?", occurrenceID).
		Update("task_id", taskID).Error; err != nil {
		return fmt.Errorf("attach task to occurrence %d: %w", occurrenceID, err)
	}
	return nil
}

func (r *ScheduleRepository) ListOccurrences(ctx context.Context, scheduleID uint) ([]model.Occurrence, error) {
	var occurrences []model.Occurrence
	if err := conn(ctx, r.db).Where("schedule_id = ?", scheduleID).
		Order("date ASC").
		Find(&occurrences).Error; err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}
	return occurrences, nil
}
