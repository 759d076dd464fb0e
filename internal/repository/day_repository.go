package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"task-planner/internal/model"
)

// DayRepository materialises calendar days and their off records.
type DayRepository struct {
	db *gorm.DB
}

func NewDayRepository(db *gorm.DB) *DayRepository {
	return &DayRepository{db: db}
}

// GetOrCreate returns the day for date, creating it on first access.
func (r *DayRepository) GetOrCreate(ctx context.Context, date model.Date) (*model.Day, error) {
	day, err := r.GetByDate(ctx, date)
	switch {
	case err == nil:
		return day, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		created := model.Day{Date: date}
		if err := conn(ctx, r.db).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}},
			DoNothing: true,
		}).Create(&created).Error; err != nil {
			return nil, fmt.Errorf("create day: %w", err)
		}
		// A concurrent open may have won the insert.
		return r.GetByDate(ctx, date)
	default:
		return nil, fmt.Errorf("find day: %w", err)
	}
}

// GetByDate loads a day with its off record. Missing rows return
// gorm.ErrRecordNotFound.
func (r *DayRepository) GetByDate(ctx context.Context, date model.Date) (*model.Day, error) {
	var day model.Day
	if err := conn(ctx, r.db).Preload("Off").Where("date = ?", date).First(&day).Error; err != nil {
		return nil, err
	}
	return &day, nil
}

// UpsertOff marks a day off, replacing the reason of an existing record.
func (r *DayRepository) UpsertOff(ctx context.Context, off *model.DayOff) error {
	err := conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "day_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"reason", "note"}),
	}).Create(off).Error
	if err != nil {
		return fmt.Errorf("upsert day off: %w", err)
	}
	return nil
}

func (r *DayRepository) DeleteOff(ctx context.Context, dayID uint) error {
	if err := conn(ctx, r.db).Where("day_id = ?", dayID).Delete(&model.DayOff{}).Error; err != nil {
		return fmt.Errorf("delete day off: %w", err)
	}
	return nil
}
