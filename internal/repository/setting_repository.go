package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"task-planner/internal/model"
)

// SettingRepository is the key/value configuration store.
type SettingRepository struct {
	db *gorm.DB
}

func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// Get returns the value and whether the key exists.
func (r *SettingRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var setting model.Setting
	err := conn(ctx, r.db).Where(&model.Setting{Key: key}).First(&setting).Error
	switch {
	case err == nil:
		return setting.Value, true, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "", false, nil
	default:
		return "", false, fmt.Errorf("get setting %q: %w", key, err)
	}
}

func (r *SettingRepository) Set(ctx context.Context, key, value string) error {
	setting := model.Setting{Key: key, Value: value}
	err := conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}
