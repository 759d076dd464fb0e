package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"task-planner/internal/model"
)

var ErrEmptyTagName = errors.New("tag name is empty")

// TagRepository resolves tag names to shared tag rows.
type TagRepository struct {
	db *gorm.DB
}

func NewTagRepository(db *gorm.DB) *TagRepository {
	return &TagRepository{db: db}
}

// NormalizeTagName trims and lower-cases a tag name.
func NormalizeTagName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// GetOrCreate returns the tag for name, creating it if absent. Safe to call
// inside a Postgres transaction: a concurrent insert does not abort it.
func (r *TagRepository) GetOrCreate(ctx context.Context, name string) (*model.Tag, error) {
	normalized := NormalizeTagName(name)
	if normalized == "" {
		return nil, ErrEmptyTagName
	}

	var tag model.Tag
	db := conn(ctx, r.db)
	err := db.Where("name = ?", normalized).First(&tag).Error
	switch {
	case err == nil:
		return &tag, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		tag = model.Tag{Name: normalized}
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(&tag).Error; err != nil {
			return nil, fmt.Errorf("create tag: %w", err)
		}
		if tag.ID != 0 {
			return &tag, nil
		}
		if err := db.Where("name = ?", normalized).First(&tag).Error; err != nil {
			return nil, fmt.Errorf("find tag after conflict: %w", err)
		}
		return &tag, nil
	default:
		return nil, fmt.Errorf("find tag: %w", err)
	}
}
