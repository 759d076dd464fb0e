package repository

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"task-planner/internal/model"
)

// TemplateRepository is the template catalog.
type TemplateRepository struct {
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) Create(ctx context.Context, template *model.Template) error {
	if err := conn(ctx, r.db).Create(template).Error; err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

// Get loads a template with its tags. Missing rows return gorm.ErrRecordNotFound.
func (r *TemplateRepository) Get(ctx context.Context, id uint) (*model.Template, error) {
	var template model.Template
	if err := conn(ctx, r.db).Preload("Tags").First(&template, id).Error; err != nil {
		return nil, err
	}
	return &template, nil
}

// List returns templates ordered by title, optionally filtered by a
// case-insensitive title substring.
func (r *TemplateRepository) List(ctx context.Context, search string) ([]model.Template, error) {
	var templates []model.Template
	q := conn(ctx, r.db).Preload("Tags").Order("title ASC, id ASC")
	if search = strings.TrimSpace(search); search != "" {
		q = q.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	if err := q.Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

// Update saves scalar fields and, when tags is non-nil, replaces the tag set.
func (r *TemplateRepository) Update(ctx context.Context, template *model.Template, tags []model.Tag) error {
	db := conn(ctx, r.db)
	if err := db.Model(template).
		Select("title", "description", "category", "updated_at").
		Updates(template).Error; err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	if tags != nil {
		if err := db.Model(template).Association("Tags").Replace(tags); err != nil {
			return fmt.Errorf("replace template tags: %w", err)
		}
		template.Tags = tags
	}
	return nil
}

func (r *TemplateRepository) HasSchedules(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := conn(ctx, r.db).Model(&model.Schedule{}).Where("template_id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("count schedules: %w", err)
	}
	return count > 0, nil
}

// Delete removes a template together with its schedules, their ledger rows
// and its tag links. Call it inside a transaction.
func (r *TemplateRepository) Delete(ctx context.Context, id uint) (bool, error) {
	db := conn(ctx, r.db)
	scheduleIDs := db.Model(&model.Schedule{}).Select("id").Where("template_id = ?", id)
	if err := db.Where("schedule_id IN (?)", scheduleIDs).Delete(&model.Occurrence{}).Error; err != nil {
		return false, fmt.Errorf("delete occurrences: %w", err)
	}
	if err := db.Where("template_id = ?", id).Delete(&model.Schedule{}).Error; err != nil {
		return false, fmt.Errorf("delete schedules: %w", err)
	}
	if err := db.Model(&model.Template{ID: id}).Association("Tags").Clear(); err != nil {
		return false, fmt.Errorf("clear template tags: %w", err)
	}
	res := db.Delete(&model.Template{}, id)
	if res.Error != nil {
		return false, fmt.Errorf("delete template: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
