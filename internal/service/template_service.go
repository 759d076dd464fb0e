package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"task-planner/internal/model"
)

// MaxTagsPerTemplate caps how many tags a template may carry.
const MaxTagsPerTemplate = 5

// TemplateInput represents data required to create a template.
type TemplateInput struct {
	Title       string   `validate:"required,max=200"`
	Description string   `validate:"max=2000"`
	Category    string   `validate:"omitempty,oneof=deep_work short_task maintenance"`
	Tags        []string `validate:"max=5,dive,required,max=50"`
}

// TemplateUpdate carries the fields to change; nil means keep. An empty
// Category clears it, anything else must parse as a category.
type TemplateUpdate struct {
	Title       *string `validate:"omitempty,min=1,max=200"`
	Description *string `validate:"omitempty,max=2000"`
	Category    *string
	Tags        *[]string `validate:"omitempty,max=5,dive,required,max=50"`
}

// TemplateService wraps template and schedule management.
type TemplateService struct {
	catalog      TemplateCatalog
	schedules    ScheduleStore
	tags         TagResolver
	instantiator *TaskInstantiator
	tx           Transactor
}

func NewTemplateService(catalog TemplateCatalog, schedules ScheduleStore, tags TagResolver, instantiator *TaskInstantiator, tx Transactor) *TemplateService {
	return &TemplateService{
		catalog:      catalog,
		schedules:    schedules,
		tags:         tags,
		instantiator: instantiator,
		tx:           tx,
	}
}

func (s *TemplateService) CreateTemplate(ctx context.Context, input TemplateInput) (*model.Template, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Category = strings.ToLower(strings.TrimSpace(input.Category))
	input.Tags = normalizeTags(input.Tags)
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	template := &model.Template{
		Title:       input.Title,
		Description: strings.TrimSpace(input.Description),
	}
	if input.Category != "" {
		category := model.Category(input.Category)
		template.Category = &category
	}

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		tags, err := s.resolveTags(ctx, input.Tags)
		if err != nil {
			return err
		}
		template.Tags = tags
		return s.catalog.Create(ctx, template)
	})
	if err != nil {
		return nil, err
	}
	return template, nil
}

func (s *TemplateService) GetTemplate(ctx context.Context, id uint) (*model.Template, error) {
	template, err := s.catalog.Get(ctx, id)
	if err != nil {
		return nil, templateErr(id, err)
	}
	return template, nil
}

func (s *TemplateService) ListTemplates(ctx context.Context, search string) ([]model.Template, error) {
	return s.catalog.List(ctx, search)
}

// UpdateTemplate edits a template. Existing tasks are never touched. A
// template with schedules cannot have its category cleared.
func (s *TemplateService) UpdateTemplate(ctx context.Context, id uint, update TemplateUpdate) (*model.Template, error) {
	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		update.Title = &title
		if title == "" {
			return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
		}
	}
	if update.Category != nil {
		category := strings.ToLower(strings.TrimSpace(*update.Category))
		if category != "" {
			if _, err := model.ParseCategory(category); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
			}
		}
		update.Category = &category
	}
	if update.Tags != nil {
		tags := normalizeTags(*update.Tags)
		update.Tags = &tags
	}
	if err := validateStruct(update); err != nil {
		return nil, err
	}

	var template *model.Template
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, err := s.catalog.Get(ctx, id)
		if err != nil {
			return templateErr(id, err)
		}

		if update.Title != nil {
			current.Title = *update.Title
		}
		if update.Description != nil {
			current.Description = strings.TrimSpace(*update.Description)
		}
		if update.Category != nil {
			if *update.Category == "" {
				scheduled, err := s.catalog.HasSchedules(ctx, id)
				if err != nil {
					return err
				}
				if scheduled {
					return ErrCategoryInUse
				}
				current.Category = nil
			} else {
				category := model.Category(*update.Category)
				current.Category = &category
			}
		}

		var tags []model.Tag
		if update.Tags != nil {
			if tags, err = s.resolveTags(ctx, *update.Tags); err != nil {
				return err
			}
		}
		if err := s.catalog.Update(ctx, current, tags); err != nil {
			return err
		}
		template = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return template, nil
}

// DeleteTemplate removes a template and its schedules. Tasks already created
// from it stay.
func (s *TemplateService) DeleteTemplate(ctx context.Context, id uint) error {
	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		deleted, err := s.catalog.Delete(ctx, id)
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("%w: %d", ErrTemplateNotFound, id)
		}
		return nil
	})
}

// CreateSchedule attaches a recurrence to a template. The first occurrence
// is on the anchor date itself.
func (s *TemplateService) CreateSchedule(ctx context.Context, templateID uint, recurrence string, anchor model.Date) (*model.Schedule, error) {
	kind, err := model.ParseRecurrence(recurrence)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if anchor.IsZero() {
		return nil, fmt.Errorf("%w: anchor date is required", ErrInvalidInput)
	}

	schedule := &model.Schedule{
		TemplateID:  templateID,
		Recurrence:  kind,
		AnchorDate:  anchor,
		NextRunDate: anchor,
	}
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		template, err := s.catalog.Get(ctx, templateID)
		if err != nil {
			return templateErr(templateID, err)
		}
		if !template.HasCategory() {
			return ErrCategoryRequired
		}
		return s.schedules.Create(ctx, schedule)
	})
	if err != nil {
		return nil, err
	}
	return schedule, nil
}

func (s *TemplateService) ListSchedules(ctx context.Context, templateID uint) ([]model.Schedule, error) {
	if _, err := s.GetTemplate(ctx, templateID); err != nil {
		return nil, err
	}
	return s.schedules.ListByTemplate(ctx, templateID)
}

func (s *TemplateService) DeleteSchedule(ctx context.Context, templateID, scheduleID uint) error {
	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		deleted, err := s.schedules.Delete(ctx, templateID, scheduleID)
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("%w: %d", ErrScheduleNotFound, scheduleID)
		}
		return nil
	})
}

// Instantiate creates a task from a template on demand. dayID nil puts it in
// the backlog; category overrides the template's when non-empty.
func (s *TemplateService) Instantiate(ctx context.Context, templateID uint, dayID *uint, category string) (*model.Task, error) {
	var override *model.Category
	if strings.TrimSpace(category) != "" {
		c, err := model.ParseCategory(category)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		override = &c
	}

	var task *model.Task
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		template, err := s.catalog.Get(ctx, templateID)
		if err != nil {
			return templateErr(templateID, err)
		}
		task, err = s.instantiator.Instantiate(ctx, template, dayID, override)
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TemplateService) resolveTags(ctx context.Context, names []string) ([]model.Tag, error) {
	tags := make([]model.Tag, 0, len(names))
	for _, name := range names {
		tag, err := s.tags.GetOrCreate(ctx, name)
		if err != nil {
			return nil, err
		}
		tags = append(tags, *tag)
	}
	return tags, nil
}

// normalizeTags trims and lowercases names and drops blanks and repeats.
func normalizeTags(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func templateErr(id uint, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %d", ErrTemplateNotFound, id)
	}
	return err
}
