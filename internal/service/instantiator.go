package service

import (
	"context"
	"fmt"

	"task-planner/internal/model"
)

// TaskInstantiator turns a template into an independent task.
type TaskInstantiator struct {
	tasks TaskStore
	tags  TagResolver
}

func NewTaskInstantiator(tasks TaskStore, tags TagResolver) *TaskInstantiator {
	return &TaskInstantiator{tasks: tasks, tags: tags}
}

// Instantiate creates a task for dayID (nil means backlog) at the end of its
// category column. The override wins over the template's category; with
// neither it returns ErrCategoryRequired. An override that is not a known
// category is rejected with ErrInvalidInput. Tags are copied by value.
//
// Placement reads the current maximum position, so callers that race on the
// same day must hold the day lock and share one transaction.
func (i *TaskInstantiator) Instantiate(ctx context.Context, template *model.Template, dayID *uint, override *model.Category) (*model.Task, error) {
	if override != nil && !override.Valid() {
		return nil, fmt.Errorf("%w: %w: %q", ErrInvalidInput, model.ErrInvalidCategory, string(*override))
	}
	category, ok := effectiveCategory(template, override)
	if !ok {
		return nil, ErrCategoryRequired
	}

	orderIndex, err := i.tasks.NextOrderIndex(ctx, dayID, category)
	if err != nil {
		return nil, err
	}

	tags := make([]model.Tag, 0, len(template.Tags))
	for _, t := range template.Tags {
		tag, err := i.tags.GetOrCreate(ctx, t.Name)
		if err != nil {
			return nil, fmt.Errorf("copy tag %q: %w", t.Name, err)
		}
		tags = append(tags, *tag)
	}

	task := &model.Task{
		Category:    category,
		Title:       template.Title,
		Description: template.Description,
		Status:      model.TaskStatusPending,
		OrderIndex:  orderIndex,
		Tags:        tags,
	}
	if dayID != nil {
		id := *dayID
		task.DayID = &id
	}

	if err := i.tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func effectiveCategory(template *model.Template, override *model.Category) (model.Category, bool) {
	if override != nil {
		return *override, true
	}
	if template.HasCategory() {
		return *template.Category, true
	}
	return "", false
}
