package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"task-planner/internal/model"
)

// TaskRepository handles task persistence.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := conn(ctx, r.db).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// NextOrderIndex returns the position after the last task of the given
// day and category. A nil dayID addresses the backlog.
func (r *TaskRepository) NextOrderIndex(ctx context.Context, dayID *uint, category model.Category) (int, error) {
	q := conn(ctx, r.db).Model(&model.Task{}).Where("category = ?", category)
	if dayID == nil {
		q = q.Where("day_id IS NULL")
	} else {
		q = q.Where("day_id = ?", *dayID)
	}
	var next int
	if err := q.Select("COALESCE(MAX(order_index), -1) + 1").Scan(&next).Error; err != nil {
		return 0, fmt.Errorf("next order index: %w", err)
	}
	return next, nil
}

// ListByDay returns a day's tasks grouped by category in column order.
func (r *TaskRepository) ListByDay(ctx context.Context, dayID uint) ([]model.Task, error) {
	var tasks []model.Task
	if err := conn(ctx, r.db).Preload("Tags").
		Where("day_id = ?", dayID).
		Order("category ASC, order_index ASC, id ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}
