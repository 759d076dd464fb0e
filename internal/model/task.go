package model

import "time"

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// Task represents a single item in the planner. A nil DayID puts it in the
// backlog. Tasks keep no reference to the template that produced them.
type Task struct {
	ID          uint     `gorm:"primaryKey"`
	DayID       *uint    `gorm:"index"`
	Category    Category `gorm:"type:varchar(32);not null;index"`
	Title       string   `gorm:"not null"`
	Description string
	Status      TaskStatus `gorm:"type:varchar(20);not null;default:pending"`
	OrderIndex  int        `gorm:"not null;default:0"`
	CompletedAt *time.Time
	Tags        []Tag `gorm:"many2many:task_tags"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Tag is a normalised label shared by tasks and templates.
type Tag struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex;not null"`
}
