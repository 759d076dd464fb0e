package service

import (
	"context"

	"task-planner/internal/model"
)

// ScheduleStore is the persistence boundary for schedules and the
// occurrence ledger.
type ScheduleStore interface {
	Create(ctx context.Context, schedule *model.Schedule) error
	ListByTemplate(ctx context.Context, templateID uint) ([]model.Schedule, error)
	ListDue(ctx context.Context, date model.Date) ([]model.Schedule, error)
	AdvanceNextRun(ctx context.Context, id uint, from, to model.Date) (bool, error)
	Delete(ctx context.Context, templateID, scheduleID uint) (bool, error)
	RecordOccurrence(ctx context.Context, occ *model.Occurrence) (bool, error)
	AttachTask(ctx context.Context, occurrenceID, taskID uint) error
}

// TemplateCatalog looks templates up and manages them.
type TemplateCatalog interface {
	Create(ctx context.Context, template *model.Template) error
	Get(ctx context.Context, id uint) (*model.Template, error)
	List(ctx context.Context, search string) ([]model.Template, error)
	Update(ctx context.Context, template *model.Template, tags []model.Tag) error
	HasSchedules(ctx context.Context, id uint) (bool, error)
	Delete(ctx context.Context, id uint) (bool, error)
}

type TagResolver interface {
	GetOrCreate(ctx context.Context, name string) (*model.Tag, error)
}

type TaskStore interface {
	Create(ctx context.Context, task *model.Task) error
	NextOrderIndex(ctx context.Context, dayID *uint, category model.Category) (int, error)
	ListByDay(ctx context.Context, dayID uint) ([]model.Task, error)
}

type DayStore interface {
	GetOrCreate(ctx context.Context, date model.Date) (*model.Day, error)
	GetByDate(ctx context.Context, date model.Date) (*model.Day, error)
	UpsertOff(ctx context.Context, off *model.DayOff) error
	DeleteOff(ctx context.Context, dayID uint) error
}

// SettingStore is the key/value configuration store.
type SettingStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Transactor runs fn inside one transaction carried by the context.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
