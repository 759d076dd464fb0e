package service

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"task-planner/internal/lock"
	"task-planner/internal/logger"
	"task-planner/internal/model"
	"task-planner/internal/repository"
)

type testEnv struct {
	db           *gorm.DB
	templates    *repository.TemplateRepository
	schedules    *repository.ScheduleRepository
	tasks        *repository.TaskRepository
	tags         *repository.TagRepository
	days         *repository.DayRepository
	settings     *repository.SettingRepository
	tx           *repository.Transactor
	instantiator *TaskInstantiator
	applicator   *ScheduleApplicator
	daySvc       *DayService
	templateSvc  *TemplateService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := repository.NewDB(":memory:", logger.Discard())
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	env := &testEnv{
		db:        db,
		templates: repository.NewTemplateRepository(db),
		schedules: repository.NewScheduleRepository(db),
		tasks:     repository.NewTaskRepository(db),
		tags:      repository.NewTagRepository(db),
		days:      repository.NewDayRepository(db),
		settings:  repository.NewSettingRepository(db),
		tx:        repository.NewTransactor(db),
	}
	env.instantiator = NewTaskInstantiator(env.tasks, env.tags)
	env.applicator = env.newApplicator(env.tasks)
	env.daySvc = NewDayService(env.days, env.tasks, env.settings, env.applicator)
	env.templateSvc = NewTemplateService(env.templates, env.schedules, env.tags, env.instantiator, env.tx)
	return env
}

// newApplicator builds an applicator over a custom task store.
func (e *testEnv) newApplicator(tasks TaskStore) *ScheduleApplicator {
	return NewScheduleApplicator(
		e.schedules,
		e.templates,
		NewTaskInstantiator(tasks, e.tags),
		e.tx,
		lock.NewLocalLocker(),
		logger.Discard(),
	)
}

func (e *testEnv) createTemplate(t *testing.T, title, category string, tags ...string) *model.Template {
	t.Helper()
	tmpl, err := e.templateSvc.CreateTemplate(context.Background(), TemplateInput{
		Title:    title,
		Category: category,
		Tags:     tags,
	})
	if err != nil {
		t.Fatalf("CreateTemplate(%q): %v", title, err)
	}
	return tmpl
}

func (e *testEnv) createSchedule(t *testing.T, templateID uint, recurrence string, anchor model.Date) *model.Schedule {
	t.Helper()
	s, err := e.templateSvc.CreateSchedule(context.Background(), templateID, recurrence, anchor)
	if err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}
	return s
}

func (e *testEnv) schedule(t *testing.T, id uint) model.Schedule {
	t.Helper()
	var s model.Schedule
	if err := e.db.First(&s, id).Error; err != nil {
		t.Fatalf("load schedule %d: %v", id, err)
	}
	return s
}

func (e *testEnv) countTasks(t *testing.T) int64 {
	t.Helper()
	var n int64
	if err := e.db.Model(&model.Task{}).Count(&n).Error; err != nil {
		t.Fatalf("count tasks: %v", err)
	}
	return n
}

func mustDate(t *testing.T, raw string) model.Date {
	t.Helper()
	d, err := model.ParseDate(raw)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", raw, err)
	}
	return d
}
